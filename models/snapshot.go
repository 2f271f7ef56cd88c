package models

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// Snapshot is the persisted set of records for one season at a point in time.
type Snapshot struct {
	ID             string    `json:"id"`
	Season         int       `json:"season"`
	FetchedAt      time.Time `json:"fetched_at"`
	ExpectedRounds int       `json:"expected_rounds"`
	Races          []Race    `json:"races"`
}

func NewSnapshot(season, expectedRounds int, races []Race) *Snapshot {
	s := &Snapshot{
		ID:             uuid.NewString(),
		Season:         season,
		FetchedAt:      time.Now().UTC().Truncate(time.Second),
		ExpectedRounds: expectedRounds,
		Races:          races,
	}
	s.SortRaces()
	return s
}

func (s *Snapshot) SortRaces() {
	sort.SliceStable(s.Races, func(i, j int) bool { return s.Races[i].Round < s.Races[j].Round })
}

// Merge replaces races of the same round with the given ones and keeps the
// rest. Used when a single round is re-fetched.
func (s *Snapshot) Merge(races []Race) {
	byRound := make(map[int]int, len(s.Races))
	for i, r := range s.Races {
		byRound[r.Round] = i
	}
	for _, r := range races {
		if i, ok := byRound[r.Round]; ok {
			s.Races[i] = r
			continue
		}
		byRound[r.Round] = len(s.Races)
		s.Races = append(s.Races, r)
	}
	s.SortRaces()
}

// CompletedRounds counts races that already have race results.
func (s *Snapshot) CompletedRounds() int {
	n := 0
	for _, r := range s.Races {
		if len(r.Results) > 0 {
			n++
		}
	}
	return n
}

func (s *Snapshot) Race(round int) (Race, bool) {
	for _, r := range s.Races {
		if r.Round == round {
			return r, true
		}
	}
	return Race{}, false
}

// LastRace returns the latest race that has results.
func (s *Snapshot) LastRace() (Race, bool) {
	for i := len(s.Races) - 1; i >= 0; i-- {
		if len(s.Races[i].Results) > 0 {
			return s.Races[i], true
		}
	}
	return Race{}, false
}

// Normalize puts every timestamp in UTC. Decoders may hand back local times.
func (s *Snapshot) Normalize() {
	s.FetchedAt = s.FetchedAt.UTC()
	for i := range s.Races {
		s.Races[i].Date = s.Races[i].Date.UTC()
	}
}
