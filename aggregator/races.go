package aggregator

import (
	"time"

	"racebot-stats/models"
)

type RaceSummary struct {
	Round          int            `json:"round"`
	Name           string         `json:"name"`
	Date           time.Time      `json:"date"`
	Circuit        models.Circuit `json:"circuit"`
	HasSprint      bool           `json:"has_sprint"`
	Completed      bool           `json:"completed"`
	Winner         *models.Driver `json:"winner,omitempty"`
	WinnerTeam     string         `json:"winner_team,omitempty"`
	Pole           *models.Driver `json:"pole,omitempty"`
	FastestLap     *models.Driver `json:"fastest_lap,omitempty"`
	FastestLapTime string         `json:"fastest_lap_time,omitempty"`
	Starters       int            `json:"starters"`
	Classified     int            `json:"classified"`
	Retirements    int            `json:"retirements"`
	PointsAwarded  float64        `json:"points_awarded"`
}

// RaceSummaries describes every race of the snapshot in round order,
// including scheduled rounds that have no results yet.
func RaceSummaries(snap *models.Snapshot) []RaceSummary {
	summaries := make([]RaceSummary, 0, len(snap.Races))
	for _, race := range snap.Races {
		summaries = append(summaries, summarize(race))
	}
	return summaries
}

func summarize(race models.Race) RaceSummary {
	s := RaceSummary{
		Round:     race.Round,
		Name:      race.Name,
		Date:      race.Date,
		Circuit:   race.Circuit,
		HasSprint: race.HasSprint,
		Completed: len(race.Results) > 0,
		Starters:  len(race.Results),
	}

	var fastest *models.Result
	for i := range race.Results {
		r := race.Results[i]
		if r.Win() {
			d := r.Driver
			s.Winner = &d
			s.WinnerTeam = r.Constructor.Label()
		}
		if r.Classified() {
			s.Classified++
		}
		if !r.Finished() {
			s.Retirements++
		}
		if isFaster(r.FastestLap, fastest) {
			fastest = &race.Results[i]
		}
	}
	for _, r := range race.AllResults() {
		s.PointsAwarded += r.Points
	}

	if fastest != nil {
		d := fastest.Driver
		s.FastestLap = &d
		s.FastestLapTime = fastest.FastestLap.Time
	}

	if pole, ok := poleSitter(race); ok {
		s.Pole = &pole
	}
	return s
}

// isFaster prefers the rank the API reports and falls back to comparing lap
// times when ranks are missing.
func isFaster(lap models.FastestLap, best *models.Result) bool {
	if lap.Rank == 0 && lap.Millis == 0 {
		return false
	}
	if best == nil {
		return true
	}
	if lap.Rank > 0 && best.FastestLap.Rank > 0 {
		return lap.Rank < best.FastestLap.Rank
	}
	if lap.Millis > 0 && best.FastestLap.Millis > 0 {
		return lap.Millis < best.FastestLap.Millis
	}
	return lap.Rank == 1
}

// poleSitter takes qualifying P1, or the car starting from grid slot 1 when
// qualifying was not fetched.
func poleSitter(race models.Race) (models.Driver, bool) {
	for _, q := range race.Qualifying {
		if q.Position == 1 {
			return q.Driver, true
		}
	}
	for _, r := range race.Results {
		if r.Grid == 1 {
			return r.Driver, true
		}
	}
	return models.Driver{}, false
}
