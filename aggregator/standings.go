package aggregator

import (
	"sort"

	"racebot-stats/models"
)

type DriverStanding struct {
	Position    int                `json:"position"`
	Driver      models.Driver      `json:"driver"`
	Constructor models.Constructor `json:"constructor"`
	Points      float64            `json:"points"`
	Wins        int                `json:"wins"`
	Podiums     int                `json:"podiums"`
	Tied        bool               `json:"tied,omitempty"`
}

type TeamStanding struct {
	Position    int                `json:"position"`
	Constructor models.Constructor `json:"constructor"`
	Points      float64            `json:"points"`
	Wins        int                `json:"wins"`
	Podiums     int                `json:"podiums"`
	Tied        bool               `json:"tied,omitempty"`
}

// tally is what standings are ranked on. Wins and podiums only count the
// main race; sprint results add points only.
type tally struct {
	points  float64
	wins    int
	podiums int
}

func (t *tally) add(r models.Result) {
	t.points += r.Points
	if r.Session != models.SessionRace {
		return
	}
	if r.Win() {
		t.wins++
	}
	if r.Podium() {
		t.podiums++
	}
}

// ahead reports whether a ranks strictly before b.
func (a tally) ahead(b tally) bool {
	if a.points != b.points {
		return a.points > b.points
	}
	if a.wins != b.wins {
		return a.wins > b.wins
	}
	return a.podiums > b.podiums
}

func (a tally) level(b tally) bool {
	return a.points == b.points && a.wins == b.wins && a.podiums == b.podiums
}

// DriverStandings sums every race and sprint result of the snapshot per
// driver. Drivers level on points, wins and podiums share a position and are
// listed by code.
func DriverStandings(snap *models.Snapshot) []DriverStanding {
	type entry struct {
		driver models.Driver
		team   models.Constructor
		tally
	}

	byID := make(map[string]*entry)
	for _, race := range snap.Races {
		for _, r := range race.AllResults() {
			e, ok := byID[r.Driver.ID]
			if !ok {
				e = &entry{driver: r.Driver}
				byID[r.Driver.ID] = e
			}
			// the latest team a driver raced for
			e.team = r.Constructor
			e.add(r)
		}
	}

	entries := make([]*entry, 0, len(byID))
	for _, e := range byID {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.level(b.tally) {
			return a.ahead(b.tally)
		}
		if a.driver.Label() != b.driver.Label() {
			return a.driver.Label() < b.driver.Label()
		}
		return a.driver.ID < b.driver.ID
	})

	standings := make([]DriverStanding, len(entries))
	for i, e := range entries {
		standings[i] = DriverStanding{
			Position:    i + 1,
			Driver:      e.driver,
			Constructor: e.team,
			Points:      e.points,
			Wins:        e.wins,
			Podiums:     e.podiums,
		}
		if i > 0 && e.level(entries[i-1].tally) {
			standings[i].Position = standings[i-1].Position
			standings[i].Tied = true
			standings[i-1].Tied = true
		}
	}
	return standings
}

// TeamStandings credits each result to the team the driver raced for in
// that result, so mid-season transfers split correctly.
func TeamStandings(snap *models.Snapshot) []TeamStanding {
	type entry struct {
		team models.Constructor
		tally
	}

	byID := make(map[string]*entry)
	for _, race := range snap.Races {
		for _, r := range race.AllResults() {
			e, ok := byID[r.Constructor.ID]
			if !ok {
				e = &entry{team: r.Constructor}
				byID[r.Constructor.ID] = e
			}
			e.add(r)
		}
	}

	entries := make([]*entry, 0, len(byID))
	for _, e := range byID {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.level(b.tally) {
			return a.ahead(b.tally)
		}
		return a.team.ID < b.team.ID
	})

	standings := make([]TeamStanding, len(entries))
	for i, e := range entries {
		standings[i] = TeamStanding{
			Position:    i + 1,
			Constructor: e.team,
			Points:      e.points,
			Wins:        e.wins,
			Podiums:     e.podiums,
		}
		if i > 0 && e.level(entries[i-1].tally) {
			standings[i].Position = standings[i-1].Position
			standings[i].Tied = true
			standings[i-1].Tied = true
		}
	}
	return standings
}

// Progression is the cumulative points of every driver after each completed
// round, in standings order.
type Progression struct {
	Rounds  []int               `json:"rounds"`
	Drivers []DriverProgression `json:"drivers"`
}

type DriverProgression struct {
	Driver models.Driver `json:"driver"`
	Points []float64     `json:"points"`
}

func PointsProgression(snap *models.Snapshot, standings []DriverStanding) Progression {
	var p Progression
	perRound := make([]map[string]float64, 0, len(snap.Races))
	for _, race := range snap.Races {
		if len(race.Results) == 0 {
			continue
		}
		scored := make(map[string]float64)
		for _, r := range race.AllResults() {
			scored[r.Driver.ID] += r.Points
		}
		p.Rounds = append(p.Rounds, race.Round)
		perRound = append(perRound, scored)
	}

	p.Drivers = make([]DriverProgression, 0, len(standings))
	for _, s := range standings {
		dp := DriverProgression{Driver: s.Driver, Points: make([]float64, len(perRound))}
		total := 0.0
		for i, scored := range perRound {
			total += scored[s.Driver.ID]
			dp.Points[i] = total
		}
		p.Drivers = append(p.Drivers, dp)
	}
	return p
}
