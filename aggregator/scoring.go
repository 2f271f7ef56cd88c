package aggregator

import (
	"fmt"

	"racebot-stats/models"
)

// Warning flags data that is kept but looks off, such as points that do not
// match the scoring table of the season.
type Warning struct {
	Round   int            `json:"round"`
	Session models.Session `json:"session"`
	Message string         `json:"message"`
}

type scoringTable struct {
	race        []float64
	sprint      []float64
	fastestLap  float64
	fastestTopN int
}

// scoringFor returns the table in force for a season, or false for eras
// that are not checked.
func scoringFor(season int) (scoringTable, bool) {
	var t scoringTable
	switch {
	case season >= 2010:
		t.race = []float64{25, 18, 15, 12, 10, 8, 6, 4, 2, 1}
	case season >= 2003:
		t.race = []float64{10, 8, 6, 5, 4, 3, 2, 1}
	case season >= 1991:
		t.race = []float64{10, 6, 4, 3, 2, 1}
	default:
		return t, false
	}

	switch {
	case season == 2021:
		t.sprint = []float64{3, 2, 1}
	case season >= 2022:
		t.sprint = []float64{8, 7, 6, 5, 4, 3, 2, 1}
	}

	if season >= 2019 && season <= 2024 {
		t.fastestLap = 1
		t.fastestTopN = 10
	}
	return t, true
}

func (t scoringTable) expected(r models.Result) float64 {
	table := t.race
	if r.Session == models.SessionSprint {
		table = t.sprint
	}
	if !r.Classified() || r.Position < 1 {
		return 0
	}
	var points float64
	if r.Position <= len(table) {
		points = table[r.Position-1]
	}
	if r.Session == models.SessionRace && t.fastestLap > 0 && r.FastestLap.Rank == 1 && r.Position <= t.fastestTopN {
		points += t.fastestLap
	}
	return points
}

// CheckScoring compares awarded points with the season's scoring table. A
// deviation is reported once per session; shortened races that award half
// points show up here too and are not errors.
func CheckScoring(snap *models.Snapshot) []Warning {
	table, ok := scoringFor(snap.Season)
	if !ok {
		return nil
	}

	var warnings []Warning
	for _, race := range snap.Races {
		sessions := []struct {
			session models.Session
			results []models.Result
		}{
			{models.SessionRace, race.Results},
			{models.SessionSprint, race.SprintResults},
		}
		for _, s := range sessions {
			if s.session == models.SessionSprint && table.sprint == nil {
				continue
			}
			deviations := 0
			for _, r := range s.results {
				if r.Points != table.expected(r) {
					deviations++
				}
			}
			if deviations > 0 {
				warnings = append(warnings, Warning{
					Round:   race.Round,
					Session: s.session,
					Message: fmt.Sprintf("%d of %d results deviate from the %d scoring table", deviations, len(s.results), snap.Season),
				})
			}
		}
	}
	return warnings
}
