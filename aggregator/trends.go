package aggregator

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"racebot-stats/models"
)

const (
	// significant gain from the grid, in places
	significantGain = 3
	// smallest sample a circuit or team row is computed from
	minCircuitResults = 10
	minTeamResults    = 20
	trackedSlots      = 10
)

// Trends measures how much qualifying decides the race. Rates are
// percentages. Only classified race finishers are sampled.
type Trends struct {
	Samples                int            `json:"samples"`
	QualiFinishCorrelation float64        `json:"quali_finish_correlation"`
	PoleToWinRate          float64        `json:"pole_to_win_rate"`
	WinRateBySlot          []SlotWinRate  `json:"win_rate_by_slot"`
	ImprovementRate        float64        `json:"improvement_rate"`
	AvgPlacesGained        float64        `json:"avg_places_gained"`
	SignificantGainRate    float64        `json:"significant_gain_rate"`
	Podiums                int            `json:"podiums"`
	PodiumsFromTopThree    int            `json:"podiums_from_top_three"`
	TopThreePodiumRate     float64        `json:"top_three_podium_rate"`
	Circuits               []CircuitTrend `json:"circuits"`
	Teams                  []TeamTrend    `json:"teams"`
}

// SlotWinRate is how often a car qualifying in Slot went on to win.
type SlotWinRate struct {
	Slot   int     `json:"slot"`
	Starts int     `json:"starts"`
	Wins   int     `json:"wins"`
	Rate   float64 `json:"rate"`
}

type CircuitTrend struct {
	Circuit        models.Circuit `json:"circuit"`
	Races          int            `json:"races"`
	Results        int            `json:"results"`
	AvgChange      float64        `json:"avg_change"`
	OvertakingRate float64        `json:"overtaking_rate"`
}

type TeamTrend struct {
	Constructor     models.Constructor `json:"constructor"`
	Results         int                `json:"results"`
	Correlation     float64            `json:"correlation"`
	AvgChange       float64            `json:"avg_change"`
	ImprovementRate float64            `json:"improvement_rate"`
}

type sample struct {
	race   models.Race
	result models.Result
	// qualifying position, or grid when qualifying is missing
	quali int
	final int
	// grid minus final, valid when hasGrid
	change  int
	hasGrid bool
}

func collectSamples(snap *models.Snapshot) []sample {
	var samples []sample
	for _, race := range snap.Races {
		for _, r := range race.Results {
			if !r.Classified() || r.Position < 1 {
				continue
			}
			q := race.QualifyingPosition(r.Driver.ID)
			if q == 0 {
				q = r.Grid
			}
			if q <= 0 {
				continue
			}
			change, ok := r.PositionsGained()
			samples = append(samples, sample{race: race, result: r, quali: q, final: r.Position, change: change, hasGrid: ok})
		}
	}
	return samples
}

func ComputeTrends(snap *models.Snapshot) Trends {
	samples := collectSamples(snap)
	t := Trends{Samples: len(samples)}
	if len(samples) == 0 {
		return t
	}

	t.QualiFinishCorrelation = correlation(samples)

	starts := make([]int, trackedSlots+1)
	wins := make([]int, trackedSlots+1)
	for _, s := range samples {
		if s.quali <= trackedSlots {
			starts[s.quali]++
			if s.final == 1 {
				wins[s.quali]++
			}
		}
		if s.final <= 3 {
			t.Podiums++
			if s.quali <= 3 {
				t.PodiumsFromTopThree++
			}
		}
	}
	for slot := 1; slot <= trackedSlots; slot++ {
		if starts[slot] == 0 {
			continue
		}
		t.WinRateBySlot = append(t.WinRateBySlot, SlotWinRate{
			Slot:   slot,
			Starts: starts[slot],
			Wins:   wins[slot],
			Rate:   percent(wins[slot], starts[slot]),
		})
	}
	t.PoleToWinRate = percent(wins[1], starts[1])
	t.TopThreePodiumRate = percent(t.PodiumsFromTopThree, t.Podiums)

	var gains []float64
	withGrid, significant := 0, 0
	for _, s := range samples {
		if !s.hasGrid {
			continue
		}
		withGrid++
		if s.change > 0 {
			gains = append(gains, float64(s.change))
		}
		if s.change >= significantGain {
			significant++
		}
	}
	t.ImprovementRate = percent(len(gains), withGrid)
	t.SignificantGainRate = percent(significant, withGrid)
	if len(gains) > 0 {
		t.AvgPlacesGained = stat.Mean(gains, nil)
	}

	t.Circuits = circuitTrends(samples)
	t.Teams = teamTrends(samples)
	return t
}

func circuitTrends(samples []sample) []CircuitTrend {
	groups := make(map[string][]sample)
	for _, s := range samples {
		if s.hasGrid {
			groups[s.race.Circuit.ID] = append(groups[s.race.Circuit.ID], s)
		}
	}

	var trends []CircuitTrend
	for _, group := range groups {
		if len(group) < minCircuitResults {
			continue
		}
		changes, improved := gridChanges(group)
		rounds := make(map[models.Key]struct{})
		for _, s := range group {
			rounds[s.race.Key()] = struct{}{}
		}
		trends = append(trends, CircuitTrend{
			Circuit:        group[0].race.Circuit,
			Races:          len(rounds),
			Results:        len(group),
			AvgChange:      stat.Mean(changes, nil),
			OvertakingRate: percent(improved, len(group)),
		})
	}
	sort.Slice(trends, func(i, j int) bool {
		if trends[i].OvertakingRate != trends[j].OvertakingRate {
			return trends[i].OvertakingRate > trends[j].OvertakingRate
		}
		return trends[i].Circuit.ID < trends[j].Circuit.ID
	})
	return trends
}

func teamTrends(samples []sample) []TeamTrend {
	groups := make(map[string][]sample)
	for _, s := range samples {
		groups[s.result.Constructor.ID] = append(groups[s.result.Constructor.ID], s)
	}

	var trends []TeamTrend
	for _, group := range groups {
		if len(group) < minTeamResults {
			continue
		}
		var withGrid []sample
		for _, s := range group {
			if s.hasGrid {
				withGrid = append(withGrid, s)
			}
		}
		tt := TeamTrend{
			Constructor: group[0].result.Constructor,
			Results:     len(group),
			Correlation: correlation(group),
		}
		if len(withGrid) > 0 {
			changes, improved := gridChanges(withGrid)
			tt.AvgChange = stat.Mean(changes, nil)
			tt.ImprovementRate = percent(improved, len(withGrid))
		}
		trends = append(trends, tt)
	}
	sort.Slice(trends, func(i, j int) bool {
		if trends[i].ImprovementRate != trends[j].ImprovementRate {
			return trends[i].ImprovementRate > trends[j].ImprovementRate
		}
		return trends[i].Constructor.ID < trends[j].Constructor.ID
	})
	return trends
}

// correlation is the Pearson coefficient between qualifying and finishing
// position. Fewer than two samples or a constant column give 0.
func correlation(samples []sample) float64 {
	if len(samples) < 2 {
		return 0
	}
	x := make([]float64, len(samples))
	y := make([]float64, len(samples))
	for i, s := range samples {
		x[i] = float64(s.quali)
		y[i] = float64(s.final)
	}
	c := stat.Correlation(x, y, nil)
	if math.IsNaN(c) || math.IsInf(c, 0) {
		return 0
	}
	return c
}

func gridChanges(samples []sample) ([]float64, int) {
	out := make([]float64, len(samples))
	improved := 0
	for i, s := range samples {
		out[i] = float64(s.change)
		if s.change > 0 {
			improved++
		}
	}
	return out, improved
}

func percent(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total) * 100
}
