package aggregator

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// SeasonTrend is the headline trend numbers of one season. Deltas are taken
// against the first season compared; rates are in percentage points.
type SeasonTrend struct {
	Season                 int     `json:"season"`
	Partial                bool    `json:"partial"`
	Samples                int     `json:"samples"`
	QualiFinishCorrelation float64 `json:"quali_finish_correlation"`
	PoleToWinRate          float64 `json:"pole_to_win_rate"`
	ImprovementRate        float64 `json:"improvement_rate"`
	SignificantGainRate    float64 `json:"significant_gain_rate"`
	CorrelationDelta       float64 `json:"correlation_delta"`
	ImprovementDelta       float64 `json:"improvement_delta"`
}

// SeasonComparison tracks how much qualifying decides the race across
// seasons.
type SeasonComparison struct {
	Seasons        []SeasonTrend `json:"seasons"`
	AvgCorrelation float64       `json:"avg_correlation"`
	// relative change of the correlation from the first season to the last,
	// in percent
	CorrelationChange float64 `json:"correlation_change"`
	// improvement rate of the last season minus the first one
	ImprovementChange float64 `json:"improvement_change"`
}

// CompareSeasons lines the reports up by season. Seasons without a single
// trend sample are left out.
func CompareSeasons(reports []*Report) SeasonComparison {
	var c SeasonComparison
	for _, r := range reports {
		if r == nil || r.Trends.Samples == 0 {
			continue
		}
		c.Seasons = append(c.Seasons, SeasonTrend{
			Season:                 r.Season,
			Partial:                r.Partial,
			Samples:                r.Trends.Samples,
			QualiFinishCorrelation: r.Trends.QualiFinishCorrelation,
			PoleToWinRate:          r.Trends.PoleToWinRate,
			ImprovementRate:        r.Trends.ImprovementRate,
			SignificantGainRate:    r.Trends.SignificantGainRate,
		})
	}
	if len(c.Seasons) == 0 {
		return c
	}
	sort.Slice(c.Seasons, func(i, j int) bool { return c.Seasons[i].Season < c.Seasons[j].Season })

	first := c.Seasons[0]
	corrs := make([]float64, len(c.Seasons))
	for i := range c.Seasons {
		s := &c.Seasons[i]
		s.CorrelationDelta = s.QualiFinishCorrelation - first.QualiFinishCorrelation
		s.ImprovementDelta = s.ImprovementRate - first.ImprovementRate
		corrs[i] = s.QualiFinishCorrelation
	}
	c.AvgCorrelation = stat.Mean(corrs, nil)

	last := c.Seasons[len(c.Seasons)-1]
	if first.QualiFinishCorrelation != 0 {
		c.CorrelationChange = last.CorrelationDelta / math.Abs(first.QualiFinishCorrelation) * 100
	}
	c.ImprovementChange = last.ImprovementDelta
	return c
}
