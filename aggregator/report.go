// Package aggregator derives standings, race summaries and trends from a
// stored season snapshot. Every function is pure: the same snapshot always
// produces the same report.
package aggregator

import (
	"time"

	"racebot-stats/models"
	"racebot-stats/temperrors"
)

type Report struct {
	Season          int              `json:"season"`
	SnapshotID      string           `json:"snapshot_id"`
	FetchedAt       time.Time        `json:"fetched_at"`
	ExpectedRounds  int              `json:"expected_rounds"`
	CompletedRounds int              `json:"completed_rounds"`
	Partial         bool             `json:"partial"`
	Drivers         []DriverStanding `json:"drivers"`
	Teams           []TeamStanding   `json:"teams"`
	Races           []RaceSummary    `json:"races"`
	Progression     Progression      `json:"progression"`
	Trends          Trends           `json:"trends"`
	Warnings        []Warning        `json:"warnings,omitempty"`
}

func Build(snap *models.Snapshot) *Report {
	drivers := DriverStandings(snap)
	completed := snap.CompletedRounds()

	return &Report{
		Season:          snap.Season,
		SnapshotID:      snap.ID,
		FetchedAt:       snap.FetchedAt,
		ExpectedRounds:  snap.ExpectedRounds,
		CompletedRounds: completed,
		Partial:         IsPartial(snap),
		Drivers:         drivers,
		Teams:           TeamStandings(snap),
		Races:           RaceSummaries(snap),
		Progression:     PointsProgression(snap, drivers),
		Trends:          ComputeTrends(snap),
		Warnings:        CheckScoring(snap),
	}
}

// IsPartial reports whether fewer races have results than the season is
// expected to hold.
func IsPartial(snap *models.Snapshot) bool {
	return snap.CompletedRounds() < snap.ExpectedRounds
}

// PartialErr returns a *temperrors.PartialData for a partial report and nil
// otherwise. The report itself stays valid either way.
func (r *Report) PartialErr() error {
	if !r.Partial {
		return nil
	}
	return &temperrors.PartialData{Season: r.Season, Stored: r.CompletedRounds, Expected: r.ExpectedRounds}
}

func (r *Report) Driver(code string) (DriverStanding, bool) {
	for _, d := range r.Drivers {
		if d.Driver.Code == code || d.Driver.ID == code {
			return d, true
		}
	}
	return DriverStanding{}, false
}
