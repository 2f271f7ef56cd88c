// Package export turns a season report into the versioned tables the
// dashboard reads. Column names and types are fixed for a schema version;
// adding or renaming a column means bumping SchemaVersion.
package export

import (
	"fmt"
	"time"

	"racebot-stats/aggregator"
	"racebot-stats/models"
)

const SchemaVersion = 1

const (
	TableDriverStandings = "driver_standings"
	TableTeamStandings   = "team_standings"
	TableRaces           = "races"
	TableResults         = "results"
	TableTrends          = "trends"
	// cross-season, built by BuildComparison rather than Build
	TableSeasonTrends = "season_trends"
)

const dateLayout = "2006-01-02"

// TableNames lists the contract tables in export order.
var TableNames = []string{TableDriverStandings, TableTeamStandings, TableRaces, TableResults, TableTrends}

type ColumnType string

const (
	TypeInt    ColumnType = "int"
	TypeFloat  ColumnType = "float"
	TypeString ColumnType = "string"
	TypeBool   ColumnType = "bool"
	TypeDate   ColumnType = "date"
)

type Column struct {
	Name string     `json:"name"`
	Type ColumnType `json:"type"`
}

type Table struct {
	Name    string   `json:"name"`
	Columns []Column `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// Envelope is the JSON form of the contract.
type Envelope struct {
	SchemaVersion   int              `json:"schema_version"`
	Season          int              `json:"season"`
	SnapshotID      string           `json:"snapshot_id"`
	Partial         bool             `json:"partial"`
	ExpectedRounds  int              `json:"expected_rounds"`
	CompletedRounds int              `json:"completed_rounds"`
	FetchedAt       time.Time        `json:"fetched_at"`
	GeneratedAt     time.Time        `json:"generated_at"`
	Warnings        []string         `json:"warnings,omitempty"`
	Tables          map[string]Table `json:"tables"`
}

var schema = map[string][]Column{
	TableDriverStandings: {
		{"season", TypeInt},
		{"position", TypeInt},
		{"driver_id", TypeString},
		{"driver_code", TypeString},
		{"driver_name", TypeString},
		{"constructor_id", TypeString},
		{"points", TypeFloat},
		{"wins", TypeInt},
		{"podiums", TypeInt},
		{"tied", TypeBool},
	},
	TableTeamStandings: {
		{"season", TypeInt},
		{"position", TypeInt},
		{"constructor_id", TypeString},
		{"constructor_name", TypeString},
		{"points", TypeFloat},
		{"wins", TypeInt},
		{"podiums", TypeInt},
		{"tied", TypeBool},
	},
	TableRaces: {
		{"season", TypeInt},
		{"round", TypeInt},
		{"name", TypeString},
		{"date", TypeDate},
		{"circuit_id", TypeString},
		{"circuit_name", TypeString},
		{"locality", TypeString},
		{"country", TypeString},
		{"has_sprint", TypeBool},
		{"completed", TypeBool},
		{"winner_code", TypeString},
		{"pole_code", TypeString},
		{"fastest_lap_code", TypeString},
		{"fastest_lap_time", TypeString},
		{"classified", TypeInt},
		{"retirements", TypeInt},
		{"points_awarded", TypeFloat},
	},
	TableResults: {
		{"season", TypeInt},
		{"round", TypeInt},
		{"session", TypeString},
		{"position", TypeInt},
		{"position_text", TypeString},
		{"driver_id", TypeString},
		{"driver_code", TypeString},
		{"constructor_id", TypeString},
		{"grid", TypeInt},
		{"quali_position", TypeInt},
		{"laps", TypeInt},
		{"status", TypeString},
		{"points", TypeFloat},
		{"time_millis", TypeInt},
		{"fastest_lap_rank", TypeInt},
		{"fastest_lap_millis", TypeInt},
	},
	TableTrends: {
		{"season", TypeInt},
		{"metric", TypeString},
		{"key", TypeString},
		{"value", TypeFloat},
		{"samples", TypeInt},
	},
	TableSeasonTrends: {
		{"season", TypeInt},
		{"partial", TypeBool},
		{"samples", TypeInt},
		{"quali_finish_correlation", TypeFloat},
		{"pole_to_win_rate", TypeFloat},
		{"improvement_rate", TypeFloat},
		{"significant_gain_rate", TypeFloat},
		{"correlation_delta", TypeFloat},
		{"improvement_delta", TypeFloat},
	},
}

// Columns returns the fixed columns of a contract table.
func Columns(table string) ([]Column, error) {
	cols, ok := schema[table]
	if !ok {
		return nil, fmt.Errorf("unknown table %q", table)
	}
	out := make([]Column, len(cols))
	copy(out, cols)
	return out, nil
}

// Build assembles every contract table for one season.
func Build(snap *models.Snapshot, report *aggregator.Report, now time.Time) Envelope {
	env := Envelope{
		SchemaVersion:   SchemaVersion,
		Season:          report.Season,
		SnapshotID:      report.SnapshotID,
		Partial:         report.Partial,
		ExpectedRounds:  report.ExpectedRounds,
		CompletedRounds: report.CompletedRounds,
		FetchedAt:       report.FetchedAt,
		GeneratedAt:     now.UTC().Truncate(time.Second),
		Tables:          make(map[string]Table, len(TableNames)),
	}
	for _, w := range report.Warnings {
		env.Warnings = append(env.Warnings, fmt.Sprintf("round %d %s: %s", w.Round, w.Session, w.Message))
	}

	env.Tables[TableDriverStandings] = newTable(TableDriverStandings, driverRows(report))
	env.Tables[TableTeamStandings] = newTable(TableTeamStandings, teamRows(report))
	env.Tables[TableRaces] = newTable(TableRaces, raceRows(report))
	env.Tables[TableResults] = newTable(TableResults, resultRows(snap))
	env.Tables[TableTrends] = newTable(TableTrends, trendRows(report))
	return env
}

// Comparison is the JSON form of the cross-season trends.
type Comparison struct {
	SchemaVersion     int       `json:"schema_version"`
	Seasons           []int     `json:"seasons"`
	Partial           bool      `json:"partial"`
	AvgCorrelation    float64   `json:"avg_correlation"`
	CorrelationChange float64   `json:"correlation_change"`
	ImprovementChange float64   `json:"improvement_change"`
	GeneratedAt       time.Time `json:"generated_at"`
	Table             Table     `json:"table"`
}

// BuildComparison assembles the season_trends table. Partial is set when any
// compared season is still incomplete.
func BuildComparison(c aggregator.SeasonComparison, now time.Time) Comparison {
	out := Comparison{
		SchemaVersion:     SchemaVersion,
		Seasons:           []int{},
		AvgCorrelation:    c.AvgCorrelation,
		CorrelationChange: c.CorrelationChange,
		ImprovementChange: c.ImprovementChange,
		GeneratedAt:       now.UTC().Truncate(time.Second),
	}
	var rows [][]any
	for _, s := range c.Seasons {
		out.Seasons = append(out.Seasons, s.Season)
		out.Partial = out.Partial || s.Partial
		rows = append(rows, []any{
			s.Season, s.Partial, s.Samples, s.QualiFinishCorrelation, s.PoleToWinRate,
			s.ImprovementRate, s.SignificantGainRate, s.CorrelationDelta, s.ImprovementDelta,
		})
	}
	out.Table = newTable(TableSeasonTrends, rows)
	return out
}

func newTable(name string, rows [][]any) Table {
	if rows == nil {
		rows = [][]any{}
	}
	return Table{Name: name, Columns: schema[name], Rows: rows}
}

func driverRows(r *aggregator.Report) [][]any {
	var rows [][]any
	for _, d := range r.Drivers {
		rows = append(rows, []any{
			r.Season, d.Position, d.Driver.ID, d.Driver.Label(), d.Driver.FullName(),
			d.Constructor.ID, d.Points, d.Wins, d.Podiums, d.Tied,
		})
	}
	return rows
}

func teamRows(r *aggregator.Report) [][]any {
	var rows [][]any
	for _, t := range r.Teams {
		rows = append(rows, []any{
			r.Season, t.Position, t.Constructor.ID, t.Constructor.Label(), t.Points, t.Wins, t.Podiums, t.Tied,
		})
	}
	return rows
}

func raceRows(r *aggregator.Report) [][]any {
	var rows [][]any
	for _, s := range r.Races {
		rows = append(rows, []any{
			r.Season, s.Round, s.Name, formatDate(s.Date),
			s.Circuit.ID, s.Circuit.Name, s.Circuit.Location.Locality, s.Circuit.Location.Country,
			s.HasSprint, s.Completed,
			code(s.Winner), code(s.Pole), code(s.FastestLap), s.FastestLapTime,
			s.Classified, s.Retirements, s.PointsAwarded,
		})
	}
	return rows
}

func resultRows(snap *models.Snapshot) [][]any {
	var rows [][]any
	for _, race := range snap.Races {
		for _, res := range race.AllResults() {
			rows = append(rows, []any{
				snap.Season, race.Round, string(res.Session), res.Position, res.PositionText,
				res.Driver.ID, res.Driver.Label(), res.Constructor.ID,
				res.Grid, race.QualifyingPosition(res.Driver.ID), res.Laps, res.Status, res.Points,
				int(res.TimeMillis), res.FastestLap.Rank, int(res.FastestLap.Millis),
			})
		}
	}
	return rows
}

// trendRows flattens the trends into metric/key/value rows so the column set
// stays fixed however many circuits or teams qualify.
func trendRows(r *aggregator.Report) [][]any {
	t := r.Trends
	row := func(metric, key string, value float64, samples int) []any {
		return []any{r.Season, metric, key, value, samples}
	}

	rows := [][]any{
		row("quali_finish_correlation", "", t.QualiFinishCorrelation, t.Samples),
		row("pole_to_win_rate", "", t.PoleToWinRate, t.Samples),
		row("improvement_rate", "", t.ImprovementRate, t.Samples),
		row("avg_places_gained", "", t.AvgPlacesGained, t.Samples),
		row("significant_gain_rate", "", t.SignificantGainRate, t.Samples),
		row("top_three_podium_rate", "", t.TopThreePodiumRate, t.Podiums),
	}
	for _, s := range t.WinRateBySlot {
		rows = append(rows, row("win_rate_by_slot", fmt.Sprint(s.Slot), s.Rate, s.Starts))
	}
	for _, c := range t.Circuits {
		rows = append(rows,
			row("circuit_overtaking_rate", c.Circuit.ID, c.OvertakingRate, c.Results),
			row("circuit_avg_change", c.Circuit.ID, c.AvgChange, c.Results))
	}
	for _, tt := range t.Teams {
		rows = append(rows,
			row("team_correlation", tt.Constructor.ID, tt.Correlation, tt.Results),
			row("team_improvement_rate", tt.Constructor.ID, tt.ImprovementRate, tt.Results),
			row("team_avg_change", tt.Constructor.ID, tt.AvgChange, tt.Results))
	}
	return rows
}

func code(d *models.Driver) string {
	if d == nil {
		return ""
	}
	return d.Label()
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateLayout)
}
