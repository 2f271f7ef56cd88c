package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"racebot-stats/aggregator"
	"racebot-stats/models"
)

func testSnapshot() *models.Snapshot {
	ver := models.Driver{ID: "max_verstappen", Code: "VER", GivenName: "Max", FamilyName: "Verstappen"}
	ham := models.Driver{ID: "hamilton", Code: "HAM", GivenName: "Lewis", FamilyName: "Hamilton"}
	rbr := models.Constructor{ID: "red_bull", Name: "Red Bull"}
	mer := models.Constructor{ID: "mercedes", Name: "Mercedes"}
	finished := func(pos int, d models.Driver, c models.Constructor, points float64) models.Result {
		return models.Result{Session: models.SessionRace, Position: pos, PositionText: strconv.Itoa(pos), Points: points, Driver: d, Constructor: c, Grid: pos, Status: "Finished"}
	}

	return &models.Snapshot{
		ID:             "snap-1",
		Season:         2021,
		FetchedAt:      time.Date(2021, 4, 20, 0, 0, 0, 0, time.UTC),
		ExpectedRounds: 22,
		Races: []models.Race{
			{Season: 2021, Round: 1, Name: "Bahrain Grand Prix", Date: time.Date(2021, 3, 28, 15, 0, 0, 0, time.UTC),
				Circuit: models.Circuit{ID: "bahrain", Name: "Bahrain International Circuit", Location: models.Location{Locality: "Sakhir", Country: "Bahrain"}},
				Results: []models.Result{finished(1, ver, rbr, 25), finished(2, ham, mer, 18)}},
			{Season: 2021, Round: 2, Name: "Emilia Romagna Grand Prix", Date: time.Date(2021, 4, 18, 13, 0, 0, 0, time.UTC),
				Circuit: models.Circuit{ID: "imola", Name: "Imola, \"Enzo e Dino\""},
				Results: []models.Result{finished(1, ham, mer, 25), finished(2, ver, rbr, 18)}},
		},
	}
}

func testEnvelope() Envelope {
	snap := testSnapshot()
	return Build(snap, aggregator.Build(snap), time.Date(2021, 4, 21, 10, 0, 0, 0, time.UTC))
}

func TestColumnsAreFixed(t *testing.T) {
	want := map[string][]string{
		TableDriverStandings: {"season", "position", "driver_id", "driver_code", "driver_name", "constructor_id", "points", "wins", "podiums", "tied"},
		TableTeamStandings:   {"season", "position", "constructor_id", "constructor_name", "points", "wins", "podiums", "tied"},
		TableTrends:          {"season", "metric", "key", "value", "samples"},
	}
	for table, names := range want {
		cols, err := Columns(table)
		require.NoError(t, err)
		got := make([]string, len(cols))
		for i, c := range cols {
			got[i] = c.Name
		}
		assert.Equal(t, names, got, table)
	}

	_, err := Columns("pit_stops")
	assert.Error(t, err)
}

func TestBuildRowsMatchColumns(t *testing.T) {
	env := testEnvelope()

	assert.Equal(t, SchemaVersion, env.SchemaVersion)
	assert.Equal(t, 2021, env.Season)
	assert.True(t, env.Partial)
	assert.Equal(t, 2, env.CompletedRounds)
	require.Len(t, env.Tables, len(TableNames))

	for _, name := range TableNames {
		table := env.Tables[name]
		for i, row := range table.Rows {
			assert.Len(t, row, len(table.Columns), "%s row %d", name, i)
		}
	}

	drivers := env.Tables[TableDriverStandings].Rows
	require.Len(t, drivers, 2)
	assert.Equal(t, []any{2021, 1, "hamilton", "HAM", "Lewis Hamilton", "mercedes", 43.0, 1, 2, true}, drivers[0])

	assert.Len(t, env.Tables[TableResults].Rows, 4)
	races := env.Tables[TableRaces].Rows
	require.Len(t, races, 2)
	assert.Equal(t, "2021-03-28", races[0][3])
	assert.Equal(t, "VER", races[0][10])
}

func TestWriteCSV(t *testing.T) {
	env := testEnvelope()

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, env.Tables[TableRaces]))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "season", records[0][0])
	assert.Equal(t, "points_awarded", records[0][16])
	assert.Equal(t, []string{"2021", "2", "Emilia Romagna Grand Prix", "2021-04-18", "imola", "Imola, \"Enzo e Dino\"", "", "", "false", "true", "HAM", "HAM", "", "", "2", "0", "43"}, records[2])
}

func TestWriteCSVRejectsRaggedRows(t *testing.T) {
	table := Table{Name: "broken", Columns: []Column{{"a", TypeInt}, {"b", TypeInt}}, Rows: [][]any{{1}}}
	assert.Error(t, WriteCSV(&bytes.Buffer{}, table))
}

func TestWriteJSONEnvelope(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, testEnvelope()))

	var decoded struct {
		SchemaVersion int    `json:"schema_version"`
		Season        int    `json:"season"`
		Partial       bool   `json:"partial"`
		GeneratedAt   string `json:"generated_at"`
		Tables        map[string]struct {
			Columns []Column `json:"columns"`
			Rows    [][]any  `json:"rows"`
		} `json:"tables"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, 1, decoded.SchemaVersion)
	assert.Equal(t, 2021, decoded.Season)
	assert.True(t, decoded.Partial)
	assert.Equal(t, "2021-04-21T10:00:00Z", decoded.GeneratedAt)
	assert.Equal(t, TypeFloat, decoded.Tables[TableTrends].Columns[3].Type)
	assert.NotNil(t, decoded.Tables[TableTrends].Rows)
}

func TestWriteDir(t *testing.T) {
	dir := t.TempDir()
	written, err := WriteDir(dir, testEnvelope())
	require.NoError(t, err)
	assert.Len(t, written, len(TableNames)+1)

	entries, err := os.ReadDir(filepath.Join(dir, "2021"))
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{"contract.json", "driver_standings.csv", "team_standings.csv", "races.csv", "results.csv", "trends.csv"}, names)
}

func TestBuildComparison(t *testing.T) {
	c := aggregator.SeasonComparison{
		Seasons: []aggregator.SeasonTrend{
			{Season: 2023, Samples: 400, QualiFinishCorrelation: 0.7, ImprovementRate: 40},
			{Season: 2024, Partial: true, Samples: 120, QualiFinishCorrelation: 0.77, ImprovementRate: 35, CorrelationDelta: 0.07, ImprovementDelta: -5},
		},
		AvgCorrelation:    0.735,
		CorrelationChange: 10,
		ImprovementChange: -5,
	}
	cmp := BuildComparison(c, time.Date(2024, 5, 1, 8, 30, 0, 0, time.UTC))

	assert.Equal(t, []int{2023, 2024}, cmp.Seasons)
	assert.True(t, cmp.Partial)
	assert.Equal(t, TableSeasonTrends, cmp.Table.Name)
	require.Len(t, cmp.Table.Rows, 2)
	for _, row := range cmp.Table.Rows {
		assert.Len(t, row, len(cmp.Table.Columns))
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, cmp.Table))
	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, []string{"2024", "true", "120", "0.77", "0", "35", "0", "0.07", "-5"}, records[2])

	empty := BuildComparison(aggregator.SeasonComparison{}, time.Now())
	assert.Empty(t, empty.Seasons)
	assert.NotNil(t, empty.Table.Rows)
}
