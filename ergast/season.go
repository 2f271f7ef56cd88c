package ergast

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"racebot-stats/models"
	"racebot-stats/temperrors"
)

// Batch is what one fetch produced: the valid races of the scope plus every
// record that had to be dropped.
type Batch struct {
	Season         int
	Round          int
	ExpectedRounds int
	Races          []models.Race
	Invalid        []*temperrors.ValidationError
}

// GetSeason returns the races of a season (or a single round when round > 0)
// with race results, sprint results and qualifying attached, ordered by round.
// Only races that already have results are returned.
func (erg *ErgastAPI) GetSeason(ctx context.Context, season, round int) (*Batch, error) {
	calendar, err := erg.GetCalendar(ctx, season)
	if err != nil {
		return nil, err
	}
	results, err := erg.GetRaceResults(ctx, season, round)
	if err != nil {
		return nil, err
	}
	sprints, err := erg.GetSprintResults(ctx, season, round)
	if err != nil {
		return nil, err
	}
	qualifying, err := erg.GetQualifyingResults(ctx, season, round)
	if err != nil {
		return nil, err
	}

	batch := &Batch{Season: season, Round: round, ExpectedRounds: len(calendar)}

	sprintWeekends := map[string]bool{}
	for _, race := range calendar {
		if race.Sprint.Date != "" {
			sprintWeekends[race.Round] = true
		}
	}
	sprintByRound := map[string]Race{}
	for _, race := range sprints {
		sprintByRound[race.Round] = race
	}
	qualByRound := map[string]Race{}
	for _, race := range qualifying {
		qualByRound[race.Round] = race
	}

	for _, wire := range results {
		race, ok := convertRace(wire, batch)
		if !ok {
			continue
		}
		race.Results = convertResults(wire.Results, models.SessionRace, race, batch)

		if sprint, ok := sprintByRound[wire.Round]; ok {
			race.SprintResults = convertResults(sprint.SprintResults, models.SessionSprint, race, batch)
		}
		race.HasSprint = sprintWeekends[wire.Round] || len(race.SprintResults) > 0

		if qual, ok := qualByRound[wire.Round]; ok {
			race.Qualifying = convertQualifying(qual.QualifyingResults, race, batch)
		}
		batch.Races = append(batch.Races, race)
	}

	sort.SliceStable(batch.Races, func(i, j int) bool { return batch.Races[i].Round < batch.Races[j].Round })

	for _, verr := range batch.Invalid {
		erg.log.Warn("Record skipped", slog.Int("season", verr.Season), slog.Int("round", verr.Round), slog.String("error", verr.Error()))
	}
	erg.log.Info("Season fetched",
		slog.Int("season", season),
		slog.Int("round", round),
		slog.Int("races", len(batch.Races)),
		slog.Int("expected", batch.ExpectedRounds),
		slog.Int("invalid", len(batch.Invalid)))

	return batch, nil
}

func (b *Batch) invalid(round int, record, field, reason string) {
	b.Invalid = append(b.Invalid, &temperrors.ValidationError{
		Season: b.Season,
		Round:  round,
		Record: record,
		Field:  field,
		Reason: reason,
	})
}

func convertRace(wire Race, batch *Batch) (models.Race, bool) {
	round, err := strconv.Atoi(wire.Round)
	if err != nil || round <= 0 {
		batch.invalid(0, "race", "round", fmt.Sprintf("is missing or malformed (%q)", wire.Round))
		return models.Race{}, false
	}
	season, err := strconv.Atoi(wire.Season)
	if err != nil {
		batch.invalid(round, "race", "season", fmt.Sprintf("is missing or malformed (%q)", wire.Season))
		return models.Race{}, false
	}
	if wire.RaceName == "" {
		batch.invalid(round, "race", "raceName", "is missing")
		return models.Race{}, false
	}

	return models.Race{
		Season: season,
		Round:  round,
		Name:   wire.RaceName,
		URL:    wire.Url,
		Date:   parseDate(wire.Date, wire.Time),
		Circuit: models.Circuit{
			ID:   wire.Circuit.CircuitId,
			Name: wire.Circuit.CircuitName,
			Location: models.Location{
				Locality: wire.Circuit.Location.Locality,
				Country:  wire.Circuit.Location.Country,
			},
		},
	}, true
}

func convertResults(wire []Result, session models.Session, race models.Race, batch *Batch) []models.Result {
	record := string(session) + " result"
	seen := map[int]bool{}
	out := make([]models.Result, 0, len(wire))

	for i, w := range wire {
		position, err := strconv.Atoi(w.Position)
		if err != nil || position <= 0 {
			batch.invalid(race.Round, record, "position", fmt.Sprintf("is missing or malformed at index %d", i))
			continue
		}
		points, err := strconv.ParseFloat(w.Points, 64)
		if err != nil {
			batch.invalid(race.Round, record, "points", fmt.Sprintf("is missing or malformed at position %d", position))
			continue
		}
		if w.Driver.DriverId == "" {
			batch.invalid(race.Round, record, "driverId", fmt.Sprintf("is missing at position %d", position))
			continue
		}
		if w.Constructor.ConstructorId == "" {
			batch.invalid(race.Round, record, "constructorId", fmt.Sprintf("is missing at position %d", position))
			continue
		}
		if seen[position] {
			batch.invalid(race.Round, record, "position", fmt.Sprintf("%d is duplicated (%s)", position, w.Driver.DriverId))
			continue
		}
		seen[position] = true

		out = append(out, models.Result{
			Session:      session,
			Number:       atoi(w.Number),
			Position:     position,
			PositionText: w.PositionText,
			Points:       points,
			Driver:       convertDriver(w.Driver),
			Constructor:  convertConstructor(w.Constructor),
			Grid:         atoi(w.Grid),
			Laps:         atoi(w.Laps),
			Status:       w.Status,
			TimeMillis:   atoi64(w.Time.Millis),
			Time:         w.Time.Time,
			FastestLap: models.FastestLap{
				Rank:   atoi(w.FastestLap.Rank),
				Lap:    atoi(w.FastestLap.Lap),
				Time:   w.FastestLap.Time.Time,
				Millis: lapMillis(w.FastestLap.Time.Time),
			},
		})
	}

	if len(out) == 0 {
		return nil
	}
	return out
}

func convertQualifying(wire []QualifyingResult, race models.Race, batch *Batch) []models.QualifyingResult {
	seen := map[int]bool{}
	out := make([]models.QualifyingResult, 0, len(wire))

	for i, w := range wire {
		position, err := strconv.Atoi(w.Position)
		if err != nil || position <= 0 {
			batch.invalid(race.Round, "qualifying result", "position", fmt.Sprintf("is missing or malformed at index %d", i))
			continue
		}
		if w.Driver.DriverId == "" {
			batch.invalid(race.Round, "qualifying result", "driverId", fmt.Sprintf("is missing at position %d", position))
			continue
		}
		if seen[position] {
			batch.invalid(race.Round, "qualifying result", "position", fmt.Sprintf("%d is duplicated (%s)", position, w.Driver.DriverId))
			continue
		}
		seen[position] = true

		out = append(out, models.QualifyingResult{
			Position:    position,
			Driver:      convertDriver(w.Driver),
			Constructor: convertConstructor(w.Constructor),
			Q1:          w.Q1,
			Q2:          w.Q2,
			Q3:          w.Q3,
		})
	}

	if len(out) == 0 {
		return nil
	}
	return out
}

func convertDriver(d Driver) models.Driver {
	return models.Driver{
		ID:          d.DriverId,
		Code:        d.Code,
		Number:      atoi(d.PermanentNumber),
		GivenName:   d.GivenName,
		FamilyName:  d.FamilyName,
		Nationality: d.Nationality,
	}
}

func convertConstructor(c Constructor) models.Constructor {
	return models.Constructor{
		ID:          c.ConstructorId,
		Name:        c.Name,
		Nationality: c.Nationality,
	}
}

func parseDate(date, clock string) time.Time {
	if date == "" {
		return time.Time{}
	}
	if clock != "" {
		if t, err := time.Parse("2006-01-02 15:04:05Z", date+" "+clock); err == nil {
			return t.UTC()
		}
	}
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

// lapMillis converts "1:32.608" or "58.123" into milliseconds.
func lapMillis(s string) int64 {
	if s == "" {
		return 0
	}
	var minutes int64
	if m, rest, ok := strings.Cut(s, ":"); ok {
		v, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			return 0
		}
		minutes = v
		s = rest
	}
	secs, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return minutes*60_000 + int64(secs*1000+0.5)
}

func atoi(s string) int {
	v, _ := strconv.Atoi(s)
	return v
}

func atoi64(s string) int64 {
	v, _ := strconv.ParseInt(s, 10, 64)
	return v
}
