package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"racebot-stats/aggregator"
	"racebot-stats/models"
	"racebot-stats/temperrors"
)

var months = map[time.Month]string{
	time.January:   "января",
	time.February:  "февраля",
	time.March:     "марта",
	time.April:     "апреля",
	time.May:       "мая",
	time.June:      "июня",
	time.July:      "июля",
	time.August:    "августа",
	time.September: "сентября",
	time.October:   "октября",
	time.November:  "ноября",
	time.December:  "декабря",
}

var moscow = time.FixedZone("MSK", 3*60*60)

const (
	noSeasonMessage = "Данных за сезон %d пока нет. Попробуй позже :)"
	noRaceMessage   = "Информации о результатах данного этапа нет. Возможно она появится в будущем :)"
)

func (s *ServiceF1) GetDriverStandingsMessage(ctx context.Context, season int) (string, error) {
	report, err := s.Report(ctx, season)
	if err != nil {
		return notFoundMessage(season, err)
	}
	return fmt.Sprintf("Личный зачёт F1, сезон %d:%s\n%s", season, partialNote(report), driversToString(report.Drivers)), nil
}

func (s *ServiceF1) GetConstructorStandingsMessage(ctx context.Context, season int) (string, error) {
	report, err := s.Report(ctx, season)
	if err != nil {
		return notFoundMessage(season, err)
	}
	return fmt.Sprintf("Кубок конструкторов F1, сезон %d:%s\n%s", season, partialNote(report), constructorsToString(report.Teams)), nil
}

// GetRaceResultsMessage renders a race by round number or "last".
func (s *ServiceF1) GetRaceResultsMessage(ctx context.Context, season int, raceID string) (string, error) {
	race, err := s.findRace(ctx, season, raceID)
	if err != nil {
		return notFoundMessage(season, err)
	}
	if raceID == "last" {
		return fmt.Sprintf("Последняя гонка F1 %s (%s):\n%s", race.Name, ruDate(race.Date), resultsToString(race.Results)), nil
	}
	return fmt.Sprintf("Результаты гонки %s (%s):\n%s", race.Name, ruDate(race.Date), resultsToString(race.Results)), nil
}

func (s *ServiceF1) GetQualifyingResultsMessage(ctx context.Context, season int, raceID string) (string, error) {
	race, err := s.findRace(ctx, season, raceID)
	if err != nil {
		return notFoundMessage(season, err)
	}
	if len(race.Qualifying) == 0 {
		return noRaceMessage, nil
	}
	return fmt.Sprintf("Результаты квалификации %s:\n%s", race.Name, qualifyingResultsToString(race.Qualifying)), nil
}

func (s *ServiceF1) GetSprintResultsMessage(ctx context.Context, season int, raceID string) (string, error) {
	race, err := s.findRace(ctx, season, raceID)
	if err != nil {
		return notFoundMessage(season, err)
	}
	if len(race.SprintResults) == 0 {
		return "Информации о результатах данной спринт-гонки нет. Возможно она появится в будущем :)", nil
	}
	return fmt.Sprintf("Результаты спринт-гонки %s:\n%s", race.Name, resultsToString(race.SprintResults)), nil
}

func (s *ServiceF1) GetTrendsMessage(ctx context.Context, season int) (string, error) {
	report, err := s.Report(ctx, season)
	if err != nil {
		return notFoundMessage(season, err)
	}
	return fmt.Sprintf("Квалификация и обгоны, сезон %d:%s\n%s", season, partialNote(report), trendsToString(report.Trends)), nil
}

func (s *ServiceF1) GetCountDaysAfterRaceMessage(ctx context.Context, userDate time.Time) (string, error) {
	race, err := s.findRace(ctx, userDate.Year(), "last")
	if err != nil {
		return notFoundMessage(userDate.Year(), err)
	}
	difference := userDate.Sub(race.Date)
	return fmt.Sprintf("Дней без F1 - %d :(\n", int64(difference.Hours()/24)), nil
}

func (s *ServiceF1) findRace(ctx context.Context, season int, raceID string) (models.Race, error) {
	snap, err := s.store.Load(ctx, season)
	if err != nil {
		return models.Race{}, err
	}
	if raceID == "last" {
		race, ok := snap.LastRace()
		if !ok {
			return models.Race{}, temperrors.ErrUnknownRound
		}
		return race, nil
	}

	round, err := strconv.Atoi(raceID)
	if err != nil {
		return models.Race{}, fmt.Errorf("%w: %q", temperrors.ErrUnknownRound, raceID)
	}
	race, ok := snap.Race(round)
	if !ok || len(race.Results) == 0 {
		return models.Race{}, fmt.Errorf("%w: %d", temperrors.ErrUnknownRound, round)
	}
	return race, nil
}

// notFoundMessage turns the "no data" errors into a reply for the user and
// passes everything else up.
func notFoundMessage(season int, err error) (string, error) {
	switch {
	case errors.Is(err, temperrors.ErrNotFound):
		return fmt.Sprintf(noSeasonMessage, season), nil
	case errors.Is(err, temperrors.ErrUnknownRound):
		return noRaceMessage, nil
	default:
		return "", err
	}
}

func partialNote(report *aggregator.Report) string {
	if !report.Partial {
		return ""
	}
	return fmt.Sprintf(" (после %d из %d этапов)", report.CompletedRounds, report.ExpectedRounds)
}

// ----------------------------------
//
//	вспомогательные функции
//
// ----------------------------------

func driversToString(drivers []aggregator.DriverStanding) string {
	message := new(strings.Builder)

	w := tabwriter.NewWriter(message, 2, 5, 1, ' ', tabwriter.AlignRight)
	for _, d := range drivers {
		position := strconv.Itoa(d.Position)
		if d.Tied {
			position += "="
		}
		fmt.Fprintf(w, "%s |\t%s |\t %s\n", position, d.Driver.Label(), formatPoints(d.Points))
	}

	w.Flush()
	return message.String()
}

func constructorsToString(teams []aggregator.TeamStanding) string {
	message := new(strings.Builder)

	w := tabwriter.NewWriter(message, 2, 5, 1, ' ', tabwriter.AlignRight)
	for _, t := range teams {
		fmt.Fprintf(w, "%d |\t%s |\t %s\n", t.Position, t.Constructor.Label(), formatPoints(t.Points))
	}

	w.Flush()
	return message.String()
}

func resultsToString(results []models.Result) string {
	message := new(strings.Builder)

	w := tabwriter.NewWriter(message, 2, 5, 1, ' ', tabwriter.AlignRight)
	for _, r := range results {
		switch {
		case !r.Finished():
			fmt.Fprintf(w, "%s |\t%s |\t - %s\n", r.PositionText, r.Driver.Label(), r.Status)
		case r.Points != 0:
			fmt.Fprintf(w, "%s |\t%s |\t %s - %s\n", r.PositionText, r.Driver.Label(), finishTime(r), formatPoints(r.Points))
		default:
			fmt.Fprintf(w, "%s |\t%s |\t %s\n", r.PositionText, r.Driver.Label(), finishTime(r))
		}
	}

	w.Flush()
	return message.String()
}

func finishTime(r models.Result) string {
	if r.Time != "" {
		return r.Time
	}
	return r.Status
}

func qualifyingResultsToString(qualifying []models.QualifyingResult) string {
	message := new(strings.Builder)

	w := tabwriter.NewWriter(message, 2, 5, 1, ' ', tabwriter.AlignRight)
	for _, q := range qualifying {
		fmt.Fprintf(w, "%d |\t%s |\t %s\n", q.Position, q.Driver.Label(), q.BestTime())
		switch {
		case q.Q3 != "":
			fmt.Fprintf(w, " Q1: %s\n Q2: %s\n Q3: %s\n\n", q.Q1, q.Q2, q.Q3)
		case q.Q2 != "":
			fmt.Fprintf(w, " Q1: %s\n Q2: %s\n\n", q.Q1, q.Q2)
		default:
			fmt.Fprintf(w, " Q1: %s\n\n", q.Q1)
		}
	}

	w.Flush()
	return message.String()
}

func trendsToString(t aggregator.Trends) string {
	if t.Samples == 0 {
		return "Недостаточно данных.\n"
	}

	message := new(strings.Builder)
	fmt.Fprintf(message, "Корреляция квалификация-финиш: %.3f\n", t.QualiFinishCorrelation)
	fmt.Fprintf(message, "Победы с поула: %.1f%%\n", t.PoleToWinRate)
	fmt.Fprintf(message, "Подиумы из топ-3 квалификации: %.1f%% (%d/%d)\n", t.TopThreePodiumRate, t.PodiumsFromTopThree, t.Podiums)
	fmt.Fprintf(message, "Пилоты, которые отыгрывают места: %.1f%%\n", t.ImprovementRate)
	fmt.Fprintf(message, "Средний отыгрыш: %.1f\n", t.AvgPlacesGained)
	fmt.Fprintf(message, "Отыгрыш 3+ мест: %.1f%%\n", t.SignificantGainRate)

	if len(t.Circuits) > 0 {
		fmt.Fprintf(message, "\nБольше всего обгонов: %s (%.1f%%)\n", t.Circuits[0].Circuit.Name, t.Circuits[0].OvertakingRate)
	}
	return message.String()
}

func formatPoints(p float64) string {
	return strconv.FormatFloat(p, 'f', -1, 64)
}

func ruDate(date time.Time) string {
	if date.IsZero() {
		return "дата неизвестна"
	}
	local := date.In(moscow)
	return fmt.Sprintf("%d %s %d", local.Day(), months[local.Month()], local.Year())
}
