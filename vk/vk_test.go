package vk

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"racebot-stats/models"
	"racebot-stats/temperrors"
)

type fakeMessages struct {
	calls []string
	races int
}

func (f *fakeMessages) record(format string, args ...any) (string, error) {
	msg := fmt.Sprintf(format, args...)
	f.calls = append(f.calls, msg)
	return msg, nil
}

func (f *fakeMessages) GetDriverStandingsMessage(ctx context.Context, season int) (string, error) {
	return f.record("drivers %d", season)
}

func (f *fakeMessages) GetConstructorStandingsMessage(ctx context.Context, season int) (string, error) {
	return f.record("teams %d", season)
}

func (f *fakeMessages) GetRaceResultsMessage(ctx context.Context, season int, raceID string) (string, error) {
	return f.record("race %d %s", season, raceID)
}

func (f *fakeMessages) GetQualifyingResultsMessage(ctx context.Context, season int, raceID string) (string, error) {
	return f.record("quali %d %s", season, raceID)
}

func (f *fakeMessages) GetSprintResultsMessage(ctx context.Context, season int, raceID string) (string, error) {
	return f.record("sprint %d %s", season, raceID)
}

func (f *fakeMessages) GetTrendsMessage(ctx context.Context, season int) (string, error) {
	return f.record("trends %d", season)
}

func (f *fakeMessages) GetCountDaysAfterRaceMessage(ctx context.Context, userDate time.Time) (string, error) {
	return f.record("days %s", userDate.Format("2006-01-02"))
}

func (f *fakeMessages) Snapshot(ctx context.Context, season int) (*models.Snapshot, error) {
	if f.races == 0 {
		return nil, fmt.Errorf("season %d: %w", season, temperrors.ErrNotFound)
	}
	snap := &models.Snapshot{Season: season}
	for i := 1; i <= f.races; i++ {
		snap.Races = append(snap.Races, models.Race{Season: season, Round: i})
	}
	return snap, nil
}

func TestGetCommand(t *testing.T) {
	tests := []struct {
		text string
		want command
	}{
		{"покажи личный зачёт", commandDrSt},
		{"личный зачет 2021", commandDrSt},
		{"кубок конструкторов", commandConsStFull},
		{"кк", commandConsSt},
		{"результат гонки", commandLstRc},
		{"результаты квалы", commandLstQual},
		{"результат спринта", commandLstSpr},
		{"статистика сезона", commandTrends},
		{"что умеешь?", commandHelp},
		{"начать", commandHello},
		{"сколько дней без f1", commandDaysAfterRace},
		{"дней без формулы", commandDaysAfterRace},
		{"дбф", commandDaysAfterRaceCut},
		{"этапы", commandGPs},
		{"raceRes_2021_5", commandRaceRes},
		{"qualRes_2021_12", commandQualRes},
		{"sprRes_2022_4", commandSprRes},
		{"привет", commandUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, getCommand(tt.text))
		})
	}
}

func TestGetEventCommand(t *testing.T) {
	assert.Equal(t, commandGpInfo, getEventCommand("gpPage_2021_7"))
	assert.Equal(t, commandGpList, getEventCommand("gpListPage_2021_2"))
	assert.Equal(t, commandNothing, getEventCommand("gpPage_7"))
}

func TestSeasonFromText(t *testing.T) {
	date := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, 2021, seasonFromText("личный зачёт 2021", date))
	assert.Equal(t, 1988, seasonFromText("1988 кк", date))
	assert.Equal(t, 2024, seasonFromText("личный зачёт", date))
	assert.Equal(t, 2024, seasonFromText("raceres_20215", date))
}

func TestSplitPayload(t *testing.T) {
	season, round, ok := splitPayload("qualRes_2021_12")
	require.True(t, ok)
	assert.Equal(t, 2021, season)
	assert.Equal(t, 12, round)

	_, _, ok = splitPayload("gpPage_7")
	assert.False(t, ok)
}

func TestExtractCommand(t *testing.T) {
	cmd, err := extractCommand(`{"command":"raceRes_2021_1"}`)
	require.NoError(t, err)
	require.NotNil(t, cmd)
	assert.Equal(t, "raceRes_2021_1", *cmd)

	cmd, err = extractCommand("")
	require.NoError(t, err)
	assert.Nil(t, cmd)

	_, err = extractCommand("{")
	assert.Error(t, err)
}

func TestMakeKeyboard(t *testing.T) {
	kb, err := makeKeyboard(2021, 2, 4, 1, 22, true)
	require.NoError(t, err)
	require.Len(t, kb.Buttons, 3)
	assert.Len(t, kb.Buttons[0], 4)
	assert.Equal(t, "1", kb.Buttons[0][0].Action.Label)
	assert.JSONEq(t, `{"command":"gpPage_2021_1"}`, kb.Buttons[0][0].Action.Payload)
	assert.Equal(t, []string{"Далее"}, labels(kb.Buttons[2]))

	kb, err = makeKeyboard(2021, 2, 4, 2, 22, true)
	require.NoError(t, err)
	assert.Equal(t, "9", kb.Buttons[0][0].Action.Label)
	assert.Equal(t, []string{"Назад", "Далее"}, labels(kb.Buttons[2]))

	kb, err = makeKeyboard(2021, 2, 4, 3, 22, true)
	require.NoError(t, err)
	require.Len(t, kb.Buttons, 3)
	assert.Equal(t, []string{"17", "18", "19", "20"}, labels(kb.Buttons[0]))
	assert.Equal(t, []string{"21", "22"}, labels(kb.Buttons[1]))
	assert.Equal(t, []string{"Назад", "В начало"}, labels(kb.Buttons[2]))
	assert.JSONEq(t, `{"command":"gpListPage_2021_1"}`, kb.Buttons[2][1].Action.Payload)

	_, err = makeKeyboard(2021, 2, 4, 4, 22, true)
	assert.Error(t, err)

	kb, err = makeKeyboard(1950, 2, 4, 1, 7, false)
	require.NoError(t, err)
	assert.Len(t, kb.Buttons, 2)

	data, err := json.Marshal(kb)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"type":"callback"`)
}

func TestRaceKeyboard(t *testing.T) {
	kb := raceKeyboard(2021, 10, true)
	assert.True(t, kb.Inline)
	assert.Equal(t, []string{"Квалификация", "Спринт"}, labels(kb.Buttons[0]))
	assert.JSONEq(t, `{"command":"sprRes_2021_10"}`, kb.Buttons[0][1].Action.Payload)

	kb = raceKeyboard(2021, 1, false)
	assert.Equal(t, []string{"Квалификация"}, labels(kb.Buttons[0]))
}

func TestAnswer(t *testing.T) {
	ctx := context.Background()
	date := time.Date(2023, 7, 10, 12, 0, 0, 0, time.UTC)
	fake := &fakeMessages{races: 22}
	vk := &VkAPI{messageService: fake}

	tests := []struct {
		cmd     command
		text    string
		payload string
		want    string
	}{
		{commandDrSt, "личный зачёт 2021", "", "drivers 2021"},
		{commandConsSt, "кк", "", "teams 2023"},
		{commandLstRc, "результат гонки", "", "race 2023 last"},
		{commandLstQual, "результат квалы", "", "quali 2023 last"},
		{commandTrends, "статистика 2019", "", "trends 2019"},
		{commandDaysAfterRace, "дней без f1", "", "days 2023-07-10"},
		{commandRaceRes, "", "raceRes_2021_5", "race 2021 5"},
		{commandSprRes, "", "sprRes_2022_4", "sprint 2022 4"},
		{commandHelp, "что умеешь", "", helpMessage},
	}
	for _, tt := range tests {
		t.Run(string(tt.cmd), func(t *testing.T) {
			msg, kb, err := vk.answer(ctx, tt.cmd, tt.text, tt.payload, date)
			require.NoError(t, err)
			assert.Equal(t, tt.want, msg)
			assert.Nil(t, kb)
		})
	}

	msg, kb, err := vk.answer(ctx, commandGPs, "этапы", "", date)
	require.NoError(t, err)
	assert.Equal(t, "Этапы F1 2023:", msg)
	require.NotNil(t, kb)
	assert.Contains(t, *kb, "gpPage_2023_1")

	_, _, err = vk.answer(ctx, commandQualRes, "", "qualRes", date)
	assert.Error(t, err)

	fake.races = 0
	_, _, err = vk.answer(ctx, commandGPs, "этапы", "", date)
	assert.ErrorIs(t, err, temperrors.ErrNotFound)
}

func labels(row []Button) []string {
	out := make([]string, len(row))
	for i, b := range row {
		out[i] = b.Action.Label
	}
	return out
}
