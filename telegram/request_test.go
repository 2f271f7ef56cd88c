package telegram

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseRequest(t *testing.T) {
	date := time.Date(2023, 7, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		text   string
		season int
		raceID string
	}{
		{"/driverstandings", 2023, "last"},
		{"/driverstandings 2021", 2021, "last"},
		{"/race 5", 2023, "5"},
		{"/race 2021 5", 2021, "5"},
		{"/race 5 2021", 2021, "5"},
		{"/qualifying@racebot 2022 last", 2022, "last"},
		{"/race abc -3", 2023, "last"},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			req := parseRequest(tt.text, date)
			assert.Equal(t, tt.season, req.season)
			assert.Equal(t, tt.raceID, req.raceID)
			assert.Equal(t, date, req.date)
		})
	}
}

func TestGetDateFromMessage(t *testing.T) {
	assert.Equal(t, int64(1618750800), getDateFromMessage(1618750800).Unix())
}
