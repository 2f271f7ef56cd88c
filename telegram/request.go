package telegram

import (
	"strconv"
	"strings"
	"time"
)

// firstSeason is the first championship year; smaller numbers are rounds.
const firstSeason = 1950

type request struct {
	season int
	raceID string
	date   time.Time
}

// parseRequest reads optional arguments after the command: a season year,
// a round number or "last". Missing values default to the season of the
// message date and the last race.
func parseRequest(text string, userDate time.Time) request {
	req := request{season: userDate.Year(), raceID: "last", date: userDate}

	fields := strings.Fields(text)
	if len(fields) < 2 {
		return req
	}
	for _, arg := range fields[1:] {
		if strings.EqualFold(arg, "last") {
			req.raceID = "last"
			continue
		}
		n, err := strconv.Atoi(arg)
		if err != nil || n <= 0 {
			continue
		}
		if n >= firstSeason {
			req.season = n
		} else {
			req.raceID = strconv.Itoa(n)
		}
	}
	return req
}
