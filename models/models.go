package models

import (
	"strings"
	"time"
)

// Session identifies which part of a race weekend a result belongs to.
type Session string

const (
	SessionRace   Session = "race"
	SessionSprint Session = "sprint"
)

type Driver struct {
	ID          string `json:"driver_id"`
	Code        string `json:"code,omitempty"`
	Number      int    `json:"number,omitempty"`
	GivenName   string `json:"given_name,omitempty"`
	FamilyName  string `json:"family_name,omitempty"`
	Nationality string `json:"nationality,omitempty"`
}

// Label is the short name used in tables: the three-letter code when the API
// provides one, otherwise the driver id.
func (d Driver) Label() string {
	if d.Code != "" {
		return d.Code
	}
	return strings.ToUpper(d.ID)
}

func (d Driver) FullName() string {
	return strings.TrimSpace(d.GivenName + " " + d.FamilyName)
}

// Constructor is the team a driver scores for.
type Constructor struct {
	ID          string `json:"constructor_id"`
	Name        string `json:"name,omitempty"`
	Nationality string `json:"nationality,omitempty"`
}

func (c Constructor) Label() string {
	if c.Name != "" {
		return c.Name
	}
	return c.ID
}

type Location struct {
	Locality string `json:"locality,omitempty"`
	Country  string `json:"country,omitempty"`
}

type Circuit struct {
	ID       string   `json:"circuit_id"`
	Name     string   `json:"name,omitempty"`
	Location Location `json:"location"`
}

type FastestLap struct {
	Rank   int    `json:"rank,omitempty"`
	Lap    int    `json:"lap,omitempty"`
	Time   string `json:"time,omitempty"`
	Millis int64  `json:"millis,omitempty"`
}

type Result struct {
	Session      Session     `json:"session"`
	Number       int         `json:"number,omitempty"`
	Position     int         `json:"position"`
	PositionText string      `json:"position_text,omitempty"`
	Points       float64     `json:"points"`
	Driver       Driver      `json:"driver"`
	Constructor  Constructor `json:"constructor"`
	Grid         int         `json:"grid,omitempty"`
	Laps         int         `json:"laps,omitempty"`
	Status       string      `json:"status,omitempty"`
	TimeMillis   int64       `json:"time_millis,omitempty"`
	Time         string      `json:"time,omitempty"`
	FastestLap   FastestLap  `json:"fastest_lap"`
}

// Classified reports whether the position text is a finishing position
// rather than a status letter (R, D, W, N, E, F).
func (r Result) Classified() bool {
	if r.PositionText == "" {
		return r.Position > 0
	}
	for _, c := range r.PositionText {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// Finished reports whether the driver took the chequered flag, either on the
// lead lap or lapped ("+1 Lap").
func (r Result) Finished() bool {
	return r.Status == "Finished" || strings.HasPrefix(r.Status, "+")
}

func (r Result) Win() bool    { return r.Position == 1 }
func (r Result) Podium() bool { return r.Position >= 1 && r.Position <= 3 }

// PositionsGained compares the starting grid with the finishing position.
// A pit lane start (grid 0) has no meaningful delta.
func (r Result) PositionsGained() (int, bool) {
	if r.Grid <= 0 || !r.Classified() {
		return 0, false
	}
	return r.Grid - r.Position, true
}

type QualifyingResult struct {
	Position    int         `json:"position"`
	Driver      Driver      `json:"driver"`
	Constructor Constructor `json:"constructor"`
	Q1          string      `json:"q1,omitempty"`
	Q2          string      `json:"q2,omitempty"`
	Q3          string      `json:"q3,omitempty"`
}

// BestTime returns the lap from the latest session the driver reached.
func (q QualifyingResult) BestTime() string {
	switch {
	case q.Q3 != "":
		return q.Q3
	case q.Q2 != "":
		return q.Q2
	default:
		return q.Q1
	}
}

type Race struct {
	Season        int                `json:"season"`
	Round         int                `json:"round"`
	Name          string             `json:"name"`
	URL           string             `json:"url,omitempty"`
	Date          time.Time          `json:"date"`
	Circuit       Circuit            `json:"circuit"`
	HasSprint     bool               `json:"has_sprint,omitempty"`
	Results       []Result           `json:"results,omitempty"`
	SprintResults []Result           `json:"sprint_results,omitempty"`
	Qualifying    []QualifyingResult `json:"qualifying,omitempty"`
}

// Key identifies a race across seasons.
type Key struct {
	Season int
	Round  int
}

func (r Race) Key() Key { return Key{Season: r.Season, Round: r.Round} }

// AllResults yields race and sprint results together, which is what
// championship points are summed over.
func (r Race) AllResults() []Result {
	out := make([]Result, 0, len(r.Results)+len(r.SprintResults))
	out = append(out, r.Results...)
	return append(out, r.SprintResults...)
}

// QualifyingPosition returns the qualifying position of a driver, or 0 when
// the driver did not set a time.
func (r Race) QualifyingPosition(driverID string) int {
	for _, q := range r.Qualifying {
		if q.Driver.ID == driverID {
			return q.Position
		}
	}
	return 0
}

// Season is one year's calendar of races ordered by round.
type Season struct {
	Year  int    `json:"year"`
	Races []Race `json:"races"`
}
