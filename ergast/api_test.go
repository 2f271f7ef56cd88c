package ergast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"racebot-stats/models"
	"racebot-stats/temperrors"
)

func newTestAPI(t *testing.T, handler http.Handler) *ErgastAPI {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewErgastAPI(Options{
		BaseURL:        server.URL,
		Timeout:        time.Second,
		MaxAttempts:    3,
		BackoffInitial: time.Millisecond,
		BackoffMax:     5 * time.Millisecond,
		PageSize:       100,
		Logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func writeObject(t *testing.T, w http.ResponseWriter, obj Object) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(obj))
}

func raceTable(total int, races ...Race) Object {
	return Object{MRData: MRData{
		Limit:     "100",
		Offset:    "0",
		Total:     strconv.Itoa(total),
		RaceTable: RaceTable{Races: races},
	}}
}

func wireResult(pos int, driverID, code, team string, points string, grid int) Result {
	return Result{
		Position:     strconv.Itoa(pos),
		PositionText: strconv.Itoa(pos),
		Points:       points,
		Driver:       Driver{DriverId: driverID, Code: code},
		Constructor:  Constructor{ConstructorId: team, Name: team},
		Grid:         strconv.Itoa(grid),
		Laps:         "56",
		Status:       "Finished",
		FastestLap:   FastestLap{Rank: "1", Lap: "40", Time: Time{Time: "1:32.608"}},
	}
}

func wireRace(round int, name string) Race {
	return Race{
		Season:   "2021",
		Round:    strconv.Itoa(round),
		RaceName: name,
		Date:     fmt.Sprintf("2021-03-%02d", 20+round),
		Time:     "15:00:00Z",
		Circuit:  Circuit{CircuitId: "c" + strconv.Itoa(round), CircuitName: name + " Circuit"},
	}
}

func seasonHandler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/2021.json", func(w http.ResponseWriter, r *http.Request) {
		r1, r2, r3 := wireRace(1, "Bahrain"), wireRace(2, "Imola"), wireRace(3, "Portimao")
		r2.Sprint = Session{Date: "2021-03-21", Time: "14:00:00Z"}
		writeObject(t, w, raceTable(3, r1, r2, r3))
	})
	mux.HandleFunc("/2021/results.json", func(w http.ResponseWriter, r *http.Request) {
		r1, r2 := wireRace(1, "Bahrain"), wireRace(2, "Imola")
		r1.Results = []Result{
			wireResult(1, "hamilton", "HAM", "mercedes", "25", 2),
			wireResult(2, "max_verstappen", "VER", "red_bull", "18", 1),
		}
		r2.Results = []Result{
			wireResult(1, "max_verstappen", "VER", "red_bull", "25", 3),
			wireResult(2, "hamilton", "HAM", "mercedes", "18", 1),
		}
		writeObject(t, w, raceTable(4, r2, r1))
	})
	mux.HandleFunc("/2021/sprint.json", func(w http.ResponseWriter, r *http.Request) {
		r2 := wireRace(2, "Imola")
		r2.SprintResults = []Result{wireResult(1, "max_verstappen", "VER", "red_bull", "3", 2)}
		writeObject(t, w, raceTable(1, r2))
	})
	mux.HandleFunc("/2021/qualifying.json", func(w http.ResponseWriter, r *http.Request) {
		r1 := wireRace(1, "Bahrain")
		r1.QualifyingResults = []QualifyingResult{
			{Position: "1", Driver: Driver{DriverId: "max_verstappen"}, Q1: "1:30.499", Q2: "1:30.318", Q3: "1:28.997"},
			{Position: "2", Driver: Driver{DriverId: "hamilton"}, Q1: "1:30.617", Q2: "1:30.085", Q3: "1:29.385"},
		}
		writeObject(t, w, raceTable(2, r1))
	})
	return mux
}

func TestGetSeason(t *testing.T) {
	erg := newTestAPI(t, seasonHandler(t))

	batch, err := erg.GetSeason(context.Background(), 2021, 0)
	require.NoError(t, err)

	assert.Equal(t, 3, batch.ExpectedRounds)
	assert.Empty(t, batch.Invalid)
	require.Len(t, batch.Races, 2)

	first := batch.Races[0]
	assert.Equal(t, 1, first.Round)
	assert.Equal(t, "Bahrain", first.Name)
	assert.Equal(t, time.Date(2021, 3, 21, 15, 0, 0, 0, time.UTC), first.Date)
	assert.False(t, first.HasSprint)
	require.Len(t, first.Results, 2)
	assert.Equal(t, models.SessionRace, first.Results[0].Session)
	assert.Equal(t, "HAM", first.Results[0].Driver.Code)
	assert.Equal(t, 25.0, first.Results[0].Points)
	assert.Equal(t, int64(92608), first.Results[0].FastestLap.Millis)
	assert.Equal(t, 1, first.QualifyingPosition("max_verstappen"))

	second := batch.Races[1]
	assert.True(t, second.HasSprint)
	require.Len(t, second.SprintResults, 1)
	assert.Equal(t, models.SessionSprint, second.SprintResults[0].Session)
	assert.Empty(t, second.Qualifying)
}

func TestGetRaceResultsPagination(t *testing.T) {
	var calls atomic.Int32
	erg := newTestAPI(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/2021/results.json", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("limit"))

		race := wireRace(1, "Bahrain")
		obj := Object{MRData: MRData{Limit: "2", Total: "3"}}
		switch r.URL.Query().Get("offset") {
		case "0":
			race.Results = []Result{
				wireResult(1, "hamilton", "HAM", "mercedes", "25", 2),
				wireResult(2, "max_verstappen", "VER", "red_bull", "18", 1),
			}
		case "2":
			race.Results = []Result{wireResult(3, "bottas", "BOT", "mercedes", "16", 3)}
		default:
			t.Errorf("unexpected offset %s", r.URL.Query().Get("offset"))
		}
		obj.MRData.RaceTable.Races = []Race{race}
		writeObject(t, w, obj)
	}))
	erg.pageSize = 2

	races, err := erg.GetRaceResults(context.Background(), 2021, 0)
	require.NoError(t, err)

	assert.Equal(t, int32(2), calls.Load())
	require.Len(t, races, 1)
	assert.Len(t, races[0].Results, 3)
}

func TestGetSeasonSkipsInvalidRecords(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/2021.json", func(w http.ResponseWriter, r *http.Request) {
		writeObject(t, w, raceTable(2, wireRace(1, "Bahrain"), wireRace(2, "Imola")))
	})
	mux.HandleFunc("/2021/results.json", func(w http.ResponseWriter, r *http.Request) {
		// unknown fields, a result without driverId, a duplicated position
		// and a race without a name
		fmt.Fprint(w, `{"MRData":{"xmlns":"","series":"f1","limit":"100","offset":"0","total":"5","brandNew":{"x":1},
"RaceTable":{"season":"2021","Races":[
 {"season":"2021","round":"1","raceName":"Bahrain","weather":"dry","date":"2021-03-28",
  "Circuit":{"circuitId":"bahrain","circuitName":"Bahrain International Circuit"},
  "Results":[
   {"position":"1","positionText":"1","points":"25","Driver":{"driverId":"hamilton","code":"HAM"},"Constructor":{"constructorId":"mercedes"},"status":"Finished","tyre":"hard"},
   {"position":"2","positionText":"2","points":"18","Driver":{"code":"VER"},"Constructor":{"constructorId":"red_bull"},"status":"Finished"},
   {"position":"1","positionText":"1","points":"25","Driver":{"driverId":"bottas","code":"BOT"},"Constructor":{"constructorId":"mercedes"},"status":"Finished"}
  ]},
 {"season":"2021","round":"2","Results":[
   {"position":"1","points":"25","Driver":{"driverId":"max_verstappen"},"Constructor":{"constructorId":"red_bull"}}
 ]}
]}}}`)
	})
	mux.HandleFunc("/2021/sprint.json", func(w http.ResponseWriter, r *http.Request) {
		writeObject(t, w, raceTable(0))
	})
	mux.HandleFunc("/2021/qualifying.json", func(w http.ResponseWriter, r *http.Request) {
		writeObject(t, w, raceTable(0))
	})
	erg := newTestAPI(t, mux)

	batch, err := erg.GetSeason(context.Background(), 2021, 0)
	require.NoError(t, err)

	require.Len(t, batch.Races, 1)
	require.Len(t, batch.Races[0].Results, 1)
	assert.Equal(t, "hamilton", batch.Races[0].Results[0].Driver.ID)

	require.Len(t, batch.Invalid, 3)
	fields := []string{batch.Invalid[0].Field, batch.Invalid[1].Field, batch.Invalid[2].Field}
	assert.Equal(t, []string{"driverId", "position", "raceName"}, fields)
	for _, verr := range batch.Invalid {
		assert.True(t, temperrors.IsValidation(verr))
	}
}

func TestGetRequestRetriesThenFails(t *testing.T) {
	var calls atomic.Int32
	erg := newTestAPI(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	_, err := erg.GetSeason(context.Background(), 2023, 0)
	require.Error(t, err)

	var netErr *temperrors.NetworkError
	require.True(t, errors.As(err, &netErr))
	assert.Equal(t, 3, netErr.Attempts)
	assert.Equal(t, http.StatusServiceUnavailable, netErr.StatusCode)
	assert.Equal(t, int32(3), calls.Load())
}

func TestGetRequestRecoversAfterRateLimit(t *testing.T) {
	var calls atomic.Int32
	erg := newTestAPI(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		writeObject(t, w, raceTable(1, wireRace(1, "Bahrain")))
	}))

	races, err := erg.GetCalendar(context.Background(), 2021)
	require.NoError(t, err)
	assert.Len(t, races, 1)
	assert.Equal(t, int32(2), calls.Load())
}

func TestGetRequestClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	erg := newTestAPI(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))

	_, err := erg.GetCalendar(context.Background(), 1900)
	assert.True(t, temperrors.IsNetwork(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestGetRequestMalformedBodyIsRetried(t *testing.T) {
	var calls atomic.Int32
	erg := newTestAPI(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			fmt.Fprint(w, `{"MRData": {`)
			return
		}
		writeObject(t, w, raceTable(1, wireRace(1, "Bahrain")))
	}))

	races, err := erg.GetCalendar(context.Background(), 2021)
	require.NoError(t, err)
	assert.Len(t, races, 1)
	assert.Equal(t, int32(3), calls.Load())
}

func TestGetRequestContextCanceled(t *testing.T) {
	erg := newTestAPI(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	erg.backoffInitial = time.Hour
	erg.backoffMax = time.Hour

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := erg.GetCalendar(ctx, 2021)
	assert.True(t, temperrors.IsNetwork(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGetDriverStandings(t *testing.T) {
	erg := newTestAPI(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/2021/driverStandings.json", r.URL.Path)
		writeObject(t, w, Object{MRData: MRData{Total: "1", Limit: "100", StandingsTable: StandingsTable{
			StandingsLists: []StandingsListItem{{DriverStandings: []DriverStandingsItem{
				{Position: "1", Points: "395.5", Wins: "10", Driver: Driver{DriverId: "max_verstappen", Code: "VER"}},
			}}},
		}}})
	}))

	items, err := erg.GetDriverStandings(context.Background(), 2021)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "395.5", items[0].Points)
}

func TestGetConstructorStandingsEmpty(t *testing.T) {
	erg := newTestAPI(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeObject(t, w, Object{MRData: MRData{Total: "0"}})
	}))

	_, err := erg.GetConstructorStandings(context.Background(), 2031)
	assert.True(t, IsEmpty(err))
}

func TestLapMillis(t *testing.T) {
	assert.Equal(t, int64(92608), lapMillis("1:32.608"))
	assert.Equal(t, int64(58123), lapMillis("58.123"))
	assert.Equal(t, int64(0), lapMillis(""))
	assert.Equal(t, int64(0), lapMillis("n/a"))
}

func TestRetryBackOffGrowsAndCaps(t *testing.T) {
	b := newRetryBackOff(100*time.Millisecond, 300*time.Millisecond)

	first := b.NextBackOff()
	assert.InDelta(t, float64(100*time.Millisecond), float64(first), float64(20*time.Millisecond))
	b.NextBackOff()
	third := b.NextBackOff()
	assert.InDelta(t, float64(300*time.Millisecond), float64(third), float64(60*time.Millisecond))

	b.retryAfter = time.Hour
	assert.Equal(t, 300*time.Millisecond, b.NextBackOff())

	b.Reset()
	assert.Zero(t, b.retryAfter)
	assert.InDelta(t, float64(100*time.Millisecond), float64(b.NextBackOff()), float64(20*time.Millisecond))
}

func TestGetRequestTimesOutSlowAnswers(t *testing.T) {
	var calls atomic.Int32
	erg := newTestAPI(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	erg.timeout = 20 * time.Millisecond

	start := time.Now()
	_, err := erg.GetCalendar(context.Background(), 2021)
	require.Error(t, err)

	var netErr *temperrors.NetworkError
	require.True(t, errors.As(err, &netErr))
	assert.Equal(t, 3, netErr.Attempts)
	assert.Zero(t, netErr.StatusCode)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, int32(3), calls.Load())
	assert.Less(t, time.Since(start), time.Second)
}

func TestGetRequestCapsRetryAfter(t *testing.T) {
	var calls atomic.Int32
	erg := newTestAPI(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "3600")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		writeObject(t, w, raceTable(1, wireRace(1, "Bahrain")))
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	start := time.Now()
	races, err := erg.GetCalendar(ctx, 2021)
	require.NoError(t, err)
	assert.Len(t, races, 1)
	assert.Equal(t, int32(2), calls.Load())
	assert.Less(t, time.Since(start), time.Second)
}
