package ergast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"racebot-stats/temperrors"
)

const (
	DefaultURL      = "https://api.jolpi.ca/ergast/f1"
	DefaultTimeout  = 10 * time.Second
	DefaultPageSize = 100
	userAgent       = "racebot-stats/1.0"
)

type Options struct {
	BaseURL        string
	Timeout        time.Duration
	MaxAttempts    int
	BackoffInitial time.Duration
	BackoffMax     time.Duration
	// RateLimit is in requests per second; zero disables throttling.
	RateLimit  float64
	PageSize   int
	HTTPClient *http.Client
	Logger     *slog.Logger
}

type ErgastAPI struct {
	url            string
	client         *http.Client
	timeout        time.Duration
	maxAttempts    int
	backoffInitial time.Duration
	backoffMax     time.Duration
	pageSize       int
	limiter        *rate.Limiter
	log            *slog.Logger
}

func NewErgastAPI(opts Options) *ErgastAPI {
	erg := &ErgastAPI{
		url:            strings.TrimRight(opts.BaseURL, "/"),
		client:         opts.HTTPClient,
		timeout:        opts.Timeout,
		maxAttempts:    opts.MaxAttempts,
		backoffInitial: opts.BackoffInitial,
		backoffMax:     opts.BackoffMax,
		pageSize:       opts.PageSize,
		log:            opts.Logger,
	}
	if erg.url == "" {
		erg.url = DefaultURL
	}
	if erg.client == nil {
		erg.client = &http.Client{}
	}
	if erg.timeout <= 0 {
		erg.timeout = DefaultTimeout
	}
	if erg.maxAttempts < 1 {
		erg.maxAttempts = 3
	}
	if erg.backoffInitial <= 0 {
		erg.backoffInitial = DefaultBackoffInitial
	}
	if erg.backoffMax < erg.backoffInitial {
		erg.backoffMax = DefaultBackoffMax
	}
	if erg.pageSize <= 0 {
		erg.pageSize = DefaultPageSize
	}
	if erg.log == nil {
		erg.log = slog.Default()
	}
	erg.log = erg.log.With(slog.String("component", "ergast"))

	if opts.RateLimit > 0 {
		erg.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	} else {
		erg.limiter = rate.NewLimiter(rate.Inf, 0)
	}
	return erg
}

// getRequest performs one GET with retries. Transport errors, 429 and 5xx
// answers are retried with backoff; anything else fails at once.
func (erg *ErgastAPI) getRequest(ctx context.Context, path string, query url.Values) (Object, error) {
	var temp Object

	target := erg.url + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	retry := newRetryBackOff(erg.backoffInitial, erg.backoffMax)
	b := backoff.WithMaxRetries(backoff.WithContext(retry, ctx), uint64(erg.maxAttempts-1))

	var attempt, status int
	operation := func() error {
		if err := erg.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		attempt++

		obj, code, retryAfter, err := erg.do(ctx, target)
		status = code
		if err != nil {
			if !retryable(code) {
				return backoff.Permanent(err)
			}
			retry.retryAfter = retryAfter
			return err
		}
		temp = obj
		return nil
	}
	notify := func(err error, wait time.Duration) {
		erg.log.Warn("Request failed, retrying",
			slog.String("url", target),
			slog.Int("attempt", attempt),
			slog.Int("status", status),
			slog.Duration("wait", wait),
			slog.Any("error", err))
	}

	if err := backoff.RetryNotify(operation, b, notify); err != nil {
		return Object{}, &temperrors.NetworkError{URL: target, StatusCode: status, Attempts: attempt, Err: err}
	}
	erg.log.Debug("OK get request", slog.String("url", target), slog.Int("attempt", attempt))
	return temp, nil
}

func retryable(status int) bool {
	return status == 0 || status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}

func (erg *ErgastAPI) do(ctx context.Context, target string) (Object, int, time.Duration, error) {
	var temp Object

	ctx, cancel := context.WithTimeout(ctx, erg.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return temp, -1, 0, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := erg.client.Do(req)
	if err != nil {
		return temp, 0, 0, fmt.Errorf("error in getRequest: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return temp, resp.StatusCode, parseRetryAfter(resp.Header.Get("Retry-After")), fmt.Errorf("unexpected status %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return temp, 0, 0, fmt.Errorf("error reading responce: %w", err)
	}

	// A body that is not JSON at all is treated like a dropped connection.
	if err := json.Unmarshal(body, &temp); err != nil {
		return temp, 0, 0, fmt.Errorf("error decoding responce: %w", err)
	}
	return temp, resp.StatusCode, 0, nil
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		return time.Until(t)
	}
	return 0
}

// getPages walks limit/offset pages and hands every MRData to fn.
func (erg *ErgastAPI) getPages(ctx context.Context, path string, fn func(MRData)) error {
	offset := 0
	for {
		query := url.Values{}
		query.Set("limit", strconv.Itoa(erg.pageSize))
		query.Set("offset", strconv.Itoa(offset))

		resp, err := erg.getRequest(ctx, path, query)
		if err != nil {
			return err
		}
		fn(resp.MRData)

		total, err := strconv.Atoi(resp.MRData.Total)
		if err != nil {
			return nil
		}
		limit, err := strconv.Atoi(resp.MRData.Limit)
		if err != nil || limit <= 0 {
			limit = erg.pageSize
		}
		offset += limit
		if offset >= total {
			return nil
		}
	}
}

// getRaces fetches a paginated race table and merges rows of the same round
// that were split across pages.
func (erg *ErgastAPI) getRaces(ctx context.Context, path string) ([]Race, error) {
	var races []Race
	byRound := map[string]int{}

	err := erg.getPages(ctx, path, func(data MRData) {
		for _, race := range data.RaceTable.Races {
			i, ok := byRound[race.Round]
			if !ok {
				byRound[race.Round] = len(races)
				races = append(races, race)
				continue
			}
			races[i].Results = append(races[i].Results, race.Results...)
			races[i].SprintResults = append(races[i].SprintResults, race.SprintResults...)
			races[i].QualifyingResults = append(races[i].QualifyingResults, race.QualifyingResults...)
		}
	})
	return races, err
}

func scopePath(season, round int, endpoint string) string {
	if round > 0 {
		return fmt.Sprintf("/%d/%d/%s.json", season, round, endpoint)
	}
	return fmt.Sprintf("/%d/%s.json", season, endpoint)
}

func (erg *ErgastAPI) GetCalendar(ctx context.Context, season int) ([]Race, error) {
	races, err := erg.getRaces(ctx, fmt.Sprintf("/%d.json", season))
	if err != nil {
		return nil, fmt.Errorf("in calendar %d: %w", season, err)
	}
	return races, nil
}

func (erg *ErgastAPI) GetRaceResults(ctx context.Context, season, round int) ([]Race, error) {
	races, err := erg.getRaces(ctx, scopePath(season, round, "results"))
	if err != nil {
		return nil, fmt.Errorf("in raceResults %d: %w", season, err)
	}
	return races, nil
}

func (erg *ErgastAPI) GetQualifyingResults(ctx context.Context, season, round int) ([]Race, error) {
	races, err := erg.getRaces(ctx, scopePath(season, round, "qualifying"))
	if err != nil {
		return nil, fmt.Errorf("in qualifyingResults %d: %w", season, err)
	}
	return races, nil
}

func (erg *ErgastAPI) GetSprintResults(ctx context.Context, season, round int) ([]Race, error) {
	races, err := erg.getRaces(ctx, scopePath(season, round, "sprint"))
	if err != nil {
		return nil, fmt.Errorf("in sprintResults %d: %w", season, err)
	}
	return races, nil
}

func (erg *ErgastAPI) GetDriverStandings(ctx context.Context, season int) ([]DriverStandingsItem, error) {
	var items []DriverStandingsItem
	err := erg.getPages(ctx, fmt.Sprintf("/%d/driverStandings.json", season), func(data MRData) {
		if len(data.StandingsTable.StandingsLists) > 0 {
			items = append(items, data.StandingsTable.StandingsLists[0].DriverStandings...)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("in driverStanding %d: %w", season, err)
	}
	if len(items) == 0 {
		return nil, temperrors.ErrEmptyList
	}
	return items, nil
}

func (erg *ErgastAPI) GetConstructorStandings(ctx context.Context, season int) ([]ConstructorStandingsItem, error) {
	var items []ConstructorStandingsItem
	err := erg.getPages(ctx, fmt.Sprintf("/%d/constructorStandings.json", season), func(data MRData) {
		if len(data.StandingsTable.StandingsLists) > 0 {
			items = append(items, data.StandingsTable.StandingsLists[0].ConstructorStandings...)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("in constructorStanding %d: %w", season, err)
	}
	if len(items) == 0 {
		return nil, temperrors.ErrEmptyList
	}
	return items, nil
}

// IsEmpty reports whether err means the API answered with an empty table.
func IsEmpty(err error) bool {
	return errors.Is(err, temperrors.ErrEmptyList)
}
