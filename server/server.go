package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"racebot-stats/aggregator"
	"racebot-stats/config"
	"racebot-stats/export"
	"racebot-stats/models"
	"racebot-stats/temperrors"
)

type reportService interface {
	Seasons(ctx context.Context) ([]int, error)
	Snapshot(ctx context.Context, season int) (*models.Snapshot, error)
}

type Config struct {
	Addr           string
	AllowedOrigins []string
	Log            *slog.Logger
}

// Server exposes stored seasons as contract tables over HTTP. Reports are
// computed on first request and cached until the season is invalidated.
type Server struct {
	router *chi.Mux
	server *http.Server
	svc    reportService
	log    *slog.Logger
	now    func() time.Time

	mu    sync.RWMutex
	cache map[int]cached
	// bumped by Invalidate; a load started under an older generation is
	// not cached
	gen map[int]uint64
}

type cached struct {
	snap   *models.Snapshot
	report *aggregator.Report
}

func New(svc reportService, cfg Config) *Server {
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	s := &Server{
		router: chi.NewRouter(),
		svc:    svc,
		log:    log.With(slog.String("component", "server")),
		now:    time.Now,
		cache:  make(map[int]cached),
		gen:    make(map[int]uint64),
	}

	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	s.setupRoutes()

	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/api/v1/seasons", func(r chi.Router) {
		r.Get("/", s.handleSeasons)
		r.Route("/{season}", func(r chi.Router) {
			r.Get("/report", s.handleReport)
			r.Get("/drivers", s.handleTable(export.TableDriverStandings))
			r.Get("/teams", s.handleTable(export.TableTeamStandings))
			r.Get("/races", s.handleTable(export.TableRaces))
			r.Get("/trends", s.handleTable(export.TableTrends))
			r.Get("/results.csv", s.handleResultsCSV)
		})
	})

	s.router.Get("/api/v1/trends", s.handleSeasonTrends)
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) Start() error {
	s.log.Info("Starting HTTP server", slog.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// Invalidate drops the cached report of a season.
func (s *Server) Invalidate(season int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen[season]++
	if _, ok := s.cache[season]; ok {
		delete(s.cache, season)
		s.log.Debug("Report cache invalidated", slog.Int("season", season))
	}
}

func (s *Server) cachedSeasons() []int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seasons := make([]int, 0, len(s.cache))
	for season := range s.cache {
		seasons = append(seasons, season)
	}
	return seasons
}

func (s *Server) load(ctx context.Context, season int) (cached, error) {
	s.mu.RLock()
	c, ok := s.cache[season]
	gen := s.gen[season]
	s.mu.RUnlock()
	if ok {
		return c, nil
	}

	snap, err := s.svc.Snapshot(ctx, season)
	if err != nil {
		return cached{}, err
	}
	c = cached{snap: snap, report: aggregator.Build(snap)}

	s.mu.Lock()
	if s.gen[season] == gen {
		s.cache[season] = c
	}
	s.mu.Unlock()
	return c, nil
}

func (s *Server) envelope(r *http.Request) (export.Envelope, bool, int, string) {
	season, err := strconv.Atoi(chi.URLParam(r, "season"))
	if err != nil || season <= 0 {
		return export.Envelope{}, false, http.StatusBadRequest, "season must be a year"
	}

	c, err := s.load(r.Context(), season)
	switch {
	case errors.Is(err, temperrors.ErrNotFound):
		return export.Envelope{}, false, http.StatusNotFound, "season " + strconv.Itoa(season) + " was never fetched"
	case err != nil:
		s.log.Error("Failed to load season", slog.Int("season", season), slog.Any("error", err))
		return export.Envelope{}, false, http.StatusInternalServerError, "failed to load season"
	}
	return export.Build(c.snap, c.report, s.now()), true, http.StatusOK, ""
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSeasons(w http.ResponseWriter, r *http.Request) {
	seasons, err := s.svc.Seasons(r.Context())
	if err != nil {
		s.log.Error("Failed to list seasons", slog.Any("error", err))
		s.writeError(w, http.StatusInternalServerError, "failed to list seasons")
		return
	}
	if seasons == nil {
		seasons = []int{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"schema_version": export.SchemaVersion, "seasons": seasons})
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	env, ok, status, msg := s.envelope(r)
	if !ok {
		s.writeError(w, status, msg)
		return
	}
	s.writeJSON(w, http.StatusOK, env)
}

type tableResponse struct {
	SchemaVersion int          `json:"schema_version"`
	Season        int          `json:"season"`
	Partial       bool         `json:"partial"`
	GeneratedAt   time.Time    `json:"generated_at"`
	Table         export.Table `json:"table"`
}

// handleTable serves one contract table as JSON, or as CSV with ?format=csv.
func (s *Server) handleTable(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		env, ok, status, msg := s.envelope(r)
		if !ok {
			s.writeError(w, status, msg)
			return
		}
		table := env.Tables[name]

		if r.URL.Query().Get("format") == "csv" {
			s.writeCSV(w, table, env.Partial)
			return
		}
		s.writeJSON(w, http.StatusOK, tableResponse{
			SchemaVersion: env.SchemaVersion,
			Season:        env.Season,
			Partial:       env.Partial,
			GeneratedAt:   env.GeneratedAt,
			Table:         table,
		})
	}
}

func (s *Server) handleResultsCSV(w http.ResponseWriter, r *http.Request) {
	env, ok, status, msg := s.envelope(r)
	if !ok {
		s.writeError(w, status, msg)
		return
	}
	s.writeCSV(w, env.Tables[export.TableResults], env.Partial)
}

// handleSeasonTrends compares stored seasons, all of them unless ?seasons=
// names some ("2021-2023" or "2019,2021").
func (s *Server) handleSeasonTrends(w http.ResponseWriter, r *http.Request) {
	var seasons []int
	var err error
	if q := r.URL.Query().Get("seasons"); q != "" {
		seasons, err = config.ParseSeasons(q)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "seasons must be years or year ranges")
			return
		}
	} else if seasons, err = s.svc.Seasons(r.Context()); err != nil {
		s.log.Error("Failed to list seasons", slog.Any("error", err))
		s.writeError(w, http.StatusInternalServerError, "failed to list seasons")
		return
	}

	reports := make([]*aggregator.Report, 0, len(seasons))
	for _, season := range seasons {
		c, err := s.load(r.Context(), season)
		switch {
		case errors.Is(err, temperrors.ErrNotFound):
			s.writeError(w, http.StatusNotFound, "season "+strconv.Itoa(season)+" was never fetched")
			return
		case err != nil:
			s.log.Error("Failed to load season", slog.Int("season", season), slog.Any("error", err))
			s.writeError(w, http.StatusInternalServerError, "failed to load season")
			return
		}
		reports = append(reports, c.report)
	}

	cmp := export.BuildComparison(aggregator.CompareSeasons(reports), s.now())
	if r.URL.Query().Get("format") == "csv" {
		s.writeCSV(w, cmp.Table, cmp.Partial)
		return
	}
	s.writeJSON(w, http.StatusOK, cmp)
}

func (s *Server) writeCSV(w http.ResponseWriter, table export.Table, partial bool) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("X-Schema-Version", strconv.Itoa(export.SchemaVersion))
	w.Header().Set("X-Partial", strconv.FormatBool(partial))
	w.WriteHeader(http.StatusOK)
	if err := export.WriteCSV(w, table); err != nil {
		s.log.Error("Failed to write CSV", slog.String("table", table.Name), slog.Any("error", err))
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error("Failed to encode JSON response", slog.Any("error", err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info("HTTP request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Int("bytes", ww.BytesWritten()),
			slog.Duration("duration", time.Since(start)),
			slog.String("request_id", middleware.GetReqID(r.Context())))
	})
}
