package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"

	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"racebot-stats/config"
	"racebot-stats/ergast"
	"racebot-stats/service"
	"racebot-stats/storage"
)

var exampleUsage = strings.TrimSpace(`
  racestats fetch 2019-2023
  racestats standings 2021 --teams
  racestats trends 2019-2023
  racestats export 2021 --out data/contract
  racestats serve --config racestats.toml
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

// app holds what every subcommand needs. It is filled in by the root
// command's PersistentPreRunE.
type app struct {
	cfgPath string
	conf    *config.Config
	log     *slog.Logger
	store   storage.Store
	svc     *service.ServiceF1
}

func main() {
	a := &app{}

	root := &cobra.Command{
		Use:           "racestats",
		Short:         "Fetch Formula 1 results, store season snapshots and publish standings",
		Example:       exampleUsage,
		Version:       fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd.Context())
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a.store != nil {
				return a.store.Close()
			}
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&a.cfgPath, "config", "c", "racestats.toml", "path to the TOML config file")

	root.AddCommand(
		a.fetchCmd(),
		a.standingsCmd(),
		a.trendsCmd(),
		a.exportCmd(),
		a.verifyCmd(),
		a.serveCmd(),
		a.botCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}

func (a *app) init(ctx context.Context) error {
	conf, err := config.New(a.cfgPath)
	if err != nil {
		return err
	}
	a.conf = conf

	a.log, err = setupLogger(os.Stderr, conf.LogFormat, conf.LogLevel)
	if err != nil {
		return err
	}
	slog.SetDefault(a.log)

	a.store, err = storage.New(ctx, conf.Storage, a.log)
	if err != nil {
		return fmt.Errorf("error opening storage: %w", err)
	}

	ergastAPI := ergast.NewErgastAPI(ergast.Options{
		BaseURL:        conf.API.BaseURL,
		Timeout:        conf.API.Timeout.Duration,
		MaxAttempts:    conf.API.MaxAttempts,
		BackoffInitial: conf.API.BackoffInitial.Duration,
		BackoffMax:     conf.API.BackoffMax.Duration,
		RateLimit:      conf.API.RateLimit,
		PageSize:       conf.API.PageSize,
		Logger:         a.log,
	})
	a.svc = service.NewServiceF1(ergastAPI, a.store, a.log)
	return nil
}

// setupLogger builds the process logger: JSON lines, or charmbracelet's
// human readable output used as an slog handler.
func setupLogger(w io.Writer, format, level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("bad log level %q: %w", level, err)
	}

	switch format {
	case "json":
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})), nil
	case "text", "":
		charmLevel, err := charmlog.ParseLevel(strings.ToLower(lvl.String()))
		if err != nil {
			return nil, err
		}
		handler := charmlog.NewWithOptions(w, charmlog.Options{
			ReportTimestamp: true,
			Level:           charmLevel,
		})
		return slog.New(handler), nil
	default:
		return nil, errors.New("log format must be json or text")
	}
}
