package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"racebot-stats/aggregator"
	"racebot-stats/config"
	"racebot-stats/export"
	"racebot-stats/scheduler"
	"racebot-stats/server"
	"racebot-stats/storage"
	"racebot-stats/telegram"
	"racebot-stats/temperrors"
	"racebot-stats/vk"
)

// seasonsFromArgs reads seasons such as "2021", "2019-2021" or "2020,2022"
// and falls back to the configured ones.
func seasonsFromArgs(args []string, fallback []int) ([]int, error) {
	if len(args) == 0 {
		if len(fallback) == 0 {
			return nil, errors.New("no seasons given")
		}
		return fallback, nil
	}
	seasons, err := config.ParseSeasons(strings.Join(args, ","))
	if err != nil {
		return nil, err
	}
	if len(seasons) == 0 {
		return nil, errors.New("no seasons given")
	}
	return seasons, nil
}

func seasonArg(arg string) (int, error) {
	season, err := strconv.Atoi(arg)
	if err != nil || season <= 0 {
		return 0, fmt.Errorf("season must be a year, got %q", arg)
	}
	return season, nil
}

func neverFetched(season int, err error) error {
	if errors.Is(err, temperrors.ErrNotFound) {
		return fmt.Errorf("season %d was never fetched, run `racestats fetch %d` first", season, season)
	}
	return err
}

func (a *app) fetchCmd() *cobra.Command {
	var round, workers int

	cmd := &cobra.Command{
		Use:   "fetch [seasons...]",
		Short: "Fetch seasons from the API and store their snapshots",
		RunE: func(cmd *cobra.Command, args []string) error {
			seasons, err := seasonsFromArgs(args, a.conf.Refresh.Seasons)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if round > 0 {
				if len(seasons) != 1 {
					return errors.New("--round needs exactly one season")
				}
				res, err := a.svc.Sync(cmd.Context(), seasons[0], round)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%d round %d: %d races stored, %d records skipped\n",
					seasons[0], round, len(res.Snapshot.Races), len(res.Invalid))
				return nil
			}

			if workers <= 0 {
				workers = a.conf.Refresh.Workers
			}
			results := a.svc.SyncSeasons(cmd.Context(), seasons, workers)
			return printSyncResults(out, seasons, results)
		},
	}
	cmd.Flags().IntVarP(&round, "round", "r", 0, "fetch a single round and merge it into the stored season")
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "seasons fetched in parallel (default from config)")
	return cmd
}

func printSyncResults(out io.Writer, seasons []int, results map[int]error) error {
	failed := 0
	for _, season := range seasons {
		if err := results[season]; err != nil {
			failed++
			fmt.Fprintf(out, "%d: failed: %v\n", season, err)
			continue
		}
		fmt.Fprintf(out, "%d: ok\n", season)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d seasons failed", failed, len(seasons))
	}
	return nil
}

func (a *app) standingsCmd() *cobra.Command {
	var teams bool
	var format string

	cmd := &cobra.Command{
		Use:   "standings <season>",
		Short: "Print driver or constructor standings of a stored season",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			season, err := seasonArg(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			if format == "text" {
				snap, err := a.svc.Snapshot(ctx, season)
				if err != nil {
					return neverFetched(season, err)
				}
				report := aggregator.Build(snap)
				if teams {
					printTeams(out, report)
				} else {
					printDrivers(out, report)
				}
				return nil
			}

			env, err := a.envelope(ctx, season)
			if err != nil {
				return err
			}
			table := env.Tables[export.TableDriverStandings]
			if teams {
				table = env.Tables[export.TableTeamStandings]
			}
			switch format {
			case "csv":
				return export.WriteCSV(out, table)
			case "json":
				env.Tables = map[string]export.Table{table.Name: table}
				return export.WriteJSON(out, env)
			default:
				return fmt.Errorf("unknown format %q", format)
			}
		},
	}
	cmd.Flags().BoolVarP(&teams, "teams", "t", false, "constructor standings instead of drivers")
	cmd.Flags().StringVarP(&format, "format", "f", "text", "output format: text, json or csv")
	return cmd
}

func (a *app) envelope(ctx context.Context, season int) (export.Envelope, error) {
	snap, err := a.svc.Snapshot(ctx, season)
	if err != nil {
		return export.Envelope{}, neverFetched(season, err)
	}
	report := aggregator.Build(snap)
	if report.Partial {
		a.log.Warn("Season is partial", slog.Int("season", season),
			slog.Int("completed", report.CompletedRounds), slog.Int("expected", report.ExpectedRounds))
	}
	return export.Build(snap, report, time.Now()), nil
}

func (a *app) trendsCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "trends [seasons...]",
		Short: "Compare how much qualifying decides the race across stored seasons",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			var seasons []int
			var err error
			if len(args) > 0 {
				seasons, err = seasonsFromArgs(args, nil)
			} else {
				seasons, err = a.svc.Seasons(ctx)
			}
			if err != nil {
				return err
			}

			reports := make([]*aggregator.Report, 0, len(seasons))
			for _, season := range seasons {
				snap, err := a.svc.Snapshot(ctx, season)
				if err != nil {
					return neverFetched(season, err)
				}
				reports = append(reports, aggregator.Build(snap))
			}
			cmp := aggregator.CompareSeasons(reports)

			out := cmd.OutOrStdout()
			switch format {
			case "text":
				printComparison(out, cmp)
				return nil
			case "csv":
				return export.WriteCSV(out, export.BuildComparison(cmp, time.Now()).Table)
			case "json":
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(export.BuildComparison(cmp, time.Now()))
			default:
				return fmt.Errorf("unknown format %q", format)
			}
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "text", "output format: text, json or csv")
	return cmd
}

func (a *app) exportCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "export [seasons...]",
		Short: "Write the versioned contract (JSON and CSV) for stored seasons",
		RunE: func(cmd *cobra.Command, args []string) error {
			seasons, err := seasonsFromArgs(args, nil)
			if err != nil {
				return err
			}
			for _, season := range seasons {
				env, err := a.envelope(cmd.Context(), season)
				if err != nil {
					return err
				}
				written, err := export.WriteDir(dir, env)
				if err != nil {
					return err
				}
				for _, path := range written {
					fmt.Fprintln(cmd.OutOrStdout(), path)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&dir, "out", "o", "data/contract", "output directory")
	return cmd
}

func (a *app) verifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <season>",
		Short: "Compare computed standings with the official standings of the API",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			season, err := seasonArg(args[0])
			if err != nil {
				return err
			}
			mismatches, err := a.svc.Verify(cmd.Context(), season)
			if err != nil {
				return neverFetched(season, err)
			}
			out := cmd.OutOrStdout()
			for _, m := range mismatches {
				fmt.Fprintln(out, m.String())
			}
			if len(mismatches) > 0 {
				return fmt.Errorf("%d standings differ from the official ones", len(mismatches))
			}
			fmt.Fprintf(out, "%d: standings match\n", season)
			return nil
		},
	}
}

func (a *app) serveCmd() *cobra.Command {
	var noRefresh bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve stored seasons over HTTP and refresh them on a schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			srv := server.New(a.svc, server.Config{
				Addr:           a.conf.Server.Addr,
				AllowedOrigins: a.conf.Server.AllowedOrigins,
				Log:            a.log,
			})

			if fs, ok := a.store.(*storage.FileStore); ok {
				if err := srv.WatchSnapshots(ctx, fs); err != nil {
					a.log.Warn("Snapshot watcher disabled", slog.Any("error", err))
				}
			}

			if !noRefresh {
				sched := scheduler.New(ctx, a.log)
				job := scheduler.NewRefreshJob(scheduler.RefreshConfig{
					Service:  a.svc,
					Seasons:  a.conf.Refresh.Seasons,
					Workers:  a.conf.Refresh.Workers,
					OnSynced: srv.Invalidate,
					Log:      a.log,
				})
				if err := sched.AddJob(a.conf.Refresh.Schedule, job); err != nil {
					return fmt.Errorf("bad refresh schedule %q: %w", a.conf.Refresh.Schedule, err)
				}
				sched.Start()
				defer sched.Stop()
			}

			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start() }()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().BoolVar(&noRefresh, "no-refresh", false, "do not refresh seasons on a schedule")
	return cmd
}

func (a *app) botCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bot",
		Short: "Answer standings questions in VK and Telegram",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			bots := a.conf.Bots

			var runners []func(context.Context) error
			if bots.VkGroupToken != "" {
				vkAPI, err := vk.NewVKAPI(bots.VkGroupToken, bots.VkGroupID, a.svc, a.log)
				if err != nil {
					return fmt.Errorf("error vkApi object: %w", err)
				}
				runners = append(runners, vkAPI.Run)
			}
			if bots.TgChatToken != "" {
				tgAPI, err := telegram.NewTGAPI(bots.TgChatToken, a.svc, a.log)
				if err != nil {
					return fmt.Errorf("error tgApi object: %w", err)
				}
				runners = append(runners, tgAPI.Run)
			}
			if len(runners) == 0 {
				return errors.New("no bot token configured, set RACEVK_BOT or RACETG_BOT")
			}

			var wg sync.WaitGroup
			errs := make([]error, len(runners))
			for i, run := range runners {
				wg.Add(1)
				go func(i int, run func(context.Context) error) {
					defer wg.Done()
					errs[i] = run(ctx)
				}(i, run)
			}
			wg.Wait()
			return errors.Join(errs...)
		},
	}
}

func printDrivers(out io.Writer, r *aggregator.Report) {
	fmt.Fprintf(out, "Season %d, %d of %d rounds%s\n", r.Season, r.CompletedRounds, r.ExpectedRounds, partialMark(r))
	rows := make([][]string, 0, len(r.Drivers))
	for _, d := range r.Drivers {
		rows = append(rows, []string{position(d.Position, d.Tied), d.Driver.Label(), d.Driver.FullName(),
			d.Constructor.Label(), formatFloat(d.Points), strconv.Itoa(d.Wins), strconv.Itoa(d.Podiums)})
	}
	writeTable(out, []string{"POS", "CODE", "DRIVER", "TEAM", "PTS", "WINS", "PODIUMS"}, rows)
}

func printTeams(out io.Writer, r *aggregator.Report) {
	fmt.Fprintf(out, "Season %d, %d of %d rounds%s\n", r.Season, r.CompletedRounds, r.ExpectedRounds, partialMark(r))
	rows := make([][]string, 0, len(r.Teams))
	for _, t := range r.Teams {
		rows = append(rows, []string{position(t.Position, t.Tied), t.Constructor.Label(),
			formatFloat(t.Points), strconv.Itoa(t.Wins), strconv.Itoa(t.Podiums)})
	}
	writeTable(out, []string{"POS", "TEAM", "PTS", "WINS", "PODIUMS"}, rows)
}

func printComparison(out io.Writer, c aggregator.SeasonComparison) {
	if len(c.Seasons) == 0 {
		fmt.Fprintln(out, "No season has enough results to compare")
		return
	}
	rows := make([][]string, 0, len(c.Seasons))
	for _, s := range c.Seasons {
		season := strconv.Itoa(s.Season)
		if s.Partial {
			season += "*"
		}
		rows = append(rows, []string{season, strconv.Itoa(s.Samples),
			strconv.FormatFloat(s.QualiFinishCorrelation, 'f', 3, 64),
			strconv.FormatFloat(s.PoleToWinRate, 'f', 1, 64),
			strconv.FormatFloat(s.ImprovementRate, 'f', 1, 64),
			strconv.FormatFloat(s.CorrelationDelta, 'f', 3, 64),
			strconv.FormatFloat(s.ImprovementDelta, 'f', 1, 64)})
	}
	writeTable(out, []string{"SEASON", "SAMPLES", "CORR", "POLE WIN %", "IMPROVED %", "CORR DIFF", "IMPROVED DIFF"}, rows)
	fmt.Fprintf(out, "\nAverage correlation %.3f, correlation change %+.1f%%, improvement change %+.1f points\n",
		c.AvgCorrelation, c.CorrelationChange, c.ImprovementChange)
}

func partialMark(r *aggregator.Report) string {
	if r.Partial {
		return " (partial)"
	}
	return ""
}

func position(pos int, tied bool) string {
	if tied {
		return strconv.Itoa(pos) + "="
	}
	return strconv.Itoa(pos)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
