// Command ingest is the NBA stats ingestion CLI.
//
// Usage:
//
//	nba-ingest run --season 2023-24
//	nba-ingest missing --season 2023-24
//	nba-ingest init-schema
//	nba-ingest reset-table hustle_stats --yes
//	nba-ingest check --season 2023-24
//	nba-ingest check --game 0022300001
//	nba-ingest audit
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"nba_stats/ingestion/internal/app"
	"nba_stats/ingestion/internal/config"
	"nba_stats/ingestion/internal/ingest"
	"nba_stats/ingestion/internal/logging"
	"nba_stats/ingestion/internal/models"
	"nba_stats/ingestion/internal/repository"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:           "nba-ingest",
		Short:         "Incremental NBA stats ingestion",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(runCmd())
	root.AddCommand(missingCmd())
	root.AddCommand(initSchemaCmd())
	root.AddCommand(resetTableCmd())
	root.AddCommand(checkCmd())
	root.AddCommand(auditCmd())

	if err := root.Execute(); err != nil {
		log.Error().Err(err).Msg("Command failed")
		os.Exit(1)
	}
}

// --------------------------------------------------------------------------
// run
// --------------------------------------------------------------------------

func runCmd() *cobra.Command {
	var (
		season string
		strict bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Ingest every game of a season that is not stored yet",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app.App) error {
				if season == "" {
					season = a.Config.TargetSeason
				}
				if err := a.Store.EnsureSchema(ctx); err != nil {
					return err
				}

				summary, err := a.Runner().Run(ctx, season)
				printSummary(summary)
				if err != nil {
					return err
				}
				if strict && !summary.Clean() {
					return fmt.Errorf("%d game(s) partially failed and %d failed", summary.PartiallyFailed, summary.Failed)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&season, "season", "", "Season to ingest, e.g. 2023-24 (default TARGET_SEASON)")
	cmd.Flags().BoolVar(&strict, "strict", false, "Exit non-zero when any game is not fully ingested")
	return cmd
}

func printSummary(s ingest.RunSummary) {
	fmt.Printf("run %s season %s\n", s.RunID, s.Season)
	fmt.Printf("  attempted:        %d\n", s.Attempted)
	fmt.Printf("  succeeded:        %d\n", s.Succeeded)
	fmt.Printf("  partially failed: %d\n", s.PartiallyFailed)
	fmt.Printf("  failed:           %d\n", s.Failed)
	fmt.Printf("  duration:         %s\n", s.Duration.Round(time.Millisecond))
}

// --------------------------------------------------------------------------
// missing
// --------------------------------------------------------------------------

func missingCmd() *cobra.Command {
	var season string
	cmd := &cobra.Command{
		Use:   "missing",
		Short: "List the games of a season that a run would ingest",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app.App) error {
				if season == "" {
					season = a.Config.TargetSeason
				}
				opts := a.RunnerOptions()
				resolver := ingest.NewResolver(a.Client, a.Store, opts.SeasonTypes, opts.CompletenessTable)
				missing, err := resolver.MissingGames(ctx, season)
				if err != nil {
					return err
				}
				for _, ref := range missing {
					fmt.Printf("%s  %s  %-16s %s\n", ref.GameID, ref.GameDate.Format("2006-01-02"), ref.SeasonType, ref.Matchup)
				}
				fmt.Printf("%d game(s) missing\n", len(missing))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&season, "season", "", "Season to check (default TARGET_SEASON)")
	return cmd
}

// --------------------------------------------------------------------------
// schema maintenance
// --------------------------------------------------------------------------

func initSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init-schema",
		Short: "Create every table that does not exist yet",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(ctx context.Context, cfg *config.Config, store repository.Store) error {
				if err := store.EnsureSchema(ctx); err != nil {
					return err
				}
				fmt.Println("schema ready")
				return nil
			})
		},
	}
}

func resetTableCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset-table TABLE",
		Short: "Drop and recreate a table, forgetting what was ingested into it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			table := args[0]
			if !yes {
				return fmt.Errorf("refusing to reset %s without --yes", table)
			}
			return withStore(func(ctx context.Context, cfg *config.Config, store repository.Store) error {
				if err := store.ResetTable(ctx, table); err != nil {
					return err
				}
				fmt.Printf("table %s reset\n", table)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm the reset")
	return cmd
}

func checkCmd() *cobra.Command {
	var (
		season string
		gameID string
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Report row counts, stored games and recent runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(ctx context.Context, cfg *config.Config, store repository.Store) error {
				if err := store.Health(ctx); err != nil {
					return err
				}
				if gameID != "" {
					return printGame(ctx, store, gameID)
				}

				counts, err := store.TableCounts(ctx)
				if err != nil {
					return err
				}
				for _, c := range counts {
					if !c.Exists {
						fmt.Printf("%-20s missing\n", c.Table)
						continue
					}
					fmt.Printf("%-20s %d\n", c.Table, c.Rows)
				}

				if season == "" {
					return nil
				}

				fmt.Printf("\nstored games for %s\n", season)
				for _, seasonType := range cfg.SeasonTypes {
					seasonID, err := models.SeasonID(season, seasonType)
					if err != nil {
						return err
					}
					games, err := store.GamesBySeason(ctx, seasonID)
					if err != nil {
						return err
					}
					line := fmt.Sprintf("%-16s %d", seasonType, len(games))
					if len(games) > 0 {
						last := games[len(games)-1]
						line += fmt.Sprintf("  latest %s %s", last.GameID, last.GameDate.Time.Format("2006-01-02"))
					}
					fmt.Println(line)
				}

				runs, err := store.RecentRuns(ctx, season, limit)
				if err != nil {
					return err
				}
				fmt.Printf("\nrecent runs for %s\n", season)
				for _, r := range runs {
					fmt.Printf("%s  %s  %-9s attempted=%d succeeded=%d partial=%d failed=%d\n",
						r.RunID, r.StartedAt.Format("2006-01-02 15:04:05"), r.Status,
						r.Attempted, r.Succeeded, r.PartiallyFailed, r.Failed)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&season, "season", "", "Also list stored games and recent runs of this season")
	cmd.Flags().StringVar(&gameID, "game", "", "Show one stored game and its completed kinds")
	cmd.Flags().IntVar(&limit, "limit", 10, "Number of runs to list")
	return cmd
}

// printGame shows the games row of one game and which kinds are stored
func printGame(ctx context.Context, store repository.Store, gameID string) error {
	game, err := store.GetGame(ctx, gameID)
	if err != nil {
		return err
	}
	done, err := store.CompletedKinds(ctx, gameID)
	if err != nil {
		return err
	}

	fmt.Printf("%s  %s  %s  %s\n", game.GameID, game.GameDate.Time.Format("2006-01-02"), game.SeasonType.String, game.Matchup.String)
	if game.HomePoints.Valid && game.AwayPoints.Valid {
		fmt.Printf("  score %d-%d\n", game.HomePoints.Int32, game.AwayPoints.Int32)
	}
	for _, kind := range models.Kinds {
		state := "missing"
		if done[kind] {
			state = "stored"
		}
		fmt.Printf("  %-20s %s\n", kind, state)
	}
	return nil
}

func auditCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "audit",
		Short: "Compare stored table columns with the expected schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(ctx context.Context, cfg *config.Config, store repository.Store) error {
				audits, err := repository.Audit(ctx, store)
				if err != nil {
					return err
				}

				drift := 0
				for _, a := range audits {
					switch {
					case !a.Exists:
						fmt.Printf("%-20s missing\n", a.Table)
						drift++
					case a.OK():
						fmt.Printf("%-20s ok\n", a.Table)
					default:
						fmt.Printf("%-20s missing columns %v, extra columns %v\n", a.Table, a.Missing, a.Extra)
						drift++
					}
				}
				if drift > 0 {
					return fmt.Errorf("%d table(s) differ from the expected schema", drift)
				}
				return nil
			})
		},
	}
}

// --------------------------------------------------------------------------
// Shared setup
// --------------------------------------------------------------------------

func setup() (context.Context, context.CancelFunc, *config.Config, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, nil, err
	}

	closer, err := logging.Setup(logging.Options{
		Level:       cfg.LogLevel,
		Development: cfg.IsDevelopment(),
		File:        cfg.LogFile,
	})
	if err != nil {
		return nil, nil, nil, nil, err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	return ctx, cancel, cfg, func() { closer.Close() }, nil
}

// withApp handles config, logging, the full dependency graph and cancellation
func withApp(fn func(ctx context.Context, a *app.App) error) error {
	ctx, cancel, cfg, closeLog, err := setup()
	if err != nil {
		return err
	}
	defer closeLog()
	defer cancel()

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(ctx, a)
}

// withStore is withApp for commands that only touch the store
func withStore(fn func(ctx context.Context, cfg *config.Config, store repository.Store) error) error {
	ctx, cancel, cfg, closeLog, err := setup()
	if err != nil {
		return err
	}
	defer closeLog()
	defer cancel()

	store, err := app.OpenStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	return fn(ctx, cfg, store)
}
