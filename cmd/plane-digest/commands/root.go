package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"plane-digest/internal/activity"
	"plane-digest/internal/cache"
	"plane-digest/internal/config"
	"plane-digest/internal/fetch"
	"plane-digest/internal/logging"
	"plane-digest/internal/plane"
	"plane-digest/internal/report"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	// Version, Commit, and BuildDate are set at build time via ldflags.
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"

	verbose bool
	cfg     *config.AppConfig
)

var rootCmd = &cobra.Command{
	Use:   "plane-digest",
	Short: "plane-digest reports who did what in a Plane workspace",
	Long: `Collects work item changes, comments and subitem progress from a Plane workspace
for a date window and turns them into per-person and per-project summaries, either on
the command line or as MCP tools.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := logging.Init(verbose); err != nil {
			return err
		}

		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		log.Debug().
			Str("version", Version).
			Str("commit", Commit).
			Str("buildDate", BuildDate).
			Str("workspace", cfg.Plane.Workspace).
			Msg("plane-digest starting")
		return nil
	},
}

// Execute runs the root command, cancelling its context on SIGINT or SIGTERM.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	rootCmd.AddCommand(newReportCmd(), newServeCmd())
}

// newRunner wires the upstream client, caches and orchestrator from cfg. Everything
// shared across runs is built once here.
func newRunner(cfg *config.AppConfig) *report.Runner {
	client := plane.NewClient(cfg.Plane)
	svc := fetch.NewService(client, plane.NewExecutor(cfg.Retry), cache.NewSessions(), fetch.Options{
		TTLs:     cfg.TTLs,
		MaxPages: cfg.MaxPages,
	})
	orch := activity.NewOrchestrator(svc, plane.NewLimiter(cfg.Concurrency), activity.Config{
		ProjectConcurrency: cfg.ProjectConcurrency,
		IgnoredMembers:     cfg.IgnoredMembers,
	})
	return report.NewRunner(svc, orch)
}
