package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"automations/internal/app"
	"automations/internal/observability"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the scheduler and the admin API",
	RunE:  run,
}

var runMigrate bool

func init() {
	runCmd.Flags().BoolVar(&runMigrate, "migrate", true, "run AutoMigrate on startup")
	rootCmd.AddCommand(runCmd)
}

func run(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.SetupTracing(ctx, cfg)
	if err != nil {
		logger.Warnf("tracing disabled: %v", err)
	} else {
		defer func() { _ = shutdownTracing(context.Background()) }()
	}

	a, err := openApp(ctx, runMigrate)
	if err != nil {
		return err
	}
	return a.Serve(ctx)
}

// openApp connects, optionally migrates, and wires the engine.
func openApp(ctx context.Context, migrate bool) (*app.App, error) {
	db, err := app.OpenDatabase(cfg, logger)
	if err != nil {
		return nil, err
	}
	a := app.New(cfg, db, logger)
	if migrate {
		if err := a.Store.AutoMigrate(ctx); err != nil {
			return nil, err
		}
	}
	return a, nil
}
