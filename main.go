// main.go - Entry point and dependency injection
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sstent/activityplot-go/internal/config"
	"github.com/sstent/activityplot-go/internal/database"
	"github.com/sstent/activityplot-go/internal/logging"
	"github.com/sstent/activityplot-go/internal/pipeline"
	"github.com/sstent/activityplot-go/internal/staging"
)

const serviceName = "activityplot"

type App struct {
	cfg      config.Config
	logger   *slog.Logger
	db       database.Database
	pipeline *pipeline.Pipeline
	sweeper  *staging.Sweeper
	shutdown chan os.Signal
}

func main() {
	app := &App{
		shutdown: make(chan os.Signal, 1),
	}

	root := newRootCmd(app)
	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		app.stop()
		os.Exit(1)
	}
	app.stop()
}

func newRootCmd(app *App) *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:           "activityplot",
		Short:         "Turn activity uploads into chart-ready series",
		Long:          `Parse GPX, TCX and FIT activity files into per-metric plot bundles.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.init(envFile)
		},
	}
	cmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the environment")

	cmd.AddCommand(
		newPlotCmd(app),
		newFileCmd(app),
		newExportCmd(app),
		newInspectCmd(app),
		newRegisterCmd(app),
		newRenderAllCmd(app),
		newSweepCmd(app),
		newJanitorCmd(app),
	)
	return cmd
}

func (app *App) init(envFile string) error {
	cfg, err := config.Load(envFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	app.cfg = cfg
	app.logger = logging.New(os.Stderr, serviceName, cfg.LogLevel)
	app.sweeper = staging.NewSweeper(cfg.StagingDir, cfg.StagingMaxAge, app.logger)
	app.pipeline = pipeline.New(cfg,
		pipeline.WithLogger(app.logger),
		pipeline.WithLookup(lazyLookup{app}),
		pipeline.WithStager(staging.NewStager(cfg.StagingDir, app.logger)),
	)
	return nil
}

// catalogue opens the database on first use so commands that never touch it
// do not create one.
func (app *App) catalogue() (database.Database, error) {
	if app.db != nil {
		return app.db, nil
	}
	db, err := database.NewSQLiteDB(app.cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	app.db = db
	return db, nil
}

type lazyLookup struct{ app *App }

func (l lazyLookup) GetActivity(activityID int) (*database.Activity, error) {
	db, err := l.app.catalogue()
	if err != nil {
		return nil, err
	}
	return db.GetActivity(activityID)
}

// wait blocks until SIGINT or SIGTERM, or until ctx is done.
func (app *App) wait(ctx context.Context) {
	signal.Notify(app.shutdown, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(app.shutdown)
	select {
	case <-app.shutdown:
	case <-ctx.Done():
	}
}

func (app *App) stop() {
	if app.sweeper != nil {
		app.sweeper.Stop()
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil && app.logger != nil {
			app.logger.Warn("failed to close database", "error", err)
		}
	}
}
