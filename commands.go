package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/sstent/activityplot-go/internal/batch"
	"github.com/sstent/activityplot-go/internal/database"
	"github.com/sstent/activityplot-go/internal/export"
	"github.com/sstent/activityplot-go/internal/pipeline"
	"github.com/sstent/activityplot-go/internal/plot"
	"github.com/sstent/activityplot-go/internal/series"
	"github.com/sstent/activityplot-go/internal/units"
)

func parseActivityID(arg string) (int, error) {
	id, err := strconv.Atoi(arg)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid activity id %q", arg)
	}
	return id, nil
}

// userError logs the full failure and returns the short message shown to
// the user.
func (app *App) userError(err error, args ...any) error {
	app.logger.Error("activity failed", append(args, "error", err)...)
	return errors.New(pipeline.UserMessage(err))
}

func writeBundle(w io.Writer, bundle plot.Bundle) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(bundle)
}

func newPlotCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "plot <activity-id>",
		Short: "Print the plot bundle of a catalogued activity as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseActivityID(args[0])
			if err != nil {
				return err
			}
			bundle, _, err := app.pipeline.BuildByID(cmd.Context(), id)
			if err != nil {
				return app.userError(err, "activity_id", id)
			}
			return writeBundle(cmd.OutOrStdout(), bundle)
		},
	}
}

func newFileCmd(app *App) *cobra.Command {
	var activityType string

	cmd := &cobra.Command{
		Use:   "file <path>",
		Short: "Print the plot bundle of an activity file outside the catalogue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bundle, err := app.pipeline.BuildFile(cmd.Context(), args[0], activityType)
			if err != nil {
				return app.userError(err, "path", args[0])
			}
			return writeBundle(cmd.OutOrStdout(), bundle)
		},
	}
	cmd.Flags().StringVar(&activityType, "type", "", "activity type, used to pick indoor handling")
	return cmd
}

func newExportCmd(app *App) *cobra.Command {
	var (
		format string
		out    string
	)

	cmd := &cobra.Command{
		Use:   "export <activity-id>",
		Short: "Write the aligned series of an activity as CSV or parquet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseActivityID(args[0])
			if err != nil {
				return err
			}
			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}

			a, err := app.pipeline.Activity(id)
			if err != nil {
				return app.userError(err, "activity_id", id)
			}
			s, err := app.pipeline.Series(cmd.Context(), a)
			if err != nil {
				return app.userError(err, "activity_id", id)
			}

			if out == "-" {
				return export.Write(cmd.OutOrStdout(), f, s)
			}
			if out == "" {
				out = filepath.Join(app.cfg.ExportDir, a.ID+f.Ext())
			}
			if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
				return fmt.Errorf("failed to create export directory: %w", err)
			}
			fh, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", out, err)
			}
			defer fh.Close()
			if err := export.Write(fh, f, s); err != nil {
				return err
			}
			app.logger.Info("exported activity", "activity_id", id, "format", f, "path", out, "rows", s.Len())
			return fh.Close()
		},
	}
	cmd.Flags().StringVar(&format, "format", string(export.FormatCSV), "csv or parquet")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output path, - for stdout (default <export dir>/<id>.<format>)")
	return cmd
}

func newInspectCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <activity-id>",
		Short: "Summarise the metrics of a catalogued activity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseActivityID(args[0])
			if err != nil {
				return err
			}
			a, err := app.pipeline.Activity(id)
			if err != nil {
				return app.userError(err, "activity_id", id)
			}
			s, err := app.pipeline.Series(cmd.Context(), a)
			if err != nil {
				return app.userError(err, "activity_id", id)
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Activity %s (%s)\n", a.ID, a.Type)
			if indoor := plot.NewIndoorSet(app.cfg.IndoorTypes); indoor.Contains(a.Type) {
				fmt.Fprintf(w, "Indoor, charts use the time axis (indoor types: %s)\n", strings.Join(indoor.Types(), ", "))
			}
			if s.Len() == 0 {
				fmt.Fprintln(w, "No samples")
				return nil
			}
			fmt.Fprintf(w, "Samples: %d  Duration: %s\n", s.Len(), units.FormatClock(s.Time[s.Len()-1].Sub(s.Time[0])))

			table := tablewriter.NewWriter(w)
			table.Header([]string{"Metric", "Unit", "Min", "Mean", "Max"})
			if err := table.Bulk(summaryRows(s)); err != nil {
				return err
			}
			return table.Render()
		},
	}
}

func summaryRows(s series.Series) [][]string {
	cols := []struct {
		name, unit string
		vals       []float64
	}{
		{"Distance", "mi", s.Distance},
		{"Elevation", "ft", s.Altitude},
		{"Speed", "mph", s.Speed},
		{"Heart Rate", "bpm", s.HeartRate},
		{"Cadence", "rpm", s.Cadence},
		{"Power", "W", s.Power},
		{"Temperature", "F", s.Temperature},
	}

	var rows [][]string
	for _, c := range cols {
		if len(c.vals) == 0 {
			continue
		}
		rows = append(rows, []string{
			c.name,
			c.unit,
			strconv.FormatFloat(slices.Min(c.vals), 'f', 1, 64),
			strconv.FormatFloat(series.Mean(c.vals), 'f', 1, 64),
			strconv.FormatFloat(slices.Max(c.vals), 'f', 1, 64),
		})
	}
	return rows
}

func newRegisterCmd(app *App) *cobra.Command {
	var (
		name         string
		activityType string
		start        string
	)

	cmd := &cobra.Command{
		Use:   "register <activity-id> <filename>",
		Short: "Add an uploaded file to the catalogue",
		Long: `Add an uploaded file to the catalogue. The filename is relative to the
activity base directory. Without --start the first sample time is used.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseActivityID(args[0])
			if err != nil {
				return err
			}
			a := pipeline.Activity{ID: args[0], Name: name, Filename: args[1], Type: activityType}

			var startTime time.Time
			if start != "" {
				startTime, err = time.Parse(time.RFC3339, start)
				if err != nil {
					return fmt.Errorf("invalid --start: %w", err)
				}
			} else {
				s, err := app.pipeline.Series(cmd.Context(), a)
				if err != nil {
					return app.userError(err, "activity_id", id)
				}
				if s.Len() == 0 {
					return errors.New("activity has no samples, pass --start")
				}
				startTime = s.Time[0]
			}

			db, err := app.catalogue()
			if err != nil {
				return err
			}
			rec := &database.Activity{
				ActivityID:   id,
				Name:         name,
				StartTime:    startTime,
				ActivityType: activityType,
				Filename:     args[1],
			}
			if err := db.CreateActivity(rec); err != nil {
				return fmt.Errorf("failed to create activity: %w", err)
			}
			app.logger.Info("registered activity", "activity_id", id, "filename", args[1], "start_time", startTime)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "activity name")
	cmd.Flags().StringVar(&activityType, "type", "", "activity type, e.g. Ride or Weight Training")
	cmd.Flags().StringVar(&start, "start", "", "start time, RFC3339")
	return cmd
}

func newRenderAllCmd(app *App) *cobra.Command {
	var (
		force    bool
		pageSize int
	)

	cmd := &cobra.Command{
		Use:   "render-all",
		Short: "Render a JSON plot bundle for every catalogued activity",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := app.catalogue()
			if err != nil {
				return err
			}
			total, err := db.CountActivities()
			if err != nil {
				return fmt.Errorf("failed to count activities: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "rendering %d catalogued activities into %s\n", total, app.cfg.ExportDir)

			r := batch.NewRenderer(db, app.pipeline, app.cfg.ExportDir, app.logger)
			r.Force = force
			r.PageSize = pageSize

			summary, err := r.Render(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "rendered %d, skipped %d, failed %d in %s\n",
				summary.Rendered, summary.Skipped, len(summary.Failed), summary.Duration.Round(time.Millisecond))
			for _, f := range summary.Failed {
				fmt.Fprintf(cmd.OutOrStdout(), "  %d: %s\n", f.ActivityID, pipeline.UserMessage(f.Err))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "re-render activities that already have a bundle")
	cmd.Flags().IntVar(&pageSize, "page-size", 100, "catalogue rows fetched per query")
	return cmd
}

func newSweepCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Remove stale files from the staging directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := app.sweeper.Sweep(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d staged files\n", n)
			return nil
		},
	}
}

func newJanitorCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "janitor",
		Short: "Sweep the staging directory on a schedule until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.sweeper.Start(app.cfg.SweepSchedule); err != nil {
				return err
			}
			app.logger.Info("janitor started", "schedule", app.cfg.SweepSchedule, "dir", app.cfg.StagingDir)
			app.wait(cmd.Context())
			app.logger.Info("shutting down")
			return nil
		},
	}
}
