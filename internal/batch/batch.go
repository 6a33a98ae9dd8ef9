// Package batch renders plot bundles for every catalogued activity.
package batch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/sstent/activityplot-go/internal/database"
	"github.com/sstent/activityplot-go/internal/pipeline"
	"github.com/sstent/activityplot-go/internal/plot"
)

const defaultPageSize = 100

// Catalogue pages through stored activities, newest first.
type Catalogue interface {
	GetActivities(limit, offset int) ([]database.Activity, error)
}

// Builder produces the bundle for one activity.
type Builder interface {
	Build(ctx context.Context, a pipeline.Activity) (plot.Bundle, error)
}

type Renderer struct {
	catalogue Catalogue
	builder   Builder
	outDir    string
	logger    *slog.Logger

	// PageSize bounds each catalogue query.
	PageSize int
	// Force re-renders activities that already have an output file.
	Force bool
}

func NewRenderer(catalogue Catalogue, builder Builder, outDir string, logger *slog.Logger) *Renderer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Renderer{
		catalogue: catalogue,
		builder:   builder,
		outDir:    outDir,
		logger:    logger,
		PageSize:  defaultPageSize,
	}
}

// Failure records one activity that could not be rendered.
type Failure struct {
	ActivityID int
	Err        error
}

type Summary struct {
	Rendered int
	Skipped  int
	Failed   []Failure
	Duration time.Duration
}

// Render walks the catalogue and writes <id>.json for each activity. Per
// activity failures are collected in the summary; only catalogue errors and
// cancellation stop the walk.
func (r *Renderer) Render(ctx context.Context) (Summary, error) {
	var summary Summary
	start := time.Now()
	r.logger.Info("starting render", "out_dir", r.outDir)
	defer func() {
		summary.Duration = time.Since(start)
		r.logger.Info("render completed",
			"rendered", summary.Rendered,
			"skipped", summary.Skipped,
			"failed", len(summary.Failed),
			"duration", summary.Duration,
		)
	}()

	if err := os.MkdirAll(r.outDir, 0o755); err != nil {
		return summary, fmt.Errorf("failed to create output directory: %w", err)
	}

	pageSize := r.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	for offset := 0; ; offset += pageSize {
		activities, err := r.catalogue.GetActivities(pageSize, offset)
		if err != nil {
			return summary, fmt.Errorf("failed to get activities: %w", err)
		}

		for i := range activities {
			rec := &activities[i]
			select {
			case <-ctx.Done():
				return summary, ctx.Err()
			default:
			}

			rendered, err := r.renderActivity(ctx, rec)
			switch {
			case err != nil:
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return summary, err
				}
				r.logger.Warn("failed to render activity", "activity_id", rec.ActivityID, "error", err)
				summary.Failed = append(summary.Failed, Failure{ActivityID: rec.ActivityID, Err: err})
			case rendered:
				summary.Rendered++
			default:
				summary.Skipped++
			}
		}

		if len(activities) < pageSize {
			return summary, nil
		}
	}
}

// OutputPath is where the bundle for an activity is written.
func (r *Renderer) OutputPath(activityID int) string {
	return filepath.Join(r.outDir, fmt.Sprintf("%d.json", activityID))
}

func (r *Renderer) renderActivity(ctx context.Context, rec *database.Activity) (bool, error) {
	out := r.OutputPath(rec.ActivityID)
	if !r.Force {
		if _, err := os.Stat(out); err == nil {
			r.logger.Debug("bundle already rendered", "activity_id", rec.ActivityID)
			return false, nil
		} else if !errors.Is(err, fs.ErrNotExist) {
			return false, fmt.Errorf("failed to stat output: %w", err)
		}
	}

	bundle, err := r.builder.Build(ctx, pipeline.FromRecord(rec))
	if err != nil {
		return false, err
	}

	data, err := json.Marshal(bundle)
	if err != nil {
		return false, fmt.Errorf("failed to encode bundle: %w", err)
	}

	// Write then rename so a reader never sees a partial bundle.
	tmp := out + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return false, fmt.Errorf("failed to write bundle: %w", err)
	}
	if err := os.Rename(tmp, out); err != nil {
		os.Remove(tmp)
		return false, fmt.Errorf("failed to write bundle: %w", err)
	}
	return true, nil
}
