package staging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"
)

// Sweeper deletes staged files left behind by interrupted requests.
type Sweeper struct {
	Dir    string
	MaxAge time.Duration
	Logger *slog.Logger

	now  func() time.Time
	cron *cron.Cron
}

func NewSweeper(dir string, maxAge time.Duration, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{Dir: dir, MaxAge: maxAge, Logger: logger, now: time.Now}
}

// Sweep removes staged files in Dir older than MaxAge and returns how many
// were removed. Files not named by the stager are left alone. A missing
// directory is treated as empty.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	if s.MaxAge <= 0 {
		return 0, fmt.Errorf("staging max age must be positive, got %s", s.MaxAge)
	}
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read staging directory: %w", err)
	}

	cutoff := s.now().Add(-s.MaxAge)
	removed := 0
	for _, entry := range entries {
		select {
		case <-ctx.Done():
			return removed, ctx.Err()
		default:
		}

		if !entry.Type().IsRegular() || !IsStagedName(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(s.Dir, entry.Name())
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.Logger.Warn("failed to remove stale staged file", "path", path, "error", err)
			continue
		}
		removed++
	}
	return removed, nil
}

// Start schedules Sweep with a cron spec such as "@every 10m".
func (s *Sweeper) Start(spec string) error {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		n, err := s.Sweep(context.Background())
		if err != nil {
			s.Logger.Error("staging sweep failed", "error", err)
			return
		}
		s.Logger.Info("staging sweep finished", "removed", n, "dir", s.Dir)
	})
	if err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", spec, err)
	}
	s.cron = c
	c.Start()
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
}
