// Package pipeline turns stored activity files into chart-ready bundles.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"

	"github.com/sstent/activityplot-go/internal/config"
	"github.com/sstent/activityplot-go/internal/database"
	"github.com/sstent/activityplot-go/internal/models"
	"github.com/sstent/activityplot-go/internal/parser"
	"github.com/sstent/activityplot-go/internal/plot"
	"github.com/sstent/activityplot-go/internal/series"
	"github.com/sstent/activityplot-go/internal/staging"
)

// Activity is the stored record of one upload. Filename is relative to the
// base directory, in the form <subdir>/<name>[.gz].
type Activity struct {
	ID       string
	Name     string
	Filename string
	Type     string
}

// FromRecord converts a catalogue row.
func FromRecord(a *database.Activity) Activity {
	return Activity{
		ID:       strconv.Itoa(a.ActivityID),
		Name:     a.Name,
		Filename: a.Filename,
		Type:     a.ActivityType,
	}
}

// Lookup resolves activity ids to records.
type Lookup interface {
	GetActivity(activityID int) (*database.Activity, error)
}

type Pipeline struct {
	cfg       config.Config
	stager    *staging.Stager
	assembler *plot.Assembler
	lookup    Lookup
	logger    *slog.Logger
}

type Option func(*Pipeline)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = logger }
}

func WithLookup(lookup Lookup) Option {
	return func(p *Pipeline) { p.lookup = lookup }
}

// WithStager replaces the stager built from cfg.StagingDir.
func WithStager(stager *staging.Stager) Option {
	return func(p *Pipeline) { p.stager = stager }
}

func New(cfg config.Config, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:       cfg,
		assembler: plot.NewAssembler(cfg.IndoorTypes),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.stager == nil {
		p.stager = staging.NewStager(cfg.StagingDir, p.logger)
	}
	return p
}

// Build parses the activity's file and assembles its plot bundle.
func (p *Pipeline) Build(ctx context.Context, a Activity) (plot.Bundle, error) {
	s, err := p.Series(ctx, a)
	if err != nil {
		return nil, err
	}
	bundle := p.assembler.Build(s, a.Type)
	p.logger.Info("built plot bundle",
		"activity_id", a.ID,
		"activity_type", a.Type,
		"samples", s.Len(),
		"metrics", len(bundle),
	)
	return bundle, nil
}

// BuildByID looks the activity up in the catalogue and builds its bundle.
func (p *Pipeline) BuildByID(ctx context.Context, activityID int) (plot.Bundle, Activity, error) {
	a, err := p.Activity(activityID)
	if err != nil {
		return nil, a, err
	}
	bundle, err := p.Build(ctx, a)
	return bundle, a, err
}

// BuildFile builds a bundle for a file outside the catalogue.
func (p *Pipeline) BuildFile(ctx context.Context, path, activityType string) (plot.Bundle, error) {
	s, err := p.seriesFromPath(ctx, "", path)
	if err != nil {
		return nil, err
	}
	return p.assembler.Build(s, activityType), nil
}

// Activity resolves a catalogue id.
func (p *Pipeline) Activity(activityID int) (Activity, error) {
	id := strconv.Itoa(activityID)
	if p.lookup == nil {
		return Activity{ID: id}, fmt.Errorf("activity %s: no catalogue configured", id)
	}
	rec, err := p.lookup.GetActivity(activityID)
	if err != nil {
		return Activity{ID: id}, classify(id, err)
	}
	return FromRecord(rec), nil
}

// Series returns the aligned series for an activity without assembling charts.
func (p *Pipeline) Series(ctx context.Context, a Activity) (series.Series, error) {
	path, err := p.Resolve(a.Filename)
	if err != nil {
		return series.Series{}, classify(a.ID, err)
	}
	return p.seriesFromPath(ctx, a.ID, path)
}

// Resolve maps a stored filename onto the base directory, rejecting names
// that would leave it.
func (p *Pipeline) Resolve(filename string) (string, error) {
	rel := filepath.Clean(filepath.FromSlash(filename))
	if filename == "" || !filepath.IsLocal(rel) {
		return "", fmt.Errorf("%w: %q", ErrOutsideBase, filename)
	}
	return filepath.Join(p.cfg.BaseDir, rel), nil
}

func (p *Pipeline) seriesFromPath(ctx context.Context, activityID, path string) (series.Series, error) {
	staged, err := p.stager.Stage(ctx, activityID, path)
	if err != nil {
		return series.Series{}, classify(activityID, err)
	}
	defer func() {
		if err := staged.Release(); err != nil {
			p.logger.Warn("failed to release staged file", "path", staged.Path, "error", err)
		}
	}()

	prs, ft, err := p.parserFor(path, staged.Path)
	if err != nil {
		return series.Series{}, classify(activityID, err)
	}
	if err := ctx.Err(); err != nil {
		return series.Series{}, classify(activityID, err)
	}

	track, err := prs.ParseFile(staged.Path)
	if err != nil {
		return series.Series{}, classify(activityID, err)
	}
	p.logger.Debug("parsed activity file", "activity_id", activityID, "format", ft, "samples", track.Len())

	return series.Align(track), nil
}

// parserFor takes the format from the stored name, which still carries the
// extension ahead of .gz, and sniffs the staged content otherwise.
func (p *Pipeline) parserFor(source, staged string) (parser.Parser, models.FileType, error) {
	if ft := parser.FileTypeFromName(source); ft != models.FileTypeUnknown {
		prs, err := parser.NewParser(ft)
		return prs, ft, err
	}
	return parser.ForFile(staged)
}
