// Package staging inflates gzip-wrapped activity files into a scratch
// directory and keeps that directory from filling up.
package staging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"
)

// ErrCorrupt is returned when a .gz source is not a readable gzip stream.
var ErrCorrupt = errors.New("corrupt gzip stream")

const gzSuffix = ".gz"

// Staged is a file ready to be parsed.
type Staged struct {
	Path       string
	Compressed bool
}

// Release removes the staged copy. Uncompressed sources are left alone.
func (s Staged) Release() error {
	if !s.Compressed {
		return nil
	}
	if err := os.Remove(s.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Stager writes decompressed copies of activity files into Dir.
type Stager struct {
	Dir    string
	Logger *slog.Logger
}

func NewStager(dir string, logger *slog.Logger) *Stager {
	return &Stager{Dir: dir, Logger: logger}
}

// IsCompressed reports whether path carries the gzip suffix.
func IsCompressed(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), gzSuffix)
}

// TrimCompression strips a trailing .gz from name.
func TrimCompression(name string) string {
	if IsCompressed(name) {
		return name[:len(name)-len(gzSuffix)]
	}
	return name
}

// Name returns the staged file name for a source. Names embed a fresh uuid
// so two requests never write the same staged file.
func Name(activityID, source string) string {
	base := TrimCompression(filepath.Base(source))
	if activityID == "" {
		return fmt.Sprintf("%s-%s", uuid.NewString(), base)
	}
	return fmt.Sprintf("%s-%s-%s", activityID, uuid.NewString(), base)
}

// IsStagedName reports whether name has the shape produced by Name.
func IsStagedName(name string) bool {
	if isUUIDPrefixed(name) {
		return true
	}
	if i := strings.IndexByte(name, '-'); i > 0 {
		return isUUIDPrefixed(name[i+1:])
	}
	return false
}

func isUUIDPrefixed(s string) bool {
	const n = 36
	if len(s) <= n+1 || s[n] != '-' {
		return false
	}
	_, err := uuid.Parse(s[:n])
	return err == nil
}

// Stage makes path readable as a plain activity file. Sources without a .gz
// suffix are returned as is.
func (s *Stager) Stage(ctx context.Context, activityID, path string) (Staged, error) {
	if err := ctx.Err(); err != nil {
		return Staged{}, err
	}

	if !IsCompressed(path) {
		s.logger().Debug("source is not gzip compressed, skipping decompression", "path", path)
		if _, err := os.Stat(path); err != nil {
			return Staged{}, fmt.Errorf("failed to stat activity file: %w", err)
		}
		return Staged{Path: path}, nil
	}

	src, err := os.Open(path)
	if err != nil {
		return Staged{}, fmt.Errorf("failed to open activity file: %w", err)
	}
	defer src.Close()

	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return Staged{}, fmt.Errorf("failed to create staging directory: %w", err)
	}

	out := filepath.Join(s.Dir, Name(activityID, path))
	n, err := inflate(src, out)
	if err != nil {
		os.Remove(out)
		return Staged{}, err
	}

	s.logger().Debug("decompressed activity file", "source", path, "staged", out, "bytes", n)
	return Staged{Path: out, Compressed: true}, nil
}

func inflate(src io.Reader, out string) (int64, error) {
	zr, err := gzip.NewReader(src)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	defer zr.Close()

	dst, err := os.OpenFile(out, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, fmt.Errorf("failed to create staged file: %w", err)
	}

	n, err := io.Copy(dst, zr)
	if err != nil {
		dst.Close()
		return n, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if err := dst.Close(); err != nil {
		return n, fmt.Errorf("failed to write staged file: %w", err)
	}
	return n, nil
}

func (s *Stager) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}
