// Package parser reads GPX, TCX and FIT activity files into tracks.
package parser

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sstent/activityplot-go/internal/models"
)

var (
	// ErrMalformed marks files that could not be decoded at all.
	ErrMalformed = errors.New("malformed activity file")
	// ErrUnsupported marks files whose format is not GPX, TCX or FIT.
	ErrUnsupported = errors.New("unsupported activity file type")
)

// Parser turns one activity file into a track. Missing per-sample fields are
// left unset; only file-level decode failures are returned as errors.
type Parser interface {
	Parse(r io.Reader) (*models.Track, error)
	ParseFile(path string) (*models.Track, error)
}

func parseFile(p Parser, path string) (*models.Track, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return p.Parse(f)
}

func malformed(ft models.FileType, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrMalformed, ft, err)
}
