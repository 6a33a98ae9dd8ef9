package parser

import (
	"fmt"

	"github.com/sstent/activityplot-go/internal/models"
)

// NewParser returns the parser for a file type.
func NewParser(ft models.FileType) (Parser, error) {
	switch ft {
	case models.FileTypeFIT:
		return NewFITParser(), nil
	case models.FileTypeTCX:
		return NewTCXParser(), nil
	case models.FileTypeGPX:
		return NewGPXParser(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, ft)
	}
}

// ForFile picks a parser from the name of the file, falling back to its
// content when the extension is not recognised.
func ForFile(path string) (Parser, models.FileType, error) {
	ft := FileTypeFromName(path)
	if ft == models.FileTypeUnknown {
		var err error
		ft, err = DetectFileType(path)
		if err != nil {
			return nil, ft, fmt.Errorf("failed to detect file type: %w", err)
		}
	}
	p, err := NewParser(ft)
	if err != nil {
		return nil, ft, err
	}
	return p, ft, nil
}
