package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/sstent/activityplot-go/internal/database"
)

var (
	ErrFileNotFound  = errors.New("activity file not found")
	ErrMalformedFile = errors.New("could not read activity file")
	// ErrOutsideBase is returned for stored filenames that do not resolve
	// inside the base directory.
	ErrOutsideBase = errors.New("activity filename escapes base directory")
)

// Error is a fatal failure for one activity. Kind is ErrFileNotFound or
// ErrMalformedFile; Err is the underlying cause.
type Error struct {
	ActivityID string
	Kind       error
	Err        error
}

func (e *Error) Error() string {
	if e.ActivityID == "" {
		return fmt.Sprintf("%v: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("activity %s: %v: %v", e.ActivityID, e.Kind, e.Err)
}

func (e *Error) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

func classify(activityID string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("activity %s: %w", activityID, err)
	case errors.Is(err, fs.ErrNotExist),
		errors.Is(err, database.ErrNotFound),
		errors.Is(err, ErrOutsideBase):
		return &Error{ActivityID: activityID, Kind: ErrFileNotFound, Err: err}
	default:
		// Decode failures (parser.ErrMalformed, parser.ErrUnsupported,
		// staging.ErrCorrupt) and read errors all mean the file is unusable.
		return &Error{ActivityID: activityID, Kind: ErrMalformedFile, Err: err}
	}
}

// UserMessage returns the one line shown to a user for a failed activity.
// Unsupported formats, corrupt archives and decode failures all read as
// MalformedFile.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrFileNotFound):
		return ErrFileNotFound.Error()
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "request cancelled"
	default:
		return ErrMalformedFile.Error()
	}
}
