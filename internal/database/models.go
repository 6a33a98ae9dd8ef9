// internal/database/models.go
package database

import (
	"errors"
	"time"
)

// ErrNotFound is returned when no activity has the requested id.
var ErrNotFound = errors.New("activity not found")

// Activity is one catalogued upload. Filename is relative to the activity
// base directory, in the form <subdir>/<name>[.gz].
type Activity struct {
	ID           int       `json:"id"`
	ActivityID   int       `json:"activity_id"`
	Name         string    `json:"name"`
	StartTime    time.Time `json:"start_time"`
	ActivityType string    `json:"activity_type"`
	Filename     string    `json:"filename"`
	CreatedAt    time.Time `json:"created_at"`
}

// Database is the read/write surface the commands need.
type Database interface {
	GetActivities(limit, offset int) ([]Activity, error)
	GetActivity(activityID int) (*Activity, error)
	CreateActivity(activity *Activity) error
	CountActivities() (int, error)
	Close() error
}
