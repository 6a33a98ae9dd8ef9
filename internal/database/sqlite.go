// internal/database/sqlite.go
package database

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

type SQLiteDB struct {
	db *sql.DB
}

var _ Database = (*SQLiteDB)(nil)

// NewSQLiteDB opens (creating if needed) the catalogue at dbPath.
func NewSQLiteDB(dbPath string) (*SQLiteDB, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	sqlite, err := NewSQLiteDBFromDB(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return sqlite, nil
}

// NewSQLiteDBFromDB wraps an existing sql.DB connection and ensures the schema.
func NewSQLiteDBFromDB(db *sql.DB) (*SQLiteDB, error) {
	sqlite := &SQLiteDB{db: db}
	if err := sqlite.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return sqlite, nil
}

func (s *SQLiteDB) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS activities (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		activity_id INTEGER UNIQUE NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		start_time DATETIME NOT NULL,
		activity_type TEXT NOT NULL DEFAULT '',
		filename TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_activities_start_time ON activities(start_time);
	CREATE INDEX IF NOT EXISTS idx_activities_activity_type ON activities(activity_type);
	`
	_, err := s.db.Exec(schema)
	return err
}

const activityColumns = `id, activity_id, name, start_time, activity_type, filename, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanActivity(row scanner) (*Activity, error) {
	var a Activity
	if err := row.Scan(
		&a.ID, &a.ActivityID, &a.Name, &a.StartTime,
		&a.ActivityType, &a.Filename, &a.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *SQLiteDB) GetActivities(limit, offset int) ([]Activity, error) {
	query := `SELECT ` + activityColumns + `
	FROM activities
	ORDER BY start_time DESC, activity_id DESC
	LIMIT ? OFFSET ?`

	rows, err := s.db.Query(query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var activities []Activity
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		activities = append(activities, *a)
	}
	return activities, rows.Err()
}

func (s *SQLiteDB) GetActivity(activityID int) (*Activity, error) {
	query := `SELECT ` + activityColumns + ` FROM activities WHERE activity_id = ?`

	a, err := scanActivity(s.db.QueryRow(query, activityID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %d", ErrNotFound, activityID)
		}
		return nil, err
	}
	return a, nil
}

func (s *SQLiteDB) CreateActivity(activity *Activity) error {
	query := `
	INSERT INTO activities (activity_id, name, start_time, activity_type, filename)
	VALUES (?, ?, ?, ?, ?)`

	res, err := s.db.Exec(query,
		activity.ActivityID, activity.Name, activity.StartTime.UTC(),
		activity.ActivityType, activity.Filename,
	)
	if err != nil {
		return err
	}
	if id, err := res.LastInsertId(); err == nil {
		activity.ID = int(id)
	}
	return nil
}

func (s *SQLiteDB) CountActivities() (int, error) {
	var n int
	err := s.db.QueryRow("SELECT COUNT(*) FROM activities").Scan(&n)
	return n, err
}

func (s *SQLiteDB) Close() error {
	return s.db.Close()
}
