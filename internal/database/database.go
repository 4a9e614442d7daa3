package database

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite" // SQLite driver
)

// New creates a new database connection pool.
func New(path string) (*sql.DB, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("database path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err = db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	return db, nil
}

// Migrate runs the SQL statements to set up the database schema.
func Migrate(db *sql.DB) error {
	const sqlStmt = `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT NOT NULL PRIMARY KEY,
		email TEXT NOT NULL UNIQUE COLLATE NOCASE,
		name TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'student',
		password_hash TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		last_login INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS courses (
		id TEXT NOT NULL PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT NOT NULL,
		category TEXT NOT NULL,
		instructor_id TEXT NOT NULL REFERENCES users(id),
		capacity INTEGER NOT NULL CHECK (capacity >= 1),
		start_date INTEGER NOT NULL,
		end_date INTEGER NOT NULL,
		status TEXT NOT NULL DEFAULT 'draft',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	-- Single source of truth for both Course.enrolledStudents and User.enrolledCourses.
	CREATE TABLE IF NOT EXISTS enrollments (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		course_id TEXT NOT NULL REFERENCES courses(id),
		user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		enrolled_at INTEGER NOT NULL,
		UNIQUE (course_id, user_id)
	);
	CREATE INDEX IF NOT EXISTS idx_enrollments_user ON enrollments(user_id);

	CREATE TABLE IF NOT EXISTS events (
		id TEXT NOT NULL PRIMARY KEY,
		type TEXT NOT NULL,
		level TEXT NOT NULL,
		message TEXT NOT NULL,
		course_id TEXT,
		user_id TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_events_created ON events(created_at);
	`
	if _, err := db.Exec(sqlStmt); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
