// Package storage persists tracked profiles, found shows, and scan history
// in SQLite.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"showfinder/shows"
)

// ErrNotFound is returned when a record is not found.
var ErrNotFound = errors.New("not found")

// ErrProfileExists is returned when adding a profile that is already tracked.
var ErrProfileExists = errors.New("profile already tracked")

// DB wraps the SQLite database connection and provides storage operations.
type DB struct {
	conn *sql.DB
}

// NewDB creates a new database connection and initializes the schema.
func NewDB(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS profiles (
		username TEXT PRIMARY KEY,
		link TEXT NOT NULL,
		nickname TEXT NOT NULL DEFAULT '',
		added_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS shows (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		scan_id TEXT NOT NULL,
		post_url TEXT NOT NULL,
		username TEXT NOT NULL,
		display_name TEXT NOT NULL,
		caption TEXT NOT NULL DEFAULT '',
		show_date TEXT NOT NULL,
		location TEXT NOT NULL,
		show_time TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_shows_date ON shows(show_date);

	CREATE TABLE IF NOT EXISTS scans (
		id TEXT PRIMARY KEY,
		started_at DATETIME NOT NULL,
		finished_at DATETIME NOT NULL,
		profiles INTEGER NOT NULL DEFAULT 0,
		posts INTEGER NOT NULL DEFAULT 0,
		shows INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		error TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`

	_, err := db.conn.Exec(schema)
	return err
}

// AddProfile starts tracking a profile.
func (db *DB) AddProfile(ctx context.Context, p shows.Profile) error {
	query := `
	INSERT OR IGNORE INTO profiles (username, link, nickname, added_at)
	VALUES (?, ?, ?, ?)
	`
	res, err := db.conn.ExecContext(ctx, query, p.Username, p.Link, p.Nickname, p.AddedAt)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrProfileExists
	}
	return nil
}

// GetProfile retrieves a tracked profile by username.
func (db *DB) GetProfile(ctx context.Context, username string) (*shows.Profile, error) {
	query := `SELECT username, link, nickname, added_at FROM profiles WHERE username = ?`

	p := &shows.Profile{}
	err := db.conn.QueryRowContext(ctx, query, username).Scan(&p.Username, &p.Link, &p.Nickname, &p.AddedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// ListProfiles returns all tracked profiles in the order they were added.
func (db *DB) ListProfiles(ctx context.Context) ([]shows.Profile, error) {
	query := `SELECT username, link, nickname, added_at FROM profiles ORDER BY added_at, username`

	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []shows.Profile
	for rows.Next() {
		var p shows.Profile
		if err := rows.Scan(&p.Username, &p.Link, &p.Nickname, &p.AddedAt); err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

// RemoveProfile stops tracking a profile.
func (db *DB) RemoveProfile(ctx context.Context, username string) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM profiles WHERE username = ?`, username)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateNickname sets the display nickname of a tracked profile.
func (db *DB) UpdateNickname(ctx context.Context, username, nickname string) error {
	res, err := db.conn.ExecContext(ctx, `UPDATE profiles SET nickname = ? WHERE username = ?`, nickname, username)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Nickname returns the stored nickname of a profile, which may be empty.
func (db *DB) Nickname(ctx context.Context, username string) (string, error) {
	var nickname string
	err := db.conn.QueryRowContext(ctx, `SELECT nickname FROM profiles WHERE username = ?`, username).Scan(&nickname)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	return nickname, err
}

// ReplaceShows replaces the stored shows with the results of a scan.
func (db *DB) ReplaceShows(ctx context.Context, scanID string, list []shows.Show) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM shows`); err != nil {
		return fmt.Errorf("clear shows: %w", err)
	}

	query := `
	INSERT INTO shows (scan_id, post_url, username, display_name, caption, show_date, location, show_time)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	for _, s := range list {
		_, err := tx.ExecContext(ctx, query,
			scanID, s.PostURL, s.Username, s.DisplayName, s.Caption, s.Date, s.Location, s.Time)
		if err != nil {
			return fmt.Errorf("insert show: %w", err)
		}
	}

	return tx.Commit()
}

// ListShows returns all stored shows, dated ones first in date order,
// undated ones last.
func (db *DB) ListShows(ctx context.Context) ([]shows.Show, error) {
	query := `
	SELECT post_url, username, display_name, caption, show_date, location, show_time
	FROM shows
	ORDER BY CASE WHEN show_date = ? THEN 1 ELSE 0 END, show_date, id
	`
	return db.queryShows(ctx, query, shows.Unknown)
}

// ShowsOn returns stored shows on the given date (YYYY-MM-DD).
func (db *DB) ShowsOn(ctx context.Context, date string) ([]shows.Show, error) {
	query := `
	SELECT post_url, username, display_name, caption, show_date, location, show_time
	FROM shows WHERE show_date = ? ORDER BY id
	`
	return db.queryShows(ctx, query, date)
}

func (db *DB) queryShows(ctx context.Context, query string, args ...any) ([]shows.Show, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []shows.Show
	for rows.Next() {
		var s shows.Show
		if err := rows.Scan(&s.PostURL, &s.Username, &s.DisplayName, &s.Caption, &s.Date, &s.Location, &s.Time); err != nil {
			return nil, err
		}
		list = append(list, s)
	}
	return list, rows.Err()
}

// RecordScan stores a scan record.
func (db *DB) RecordScan(ctx context.Context, scan *shows.Scan) error {
	query := `
	INSERT INTO scans (id, started_at, finished_at, profiles, posts, shows, status, error)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		finished_at = excluded.finished_at,
		profiles = excluded.profiles,
		posts = excluded.posts,
		shows = excluded.shows,
		status = excluded.status,
		error = excluded.error
	`
	_, err := db.conn.ExecContext(ctx, query,
		scan.ID, scan.StartedAt, scan.FinishedAt,
		scan.Profiles, scan.Posts, scan.Shows, scan.Status, scan.Error)
	return err
}

// LastScan returns the most recent scan record.
func (db *DB) LastScan(ctx context.Context) (*shows.Scan, error) {
	query := `
	SELECT id, started_at, finished_at, profiles, posts, shows, status, error
	FROM scans ORDER BY started_at DESC LIMIT 1
	`

	scan := &shows.Scan{}
	err := db.conn.QueryRowContext(ctx, query).Scan(
		&scan.ID, &scan.StartedAt, &scan.FinishedAt,
		&scan.Profiles, &scan.Posts, &scan.Shows, &scan.Status, &scan.Error)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return scan, nil
}

// GetSetting retrieves a setting value by key.
func (db *DB) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := db.conn.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	return value, err
}

// SetSetting stores or updates a setting.
func (db *DB) SetSetting(ctx context.Context, key, value string) error {
	query := `
	INSERT INTO settings (key, value) VALUES (?, ?)
	ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`
	_, err := db.conn.ExecContext(ctx, query, key, value)
	return err
}
