// Package archive keeps an append-only log of every lookup attempt in a
// SQLite database, alongside the store file.
package archive

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// ErrDisabled is reported when no archive database is configured.
var ErrDisabled = errors.New("attempt archive is disabled")

// Entry is one archived attempt and the record state it produced.
type Entry struct {
	SatelliteID string    `json:"id"`
	CheckedAt   time.Time `json:"checkedAt"`
	Outcome     string    `json:"outcome"`
	SatName     *string   `json:"satname"`
	Lat         *float64  `json:"lat,omitempty"`
	Lon         *float64  `json:"lon,omitempty"`
	T           *int64    `json:"t,omitempty"`
	FailCount   int       `json:"failCount"`
	Decayed     bool      `json:"decayed"`
	Error       string    `json:"error,omitempty"`
}

// DB wraps a SQLite database connection for the attempt log.
type DB struct {
	db *sql.DB
}

// Open opens or creates the archive database at path.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if err := createSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &DB{db: db}, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS attempts (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL,
		checked_at INTEGER NOT NULL,
		outcome TEXT NOT NULL,
		satname TEXT,
		lat REAL,
		lon REAL,
		t INTEGER,
		fail_count INTEGER NOT NULL,
		decayed INTEGER NOT NULL DEFAULT 0,
		error TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_attempts_id ON attempts(id, seq);
	CREATE INDEX IF NOT EXISTS idx_attempts_checked_at ON attempts(checked_at);
	`
	_, err := db.Exec(schema)
	return err
}

// Append stores entries in one transaction, in order.
func (d *DB) Append(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO attempts (id, checked_at, outcome, satname, lat, lon, t, fail_count, decayed, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		var errText sql.NullString
		if e.Error != "" {
			errText = sql.NullString{String: e.Error, Valid: true}
		}
		_, err := stmt.ExecContext(ctx,
			e.SatelliteID, e.CheckedAt.Unix(), e.Outcome, nullString(e.SatName),
			nullFloat(e.Lat), nullFloat(e.Lon), nullInt(e.T),
			e.FailCount, e.Decayed, errText,
		)
		if err != nil {
			return fmt.Errorf("insert attempt for %s: %w", e.SatelliteID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Recent returns up to limit attempts for id, newest first.
func (d *DB) Recent(ctx context.Context, id string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := d.db.QueryContext(ctx, `
		SELECT id, checked_at, outcome, satname, lat, lon, t, fail_count, decayed, error
		FROM attempts
		WHERE id = ?
		ORDER BY seq DESC
		LIMIT ?
	`, id, limit)
	if err != nil {
		return nil, fmt.Errorf("query attempts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Entry
	for rows.Next() {
		var e Entry
		var checkedAt int64
		var satname, errText sql.NullString
		var lat, lon sql.NullFloat64
		var ts sql.NullInt64

		if err := rows.Scan(&e.SatelliteID, &checkedAt, &e.Outcome, &satname, &lat, &lon, &ts, &e.FailCount, &e.Decayed, &errText); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}

		e.CheckedAt = time.Unix(checkedAt, 0).UTC()
		if satname.Valid {
			e.SatName = &satname.String
		}
		if lat.Valid {
			e.Lat = &lat.Float64
		}
		if lon.Valid {
			e.Lon = &lon.Float64
		}
		if ts.Valid {
			e.T = &ts.Int64
		}
		e.Error = errText.String
		out = append(out, e)
	}

	return out, rows.Err()
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func nullInt(i *int64) sql.NullInt64 {
	if i == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *i, Valid: true}
}
