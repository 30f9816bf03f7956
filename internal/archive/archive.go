// Package archive keeps a local SQLite journal of stopped sessions.
package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"formvoice/native/internal/domain"
)

// Entry is one archived session.
type Entry struct {
	ID            int64
	SessionID     string
	Model         string
	Mode          string
	StartedAt     time.Time
	StoppedAt     time.Time
	Turns         []domain.ExportedTurn
	Verified      domain.VerifiedFields
	SaveStatus    string
	AnalyzeStatus string
	Extracted     map[string]string
}

// Archive is the session journal.
type Archive struct {
	db *sql.DB
}

// Open opens (creating if needed) the journal database at path.
func Open(ctx context.Context, path string) (*Archive, error) {
	db, err := sql.Open("sqlite", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping archive: %w", err)
	}

	a := &Archive{db: db}
	if err := a.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize archive schema: %w", err)
	}
	return a, nil
}

// Close closes the database.
func (a *Archive) Close() error {
	return a.db.Close()
}

func (a *Archive) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id             INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id     TEXT NOT NULL,
		model          TEXT NOT NULL,
		mode           TEXT NOT NULL,
		started_at     INTEGER NOT NULL,
		stopped_at     INTEGER NOT NULL,
		turns          TEXT NOT NULL,
		verified       TEXT NOT NULL,
		save_status    TEXT NOT NULL,
		analyze_status TEXT NOT NULL,
		extracted      TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_stopped ON sessions(stopped_at);
	`
	_, err := a.db.ExecContext(ctx, schema)
	return err
}

// Record appends rec to the journal.
func (a *Archive) Record(ctx context.Context, rec domain.ArchiveRecord) error {
	turns, err := json.Marshal(nonNilTurns(rec.Turns))
	if err != nil {
		return fmt.Errorf("failed to encode turns: %w", err)
	}
	verified, err := json.Marshal(nonNilMap(rec.Verified))
	if err != nil {
		return fmt.Errorf("failed to encode verified fields: %w", err)
	}
	extracted, err := json.Marshal(nonNilMap(rec.Extracted))
	if err != nil {
		return fmt.Errorf("failed to encode extracted answers: %w", err)
	}

	_, err = a.db.ExecContext(ctx, `
		INSERT INTO sessions (session_id, model, mode, started_at, stopped_at, turns, verified, save_status, analyze_status, extracted)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.SessionID, rec.Model, rec.Mode,
		rec.StartedAt.UnixMilli(), rec.StoppedAt.UnixMilli(),
		string(turns), string(verified), rec.SaveStatus, rec.AnalyzeStatus, string(extracted),
	)
	if err != nil {
		return fmt.Errorf("failed to record session %s: %w", rec.SessionID, err)
	}
	return nil
}

// List returns the most recently stopped sessions, newest first. A non-positive limit
// returns everything.
func (a *Archive) List(ctx context.Context, limit int) ([]Entry, error) {
	query := `
		SELECT id, session_id, model, mode, started_at, stopped_at, turns, verified, save_status, analyze_status, extracted
		FROM sessions ORDER BY stopped_at DESC, id DESC`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query archive: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e                          Entry
			started, stopped           int64
			turns, verified, extracted string
		)
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Model, &e.Mode, &started, &stopped,
			&turns, &verified, &e.SaveStatus, &e.AnalyzeStatus, &extracted); err != nil {
			return nil, fmt.Errorf("failed to scan archive row: %w", err)
		}
		e.StartedAt = time.UnixMilli(started)
		e.StoppedAt = time.UnixMilli(stopped)
		if err := json.Unmarshal([]byte(turns), &e.Turns); err != nil {
			return nil, fmt.Errorf("session %s: bad turns: %w", e.SessionID, err)
		}
		if err := json.Unmarshal([]byte(verified), &e.Verified); err != nil {
			return nil, fmt.Errorf("session %s: bad verified fields: %w", e.SessionID, err)
		}
		if err := json.Unmarshal([]byte(extracted), &e.Extracted); err != nil {
			return nil, fmt.Errorf("session %s: bad extracted answers: %w", e.SessionID, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func nonNilTurns(t []domain.ExportedTurn) []domain.ExportedTurn {
	if t == nil {
		return []domain.ExportedTurn{}
	}
	return t
}

func nonNilMap[M ~map[string]string](m M) M {
	if m == nil {
		return M{}
	}
	return m
}

var _ domain.Archive = (*Archive)(nil)
