// Package sqlite implements store.Store on modernc.org/sqlite, a pure Go
// driver. It is the default backend for single-node deployments.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/eduvision/attendance/internal/store"
)

// Store is a SQLite-backed store.Store.
type Store struct {
	db *sql.DB
}

// New opens a SQLite database at the given path, configures WAL mode and
// applies the schema.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	// Single connection; SQLite allows one writer at a time anyway.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite: exec %s: %w", pragma, err)
		}
	}

	s := &Store{db: db}
	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS identities (
	identity_id  TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	embedding    TEXT NOT NULL,
	sample_count INTEGER NOT NULL,
	enrolled_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS attendance (
	id          TEXT PRIMARY KEY,
	identity_id TEXT NOT NULL,
	session_key TEXT NOT NULL,
	day         TEXT NOT NULL,
	confidence  REAL NOT NULL,
	recorded_at TEXT NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_attendance_identity_session_day
	ON attendance(identity_id, session_key, day);
CREATE INDEX IF NOT EXISTS idx_attendance_day ON attendance(day);
CREATE INDEX IF NOT EXISTS idx_attendance_session ON attendance(session_key);
`

func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return wrap("migrate", err)
	}
	return nil
}

// wrap marks backend failures as storage-unavailable so callers can use
// errors.Is(err, store.ErrUnavailable) without knowing the driver.
func wrap(op string, err error) error {
	return fmt.Errorf("sqlite: %s: %w", op, errors.Join(store.ErrUnavailable, err))
}

// Timestamps are stored as RFC3339 UTC text, so lexicographic comparison in
// SQL matches chronological order.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("sqlite: parse timestamp %q: %w", s, err)
	}
	return t, nil
}

func (s *Store) ListIdentities(ctx context.Context) ([]store.Identity, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT identity_id, name, embedding, sample_count, enrolled_at FROM identities`)
	if err != nil {
		return nil, wrap("list identities", err)
	}
	defer rows.Close()

	var identities []store.Identity
	for rows.Next() {
		identity, err := scanIdentity(rows)
		if err != nil {
			return nil, err
		}
		identities = append(identities, *identity)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("list identities", err)
	}
	return identities, nil
}

func (s *Store) GetIdentity(ctx context.Context, id string) (*store.Identity, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT identity_id, name, embedding, sample_count, enrolled_at FROM identities WHERE identity_id = ?`, id)

	identity, err := scanIdentity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrIdentityNotFound
	}
	return identity, err
}

func (s *Store) CreateIdentity(ctx context.Context, identity store.Identity) error {
	embedding, err := json.Marshal(identity.Embedding)
	if err != nil {
		return fmt.Errorf("sqlite: marshal embedding: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO identities (identity_id, name, embedding, sample_count, enrolled_at)
		 VALUES (?, ?, ?, ?, ?)`,
		identity.ID, identity.Name, string(embedding), identity.SampleCount, formatTime(identity.EnrolledAt))
	if err != nil {
		return wrap("insert identity", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return wrap("insert identity", err)
	}
	if affected == 0 {
		return store.ErrIdentityExists
	}
	return nil
}

func (s *Store) DeleteIdentity(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM identities WHERE identity_id = ?`, id)
	if err != nil {
		return wrap("delete identity", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return wrap("delete identity", err)
	}
	if affected == 0 {
		return store.ErrIdentityNotFound
	}
	return nil
}

func (s *Store) InsertAttendance(ctx context.Context, record store.AttendanceRecord) (store.Outcome, error) {
	// INSERT OR IGNORE with the unique index on (identity_id, session_key,
	// day) makes the existence check and the insert a single atomic step.
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO attendance (id, identity_id, session_key, day, confidence, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		record.ID, record.IdentityID, record.SessionKey, record.Day, record.Confidence, formatTime(record.RecordedAt))
	if err != nil {
		return store.Outcome{}, wrap("insert attendance", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return store.Outcome{}, wrap("insert attendance", err)
	}
	if affected == 0 {
		return store.Outcome{Written: false, AlreadyPresent: true}, nil
	}
	return store.Outcome{Written: true, AlreadyPresent: false}, nil
}

func (s *Store) HasAttendance(ctx context.Context, identityID, sessionKey, day string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM attendance WHERE identity_id = ? AND session_key = ? AND day = ?)`,
		identityID, sessionKey, day).Scan(&exists)
	if err != nil {
		return false, wrap("attendance lookup", err)
	}
	return exists, nil
}

func (s *Store) ListRecentAttendance(ctx context.Context, limit int) ([]store.AttendanceRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, identity_id, session_key, day, confidence, recorded_at
		 FROM attendance ORDER BY recorded_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, wrap("list attendance", err)
	}
	defer rows.Close()

	var records []store.AttendanceRecord
	for rows.Next() {
		var (
			r          store.AttendanceRecord
			recordedAt string
		)
		if err := rows.Scan(&r.ID, &r.IdentityID, &r.SessionKey, &r.Day, &r.Confidence, &recordedAt); err != nil {
			return nil, wrap("scan attendance", err)
		}
		if r.RecordedAt, err = parseTime(recordedAt); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("list attendance", err)
	}
	return records, nil
}

func (s *Store) AttendanceSummary(ctx context.Context, now time.Time) (store.Summary, error) {
	var summary store.Summary

	today := now.Format(time.DateOnly)
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM attendance WHERE day = ?`, today).Scan(&summary.TodayCount); err != nil {
		return store.Summary{}, wrap("summary today", err)
	}
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM identities`).Scan(&summary.TotalIdentities); err != nil {
		return store.Summary{}, wrap("summary identities", err)
	}
	weekStart := formatTime(now.AddDate(0, 0, -7))
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT identity_id) FROM attendance WHERE recorded_at >= ?`, weekStart).Scan(&summary.WeekUnique); err != nil {
		return store.Summary{}, wrap("summary week", err)
	}
	return summary, nil
}

func (s *Store) DailyCounts(ctx context.Context, now time.Time, days int) ([]store.DayCount, error) {
	since := now.AddDate(0, 0, -(days - 1)).Format(time.DateOnly)
	rows, err := s.db.QueryContext(ctx,
		`SELECT day, COUNT(*) FROM attendance WHERE day >= ? GROUP BY day`, since)
	if err != nil {
		return nil, wrap("daily counts", err)
	}
	defer rows.Close()

	var counts []store.DayCount
	for rows.Next() {
		var c store.DayCount
		if err := rows.Scan(&c.Day, &c.Count); err != nil {
			return nil, wrap("scan daily count", err)
		}
		counts = append(counts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("daily counts", err)
	}
	return store.FillDailyCounts(counts, now, days), nil
}

func (s *Store) IdentityTotals(ctx context.Context) ([]store.IdentityTotal, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT a.identity_id, COALESCE(i.name, ''), COUNT(*), MAX(a.recorded_at)
		 FROM attendance a
		 LEFT JOIN identities i ON i.identity_id = a.identity_id
		 GROUP BY a.identity_id
		 ORDER BY COUNT(*) DESC, a.identity_id`)
	if err != nil {
		return nil, wrap("identity totals", err)
	}
	defer rows.Close()

	var totals []store.IdentityTotal
	for rows.Next() {
		var (
			t        store.IdentityTotal
			lastSeen string
		)
		if err := rows.Scan(&t.IdentityID, &t.Name, &t.Count, &lastSeen); err != nil {
			return nil, wrap("scan identity total", err)
		}
		if t.LastSeen, err = parseTime(lastSeen); err != nil {
			return nil, err
		}
		totals = append(totals, t)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("identity totals", err)
	}
	return totals, nil
}

func (s *Store) SessionTotals(ctx context.Context) ([]store.SessionTotal, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_key, COUNT(*) FROM attendance
		 GROUP BY session_key ORDER BY COUNT(*) DESC, session_key`)
	if err != nil {
		return nil, wrap("session totals", err)
	}
	defer rows.Close()

	var totals []store.SessionTotal
	for rows.Next() {
		var t store.SessionTotal
		if err := rows.Scan(&t.SessionKey, &t.Count); err != nil {
			return nil, wrap("scan session total", err)
		}
		totals = append(totals, t)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("session totals", err)
	}
	return totals, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanIdentity(row scanner) (*store.Identity, error) {
	var (
		identity   store.Identity
		embedding  string
		enrolledAt string
	)
	if err := row.Scan(&identity.ID, &identity.Name, &embedding, &identity.SampleCount, &enrolledAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, wrap("scan identity", err)
	}
	if err := json.Unmarshal([]byte(embedding), &identity.Embedding); err != nil {
		return nil, fmt.Errorf("sqlite: unmarshal embedding: %w", err)
	}
	var err error
	if identity.EnrolledAt, err = parseTime(enrolledAt); err != nil {
		return nil, err
	}
	return &identity, nil
}
