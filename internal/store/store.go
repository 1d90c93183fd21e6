// Package store defines the storage capability the attendance engine needs.
// Any backend implementing Store is interchangeable: identities with a
// uniqueness constraint on identity_id, attendance inserts with a
// uniqueness constraint on (identity_id, session_key, day), and the report
// reads the dashboard uses.
package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrIdentityExists is returned when enrolling an identity id that is
	// already enrolled. Re-enrollment is delete-then-create, never a merge.
	ErrIdentityExists = errors.New("identity already exists")

	// ErrIdentityNotFound is returned for lookups and deletes of unknown ids.
	ErrIdentityNotFound = errors.New("identity not found")

	// ErrUnavailable marks storage errors caused by the backend being
	// unreachable or failing. Callers get it via errors.Is; the engine does
	// not retry.
	ErrUnavailable = errors.New("storage unavailable")
)

// Identity is an enrolled person. Embedding is the canonical embedding,
// the element-wise mean of SampleCount enrollment samples. Immutable after
// enrollment.
type Identity struct {
	ID          string    `json:"identity_id"`
	Name        string    `json:"name"`
	Embedding   []float32 `json:"-"`
	SampleCount int       `json:"sample_count"`
	EnrolledAt  time.Time `json:"enrolled_at"`
}

// AttendanceRecord is one attendance event. At most one record exists per
// (IdentityID, SessionKey, Day); Day is the local calendar date YYYY-MM-DD.
type AttendanceRecord struct {
	ID         string    `json:"id"`
	IdentityID string    `json:"identity_id"`
	SessionKey string    `json:"session_key"`
	Day        string    `json:"day"`
	Confidence float64   `json:"confidence"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Outcome reports the result of an attendance insert. A uniqueness conflict
// is not an error: Written=false, AlreadyPresent=true.
type Outcome struct {
	Written        bool `json:"written"`
	AlreadyPresent bool `json:"already_present"`
}

// Summary holds the dashboard headline numbers.
type Summary struct {
	TodayCount      int `json:"today_count"`
	TotalIdentities int `json:"total_identities"`
	WeekUnique      int `json:"week_unique"`
}

// DayCount is the number of attendance records on one calendar day.
type DayCount struct {
	Day   string `json:"day"`
	Count int    `json:"count"`
}

// IdentityTotal aggregates attendance per identity.
type IdentityTotal struct {
	IdentityID string    `json:"identity_id"`
	Name       string    `json:"name"`
	Count      int       `json:"count"`
	LastSeen   time.Time `json:"last_seen"`
}

// SessionTotal aggregates attendance per session key.
type SessionTotal struct {
	SessionKey string `json:"session_key"`
	Count      int    `json:"count"`
}

// IdentityStore owns the set of enrolled identities.
type IdentityStore interface {
	// ListIdentities returns a point-in-time snapshot of all identities.
	// No enumeration order is guaranteed.
	ListIdentities(ctx context.Context) ([]Identity, error)

	// GetIdentity returns one identity or ErrIdentityNotFound.
	GetIdentity(ctx context.Context, id string) (*Identity, error)

	// CreateIdentity inserts a new identity. Returns ErrIdentityExists when
	// the id is already enrolled.
	CreateIdentity(ctx context.Context, identity Identity) error

	// DeleteIdentity removes an identity or returns ErrIdentityNotFound.
	DeleteIdentity(ctx context.Context, id string) error
}

// AttendanceStore owns the set of attendance records.
type AttendanceStore interface {
	// InsertAttendance atomically inserts a record unless one already exists
	// for the same (identity, session, day) triple. The check and insert are
	// a single critical section: concurrent duplicates never both write.
	InsertAttendance(ctx context.Context, record AttendanceRecord) (Outcome, error)

	// HasAttendance reports whether a record exists for the triple.
	HasAttendance(ctx context.Context, identityID, sessionKey, day string) (bool, error)

	// ListRecentAttendance returns the most recent records, newest first.
	ListRecentAttendance(ctx context.Context, limit int) ([]AttendanceRecord, error)

	// AttendanceSummary computes the headline numbers relative to now.
	AttendanceSummary(ctx context.Context, now time.Time) (Summary, error)

	// DailyCounts returns per-day totals for the `days` calendar days ending
	// at now, oldest first. Days with no records are included with zero.
	DailyCounts(ctx context.Context, now time.Time, days int) ([]DayCount, error)

	// IdentityTotals returns per-identity totals, most attendance first.
	IdentityTotals(ctx context.Context) ([]IdentityTotal, error)

	// SessionTotals returns per-session totals, most attendance first.
	SessionTotals(ctx context.Context) ([]SessionTotal, error)
}

// Store is the full capability set a backend provides.
type Store interface {
	IdentityStore
	AttendanceStore
	Close() error
}
