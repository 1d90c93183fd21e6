package recognition

import (
	"context"
	"fmt"
	"time"
)

// DayKey returns the calendar date of t in t's location, formatted as
// YYYY-MM-DD. Attendance deduplication is scoped to this calendar day, a
// midnight-to-midnight boundary, not a rolling 24-hour window.
func DayKey(t time.Time) string {
	return t.Format(time.DateOnly)
}

// RecordLookup reports whether an attendance record already exists for the
// (identity, session, day) triple. Supplied by the attendance store.
type RecordLookup func(ctx context.Context, identityID, sessionKey, day string) (bool, error)

// DedupDecision says whether a match should produce a new attendance record.
// An already-present record is a normal repeat detection, not an error: the
// match is still reported, only the write is suppressed.
type DedupDecision struct {
	Record         bool
	AlreadyPresent bool
}

// ShouldRecord decides whether to write an attendance record for the given
// identity and session at time now.
func ShouldRecord(ctx context.Context, identityID, sessionKey string, now time.Time, lookup RecordLookup) (DedupDecision, error) {
	exists, err := lookup(ctx, identityID, sessionKey, DayKey(now))
	if err != nil {
		return DedupDecision{}, fmt.Errorf("checking existing attendance: %w", err)
	}
	if exists {
		return DedupDecision{Record: false, AlreadyPresent: true}, nil
	}
	return DedupDecision{Record: true, AlreadyPresent: false}, nil
}
