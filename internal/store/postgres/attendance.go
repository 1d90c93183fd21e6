package postgres

import (
	"context"
	"time"

	"github.com/eduvision/attendance/internal/store"
)

func (s *Store) InsertAttendance(ctx context.Context, record store.AttendanceRecord) (store.Outcome, error) {
	// ON CONFLICT DO NOTHING against the unique (identity_id, session_key,
	// day) index makes the existence check and the insert one atomic
	// statement; a lost race surfaces as zero affected rows.
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO attendance (id, identity_id, session_key, day, confidence, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (identity_id, session_key, day) DO NOTHING
	`, record.ID, record.IdentityID, record.SessionKey, record.Day, record.Confidence, record.RecordedAt)
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
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM attendance
			WHERE identity_id = $1 AND session_key = $2 AND day = $3
		)
	`, identityID, sessionKey, day).Scan(&exists)
	if err != nil {
		return false, wrap("attendance lookup", err)
	}
	return exists, nil
}

func (s *Store) ListRecentAttendance(ctx context.Context, limit int) ([]store.AttendanceRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, identity_id, session_key, day, confidence, recorded_at
		FROM attendance
		ORDER BY recorded_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, wrap("list attendance", err)
	}
	defer rows.Close()

	var records []store.AttendanceRecord
	for rows.Next() {
		var (
			r   store.AttendanceRecord
			day time.Time
		)
		if err := rows.Scan(&r.ID, &r.IdentityID, &r.SessionKey, &day, &r.Confidence, &r.RecordedAt); err != nil {
			return nil, wrap("scan attendance", err)
		}
		r.Day = day.Format(time.DateOnly)
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
		`SELECT COUNT(*) FROM attendance WHERE day = $1`, today).Scan(&summary.TodayCount); err != nil {
		return store.Summary{}, wrap("summary today", err)
	}
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM identities`).Scan(&summary.TotalIdentities); err != nil {
		return store.Summary{}, wrap("summary identities", err)
	}
	weekStart := now.AddDate(0, 0, -7)
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT identity_id) FROM attendance WHERE recorded_at >= $1`, weekStart).Scan(&summary.WeekUnique); err != nil {
		return store.Summary{}, wrap("summary week", err)
	}
	return summary, nil
}

func (s *Store) DailyCounts(ctx context.Context, now time.Time, days int) ([]store.DayCount, error) {
	since := now.AddDate(0, 0, -(days - 1)).Format(time.DateOnly)
	rows, err := s.db.QueryContext(ctx, `
		SELECT day, COUNT(*) FROM attendance WHERE day >= $1 GROUP BY day
	`, since)
	if err != nil {
		return nil, wrap("daily counts", err)
	}
	defer rows.Close()

	var counts []store.DayCount
	for rows.Next() {
		var (
			day   time.Time
			count int
		)
		if err := rows.Scan(&day, &count); err != nil {
			return nil, wrap("scan daily count", err)
		}
		counts = append(counts, store.DayCount{Day: day.Format(time.DateOnly), Count: count})
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("daily counts", err)
	}
	return store.FillDailyCounts(counts, now, days), nil
}

func (s *Store) IdentityTotals(ctx context.Context) ([]store.IdentityTotal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT a.identity_id, COALESCE(i.name, ''), COUNT(*), MAX(a.recorded_at)
		FROM attendance a
		LEFT JOIN identities i ON i.identity_id = a.identity_id
		GROUP BY a.identity_id, i.name
		ORDER BY COUNT(*) DESC, a.identity_id
	`)
	if err != nil {
		return nil, wrap("identity totals", err)
	}
	defer rows.Close()

	var totals []store.IdentityTotal
	for rows.Next() {
		var t store.IdentityTotal
		if err := rows.Scan(&t.IdentityID, &t.Name, &t.Count, &t.LastSeen); err != nil {
			return nil, wrap("scan identity total", err)
		}
		totals = append(totals, t)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("identity totals", err)
	}
	return totals, nil
}

func (s *Store) SessionTotals(ctx context.Context) ([]store.SessionTotal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_key, COUNT(*) FROM attendance
		GROUP BY session_key ORDER BY COUNT(*) DESC, session_key
	`)
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
