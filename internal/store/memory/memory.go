// Package memory provides an in-memory store implementation. It backs unit
// tests and the zero-config single-process setup; the uniqueness invariants
// are enforced under a mutex so concurrent duplicate inserts never both win.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/eduvision/attendance/internal/store"
)

type attendanceKey struct {
	identityID string
	sessionKey string
	day        string
}

// Store is an in-memory store.Store. The exported *Error fields inject
// failures for tests; when set, the corresponding method returns that error.
type Store struct {
	mu         sync.RWMutex
	identities map[string]store.Identity
	attendance map[attendanceKey]store.AttendanceRecord

	ListError   error
	GetError    error
	CreateError error
	DeleteError error
	InsertError error
	LookupError error
	ReportError error
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		identities: make(map[string]store.Identity),
		attendance: make(map[attendanceKey]store.AttendanceRecord),
	}
}

func (s *Store) ListIdentities(ctx context.Context) ([]store.Identity, error) {
	if s.ListError != nil {
		return nil, s.ListError
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	identities := make([]store.Identity, 0, len(s.identities))
	for _, id := range s.identities {
		identities = append(identities, id)
	}
	return identities, nil
}

func (s *Store) GetIdentity(ctx context.Context, id string) (*store.Identity, error) {
	if s.GetError != nil {
		return nil, s.GetError
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	identity, ok := s.identities[id]
	if !ok {
		return nil, store.ErrIdentityNotFound
	}
	return &identity, nil
}

func (s *Store) CreateIdentity(ctx context.Context, identity store.Identity) error {
	if s.CreateError != nil {
		return s.CreateError
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.identities[identity.ID]; exists {
		return store.ErrIdentityExists
	}
	s.identities[identity.ID] = identity
	return nil
}

func (s *Store) DeleteIdentity(ctx context.Context, id string) error {
	if s.DeleteError != nil {
		return s.DeleteError
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.identities[id]; !exists {
		return store.ErrIdentityNotFound
	}
	delete(s.identities, id)
	return nil
}

func (s *Store) InsertAttendance(ctx context.Context, record store.AttendanceRecord) (store.Outcome, error) {
	if s.InsertError != nil {
		return store.Outcome{}, s.InsertError
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := attendanceKey{record.IdentityID, record.SessionKey, record.Day}
	if _, exists := s.attendance[key]; exists {
		return store.Outcome{Written: false, AlreadyPresent: true}, nil
	}
	s.attendance[key] = record
	return store.Outcome{Written: true, AlreadyPresent: false}, nil
}

func (s *Store) HasAttendance(ctx context.Context, identityID, sessionKey, day string) (bool, error) {
	if s.LookupError != nil {
		return false, s.LookupError
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, exists := s.attendance[attendanceKey{identityID, sessionKey, day}]
	return exists, nil
}

func (s *Store) ListRecentAttendance(ctx context.Context, limit int) ([]store.AttendanceRecord, error) {
	if s.ReportError != nil {
		return nil, s.ReportError
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]store.AttendanceRecord, 0, len(s.attendance))
	for _, r := range s.attendance {
		records = append(records, r)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].RecordedAt.After(records[j].RecordedAt)
	})
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

func (s *Store) AttendanceSummary(ctx context.Context, now time.Time) (store.Summary, error) {
	if s.ReportError != nil {
		return store.Summary{}, s.ReportError
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	today := now.Format(time.DateOnly)
	weekStart := now.AddDate(0, 0, -7)
	weekIdentities := make(map[string]struct{})

	summary := store.Summary{TotalIdentities: len(s.identities)}
	for _, r := range s.attendance {
		if r.Day == today {
			summary.TodayCount++
		}
		if !r.RecordedAt.Before(weekStart) {
			weekIdentities[r.IdentityID] = struct{}{}
		}
	}
	summary.WeekUnique = len(weekIdentities)
	return summary, nil
}

func (s *Store) DailyCounts(ctx context.Context, now time.Time, days int) ([]store.DayCount, error) {
	if s.ReportError != nil {
		return nil, s.ReportError
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	byDay := make(map[string]int)
	for _, r := range s.attendance {
		byDay[r.Day]++
	}
	counts := make([]store.DayCount, 0, len(byDay))
	for day, count := range byDay {
		counts = append(counts, store.DayCount{Day: day, Count: count})
	}
	return store.FillDailyCounts(counts, now, days), nil
}

func (s *Store) IdentityTotals(ctx context.Context) ([]store.IdentityTotal, error) {
	if s.ReportError != nil {
		return nil, s.ReportError
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	totals := make(map[string]*store.IdentityTotal)
	for _, r := range s.attendance {
		t, ok := totals[r.IdentityID]
		if !ok {
			t = &store.IdentityTotal{IdentityID: r.IdentityID}
			if identity, exists := s.identities[r.IdentityID]; exists {
				t.Name = identity.Name
			}
			totals[r.IdentityID] = t
		}
		t.Count++
		if r.RecordedAt.After(t.LastSeen) {
			t.LastSeen = r.RecordedAt
		}
	}

	result := make([]store.IdentityTotal, 0, len(totals))
	for _, t := range totals {
		result = append(result, *t)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].IdentityID < result[j].IdentityID
	})
	return result, nil
}

func (s *Store) SessionTotals(ctx context.Context) ([]store.SessionTotal, error) {
	if s.ReportError != nil {
		return nil, s.ReportError
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	bySession := make(map[string]int)
	for _, r := range s.attendance {
		bySession[r.SessionKey]++
	}
	result := make([]store.SessionTotal, 0, len(bySession))
	for key, count := range bySession {
		result = append(result, store.SessionTotal{SessionKey: key, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].SessionKey < result[j].SessionKey
	})
	return result, nil
}

func (s *Store) Close() error {
	return nil
}
