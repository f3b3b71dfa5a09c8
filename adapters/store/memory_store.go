package store

import (
	"context"
	"sort"
	"sync"

	"github.com/layer-3/secatt/core"
	"github.com/layer-3/secatt/ports"
)

// MemoryStore is an in-memory implementation of the AttendanceStore interface
type MemoryStore struct {
	records map[string]map[string]core.AttendanceRecord // session id -> student id -> record
	mu      sync.RWMutex
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() ports.AttendanceStore {
	return &MemoryStore{
		records: make(map[string]map[string]core.AttendanceRecord),
	}
}

// Record stores an attendance record
func (s *MemoryStore) Record(ctx context.Context, rec core.AttendanceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	bySession, ok := s.records[rec.SessionID]
	if !ok {
		bySession = make(map[string]core.AttendanceRecord)
		s.records[rec.SessionID] = bySession
	}

	if _, exists := bySession[rec.StudentID]; exists {
		return core.ErrAttendanceExists
	}
	bySession[rec.StudentID] = rec

	return nil
}

// ListBySession returns the records of a session ordered by marking time
func (s *MemoryStore) ListBySession(ctx context.Context, sessionID string) ([]core.AttendanceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]core.AttendanceRecord, 0, len(s.records[sessionID]))
	for _, rec := range s.records[sessionID] {
		out = append(out, rec)
	}
	sortRecords(out)

	return out, nil
}

func sortRecords(recs []core.AttendanceRecord) {
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].MarkedAt.Equal(recs[j].MarkedAt) {
			return recs[i].StudentID < recs[j].StudentID
		}
		return recs[i].MarkedAt.Before(recs[j].MarkedAt)
	})
}
