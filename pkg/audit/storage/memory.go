package storage

import (
	"context"
	"sort"
	"sync"

	"clinical-guardrails/guardrails/pkg/audit"
	"clinical-guardrails/guardrails/pkg/clinical"
)

// MemoryStorage implements audit.Storage in memory. Records are lost when
// the process exits.
type MemoryStorage struct {
	records map[string]*audit.TraceRecord
	mu      sync.RWMutex
}

// NewMemoryStorage creates a new in-memory storage backend.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		records: make(map[string]*audit.TraceRecord),
	}
}

// Store persists a copy of the record.
func (s *MemoryStorage) Store(ctx context.Context, record *audit.TraceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[record.ID] = copyRecord(record)
	return nil
}

// Query returns matching records ordered by RecordedAt.
func (s *MemoryStorage) Query(ctx context.Context, query *audit.Query) ([]*audit.TraceRecord, error) {
	if query == nil {
		query = &audit.Query{}
	}
	if err := query.Validate(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	results := []*audit.TraceRecord{}
	for _, record := range s.records {
		if query.Matches(record) {
			results = append(results, copyRecord(record))
		}
	}
	s.mu.RUnlock()

	asc := query.SortOrder == "asc"
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.RecordedAt.Equal(b.RecordedAt) {
			if asc {
				return a.ID < b.ID
			}
			return a.ID > b.ID
		}
		if asc {
			return a.RecordedAt.Before(b.RecordedAt)
		}
		return a.RecordedAt.After(b.RecordedAt)
	})

	if query.Offset >= len(results) {
		return []*audit.TraceRecord{}, nil
	}
	results = results[query.Offset:]
	if query.Limit > 0 && query.Limit < len(results) {
		results = results[:query.Limit]
	}
	return results, nil
}

// Count returns the number of matching records.
func (s *MemoryStorage) Count(ctx context.Context, query *audit.Query) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for _, record := range s.records {
		if query.Matches(record) {
			count++
		}
	}
	return count, nil
}

// Stats aggregates the matching records.
func (s *MemoryStorage) Stats(ctx context.Context, query *audit.Query) (*audit.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &audit.Stats{RuleCounts: make(map[string]int64)}
	for _, record := range s.records {
		if query.Matches(record) {
			stats.Add(record)
		}
	}
	return stats, nil
}

// Delete removes the matching records.
func (s *MemoryStorage) Delete(ctx context.Context, query *audit.Query) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for id, record := range s.records {
		if query.Matches(record) {
			delete(s.records, id)
			deleted++
		}
	}
	return deleted, nil
}

// Close discards all records.
func (s *MemoryStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = make(map[string]*audit.TraceRecord)
	return nil
}

// Size returns the number of records in storage.
func (s *MemoryStorage) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.records)
}

func copyRecord(r *audit.TraceRecord) *audit.TraceRecord {
	c := *r
	c.Alerts = append([]clinical.ComplianceAlert{}, r.Alerts...)
	return &c
}
