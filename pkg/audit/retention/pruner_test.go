package retention

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinical-guardrails/guardrails/pkg/audit"
	"clinical-guardrails/guardrails/pkg/audit/storage"
	"clinical-guardrails/guardrails/pkg/clinical"
)

var now = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func seededStorage(t *testing.T, ages ...time.Duration) *storage.MemoryStorage {
	t.Helper()
	s := storage.NewMemoryStorage()
	for i, age := range ages {
		require.NoError(t, s.Store(context.Background(), &audit.TraceRecord{
			ID:           string(rune('a' + i)),
			PatientID:    "P001",
			VisitID:      "V1",
			RecordedAt:   now.Add(-age),
			IsSafeToFile: true,
			Score:        1,
			Alerts:       []clinical.ComplianceAlert{},
		}))
	}
	return s
}

func newTestPruner(s audit.Storage, cfg *Config) *Pruner {
	p := NewPruner(s, cfg)
	p.now = func() time.Time { return now }
	return p
}

const day = 24 * time.Hour

func TestPruner_ByAge(t *testing.T) {
	s := seededStorage(t, 100*day, 50*day, day, 0)
	p := newTestPruner(s, &Config{RetentionDays: 30})

	deleted, err := p.Prune(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)
	assert.Equal(t, 2, s.Size())
}

func TestPruner_ByCount(t *testing.T) {
	s := seededStorage(t, 4*time.Hour, 3*time.Hour, 2*time.Hour, time.Hour, 0)
	p := newTestPruner(s, &Config{MaxRecords: 2})

	deleted, err := p.Prune(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), deleted)

	remaining, err := s.Query(context.Background(), &audit.Query{SortOrder: "asc"})
	require.NoError(t, err)
	require.Len(t, remaining, 2)
	assert.Equal(t, "d", remaining[0].ID)
	assert.Equal(t, "e", remaining[1].ID)

	deleted, err = p.Prune(context.Background())
	require.NoError(t, err)
	assert.Zero(t, deleted)
}

func TestPruner_Disabled(t *testing.T) {
	s := seededStorage(t, 1000*day)
	p := newTestPruner(s, &Config{})

	deleted, err := p.Prune(context.Background())
	require.NoError(t, err)
	assert.Zero(t, deleted)
	assert.Equal(t, 1, s.Size())
}

func TestPruner_ArchiveBeforeDelete(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "archives")
	s := seededStorage(t, 100*day, 40*day, 0)
	p := newTestPruner(s, &Config{
		RetentionDays:       30,
		ArchiveBeforeDelete: true,
		ArchivePath:         dir,
	})

	deleted, err := p.Prune(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	path := filepath.Join(dir, "audit-age-2026-06-01-120000.jsonl")
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	lines := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines++
	}
	require.NoError(t, scanner.Err())
	assert.Equal(t, 2, lines)
}

func TestScheduler(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := newTestPruner(storage.NewMemoryStorage(), &Config{PruneSchedule: "0 3 * * *"})
	require.NoError(t, p.Start(ctx))
	assert.True(t, p.scheduler.IsRunning())
	require.NotNil(t, p.NextPruning())

	p.Stop()
	assert.False(t, p.scheduler.IsRunning())
}

func TestScheduler_InvalidSchedule(t *testing.T) {
	p := newTestPruner(storage.NewMemoryStorage(), &Config{PruneSchedule: "every day"})
	assert.Error(t, p.Start(context.Background()))
	assert.False(t, p.scheduler.IsRunning())

	p = newTestPruner(storage.NewMemoryStorage(), &Config{})
	assert.NoError(t, p.Start(context.Background()))
	assert.Nil(t, p.NextPruning())
}

func TestValidateSchedule(t *testing.T) {
	assert.NoError(t, ValidateSchedule(""))
	assert.NoError(t, ValidateSchedule("*/15 * * * *"))
	assert.Error(t, ValidateSchedule("61 * * * *"))
}
