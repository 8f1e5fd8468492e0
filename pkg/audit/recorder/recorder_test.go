package recorder

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"clinical-guardrails/guardrails/pkg/audit"
	"clinical-guardrails/guardrails/pkg/audit/storage"
	"clinical-guardrails/guardrails/pkg/clinical"
)

func newRecord(patientID string) *audit.TraceRecord {
	return audit.NewTraceRecord(patientID, "V1", clinical.VerificationResult{
		IsSafeToFile: true,
		Score:        1.0,
	})
}

// blockingStorage holds every Store call until release is closed.
type blockingStorage struct {
	*storage.MemoryStorage
	release chan struct{}
	once    sync.Once
	entered chan struct{}
}

func newBlockingStorage() *blockingStorage {
	return &blockingStorage{
		MemoryStorage: storage.NewMemoryStorage(),
		release:       make(chan struct{}),
		entered:       make(chan struct{}),
	}
}

func (b *blockingStorage) Store(ctx context.Context, r *audit.TraceRecord) error {
	b.once.Do(func() { close(b.entered) })
	<-b.release
	return b.MemoryStorage.Store(ctx, r)
}

// TestRecorder_Record tests that records are sealed and written.
func TestRecorder_Record(t *testing.T) {
	store := storage.NewMemoryStorage()
	rec := NewRecorder(store, &Config{Enabled: true, BufferSize: 10, WriteTimeout: time.Second})

	r := newRecord("P001")
	if err := rec.Record(context.Background(), r); err != nil {
		t.Fatalf("Record() failed: %v", err)
	}
	if r.ID == "" || r.Digest == "" {
		t.Errorf("record not assigned id and digest: %+v", r)
	}

	if err := rec.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}
	if store.Size() != 1 || rec.Written() != 1 {
		t.Fatalf("stored %d, written %d; want 1", store.Size(), rec.Written())
	}

	got, err := store.Query(context.Background(), &audit.Query{PatientID: "P001"})
	if err != nil || len(got) != 1 {
		t.Fatalf("Query() = %v, %v", got, err)
	}
	if ok, err := got[0].VerifyDigest(); err != nil || !ok {
		t.Errorf("stored record digest does not verify: %v, %v", ok, err)
	}
}

// TestRecorder_DropsWhenFull tests that a full buffer drops instead of blocking.
func TestRecorder_DropsWhenFull(t *testing.T) {
	store := newBlockingStorage()
	drops := 0
	rec := NewRecorder(store, &Config{Enabled: true, BufferSize: 1, WriteTimeout: time.Second},
		WithDropHook(func() { drops++ }))

	ctx := context.Background()

	// The first record occupies the worker, the second fills the buffer.
	if err := rec.Record(ctx, newRecord("P1")); err != nil {
		t.Fatalf("Record() failed: %v", err)
	}
	<-store.entered
	if err := rec.Record(ctx, newRecord("P2")); err != nil {
		t.Fatalf("Record() failed: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- rec.Record(ctx, newRecord("P3")) }()

	select {
	case err := <-done:
		if !errors.Is(err, audit.ErrBufferFull) {
			t.Errorf("Record() error = %v, want ErrBufferFull", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Record() blocked on a full buffer")
	}

	if rec.Dropped() != 1 || drops != 1 {
		t.Errorf("Dropped() = %d, hook calls = %d; want 1", rec.Dropped(), drops)
	}

	close(store.release)
	rec.Close()
	if store.Size() != 2 {
		t.Errorf("stored %d records, want 2", store.Size())
	}
}

// TestRecorder_Closed tests recording after shutdown.
func TestRecorder_Closed(t *testing.T) {
	rec := NewRecorder(storage.NewMemoryStorage(), nil)
	rec.Close()
	rec.Close()

	err := rec.Record(context.Background(), newRecord("P1"))
	if !errors.Is(err, audit.ErrRecorderClosed) {
		t.Errorf("Record() error = %v, want ErrRecorderClosed", err)
	}
}

// TestRecorder_Disabled tests that a disabled recorder writes nothing.
func TestRecorder_Disabled(t *testing.T) {
	store := storage.NewMemoryStorage()
	rec := NewRecorder(store, &Config{Enabled: false})

	if err := rec.Record(context.Background(), newRecord("P1")); err != nil {
		t.Fatalf("Record() failed: %v", err)
	}
	rec.Close()
	if store.Size() != 0 {
		t.Errorf("disabled recorder stored %d records", store.Size())
	}
}

// TestRecorder_Hooks tests that write hooks fire per stored record.
func TestRecorder_Hooks(t *testing.T) {
	writes := 0
	rec := NewRecorder(storage.NewMemoryStorage(), nil, WithWriteHook(func() { writes++ }))

	for i := 0; i < 3; i++ {
		if err := rec.Record(context.Background(), newRecord("P1")); err != nil {
			t.Fatalf("Record() failed: %v", err)
		}
	}
	rec.Close()

	if writes != 3 {
		t.Errorf("write hook called %d times, want 3", writes)
	}
}
