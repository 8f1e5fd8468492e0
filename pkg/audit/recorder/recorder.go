package recorder

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"clinical-guardrails/guardrails/pkg/audit"
	"clinical-guardrails/guardrails/pkg/clinical"
)

// Config contains configuration for the trace recorder.
type Config struct {
	// Enabled enables trace recording.
	Enabled bool

	// BufferSize is the size of the async write channel buffer.
	// Default: 1000
	BufferSize int

	// WriteTimeout is the timeout for writing a record to storage.
	// Default: 5 seconds
	WriteTimeout time.Duration
}

// DefaultConfig returns the default recorder configuration.
func DefaultConfig() *Config {
	return &Config{
		Enabled:      true,
		BufferSize:   1000,
		WriteTimeout: 5 * time.Second,
	}
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithLogger sets the recorder's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Recorder) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithDropHook registers a function called each time a record is dropped.
func WithDropHook(fn func()) Option {
	return func(r *Recorder) {
		r.onDrop = fn
	}
}

// WithWriteHook registers a function called each time a record is stored.
func WithWriteHook(fn func()) Option {
	return func(r *Recorder) {
		r.onWrite = fn
	}
}

// Recorder writes trace records to storage on a background goroutine.
// Record never blocks: when the buffer is full the record is dropped and
// counted.
type Recorder struct {
	storage    audit.Storage
	config     *Config
	recordChan chan *audit.TraceRecord
	wg         sync.WaitGroup
	done       chan struct{}
	logger     *slog.Logger
	onDrop     func()
	onWrite    func()

	mu      sync.RWMutex
	closed  bool
	dropped atomic.Uint64
	written atomic.Uint64
}

// NewRecorder creates a recorder over storage and starts its worker.
func NewRecorder(storage audit.Storage, config *Config, opts ...Option) *Recorder {
	if config == nil {
		config = DefaultConfig()
	}
	if config.BufferSize <= 0 {
		config.BufferSize = DefaultConfig().BufferSize
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = DefaultConfig().WriteTimeout
	}

	r := &Recorder{
		storage:    storage,
		config:     config,
		recordChan: make(chan *audit.TraceRecord, config.BufferSize),
		done:       make(chan struct{}),
		logger:     slog.Default().With("component", "audit.recorder"),
	}
	for _, opt := range opts {
		opt(r)
	}

	r.wg.Add(1)
	go r.worker()

	r.logger.Info("audit recorder initialized",
		"buffer_size", config.BufferSize,
		"write_timeout", config.WriteTimeout,
	)

	return r
}

// Record assigns the record an id and digest and enqueues it for writing.
// It returns immediately.
func (r *Recorder) Record(ctx context.Context, record *audit.TraceRecord) error {
	if !r.config.Enabled || record == nil {
		return nil
	}

	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.RecordedAt.IsZero() {
		record.RecordedAt = time.Now().UTC()
	}
	if record.Alerts == nil {
		record.Alerts = []clinical.ComplianceAlert{}
	}
	if err := record.Seal(); err != nil {
		return audit.NewRecorderError(record.ID, err)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return audit.NewRecorderError(record.ID, audit.ErrRecorderClosed)
	}

	select {
	case r.recordChan <- record:
		r.logger.Debug("trace record enqueued",
			"record_id", record.ID,
			"patient_id", record.PatientID,
		)
		return nil
	default:
		r.dropped.Add(1)
		if r.onDrop != nil {
			r.onDrop()
		}
		r.logger.Error("trace record channel full, dropping record",
			"record_id", record.ID,
			"channel_capacity", r.config.BufferSize,
		)
		return audit.NewRecorderError(record.ID, audit.ErrBufferFull)
	}
}

// Dropped returns the number of records dropped because the buffer was full.
func (r *Recorder) Dropped() uint64 {
	return r.dropped.Load()
}

// Written returns the number of records successfully stored.
func (r *Recorder) Written() uint64 {
	return r.written.Load()
}

// Close stops accepting records, drains the buffer and waits for pending
// writes. It is safe to call more than once.
func (r *Recorder) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.done)
	r.mu.Unlock()

	r.logger.Info("shutting down audit recorder")
	r.wg.Wait()
	r.logger.Info("audit recorder shut down complete",
		"written", r.written.Load(),
		"dropped", r.dropped.Load(),
	)
	return nil
}

func (r *Recorder) worker() {
	defer r.wg.Done()

	for {
		select {
		case record := <-r.recordChan:
			r.writeRecord(record)

		case <-r.done:
			r.logger.Debug("draining audit channel before shutdown",
				"pending_count", len(r.recordChan),
			)
			for {
				select {
				case record := <-r.recordChan:
					r.writeRecord(record)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) writeRecord(record *audit.TraceRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), r.config.WriteTimeout)
	defer cancel()

	start := time.Now()
	if err := r.storage.Store(ctx, record); err != nil {
		r.logger.Error("failed to store trace record",
			"record_id", record.ID,
			"error", err,
		)
		return
	}
	r.written.Add(1)
	if r.onWrite != nil {
		r.onWrite()
	}

	duration := time.Since(start)
	r.logger.Debug("trace recorded",
		"record_id", record.ID,
		"is_safe_to_file", record.IsSafeToFile,
		"duration_ms", duration.Milliseconds(),
	)

	if duration > r.config.WriteTimeout/2 {
		r.logger.Warn("slow audit write",
			"record_id", record.ID,
			"duration_ms", duration.Milliseconds(),
			"threshold_ms", (r.config.WriteTimeout / 2).Milliseconds(),
		)
	}
}
