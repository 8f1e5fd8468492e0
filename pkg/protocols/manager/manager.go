package manager

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"clinical-guardrails/guardrails/pkg/protocols"
)

// ErrNotLoaded is returned by Reload and Watch before a successful Load.
var ErrNotLoaded = errors.New("protocol configuration has not been loaded")

// Config configures a Manager.
type Config struct {
	// Path is the protocol configuration file.
	Path string

	// Watch enables hot reload on file changes.
	Watch bool

	// DebounceInterval is the quiet period before a reload (default: 100ms).
	DebounceInterval time.Duration
}

// ReloadEvent describes one load or reload attempt.
type ReloadEvent struct {
	Initial  bool
	Success  bool
	Version  string
	Digest   string
	Rules    int
	Duration time.Duration
	Err      error
}

// Status is a snapshot of the manager state.
type Status struct {
	Loaded        bool
	Path          string
	Version       string
	Digest        string
	Rules         int
	LastLoadTime  time.Time
	LastLoadError error
}

// Manager publishes the active protocol configuration.
type Manager struct {
	config Config
	logger *slog.Logger

	current atomic.Pointer[snapshot]

	// mu serializes loads and guards the fields below.
	mu            sync.Mutex
	lastLoadTime  time.Time
	lastLoadError error
	observers     []func(ReloadEvent)

	watchMu     sync.Mutex
	watcher     *fileWatcher
	watchCancel context.CancelFunc
}

type snapshot struct {
	config *protocols.Config
	digest string
}

// New creates a manager for cfg. It does not load the file.
func New(cfg Config, logger *slog.Logger) (*Manager, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("protocol config path cannot be empty")
	}
	if cfg.DebounceInterval <= 0 {
		cfg.DebounceInterval = 100 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Manager{
		config: cfg,
		logger: logger.With("component", "protocols.manager"),
	}, nil
}

// OnReload registers fn to be called after every load attempt.
func (m *Manager) OnReload(fn func(ReloadEvent)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, fn)
}

// Load performs the initial load.
func (m *Manager) Load() error {
	return m.load(true)
}

// Reload loads the file again. On failure the previous configuration stays
// active and the error is returned.
func (m *Manager) Reload() error {
	if m.current.Load() == nil {
		return ErrNotLoaded
	}
	return m.load(false)
}

func (m *Manager) load(initial bool) error {
	event, observers := m.swap(initial)
	for _, fn := range observers {
		fn(event)
	}
	return event.Err
}

// swap reads the file and publishes it. Observers are returned so they run
// without the lock held.
func (m *Manager) swap(initial bool) (ReloadEvent, []func(ReloadEvent)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	observers := append([]func(ReloadEvent)(nil), m.observers...)

	startTime := time.Now()
	m.logger.Info("Loading protocol configuration",
		"path", m.config.Path,
		"initial", initial,
	)

	cfg, digest, err := readConfig(m.config.Path)
	event := ReloadEvent{Initial: initial, Duration: time.Since(startTime), Err: err}

	if err != nil {
		m.lastLoadError = err
		msg := "Failed to load protocol configuration"
		if !initial {
			msg = "Failed to reload protocol configuration, keeping previous configuration"
		}
		m.logger.Error(msg,
			"error", err,
			"duration_ms", event.Duration.Milliseconds(),
		)
		return event, observers
	}

	m.current.Store(&snapshot{config: cfg, digest: digest})
	m.lastLoadTime = time.Now()
	m.lastLoadError = nil

	event.Success = true
	event.Version = cfg.Version
	event.Digest = digest
	event.Rules = cfg.RuleCount()

	m.logger.Info("Protocol configuration loaded",
		"version", cfg.Version,
		"digest", digest,
		"rules", event.Rules,
		"enabled_checkers", cfg.EnabledCheckers(),
		"duration_ms", event.Duration.Milliseconds(),
	)
	return event, observers
}

// Current returns the active configuration, or nil before the first
// successful load.
func (m *Manager) Current() *protocols.Config {
	s := m.current.Load()
	if s == nil {
		return nil
	}
	return s.config
}

// Snapshot returns the active configuration together with the digest of
// the file it was read from. Both come from the same load.
func (m *Manager) Snapshot() (*protocols.Config, string) {
	s := m.current.Load()
	if s == nil {
		return nil, ""
	}
	return s.config, s.digest
}

// Status returns a snapshot of the manager state.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := Status{
		Path:          m.config.Path,
		LastLoadTime:  m.lastLoadTime,
		LastLoadError: m.lastLoadError,
	}
	if s := m.current.Load(); s != nil {
		st.Loaded = true
		st.Version = s.config.Version
		st.Digest = s.digest
		st.Rules = s.config.RuleCount()
	}
	return st
}

// Watch starts hot reload in the background. It returns immediately; the
// watcher stops when ctx is cancelled or Close is called, and Watch may be
// called again afterwards.
func (m *Manager) Watch(ctx context.Context) error {
	if !m.config.Watch {
		return fmt.Errorf("protocol watching is not enabled in configuration")
	}
	if m.current.Load() == nil {
		return ErrNotLoaded
	}

	m.watchMu.Lock()
	defer m.watchMu.Unlock()
	if m.watchCancel != nil {
		return fmt.Errorf("watch already started")
	}

	watcher, err := newFileWatcher(m.config.Path, m.config.DebounceInterval, m.logger)
	if err != nil {
		return err
	}

	watchCtx, cancel := context.WithCancel(ctx)
	m.watcher = watcher
	m.watchCancel = cancel
	go func() {
		watcher.run(watchCtx, m.Reload)
		m.releaseWatcher(watcher)
	}()

	return nil
}

// releaseWatcher clears the watch state once w stops on its own, so a
// cancelled parent context does not block a later Watch. After Close the
// state is already cleared and only the idempotent close remains.
func (m *Manager) releaseWatcher(w *fileWatcher) {
	m.watchMu.Lock()
	if m.watcher == w {
		m.watchCancel()
		m.watchCancel = nil
		m.watcher = nil
	}
	m.watchMu.Unlock()

	if err := w.close(); err != nil {
		m.logger.Warn("Failed to release protocol watcher", "error", err)
	}
}

// Close stops watching. It is safe to call more than once.
func (m *Manager) Close() error {
	m.watchMu.Lock()
	defer m.watchMu.Unlock()

	if m.watchCancel == nil {
		return nil
	}
	m.watchCancel()
	m.watchCancel = nil

	err := m.watcher.close()
	m.watcher = nil
	return err
}

// readConfig loads path and returns the parsed config with a short content digest.
func readConfig(path string) (*protocols.Config, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", &protocols.ConfigError{Path: path, Message: "failed to read file", Cause: err}
	}
	cfg, err := protocols.ParseConfig(data)
	if err != nil {
		var cerr *protocols.ConfigError
		if errors.As(err, &cerr) {
			cerr.Path = path
		}
		return nil, "", err
	}
	sum := sha256.Sum256(data)
	return cfg, hex.EncodeToString(sum[:])[:12], nil
}
