package storage

import (
	"errors"
	"fmt"

	"clinical-guardrails/guardrails/pkg/audit"
)

// Backend names accepted by Open.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

// ErrUnknownBackend is returned by Open for an unsupported backend name.
var ErrUnknownBackend = errors.New("unknown audit backend")

// Config selects and configures a storage backend.
type Config struct {
	Backend string
	SQLite  *SQLiteConfig
}

// Open creates the configured storage backend.
func Open(cfg Config) (audit.Storage, error) {
	switch cfg.Backend {
	case "", BackendMemory:
		return NewMemoryStorage(), nil
	case BackendSQLite:
		s, err := NewSQLiteStorage(cfg.SQLite)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}

var (
	_ audit.Storage = (*SQLStorage)(nil)
	_ audit.Storage = (*MemoryStorage)(nil)
)
