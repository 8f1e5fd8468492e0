package health

import (
	"context"
	"errors"
	"fmt"

	"clinical-guardrails/guardrails/pkg/audit"
	"clinical-guardrails/guardrails/pkg/protocols"
)

// Check names registered by the serve command.
const (
	CheckProtocols    = "protocols"
	CheckAuditStorage = "audit_storage"
)

// ErrProtocolsNotLoaded is reported until a protocol configuration is active.
var ErrProtocolsNotLoaded = errors.New("protocol configuration not loaded")

// ProtocolSource supplies the active protocol configuration.
type ProtocolSource interface {
	Current() *protocols.Config
}

// ProtocolCheck is healthy once src has an active configuration.
func ProtocolCheck(src ProtocolSource) CheckFunc {
	return func(ctx context.Context) error {
		if src == nil || src.Current() == nil {
			return ErrProtocolsNotLoaded
		}
		return nil
	}
}

// StorageCheck is healthy when the audit storage answers a count query.
func StorageCheck(storage audit.Storage) CheckFunc {
	return func(ctx context.Context) error {
		if _, err := storage.Count(ctx, &audit.Query{}); err != nil {
			return fmt.Errorf("audit storage unavailable: %w", err)
		}
		return nil
	}
}
