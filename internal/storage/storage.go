package storage

import (
	"context"

	"moodline/internal/domain"
)

// Header is the column layout shared by every audit store.
var Header = []string{"timestamp", "user_id", "input_text", "label", "confidence"}

// AuditLog is an append-only record of processed events. Implementations
// must be safe for concurrent use and report failures as domain.LogError.
type AuditLog interface {
	Append(ctx context.Context, rec domain.AuditRecord) error
	Close() error
}
