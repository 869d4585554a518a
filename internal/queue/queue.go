package queue

import (
	"context"

	"moodline/internal/domain"
)

// Publisher streams audit records to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, rec domain.AuditRecord) error
	Close() error
}
