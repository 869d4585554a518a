package storage

import (
	"context"
	"errors"
	"log/slog"

	"moodline/internal/domain"
)

// Multi writes every record to a primary log and then to best-effort
// mirrors. Only a primary failure fails the append.
type Multi struct {
	primary AuditLog
	mirrors []AuditLog
	errFunc func(error)
}

type MultiOption func(*Multi)

// WithOnMirrorError sets the callback for mirror failures.
// Default: logs a warning via slog.
func WithOnMirrorError(f func(error)) MultiOption {
	return func(m *Multi) { m.errFunc = f }
}

func NewMulti(primary AuditLog, mirrors []AuditLog, opts ...MultiOption) *Multi {
	m := &Multi{
		primary: primary,
		mirrors: mirrors,
		errFunc: func(err error) { slog.Warn("audit mirror append failed", "error", err) },
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Multi) Append(ctx context.Context, rec domain.AuditRecord) error {
	if err := m.primary.Append(ctx, rec); err != nil {
		return err
	}
	for _, mirror := range m.mirrors {
		if err := mirror.Append(ctx, rec); err != nil {
			m.errFunc(err)
		}
	}
	return nil
}

func (m *Multi) Close() error {
	errs := []error{m.primary.Close()}
	for _, mirror := range m.mirrors {
		errs = append(errs, mirror.Close())
	}
	if err := errors.Join(errs...); err != nil {
		return domain.LogError("audit: close", err)
	}
	return nil
}
