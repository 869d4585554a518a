package storage

import (
	"context"
	"database/sql"
	"sync"

	_ "github.com/lib/pq"

	"moodline/internal/domain"
)

const createAuditTable = `
	CREATE TABLE IF NOT EXISTS audit_records (
		id          BIGSERIAL PRIMARY KEY,
		recorded_at TIMESTAMPTZ NOT NULL,
		user_id     TEXT NOT NULL,
		input_text  TEXT NOT NULL,
		label       TEXT NOT NULL,
		confidence  DOUBLE PRECISION NOT NULL CHECK (confidence >= 0 AND confidence <= 1)
	)
`

// Postgres stores audit records in the audit_records table, creating it on
// first use.
type Postgres struct {
	db *sql.DB

	schemaMu    sync.Mutex
	schemaReady bool
}

func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	return &Postgres{db: db}, nil
}

func (p *Postgres) Close() error {
	return p.db.Close()
}

func (p *Postgres) Append(ctx context.Context, rec domain.AuditRecord) error {
	if err := p.ensureSchema(ctx); err != nil {
		return domain.LogError("audit postgres: create table", err)
	}

	query := `
		INSERT INTO audit_records (recorded_at, user_id, input_text, label, confidence)
		VALUES ($1, $2, $3, $4, $5)
	`

	if _, err := p.db.ExecContext(ctx, query,
		rec.Timestamp,
		rec.UserID,
		rec.InputText,
		rec.Label,
		rec.Confidence,
	); err != nil {
		return domain.LogError("audit postgres: insert", err)
	}
	return nil
}

// Recent returns the latest records, newest first.
func (p *Postgres) Recent(ctx context.Context, limit int) ([]domain.AuditRecord, error) {
	if err := p.ensureSchema(ctx); err != nil {
		return nil, err
	}

	query := `
		SELECT recorded_at, user_id, input_text, label, confidence
		FROM audit_records ORDER BY id DESC LIMIT $1
	`

	rows, err := p.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []domain.AuditRecord
	for rows.Next() {
		var rec domain.AuditRecord
		if err := rows.Scan(
			&rec.Timestamp,
			&rec.UserID,
			&rec.InputText,
			&rec.Label,
			&rec.Confidence,
		); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

// ensureSchema retries on failure, unlike sync.Once.
func (p *Postgres) ensureSchema(ctx context.Context) error {
	p.schemaMu.Lock()
	defer p.schemaMu.Unlock()
	if p.schemaReady {
		return nil
	}
	if _, err := p.db.ExecContext(ctx, createAuditTable); err != nil {
		return err
	}
	p.schemaReady = true
	return nil
}
