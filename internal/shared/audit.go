package shared

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditEntry represents a record stored in audit_logs.
type AuditEntry struct {
	OrgID    uuid.UUID
	ActorID  uuid.UUID
	Action   string
	Entity   string
	EntityID string
	Meta     map[string]any
	At       time.Time
}

// Auditor records audit entries. Implementations must be safe for
// concurrent use.
type Auditor interface {
	Record(ctx context.Context, entry AuditEntry) error
}

// AuditLogger writes records into audit_logs.
type AuditLogger struct {
	pool *pgxpool.Pool
}

// NewAuditLogger returns a new AuditLogger.
func NewAuditLogger(pool *pgxpool.Pool) *AuditLogger {
	return &AuditLogger{pool: pool}
}

// Record persists the audit entry.
func (l *AuditLogger) Record(ctx context.Context, entry AuditEntry) error {
	if l == nil {
		return errors.New("audit logger not initialised")
	}
	if entry.Action == "" || entry.Entity == "" || entry.EntityID == "" {
		return errors.New("audit entry requires action/entity/entity_id")
	}
	if entry.At.IsZero() {
		entry.At = time.Now()
	}
	metaJSON, err := json.Marshal(entry.Meta)
	if err != nil {
		return err
	}
	_, err = l.pool.Exec(ctx,
		`INSERT INTO audit_logs (org_id, actor_id, action, entity, entity_id, meta, occurred_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entry.OrgID, entry.ActorID, entry.Action, entry.Entity, entry.EntityID, metaJSON, entry.At)
	return err
}

// NopAuditor discards entries. Used in tests.
type NopAuditor struct{}

// Record implements Auditor.
func (NopAuditor) Record(context.Context, AuditEntry) error { return nil }
