package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/wkarimi/kodisha/domain/audit"
	"github.com/wkarimi/kodisha/ports"
)

// AuditStore implements ports.AuditStore with SQLite. It only reads; entries
// are written inside the audited subscription mutations.
type AuditStore struct {
	db *DB
}

// NewAuditStore creates a new SQLite audit store.
func NewAuditStore(db *DB) *AuditStore {
	return &AuditStore{db: db}
}

// List returns audit entries, newest first.
func (s *AuditStore) List(ctx context.Context, f ports.AuditFilter) ([]audit.Entry, error) {
	query := `
		SELECT id, action, actor_id, COALESCE(subscription_id, ''), COALESCE(payment_id, ''), reason, created_at
		FROM audit_entries`
	var conds []string
	var args []interface{}
	if f.ActorID != "" {
		conds = append(conds, "actor_id = ?")
		args = append(args, f.ActorID)
	}
	if f.Action != "" {
		conds = append(conds, "action = ?")
		args = append(args, string(f.Action))
	}
	if !f.From.IsZero() {
		conds = append(conds, "created_at >= ?")
		args = append(args, f.From.UTC())
	}
	if !f.To.IsZero() {
		conds = append(conds, "created_at < ?")
		args = append(args, f.To.UTC())
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []audit.Entry
	for rows.Next() {
		var e audit.Entry
		var action string
		if err := rows.Scan(&e.ID, &action, &e.ActorID, &e.SubscriptionID, &e.PaymentID, &e.Reason, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Action = audit.Action(action)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Ensure interface compliance.
var _ ports.AuditStore = (*AuditStore)(nil)
