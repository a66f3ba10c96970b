package memory

import (
	"context"
	"sort"

	"github.com/wkarimi/kodisha/domain/audit"
	"github.com/wkarimi/kodisha/ports"
)

// AuditStore is the read-only audit view over a Ledger. Entries are written
// by the audited subscription mutations, never directly.
type AuditStore struct {
	l *Ledger
}

// List returns audit entries, newest first.
func (s *AuditStore) List(ctx context.Context, f ports.AuditFilter) ([]audit.Entry, error) {
	s.l.mu.Lock()
	defer s.l.mu.Unlock()

	var out []audit.Entry
	for _, e := range s.l.audits {
		if f.ActorID != "" && e.ActorID != f.ActorID {
			continue
		}
		if f.Action != "" && e.Action != f.Action {
			continue
		}
		if !f.From.IsZero() && e.CreatedAt.Before(f.From) {
			continue
		}
		if !f.To.IsZero() && !e.CreatedAt.Before(f.To) {
			continue
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}
