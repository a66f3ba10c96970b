// Package memory provides in-memory implementations of the storage ports.
// All stores guard their state with a mutex and implement the same
// compare-and-set semantics as the SQLite adapter, so tests and the
// `--db memory` dev mode exercise the real invariants.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/wkarimi/kodisha/domain/plan"
	"github.com/wkarimi/kodisha/ports"
)

// PlanStore is an in-memory implementation of ports.PlanStore.
type PlanStore struct {
	mu    sync.RWMutex
	plans map[string]plan.Plan
}

// NewPlanStore creates an empty in-memory plan store.
func NewPlanStore() *PlanStore {
	return &PlanStore{plans: make(map[string]plan.Plan)}
}

// Get retrieves a plan by ID.
func (s *PlanStore) Get(ctx context.Context, id string) (plan.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.plans[id]
	if !ok {
		return plan.Plan{}, ports.ErrNotFound
	}
	return p, nil
}

// ListActive returns purchasable plans, cheapest first.
func (s *PlanStore) ListActive(ctx context.Context) ([]plan.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []plan.Plan
	for _, p := range s.plans {
		if p.IsActive {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Price != out[j].Price {
			return out[i].Price < out[j].Price
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Create stores a new plan.
func (s *PlanStore) Create(ctx context.Context, p plan.Plan) error {
	if err := p.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plans[p.ID] = p
	return nil
}

// Deactivate hides a plan from new purchases.
func (s *PlanStore) Deactivate(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.plans[id]
	if !ok {
		return ports.ErrNotFound
	}
	p.IsActive = false
	s.plans[id] = p
	return nil
}

// Ensure interface compliance.
var _ ports.PlanStore = (*PlanStore)(nil)
