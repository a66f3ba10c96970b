package app

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/wkarimi/kodisha/domain/plan"
	"github.com/wkarimi/kodisha/ports"
)

// PlanService manages the plan catalog.
type PlanService struct {
	plans  ports.PlanStore
	clock  ports.Clock
	idGen  ports.IDGenerator
	logger zerolog.Logger
}

// NewPlanService creates the catalog service.
func NewPlanService(plans ports.PlanStore, clock ports.Clock, idGen ports.IDGenerator, logger zerolog.Logger) *PlanService {
	return &PlanService{plans: plans, clock: clock, idGen: idGen, logger: logger}
}

// ListActive returns purchasable plans, cheapest first.
func (s *PlanService) ListActive(ctx context.Context) ([]plan.Plan, error) {
	return s.plans.ListActive(ctx)
}

// Get returns a plan by ID, active or not.
func (s *PlanService) Get(ctx context.Context, id string) (plan.Plan, error) {
	return s.plans.Get(ctx, id)
}

// Create validates and stores a new plan. An empty ID is filled in.
func (s *PlanService) Create(ctx context.Context, p plan.Plan) (plan.Plan, error) {
	if p.ID == "" {
		p.ID = s.idGen.New()
	}
	now := s.clock.Now()
	p.CreatedAt = now
	p.UpdatedAt = now
	if err := p.Validate(); err != nil {
		return plan.Plan{}, err
	}
	if err := s.plans.Create(ctx, p); err != nil {
		return plan.Plan{}, err
	}
	s.logger.Info().Str("plan_id", p.ID).Str("name", p.Name).Msg("plan created")
	return p, nil
}

// Deactivate hides a plan from new purchases. Existing subscriptions keep
// their frozen quotas.
func (s *PlanService) Deactivate(ctx context.Context, id string) error {
	if err := s.plans.Deactivate(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Str("plan_id", id).Msg("plan deactivated")
	return nil
}

// Seed creates any of the given plans that do not already exist. Used by the
// CLI and at startup to load the catalog from config.
func (s *PlanService) Seed(ctx context.Context, plans []plan.Plan) (int, error) {
	created := 0
	for _, p := range plans {
		if _, err := s.plans.Get(ctx, p.ID); err == nil {
			continue
		}
		now := s.clock.Now()
		p.CreatedAt = now
		p.UpdatedAt = now
		if err := p.Validate(); err != nil {
			return created, err
		}
		if err := s.plans.Create(ctx, p); err != nil {
			return created, err
		}
		created++
	}
	return created, nil
}
