package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/wkarimi/kodisha/domain/plan"
	"github.com/wkarimi/kodisha/ports"
)

// PlanStore implements ports.PlanStore with SQLite.
type PlanStore struct {
	db *DB
}

// NewPlanStore creates a new SQLite plan store.
func NewPlanStore(db *DB) *PlanStore {
	return &PlanStore{db: db}
}

const planColumns = `id, name, price, duration_days, total_listings, total_featured, is_active, created_at, updated_at`

// Get retrieves a plan by ID, active or not.
func (s *PlanStore) Get(ctx context.Context, id string) (plan.Plan, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+planColumns+` FROM plans WHERE id = ?
	`, id)
	return scanPlan(row)
}

// ListActive returns purchasable plans, cheapest first.
func (s *PlanStore) ListActive(ctx context.Context) ([]plan.Plan, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+planColumns+` FROM plans WHERE is_active = 1 ORDER BY price ASC, id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var plans []plan.Plan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}
	return plans, rows.Err()
}

// Create stores a new plan.
func (s *PlanStore) Create(ctx context.Context, p plan.Plan) error {
	if err := p.Validate(); err != nil {
		return err
	}
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = now
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO plans (id, name, price, duration_days, total_listings, total_featured, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.ID, p.Name, p.Price, p.DurationDays, p.TotalListings, p.TotalFeatured, boolToInt(p.IsActive), p.CreatedAt, p.UpdatedAt)
	return err
}

// Deactivate hides a plan from new purchases. The row itself never changes
// beyond the flag; plans referenced by payments stay immutable.
func (s *PlanStore) Deactivate(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE plans SET is_active = 0, updated_at = CURRENT_TIMESTAMP WHERE id = ?
	`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ports.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPlan(row rowScanner) (plan.Plan, error) {
	var p plan.Plan
	var active int
	err := row.Scan(&p.ID, &p.Name, &p.Price, &p.DurationDays, &p.TotalListings,
		&p.TotalFeatured, &active, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return plan.Plan{}, ports.ErrNotFound
	}
	if err != nil {
		return plan.Plan{}, err
	}
	p.IsActive = active != 0
	return p, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Ensure interface compliance.
var _ ports.PlanStore = (*PlanStore)(nil)
