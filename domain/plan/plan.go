// Package plan provides plan value types and pure functions.
package plan

import (
	"errors"
	"time"
)

// ErrUnavailable is returned when a plan is inactive or not purchasable.
var ErrUnavailable = errors.New("plan unavailable")

// Plan represents a purchasable package (immutable value type).
// Once a payment or subscription references a plan, the plan is never edited;
// deactivation only hides it from new purchases.
type Plan struct {
	ID            string
	Name          string
	Price         int64 // minor currency units, whole-shilling multiples of 100
	DurationDays  int
	TotalListings int64
	TotalFeatured int64
	IsActive      bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Validate checks that a plan definition is internally consistent.
func (p Plan) Validate() error {
	if p.ID == "" {
		return errors.New("plan id required")
	}
	if p.Name == "" {
		return errors.New("plan name required")
	}
	if p.Price <= 0 {
		return errors.New("plan price must be positive")
	}
	// The provider bills whole shillings; fractional prices would truncate.
	if p.Price%100 != 0 {
		return errors.New("plan price must be a whole-shilling multiple of 100")
	}
	if p.DurationDays <= 0 {
		return errors.New("plan duration must be positive")
	}
	if p.TotalListings < 0 || p.TotalFeatured < 0 {
		return errors.New("plan quotas must be non-negative")
	}
	return nil
}

// Purchasable reports whether the plan can be sold right now.
// This is a PURE function.
func Purchasable(p Plan) error {
	if !p.IsActive {
		return ErrUnavailable
	}
	if p.Price <= 0 {
		return ErrUnavailable
	}
	return nil
}

// Find finds a plan by ID in a list.
// This is a PURE function.
func Find(plans []Plan, id string) (Plan, bool) {
	for _, p := range plans {
		if p.ID == id {
			return p, true
		}
	}
	return Plan{}, false
}
