package plan_test

import (
	"testing"

	"github.com/wkarimi/kodisha/domain/plan"
)

func validPlan() plan.Plan {
	return plan.Plan{
		ID:            "starter",
		Name:          "Starter",
		Price:         50000,
		DurationDays:  30,
		TotalListings: 10,
		TotalFeatured: 2,
		IsActive:      true,
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*plan.Plan)
		wantErr bool
	}{
		{"valid", func(p *plan.Plan) {}, false},
		{"missing id", func(p *plan.Plan) { p.ID = "" }, true},
		{"missing name", func(p *plan.Plan) { p.Name = "" }, true},
		{"zero price", func(p *plan.Plan) { p.Price = 0 }, true},
		{"negative price", func(p *plan.Plan) { p.Price = -1 }, true},
		{"fractional shilling price", func(p *plan.Plan) { p.Price = 50050 }, true},
		{"zero duration", func(p *plan.Plan) { p.DurationDays = 0 }, true},
		{"negative quota", func(p *plan.Plan) { p.TotalListings = -1 }, true},
		{"zero quotas allowed", func(p *plan.Plan) { p.TotalListings = 0; p.TotalFeatured = 0 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validPlan()
			tt.mutate(&p)
			err := p.Validate()
			if tt.wantErr && err == nil {
				t.Error("Validate() = nil, want error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Validate() = %v, want nil", err)
			}
		})
	}
}

func TestPurchasable(t *testing.T) {
	p := validPlan()
	if err := plan.Purchasable(p); err != nil {
		t.Errorf("Purchasable(valid) = %v", err)
	}

	p.IsActive = false
	if err := plan.Purchasable(p); err == nil {
		t.Error("inactive plan should not be purchasable")
	}
}

func TestFind(t *testing.T) {
	plans := []plan.Plan{{ID: "a"}, {ID: "b"}}

	if p, ok := plan.Find(plans, "b"); !ok || p.ID != "b" {
		t.Error("Find should locate plan b")
	}
	if _, ok := plan.Find(plans, "missing"); ok {
		t.Error("Find should miss unknown id")
	}
}
