package dto

import "time"

// UpsertCommissionRateRequest creates or updates a rate rule for a
// (plan, tier) pair. Exactly one of RatePercent or FixedAmount must be set.
type UpsertCommissionRateRequest struct {
	PlanID      uint     `json:"plan_id" validate:"required"`
	TierLevel   int      `json:"tier_level" validate:"required,min=1,max=5"`
	RatePercent *float64 `json:"rate_percent,omitempty" validate:"omitempty,gt=0,lte=100"`
	FixedAmount *int64   `json:"fixed_amount,omitempty" validate:"omitempty,gt=0"` // minor units
	IsActive    *bool    `json:"is_active,omitempty"`
	Description string   `json:"description,omitempty" validate:"omitempty,max=500"`
}

// CommissionRateDTO is the API projection of a rate rule
type CommissionRateDTO struct {
	UUID        string    `json:"uuid"`
	PlanID      uint      `json:"plan_id"`
	TierLevel   int       `json:"tier_level"`
	RatePercent *float64  `json:"rate_percent,omitempty"`
	FixedAmount *int64    `json:"fixed_amount,omitempty"`
	IsActive    bool      `json:"is_active"`
	Description string    `json:"description"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// UpsertCommissionRateResponse confirms a persisted rate rule
type UpsertCommissionRateResponse struct {
	Message string            `json:"message"`
	Rate    CommissionRateDTO `json:"rate"`
}

// ListCommissionRatesRequest lists the rate rules of one plan
type ListCommissionRatesRequest struct {
	PlanID uint `json:"plan_id" validate:"required"`
}

// ListCommissionRatesResponse lists rate rules ordered by tier
type ListCommissionRatesResponse struct {
	PlanID uint                `json:"plan_id"`
	Rates  []CommissionRateDTO `json:"rates"`
}
