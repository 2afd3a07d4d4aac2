package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/polisku/commission-engine/utils"
	"gorm.io/gorm"
)

// Commission rate validation errors
var (
	ErrRateRuleAmbiguous  = errors.New("commission rate must set exactly one of rate_percent or fixed_amount")
	ErrRatePercentInvalid = errors.New("rate_percent must be greater than 0 and at most 100")
	ErrFixedAmountInvalid = errors.New("fixed_amount must be greater than 0")
	ErrTierLevelInvalid   = errors.New("tier_level must be between 1 and 5")
)

// CommissionRate configures how much commission a given upline tier earns
// for payments on a given insurance plan.
//
// Exactly one of RatePercent or FixedAmount is set. A missing row for a
// (plan, tier) pair means that tier pays no commission for that plan, which
// is valid configuration and not an error.
type CommissionRate struct {
	ID   uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UUID uuid.UUID `gorm:"type:uuid;uniqueIndex;not null;default:gen_random_uuid()" json:"uuid"`

	PlanID    uint `gorm:"not null;uniqueIndex:idx_commission_rates_plan_tier" json:"plan_id"`
	TierLevel int  `gorm:"not null;uniqueIndex:idx_commission_rates_plan_tier" json:"tier_level"` // 1..5

	// Rule: percentage of the payment amount, or a fixed minor-unit amount
	RatePercent *float64 `gorm:"type:decimal(7,4)" json:"rate_percent,omitempty"`
	FixedAmount *int64   `json:"fixed_amount,omitempty"`

	IsActive *bool `gorm:"not null;default:true;index" json:"is_active"`

	Description string `gorm:"type:text" json:"description"`

	// Audit fields
	CreatedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

// BeforeCreate ensures UUID is set and the rule is well formed
func (cr *CommissionRate) BeforeCreate(tx *gorm.DB) error {
	if cr.UUID == uuid.Nil {
		cr.UUID = uuid.New()
	}
	return cr.Validate()
}

// BeforeUpdate re-validates the rule on every edit
func (cr *CommissionRate) BeforeUpdate(tx *gorm.DB) error {
	return cr.Validate()
}

// Validate enforces the exclusivity invariant: exactly one of RatePercent
// or FixedAmount must be set, within its valid range.
func (cr *CommissionRate) Validate() error {
	if cr.TierLevel < 1 || cr.TierLevel > utils.MaxTierDepth {
		return ErrTierLevelInvalid
	}
	hasPercent := cr.RatePercent != nil
	hasFixed := cr.FixedAmount != nil
	if hasPercent == hasFixed {
		return ErrRateRuleAmbiguous
	}
	if hasPercent && (*cr.RatePercent <= 0 || *cr.RatePercent > 100) {
		return ErrRatePercentInvalid
	}
	if hasFixed && *cr.FixedAmount <= 0 {
		return ErrFixedAmountInvalid
	}
	return nil
}

// IsPercentage returns true for percentage-of-amount rules
func (cr *CommissionRate) IsPercentage() bool {
	return cr.RatePercent != nil
}

// CalculateCommission computes the commission for a payment amount in minor
// units. Percentage results round half-up to the nearest minor unit.
func (cr *CommissionRate) CalculateCommission(amount int64) int64 {
	if cr.RatePercent != nil {
		return utils.RoundHalfUp(float64(amount) * *cr.RatePercent / 100)
	}
	if cr.FixedAmount != nil {
		return *cr.FixedAmount
	}
	return 0
}

// TableName specifies the table name for GORM
func (CommissionRate) TableName() string {
	return "commission_rates"
}

// CommissionRateFilter represents filter criteria for commission rate queries
type CommissionRateFilter struct {
	ID        *uint      `json:"id,omitempty"`
	UUID      *uuid.UUID `json:"uuid,omitempty"`
	PlanID    *uint      `json:"plan_id,omitempty"`
	TierLevel *int       `json:"tier_level,omitempty"`
	IsActive  *bool      `json:"is_active,omitempty"`
}
