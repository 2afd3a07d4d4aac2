package dto

import "time"

// PaymentVerifiedRequest represents the PaymentVerified event delivered by
// the payment-verification collaborator once per gateway-confirmed payment.
// Delivery may repeat; disbursement is idempotent on PaymentReference.
type PaymentVerifiedRequest struct {
	PaymentReference string     `json:"payment_reference" validate:"required,max=64"`
	PayerAgentCode   string     `json:"payer_agent_code" validate:"required,agent_code"`
	PlanID           uint       `json:"plan_id" validate:"required"`
	Amount           int64      `json:"amount" validate:"required,gt=0"` // minor units
	Currency         string     `json:"currency" validate:"required,len=3"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
}

// Tier skip reasons reported in DisbursementTierResult
const (
	TierSkipNoEarner = "no_earner"         // upline chain shorter than the tier
	TierSkipNoRate   = "no_rate_rule"      // plan pays no commission at this depth
	TierSkipInactive = "referral_inactive" // earner's referral link is not active
)

// DisbursementTierResult describes what happened at one tier
type DisbursementTierResult struct {
	TierLevel        int    `json:"tier_level"`
	EarnerAgentCode  string `json:"earner_agent_code,omitempty"`
	CommissionAmount int64  `json:"commission_amount,omitempty"`
	Credited         bool   `json:"credited"`
	SkipReason       string `json:"skip_reason,omitempty"`
}

// DisbursementResult is the per-tier outcome of disbursing one payment
type DisbursementResult struct {
	PaymentReference string                   `json:"payment_reference"`
	PayerAgentCode   string                   `json:"payer_agent_code"`
	PlanID           uint                     `json:"plan_id"`
	Amount           int64                    `json:"amount"`
	TotalCommission  int64                    `json:"total_commission"`
	Tiers            []DisbursementTierResult `json:"tiers"`
	Replayed         bool                     `json:"replayed"` // true when returned from the idempotency record
}
