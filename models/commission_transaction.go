package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CommissionTransactionStatus represents the status of a commission credit
type CommissionTransactionStatus string

const (
	CommissionStatusPending  CommissionTransactionStatus = "pending"  // computed, wallet credit not yet applied
	CommissionStatusPosted   CommissionTransactionStatus = "posted"   // wallet credited
	CommissionStatusReversed CommissionTransactionStatus = "reversed" // reserved for payment voiding; no transition exists yet
)

// CommissionTransaction records one tier commission earned from one premium
// payment. The (payment_reference, tier_level) pair is unique: replaying a
// payment event can never produce a second row for the same tier.
type CommissionTransaction struct {
	ID            uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UUID          uuid.UUID `gorm:"type:uuid;uniqueIndex;not null;default:gen_random_uuid()" json:"uuid"`
	CorrelationID uuid.UUID `gorm:"type:uuid;index;not null" json:"correlation_id"` // shared by all rows of one disbursement

	// Idempotency key
	PaymentReference string `gorm:"type:varchar(64);not null;uniqueIndex:idx_commission_tx_payment_tier;index" json:"payment_reference"`
	TierLevel        int    `gorm:"not null;uniqueIndex:idx_commission_tx_payment_tier" json:"tier_level"` // 1..5

	// Parties
	PayerAgentCode  string `gorm:"type:varchar(32);not null;index" json:"payer_agent_code"`
	EarnerAgentCode string `gorm:"type:varchar(32);not null;index" json:"earner_agent_code"`

	// Amounts in integer minor units
	PlanID           uint  `gorm:"not null;index" json:"plan_id"`
	BaseAmount       int64 `gorm:"not null" json:"base_amount"`       // payment amount the rule was applied to
	CommissionAmount int64 `gorm:"not null" json:"commission_amount"` // credited to the earner

	// Rule applied, denormalized for reporting
	RatePercent *float64 `gorm:"type:decimal(7,4)" json:"rate_percent,omitempty"`
	FixedAmount *int64   `json:"fixed_amount,omitempty"`

	Status CommissionTransactionStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`

	Description string `gorm:"type:text" json:"description"`

	// Audit fields
	CreatedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	// Relationships
	Earner Agent `gorm:"foreignKey:EarnerAgentCode;references:AgentCode" json:"earner,omitempty"`
	Payer  Agent `gorm:"foreignKey:PayerAgentCode;references:AgentCode" json:"payer,omitempty"`
}

// BeforeCreate ensures UUID and CorrelationID are set
func (ct *CommissionTransaction) BeforeCreate(tx *gorm.DB) error {
	if ct.UUID == uuid.Nil {
		ct.UUID = uuid.New()
	}
	if ct.CorrelationID == uuid.Nil {
		ct.CorrelationID = uuid.New()
	}
	return nil
}

// IsPosted returns true once the earner's wallet has been credited
func (ct *CommissionTransaction) IsPosted() bool {
	return ct.Status == CommissionStatusPosted
}

// CanBeReversed returns true if the commission could be reversed by a
// future payment-voiding flow.
func (ct *CommissionTransaction) CanBeReversed() bool {
	return ct.Status == CommissionStatusPosted
}

// TableName specifies the table name for GORM
func (CommissionTransaction) TableName() string {
	return "commission_transactions"
}

// CommissionTransactionFilter represents filter criteria for commission queries
type CommissionTransactionFilter struct {
	ID               *uint                        `json:"id,omitempty"`
	UUID             *uuid.UUID                   `json:"uuid,omitempty"`
	CorrelationID    *uuid.UUID                   `json:"correlation_id,omitempty"`
	PaymentReference *string                      `json:"payment_reference,omitempty"`
	PayerAgentCode   *string                      `json:"payer_agent_code,omitempty"`
	EarnerAgentCode  *string                      `json:"earner_agent_code,omitempty"`
	PlanID           *uint                        `json:"plan_id,omitempty"`
	TierLevel        *int                         `json:"tier_level,omitempty"`
	Status           *CommissionTransactionStatus `json:"status,omitempty"`
	CreatedAfter     *time.Time                   `json:"created_after,omitempty"`
	CreatedBefore    *time.Time                   `json:"created_before,omitempty"`
}
