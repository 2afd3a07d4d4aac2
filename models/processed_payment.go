package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ProcessedPayment marks a payment reference as fully disbursed and stores
// the computed per-tier result for idempotent replay.
//
// The unique payment_reference index is the idempotency guard for the whole
// disbursement: it also covers payments that produced zero commission rows
// (root agents, plans with no rates), which commission_transactions alone
// cannot distinguish from never-processed payments.
type ProcessedPayment struct {
	ID            uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UUID          uuid.UUID `gorm:"type:uuid;uniqueIndex;not null;default:gen_random_uuid()" json:"uuid"`
	CorrelationID uuid.UUID `gorm:"type:uuid;index;not null" json:"correlation_id"`

	PaymentReference string `gorm:"type:varchar(64);uniqueIndex;not null" json:"payment_reference"`
	PayerAgentCode   string `gorm:"type:varchar(32);not null;index" json:"payer_agent_code"`
	PlanID           uint   `gorm:"not null" json:"plan_id"`
	Amount           int64  `gorm:"not null" json:"amount"` // minor units
	Currency         string `gorm:"type:varchar(3);not null" json:"currency"`

	// Serialized DisbursementResult returned on replay
	Result json.RawMessage `gorm:"type:jsonb;not null" json:"result"`

	CompletedAt time.Time `gorm:"not null" json:"completed_at"` // from the payment event
	CreatedAt   time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// BeforeCreate ensures UUID and CorrelationID are set
func (pp *ProcessedPayment) BeforeCreate(tx *gorm.DB) error {
	if pp.UUID == uuid.Nil {
		pp.UUID = uuid.New()
	}
	if pp.CorrelationID == uuid.Nil {
		pp.CorrelationID = uuid.New()
	}
	return nil
}

// TableName specifies the table name for GORM
func (ProcessedPayment) TableName() string {
	return "processed_payments"
}

// ProcessedPaymentFilter represents filter criteria for processed payment queries
type ProcessedPaymentFilter struct {
	ID               *uint      `json:"id,omitempty"`
	PaymentReference *string    `json:"payment_reference,omitempty"`
	PayerAgentCode   *string    `json:"payer_agent_code,omitempty"`
	PlanID           *uint      `json:"plan_id,omitempty"`
	CreatedAfter     *time.Time `json:"created_after,omitempty"`
	CreatedBefore    *time.Time `json:"created_before,omitempty"`
}
