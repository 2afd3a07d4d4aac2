package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// WithdrawalStatus represents the state of a withdrawal request
type WithdrawalStatus string

const (
	WithdrawalStatusPending  WithdrawalStatus = "pending"
	WithdrawalStatusApproved WithdrawalStatus = "approved"
	WithdrawalStatusRejected WithdrawalStatus = "rejected"
	WithdrawalStatusPaid     WithdrawalStatus = "paid"
)

// WithdrawalRequest converts wallet balance into an outbound payout.
//
// State machine: pending -> approved -> paid, or pending -> rejected.
// The wallet is debited only on the transition to paid, atomically with the
// status flip. An agent can hold at most one unresolved (pending or
// approved-but-unpaid) request at a time.
type WithdrawalRequest struct {
	ID   uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UUID uuid.UUID `gorm:"type:uuid;uniqueIndex;not null;default:gen_random_uuid()" json:"uuid"`

	AgentCode string `gorm:"type:varchar(32);not null;index" json:"agent_code"`

	// Amount in integer minor units
	Amount int64 `gorm:"not null" json:"amount"`

	Status WithdrawalStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`

	// Payout destination
	BankName          string `gorm:"type:varchar(100);not null" json:"bank_name"`
	BankAccountNumber string `gorm:"type:varchar(50);not null" json:"bank_account_number"`
	BankAccountHolder string `gorm:"type:varchar(255);not null" json:"bank_account_holder"`

	AdminNote *string `gorm:"type:text" json:"admin_note,omitempty"`

	// State transition timestamps
	ApprovedAt *time.Time `gorm:"index" json:"approved_at,omitempty"`
	RejectedAt *time.Time `json:"rejected_at,omitempty"`
	PaidAt     *time.Time `gorm:"index" json:"paid_at,omitempty"`

	// Audit fields
	CreatedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	// Relationships
	Agent Agent `gorm:"foreignKey:AgentCode;references:AgentCode" json:"agent,omitempty"`
}

// BeforeCreate ensures UUID is set
func (wr *WithdrawalRequest) BeforeCreate(tx *gorm.DB) error {
	if wr.UUID == uuid.Nil {
		wr.UUID = uuid.New()
	}
	return nil
}

// IsResolved returns true for terminal-or-settled states (rejected, paid)
func (wr *WithdrawalRequest) IsResolved() bool {
	return wr.Status == WithdrawalStatusRejected || wr.Status == WithdrawalStatusPaid
}

// CanApprove reports whether the approve transition is legal
func (wr *WithdrawalRequest) CanApprove() bool {
	return wr.Status == WithdrawalStatusPending
}

// CanReject reports whether the reject transition is legal
func (wr *WithdrawalRequest) CanReject() bool {
	return wr.Status == WithdrawalStatusPending
}

// CanMarkPaid reports whether the paid transition is legal
func (wr *WithdrawalRequest) CanMarkPaid() bool {
	return wr.Status == WithdrawalStatusApproved
}

// TableName specifies the table name for GORM
func (WithdrawalRequest) TableName() string {
	return "withdrawal_requests"
}

// WithdrawalRequestFilter represents filter criteria for withdrawal queries
type WithdrawalRequestFilter struct {
	ID            *uint             `json:"id,omitempty"`
	UUID          *uuid.UUID        `json:"uuid,omitempty"`
	AgentCode     *string           `json:"agent_code,omitempty"`
	Status        *WithdrawalStatus `json:"status,omitempty"`
	CreatedAfter  *time.Time        `json:"created_after,omitempty"`
	CreatedBefore *time.Time        `json:"created_before,omitempty"`
}
