package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// WalletTransactionType represents the direction of a ledger entry
type WalletTransactionType string

const (
	WalletTransactionTypeCredit WalletTransactionType = "credit"
	WalletTransactionTypeDebit  WalletTransactionType = "debit"
)

// WalletTransaction is one append-only ledger entry against an agent's
// wallet. Rows are never updated or deleted; the agent's cached
// wallet_balance is written in the same database transaction and must always
// equal BalanceAfter of the agent's newest entry.
type WalletTransaction struct {
	ID            uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UUID          uuid.UUID `gorm:"type:uuid;uniqueIndex;not null;default:gen_random_uuid()" json:"uuid"`
	CorrelationID uuid.UUID `gorm:"type:uuid;index;not null" json:"correlation_id"` // links to the causing disbursement or withdrawal

	AgentCode string                `gorm:"type:varchar(32);not null;index" json:"agent_code"`
	Type      WalletTransactionType `gorm:"type:varchar(10);not null;index" json:"type"`

	// Amounts in integer minor units. Amount is always positive; Type
	// carries the sign.
	Amount        int64 `gorm:"not null" json:"amount"`
	BalanceBefore int64 `gorm:"not null" json:"balance_before"`
	BalanceAfter  int64 `gorm:"not null" json:"balance_after"`

	// Reference to the originating row: a commission transaction UUID for
	// credits, a withdrawal request UUID for debits.
	Reference string `gorm:"type:varchar(64);not null;index" json:"reference"`

	Description string          `gorm:"type:text" json:"description"`
	Metadata    json.RawMessage `gorm:"type:jsonb;default:'{}'" json:"metadata"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP;index" json:"created_at"`

	// Relationships
	Agent Agent `gorm:"foreignKey:AgentCode;references:AgentCode" json:"agent,omitempty"`
}

// BeforeCreate ensures UUID and CorrelationID are set
func (wt *WalletTransaction) BeforeCreate(tx *gorm.DB) error {
	if wt.UUID == uuid.Nil {
		wt.UUID = uuid.New()
	}
	if wt.CorrelationID == uuid.Nil {
		wt.CorrelationID = uuid.New()
	}
	return nil
}

// SignedAmount returns the delta this entry applies to the balance
func (wt *WalletTransaction) SignedAmount() int64 {
	if wt.Type == WalletTransactionTypeDebit {
		return -wt.Amount
	}
	return wt.Amount
}

// TableName specifies the table name for GORM
func (WalletTransaction) TableName() string {
	return "wallet_transactions"
}

// WalletTransactionFilter represents filter criteria for ledger queries
type WalletTransactionFilter struct {
	ID            *uint                  `json:"id,omitempty"`
	UUID          *uuid.UUID             `json:"uuid,omitempty"`
	CorrelationID *uuid.UUID             `json:"correlation_id,omitempty"`
	AgentCode     *string                `json:"agent_code,omitempty"`
	Type          *WalletTransactionType `json:"type,omitempty"`
	Reference     *string                `json:"reference,omitempty"`
	CreatedAfter  *time.Time             `json:"created_after,omitempty"`
	CreatedBefore *time.Time             `json:"created_before,omitempty"`
}
