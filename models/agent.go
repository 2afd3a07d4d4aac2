// Package models contains domain entities and business models for the commission engine
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Agent represents a network participant who can refer others, earn
// commission, and pay premiums for their own policies.
//
// WalletBalance and TotalCommissionEarned are a denormalized cache of the
// wallet ledger. They are only ever mutated alongside a WalletTransaction
// write, inside the same database transaction, and must never be trusted
// for a debit decision outside of one.
type Agent struct {
	ID   uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UUID uuid.UUID `gorm:"type:uuid;uniqueIndex;not null;default:gen_random_uuid()" json:"uuid"`

	// Identity
	AgentCode string  `gorm:"type:varchar(32);uniqueIndex;not null" json:"agent_code"`
	FullName  string  `gorm:"type:varchar(255);not null" json:"full_name"`
	Email     *string `gorm:"type:varchar(255);uniqueIndex" json:"email,omitempty"`
	Mobile    *string `gorm:"type:varchar(20)" json:"mobile,omitempty"`

	// Referral placement
	ReferrerCode *string `gorm:"type:varchar(32);index" json:"referrer_code,omitempty"` // nil for root agents
	MlmLevel     int     `gorm:"not null;default:0" json:"mlm_level"`                   // depth from root

	// Cached ledger aggregates, in integer minor units
	WalletBalance         int64 `gorm:"not null;default:0" json:"wallet_balance"`
	TotalCommissionEarned int64 `gorm:"not null;default:0" json:"total_commission_earned"`

	IsActive *bool `gorm:"not null;default:true;index" json:"is_active"`

	// Audit fields
	CreatedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	// Relationships
	Referral           *Referral           `gorm:"foreignKey:AgentCode;references:AgentCode" json:"referral,omitempty"`
	WalletTransactions []WalletTransaction `gorm:"foreignKey:AgentCode;references:AgentCode" json:"wallet_transactions,omitempty"`
	WithdrawalRequests []WithdrawalRequest `gorm:"foreignKey:AgentCode;references:AgentCode" json:"withdrawal_requests,omitempty"`
}

// BeforeCreate ensures UUID is set
func (a *Agent) BeforeCreate(tx *gorm.DB) error {
	if a.UUID == uuid.Nil {
		a.UUID = uuid.New()
	}
	return nil
}

// IsRoot returns true if the agent has no referrer
func (a *Agent) IsRoot() bool {
	return a.ReferrerCode == nil || *a.ReferrerCode == ""
}

// TableName specifies the table name for GORM
func (Agent) TableName() string {
	return "agents"
}

// AgentFilter represents filter criteria for agent queries
type AgentFilter struct {
	ID            *uint      `json:"id,omitempty"`
	UUID          *uuid.UUID `json:"uuid,omitempty"`
	AgentCode     *string    `json:"agent_code,omitempty"`
	ReferrerCode  *string    `json:"referrer_code,omitempty"`
	MlmLevel      *int       `json:"mlm_level,omitempty"`
	IsActive      *bool      `json:"is_active,omitempty"`
	CreatedAfter  *time.Time `json:"created_after,omitempty"`
	CreatedBefore *time.Time `json:"created_before,omitempty"`
}
