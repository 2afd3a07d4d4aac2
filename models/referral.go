package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// ReferralStatus represents the lifecycle state of a referral link
type ReferralStatus string

const (
	ReferralStatusActive     ReferralStatus = "active"
	ReferralStatusPending    ReferralStatus = "pending"
	ReferralStatusSuspended  ReferralStatus = "suspended"
	ReferralStatusTerminated ReferralStatus = "terminated"
)

// Referral links an agent to its referrer and materializes the agent's
// ancestor chain up to MaxTierDepth levels.
//
// UplineChain[0] is the direct referrer, UplineChain[i] is the referrer of
// UplineChain[i-1]. The chain is truncated, never cyclic, and is recomputed
// wholesale (not patched) whenever any ancestor's own referrer changes.
type Referral struct {
	ID   uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UUID uuid.UUID `gorm:"type:uuid;uniqueIndex;not null;default:gen_random_uuid()" json:"uuid"`

	AgentCode    string `gorm:"type:varchar(32);uniqueIndex;not null" json:"agent_code"`
	ReferrerCode string `gorm:"type:varchar(32);not null;index" json:"referrer_code"`

	// Ordered ancestor codes, index 0 = direct referrer. Array column, not
	// an ad hoc JSON blob, so membership queries stay typed.
	UplineChain pq.StringArray `gorm:"type:text[];not null" json:"upline_chain"`

	ReferralLevel int            `gorm:"not null;default:1" json:"referral_level"` // depth of the agent itself
	Status        ReferralStatus `gorm:"type:varchar(20);not null;default:'active';index" json:"status"`

	// Audit fields
	CreatedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	// Relationships
	Agent Agent `gorm:"foreignKey:AgentCode;references:AgentCode;constraint:OnDelete:CASCADE" json:"agent,omitempty"`
}

// BeforeCreate ensures UUID is set and bounds the chain length
func (r *Referral) BeforeCreate(tx *gorm.DB) error {
	if r.UUID == uuid.Nil {
		r.UUID = uuid.New()
	}
	if len(r.UplineChain) > MaxUplineDepth {
		r.UplineChain = r.UplineChain[:MaxUplineDepth]
	}
	return nil
}

// MaxUplineDepth is the maximum stored upline chain length.
const MaxUplineDepth = 5

// IsActive returns true if commissions may flow through this referral
func (r *Referral) IsActive() bool {
	return r.Status == ReferralStatusActive
}

// ChainAt returns the ancestor code at the given tier (1 = direct referrer)
// and false when the chain is shorter than the requested tier.
func (r *Referral) ChainAt(tier int) (string, bool) {
	if tier < 1 || tier > len(r.UplineChain) {
		return "", false
	}
	return r.UplineChain[tier-1], true
}

// TableName specifies the table name for GORM
func (Referral) TableName() string {
	return "referrals"
}

// ReferralFilter represents filter criteria for referral queries
type ReferralFilter struct {
	ID            *uint           `json:"id,omitempty"`
	UUID          *uuid.UUID      `json:"uuid,omitempty"`
	AgentCode     *string         `json:"agent_code,omitempty"`
	ReferrerCode  *string         `json:"referrer_code,omitempty"`
	Status        *ReferralStatus `json:"status,omitempty"`
	CreatedAfter  *time.Time      `json:"created_after,omitempty"`
	CreatedBefore *time.Time      `json:"created_before,omitempty"`
}
