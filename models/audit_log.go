package models

import (
	"encoding/json"
	"time"
)

// AuditLog records who did what to the ledger and whether it succeeded.
type AuditLog struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	AgentCode    *string         `gorm:"type:varchar(32);index:idx_audit_agent_code" json:"agent_code,omitempty"`
	Action       string          `gorm:"type:varchar(64);not null;index:idx_audit_action" json:"action"`
	Description  *string         `gorm:"type:text" json:"description,omitempty"`
	IPAddress    *string         `gorm:"type:varchar(45);index:idx_audit_ip_address" json:"ip_address,omitempty"`
	UserAgent    *string         `gorm:"type:text" json:"user_agent,omitempty"`
	RequestID    *string         `gorm:"size:255;index:idx_audit_request_id" json:"request_id,omitempty"`
	Metadata     json.RawMessage `gorm:"type:jsonb" json:"metadata,omitempty"`
	Success      *bool           `gorm:"default:true;index:idx_audit_success" json:"success"`
	ErrorMessage *string         `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt    time.Time       `gorm:"default:CURRENT_TIMESTAMP;index:idx_audit_created_at" json:"created_at"`
}

func (AuditLog) TableName() string {
	return "audit_log"
}

// Audit action constants
const (
	AuditActionReferralRecorded        = "referral_recorded"
	AuditActionReferralRecordFailed    = "referral_record_failed"
	AuditActionDisbursementCompleted   = "disbursement_completed"
	AuditActionDisbursementReplayed    = "disbursement_replayed"
	AuditActionDisbursementFailed      = "disbursement_failed"
	AuditActionWithdrawalRequested     = "withdrawal_requested"
	AuditActionWithdrawalRequestFailed = "withdrawal_request_failed"
	AuditActionWithdrawalApproved      = "withdrawal_approved"
	AuditActionWithdrawalRejected      = "withdrawal_rejected"
	AuditActionWithdrawalPaid          = "withdrawal_paid"
	AuditActionWithdrawalPayoutFailed  = "withdrawal_payout_failed"
	AuditActionRateCreated             = "commission_rate_created"
	AuditActionRateUpdated             = "commission_rate_updated"
	AuditActionAdminLogin              = "admin_login"
	AuditActionAdminLoginFailed        = "admin_login_failed"
	AuditActionAgentTokenIssued        = "agent_token_issued"
	AuditActionBalanceDriftDetected    = "balance_drift_detected"
)

// AuditLogFilter represents filter criteria for audit log queries
type AuditLogFilter struct {
	ID            *uint
	AgentCode     *string
	Action        *string
	Success       *bool
	IPAddress     *string
	RequestID     *string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}

func (a *AuditLog) IsFailed() bool {
	return a.Success != nil && !*a.Success
}
