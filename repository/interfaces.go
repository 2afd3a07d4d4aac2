// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"time"

	"github.com/polisku/commission-engine/models"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	SaveBatch(ctx context.Context, entities []*T) error
	Count(ctx context.Context, filter F) (int64, error)
	Exists(ctx context.Context, filter F) (bool, error)
}

// AgentRepository defines operations for agents
type AgentRepository interface {
	Repository[models.Agent, models.AgentFilter]
	ByAgentCode(ctx context.Context, agentCode string) (*models.Agent, error)
	// ByAgentCodeForUpdate locks the agent row for the remainder of the
	// surrounding transaction. Callers must be inside WithTransaction.
	ByAgentCodeForUpdate(ctx context.Context, agentCode string) (*models.Agent, error)
	ByUUID(ctx context.Context, uuid string) (*models.Agent, error)
	UpdateCachedBalances(ctx context.Context, agentID uint, walletBalance, totalCommissionEarned int64) error
	UpdateReferrer(ctx context.Context, agentID uint, referrerCode string, mlmLevel int) error
	ListByReferrer(ctx context.Context, referrerCode string) ([]*models.Agent, error)
}

// ReferralRepository defines operations for referral links and upline chains
type ReferralRepository interface {
	Repository[models.Referral, models.ReferralFilter]
	ByAgentCode(ctx context.Context, agentCode string) (*models.Referral, error)
	// ListWithAncestor returns every referral whose upline chain contains
	// the given agent code, i.e. the agent's entire bounded downline.
	ListWithAncestor(ctx context.Context, agentCode string) ([]*models.Referral, error)
	UpdateChain(ctx context.Context, referralID uint, chain []string, referralLevel int) error
	// DownlineCountByTier returns, per tier 1..maxTier, how many agents
	// have the given agent at that position of their upline chain.
	DownlineCountByTier(ctx context.Context, agentCode string, maxTier int) (map[int]int64, error)
}

// CommissionRateRepository defines operations for commission rate configuration
type CommissionRateRepository interface {
	Repository[models.CommissionRate, models.CommissionRateFilter]
	ByPlanAndTier(ctx context.Context, planID uint, tierLevel int) (*models.CommissionRate, error)
	ListByPlan(ctx context.Context, planID uint) ([]*models.CommissionRate, error)
	Update(ctx context.Context, rate *models.CommissionRate) error
}

// CommissionTransactionRepository defines operations for commission ledger rows
type CommissionTransactionRepository interface {
	Repository[models.CommissionTransaction, models.CommissionTransactionFilter]
	ByPaymentReference(ctx context.Context, paymentReference string) ([]*models.CommissionTransaction, error)
	ListByEarner(ctx context.Context, earnerAgentCode string, filter models.CommissionTransactionFilter, limit, offset int) ([]*models.CommissionTransaction, error)
	SumPostedByEarner(ctx context.Context, earnerAgentCode string) (int64, error)
	AggregateByEarner(ctx context.Context, from, to *time.Time) ([]*EarnerCommissionAggregate, error)
}

// EarnerCommissionAggregate is a reporting projection of posted commissions
type EarnerCommissionAggregate struct {
	EarnerAgentCode  string `json:"earner_agent_code"`
	FullName         string `json:"full_name"`
	TransactionCount int64  `json:"transaction_count"`
	TotalCommission  int64  `json:"total_commission"`
}

// WalletTransactionRepository defines operations for the wallet ledger
type WalletTransactionRepository interface {
	Repository[models.WalletTransaction, models.WalletTransactionFilter]
	ListByAgent(ctx context.Context, agentCode string, limit, offset int) ([]*models.WalletTransaction, error)
	LatestByAgent(ctx context.Context, agentCode string) (*models.WalletTransaction, error)
	// SumDeltaByAgent folds the full ledger: sum(credits) - sum(debits).
	SumDeltaByAgent(ctx context.Context, agentCode string) (int64, error)
}

// WithdrawalRequestRepository defines operations for withdrawal requests
type WithdrawalRequestRepository interface {
	Repository[models.WithdrawalRequest, models.WithdrawalRequestFilter]
	ByUUID(ctx context.Context, uuid string) (*models.WithdrawalRequest, error)
	// ExistsUnresolvedByAgent reports whether the agent has a request in
	// status pending or approved (approved-but-unpaid blocks new requests).
	ExistsUnresolvedByAgent(ctx context.Context, agentCode string) (bool, error)
	ListByAgent(ctx context.Context, agentCode string, limit, offset int) ([]*models.WithdrawalRequest, error)
	ListByStatus(ctx context.Context, status models.WithdrawalStatus, limit, offset int) ([]*models.WithdrawalRequest, error)
	UpdateStatus(ctx context.Context, requestID uint, from, to models.WithdrawalStatus, at time.Time, adminNote *string) error
}

// ProcessedPaymentRepository defines operations for the disbursement idempotency log
type ProcessedPaymentRepository interface {
	Repository[models.ProcessedPayment, models.ProcessedPaymentFilter]
	ByPaymentReference(ctx context.Context, paymentReference string) (*models.ProcessedPayment, error)
}

// AuditLogRepository defines operations for audit logs
type AuditLogRepository interface {
	Repository[models.AuditLog, models.AuditLogFilter]
	ListByAgent(ctx context.Context, agentCode string, limit, offset int) ([]*models.AuditLog, error)
	ListByAction(ctx context.Context, action string, limit, offset int) ([]*models.AuditLog, error)
	ListFailedActions(ctx context.Context, limit, offset int) ([]*models.AuditLog, error)
}
