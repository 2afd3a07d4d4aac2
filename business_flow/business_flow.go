// Package businessflow contains the business logic for the commission engine.
package businessflow

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/polisku/commission-engine/app/dto"
	"github.com/polisku/commission-engine/models"
	"github.com/polisku/commission-engine/repository"
	"github.com/polisku/commission-engine/utils"
)

const RequestIDKey = "X-Request-ID"

// ClientMetadata holds all client-related information for audit logging
type ClientMetadata struct {
	IPAddress  string            `json:"ip_address"`
	UserAgent  string            `json:"user_agent"`
	RequestID  string            `json:"request_id,omitempty"`
	Additional map[string]string `json:"additional,omitempty"`
}

// NewClientMetadata creates a new ClientMetadata instance with basic information
func NewClientMetadata(ipAddress, userAgent string) *ClientMetadata {
	return &ClientMetadata{
		IPAddress:  ipAddress,
		UserAgent:  userAgent,
		Additional: make(map[string]string),
	}
}

// SetRequestID sets the request ID
func (cm *ClientMetadata) SetRequestID(requestID string) {
	cm.RequestID = requestID
}

// getAgent loads an active agent by code or fails with ErrAgentNotFound /
// ErrAgentInactive.
func getAgent(ctx context.Context, repo repository.AgentRepository, agentCode string) (*models.Agent, error) {
	agent, err := repo.ByAgentCode(ctx, agentCode)
	if err != nil {
		return nil, err
	}
	if agent == nil {
		return nil, fmt.Errorf("%w: %s", ErrAgentNotFound, agentCode)
	}
	if !utils.IsTrue(agent.IsActive) {
		return nil, fmt.Errorf("%w: %s", ErrAgentInactive, agentCode)
	}
	return agent, nil
}

// createAuditLog writes an audit entry; failures are ignored by callers
// because audit must never break the main flow.
func createAuditLog(ctx context.Context, repo repository.AuditLogRepository, agentCode *string, action, description string, success bool, errorMessage *string, metadata *ClientMetadata) error {
	entry := &models.AuditLog{
		AgentCode:    agentCode,
		Action:       action,
		Description:  &description,
		Success:      utils.ToPtr(success),
		ErrorMessage: errorMessage,
		CreatedAt:    utils.UTCNow(),
	}
	if metadata != nil {
		if metadata.IPAddress != "" {
			entry.IPAddress = &metadata.IPAddress
		}
		if metadata.UserAgent != "" {
			entry.UserAgent = &metadata.UserAgent
		}
		if metadata.RequestID != "" {
			entry.RequestID = &metadata.RequestID
		}
		if meta, err := json.Marshal(metadata); err == nil {
			entry.Metadata = meta
		}
	}
	return repo.Save(ctx, entry)
}

// computeUplineChain walks parent pointers from the given agent up to
// maxDepth ancestors. It reads live agent rows instead of trusting the
// materialized chain, so referrer reassignments can never leak a stale
// ancestor into a commission run. The visited set guards against cycles.
func computeUplineChain(ctx context.Context, repo repository.AgentRepository, agentCode string, maxDepth int) ([]string, error) {
	if maxDepth < 1 || maxDepth > models.MaxUplineDepth {
		maxDepth = models.MaxUplineDepth
	}

	chain := make([]string, 0, maxDepth)
	visited := map[string]bool{agentCode: true}

	current, err := repo.ByAgentCode(ctx, agentCode)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, fmt.Errorf("%w: %s", ErrAgentNotFound, agentCode)
	}

	for len(chain) < maxDepth {
		if current.ReferrerCode == nil || *current.ReferrerCode == "" {
			break
		}
		parentCode := *current.ReferrerCode
		if visited[parentCode] {
			break
		}
		visited[parentCode] = true

		parent, err := repo.ByAgentCode(ctx, parentCode)
		if err != nil {
			return nil, err
		}
		if parent == nil {
			// Dangling referrer pointer truncates the chain.
			break
		}

		chain = append(chain, parentCode)
		current = parent
	}

	return chain, nil
}

// creditWallet appends a credit ledger entry and refreshes the agent's
// cached aggregates. The caller must hold a FOR UPDATE lock on the agent row
// inside the surrounding transaction.
func creditWallet(ctx context.Context, agentRepo repository.AgentRepository, walletTxRepo repository.WalletTransactionRepository, agent *models.Agent, amount int64, correlationID uuid.UUID, reference, description string, earnsCommission bool) (*models.WalletTransaction, error) {
	if amount <= 0 {
		return nil, ErrAmountNotPositive
	}

	entry := &models.WalletTransaction{
		UUID:          uuid.New(),
		CorrelationID: correlationID,
		AgentCode:     agent.AgentCode,
		Type:          models.WalletTransactionTypeCredit,
		Amount:        amount,
		BalanceBefore: agent.WalletBalance,
		BalanceAfter:  agent.WalletBalance + amount,
		Reference:     reference,
		Description:   description,
		Metadata:      json.RawMessage(`{}`),
		CreatedAt:     utils.UTCNow(),
	}
	if err := walletTxRepo.Save(ctx, entry); err != nil {
		return nil, err
	}

	newTotal := agent.TotalCommissionEarned
	if earnsCommission {
		newTotal += amount
	}
	if err := agentRepo.UpdateCachedBalances(ctx, agent.ID, entry.BalanceAfter, newTotal); err != nil {
		return nil, err
	}

	agent.WalletBalance = entry.BalanceAfter
	agent.TotalCommissionEarned = newTotal
	return entry, nil
}

// debitWallet appends a debit ledger entry and refreshes the agent's cached
// balance. Fails with ErrInsufficientBalance before writing anything when
// the amount exceeds the locked row's balance. Same locking contract as
// creditWallet.
func debitWallet(ctx context.Context, agentRepo repository.AgentRepository, walletTxRepo repository.WalletTransactionRepository, agent *models.Agent, amount int64, correlationID uuid.UUID, reference, description string) (*models.WalletTransaction, error) {
	if amount <= 0 {
		return nil, ErrAmountNotPositive
	}
	if amount > agent.WalletBalance {
		return nil, fmt.Errorf("%w: balance=%d requested=%d", ErrInsufficientBalance, agent.WalletBalance, amount)
	}

	entry := &models.WalletTransaction{
		UUID:          uuid.New(),
		CorrelationID: correlationID,
		AgentCode:     agent.AgentCode,
		Type:          models.WalletTransactionTypeDebit,
		Amount:        amount,
		BalanceBefore: agent.WalletBalance,
		BalanceAfter:  agent.WalletBalance - amount,
		Reference:     reference,
		Description:   description,
		Metadata:      json.RawMessage(`{}`),
		CreatedAt:     utils.UTCNow(),
	}
	if err := walletTxRepo.Save(ctx, entry); err != nil {
		return nil, err
	}

	if err := agentRepo.UpdateCachedBalances(ctx, agent.ID, entry.BalanceAfter, agent.TotalCommissionEarned); err != nil {
		return nil, err
	}

	agent.WalletBalance = entry.BalanceAfter
	return entry, nil
}

// ToWithdrawalRequestDTO converts a withdrawal model to its API projection
func ToWithdrawalRequestDTO(request models.WithdrawalRequest) dto.WithdrawalRequestDTO {
	return dto.WithdrawalRequestDTO{
		UUID:              request.UUID.String(),
		AgentCode:         request.AgentCode,
		Amount:            request.Amount,
		Status:            string(request.Status),
		BankName:          request.BankName,
		BankAccountNumber: request.BankAccountNumber,
		BankAccountHolder: request.BankAccountHolder,
		AdminNote:         request.AdminNote,
		ApprovedAt:        request.ApprovedAt,
		RejectedAt:        request.RejectedAt,
		PaidAt:            request.PaidAt,
		CreatedAt:         request.CreatedAt,
	}
}

// ToCommissionRateDTO converts a rate model to its API projection
func ToCommissionRateDTO(rate models.CommissionRate) dto.CommissionRateDTO {
	return dto.CommissionRateDTO{
		UUID:        rate.UUID.String(),
		PlanID:      rate.PlanID,
		TierLevel:   rate.TierLevel,
		RatePercent: rate.RatePercent,
		FixedAmount: rate.FixedAmount,
		IsActive:    utils.IsTrue(rate.IsActive),
		Description: rate.Description,
		UpdatedAt:   rate.UpdatedAt,
	}
}
