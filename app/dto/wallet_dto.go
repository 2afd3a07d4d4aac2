package dto

import "time"

// GetWalletSummaryRequest represents a dashboard query for an agent's wallet
type GetWalletSummaryRequest struct {
	AgentCode   string `json:"agent_code" validate:"required,agent_code"`
	RecentLimit int    `json:"recent_limit" validate:"omitempty,min=1,max=100"`
}

// WalletTransactionDTO is the API projection of one ledger entry
type WalletTransactionDTO struct {
	UUID          string    `json:"uuid"`
	Type          string    `json:"type"`
	Amount        int64     `json:"amount"`
	BalanceBefore int64     `json:"balance_before"`
	BalanceAfter  int64     `json:"balance_after"`
	Reference     string    `json:"reference"`
	Description   string    `json:"description"`
	CreatedAt     time.Time `json:"created_at"`
}

// GetWalletSummaryResponse is the dashboard wallet summary
type GetWalletSummaryResponse struct {
	AgentCode          string                 `json:"agent_code"`
	Balance            int64                  `json:"balance"`
	TotalEarned        int64                  `json:"total_earned"`
	RecentTransactions []WalletTransactionDTO `json:"recent_transactions"`
}

// GetCommissionHistoryRequest represents a paginated commission history query
type GetCommissionHistoryRequest struct {
	AgentCode string     `json:"agent_code" validate:"required,agent_code"`
	Page      uint       `json:"page" validate:"min=1"`
	PageSize  uint       `json:"page_size" validate:"min=1,max=100"`
	PlanID    *uint      `json:"plan_id,omitempty"`
	TierLevel *int       `json:"tier_level,omitempty" validate:"omitempty,min=1,max=5"`
	Status    *string    `json:"status,omitempty" validate:"omitempty,oneof=pending posted reversed"`
	StartDate *time.Time `json:"start_date,omitempty"`
	EndDate   *time.Time `json:"end_date,omitempty"`
}

// CommissionHistoryItem is one commission credit in an earner's history
type CommissionHistoryItem struct {
	UUID             string    `json:"uuid"`
	PaymentReference string    `json:"payment_reference"`
	PayerAgentCode   string    `json:"payer_agent_code"`
	PlanID           uint      `json:"plan_id"`
	TierLevel        int       `json:"tier_level"`
	BaseAmount       int64     `json:"base_amount"`
	CommissionAmount int64     `json:"commission_amount"`
	Status           string    `json:"status"`
	CreatedAt        time.Time `json:"created_at"`
}

// GetCommissionHistoryResponse is the paginated commission history
type GetCommissionHistoryResponse struct {
	Items       []CommissionHistoryItem `json:"items"`
	Pagination  PaginationInfo          `json:"pagination"`
	TotalEarned int64                   `json:"total_earned"`
}
