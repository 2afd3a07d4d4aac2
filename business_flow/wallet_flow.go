package businessflow

import (
	"context"

	"github.com/polisku/commission-engine/app/dto"
	"github.com/polisku/commission-engine/models"
	"github.com/polisku/commission-engine/repository"
	"github.com/polisku/commission-engine/utils"
)

// WalletFlow serves agent-facing wallet and commission history queries
type WalletFlow interface {
	GetWalletSummary(ctx context.Context, req *dto.GetWalletSummaryRequest) (*dto.GetWalletSummaryResponse, error)
	GetCommissionHistory(ctx context.Context, req *dto.GetCommissionHistoryRequest) (*dto.GetCommissionHistoryResponse, error)
	// ReconcileBalance folds the full ledger for one agent and reports
	// whether the cached balance matches. Exposed for operational checks.
	ReconcileBalance(ctx context.Context, agentCode string) (cached int64, derived int64, err error)
}

type walletFlow struct {
	agentRepo        repository.AgentRepository
	walletTxRepo     repository.WalletTransactionRepository
	commissionTxRepo repository.CommissionTransactionRepository
}

// NewWalletFlow creates a new wallet business flow
func NewWalletFlow(
	agentRepo repository.AgentRepository,
	walletTxRepo repository.WalletTransactionRepository,
	commissionTxRepo repository.CommissionTransactionRepository,
) WalletFlow {
	return &walletFlow{
		agentRepo:        agentRepo,
		walletTxRepo:     walletTxRepo,
		commissionTxRepo: commissionTxRepo,
	}
}

// GetWalletSummary returns the cached balance, lifetime earnings, and the
// most recent ledger entries for one agent.
func (f *walletFlow) GetWalletSummary(ctx context.Context, req *dto.GetWalletSummaryRequest) (*dto.GetWalletSummaryResponse, error) {
	agent, err := f.agentRepo.ByAgentCode(ctx, req.AgentCode)
	if err != nil {
		return nil, NewBusinessError("DB_ERROR", "Failed to load agent", err)
	}
	if agent == nil {
		return nil, NewBusinessError("AGENT_NOT_FOUND", "Agent not found", ErrAgentNotFound)
	}

	limit := req.RecentLimit
	if limit < 1 || limit > utils.MaxPageSize {
		limit = utils.DefaultPageSize
	}
	entries, err := f.walletTxRepo.ListByAgent(ctx, req.AgentCode, limit, 0)
	if err != nil {
		return nil, NewBusinessError("DB_ERROR", "Failed to load wallet transactions", err)
	}

	response := &dto.GetWalletSummaryResponse{
		AgentCode:          agent.AgentCode,
		Balance:            agent.WalletBalance,
		TotalEarned:        agent.TotalCommissionEarned,
		RecentTransactions: make([]dto.WalletTransactionDTO, 0, len(entries)),
	}
	for _, entry := range entries {
		response.RecentTransactions = append(response.RecentTransactions, dto.WalletTransactionDTO{
			UUID:          entry.UUID.String(),
			Type:          string(entry.Type),
			Amount:        entry.Amount,
			BalanceBefore: entry.BalanceBefore,
			BalanceAfter:  entry.BalanceAfter,
			Reference:     entry.Reference,
			Description:   entry.Description,
			CreatedAt:     entry.CreatedAt,
		})
	}
	return response, nil
}

// GetCommissionHistory returns a filtered, paginated view of the agent's
// earned commissions plus the lifetime posted total.
func (f *walletFlow) GetCommissionHistory(ctx context.Context, req *dto.GetCommissionHistoryRequest) (*dto.GetCommissionHistoryResponse, error) {
	agent, err := f.agentRepo.ByAgentCode(ctx, req.AgentCode)
	if err != nil {
		return nil, NewBusinessError("DB_ERROR", "Failed to load agent", err)
	}
	if agent == nil {
		return nil, NewBusinessError("AGENT_NOT_FOUND", "Agent not found", ErrAgentNotFound)
	}

	page := req.Page
	if page < 1 {
		return nil, NewBusinessError("INVALID_PAGE", "Page must be at least 1", ErrInvalidPage)
	}
	pageSize := req.PageSize
	if pageSize < 1 || pageSize > utils.MaxPageSize {
		pageSize = utils.DefaultPageSize
	}
	if req.StartDate != nil && req.EndDate != nil && req.StartDate.After(*req.EndDate) {
		return nil, NewBusinessError("INVALID_DATE_RANGE", "Start date must not be after end date", ErrStartDateAfterEndDate)
	}

	filter := models.CommissionTransactionFilter{
		PlanID:        req.PlanID,
		TierLevel:     req.TierLevel,
		CreatedAfter:  req.StartDate,
		CreatedBefore: req.EndDate,
	}
	if req.Status != nil {
		status := models.CommissionTransactionStatus(*req.Status)
		filter.Status = &status
	}

	offset := int((page - 1) * pageSize)
	items, err := f.commissionTxRepo.ListByEarner(ctx, req.AgentCode, filter, int(pageSize), offset)
	if err != nil {
		return nil, NewBusinessError("DB_ERROR", "Failed to load commission history", err)
	}

	countFilter := filter
	countFilter.EarnerAgentCode = &req.AgentCode
	totalItems, err := f.commissionTxRepo.Count(ctx, countFilter)
	if err != nil {
		return nil, NewBusinessError("DB_ERROR", "Failed to count commissions", err)
	}

	totalEarned, err := f.commissionTxRepo.SumPostedByEarner(ctx, req.AgentCode)
	if err != nil {
		return nil, NewBusinessError("DB_ERROR", "Failed to sum commissions", err)
	}

	response := &dto.GetCommissionHistoryResponse{
		Items:       make([]dto.CommissionHistoryItem, 0, len(items)),
		Pagination:  dto.NewPaginationInfo(page, pageSize, uint(totalItems)),
		TotalEarned: totalEarned,
	}
	for _, item := range items {
		response.Items = append(response.Items, dto.CommissionHistoryItem{
			UUID:             item.UUID.String(),
			PaymentReference: item.PaymentReference,
			PayerAgentCode:   item.PayerAgentCode,
			PlanID:           item.PlanID,
			TierLevel:        item.TierLevel,
			BaseAmount:       item.BaseAmount,
			CommissionAmount: item.CommissionAmount,
			Status:           string(item.Status),
			CreatedAt:        item.CreatedAt,
		})
	}
	return response, nil
}

// ReconcileBalance recomputes the agent's balance from the ledger.
func (f *walletFlow) ReconcileBalance(ctx context.Context, agentCode string) (int64, int64, error) {
	agent, err := f.agentRepo.ByAgentCode(ctx, agentCode)
	if err != nil {
		return 0, 0, err
	}
	if agent == nil {
		return 0, 0, ErrAgentNotFound
	}
	derived, err := f.walletTxRepo.SumDeltaByAgent(ctx, agentCode)
	if err != nil {
		return 0, 0, err
	}
	return agent.WalletBalance, derived, nil
}
