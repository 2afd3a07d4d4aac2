package repository

import (
	"context"
	"errors"

	"github.com/polisku/commission-engine/models"
	"gorm.io/gorm"
)

// WalletTransactionRepositoryImpl implements WalletTransactionRepository interface
type WalletTransactionRepositoryImpl struct {
	*BaseRepository[models.WalletTransaction, models.WalletTransactionFilter]
}

// NewWalletTransactionRepository creates a new wallet transaction repository
func NewWalletTransactionRepository(db *gorm.DB) WalletTransactionRepository {
	return &WalletTransactionRepositoryImpl{
		BaseRepository: NewBaseRepository[models.WalletTransaction, models.WalletTransactionFilter](db),
	}
}

// ListByAgent returns an agent's ledger entries, newest first
func (r *WalletTransactionRepositoryImpl) ListByAgent(ctx context.Context, agentCode string, limit, offset int) ([]*models.WalletTransaction, error) {
	db := r.getDB(ctx)
	var transactions []*models.WalletTransaction

	query := db.Where("agent_code = ?", agentCode).Order("created_at DESC, id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	err := query.Find(&transactions).Error
	if err != nil {
		return nil, err
	}
	return transactions, nil
}

// LatestByAgent returns the newest ledger entry of an agent, or nil
func (r *WalletTransactionRepositoryImpl) LatestByAgent(ctx context.Context, agentCode string) (*models.WalletTransaction, error) {
	db := r.getDB(ctx)
	var transaction models.WalletTransaction
	err := db.Where("agent_code = ?", agentCode).
		Order("created_at DESC, id DESC").
		First(&transaction).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &transaction, nil
}

// SumDeltaByAgent folds the agent's full ledger: sum(credits) - sum(debits).
// The result must always equal the agent's cached wallet_balance.
func (r *WalletTransactionRepositoryImpl) SumDeltaByAgent(ctx context.Context, agentCode string) (int64, error) {
	db := r.getDB(ctx)
	var total int64
	err := db.Model(&models.WalletTransaction{}).
		Where("agent_code = ?", agentCode).
		Select("COALESCE(SUM(CASE WHEN type = ? THEN amount ELSE -amount END), 0)", models.WalletTransactionTypeCredit).
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}

// ByFilter retrieves ledger entries based on filter criteria
func (r *WalletTransactionRepositoryImpl) ByFilter(ctx context.Context, filter models.WalletTransactionFilter, orderBy string, limit, offset int) ([]*models.WalletTransaction, error) {
	db := r.getDB(ctx)
	var transactions []*models.WalletTransaction

	query := r.applyFilter(db.Model(&models.WalletTransaction{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	err := query.Find(&transactions).Error
	if err != nil {
		return nil, err
	}
	return transactions, nil
}

// Count returns the number of ledger entries matching the filter
func (r *WalletTransactionRepositoryImpl) Count(ctx context.Context, filter models.WalletTransactionFilter) (int64, error) {
	db := r.getDB(ctx)
	var count int64
	err := r.applyFilter(db.Model(&models.WalletTransaction{}), filter).Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any ledger entry matching the filter exists
func (r *WalletTransactionRepositoryImpl) Exists(ctx context.Context, filter models.WalletTransactionFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// applyFilter applies the filter to the query
func (r *WalletTransactionRepositoryImpl) applyFilter(query *gorm.DB, filter models.WalletTransactionFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		query = query.Where("uuid = ?", *filter.UUID)
	}
	if filter.CorrelationID != nil {
		query = query.Where("correlation_id = ?", *filter.CorrelationID)
	}
	if filter.AgentCode != nil {
		query = query.Where("agent_code = ?", *filter.AgentCode)
	}
	if filter.Type != nil {
		query = query.Where("type = ?", *filter.Type)
	}
	if filter.Reference != nil {
		query = query.Where("reference = ?", *filter.Reference)
	}
	if filter.CreatedAfter != nil {
		query = query.Where("created_at > ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		query = query.Where("created_at < ?", *filter.CreatedBefore)
	}
	return query
}
