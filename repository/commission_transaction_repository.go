package repository

import (
	"context"
	"time"

	"github.com/polisku/commission-engine/models"
	"gorm.io/gorm"
)

// CommissionTransactionRepositoryImpl implements CommissionTransactionRepository interface
type CommissionTransactionRepositoryImpl struct {
	*BaseRepository[models.CommissionTransaction, models.CommissionTransactionFilter]
}

// NewCommissionTransactionRepository creates a new commission transaction repository
func NewCommissionTransactionRepository(db *gorm.DB) CommissionTransactionRepository {
	return &CommissionTransactionRepositoryImpl{
		BaseRepository: NewBaseRepository[models.CommissionTransaction, models.CommissionTransactionFilter](db),
	}
}

// ByPaymentReference returns all commission rows of one payment ordered by tier
func (r *CommissionTransactionRepositoryImpl) ByPaymentReference(ctx context.Context, paymentReference string) ([]*models.CommissionTransaction, error) {
	db := r.getDB(ctx)
	var transactions []*models.CommissionTransaction
	err := db.Where("payment_reference = ?", paymentReference).
		Order("tier_level ASC").
		Find(&transactions).Error
	if err != nil {
		return nil, err
	}
	return transactions, nil
}

// ListByEarner returns an earner's commission history, newest first
func (r *CommissionTransactionRepositoryImpl) ListByEarner(ctx context.Context, earnerAgentCode string, filter models.CommissionTransactionFilter, limit, offset int) ([]*models.CommissionTransaction, error) {
	db := r.getDB(ctx)
	var transactions []*models.CommissionTransaction

	query := r.applyFilter(db.Model(&models.CommissionTransaction{}), filter).
		Where("earner_agent_code = ?", earnerAgentCode).
		Order("created_at DESC")
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

// SumPostedByEarner totals an earner's posted commissions in minor units
func (r *CommissionTransactionRepositoryImpl) SumPostedByEarner(ctx context.Context, earnerAgentCode string) (int64, error) {
	db := r.getDB(ctx)
	var total int64
	err := db.Model(&models.CommissionTransaction{}).
		Where("earner_agent_code = ? AND status = ?", earnerAgentCode, models.CommissionStatusPosted).
		Select("COALESCE(SUM(commission_amount), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}

// AggregateByEarner groups posted commissions per earner for reporting
func (r *CommissionTransactionRepositoryImpl) AggregateByEarner(ctx context.Context, from, to *time.Time) ([]*EarnerCommissionAggregate, error) {
	db := r.getDB(ctx)

	query := db.Model(&models.CommissionTransaction{}).
		Select(`commission_transactions.earner_agent_code,
			agents.full_name,
			COUNT(commission_transactions.id) AS transaction_count,
			COALESCE(SUM(commission_transactions.commission_amount), 0) AS total_commission`).
		Joins("JOIN agents ON agents.agent_code = commission_transactions.earner_agent_code").
		Where("commission_transactions.status = ?", models.CommissionStatusPosted).
		Group("commission_transactions.earner_agent_code, agents.full_name").
		Order("total_commission DESC")

	if from != nil {
		query = query.Where("commission_transactions.created_at >= ?", *from)
	}
	if to != nil {
		query = query.Where("commission_transactions.created_at <= ?", *to)
	}

	var rows []*EarnerCommissionAggregate
	err := query.Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ByFilter retrieves commission transactions based on filter criteria
func (r *CommissionTransactionRepositoryImpl) ByFilter(ctx context.Context, filter models.CommissionTransactionFilter, orderBy string, limit, offset int) ([]*models.CommissionTransaction, error) {
	db := r.getDB(ctx)
	var transactions []*models.CommissionTransaction

	query := r.applyFilter(db.Model(&models.CommissionTransaction{}), filter)
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

// Count returns the number of commission transactions matching the filter
func (r *CommissionTransactionRepositoryImpl) Count(ctx context.Context, filter models.CommissionTransactionFilter) (int64, error) {
	db := r.getDB(ctx)
	var count int64
	err := r.applyFilter(db.Model(&models.CommissionTransaction{}), filter).Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any commission transaction matching the filter exists
func (r *CommissionTransactionRepositoryImpl) Exists(ctx context.Context, filter models.CommissionTransactionFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// applyFilter applies the filter to the query
func (r *CommissionTransactionRepositoryImpl) applyFilter(query *gorm.DB, filter models.CommissionTransactionFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		query = query.Where("uuid = ?", *filter.UUID)
	}
	if filter.CorrelationID != nil {
		query = query.Where("correlation_id = ?", *filter.CorrelationID)
	}
	if filter.PaymentReference != nil {
		query = query.Where("payment_reference = ?", *filter.PaymentReference)
	}
	if filter.PayerAgentCode != nil {
		query = query.Where("payer_agent_code = ?", *filter.PayerAgentCode)
	}
	if filter.EarnerAgentCode != nil {
		query = query.Where("earner_agent_code = ?", *filter.EarnerAgentCode)
	}
	if filter.PlanID != nil {
		query = query.Where("plan_id = ?", *filter.PlanID)
	}
	if filter.TierLevel != nil {
		query = query.Where("tier_level = ?", *filter.TierLevel)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.CreatedAfter != nil {
		query = query.Where("created_at > ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		query = query.Where("created_at < ?", *filter.CreatedBefore)
	}
	return query
}
