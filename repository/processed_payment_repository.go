package repository

import (
	"context"
	"errors"

	"github.com/polisku/commission-engine/models"
	"gorm.io/gorm"
)

// ProcessedPaymentRepositoryImpl implements ProcessedPaymentRepository interface
type ProcessedPaymentRepositoryImpl struct {
	*BaseRepository[models.ProcessedPayment, models.ProcessedPaymentFilter]
}

// NewProcessedPaymentRepository creates a new processed payment repository
func NewProcessedPaymentRepository(db *gorm.DB) ProcessedPaymentRepository {
	return &ProcessedPaymentRepositoryImpl{
		BaseRepository: NewBaseRepository[models.ProcessedPayment, models.ProcessedPaymentFilter](db),
	}
}

// ByPaymentReference finds the idempotency record for a payment reference
func (r *ProcessedPaymentRepositoryImpl) ByPaymentReference(ctx context.Context, paymentReference string) (*models.ProcessedPayment, error) {
	db := r.getDB(ctx)
	var payment models.ProcessedPayment
	err := db.Where("payment_reference = ?", paymentReference).Last(&payment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &payment, nil
}

// ByFilter retrieves processed payments based on filter criteria
func (r *ProcessedPaymentRepositoryImpl) ByFilter(ctx context.Context, filter models.ProcessedPaymentFilter, orderBy string, limit, offset int) ([]*models.ProcessedPayment, error) {
	db := r.getDB(ctx)
	var payments []*models.ProcessedPayment

	query := r.applyFilter(db.Model(&models.ProcessedPayment{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	err := query.Find(&payments).Error
	if err != nil {
		return nil, err
	}
	return payments, nil
}

// Count returns the number of processed payments matching the filter
func (r *ProcessedPaymentRepositoryImpl) Count(ctx context.Context, filter models.ProcessedPaymentFilter) (int64, error) {
	db := r.getDB(ctx)
	var count int64
	err := r.applyFilter(db.Model(&models.ProcessedPayment{}), filter).Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any processed payment matching the filter exists
func (r *ProcessedPaymentRepositoryImpl) Exists(ctx context.Context, filter models.ProcessedPaymentFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// applyFilter applies the filter to the query
func (r *ProcessedPaymentRepositoryImpl) applyFilter(query *gorm.DB, filter models.ProcessedPaymentFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.PaymentReference != nil {
		query = query.Where("payment_reference = ?", *filter.PaymentReference)
	}
	if filter.PayerAgentCode != nil {
		query = query.Where("payer_agent_code = ?", *filter.PayerAgentCode)
	}
	if filter.PlanID != nil {
		query = query.Where("plan_id = ?", *filter.PlanID)
	}
	if filter.CreatedAfter != nil {
		query = query.Where("created_at > ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		query = query.Where("created_at < ?", *filter.CreatedBefore)
	}
	return query
}
