package repository

import (
	"context"
	"errors"

	"github.com/polisku/commission-engine/models"
	"gorm.io/gorm"
)

// CommissionRateRepositoryImpl implements CommissionRateRepository interface
type CommissionRateRepositoryImpl struct {
	*BaseRepository[models.CommissionRate, models.CommissionRateFilter]
}

// NewCommissionRateRepository creates a new commission rate repository
func NewCommissionRateRepository(db *gorm.DB) CommissionRateRepository {
	return &CommissionRateRepositoryImpl{
		BaseRepository: NewBaseRepository[models.CommissionRate, models.CommissionRateFilter](db),
	}
}

// ByPlanAndTier finds the active rate rule for a (plan, tier) pair.
// Returns nil without error when the tier pays no commission for the plan.
func (r *CommissionRateRepositoryImpl) ByPlanAndTier(ctx context.Context, planID uint, tierLevel int) (*models.CommissionRate, error) {
	db := r.getDB(ctx)
	var rate models.CommissionRate
	err := db.Where("plan_id = ? AND tier_level = ? AND is_active = ?", planID, tierLevel, true).
		Last(&rate).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &rate, nil
}

// ListByPlan returns all rate rules of a plan ordered by tier
func (r *CommissionRateRepositoryImpl) ListByPlan(ctx context.Context, planID uint) ([]*models.CommissionRate, error) {
	db := r.getDB(ctx)
	var rates []*models.CommissionRate
	err := db.Where("plan_id = ?", planID).Order("tier_level ASC").Find(&rates).Error
	if err != nil {
		return nil, err
	}
	return rates, nil
}

// Update persists changes to an existing rate rule
func (r *CommissionRateRepositoryImpl) Update(ctx context.Context, rate *models.CommissionRate) error {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return err
	}

	if shouldCommit {
		defer func() {
			if err != nil {
				db.Rollback()
			} else {
				db.Commit()
			}
		}()
	}

	err = db.Save(rate).Error
	return err
}

// ByFilter retrieves rates based on filter criteria
func (r *CommissionRateRepositoryImpl) ByFilter(ctx context.Context, filter models.CommissionRateFilter, orderBy string, limit, offset int) ([]*models.CommissionRate, error) {
	db := r.getDB(ctx)
	var rates []*models.CommissionRate

	query := r.applyFilter(db.Model(&models.CommissionRate{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	err := query.Find(&rates).Error
	if err != nil {
		return nil, err
	}
	return rates, nil
}

// Count returns the number of rates matching the filter
func (r *CommissionRateRepositoryImpl) Count(ctx context.Context, filter models.CommissionRateFilter) (int64, error) {
	db := r.getDB(ctx)
	var count int64
	err := r.applyFilter(db.Model(&models.CommissionRate{}), filter).Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any rate matching the filter exists
func (r *CommissionRateRepositoryImpl) Exists(ctx context.Context, filter models.CommissionRateFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// applyFilter applies the filter to the query
func (r *CommissionRateRepositoryImpl) applyFilter(query *gorm.DB, filter models.CommissionRateFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		query = query.Where("uuid = ?", *filter.UUID)
	}
	if filter.PlanID != nil {
		query = query.Where("plan_id = ?", *filter.PlanID)
	}
	if filter.TierLevel != nil {
		query = query.Where("tier_level = ?", *filter.TierLevel)
	}
	if filter.IsActive != nil {
		query = query.Where("is_active = ?", *filter.IsActive)
	}
	return query
}
