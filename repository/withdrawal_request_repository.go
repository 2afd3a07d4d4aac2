package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/polisku/commission-engine/models"
	"gorm.io/gorm"
)

// ErrWithdrawalStateConflict is returned when a status transition finds the
// request no longer in its expected source state.
var ErrWithdrawalStateConflict = errors.New("withdrawal request is not in the expected status")

// WithdrawalRequestRepositoryImpl implements WithdrawalRequestRepository interface
type WithdrawalRequestRepositoryImpl struct {
	*BaseRepository[models.WithdrawalRequest, models.WithdrawalRequestFilter]
}

// NewWithdrawalRequestRepository creates a new withdrawal request repository
func NewWithdrawalRequestRepository(db *gorm.DB) WithdrawalRequestRepository {
	return &WithdrawalRequestRepositoryImpl{
		BaseRepository: NewBaseRepository[models.WithdrawalRequest, models.WithdrawalRequestFilter](db),
	}
}

// ByUUID finds a withdrawal request by UUID
func (r *WithdrawalRequestRepositoryImpl) ByUUID(ctx context.Context, uuid string) (*models.WithdrawalRequest, error) {
	db := r.getDB(ctx)
	var request models.WithdrawalRequest
	err := db.Where("uuid = ?", uuid).Last(&request).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &request, nil
}

// ExistsUnresolvedByAgent reports whether the agent already has a pending or
// approved-but-unpaid request.
func (r *WithdrawalRequestRepositoryImpl) ExistsUnresolvedByAgent(ctx context.Context, agentCode string) (bool, error) {
	db := r.getDB(ctx)
	var count int64
	err := db.Model(&models.WithdrawalRequest{}).
		Where("agent_code = ? AND status IN ?", agentCode,
			[]models.WithdrawalStatus{models.WithdrawalStatusPending, models.WithdrawalStatusApproved}).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListByAgent returns an agent's withdrawal requests, newest first
func (r *WithdrawalRequestRepositoryImpl) ListByAgent(ctx context.Context, agentCode string, limit, offset int) ([]*models.WithdrawalRequest, error) {
	db := r.getDB(ctx)
	var requests []*models.WithdrawalRequest

	query := db.Where("agent_code = ?", agentCode).Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	err := query.Find(&requests).Error
	if err != nil {
		return nil, err
	}
	return requests, nil
}

// ListByStatus returns withdrawal requests in the given status, oldest first
// so admins drain the queue in order.
func (r *WithdrawalRequestRepositoryImpl) ListByStatus(ctx context.Context, status models.WithdrawalStatus, limit, offset int) ([]*models.WithdrawalRequest, error) {
	db := r.getDB(ctx)
	var requests []*models.WithdrawalRequest

	query := db.Where("status = ?", status).Order("created_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	err := query.Find(&requests).Error
	if err != nil {
		return nil, err
	}
	return requests, nil
}

// UpdateStatus performs a guarded state transition. The WHERE clause on the
// source status makes concurrent transitions lose cleanly instead of
// double-applying.
func (r *WithdrawalRequestRepositoryImpl) UpdateStatus(ctx context.Context, requestID uint, from, to models.WithdrawalStatus, at time.Time, adminNote *string) error {
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

	updates := map[string]any{
		"status":     to,
		"updated_at": at,
	}
	switch to {
	case models.WithdrawalStatusApproved:
		updates["approved_at"] = at
	case models.WithdrawalStatusRejected:
		updates["rejected_at"] = at
	case models.WithdrawalStatusPaid:
		updates["paid_at"] = at
	}
	if adminNote != nil {
		updates["admin_note"] = *adminNote
	}

	result := db.Model(&models.WithdrawalRequest{}).
		Where("id = ? AND status = ?", requestID, from).
		Updates(updates)
	if result.Error != nil {
		err = result.Error
		return err
	}
	if result.RowsAffected == 0 {
		err = fmt.Errorf("%w: id=%d from=%s to=%s", ErrWithdrawalStateConflict, requestID, from, to)
		return err
	}
	return nil
}

// ByFilter retrieves withdrawal requests based on filter criteria
func (r *WithdrawalRequestRepositoryImpl) ByFilter(ctx context.Context, filter models.WithdrawalRequestFilter, orderBy string, limit, offset int) ([]*models.WithdrawalRequest, error) {
	db := r.getDB(ctx)
	var requests []*models.WithdrawalRequest

	query := r.applyFilter(db.Model(&models.WithdrawalRequest{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	err := query.Find(&requests).Error
	if err != nil {
		return nil, err
	}
	return requests, nil
}

// Count returns the number of withdrawal requests matching the filter
func (r *WithdrawalRequestRepositoryImpl) Count(ctx context.Context, filter models.WithdrawalRequestFilter) (int64, error) {
	db := r.getDB(ctx)
	var count int64
	err := r.applyFilter(db.Model(&models.WithdrawalRequest{}), filter).Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any withdrawal request matching the filter exists
func (r *WithdrawalRequestRepositoryImpl) Exists(ctx context.Context, filter models.WithdrawalRequestFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// applyFilter applies the filter to the query
func (r *WithdrawalRequestRepositoryImpl) applyFilter(query *gorm.DB, filter models.WithdrawalRequestFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		query = query.Where("uuid = ?", *filter.UUID)
	}
	if filter.AgentCode != nil {
		query = query.Where("agent_code = ?", *filter.AgentCode)
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
