package repository

import (
	"context"
	"errors"

	"github.com/polisku/commission-engine/models"
	"github.com/polisku/commission-engine/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AgentRepositoryImpl implements AgentRepository interface
type AgentRepositoryImpl struct {
	*BaseRepository[models.Agent, models.AgentFilter]
}

// NewAgentRepository creates a new agent repository
func NewAgentRepository(db *gorm.DB) AgentRepository {
	return &AgentRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Agent, models.AgentFilter](db),
	}
}

// ByAgentCode finds an agent by its unique code
func (r *AgentRepositoryImpl) ByAgentCode(ctx context.Context, agentCode string) (*models.Agent, error) {
	db := r.getDB(ctx)
	var agent models.Agent
	err := db.Where("agent_code = ?", agentCode).Last(&agent).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &agent, nil
}

// ByAgentCodeForUpdate finds an agent by code with a FOR UPDATE row lock.
// Only meaningful inside a transaction; outside one the lock is released
// immediately.
func (r *AgentRepositoryImpl) ByAgentCodeForUpdate(ctx context.Context, agentCode string) (*models.Agent, error) {
	db := r.getDB(ctx)
	var agent models.Agent
	err := db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("agent_code = ?", agentCode).
		Last(&agent).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &agent, nil
}

// ByUUID finds an agent by UUID
func (r *AgentRepositoryImpl) ByUUID(ctx context.Context, uuid string) (*models.Agent, error) {
	db := r.getDB(ctx)
	var agent models.Agent
	err := db.Where("uuid = ?", uuid).Last(&agent).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &agent, nil
}

// UpdateCachedBalances overwrites the agent's denormalized ledger aggregates.
// Callers compute the new values from a locked row inside the same
// transaction as the ledger write.
func (r *AgentRepositoryImpl) UpdateCachedBalances(ctx context.Context, agentID uint, walletBalance, totalCommissionEarned int64) error {
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

	err = db.Model(&models.Agent{}).
		Where("id = ?", agentID).
		Updates(map[string]any{
			"wallet_balance":          walletBalance,
			"total_commission_earned": totalCommissionEarned,
			"updated_at":              utils.UTCNow(),
		}).Error
	return err
}

// UpdateReferrer re-links an agent under a new referrer
func (r *AgentRepositoryImpl) UpdateReferrer(ctx context.Context, agentID uint, referrerCode string, mlmLevel int) error {
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

	err = db.Model(&models.Agent{}).
		Where("id = ?", agentID).
		Updates(map[string]any{
			"referrer_code": referrerCode,
			"mlm_level":     mlmLevel,
			"updated_at":    utils.UTCNow(),
		}).Error
	return err
}

// ListByReferrer returns the agents directly referred by the given code
func (r *AgentRepositoryImpl) ListByReferrer(ctx context.Context, referrerCode string) ([]*models.Agent, error) {
	db := r.getDB(ctx)
	var agents []*models.Agent
	err := db.Where("referrer_code = ?", referrerCode).Order("created_at ASC").Find(&agents).Error
	if err != nil {
		return nil, err
	}
	return agents, nil
}

// ByFilter retrieves agents based on filter criteria
func (r *AgentRepositoryImpl) ByFilter(ctx context.Context, filter models.AgentFilter, orderBy string, limit, offset int) ([]*models.Agent, error) {
	db := r.getDB(ctx)
	var agents []*models.Agent

	query := r.applyFilter(db.Model(&models.Agent{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	err := query.Find(&agents).Error
	if err != nil {
		return nil, err
	}
	return agents, nil
}

// Count returns the number of agents matching the filter
func (r *AgentRepositoryImpl) Count(ctx context.Context, filter models.AgentFilter) (int64, error) {
	db := r.getDB(ctx)
	var count int64
	err := r.applyFilter(db.Model(&models.Agent{}), filter).Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any agent matching the filter exists
func (r *AgentRepositoryImpl) Exists(ctx context.Context, filter models.AgentFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// applyFilter applies the filter to the query
func (r *AgentRepositoryImpl) applyFilter(query *gorm.DB, filter models.AgentFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		query = query.Where("uuid = ?", *filter.UUID)
	}
	if filter.AgentCode != nil {
		query = query.Where("agent_code = ?", *filter.AgentCode)
	}
	if filter.ReferrerCode != nil {
		query = query.Where("referrer_code = ?", *filter.ReferrerCode)
	}
	if filter.MlmLevel != nil {
		query = query.Where("mlm_level = ?", *filter.MlmLevel)
	}
	if filter.IsActive != nil {
		query = query.Where("is_active = ?", *filter.IsActive)
	}
	if filter.CreatedAfter != nil {
		query = query.Where("created_at > ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		query = query.Where("created_at < ?", *filter.CreatedBefore)
	}
	return query
}
