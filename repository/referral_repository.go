package repository

import (
	"context"
	"errors"

	"github.com/lib/pq"
	"github.com/polisku/commission-engine/models"
	"github.com/polisku/commission-engine/utils"
	"gorm.io/gorm"
)

// ReferralRepositoryImpl implements ReferralRepository interface
type ReferralRepositoryImpl struct {
	*BaseRepository[models.Referral, models.ReferralFilter]
}

// NewReferralRepository creates a new referral repository
func NewReferralRepository(db *gorm.DB) ReferralRepository {
	return &ReferralRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Referral, models.ReferralFilter](db),
	}
}

// ByAgentCode finds the referral record of an agent
func (r *ReferralRepositoryImpl) ByAgentCode(ctx context.Context, agentCode string) (*models.Referral, error) {
	db := r.getDB(ctx)
	var referral models.Referral
	err := db.Where("agent_code = ?", agentCode).Last(&referral).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &referral, nil
}

// ListWithAncestor returns every referral whose upline chain contains the
// given agent code. Chains are bounded, so this is the agent's full
// commission-relevant downline.
func (r *ReferralRepositoryImpl) ListWithAncestor(ctx context.Context, agentCode string) ([]*models.Referral, error) {
	db := r.getDB(ctx)
	var referrals []*models.Referral
	err := db.Where("? = ANY(upline_chain)", agentCode).
		Order("referral_level ASC, created_at ASC").
		Find(&referrals).Error
	if err != nil {
		return nil, err
	}
	return referrals, nil
}

// UpdateChain replaces an agent's materialized upline chain wholesale
func (r *ReferralRepositoryImpl) UpdateChain(ctx context.Context, referralID uint, chain []string, referralLevel int) error {
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

	if len(chain) > models.MaxUplineDepth {
		chain = chain[:models.MaxUplineDepth]
	}

	err = db.Model(&models.Referral{}).
		Where("id = ?", referralID).
		Updates(map[string]any{
			"upline_chain":   pq.StringArray(chain),
			"referral_level": referralLevel,
			"updated_at":     utils.UTCNow(),
		}).Error
	return err
}

// DownlineCountByTier counts, per tier, the agents that have the given code
// at that position of their upline chain.
func (r *ReferralRepositoryImpl) DownlineCountByTier(ctx context.Context, agentCode string, maxTier int) (map[int]int64, error) {
	db := r.getDB(ctx)

	if maxTier < 1 || maxTier > models.MaxUplineDepth {
		maxTier = models.MaxUplineDepth
	}

	counts := make(map[int]int64, maxTier)
	for tier := 1; tier <= maxTier; tier++ {
		var count int64
		// Postgres arrays are 1-based, so upline_chain[tier] is tier N.
		err := db.Model(&models.Referral{}).
			Where("upline_chain[?] = ?", tier, agentCode).
			Count(&count).Error
		if err != nil {
			return nil, err
		}
		counts[tier] = count
	}
	return counts, nil
}

// ByFilter retrieves referrals based on filter criteria
func (r *ReferralRepositoryImpl) ByFilter(ctx context.Context, filter models.ReferralFilter, orderBy string, limit, offset int) ([]*models.Referral, error) {
	db := r.getDB(ctx)
	var referrals []*models.Referral

	query := r.applyFilter(db.Model(&models.Referral{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	err := query.Find(&referrals).Error
	if err != nil {
		return nil, err
	}
	return referrals, nil
}

// Count returns the number of referrals matching the filter
func (r *ReferralRepositoryImpl) Count(ctx context.Context, filter models.ReferralFilter) (int64, error) {
	db := r.getDB(ctx)
	var count int64
	err := r.applyFilter(db.Model(&models.Referral{}), filter).Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any referral matching the filter exists
func (r *ReferralRepositoryImpl) Exists(ctx context.Context, filter models.ReferralFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// applyFilter applies the filter to the query
func (r *ReferralRepositoryImpl) applyFilter(query *gorm.DB, filter models.ReferralFilter) *gorm.DB {
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
