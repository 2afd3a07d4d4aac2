package businessflow

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/polisku/commission-engine/app/dto"
	"github.com/polisku/commission-engine/models"
	"github.com/polisku/commission-engine/repository"
	"github.com/polisku/commission-engine/utils"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// ReferralFlow handles referral placement and upline chain queries
type ReferralFlow interface {
	RecordReferral(ctx context.Context, req *dto.RecordReferralRequest, metadata *ClientMetadata) (*dto.RecordReferralResponse, error)
	GetUplineChain(ctx context.Context, req *dto.GetUplineChainRequest) (*dto.GetUplineChainResponse, error)
	GetDownlineCounts(ctx context.Context, req *dto.GetDownlineCountsRequest) (*dto.GetDownlineCountsResponse, error)
}

type referralFlow struct {
	agentRepo    repository.AgentRepository
	referralRepo repository.ReferralRepository
	auditRepo    repository.AuditLogRepository
	redisClient  *redis.Client
	db           *gorm.DB
}

// NewReferralFlow creates a new referral business flow
func NewReferralFlow(
	agentRepo repository.AgentRepository,
	referralRepo repository.ReferralRepository,
	auditRepo repository.AuditLogRepository,
	redisClient *redis.Client,
	db *gorm.DB,
) ReferralFlow {
	return &referralFlow{
		agentRepo:    agentRepo,
		referralRepo: referralRepo,
		auditRepo:    auditRepo,
		redisClient:  redisClient,
		db:           db,
	}
}

func uplineChainCacheKey(agentCode string) string {
	return fmt.Sprintf("%s:%s", utils.UplineChainCacheKey, agentCode)
}

// RecordReferral links an agent under a referrer and materializes the upline
// chain. It also handles re-linking: when the agent already has a referral
// row, the row is repointed and every descendant's chain is recomputed in the
// same transaction, so no stale ancestor survives the move.
func (f *referralFlow) RecordReferral(ctx context.Context, req *dto.RecordReferralRequest, metadata *ClientMetadata) (*dto.RecordReferralResponse, error) {
	if req.AgentCode == req.ReferrerCode {
		f.auditReferralFailure(ctx, req, ErrSelfReferral.Error(), metadata)
		return nil, NewBusinessError("SELF_REFERRAL", "An agent cannot refer themselves", ErrSelfReferral)
	}

	agent, err := getAgent(ctx, f.agentRepo, req.AgentCode)
	if err != nil {
		f.auditReferralFailure(ctx, req, err.Error(), metadata)
		return nil, NewBusinessError("AGENT_NOT_FOUND", "Agent not found or inactive", err)
	}

	referrer, err := f.agentRepo.ByAgentCode(ctx, req.ReferrerCode)
	if err != nil {
		return nil, NewBusinessError("DB_ERROR", "Failed to load referrer", err)
	}
	if referrer == nil || !utils.IsTrue(referrer.IsActive) {
		f.auditReferralFailure(ctx, req, "referrer missing or inactive", metadata)
		return nil, NewBusinessError("REFERRER_NOT_FOUND", "Referrer not found or inactive", ErrReferrerNotFound)
	}

	var response *dto.RecordReferralResponse
	err = repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		// Cycle check walks live parent pointers from the referrer; if the
		// agent shows up among the referrer's ancestors, the link would
		// close a loop.
		referrerChain, chainErr := computeUplineChain(txCtx, f.agentRepo, referrer.AgentCode, models.MaxUplineDepth)
		if chainErr != nil {
			return chainErr
		}
		if referrer.ReferrerCode != nil && *referrer.ReferrerCode == agent.AgentCode {
			return ErrReferralCycle
		}
		for _, ancestor := range referrerChain {
			if ancestor == agent.AgentCode {
				return ErrReferralCycle
			}
		}

		chain := make([]string, 0, models.MaxUplineDepth)
		chain = append(chain, referrer.AgentCode)
		for _, ancestor := range referrerChain {
			if len(chain) == models.MaxUplineDepth {
				break
			}
			chain = append(chain, ancestor)
		}
		level := referrer.MlmLevel + 1

		if updErr := f.agentRepo.UpdateReferrer(txCtx, agent.ID, referrer.AgentCode, level); updErr != nil {
			return updErr
		}

		referral, refErr := f.referralRepo.ByAgentCode(txCtx, agent.AgentCode)
		if refErr != nil {
			return refErr
		}
		if referral == nil {
			referral = &models.Referral{
				AgentCode:     agent.AgentCode,
				ReferrerCode:  referrer.AgentCode,
				UplineChain:   chain,
				ReferralLevel: level,
				Status:        models.ReferralStatusActive,
				CreatedAt:     utils.UTCNow(),
				UpdatedAt:     utils.UTCNow(),
			}
			if saveErr := f.referralRepo.Save(txCtx, referral); saveErr != nil {
				return saveErr
			}
		} else {
			referral.ReferrerCode = referrer.AgentCode
			referral.UplineChain = chain
			referral.ReferralLevel = level
			referral.UpdatedAt = utils.UTCNow()
			if saveErr := f.referralRepo.Save(txCtx, referral); saveErr != nil {
				return saveErr
			}
		}

		// Repointing the agent shifts every descendant's ancestor list, so
		// their materialized chains are rebuilt from live parent pointers.
		if rebuildErr := f.rebuildDownlineChains(txCtx, agent.AgentCode); rebuildErr != nil {
			return rebuildErr
		}

		response = &dto.RecordReferralResponse{
			Message:       "Referral recorded successfully",
			AgentCode:     agent.AgentCode,
			ReferrerCode:  referrer.AgentCode,
			UplineChain:   chain,
			ReferralLevel: level,
		}
		return nil
	})
	if err != nil {
		f.auditReferralFailure(ctx, req, err.Error(), metadata)
		if IsReferralCycle(err) {
			return nil, NewBusinessError("REFERRAL_CYCLE", "Referral would create a cycle", err)
		}
		return nil, NewBusinessError("REFERRAL_RECORD_FAILED", "Failed to record referral", err)
	}

	f.invalidateChainCache(ctx, req.AgentCode)

	description := fmt.Sprintf("agent %s linked under referrer %s at level %d", req.AgentCode, req.ReferrerCode, response.ReferralLevel)
	_ = createAuditLog(ctx, f.auditRepo, &req.AgentCode, models.AuditActionReferralRecorded, description, true, nil, metadata)

	return response, nil
}

// rebuildDownlineChains recomputes the materialized chain of every agent that
// currently lists agentCode as an ancestor, plus direct children whose chain
// might not mention it yet. Must run inside the caller's transaction.
func (f *referralFlow) rebuildDownlineChains(ctx context.Context, agentCode string) error {
	downline, err := f.referralRepo.ListWithAncestor(ctx, agentCode)
	if err != nil {
		return err
	}
	for _, referral := range downline {
		chain, chainErr := computeUplineChain(ctx, f.agentRepo, referral.AgentCode, models.MaxUplineDepth)
		if chainErr != nil {
			return chainErr
		}
		descendant, agentErr := f.agentRepo.ByAgentCode(ctx, referral.AgentCode)
		if agentErr != nil {
			return agentErr
		}
		level := referral.ReferralLevel
		if descendant != nil && !descendant.IsRoot() {
			level = descendant.MlmLevel
		}
		if updErr := f.referralRepo.UpdateChain(ctx, referral.ID, chain, level); updErr != nil {
			return updErr
		}
		f.invalidateChainCache(ctx, referral.AgentCode)
	}
	return nil
}

// GetUplineChain returns an agent's ancestor chain, serving from the Redis
// cache when possible and falling back to the materialized referral row.
func (f *referralFlow) GetUplineChain(ctx context.Context, req *dto.GetUplineChainRequest) (*dto.GetUplineChainResponse, error) {
	maxDepth := req.MaxDepth
	if maxDepth < 1 || maxDepth > utils.MaxTierDepth {
		maxDepth = utils.MaxTierDepth
	}

	if f.redisClient != nil {
		if cached, err := f.redisClient.Get(ctx, uplineChainCacheKey(req.AgentCode)).Result(); err == nil {
			var chain []string
			if json.Unmarshal([]byte(cached), &chain) == nil {
				if len(chain) > maxDepth {
					chain = chain[:maxDepth]
				}
				return &dto.GetUplineChainResponse{AgentCode: req.AgentCode, UplineChain: chain}, nil
			}
		}
	}

	agent, err := f.agentRepo.ByAgentCode(ctx, req.AgentCode)
	if err != nil {
		return nil, NewBusinessError("DB_ERROR", "Failed to load agent", err)
	}
	if agent == nil {
		return nil, NewBusinessError("AGENT_NOT_FOUND", "Agent not found", ErrAgentNotFound)
	}

	var chain []string
	referral, err := f.referralRepo.ByAgentCode(ctx, req.AgentCode)
	if err != nil {
		return nil, NewBusinessError("DB_ERROR", "Failed to load referral", err)
	}
	if referral != nil {
		chain = append(chain, referral.UplineChain...)
	} else {
		chain, err = computeUplineChain(ctx, f.agentRepo, req.AgentCode, models.MaxUplineDepth)
		if err != nil {
			return nil, NewBusinessError("DB_ERROR", "Failed to compute upline chain", err)
		}
	}

	f.cacheChain(ctx, req.AgentCode, chain)

	if len(chain) > maxDepth {
		chain = chain[:maxDepth]
	}
	return &dto.GetUplineChainResponse{AgentCode: req.AgentCode, UplineChain: chain}, nil
}

// GetDownlineCounts returns how many descendants an agent has at each tier.
func (f *referralFlow) GetDownlineCounts(ctx context.Context, req *dto.GetDownlineCountsRequest) (*dto.GetDownlineCountsResponse, error) {
	maxLevel := req.MaxLevel
	if maxLevel < 1 || maxLevel > utils.MaxTierDepth {
		maxLevel = utils.MaxTierDepth
	}

	agent, err := f.agentRepo.ByAgentCode(ctx, req.AgentCode)
	if err != nil {
		return nil, NewBusinessError("DB_ERROR", "Failed to load agent", err)
	}
	if agent == nil {
		return nil, NewBusinessError("AGENT_NOT_FOUND", "Agent not found", ErrAgentNotFound)
	}

	counts, err := f.referralRepo.DownlineCountByTier(ctx, req.AgentCode, maxLevel)
	if err != nil {
		return nil, NewBusinessError("DB_ERROR", "Failed to count downline", err)
	}

	response := &dto.GetDownlineCountsResponse{AgentCode: req.AgentCode}
	for level := 1; level <= maxLevel; level++ {
		count := counts[level]
		response.Levels = append(response.Levels, dto.DownlineLevelCount{Level: level, Count: count})
		response.Total += count
	}
	return response, nil
}

func (f *referralFlow) cacheChain(ctx context.Context, agentCode string, chain []string) {
	if f.redisClient == nil {
		return
	}
	payload, err := json.Marshal(chain)
	if err != nil {
		return
	}
	f.redisClient.Set(ctx, uplineChainCacheKey(agentCode), payload, utils.UplineChainCacheTTL)
}

func (f *referralFlow) invalidateChainCache(ctx context.Context, agentCode string) {
	if f.redisClient == nil {
		return
	}
	f.redisClient.Del(ctx, uplineChainCacheKey(agentCode))
}

func (f *referralFlow) auditReferralFailure(ctx context.Context, req *dto.RecordReferralRequest, errMsg string, metadata *ClientMetadata) {
	description := fmt.Sprintf("failed to link agent %s under referrer %s", req.AgentCode, req.ReferrerCode)
	_ = createAuditLog(ctx, f.auditRepo, &req.AgentCode, models.AuditActionReferralRecordFailed, description, false, &errMsg, metadata)
}
