package businessflow

import (
	"context"
	"fmt"

	"github.com/polisku/commission-engine/app/dto"
	"github.com/polisku/commission-engine/models"
	"github.com/polisku/commission-engine/repository"
	"github.com/polisku/commission-engine/utils"
	"gorm.io/gorm"
)

// RateFlow handles commission rate administration
type RateFlow interface {
	UpsertCommissionRate(ctx context.Context, req *dto.UpsertCommissionRateRequest, metadata *ClientMetadata) (*dto.UpsertCommissionRateResponse, error)
	ListCommissionRates(ctx context.Context, req *dto.ListCommissionRatesRequest) (*dto.ListCommissionRatesResponse, error)
}

type rateFlow struct {
	rateRepo  repository.CommissionRateRepository
	auditRepo repository.AuditLogRepository
	db        *gorm.DB
}

// NewRateFlow creates a new rate administration flow
func NewRateFlow(rateRepo repository.CommissionRateRepository, auditRepo repository.AuditLogRepository, db *gorm.DB) RateFlow {
	return &rateFlow{rateRepo: rateRepo, auditRepo: auditRepo, db: db}
}

// UpsertCommissionRate creates or replaces the rule for a (plan, tier) pair.
// Rates are versionless configuration: already-posted commissions keep the
// denormalized rule they were computed with.
func (f *rateFlow) UpsertCommissionRate(ctx context.Context, req *dto.UpsertCommissionRateRequest, metadata *ClientMetadata) (*dto.UpsertCommissionRateResponse, error) {
	candidate := &models.CommissionRate{
		PlanID:      req.PlanID,
		TierLevel:   req.TierLevel,
		RatePercent: req.RatePercent,
		FixedAmount: req.FixedAmount,
		IsActive:    req.IsActive,
		Description: req.Description,
	}
	if candidate.IsActive == nil {
		candidate.IsActive = utils.ToPtr(true)
	}
	if err := candidate.Validate(); err != nil {
		return nil, NewBusinessError("RATE_RULE_INVALID", err.Error(), fmt.Errorf("%w: %v", ErrRateRuleInvalid, err))
	}

	var rate *models.CommissionRate
	created := false
	err := repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		existing, loadErr := f.rateRepo.ByPlanAndTier(txCtx, req.PlanID, req.TierLevel)
		if loadErr != nil {
			return loadErr
		}
		if existing == nil {
			candidate.CreatedAt = utils.UTCNow()
			candidate.UpdatedAt = utils.UTCNow()
			if saveErr := f.rateRepo.Save(txCtx, candidate); saveErr != nil {
				return saveErr
			}
			rate = candidate
			created = true
			return nil
		}

		existing.RatePercent = req.RatePercent
		existing.FixedAmount = req.FixedAmount
		existing.IsActive = candidate.IsActive
		existing.Description = req.Description
		existing.UpdatedAt = utils.UTCNow()
		if updErr := f.rateRepo.Update(txCtx, existing); updErr != nil {
			return updErr
		}
		rate = existing
		return nil
	})
	if err != nil {
		return nil, NewBusinessError("RATE_UPSERT_FAILED", "Failed to persist commission rate", err)
	}

	action := models.AuditActionRateUpdated
	message := "Commission rate updated"
	if created {
		action = models.AuditActionRateCreated
		message = "Commission rate created"
	}
	description := fmt.Sprintf("rate for plan %d tier %d persisted", req.PlanID, req.TierLevel)
	_ = createAuditLog(ctx, f.auditRepo, nil, action, description, true, nil, metadata)

	return &dto.UpsertCommissionRateResponse{
		Message: message,
		Rate:    ToCommissionRateDTO(*rate),
	}, nil
}

// ListCommissionRates returns the rate rules of one plan ordered by tier.
func (f *rateFlow) ListCommissionRates(ctx context.Context, req *dto.ListCommissionRatesRequest) (*dto.ListCommissionRatesResponse, error) {
	rates, err := f.rateRepo.ListByPlan(ctx, req.PlanID)
	if err != nil {
		return nil, NewBusinessError("DB_ERROR", "Failed to list commission rates", err)
	}

	response := &dto.ListCommissionRatesResponse{
		PlanID: req.PlanID,
		Rates:  make([]dto.CommissionRateDTO, 0, len(rates)),
	}
	for _, rate := range rates {
		response.Rates = append(response.Rates, ToCommissionRateDTO(*rate))
	}
	return response, nil
}
