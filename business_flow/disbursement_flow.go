package businessflow

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/polisku/commission-engine/app/dto"
	"github.com/polisku/commission-engine/models"
	"github.com/polisku/commission-engine/repository"
	"github.com/polisku/commission-engine/utils"
	"gorm.io/gorm"
)

// DisbursementFlow fans out commission from verified premium payments
type DisbursementFlow interface {
	DisbursePayment(ctx context.Context, req *dto.PaymentVerifiedRequest, metadata *ClientMetadata) (*dto.DisbursementResult, error)
}

type disbursementFlow struct {
	agentRepo            repository.AgentRepository
	referralRepo         repository.ReferralRepository
	rateRepo             repository.CommissionRateRepository
	commissionTxRepo     repository.CommissionTransactionRepository
	walletTxRepo         repository.WalletTransactionRepository
	processedPaymentRepo repository.ProcessedPaymentRepository
	auditRepo            repository.AuditLogRepository
	db                   *gorm.DB
}

// NewDisbursementFlow creates a new disbursement business flow
func NewDisbursementFlow(
	agentRepo repository.AgentRepository,
	referralRepo repository.ReferralRepository,
	rateRepo repository.CommissionRateRepository,
	commissionTxRepo repository.CommissionTransactionRepository,
	walletTxRepo repository.WalletTransactionRepository,
	processedPaymentRepo repository.ProcessedPaymentRepository,
	auditRepo repository.AuditLogRepository,
	db *gorm.DB,
) DisbursementFlow {
	return &disbursementFlow{
		agentRepo:            agentRepo,
		referralRepo:         referralRepo,
		rateRepo:             rateRepo,
		commissionTxRepo:     commissionTxRepo,
		walletTxRepo:         walletTxRepo,
		processedPaymentRepo: processedPaymentRepo,
		auditRepo:            auditRepo,
		db:                   db,
	}
}

// DisbursePayment runs the tier fan-out for one verified payment.
//
// The whole run executes in a single serializable transaction: the replay
// check, the upline walk, every commission row, every wallet credit, and the
// processed-payment marker commit or roll back together. Replayed references
// return the originally stored result with Replayed set, without writing
// anything.
func (f *disbursementFlow) DisbursePayment(ctx context.Context, req *dto.PaymentVerifiedRequest, metadata *ClientMetadata) (*dto.DisbursementResult, error) {
	if req.Amount <= 0 {
		return nil, NewBusinessError("PAYMENT_INVALID", "Payment amount must be positive", ErrPaymentInvalid)
	}
	currency := strings.ToUpper(req.Currency)

	var result *dto.DisbursementResult
	err := repository.WithSerializableTransaction(ctx, f.db, func(txCtx context.Context) error {
		existing, err := f.processedPaymentRepo.ByPaymentReference(txCtx, req.PaymentReference)
		if err != nil {
			return err
		}
		if existing != nil {
			var stored dto.DisbursementResult
			if unmarshalErr := json.Unmarshal(existing.Result, &stored); unmarshalErr != nil {
				return fmt.Errorf("corrupt disbursement record for %s: %w", req.PaymentReference, unmarshalErr)
			}
			stored.Replayed = true
			result = &stored
			return nil
		}

		payer, err := getAgent(txCtx, f.agentRepo, req.PayerAgentCode)
		if err != nil {
			return err
		}

		// The chain is rebuilt from live parent pointers at disbursement
		// time; the materialized referral chain only serves read queries.
		chain, err := computeUplineChain(txCtx, f.agentRepo, payer.AgentCode, models.MaxUplineDepth)
		if err != nil {
			return err
		}

		correlationID := uuid.New()
		run := &dto.DisbursementResult{
			PaymentReference: req.PaymentReference,
			PayerAgentCode:   payer.AgentCode,
			PlanID:           req.PlanID,
			Amount:           req.Amount,
		}

		for tier := 1; tier <= models.MaxUplineDepth; tier++ {
			tierResult, tierErr := f.disburseTier(txCtx, req, payer, chain, tier, correlationID)
			if tierErr != nil {
				return tierErr
			}
			run.Tiers = append(run.Tiers, *tierResult)
			if tierResult.Credited {
				run.TotalCommission += tierResult.CommissionAmount
			}
		}

		payload, err := json.Marshal(run)
		if err != nil {
			return err
		}
		completedAt := utils.UTCNow()
		if req.CompletedAt != nil {
			completedAt = utils.TimeToUTC(*req.CompletedAt)
		}
		record := &models.ProcessedPayment{
			CorrelationID:    correlationID,
			PaymentReference: req.PaymentReference,
			PayerAgentCode:   payer.AgentCode,
			PlanID:           req.PlanID,
			Amount:           req.Amount,
			Currency:         currency,
			Result:           payload,
			CompletedAt:      completedAt,
			CreatedAt:        utils.UTCNow(),
			UpdatedAt:        utils.UTCNow(),
		}
		if err := f.processedPaymentRepo.Save(txCtx, record); err != nil {
			return err
		}

		result = run
		return nil
	})
	if err != nil {
		disbursementsTotal.WithLabelValues(disbursementOutcomeFailed).Inc()
		f.auditDisbursement(ctx, req, models.AuditActionDisbursementFailed, false, err.Error(), metadata)
		if IsAgentNotFound(err) {
			return nil, NewBusinessError("PAYER_NOT_FOUND", "Payer agent not found or inactive", err)
		}
		return nil, NewBusinessError("DISBURSEMENT_FAILED", "Failed to disburse payment", fmt.Errorf("%w: %v", ErrDisbursementFailed, err))
	}

	if result.Replayed {
		disbursementsTotal.WithLabelValues(disbursementOutcomeReplayed).Inc()
		description := fmt.Sprintf("payment %s already disbursed, returned stored result", req.PaymentReference)
		_ = createAuditLog(ctx, f.auditRepo, &req.PayerAgentCode, models.AuditActionDisbursementReplayed, description, true, nil, metadata)
		return result, nil
	}

	disbursementsTotal.WithLabelValues(disbursementOutcomeCompleted).Inc()
	commissionCreditedTotal.Add(float64(result.TotalCommission))
	description := fmt.Sprintf("payment %s disbursed: %d minor units across %d tiers", req.PaymentReference, result.TotalCommission, len(result.Tiers))
	_ = createAuditLog(ctx, f.auditRepo, &req.PayerAgentCode, models.AuditActionDisbursementCompleted, description, true, nil, metadata)

	return result, nil
}

// disburseTier resolves the earner at one tier and credits them when a rate
// rule exists. Missing earners and missing rates are recorded as skips, never
// as errors. Must run inside the caller's transaction.
func (f *disbursementFlow) disburseTier(ctx context.Context, req *dto.PaymentVerifiedRequest, payer *models.Agent, chain []string, tier int, correlationID uuid.UUID) (*dto.DisbursementTierResult, error) {
	tierResult := &dto.DisbursementTierResult{TierLevel: tier}

	if tier > len(chain) {
		tierResult.SkipReason = dto.TierSkipNoEarner
		commissionTierSkipsTotal.WithLabelValues(dto.TierSkipNoEarner).Inc()
		return tierResult, nil
	}
	earnerCode := chain[tier-1]
	tierResult.EarnerAgentCode = earnerCode

	earner, err := f.agentRepo.ByAgentCode(ctx, earnerCode)
	if err != nil {
		return nil, err
	}
	if earner == nil || !utils.IsTrue(earner.IsActive) {
		tierResult.SkipReason = dto.TierSkipInactive
		commissionTierSkipsTotal.WithLabelValues(dto.TierSkipInactive).Inc()
		return tierResult, nil
	}
	if referral, refErr := f.referralRepo.ByAgentCode(ctx, earnerCode); refErr != nil {
		return nil, refErr
	} else if referral != nil && !referral.IsActive() {
		tierResult.SkipReason = dto.TierSkipInactive
		commissionTierSkipsTotal.WithLabelValues(dto.TierSkipInactive).Inc()
		return tierResult, nil
	}

	rate, err := f.rateRepo.ByPlanAndTier(ctx, req.PlanID, tier)
	if err != nil {
		return nil, err
	}
	if rate == nil || !utils.IsTrue(rate.IsActive) {
		tierResult.SkipReason = dto.TierSkipNoRate
		commissionTierSkipsTotal.WithLabelValues(dto.TierSkipNoRate).Inc()
		return tierResult, nil
	}

	amount := rate.CalculateCommission(req.Amount)
	if amount <= 0 {
		tierResult.SkipReason = dto.TierSkipNoRate
		commissionTierSkipsTotal.WithLabelValues(dto.TierSkipNoRate).Inc()
		return tierResult, nil
	}

	// Lock the earner row before touching balances.
	lockedEarner, err := f.agentRepo.ByAgentCodeForUpdate(ctx, earnerCode)
	if err != nil {
		return nil, err
	}
	if lockedEarner == nil {
		tierResult.SkipReason = dto.TierSkipInactive
		return tierResult, nil
	}

	commissionTx := &models.CommissionTransaction{
		CorrelationID:    correlationID,
		PaymentReference: req.PaymentReference,
		TierLevel:        tier,
		PayerAgentCode:   payer.AgentCode,
		EarnerAgentCode:  earnerCode,
		PlanID:           req.PlanID,
		BaseAmount:       req.Amount,
		CommissionAmount: amount,
		RatePercent:      rate.RatePercent,
		FixedAmount:      rate.FixedAmount,
		Status:           models.CommissionStatusPosted,
		Description:      fmt.Sprintf("tier %d commission on payment %s from %s", tier, req.PaymentReference, payer.AgentCode),
		CreatedAt:        utils.UTCNow(),
		UpdatedAt:        utils.UTCNow(),
	}
	if err := f.commissionTxRepo.Save(ctx, commissionTx); err != nil {
		return nil, err
	}

	description := fmt.Sprintf("tier %d commission for payment %s", tier, req.PaymentReference)
	if _, err := creditWallet(ctx, f.agentRepo, f.walletTxRepo, lockedEarner, amount, correlationID, commissionTx.UUID.String(), description, true); err != nil {
		return nil, err
	}

	tierResult.CommissionAmount = amount
	tierResult.Credited = true
	return tierResult, nil
}

func (f *disbursementFlow) auditDisbursement(ctx context.Context, req *dto.PaymentVerifiedRequest, action string, success bool, errMsg string, metadata *ClientMetadata) {
	description := fmt.Sprintf("disbursement of payment %s for payer %s", req.PaymentReference, req.PayerAgentCode)
	var errPtr *string
	if errMsg != "" {
		errPtr = &errMsg
	}
	_ = createAuditLog(ctx, f.auditRepo, &req.PayerAgentCode, action, description, success, errPtr, metadata)
}
