package businessflow

import (
	"context"
	"fmt"

	"github.com/polisku/commission-engine/app/dto"
	"github.com/polisku/commission-engine/app/services"
	"github.com/polisku/commission-engine/models"
	"github.com/polisku/commission-engine/repository"
	"github.com/polisku/commission-engine/utils"
	"gorm.io/gorm"
)

// WithdrawalFlow handles the payout request state machine
type WithdrawalFlow interface {
	RequestWithdrawal(ctx context.Context, req *dto.RequestWithdrawalRequest, metadata *ClientMetadata) (*dto.RequestWithdrawalResponse, error)
	ApproveWithdrawal(ctx context.Context, req *dto.ReviewWithdrawalRequest, metadata *ClientMetadata) (*dto.ReviewWithdrawalResponse, error)
	RejectWithdrawal(ctx context.Context, req *dto.ReviewWithdrawalRequest, metadata *ClientMetadata) (*dto.ReviewWithdrawalResponse, error)
	MarkWithdrawalPaid(ctx context.Context, req *dto.ReviewWithdrawalRequest, metadata *ClientMetadata) (*dto.ReviewWithdrawalResponse, error)
	ListWithdrawals(ctx context.Context, req *dto.ListWithdrawalsRequest) (*dto.ListWithdrawalsResponse, error)
}

type withdrawalFlow struct {
	agentRepo      repository.AgentRepository
	withdrawalRepo repository.WithdrawalRequestRepository
	walletTxRepo   repository.WalletTransactionRepository
	auditRepo      repository.AuditLogRepository
	notifier       services.WithdrawalNotifier
	db             *gorm.DB
}

// NewWithdrawalFlow creates a new withdrawal business flow
func NewWithdrawalFlow(
	agentRepo repository.AgentRepository,
	withdrawalRepo repository.WithdrawalRequestRepository,
	walletTxRepo repository.WalletTransactionRepository,
	auditRepo repository.AuditLogRepository,
	notifier services.WithdrawalNotifier,
	db *gorm.DB,
) WithdrawalFlow {
	return &withdrawalFlow{
		agentRepo:      agentRepo,
		withdrawalRepo: withdrawalRepo,
		walletTxRepo:   walletTxRepo,
		auditRepo:      auditRepo,
		notifier:       notifier,
		db:             db,
	}
}

// RequestWithdrawal creates a pending payout request.
//
// The balance check here is advisory only, to fail fast on obviously
// oversized requests. The wallet is not reserved: the authoritative check
// happens against the locked row when the request is marked paid.
func (f *withdrawalFlow) RequestWithdrawal(ctx context.Context, req *dto.RequestWithdrawalRequest, metadata *ClientMetadata) (*dto.RequestWithdrawalResponse, error) {
	if req.Amount <= 0 {
		return nil, NewBusinessError("AMOUNT_NOT_POSITIVE", "Withdrawal amount must be positive", ErrAmountNotPositive)
	}

	agent, err := getAgent(ctx, f.agentRepo, req.AgentCode)
	if err != nil {
		f.auditWithdrawalFailure(ctx, req.AgentCode, models.AuditActionWithdrawalRequestFailed, err.Error(), metadata)
		return nil, NewBusinessError("AGENT_NOT_FOUND", "Agent not found or inactive", err)
	}

	var withdrawal *models.WithdrawalRequest
	err = repository.WithSerializableTransaction(ctx, f.db, func(txCtx context.Context) error {
		unresolved, existsErr := f.withdrawalRepo.ExistsUnresolvedByAgent(txCtx, agent.AgentCode)
		if existsErr != nil {
			return existsErr
		}
		if unresolved {
			return ErrDuplicatePendingRequest
		}

		locked, lockErr := f.agentRepo.ByAgentCodeForUpdate(txCtx, agent.AgentCode)
		if lockErr != nil {
			return lockErr
		}
		if req.Amount > locked.WalletBalance {
			return fmt.Errorf("%w: balance=%d requested=%d", ErrInsufficientBalance, locked.WalletBalance, req.Amount)
		}

		withdrawal = &models.WithdrawalRequest{
			AgentCode:         agent.AgentCode,
			Amount:            req.Amount,
			Status:            models.WithdrawalStatusPending,
			BankName:          req.BankName,
			BankAccountNumber: req.BankAccountNumber,
			BankAccountHolder: req.BankAccountHolder,
			CreatedAt:         utils.UTCNow(),
			UpdatedAt:         utils.UTCNow(),
		}
		return f.withdrawalRepo.Save(txCtx, withdrawal)
	})
	if err != nil {
		f.auditWithdrawalFailure(ctx, req.AgentCode, models.AuditActionWithdrawalRequestFailed, err.Error(), metadata)
		if IsDuplicatePendingRequest(err) {
			return nil, NewBusinessError("DUPLICATE_PENDING_REQUEST", "An unresolved withdrawal request already exists", err)
		}
		if IsInsufficientBalance(err) {
			return nil, NewBusinessError("INSUFFICIENT_BALANCE", "Requested amount exceeds wallet balance", err)
		}
		return nil, NewBusinessError("WITHDRAWAL_REQUEST_FAILED", "Failed to create withdrawal request", err)
	}

	withdrawalTransitionsTotal.WithLabelValues(string(models.WithdrawalStatusPending)).Inc()
	description := fmt.Sprintf("withdrawal %s requested for %d minor units", withdrawal.UUID, withdrawal.Amount)
	_ = createAuditLog(ctx, f.auditRepo, &req.AgentCode, models.AuditActionWithdrawalRequested, description, true, nil, metadata)
	_ = f.notifier.NotifyWithdrawal(ctx, services.WithdrawalEventRequested, withdrawal)

	return &dto.RequestWithdrawalResponse{
		Message:    "Withdrawal request created",
		Withdrawal: ToWithdrawalRequestDTO(*withdrawal),
	}, nil
}

// ApproveWithdrawal moves a pending request to approved. No money moves yet.
func (f *withdrawalFlow) ApproveWithdrawal(ctx context.Context, req *dto.ReviewWithdrawalRequest, metadata *ClientMetadata) (*dto.ReviewWithdrawalResponse, error) {
	return f.transition(ctx, req, models.WithdrawalStatusPending, models.WithdrawalStatusApproved, models.AuditActionWithdrawalApproved, services.WithdrawalEventApproved, "Withdrawal approved", metadata)
}

// RejectWithdrawal moves a pending request to rejected. The wallet is never
// touched, so there is nothing to refund.
func (f *withdrawalFlow) RejectWithdrawal(ctx context.Context, req *dto.ReviewWithdrawalRequest, metadata *ClientMetadata) (*dto.ReviewWithdrawalResponse, error) {
	return f.transition(ctx, req, models.WithdrawalStatusPending, models.WithdrawalStatusRejected, models.AuditActionWithdrawalRejected, services.WithdrawalEventRejected, "Withdrawal rejected", metadata)
}

// MarkWithdrawalPaid settles an approved request: the status flip and the
// wallet debit happen in one serializable transaction against the locked
// agent row, so the balance can never go negative and the request can never
// be paid twice.
func (f *withdrawalFlow) MarkWithdrawalPaid(ctx context.Context, req *dto.ReviewWithdrawalRequest, metadata *ClientMetadata) (*dto.ReviewWithdrawalResponse, error) {
	var withdrawal *models.WithdrawalRequest
	err := repository.WithSerializableTransaction(ctx, f.db, func(txCtx context.Context) error {
		loaded, loadErr := f.withdrawalRepo.ByUUID(txCtx, req.WithdrawalUUID)
		if loadErr != nil {
			return loadErr
		}
		if loaded == nil {
			return ErrWithdrawalNotFound
		}
		if !loaded.CanMarkPaid() {
			return fmt.Errorf("%w: %s is %s", ErrWithdrawalNotTransitable, loaded.UUID, loaded.Status)
		}

		locked, lockErr := f.agentRepo.ByAgentCodeForUpdate(txCtx, loaded.AgentCode)
		if lockErr != nil {
			return lockErr
		}
		if locked == nil {
			return fmt.Errorf("%w: %s", ErrAgentNotFound, loaded.AgentCode)
		}

		now := utils.UTCNow()
		if updErr := f.withdrawalRepo.UpdateStatus(txCtx, loaded.ID, models.WithdrawalStatusApproved, models.WithdrawalStatusPaid, now, req.AdminNote); updErr != nil {
			return updErr
		}

		description := fmt.Sprintf("payout for withdrawal %s", loaded.UUID)
		if _, debitErr := debitWallet(txCtx, f.agentRepo, f.walletTxRepo, locked, loaded.Amount, loaded.UUID, loaded.UUID.String(), description); debitErr != nil {
			return debitErr
		}

		loaded.Status = models.WithdrawalStatusPaid
		loaded.PaidAt = &now
		loaded.AdminNote = req.AdminNote
		withdrawal = loaded
		return nil
	})
	if err != nil {
		f.auditWithdrawalFailure(ctx, req.WithdrawalUUID, models.AuditActionWithdrawalPayoutFailed, err.Error(), metadata)
		return nil, f.transitionError(err, "Failed to mark withdrawal paid")
	}

	withdrawalTransitionsTotal.WithLabelValues(string(models.WithdrawalStatusPaid)).Inc()
	withdrawalPaidTotal.Add(float64(withdrawal.Amount))
	description := fmt.Sprintf("withdrawal %s paid, %d minor units debited", withdrawal.UUID, withdrawal.Amount)
	_ = createAuditLog(ctx, f.auditRepo, &withdrawal.AgentCode, models.AuditActionWithdrawalPaid, description, true, nil, metadata)
	_ = f.notifier.NotifyWithdrawal(ctx, services.WithdrawalEventPaid, withdrawal)

	return &dto.ReviewWithdrawalResponse{
		Message:    "Withdrawal marked paid",
		Withdrawal: ToWithdrawalRequestDTO(*withdrawal),
	}, nil
}

// ListWithdrawals returns a paginated listing, optionally filtered by agent
// and status.
func (f *withdrawalFlow) ListWithdrawals(ctx context.Context, req *dto.ListWithdrawalsRequest) (*dto.ListWithdrawalsResponse, error) {
	page := req.Page
	if page < 1 {
		return nil, NewBusinessError("INVALID_PAGE", "Page must be at least 1", ErrInvalidPage)
	}
	pageSize := req.PageSize
	if pageSize < 1 || pageSize > utils.MaxPageSize {
		pageSize = utils.DefaultPageSize
	}

	filter := models.WithdrawalRequestFilter{AgentCode: req.AgentCode}
	if req.Status != nil {
		status := models.WithdrawalStatus(*req.Status)
		filter.Status = &status
	}

	offset := int((page - 1) * pageSize)
	items, err := f.withdrawalRepo.ByFilter(ctx, filter, "created_at DESC", int(pageSize), offset)
	if err != nil {
		return nil, NewBusinessError("DB_ERROR", "Failed to list withdrawals", err)
	}
	totalItems, err := f.withdrawalRepo.Count(ctx, filter)
	if err != nil {
		return nil, NewBusinessError("DB_ERROR", "Failed to count withdrawals", err)
	}

	response := &dto.ListWithdrawalsResponse{
		Items:      make([]dto.WithdrawalRequestDTO, 0, len(items)),
		Pagination: dto.NewPaginationInfo(page, pageSize, uint(totalItems)),
	}
	for _, item := range items {
		response.Items = append(response.Items, ToWithdrawalRequestDTO(*item))
	}
	return response, nil
}

// transition performs a review transition that does not move money
// (approve, reject). The guarded UpdateStatus makes concurrent reviews of
// the same request lose cleanly instead of double-applying.
func (f *withdrawalFlow) transition(ctx context.Context, req *dto.ReviewWithdrawalRequest, from, to models.WithdrawalStatus, auditAction, eventType, message string, metadata *ClientMetadata) (*dto.ReviewWithdrawalResponse, error) {
	var withdrawal *models.WithdrawalRequest
	err := repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		loaded, loadErr := f.withdrawalRepo.ByUUID(txCtx, req.WithdrawalUUID)
		if loadErr != nil {
			return loadErr
		}
		if loaded == nil {
			return ErrWithdrawalNotFound
		}
		if loaded.Status != from {
			return fmt.Errorf("%w: %s is %s, expected %s", ErrWithdrawalNotTransitable, loaded.UUID, loaded.Status, from)
		}

		now := utils.UTCNow()
		if updErr := f.withdrawalRepo.UpdateStatus(txCtx, loaded.ID, from, to, now, req.AdminNote); updErr != nil {
			return updErr
		}

		loaded.Status = to
		loaded.AdminNote = req.AdminNote
		switch to {
		case models.WithdrawalStatusApproved:
			loaded.ApprovedAt = &now
		case models.WithdrawalStatusRejected:
			loaded.RejectedAt = &now
		}
		withdrawal = loaded
		return nil
	})
	if err != nil {
		return nil, f.transitionError(err, "Failed to update withdrawal")
	}

	withdrawalTransitionsTotal.WithLabelValues(string(to)).Inc()
	description := fmt.Sprintf("withdrawal %s transitioned to %s", withdrawal.UUID, to)
	_ = createAuditLog(ctx, f.auditRepo, &withdrawal.AgentCode, auditAction, description, true, nil, metadata)
	_ = f.notifier.NotifyWithdrawal(ctx, eventType, withdrawal)

	return &dto.ReviewWithdrawalResponse{
		Message:    message,
		Withdrawal: ToWithdrawalRequestDTO(*withdrawal),
	}, nil
}

func (f *withdrawalFlow) transitionError(err error, fallback string) error {
	switch {
	case IsWithdrawalNotTransitable(err) || IsWithdrawalStateConflict(err):
		return NewBusinessError("WITHDRAWAL_NOT_TRANSITABLE", "Withdrawal is not in a transitable state", err)
	case IsInsufficientBalance(err):
		return NewBusinessError("INSUFFICIENT_BALANCE", "Wallet balance is below the withdrawal amount", err)
	case IsWithdrawalNotFound(err):
		return NewBusinessError("WITHDRAWAL_NOT_FOUND", "Withdrawal request not found", err)
	default:
		return NewBusinessError("WITHDRAWAL_UPDATE_FAILED", fallback, err)
	}
}

func (f *withdrawalFlow) auditWithdrawalFailure(ctx context.Context, subject, action, errMsg string, metadata *ClientMetadata) {
	description := fmt.Sprintf("withdrawal operation failed for %s", subject)
	_ = createAuditLog(ctx, f.auditRepo, &subject, action, description, false, &errMsg, metadata)
}
