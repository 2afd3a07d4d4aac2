// Package businessflow contains the core business logic and use cases for the commission engine
package businessflow

import (
	"errors"
	"fmt"

	"github.com/polisku/commission-engine/repository"
)

// Business flow error constants
var (
	// Agent-related errors
	ErrAgentNotFound    = errors.New("agent not found")
	ErrAgentInactive    = errors.New("agent is inactive")
	ErrReferrerNotFound = errors.New("referrer agent not found")
	ErrSelfReferral     = errors.New("agent cannot refer itself")
	ErrReferralCycle    = errors.New("referral would create a cycle")

	// Rate-related errors
	ErrRateRuleInvalid = errors.New("commission rate rule is invalid")
	ErrRateNotFound    = errors.New("commission rate not found")

	// Disbursement errors
	ErrDisbursementFailed = errors.New("disbursement failed and was rolled back")
	ErrPaymentInvalid     = errors.New("payment event is invalid")

	// Wallet errors
	ErrInsufficientBalance = errors.New("insufficient wallet balance")
	ErrAmountNotPositive   = errors.New("amount must be positive")

	// Withdrawal errors
	ErrDuplicatePendingRequest  = errors.New("agent already has an unresolved withdrawal request")
	ErrWithdrawalNotFound       = errors.New("withdrawal request not found")
	ErrWithdrawalNotTransitable = errors.New("withdrawal request cannot make this transition")

	// Auth errors
	ErrInvalidCredentials = errors.New("invalid credentials")

	// Filter errors
	ErrInvalidPage           = errors.New("page must be at least 1")
	ErrInvalidPageSize       = errors.New("page size must be between 1 and 100")
	ErrStartDateAfterEndDate = errors.New("start date cannot be after end date")
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func NewBusinessErrorf(code, message string, err error, args ...any) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: fmt.Sprintf(message, args...),
		Err:     err,
	}
}

func IsAgentNotFound(err error) bool {
	return errors.Is(err, ErrAgentNotFound)
}

func IsAgentInactive(err error) bool {
	return errors.Is(err, ErrAgentInactive)
}

func IsReferrerNotFound(err error) bool {
	return errors.Is(err, ErrReferrerNotFound)
}

func IsReferralCycle(err error) bool {
	return errors.Is(err, ErrReferralCycle)
}

func IsInsufficientBalance(err error) bool {
	return errors.Is(err, ErrInsufficientBalance)
}

func IsDuplicatePendingRequest(err error) bool {
	return errors.Is(err, ErrDuplicatePendingRequest)
}

func IsDisbursementFailed(err error) bool {
	return errors.Is(err, ErrDisbursementFailed)
}

func IsPaymentInvalid(err error) bool {
	return errors.Is(err, ErrPaymentInvalid)
}

func IsWithdrawalNotTransitable(err error) bool {
	return errors.Is(err, ErrWithdrawalNotTransitable)
}

func IsWithdrawalNotFound(err error) bool {
	return errors.Is(err, ErrWithdrawalNotFound)
}

func IsInvalidCredentials(err error) bool {
	return errors.Is(err, ErrInvalidCredentials)
}

func IsWithdrawalStateConflict(err error) bool {
	return errors.Is(err, repository.ErrWithdrawalStateConflict)
}
