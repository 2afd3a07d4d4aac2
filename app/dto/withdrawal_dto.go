package dto

import "time"

// RequestWithdrawalRequest represents an agent's payout request
type RequestWithdrawalRequest struct {
	AgentCode         string `json:"agent_code" validate:"required,agent_code"`
	Amount            int64  `json:"amount" validate:"required,gt=0"` // minor units
	BankName          string `json:"bank_name" validate:"required,max=100"`
	BankAccountNumber string `json:"bank_account_number" validate:"required,max=50"`
	BankAccountHolder string `json:"bank_account_holder" validate:"required,max=255"`
}

// WithdrawalRequestDTO is the API projection of a withdrawal request
type WithdrawalRequestDTO struct {
	UUID              string     `json:"uuid"`
	AgentCode         string     `json:"agent_code"`
	Amount            int64      `json:"amount"`
	Status            string     `json:"status"`
	BankName          string     `json:"bank_name"`
	BankAccountNumber string     `json:"bank_account_number"`
	BankAccountHolder string     `json:"bank_account_holder"`
	AdminNote         *string    `json:"admin_note,omitempty"`
	ApprovedAt        *time.Time `json:"approved_at,omitempty"`
	RejectedAt        *time.Time `json:"rejected_at,omitempty"`
	PaidAt            *time.Time `json:"paid_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

// RequestWithdrawalResponse confirms a created withdrawal request
type RequestWithdrawalResponse struct {
	Message    string               `json:"message"`
	Withdrawal WithdrawalRequestDTO `json:"withdrawal"`
}

// ReviewWithdrawalRequest is an admin approve/reject/mark-paid action
type ReviewWithdrawalRequest struct {
	WithdrawalUUID string  `json:"withdrawal_uuid" validate:"required,uuid4"`
	AdminNote      *string `json:"admin_note,omitempty" validate:"omitempty,max=500"`
}

// ReviewWithdrawalResponse reports the post-transition state
type ReviewWithdrawalResponse struct {
	Message    string               `json:"message"`
	Withdrawal WithdrawalRequestDTO `json:"withdrawal"`
}

// ListWithdrawalsRequest is a paginated withdrawal listing query
type ListWithdrawalsRequest struct {
	AgentCode *string `json:"agent_code,omitempty" validate:"omitempty,agent_code"`
	Status    *string `json:"status,omitempty" validate:"omitempty,oneof=pending approved rejected paid"`
	Page      uint    `json:"page" validate:"min=1"`
	PageSize  uint    `json:"page_size" validate:"min=1,max=100"`
}

// ListWithdrawalsResponse is the paginated withdrawal listing
type ListWithdrawalsResponse struct {
	Items      []WithdrawalRequestDTO `json:"items"`
	Pagination PaginationInfo         `json:"pagination"`
}
