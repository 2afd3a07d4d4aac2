package handlers

import (
	"context"
	"log"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/polisku/commission-engine/app/dto"
	"github.com/polisku/commission-engine/app/middleware"
	businessflow "github.com/polisku/commission-engine/business_flow"
	"github.com/polisku/commission-engine/utils"
)

// WithdrawalHandlerInterface defines the contract for withdrawal handlers
type WithdrawalHandlerInterface interface {
	RequestWithdrawal(c fiber.Ctx) error
	ListMyWithdrawals(c fiber.Ctx) error
	ApproveWithdrawal(c fiber.Ctx) error
	RejectWithdrawal(c fiber.Ctx) error
	MarkWithdrawalPaid(c fiber.Ctx) error
	ListWithdrawals(c fiber.Ctx) error
}

// WithdrawalHandler handles withdrawal HTTP requests for agents and admins
type WithdrawalHandler struct {
	withdrawalFlow businessflow.WithdrawalFlow
	validator      *validator.Validate
}

// NewWithdrawalHandler creates a new withdrawal handler
func NewWithdrawalHandler(withdrawalFlow businessflow.WithdrawalFlow) *WithdrawalHandler {
	handler := &WithdrawalHandler{
		withdrawalFlow: withdrawalFlow,
		validator:      validator.New(),
	}
	registerCustomValidations(handler.validator)
	return handler
}

func (h *WithdrawalHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *WithdrawalHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// RequestWithdrawal creates a pending withdrawal for the authenticated agent
// @Summary Request Withdrawal
// @Tags Withdrawals
// @Accept json
// @Produce json
// @Param request body dto.RequestWithdrawalRequest true "Withdrawal payload"
// @Success 201 {object} dto.APIResponse{data=dto.RequestWithdrawalResponse}
// @Failure 400 {object} dto.APIResponse
// @Failure 401 {object} dto.APIResponse
// @Failure 409 {object} dto.APIResponse
// @Router /api/v1/withdrawals [post]
func (h *WithdrawalHandler) RequestWithdrawal(c fiber.Ctx) error {
	agentCode, ok := middleware.GetAgentCodeFromContext(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Agent code not found in context", "MISSING_AGENT_CODE", nil)
	}

	var req dto.RequestWithdrawalRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	// override agent code from auth context
	req.AgentCode = agentCode

	if err := h.validator.Struct(&req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))
	if requestID := c.Get("X-Request-ID"); requestID != "" {
		metadata.SetRequestID(requestID)
	}

	result, err := h.withdrawalFlow.RequestWithdrawal(h.createRequestContext(c, "/api/v1/withdrawals"), &req, metadata)
	if err != nil {
		if businessflow.IsAgentNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusUnauthorized, "Agent not found or inactive", "AGENT_NOT_FOUND", nil)
		}
		if businessflow.IsDuplicatePendingRequest(err) {
			return h.ErrorResponse(c, fiber.StatusConflict, "An unresolved withdrawal request already exists", "DUPLICATE_PENDING_REQUEST", nil)
		}
		if businessflow.IsInsufficientBalance(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Requested amount exceeds wallet balance", "INSUFFICIENT_BALANCE", nil)
		}

		log.Println("Request withdrawal failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create withdrawal request", "WITHDRAWAL_REQUEST_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusCreated, "Withdrawal request created", result)
}

// ListMyWithdrawals lists the authenticated agent's withdrawal requests
// @Summary List My Withdrawals
// @Tags Withdrawals
// @Produce json
// @Success 200 {object} dto.APIResponse{data=dto.ListWithdrawalsResponse}
// @Router /api/v1/withdrawals [get]
func (h *WithdrawalHandler) ListMyWithdrawals(c fiber.Ctx) error {
	agentCode, ok := middleware.GetAgentCodeFromContext(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Agent code not found in context", "MISSING_AGENT_CODE", nil)
	}
	req := h.parseListRequest(c)
	req.AgentCode = &agentCode
	return h.list(c, req, "/api/v1/withdrawals")
}

// ApproveWithdrawal moves a pending withdrawal to approved (admin only)
// @Summary Approve Withdrawal
// @Tags Admin
// @Accept json
// @Produce json
// @Param uuid path string true "Withdrawal UUID"
// @Success 200 {object} dto.APIResponse{data=dto.ReviewWithdrawalResponse}
// @Failure 409 {object} dto.APIResponse
// @Router /api/v1/admin/withdrawals/{uuid}/approve [post]
func (h *WithdrawalHandler) ApproveWithdrawal(c fiber.Ctx) error {
	return h.review(c, "approve")
}

// RejectWithdrawal moves a pending withdrawal to rejected (admin only)
func (h *WithdrawalHandler) RejectWithdrawal(c fiber.Ctx) error {
	return h.review(c, "reject")
}

// MarkWithdrawalPaid settles an approved withdrawal and debits the wallet
// (admin only)
func (h *WithdrawalHandler) MarkWithdrawalPaid(c fiber.Ctx) error {
	return h.review(c, "pay")
}

// ListWithdrawals lists withdrawal requests across agents (admin only)
// @Summary List Withdrawals
// @Tags Admin
// @Produce json
// @Param agent_code query string false "Filter by agent"
// @Param status query string false "Filter by status (pending|approved|rejected|paid)"
// @Success 200 {object} dto.APIResponse{data=dto.ListWithdrawalsResponse}
// @Router /api/v1/admin/withdrawals [get]
func (h *WithdrawalHandler) ListWithdrawals(c fiber.Ctx) error {
	req := h.parseListRequest(c)
	if agentCode := c.Query("agent_code"); agentCode != "" {
		req.AgentCode = &agentCode
	}
	return h.list(c, req, "/api/v1/admin/withdrawals")
}

func (h *WithdrawalHandler) parseListRequest(c fiber.Ctx) *dto.ListWithdrawalsRequest {
	req := &dto.ListWithdrawalsRequest{
		Page:     1,
		PageSize: utils.DefaultPageSize,
	}
	if pageStr := c.Query("page"); pageStr != "" {
		if parsed, err := strconv.ParseUint(pageStr, 10, 32); err == nil {
			req.Page = uint(parsed)
		}
	}
	if sizeStr := c.Query("page_size"); sizeStr != "" {
		if parsed, err := strconv.ParseUint(sizeStr, 10, 32); err == nil {
			req.PageSize = uint(parsed)
		}
	}
	if status := c.Query("status"); status != "" {
		req.Status = &status
	}
	return req
}

func (h *WithdrawalHandler) list(c fiber.Ctx, req *dto.ListWithdrawalsRequest, endpoint string) error {
	if err := h.validator.Struct(req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	result, err := h.withdrawalFlow.ListWithdrawals(h.createRequestContext(c, endpoint), req)
	if err != nil {
		log.Println("List withdrawals failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list withdrawals", "WITHDRAWAL_LIST_FAILED", nil)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Withdrawals retrieved successfully", result)
}

func (h *WithdrawalHandler) review(c fiber.Ctx, action string) error {
	if _, ok := middleware.GetAdminIDFromContext(c); !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Admin authentication required", "ADMIN_AUTHENTICATION_REQUIRED", nil)
	}

	req := dto.ReviewWithdrawalRequest{WithdrawalUUID: c.Params("uuid")}
	var body struct {
		AdminNote *string `json:"admin_note"`
	}
	if err := c.Bind().JSON(&body); err == nil {
		req.AdminNote = body.AdminNote
	}

	if err := h.validator.Struct(&req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))
	if requestID := c.Get("X-Request-ID"); requestID != "" {
		metadata.SetRequestID(requestID)
	}

	ctx := h.createRequestContext(c, "/api/v1/admin/withdrawals/:uuid/"+action)
	var result *dto.ReviewWithdrawalResponse
	var err error
	switch action {
	case "approve":
		result, err = h.withdrawalFlow.ApproveWithdrawal(ctx, &req, metadata)
	case "reject":
		result, err = h.withdrawalFlow.RejectWithdrawal(ctx, &req, metadata)
	default:
		result, err = h.withdrawalFlow.MarkWithdrawalPaid(ctx, &req, metadata)
	}
	if err != nil {
		if businessflow.IsWithdrawalNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Withdrawal request not found", "WITHDRAWAL_NOT_FOUND", nil)
		}
		if businessflow.IsWithdrawalNotTransitable(err) || businessflow.IsWithdrawalStateConflict(err) {
			return h.ErrorResponse(c, fiber.StatusConflict, "Withdrawal is not in a transitable state", "WITHDRAWAL_NOT_TRANSITABLE", nil)
		}
		if businessflow.IsInsufficientBalance(err) {
			return h.ErrorResponse(c, fiber.StatusConflict, "Wallet balance is below the withdrawal amount", "INSUFFICIENT_BALANCE", nil)
		}

		log.Println("Review withdrawal failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update withdrawal", "WITHDRAWAL_UPDATE_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}

// createRequestContext creates a context with request-scoped values for observability and timeout
func (h *WithdrawalHandler) createRequestContext(c fiber.Ctx, endpoint string) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	ctx = context.WithValue(ctx, "request_id", c.Get("X-Request-ID"))
	ctx = context.WithValue(ctx, "user_agent", c.Get("User-Agent"))
	ctx = context.WithValue(ctx, "ip_address", c.IP())
	ctx = context.WithValue(ctx, "endpoint", endpoint)
	ctx = context.WithValue(ctx, "cancel_func", cancel)
	return ctx
}
