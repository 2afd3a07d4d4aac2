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

// WalletHandlerInterface defines the contract for wallet handlers
type WalletHandlerInterface interface {
	GetWalletSummary(c fiber.Ctx) error
	GetCommissionHistory(c fiber.Ctx) error
}

// WalletHandler handles agent-facing wallet HTTP requests
type WalletHandler struct {
	walletFlow businessflow.WalletFlow
	validator  *validator.Validate
}

// NewWalletHandler creates a new wallet handler
func NewWalletHandler(walletFlow businessflow.WalletFlow) *WalletHandler {
	handler := &WalletHandler{
		walletFlow: walletFlow,
		validator:  validator.New(),
	}
	registerCustomValidations(handler.validator)
	return handler
}

func (h *WalletHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *WalletHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// GetWalletSummary returns the authenticated agent's balance and recent
// ledger entries.
// @Summary Get Wallet Summary
// @Tags Wallet
// @Produce json
// @Param recent_limit query int false "Recent transactions to include (default: 20)"
// @Success 200 {object} dto.APIResponse{data=dto.GetWalletSummaryResponse}
// @Failure 401 {object} dto.APIResponse
// @Router /api/v1/wallet/summary [get]
func (h *WalletHandler) GetWalletSummary(c fiber.Ctx) error {
	agentCode, ok := middleware.GetAgentCodeFromContext(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Agent code not found in context", "MISSING_AGENT_CODE", nil)
	}

	req := dto.GetWalletSummaryRequest{AgentCode: agentCode}
	if limitStr := c.Query("recent_limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil {
			req.RecentLimit = parsed
		}
	}

	if err := h.validator.Struct(&req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	result, err := h.walletFlow.GetWalletSummary(h.createRequestContext(c, "/api/v1/wallet/summary"), &req)
	if err != nil {
		if businessflow.IsAgentNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Agent not found", "AGENT_NOT_FOUND", nil)
		}
		log.Println("Get wallet summary failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to get wallet summary", "WALLET_SUMMARY_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Wallet summary retrieved successfully", result)
}

// GetCommissionHistory returns the authenticated agent's commission credits
// @Summary Get Commission History
// @Tags Wallet
// @Produce json
// @Param page query int false "Page number (default: 1)" minimum(1)
// @Param page_size query int false "Items per page (default: 20, max: 100)"
// @Param plan_id query int false "Filter by plan"
// @Param tier_level query int false "Filter by tier" minimum(1) maximum(5)
// @Param status query string false "Filter by status (pending|posted|reversed)"
// @Param start_date query string false "Start date (RFC3339)"
// @Param end_date query string false "End date (RFC3339)"
// @Success 200 {object} dto.APIResponse{data=dto.GetCommissionHistoryResponse}
// @Failure 401 {object} dto.APIResponse
// @Router /api/v1/wallet/commissions [get]
func (h *WalletHandler) GetCommissionHistory(c fiber.Ctx) error {
	agentCode, ok := middleware.GetAgentCodeFromContext(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Agent code not found in context", "MISSING_AGENT_CODE", nil)
	}

	req := dto.GetCommissionHistoryRequest{
		AgentCode: agentCode,
		Page:      1,
		PageSize:  utils.DefaultPageSize,
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
	if planStr := c.Query("plan_id"); planStr != "" {
		if parsed, err := strconv.ParseUint(planStr, 10, 32); err == nil {
			planID := uint(parsed)
			req.PlanID = &planID
		}
	}
	if tierStr := c.Query("tier_level"); tierStr != "" {
		if parsed, err := strconv.Atoi(tierStr); err == nil {
			req.TierLevel = &parsed
		}
	}
	if status := c.Query("status"); status != "" {
		req.Status = &status
	}
	if v := c.Query("start_date"); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid start_date format", "VALIDATION_ERROR", nil)
		}
		req.StartDate = &parsed
	}
	if v := c.Query("end_date"); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid end_date format", "VALIDATION_ERROR", nil)
		}
		req.EndDate = &parsed
	}

	if err := h.validator.Struct(&req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	result, err := h.walletFlow.GetCommissionHistory(h.createRequestContext(c, "/api/v1/wallet/commissions"), &req)
	if err != nil {
		if businessflow.IsAgentNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Agent not found", "AGENT_NOT_FOUND", nil)
		}
		log.Println("Get commission history failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to get commission history", "COMMISSION_HISTORY_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Commission history retrieved successfully", result)
}

// createRequestContext creates a context with request-scoped values for observability and timeout
func (h *WalletHandler) createRequestContext(c fiber.Ctx, endpoint string) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	ctx = context.WithValue(ctx, "request_id", c.Get("X-Request-ID"))
	ctx = context.WithValue(ctx, "user_agent", c.Get("User-Agent"))
	ctx = context.WithValue(ctx, "ip_address", c.IP())
	ctx = context.WithValue(ctx, "endpoint", endpoint)
	ctx = context.WithValue(ctx, "cancel_func", cancel)
	return ctx
}
