package handlers

import (
	"context"
	"log"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/polisku/commission-engine/app/dto"
	businessflow "github.com/polisku/commission-engine/business_flow"
)

// ReferralHandlerInterface defines the contract for referral handlers
type ReferralHandlerInterface interface {
	RecordReferral(c fiber.Ctx) error
	GetUplineChain(c fiber.Ctx) error
	GetDownlineCounts(c fiber.Ctx) error
}

// ReferralHandler handles referral-related HTTP requests
type ReferralHandler struct {
	referralFlow businessflow.ReferralFlow
	validator    *validator.Validate
}

// NewReferralHandler creates a new referral handler
func NewReferralHandler(referralFlow businessflow.ReferralFlow) *ReferralHandler {
	handler := &ReferralHandler{
		referralFlow: referralFlow,
		validator:    validator.New(),
	}
	registerCustomValidations(handler.validator)
	return handler
}

func (h *ReferralHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *ReferralHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// RecordReferral handles the AgentLinked event from the registration system
// @Summary Record Referral
// @Description Link an agent under a referrer and materialize the upline chain
// @Tags Referrals
// @Accept json
// @Produce json
// @Param request body dto.RecordReferralRequest true "Referral payload"
// @Success 201 {object} dto.APIResponse{data=dto.RecordReferralResponse}
// @Failure 400 {object} dto.APIResponse
// @Failure 404 {object} dto.APIResponse
// @Failure 500 {object} dto.APIResponse
// @Router /api/v1/referrals [post]
func (h *ReferralHandler) RecordReferral(c fiber.Ctx) error {
	var req dto.RecordReferralRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
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

	result, err := h.referralFlow.RecordReferral(h.createRequestContext(c, "/api/v1/referrals"), &req, metadata)
	if err != nil {
		if businessflow.IsAgentNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Agent not found or inactive", "AGENT_NOT_FOUND", nil)
		}
		if businessflow.IsReferrerNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Referrer not found or inactive", "REFERRER_NOT_FOUND", nil)
		}
		if businessflow.IsReferralCycle(err) {
			return h.ErrorResponse(c, fiber.StatusConflict, "Referral would create a cycle", "REFERRAL_CYCLE", nil)
		}

		log.Println("Record referral failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to record referral", "REFERRAL_RECORD_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusCreated, "Referral recorded successfully", result)
}

// GetUplineChain returns an agent's ancestor chain
// @Summary Get Upline Chain
// @Tags Referrals
// @Produce json
// @Param agent_code path string true "Agent code"
// @Param max_depth query int false "Maximum depth (default: 5)" minimum(1) maximum(5)
// @Success 200 {object} dto.APIResponse{data=dto.GetUplineChainResponse}
// @Router /api/v1/referrals/{agent_code}/upline [get]
func (h *ReferralHandler) GetUplineChain(c fiber.Ctx) error {
	req := dto.GetUplineChainRequest{AgentCode: c.Params("agent_code")}
	if depthStr := c.Query("max_depth"); depthStr != "" {
		if parsed, err := strconv.Atoi(depthStr); err == nil {
			req.MaxDepth = parsed
		}
	}

	if err := h.validator.Struct(&req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	result, err := h.referralFlow.GetUplineChain(h.createRequestContext(c, "/api/v1/referrals/:agent_code/upline"), &req)
	if err != nil {
		if businessflow.IsAgentNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Agent not found", "AGENT_NOT_FOUND", nil)
		}
		log.Println("Get upline chain failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to get upline chain", "UPLINE_CHAIN_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Upline chain retrieved successfully", result)
}

// GetDownlineCounts returns per-tier downline sizes for an agent
// @Summary Get Downline Counts
// @Tags Referrals
// @Produce json
// @Param agent_code path string true "Agent code"
// @Success 200 {object} dto.APIResponse{data=dto.GetDownlineCountsResponse}
// @Router /api/v1/referrals/{agent_code}/downline [get]
func (h *ReferralHandler) GetDownlineCounts(c fiber.Ctx) error {
	req := dto.GetDownlineCountsRequest{AgentCode: c.Params("agent_code")}
	if levelStr := c.Query("max_level"); levelStr != "" {
		if parsed, err := strconv.Atoi(levelStr); err == nil {
			req.MaxLevel = parsed
		}
	}

	if err := h.validator.Struct(&req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	result, err := h.referralFlow.GetDownlineCounts(h.createRequestContext(c, "/api/v1/referrals/:agent_code/downline"), &req)
	if err != nil {
		if businessflow.IsAgentNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Agent not found", "AGENT_NOT_FOUND", nil)
		}
		log.Println("Get downline counts failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to get downline counts", "DOWNLINE_COUNTS_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Downline counts retrieved successfully", result)
}

// createRequestContext creates a context with request-scoped values for observability and timeout
func (h *ReferralHandler) createRequestContext(c fiber.Ctx, endpoint string) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	ctx = context.WithValue(ctx, "request_id", c.Get("X-Request-ID"))
	ctx = context.WithValue(ctx, "user_agent", c.Get("User-Agent"))
	ctx = context.WithValue(ctx, "ip_address", c.IP())
	ctx = context.WithValue(ctx, "endpoint", endpoint)
	ctx = context.WithValue(ctx, "cancel_func", cancel)
	return ctx
}
