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
)

// RateAdminHandlerInterface defines the contract for rate administration
type RateAdminHandlerInterface interface {
	UpsertCommissionRate(c fiber.Ctx) error
	ListCommissionRates(c fiber.Ctx) error
}

// RateAdminHandler handles commission rate administration requests
type RateAdminHandler struct {
	rateFlow  businessflow.RateFlow
	validator *validator.Validate
}

// NewRateAdminHandler creates a new rate administration handler
func NewRateAdminHandler(rateFlow businessflow.RateFlow) *RateAdminHandler {
	handler := &RateAdminHandler{
		rateFlow:  rateFlow,
		validator: validator.New(),
	}
	registerCustomValidations(handler.validator)
	return handler
}

func (h *RateAdminHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *RateAdminHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// UpsertCommissionRate creates or replaces the rule for a (plan, tier) pair
// @Summary Upsert Commission Rate
// @Tags Admin
// @Accept json
// @Produce json
// @Param request body dto.UpsertCommissionRateRequest true "Rate payload"
// @Success 200 {object} dto.APIResponse{data=dto.UpsertCommissionRateResponse}
// @Failure 400 {object} dto.APIResponse
// @Router /api/v1/admin/commission-rates [put]
func (h *RateAdminHandler) UpsertCommissionRate(c fiber.Ctx) error {
	if _, ok := middleware.GetAdminIDFromContext(c); !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Admin authentication required", "ADMIN_AUTHENTICATION_REQUIRED", nil)
	}

	var req dto.UpsertCommissionRateRequest
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

	result, err := h.rateFlow.UpsertCommissionRate(h.createRequestContext(c, "/api/v1/admin/commission-rates"), &req, metadata)
	if err != nil {
		if businessErr, ok := err.(*businessflow.BusinessError); ok && businessErr.Code == "RATE_RULE_INVALID" {
			return h.ErrorResponse(c, fiber.StatusBadRequest, businessErr.Message, businessErr.Code, nil)
		}

		log.Println("Upsert commission rate failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to persist commission rate", "RATE_UPSERT_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}

// ListCommissionRates lists the rate rules of one plan ordered by tier
// @Summary List Commission Rates
// @Tags Admin
// @Produce json
// @Param plan_id path int true "Plan ID"
// @Success 200 {object} dto.APIResponse{data=dto.ListCommissionRatesResponse}
// @Router /api/v1/admin/commission-rates/{plan_id} [get]
func (h *RateAdminHandler) ListCommissionRates(c fiber.Ctx) error {
	if _, ok := middleware.GetAdminIDFromContext(c); !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Admin authentication required", "ADMIN_AUTHENTICATION_REQUIRED", nil)
	}

	planID, err := strconv.ParseUint(c.Params("plan_id"), 10, 32)
	if err != nil || planID == 0 {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid plan ID", "INVALID_PLAN_ID", nil)
	}

	req := dto.ListCommissionRatesRequest{PlanID: uint(planID)}
	result, err := h.rateFlow.ListCommissionRates(h.createRequestContext(c, "/api/v1/admin/commission-rates/:plan_id"), &req)
	if err != nil {
		log.Println("List commission rates failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list commission rates", "RATE_LIST_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Commission rates retrieved successfully", result)
}

// createRequestContext creates a context with request-scoped values for observability and timeout
func (h *RateAdminHandler) createRequestContext(c fiber.Ctx, endpoint string) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	ctx = context.WithValue(ctx, "request_id", c.Get("X-Request-ID"))
	ctx = context.WithValue(ctx, "user_agent", c.Get("User-Agent"))
	ctx = context.WithValue(ctx, "ip_address", c.IP())
	ctx = context.WithValue(ctx, "endpoint", endpoint)
	ctx = context.WithValue(ctx, "cancel_func", cancel)
	return ctx
}
