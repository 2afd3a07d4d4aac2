package handlers

import (
	"context"
	"log"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/polisku/commission-engine/app/dto"
	businessflow "github.com/polisku/commission-engine/business_flow"
)

// PaymentHandlerInterface defines the contract for payment event handlers
type PaymentHandlerInterface interface {
	PaymentVerified(c fiber.Ctx) error
}

// PaymentHandler receives PaymentVerified events and triggers commission
// disbursement.
type PaymentHandler struct {
	disbursementFlow businessflow.DisbursementFlow
	validator        *validator.Validate
}

// NewPaymentHandler creates a new payment event handler
func NewPaymentHandler(disbursementFlow businessflow.DisbursementFlow) *PaymentHandler {
	handler := &PaymentHandler{
		disbursementFlow: disbursementFlow,
		validator:        validator.New(),
	}
	registerCustomValidations(handler.validator)
	return handler
}

func (h *PaymentHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *PaymentHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// PaymentVerified handles the PaymentVerified webhook from the payment
// verification system. Redelivery of the same payment_reference returns the
// stored result with HTTP 200 instead of 201.
// @Summary Payment Verified Webhook
// @Description Disburse tier commissions for a verified premium payment
// @Tags Payments
// @Accept json
// @Produce json
// @Param request body dto.PaymentVerifiedRequest true "Payment event payload"
// @Success 200 {object} dto.APIResponse{data=dto.DisbursementResult} "Replayed"
// @Success 201 {object} dto.APIResponse{data=dto.DisbursementResult} "Disbursed"
// @Failure 400 {object} dto.APIResponse
// @Failure 404 {object} dto.APIResponse
// @Failure 500 {object} dto.APIResponse
// @Router /api/v1/payments/verified [post]
func (h *PaymentHandler) PaymentVerified(c fiber.Ctx) error {
	var req dto.PaymentVerifiedRequest
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

	result, err := h.disbursementFlow.DisbursePayment(h.createRequestContext(c, "/api/v1/payments/verified"), &req, metadata)
	if err != nil {
		if businessflow.IsAgentNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Payer agent not found or inactive", "PAYER_NOT_FOUND", nil)
		}
		if businessflow.IsPaymentInvalid(err) {
			return h.ErrorResponse(c, fiber.StatusUnprocessableEntity, "Payment event is invalid", "PAYMENT_INVALID", nil)
		}

		log.Println("Disbursement failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to disburse payment", "DISBURSEMENT_FAILED", nil)
	}

	if result.Replayed {
		return h.SuccessResponse(c, fiber.StatusOK, "Payment already disbursed", result)
	}
	return h.SuccessResponse(c, fiber.StatusCreated, "Payment disbursed successfully", result)
}

// createRequestContext creates a context with request-scoped values for observability and timeout
func (h *PaymentHandler) createRequestContext(c fiber.Ctx, endpoint string) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	ctx = context.WithValue(ctx, "request_id", c.Get("X-Request-ID"))
	ctx = context.WithValue(ctx, "user_agent", c.Get("User-Agent"))
	ctx = context.WithValue(ctx, "ip_address", c.IP())
	ctx = context.WithValue(ctx, "endpoint", endpoint)
	ctx = context.WithValue(ctx, "cancel_func", cancel)
	return ctx
}
