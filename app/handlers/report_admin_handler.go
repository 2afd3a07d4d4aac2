package handlers

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/polisku/commission-engine/app/dto"
	"github.com/polisku/commission-engine/app/middleware"
	businessflow "github.com/polisku/commission-engine/business_flow"
)

// ReportAdminHandlerInterface defines the contract for reporting endpoints
type ReportAdminHandlerInterface interface {
	GetCommissionReport(c fiber.Ctx) error
	ExportCommissionReport(c fiber.Ctx) error
}

// ReportAdminHandler handles admin reporting requests
type ReportAdminHandler struct {
	reportFlow businessflow.ReportFlow
}

// NewReportAdminHandler creates a new reporting handler
func NewReportAdminHandler(reportFlow businessflow.ReportFlow) *ReportAdminHandler {
	return &ReportAdminHandler{reportFlow: reportFlow}
}

func (h *ReportAdminHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *ReportAdminHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// GetCommissionReport returns per-earner commission aggregates
// @Summary Get Commission Report
// @Tags Admin
// @Produce json
// @Param start_date query string false "Start date (RFC3339)"
// @Param end_date query string false "End date (RFC3339)"
// @Success 200 {object} dto.APIResponse{data=dto.CommissionReportResponse}
// @Router /api/v1/admin/reports/commissions [get]
func (h *ReportAdminHandler) GetCommissionReport(c fiber.Ctx) error {
	if _, ok := middleware.GetAdminIDFromContext(c); !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Admin authentication required", "ADMIN_AUTHENTICATION_REQUIRED", nil)
	}

	req, errResp := h.parseReportRequest(c)
	if errResp != nil {
		return errResp
	}

	result, err := h.reportFlow.GetCommissionReport(h.createRequestContext(c, "/api/v1/admin/reports/commissions"), req)
	if err != nil {
		log.Println("Get commission report failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to build commission report", "REPORT_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Commission report retrieved successfully", result)
}

// ExportCommissionReport streams the commission report as an XLSX workbook
// @Summary Export Commission Report
// @Tags Admin
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param start_date query string false "Start date (RFC3339)"
// @Param end_date query string false "End date (RFC3339)"
// @Success 200 {file} binary
// @Router /api/v1/admin/reports/commissions/export [get]
func (h *ReportAdminHandler) ExportCommissionReport(c fiber.Ctx) error {
	if _, ok := middleware.GetAdminIDFromContext(c); !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Admin authentication required", "ADMIN_AUTHENTICATION_REQUIRED", nil)
	}

	req, errResp := h.parseReportRequest(c)
	if errResp != nil {
		return errResp
	}

	payload, err := h.reportFlow.ExportCommissionReportXLSX(h.createRequestContext(c, "/api/v1/admin/reports/commissions/export"), req)
	if err != nil {
		log.Println("Export commission report failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to export commission report", "REPORT_EXPORT_FAILED", nil)
	}

	filename := fmt.Sprintf("commission-report-%s.xlsx", time.Now().UTC().Format("20060102-150405"))
	c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename=%q`, filename))
	return c.Send(payload)
}

func (h *ReportAdminHandler) parseReportRequest(c fiber.Ctx) (*dto.CommissionReportRequest, error) {
	req := &dto.CommissionReportRequest{}
	if v := c.Query("start_date"); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return nil, h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid start_date format", "VALIDATION_ERROR", nil)
		}
		req.StartDate = &parsed
	}
	if v := c.Query("end_date"); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return nil, h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid end_date format", "VALIDATION_ERROR", nil)
		}
		req.EndDate = &parsed
	}
	return req, nil
}

// createRequestContext creates a context with request-scoped values for observability and timeout
func (h *ReportAdminHandler) createRequestContext(c fiber.Ctx, endpoint string) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	ctx = context.WithValue(ctx, "request_id", c.Get("X-Request-ID"))
	ctx = context.WithValue(ctx, "user_agent", c.Get("User-Agent"))
	ctx = context.WithValue(ctx, "ip_address", c.IP())
	ctx = context.WithValue(ctx, "endpoint", endpoint)
	ctx = context.WithValue(ctx, "cancel_func", cancel)
	return ctx
}
