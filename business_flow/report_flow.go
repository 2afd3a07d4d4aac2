package businessflow

import (
	"bytes"
	"context"
	"fmt"

	"github.com/polisku/commission-engine/app/dto"
	"github.com/polisku/commission-engine/repository"
	"github.com/xuri/excelize/v2"
)

// ReportFlow produces admin-facing commission aggregates
type ReportFlow interface {
	GetCommissionReport(ctx context.Context, req *dto.CommissionReportRequest) (*dto.CommissionReportResponse, error)
	// ExportCommissionReportXLSX renders the same aggregate as a spreadsheet
	// for back-office consumption.
	ExportCommissionReportXLSX(ctx context.Context, req *dto.CommissionReportRequest) ([]byte, error)
}

type reportFlow struct {
	commissionTxRepo repository.CommissionTransactionRepository
}

// NewReportFlow creates a new reporting flow
func NewReportFlow(commissionTxRepo repository.CommissionTransactionRepository) ReportFlow {
	return &reportFlow{commissionTxRepo: commissionTxRepo}
}

// GetCommissionReport aggregates posted commissions per earner over an
// optional date range.
func (f *reportFlow) GetCommissionReport(ctx context.Context, req *dto.CommissionReportRequest) (*dto.CommissionReportResponse, error) {
	if req.StartDate != nil && req.EndDate != nil && req.StartDate.After(*req.EndDate) {
		return nil, NewBusinessError("INVALID_DATE_RANGE", "Start date must not be after end date", ErrStartDateAfterEndDate)
	}

	aggregates, err := f.commissionTxRepo.AggregateByEarner(ctx, req.StartDate, req.EndDate)
	if err != nil {
		return nil, NewBusinessError("DB_ERROR", "Failed to aggregate commissions", err)
	}

	response := &dto.CommissionReportResponse{
		Items: make([]dto.CommissionReportItem, 0, len(aggregates)),
	}
	for _, aggregate := range aggregates {
		response.Items = append(response.Items, dto.CommissionReportItem{
			AgentCode:        aggregate.EarnerAgentCode,
			FullName:         aggregate.FullName,
			TransactionCount: aggregate.TransactionCount,
			TotalCommission:  aggregate.TotalCommission,
		})
		response.SumCommission += aggregate.TotalCommission
		response.SumTransactions += aggregate.TransactionCount
	}
	return response, nil
}

const reportSheetName = "Commission Report"

// ExportCommissionReportXLSX writes the aggregate report into an XLSX
// workbook and returns the encoded bytes.
func (f *reportFlow) ExportCommissionReportXLSX(ctx context.Context, req *dto.CommissionReportRequest) ([]byte, error) {
	report, err := f.GetCommissionReport(ctx, req)
	if err != nil {
		return nil, err
	}

	workbook := excelize.NewFile()
	defer workbook.Close()

	index, err := workbook.NewSheet(reportSheetName)
	if err != nil {
		return nil, NewBusinessError("REPORT_EXPORT_FAILED", "Failed to create report sheet", err)
	}
	workbook.SetActiveSheet(index)
	if err := workbook.DeleteSheet("Sheet1"); err != nil {
		return nil, NewBusinessError("REPORT_EXPORT_FAILED", "Failed to prepare workbook", err)
	}

	headers := []string{"Agent Code", "Full Name", "Transactions", "Total Commission (minor units)"}
	for col, header := range headers {
		cell, cellErr := excelize.CoordinatesToCellName(col+1, 1)
		if cellErr != nil {
			return nil, NewBusinessError("REPORT_EXPORT_FAILED", "Failed to address header cell", cellErr)
		}
		if setErr := workbook.SetCellValue(reportSheetName, cell, header); setErr != nil {
			return nil, NewBusinessError("REPORT_EXPORT_FAILED", "Failed to write header", setErr)
		}
	}

	for rowIdx, item := range report.Items {
		row := rowIdx + 2
		values := []any{item.AgentCode, item.FullName, item.TransactionCount, item.TotalCommission}
		for col, value := range values {
			cell, cellErr := excelize.CoordinatesToCellName(col+1, row)
			if cellErr != nil {
				return nil, NewBusinessError("REPORT_EXPORT_FAILED", "Failed to address cell", cellErr)
			}
			if setErr := workbook.SetCellValue(reportSheetName, cell, value); setErr != nil {
				return nil, NewBusinessError("REPORT_EXPORT_FAILED", "Failed to write row", setErr)
			}
		}
	}

	totalsRow := len(report.Items) + 2
	totals := []any{"TOTAL", "", report.SumTransactions, report.SumCommission}
	for col, value := range totals {
		cell, cellErr := excelize.CoordinatesToCellName(col+1, totalsRow)
		if cellErr != nil {
			return nil, NewBusinessError("REPORT_EXPORT_FAILED", "Failed to address totals cell", cellErr)
		}
		if setErr := workbook.SetCellValue(reportSheetName, cell, value); setErr != nil {
			return nil, NewBusinessError("REPORT_EXPORT_FAILED", "Failed to write totals", setErr)
		}
	}

	var buf bytes.Buffer
	if err := workbook.Write(&buf); err != nil {
		return nil, NewBusinessError("REPORT_EXPORT_FAILED", fmt.Sprintf("Failed to encode workbook: %v", err), err)
	}
	return buf.Bytes(), nil
}
