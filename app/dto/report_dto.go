package dto

import "time"

// CommissionReportRequest is an admin query aggregating posted commissions
// per earner over an optional date range.
type CommissionReportRequest struct {
	StartDate *time.Time `json:"start_date,omitempty"`
	EndDate   *time.Time `json:"end_date,omitempty"`
}

// CommissionReportItem is one earner's aggregate
type CommissionReportItem struct {
	AgentCode        string `json:"agent_code"`
	FullName         string `json:"full_name"`
	TransactionCount int64  `json:"transaction_count"`
	TotalCommission  int64  `json:"total_commission"`
}

// CommissionReportResponse is the per-earner commission aggregate report
type CommissionReportResponse struct {
	Items           []CommissionReportItem `json:"items"`
	SumCommission   int64                  `json:"sum_commission"`
	SumTransactions int64                  `json:"sum_transactions"`
}
