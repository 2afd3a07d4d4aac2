package tests

import (
	"bytes"
	"testing"
	"time"

	"github.com/polisku/commission-engine/app/dto"
	businessflow "github.com/polisku/commission-engine/business_flow"
	"github.com/polisku/commission-engine/repository"
	testingutil "github.com/polisku/commission-engine/testing"
	"github.com/polisku/commission-engine/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func newReportFlow(testDB *testingutil.TestDB) businessflow.ReportFlow {
	return businessflow.NewReportFlow(repository.NewCommissionTransactionRepository(testDB.DB))
}

func TestGetCommissionReport(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		reportFlow := newReportFlow(testDB)
		disbursementFlow := newDisbursementFlow(testDB)
		ctx := testingutil.CreateTestContext()
		metadata := businessflow.NewClientMetadata("127.0.0.1", "test")

		require.NoError(t, fixtures.CreateStandardRates(1, [5]float64{10, 5, 3, 2, 1}))
		// RP-A earns at tier 1 from RP-B's payment and tier 2 from RP-C's.
		_, err := fixtures.CreateReferralChain("RP-A", "RP-B", "RP-C")
		require.NoError(t, err)

		_, err = disbursementFlow.DisbursePayment(ctx, paymentRequest("PAY-RPT-1", "RP-B", 100000), metadata)
		require.NoError(t, err)
		_, err = disbursementFlow.DisbursePayment(ctx, paymentRequest("PAY-RPT-2", "RP-C", 100000), metadata)
		require.NoError(t, err)

		t.Run("AggregatesPerEarner", func(t *testing.T) {
			resp, err := reportFlow.GetCommissionReport(ctx, &dto.CommissionReportRequest{})
			require.NoError(t, err)
			require.Len(t, resp.Items, 2)

			byCode := map[string]dto.CommissionReportItem{}
			for _, item := range resp.Items {
				byCode[item.AgentCode] = item
			}
			// RP-A: 10% of 100000 + 5% of 100000; RP-B: 10% of 100000.
			assert.Equal(t, int64(15000), byCode["RP-A"].TotalCommission)
			assert.Equal(t, int64(2), byCode["RP-A"].TransactionCount)
			assert.Equal(t, int64(10000), byCode["RP-B"].TotalCommission)

			assert.Equal(t, int64(25000), resp.SumCommission)
			assert.Equal(t, int64(3), resp.SumTransactions)
		})

		t.Run("DateRangeExcludes", func(t *testing.T) {
			past := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
			resp, err := reportFlow.GetCommissionReport(ctx, &dto.CommissionReportRequest{
				StartDate: utils.ToPtr(past),
				EndDate:   utils.ToPtr(past.Add(24 * time.Hour)),
			})
			require.NoError(t, err)
			assert.Empty(t, resp.Items)
			assert.Equal(t, int64(0), resp.SumCommission)
		})

		t.Run("InvalidDateRange", func(t *testing.T) {
			now := utils.UTCNow()
			_, err := reportFlow.GetCommissionReport(ctx, &dto.CommissionReportRequest{
				StartDate: utils.ToPtr(now),
				EndDate:   utils.ToPtr(now.Add(-time.Hour)),
			})
			require.Error(t, err)
		})

		t.Run("XLSXExport", func(t *testing.T) {
			payload, err := reportFlow.ExportCommissionReportXLSX(ctx, &dto.CommissionReportRequest{})
			require.NoError(t, err)
			require.NotEmpty(t, payload)

			workbook, err := excelize.OpenReader(bytes.NewReader(payload))
			require.NoError(t, err)
			defer workbook.Close()

			rows, err := workbook.GetRows("Commission Report")
			require.NoError(t, err)
			// Header + two earners + totals.
			require.Len(t, rows, 4)
			assert.Equal(t, "Agent Code", rows[0][0])
			assert.Equal(t, "TOTAL", rows[3][0])
			assert.Equal(t, "25000", rows[3][3])
		})

		return nil
	})
	require.NoError(t, err)
}
