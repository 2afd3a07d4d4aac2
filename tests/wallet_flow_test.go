package tests

import (
	"testing"

	"github.com/polisku/commission-engine/app/dto"
	businessflow "github.com/polisku/commission-engine/business_flow"
	"github.com/polisku/commission-engine/repository"
	testingutil "github.com/polisku/commission-engine/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWalletFlow(testDB *testingutil.TestDB) businessflow.WalletFlow {
	return businessflow.NewWalletFlow(
		repository.NewAgentRepository(testDB.DB),
		repository.NewWalletTransactionRepository(testDB.DB),
		repository.NewCommissionTransactionRepository(testDB.DB),
	)
}

func TestGetWalletSummary(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		flow := newWalletFlow(testDB)
		ctx := testingutil.CreateTestContext()

		agent, err := fixtures.CreateTestAgent("WS-1")
		require.NoError(t, err)
		require.NoError(t, fixtures.FundWallet(agent, 3000))
		require.NoError(t, fixtures.FundWallet(agent, 2000))

		t.Run("ReturnsBalanceAndLedger", func(t *testing.T) {
			resp, err := flow.GetWalletSummary(ctx, &dto.GetWalletSummaryRequest{AgentCode: "WS-1"})
			require.NoError(t, err)
			assert.Equal(t, int64(5000), resp.Balance)
			require.Len(t, resp.RecentTransactions, 2)
			assert.Equal(t, int64(5000), resp.RecentTransactions[0].BalanceAfter)
		})

		t.Run("RecentLimitHonored", func(t *testing.T) {
			resp, err := flow.GetWalletSummary(ctx, &dto.GetWalletSummaryRequest{AgentCode: "WS-1", RecentLimit: 1})
			require.NoError(t, err)
			assert.Len(t, resp.RecentTransactions, 1)
		})

		t.Run("UnknownAgent", func(t *testing.T) {
			_, err := flow.GetWalletSummary(ctx, &dto.GetWalletSummaryRequest{AgentCode: "WS-NOBODY"})
			require.Error(t, err)
			assert.True(t, businessflow.IsAgentNotFound(err))
		})

		return nil
	})
	require.NoError(t, err)
}

func TestGetCommissionHistory(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		walletFlow := newWalletFlow(testDB)
		disbursementFlow := newDisbursementFlow(testDB)
		ctx := testingutil.CreateTestContext()
		metadata := businessflow.NewClientMetadata("127.0.0.1", "test")

		require.NoError(t, fixtures.CreateStandardRates(1, [5]float64{10, 5, 3, 2, 1}))
		_, err := fixtures.CreateReferralChain("CH-A", "CH-B")
		require.NoError(t, err)

		// Three payments by CH-B, each crediting CH-A at tier 1.
		for _, ref := range []string{"PAY-HIST-1", "PAY-HIST-2", "PAY-HIST-3"} {
			_, err := disbursementFlow.DisbursePayment(ctx, paymentRequest(ref, "CH-B", 100000), metadata)
			require.NoError(t, err)
		}

		t.Run("ListsAllCredits", func(t *testing.T) {
			resp, err := walletFlow.GetCommissionHistory(ctx, &dto.GetCommissionHistoryRequest{
				AgentCode: "CH-A",
				Page:      1,
				PageSize:  10,
			})
			require.NoError(t, err)
			assert.Len(t, resp.Items, 3)
			assert.Equal(t, int64(30000), resp.TotalEarned)
			for _, item := range resp.Items {
				assert.Equal(t, 1, item.TierLevel)
				assert.Equal(t, int64(10000), item.CommissionAmount)
				assert.Equal(t, "CH-B", item.PayerAgentCode)
			}
		})

		t.Run("Paginates", func(t *testing.T) {
			resp, err := walletFlow.GetCommissionHistory(ctx, &dto.GetCommissionHistoryRequest{
				AgentCode: "CH-A",
				Page:      2,
				PageSize:  2,
			})
			require.NoError(t, err)
			assert.Len(t, resp.Items, 1)
			assert.Equal(t, uint(3), resp.Pagination.TotalItems)
			assert.True(t, resp.Pagination.HasPrevious)
			assert.False(t, resp.Pagination.HasNext)
		})

		t.Run("EmptyHistory", func(t *testing.T) {
			resp, err := walletFlow.GetCommissionHistory(ctx, &dto.GetCommissionHistoryRequest{
				AgentCode: "CH-B",
				Page:      1,
				PageSize:  10,
			})
			require.NoError(t, err)
			assert.Empty(t, resp.Items)
			assert.Equal(t, int64(0), resp.TotalEarned)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestReconcileBalance(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		flow := newWalletFlow(testDB)
		ctx := testingutil.CreateTestContext()

		agent, err := fixtures.CreateTestAgent("RC-1")
		require.NoError(t, err)
		require.NoError(t, fixtures.FundWallet(agent, 7000))

		cached, derived, err := flow.ReconcileBalance(ctx, "RC-1")
		require.NoError(t, err)
		assert.Equal(t, int64(7000), cached)
		assert.Equal(t, cached, derived)

		return nil
	})
	require.NoError(t, err)
}
