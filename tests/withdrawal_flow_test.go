package tests

import (
	"testing"

	"github.com/polisku/commission-engine/app/dto"
	"github.com/polisku/commission-engine/app/services"
	businessflow "github.com/polisku/commission-engine/business_flow"
	"github.com/polisku/commission-engine/models"
	"github.com/polisku/commission-engine/repository"
	testingutil "github.com/polisku/commission-engine/testing"
	"github.com/polisku/commission-engine/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWithdrawalFlow(testDB *testingutil.TestDB) businessflow.WithdrawalFlow {
	return businessflow.NewWithdrawalFlow(
		repository.NewAgentRepository(testDB.DB),
		repository.NewWithdrawalRequestRepository(testDB.DB),
		repository.NewWalletTransactionRepository(testDB.DB),
		repository.NewAuditLogRepository(testDB.DB),
		services.NoopWithdrawalNotifier{},
		testDB.DB,
	)
}

func withdrawalRequest(agentCode string, amount int64) *dto.RequestWithdrawalRequest {
	return &dto.RequestWithdrawalRequest{
		AgentCode:         agentCode,
		Amount:            amount,
		BankName:          "Bank Mandiri",
		BankAccountNumber: "1370001234567",
		BankAccountHolder: "Test Holder",
	}
}

func TestRequestWithdrawal(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		flow := newWithdrawalFlow(testDB)
		ctx := testingutil.CreateTestContext()
		metadata := businessflow.NewClientMetadata("127.0.0.1", "test")

		t.Run("CreatesPendingRequest", func(t *testing.T) {
			agent, err := fixtures.CreateTestAgent("WD-REQ-1")
			require.NoError(t, err)
			require.NoError(t, fixtures.FundWallet(agent, 50000))

			resp, err := flow.RequestWithdrawal(ctx, withdrawalRequest("WD-REQ-1", 20000), metadata)
			require.NoError(t, err)
			assert.Equal(t, string(models.WithdrawalStatusPending), resp.Withdrawal.Status)
			assert.Equal(t, int64(20000), resp.Withdrawal.Amount)
			assert.NotEmpty(t, resp.Withdrawal.UUID)
		})

		t.Run("InsufficientBalance", func(t *testing.T) {
			agent, err := fixtures.CreateTestAgent("WD-REQ-2")
			require.NoError(t, err)
			require.NoError(t, fixtures.FundWallet(agent, 1000))

			_, err = flow.RequestWithdrawal(ctx, withdrawalRequest("WD-REQ-2", 5000), metadata)
			require.Error(t, err)
			assert.True(t, businessflow.IsInsufficientBalance(err))
		})

		t.Run("NonPositiveAmount", func(t *testing.T) {
			_, err := flow.RequestWithdrawal(ctx, withdrawalRequest("WD-REQ-2", 0), metadata)
			require.Error(t, err)
		})

		t.Run("UnknownAgent", func(t *testing.T) {
			_, err := flow.RequestWithdrawal(ctx, withdrawalRequest("WD-NOBODY", 1000), metadata)
			require.Error(t, err)
			assert.True(t, businessflow.IsAgentNotFound(err))
		})

		t.Run("SecondUnresolvedRequestRejected", func(t *testing.T) {
			agent, err := fixtures.CreateTestAgent("WD-REQ-3")
			require.NoError(t, err)
			require.NoError(t, fixtures.FundWallet(agent, 50000))

			_, err = flow.RequestWithdrawal(ctx, withdrawalRequest("WD-REQ-3", 10000), metadata)
			require.NoError(t, err)

			_, err = flow.RequestWithdrawal(ctx, withdrawalRequest("WD-REQ-3", 10000), metadata)
			require.Error(t, err)
			assert.True(t, businessflow.IsDuplicatePendingRequest(err))
		})

		return nil
	})
	require.NoError(t, err)
}

func TestWithdrawalLifecycle(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		flow := newWithdrawalFlow(testDB)
		agentRepo := repository.NewAgentRepository(testDB.DB)
		walletRepo := repository.NewWalletTransactionRepository(testDB.DB)
		ctx := testingutil.CreateTestContext()
		metadata := businessflow.NewClientMetadata("127.0.0.1", "test")

		t.Run("ApproveThenPaidDebitsWallet", func(t *testing.T) {
			agent, err := fixtures.CreateTestAgent("WD-LC-1")
			require.NoError(t, err)
			require.NoError(t, fixtures.FundWallet(agent, 50000))

			created, err := flow.RequestWithdrawal(ctx, withdrawalRequest("WD-LC-1", 20000), metadata)
			require.NoError(t, err)
			review := &dto.ReviewWithdrawalRequest{WithdrawalUUID: created.Withdrawal.UUID, AdminNote: utils.ToPtr("verified")}

			approved, err := flow.ApproveWithdrawal(ctx, review, metadata)
			require.NoError(t, err)
			assert.Equal(t, string(models.WithdrawalStatusApproved), approved.Withdrawal.Status)
			require.NotNil(t, approved.Withdrawal.ApprovedAt)

			// Approval alone does not touch the wallet.
			loaded, err := agentRepo.ByAgentCode(ctx, "WD-LC-1")
			require.NoError(t, err)
			assert.Equal(t, int64(50000), loaded.WalletBalance)

			paid, err := flow.MarkWithdrawalPaid(ctx, review, metadata)
			require.NoError(t, err)
			assert.Equal(t, string(models.WithdrawalStatusPaid), paid.Withdrawal.Status)
			require.NotNil(t, paid.Withdrawal.PaidAt)

			loaded, err = agentRepo.ByAgentCode(ctx, "WD-LC-1")
			require.NoError(t, err)
			assert.Equal(t, int64(30000), loaded.WalletBalance)

			latest, err := walletRepo.LatestByAgent(ctx, "WD-LC-1")
			require.NoError(t, err)
			assert.Equal(t, models.WalletTransactionTypeDebit, latest.Type)
			assert.Equal(t, int64(20000), latest.Amount)
			assert.Equal(t, int64(50000), latest.BalanceBefore)
			assert.Equal(t, int64(30000), latest.BalanceAfter)
		})

		t.Run("RejectKeepsWallet", func(t *testing.T) {
			agent, err := fixtures.CreateTestAgent("WD-LC-2")
			require.NoError(t, err)
			require.NoError(t, fixtures.FundWallet(agent, 50000))

			created, err := flow.RequestWithdrawal(ctx, withdrawalRequest("WD-LC-2", 20000), metadata)
			require.NoError(t, err)

			rejected, err := flow.RejectWithdrawal(ctx, &dto.ReviewWithdrawalRequest{
				WithdrawalUUID: created.Withdrawal.UUID,
				AdminNote:      utils.ToPtr("bank account mismatch"),
			}, metadata)
			require.NoError(t, err)
			assert.Equal(t, string(models.WithdrawalStatusRejected), rejected.Withdrawal.Status)
			require.NotNil(t, rejected.Withdrawal.RejectedAt)

			loaded, err := agentRepo.ByAgentCode(ctx, "WD-LC-2")
			require.NoError(t, err)
			assert.Equal(t, int64(50000), loaded.WalletBalance)

			// A rejected request no longer blocks a new one.
			_, err = flow.RequestWithdrawal(ctx, withdrawalRequest("WD-LC-2", 10000), metadata)
			require.NoError(t, err)
		})

		t.Run("IllegalTransitions", func(t *testing.T) {
			agent, err := fixtures.CreateTestAgent("WD-LC-3")
			require.NoError(t, err)
			require.NoError(t, fixtures.FundWallet(agent, 50000))

			created, err := flow.RequestWithdrawal(ctx, withdrawalRequest("WD-LC-3", 20000), metadata)
			require.NoError(t, err)
			review := &dto.ReviewWithdrawalRequest{WithdrawalUUID: created.Withdrawal.UUID}

			// Pending cannot be marked paid.
			_, err = flow.MarkWithdrawalPaid(ctx, review, metadata)
			require.Error(t, err)
			assert.True(t, businessflow.IsWithdrawalNotTransitable(err))

			_, err = flow.RejectWithdrawal(ctx, review, metadata)
			require.NoError(t, err)

			// Rejected is terminal.
			_, err = flow.ApproveWithdrawal(ctx, review, metadata)
			require.Error(t, err)
			assert.True(t, businessflow.IsWithdrawalNotTransitable(err))
		})

		t.Run("UnknownRequest", func(t *testing.T) {
			_, err := flow.ApproveWithdrawal(ctx, &dto.ReviewWithdrawalRequest{
				WithdrawalUUID: "9f4f1f1e-0000-4000-8000-000000000000",
			}, metadata)
			require.Error(t, err)
			assert.True(t, businessflow.IsWithdrawalNotFound(err))
		})

		return nil
	})
	require.NoError(t, err)
}

func TestListWithdrawals(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		flow := newWithdrawalFlow(testDB)
		ctx := testingutil.CreateTestContext()
		metadata := businessflow.NewClientMetadata("127.0.0.1", "test")

		codes := []string{"WD-LIST-1", "WD-LIST-2", "WD-LIST-3"}
		for _, code := range codes {
			agent, err := fixtures.CreateTestAgent(code)
			require.NoError(t, err)
			require.NoError(t, fixtures.FundWallet(agent, 50000))
			_, err = flow.RequestWithdrawal(ctx, withdrawalRequest(code, 10000), metadata)
			require.NoError(t, err)
		}

		t.Run("AllPending", func(t *testing.T) {
			resp, err := flow.ListWithdrawals(ctx, &dto.ListWithdrawalsRequest{
				Status:   utils.ToPtr(string(models.WithdrawalStatusPending)),
				Page:     1,
				PageSize: 10,
			})
			require.NoError(t, err)
			assert.Len(t, resp.Items, 3)
			assert.Equal(t, uint(3), resp.Pagination.TotalItems)
		})

		t.Run("FilterByAgent", func(t *testing.T) {
			resp, err := flow.ListWithdrawals(ctx, &dto.ListWithdrawalsRequest{
				AgentCode: utils.ToPtr("WD-LIST-2"),
				Page:      1,
				PageSize:  10,
			})
			require.NoError(t, err)
			require.Len(t, resp.Items, 1)
			assert.Equal(t, "WD-LIST-2", resp.Items[0].AgentCode)
		})

		t.Run("Pagination", func(t *testing.T) {
			resp, err := flow.ListWithdrawals(ctx, &dto.ListWithdrawalsRequest{Page: 2, PageSize: 2})
			require.NoError(t, err)
			assert.Len(t, resp.Items, 1)
			assert.Equal(t, uint(2), resp.Pagination.TotalPages)
		})

		t.Run("InvalidPage", func(t *testing.T) {
			_, err := flow.ListWithdrawals(ctx, &dto.ListWithdrawalsRequest{Page: 0, PageSize: 10})
			require.Error(t, err)
		})

		return nil
	})
	require.NoError(t, err)
}
