package tests

import (
	"testing"

	"github.com/polisku/commission-engine/app/dto"
	businessflow "github.com/polisku/commission-engine/business_flow"
	"github.com/polisku/commission-engine/models"
	"github.com/polisku/commission-engine/repository"
	testingutil "github.com/polisku/commission-engine/testing"
	"github.com/polisku/commission-engine/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDisbursementFlow(testDB *testingutil.TestDB) businessflow.DisbursementFlow {
	return businessflow.NewDisbursementFlow(
		repository.NewAgentRepository(testDB.DB),
		repository.NewReferralRepository(testDB.DB),
		repository.NewCommissionRateRepository(testDB.DB),
		repository.NewCommissionTransactionRepository(testDB.DB),
		repository.NewWalletTransactionRepository(testDB.DB),
		repository.NewProcessedPaymentRepository(testDB.DB),
		repository.NewAuditLogRepository(testDB.DB),
		testDB.DB,
	)
}

func paymentRequest(reference, payer string, amount int64) *dto.PaymentVerifiedRequest {
	return &dto.PaymentVerifiedRequest{
		PaymentReference: reference,
		PayerAgentCode:   payer,
		PlanID:           1,
		Amount:           amount,
		Currency:         "IDR",
		CompletedAt:      utils.ToPtr(utils.UTCNow()),
	}
}

func TestDisbursePaymentFanOut(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		flow := newDisbursementFlow(testDB)
		agentRepo := repository.NewAgentRepository(testDB.DB)
		commissionRepo := repository.NewCommissionTransactionRepository(testDB.DB)
		walletRepo := repository.NewWalletTransactionRepository(testDB.DB)
		ctx := testingutil.CreateTestContext()
		metadata := businessflow.NewClientMetadata("127.0.0.1", "test")

		require.NoError(t, fixtures.CreateStandardRates(1, [5]float64{10, 5, 3, 2, 1}))

		// Six-agent chain: payer F has uplines E, D, C, B, A (tiers 1..5).
		agents, err := fixtures.CreateReferralChain("FO-A", "FO-B", "FO-C", "FO-D", "FO-E", "FO-F")
		require.NoError(t, err)
		payer := agents[5]

		result, err := flow.DisbursePayment(ctx, paymentRequest("PAY-FANOUT-1", payer.AgentCode, 200000), metadata)
		require.NoError(t, err)
		require.NotNil(t, result)
		assert.False(t, result.Replayed)
		require.Len(t, result.Tiers, utils.MaxTierDepth)

		// 10% + 5% + 3% + 2% + 1% of 200000
		expected := map[int]struct {
			earner string
			amount int64
		}{
			1: {"FO-E", 20000},
			2: {"FO-D", 10000},
			3: {"FO-C", 6000},
			4: {"FO-B", 4000},
			5: {"FO-A", 2000},
		}
		for _, tier := range result.Tiers {
			want := expected[tier.TierLevel]
			assert.True(t, tier.Credited, "tier %d should credit", tier.TierLevel)
			assert.Equal(t, want.earner, tier.EarnerAgentCode)
			assert.Equal(t, want.amount, tier.CommissionAmount)
		}
		assert.Equal(t, int64(42000), result.TotalCommission)

		t.Run("CommissionRowsPosted", func(t *testing.T) {
			rows, err := commissionRepo.ByPaymentReference(ctx, "PAY-FANOUT-1")
			require.NoError(t, err)
			require.Len(t, rows, 5)
			for _, row := range rows {
				assert.Equal(t, models.CommissionStatusPosted, row.Status)
				assert.Equal(t, payer.AgentCode, row.PayerAgentCode)
				assert.Equal(t, int64(200000), row.BaseAmount)
			}
		})

		t.Run("WalletsCredited", func(t *testing.T) {
			for tier, want := range expected {
				earner, err := agentRepo.ByAgentCode(ctx, want.earner)
				require.NoError(t, err)
				assert.Equal(t, want.amount, earner.WalletBalance, "tier %d earner balance", tier)
				assert.Equal(t, want.amount, earner.TotalCommissionEarned)

				ledger, err := walletRepo.ListByAgent(ctx, want.earner, 10, 0)
				require.NoError(t, err)
				require.Len(t, ledger, 1)
				assert.Equal(t, models.WalletTransactionTypeCredit, ledger[0].Type)
				assert.Equal(t, int64(0), ledger[0].BalanceBefore)
				assert.Equal(t, want.amount, ledger[0].BalanceAfter)
			}
		})

		return nil
	})
	require.NoError(t, err)
}

func TestDisbursePaymentIdempotency(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		flow := newDisbursementFlow(testDB)
		agentRepo := repository.NewAgentRepository(testDB.DB)
		commissionRepo := repository.NewCommissionTransactionRepository(testDB.DB)
		ctx := testingutil.CreateTestContext()
		metadata := businessflow.NewClientMetadata("127.0.0.1", "test")

		require.NoError(t, fixtures.CreateStandardRates(1, [5]float64{10, 5, 3, 2, 1}))
		_, err := fixtures.CreateReferralChain("ID-A", "ID-B")
		require.NoError(t, err)

		first, err := flow.DisbursePayment(ctx, paymentRequest("PAY-REPLAY-1", "ID-B", 100000), metadata)
		require.NoError(t, err)
		assert.False(t, first.Replayed)
		assert.Equal(t, int64(10000), first.TotalCommission)

		second, err := flow.DisbursePayment(ctx, paymentRequest("PAY-REPLAY-1", "ID-B", 100000), metadata)
		require.NoError(t, err)
		assert.True(t, second.Replayed)
		assert.Equal(t, first.TotalCommission, second.TotalCommission)
		assert.Equal(t, first.Tiers, second.Tiers)

		// Replay writes nothing: still one commission row, balance unchanged.
		rows, err := commissionRepo.ByPaymentReference(ctx, "PAY-REPLAY-1")
		require.NoError(t, err)
		assert.Len(t, rows, 1)

		earner, err := agentRepo.ByAgentCode(ctx, "ID-A")
		require.NoError(t, err)
		assert.Equal(t, int64(10000), earner.WalletBalance)

		return nil
	})
	require.NoError(t, err)
}

func TestDisbursePaymentSkipReasons(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		flow := newDisbursementFlow(testDB)
		ctx := testingutil.CreateTestContext()
		metadata := businessflow.NewClientMetadata("127.0.0.1", "test")

		t.Run("ShortChainReportsNoEarner", func(t *testing.T) {
			require.NoError(t, testDB.ClearAllTables())
			require.NoError(t, fixtures.CreateStandardRates(1, [5]float64{10, 5, 3, 2, 1}))
			_, err := fixtures.CreateReferralChain("SK-A", "SK-B", "SK-C")
			require.NoError(t, err)

			result, err := flow.DisbursePayment(ctx, paymentRequest("PAY-SKIP-1", "SK-C", 100000), metadata)
			require.NoError(t, err)
			require.Len(t, result.Tiers, 5)

			assert.True(t, result.Tiers[0].Credited)
			assert.True(t, result.Tiers[1].Credited)
			for _, tier := range result.Tiers[2:] {
				assert.False(t, tier.Credited)
				assert.Equal(t, dto.TierSkipNoEarner, tier.SkipReason)
			}
			assert.Equal(t, int64(10000+5000), result.TotalCommission)
		})

		t.Run("MissingRateReportsNoRateRule", func(t *testing.T) {
			require.NoError(t, testDB.ClearAllTables())
			// Only tier 1 pays.
			_, err := fixtures.CreatePercentageRate(1, 1, 10)
			require.NoError(t, err)
			_, err = fixtures.CreateReferralChain("SK-D", "SK-E", "SK-F")
			require.NoError(t, err)

			result, err := flow.DisbursePayment(ctx, paymentRequest("PAY-SKIP-2", "SK-F", 100000), metadata)
			require.NoError(t, err)

			assert.True(t, result.Tiers[0].Credited)
			assert.False(t, result.Tiers[1].Credited)
			assert.Equal(t, dto.TierSkipNoRate, result.Tiers[1].SkipReason)
			assert.Equal(t, int64(10000), result.TotalCommission)
		})

		t.Run("InactiveEarnerReportsReferralInactive", func(t *testing.T) {
			require.NoError(t, testDB.ClearAllTables())
			require.NoError(t, fixtures.CreateStandardRates(1, [5]float64{10, 5, 3, 2, 1}))
			agents, err := fixtures.CreateReferralChain("SK-G", "SK-H", "SK-I")
			require.NoError(t, err)

			// Deactivate the tier-1 earner; tier 2 still pays.
			middle := agents[1]
			middle.IsActive = utils.ToPtr(false)
			require.NoError(t, testDB.DB.Save(middle).Error)

			result, err := flow.DisbursePayment(ctx, paymentRequest("PAY-SKIP-3", "SK-I", 100000), metadata)
			require.NoError(t, err)

			assert.False(t, result.Tiers[0].Credited)
			assert.Equal(t, dto.TierSkipInactive, result.Tiers[0].SkipReason)
			assert.True(t, result.Tiers[1].Credited)
			assert.Equal(t, "SK-G", result.Tiers[1].EarnerAgentCode)
			assert.Equal(t, int64(5000), result.TotalCommission)
		})

		t.Run("RootPayerEarnsNothing", func(t *testing.T) {
			require.NoError(t, testDB.ClearAllTables())
			require.NoError(t, fixtures.CreateStandardRates(1, [5]float64{10, 5, 3, 2, 1}))
			_, err := fixtures.CreateTestAgent("SK-ROOT")
			require.NoError(t, err)

			result, err := flow.DisbursePayment(ctx, paymentRequest("PAY-SKIP-4", "SK-ROOT", 100000), metadata)
			require.NoError(t, err)
			assert.Equal(t, int64(0), result.TotalCommission)
			for _, tier := range result.Tiers {
				assert.False(t, tier.Credited)
				assert.Equal(t, dto.TierSkipNoEarner, tier.SkipReason)
			}

			// Zero-commission payments still record the idempotency marker.
			replay, err := flow.DisbursePayment(ctx, paymentRequest("PAY-SKIP-4", "SK-ROOT", 100000), metadata)
			require.NoError(t, err)
			assert.True(t, replay.Replayed)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestDisbursePaymentRounding(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		flow := newDisbursementFlow(testDB)
		ctx := testingutil.CreateTestContext()
		metadata := businessflow.NewClientMetadata("127.0.0.1", "test")

		// 2.5% of 999 = 24.975 rounds half-up to 25
		_, err := fixtures.CreatePercentageRate(1, 1, 2.5)
		require.NoError(t, err)
		_, err = fixtures.CreateReferralChain("RD-A", "RD-B")
		require.NoError(t, err)

		result, err := flow.DisbursePayment(ctx, paymentRequest("PAY-ROUND-1", "RD-B", 999), metadata)
		require.NoError(t, err)
		assert.Equal(t, int64(25), result.Tiers[0].CommissionAmount)

		return nil
	})
	require.NoError(t, err)
}

func TestDisbursePaymentFixedRate(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		flow := newDisbursementFlow(testDB)
		ctx := testingutil.CreateTestContext()
		metadata := businessflow.NewClientMetadata("127.0.0.1", "test")

		_, err := fixtures.CreateFixedRate(1, 1, 7500)
		require.NoError(t, err)
		_, err = fixtures.CreateReferralChain("FX-A", "FX-B")
		require.NoError(t, err)

		result, err := flow.DisbursePayment(ctx, paymentRequest("PAY-FIXED-1", "FX-B", 12345), metadata)
		require.NoError(t, err)
		assert.Equal(t, int64(7500), result.Tiers[0].CommissionAmount)
		assert.Equal(t, int64(7500), result.TotalCommission)

		return nil
	})
	require.NoError(t, err)
}

func TestDisbursePaymentErrors(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		flow := newDisbursementFlow(testDB)
		ctx := testingutil.CreateTestContext()
		metadata := businessflow.NewClientMetadata("127.0.0.1", "test")

		t.Run("UnknownPayer", func(t *testing.T) {
			_, err := flow.DisbursePayment(ctx, paymentRequest("PAY-ERR-1", "NOBODY", 100000), metadata)
			require.Error(t, err)
			assert.True(t, businessflow.IsAgentNotFound(err))
		})

		t.Run("NonPositiveAmount", func(t *testing.T) {
			_, err := flow.DisbursePayment(ctx, paymentRequest("PAY-ERR-2", "NOBODY", 0), metadata)
			require.Error(t, err)
			assert.True(t, businessflow.IsPaymentInvalid(err))
		})

		return nil
	})
	require.NoError(t, err)
}
