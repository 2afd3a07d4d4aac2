package tests

import (
	"testing"

	"github.com/polisku/commission-engine/models"
	"github.com/polisku/commission-engine/repository"
	testingutil "github.com/polisku/commission-engine/testing"
	"github.com/polisku/commission-engine/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAgentRepository(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		agentRepo := repository.NewAgentRepository(testDB.DB)
		ctx := testingutil.CreateTestContext()

		t.Run("ByAgentCode", func(t *testing.T) {
			created, err := fixtures.CreateTestAgent("AG-REPO-1")
			require.NoError(t, err)

			loaded, err := agentRepo.ByAgentCode(ctx, "AG-REPO-1")
			require.NoError(t, err)
			require.NotNil(t, loaded)
			assert.Equal(t, created.ID, loaded.ID)
			assert.Equal(t, "AG-REPO-1", loaded.AgentCode)
			assert.True(t, utils.IsTrue(loaded.IsActive))
		})

		t.Run("ByAgentCodeNotFound", func(t *testing.T) {
			loaded, err := agentRepo.ByAgentCode(ctx, "AG-MISSING")
			require.NoError(t, err)
			assert.Nil(t, loaded)
		})

		t.Run("UpdateCachedBalances", func(t *testing.T) {
			agent, err := fixtures.CreateTestAgent("AG-REPO-2")
			require.NoError(t, err)

			err = agentRepo.UpdateCachedBalances(ctx, agent.ID, 5000, 12000)
			require.NoError(t, err)

			loaded, err := agentRepo.ByAgentCode(ctx, "AG-REPO-2")
			require.NoError(t, err)
			assert.Equal(t, int64(5000), loaded.WalletBalance)
			assert.Equal(t, int64(12000), loaded.TotalCommissionEarned)
		})

		t.Run("UpdateReferrer", func(t *testing.T) {
			parent, err := fixtures.CreateTestAgent("AG-REPO-3")
			require.NoError(t, err)
			child, err := fixtures.CreateTestAgent("AG-REPO-4")
			require.NoError(t, err)

			err = agentRepo.UpdateReferrer(ctx, child.ID, parent.AgentCode, 1)
			require.NoError(t, err)

			loaded, err := agentRepo.ByAgentCode(ctx, "AG-REPO-4")
			require.NoError(t, err)
			require.NotNil(t, loaded.ReferrerCode)
			assert.Equal(t, "AG-REPO-3", *loaded.ReferrerCode)
			assert.Equal(t, 1, loaded.MlmLevel)
			assert.False(t, loaded.IsRoot())
		})

		t.Run("ListByReferrer", func(t *testing.T) {
			_, err := fixtures.CreateReferralChain("AG-LIST-A", "AG-LIST-B", "AG-LIST-C")
			require.NoError(t, err)

			children, err := agentRepo.ListByReferrer(ctx, "AG-LIST-A")
			require.NoError(t, err)
			require.Len(t, children, 1)
			assert.Equal(t, "AG-LIST-B", children[0].AgentCode)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestReferralRepository(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		referralRepo := repository.NewReferralRepository(testDB.DB)
		ctx := testingutil.CreateTestContext()

		// A -> B -> C -> D: D's chain is [C, B, A]
		_, err := fixtures.CreateReferralChain("RF-A", "RF-B", "RF-C", "RF-D")
		require.NoError(t, err)

		t.Run("ByAgentCode", func(t *testing.T) {
			referral, err := referralRepo.ByAgentCode(ctx, "RF-D")
			require.NoError(t, err)
			require.NotNil(t, referral)
			assert.Equal(t, "RF-C", referral.ReferrerCode)
			assert.Equal(t, []string{"RF-C", "RF-B", "RF-A"}, []string(referral.UplineChain))
			assert.Equal(t, 3, referral.ReferralLevel)
		})

		t.Run("ListWithAncestor", func(t *testing.T) {
			downline, err := referralRepo.ListWithAncestor(ctx, "RF-A")
			require.NoError(t, err)
			// B, C and D all carry RF-A in their chain
			codes := make([]string, 0, len(downline))
			for _, r := range downline {
				codes = append(codes, r.AgentCode)
			}
			assert.ElementsMatch(t, []string{"RF-B", "RF-C", "RF-D"}, codes)
		})

		t.Run("DownlineCountByTier", func(t *testing.T) {
			counts, err := referralRepo.DownlineCountByTier(ctx, "RF-A", 5)
			require.NoError(t, err)
			assert.Equal(t, int64(1), counts[1]) // B
			assert.Equal(t, int64(1), counts[2]) // C
			assert.Equal(t, int64(1), counts[3]) // D
			assert.Equal(t, int64(0), counts[4])
		})

		t.Run("UpdateChain", func(t *testing.T) {
			referral, err := referralRepo.ByAgentCode(ctx, "RF-B")
			require.NoError(t, err)
			require.NotNil(t, referral)

			err = referralRepo.UpdateChain(ctx, referral.ID, []string{"RF-A"}, 1)
			require.NoError(t, err)

			reloaded, err := referralRepo.ByAgentCode(ctx, "RF-B")
			require.NoError(t, err)
			assert.Equal(t, []string{"RF-A"}, []string(reloaded.UplineChain))
		})

		return nil
	})
	require.NoError(t, err)
}

func TestCommissionRateRepository(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		rateRepo := repository.NewCommissionRateRepository(testDB.DB)
		ctx := testingutil.CreateTestContext()

		require.NoError(t, fixtures.CreateStandardRates(1, [5]float64{10, 5, 3, 2, 1}))

		t.Run("ByPlanAndTier", func(t *testing.T) {
			rate, err := rateRepo.ByPlanAndTier(ctx, 1, 2)
			require.NoError(t, err)
			require.NotNil(t, rate)
			require.NotNil(t, rate.RatePercent)
			assert.Equal(t, 5.0, *rate.RatePercent)
		})

		t.Run("ByPlanAndTierMissing", func(t *testing.T) {
			rate, err := rateRepo.ByPlanAndTier(ctx, 99, 1)
			require.NoError(t, err)
			assert.Nil(t, rate)
		})

		t.Run("ListByPlanOrderedByTier", func(t *testing.T) {
			rates, err := rateRepo.ListByPlan(ctx, 1)
			require.NoError(t, err)
			require.Len(t, rates, 5)
			for i, rate := range rates {
				assert.Equal(t, i+1, rate.TierLevel)
			}
		})

		t.Run("Update", func(t *testing.T) {
			rate, err := rateRepo.ByPlanAndTier(ctx, 1, 5)
			require.NoError(t, err)
			require.NotNil(t, rate)

			rate.RatePercent = utils.ToPtr(1.5)
			require.NoError(t, rateRepo.Update(ctx, rate))

			reloaded, err := rateRepo.ByPlanAndTier(ctx, 1, 5)
			require.NoError(t, err)
			assert.Equal(t, 1.5, *reloaded.RatePercent)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestWithdrawalRequestRepository(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		withdrawalRepo := repository.NewWithdrawalRequestRepository(testDB.DB)
		ctx := testingutil.CreateTestContext()

		agent, err := fixtures.CreateTestAgent("WD-REPO-1")
		require.NoError(t, err)

		request := &models.WithdrawalRequest{
			AgentCode:         agent.AgentCode,
			Amount:            1000,
			Status:            models.WithdrawalStatusPending,
			BankName:          "Test Bank",
			BankAccountNumber: "12345",
			BankAccountHolder: "Holder",
		}
		require.NoError(t, withdrawalRepo.Save(ctx, request))

		t.Run("ByUUID", func(t *testing.T) {
			loaded, err := withdrawalRepo.ByUUID(ctx, request.UUID.String())
			require.NoError(t, err)
			require.NotNil(t, loaded)
			assert.Equal(t, request.ID, loaded.ID)
		})

		t.Run("ExistsUnresolvedByAgent", func(t *testing.T) {
			unresolved, err := withdrawalRepo.ExistsUnresolvedByAgent(ctx, agent.AgentCode)
			require.NoError(t, err)
			assert.True(t, unresolved)

			none, err := withdrawalRepo.ExistsUnresolvedByAgent(ctx, "WD-NOBODY")
			require.NoError(t, err)
			assert.False(t, none)
		})

		t.Run("UpdateStatusGuarded", func(t *testing.T) {
			now := utils.UTCNow()

			// Wrong expected status fails without touching the row.
			err := withdrawalRepo.UpdateStatus(ctx, request.ID, models.WithdrawalStatusApproved, models.WithdrawalStatusPaid, now, nil)
			require.Error(t, err)
			assert.ErrorIs(t, err, repository.ErrWithdrawalStateConflict)

			// Legal transition succeeds.
			err = withdrawalRepo.UpdateStatus(ctx, request.ID, models.WithdrawalStatusPending, models.WithdrawalStatusApproved, now, utils.ToPtr("ok"))
			require.NoError(t, err)

			loaded, err := withdrawalRepo.ByUUID(ctx, request.UUID.String())
			require.NoError(t, err)
			assert.Equal(t, models.WithdrawalStatusApproved, loaded.Status)
			require.NotNil(t, loaded.ApprovedAt)
			require.NotNil(t, loaded.AdminNote)
			assert.Equal(t, "ok", *loaded.AdminNote)

			// Approved still counts as unresolved.
			unresolved, err := withdrawalRepo.ExistsUnresolvedByAgent(ctx, agent.AgentCode)
			require.NoError(t, err)
			assert.True(t, unresolved)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestProcessedPaymentRepository(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		processedRepo := repository.NewProcessedPaymentRepository(testDB.DB)
		ctx := testingutil.CreateTestContext()

		agent, err := fixtures.CreateTestAgent("PP-REPO-1")
		require.NoError(t, err)

		record := &models.ProcessedPayment{
			PaymentReference: "PAY-REPO-001",
			PayerAgentCode:   agent.AgentCode,
			PlanID:           1,
			Amount:           10000,
			Currency:         "IDR",
			Result:           []byte(`{}`),
			CompletedAt:      utils.UTCNow(),
		}
		require.NoError(t, processedRepo.Save(ctx, record))

		t.Run("ByPaymentReference", func(t *testing.T) {
			loaded, err := processedRepo.ByPaymentReference(ctx, "PAY-REPO-001")
			require.NoError(t, err)
			require.NotNil(t, loaded)
			assert.Equal(t, record.ID, loaded.ID)
		})

		t.Run("UniquePaymentReference", func(t *testing.T) {
			dup := &models.ProcessedPayment{
				PaymentReference: "PAY-REPO-001",
				PayerAgentCode:   agent.AgentCode,
				PlanID:           1,
				Amount:           10000,
				Currency:         "IDR",
				Result:           []byte(`{}`),
				CompletedAt:      utils.UTCNow(),
			}
			assert.Error(t, processedRepo.Save(ctx, dup))
		})

		return nil
	})
	require.NoError(t, err)
}

func TestCommissionTransactionRepository(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		commissionRepo := repository.NewCommissionTransactionRepository(testDB.DB)
		ctx := testingutil.CreateTestContext()

		payer, err := fixtures.CreateTestAgent("CT-PAYER")
		require.NoError(t, err)
		earner, err := fixtures.CreateTestAgent("CT-EARNER")
		require.NoError(t, err)

		for tier := 1; tier <= 3; tier++ {
			tx := &models.CommissionTransaction{
				PaymentReference: "PAY-CT-001",
				TierLevel:        tier,
				PayerAgentCode:   payer.AgentCode,
				EarnerAgentCode:  earner.AgentCode,
				PlanID:           1,
				BaseAmount:       10000,
				CommissionAmount: int64(1000 / tier),
				Status:           models.CommissionStatusPosted,
			}
			require.NoError(t, commissionRepo.Save(ctx, tx))
		}

		t.Run("ByPaymentReference", func(t *testing.T) {
			rows, err := commissionRepo.ByPaymentReference(ctx, "PAY-CT-001")
			require.NoError(t, err)
			assert.Len(t, rows, 3)
		})

		t.Run("UniquePaymentTierPair", func(t *testing.T) {
			dup := &models.CommissionTransaction{
				PaymentReference: "PAY-CT-001",
				TierLevel:        1,
				PayerAgentCode:   payer.AgentCode,
				EarnerAgentCode:  earner.AgentCode,
				PlanID:           1,
				BaseAmount:       10000,
				CommissionAmount: 500,
				Status:           models.CommissionStatusPosted,
			}
			assert.Error(t, commissionRepo.Save(ctx, dup))
		})

		t.Run("SumPostedByEarner", func(t *testing.T) {
			total, err := commissionRepo.SumPostedByEarner(ctx, earner.AgentCode)
			require.NoError(t, err)
			assert.Equal(t, int64(1000+500+333), total)
		})

		t.Run("AggregateByEarner", func(t *testing.T) {
			aggregates, err := commissionRepo.AggregateByEarner(ctx, nil, nil)
			require.NoError(t, err)
			require.Len(t, aggregates, 1)
			assert.Equal(t, earner.AgentCode, aggregates[0].EarnerAgentCode)
			assert.Equal(t, int64(3), aggregates[0].TransactionCount)
			assert.Equal(t, int64(1833), aggregates[0].TotalCommission)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestWalletTransactionRepository(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		walletRepo := repository.NewWalletTransactionRepository(testDB.DB)
		ctx := testingutil.CreateTestContext()

		agent, err := fixtures.CreateTestAgent("WT-REPO-1")
		require.NoError(t, err)
		require.NoError(t, fixtures.FundWallet(agent, 3000))
		require.NoError(t, fixtures.FundWallet(agent, 2000))

		debit := &models.WalletTransaction{
			AgentCode:     agent.AgentCode,
			Type:          models.WalletTransactionTypeDebit,
			Amount:        1000,
			BalanceBefore: 5000,
			BalanceAfter:  4000,
			Reference:     "test-debit",
		}
		require.NoError(t, walletRepo.Save(ctx, debit))

		t.Run("ListByAgentNewestFirst", func(t *testing.T) {
			entries, err := walletRepo.ListByAgent(ctx, agent.AgentCode, 10, 0)
			require.NoError(t, err)
			require.Len(t, entries, 3)
			assert.Equal(t, models.WalletTransactionTypeDebit, entries[0].Type)
		})

		t.Run("LatestByAgent", func(t *testing.T) {
			latest, err := walletRepo.LatestByAgent(ctx, agent.AgentCode)
			require.NoError(t, err)
			require.NotNil(t, latest)
			assert.Equal(t, int64(4000), latest.BalanceAfter)
		})

		t.Run("SumDeltaByAgent", func(t *testing.T) {
			delta, err := walletRepo.SumDeltaByAgent(ctx, agent.AgentCode)
			require.NoError(t, err)
			assert.Equal(t, int64(4000), delta)
		})

		return nil
	})
	require.NoError(t, err)
}
