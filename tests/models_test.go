package tests

import (
	"testing"

	"github.com/polisku/commission-engine/models"
	"github.com/polisku/commission-engine/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommissionRateCalculation(t *testing.T) {
	t.Run("PercentageRule", func(t *testing.T) {
		rate := &models.CommissionRate{RatePercent: utils.ToPtr(10.0)}
		assert.Equal(t, int64(1000), rate.CalculateCommission(10000))
	})

	t.Run("PercentageRoundsHalfUp", func(t *testing.T) {
		// 10% of 1005 = 100.5 -> 101
		rate := &models.CommissionRate{RatePercent: utils.ToPtr(10.0)}
		assert.Equal(t, int64(101), rate.CalculateCommission(1005))

		// 2.5% of 999 = 24.975 -> 25
		rate = &models.CommissionRate{RatePercent: utils.ToPtr(2.5)}
		assert.Equal(t, int64(25), rate.CalculateCommission(999))

		// 1% of 49 = 0.49 -> 0
		rate = &models.CommissionRate{RatePercent: utils.ToPtr(1.0)}
		assert.Equal(t, int64(0), rate.CalculateCommission(49))
	})

	t.Run("FixedRule", func(t *testing.T) {
		rate := &models.CommissionRate{FixedAmount: utils.ToPtr(int64(2500))}
		assert.Equal(t, int64(2500), rate.CalculateCommission(10000))
		assert.Equal(t, int64(2500), rate.CalculateCommission(1))
	})

	t.Run("PercentageWinsWhenBothSet", func(t *testing.T) {
		rate := &models.CommissionRate{
			RatePercent: utils.ToPtr(5.0),
			FixedAmount: utils.ToPtr(int64(777)),
		}
		assert.Equal(t, int64(500), rate.CalculateCommission(10000))
	})

	t.Run("EmptyRulePaysNothing", func(t *testing.T) {
		rate := &models.CommissionRate{}
		assert.Equal(t, int64(0), rate.CalculateCommission(10000))
	})
}

func TestCommissionRateValidate(t *testing.T) {
	t.Run("ValidPercentage", func(t *testing.T) {
		rate := &models.CommissionRate{PlanID: 1, TierLevel: 1, RatePercent: utils.ToPtr(10.0)}
		require.NoError(t, rate.Validate())
	})

	t.Run("ValidFixed", func(t *testing.T) {
		rate := &models.CommissionRate{PlanID: 1, TierLevel: 5, FixedAmount: utils.ToPtr(int64(100))}
		require.NoError(t, rate.Validate())
	})

	t.Run("TierOutOfRange", func(t *testing.T) {
		rate := &models.CommissionRate{PlanID: 1, TierLevel: 6, RatePercent: utils.ToPtr(10.0)}
		assert.Error(t, rate.Validate())

		rate.TierLevel = 0
		assert.Error(t, rate.Validate())
	})

	t.Run("NoRule", func(t *testing.T) {
		rate := &models.CommissionRate{PlanID: 1, TierLevel: 1}
		assert.Error(t, rate.Validate())
	})

	t.Run("NegativePercent", func(t *testing.T) {
		rate := &models.CommissionRate{PlanID: 1, TierLevel: 1, RatePercent: utils.ToPtr(-1.0)}
		assert.Error(t, rate.Validate())
	})

	t.Run("PercentAbove100", func(t *testing.T) {
		rate := &models.CommissionRate{PlanID: 1, TierLevel: 1, RatePercent: utils.ToPtr(100.5)}
		assert.Error(t, rate.Validate())
	})
}

func TestAgentIsRoot(t *testing.T) {
	agent := &models.Agent{AgentCode: "ROOT-01"}
	assert.True(t, agent.IsRoot())

	agent.ReferrerCode = utils.ToPtr("")
	assert.True(t, agent.IsRoot())

	agent.ReferrerCode = utils.ToPtr("PARENT-01")
	assert.False(t, agent.IsRoot())
}

func TestWalletTransactionSignedAmount(t *testing.T) {
	credit := &models.WalletTransaction{Type: models.WalletTransactionTypeCredit, Amount: 500}
	assert.Equal(t, int64(500), credit.SignedAmount())

	debit := &models.WalletTransaction{Type: models.WalletTransactionTypeDebit, Amount: 500}
	assert.Equal(t, int64(-500), debit.SignedAmount())
}

func TestWithdrawalRequestTransitions(t *testing.T) {
	t.Run("Pending", func(t *testing.T) {
		wr := &models.WithdrawalRequest{Status: models.WithdrawalStatusPending}
		assert.True(t, wr.CanApprove())
		assert.True(t, wr.CanReject())
		assert.False(t, wr.CanMarkPaid())
		assert.False(t, wr.IsResolved())
	})

	t.Run("Approved", func(t *testing.T) {
		wr := &models.WithdrawalRequest{Status: models.WithdrawalStatusApproved}
		assert.False(t, wr.CanApprove())
		assert.False(t, wr.CanReject())
		assert.True(t, wr.CanMarkPaid())
		assert.False(t, wr.IsResolved())
	})

	t.Run("Rejected", func(t *testing.T) {
		wr := &models.WithdrawalRequest{Status: models.WithdrawalStatusRejected}
		assert.False(t, wr.CanApprove())
		assert.False(t, wr.CanReject())
		assert.False(t, wr.CanMarkPaid())
		assert.True(t, wr.IsResolved())
	})

	t.Run("Paid", func(t *testing.T) {
		wr := &models.WithdrawalRequest{Status: models.WithdrawalStatusPaid}
		assert.False(t, wr.CanApprove())
		assert.False(t, wr.CanMarkPaid())
		assert.True(t, wr.IsResolved())
	})
}

func TestRoundHalfUp(t *testing.T) {
	assert.Equal(t, int64(2), utils.RoundHalfUp(1.5))
	assert.Equal(t, int64(1), utils.RoundHalfUp(1.49))
	assert.Equal(t, int64(0), utils.RoundHalfUp(0.4999))
	assert.Equal(t, int64(1), utils.RoundHalfUp(0.5))
	assert.Equal(t, int64(100), utils.RoundHalfUp(100.0))
}
