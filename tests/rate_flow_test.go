package tests

import (
	"testing"

	"github.com/polisku/commission-engine/app/dto"
	businessflow "github.com/polisku/commission-engine/business_flow"
	"github.com/polisku/commission-engine/repository"
	testingutil "github.com/polisku/commission-engine/testing"
	"github.com/polisku/commission-engine/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRateFlow(testDB *testingutil.TestDB) businessflow.RateFlow {
	return businessflow.NewRateFlow(
		repository.NewCommissionRateRepository(testDB.DB),
		repository.NewAuditLogRepository(testDB.DB),
		testDB.DB,
	)
}

func TestUpsertCommissionRate(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		flow := newRateFlow(testDB)
		ctx := testingutil.CreateTestContext()
		metadata := businessflow.NewClientMetadata("127.0.0.1", "test")

		t.Run("CreatesPercentageRule", func(t *testing.T) {
			resp, err := flow.UpsertCommissionRate(ctx, &dto.UpsertCommissionRateRequest{
				PlanID:      1,
				TierLevel:   1,
				RatePercent: utils.ToPtr(10.0),
			}, metadata)
			require.NoError(t, err)
			require.NotNil(t, resp.Rate.RatePercent)
			assert.Equal(t, 10.0, *resp.Rate.RatePercent)
			assert.Nil(t, resp.Rate.FixedAmount)
			assert.True(t, resp.Rate.IsActive)
		})

		t.Run("UpdatesExistingRule", func(t *testing.T) {
			resp, err := flow.UpsertCommissionRate(ctx, &dto.UpsertCommissionRateRequest{
				PlanID:      1,
				TierLevel:   1,
				RatePercent: utils.ToPtr(12.5),
			}, metadata)
			require.NoError(t, err)
			assert.Equal(t, 12.5, *resp.Rate.RatePercent)

			list, err := flow.ListCommissionRates(ctx, &dto.ListCommissionRatesRequest{PlanID: 1})
			require.NoError(t, err)
			require.Len(t, list.Rates, 1)
		})

		t.Run("SwitchesPercentageToFixed", func(t *testing.T) {
			resp, err := flow.UpsertCommissionRate(ctx, &dto.UpsertCommissionRateRequest{
				PlanID:      1,
				TierLevel:   2,
				RatePercent: utils.ToPtr(5.0),
			}, metadata)
			require.NoError(t, err)
			require.NotNil(t, resp.Rate.RatePercent)

			resp, err = flow.UpsertCommissionRate(ctx, &dto.UpsertCommissionRateRequest{
				PlanID:      1,
				TierLevel:   2,
				FixedAmount: utils.ToPtr(int64(2500)),
			}, metadata)
			require.NoError(t, err)
			assert.Nil(t, resp.Rate.RatePercent)
			require.NotNil(t, resp.Rate.FixedAmount)
			assert.Equal(t, int64(2500), *resp.Rate.FixedAmount)
		})

		t.Run("RejectsAmbiguousRule", func(t *testing.T) {
			_, err := flow.UpsertCommissionRate(ctx, &dto.UpsertCommissionRateRequest{
				PlanID:      1,
				TierLevel:   3,
				RatePercent: utils.ToPtr(5.0),
				FixedAmount: utils.ToPtr(int64(2500)),
			}, metadata)
			require.Error(t, err)
		})

		t.Run("RejectsEmptyRule", func(t *testing.T) {
			_, err := flow.UpsertCommissionRate(ctx, &dto.UpsertCommissionRateRequest{
				PlanID:    1,
				TierLevel: 3,
			}, metadata)
			require.Error(t, err)
		})

		t.Run("DeactivatedRuleSkipsTier", func(t *testing.T) {
			resp, err := flow.UpsertCommissionRate(ctx, &dto.UpsertCommissionRateRequest{
				PlanID:      2,
				TierLevel:   1,
				RatePercent: utils.ToPtr(10.0),
				IsActive:    utils.ToPtr(false),
			}, metadata)
			require.NoError(t, err)
			assert.False(t, resp.Rate.IsActive)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestListCommissionRates(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		flow := newRateFlow(testDB)
		ctx := testingutil.CreateTestContext()

		require.NoError(t, fixtures.CreateStandardRates(7, [5]float64{10, 5, 3, 2, 1}))

		resp, err := flow.ListCommissionRates(ctx, &dto.ListCommissionRatesRequest{PlanID: 7})
		require.NoError(t, err)
		require.Len(t, resp.Rates, 5)
		for i, rate := range resp.Rates {
			assert.Equal(t, i+1, rate.TierLevel)
		}

		empty, err := flow.ListCommissionRates(ctx, &dto.ListCommissionRatesRequest{PlanID: 99})
		require.NoError(t, err)
		assert.Empty(t, empty.Rates)

		return nil
	})
	require.NoError(t, err)
}
