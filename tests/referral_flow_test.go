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

// newReferralFlow builds the flow without redis; the cache layer degrades to
// database reads when no client is configured.
func newReferralFlow(testDB *testingutil.TestDB) businessflow.ReferralFlow {
	return businessflow.NewReferralFlow(
		repository.NewAgentRepository(testDB.DB),
		repository.NewReferralRepository(testDB.DB),
		repository.NewAuditLogRepository(testDB.DB),
		nil,
		testDB.DB,
	)
}

func TestRecordReferral(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		flow := newReferralFlow(testDB)
		agentRepo := repository.NewAgentRepository(testDB.DB)
		referralRepo := repository.NewReferralRepository(testDB.DB)
		ctx := testingutil.CreateTestContext()
		metadata := businessflow.NewClientMetadata("127.0.0.1", "test")

		t.Run("LinksAgentToReferrer", func(t *testing.T) {
			_, err := fixtures.CreateTestAgent("RR-ROOT")
			require.NoError(t, err)
			_, err = fixtures.CreateTestAgent("RR-CHILD")
			require.NoError(t, err)

			resp, err := flow.RecordReferral(ctx, &dto.RecordReferralRequest{
				AgentCode:    "RR-CHILD",
				ReferrerCode: "RR-ROOT",
			}, metadata)
			require.NoError(t, err)
			assert.Equal(t, []string{"RR-ROOT"}, resp.UplineChain)
			assert.Equal(t, 1, resp.ReferralLevel)

			agent, err := agentRepo.ByAgentCode(ctx, "RR-CHILD")
			require.NoError(t, err)
			require.NotNil(t, agent.ReferrerCode)
			assert.Equal(t, "RR-ROOT", *agent.ReferrerCode)
			assert.Equal(t, 1, agent.MlmLevel)

			referral, err := referralRepo.ByAgentCode(ctx, "RR-CHILD")
			require.NoError(t, err)
			require.NotNil(t, referral)
			assert.Equal(t, []string{"RR-ROOT"}, []string(referral.UplineChain))
		})

		t.Run("ChainGrowsWithDepth", func(t *testing.T) {
			codes := []string{"RR-L0", "RR-L1", "RR-L2", "RR-L3"}
			for _, code := range codes {
				_, err := fixtures.CreateTestAgent(code)
				require.NoError(t, err)
			}
			for i := 1; i < len(codes); i++ {
				_, err := flow.RecordReferral(ctx, &dto.RecordReferralRequest{
					AgentCode:    codes[i],
					ReferrerCode: codes[i-1],
				}, metadata)
				require.NoError(t, err)
			}

			referral, err := referralRepo.ByAgentCode(ctx, "RR-L3")
			require.NoError(t, err)
			assert.Equal(t, []string{"RR-L2", "RR-L1", "RR-L0"}, []string(referral.UplineChain))
			assert.Equal(t, 3, referral.ReferralLevel)
		})

		t.Run("ChainCappedAtMaxDepth", func(t *testing.T) {
			codes := []string{"RR-D0", "RR-D1", "RR-D2", "RR-D3", "RR-D4", "RR-D5", "RR-D6"}
			for _, code := range codes {
				_, err := fixtures.CreateTestAgent(code)
				require.NoError(t, err)
			}
			for i := 1; i < len(codes); i++ {
				_, err := flow.RecordReferral(ctx, &dto.RecordReferralRequest{
					AgentCode:    codes[i],
					ReferrerCode: codes[i-1],
				}, metadata)
				require.NoError(t, err)
			}

			referral, err := referralRepo.ByAgentCode(ctx, "RR-D6")
			require.NoError(t, err)
			assert.Equal(t, []string{"RR-D5", "RR-D4", "RR-D3", "RR-D2", "RR-D1"}, []string(referral.UplineChain))
		})

		t.Run("SelfReferralRejected", func(t *testing.T) {
			_, err := fixtures.CreateTestAgent("RR-SELF")
			require.NoError(t, err)

			_, err = flow.RecordReferral(ctx, &dto.RecordReferralRequest{
				AgentCode:    "RR-SELF",
				ReferrerCode: "RR-SELF",
			}, metadata)
			require.Error(t, err)
		})

		t.Run("UnknownReferrerRejected", func(t *testing.T) {
			_, err := fixtures.CreateTestAgent("RR-ORPHAN")
			require.NoError(t, err)

			_, err = flow.RecordReferral(ctx, &dto.RecordReferralRequest{
				AgentCode:    "RR-ORPHAN",
				ReferrerCode: "RR-NOBODY",
			}, metadata)
			require.Error(t, err)
			assert.True(t, businessflow.IsReferrerNotFound(err))
		})

		t.Run("CycleRejected", func(t *testing.T) {
			_, err := fixtures.CreateReferralChain("RR-CY1", "RR-CY2")
			require.NoError(t, err)

			// RR-CY1 -> RR-CY2 already holds; linking RR-CY1 under RR-CY2
			// would close the loop.
			_, err = flow.RecordReferral(ctx, &dto.RecordReferralRequest{
				AgentCode:    "RR-CY1",
				ReferrerCode: "RR-CY2",
			}, metadata)
			require.Error(t, err)
			assert.True(t, businessflow.IsReferralCycle(err))
		})

		t.Run("RelinkRebuildsDescendantChains", func(t *testing.T) {
			// RE-A -> RE-B -> RE-C, plus a new root RE-X.
			_, err := fixtures.CreateReferralChain("RE-A", "RE-B", "RE-C")
			require.NoError(t, err)
			_, err = fixtures.CreateTestAgent("RE-X")
			require.NoError(t, err)

			// Move RE-B under RE-X; RE-C's chain must follow.
			_, err = flow.RecordReferral(ctx, &dto.RecordReferralRequest{
				AgentCode:    "RE-B",
				ReferrerCode: "RE-X",
			}, metadata)
			require.NoError(t, err)

			moved, err := referralRepo.ByAgentCode(ctx, "RE-B")
			require.NoError(t, err)
			assert.Equal(t, []string{"RE-X"}, []string(moved.UplineChain))

			descendant, err := referralRepo.ByAgentCode(ctx, "RE-C")
			require.NoError(t, err)
			assert.Equal(t, []string{"RE-B", "RE-X"}, []string(descendant.UplineChain))
		})

		return nil
	})
	require.NoError(t, err)
}

func TestGetUplineChain(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		flow := newReferralFlow(testDB)
		ctx := testingutil.CreateTestContext()

		_, err := fixtures.CreateReferralChain("UC-A", "UC-B", "UC-C", "UC-D")
		require.NoError(t, err)

		t.Run("FullChain", func(t *testing.T) {
			resp, err := flow.GetUplineChain(ctx, &dto.GetUplineChainRequest{AgentCode: "UC-D"})
			require.NoError(t, err)
			assert.Equal(t, []string{"UC-C", "UC-B", "UC-A"}, resp.UplineChain)
		})

		t.Run("TruncatedByMaxDepth", func(t *testing.T) {
			resp, err := flow.GetUplineChain(ctx, &dto.GetUplineChainRequest{AgentCode: "UC-D", MaxDepth: 2})
			require.NoError(t, err)
			assert.Equal(t, []string{"UC-C", "UC-B"}, resp.UplineChain)
		})

		t.Run("RootHasEmptyChain", func(t *testing.T) {
			resp, err := flow.GetUplineChain(ctx, &dto.GetUplineChainRequest{AgentCode: "UC-A"})
			require.NoError(t, err)
			assert.Empty(t, resp.UplineChain)
		})

		t.Run("UnknownAgent", func(t *testing.T) {
			_, err := flow.GetUplineChain(ctx, &dto.GetUplineChainRequest{AgentCode: "UC-NOBODY"})
			require.Error(t, err)
			assert.True(t, businessflow.IsAgentNotFound(err))
		})

		return nil
	})
	require.NoError(t, err)
}

func TestGetDownlineCounts(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		flow := newReferralFlow(testDB)
		ctx := testingutil.CreateTestContext()
		metadata := businessflow.NewClientMetadata("127.0.0.1", "test")

		// DC-ROOT has two direct children; one child has a child of its own.
		_, err := fixtures.CreateReferralChain("DC-ROOT", "DC-C1", "DC-G1")
		require.NoError(t, err)
		_, err = fixtures.CreateTestAgent("DC-C2")
		require.NoError(t, err)
		_, err = newReferralFlow(testDB).RecordReferral(ctx, &dto.RecordReferralRequest{
			AgentCode:    "DC-C2",
			ReferrerCode: "DC-ROOT",
		}, metadata)
		require.NoError(t, err)

		resp, err := flow.GetDownlineCounts(ctx, &dto.GetDownlineCountsRequest{AgentCode: "DC-ROOT"})
		require.NoError(t, err)
		require.Len(t, resp.Levels, 5)
		assert.Equal(t, int64(2), resp.Levels[0].Count)
		assert.Equal(t, int64(1), resp.Levels[1].Count)
		assert.Equal(t, int64(0), resp.Levels[2].Count)
		assert.Equal(t, int64(3), resp.Total)

		return nil
	})
	require.NoError(t, err)
}
