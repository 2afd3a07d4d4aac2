package tests

import (
	"testing"
	"time"

	"github.com/polisku/commission-engine/app/dto"
	"github.com/polisku/commission-engine/app/services"
	businessflow "github.com/polisku/commission-engine/business_flow"
	"github.com/polisku/commission-engine/repository"
	testingutil "github.com/polisku/commission-engine/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testAdminPassword = "operator-secret-1"

func newAuthFlow(t *testing.T, testDB *testingutil.TestDB) (businessflow.AuthFlow, services.TokenService) {
	t.Helper()

	tokenService, err := services.NewTokenService(
		15*time.Minute,
		24*time.Hour,
		"commission-engine",
		"commission-engine-api",
		false,
		"", "",
		"test-secret-key-at-least-32-characters",
		nil,
	)
	require.NoError(t, err)

	hash, err := bcrypt.GenerateFromPassword([]byte(testAdminPassword), bcrypt.MinCost)
	require.NoError(t, err)

	flow := businessflow.NewAuthFlow(
		repository.NewAgentRepository(testDB.DB),
		repository.NewAuditLogRepository(testDB.DB),
		tokenService,
		"admin",
		string(hash),
		15*time.Minute,
	)
	return flow, tokenService
}

func TestAdminLogin(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		flow, tokenService := newAuthFlow(t, testDB)
		ctx := testingutil.CreateTestContext()
		metadata := businessflow.NewClientMetadata("127.0.0.1", "test")

		t.Run("ValidCredentials", func(t *testing.T) {
			resp, err := flow.AdminLogin(ctx, &dto.AdminLoginRequest{
				Username: "admin",
				Password: testAdminPassword,
			}, metadata)
			require.NoError(t, err)
			assert.NotEmpty(t, resp.Tokens.AccessToken)
			assert.NotEmpty(t, resp.Tokens.RefreshToken)
			assert.Equal(t, "Bearer", resp.Tokens.TokenType)
			assert.Equal(t, int64((15 * time.Minute).Seconds()), resp.Tokens.ExpiresIn)

			claims, err := tokenService.ValidateAdminToken(ctx, resp.Tokens.AccessToken)
			require.NoError(t, err)
			assert.Equal(t, uint(1), claims.AdminID)
		})

		t.Run("WrongPassword", func(t *testing.T) {
			_, err := flow.AdminLogin(ctx, &dto.AdminLoginRequest{
				Username: "admin",
				Password: "wrong",
			}, metadata)
			require.Error(t, err)
			assert.True(t, businessflow.IsInvalidCredentials(err))
		})

		t.Run("WrongUsername", func(t *testing.T) {
			_, err := flow.AdminLogin(ctx, &dto.AdminLoginRequest{
				Username: "root",
				Password: testAdminPassword,
			}, metadata)
			require.Error(t, err)
			assert.True(t, businessflow.IsInvalidCredentials(err))
		})

		return nil
	})
	require.NoError(t, err)
}

func TestIssueAgentTokens(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		flow, tokenService := newAuthFlow(t, testDB)
		ctx := testingutil.CreateTestContext()
		metadata := businessflow.NewClientMetadata("127.0.0.1", "test")

		t.Run("ActiveAgent", func(t *testing.T) {
			_, err := fixtures.CreateTestAgent("AU-1")
			require.NoError(t, err)

			resp, err := flow.IssueAgentTokens(ctx, &dto.IssueAgentTokensRequest{AgentCode: "AU-1"}, metadata)
			require.NoError(t, err)
			assert.Equal(t, "AU-1", resp.AgentCode)

			claims, err := tokenService.ValidateAgentToken(ctx, resp.Tokens.AccessToken)
			require.NoError(t, err)
			assert.Equal(t, "AU-1", claims.AgentCode)
			assert.Equal(t, "access", claims.TokenType)
		})

		t.Run("InactiveAgent", func(t *testing.T) {
			_, err := fixtures.CreateInactiveAgent("AU-2")
			require.NoError(t, err)

			_, err = flow.IssueAgentTokens(ctx, &dto.IssueAgentTokensRequest{AgentCode: "AU-2"}, metadata)
			require.Error(t, err)
			assert.True(t, businessflow.IsAgentInactive(err))
		})

		t.Run("UnknownAgent", func(t *testing.T) {
			_, err := flow.IssueAgentTokens(ctx, &dto.IssueAgentTokensRequest{AgentCode: "AU-NOBODY"}, metadata)
			require.Error(t, err)
			assert.True(t, businessflow.IsAgentNotFound(err))
		})

		return nil
	})
	require.NoError(t, err)
}

func TestRefreshAgentToken(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		flow, tokenService := newAuthFlow(t, testDB)
		ctx := testingutil.CreateTestContext()
		metadata := businessflow.NewClientMetadata("127.0.0.1", "test")

		_, err := fixtures.CreateTestAgent("AU-3")
		require.NoError(t, err)

		issued, err := flow.IssueAgentTokens(ctx, &dto.IssueAgentTokensRequest{AgentCode: "AU-3"}, metadata)
		require.NoError(t, err)

		t.Run("RotatesTokenPair", func(t *testing.T) {
			refreshed, err := flow.RefreshAgentToken(ctx, &dto.RefreshTokenRequest{
				RefreshToken: issued.Tokens.RefreshToken,
			})
			require.NoError(t, err)
			assert.NotEmpty(t, refreshed.Tokens.AccessToken)
			assert.NotEqual(t, issued.Tokens.AccessToken, refreshed.Tokens.AccessToken)

			claims, err := tokenService.ValidateAgentToken(ctx, refreshed.Tokens.AccessToken)
			require.NoError(t, err)
			assert.Equal(t, "AU-3", claims.AgentCode)
		})

		t.Run("AccessTokenNotAcceptedAsRefresh", func(t *testing.T) {
			_, err := flow.RefreshAgentToken(ctx, &dto.RefreshTokenRequest{
				RefreshToken: issued.Tokens.AccessToken,
			})
			require.Error(t, err)
			assert.True(t, businessflow.IsInvalidCredentials(err))
		})

		t.Run("GarbageToken", func(t *testing.T) {
			_, err := flow.RefreshAgentToken(ctx, &dto.RefreshTokenRequest{RefreshToken: "not-a-jwt"})
			require.Error(t, err)
			assert.True(t, businessflow.IsInvalidCredentials(err))
		})

		return nil
	})
	require.NoError(t, err)
}
