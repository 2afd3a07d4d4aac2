package businessflow

import (
	"context"
	"crypto/subtle"
	"fmt"
	"time"

	"github.com/polisku/commission-engine/app/dto"
	"github.com/polisku/commission-engine/app/services"
	"github.com/polisku/commission-engine/models"
	"github.com/polisku/commission-engine/repository"
	"golang.org/x/crypto/bcrypt"
)

// operatorAdminID identifies the single configured operator account in
// admin token claims.
const operatorAdminID uint = 1

// AuthFlow handles operator login and token issuance for agents
type AuthFlow interface {
	AdminLogin(ctx context.Context, req *dto.AdminLoginRequest, metadata *ClientMetadata) (*dto.AdminLoginResponse, error)
	IssueAgentTokens(ctx context.Context, req *dto.IssueAgentTokensRequest, metadata *ClientMetadata) (*dto.IssueAgentTokensResponse, error)
	RefreshAgentToken(ctx context.Context, req *dto.RefreshTokenRequest) (*dto.RefreshTokenResponse, error)
	Logout(ctx context.Context, accessToken string) error
}

type authFlow struct {
	agentRepo         repository.AgentRepository
	auditRepo         repository.AuditLogRepository
	tokenService      services.TokenService
	adminUsername     string
	adminPasswordHash string
	accessTokenTTL    time.Duration
}

// NewAuthFlow creates a new authentication flow. adminPasswordHash is a
// bcrypt hash of the operator password.
func NewAuthFlow(
	agentRepo repository.AgentRepository,
	auditRepo repository.AuditLogRepository,
	tokenService services.TokenService,
	adminUsername, adminPasswordHash string,
	accessTokenTTL time.Duration,
) AuthFlow {
	return &authFlow{
		agentRepo:         agentRepo,
		auditRepo:         auditRepo,
		tokenService:      tokenService,
		adminUsername:     adminUsername,
		adminPasswordHash: adminPasswordHash,
		accessTokenTTL:    accessTokenTTL,
	}
}

// AdminLogin verifies the operator credentials against the configured
// bcrypt hash and issues an admin token pair.
func (f *authFlow) AdminLogin(ctx context.Context, req *dto.AdminLoginRequest, metadata *ClientMetadata) (*dto.AdminLoginResponse, error) {
	// Always run the bcrypt comparison so a wrong username costs the same
	// as a wrong password.
	usernameOK := subtle.ConstantTimeCompare([]byte(req.Username), []byte(f.adminUsername)) == 1
	passwordErr := bcrypt.CompareHashAndPassword([]byte(f.adminPasswordHash), []byte(req.Password))
	if !usernameOK || passwordErr != nil {
		errMsg := "invalid username or password"
		_ = createAuditLog(ctx, f.auditRepo, nil, models.AuditActionAdminLoginFailed, "operator login rejected", false, &errMsg, metadata)
		return nil, NewBusinessError("INVALID_CREDENTIALS", "Invalid username or password", ErrInvalidCredentials)
	}

	accessToken, refreshToken, err := f.tokenService.GenerateAdminTokens(operatorAdminID)
	if err != nil {
		return nil, NewBusinessError("TOKEN_GENERATION_FAILED", "Failed to generate tokens", err)
	}

	_ = createAuditLog(ctx, f.auditRepo, nil, models.AuditActionAdminLogin, "operator logged in", true, nil, metadata)

	return &dto.AdminLoginResponse{
		Message: "Login successful",
		Tokens:  f.tokenPair(accessToken, refreshToken),
	}, nil
}

// IssueAgentTokens grants API access to an active agent. Only the operator
// can issue agent tokens; there is no self-service agent login.
func (f *authFlow) IssueAgentTokens(ctx context.Context, req *dto.IssueAgentTokensRequest, metadata *ClientMetadata) (*dto.IssueAgentTokensResponse, error) {
	agent, err := getAgent(ctx, f.agentRepo, req.AgentCode)
	if err != nil {
		if IsAgentNotFound(err) {
			return nil, NewBusinessError("AGENT_NOT_FOUND", "Agent not found", err)
		}
		if IsAgentInactive(err) {
			return nil, NewBusinessError("AGENT_INACTIVE", "Agent is inactive", err)
		}
		return nil, NewBusinessError("TOKEN_ISSUE_FAILED", "Failed to load agent", err)
	}

	accessToken, refreshToken, err := f.tokenService.GenerateAgentTokens(agent.AgentCode)
	if err != nil {
		return nil, NewBusinessError("TOKEN_GENERATION_FAILED", "Failed to generate tokens", err)
	}

	description := fmt.Sprintf("tokens issued for agent %s", agent.AgentCode)
	_ = createAuditLog(ctx, f.auditRepo, &agent.AgentCode, models.AuditActionAgentTokenIssued, description, true, nil, metadata)

	return &dto.IssueAgentTokensResponse{
		Message:   "Tokens issued",
		AgentCode: agent.AgentCode,
		Tokens:    f.tokenPair(accessToken, refreshToken),
	}, nil
}

// RefreshAgentToken rotates a refresh token into a new pair. The used
// refresh token is revoked by the token service.
func (f *authFlow) RefreshAgentToken(ctx context.Context, req *dto.RefreshTokenRequest) (*dto.RefreshTokenResponse, error) {
	accessToken, refreshToken, err := f.tokenService.RefreshAgentToken(ctx, req.RefreshToken)
	if err != nil {
		return nil, NewBusinessError("INVALID_CREDENTIALS", "Invalid or expired refresh token", ErrInvalidCredentials)
	}

	return &dto.RefreshTokenResponse{
		Message: "Tokens refreshed",
		Tokens:  f.tokenPair(accessToken, refreshToken),
	}, nil
}

// Logout revokes the presented access token.
func (f *authFlow) Logout(ctx context.Context, accessToken string) error {
	if err := f.tokenService.RevokeToken(ctx, accessToken); err != nil {
		return NewBusinessError("LOGOUT_FAILED", "Failed to revoke token", err)
	}
	return nil
}

func (f *authFlow) tokenPair(accessToken, refreshToken string) dto.TokenPairDTO {
	return dto.TokenPairDTO{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int64(f.accessTokenTTL.Seconds()),
	}
}
