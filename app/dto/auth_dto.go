package dto

// AdminLoginRequest authenticates the platform operator
type AdminLoginRequest struct {
	Username string `json:"username" validate:"required,max=100"`
	Password string `json:"password" validate:"required,max=128"`
}

// TokenPairDTO carries an issued access/refresh token pair
type TokenPairDTO struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"` // access token lifetime in seconds
}

// AdminLoginResponse confirms an operator login
type AdminLoginResponse struct {
	Message string       `json:"message"`
	Tokens  TokenPairDTO `json:"tokens"`
}

// IssueAgentTokensRequest is an admin action granting API access to an agent
type IssueAgentTokensRequest struct {
	AgentCode string `json:"agent_code" validate:"required,agent_code"`
}

// IssueAgentTokensResponse carries the tokens issued for an agent
type IssueAgentTokensResponse struct {
	Message   string       `json:"message"`
	AgentCode string       `json:"agent_code"`
	Tokens    TokenPairDTO `json:"tokens"`
}

// RefreshTokenRequest exchanges a refresh token for a new pair
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// RefreshTokenResponse carries the rotated token pair
type RefreshTokenResponse struct {
	Message string       `json:"message"`
	Tokens  TokenPairDTO `json:"tokens"`
}
