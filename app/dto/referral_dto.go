package dto

import "time"

// RecordReferralRequest represents the AgentLinked event delivered by the
// registration collaborator when an agent's referrer is established.
type RecordReferralRequest struct {
	AgentCode    string `json:"agent_code" validate:"required,agent_code"`
	ReferrerCode string `json:"referrer_code" validate:"required,agent_code"`
}

// RecordReferralResponse represents the outcome of recording a referral
type RecordReferralResponse struct {
	Message       string   `json:"message"`
	AgentCode     string   `json:"agent_code"`
	ReferrerCode  string   `json:"referrer_code"`
	UplineChain   []string `json:"upline_chain"`
	ReferralLevel int      `json:"referral_level"`
}

// GetUplineChainRequest represents a query for an agent's ancestor chain
type GetUplineChainRequest struct {
	AgentCode string `json:"agent_code" validate:"required,agent_code"`
	MaxDepth  int    `json:"max_depth" validate:"omitempty,min=1,max=5"`
}

// GetUplineChainResponse lists an agent's ancestors, index 0 = direct referrer
type GetUplineChainResponse struct {
	AgentCode   string   `json:"agent_code"`
	UplineChain []string `json:"upline_chain"`
}

// GetDownlineCountsRequest represents a query for per-tier downline sizes
type GetDownlineCountsRequest struct {
	AgentCode string `json:"agent_code" validate:"required,agent_code"`
	MaxLevel  int    `json:"max_level" validate:"omitempty,min=1,max=5"`
}

// DownlineLevelCount is the number of descendants at one tier
type DownlineLevelCount struct {
	Level int   `json:"level"`
	Count int64 `json:"count"`
}

// GetDownlineCountsResponse lists downline sizes per tier
type GetDownlineCountsResponse struct {
	AgentCode string               `json:"agent_code"`
	Levels    []DownlineLevelCount `json:"levels"`
	Total     int64                `json:"total"`
}

// ReferralDTO is the API projection of a referral record
type ReferralDTO struct {
	UUID          string    `json:"uuid"`
	AgentCode     string    `json:"agent_code"`
	ReferrerCode  string    `json:"referrer_code"`
	UplineChain   []string  `json:"upline_chain"`
	ReferralLevel int       `json:"referral_level"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
}
