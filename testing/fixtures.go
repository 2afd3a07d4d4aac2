// Package testing provides test utilities and database setup for testing the commission engine
package testing

import (
	"fmt"
	"math/rand"

	"github.com/lib/pq"
	"github.com/polisku/commission-engine/models"
	"github.com/polisku/commission-engine/utils"
)

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	DB *TestDB
}

// NewTestFixtures creates a new test fixtures instance
func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{DB: db}
}

// RandomAgentCode generates a unique uppercase agent code
func (tf *TestFixtures) RandomAgentCode(prefix string) string {
	return fmt.Sprintf("%s-%06d", prefix, rand.Intn(900000)+100000)
}

// CreateTestAgent creates an active agent with no referrer
func (tf *TestFixtures) CreateTestAgent(agentCode string) (*models.Agent, error) {
	agent := &models.Agent{
		AgentCode: agentCode,
		FullName:  fmt.Sprintf("Agent %s", agentCode),
		IsActive:  utils.ToPtr(true),
	}
	if err := tf.DB.DB.Create(agent).Error; err != nil {
		return nil, fmt.Errorf("failed to create test agent %s: %w", agentCode, err)
	}
	return agent, nil
}

// CreateInactiveAgent creates an agent flagged inactive
func (tf *TestFixtures) CreateInactiveAgent(agentCode string) (*models.Agent, error) {
	agent := &models.Agent{
		AgentCode: agentCode,
		FullName:  fmt.Sprintf("Agent %s", agentCode),
		IsActive:  utils.ToPtr(false),
	}
	if err := tf.DB.DB.Create(agent).Error; err != nil {
		return nil, fmt.Errorf("failed to create inactive agent %s: %w", agentCode, err)
	}
	return agent, nil
}

// CreateReferralChain creates a linked chain of agents, root first. Each
// agent after the first refers to the one before it, with referral rows and
// materialized upline chains in place, exactly as RecordReferral would leave
// them.
func (tf *TestFixtures) CreateReferralChain(codes ...string) ([]*models.Agent, error) {
	agents := make([]*models.Agent, 0, len(codes))
	for i, code := range codes {
		agent := &models.Agent{
			AgentCode: code,
			FullName:  fmt.Sprintf("Agent %s", code),
			MlmLevel:  i,
			IsActive:  utils.ToPtr(true),
		}
		if i > 0 {
			agent.ReferrerCode = utils.ToPtr(codes[i-1])
		}
		if err := tf.DB.DB.Create(agent).Error; err != nil {
			return nil, fmt.Errorf("failed to create chain agent %s: %w", code, err)
		}
		agents = append(agents, agent)

		if i == 0 {
			continue
		}

		// Upline chain: direct referrer first, truncated to the depth cap.
		chain := make([]string, 0, models.MaxUplineDepth)
		for j := i - 1; j >= 0 && len(chain) < models.MaxUplineDepth; j-- {
			chain = append(chain, codes[j])
		}
		referral := &models.Referral{
			AgentCode:     code,
			ReferrerCode:  codes[i-1],
			UplineChain:   pq.StringArray(chain),
			ReferralLevel: i,
			Status:        models.ReferralStatusActive,
		}
		if err := tf.DB.DB.Create(referral).Error; err != nil {
			return nil, fmt.Errorf("failed to create referral for %s: %w", code, err)
		}
	}
	return agents, nil
}

// CreatePercentageRate creates an active percentage rule for (plan, tier)
func (tf *TestFixtures) CreatePercentageRate(planID uint, tierLevel int, percent float64) (*models.CommissionRate, error) {
	rate := &models.CommissionRate{
		PlanID:      planID,
		TierLevel:   tierLevel,
		RatePercent: utils.ToPtr(percent),
		IsActive:    utils.ToPtr(true),
	}
	if err := tf.DB.DB.Create(rate).Error; err != nil {
		return nil, fmt.Errorf("failed to create rate plan=%d tier=%d: %w", planID, tierLevel, err)
	}
	return rate, nil
}

// CreateFixedRate creates an active fixed-amount rule for (plan, tier)
func (tf *TestFixtures) CreateFixedRate(planID uint, tierLevel int, amount int64) (*models.CommissionRate, error) {
	rate := &models.CommissionRate{
		PlanID:      planID,
		TierLevel:   tierLevel,
		FixedAmount: utils.ToPtr(amount),
		IsActive:    utils.ToPtr(true),
	}
	if err := tf.DB.DB.Create(rate).Error; err != nil {
		return nil, fmt.Errorf("failed to create fixed rate plan=%d tier=%d: %w", planID, tierLevel, err)
	}
	return rate, nil
}

// CreateStandardRates creates percentage rules for all five tiers of a plan
func (tf *TestFixtures) CreateStandardRates(planID uint, percents [5]float64) error {
	for i, percent := range percents {
		if _, err := tf.CreatePercentageRate(planID, i+1, percent); err != nil {
			return err
		}
	}
	return nil
}

// FundWallet credits an agent's wallet directly with a ledger entry and a
// matching cached balance, bypassing the disbursement flow.
func (tf *TestFixtures) FundWallet(agent *models.Agent, amount int64) error {
	entry := &models.WalletTransaction{
		AgentCode:     agent.AgentCode,
		Type:          models.WalletTransactionTypeCredit,
		Amount:        amount,
		BalanceBefore: agent.WalletBalance,
		BalanceAfter:  agent.WalletBalance + amount,
		Reference:     "fixture",
		Description:   "test funding",
	}
	if err := tf.DB.DB.Create(entry).Error; err != nil {
		return fmt.Errorf("failed to create funding entry for %s: %w", agent.AgentCode, err)
	}

	agent.WalletBalance += amount
	if err := tf.DB.DB.Model(&models.Agent{}).Where("id = ?", agent.ID).
		Update("wallet_balance", agent.WalletBalance).Error; err != nil {
		return fmt.Errorf("failed to update cached balance for %s: %w", agent.AgentCode, err)
	}
	return nil
}
