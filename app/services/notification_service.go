// Package services provides supporting services for the commission engine
package services

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/polisku/commission-engine/models"
	"github.com/redis/go-redis/v9"
)

// Withdrawal event channel and types published for downstream consumers
// (payout processors, agent-facing notifiers).
const (
	WithdrawalEventChannel = "commission-engine:withdrawal-events"

	WithdrawalEventRequested = "withdrawal.requested"
	WithdrawalEventApproved  = "withdrawal.approved"
	WithdrawalEventRejected  = "withdrawal.rejected"
	WithdrawalEventPaid      = "withdrawal.paid"
)

// WithdrawalEvent is the published payload for a withdrawal state change
type WithdrawalEvent struct {
	Type           string    `json:"type"`
	WithdrawalUUID string    `json:"withdrawal_uuid"`
	AgentCode      string    `json:"agent_code"`
	Amount         int64     `json:"amount"` // minor units
	Status         string    `json:"status"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// WithdrawalNotifier publishes withdrawal lifecycle events
type WithdrawalNotifier interface {
	NotifyWithdrawal(ctx context.Context, eventType string, withdrawal *models.WithdrawalRequest) error
}

type redisWithdrawalNotifier struct {
	client *redis.Client
}

// NewRedisWithdrawalNotifier creates a notifier backed by Redis pub/sub
func NewRedisWithdrawalNotifier(client *redis.Client) WithdrawalNotifier {
	return &redisWithdrawalNotifier{client: client}
}

// NotifyWithdrawal publishes the event; publish failures are logged and
// returned but callers treat notification as best effort.
func (n *redisWithdrawalNotifier) NotifyWithdrawal(ctx context.Context, eventType string, withdrawal *models.WithdrawalRequest) error {
	event := WithdrawalEvent{
		Type:           eventType,
		WithdrawalUUID: withdrawal.UUID.String(),
		AgentCode:      withdrawal.AgentCode,
		Amount:         withdrawal.Amount,
		Status:         string(withdrawal.Status),
		OccurredAt:     time.Now().UTC(),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if err := n.client.Publish(ctx, WithdrawalEventChannel, payload).Err(); err != nil {
		log.Printf("Failed to publish %s for withdrawal %s: %v", eventType, event.WithdrawalUUID, err)
		return err
	}
	return nil
}

// NoopWithdrawalNotifier discards events; used when Redis is not configured
// and in tests.
type NoopWithdrawalNotifier struct{}

func (NoopWithdrawalNotifier) NotifyWithdrawal(ctx context.Context, eventType string, withdrawal *models.WithdrawalRequest) error {
	return nil
}
