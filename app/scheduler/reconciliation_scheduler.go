// Package scheduler runs periodic background jobs
package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/polisku/commission-engine/models"
	"github.com/polisku/commission-engine/repository"
	"github.com/polisku/commission-engine/utils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	reconciliationRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wallet_reconciliation_runs_total",
		Help: "Total number of wallet reconciliation sweeps",
	})

	reconciliationDriftTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wallet_reconciliation_drift_total",
		Help: "Total number of agents whose cached balance disagreed with the ledger",
	})

	reconciliationDriftGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "wallet_reconciliation_drifted_agents",
		Help: "Number of drifted agents found in the last sweep",
	})
)

const reconciliationBatchSize = 200

// ReconciliationScheduler periodically compares every agent's cached wallet
// balance against the sum of their ledger entries. Drift means a bug or
// manual interference; it is reported, never silently corrected.
type ReconciliationScheduler struct {
	agentRepo    repository.AgentRepository
	walletTxRepo repository.WalletTransactionRepository
	auditRepo    repository.AuditLogRepository
	logger       *log.Logger
	interval     time.Duration
}

func NewReconciliationScheduler(
	agentRepo repository.AgentRepository,
	walletTxRepo repository.WalletTransactionRepository,
	auditRepo repository.AuditLogRepository,
	logger *log.Logger,
	interval time.Duration,
) *ReconciliationScheduler {
	if interval <= 0 {
		interval = time.Hour
	}
	if logger == nil {
		logger = log.Default()
	}

	return &ReconciliationScheduler{
		agentRepo:    agentRepo,
		walletTxRepo: walletTxRepo,
		auditRepo:    auditRepo,
		logger:       logger,
		interval:     interval,
	}
}

// Start launches the sweep loop and returns a cancel function.
func (s *ReconciliationScheduler) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)

	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.runOnce(ctx)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.runOnce(ctx)
			}
		}
	}()

	return cancel
}

func (s *ReconciliationScheduler) runOnce(ctx context.Context) {
	reconciliationRunsTotal.Inc()

	drifted := 0
	offset := 0
	for {
		agents, err := s.agentRepo.ByFilter(ctx, models.AgentFilter{}, "id ASC", reconciliationBatchSize, offset)
		if err != nil {
			s.logger.Printf("reconciliation: failed to list agents: %v", err)
			return
		}
		if len(agents) == 0 {
			break
		}

		for _, agent := range agents {
			select {
			case <-ctx.Done():
				return
			default:
			}

			derived, err := s.walletTxRepo.SumDeltaByAgent(ctx, agent.AgentCode)
			if err != nil {
				s.logger.Printf("reconciliation: ledger sum failed for %s: %v", agent.AgentCode, err)
				continue
			}
			if derived == agent.WalletBalance {
				continue
			}

			drifted++
			reconciliationDriftTotal.Inc()
			s.logger.Printf("reconciliation: drift for %s: cached=%d ledger=%d", agent.AgentCode, agent.WalletBalance, derived)
			s.recordDrift(ctx, agent, derived)
		}

		if len(agents) < reconciliationBatchSize {
			break
		}
		offset += reconciliationBatchSize
	}

	reconciliationDriftGauge.Set(float64(drifted))
	if drifted > 0 {
		s.logger.Printf("reconciliation: sweep finished, %d drifted agents", drifted)
	}
}

func (s *ReconciliationScheduler) recordDrift(ctx context.Context, agent *models.Agent, derived int64) {
	payload, _ := json.Marshal(map[string]int64{
		"cached_balance": agent.WalletBalance,
		"ledger_balance": derived,
	})
	description := fmt.Sprintf("cached balance %d disagrees with ledger %d", agent.WalletBalance, derived)
	entry := &models.AuditLog{
		AgentCode:   &agent.AgentCode,
		Action:      models.AuditActionBalanceDriftDetected,
		Description: &description,
		Metadata:    payload,
		Success:     utils.ToPtr(false),
		CreatedAt:   utils.UTCNow(),
	}
	if err := s.auditRepo.Save(ctx, entry); err != nil {
		s.logger.Printf("reconciliation: failed to write audit entry for %s: %v", agent.AgentCode, err)
	}
}
