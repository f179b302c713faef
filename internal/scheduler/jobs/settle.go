package jobs

import (
	"context"
	"time"

	"github.com/wonny/pricebattle/internal/contracts"
	"github.com/wonny/pricebattle/internal/settlement"
	"github.com/wonny/pricebattle/pkg/logger"
)

// Settler settlement-only entry point
type Settler interface {
	Settle(ctx context.Context, asOf contracts.Date) (settlement.Summary, error)
}

// SettlementJob retries deferred settlements between daily runs
type SettlementJob struct {
	settler  Settler
	schedule string
	loc      *time.Location
	logger   *logger.Logger
}

// NewSettlementJob creates a settlement catch-up job
func NewSettlementJob(settler Settler, schedule string, loc *time.Location, log *logger.Logger) *SettlementJob {
	if loc == nil {
		loc = time.UTC
	}
	return &SettlementJob{settler: settler, schedule: schedule, loc: loc, logger: log}
}

// Name returns the job name
func (j *SettlementJob) Name() string {
	return "settlement_catchup"
}

// Schedule returns the cron schedule
func (j *SettlementJob) Schedule() string {
	return j.schedule
}

// Run settles whatever became eligible since the last pass
func (j *SettlementJob) Run(ctx context.Context) error {
	sum, err := j.settler.Settle(ctx, contracts.Today(j.loc))
	if err != nil {
		return err
	}
	if sum.Settled > 0 || sum.Deferred > 0 {
		j.logger.WithFields(map[string]interface{}{
			"settled":  sum.Settled,
			"deferred": sum.Deferred,
		}).Info("Settlement catch-up finished")
	}
	return nil
}
