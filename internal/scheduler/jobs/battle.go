package jobs

import (
	"context"
	"time"

	"github.com/wonny/pricebattle/internal/contracts"
	"github.com/wonny/pricebattle/internal/pipeline"
	"github.com/wonny/pricebattle/pkg/logger"
)

// BattleRunner the daily run entry point
type BattleRunner interface {
	Run(ctx context.Context, today contracts.Date) (*pipeline.RunResult, error)
}

// BattleJob settles matured forecasts and collects today's
type BattleJob struct {
	runner   BattleRunner
	schedule string
	loc      *time.Location
	logger   *logger.Logger
}

// NewBattleJob creates the daily battle job. Today is evaluated in loc.
func NewBattleJob(runner BattleRunner, schedule string, loc *time.Location, log *logger.Logger) *BattleJob {
	if loc == nil {
		loc = time.UTC
	}
	return &BattleJob{
		runner:   runner,
		schedule: schedule,
		loc:      loc,
		logger:   log,
	}
}

// Name returns the job name
func (j *BattleJob) Name() string {
	return "battle_daily"
}

// Schedule returns the cron schedule
func (j *BattleJob) Schedule() string {
	return j.schedule
}

// Run executes one battle run for today
func (j *BattleJob) Run(ctx context.Context) error {
	today := contracts.Today(j.loc)

	res, err := j.runner.Run(ctx, today)
	if err != nil {
		return err
	}

	j.logger.WithFields(map[string]interface{}{
		"issue_date": today.String(),
		"settled":    res.Settlement.Settled,
		"appended":   res.Appended,
		"pending":    res.Pending,
	}).Info("Scheduled battle run finished")
	return nil
}
