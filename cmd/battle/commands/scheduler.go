package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/pricebattle/internal/scheduler"
	"github.com/wonny/pricebattle/internal/scheduler/jobs"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "스케줄러 관리",
	Long: `스케줄러를 시작하거나 작업을 관리합니다.

Subcommands:
  start   - 스케줄러 시작
  list    - 등록된 작업 목록
  run     - 특정 작업 즉시 실행

Example:
  go run ./cmd/battle scheduler start
  go run ./cmd/battle scheduler run battle_daily`,
}

var (
	schedulerStartCmd = &cobra.Command{
		Use:   "start",
		Short: "스케줄러 시작",
		Long: `스케줄러를 시작하고 등록된 모든 작업을 스케줄합니다.

등록되는 작업:
- battle_daily: SCHEDULE (기본 평일 07:00, TZ_NAME 기준)
- settlement_catchup: SETTLE_SCHEDULE 설정 시

스케줄러는 Ctrl+C로 종료할 수 있습니다.`,
		RunE: runScheduler,
	}

	schedulerListCmd = &cobra.Command{
		Use:   "list",
		Short: "등록된 작업 목록",
		RunE:  listJobs,
	}

	schedulerRunCmd = &cobra.Command{
		Use:   "run [job_name]",
		Short: "특정 작업 즉시 실행",
		Args:  cobra.ExactArgs(1),
		RunE:  runJob,
	}
)

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerStartCmd)
	schedulerCmd.AddCommand(schedulerListCmd)
	schedulerCmd.AddCommand(schedulerRunCmd)
}

// initScheduler registers the battle jobs on a new scheduler
func initScheduler(d *deps) (*scheduler.Scheduler, error) {
	loc := d.cfg.Location()
	sched := scheduler.New(d.log, loc)

	if err := sched.AddJob(jobs.NewBattleJob(d.orchestrator, d.cfg.Battle.Schedule, loc, d.log)); err != nil {
		return nil, err
	}
	if d.cfg.Battle.SettleSchedule != "" {
		if err := sched.AddJob(jobs.NewSettlementJob(d.orchestrator, d.cfg.Battle.SettleSchedule, loc, d.log)); err != nil {
			return nil, err
		}
	}
	return sched, nil
}

func runScheduler(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	d, err := initDeps(ctx, initOptions{sources: true})
	if err != nil {
		return err
	}
	defer d.Close()

	sched, err := initScheduler(d)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	sched.Start()
	printJobs(sched)
	fmt.Println("\nPress Ctrl+C to stop")

	<-ctx.Done()

	fmt.Println("\nShutting down scheduler...")
	sched.Stop()
	fmt.Println("Scheduler stopped")
	return nil
}

func listJobs(cmd *cobra.Command, args []string) error {
	d, err := initDeps(context.Background(), initOptions{})
	if err != nil {
		return err
	}
	defer d.Close()

	sched, err := initScheduler(d)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	printJobs(sched)
	return nil
}

func runJob(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	d, err := initDeps(ctx, initOptions{sources: true})
	if err != nil {
		return err
	}
	defer d.Close()

	sched, err := initScheduler(d)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	res, err := sched.RunJob(args[0])
	if err != nil {
		return err
	}
	if !res.Success {
		return fmt.Errorf("job %s failed: %s", res.JobName, res.Error)
	}
	PrintCompletion("Job "+res.JobName, res.Duration.Seconds())
	return nil
}

func printJobs(sched *scheduler.Scheduler) {
	stats := sched.GetJobStats()
	fmt.Println("Registered jobs:")
	for _, name := range sched.GetAllJobs() {
		fmt.Printf("  - %-20s %s\n", name, stats[name].Schedule)
	}
}
