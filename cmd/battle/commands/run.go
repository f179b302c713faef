package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/pricebattle/internal/contracts"
)

var (
	runCmd = &cobra.Command{
		Use:   "run",
		Short: "일일 배틀 실행 (판정 → 예측 수집 → 집계 → 리포트)",
		Long: `하루치 배틀을 실행합니다.

이 명령어는:
- 목표일이 지난 pending 예측을 실제 종가로 판정
- 각 AI 소스에 오늘 예측 요청 후 ledger 에 기록
- 에이전트별 승률/평균 오차 집계
- ledger 와 리포트 문서 저장

Example:
  go run ./cmd/battle run
  go run ./cmd/battle run --date 2024-03-11`,
		RunE: runBattle,
	}

	settleCmd = &cobra.Command{
		Use:   "settle",
		Short: "판정만 실행",
		Long: `만기가 지난 pending 예측만 판정합니다. 가격이 없으면 다음 실행에서 재시도합니다.

Example:
  go run ./cmd/battle settle
  go run ./cmd/battle settle --as-of 2024-03-11`,
		RunE: runSettle,
	}

	ingestCmd = &cobra.Command{
		Use:   "ingest",
		Short: "예측 수집만 실행",
		RunE:  runIngest,
	}
)

var (
	runDate string
	asOf    string
)

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(settleCmd)
	rootCmd.AddCommand(ingestCmd)

	runCmd.Flags().StringVar(&runDate, "date", "", "issue date YYYY-MM-DD (default: today in TZ_NAME)")
	ingestCmd.Flags().StringVar(&runDate, "date", "", "issue date YYYY-MM-DD (default: today in TZ_NAME)")
	settleCmd.Flags().StringVar(&asOf, "as-of", "", "settlement date YYYY-MM-DD (default: today in TZ_NAME)")
}

// signalContext cancels on Ctrl+C / SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func resolveDate(flag string, d *deps) (contracts.Date, error) {
	if flag == "" {
		return d.today(), nil
	}
	return contracts.ParseDate(flag)
}

func runBattle(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	d, err := initDeps(ctx, initOptions{sources: true})
	if err != nil {
		return err
	}
	defer d.Close()

	today, err := resolveDate(runDate, d)
	if err != nil {
		return err
	}

	PrintHeader("AI Price Battle", "Date      : "+today.String(), "Mode      : "+d.cfg.Battle.SettlementMode)
	start := time.Now()

	res, err := d.orchestrator.Run(ctx, today)
	if err != nil {
		return fmt.Errorf("battle run: %w", err)
	}

	fmt.Printf("\n[Settle] eligible=%d settled=%d deferred=%d\n",
		res.Settlement.Eligible, res.Settlement.Settled, res.Settlement.Deferred)
	fmt.Printf("[Ingest] appended=%d failed=%d pending=%d\n\n", res.Appended, res.Failed, res.Pending)
	PrintStats(res.Stats)

	PrintCompletion("Battle run", time.Since(start).Seconds())
	return nil
}

func runSettle(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	d, err := initDeps(ctx, initOptions{})
	if err != nil {
		return err
	}
	defer d.Close()

	date, err := resolveDate(asOf, d)
	if err != nil {
		return err
	}

	start := time.Now()
	sum, err := d.orchestrator.Settle(ctx, date)
	if err != nil {
		return fmt.Errorf("settle: %w", err)
	}

	fmt.Printf("[Settle] as_of=%s eligible=%d settled=%d deferred=%d skipped=%d\n",
		date, sum.Eligible, sum.Settled, sum.Deferred, sum.Skipped)
	PrintCompletion("Settlement", time.Since(start).Seconds())
	return nil
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	d, err := initDeps(ctx, initOptions{sources: true})
	if err != nil {
		return err
	}
	defer d.Close()

	today, err := resolveDate(runDate, d)
	if err != nil {
		return err
	}

	start := time.Now()
	res, err := d.orchestrator.Ingest(ctx, today)
	if err != nil {
		return fmt.Errorf("ingest: %w", err)
	}

	fmt.Printf("[Ingest] issue=%s target=%s appended=%d failed=%d\n",
		res.IssueDate, res.TargetDate, res.Appended, res.Failed)
	PrintCompletion("Ingestion", time.Since(start).Seconds())
	return nil
}
