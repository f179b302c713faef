package commands

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wonny/pricebattle/internal/ledger"
)

var (
	statsCmd = &cobra.Command{
		Use:   "stats",
		Short: "에이전트별 승률/평균 오차",
		RunE:  runStats,
	}

	reportCmd = &cobra.Command{
		Use:   "report",
		Short: "ledger 로부터 리포트 재생성",
		Long: `예측 소스를 호출하지 않고 저장된 ledger 로 리포트를 다시 만듭니다.

Example:
  go run ./cmd/battle report
  go run ./cmd/battle report --stdout`,
		RunE: runReport,
	}

	resetCmd = &cobra.Command{
		Use:   "reset",
		Short: "판정 완료 기록 삭제 (pending 유지)",
		RunE:  runReset,
	}
)

var (
	reportStdout bool
	resetYes     bool
)

func init() {
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(resetCmd)

	reportCmd.Flags().BoolVar(&reportStdout, "stdout", false, "print the report instead of writing REPORT_PATH")
	resetCmd.Flags().BoolVarP(&resetYes, "yes", "y", false, "skip confirmation")
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	d, err := initDeps(ctx, initOptions{})
	if err != nil {
		return err
	}
	defer d.Close()

	st, err := d.orchestrator.Stats(ctx)
	if err != nil {
		return err
	}

	PrintHeader("Leaderboard")
	PrintStats(st)
	return nil
}

func runReport(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	d, err := initDeps(ctx, initOptions{})
	if err != nil {
		return err
	}
	defer d.Close()

	rep, err := d.orchestrator.Report(ctx, d.today(), !reportStdout)
	if err != nil {
		return err
	}

	if reportStdout {
		data, err := ledger.MarshalIndent(rep)
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(data)
		return err
	}

	fmt.Printf("✅ Report written to %s\n", d.cfg.Ledger.ReportPath)
	return nil
}

func runReset(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	if !resetYes && !confirm("Remove every settled record from the ledger?") {
		fmt.Println("Aborted")
		return nil
	}

	d, err := initDeps(ctx, initOptions{})
	if err != nil {
		return err
	}
	defer d.Close()

	res, err := d.orchestrator.Reset(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("✅ Removed %d settled records, %d pending records retained\n", res.Removed, res.Retained)
	return nil
}

func confirm(question string) bool {
	fmt.Printf("%s [y/N]: ", question)
	line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
