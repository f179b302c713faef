package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/pricebattle/internal/api"
	"github.com/wonny/pricebattle/internal/api/handlers"
	"github.com/wonny/pricebattle/internal/metrics"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "API 서버 시작",
	Long: `읽기 전용 REST API 서버를 시작합니다.

Endpoints:
  GET  /health                      - Health check
  GET  /api/stats                   - 에이전트별 승률/평균 오차
  GET  /api/report                  - 최신 리포트 문서
  GET  /api/records?status=pending  - ledger 기록 조회
  GET  /api/jobs                    - 스케줄러 작업 상태 (--with-scheduler)
  GET  /metrics                     - Prometheus metrics

Example:
  go run ./cmd/battle api
  go run ./cmd/battle api --port 8080 --with-scheduler`,
	RunE: runAPIServer,
}

var (
	apiPort       string
	withScheduler bool
)

func init() {
	rootCmd.AddCommand(apiCmd)

	apiCmd.Flags().StringVar(&apiPort, "port", "", "API 서버 포트 (default: PORT)")
	apiCmd.Flags().BoolVar(&withScheduler, "with-scheduler", false, "같은 프로세스에서 스케줄러 실행")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	d, err := initDeps(ctx, initOptions{sources: withScheduler})
	if err != nil {
		return err
	}
	defer d.Close()

	if apiPort != "" {
		d.cfg.Port = apiPort
	}

	routes := api.Routes{
		Battle: handlers.NewBattleHandler(d.orchestrator, d.cfg.Ledger.ReportPath, d.cfg.Location(), d.log),
	}
	if d.metrics == nil && d.cfg.MetricsEnabled {
		d.metrics = metrics.NewRegistry()
	}
	if d.metrics != nil {
		routes.Metrics = d.metrics.Handler()
	}

	if withScheduler {
		sched, err := initScheduler(d)
		if err != nil {
			return fmt.Errorf("init scheduler: %w", err)
		}
		routes.Jobs = handlers.NewJobsHandler(sched)
		sched.Start()
		defer sched.Stop()
	}

	server := api.New(d.cfg, d.log, api.NewRouter(routes, d.log))

	fmt.Printf("\n✅ Server running on http://localhost:%s\n", d.cfg.Port)
	fmt.Println("\nPress Ctrl+C to stop")

	if err := server.Run(ctx, 30*time.Second); err != nil {
		return err
	}
	d.log.Info("Server stopped")
	return nil
}
