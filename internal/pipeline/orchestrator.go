package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/wonny/pricebattle/internal/contracts"
	"github.com/wonny/pricebattle/internal/ingest"
	"github.com/wonny/pricebattle/internal/ledger"
	"github.com/wonny/pricebattle/internal/metrics"
	"github.com/wonny/pricebattle/internal/report"
	"github.com/wonny/pricebattle/internal/settlement"
	"github.com/wonny/pricebattle/internal/stats"
	"github.com/wonny/pricebattle/pkg/logger"
)

// ErrAlreadyIngested forecasts for the issue date are already in the ledger
var ErrAlreadyIngested = errors.New("forecasts already collected for this date")

// Settler matures eligible pending records
type Settler interface {
	SettleAll(ctx context.Context, l *ledger.Ledger, asOf contracts.Date) settlement.Summary
}

// Ingester collects today's forecasts into the ledger
type Ingester interface {
	Run(ctx context.Context, l *ledger.Ledger, today contracts.Date) ingest.Result
}

// Config orchestrator settings
type Config struct {
	Mode        contracts.SettlementMode
	Assets      []contracts.Asset
	Agents      []string
	ReportPath  string
	CatalogHash string
}

// Orchestrator coordinates one battle run
// ⭐ SSOT: settle → ingest → aggregate → report → persist 순서는 여기서만
type Orchestrator struct {
	cfg        Config
	store      ledger.Store
	settler    Settler
	ingester   Ingester
	aggregator *stats.Aggregator
	metrics    *metrics.Registry
	now        func() time.Time

	// 같은 프로세스 내 실행 직렬화 (scheduler + API)
	mu sync.Mutex

	logger *logger.Logger
}

// RunResult holds the results of a complete run
type RunResult struct {
	IssueDate  contracts.Date                  `json:"issue_date"`
	Settlement settlement.Summary              `json:"settlement"`
	Appended   int                             `json:"appended"`
	Failed     int                             `json:"failed"`
	Pending    int                             `json:"pending"`
	Stats      map[string]contracts.AgentStats `json:"stats"`
	Report     contracts.Report                `json:"-"`
	Duration   time.Duration                   `json:"duration"`
}

// NewOrchestrator creates a new orchestrator; reg may be nil
func NewOrchestrator(
	cfg Config,
	store ledger.Store,
	settler Settler,
	ingester Ingester,
	aggregator *stats.Aggregator,
	reg *metrics.Registry,
	log *logger.Logger,
) *Orchestrator {
	if cfg.Mode == "" {
		cfg.Mode = contracts.ModeStrict
	}
	return &Orchestrator{
		cfg:        cfg,
		store:      store,
		settler:    settler,
		ingester:   ingester,
		aggregator: aggregator,
		metrics:    reg,
		now:        time.Now,
		logger:     log,
	}
}

// WithClock overrides the report timestamp source
func (o *Orchestrator) WithClock(now func() time.Time) *Orchestrator {
	o.now = now
	return o
}

// Run executes the complete daily run for today
func (o *Orchestrator) Run(ctx context.Context, today contracts.Date) (result *RunResult, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	defer func() { o.metrics.RecordRun("run", err) }()

	start := time.Now()
	result = &RunResult{IssueDate: today}

	o.logger.WithFields(map[string]interface{}{
		"issue_date":   today.String(),
		"mode":         string(o.cfg.Mode),
		"assets":       len(o.cfg.Assets),
		"agents":       len(o.cfg.Agents),
		"catalog_hash": o.cfg.CatalogHash,
	}).Info("Starting battle run")

	l, err := o.load(ctx)
	if err != nil {
		return result, err
	}

	// 1. 만기 도래 예측 판정
	result.Settlement = o.settle(ctx, l, today)

	// 2. 오늘 예측 수집 (재실행 시 중복 수집 방지)
	latest := report.LatestFrom(l.Records(), o.cfg.Agents, o.cfg.Assets)
	if !issuedOn(l, today) {
		ing := o.ingest(ctx, l, today)
		result.Appended = ing.Appended
		result.Failed = ing.Failed
		latest = report.Latest{
			TargetDate:    ing.TargetDate,
			CurrentPrices: ing.CurrentPrices,
			Predictions:   ing.Predictions,
		}
	} else {
		o.logger.WithFields(map[string]interface{}{
			"issue_date": today.String(),
		}).Info("Forecasts already collected today, skipping ingestion")
	}

	// 3. 집계
	result.Stats = o.aggregate(l)

	// 4. 저장 (ledger 먼저, report 다음)
	if err := o.save(ctx, l); err != nil {
		return result, err
	}

	result.Report = report.Build(report.Input{
		GeneratedAt: o.now(),
		Assets:      o.cfg.Assets,
		Stats:       result.Stats,
		Latest:      latest,
		JudgedToday: l.TargetingDate(today),
	})
	if err := o.writeReport(result.Report); err != nil {
		return result, err
	}

	result.Pending = countPending(l)
	result.Duration = time.Since(start)
	o.metrics.SetPending(result.Pending)

	o.logger.WithFields(map[string]interface{}{
		"issue_date":  today.String(),
		"settled":     result.Settlement.Settled,
		"deferred":    result.Settlement.Deferred,
		"appended":    result.Appended,
		"failed":      result.Failed,
		"pending":     result.Pending,
		"duration_ms": result.Duration.Milliseconds(),
	}).Info("Battle run completed")

	return result, nil
}

// Settle runs only the settlement pass as of asOf and persists the ledger
func (o *Orchestrator) Settle(ctx context.Context, asOf contracts.Date) (summary settlement.Summary, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	defer func() { o.metrics.RecordRun("settle", err) }()

	l, err := o.load(ctx)
	if err != nil {
		return summary, err
	}
	summary = o.settle(ctx, l, asOf)
	if summary.Settled == 0 {
		return summary, nil
	}
	return summary, o.save(ctx, l)
}

// Ingest runs only forecast collection for today and persists the ledger
func (o *Orchestrator) Ingest(ctx context.Context, today contracts.Date) (res ingest.Result, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	defer func() { o.metrics.RecordRun("ingest", err) }()

	l, err := o.load(ctx)
	if err != nil {
		return res, err
	}
	if issuedOn(l, today) {
		return res, fmt.Errorf("ingest %s: %w", today, ErrAlreadyIngested)
	}
	res = o.ingest(ctx, l, today)
	if res.Appended == 0 {
		return res, nil
	}
	return res, o.save(ctx, l)
}

// Stats aggregates the persisted ledger
func (o *Orchestrator) Stats(ctx context.Context) (map[string]contracts.AgentStats, error) {
	l, err := o.load(ctx)
	if err != nil {
		return nil, err
	}
	return o.aggregate(l), nil
}

// Records persisted records, optionally filtered by status
func (o *Orchestrator) Records(ctx context.Context, status contracts.ForecastStatus) ([]contracts.ForecastRecord, error) {
	records, err := o.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	if status == "" {
		return records, nil
	}
	out := make([]contracts.ForecastRecord, 0, len(records))
	for _, r := range records {
		if r.Status == status {
			out = append(out, r)
		}
	}
	return out, nil
}

// Report rebuilds the report from the persisted ledger without asking any source
func (o *Orchestrator) Report(ctx context.Context, today contracts.Date, write bool) (contracts.Report, error) {
	if write {
		// 저장 시 Run 과 같은 파일을 쓰므로 직렬화
		o.mu.Lock()
		defer o.mu.Unlock()
	}

	l, err := o.load(ctx)
	if err != nil {
		return contracts.Report{}, err
	}

	rep := report.Build(report.Input{
		GeneratedAt: o.now(),
		Assets:      o.cfg.Assets,
		Stats:       o.aggregate(l),
		Latest:      report.LatestFrom(l.Records(), o.cfg.Agents, o.cfg.Assets),
		JudgedToday: l.TargetingDate(today),
	})
	if write {
		if err := o.writeReport(rep); err != nil {
			return rep, err
		}
	}
	return rep, nil
}

// Reset purges settled records from the persisted ledger
func (o *Orchestrator) Reset(ctx context.Context) (res contracts.PurgeResult, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	defer func() { o.metrics.RecordRun("reset", err) }()

	records, err := o.store.Load(ctx)
	if err != nil {
		return res, fmt.Errorf("load ledger: %w", err)
	}

	res = report.Purge(contracts.LedgerDocument{Records: records}, o.logger.Component("report.purge"))
	if err := o.store.Save(ctx, res.Document.Records); err != nil {
		return res, fmt.Errorf("save ledger: %w", err)
	}
	return res, nil
}

func (o *Orchestrator) load(ctx context.Context) (*ledger.Ledger, error) {
	records, err := o.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	return ledger.Load(records, o.cfg.Mode, o.logger.Zerolog()), nil
}

func (o *Orchestrator) save(ctx context.Context, l *ledger.Ledger) error {
	start := time.Now()
	defer o.metrics.ObserveStep("persist", start)

	if err := o.store.Save(ctx, l.Records()); err != nil {
		return fmt.Errorf("save ledger: %w", err)
	}
	return nil
}

func (o *Orchestrator) settle(ctx context.Context, l *ledger.Ledger, asOf contracts.Date) settlement.Summary {
	start := time.Now()
	defer o.metrics.ObserveStep("settle", start)

	summary := o.settler.SettleAll(ctx, l, asOf)
	o.metrics.RecordSettlement(summary.Settled, summary.Deferred)
	return summary
}

func (o *Orchestrator) ingest(ctx context.Context, l *ledger.Ledger, today contracts.Date) ingest.Result {
	start := time.Now()
	defer o.metrics.ObserveStep("ingest", start)

	res := o.ingester.Run(ctx, l, today)
	for agent, preds := range res.Predictions {
		appended := 0
		for _, p := range preds {
			if p != nil {
				appended++
			}
		}
		o.metrics.RecordIngest(agent, appended, appended == 0)
	}
	return res
}

func (o *Orchestrator) aggregate(l *ledger.Ledger) map[string]contracts.AgentStats {
	start := time.Now()
	defer o.metrics.ObserveStep("aggregate", start)

	out := o.aggregator.Aggregate(l.Settled())
	for agent, s := range out {
		o.metrics.SetAgentStats(agent, s.WinRate, s.AvgError)
	}
	return out
}

func (o *Orchestrator) writeReport(rep contracts.Report) error {
	if o.cfg.ReportPath == "" {
		return nil
	}
	if err := report.Save(o.cfg.ReportPath, rep); err != nil {
		return err
	}
	o.logger.WithFields(map[string]interface{}{
		"path": o.cfg.ReportPath,
	}).Info("Report written")
	return nil
}

func issuedOn(l *ledger.Ledger, d contracts.Date) bool {
	for _, r := range l.Records() {
		if r.IssueDate.Equal(d) {
			return true
		}
	}
	return false
}

func countPending(l *ledger.Ledger) int {
	n := 0
	for _, r := range l.Records() {
		if r.IsPending() {
			n++
		}
	}
	return n
}
