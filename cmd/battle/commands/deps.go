package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/wonny/pricebattle/internal/catalog"
	"github.com/wonny/pricebattle/internal/contracts"
	"github.com/wonny/pricebattle/internal/extract"
	"github.com/wonny/pricebattle/internal/ingest"
	"github.com/wonny/pricebattle/internal/ledger"
	"github.com/wonny/pricebattle/internal/metrics"
	"github.com/wonny/pricebattle/internal/pipeline"
	"github.com/wonny/pricebattle/internal/quotes"
	"github.com/wonny/pricebattle/internal/settlement"
	"github.com/wonny/pricebattle/internal/sources"
	"github.com/wonny/pricebattle/internal/stats"
	"github.com/wonny/pricebattle/pkg/config"
	"github.com/wonny/pricebattle/pkg/database"
	"github.com/wonny/pricebattle/pkg/httputil"
	"github.com/wonny/pricebattle/pkg/logger"
	"github.com/wonny/pricebattle/pkg/redis"
)

// deps everything a command needs, wired once
type deps struct {
	cfg          *config.Config
	log          *logger.Logger
	catalog      *catalog.Catalog
	store        ledger.Store
	quotes       quotes.Provider
	metrics      *metrics.Registry
	orchestrator *pipeline.Orchestrator

	db    *database.DB
	redis *redis.Client
}

// initOptions what a command actually uses
type initOptions struct {
	sources bool // forecast sources (API keys)
}

func initDeps(ctx context.Context, opts initOptions) (*deps, error) {
	// 1. Config
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	if catalogFile != "" {
		cfg.Battle.CatalogPath = catalogFile
	}

	// 2. Logger
	log := logger.New(cfg)
	d := &deps{cfg: cfg, log: log}

	// 3. Catalog
	cat, err := catalog.Load(cfg.Battle.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	hash, err := catalog.Hash(cat)
	if err != nil {
		return nil, fmt.Errorf("hash catalog: %w", err)
	}
	d.catalog = cat

	mode, err := contracts.ParseSettlementMode(cfg.Battle.SettlementMode)
	if err != nil {
		return nil, err
	}

	// 4. Ledger store
	if err := d.initStore(ctx); err != nil {
		d.Close()
		return nil, err
	}

	// 5. Quotes: Yahoo → breaker → redis cache
	d.initQuotes(ctx)

	// 6. Forecast sources
	var srcs []sources.Source
	if opts.sources {
		srcs, err = d.initSources(ctx)
		if err != nil {
			d.Close()
			return nil, err
		}
	}

	// 7. Metrics
	if cfg.MetricsEnabled {
		d.metrics = metrics.NewRegistry()
	}

	// 8. Pipeline
	engine := settlement.NewEngine(d.quotes, cat.Assets, cfg.Battle.HorizonDays, log.Component("settlement.engine"))
	ingestor := ingest.New(
		ingest.Config{
			Assets:      cat.Assets,
			HistoryDays: cfg.Battle.HistoryDays,
			SourceDelay: cfg.Battle.SourceDelay,
		},
		srcs,
		d.quotes,
		extract.NewExtractor(log.Component("extract")),
		engine,
		log.Component("ingest"),
	)

	d.orchestrator = pipeline.NewOrchestrator(
		pipeline.Config{
			Mode:        mode,
			Assets:      cat.Assets,
			Agents:      cat.AgentIDs(),
			ReportPath:  cfg.Ledger.ReportPath,
			CatalogHash: hash,
		},
		d.store,
		engine,
		ingestor,
		stats.NewAggregator(cat.AgentIDs(), log.Component("stats")),
		d.metrics,
		log,
	)

	return d, nil
}

func (d *deps) initStore(ctx context.Context) error {
	switch d.cfg.Ledger.Backend {
	case config.BackendPostgres:
		db, err := database.New(ctx, d.cfg)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		d.db = db

		ps := ledger.NewPostgresStore(db.Pool)
		if err := ps.Migrate(ctx); err != nil {
			return err
		}
		d.store = ps
		d.log.Info("Ledger backend: postgres")
	default:
		d.store = ledger.NewFileStore(d.cfg.Ledger.Path)
		d.log.WithFields(map[string]interface{}{
			"path": d.cfg.Ledger.Path,
		}).Info("Ledger backend: file")
	}
	return nil
}

func (d *deps) initQuotes(ctx context.Context) {
	loc := d.cfg.Location()

	var provider quotes.Provider = quotes.NewYahoo(d.log.Component("quotes.yahoo"))
	provider = quotes.NewBreaker(provider, quotes.BreakerSettings{
		ConsecutiveFailures: uint32(d.cfg.Quotes.BreakerFailures),
		Timeout:             d.cfg.Quotes.BreakerTimeout,
	}, d.log.Component("quotes.breaker"))

	rc, err := redis.New(ctx, d.cfg)
	if err != nil {
		// 캐시는 선택 사항: 연결 실패 시 캐시 없이 진행
		d.log.WithError(err).Warn("Redis unavailable, quote cache disabled")
		rc = redis.NewFromRedis(nil)
	}
	d.redis = rc

	d.quotes = quotes.NewCached(
		provider,
		redis.NewCache(rc, "pricebattle"),
		d.cfg.Quotes.CacheTTL,
		func() contracts.Date { return contracts.Today(loc) },
		d.log.Component("quotes.cache"),
	)
}

func (d *deps) initSources(ctx context.Context) ([]sources.Source, error) {
	client := httputil.New(d.cfg, d.log).DisableRetry()

	var srcs []sources.Source
	for _, agent := range d.catalog.Agents {
		src, err := sources.New(ctx, agent, d.cfg, client, d.log.Component("sources"))
		if errors.Is(err, sources.ErrMissingAPIKey) {
			d.log.WithFields(map[string]interface{}{
				"agent_id": agent.ID,
				"provider": agent.Provider,
			}).Warn("API key missing, agent skipped")
			continue
		}
		if err != nil {
			return nil, err
		}
		srcs = append(srcs, src)
	}

	if len(srcs) == 0 {
		d.log.Warn("No forecast source configured, only settlement will run")
	}
	return srcs, nil
}

// Close releases connections
func (d *deps) Close() {
	if d.redis != nil {
		d.redis.Close()
	}
	if d.db != nil {
		d.db.Close()
	}
}

func (d *deps) today() contracts.Date {
	return contracts.Today(d.cfg.Location())
}
