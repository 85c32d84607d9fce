package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log" // Use standard log only for initial fatal errors before logger is set up
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"tradeJournal/config"
	"tradeJournal/internal/adapters/logger"
	"tradeJournal/internal/adapters/memcache"
	"tradeJournal/internal/adapters/rediscache"
	"tradeJournal/internal/adapters/sqlite"
	"tradeJournal/internal/analytics"
	"tradeJournal/internal/app"
	"tradeJournal/internal/cache"
	"tradeJournal/internal/metrics"
	"tradeJournal/internal/ports"
)

var (
	userID         = flag.String("user", "", "user whose journal is read and written (required)")
	importPath     = flag.String("import", "", "JSON file with an array of trades to import")
	skipDuplicates = flag.Bool("skip-duplicates", true, "skip imported trades whose broker trade id is already recorded")
	groupBy        = flag.String("group-by", string(analytics.GroupBySymbol), "statistics grouping: symbol, exchange, segment, tradeType or strategy")
	fromDate       = flag.String("from", "", "report start date (YYYY-MM-DD), inclusive")
	toDate         = flag.String("to", "", "report end date (YYYY-MM-DD), inclusive")
	metricsFile    = flag.String("metrics-file", "", "write Prometheus metrics to this file on exit")
)

// report is the document printed to stdout.
type report struct {
	Import      *app.BulkResult        `json:"import,omitempty"`
	Summary     *analytics.Summary     `json:"summary"`
	Statistics  []analytics.GroupStat  `json:"statistics"`
	Strategies  []analytics.GroupStat  `json:"strategies"`
	Mistakes    []analytics.GroupStat  `json:"mistakes"`
	Risk        *analytics.RiskMetrics `json:"risk"`
	Performance *analytics.Performance `json:"performance"`
	Symbols     []string               `json:"symbols"`
	Monthly     []analytics.MonthlyPnL `json:"monthly"`
}

func main() {
	flag.Parse()
	if *userID == "" {
		log.Fatalf("FATAL: -user is required")
	}
	dateRange, err := parseRange(*fromDate, *toDate)
	if err != nil {
		log.Fatalf("FATAL: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err) // Use standard log before logger is ready
	}

	// 2. Initialize Logger
	appLogger := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty})
	appLogger.Info(ctx, "Logger initialized", map[string]interface{}{"level": cfg.LogLevel.String()})

	// 3. Initialize Metrics
	registry := prometheus.NewRegistry()
	appMetrics := metrics.New(registry)

	// 4. Initialize Repository (Database Adapter)
	repo, err := sqlite.NewRepository(sqlite.Config{
		DBPath: cfg.DBPath,
		Logger: appLogger.With("sqlite"),
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize database repository")
		log.Fatalf("FATAL: Failed to initialize database repository: %v", err) // Also log to stderr
	}
	defer func() {
		if err := repo.Close(); err != nil {
			appLogger.Error(context.Background(), err, "Error closing database repository")
		}
	}()
	appLogger.Info(ctx, "Database repository initialized")

	// 5. Initialize Cache Backend
	backend, closeBackend := newCacheBackend(ctx, cfg, appLogger, appMetrics)
	defer closeBackend()

	layer, err := cache.New(cache.Config{
		Backend:    backend,
		TradeTTL:   cfg.CacheTradeTTL,
		SummaryTTL: cfg.CacheSummaryTTL,
		SymbolsTTL: cfg.CacheSymbolsTTL,
		Logger:     appLogger.With("cache"),
		Metrics:    appMetrics,
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize cache layer")
		log.Fatalf("FATAL: Failed to initialize cache layer: %v", err)
	}

	// 6. Initialize Application Service
	svc, err := app.NewTradeService(app.Config{
		Store: repo,
		Cache: layer,
		Risk: analytics.RiskConfig{
			RiskFreeRate:   cfg.RiskFreeRate,
			PeriodsPerYear: cfg.PeriodsPerYear,
			VaRConfidence:  cfg.VaRConfidence,
		},
		Logger:          appLogger.With("journal"),
		Metrics:         appMetrics,
		DefaultPageSize: cfg.DefaultPageSize,
		MaxPageSize:     cfg.MaxPageSize,
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize trade service")
		log.Fatalf("FATAL: Failed to initialize trade service: %v", err)
	}
	appLogger.Info(ctx, "Trade service initialized")

	// 7. Import and report
	out := &report{}
	if *importPath != "" {
		out.Import, err = importTrades(ctx, svc, *importPath)
		if err != nil {
			appLogger.Error(ctx, err, "Import failed", map[string]interface{}{"file": *importPath})
			log.Fatalf("FATAL: Import failed: %v", err)
		}
	}
	if err := buildReport(ctx, svc, analytics.GroupBy(*groupBy), dateRange, out); err != nil {
		appLogger.Error(ctx, err, "Failed to build report")
		log.Fatalf("FATAL: Failed to build report: %v", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		log.Fatalf("FATAL: Failed to write report: %v", err)
	}

	if *metricsFile != "" {
		if err := prometheus.WriteToTextfile(*metricsFile, registry); err != nil {
			appLogger.Error(ctx, err, "Failed to write metrics file", map[string]interface{}{"file": *metricsFile})
		}
	}
	appLogger.Info(ctx, "Application finished gracefully.")
}

// newCacheBackend returns the configured cache backend. An unreachable Redis
// falls back to the in-process cache.
func newCacheBackend(ctx context.Context, cfg *config.Config, lg *logger.ZeroLogger, m *metrics.Metrics) (ports.Cache, func()) {
	if cfg.CacheBackend == config.CacheBackendRedis {
		rc, err := rediscache.New(ctx, rediscache.Config{
			Addr:                cfg.RedisAddr,
			Password:            cfg.RedisPassword,
			DB:                  cfg.RedisDB,
			KeyPrefix:           "journal:",
			BreakerMaxFailures:  cfg.BreakerMaxFailures,
			BreakerResetTimeout: cfg.BreakerResetTimeout,
			OnBreakerChange: func(_, to rediscache.State) {
				m.BreakerState(int(to), to == rediscache.StateOpen)
			},
			Logger: lg.With("redis"),
		})
		if err == nil {
			lg.Info(ctx, "Redis cache initialized", map[string]interface{}{"addr": cfg.RedisAddr})
			return rc, func() {
				if err := rc.Close(); err != nil {
					lg.Error(context.Background(), err, "Error closing redis client")
				}
			}
		}
		lg.Warn(ctx, "Redis unavailable, using in-process cache", map[string]interface{}{"addr": cfg.RedisAddr, "error": err.Error()})
	}

	mc := memcache.New()
	janitorCtx, stop := context.WithCancel(ctx)
	go mc.RunJanitor(janitorCtx, time.Minute)
	lg.Info(ctx, "In-process cache initialized")
	return mc, stop
}

func importTrades(ctx context.Context, svc *app.TradeService, path string) (*app.BulkResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var inputs []app.CreateTradeInput
	if err := json.Unmarshal(data, &inputs); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return svc.BulkCreateTrades(ctx, *userID, inputs, app.BulkOptions{SkipDuplicates: *skipDuplicates})
}

func buildReport(ctx context.Context, svc *app.TradeService, groupBy analytics.GroupBy, r ports.DateRange, out *report) error {
	var err error
	if out.Summary, err = svc.GetTradeSummary(ctx, *userID, r); err != nil {
		return err
	}
	if out.Statistics, err = svc.GetTradeStatistics(ctx, *userID, groupBy, r); err != nil {
		return err
	}
	if out.Strategies, err = svc.GetStrategyAnalytics(ctx, *userID, r); err != nil {
		return err
	}
	if out.Mistakes, err = svc.GetMistakeAnalytics(ctx, *userID, r); err != nil {
		return err
	}
	if out.Risk, err = svc.GetRiskMetrics(ctx, *userID, r); err != nil {
		return err
	}
	if out.Performance, err = svc.GetPerformance(ctx, *userID, r); err != nil {
		return err
	}
	out.Monthly = out.Performance.GetMonthlyPnL()
	out.Symbols, err = svc.GetSymbols(ctx, *userID)
	return err
}

// parseRange turns inclusive calendar dates into a DateRange in UTC.
func parseRange(from, to string) (ports.DateRange, error) {
	var r ports.DateRange
	if from != "" {
		t, err := time.Parse("2006-01-02", from)
		if err != nil {
			return r, fmt.Errorf("invalid -from date %q: %w", from, err)
		}
		r.From = t
	}
	if to != "" {
		t, err := time.Parse("2006-01-02", to)
		if err != nil {
			return r, fmt.Errorf("invalid -to date %q: %w", to, err)
		}
		r.To = t.Add(24*time.Hour - time.Nanosecond)
	}
	return r, nil
}
