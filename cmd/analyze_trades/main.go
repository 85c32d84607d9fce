package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"text/tabwriter"

	"tradeJournal/config"
	"tradeJournal/internal/adapters/logger"
	"tradeJournal/internal/adapters/sqlite"
	"tradeJournal/internal/analytics"
	"tradeJournal/internal/ports"
)

var (
	userID = flag.String("user", "", "user whose trades are analysed (required)")
	top    = flag.Int("top", 0, "show only the first N groups of each table (0 shows all)")
)

func main() {
	flag.Parse()
	if *userID == "" {
		log.Fatalf("-user is required")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Error loading configuration: %v", err)
	}
	lg := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: true})

	repo, err := sqlite.NewRepository(sqlite.Config{DBPath: cfg.DBPath, Logger: lg})
	if err != nil {
		log.Fatalf("Error opening trade database: %v", err)
	}
	defer repo.Close()

	agg, err := analytics.New(analytics.Config{
		Store:  repo,
		Logger: lg,
		Risk: analytics.RiskConfig{
			RiskFreeRate:   cfg.RiskFreeRate,
			PeriodsPerYear: cfg.PeriodsPerYear,
			VaRConfidence:  cfg.VaRConfidence,
		},
	})
	if err != nil {
		log.Fatalf("Error creating aggregator: %v", err)
	}

	ctx := context.Background()
	all := ports.DateRange{}

	summary, err := agg.Summary(ctx, *userID, all)
	if err != nil {
		log.Fatalf("Error computing summary: %v", err)
	}
	fmt.Printf("Trades: %d (open %d, partial %d, closed %d, cancelled %d)\n",
		summary.TotalTrades, summary.OpenTrades, summary.PartialTrades, summary.ClosedTrades, summary.CancelledTrades)
	fmt.Printf("Win rate: %.2f%%  Net P&L: %.2f  Charges: %.2f  Profit factor: %s\n",
		summary.WinRate, summary.TotalPnL, summary.TotalCharges, formatFactor(summary.ProfitFactor))

	for _, groupBy := range []analytics.GroupBy{analytics.GroupBySymbol, analytics.GroupByStrategy, analytics.GroupBySegment} {
		stats, err := agg.Statistics(ctx, *userID, groupBy, all)
		if err != nil {
			log.Printf("Error computing %s statistics: %v", groupBy, err)
			continue
		}
		fmt.Printf("\n## By %s\n", groupBy)
		printGroups(os.Stdout, stats, *top)
	}

	mistakes, err := agg.MistakeAnalytics(ctx, *userID, all)
	if err != nil {
		log.Fatalf("Error computing mistake analytics: %v", err)
	}
	if len(mistakes) > 0 {
		fmt.Println("\n## Mistakes")
		printGroups(os.Stdout, mistakes, *top)
	}

	risk, err := agg.RiskMetrics(ctx, *userID, all)
	if err != nil {
		log.Fatalf("Error computing risk metrics: %v", err)
	}
	fmt.Println("\n## Risk")
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintf(w, "Sharpe\t%.4f\n", risk.SharpeRatio)
	fmt.Fprintf(w, "Sortino\t%.4f\n", risk.SortinoRatio)
	fmt.Fprintf(w, "VaR (%.0f%%)\t%.4f\n", risk.VaRConfidence*100, risk.ValueAtRisk)
	fmt.Fprintf(w, "Max drawdown\t%.2f\n", risk.MaxDrawdown)
	w.Flush()

	perf, err := agg.Performance(ctx, *userID, all)
	if err != nil {
		log.Fatalf("Error computing performance: %v", err)
	}
	monthly := perf.GetMonthlyPnL()
	if len(monthly) > 0 {
		fmt.Println("\n## Monthly P&L")
		w = tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.AlignRight)
		for _, m := range monthly {
			fmt.Fprintf(w, "%s\t%.2f\t\n", m.Month.Format("2006-01"), m.PnL)
		}
		w.Flush()
	}
}

// printGroups writes one row per group, limited to the first n when n > 0.
func printGroups(out io.Writer, stats []analytics.GroupStat, n int) {
	if n > 0 && len(stats) > n {
		stats = stats[:n]
	}
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', tabwriter.AlignRight|tabwriter.Debug)
	fmt.Fprintln(w, "Group\tTrades\tWinRate\tTotalPnL\tAvgPnL\tMaxProfit\tMaxLoss\tAvgHold(m)\t")
	for _, s := range stats {
		fmt.Fprintf(w, "%s\t%d\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t%.1f\t\n",
			s.Key,
			s.TotalTrades,
			s.WinRate,
			s.TotalPnL,
			s.AvgPnL,
			s.MaxProfit,
			s.MaxLoss,
			s.AvgHoldingPeriod,
		)
	}
	w.Flush()
}

func formatFactor(v float64) string {
	if math.IsInf(v, 1) {
		return "inf"
	}
	return fmt.Sprintf("%.2f", v)
}
