package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"screener/internal/cache"
	"screener/internal/config"
	"screener/internal/detector"
	"screener/internal/history"
	"screener/internal/integrator"
	"screener/internal/provider"
	"screener/internal/scanner"
	"screener/pkg/model"
)

var (
	cfgFile      string
	workers      int
	symbolList   string
	snapshotFile string
	format       string
	verbose      bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "screener",
		Short: "Equity pattern screener with weighted signal integration",
		Long: `Screener scans a symbol universe for two hand-crafted patterns and
converts raw ticks into ranked, risk-annotated trading signals:

Patterns:
  stop-high    - price-limit sticking breakout on a newly listed stock
  turnaround   - loss-to-profit quarter confirmed by an MA5 crossover

Examples:
  screener --symbols 7203.T,6758.T
  screener --snapshots universe.json --format json`,
		RunE: run,
	}

	rootCmd.Flags().StringVar(&cfgFile, "config", "config.yaml", "config file path")
	rootCmd.Flags().IntVar(&workers, "workers", 0, "number of parallel workers (0 = config default)")
	rootCmd.Flags().StringVar(&symbolList, "symbols", "", "comma-separated list of symbols to scan")
	rootCmd.Flags().StringVar(&snapshotFile, "snapshots", "", "JSON snapshot file for offline scans")
	rootCmd.Flags().StringVar(&format, "format", "table", "output format: table, json")
	rootCmd.Flags().BoolVar(&verbose, "verbose", false, "show detailed output")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if workers > 0 {
		cfg.Scanner.Workers = workers
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nInterrupted. Stopping scan...")
		cancel()
	}()

	// Data source: snapshot file or live chart API
	var dataProvider provider.Provider
	var symbols []string

	if snapshotFile != "" {
		fp, err := provider.NewFileProvider(snapshotFile)
		if err != nil {
			return fmt.Errorf("loading snapshots: %w", err)
		}
		dataProvider = fp
		symbols = fp.Symbols()
	} else {
		dataProvider = provider.NewChartProvider(cfg.Provider.BaseURL, cfg.Provider.RateLimit)
	}

	if symbolList != "" {
		symbols = strings.Split(symbolList, ",")
		for i := range symbols {
			symbols[i] = strings.TrimSpace(symbols[i])
		}
	}
	if len(symbols) == 0 {
		return fmt.Errorf("no symbols to scan: pass --symbols or --snapshots")
	}

	// Lookup cache in front of the provider
	lookupCache, err := buildCache(ctx, cfg)
	if err != nil {
		return err
	}
	dataProvider = provider.NewCachingProvider(dataProvider, lookupCache,
		cfg.Cache.QuoteTTL, cfg.Cache.EarningsTTL)

	// Detection history
	store, cleanup, err := buildHistory(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	in := integrator.New(cfg.Integrator,
		detector.NewStopHighDetector(cfg.StopHigh, store),
		detector.NewLegacyStopHighDetector(cfg.StopHigh),
		detector.NewTurnaroundDetector(cfg.Turnaround, store),
		detector.NewLegacyTurnaroundDetector(cfg.Turnaround),
	)

	s := scanner.NewScanner(dataProvider, in, cfg.Scanner.Workers, cfg.Scanner.Timeout)
	if snapshotFile != "" {
		// Local snapshots need no upstream pacing
		s.SetPaced(false)
	}

	fmt.Printf("Scanning %d symbols with %d workers...\n\n", len(symbols), cfg.Scanner.Workers)

	bar := progressbar.NewOptions(len(symbols),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("Scanning"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]█[reset]",
			SaucerHead:    "[green]█[reset]",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
	s.SetProgressCallback(func(scanned, total int) {
		bar.Set(scanned)
	})

	result, err := s.Scan(ctx, symbols)
	if err != nil {
		return fmt.Errorf("scanning: %w", err)
	}

	bar.Finish()
	fmt.Println()

	if format == "json" {
		return outputJSON(result)
	}
	return outputTable(result)
}

func buildCache(ctx context.Context, cfg *config.Config) (cache.Cache, error) {
	if cfg.Cache.Backend == "redis" {
		rc := cache.NewRedisCache(cfg.Cache.RedisAddr, cfg.Cache.RedisPass, cfg.Cache.RedisDB)
		if err := rc.Ping(ctx); err != nil {
			return nil, fmt.Errorf("connecting to redis cache: %w", err)
		}
		return rc, nil
	}
	return cache.NewMemoryCache(), nil
}

func buildHistory(cfg *config.Config) (history.Store, func(), error) {
	if cfg.History.Backend == "postgres" {
		ps, err := history.NewPostgresStore(cfg.History.DSN, cfg.History.Capacity)
		if err != nil {
			return nil, nil, fmt.Errorf("opening history store: %w", err)
		}
		return ps, func() { ps.Close() }, nil
	}
	return history.NewMemoryStore(cfg.History.Capacity), func() {}, nil
}

func outputJSON(result *model.ScanResult) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

func outputTable(result *model.ScanResult) error {
	actionable := make([]model.TradingSignal, 0, len(result.Signals))
	for _, s := range result.Signals {
		if s.Action == model.ActionStrongBuy || s.Action == model.ActionBuy || s.Action == model.ActionWatch {
			actionable = append(actionable, s)
		}
	}

	if len(actionable) == 0 {
		fmt.Println("No actionable signals found.")
		fmt.Printf("Scanned %d symbols (%d errors) in %s\n",
			result.TotalScanned, result.ErrorCount, result.ScanTime.Round(time.Second))
		return nil
	}

	fmt.Printf("Found %d actionable signals:\n\n", len(actionable))

	table := tablewriter.NewTable(os.Stdout,
		tablewriter.WithHeader([]string{"Symbol", "Name", "Action", "Strength", "Entry", "Target", "Stop", "R/R", "Risk"}),
	)

	for _, s := range actionable {
		name := s.Name
		if len(name) > 18 {
			name = name[:18] + "..."
		}
		risk := "-"
		if s.Risk != nil {
			risk = s.Risk.Level
		}
		table.Append([]string{
			s.Symbol,
			name,
			string(s.Action),
			fmt.Sprintf("%.0f", s.Strength),
			fmt.Sprintf("%.1f", s.EntryPrice),
			fmt.Sprintf("%.1f", s.ProfitTarget),
			fmt.Sprintf("%.1f", s.StopLoss),
			fmt.Sprintf("%.1f", s.RiskReward),
			risk,
		})
	}
	table.Render()

	// Print details for the top signals
	fmt.Println("\n--- Signal Details ---")
	count := 0
	for _, s := range actionable {
		if count >= 5 {
			break
		}
		fmt.Printf("\n[%s] %s  %s (strength %.0f, confidence %.2f)\n",
			s.Symbol, s.Name, s.Action, s.Strength, s.Confidence)
		for _, v := range s.Verdicts {
			mark := " "
			if v.Detected {
				mark = "*"
			}
			if verbose || v.Detected {
				fmt.Printf("  %s %-18s %s\n", mark, v.Pattern, v.Reason)
			}
		}
		if s.Risk != nil {
			fmt.Printf("  Risk: %s (%.0f) %s\n", s.Risk.Level, s.Risk.Score, s.Risk.Recommendation)
		}
		if s.Shares > 0 {
			fmt.Printf("  Size: %d shares (%.1f%% exposure)\n", s.Shares, s.Exposure*100)
		}
		for _, note := range s.ExecutionNotes {
			fmt.Printf("  Note: %s\n", note)
		}
		count++
	}

	fmt.Printf("\nScanned %d symbols (%d errors) in %s\n",
		result.TotalScanned, result.ErrorCount, result.ScanTime.Round(time.Second))
	return nil
}
