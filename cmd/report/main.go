package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"solana-portfolio-watch/internal/config"
	"solana-portfolio-watch/internal/reporting"
	"solana-portfolio-watch/internal/storage/stores"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to YAML config")
	format := flag.String("format", "markdown", "Output format: markdown or csv")
	store := flag.String("store", "", "Override snapshot store kind: xlsx, postgres or memory")
	window := flag.Duration("window", 24*time.Hour, "History window for value change (requires clickhouse_dsn)")
	output := flag.String("output", "", "Write report to file instead of stdout")
	flag.Parse()

	_ = godotenv.Load()

	if *format != "markdown" && *format != "csv" {
		fmt.Fprintf(os.Stderr, "Error: unknown format %q (use markdown or csv)\n", *format)
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *store != "" {
		cfg.Store.Kind = *store
		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync() //nolint:errcheck

	out, err := generate(context.Background(), cfg, logger, *format, *window)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating report: %v\n", err)
		os.Exit(1)
	}

	if *output == "" {
		fmt.Print(out)
		return
	}
	if err := os.WriteFile(*output, []byte(out), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing report: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Report written to %s\n", *output)
}

func generate(ctx context.Context, cfg *config.Config, logger *zap.Logger, format string, window time.Duration) (string, error) {
	snapshots, closeSnapshots, err := stores.OpenSnapshot(ctx, cfg.Store, logger)
	if err != nil {
		return "", err
	}
	defer closeSnapshots()

	history, closeHistory, err := stores.OpenHistory(ctx, cfg.ClickhouseDSN, logger)
	if err != nil {
		return "", err
	}
	defer closeHistory()

	report, err := reporting.NewGenerator(reporting.GeneratorOptions{
		Store:   snapshots,
		History: history,
		Window:  window,
		Logger:  logger,
	}).Generate(ctx)
	if err != nil {
		return "", err
	}

	if format == "csv" {
		return reporting.RenderCSV(report)
	}
	return reporting.RenderMarkdown(report), nil
}
