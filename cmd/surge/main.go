// Command surge runs a load test described by a TOML test plan against an
// HTTP target, with a live dashboard, optional OTEL export, and HTML/CSV/
// SQLite report artifacts.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"

	"github.com/surgekit/surge"
	"github.com/surgekit/surge/client"
	"github.com/surgekit/surge/dashboard"
	"github.com/surgekit/surge/feed"
	"github.com/surgekit/surge/internal/config"
	"github.com/surgekit/surge/observer"
	"github.com/surgekit/surge/report"
)

func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", "surge.toml", "path to the TOML test plan")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("surge: load config: %v", err)
	}
	if cfg.Target.BaseURL == "" {
		cfg.Target.BaseURL = os.Getenv("SURGE_TARGET_URL")
	}
	if cfg.Target.BaseURL == "" {
		log.Fatal("surge: a target is required (target.base_url or SURGE_TARGET_URL)")
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	mode, err := surge.ParsePoolMode(cfg.Test.PoolMode)
	if err != nil {
		log.Fatalf("surge: %v", err)
	}

	scenario, err := buildScenario(cfg)
	if err != nil {
		log.Fatalf("surge: %v", err)
	}

	opts := []surge.RuntimeOption{surge.WithLogger(logger)}

	if cfg.Observer.Enabled {
		inst, shutdown, err := observer.Init(context.Background())
		if err != nil {
			log.Fatalf("surge: observer init: %v", err)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdown(ctx)
		}()
		opts = append(opts,
			surge.WithMetricsCollector(observer.WrapCollector(surge.NewCollector(), inst)),
			surge.WithTracer(observer.NewTracer()),
		)
	}

	if cfg.Report.HTMLPath != "" {
		opts = append(opts, surge.WithReportGenerator(report.NewHTMLWriter(cfg.Report.HTMLPath,
			report.WithTitle("surge: "+cfg.Target.BaseURL))))
	}
	if cfg.Report.CSVPath != "" {
		var csvOpts []report.CSVWriterOption
		if cfg.Report.SeriesPath != "" {
			csvOpts = append(csvOpts, report.WithTimeSeries(cfg.Report.SeriesPath))
		}
		opts = append(opts, surge.WithReportGenerator(report.NewCSVWriter(cfg.Report.CSVPath, csvOpts...)))
	}
	if cfg.Report.SQLitePath != "" {
		opts = append(opts, surge.WithReportGenerator(report.NewSQLiteArchive(cfg.Report.SQLitePath)))
	}

	rt, err := surge.NewFromScenario(surge.Config{
		Users:           cfg.Test.Users,
		RampUp:          cfg.Test.RampUp.Duration,
		Duration:        cfg.Test.Duration.Duration,
		PoolSize:        cfg.Test.PoolSize,
		MetricsInterval: cfg.Test.MetricsInterval.Duration,
		PoolMode:        mode,
	}, scenario, opts...)
	if err != nil {
		log.Fatalf("surge: %v", err)
	}

	if cfg.Dashboard.Enabled {
		srv := dashboard.NewServer(rt, cfg.Dashboard.Addr, dashboard.WithServerLogger(logger))
		go func() {
			if err := srv.Start(); err != nil {
				logger.Error("dashboard failed", "error", err)
			}
		}()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(ctx)
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	result, err := rt.Run(ctx)
	if err != nil {
		log.Fatalf("surge: run: %v", err)
	}
	printSummary(result)
}

// buildScenario assembles the reference scenario: an optional CSV feeder,
// then a GET against the target followed by a 200–800ms think time.
func buildScenario(cfg config.Config) (surge.Scenario, error) {
	steps := []surge.ScenarioStep{}

	if cfg.Target.FeedCSV != "" {
		feeder, err := feed.CSV(cfg.Target.FeedCSV, feed.Circular)
		if err != nil {
			return surge.Scenario{}, err
		}
		steps = append(steps, surge.Feed(feeder))
	}

	steps = append(steps,
		surge.Exec("index", client.HTTP("GET", cfg.Target.BaseURL)),
		surge.Pause(surge.UniformPause(200*time.Millisecond, 800*time.Millisecond)),
	)

	return surge.NewScenario("surge", steps...), nil
}

func printSummary(result *surge.TestResult) {
	fmt.Printf("\nRun finished in %s with %d configured users\n",
		result.TotalDuration.Round(time.Millisecond), result.ConfiguredUsers)
	for _, s := range result.ActionSummaries {
		fmt.Printf("  %-40s total=%-8d ok=%-8d fail=%-6d avg=%.1fms p99=%.1fms rps=%.1f\n",
			s.ActionName, s.TotalRequests, s.SuccessCount, s.FailureCount,
			s.AverageMs, s.P99Ms, s.RequestsPerSecond)
	}
}
