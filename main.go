package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"prospect-scraper/api"
	"prospect-scraper/config"
	"prospect-scraper/models"
	"prospect-scraper/scraper"
	"prospect-scraper/services"
	"prospect-scraper/storage"
	"prospect-scraper/utils"
)

const defaultMaxPages = 5

func main() {
	logger := utils.NewLogger()

	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		logger.Error("%v", err)
		os.Exit(2)
	}
	if cfg == nil {
		return
	}
	logger.SetDebug(cfg.Debug)

	logger.Info("=== Prospect Scraper starting ===")
	logger.Info("Config: store %s | request delay %v | nav timeout %v | parallel sources %d",
		cfg.DBDriver, cfg.RequestDelay, cfg.NavTimeout, cfg.MaxParallel)

	sources, err := config.LoadSources(cfg.SourcesDir)
	if err != nil {
		logger.Error("Failed to load sources: %v", err)
		os.Exit(1)
	}
	logger.Info("Sources: %s", strings.Join(sources.Names(), ", "))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	retry := &utils.RetryConfig{MaxAttempts: cfg.MaxRetries, BaseDelay: 2 * time.Second, Logger: logger}

	store, err := openStore(ctx, cfg, retry)
	if err != nil {
		logger.Error("Failed to open property store: %v", err)
		if cfg.DBDriver == "postgres" {
			logger.Error("Make sure Docker is running: docker compose up -d")
		}
		os.Exit(1)
	}
	defer store.Close()

	var batchWriter storage.BatchWriter
	if cfg.CSVOutputPath != "" {
		csvWriter, err := storage.NewCSVWriter(cfg.CSVOutputPath)
		if err != nil {
			logger.Error("Failed to create CSV writer: %v", err)
			os.Exit(1)
		}
		defer csvWriter.Close()
		batchWriter = csvWriter
	}

	pageOpts := scraper.PageOptions{NavTimeout: cfg.NavTimeout, SettleDelay: cfg.SettleDelay}
	launchers := map[string]scraper.Launcher{
		"browser": &scraper.ChromeLauncher{ChromeBin: cfg.ChromeBin, Headful: cfg.Headful, Options: pageOpts},
		"static":  &scraper.StaticLauncher{Options: pageOpts},
	}

	runner := services.NewRunner(sources, store, launchers, batchWriter, logger, services.RunnerOptions{
		RequestDelay: cfg.RequestDelay,
		MaxPages:     defaultMaxPages,
		MaxParallel:  cfg.MaxParallel,
		Retry:        retry,
	})
	insights := services.NewInsightService(store, logger)

	switch {
	case cfg.Serve:
		if err := serve(ctx, cfg, api.NewHandler(runner, insights, store), logger); err != nil {
			logger.Error("%v", err)
			os.Exit(1)
		}
		return

	case cfg.All:
		reports := runner.RunAll(ctx, cfg.MaxPages)
		failed := 0
		for _, r := range reports {
			printReport(r)
			if !r.Success {
				failed++
			}
		}
		printInsights(ctx, cfg, insights, sources.Names(), logger)
		if failed > 0 {
			os.Exit(1)
		}

	case cfg.Source != "":
		report, err := runner.RunScrape(ctx, cfg.Source, cfg.SearchURL, cfg.MaxPages)
		printReport(report)
		if err != nil {
			logger.Error("Scrape failed: %v", err)
			os.Exit(1)
		}
		printInsights(ctx, cfg, insights, []string{report.Source}, logger)

	default:
		logger.Error("Nothing to do: pass --source <name>, --all or --serve (sources: %s)",
			strings.Join(sources.Names(), ", "))
		os.Exit(2)
	}
}

func openStore(ctx context.Context, cfg *config.Config, retry *utils.RetryConfig) (storage.PropertyStore, error) {
	switch cfg.DBDriver {
	case "sqlite":
		return storage.NewSQLiteStore(cfg.SQLitePath)
	default:
		return storage.NewPostgresStore(ctx, cfg.DSN(), retry)
	}
}

func serve(ctx context.Context, cfg *config.Config, handler *api.Handler, logger *utils.Logger) error {
	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      api.NewServer(handler, cfg.APIKey),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Minute, // a scrape request runs to completion
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server on port %s", cfg.Port)
		logger.Info("  Health check:  http://localhost:%s/health", cfg.Port)
		logger.Info("  Sources:       http://localhost:%s/sources", cfg.Port)
		logger.Info("  Scrape:        http://localhost:%s/api/scrape/<source> (POST)", cfg.Port)
		if cfg.APIKey == "" {
			logger.Warn("API_ACCESS_KEY not set, scrape endpoints are open")
		}
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutting down server gracefully...")
	case err := <-serverErrChan:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP server shutdown error: %w", err)
	}
	logger.Info("HTTP server stopped")
	return nil
}

func printReport(r *models.RunReport) {
	if r == nil {
		return
	}
	status := "\033[1;32mOK\033[0m"
	if !r.Success {
		status = "\033[1;31mFAILED\033[0m"
	}
	fmt.Printf("\n  %s [%s] run %s\n", status, r.Source, r.RunID)
	fmt.Printf("  Scraped %d | persisted %d | valid %d | flagged %d | with images %d (avg %.2f)\n",
		r.TotalScraped, r.Inserted, r.Validation.Valid, r.Validation.Invalid,
		r.ImageStats.WithImages, r.ImageStats.AvgImagesPerProperty)
	if r.Message != "" {
		fmt.Printf("  %s\n", r.Message)
	}
	fmt.Println()
}

func printInsights(ctx context.Context, cfg *config.Config, svc *services.InsightService, names []string, logger *utils.Logger) {
	if !cfg.Insights {
		return
	}
	for _, name := range names {
		report, err := svc.ForSource(ctx, name)
		if err != nil {
			logger.Error("Failed to compute insights: %v", err)
			continue
		}
		svc.Print(report)
	}
}
