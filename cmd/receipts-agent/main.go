package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joseph-ayodele/receipts-agent/internal/common"
	"github.com/joseph-ayodele/receipts-agent/internal/core"
	"github.com/joseph-ayodele/receipts-agent/internal/core/async"
	"github.com/joseph-ayodele/receipts-agent/internal/llm/gemini"
	"github.com/joseph-ayodele/receipts-agent/internal/ocr"
	"github.com/joseph-ayodele/receipts-agent/internal/reconcile"
	"github.com/joseph-ayodele/receipts-agent/internal/store"
	"github.com/joseph-ayodele/receipts-agent/internal/watch"
)

func main() {
	cfg := common.LoadConfig()

	// One log sink, opened once at startup; every entry goes to stdout and
	// the log file through the same structured handler.
	logPath := cfg.Store.LogFile
	if logPath == "" {
		logPath = filepath.Join(cfg.Store.OutputDir, "processing_log.txt")
	}
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		slog.Error("failed to create log directory", "error", err)
		os.Exit(1)
	}
	logFile, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		slog.Error("failed to open log file", "path", logPath, "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = logFile.Close()
	}()

	logger := slog.New(slog.NewJSONHandler(io.MultiWriter(os.Stdout, logFile), &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	if err := os.MkdirAll(cfg.Watch.Dir, 0o755); err != nil {
		logger.Error("failed to create watch directory", "dir", cfg.Watch.Dir, "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Collaborators are constructed once, up front; missing credentials
	// already failed Validate, and the constructors refuse to degrade.
	ocrClient, err := ocr.NewClient(ocr.Config{
		Endpoint:     cfg.OCR.Endpoint,
		Key:          cfg.OCR.Key,
		APIVersion:   cfg.OCR.APIVersion,
		PollInterval: cfg.OCR.PollInterval,
		Timeout:      cfg.OCR.Timeout,
	}, logger)
	if err != nil {
		logger.Error("failed to build ocr client", "error", err)
		os.Exit(1)
	}
	llmClient, err := gemini.NewClient(gemini.Config{
		APIKey:  cfg.LLM.APIKey,
		BaseURL: cfg.LLM.BaseURL,
		Model:   cfg.LLM.Model,
		Timeout: cfg.LLM.Timeout,
	}, logger)
	if err != nil {
		logger.Error("failed to build gemini client", "error", err)
		os.Exit(1)
	}

	dbPath := cfg.Store.DBPath
	if dbPath == "" {
		dbPath = filepath.Join(cfg.Store.OutputDir, "records.db")
	}
	index, err := store.OpenIndex(dbPath, logger)
	if err != nil {
		logger.Error("failed to open record index", "path", dbPath, "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := index.Close(); err != nil {
			logger.Warn("record index close error", "error", err)
		}
	}()

	recordStore, err := store.NewStore(cfg.Store.OutputDir, cfg.Store.CSVName, index, logger)
	if err != nil {
		logger.Error("failed to build record store", "error", err)
		os.Exit(1)
	}

	processor := core.NewProcessor(logger, ocrClient, llmClient, reconcile.NewEngine(logger), recordStore)
	queue := async.NewProcessorQueue(processor, logger,
		async.WithWorkers(cfg.Watch.Workers),
		async.WithQueueSize(cfg.Watch.QueueSize),
	)

	evCh, errCh, err := watch.StartWatcher(ctx, watch.Config{
		Dir:         cfg.Watch.Dir,
		SettleDelay: cfg.Watch.SettleDelay,
		SeenTTL:     cfg.Watch.SeenTTL,
	}, logger)
	if err != nil {
		logger.Error("failed to start watcher", "dir", cfg.Watch.Dir, "error", err)
		os.Exit(1)
	}

	logger.Info("watching for receipts", "dir", cfg.Watch.Dir, "output", cfg.Store.OutputDir)

	go func() {
		for err := range errCh {
			logger.Error("watch error", "error", err)
		}
	}()

	for path := range evCh {
		_ = queue.Enqueue(ctx, async.Job{Path: path})
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	queue.Shutdown(shutdownCtx)
	logger.Info("stopped")
}
