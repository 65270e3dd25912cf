package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joseph-ayodele/receipts-agent/constants"
	"github.com/joseph-ayodele/receipts-agent/internal/common"
	"github.com/joseph-ayodele/receipts-agent/internal/core"
	"github.com/joseph-ayodele/receipts-agent/internal/export"
	"github.com/joseph-ayodele/receipts-agent/internal/llm/gemini"
	"github.com/joseph-ayodele/receipts-agent/internal/ocr"
	"github.com/joseph-ayodele/receipts-agent/internal/reconcile"
	"github.com/joseph-ayodele/receipts-agent/internal/store"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		dir = flag.String("dir", "", "directory of receipt images to process (required)")
		out = flag.String("out", "", "output XLSX file path (optional, defaults to parent directory)")
	)
	flag.Parse()

	if *dir == "" {
		printError("Error: --dir is required\n")
		os.Exit(1)
	}
	if *out == "" {
		*out = filepath.Join(filepath.Dir(*dir), "receipts.xlsx")
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

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

	index, err := store.OpenIndex(":memory:", logger)
	if err != nil {
		logger.Error("failed to open record index", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = index.Close()
	}()

	recordStore, err := store.NewStore(cfg.Store.OutputDir, cfg.Store.CSVName, index, logger)
	if err != nil {
		logger.Error("failed to build record store", "error", err)
		os.Exit(1)
	}

	processor := core.NewProcessor(logger, ocrClient, llmClient, reconcile.NewEngine(logger), recordStore)

	entries, err := os.ReadDir(*dir)
	if err != nil {
		logger.Error("failed to read directory", "dir", *dir, "error", err)
		os.Exit(1)
	}

	processed := 0
	failures := 0
	skipped := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if constants.IsTransientName(name) || !constants.AllowedExt(filepath.Ext(name)) {
			skipped++
			continue
		}
		path := filepath.Join(*dir, name)
		rec, err := processor.Process(ctx, path)
		switch {
		case err != nil:
			logger.Error("failed to process file", "path", path, "error", err)
			failures++
		case rec == nil:
			skipped++
		default:
			processed++
		}
	}

	logger.Info("exporting to XLSX", "output", *out)
	exportService := export.NewService(index, logger)
	xlsxBytes, err := exportService.ExportXLSX(ctx)
	if err != nil {
		logger.Error("failed to export records", "error", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*out, xlsxBytes, 0o644); err != nil {
		logger.Error("failed to write output file", "error", err)
		os.Exit(1)
	}

	logger.Info("batch processing complete",
		"files_processed", processed,
		"failures", failures,
		"skipped", skipped,
		"output_file", *out)

	fmt.Printf("Batch processing complete!\n")
	fmt.Printf("- Files processed: %d\n", processed)
	fmt.Printf("- Failures: %d\n", failures)
	fmt.Printf("- Skipped: %d\n", skipped)
	fmt.Printf("- Output: %s\n", *out)
}
