package core

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/joseph-ayodele/receipts-agent/constants"
	"github.com/joseph-ayodele/receipts-agent/internal/common"
	"github.com/joseph-ayodele/receipts-agent/internal/entity"
	"github.com/joseph-ayodele/receipts-agent/internal/llm"
	"github.com/joseph-ayodele/receipts-agent/internal/ocr"
	"github.com/joseph-ayodele/receipts-agent/internal/reconcile"
	"github.com/joseph-ayodele/receipts-agent/internal/store"
)

// Processor drives one document through OCR → prompt → LLM → reconciliation
// → persistence. Collaborators are injected once at startup; the processor
// holds no mutable state and invocations for different files may run in
// parallel.
type Processor struct {
	logger *slog.Logger
	ocr    ocr.LayoutExtractor
	llm    llm.Completer
	engine *reconcile.Engine
	store  store.RecordStore
}

func NewProcessor(
	logger *slog.Logger,
	layout ocr.LayoutExtractor,
	completer llm.Completer,
	engine *reconcile.Engine,
	recordStore store.RecordStore,
) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	if engine == nil {
		engine = reconcile.NewEngine(logger)
	}
	return &Processor{
		logger: logger,
		ocr:    layout,
		llm:    completer,
		engine: engine,
		store:  recordStore,
	}
}

// Process runs the full pipeline for one document path.
//
// A nil record with nil error means the path was skipped (not a regular
// file, or a transient name); the skip is logged, never silent. An OCR
// fault aborts the invocation with no record. Everything after a returned
// LLM completion resolves into a persisted record, including malformed
// output and upstream sentinel payloads.
func (p *Processor) Process(ctx context.Context, path string) (*entity.ExtractionRecord, error) {
	name := filepath.Base(path)

	// Re-validate at processing time: the trigger's view may be stale.
	st, err := os.Stat(path)
	if err != nil || !st.Mode().IsRegular() {
		p.logger.Info("processor.skip", "path", path, "reason", "not a regular file")
		return nil, nil
	}
	if constants.IsTransientName(name) {
		p.logger.Info("processor.skip", "path", path, "reason", "transient filename")
		return nil, nil
	}

	start := time.Now()
	p.logger.Info("processor.start", "file", name)

	markdown, err := p.ocr.GetLayoutAsMarkdown(ctx, path)
	if err != nil {
		// Fatal to this invocation; no record is written for OCR faults.
		p.logger.Error("processor.ocr.failed", "file", name, "error", err)
		if common.IsCollaboratorError(err) {
			return nil, err
		}
		return nil, common.NewCollaboratorError("ocr", "layout extraction", err)
	}
	p.logger.Info("processor.ocr.ok", "file", name, "markdown_bytes", len(markdown))

	prompt := llm.BuildExtractionPrompt(markdown)

	completion, err := p.llm.Complete(ctx, prompt)
	if err != nil {
		p.logger.Error("processor.llm.failed", "file", name, "error", err)
		return nil, common.NewCollaboratorError("llm", "completion", err)
	}

	rec := p.engine.Reconcile(completion, name)

	if err := p.store.Put(ctx, rec); err != nil {
		// Logged, not rolled back: the extraction result stands.
		p.logger.Error("processor.persist.failed", "file", name, "error", err)
		return rec, err
	}

	p.logger.Info("processor.ok",
		"file", name,
		"failure_kind", string(rec.FailureKind),
		"reconciliation_passed", rec.ReconciliationPassed,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return rec, nil
}
