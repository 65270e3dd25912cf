package store

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/joseph-ayodele/receipts-agent/internal/common"
	"github.com/joseph-ayodele/receipts-agent/internal/entity"
)

// RecordStore is the persistence contract the orchestrator depends on.
type RecordStore interface {
	Put(ctx context.Context, rec *entity.ExtractionRecord) error
}

var csvHeader = []string{
	"file_name",
	"total_amount_before_tax",
	"total_amount_after_tax",
	"calculated_items_sum",
	"reconciliation_passed",
}

// Store persists one JSON document per processed file (keyed by stem,
// last-write-wins), appends a flattened row to the CSV log, and mirrors the
// row into the SQLite index when one is attached.
type Store struct {
	dir     string
	csvPath string
	index   *Index // optional
	logger  *slog.Logger

	mu sync.Mutex // serializes CSV appends
}

func NewStore(dir, csvName string, index *Index, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &Store{
		dir:     dir,
		csvPath: filepath.Join(dir, csvName),
		index:   index,
		logger:  logger,
	}, nil
}

// RecordPath returns the deterministic JSON path for a document stem.
func (s *Store) RecordPath(stem string) string {
	return filepath.Join(s.dir, stem+".json")
}

// Put writes the record to every sink. Sink failures do not roll back the
// others: each is logged, and the combined error is surfaced to the caller
// as a PERSISTENCE_FAILURE.
func (s *Store) Put(ctx context.Context, rec *entity.ExtractionRecord) error {
	var errs []error

	if err := s.writeJSON(rec); err != nil {
		s.logger.Error("store.put.json_error", "file_stem", rec.FileStem(), "error", err)
		errs = append(errs, err)
	}
	if err := s.appendCSV(rec); err != nil {
		s.logger.Error("store.put.csv_error", "file_stem", rec.FileStem(), "error", err)
		errs = append(errs, err)
	}
	if s.index != nil {
		if err := s.index.Upsert(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return common.NewAppError("PERSISTENCE_FAILURE", "write extraction record", errors.Join(errs...))
	}
	s.logger.Info("store.put.ok", "file_stem", rec.FileStem(), "path", s.RecordPath(rec.FileStem()))
	return nil
}

func (s *Store) writeJSON(rec *entity.ExtractionRecord) error {
	b, err := json.MarshalIndent(rec, "", "    ")
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	if err := os.WriteFile(s.RecordPath(rec.FileStem()), b, 0o644); err != nil {
		return fmt.Errorf("write record json: %w", err)
	}
	return nil
}

func (s *Store) appendCSV(rec *entity.ExtractionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, statErr := os.Stat(s.csvPath)
	writeHeader := os.IsNotExist(statErr)

	f, err := os.OpenFile(s.csvPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open csv log: %w", err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			s.logger.Warn("store.csv.close_error", "error", err)
		}
	}()

	w := csv.NewWriter(f)
	if writeHeader {
		if err := w.Write(csvHeader); err != nil {
			return fmt.Errorf("write csv header: %w", err)
		}
	}
	row := []string{
		rec.FileName,
		rec.TotalBeforeTax,
		rec.TotalAfterTax,
		rec.CalculatedItemsSum.StringFixed(2),
		strconv.FormatBool(rec.ReconciliationPassed),
	}
	if err := w.Write(row); err != nil {
		return fmt.Errorf("write csv row: %w", err)
	}
	w.Flush()
	return w.Error()
}
