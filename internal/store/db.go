package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"github.com/joseph-ayodele/receipts-agent/internal/entity"
)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS records (
	file_stem            TEXT PRIMARY KEY,
	file_name            TEXT NOT NULL,
	total_before_tax     TEXT NOT NULL DEFAULT '',
	total_after_tax      TEXT NOT NULL DEFAULT '',
	calculated_items_sum TEXT NOT NULL DEFAULT '0',
	reconciliation_passed INTEGER NOT NULL DEFAULT 0,
	failure_kind         TEXT NOT NULL DEFAULT '',
	item_count           INTEGER NOT NULL DEFAULT 0,
	processed_at         TEXT NOT NULL
);
`

// Row is one flattened record in the index, the shape exports consume.
type Row struct {
	FileStem       string
	FileName       string
	TotalBeforeTax string
	TotalAfterTax  string
	CalculatedSum  string
	Passed         bool
	FailureKind    string
	ItemCount      int
	ProcessedAt    time.Time
}

// Index is a SQLite view over processed records, keyed by file stem with
// last-write-wins. It backs bulk reporting; the JSON documents stay the
// canonical per-document artifact.
type Index struct {
	db     *sql.DB
	logger *slog.Logger
}

// OpenIndex opens (creating if needed) the index database at path.
// Use ":memory:" for an ephemeral index.
func OpenIndex(path string, logger *slog.Logger) (*Index, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open index db: %w", err)
	}
	// Single writer; also keeps :memory: databases on one connection.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schemaDDL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init index schema: %w", err)
	}
	return &Index{db: db, logger: logger}, nil
}

func (ix *Index) Close() error {
	return ix.db.Close()
}

// Upsert writes the flattened record row, replacing any prior row for the
// same stem.
func (ix *Index) Upsert(ctx context.Context, rec *entity.ExtractionRecord) error {
	_, err := ix.db.ExecContext(ctx, `
		INSERT INTO records (
			file_stem, file_name, total_before_tax, total_after_tax,
			calculated_items_sum, reconciliation_passed, failure_kind,
			item_count, processed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(file_stem) DO UPDATE SET
			file_name            = excluded.file_name,
			total_before_tax     = excluded.total_before_tax,
			total_after_tax      = excluded.total_after_tax,
			calculated_items_sum = excluded.calculated_items_sum,
			reconciliation_passed = excluded.reconciliation_passed,
			failure_kind         = excluded.failure_kind,
			item_count           = excluded.item_count,
			processed_at         = excluded.processed_at`,
		rec.FileStem(), rec.FileName, rec.TotalBeforeTax, rec.TotalAfterTax,
		rec.CalculatedItemsSum.String(), boolToInt(rec.ReconciliationPassed),
		string(rec.FailureKind), len(rec.Items),
		rec.ProcessedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		ix.logger.Error("store.index.upsert_error", "file_stem", rec.FileStem(), "error", err)
		return fmt.Errorf("index upsert: %w", err)
	}
	return nil
}

// List returns all indexed rows ordered by processing time.
func (ix *Index) List(ctx context.Context) ([]Row, error) {
	rows, err := ix.db.QueryContext(ctx, `
		SELECT file_stem, file_name, total_before_tax, total_after_tax,
		       calculated_items_sum, reconciliation_passed, failure_kind,
		       item_count, processed_at
		FROM records ORDER BY processed_at`)
	if err != nil {
		return nil, fmt.Errorf("index list: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			ix.logger.Warn("store.index.rows_close_error", "error", err)
		}
	}()

	var out []Row
	for rows.Next() {
		var r Row
		var passed int
		var processedAt string
		if err := rows.Scan(&r.FileStem, &r.FileName, &r.TotalBeforeTax, &r.TotalAfterTax,
			&r.CalculatedSum, &passed, &r.FailureKind, &r.ItemCount, &processedAt); err != nil {
			return nil, fmt.Errorf("index scan: %w", err)
		}
		r.Passed = passed != 0
		if ts, err := time.Parse(time.RFC3339Nano, processedAt); err == nil {
			r.ProcessedAt = ts
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
