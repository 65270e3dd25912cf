package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/receipts-agent/internal/store"
)

// Service is a tiny façade over the record index that produces XLSX bytes
// for bulk reporting.
type Service struct {
	index  *store.Index
	logger *slog.Logger
}

func NewService(index *store.Index, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{index: index, logger: logger}
}

// ExportXLSX returns an XLSX workbook (as bytes) covering every processed
// record in the index.
func (s *Service) ExportXLSX(ctx context.Context) ([]byte, error) {
	start := time.Now()

	rows, err := s.index.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}

	f := excelize.NewFile()
	const sheet = "Receipts"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)

	headers := []string{
		"File Name",
		"Total Before Tax",
		"Total After Tax",
		"Calculated Items Sum",
		"Reconciliation Passed",
		"Failure Kind",
		"Item Count",
		"Processed At",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	rowIdx := 2
	for _, r := range rows {
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, rowIdx)
			_ = f.SetCellValue(sheet, cell, v)
		}
		write(1, r.FileName)
		write(2, r.TotalBeforeTax)
		write(3, r.TotalAfterTax)
		write(4, r.CalculatedSum)
		write(5, r.Passed)
		write(6, r.FailureKind)
		write(7, r.ItemCount)
		if !r.ProcessedAt.IsZero() {
			write(8, r.ProcessedAt.Format(time.RFC3339))
		}
		rowIdx++
	}

	_ = f.SetColWidth(sheet, "A", "A", 32) // file name
	_ = f.SetColWidth(sheet, "B", "D", 18) // amounts
	_ = f.SetColWidth(sheet, "E", "F", 20) // outcome
	_ = f.SetColWidth(sheet, "H", "H", 24) // timestamp

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"rows", len(rows),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}
