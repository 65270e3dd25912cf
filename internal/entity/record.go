package entity

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// FailureKind tags the terminal condition of a single extraction.
// An empty kind means the completion parsed cleanly (whether or not the
// reconciliation check passed).
type FailureKind string

const (
	FailureNone            FailureKind = ""
	FailureMalformedOutput FailureKind = "MALFORMED_OUTPUT"
	FailureUpstream        FailureKind = "UPSTREAM_FAILURE"
)

// Sentinel values written into the total fields when no numeric total could
// be extracted. Downstream consumers key off these exact strings.
const (
	SentinelMalformed = "JSON_FAIL"
	SentinelUpstream  = "PROCESS_FAIL"
)

// LineItem is one itemized row from a receipt. Amount preserves the token
// exactly as the model emitted it; Value carries the coerced decimal and is
// only meaningful when NonNumeric is false.
type LineItem struct {
	Name       string `json:"item_name"`
	Amount     string `json:"item_amount"`
	NonNumeric bool   `json:"non_numeric_amount,omitempty"`

	Value decimal.Decimal `json:"-"`
}

// ReconciliationOutcome is the arithmetic cross-check result: the recomputed
// items sum against the stated pre-tax total, both rounded to 2 decimals.
type ReconciliationOutcome struct {
	Passed      bool            `json:"passed"`
	ItemsSum    decimal.Decimal `json:"items_sum"`
	StatedTotal decimal.Decimal `json:"stated_total"`
}

// ExtractionRecord is the canonical output unit for one processed document.
// It is constructed once by the reconciliation engine and never mutated;
// re-processing the same document produces a new overwriting record.
type ExtractionRecord struct {
	FileName       string     `json:"file_name"`
	TotalBeforeTax string     `json:"total_amount_before_tax"`
	TotalAfterTax  string     `json:"total_amount_after_tax"`
	Items          []LineItem `json:"items"`

	CalculatedItemsSum   decimal.Decimal       `json:"calculated_items_sum"`
	ReconciliationPassed bool                  `json:"reconciliation_passed"`
	Reconciliation       ReconciliationOutcome `json:"reconciliation"`

	FailureKind FailureKind `json:"failure_kind,omitempty"`
	RawResponse string      `json:"raw_response,omitempty"`
	ErrorDetail string      `json:"error_detail,omitempty"`
	Warnings    []string    `json:"warnings,omitempty"`

	ProcessedAt time.Time `json:"processed_at"`
}

// Failed reports whether the record carries a terminal failure kind.
func (r *ExtractionRecord) Failed() bool {
	return r.FailureKind != FailureNone
}

// FileStem returns the record's document key: the file name without its
// extension. The result store is keyed by stem with last-write-wins.
func (r *ExtractionRecord) FileStem() string {
	return strings.TrimSuffix(r.FileName, filepath.Ext(r.FileName))
}
