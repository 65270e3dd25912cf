package reconcile

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/receipts-agent/internal/entity"
	"github.com/joseph-ayodele/receipts-agent/internal/llm"
)

// Engine turns one raw LLM completion into a fully-formed ExtractionRecord.
// Every input text, however malformed, yields a record; nothing raises past
// this boundary.
type Engine struct {
	logger *slog.Logger
	schema map[string]any
}

func NewEngine(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		logger: logger,
		schema: llm.BuildReceiptJSONSchema(),
	}
}

// completion mirrors the wire contract. Amounts stay raw so non-numeric
// tokens survive verbatim into the record.
type completion struct {
	Error   string `json:"error"`
	Message string `json:"message"`

	TotalBeforeTax json.RawMessage  `json:"total_amount_before_tax"`
	TotalAfterTax  json.RawMessage  `json:"total_amount_after_tax"`
	Items          []completionItem `json:"items"`
}

type completionItem struct {
	Name   string          `json:"item_name"`
	Amount json.RawMessage `json:"item_amount"`
}

// Reconcile parses rawText, repairs what it can, recomputes the items sum,
// and flags agreement with the stated pre-tax total. fileName comes from the
// source path and always overrides anything the model emitted.
func (e *Engine) Reconcile(rawText, fileName string) *entity.ExtractionRecord {
	rec := &entity.ExtractionRecord{
		FileName:    fileName,
		Items:       []entity.LineItem{},
		ProcessedAt: time.Now().UTC(),
	}

	var c completion
	if err := json.Unmarshal([]byte(rawText), &c); err != nil {
		e.logger.Warn("reconcile.malformed_output", "file", fileName, "error", err)
		rec.FailureKind = entity.FailureMalformedOutput
		rec.TotalBeforeTax = entity.SentinelMalformed
		rec.TotalAfterTax = entity.SentinelMalformed
		rec.RawResponse = strings.TrimSpace(rawText)
		rec.ErrorDetail = err.Error()
		return rec
	}

	// Upstream faults arrive as a successfully-parsed sentinel payload, not
	// as an error from the collaborator.
	if c.Error != "" {
		e.logger.Warn("reconcile.upstream_failure", "file", fileName, "code", c.Error, "message", c.Message)
		rec.FailureKind = entity.FailureUpstream
		rec.TotalBeforeTax = entity.SentinelUpstream
		rec.TotalAfterTax = entity.SentinelUpstream
		rec.RawResponse = strings.TrimSpace(rawText)
		rec.ErrorDetail = fmt.Sprintf("LLM API Error: %s: %s", c.Error, c.Message)
		return rec
	}

	// Contract drift (extra keys, string amounts, missing fields) is worth
	// surfacing but never fatal: coercion below handles what it can.
	if err := llm.ValidateJSONAgainstSchema(e.schema, []byte(rawText)); err != nil {
		rec.Warnings = append(rec.Warnings, fmt.Sprintf("schema: %v", err))
	}

	sum := decimal.Zero
	for _, it := range c.Items {
		item := entity.LineItem{Name: it.Name, Amount: tokenOf(it.Amount)}
		if v, ok := coerceDecimal(it.Amount); ok {
			item.Value = v
			sum = sum.Add(v)
		} else {
			item.NonNumeric = true
			e.logger.Warn("reconcile.item_coercion_warning",
				"file", fileName, "item_name", it.Name, "item_amount", item.Amount)
			rec.Warnings = append(rec.Warnings,
				fmt.Sprintf("non-numeric amount for item %q: %s", it.Name, item.Amount))
		}
		rec.Items = append(rec.Items, item)
	}

	rec.TotalBeforeTax = tokenOf(c.TotalBeforeTax)
	rec.TotalAfterTax = tokenOf(c.TotalAfterTax)

	// Missing or non-numeric stated total compares as 0.00; the raw token is
	// still surfaced above.
	target, ok := coerceDecimal(c.TotalBeforeTax)
	if !ok {
		target = decimal.Zero
		rec.Warnings = append(rec.Warnings,
			fmt.Sprintf("total_amount_before_tax not numeric (%q); comparing against 0.00", rec.TotalBeforeTax))
	}

	roundedSum := sum.Round(2)
	roundedTarget := target.Round(2)
	passed := roundedSum.Equal(roundedTarget)

	rec.CalculatedItemsSum = roundedSum
	rec.ReconciliationPassed = passed
	rec.Reconciliation = entity.ReconciliationOutcome{
		Passed:      passed,
		ItemsSum:    roundedSum,
		StatedTotal: roundedTarget,
	}

	e.logger.Info("reconcile.ok",
		"file", fileName,
		"items", len(rec.Items),
		"calculated_sum", roundedSum.String(),
		"stated_total", roundedTarget.String(),
		"passed", passed,
	)
	return rec
}

// tokenOf renders a raw JSON value as the text the model emitted: numbers
// keep their literal form, strings lose their quotes, anything else keeps
// its JSON encoding. Absent values come back empty.
func tokenOf(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}

// coerceDecimal attempts numeric coercion of a raw JSON value. An absent
// value coerces to zero, matching the contract's "missing means 0" reading
// for amounts; a present non-numeric token does not coerce.
func coerceDecimal(raw json.RawMessage) (decimal.Decimal, bool) {
	if len(raw) == 0 {
		return decimal.Zero, true
	}
	tok := strings.TrimSpace(tokenOf(raw))
	if tok == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(tok)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}
