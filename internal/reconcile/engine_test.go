package reconcile_test

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/receipts-agent/internal/entity"
	"github.com/joseph-ayodele/receipts-agent/internal/reconcile"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestReconcile_ExactMatchPasses(t *testing.T) {
	raw := `{"total_amount_before_tax": 45.50, "total_amount_after_tax": 50.00,
		"items":[{"item_name":"Coffee","item_amount":20.50},{"item_name":"Sandwich","item_amount":25.00}]}`

	rec := reconcile.NewEngine(nil).Reconcile(raw, "receipt-001.jpg")

	require.False(t, rec.Failed())
	assert.Equal(t, "receipt-001.jpg", rec.FileName)
	assert.True(t, rec.CalculatedItemsSum.Equal(d("45.50")), "got %s", rec.CalculatedItemsSum)
	assert.True(t, rec.ReconciliationPassed)
	assert.True(t, rec.Reconciliation.Passed)
	assert.True(t, rec.Reconciliation.StatedTotal.Equal(d("45.50")))
	require.Len(t, rec.Items, 2)
	assert.Equal(t, "Coffee", rec.Items[0].Name)
	assert.Equal(t, "20.50", rec.Items[0].Amount)
	assert.Equal(t, "45.50", rec.TotalBeforeTax)
	assert.Equal(t, "50.00", rec.TotalAfterTax)
}

func TestReconcile_MismatchFails(t *testing.T) {
	raw := `{"total_amount_before_tax": 45.50, "total_amount_after_tax": 50.00,
		"items":[{"item_name":"Coffee","item_amount":20.50},{"item_name":"Sandwich","item_amount":24.99}]}`

	rec := reconcile.NewEngine(nil).Reconcile(raw, "r.jpg")

	require.False(t, rec.Failed())
	assert.False(t, rec.ReconciliationPassed)
	assert.True(t, rec.CalculatedItemsSum.Equal(d("45.49")))
	assert.True(t, rec.Reconciliation.StatedTotal.Equal(d("45.50")))
}

func TestReconcile_RoundsBothSidesBeforeComparing(t *testing.T) {
	// 19.995 rounds to 20.00 on the sum side; the stated total is already
	// 20.00. A raw comparison would fail, a round-compare must pass.
	raw := `{"total_amount_before_tax": 20.00, "total_amount_after_tax": 21.00,
		"items":[{"item_name":"Widget","item_amount":19.995}]}`

	rec := reconcile.NewEngine(nil).Reconcile(raw, "r.jpg")

	assert.True(t, rec.ReconciliationPassed)
	assert.True(t, rec.CalculatedItemsSum.Equal(d("20.00")))
}

func TestReconcile_NonNumericItemExcludedButRetained(t *testing.T) {
	raw := `{"total_amount_before_tax": 10.00, "total_amount_after_tax": 11.00,
		"items":[{"item_name":"Tea","item_amount":10.00},{"item_name":"Mystery","item_amount":"N/A"}]}`

	rec := reconcile.NewEngine(nil).Reconcile(raw, "r.jpg")

	require.False(t, rec.Failed())
	require.Len(t, rec.Items, 2)
	assert.Equal(t, "Mystery", rec.Items[1].Name)
	assert.Equal(t, "N/A", rec.Items[1].Amount)
	assert.True(t, rec.Items[1].NonNumeric)
	assert.False(t, rec.Items[0].NonNumeric)
	assert.True(t, rec.CalculatedItemsSum.Equal(d("10.00")))
	assert.True(t, rec.ReconciliationPassed)

	found := false
	for _, w := range rec.Warnings {
		if strings.Contains(w, "Mystery") {
			found = true
		}
	}
	assert.True(t, found, "expected a coercion warning naming the item, got %v", rec.Warnings)
}

func TestReconcile_StringAmountsStillCoerce(t *testing.T) {
	// Contract drift: numeric values sent as strings. Schema violation is a
	// warning, not a failure; coercion still recovers the numbers.
	raw := `{"total_amount_before_tax": "12.50", "total_amount_after_tax": "13.00",
		"items":[{"item_name":"Bagel","item_amount":"12.50"}]}`

	rec := reconcile.NewEngine(nil).Reconcile(raw, "r.jpg")

	require.False(t, rec.Failed())
	assert.True(t, rec.ReconciliationPassed)
	assert.Equal(t, "12.50", rec.TotalBeforeTax)
	assert.NotEmpty(t, rec.Warnings)
}

func TestReconcile_MalformedOutput(t *testing.T) {
	rec := reconcile.NewEngine(nil).Reconcile("not json", "r.jpg")

	assert.Equal(t, entity.FailureMalformedOutput, rec.FailureKind)
	assert.Equal(t, entity.SentinelMalformed, rec.TotalBeforeTax)
	assert.Equal(t, entity.SentinelMalformed, rec.TotalAfterTax)
	assert.Equal(t, "not json", rec.RawResponse)
	assert.Empty(t, rec.Items)
	assert.True(t, rec.CalculatedItemsSum.IsZero())
	assert.False(t, rec.ReconciliationPassed)
	assert.Equal(t, "r.jpg", rec.FileName)
}

func TestReconcile_UpstreamErrorSentinel(t *testing.T) {
	raw := `{"error": "API_CALL_FAILED", "message": "429 resource exhausted"}`

	rec := reconcile.NewEngine(nil).Reconcile(raw, "r.jpg")

	assert.Equal(t, entity.FailureUpstream, rec.FailureKind)
	assert.Equal(t, entity.SentinelUpstream, rec.TotalBeforeTax)
	assert.Contains(t, rec.ErrorDetail, "API_CALL_FAILED")
	assert.Contains(t, rec.ErrorDetail, "429 resource exhausted")
	assert.Equal(t, raw, rec.RawResponse)
	assert.False(t, rec.ReconciliationPassed)
}

func TestReconcile_MissingBeforeTaxComparesAgainstZero(t *testing.T) {
	raw := `{"total_amount_after_tax": 5.00, "items": []}`

	rec := reconcile.NewEngine(nil).Reconcile(raw, "r.jpg")

	require.False(t, rec.Failed())
	assert.Equal(t, "", rec.TotalBeforeTax)
	assert.True(t, rec.ReconciliationPassed) // 0.00 == 0.00
}

func TestReconcile_NonNumericBeforeTaxSurfacedVerbatim(t *testing.T) {
	raw := `{"total_amount_before_tax": "unknown", "total_amount_after_tax": 5.00,
		"items":[{"item_name":"Pen","item_amount":2.00}]}`

	rec := reconcile.NewEngine(nil).Reconcile(raw, "r.jpg")

	require.False(t, rec.Failed())
	assert.Equal(t, "unknown", rec.TotalBeforeTax)
	assert.False(t, rec.ReconciliationPassed) // 2.00 != 0.00
	assert.True(t, rec.Reconciliation.StatedTotal.IsZero())
}

func TestReconcile_FileNameAlwaysFromSourcePath(t *testing.T) {
	raw := `{"file_name": "model-invented.jpg", "total_amount_before_tax": 1.00,
		"total_amount_after_tax": 1.00, "items":[{"item_name":"Gum","item_amount":1.00}]}`

	rec := reconcile.NewEngine(nil).Reconcile(raw, "actual.jpg")

	assert.Equal(t, "actual.jpg", rec.FileName)
}
