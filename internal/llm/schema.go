package llm

// BuildReceiptJSONSchema returns the wire contract with the LLM as a
// JSON-Schema (draft 2020-12 subset) generic map: exactly three top-level
// fields, numeric totals, and an ordered items list. We use it locally to
// flag completions that drifted from the contract.
func BuildReceiptJSONSchema() map[string]any {
	item := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"item_name":   map[string]any{"type": "string"},
			"item_amount": map[string]any{"type": "number"},
		},
		"required": []string{"item_name", "item_amount"},
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"total_amount_before_tax": map[string]any{"type": "number"},
			"total_amount_after_tax":  map[string]any{"type": "number"},
			"items":                   map[string]any{"type": "array", "items": item},
		},
		"required": []string{"total_amount_before_tax", "total_amount_after_tax", "items"},
	}
}
