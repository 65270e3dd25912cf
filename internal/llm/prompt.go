package llm

import "strings"

// BuildExtractionPrompt composes the fixed extraction prompt around the OCR
// markdown. The output-format section is deliberately strict: a single bare
// JSON object with exactly the three top-level fields, no prose, no code
// fences, so the response can be fed straight into the reconciliation engine.
func BuildExtractionPrompt(ocrMarkdown string) string {
	var b strings.Builder
	b.WriteString("# Role:\n")
	b.WriteString("    you are an assistant working in the finance department\n")
	b.WriteString("# Context:\n")
	b.WriteString("    you are given the ocr response from a receipt: ")
	b.WriteString(ocrMarkdown)
	b.WriteString("\n# Task:\n")
	b.WriteString("your job is to identify all the items mentioned in the receipt and their amounts and the total amount\n\n")
	b.WriteString("# Output format:\n")
	b.WriteString("**STRICTLY** output only a single, valid JSON object. Do not include any text, notes, or markdown formatting (like ```json) outside of the JSON object itself.\n")
	b.WriteString("The JSON object must have the following fields:\n")
	b.WriteString("total_amount_before_tax (float),\n")
	b.WriteString("total_amount_after_tax (float),\n")
	b.WriteString("items (list of dicts).\n")
	b.WriteString("items must be a list of dicts with fields: item_name (string), item_amount (float).\n")
	return b.String()
}
