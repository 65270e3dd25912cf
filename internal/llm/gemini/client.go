package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/joseph-ayodele/receipts-agent/internal/llm"
)

// Fault codes encoded into the sentinel payload.
const (
	codeAPICallFailed   = "API_CALL_FAILED"
	codeEmptyResponse   = "EMPTY_RESPONSE"
	codeUnexpectedError = "UNEXPECTED_ERROR"
)

// Complete implements llm.Completer against the generateContent REST API with
// responseMimeType=application/json so the model cannot wrap the payload in
// prose or code fences.
//
// API and transport faults are returned as the {"error","message"} sentinel
// string per the collaborator contract; the caller decides what to record.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	start := time.Now()

	body := map[string]any{
		"contents": []map[string]any{
			{"parts": []map[string]any{{"text": prompt}}},
		},
		"generationConfig": map[string]any{
			"responseMimeType": "application/json",
		},
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent",
		strings.TrimRight(c.cfg.BaseURL, "/"), c.cfg.Model)

	raw, status, err := llm.SendJSON(ctx, c.http, endpoint, body, map[string]string{
		"x-goog-api-key": c.cfg.APIKey,
	}, c.logger)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		c.logger.Error("gemini.complete.http_error",
			"status", status, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return sentinel(codeAPICallFailed, err.Error()), nil
	}

	var gc struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.Unmarshal(raw, &gc); err != nil {
		c.logger.Error("gemini.complete.decode_error", "error", err, "raw_bytes", len(raw))
		return sentinel(codeUnexpectedError, fmt.Sprintf("decode gemini response: %v", err)), nil
	}
	if len(gc.Candidates) == 0 || len(gc.Candidates[0].Content.Parts) == 0 {
		c.logger.Error("gemini.complete.no_candidates", "raw_bytes", len(raw))
		return sentinel(codeEmptyResponse, "no candidates in gemini response"), nil
	}

	var b strings.Builder
	for _, p := range gc.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	text := b.String()

	c.logger.Info("gemini.complete.ok",
		"model", c.cfg.Model,
		"prompt_len", len(prompt),
		"completion_len", len(text),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return text, nil
}

// sentinel builds the structured error payload the agent expects instead of a
// raised error. json.Marshal keeps arbitrary detail text safe to embed.
func sentinel(code, message string) string {
	b, err := json.Marshal(map[string]string{"error": code, "message": message})
	if err != nil {
		return `{"error": "` + code + `"}`
	}
	return string(b)
}
