package llm

import "context"

// Completer is the LLM collaborator interface the pipeline depends on.
//
// Complete returns the raw text completion for a prompt. Transport and API
// faults are NOT returned as errors: implementations encode them as a JSON
// sentinel string of shape {"error": "<code>", "message": "<detail>"} so the
// caller always receives a candidate payload. The error return is reserved
// for local faults (context cancellation, request encoding).
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}
