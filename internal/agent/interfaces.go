package agent

import "context"

// AIClient sends one prompt and returns the raw model text. Failures are
// *TransportError values (or context errors when ctx ends first).
type AIClient interface {
	Ask(ctx context.Context, prompt string, maxOutputTokens int) (string, error)
}
