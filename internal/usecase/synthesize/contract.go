package synthesize

import "context"

// Generator produces answer text from a serialized prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string, maxTokens int) (string, error)
}
