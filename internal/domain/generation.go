package domain

import "context"

// Generator is the text-generation collaborator contract.
type Generator interface {
	Generate(ctx context.Context, prompt string) (Completion, error)
}

// Completion is the generated text and its token usage.
type Completion struct {
	Text  string
	Usage TokenUsage
	Model string
}
