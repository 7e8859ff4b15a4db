package inference

import "context"

// TextGenerator produces a completion for a system and user prompt.
type TextGenerator interface {
	GenerateText(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// GenerationOptions bounds one completion.
type GenerationOptions struct {
	MaxTokens   int
	Temperature float64
}

var (
	// ChatOptions are used for contract Q&A.
	ChatOptions = GenerationOptions{MaxTokens: 4000, Temperature: 0.1}
	// DraftingOptions are used for the editor writing assistant.
	DraftingOptions = GenerationOptions{MaxTokens: 2000, Temperature: 0.5}
)
