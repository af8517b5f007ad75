package generation

import "context"

// Provider turns a prompt into answer text. A nil Provider means
// answer generation is unavailable and callers degrade to returning
// retrieved context directly.
type Provider interface {
	// Name identifies the provider.
	Name() string
	// Generate produces a completion for the given system and user
	// prompts.
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}
