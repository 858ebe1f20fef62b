package ai

import (
	"context"

	"google.golang.org/genai"
)

// JSONRequest describes one structured generation call. Schema is used by
// providers that support constrained decoding; FallbackPrompt (when set)
// replaces Prompt for providers that do not.
type JSONRequest struct {
	Prompt         string
	FallbackPrompt string
	System         string
	Schema         *genai.Schema
	Model          string
}

type JSONProvider interface {
	Name() string
	Generate(ctx context.Context, req JSONRequest) (ProviderResult, error)
	Ping(ctx context.Context) bool
}

type ProviderResult struct {
	Text  string
	Model string
}

type GenerateMetadata struct {
	Provider     string `json:"provider"`
	Model        string `json:"model"`
	UsedFallback bool   `json:"usedFallback"`
}
