// Package llm provides the text-generation service boundary. Every
// LLM-touching stage depends only on the single Complete operation; no
// streaming, function-calling or structured-output modes are assumed.
package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/telmi-agent/server/internal/agent/model"
)

// Completer is the single operation the workflow needs from a
// text-generation service. Implementations must bound every call with the
// configured timeout.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// New builds a Completer from config. Supported providers: openai (any
// OpenAI-compatible chat endpoint) and gemini.
func New(ctx context.Context, cfg model.LLMConfig) (Completer, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", "openai":
		return NewOpenAICompleter(cfg)
	case "gemini":
		return NewGeminiCompleter(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.Provider)
	}
}
