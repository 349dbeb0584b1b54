package llm

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/genai"

	"github.com/telmi-agent/server/internal/agent/model"
	logx "github.com/telmi-agent/server/pkg/logger"
)

// GeminiCompleter wraps the Gemini API behind the Completer boundary.
type GeminiCompleter struct {
	client  *genai.Client
	model   string
	config  *genai.GenerateContentConfig
	timeout time.Duration
}

// NewGeminiCompleter creates a Gemini client from config.
func NewGeminiCompleter(ctx context.Context, cfg model.LLMConfig) (*GeminiCompleter, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions.BaseURL = cfg.BaseURL
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Gemini client")
		return nil, fmt.Errorf("error creating Gemini client: %w", err)
	}

	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	genCfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(cfg.Temperature),
	}
	if cfg.MaxTokens > 0 {
		genCfg.MaxOutputTokens = int32(cfg.MaxTokens)
	}

	return &GeminiCompleter{
		client:  client,
		model:   cfg.Model,
		config:  genCfg,
		timeout: timeout,
	}, nil
}

// Complete sends the prompt and returns the concatenated text parts.
func (c *GeminiCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	started := time.Now()
	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), c.config)
	if err != nil {
		return "", fmt.Errorf("gemini generate content: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("gemini returned empty response")
	}

	logx.Debug().
		Str("provider", "gemini").
		Str("model", c.model).
		Dur("duration", time.Since(started)).
		Msg("LLM completion")
	return text, nil
}
