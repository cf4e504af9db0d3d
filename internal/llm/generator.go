package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Upendra2003/Aira-Backend/internal/assembler"
)

// Generator produces one assistant reply for an assembled turn context.
type Generator interface {
	Complete(ctx context.Context, gc assembler.GenerationContext) (string, error)
}

// Config controls generator construction.
type Config struct {
	Mode    string
	BaseURL string
	APIKey  string
	Model   string
}

// NewGenerator picks a backend by mode: "http" talks to an OpenAI-compatible
// chat-completions endpoint (Groq in production), "mock" answers locally,
// "auto" uses http when an API key is configured.
func NewGenerator(cfg Config) (Generator, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	if mode == "" {
		mode = "auto"
	}

	switch mode {
	case "auto":
		if strings.TrimSpace(cfg.APIKey) != "" {
			return NewHTTPGenerator(cfg), nil
		}
		return NewMockGenerator(), nil
	case "http":
		if strings.TrimSpace(cfg.APIKey) == "" {
			return nil, errors.New("generator API key is required for http mode")
		}
		return NewHTTPGenerator(cfg), nil
	case "mock":
		return NewMockGenerator(), nil
	default:
		return nil, fmt.Errorf("unsupported generator mode %q", cfg.Mode)
	}
}
