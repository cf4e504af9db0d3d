package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/Upendra2003/Aira-Backend/internal/assembler"
)

// MockGenerator provides deterministic local replies when no completion
// backend is configured.
type MockGenerator struct{}

func NewMockGenerator() *MockGenerator { return &MockGenerator{} }

func (g *MockGenerator) Complete(ctx context.Context, gc assembler.GenerationContext) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}

	base := strings.TrimSpace(gc.UserMessage)
	if base == "" {
		base = "I am listening."
	}

	reply := fmt.Sprintf("I hear you: %s ||| Take a breath, I'm right here with you.", base)
	if gc.ContinuityPhrase != "" {
		reply = gc.ContinuityPhrase + " ||| " + reply
	}
	return reply, nil
}
