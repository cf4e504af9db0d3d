package llm

import (
	"fmt"
	"strings"

	"github.com/Upendra2003/Aira-Backend/internal/assembler"
	"github.com/Upendra2003/Aira-Backend/internal/store"
)

// Message is one chat-completions message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const systemPromptHeader = `You are AIRA, a warm and grounded wellness companion. You listen first,
reflect what you hear, and keep your replies short and human. You never
diagnose, prescribe, or claim to be a therapist. When a message hints at
crisis or self-harm, gently encourage reaching out to a trusted person or
a local helpline.

Style rules:
- Answer in at most a few short sentences.
- Split natural pauses with the ||| separator so the client can render
  separate chat bubbles.
- Open the conversation with the continuity line below before responding
  to the new message.`

// BuildMessages renders an assembled turn context into the chat-completions
// message list: one system message carrying persona, continuity, memory and
// reference snippets, then the rolling history, then the new user message.
func BuildMessages(gc assembler.GenerationContext) []Message {
	var sys strings.Builder
	sys.WriteString(systemPromptHeader)

	if gc.ContinuityPhrase != "" {
		sys.WriteString("\n\nContinuity line for this turn:\n")
		sys.WriteString(gc.ContinuityPhrase)
	}
	if gc.MemorySummary != "" {
		sys.WriteString("\n\nWhat you remember about this user:\n")
		sys.WriteString(gc.MemorySummary)
	}
	if len(gc.RetrievedSnippets) > 0 {
		sys.WriteString("\n\nReference replies in your voice, adapt rather than quote:\n")
		for i, snippet := range gc.RetrievedSnippets {
			sys.WriteString(fmt.Sprintf("%d. %s\n", i+1, snippet))
		}
	}

	messages := make([]Message, 0, len(gc.History)+2)
	messages = append(messages, Message{Role: "system", Content: sys.String()})

	for _, turn := range gc.History {
		role := "user"
		if turn.Role == store.RoleAI {
			role = "assistant"
		}
		messages = append(messages, Message{Role: role, Content: turn.Content})
	}

	messages = append(messages, Message{Role: "user", Content: gc.UserMessage})
	return messages
}
