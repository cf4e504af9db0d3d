package llm

import (
	"strings"
	"testing"
	"time"

	"github.com/Upendra2003/Aira-Backend/internal/assembler"
	"github.com/Upendra2003/Aira-Backend/internal/store"
)

func TestBuildMessagesLayout(t *testing.T) {
	gc := assembler.GenerationContext{
		UserID:           "u1",
		ContinuityPhrase: "Good morning. ||| We talked earlier today at 08:15, what's up now?",
		MemorySummary:    "felt overwhelmed by coursework",
		History: []store.Turn{
			{Role: store.RoleUser, Content: "hey"},
			{Role: store.RoleAI, Content: "hey, good to see you"},
		},
		RetrievedSnippets: []string{"that sounds really hard"},
		UserMessage:       "still stressed",
		Now:               time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC),
	}

	msgs := BuildMessages(gc)
	if len(msgs) != 4 {
		t.Fatalf("len(msgs) = %d, want system + 2 history + user", len(msgs))
	}
	if msgs[0].Role != "system" {
		t.Fatalf("msgs[0].Role = %q, want system", msgs[0].Role)
	}
	for _, want := range []string{"AIRA", gc.ContinuityPhrase, gc.MemorySummary, "that sounds really hard"} {
		if !strings.Contains(msgs[0].Content, want) {
			t.Fatalf("system prompt missing %q", want)
		}
	}
	if msgs[1].Role != "user" || msgs[2].Role != "assistant" {
		t.Fatalf("history roles = %q,%q, want user,assistant", msgs[1].Role, msgs[2].Role)
	}
	last := msgs[len(msgs)-1]
	if last.Role != "user" || last.Content != "still stressed" {
		t.Fatalf("last message = %+v, want the new user message", last)
	}
}

func TestBuildMessagesNoHistory(t *testing.T) {
	msgs := BuildMessages(assembler.GenerationContext{UserMessage: "hi"})
	if len(msgs) != 2 {
		t.Fatalf("len(msgs) = %d, want system + user", len(msgs))
	}
}
