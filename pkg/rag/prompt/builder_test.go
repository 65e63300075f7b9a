package prompt

import (
	"strings"
	"testing"
	"time"

	"ai-chatbot-be/pkg/store"

	"github.com/stretchr/testify/assert"
)

func TestContextualBuilder_Sections(t *testing.T) {
	now := time.Date(2024, 3, 5, 14, 30, 0, 0, time.UTC)
	recent := []store.Turn{
		{Role: store.RoleUser, NormalizedContent: "my name is Ada"},
		{Role: store.RoleAssistant, NormalizedContent: "Nice to meet you, Ada."},
	}

	got := NewContextualBuilder("User likes tea.", recent, "What is the capital of France?").
		WithEvidence([]Evidence{
			{DocumentID: "doc-1", ChunkIndex: 0, Text: "Paris is the capital of France."},
			{DocumentID: "doc-1", ChunkIndex: 2, Text: "Lyon is in France."},
		}).
		WithTime(now).
		Build()

	assert.Contains(t, got, "Tuesday, 5 March 2024 14:30 UTC")
	assert.Contains(t, got, "<conversation_summary>\nUser likes tea.\n</conversation_summary>")
	assert.Contains(t, got, "User: my name is Ada\nAssistant: Nice to meet you, Ada.\n")
	assert.Contains(t, got, "[1] (document doc-1, chunk 0)\nParis is the capital of France.\n\n---\n[2] (document doc-1, chunk 2)")
	assert.True(t, strings.Index(got, "<reference_material>") < strings.Index(got, "<user_question>"))
	assert.True(t, strings.Index(got, "<conversation_summary>") < strings.Index(got, "<recent_conversation>"))
	assert.Contains(t, got, "<user_question>\nWhat is the capital of France?\n</user_question>")
}

func TestContextualBuilder_OmitsEmptySections(t *testing.T) {
	got := NewContextualBuilder("", nil, "Hello").Build()

	assert.NotContains(t, got, "<conversation_summary>")
	assert.NotContains(t, got, "<recent_conversation>")
	assert.NotContains(t, got, "<reference_material>")
	assert.NotContains(t, got, "cite it")
	assert.Contains(t, got, "Hello")
}

func TestBuildSummaryPrompt(t *testing.T) {
	got := BuildSummaryPrompt("", []store.Turn{
		{Role: store.RoleUser, NormalizedContent: "I live in Bangkok"},
	}, 120)

	assert.Contains(t, got, "(none)")
	assert.Contains(t, got, "User: I live in Bangkok")
	assert.Contains(t, got, "at most 120 words")

	merged := BuildSummaryPrompt("User is a nurse.", nil, 0)
	assert.Contains(t, merged, "User is a nurse.")
	assert.NotContains(t, merged, "at most")
}
