package prompt

import (
	"fmt"
	"strings"
	"time"

	"ai-chatbot-be/pkg/store"
)

// Evidence is one retrieved chunk shown to the model
type Evidence struct {
	DocumentID string
	ChunkIndex int
	Text       string
	Score      float64
}

// ContextualBuilder assembles the single completion prompt for a user turn:
// instructions, long-term summary, recent turns, evidence and the question.
type ContextualBuilder struct {
	summary  string
	recent   []store.Turn
	evidence []Evidence
	query    string
	now      time.Time
}

// NewContextualBuilder creates a new contextual prompt builder
func NewContextualBuilder(summary string, recent []store.Turn, query string) *ContextualBuilder {
	return &ContextualBuilder{
		summary: summary,
		recent:  recent,
		query:   query,
		now:     time.Now(),
	}
}

func (b *ContextualBuilder) WithEvidence(evidence []Evidence) *ContextualBuilder {
	b.evidence = evidence
	return b
}

func (b *ContextualBuilder) WithTime(now time.Time) *ContextualBuilder {
	b.now = now
	return b
}

func (b *ContextualBuilder) Build() string {
	var prompt strings.Builder

	b.writeTask(&prompt)
	b.writeSummary(&prompt)
	b.writeRecentTurns(&prompt)
	b.writeReferenceMaterial(&prompt)
	b.writeUserQuery(&prompt)

	return prompt.String()
}

func (b *ContextualBuilder) writeTask(prompt *strings.Builder) {
	prompt.WriteString("<task>\n")
	prompt.WriteString("You are a helpful conversational assistant.\n")
	prompt.WriteString(fmt.Sprintf("The current time is %s.\n", b.now.Format("Monday, 2 January 2006 15:04 MST")))
	prompt.WriteString("Answer in the same language the user writes in.\n")
	prompt.WriteString("Use the conversation summary and recent conversation to stay consistent with what was said before.\n")
	if len(b.evidence) > 0 {
		prompt.WriteString("Ground factual answers in the reference material and cite it by its [n] label.\n")
		prompt.WriteString("If the material does not contain what is asked, say so honestly.\n")
	}
	prompt.WriteString("</task>\n\n")
}

func (b *ContextualBuilder) writeSummary(prompt *strings.Builder) {
	if b.summary == "" {
		return
	}
	prompt.WriteString("<conversation_summary>\n")
	prompt.WriteString(b.summary)
	prompt.WriteString("\n</conversation_summary>\n\n")
}

func (b *ContextualBuilder) writeRecentTurns(prompt *strings.Builder) {
	if len(b.recent) == 0 {
		return
	}
	prompt.WriteString("<recent_conversation>\n")
	writeTurns(prompt, b.recent)
	prompt.WriteString("</recent_conversation>\n\n")
}

func (b *ContextualBuilder) writeReferenceMaterial(prompt *strings.Builder) {
	if len(b.evidence) == 0 {
		return
	}
	prompt.WriteString("<reference_material>\n")
	for i, ev := range b.evidence {
		if i > 0 {
			prompt.WriteString("\n---\n")
		}
		prompt.WriteString(fmt.Sprintf("[%d] (document %s, chunk %d)\n", i+1, ev.DocumentID, ev.ChunkIndex))
		prompt.WriteString(ev.Text)
		prompt.WriteString("\n")
	}
	prompt.WriteString("</reference_material>\n\n")
}

func (b *ContextualBuilder) writeUserQuery(prompt *strings.Builder) {
	prompt.WriteString("<user_question>\n")
	prompt.WriteString(b.query)
	prompt.WriteString("\n</user_question>\n\n")
	prompt.WriteString("Now provide your response:")
}

func writeTurns(prompt *strings.Builder, turns []store.Turn) {
	for _, t := range turns {
		speaker := "User"
		if t.Role == store.RoleAssistant {
			speaker = "Assistant"
		}
		prompt.WriteString(speaker)
		prompt.WriteString(": ")
		prompt.WriteString(t.NormalizedContent)
		prompt.WriteString("\n")
	}
}
