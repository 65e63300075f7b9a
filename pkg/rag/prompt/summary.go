package prompt

import (
	"fmt"
	"strings"

	"ai-chatbot-be/pkg/store"
)

// BuildSummaryPrompt asks the model to merge the turns leaving the short-term
// buffer into the running summary.
func BuildSummaryPrompt(priorSummary string, folded []store.Turn, maxWords int) string {
	var prompt strings.Builder

	prompt.WriteString("<task>\n")
	prompt.WriteString("You maintain the long-term memory of a conversation.\n")
	prompt.WriteString("Merge the existing summary and the new conversation turns into one updated summary.\n")
	prompt.WriteString("Keep facts the user stated about themselves, their goals, decisions and open questions.\n")
	prompt.WriteString("Drop greetings and small talk. Write in the third person, in the language of the conversation.\n")
	if maxWords > 0 {
		prompt.WriteString(fmt.Sprintf("Use at most %d words.\n", maxWords))
	}
	prompt.WriteString("</task>\n\n")

	prompt.WriteString("<existing_summary>\n")
	if priorSummary == "" {
		prompt.WriteString("(none)")
	} else {
		prompt.WriteString(priorSummary)
	}
	prompt.WriteString("\n</existing_summary>\n\n")

	prompt.WriteString("<new_turns>\n")
	writeTurns(&prompt, folded)
	prompt.WriteString("</new_turns>\n\n")

	prompt.WriteString("Respond with the updated summary only:")
	return prompt.String()
}
