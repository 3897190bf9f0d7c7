package agent

import (
	"fmt"
	"strings"

	"github.com/m4xw311/hybrid/session"
	"github.com/m4xw311/hybrid/tools"
)

const (
	// RetrievalOnlyNotice is added after the system prompt when the question
	// asks not to use capabilities.
	RetrievalOnlyNotice = "User requested RAG-only mode for this query. Do not use MCP tool/prompt/resource actions. Use retrieve and final only."

	// RestrictionNotice is appended the first time the model asks for a
	// capability while none are reachable.
	RestrictionNotice = "MCP is unavailable in this session. Choose only: retrieve or final."

	unavailableNotice = "\n\nMCP is currently unavailable. Do not choose tool/prompt/resource. Use retrieve and final only."

	emptyCapabilitiesNotice = "\n\nMCP is configured but capability discovery returned no tools/prompts/resources. " +
		"Prefer retrieve/final unless user explicitly asks for MCP, and inspect MCP diagnostics."
)

// BuildSystemPrompt renders the instruction block that opens every session.
func BuildSystemPrompt(base string, caps tools.Capabilities, enabled bool) string {
	var b strings.Builder
	b.WriteString(base)
	b.WriteString("\n\nAvailable Tools:\n")
	b.WriteString(bulletList(caps.Tools))
	b.WriteString("\n\nAvailable Prompts:\n")
	b.WriteString(bulletList(caps.Prompts))
	b.WriteString("\n\nAvailable Resources:\n")
	b.WriteString(bulletList(caps.Resources))

	if len(caps.Diagnostics) > 0 {
		b.WriteString("\n\nMCP Diagnostics:\n")
		b.WriteString(strings.Join(caps.Diagnostics, "\n"))
	}

	switch {
	case !enabled:
		b.WriteString(unavailableNotice)
	case caps.Empty():
		b.WriteString(emptyCapabilitiesNotice)
	}
	return b.String()
}

func bulletList(items []string) string {
	if len(items) == 0 {
		return "- (none)"
	}
	lines := make([]string, len(items))
	for i, item := range items {
		lines[i] = "- " + item
	}
	return strings.Join(lines, "\n")
}

// IsRetrievalOnly reports whether text contains one of the trigger phrases,
// ignoring ASCII case.
func IsRetrievalOnly(text string, triggers []string) bool {
	lower := strings.ToLower(text)
	for _, t := range triggers {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" && strings.Contains(lower, t) {
			return true
		}
	}
	return false
}

// contextMessages is the two-turn transcript that asks for an answer drawn
// from contextText.
func contextMessages(systemPrompt, contextText, question string) []session.Message {
	return []session.Message{
		{Role: session.RoleSystem, Content: systemPrompt},
		{Role: session.RoleUser, Content: fmt.Sprintf(
			"Use the context below to answer the question.\n\nContext:\n%s\n\nQuestion: %s",
			contextText, question,
		)},
	}
}

// forcedFinalMessages is the two-turn transcript used once the step budget
// is spent.
func forcedFinalMessages(systemPrompt, contextText, question string) []session.Message {
	messages := contextMessages(systemPrompt, contextText, question)
	messages[1].Content += "\n\nReturn only a direct final answer in plain text. Do not return JSON."
	return messages
}
