package llm

import (
	"strings"

	"github.com/m4xw311/hybrid/session"
)

// jsonModeInstruction is appended to the system prompt for providers that have
// no native JSON response mode.
const jsonModeInstruction = "Respond with exactly one JSON object and nothing else."

// turn is a provider-neutral message after role folding.
type turn struct {
	Role    string // "user" or "assistant"
	Content string
}

// foldTranscript turns a transcript into a system prompt plus strictly
// alternating user/assistant turns, which is what Anthropic-style and Gemini
// APIs accept. Leading system messages form the system prompt; later system
// and tool messages are delivered as labelled user content so corrections
// and fallback narration still reach the model.
func foldTranscript(messages []session.Message) (string, []turn) {
	var system []string
	var turns []turn
	leading := true

	for _, msg := range messages {
		if leading && msg.Role == session.RoleSystem {
			system = append(system, msg.Content)
			continue
		}
		leading = false

		role, content := "user", msg.Content
		switch msg.Role {
		case session.RoleAssistant:
			role = "assistant"
		case session.RoleSystem:
			content = "System: " + msg.Content
		case session.RoleTool:
			content = "Tool: " + msg.Content
		}
		if content == "" {
			continue
		}

		if n := len(turns); n > 0 && turns[n-1].Role == role {
			turns[n-1].Content += "\n\n" + content
			continue
		}
		turns = append(turns, turn{Role: role, Content: content})
	}

	return strings.Join(system, "\n\n"), turns
}

func systemWithJSONMode(system string, jsonMode bool) string {
	if !jsonMode {
		return system
	}
	if system == "" {
		return jsonModeInstruction
	}
	return system + "\n\n" + jsonModeInstruction
}
