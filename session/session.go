package session

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// NoContext is reported when nothing has been retrieved yet.
const NoContext = "(no context found)"

type Message struct {
	Role    string `json:"role"` // "system", "user", "assistant", "tool"
	Content string `json:"content"`
}

// Session is the conversation state of a single question. It is created per
// question, owned by one goroutine, and discarded once an answer exists.
type Session struct {
	ID         string    `json:"id"`
	Messages   []Message `json:"messages"`
	ContextLog []string  `json:"context_log"`
	Step       int       `json:"step"`
	MaxSteps   int       `json:"max_steps"`

	restrictionAnnounced bool
}

// New creates an empty session with the given step budget (floored at 1).
func New(maxSteps int) *Session {
	if maxSteps < 1 {
		maxSteps = 1
	}
	return &Session{
		ID:       uuid.NewString(),
		Messages: []Message{},
		MaxSteps: maxSteps,
	}
}

// AddMessage appends a message to the session history.
func (s *Session) AddMessage(msg Message) {
	s.Messages = append(s.Messages, msg)
}

func (s *Session) AppendSystem(text string) {
	s.AddMessage(Message{Role: RoleSystem, Content: text})
}

func (s *Session) AppendUser(text string) {
	s.AddMessage(Message{Role: RoleUser, Content: text})
}

// AppendContext records retrieved context: it is shown to the model as a
// system turn and kept for the forced final prompt.
func (s *Session) AppendContext(text string) {
	s.ContextLog = append(s.ContextLog, text)
	s.AddMessage(Message{Role: RoleSystem, Content: text})
}

// AppendToolResult records a successful tool, prompt or resource result. It
// also counts as context.
func (s *Session) AppendToolResult(text string) {
	s.ContextLog = append(s.ContextLog, text)
	s.AddMessage(Message{Role: RoleTool, Content: text})
}

// AppendToolError records a failed collaborator call. It is shown to the
// model but not kept as context.
func (s *Session) AppendToolError(text string) {
	s.AddMessage(Message{Role: RoleTool, Content: text})
}

// Exhausted reports whether the step budget is used up.
func (s *Session) Exhausted() bool {
	return s.Step >= s.MaxSteps
}

// Advance counts one loop iteration.
func (s *Session) Advance() {
	s.Step++
}

// LatestUserQuery returns the content of the most recent user turn.
func (s *Session) LatestUserQuery() (string, bool) {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == RoleUser {
			return s.Messages[i].Content, true
		}
	}
	return "", false
}

// ContextText joins the context log with blank lines.
func (s *Session) ContextText() string {
	if len(s.ContextLog) == 0 {
		return NoContext
	}
	return strings.Join(s.ContextLog, "\n\n")
}

// MarkRestrictionAnnounced returns true the first time it is called.
func (s *Session) MarkRestrictionAnnounced() bool {
	if s.restrictionAnnounced {
		return false
	}
	s.restrictionAnnounced = true
	return true
}

// Save writes the transcript to path as indented JSON. The file is a debug
// artifact and is never loaded back.
func (s *Session) Save(path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize session: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}
