package terminal

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/m4xw311/hybrid/agent"
	"github.com/m4xw311/hybrid/config"
	"github.com/m4xw311/hybrid/llm"
	"github.com/m4xw311/hybrid/session"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRetriever struct{}

func (stubRetriever) Retrieve(ctx context.Context, query string) (string, error) {
	return session.NoContext, nil
}

// scripted replies with the given directives in order.
type scripted struct {
	replies []string
}

func (s *scripted) Chat(ctx context.Context, messages []session.Message, jsonMode bool) (*session.Message, error) {
	reply := s.replies[0]
	s.replies = s.replies[1:]
	return &session.Message{Role: session.RoleAssistant, Content: reply}, nil
}

func newTerminal(client llm.LLMClient, verbosity agent.ToolVerbosity, input string) (*Terminal, *bytes.Buffer) {
	a := agent.New(config.Default(), client, stubRetriever{}, nil, zerolog.Nop())
	term := New(a, verbosity)
	out := &bytes.Buffer{}
	term.in = strings.NewReader(input)
	term.out = out
	return term, out
}

func TestTerminalNew(t *testing.T) {
	a := agent.New(config.Default(), &llm.MockLLMClient{}, stubRetriever{}, nil, zerolog.Nop())
	term := New(a, agent.ToolVerbosityNone)
	require.NotNil(t, term)
	assert.Same(t, a, term.agent)
	assert.Equal(t, os.Stdin, term.in)
}

func TestTerminalRunAnswersEachLine(t *testing.T) {
	term, out := newTerminal(&llm.MockLLMClient{}, agent.ToolVerbosityNone, "first\n\nsecond\n/quit\nnever\n")

	require.NoError(t, term.Run(context.Background(), "initial"))

	text := out.String()
	assert.Contains(t, text, "Hybrid: I am a mock LLM. You said: 'initial'.")
	assert.Contains(t, text, "Hybrid: I am a mock LLM. You said: 'first'.")
	assert.Contains(t, text, "Hybrid: I am a mock LLM. You said: 'second'.")
	assert.NotContains(t, text, "never")
}

func TestTerminalVerbosityInfo(t *testing.T) {
	client := &scripted{replies: []string{
		`{"action":"retrieve","arguments":{"query":"auth"}}`,
		`{"action":"final","answer":"JWT"}`,
	}}
	term, out := newTerminal(client, agent.ToolVerbosityInfo, "")

	require.NoError(t, term.Ask(context.Background(), "how is auth done?"))
	assert.Contains(t, out.String(), "[step 1] retrieve \"auth\"\n")
	assert.NotContains(t, out.String(), "final")
	assert.Contains(t, out.String(), "Hybrid: JWT\n")
}

func TestTerminalVerbosityAllShowsTurns(t *testing.T) {
	client := &scripted{replies: []string{
		`{"action":"tool","name":"fetch-weather","arguments":{"city":"Delhi"}}`,
		`{"action":"final","answer":"unknown"}`,
	}}
	term, out := newTerminal(client, agent.ToolVerbosityAll, "")

	require.NoError(t, term.Ask(context.Background(), "weather in Delhi"))
	text := out.String()
	assert.Contains(t, text, "[step 1] tool `fetch-weather` with args: map[city:Delhi]")
	assert.Contains(t, text, "  system> "+agent.RestrictionNotice)
	assert.NotContains(t, text, "Available Tools:")
}

func TestTerminalWritesTranscript(t *testing.T) {
	term, _ := newTerminal(&llm.MockLLMClient{}, agent.ToolVerbosityNone, "")
	term.TranscriptPath = filepath.Join(t.TempDir(), "transcript.json")

	require.NoError(t, term.Ask(context.Background(), "hello"))
	data, err := os.ReadFile(term.TranscriptPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"content": "hello"`)
}

func TestTerminalRAGOnly(t *testing.T) {
	client := &scripted{replies: []string{"JWT tokens"}}
	term, out := newTerminal(client, agent.ToolVerbosityInfo, "")
	term.RAGOnly = true

	require.NoError(t, term.Ask(context.Background(), "how is auth done?"))
	assert.Equal(t, "Hybrid: JWT tokens\n", out.String())
}
