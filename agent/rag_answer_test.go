package agent

import (
	"context"
	"fmt"
	"testing"

	"github.com/m4xw311/hybrid/metrics"
	"github.com/m4xw311/hybrid/session"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnswerRAG(t *testing.T) {
	llmClient := &scriptedLLM{final: "  Login checks the password.\n"}
	retriever := &fakeRetriever{}
	caps := &fakeCapabilities{enabled: true}
	a := newTestAgent(t, llmClient, retriever, caps, 5)
	a.Metrics = metrics.New()

	var turns []session.Message
	res, err := a.AnswerRAG(context.Background(), "login", ProcessCallbacks{
		OnTurn: func(m session.Message) { turns = append(turns, m) },
	})
	require.NoError(t, err)

	assert.Equal(t, "Login checks the password.", res.Answer)
	assert.Equal(t, "[1] docs/login.md (chunk 0)\nsnippet", res.Context)
	assert.False(t, res.Forced)
	assert.Equal(t, []string{"login"}, retriever.queries)
	assert.Empty(t, caps.calls)

	// One plain-text completion with the system prompt and the context turn.
	require.Len(t, llmClient.calls, 1)
	assert.Equal(t, []bool{false}, llmClient.jsonModes)
	assert.Equal(t, []session.Message{
		{Role: session.RoleSystem, Content: a.Config.SystemPrompt},
		{Role: session.RoleUser, Content: "Use the context below to answer the question.\n\nContext:\n" +
			"[1] docs/login.md (chunk 0)\nsnippet\n\nQuestion: login"},
	}, llmClient.calls[0])

	require.Len(t, res.Session.Messages, 3)
	assert.Equal(t, session.Message{Role: session.RoleAssistant, Content: "Login checks the password."}, res.Session.Messages[2])
	assert.Equal(t, res.Session.Messages, turns)
	assert.Equal(t, 1.0, testutil.ToFloat64(a.Metrics.Outcomes.WithLabelValues(metrics.OutcomeAnswered)))
}

func TestAnswerRAGFailures(t *testing.T) {
	retriever := &fakeRetriever{err: fmt.Errorf("qdrant down")}
	llmClient := &scriptedLLM{final: "unused"}
	a := newTestAgent(t, llmClient, retriever, nil, 5)

	res, err := a.AnswerRAG(context.Background(), "login", ProcessCallbacks{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "retrieval failed")
	assert.Contains(t, err.Error(), "qdrant down")
	assert.NotNil(t, res.Session)
	assert.Empty(t, llmClient.calls)

	llmClient = &scriptedLLM{finalErr: fmt.Errorf("ollama down")}
	a = newTestAgent(t, llmClient, &fakeRetriever{}, nil, 5)
	a.Metrics = metrics.New()
	_, err = a.AnswerRAG(context.Background(), "login", ProcessCallbacks{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "answer completion failed")
	assert.Equal(t, 1.0, testutil.ToFloat64(a.Metrics.Outcomes.WithLabelValues(metrics.OutcomeFailed)))
}
