package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/m4xw311/hybrid/agent"
	"github.com/m4xw311/hybrid/config"
	"github.com/m4xw311/hybrid/llm"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVerbosity(t *testing.T) {
	tests := map[string]agent.ToolVerbosity{
		"":     agent.ToolVerbosityNone,
		"none": agent.ToolVerbosityNone,
		"info": agent.ToolVerbosityInfo,
		"all":  agent.ToolVerbosityAll,
	}
	for in, want := range tests {
		got, err := parseVerbosity(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	_, err := parseVerbosity("loud")
	assert.ErrorContains(t, err, "invalid tool verbosity 'loud'")
}

type stubRetriever struct{}

func (stubRetriever) Retrieve(ctx context.Context, query string) (string, error) {
	return "[1] auth.go (chunk 0)\nfunc Login() {}", nil
}

func TestRunOneShotModes(t *testing.T) {
	a := agent.New(config.Default(), &llm.MockLLMClient{}, stubRetriever{}, nil, zerolog.Nop())

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), a, options{verbosity: agent.ToolVerbosityNone}, strings.NewReader(""), &out, "hello"))
	assert.Equal(t, "Hybrid: I am a mock LLM. You said: 'hello'.\n", out.String())

	out.Reset()
	require.NoError(t, run(context.Background(), a, options{ragOnly: true, verbosity: agent.ToolVerbosityNone}, strings.NewReader(""), &out, "hello"))
	assert.Contains(t, out.String(), "Hybrid: I am a mock LLM. You said: 'Use the context below to answer the question.")
	assert.Contains(t, out.String(), "func Login() {}")
	assert.Contains(t, out.String(), "Question: hello'.")
}

func TestRunInteractive(t *testing.T) {
	a := agent.New(config.Default(), &llm.MockLLMClient{}, stubRetriever{}, nil, zerolog.Nop())

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), a, options{verbosity: agent.ToolVerbosityNone}, strings.NewReader("hi\n/quit\n"), &out, ""))
	assert.Contains(t, out.String(), "Hybrid is ready. Type your question.\n")
	assert.Contains(t, out.String(), "Hybrid: I am a mock LLM. You said: 'hi'.")
}
