package main

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resultText(r *mcp.CallToolResult) string {
	if r == nil {
		return ""
	}
	for _, c := range r.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestHandleWeather(t *testing.T) {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]interface{}{"city": "Delhi"}

	res, err := handleWeather(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Equal(t, "Weather in Delhi: 34°C, haze, humidity 41%", resultText(res))
}

func TestHandleWeatherErrors(t *testing.T) {
	for _, args := range []map[string]interface{}{{}, {"city": "Atlantis"}} {
		req := mcp.CallToolRequest{}
		req.Params.Arguments = args
		res, err := handleWeather(context.Background(), req)
		require.NoError(t, err)
		assert.True(t, res.IsError)
	}
}

func TestHandleReview(t *testing.T) {
	req := mcp.GetPromptRequest{}
	req.Params.Arguments = map[string]string{"code": "x := 1"}

	res, err := handleReview(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "Review go code", res.Description)
	require.Len(t, res.Messages, 1)
	text, ok := res.Messages[0].Content.(mcp.TextContent)
	require.True(t, ok)
	assert.Contains(t, text.Text, "```go\nx := 1\n```")

	req.Params.Arguments = map[string]string{}
	_, err = handleReview(context.Background(), req)
	assert.Error(t, err)
}

func TestHandleConfig(t *testing.T) {
	req := mcp.ReadResourceRequest{}
	req.Params.URI = "config://app"

	contents, err := handleConfig(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, contents, 1)
	text, ok := contents[0].(mcp.TextResourceContents)
	require.True(t, ok)

	var cfg map[string]any
	require.NoError(t, json.Unmarshal([]byte(text.Text), &cfg))
	assert.Equal(t, "hybrid-demo", cfg["name"])
	assert.Contains(t, cfg["cities"], "delhi")
}

func TestNewServerRegistersCapabilities(t *testing.T) {
	s := newServer()
	require.NotNil(t, s)

	msg := s.HandleMessage(context.Background(), []byte(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	data, err := json.Marshal(msg)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"fetch-weather"`)
}
