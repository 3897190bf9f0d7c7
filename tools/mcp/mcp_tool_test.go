package mcp

import (
	"context"
	"testing"

	"github.com/m4xw311/hybrid/config"
	"github.com/m4xw311/hybrid/errors"
	"github.com/m4xw311/hybrid/tools"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnconfiguredClient(t *testing.T) {
	ctx := context.Background()
	c := NewClient(config.MCPServer{Name: "none"}, nil, zerolog.Nop())

	assert.False(t, c.Enabled())
	assert.Equal(t, tools.Capabilities{}, c.Discover(ctx))

	_, err := c.CallTool(ctx, "fetch-weather", map[string]any{"city": "Delhi"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCapability))
	assert.Contains(t, err.Error(), tools.NotConfiguredMessage)

	_, err = c.GetPrompt(ctx, "review-code", nil)
	assert.Contains(t, err.Error(), tools.NotConfiguredMessage)
	_, err = c.ReadResource(ctx, "config://app")
	assert.Contains(t, err.Error(), tools.NotConfiguredMessage)

	assert.NoError(t, c.Close())
}

func TestCallToolOutsideToolset(t *testing.T) {
	filter, err := tools.NewFilter(&config.Toolset{Name: "weather", Tools: []string{"fetch-*"}})
	require.NoError(t, err)
	c := NewClient(config.MCPServer{URL: "http://127.0.0.1:1/mcp"}, filter, zerolog.Nop())

	_, err = c.CallTool(context.Background(), "delete-repo", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tool 'delete-repo' is not in toolset 'weather'")
}

func TestDiscoverReportsEachFailure(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := NewClient(config.MCPServer{Name: "down", Command: "/nonexistent/mcp-server"}, nil, zerolog.Nop())

	caps := c.Discover(ctx)
	assert.True(t, caps.Empty())
	require.Len(t, caps.Diagnostics, 3)
	assert.Contains(t, caps.Diagnostics[0], "tools/list error: ")
	assert.Contains(t, caps.Diagnostics[1], "prompts/list error: ")
	assert.Contains(t, caps.Diagnostics[2], "resources/list error: ")
}

func TestRenderToolResult(t *testing.T) {
	out, err := renderToolResult(&mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: "Sunny, 31C"}},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"content":[{"type":"text","text":"Sunny, 31C"}],"isError":false}`, out)

	out, err = renderToolResult(nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"content":[],"isError":false}`, out)
}

func TestRenderPromptResult(t *testing.T) {
	out, err := renderPromptResult(&mcpsdk.GetPromptResult{
		Messages: []*mcpsdk.PromptMessage{
			{Role: "user", Content: &mcpsdk.TextContent{Text: "Review this code"}},
		},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"messages":[{"role":"user","content":[{"type":"text","text":"Review this code"}]}]}`, out)
}

func TestRenderResourceResult(t *testing.T) {
	out, err := renderResourceResult(&mcpsdk.ReadResourceResult{
		Contents: []*mcpsdk.ResourceContents{
			{URI: "config://app", Text: "debug=true"},
			{URI: "config://logo", Blob: []byte("hi")},
		},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"contents":[{"type":"text","text":"debug=true"},{"type":"blob","blob":"aGk="}]}`, out)
}

func TestArgumentObject(t *testing.T) {
	got, err := argumentObject(nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{}, got)

	got, err = argumentObject(map[string]any{"city": "Delhi"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"city": "Delhi"}, got)

	_, err = argumentObject("Delhi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tool arguments must be a JSON object")
}

func TestPromptArguments(t *testing.T) {
	assert.Nil(t, promptArguments("x"))
	assert.Equal(t, map[string]string{
		"code":  "fmt.Println()",
		"lines": "42",
		"opts":  `{"strict":true}`,
	}, promptArguments(map[string]any{
		"code":  "fmt.Println()",
		"lines": float64(42),
		"opts":  map[string]any{"strict": true},
	}))
}
