package agent

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDirective(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Directive
	}{
		{"final wrapped in prose", "assistant says:\n{\"action\":\"final\",\"answer\":\"ok\"}\n", FinalAnswer{Text: "ok"}},
		{"final from arguments.text", `{"action":"final","arguments":{"text":"4"}}`, FinalAnswer{Text: "4"}},
		{"final from bare string arguments", `{"action":"final","arguments":"4"}`, FinalAnswer{Text: "4"}},
		{"final from answer", `{"action":"final","answer":"4"}`, FinalAnswer{Text: "4"}},
		{"blank answer falls through", `{"action":"final","answer":"  ","arguments":{"response":"r","final":"f"}}`, FinalAnswer{Text: "f"}},
		{"final from name", `{"action":"final","name":"n"}`, FinalAnswer{Text: "n"}},
		{"action is trimmed and case-insensitive", `{"action":"  FINAL ","answer":"x"}`, FinalAnswer{Text: "x"}},
		{"retrieve", `{"action":"retrieve","arguments":{"query":"how is auth done"}}`, Retrieve{Query: "how is auth done"}},
		{
			"tool",
			`{"action":"tool","name":"fetch-weather","arguments":{"city":"Delhi"}}`,
			ToolCall{Name: "fetch-weather", Arguments: map[string]any{"city": "Delhi"}},
		},
		{"tool without arguments", `{"action":"tool","name":"fetch-weather"}`, ToolCall{Name: "fetch-weather", Arguments: map[string]any{}}},
		{"tool with null arguments", `{"action":"tool","name":"fetch-weather","arguments":null}`, ToolCall{Name: "fetch-weather", Arguments: map[string]any{}}},
		{"tool with string arguments", `{"action":"tool","name":"fetch-weather","arguments":"Delhi"}`, ToolCall{Name: "fetch-weather", Arguments: "Delhi"}},
		{"tool name kept as written", `{"action":"tool","name":" fetch-weather "}`, ToolCall{Name: " fetch-weather ", Arguments: map[string]any{}}},
		{"prompt", `{"action":"prompt","name":"review-code","arguments":{"code":"x"}}`, PromptCall{Name: "review-code", Arguments: map[string]any{"code": "x"}}},
		{"resource from uri", `{"action":"resource","uri":"config://app"}`, ResourceRead{URI: "config://app"}},
		{"resource from arguments.uri", `{"action":"resource","arguments":{"uri":"config://app"}}`, ResourceRead{URI: "config://app"}},
		{"resource from name", `{"action":"resource","name":"config://app"}`, ResourceRead{URI: "config://app"}},
		{"resource uri wins over name", `{"action":"resource","uri":"a://1","name":"b://2"}`, ResourceRead{URI: "a://1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDirective(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseDirectiveKeepsNumbersExact(t *testing.T) {
	got, err := ParseDirective(`{"action":"tool","name":"lookup-order","arguments":{"id":9007199254740993,"ratio":0.25,"tags":[1,"a"]}}`)
	require.NoError(t, err)

	args := got.(ToolCall).Arguments.(map[string]any)
	assert.Equal(t, json.Number("9007199254740993"), args["id"])
	assert.Equal(t, json.Number("0.25"), args["ratio"])
	assert.Equal(t, []any{json.Number("1"), "a"}, args["tags"])

	encoded, err := json.Marshal(args)
	require.NoError(t, err)
	assert.Contains(t, string(encoded), `"id":9007199254740993`)
}

func TestParseDirectiveProseEquivalence(t *testing.T) {
	bare := `{"action":"tool","name":"fetch-weather","arguments":{"city":"Delhi","days":2}}`
	want, err := ParseDirective(bare)
	require.NoError(t, err)

	for _, wrapped := range []string{
		"Here you go: " + bare,
		bare + "\nLet me know.",
		"```json\n" + bare + "\n```",
	} {
		got, err := ParseDirective(wrapped)
		require.NoError(t, err, wrapped)
		assert.Equal(t, want, got)
	}
}

func TestParseDirectiveErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"no object", "I will retrieve now", "no JSON object found in model output"},
		{"braces reversed", "} then {", "no JSON object found in model output"},
		{"broken object", `{"action": "final", }`, "failed to parse JSON decision"},
		{"retrieve without query", `{"action":"retrieve","arguments":{}}`, "retrieve action requires arguments.query"},
		{"retrieve with non-string query", `{"action":"retrieve","arguments":{"query":3}}`, "retrieve action requires arguments.query"},
		{"tool without name", `{"action":"tool","name":"  "}`, "tool action requires name"},
		{"prompt without name", `{"action":"prompt"}`, "prompt action requires name"},
		{"resource without uri", `{"action":"resource","arguments":{}}`, "resource action requires uri"},
		{"final without answer", `{"action":"final","arguments":{"other":"x"}}`, "final action requires answer"},
		{"unknown action", `{"action":"Search"}`, "unknown action: search"},
		{"missing action", `{"name":"x"}`, "invalid directive"},
		{"action not a string", `{"action":3}`, "invalid directive"},
		{"name not a string", `{"action":"tool","name":7}`, "invalid directive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDirective(tt.raw)
			require.Error(t, err)
			var perr *ParseError
			assert.ErrorAs(t, err, &perr)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestDirectiveActions(t *testing.T) {
	assert.Equal(t, ActionRetrieve, Retrieve{}.Action())
	assert.Equal(t, ActionTool, ToolCall{}.Action())
	assert.Equal(t, ActionPrompt, PromptCall{}.Action())
	assert.Equal(t, ActionResource, ResourceRead{}.Action())
	assert.Equal(t, ActionFinal, FinalAnswer{}.Action())
}
