package tools

import (
	"testing"

	"github.com/m4xw311/hybrid/config"
	"github.com/stretchr/testify/assert"
)

func TestNormalizeWeatherArguments(t *testing.T) {
	n := NewNormalizer(nil)

	tests := []struct {
		name   string
		tool   string
		args   any
		latest string
		want   any
	}{
		{
			name: "bare string",
			tool: "fetch-weather",
			args: "  Delhi ",
			want: map[string]any{"city": "Delhi"},
		},
		{
			name: "direct key priority",
			tool: "fetch-weather",
			args: map[string]any{"query": "weather", "location": "Pune"},
			want: map[string]any{"city": "Pune"},
		},
		{
			name: "blank direct key is skipped",
			tool: "fetch-weather",
			args: map[string]any{"city": "  ", "town": "Goa"},
			want: map[string]any{"city": "Goa"},
		},
		{
			name: "key containing city",
			tool: "Fetch-Weather",
			args: map[string]any{"targetCity": "Oslo", "units": "metric"},
			want: map[string]any{"city": "Oslo"},
		},
		{
			name:   "cue in latest user turn",
			tool:   "fetch-weather",
			args:   map[string]any{},
			latest: "What is the weather IN 'Paris', France?",
			want:   map[string]any{"city": "Paris"},
		},
		{
			name:   "explicit cue wins over in",
			tool:   "fetch-weather",
			args:   nil,
			latest: "weather in my area; City: Mumbai\nthanks",
			want:   map[string]any{"city": "Mumbai"},
		},
		{
			name:   "cue followed by nothing falls through to next cue",
			tool:   "fetch-weather",
			args:   map[string]any{},
			latest: "city=, forecast for Rome",
			want:   map[string]any{"city": "Rome"},
		},
		{
			name:   "nothing found returns original",
			tool:   "fetch-weather",
			args:   map[string]any{"units": "metric"},
			latest: "weather please",
			want:   map[string]any{"units": "metric"},
		},
		{
			name:   "other tools untouched",
			tool:   "review-code",
			args:   map[string]any{"code": "x"},
			latest: "review this in detail",
			want:   map[string]any{"code": "x"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, n.Normalize(tt.tool, tt.args, tt.latest))
		})
	}
}

func TestNormalizerCustomRule(t *testing.T) {
	n := NewNormalizer([]config.ArgumentRule{
		{Tool: "lookup-stock", Field: "symbol", Keys: []string{"ticker"}, Cues: []string{"symbol "}},
	})

	assert.Equal(t, map[string]any{"symbol": "ACME"}, n.Normalize("lookup-stock", map[string]any{"ticker": "ACME"}, ""))
	assert.Equal(t, map[string]any{"symbol": "XYZ"}, n.Normalize("lookup-stock", nil, "price of symbol XYZ, today"))
	// The default rule is still present.
	assert.Equal(t, map[string]any{"city": "Delhi"}, n.Normalize("fetch-weather", "Delhi", ""))
}

func TestNormalizerRuleOverridesDefault(t *testing.T) {
	n := NewNormalizer([]config.ArgumentRule{
		{Tool: "fetch-weather", Field: "location", Keys: []string{"city"}},
	})
	assert.Equal(t, map[string]any{"location": "Delhi"}, n.Normalize("fetch-weather", map[string]any{"city": "Delhi"}, ""))
}

func TestCleanCandidate(t *testing.T) {
	assert.Equal(t, "Paris", cleanCandidate(` "Paris", France`))
	assert.Equal(t, "New York", cleanCandidate("New York;\nnext"))
	assert.Equal(t, "", cleanCandidate("  "))
}
