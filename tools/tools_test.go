package tools

import (
	"context"
	"testing"

	"github.com/m4xw311/hybrid/config"
	"github.com/m4xw311/hybrid/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisabledClient(t *testing.T) {
	ctx := context.Background()
	var c Client = Disabled{}

	assert.False(t, c.Enabled())
	assert.True(t, c.Discover(ctx).Empty())

	_, err := c.CallTool(ctx, "fetch-weather", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCapability))
	assert.Contains(t, err.Error(), NotConfiguredMessage)

	_, err = c.GetPrompt(ctx, "review-code", nil)
	assert.Contains(t, err.Error(), NotConfiguredMessage)

	_, err = c.ReadResource(ctx, "config://app")
	assert.Contains(t, err.Error(), NotConfiguredMessage)
}

func TestCapabilitiesEmpty(t *testing.T) {
	assert.True(t, Capabilities{Diagnostics: []string{"tools/list error: x"}}.Empty())
	assert.False(t, Capabilities{Resources: []string{"config://app"}}.Empty())
}

func TestFilterWildcards(t *testing.T) {
	f, err := NewFilter(&config.Toolset{Name: "weather", Tools: []string{"fetch-*", "review-code"}})
	require.NoError(t, err)

	assert.True(t, f.Allows("fetch-weather"))
	assert.True(t, f.Allows("review-code"))
	assert.False(t, f.Allows("delete-everything"))
	assert.Equal(t, []string{"fetch-weather", "review-code"}, f.Apply([]string{"fetch-weather", "rm", "review-code"}))

	err = f.Check("rm")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tool 'rm' is not in toolset 'weather'")
	assert.NoError(t, f.Check("fetch-weather"))
}

func TestFilterWithoutToolsetAllowsEverything(t *testing.T) {
	f, err := NewFilter(nil)
	require.NoError(t, err)
	assert.True(t, f.Allows("anything"))
	assert.Equal(t, []string{"a", "b"}, f.Apply([]string{"a", "b"}))

	var nilFilter *Filter
	assert.True(t, nilFilter.Allows("anything"))
}

func TestFilterEmptyToolsetAllowsNothing(t *testing.T) {
	f, err := NewFilter(&config.Toolset{Name: "none", Tools: []string{}})
	require.NoError(t, err)
	assert.False(t, f.Allows("fetch-weather"))
	assert.Empty(t, f.Apply([]string{"fetch-weather"}))
}

func TestFilterRejectsBadPattern(t *testing.T) {
	_, err := NewFilter(&config.Toolset{Name: "bad", Tools: []string{"fetch-["}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid glob pattern 'fetch-['")
}
