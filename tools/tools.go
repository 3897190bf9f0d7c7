// Package tools describes what the agent can reach through a capability
// server: the discovered tool, prompt and resource names, the client contract
// used to invoke them, and the toolset patterns that narrow which tools are
// visible.
package tools

import (
	"context"
	"fmt"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/m4xw311/hybrid/config"
	"github.com/m4xw311/hybrid/errors"
)

// NotConfiguredMessage is returned by every call on a client without a
// transport.
const NotConfiguredMessage = "MCP is not configured. Set MCP_URL or MCP_COMMAND."

// Capabilities is the result of one discovery pass. Diagnostics holds one
// line per category whose listing failed.
type Capabilities struct {
	Tools       []string
	Prompts     []string
	Resources   []string
	Diagnostics []string
}

// Empty reports whether nothing at all was discovered.
func (c Capabilities) Empty() bool {
	return len(c.Tools) == 0 && len(c.Prompts) == 0 && len(c.Resources) == 0
}

// Client is the capability collaborator. Results are rendered as text; every
// call may fail independently.
type Client interface {
	Enabled() bool
	Discover(ctx context.Context) Capabilities
	CallTool(ctx context.Context, name string, args any) (string, error)
	GetPrompt(ctx context.Context, name string, args any) (string, error)
	ReadResource(ctx context.Context, uri string) (string, error)
}

// Disabled is the Client used when no transport is configured.
type Disabled struct{}

func (Disabled) Enabled() bool { return false }

func (Disabled) Discover(ctx context.Context) Capabilities { return Capabilities{} }

func (Disabled) CallTool(ctx context.Context, name string, args any) (string, error) {
	return "", errNotConfigured()
}

func (Disabled) GetPrompt(ctx context.Context, name string, args any) (string, error) {
	return "", errNotConfigured()
}

func (Disabled) ReadResource(ctx context.Context, uri string) (string, error) {
	return "", errNotConfigured()
}

func errNotConfigured() error {
	return errors.Kind(errors.ErrCapability, fmt.Errorf("%s", NotConfiguredMessage), "capability call")
}

// Filter restricts tools to those matching a toolset's glob patterns. The
// zero Filter allows everything.
type Filter struct {
	name       string
	patterns   []string
	restricted bool
}

// NewFilter validates the toolset patterns. A nil toolset allows all tools.
func NewFilter(ts *config.Toolset) (*Filter, error) {
	if ts == nil {
		return &Filter{}, nil
	}
	for _, pattern := range ts.Tools {
		if !doublestar.ValidatePattern(pattern) {
			return nil, errors.New("invalid glob pattern '%s' in toolset '%s'", pattern, ts.Name)
		}
	}
	return &Filter{name: ts.Name, patterns: ts.Tools, restricted: true}, nil
}

// Allows reports whether the tool name matches any pattern.
func (f *Filter) Allows(name string) bool {
	if f == nil || !f.restricted {
		return true
	}
	for _, pattern := range f.patterns {
		if ok, _ := doublestar.Match(pattern, name); ok {
			return true
		}
	}
	return false
}

// Apply returns the allowed subset of names, keeping their order.
func (f *Filter) Apply(names []string) []string {
	if f == nil || !f.restricted {
		return names
	}
	var out []string
	for _, n := range names {
		if f.Allows(n) {
			out = append(out, n)
		}
	}
	return out
}

// Check returns an error naming the toolset when name is not allowed.
func (f *Filter) Check(name string) error {
	if f.Allows(name) {
		return nil
	}
	return errors.Kind(errors.ErrCapability, fmt.Errorf("tool '%s' is not in toolset '%s'", name, f.name), "capability call")
}
