package mcp

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/m4xw311/hybrid/config"
	"github.com/m4xw311/hybrid/errors"
	"github.com/m4xw311/hybrid/tools"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"
)

// Client talks to a single MCP server. The connection is opened on first use
// and reused for the rest of the process.
type Client struct {
	cfg    config.MCPServer
	filter *tools.Filter
	log    zerolog.Logger

	mu      sync.Mutex
	cmd     *exec.Cmd
	session *mcpsdk.ClientSession
}

var _ tools.Client = (*Client)(nil)

// NewClient returns a client for cfg. It never dials; a config without URL or
// command yields a client whose Enabled reports false.
func NewClient(cfg config.MCPServer, filter *tools.Filter, log zerolog.Logger) *Client {
	return &Client{cfg: cfg, filter: filter, log: log}
}

// Enabled reports whether a transport is configured.
func (c *Client) Enabled() bool {
	return c.cfg.Enabled()
}

func (c *Client) transport() mcpsdk.Transport {
	if url := strings.TrimSpace(c.cfg.URL); url != "" {
		if strings.EqualFold(c.cfg.Transport, "sse") {
			return mcpsdk.NewSSEClientTransport(url, nil)
		}
		return mcpsdk.NewStreamableClientTransport(url, nil)
	}
	cmd := exec.Command(c.cfg.Command, c.cfg.Args...)
	cmd.Stderr = os.Stderr
	c.cmd = cmd
	return mcpsdk.NewCommandTransport(cmd)
}

// connect returns the shared session, dialing if needed. A failed dial is
// not cached so the next call tries again.
//
// The connection is dialed on a context detached from ctx: an SSE stream is
// bound to the context of its GET request, and the session must outlive the
// discovery deadline that usually triggers the first dial. ctx still bounds
// the handshake.
func (c *Client) connect(ctx context.Context) (*mcpsdk.ClientSession, error) {
	if !c.Enabled() {
		return nil, errors.Kind(errors.ErrCapability, fmt.Errorf("%s", tools.NotConfiguredMessage), "connect")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != nil {
		return c.session, nil
	}

	type dialed struct {
		session *mcpsdk.ClientSession
		err     error
	}
	client := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "hybrid", Version: "v1.0.0"}, nil)
	transport := c.transport()
	done := make(chan dialed, 1)
	go func() {
		session, err := client.Connect(context.WithoutCancel(ctx), transport)
		done <- dialed{session, err}
	}()

	var d dialed
	select {
	case d = <-done:
	case <-ctx.Done():
		// The dial goroutine may still be starting the server process.
		cmd := c.cmd
		c.cmd = nil
		go func() {
			if late := <-done; late.session != nil {
				late.session.Close()
			}
			if cmd != nil && cmd.Process != nil {
				cmd.Process.Kill()
			}
		}()
		d.err = ctx.Err()
	}
	if d.err != nil {
		c.killServer()
		return nil, errors.Kind(errors.ErrCapability, d.err, "failed to connect to MCP server '%s'", c.cfg.Name)
	}

	c.session = d.session
	go c.watch(d.session)
	c.log.Info().Str("server", c.cfg.Name).Msg("connected to MCP server")
	return d.session, nil
}

// watch forgets session once its connection ends, so the next call redials.
func (c *Client) watch(session *mcpsdk.ClientSession) {
	err := session.Wait()
	c.forget(session)
	c.log.Debug().Err(err).Str("server", c.cfg.Name).Msg("MCP session ended")
}

// drop forgets session when err shows its connection is gone. Other errors
// (a cancelled call, a tool failure) leave the session in place.
func (c *Client) drop(session *mcpsdk.ClientSession, err error) {
	if !connectionLost(err) {
		return
	}
	c.log.Warn().Err(err).Str("server", c.cfg.Name).Msg("MCP connection lost")
	c.forget(session)
}

func (c *Client) forget(session *mcpsdk.ClientSession) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != session {
		return
	}
	session.Close()
	c.session = nil
	c.killServer()
}

// killServer stops a spawned server. Callers hold c.mu.
func (c *Client) killServer() {
	if c.cmd != nil && c.cmd.Process != nil {
		c.cmd.Process.Kill()
	}
	c.cmd = nil
}

func connectionLost(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, mcpsdk.ErrConnectionClosed) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.ErrClosedPipe) ||
		strings.Contains(err.Error(), "connection closed")
}

// Close ends the session and stops a spawned server.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var err error
	if c.session != nil {
		err = c.session.Close()
		c.session = nil
	}
	if c.cmd != nil {
		c.log.Info().Str("server", c.cfg.Name).Msg("terminating MCP server")
	}
	c.killServer()
	return err
}

// Discover lists tools, prompts and resources. Each listing fails on its
// own; a failure becomes a diagnostic line instead of an error.
func (c *Client) Discover(ctx context.Context) tools.Capabilities {
	var caps tools.Capabilities
	if !c.Enabled() {
		return caps
	}

	toolNames, err := c.listTools(ctx)
	if err != nil {
		caps.Diagnostics = append(caps.Diagnostics, "tools/list error: "+err.Error())
	}
	caps.Tools = c.filter.Apply(toolNames)

	caps.Prompts, err = c.listPrompts(ctx)
	if err != nil {
		caps.Diagnostics = append(caps.Diagnostics, "prompts/list error: "+err.Error())
	}

	caps.Resources, err = c.listResources(ctx)
	if err != nil {
		caps.Diagnostics = append(caps.Diagnostics, "resources/list error: "+err.Error())
	}

	c.log.Debug().
		Int("tools", len(caps.Tools)).
		Int("prompts", len(caps.Prompts)).
		Int("resources", len(caps.Resources)).
		Int("diagnostics", len(caps.Diagnostics)).
		Msg("capability discovery finished")
	return caps
}

func (c *Client) listTools(ctx context.Context) ([]string, error) {
	session, err := c.connect(ctx)
	if err != nil {
		return nil, err
	}
	var names []string
	params := &mcpsdk.ListToolsParams{}
	for {
		res, err := session.ListTools(ctx, params)
		if err != nil {
			c.drop(session, err)
			return nil, errors.Kind(errors.ErrCapability, err, "tools/list failed")
		}
		for _, t := range res.Tools {
			names = append(names, t.Name)
		}
		if res.NextCursor == "" {
			return names, nil
		}
		params.Cursor = res.NextCursor
	}
}

func (c *Client) listPrompts(ctx context.Context) ([]string, error) {
	session, err := c.connect(ctx)
	if err != nil {
		return nil, err
	}
	var names []string
	params := &mcpsdk.ListPromptsParams{}
	for {
		res, err := session.ListPrompts(ctx, params)
		if err != nil {
			c.drop(session, err)
			return nil, errors.Kind(errors.ErrCapability, err, "prompts/list failed")
		}
		for _, p := range res.Prompts {
			names = append(names, p.Name)
		}
		if res.NextCursor == "" {
			return names, nil
		}
		params.Cursor = res.NextCursor
	}
}

// listResources returns concrete resource URIs followed by resource
// template URIs.
func (c *Client) listResources(ctx context.Context) ([]string, error) {
	session, err := c.connect(ctx)
	if err != nil {
		return nil, err
	}
	var uris []string
	params := &mcpsdk.ListResourcesParams{}
	for {
		res, err := session.ListResources(ctx, params)
		if err != nil {
			c.drop(session, err)
			return nil, errors.Kind(errors.ErrCapability, err, "resources/list failed")
		}
		for _, r := range res.Resources {
			uris = append(uris, r.URI)
		}
		if res.NextCursor == "" {
			break
		}
		params.Cursor = res.NextCursor
	}

	tparams := &mcpsdk.ListResourceTemplatesParams{}
	for {
		res, err := session.ListResourceTemplates(ctx, tparams)
		if err != nil {
			c.drop(session, err)
			return nil, errors.Kind(errors.ErrCapability, err, "resources/templates/list failed")
		}
		for _, t := range res.ResourceTemplates {
			uris = append(uris, t.URITemplate)
		}
		if res.NextCursor == "" {
			return uris, nil
		}
		tparams.Cursor = res.NextCursor
	}
}

// CallTool invokes a tool and renders the result as JSON.
func (c *Client) CallTool(ctx context.Context, name string, args any) (string, error) {
	if err := c.filter.Check(name); err != nil {
		return "", err
	}
	session, err := c.connect(ctx)
	if err != nil {
		return "", err
	}
	arguments, err := argumentObject(args)
	if err != nil {
		return "", errors.Kind(errors.ErrCapability, err, "tools/call failed for %s", name)
	}

	res, err := session.CallTool(ctx, &mcpsdk.CallToolParams{
		Name:      name,
		Arguments: arguments,
	})
	if err != nil {
		c.drop(session, err)
		return "", errors.Kind(errors.ErrCapability, err, "tools/call failed for %s", name)
	}
	return renderToolResult(res)
}

// GetPrompt fetches a prompt. Arguments are flattened to strings.
func (c *Client) GetPrompt(ctx context.Context, name string, args any) (string, error) {
	session, err := c.connect(ctx)
	if err != nil {
		return "", err
	}

	res, err := session.GetPrompt(ctx, &mcpsdk.GetPromptParams{
		Name:      name,
		Arguments: promptArguments(args),
	})
	if err != nil {
		c.drop(session, err)
		return "", errors.Kind(errors.ErrCapability, err, "prompts/get failed for %s", name)
	}
	return renderPromptResult(res)
}

// ReadResource reads a resource by URI.
func (c *Client) ReadResource(ctx context.Context, uri string) (string, error) {
	session, err := c.connect(ctx)
	if err != nil {
		return "", err
	}

	res, err := session.ReadResource(ctx, &mcpsdk.ReadResourceParams{URI: uri})
	if err != nil {
		c.drop(session, err)
		return "", errors.Kind(errors.ErrCapability, err, "resources/read failed for %s", uri)
	}
	return renderResourceResult(res)
}
