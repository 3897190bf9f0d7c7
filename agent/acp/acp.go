package acp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/m4xw311/hybrid/agent"
	"github.com/m4xw311/hybrid/session"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc"
)

// JSON-RPC error codes used by the server.
const (
	codeParseError     = -32700
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeInternalError  = -32603
)

// Run starts the Agent Client Protocol server over newline-delimited JSON-RPC.
// It implements a minimal subset of ACP:
// - initialize
// - session/new
// - session/prompt (emits session/update notifications while the question runs)
// - session/cancel (notification, stops a running prompt)
//
// Prompts run concurrently, each against a fresh agent session. Nothing but
// JSON-RPC messages is written to out; diagnostics go to log. Run returns when
// in is exhausted and every pending prompt has been answered.
func Run(ctx context.Context, a *agent.Agent, in io.Reader, out io.Writer, log zerolog.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	server := &acpServer{
		ctx:      ctx,
		agent:    a,
		sessions: make(map[string]*acpSession),
		writer:   bufio.NewWriter(out),
		log:      log,
	}

	var wg conc.WaitGroup
	defer wg.Wait()

	reader := bufio.NewReader(in)
	for {
		payload, err := readFramedMessage(reader)
		if err != nil {
			if err == io.EOF {
				log.Debug().Msg("EOF received, waiting for pending prompts")
				return nil
			}
			// If framing is broken, there isn't a safe way to continue.
			return fmt.Errorf("ACP: read error: %w", err)
		}
		if len(payload) == 0 {
			continue
		}

		log.Trace().RawJSON("payload", payload).Msg("received")
		var req jsonrpcRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			log.Warn().Err(err).Msg("JSON parse error")
			_ = server.writeResponseError(nil, codeParseError, "Parse error", nil)
			continue
		}

		switch req.Method {
		case "initialize":
			server.handleInitialize(&req)
		case "session/new":
			server.handleSessionNew(&req)
		case "session/prompt":
			wg.Go(func() { server.handleSessionPrompt(&req) })
		case "session/cancel":
			server.handleSessionCancel(&req)
		default:
			if req.ID != nil {
				_ = server.writeResponseError(req.ID, codeMethodNotFound, "Method not found", nil)
			}
		}
	}
}

// jsonrpcRequest represents a JSON-RPC 2.0 request message
type jsonrpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// jsonrpcResponse represents a JSON-RPC 2.0 response message
type jsonrpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *jsonrpcError   `json:"error,omitempty"`
}

type jsonrpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// acpSession is the client-visible session. Every prompt inside it is still
// answered as an independent question.
type acpSession struct {
	id  string
	cwd string

	// running holds the cancel func of every prompt in flight, keyed by a
	// per-session sequence number.
	running map[uint64]context.CancelFunc
	seq     uint64
}

type acpServer struct {
	ctx   context.Context
	agent *agent.Agent
	log   zerolog.Logger

	sessionsLock sync.Mutex
	sessions     map[string]*acpSession

	writeLock sync.Mutex
	writer    *bufio.Writer
}

// readFramedMessage reads a single JSON-RPC payload. JSON-RPC requests and
// responses are newline-delimited JSONs.
func readFramedMessage(r *bufio.Reader) ([]byte, error) {
	line, err := r.ReadBytes('\n')
	if err != nil {
		if err == io.EOF && len(strings.TrimSpace(string(line))) > 0 {
			// Last message without a trailing newline
			return []byte(strings.TrimSpace(string(line))), nil
		}
		return nil, err
	}
	return []byte(strings.TrimSpace(string(line))), nil
}

func (s *acpServer) writeFramedJSON(obj any) error {
	data, err := json.Marshal(obj)
	if err != nil {
		return fmt.Errorf("failed to serialize JSON-RPC message: %w", err)
	}

	s.writeLock.Lock()
	defer s.writeLock.Unlock()
	if _, err := s.writer.Write(data); err != nil {
		return err
	}
	if err := s.writer.WriteByte('\n'); err != nil {
		return err
	}
	return s.writer.Flush()
}

func (s *acpServer) writeResponseOK(id any, result any) error {
	data, err := json.Marshal(result)
	if err != nil {
		return s.writeResponseError(id, codeInternalError, "Internal error", err.Error())
	}
	return s.writeFramedJSON(jsonrpcResponse{JSONRPC: "2.0", ID: id, Result: data})
}

func (s *acpServer) writeResponseError(id any, code int, msg string, data any) error {
	s.log.Debug().Int("code", code).Str("message", msg).Interface("data", data).Msg("error response")
	return s.writeFramedJSON(jsonrpcResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &jsonrpcError{Code: code, Message: msg, Data: data},
	})
}

// writeNotification sends a JSON-RPC notification (request without an ID)
func (s *acpServer) writeNotification(method string, params any) error {
	return s.writeFramedJSON(map[string]any{
		"jsonrpc": "2.0",
		"method":  method,
		"params":  params,
	})
}

func decodeParams(req *jsonrpcRequest, dst any) error {
	if len(req.Params) == 0 {
		return nil
	}
	return json.Unmarshal(req.Params, dst)
}

func (s *acpServer) handleInitialize(req *jsonrpcRequest) {
	resp := map[string]any{
		"protocolVersion": 1,
		"agentCapabilities": map[string]any{
			"loadSession": false,
			"promptCapabilities": map[string]bool{
				"audio":           false,
				"embeddedContext": true,
				"image":           false,
			},
		},
		"authMethods": []any{},
	}
	_ = s.writeResponseOK(req.ID, resp)
}

func (s *acpServer) handleSessionNew(req *jsonrpcRequest) {
	var p struct {
		Cwd        string          `json:"cwd"`
		McpServers json.RawMessage `json:"mcpServers"`
	}
	if err := decodeParams(req, &p); err != nil {
		_ = s.writeResponseError(req.ID, codeInvalidParams, "Invalid params", err.Error())
		return
	}

	sid := "sess_" + uuid.NewString()
	s.sessionsLock.Lock()
	s.sessions[sid] = &acpSession{id: sid, cwd: p.Cwd, running: make(map[uint64]context.CancelFunc)}
	s.sessionsLock.Unlock()

	s.log.Info().Str("session", sid).Str("cwd", p.Cwd).Msg("session created")
	_ = s.writeResponseOK(req.ID, map[string]any{"sessionId": sid})
}

// contentBlock represents a content block in ACP prompt requests.
type contentBlock struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	URI      string          `json:"uri,omitempty"`
	Name     string          `json:"name,omitempty"`
	Resource *embeddedSource `json:"resource,omitempty"`
}

type embeddedSource struct {
	URI  string `json:"uri"`
	Text string `json:"text,omitempty"`
}

// handleSessionPrompt answers one prompt. Directives are reported as
// tool_call updates, the turns they produce as tool_call_update, and the
// answer as an agent_message_chunk before the end_turn response.
func (s *acpServer) handleSessionPrompt(req *jsonrpcRequest) {
	var p struct {
		SessionID string         `json:"sessionId"`
		Prompt    []contentBlock `json:"prompt"`
	}
	if err := decodeParams(req, &p); err != nil {
		_ = s.writeResponseError(req.ID, codeInvalidParams, "Invalid params", err.Error())
		return
	}

	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()

	s.sessionsLock.Lock()
	sess, ok := s.sessions[p.SessionID]
	var seq uint64
	if ok {
		sess.seq++
		seq = sess.seq
		sess.running[seq] = cancel
	}
	s.sessionsLock.Unlock()
	if !ok {
		_ = s.writeResponseError(req.ID, codeInvalidParams, "Invalid params", "unknown sessionId")
		return
	}
	defer func() {
		s.sessionsLock.Lock()
		delete(sess.running, seq)
		s.sessionsLock.Unlock()
	}()

	question := extractUserText(p.Prompt)
	if strings.TrimSpace(question) == "" {
		_ = s.writeResponseError(req.ID, codeInvalidParams, "Invalid params", "prompt has no text")
		return
	}

	var callID string
	callbacks := agent.ProcessCallbacks{
		OnDirective: func(step int, d agent.Directive) {
			if d.Action() == agent.ActionFinal {
				return
			}
			callID = fmt.Sprintf("call_%d", step+1)
			_ = s.sendToolCall(p.SessionID, callID, d)
		},
		OnTurn: func(msg session.Message) {
			if callID == "" || msg.Role == session.RoleUser {
				return
			}
			_ = s.sendToolCallUpdate(p.SessionID, callID, msg.Content)
		},
		OnWarning: func(warning string) {
			s.log.Warn().Str("session", p.SessionID).Msg(warning)
		},
	}

	res, err := s.agent.Answer(ctx, question, callbacks)
	if err != nil {
		if ctx.Err() != nil && s.ctx.Err() == nil {
			_ = s.writeResponseOK(req.ID, map[string]any{"stopReason": "cancelled"})
			return
		}
		_ = s.writeResponseError(req.ID, codeInternalError, "Internal error", fmt.Sprintf("error processing user input: %v", err))
		return
	}

	_ = s.sendAgentMessageChunk(p.SessionID, res.Answer)
	stop := "end_turn"
	if res.Forced {
		stop = "max_turn_requests"
	}
	_ = s.writeResponseOK(req.ID, map[string]any{"stopReason": stop})
}

// handleSessionCancel stops every prompt running in a session.
func (s *acpServer) handleSessionCancel(req *jsonrpcRequest) {
	var p struct {
		SessionID string `json:"sessionId"`
	}
	if err := decodeParams(req, &p); err != nil {
		return
	}
	s.sessionsLock.Lock()
	defer s.sessionsLock.Unlock()
	sess, ok := s.sessions[p.SessionID]
	if !ok || len(sess.running) == 0 {
		return
	}
	s.log.Info().Str("session", p.SessionID).Int("prompts", len(sess.running)).Msg("prompt cancelled")
	for _, cancel := range sess.running {
		cancel()
	}
}

func (s *acpServer) sendToolCall(sessionID, callID string, d agent.Directive) error {
	return s.writeNotification("session/update", map[string]any{
		"sessionId": sessionID,
		"update": map[string]any{
			"sessionUpdate": "tool_call",
			"toolCallId":    callID,
			"title":         directiveTitle(d),
			"kind":          directiveKind(d),
			"status":        "in_progress",
			"rawInput":      directiveInput(d),
		},
	})
}

func (s *acpServer) sendToolCallUpdate(sessionID, callID, text string) error {
	return s.writeNotification("session/update", map[string]any{
		"sessionId": sessionID,
		"update": map[string]any{
			"sessionUpdate": "tool_call_update",
			"toolCallId":    callID,
			"status":        "completed",
			"content": []any{map[string]any{
				"type":    "content",
				"content": map[string]any{"type": "text", "text": text},
			}},
		},
	})
}

// sendAgentMessageChunk emits a session/update notification with an agent message chunk.
func (s *acpServer) sendAgentMessageChunk(sessionID, text string) error {
	return s.writeNotification("session/update", map[string]any{
		"sessionId": sessionID,
		"update": map[string]any{
			"sessionUpdate": "agent_message_chunk",
			"content": map[string]any{
				"type": "text",
				"text": text,
			},
		},
	})
}

func directiveTitle(d agent.Directive) string {
	switch d := d.(type) {
	case agent.Retrieve:
		return "retrieve: " + d.Query
	case agent.ToolCall:
		return "tool: " + d.Name
	case agent.PromptCall:
		return "prompt: " + d.Name
	case agent.ResourceRead:
		return "resource: " + d.URI
	}
	return d.Action()
}

func directiveInput(d agent.Directive) map[string]any {
	in := map[string]any{"action": d.Action()}
	switch d := d.(type) {
	case agent.Retrieve:
		in["query"] = d.Query
	case agent.ToolCall:
		in["name"], in["arguments"] = d.Name, d.Arguments
	case agent.PromptCall:
		in["name"], in["arguments"] = d.Name, d.Arguments
	case agent.ResourceRead:
		in["uri"] = d.URI
	}
	return in
}

func directiveKind(d agent.Directive) string {
	switch d.(type) {
	case agent.Retrieve:
		return "search"
	case agent.ResourceRead:
		return "read"
	case agent.ToolCall:
		return "execute"
	}
	return "fetch"
}

// extractUserText joins the text of all blocks. Resource links contribute a
// reference line; embedded resources contribute their text.
func extractUserText(blocks []contentBlock) string {
	var parts []string
	for _, b := range blocks {
		switch b.Type {
		case "text":
			if strings.TrimSpace(b.Text) != "" {
				parts = append(parts, b.Text)
			}
		case "resource_link":
			parts = append(parts, fmt.Sprintf("Resource: %s (%s)", b.Name, b.URI))
		case "resource":
			if b.Resource != nil && b.Resource.Text != "" {
				parts = append(parts, fmt.Sprintf("=== Resource: %s ===\n%s\n=== End Resource ===", b.Resource.URI, b.Resource.Text))
			}
		}
	}
	return strings.Join(parts, "\n")
}
