package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/m4xw311/hybrid/config"
	"github.com/m4xw311/hybrid/errors"
	"github.com/m4xw311/hybrid/llm"
	"github.com/m4xw311/hybrid/metrics"
	"github.com/m4xw311/hybrid/rag"
	"github.com/m4xw311/hybrid/session"
	"github.com/m4xw311/hybrid/tools"
	"github.com/rs/zerolog"
)

type ToolVerbosity string

const (
	ToolVerbosityNone ToolVerbosity = "none"
	ToolVerbosityInfo ToolVerbosity = "info"
	ToolVerbosityAll  ToolVerbosity = "all"
)

// Reasons a capability directive was answered with retrieval instead.
const (
	FallbackRetrievalOnly  = "RAG-only mode"
	FallbackMCPDisabled    = "MCP disabled"
	FallbackResourceFailed = "resource read failed"
)

// ErrEmptyFallback is the cause when the forced final answer is blank.
var ErrEmptyFallback = fmt.Errorf("empty fallback answer")

// ProcessCallbacks lets a front-end follow a session as it runs. Every field
// is optional.
type ProcessCallbacks struct {
	// OnDirective is called for every directive that parsed.
	OnDirective func(step int, d Directive)
	// OnTurn is called after a turn is appended to the transcript.
	OnTurn func(msg session.Message)
	// OnWarning reports recoverable problems such as unparsable output.
	OnWarning func(warning string)
}

// Agent answers questions by letting the model choose between retrieval,
// capability calls and a final answer. It holds no per-question state and
// may serve several questions at once.
type Agent struct {
	Config       *config.Config
	LLMClient    llm.LLMClient
	Retriever    rag.Retriever
	Capabilities tools.Client
	Normalizer   *tools.Normalizer
	Metrics      *metrics.Metrics
	Logger       zerolog.Logger
}

func New(cfg *config.Config, client llm.LLMClient, retriever rag.Retriever, capabilities tools.Client, logger zerolog.Logger) *Agent {
	if capabilities == nil {
		capabilities = tools.Disabled{}
	}
	return &Agent{
		Config:       cfg,
		LLMClient:    client,
		Retriever:    retriever,
		Capabilities: capabilities,
		Normalizer:   tools.NewNormalizer(cfg.ArgumentRules),
		Logger:       logger,
	}
}

// Result is the outcome of one question.
type Result struct {
	Context string
	Answer  string
	// Forced is set when the step budget ran out and the answer came from
	// the plain completion fallback.
	Forced  bool
	Steps   int
	Session *session.Session
}

// Answer runs one question through a fresh session. The session is
// returned in the result, also on failure, for transcript dumps.
func (a *Agent) Answer(ctx context.Context, question string, cb ProcessCallbacks) (*Result, error) {
	done := a.Metrics.SessionStarted()

	enabled := a.Capabilities.Enabled()
	var caps tools.Capabilities
	if enabled {
		dctx, cancel := withTimeout(ctx, a.Config.MCP.Timeout)
		caps = a.Capabilities.Discover(dctx)
		cancel()
	}

	sess := session.New(a.Config.MaxSteps)
	r := &run{agent: a, sess: sess, cb: cb, enabled: enabled, log: a.Logger.With().Str("session", sess.ID).Logger()}

	r.system(BuildSystemPrompt(a.Config.HybridSystemPrompt, caps, enabled))
	if IsRetrievalOnly(question, a.Config.RAGOnlyTriggers) {
		r.system(RetrievalOnlyNotice)
	}
	r.user(question)

	answer, forced, err := r.loop(ctx)
	result := &Result{Context: sess.ContextText(), Answer: answer, Forced: forced, Steps: sess.Step, Session: sess}
	switch {
	case err != nil:
		done(metrics.OutcomeFailed, sess.Step)
		r.log.Error().Err(err).Int("steps", sess.Step).Msg("session failed")
		return result, err
	case forced:
		done(metrics.OutcomeForced, sess.Step)
	default:
		done(metrics.OutcomeAnswered, sess.Step)
	}
	r.log.Info().Int("steps", sess.Step).Bool("forced", forced).Msg("session answered")
	return result, nil
}

// run is the state of one question. It is owned by a single goroutine.
type run struct {
	agent   *Agent
	sess    *session.Session
	cb      ProcessCallbacks
	enabled bool
	log     zerolog.Logger
}

func (r *run) loop(ctx context.Context) (string, bool, error) {
	for !r.sess.Exhausted() {
		raw, err := r.complete(ctx, r.sess.Messages, true)
		if err != nil {
			return "", false, errors.Wrapf(err, "controller completion failed at step %d", r.sess.Step+1)
		}

		d, err := ParseDirective(raw)
		if err != nil {
			r.agent.Metrics.ParseFailure()
			r.log.Warn().Err(err).Int("step", r.sess.Step).Msg("invalid controller output")
			r.warn(fmt.Sprintf("invalid controller output: %v", err))
			r.system(fmt.Sprintf("Invalid controller JSON output: %v. Return valid JSON with one action and required fields.", err))
			r.sess.Advance()
			continue
		}

		r.agent.Metrics.Directive(d.Action())
		r.log.Debug().Int("step", r.sess.Step).Str("action", d.Action()).Msg("directive")
		if r.cb.OnDirective != nil {
			r.cb.OnDirective(r.sess.Step, d)
		}

		switch d := d.(type) {
		case Retrieve:
			r.retrieve(ctx, d.Query)
		case ToolCall:
			r.callTool(ctx, d)
		case PromptCall:
			r.getPrompt(ctx, d)
		case ResourceRead:
			r.readResource(ctx, d)
		case FinalAnswer:
			return d.Text, false, nil
		default:
			return "", false, errors.New("unhandled directive %T", d)
		}
		r.sess.Advance()
	}

	answer, err := r.forceFinal(ctx)
	if err != nil {
		return "", false, errors.Wrapf(err, "max steps exceeded (limit: %d) before final answer; fallback generation failed", r.sess.MaxSteps)
	}
	return answer, true, nil
}

func (r *run) retrieve(ctx context.Context, query string) {
	text, err := r.retrieveText(ctx, query)
	if err != nil {
		r.log.Warn().Err(err).Str("query", query).Msg("retrieval failed")
		r.toolError(fmt.Sprintf("RAG retrieve error: %v", err))
		return
	}
	r.addContext(fmt.Sprintf("RAG retrieve for query: %s\n%s", query, text))
}

// fallback answers a capability directive with retrieval. The query is the
// latest user turn, or subject when there is none.
func (r *run) fallback(ctx context.Context, reason, subject string) {
	r.agent.Metrics.Fallback(reason)
	query, ok := r.sess.LatestUserQuery()
	if !ok {
		query = subject
	}

	text, err := r.retrieveText(ctx, query)
	if err != nil {
		r.log.Warn().Err(err).Str("reason", reason).Msg("retrieval fallback failed")
		r.toolError(fmt.Sprintf("RAG retrieve fallback error (%s): %v", reason, err))
		return
	}
	r.addContext(fmt.Sprintf("RAG retrieve fallback (%s) for query: %s\n%s", reason, query, text))
}

// redirected handles capability directives that may not run: in
// retrieval-only mode, or when no capability server is reachable. It
// reports whether the directive was consumed.
func (r *run) redirected(ctx context.Context, subject string) bool {
	if r.retrievalOnly() {
		r.fallback(ctx, FallbackRetrievalOnly, subject)
		return true
	}
	if !r.enabled {
		r.fallback(ctx, FallbackMCPDisabled, subject)
		if r.sess.MarkRestrictionAnnounced() {
			r.system(RestrictionNotice)
		}
		return true
	}
	return false
}

func (r *run) retrievalOnly() bool {
	latest, ok := r.sess.LatestUserQuery()
	return ok && IsRetrievalOnly(latest, r.agent.Config.RAGOnlyTriggers)
}

func (r *run) callTool(ctx context.Context, d ToolCall) {
	if r.redirected(ctx, d.Name) {
		return
	}
	latest, _ := r.sess.LatestUserQuery()
	args := r.agent.Normalizer.Normalize(d.Name, d.Arguments, latest)

	cctx, cancel := withTimeout(ctx, r.agent.Config.MCP.Timeout)
	defer cancel()
	start := time.Now()
	out, err := r.agent.Capabilities.CallTool(cctx, d.Name, args)
	r.agent.Metrics.ObserveCall("mcp", start)
	if err != nil {
		r.log.Warn().Err(err).Str("tool", d.Name).Msg("tool call failed")
		r.toolError(fmt.Sprintf("Tool result [%s]: Tool call failed for %s: %v", d.Name, d.Name, err))
		return
	}
	r.toolResult(fmt.Sprintf("Tool result [%s]: %s", d.Name, out))
}

func (r *run) getPrompt(ctx context.Context, d PromptCall) {
	if r.redirected(ctx, d.Name) {
		return
	}

	cctx, cancel := withTimeout(ctx, r.agent.Config.MCP.Timeout)
	defer cancel()
	start := time.Now()
	out, err := r.agent.Capabilities.GetPrompt(cctx, d.Name, d.Arguments)
	r.agent.Metrics.ObserveCall("mcp", start)
	if err != nil {
		r.log.Warn().Err(err).Str("prompt", d.Name).Msg("prompt fetch failed")
		r.toolError(fmt.Sprintf("Prompt result [%s]: Prompt fetch failed for %s: %v", d.Name, d.Name, err))
		return
	}
	r.toolResult(fmt.Sprintf("Prompt result [%s]: %s", d.Name, out))
}

// readResource never ends in a bare error: a failed read is followed by a
// retrieval fallback.
func (r *run) readResource(ctx context.Context, d ResourceRead) {
	if r.redirected(ctx, d.URI) {
		return
	}

	cctx, cancel := withTimeout(ctx, r.agent.Config.MCP.Timeout)
	defer cancel()
	start := time.Now()
	out, err := r.agent.Capabilities.ReadResource(cctx, d.URI)
	r.agent.Metrics.ObserveCall("mcp", start)
	if err != nil {
		r.log.Warn().Err(err).Str("uri", d.URI).Msg("resource read failed")
		r.toolError(fmt.Sprintf("Resource read failed for %s: %v", d.URI, err))
		r.fallback(ctx, FallbackResourceFailed, d.URI)
		return
	}
	r.toolResult(fmt.Sprintf("Resource result [%s]: %s", d.URI, out))
}

func (r *run) forceFinal(ctx context.Context) (string, error) {
	question, _ := r.sess.LatestUserQuery()
	r.log.Warn().Int("limit", r.sess.MaxSteps).Msg("step budget exhausted, forcing final answer")
	r.warn(fmt.Sprintf("step budget of %d exhausted, forcing a final answer", r.sess.MaxSteps))

	messages := forcedFinalMessages(r.agent.Config.SystemPrompt, r.sess.ContextText(), question)
	raw, err := r.complete(ctx, messages, false)
	if err != nil {
		return "", err
	}
	answer := strings.TrimSpace(raw)
	if answer == "" {
		return "", ErrEmptyFallback
	}
	return answer, nil
}

func (r *run) complete(ctx context.Context, messages []session.Message, jsonMode bool) (string, error) {
	cctx, cancel := withTimeout(ctx, r.agent.Config.LLMTimeout)
	defer cancel()
	start := time.Now()
	msg, err := r.agent.LLMClient.Chat(cctx, messages, jsonMode)
	r.agent.Metrics.ObserveCall("llm", start)
	if err != nil {
		return "", err
	}
	if msg == nil {
		return "", nil
	}
	return msg.Content, nil
}

func (r *run) retrieveText(ctx context.Context, query string) (string, error) {
	if r.agent.Retriever == nil {
		return "", errors.New("no retriever configured")
	}
	cctx, cancel := withTimeout(ctx, r.agent.Config.Retrieval.Timeout)
	defer cancel()
	start := time.Now()
	defer r.agent.Metrics.ObserveCall("retrieval", start)
	return r.agent.Retriever.Retrieve(cctx, query)
}

func (r *run) system(text string) {
	r.sess.AppendSystem(text)
	r.emit()
}

func (r *run) user(text string) {
	r.sess.AppendUser(text)
	r.emit()
}

func (r *run) addContext(text string) {
	r.sess.AppendContext(text)
	r.emit()
}

func (r *run) toolResult(text string) {
	r.sess.AppendToolResult(text)
	r.emit()
}

func (r *run) toolError(text string) {
	r.sess.AppendToolError(text)
	r.emit()
}

func (r *run) emit() {
	if r.cb.OnTurn != nil {
		r.cb.OnTurn(r.sess.Messages[len(r.sess.Messages)-1])
	}
}

func (r *run) warn(msg string) {
	if r.cb.OnWarning != nil {
		r.cb.OnWarning(msg)
	}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
