package agent

import (
	"context"
	"strings"

	"github.com/m4xw311/hybrid/errors"
	"github.com/m4xw311/hybrid/metrics"
	"github.com/m4xw311/hybrid/session"
)

// AnswerRAG answers question from retrieved context alone: one retrieval for
// the question itself, then one plain-text completion. The model never picks
// a directive and no capability is discovered or called.
func (a *Agent) AnswerRAG(ctx context.Context, question string, cb ProcessCallbacks) (*Result, error) {
	done := a.Metrics.SessionStarted()
	sess := session.New(1)
	r := &run{agent: a, sess: sess, cb: cb, log: a.Logger.With().Str("session", sess.ID).Str("mode", "rag").Logger()}
	result := &Result{Session: sess}

	contextText, err := r.retrieveText(ctx, question)
	if err != nil {
		done(metrics.OutcomeFailed, 0)
		r.log.Error().Err(err).Msg("retrieval failed")
		return result, errors.Wrapf(err, "retrieval failed")
	}
	result.Context = contextText

	messages := contextMessages(a.Config.SystemPrompt, contextText, question)
	for _, msg := range messages {
		sess.AddMessage(msg)
		r.emit()
	}

	raw, err := r.complete(ctx, messages, false)
	if err != nil {
		done(metrics.OutcomeFailed, 0)
		r.log.Error().Err(err).Msg("answer completion failed")
		return result, errors.Wrapf(err, "answer completion failed")
	}
	result.Answer = strings.TrimSpace(raw)
	sess.AddMessage(session.Message{Role: session.RoleAssistant, Content: result.Answer})
	r.emit()

	done(metrics.OutcomeAnswered, 0)
	r.log.Info().Int("context_bytes", len(contextText)).Msg("session answered")
	return result, nil
}
