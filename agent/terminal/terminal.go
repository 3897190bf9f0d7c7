package terminal

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/m4xw311/hybrid/agent"
	"github.com/m4xw311/hybrid/session"
)

// Terminal handles the terminal/CLI interaction mode for the agent
type Terminal struct {
	agent     *agent.Agent
	verbosity agent.ToolVerbosity

	// TranscriptPath, when set, receives the JSON transcript of the last
	// question.
	TranscriptPath string
	// RAGOnly answers every question from retrieval alone, skipping the
	// directive loop.
	RAGOnly bool

	in  io.Reader
	out io.Writer
}

// New creates a new Terminal reading stdin and writing stdout.
func New(a *agent.Agent, verbosity agent.ToolVerbosity) *Terminal {
	return NewWithIO(a, verbosity, os.Stdin, os.Stdout)
}

// NewWithIO creates a Terminal on the given streams.
func NewWithIO(a *agent.Agent, verbosity agent.ToolVerbosity, in io.Reader, out io.Writer) *Terminal {
	return &Terminal{
		agent:     a,
		verbosity: verbosity,
		in:        in,
		out:       out,
	}
}

// Run answers the initial prompt, if any, then reads one question per line
// until EOF or /quit.
func (t *Terminal) Run(ctx context.Context, initialPrompt string) error {
	if initialPrompt != "" {
		if err := t.Ask(ctx, initialPrompt); err != nil {
			return err
		}
	}

	scanner := bufio.NewScanner(t.in)
	for {
		fmt.Fprint(t.out, "You: ")
		if !scanner.Scan() {
			// EOF or read error ends the session
			break
		}

		userInput := strings.TrimSpace(scanner.Text())
		if userInput == "" {
			continue
		}

		// Exit commands
		if userInput == "/quit" || userInput == "/exit" {
			break
		}

		if err := t.Ask(ctx, userInput); err != nil {
			fmt.Fprintf(t.out, "Error: %v\n", err)
		}
	}

	return scanner.Err()
}

// Ask answers one question in its own session and prints the answer.
func (t *Terminal) Ask(ctx context.Context, question string) error {
	callbacks := agent.ProcessCallbacks{
		OnDirective: func(step int, d agent.Directive) {
			switch t.verbosity {
			case agent.ToolVerbosityAll:
				fmt.Fprintf(t.out, "[step %d] %s\n", step+1, describe(d, true))
			case agent.ToolVerbosityInfo:
				if d.Action() != agent.ActionFinal {
					fmt.Fprintf(t.out, "[step %d] %s\n", step+1, describe(d, false))
				}
			}
		},
		OnTurn: func(msg session.Message) {
			if t.verbosity != agent.ToolVerbosityAll || msg.Role == session.RoleUser {
				return
			}
			// The opening system prompt is long and the same every time.
			if strings.HasPrefix(msg.Content, t.agent.Config.HybridSystemPrompt) {
				return
			}
			fmt.Fprintf(t.out, "  %s> %s\n", msg.Role, msg.Content)
		},
		OnWarning: func(warning string) {
			if t.verbosity != agent.ToolVerbosityNone {
				fmt.Fprintf(t.out, "Warning: %s\n", warning)
			}
		},
	}

	answer := t.agent.Answer
	if t.RAGOnly {
		answer = t.agent.AnswerRAG
	}
	res, err := answer(ctx, question, callbacks)
	if res != nil && t.TranscriptPath != "" {
		if serr := res.Session.Save(t.TranscriptPath); serr != nil {
			fmt.Fprintf(t.out, "Warning: failed to save transcript: %v\n", serr)
		}
	}
	if err != nil {
		return err
	}

	if res.Forced {
		fmt.Fprintln(t.out, "(step limit reached, answering from gathered context)")
	}
	fmt.Fprintf(t.out, "Hybrid: %s\n", res.Answer)
	return nil
}

func describe(d agent.Directive, detailed bool) string {
	switch d := d.(type) {
	case agent.Retrieve:
		return fmt.Sprintf("retrieve %q", d.Query)
	case agent.ToolCall:
		if detailed {
			return fmt.Sprintf("tool `%s` with args: %v", d.Name, d.Arguments)
		}
		return fmt.Sprintf("tool `%s`", d.Name)
	case agent.PromptCall:
		if detailed {
			return fmt.Sprintf("prompt `%s` with args: %v", d.Name, d.Arguments)
		}
		return fmt.Sprintf("prompt `%s`", d.Name)
	case agent.ResourceRead:
		return fmt.Sprintf("resource %s", d.URI)
	case agent.FinalAnswer:
		return "final"
	}
	return d.Action()
}
