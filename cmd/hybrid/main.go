package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/m4xw311/hybrid/agent"
	"github.com/m4xw311/hybrid/agent/acp"
	"github.com/m4xw311/hybrid/agent/terminal"
	"github.com/m4xw311/hybrid/config"
	"github.com/m4xw311/hybrid/errors"
)

func main() {
	// Define flags
	toolsetFlag := flag.String("t", "", "Toolset to use (defaults to 'default')")
	toolVerbosityFlag := flag.String("tool-verbosity", "none", "Tool verbosity level: 'none', 'info', or 'all'")
	acpFlag := flag.Bool("acp", false, "Enable Agent Client Protocol support")
	traceFlag := flag.Bool("trace", false, "Write trace-level logs to hybrid.trace to troubleshoot issues")
	transcriptFlag := flag.String("transcript", "", "Write the transcript of the last question to this file")
	ragFlag := flag.Bool("rag", false, "Answer from retrieved context only, without the decision loop")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %+v\n", err)
		os.Exit(1)
	}

	verbosity, err := parseVerbosity(*toolVerbosityFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	// Logs never go to stdout: in ACP mode it carries protocol traffic.
	var logOut io.Writer = os.Stderr
	level := cfg.LogLevel
	if *traceFlag {
		traceFile, err := os.OpenFile("hybrid.trace", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening trace file: %v\n", err)
			os.Exit(1)
		}
		defer traceFile.Close()
		logOut, level = traceFile, "trace"
	}
	logger, err := config.NewLogger(level, logOut)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error configuring logging: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	hybridAgent, closeCapabilities, err := agent.Setup(ctx, cfg, *toolsetFlag, nil, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing agent: %+v\n", err)
		os.Exit(1)
	}
	defer closeCapabilities()

	opts := options{acp: *acpFlag, ragOnly: *ragFlag, verbosity: verbosity, transcript: *transcriptFlag}
	if err := run(ctx, hybridAgent, opts, os.Stdin, os.Stdout, strings.Join(flag.Args(), " ")); err != nil {
		logger.Error().Err(err).Msg("agent stopped")
		fmt.Fprintf(os.Stderr, "Agent stopped with an error: %+v\n", err)
		closeCapabilities()
		os.Exit(1)
	}
}

type options struct {
	acp        bool
	ragOnly    bool
	verbosity  agent.ToolVerbosity
	transcript string
}

func run(ctx context.Context, a *agent.Agent, opts options, in io.Reader, out io.Writer, initialPrompt string) error {
	if opts.acp {
		return acp.Run(ctx, a, in, out, a.Logger.With().Str("component", "acp").Logger())
	}

	term := terminal.NewWithIO(a, opts.verbosity, in, out)
	term.TranscriptPath = opts.transcript
	term.RAGOnly = opts.ragOnly
	if initialPrompt != "" {
		// One-shot: answer the question given on the command line and exit.
		return term.Ask(ctx, initialPrompt)
	}
	fmt.Fprintln(out, "Hybrid is ready. Type your question.")
	return term.Run(ctx, "")
}

func parseVerbosity(s string) (agent.ToolVerbosity, error) {
	switch s {
	case "", "none":
		return agent.ToolVerbosityNone, nil
	case "info":
		return agent.ToolVerbosityInfo, nil
	case "all":
		return agent.ToolVerbosityAll, nil
	}
	return "", errors.New("invalid tool verbosity '%s'. Must be 'none', 'info', or 'all'", s)
}
