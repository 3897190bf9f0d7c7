// Package terminal implements the command-line interface (CLI) mode for the hybrid agent.
//
// Each line the user types is answered as an independent question with its
// own session; nothing carries over between questions.
//
// # Usage
//
//	a := agent.New(cfg, llmClient, retriever, capabilities, logger)
//	term := terminal.New(a, agent.ToolVerbosityInfo)
//	err := term.Run(ctx, initialPrompt)
//
// # Verbosity Levels
//
//   - None: only answers are printed
//   - Info: every non-final directive is printed as it is chosen
//   - All: directives with arguments, plus every turn the loop appends
package terminal
