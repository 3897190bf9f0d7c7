package agent

import (
	"context"

	"github.com/m4xw311/hybrid/config"
	"github.com/m4xw311/hybrid/errors"
	"github.com/m4xw311/hybrid/llm"
	"github.com/m4xw311/hybrid/metrics"
	"github.com/m4xw311/hybrid/rag"
	"github.com/m4xw311/hybrid/tools"
	"github.com/m4xw311/hybrid/tools/mcp"
	"github.com/rs/zerolog"
)

// Setup builds an agent from configuration: the configured completion
// provider, the Ollama/Qdrant retrieval pipeline and an MCP client restricted
// to the named toolset. The returned func releases the MCP connection.
func Setup(ctx context.Context, cfg *config.Config, toolset string, m *metrics.Metrics, logger zerolog.Logger) (*Agent, func() error, error) {
	client, err := llm.New(ctx, cfg)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "error initializing %s client", cfg.LLMClient)
	}

	ts, err := cfg.GetToolset(toolset)
	if err != nil {
		return nil, nil, err
	}
	filter, err := tools.NewFilter(ts)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "invalid toolset")
	}

	capabilities := mcp.NewClient(cfg.MCP, filter, logger.With().Str("component", "mcp").Logger())
	a := New(cfg, client, rag.NewRetriever(cfg.Retrieval), capabilities, logger)
	a.Metrics = m

	logger.Debug().
		Str("llm", cfg.LLMClient).
		Str("model", cfg.Model).
		Str("collection", cfg.Retrieval.Collection).
		Bool("mcp", capabilities.Enabled()).
		Int("max_steps", cfg.MaxSteps).
		Msg("agent ready")
	return a, capabilities.Close, nil
}
