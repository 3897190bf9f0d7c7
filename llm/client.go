package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/m4xw311/hybrid/config"
	"github.com/m4xw311/hybrid/errors"
	"github.com/m4xw311/hybrid/session"
)

// LLMClient is the interface for interacting with a Large Language Model.
// With jsonMode set the provider is asked for a single JSON object; otherwise
// for plain text.
type LLMClient interface {
	Chat(ctx context.Context, messages []session.Message, jsonMode bool) (*session.Message, error)
}

// New builds the client named by cfg.LLMClient.
func New(ctx context.Context, cfg *config.Config) (LLMClient, error) {
	switch cfg.LLMClient {
	case "", "ollama":
		return NewOllamaLLMClient(cfg.OllamaURL, cfg.Model), nil
	case "gemini":
		return NewGeminiLLMClient(ctx, cfg.Model)
	case "openai":
		return NewOpenAILLMClient(ctx, cfg.Model)
	case "bedrock":
		return NewBedrockLLMClient(ctx, cfg.Model)
	case "anthropic":
		return NewAnthropicLLMClient(ctx, cfg.Model)
	case "mock":
		return &MockLLMClient{}, nil
	default:
		return nil, errors.New("unknown llm client %q (valid: ollama, openai, anthropic, gemini, bedrock, mock)", cfg.LLMClient)
	}
}

// MockLLMClient answers immediately without calling any model. In JSON mode
// it emits a final directive echoing the latest user message.
type MockLLMClient struct{}

func (m *MockLLMClient) Chat(ctx context.Context, messages []session.Message, jsonMode bool) (*session.Message, error) {
	var lastUserMessage string
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == session.RoleUser {
			lastUserMessage = messages[i].Content
			break
		}
	}
	answer := fmt.Sprintf("I am a mock LLM. You said: '%s'.", lastUserMessage)
	if !jsonMode {
		return &session.Message{Role: session.RoleAssistant, Content: answer}, nil
	}
	data, err := json.Marshal(map[string]string{"action": "final", "answer": answer})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to encode mock directive")
	}
	return &session.Message{Role: session.RoleAssistant, Content: string(data)}, nil
}
