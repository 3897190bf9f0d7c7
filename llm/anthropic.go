package llm

import (
	"context"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/m4xw311/hybrid/errors"
	"github.com/m4xw311/hybrid/session"
)

// AnthropicLLMClient is a client for the Anthropic API.
type AnthropicLLMClient struct {
	client *anthropic.Client
	model  string
}

// NewAnthropicLLMClient creates a new AnthropicLLMClient.
// It requires the ANTHROPIC_API_KEY environment variable to be set.
func NewAnthropicLLMClient(ctx context.Context, modelName string) (*AnthropicLLMClient, error) {
	apiKey := os.Getenv("ANTHROPIC_API_KEY")
	if apiKey == "" {
		return nil, errors.New("ANTHROPIC_API_KEY environment variable not set")
	}

	client := anthropic.NewClient(
		option.WithAPIKey(apiKey),
	)

	return &AnthropicLLMClient{
		client: &client,
		model:  modelName,
	}, nil
}

// Chat sends a chat request to the Anthropic API. The API has no JSON
// response mode, so JSON mode is requested through the system prompt.
func (a *AnthropicLLMClient) Chat(ctx context.Context, messages []session.Message, jsonMode bool) (*session.Message, error) {
	anthropicMessages, systemPrompt := convertMessagesToAnthropicMessages(messages)
	systemPrompt = systemWithJSONMode(systemPrompt, jsonMode)

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: 4096,
		Messages:  anthropicMessages,
	}
	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: systemPrompt},
		}
	}

	resp, err := a.client.Messages.New(ctx, params)
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return nil, errors.Kind(errors.ErrUpstream, err, "Anthropic rejected the request")
		}
		return nil, errors.Kind(errors.ErrTransport, err, "failed to send message to Anthropic")
	}

	return processAnthropicResponse(resp), nil
}

// convertMessagesToAnthropicMessages converts our internal message format to Anthropic's format.
func convertMessagesToAnthropicMessages(messages []session.Message) ([]anthropic.MessageParam, string) {
	systemPrompt, turns := foldTranscript(messages)

	var anthropicMessages []anthropic.MessageParam
	for _, t := range turns {
		block := anthropic.NewTextBlock(t.Content)
		if t.Role == "assistant" {
			anthropicMessages = append(anthropicMessages, anthropic.NewAssistantMessage(block))
		} else {
			anthropicMessages = append(anthropicMessages, anthropic.NewUserMessage(block))
		}
	}
	return anthropicMessages, systemPrompt
}

// processAnthropicResponse concatenates the text blocks of a response.
func processAnthropicResponse(resp *anthropic.Message) *session.Message {
	var b strings.Builder
	if resp != nil {
		for _, content := range resp.Content {
			if c, ok := content.AsAny().(anthropic.TextBlock); ok {
				b.WriteString(c.Text)
			}
		}
	}
	return &session.Message{Role: session.RoleAssistant, Content: b.String()}
}
