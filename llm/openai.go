package llm

import (
	"context"
	"os"

	"github.com/m4xw311/hybrid/errors"
	"github.com/m4xw311/hybrid/session"
	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/shared"
)

// OpenAILLMClient is a client for the OpenAI Chat Completion API.
type OpenAILLMClient struct {
	client *openai.Client
	model  string
}

// NewOpenAILLMClient creates a new OpenAILLMClient. It requires the OPENAI_API_KEY environment variable to be set.
// It also supports OPENAI_BASE_URL for custom API endpoints.
func NewOpenAILLMClient(ctx context.Context, modelName string) (*OpenAILLMClient, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, errors.New("OPENAI_API_KEY environment variable not set")
	}

	options := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		options = append(options, option.WithBaseURL(baseURL))
	}

	c := openai.NewClient(options...)
	return &OpenAILLMClient{client: &c, model: modelName}, nil
}

// Chat sends a chat request to OpenAI. JSON mode maps to the json_object
// response format.
func (o *OpenAILLMClient) Chat(ctx context.Context, messages []session.Message, jsonMode bool) (*session.Message, error) {
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(o.model),
		Messages: convertMessagesToOpenaiContent(messages),
	}
	if jsonMode {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return nil, errors.Kind(errors.ErrUpstream, err, "OpenAI rejected the request")
		}
		return nil, errors.Kind(errors.ErrTransport, err, "failed to send message to OpenAI")
	}

	return processOpenaiResponse(resp), nil
}

func processOpenaiResponse(resp *openai.ChatCompletion) *session.Message {
	if resp == nil || len(resp.Choices) == 0 {
		return &session.Message{Role: session.RoleAssistant, Content: ""}
	}
	return &session.Message{Role: session.RoleAssistant, Content: resp.Choices[0].Message.Content}
}

// convertMessagesToOpenaiContent converts our internal message format to OpenAI's.
// OpenAI accepts system messages anywhere, so corrections keep their role;
// tool turns carry no call id and are sent as labelled user content.
func convertMessagesToOpenaiContent(messages []session.Message) []openai.ChatCompletionMessageParamUnion {
	var chatMessages []openai.ChatCompletionMessageParamUnion
	for _, msg := range messages {
		switch msg.Role {
		case session.RoleSystem:
			chatMessages = append(chatMessages, openai.SystemMessage(msg.Content))
		case session.RoleAssistant:
			chatMessages = append(chatMessages, openai.AssistantMessage(msg.Content))
		case session.RoleTool:
			chatMessages = append(chatMessages, openai.UserMessage("Tool: "+msg.Content))
		default:
			chatMessages = append(chatMessages, openai.UserMessage(msg.Content))
		}
	}
	return chatMessages
}
