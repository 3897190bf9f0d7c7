package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/m4xw311/hybrid/config"
	"github.com/m4xw311/hybrid/errors"
	"github.com/m4xw311/hybrid/session"
)

// OllamaLLMClient is a client for the Ollama chat API.
type OllamaLLMClient struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewOllamaLLMClient creates a new OllamaLLMClient. Request deadlines come
// from the caller's context.
func NewOllamaLLMClient(baseURL, modelName string) *OllamaLLMClient {
	if baseURL == "" {
		baseURL = config.DefaultOllamaURL
	}
	return &OllamaLLMClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      modelName,
		httpClient: &http.Client{},
	}
}

type ollamaChatRequest struct {
	Model    string            `json:"model"`
	Messages []session.Message `json:"messages"`
	Stream   bool              `json:"stream"`
	Format   string            `json:"format,omitempty"`
}

type ollamaChatResponse struct {
	Message *struct {
		Content *string `json:"content"`
	} `json:"message"`
}

// Chat sends a non-streaming chat request to Ollama.
func (o *OllamaLLMClient) Chat(ctx context.Context, messages []session.Message, jsonMode bool) (*session.Message, error) {
	req := ollamaChatRequest{
		Model:    o.model,
		Messages: messages,
		Stream:   false,
	}
	if jsonMode {
		req.Format = "json"
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to marshal Ollama request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, errors.Kind(errors.ErrTransport, err, "failed to create Ollama request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(httpReq)
	if err != nil {
		return nil, errors.Kind(errors.ErrTransport, err, "failed to send message to Ollama")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Kind(errors.ErrTransport, err, "failed to read Ollama response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Kind(errors.ErrUpstream, errors.New("status %d: %s", resp.StatusCode, string(data)), "POST %s/api/chat failed", o.baseURL)
	}

	var chatResp ollamaChatResponse
	if err := json.Unmarshal(data, &chatResp); err != nil {
		return nil, errors.Kind(errors.ErrUpstream, err, "failed to decode Ollama response")
	}

	content := ""
	if chatResp.Message != nil && chatResp.Message.Content != nil {
		content = *chatResp.Message.Content
	}
	return &session.Message{Role: session.RoleAssistant, Content: content}, nil
}
