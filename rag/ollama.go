package rag

import (
	"context"
	"net/http"
	"strings"

	"github.com/m4xw311/hybrid/config"
	"github.com/m4xw311/hybrid/errors"
	"github.com/tidwall/gjson"
)

// OllamaEmbedder embeds text with an Ollama embedding model.
type OllamaEmbedder struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

func NewOllamaEmbedder(baseURL, model string) *OllamaEmbedder {
	if baseURL == "" {
		baseURL = config.DefaultOllamaURL
	}
	if model == "" {
		model = config.DefaultEmbedModel
	}
	return &OllamaEmbedder{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{},
	}
}

// Embed calls /api/embed and retries once against the legacy /api/embeddings
// endpoint when that fails. An empty vector is not an error.
func (o *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := postJSON(ctx, o.httpClient, errors.ErrEmbedding, o.baseURL+"/api/embed", map[string]any{
		"model": o.model,
		"input": []string{text},
	})
	if err != nil {
		body, err = postJSON(ctx, o.httpClient, errors.ErrEmbedding, o.baseURL+"/api/embeddings", map[string]any{
			"model":  o.model,
			"prompt": text,
		})
		if err != nil {
			return nil, err
		}
	}
	return parseEmbedding(body)
}

// parseEmbedding accepts {"embeddings":[[...]]}, {"embeddings":[...]} and
// {"embedding":[...]} and returns the first vector.
func parseEmbedding(body []byte) ([]float32, error) {
	if !gjson.ValidBytes(body) {
		return nil, errors.Kind(errors.ErrEmbedding, errors.New("%s", string(body)), "invalid embedding response")
	}

	value := gjson.GetBytes(body, "embeddings")
	if !value.Exists() {
		value = gjson.GetBytes(body, "embedding")
	}
	if !value.Exists() {
		return nil, errors.Kind(errors.ErrEmbedding, errors.New("no embeddings in response"), "parse embedding")
	}
	if !value.IsArray() {
		return nil, errors.Kind(errors.ErrEmbedding, errors.New("invalid embeddings format"), "parse embedding")
	}

	rows := value.Array()
	if len(rows) == 0 {
		return []float32{}, nil
	}
	if rows[0].IsArray() {
		rows = rows[0].Array()
	}

	vector := make([]float32, 0, len(rows))
	for _, v := range rows {
		if v.Type != gjson.Number {
			return nil, errors.Kind(errors.ErrEmbedding, errors.New("embedding value is not a number: %s", v.Raw), "parse embedding")
		}
		vector = append(vector, float32(v.Float()))
	}
	return vector, nil
}
