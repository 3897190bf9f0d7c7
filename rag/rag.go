// Package rag is the retrieval collaborator: it embeds a free-text query,
// looks up the nearest chunks in a vector store and formats them as a single
// context block.
package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/m4xw311/hybrid/config"
	"github.com/m4xw311/hybrid/session"
)

// Retriever returns a pre-formatted context block for a query. Failures are
// errors.ErrEmbedding or errors.ErrStore.
type Retriever interface {
	Retrieve(ctx context.Context, query string) (string, error)
}

// Embedder turns a text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Store returns the payloads of the nearest points to a vector.
type Store interface {
	Query(ctx context.Context, vector []float32, limit int) ([]Hit, error)
}

// Payload is what the indexer stores next to every vector.
type Payload struct {
	Path  *string `json:"path"`
	Index *int    `json:"index"`
	Chunk *string `json:"chunk"`
}

type Hit struct {
	Payload *Payload `json:"payload"`
}

// Pipeline chains an Embedder and a Store.
type Pipeline struct {
	Embedder Embedder
	Store    Store
	TopK     int
}

// NewRetriever wires the Ollama embedder and the Qdrant store from cfg.
func NewRetriever(cfg config.Retrieval) *Pipeline {
	topK := cfg.TopK
	if topK <= 0 {
		topK = config.DefaultTopK
	}
	return &Pipeline{
		Embedder: NewOllamaEmbedder(cfg.OllamaURL, cfg.EmbedModel),
		Store:    NewQdrantStore(cfg.QdrantURL, cfg.Collection),
		TopK:     topK,
	}
}

func (p *Pipeline) Retrieve(ctx context.Context, query string) (string, error) {
	vector, err := p.Embedder.Embed(ctx, query)
	if err != nil {
		return "", err
	}
	hits, err := p.Store.Query(ctx, vector, p.TopK)
	if err != nil {
		return "", err
	}
	return FormatHits(hits), nil
}

// FormatHits renders hits as numbered blocks separated by blank lines, or the
// no-context marker when there are none.
func FormatHits(hits []Hit) string {
	if len(hits) == 0 {
		return session.NoContext
	}

	blocks := make([]string, 0, len(hits))
	for i, hit := range hits {
		path, index, chunk := "unknown", "?", ""
		if p := hit.Payload; p != nil {
			if p.Path != nil {
				path = *p.Path
			}
			if p.Index != nil {
				index = fmt.Sprint(*p.Index)
			}
			if p.Chunk != nil {
				chunk = *p.Chunk
			}
		}
		blocks = append(blocks, fmt.Sprintf("[%d] %s (chunk %s)\n%s", i+1, path, index, chunk))
	}
	return strings.Join(blocks, "\n\n")
}
