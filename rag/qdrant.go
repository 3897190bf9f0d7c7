package rag

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/m4xw311/hybrid/config"
	"github.com/m4xw311/hybrid/errors"
)

// QdrantStore queries a Qdrant collection over its REST API.
type QdrantStore struct {
	baseURL    string
	collection string
	httpClient *http.Client
}

func NewQdrantStore(baseURL, collection string) *QdrantStore {
	if baseURL == "" {
		baseURL = config.DefaultQdrantURL
	}
	return &QdrantStore{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		httpClient: &http.Client{},
	}
}

type queryRequest struct {
	Query       []float32 `json:"query"`
	Limit       int       `json:"limit"`
	WithPayload bool      `json:"with_payload"`
}

type queryResponse struct {
	Result *struct {
		Points []Hit `json:"points"`
	} `json:"result"`
}

// Query returns up to limit nearest points. An empty vector short-circuits to
// no hits without contacting the store.
func (q *QdrantStore) Query(ctx context.Context, vector []float32, limit int) ([]Hit, error) {
	if len(vector) == 0 {
		return nil, nil
	}

	endpoint := q.baseURL + "/collections/" + url.PathEscape(q.collection) + "/points/query"
	body, err := postJSON(ctx, q.httpClient, errors.ErrStore, endpoint, queryRequest{
		Query:       vector,
		Limit:       limit,
		WithPayload: true,
	})
	if err != nil {
		return nil, err
	}

	var resp queryResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, errors.Kind(errors.ErrStore, err, "POST %s decode failed", endpoint)
	}
	if resp.Result == nil {
		return nil, nil
	}
	return resp.Result.Points, nil
}
