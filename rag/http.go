package rag

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/m4xw311/hybrid/errors"
)

// postJSON sends body to url and returns the raw response. kind classifies
// every failure.
func postJSON(ctx context.Context, client *http.Client, kind error, url string, body any) ([]byte, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, errors.Kind(kind, err, "POST %s encode failed", url)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, errors.Kind(kind, err, "POST %s", url)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.Kind(kind, err, "POST %s", url)
	}
	defer resp.Body.Close()

	text, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Kind(kind, err, "POST %s read failed", url)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.Kind(kind, errors.New("%s %s", resp.Status, string(text)), "POST %s failed", url)
	}
	return text, nil
}
