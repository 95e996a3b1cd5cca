// Package embedding provides a pluggable interface for text embedding providers.
// Callers never special-case a missing provider: Unavailable stands in for
// one and reports every call as ErrEmbeddingUnavailable.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Vector is a float32 embedding vector.
type Vector = []float32

// Embedder generates embedding vectors from text.
type Embedder interface {
	Embed(ctx context.Context, text string) (Vector, error)
	Dims() int
}

const requestTimeout = 30 * time.Second

// postJSON sends req as JSON and decodes a 200 response into resp.
func postJSON(ctx context.Context, client *http.Client, provider, url, apiKey string, req, resp any) error {
	body, err := json.Marshal(req)
	if err != nil {
		return err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+apiKey)
	}

	httpResp, err := client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", provider, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(httpResp.Body, 512))
		return fmt.Errorf("%s error %d: %s", provider, httpResp.StatusCode, bytes.TrimSpace(msg))
	}
	if err := json.NewDecoder(httpResp.Body).Decode(resp); err != nil {
		return fmt.Errorf("%s response: %w", provider, err)
	}
	return nil
}

// checkDims rejects vectors that do not match the configured width, which
// would otherwise land in a semantic index of the wrong dimensionality.
func checkDims(provider string, v Vector, dims int) (Vector, error) {
	switch {
	case len(v) == 0:
		return nil, fmt.Errorf("%s returned an empty embedding", provider)
	case len(v) != dims:
		return nil, fmt.Errorf("%s returned %d dimensions, configured for %d", provider, len(v), dims)
	}
	return v, nil
}
