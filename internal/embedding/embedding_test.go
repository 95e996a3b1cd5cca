package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/ontomem/internal/model"
)

func cosine(a, b Vector) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func TestNewFromConfig_Disabled(t *testing.T) {
	e, err := NewFromConfig(Config{})
	require.NoError(t, err)
	assert.False(t, Available(e))

	_, err = e.Embed(context.Background(), "anything")
	assert.ErrorIs(t, err, model.ErrEmbeddingUnavailable)
}

func TestNewFromConfig_Unknown(t *testing.T) {
	_, err := NewFromConfig(Config{Provider: "word2vec"})
	assert.Error(t, err)
}

func TestHashEmbedder(t *testing.T) {
	ctx := context.Background()
	h := NewHash(64)
	assert.Equal(t, 64, h.Dims())

	a1, err := h.Embed(ctx, "JWT token refresh")
	require.NoError(t, err)
	a2, err := h.Embed(ctx, "jwt token refresh")
	require.NoError(t, err)
	assert.Equal(t, a1, a2, "embedding must be deterministic and case-insensitive")
	assert.InDelta(t, 1.0, cosine(a1, a1), 0.0001)

	near, _ := h.Embed(ctx, "refresh the JWT token on expiry")
	far, _ := h.Embed(ctx, "postgres vacuum schedule")
	assert.Greater(t, cosine(a1, near), cosine(a1, far))
}

func TestOllamaEmbedder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embeddings", r.URL.Path)
		var req ollamaRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "all-minilm", req.Model)
		json.NewEncoder(w).Encode(ollamaResponse{Embedding: []float32{0.1, 0.2}})
	}))
	defer srv.Close()

	assert.Equal(t, 384, NewOllamaEmbedder(srv.URL, "all-minilm", 0).Dims())

	e := NewOllamaEmbedder(srv.URL, "all-minilm", 2)
	v, err := e.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, Vector{0.1, 0.2}, v)

	_, err = NewOllamaEmbedder(srv.URL, "all-minilm", 0).Embed(context.Background(), "hello")
	assert.ErrorContains(t, err, "returned 2 dimensions, configured for 384")
}

func TestOpenAIEmbedder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		var req openaiEmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 3, req.Dimensions)
		w.Write([]byte(`{"data":[{"embedding":[1,0,0]}]}`))
	}))
	defer srv.Close()

	e, err := NewFromConfig(Config{Provider: "openai", URL: srv.URL, APIKey: "sk-test", Dims: 3})
	require.NoError(t, err)
	v, err := e.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, Vector{1, 0, 0}, v)
}

func TestWithTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	e := WithTimeout(NewOllamaEmbedder(srv.URL, "", 0), 50*time.Millisecond)
	_, err := e.Embed(context.Background(), "slow")

	var unavailable *model.EmbeddingUnavailableError
	require.True(t, errors.As(err, &unavailable))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWithTimeout_ProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	e := WithTimeout(NewOpenAIEmbedder(srv.URL, "", "", 0), time.Second)
	_, err := e.Embed(context.Background(), "x")
	assert.ErrorIs(t, err, model.ErrEmbeddingUnavailable)
	assert.Contains(t, err.Error(), "429")
}

func TestWithRateLimit(t *testing.T) {
	h := NewHash(4)
	assert.Same(t, h, WithRateLimit(h, 0, 0))

	e := WithRateLimit(h, 1, 1)
	_, err := e.Embed(context.Background(), "first")
	require.NoError(t, err)

	// The bucket is empty; the next call has to wait past the deadline.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = e.Embed(ctx, "second")
	var unavailable *model.EmbeddingUnavailableError
	assert.ErrorAs(t, err, &unavailable)
}

func TestNewFromConfig_TimeoutCoversRateLimit(t *testing.T) {
	e, err := NewFromConfig(Config{Provider: "hash", Dims: 4, Timeout: 20 * time.Millisecond, RateLimit: 1, Burst: 1})
	require.NoError(t, err)
	assert.Equal(t, 4, e.Dims())

	_, err = e.Embed(context.Background(), "first")
	require.NoError(t, err)

	start := time.Now()
	_, err = e.Embed(context.Background(), "second")
	assert.ErrorIs(t, err, model.ErrEmbeddingUnavailable)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestNewFromConfig_WrapsErrorsWithoutTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	e, err := NewFromConfig(Config{Provider: "ollama", URL: srv.URL})
	require.NoError(t, err)
	_, err = e.Embed(context.Background(), "x")
	assert.ErrorIs(t, err, model.ErrEmbeddingUnavailable)
}
