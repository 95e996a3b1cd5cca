package embedding

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rcliao/ontomem/internal/model"
)

// Config selects and tunes a provider.
type Config struct {
	Provider string // "" | "ollama" | "openai" | "hash"
	Model    string
	URL      string
	APIKey   string
	Dims     int
	Timeout  time.Duration
	// RateLimit is the maximum number of requests per second; 0 disables it.
	RateLimit float64
	Burst     int
}

// NewFromConfig creates an embedder from cfg. An empty provider yields
// Unavailable rather than nil.
func NewFromConfig(cfg Config) (Embedder, error) {
	var e Embedder
	switch cfg.Provider {
	case "":
		return Unavailable{Reason: "no embedding provider configured"}, nil
	case "ollama":
		e = NewOllamaEmbedder(cfg.URL, cfg.Model, cfg.Dims)
	case "openai":
		key := cfg.APIKey
		if key == "" {
			key = os.Getenv("OPENAI_API_KEY")
		}
		e = NewOpenAIEmbedder(cfg.URL, key, cfg.Model, cfg.Dims)
	case "hash":
		e = NewHash(cfg.Dims)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q (valid: ollama, openai, hash)", cfg.Provider)
	}
	// The timeout covers the wait for a rate-limit token as well as the call.
	return WithTimeout(WithRateLimit(e, cfg.RateLimit, cfg.Burst), cfg.Timeout), nil
}

// Unavailable is the embedder used when no provider is configured.
type Unavailable struct {
	Reason string
}

func (u Unavailable) Embed(context.Context, string) (Vector, error) {
	return nil, &model.EmbeddingUnavailableError{Reason: u.Reason}
}

func (u Unavailable) Dims() int { return 0 }

// Available reports whether e can produce vectors at all.
func Available(e Embedder) bool {
	if e == nil {
		return false
	}
	_, off := e.(Unavailable)
	return !off
}

type timeoutEmbedder struct {
	Embedder
	timeout time.Duration
}

// WithTimeout bounds every Embed call of e; a non-positive d leaves calls
// unbounded. Failures are reported as *model.EmbeddingUnavailableError
// either way, so callers can tell them from programming errors.
func WithTimeout(e Embedder, d time.Duration) Embedder {
	return &timeoutEmbedder{Embedder: e, timeout: d}
}

func (t *timeoutEmbedder) Embed(ctx context.Context, text string) (Vector, error) {
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	v, err := t.Embedder.Embed(ctx, text)
	if err != nil {
		var unavailable *model.EmbeddingUnavailableError
		if errors.As(err, &unavailable) {
			return nil, err
		}
		reason := "provider error"
		if errors.Is(err, context.DeadlineExceeded) {
			reason = fmt.Sprintf("provider timed out after %s", t.timeout)
		}
		return nil, &model.EmbeddingUnavailableError{Reason: reason, Err: err}
	}
	return v, nil
}
