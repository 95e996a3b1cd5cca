package embedding

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/rcliao/ontomem/internal/model"
)

type limitedEmbedder struct {
	Embedder
	limiter *rate.Limiter
}

// WithRateLimit caps e at perSecond Embed calls per second with a burst of
// burst. A non-positive perSecond returns e unchanged.
func WithRateLimit(e Embedder, perSecond float64, burst int) Embedder {
	if perSecond <= 0 {
		return e
	}
	if burst <= 0 {
		burst = 1
	}
	return &limitedEmbedder{Embedder: e, limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

func (l *limitedEmbedder) Embed(ctx context.Context, text string) (Vector, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, &model.EmbeddingUnavailableError{Reason: "rate limit wait cancelled", Err: err}
	}
	return l.Embedder.Embed(ctx, text)
}
