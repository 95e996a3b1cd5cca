package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// HashEmbedder derives vectors locally from the words of a text. Each word
// seeds a fixed pseudo-random direction and a text is the normalized sum of
// its words, so texts that share vocabulary point the same way. Useful
// offline and in tests; it carries no real semantics.
type HashEmbedder struct {
	dims int
}

// NewHash creates a hash embedder. Zero dims means 384.
func NewHash(dims int) *HashEmbedder {
	if dims <= 0 {
		dims = 384
	}
	return &HashEmbedder{dims: dims}
}

func (h *HashEmbedder) Embed(_ context.Context, text string) (Vector, error) {
	sum := make([]float64, h.dims)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		f := fnv.New64a()
		f.Write([]byte(w))
		seed := f.Sum64()
		for i := range sum {
			// LCG step, mapped to [-1, 1].
			seed = seed*6364136223846793005 + 1442695040888963407
			sum[i] += float64(int64(seed)) / math.MaxInt64
		}
	}

	var norm float64
	for _, x := range sum {
		norm += x * x
	}
	v := make(Vector, h.dims)
	if norm == 0 {
		return v, nil
	}
	norm = math.Sqrt(norm)
	for i, x := range sum {
		v[i] = float32(x / norm)
	}
	return v, nil
}

func (h *HashEmbedder) Dims() int { return h.dims }
