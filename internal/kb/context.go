package kb

import (
	"context"
	"math"
	"sort"
	"time"
	"unicode/utf8"

	"github.com/rcliao/ontomem/internal/search"
	"github.com/rcliao/ontomem/internal/store"
)

// ContextParams holds parameters for context assembly.
type ContextParams struct {
	Query  string
	Filter store.Filter
	Budget int // max tokens in output (rough proxy: 1 token ≈ 4 chars)
}

// ContextRecord is a scored record for context output.
type ContextRecord struct {
	ID      string  `json:"id"`
	Slug    string  `json:"slug"`
	Title   string  `json:"title"`
	Type    string  `json:"semantic_type"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
	Excerpt bool    `json:"excerpt,omitempty"`
}

// ContextResult is the assembled context response.
type ContextResult struct {
	Snapshot int64           `json:"snapshot"`
	Budget   int             `json:"budget"`
	Used     int             `json:"used"`
	Records  []ContextRecord `json:"records"`
}

// Context packs the records most relevant to a query into a token budget,
// for handing to a language model. Candidates come from lexical search and
// are re-scored by search rank, recency and how connected they are.
func (k *KB) Context(ctx context.Context, p ContextParams) (*ContextResult, error) {
	budget := p.Budget
	if budget <= 0 {
		budget = 4000
	}
	charBudget := budget * 4

	snap, err := k.store.LatestSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	hits, err := k.engine.Search(ctx, snap, search.Query{Text: p.Query, Mode: search.Lexical, K: 50, Filter: p.Filter})
	if err != nil {
		return nil, err
	}
	result := &ContextResult{Snapshot: snap, Budget: budget, Records: []ContextRecord{}}
	if len(hits) == 0 {
		return result, nil
	}

	g, err := k.Graph(ctx, snap)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	type scored struct {
		hit   search.Hit
		score float64
	}
	candidates := make([]scored, 0, len(hits))
	for i, h := range hits {
		// Relevance: inverse search rank
		relevance := 1.0 / float64(i+1)

		// Recency: exponential decay on days since last modification
		age := now.Sub(h.Record.ModifiedAt).Hours() / 24.0
		recency := math.Exp(-0.1 * age)

		// Connectedness: log-scaled degree
		degree := len(g.In(h.Record.ID)) + len(g.Out(h.Record.ID))
		connected := math.Min(1, math.Log(float64(degree)+1)/math.Log(20))

		score := relevance*0.5 + recency*0.25 + connected*0.25
		candidates = append(candidates, scored{hit: h, score: score})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	// Greedy packing into budget
	used := 0
	for _, c := range candidates {
		r := c.hit.Record
		entry := ContextRecord{
			ID:      r.ID,
			Slug:    r.Slug,
			Title:   r.Title,
			Type:    string(r.Type),
			Content: r.Content,
			Score:   math.Round(c.score*100) / 100,
		}
		if used+len(r.Content) <= charBudget {
			result.Records = append(result.Records, entry)
			used += len(r.Content)
			continue
		}
		if remaining := charBudget - used; remaining >= 100 {
			entry.Content = excerpt(r.Content, remaining) + "..."
			entry.Excerpt = true
			result.Records = append(result.Records, entry)
			used += remaining
		}
		break
	}

	result.Used = used / 4
	return result, nil
}

// excerpt cuts s to at most n bytes without splitting a rune.
func excerpt(s string, n int) string {
	if n >= len(s) {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
