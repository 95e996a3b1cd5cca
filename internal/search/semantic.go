package search

import (
	"context"
	"fmt"
	"math"
	"slices"

	chromem "github.com/philippgille/chromem-go"

	"github.com/rcliao/ontomem/internal/model"
	"github.com/rcliao/ontomem/internal/store"
)

type indexKey struct {
	snapshot int64
	dims     int
}

// semanticIndex is the vector collection of one snapshot. Records are
// immutable per snapshot, so an index never needs updating once built.
type semanticIndex struct {
	col  *chromem.Collection
	recs map[string]model.Record
}

// semantic returns the k records nearest to the embedded query text.
// "Nothing matched the filter" yields no hits; "candidates exist but none
// can be compared" is an EmbeddingUnavailableError.
func (e *Engine) semantic(ctx context.Context, snapshot int64, q Query) ([]Hit, error) {
	qv, err := e.embedder.Embed(ctx, q.Text)
	if err != nil {
		return nil, &model.EmbeddingUnavailableError{Reason: "query could not be embedded", Err: err}
	}
	if len(qv) == 0 || zero(qv) {
		return nil, &model.EmbeddingUnavailableError{Reason: "query embedding is empty"}
	}

	idx, err := e.index(ctx, snapshot, len(qv))
	if err != nil {
		return nil, err
	}

	candidates, comparable := 0, 0
	for rec, err := range e.src.Scan(ctx, q.Filter, snapshot) {
		if err != nil {
			return nil, err
		}
		if !candidate(q, rec) {
			continue
		}
		candidates++
		if _, ok := idx.recs[rec.ID]; ok {
			comparable++
		}
	}
	if candidates == 0 {
		return []Hit{}, nil
	}
	if comparable == 0 {
		return nil, &model.EmbeddingUnavailableError{
			Reason: fmt.Sprintf("none of %d candidate records has a %d-dimension embedding", candidates, len(qv)),
		}
	}

	var where map[string]string
	if !q.IncludeArchived {
		where = map[string]string{"ranked": "true"}
	}
	n := idx.col.Count()
	if !q.IncludeArchived {
		n = 0
		for _, r := range idx.recs {
			if r.Status.Ranked() {
				n++
			}
		}
	}
	if n == 0 {
		return []Hit{}, nil
	}
	results, err := idx.col.QueryEmbedding(ctx, qv, n, where, nil)
	if err != nil {
		return nil, fmt.Errorf("vector query: %w", err)
	}

	var hits []Hit
	for _, res := range results {
		rec := idx.recs[res.ID]
		if !candidate(q, rec) {
			continue
		}
		hits = append(hits, Hit{Record: rec, Score: float64(res.Similarity)})
	}
	slices.SortFunc(hits, compareHits)
	if len(hits) > q.K {
		hits = hits[:q.K]
	}
	return hits, nil
}

// index returns the cached vector collection for (snapshot, dims), building
// it at most once even under concurrent searches.
func (e *Engine) index(ctx context.Context, snapshot int64, dims int) (*semanticIndex, error) {
	key := indexKey{snapshot: snapshot, dims: dims}
	if idx, ok := e.indexes.Get(key); ok {
		return idx, nil
	}

	v, err, _ := e.builds.Do(fmt.Sprintf("%d/%d", snapshot, dims), func() (any, error) {
		if idx, ok := e.indexes.Get(key); ok {
			return idx, nil
		}
		idx, err := e.buildIndex(ctx, snapshot, dims)
		if err != nil {
			return nil, err
		}
		e.indexes.Add(key, idx)
		return idx, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*semanticIndex), nil
}

func (e *Engine) buildIndex(ctx context.Context, snapshot int64, dims int) (*semanticIndex, error) {
	db := chromem.NewDB()
	col, err := db.CreateCollection(fmt.Sprintf("snapshot_%d_%d", snapshot, dims), nil, nil)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}

	idx := &semanticIndex{col: col, recs: map[string]model.Record{}}
	var docs []chromem.Document
	for rec, err := range e.src.Scan(ctx, store.Filter{}, snapshot) {
		if err != nil {
			return nil, err
		}
		if len(rec.Embedding) != dims || zero(rec.Embedding) {
			continue
		}
		ranked := "false"
		if rec.Status.Ranked() {
			ranked = "true"
		}
		docs = append(docs, chromem.Document{
			ID:        rec.ID,
			Content:   rec.Title,
			Embedding: rec.Embedding,
			Metadata: map[string]string{
				"ranked":        ranked,
				"semantic_type": string(rec.Type),
				"status":        string(rec.Status),
			},
		})
		idx.recs[rec.ID] = rec
	}
	if len(docs) > 0 {
		if err := col.AddDocuments(ctx, docs, 1); err != nil {
			return nil, fmt.Errorf("index documents: %w", err)
		}
	}

	e.logger.Debug("semantic index built", "snapshot", snapshot, "dims", dims, "documents", len(docs))
	return idx, nil
}

func zero(v []float32) bool {
	for _, x := range v {
		if x != 0 && !math.IsNaN(float64(x)) {
			return false
		}
	}
	return true
}
