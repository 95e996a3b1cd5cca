package search

import (
	"context"
	"math"
	"slices"

	"github.com/rcliao/ontomem/internal/chunker"
	"github.com/rcliao/ontomem/internal/model"
)

// Field weights and BM25 parameters.
const (
	titleWeight   = 3.0
	tagWeight     = 2.0
	contentWeight = 1.0

	bm25K1 = 1.2
	bm25B  = 0.75

	snippetLen = 200
)

type lexDoc struct {
	rec    model.Record
	tf     map[string]float64
	length float64
}

// lexical scores candidates with BM25 over a weighted bag of words: a title
// occurrence counts three times, a tag twice, content once. Corpus
// statistics come from the candidate set, so identical inputs at the same
// snapshot always rank identically.
func (e *Engine) lexical(ctx context.Context, snapshot int64, q Query) ([]Hit, error) {
	terms := uniqueTerms(q.Text)
	if len(terms) == 0 {
		return []Hit{}, nil
	}

	var docs []lexDoc
	var totalLen float64
	for rec, err := range e.src.Scan(ctx, q.Filter, snapshot) {
		if err != nil {
			return nil, err
		}
		if !candidate(q, rec) {
			continue
		}
		d := analyze(rec)
		totalLen += d.length
		docs = append(docs, d)
	}
	if len(docs) == 0 {
		return []Hit{}, nil
	}
	avgLen := totalLen / float64(len(docs))

	idf := make(map[string]float64, len(terms))
	for _, t := range terms {
		df := 0
		for _, d := range docs {
			if d.tf[t] > 0 {
				df++
			}
		}
		n := float64(len(docs))
		idf[t] = math.Log(1 + (n-float64(df)+0.5)/(float64(df)+0.5))
	}

	var hits []Hit
	for _, d := range docs {
		var score float64
		for _, t := range terms {
			tf := d.tf[t]
			if tf == 0 {
				continue
			}
			norm := tf * (bm25K1 + 1) / (tf + bm25K1*(1-bm25B+bm25B*d.length/avgLen))
			score += idf[t] * norm
		}
		if score > 0 {
			hits = append(hits, Hit{Record: d.rec, Score: score})
		}
	}

	slices.SortFunc(hits, compareHits)
	if len(hits) > q.K {
		hits = hits[:q.K]
	}
	for i := range hits {
		if best, ok := chunker.Best(hits[i].Record.Content, terms, chunker.DefaultOptions()); ok {
			hits[i].Heading = best.Heading
			hits[i].Snippet = chunker.Snippet(best.Text, terms, snippetLen)
		}
	}
	return hits, nil
}

func analyze(r model.Record) lexDoc {
	d := lexDoc{rec: r, tf: map[string]float64{}}
	add := func(text string, w float64) {
		for _, tok := range chunker.Tokenize(text) {
			d.tf[tok] += w
			d.length += w
		}
	}
	add(r.Title, titleWeight)
	for _, tag := range r.Tags {
		add(tag, tagWeight)
	}
	add(r.Content, contentWeight)
	return d
}

func uniqueTerms(text string) []string {
	var out []string
	for _, t := range chunker.Tokenize(text) {
		if !slices.Contains(out, t) {
			out = append(out, t)
		}
	}
	return out
}
