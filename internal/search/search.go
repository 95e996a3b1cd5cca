// Package search ranks records of one snapshot lexically, semantically, or
// both with an explicitly requested fusion rule.
package search

import (
	"cmp"
	"context"
	"fmt"
	"iter"
	"log/slog"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/rcliao/ontomem/internal/embedding"
	"github.com/rcliao/ontomem/internal/model"
	"github.com/rcliao/ontomem/internal/store"
)

// Mode selects the ranking strategy.
type Mode string

const (
	Lexical  Mode = "lexical"
	Semantic Mode = "semantic"
	Hybrid   Mode = "hybrid"
)

// Fusion names the rule used to merge rankings in hybrid mode.
type Fusion string

const (
	FusionNone Fusion = ""
	FusionRRF  Fusion = "rrf"
)

// Query describes one search.
type Query struct {
	Text            string
	Mode            Mode
	Fusion          Fusion
	K               int
	Filter          store.Filter
	IncludeArchived bool
}

// Hit is one ranked record. Scores are only comparable within one mode.
type Hit struct {
	Record  model.Record `json:"record"`
	Score   float64      `json:"score"`
	Snippet string       `json:"snippet,omitempty"`
	Heading string       `json:"heading,omitempty"`
	// Ranks holds each strategy's 1-based rank for fused hits.
	Ranks map[Mode]int `json:"ranks,omitempty"`
}

// Source is the read side of the store search needs.
type Source interface {
	Scan(ctx context.Context, f store.Filter, snapshot int64) iter.Seq2[model.Record, error]
	LatestSnapshot(ctx context.Context) (int64, error)
}

// Engine runs searches. Semantic indexes are built once per snapshot and
// embedding size, then cached.
type Engine struct {
	src      Source
	embedder embedding.Embedder
	logger   *slog.Logger
	defaultK int

	indexes *lru.Cache[indexKey, *semanticIndex]
	builds  singleflight.Group
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option { return func(e *Engine) { e.logger = l } }

// WithDefaultK sets the result count used when a query leaves K at zero.
func WithDefaultK(k int) Option {
	return func(e *Engine) {
		if k > 0 {
			e.defaultK = k
		}
	}
}

// NewEngine creates a search engine over src. cacheSize bounds the number of
// snapshot indexes kept in memory.
func NewEngine(src Source, embedder embedding.Embedder, cacheSize int, opts ...Option) (*Engine, error) {
	if cacheSize <= 0 {
		cacheSize = 16
	}
	cache, err := lru.New[indexKey, *semanticIndex](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("index cache: %w", err)
	}
	if embedder == nil {
		embedder = embedding.Unavailable{Reason: "no embedding provider configured"}
	}
	e := &Engine{src: src, embedder: embedder, logger: slog.Default(), defaultK: 10, indexes: cache}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Search runs q against snapshot (or store.Latest).
func (e *Engine) Search(ctx context.Context, snapshot int64, q Query) ([]Hit, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, invalid("query", "query text is required")
	}
	if q.K <= 0 {
		q.K = e.defaultK
	}
	if snapshot == store.Latest {
		n, err := e.src.LatestSnapshot(ctx)
		if err != nil {
			return nil, err
		}
		snapshot = n
	}

	var hits []Hit
	var err error
	switch q.Mode {
	case Lexical, "":
		hits, err = e.lexical(ctx, snapshot, q)
	case Semantic:
		hits, err = e.semantic(ctx, snapshot, q)
	case Hybrid:
		hits, err = e.hybrid(ctx, snapshot, q)
	default:
		return nil, invalid("mode", fmt.Sprintf("unknown search mode %q (valid: lexical, semantic, hybrid)", q.Mode))
	}
	if err != nil {
		return nil, err
	}
	e.logger.Debug("search", "mode", q.Mode, "snapshot", snapshot, "k", q.K, "hits", len(hits))
	return hits, nil
}

func (e *Engine) hybrid(ctx context.Context, snapshot int64, q Query) ([]Hit, error) {
	if q.Fusion != FusionRRF {
		return nil, invalid("fusion", "hybrid search merges incomparable scores and needs an explicit fusion rule (rrf)")
	}

	// Each strategy ranks deeper than k so fusion has overlap to work with.
	deep := q
	deep.K = q.K * 3

	var lex, sem []Hit
	eg, gctx := errgroup.WithContext(ctx)
	eg.Go(func() (err error) {
		lex, err = e.lexical(gctx, snapshot, deep)
		return err
	})
	eg.Go(func() (err error) {
		sem, err = e.semantic(gctx, snapshot, deep)
		return err
	})
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return FuseRRF(q.K, map[Mode][]Hit{Lexical: lex, Semantic: sem}), nil
}

// candidate reports whether r is searchable under q.
func candidate(q Query, r model.Record) bool {
	if !q.IncludeArchived && !r.Status.Ranked() {
		return false
	}
	return q.Filter.Match(r)
}

// compareHits orders by score, then most recently modified, then id.
func compareHits(a, b Hit) int {
	if c := cmp.Compare(b.Score, a.Score); c != 0 {
		return c
	}
	if c := b.Record.ModifiedAt.Compare(a.Record.ModifiedAt); c != 0 {
		return c
	}
	return cmp.Compare(a.Record.ID, b.Record.ID)
}

func invalid(field, msg string) error {
	return &model.ValidationError{Violations: []model.Violation{{Kind: model.VInvalidValue, Field: field, Message: msg}}}
}
