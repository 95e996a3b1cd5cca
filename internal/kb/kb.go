// Package kb wires the store, commit workflow, relation graph, search engine
// and analytics into one knowledge base handle.
package kb

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"strconv"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/rcliao/ontomem/internal/analytics"
	"github.com/rcliao/ontomem/internal/commit"
	"github.com/rcliao/ontomem/internal/embedding"
	"github.com/rcliao/ontomem/internal/graph"
	"github.com/rcliao/ontomem/internal/model"
	"github.com/rcliao/ontomem/internal/search"
	"github.com/rcliao/ontomem/internal/store"
	"github.com/rcliao/ontomem/internal/validate"
)

// Options configures Open.
type Options struct {
	DBPath          string
	Types           []model.TypeSpec
	Embedder        embedding.Embedder
	Logger          *slog.Logger
	CacheSize       int
	DefaultK        int
	HubCount        int
	RelationWeights map[model.RelationKind]float64
}

// KB is a knowledge base handle. It is safe for concurrent use.
type KB struct {
	store    *store.SQLiteStore
	commits  *commit.Committer
	engine   *search.Engine
	live     *graph.Graph
	embedder embedding.Embedder
	logger   *slog.Logger
	opts     Options

	graphs *lru.Cache[int64, *graph.Graph]
	builds singleflight.Group

	// writes counts commits between store write and live graph update.
	writes atomic.Int64
}

// Open opens the store at opts.DBPath and builds the live graph from the
// latest snapshot.
func Open(ctx context.Context, opts Options) (*KB, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Embedder == nil {
		opts.Embedder = embedding.Unavailable{Reason: "no embedding provider configured"}
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = 16
	}

	types := model.NewRegistry()
	for _, t := range opts.Types {
		types.Register(t)
	}

	s, err := store.NewSQLiteStore(opts.DBPath,
		store.WithValidator(validate.New(types)),
		store.WithLogger(opts.Logger))
	if err != nil {
		return nil, err
	}

	latest, err := s.LatestSnapshot(ctx)
	if err != nil {
		s.Close()
		return nil, err
	}
	live, err := graph.Build(latest, s.Scan(ctx, store.Filter{}, latest))
	if err != nil {
		s.Close()
		return nil, err
	}

	engine, err := search.NewEngine(s, opts.Embedder, opts.CacheSize,
		search.WithLogger(opts.Logger), search.WithDefaultK(opts.DefaultK))
	if err != nil {
		s.Close()
		return nil, err
	}
	graphs, err := lru.New[int64, *graph.Graph](opts.CacheSize)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("graph cache: %w", err)
	}

	k := &KB{
		store:    s,
		commits:  commit.New(s, opts.Embedder, live, opts.Logger),
		engine:   engine,
		live:     live,
		embedder: opts.Embedder,
		logger:   opts.Logger,
		opts:     opts,
		graphs:   graphs,
	}
	opts.Logger.Debug("knowledge base opened", "snapshot", latest, "records", live.Len(),
		"embeddings", embedding.Available(opts.Embedder))
	return k, nil
}

// Store exposes the underlying record store.
func (k *KB) Store() *store.SQLiteStore { return k.store }

func (k *KB) Close() error { return k.store.Close() }

// Commit runs the full write workflow for one candidate.
func (k *KB) Commit(ctx context.Context, c model.Candidate) (*commit.Result, error) {
	return k.write(func() (*commit.Result, error) { return k.commits.Commit(ctx, c) })
}

func (k *KB) write(fn func() (*commit.Result, error)) (*commit.Result, error) {
	k.writes.Add(1)
	defer k.writes.Add(-1)
	return fn()
}

// SetStatus writes a status change as a new version.
func (k *KB) SetStatus(ctx context.Context, ref string, status model.Status) (*commit.Result, error) {
	if !model.ValidStatuses[status] {
		return nil, &model.ValidationError{Violations: []model.Violation{{
			Kind: model.VInvalidValue, Field: "status", Message: fmt.Sprintf("unknown status %q", status),
		}}}
	}
	return k.write(func() (*commit.Result, error) { return k.commits.SetStatus(ctx, ref, status) })
}

func (k *KB) Link(ctx context.Context, ref, target string, kind model.RelationKind) (*commit.Result, error) {
	return k.write(func() (*commit.Result, error) { return k.commits.Link(ctx, ref, target, kind) })
}

func (k *KB) Unlink(ctx context.Context, ref, target string, kind model.RelationKind) (*commit.Result, error) {
	return k.write(func() (*commit.Result, error) { return k.commits.Unlink(ctx, ref, target, kind) })
}

func (k *KB) ReEmbed(ctx context.Context, ref string, force bool) (*commit.Result, error) {
	return k.write(func() (*commit.Result, error) { return k.commits.ReEmbed(ctx, ref, force) })
}

func (k *KB) ReEmbedMissing(ctx context.Context) (int, error) {
	k.writes.Add(1)
	defer k.writes.Add(-1)
	return k.commits.ReEmbedMissing(ctx)
}

// Get resolves ref (id or slug) at snapshot.
func (k *KB) Get(ctx context.Context, ref string, snapshot int64) (model.Record, error) {
	return k.store.Resolve(ctx, ref, snapshot)
}

func (k *KB) Scan(ctx context.Context, f store.Filter, snapshot int64) iter.Seq2[model.Record, error] {
	return k.store.Scan(ctx, f, snapshot)
}

func (k *KB) Search(ctx context.Context, snapshot int64, q search.Query) ([]search.Hit, error) {
	return k.engine.Search(ctx, snapshot, q)
}

// Prune drops old snapshots and forgets their cached graphs.
func (k *KB) Prune(ctx context.Context, keep int) (*store.PruneResult, error) {
	res, err := k.store.Prune(ctx, keep)
	if err != nil {
		return nil, err
	}
	for _, n := range k.graphs.Keys() {
		if n < res.Oldest {
			k.graphs.Remove(n)
		}
	}
	return res, nil
}

// Graph returns a frozen relation graph for snapshot. The latest snapshot is
// served from a copy of the live graph when no write is in flight; other
// snapshots are built from a scan once and cached.
func (k *KB) Graph(ctx context.Context, snapshot int64) (*graph.Graph, error) {
	snap, err := k.store.Checkout(ctx, snapshot)
	if err != nil {
		return nil, err
	}
	n := snap.Number()
	if g, ok := k.graphs.Get(n); ok {
		return g, nil
	}

	v, err, _ := k.builds.Do(strconv.FormatInt(n, 10), func() (any, error) {
		var g *graph.Graph
		if k.writes.Load() == 0 && k.live.Snapshot() == n {
			g = k.live.Clone()
		}
		if g == nil || g.Snapshot() != n || k.writes.Load() != 0 {
			built, err := graph.Build(n, snap.Scan(ctx, store.Filter{}))
			if err != nil {
				return nil, err
			}
			g = built
		}
		k.graphs.Add(n, g)
		return g, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*graph.Graph), nil
}

func (k *KB) Neighbors(ctx context.Context, ref string, dir graph.Direction, snapshot int64) ([]graph.Neighbor, error) {
	g, err := k.Graph(ctx, snapshot)
	if err != nil {
		return nil, err
	}
	return g.Neighbors(ref, dir)
}

func (k *KB) Traverse(ctx context.Context, ref string, dir graph.Direction, depth int, snapshot int64) ([]graph.Step, error) {
	g, err := k.Graph(ctx, snapshot)
	if err != nil {
		return nil, err
	}
	return g.Traverse(ref, dir, depth)
}

func (k *KB) Path(ctx context.Context, a, b string, snapshot int64) ([]graph.Edge, error) {
	g, err := k.Graph(ctx, snapshot)
	if err != nil {
		return nil, err
	}
	return g.ShortestPath(a, b)
}

// Report builds the analytics report for snapshot.
func (k *KB) Report(ctx context.Context, snapshot int64) (*analytics.Report, error) {
	g, err := k.Graph(ctx, snapshot)
	if err != nil {
		return nil, err
	}
	return analytics.BuildReport(ctx, g, analytics.Options{
		HubCount: k.opts.HubCount,
		Weights:  analytics.Weights(k.opts.RelationWeights),
	})
}
