// Package commit runs the write path: validate, embed, persist, then update
// the live graph.
package commit

import (
	"context"
	"log/slog"

	"github.com/rcliao/ontomem/internal/embedding"
	"github.com/rcliao/ontomem/internal/model"
	"github.com/rcliao/ontomem/internal/store"
	"github.com/rcliao/ontomem/internal/validate"
)

// Store is the part of the record store the workflow writes through.
type Store interface {
	Put(ctx context.Context, c model.Candidate) (*store.PutResult, error)
	Resolve(ctx context.Context, ref string, snapshot int64) (model.Record, error)
	Checkout(ctx context.Context, snapshot int64) (*store.Snapshot, error)
	Validator() *validate.Validator
}

// Indexer receives every applied write, e.g. the live relation graph.
type Indexer interface {
	Upsert(snapshot int64, rec model.Record)
}

// Result is a write outcome. EmbeddingError is set when the record was
// stored without a vector because the provider failed.
type Result struct {
	store.PutResult
	EmbeddingError string `json:"embedding_error,omitempty"`
}

// Committer is safe for concurrent use; the store serializes the writes.
type Committer struct {
	store    Store
	embedder embedding.Embedder
	index    Indexer
	logger   *slog.Logger
}

// New creates a committer. A nil embedder disables embedding and a nil
// index skips graph maintenance.
func New(s Store, e embedding.Embedder, idx Indexer, logger *slog.Logger) *Committer {
	if e == nil {
		e = embedding.Unavailable{Reason: "no embedding provider configured"}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Committer{store: s, embedder: e, index: idx, logger: logger}
}

// Get resolves ref (id or slug) at snapshot.
func (c *Committer) Get(ctx context.Context, ref string, snapshot int64) (model.Record, error) {
	return c.store.Resolve(ctx, ref, snapshot)
}

// Commit validates c against the latest snapshot, attaches an embedding if
// a provider is configured, and stores it. Embedding happens outside any
// store lock; if it fails the record is still written, without a vector.
// Validation runs again inside the store write, so a record that became
// invalid in the meantime is still rejected.
func (c *Committer) Commit(ctx context.Context, cand model.Candidate) (*Result, error) {
	snap, err := c.store.Checkout(ctx, store.Latest)
	if err != nil {
		return nil, err
	}
	pre, err := c.store.Validator().Validate(ctx, snap.View(), cand)
	if err != nil {
		return nil, err
	}

	norm := pre.Record.Candidate()
	res := &Result{}
	if len(norm.Embedding) == 0 && pre.Record.Kind != model.KindCollectionHeader && embedding.Available(c.embedder) {
		if pre.Existing != nil && len(pre.Existing.Embedding) > 0 && pre.Existing.Text() == pre.Record.Text() {
			norm.Embedding = pre.Existing.Embedding
		} else if vec, err := c.embedder.Embed(ctx, pre.Record.Text()); err != nil {
			c.logger.Warn("embedding failed, storing record without vector", "id", pre.Record.ID, "error", err)
			res.EmbeddingError = err.Error()
		} else {
			norm.Embedding = vec
		}
	}

	put, err := c.store.Put(ctx, norm)
	if err != nil {
		return nil, err
	}
	res.PutResult = *put
	c.apply(put)
	return res, nil
}

func (c *Committer) apply(put *store.PutResult) {
	if put.Applied && c.index != nil {
		c.index.Upsert(put.Snapshot, put.Record)
	}
}
