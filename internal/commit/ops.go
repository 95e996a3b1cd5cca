package commit

import (
	"context"
	"fmt"
	"slices"

	"github.com/rcliao/ontomem/internal/embedding"
	"github.com/rcliao/ontomem/internal/model"
	"github.com/rcliao/ontomem/internal/store"
)

// SetStatus writes a new version of ref with the given status. Records are
// never removed; archive and deprecate are how they leave search.
func (c *Committer) SetStatus(ctx context.Context, ref string, status model.Status) (*Result, error) {
	rec, err := c.store.Resolve(ctx, ref, store.Latest)
	if err != nil {
		return nil, err
	}
	cand := rec.Candidate()
	cand.Status = string(status)
	cand.ModifiedAt = ""
	return c.Commit(ctx, cand)
}

// Link adds one relation from ref to target.
func (c *Committer) Link(ctx context.Context, ref, target string, kind model.RelationKind) (*Result, error) {
	rec, err := c.store.Resolve(ctx, ref, store.Latest)
	if err != nil {
		return nil, err
	}
	cand := rec.Candidate()
	cand.Relations = append(cand.Relations, model.RelationRef{Target: target, Kind: string(kind)})
	cand.ModifiedAt = ""
	return c.Commit(ctx, cand)
}

// Unlink removes the relations from ref to target. An empty kind removes
// every kind.
func (c *Committer) Unlink(ctx context.Context, ref, target string, kind model.RelationKind) (*Result, error) {
	rec, err := c.store.Resolve(ctx, ref, store.Latest)
	if err != nil {
		return nil, err
	}
	to, err := c.store.Resolve(ctx, target, store.Latest)
	if err != nil {
		return nil, err
	}

	before := len(rec.Relations)
	rec.Relations = slices.DeleteFunc(rec.Relations, func(r model.Relation) bool {
		hit := r.TargetID == to.ID || r.Target == target
		return hit && (kind == "" || r.Kind == kind)
	})
	if len(rec.Relations) == before {
		return nil, &model.NotFoundError{What: "relation", Ref: fmt.Sprintf("%s -> %s", ref, target)}
	}
	cand := rec.Candidate()
	cand.ModifiedAt = ""
	return c.Commit(ctx, cand)
}

// ReEmbed computes the embedding of an already stored record and writes it
// as a new version, leaving content untouched. A record that already has a
// vector is left alone unless force is set.
func (c *Committer) ReEmbed(ctx context.Context, ref string, force bool) (*Result, error) {
	rec, err := c.store.Resolve(ctx, ref, store.Latest)
	if err != nil {
		return nil, err
	}
	if rec.Kind == model.KindCollectionHeader {
		return nil, &model.ValidationError{Violations: []model.Violation{{
			Kind:    model.VInvalidValue,
			Field:   "embedding",
			Message: "collection_header records cannot carry an embedding",
		}}}
	}
	if len(rec.Embedding) > 0 && !force {
		return &Result{PutResult: store.PutResult{Record: rec, Snapshot: rec.Snapshot}}, nil
	}
	if !embedding.Available(c.embedder) {
		return nil, &model.EmbeddingUnavailableError{Reason: "no embedding provider configured"}
	}

	vec, err := c.embedder.Embed(ctx, rec.Text())
	if err != nil {
		return nil, err
	}
	cand := rec.Candidate()
	cand.Embedding = vec
	cand.ModifiedAt = ""

	put, err := c.store.Put(ctx, cand)
	if err != nil {
		return nil, err
	}
	c.apply(put)
	return &Result{PutResult: *put}, nil
}

// ReEmbedMissing re-embeds every record at the latest snapshot that lacks a
// vector and returns how many were updated. It stops at the first provider
// failure.
func (c *Committer) ReEmbedMissing(ctx context.Context) (int, error) {
	snap, err := c.store.Checkout(ctx, store.Latest)
	if err != nil {
		return 0, err
	}
	recs, err := store.Collect(snap.Scan(ctx, store.Filter{Kinds: []model.RecordKind{model.KindDocument, model.KindDatasetHeader}}))
	if err != nil {
		return 0, err
	}

	n := 0
	for _, rec := range recs {
		if len(rec.Embedding) > 0 {
			continue
		}
		res, err := c.ReEmbed(ctx, rec.ID, false)
		if err != nil {
			return n, fmt.Errorf("re-embed %s: %w", rec.Slug, err)
		}
		if res.Applied {
			n++
		}
	}
	return n, nil
}
