package commit

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/ontomem/internal/embedding"
	"github.com/rcliao/ontomem/internal/graph"
	"github.com/rcliao/ontomem/internal/model"
	"github.com/rcliao/ontomem/internal/store"
)

type failingEmbedder struct{ calls int }

func (f *failingEmbedder) Embed(context.Context, string) (embedding.Vector, error) {
	f.calls++
	return nil, errors.New("quota exceeded")
}

func (f *failingEmbedder) Dims() int { return 8 }

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func doc(title string, rels ...model.RelationRef) model.Candidate {
	return model.Candidate{
		Kind:      string(model.KindDocument),
		Type:      string(model.TypeArchitecturalDecision),
		Title:     title,
		Content:   "Body of " + title,
		Relations: rels,
	}
}

func TestCommitEmbedsAndIndexes(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	g := graph.New()
	c := New(s, embedding.NewHash(16), g, nil)

	a, err := c.Commit(ctx, doc("Auth architecture"))
	require.NoError(t, err)
	assert.Len(t, a.Record.Embedding, 16)
	assert.Empty(t, a.EmbeddingError)

	b, err := c.Commit(ctx, doc("JWT pattern", model.RelationRef{Target: "auth-architecture", Kind: "references"}))
	require.NoError(t, err)
	assert.Equal(t, int64(2), b.Snapshot)

	in, err := g.Neighbors("auth-architecture", graph.Incoming)
	require.NoError(t, err)
	require.Len(t, in, 1)
	assert.Equal(t, "jwt-pattern", in[0].Node.Slug)
	assert.Equal(t, int64(2), g.Snapshot())
}

func TestCommitSurvivesEmbeddingFailure(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	fe := &failingEmbedder{}
	c := New(s, fe, nil, nil)

	res, err := c.Commit(ctx, doc("Auth architecture"))
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.Empty(t, res.Record.Embedding)
	assert.Contains(t, res.EmbeddingError, "quota")

	stored, err := s.Get(ctx, res.Record.ID, store.Latest)
	require.NoError(t, err)
	assert.Empty(t, stored.Embedding)

	// Retry with a working provider, without re-submitting content.
	retry := New(s, embedding.NewHash(8), nil, nil)
	again, err := retry.ReEmbed(ctx, "auth-architecture", false)
	require.NoError(t, err)
	assert.True(t, again.Applied)
	assert.Len(t, again.Record.Embedding, 8)
	assert.Equal(t, stored.Content, again.Record.Content)
	assert.Equal(t, 2, again.Record.Version)
}

func TestCommitValidationFailsBeforeEmbedding(t *testing.T) {
	s := newTestStore(t)
	fe := &failingEmbedder{}
	c := New(s, fe, nil, nil)

	_, err := c.Commit(context.Background(), model.Candidate{Title: "No type"})
	assert.ErrorIs(t, err, model.ErrValidation)
	assert.Zero(t, fe.calls)
}

func TestCommitReusesEmbeddingForUnchangedText(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	fe := &failingEmbedder{}

	first, err := New(s, embedding.NewHash(8), nil, nil).Commit(ctx, doc("Auth architecture"))
	require.NoError(t, err)

	cand := first.Record.Candidate()
	cand.Embedding = nil
	cand.Tags = []string{"auth"}
	res, err := New(s, fe, nil, nil).Commit(ctx, cand)
	require.NoError(t, err)
	assert.Zero(t, fe.calls)
	assert.Equal(t, first.Record.Embedding, res.Record.Embedding)
}

func TestCollectionHeaderIsNotEmbedded(t *testing.T) {
	s := newTestStore(t)
	c := New(s, embedding.NewHash(8), nil, nil)

	cand := doc("Auth collection")
	cand.Kind = string(model.KindCollectionHeader)
	res, err := c.Commit(context.Background(), cand)
	require.NoError(t, err)
	assert.Empty(t, res.Record.Embedding)

	_, err = c.ReEmbed(context.Background(), res.Record.ID, true)
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestStatusAndLinks(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	g := graph.New()
	c := New(s, nil, g, nil)

	_, err := c.Commit(ctx, doc("Auth architecture"))
	require.NoError(t, err)
	_, err = c.Commit(ctx, doc("JWT pattern"))
	require.NoError(t, err)

	linked, err := c.Link(ctx, "jwt-pattern", "auth-architecture", model.RelImplements)
	require.NoError(t, err)
	require.Len(t, linked.Record.Relations, 1)
	assert.Len(t, g.In(linked.Record.Relations[0].TargetID), 1)

	_, err = c.Link(ctx, "jwt-pattern", "jwt-pattern", model.RelReferences)
	var verr *model.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.True(t, verr.Has(model.VSelfReference))

	unlinked, err := c.Unlink(ctx, "jwt-pattern", "auth-architecture", "")
	require.NoError(t, err)
	assert.Empty(t, unlinked.Record.Relations)

	_, err = c.Unlink(ctx, "jwt-pattern", "auth-architecture", "")
	assert.ErrorIs(t, err, model.ErrNotFound)

	archived, err := c.SetStatus(ctx, "auth-architecture", model.StatusArchived)
	require.NoError(t, err)
	assert.Equal(t, model.StatusArchived, archived.Record.Status)
	n, err := g.Resolve("auth-architecture")
	require.NoError(t, err)
	assert.Equal(t, model.StatusArchived, n.Status)
}

func TestReEmbedMissing(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	off := New(s, nil, nil, nil)
	for _, title := range []string{"First record", "Second record"} {
		_, err := off.Commit(ctx, doc(title))
		require.NoError(t, err)
	}

	n, err := New(s, embedding.NewHash(8), nil, nil).ReEmbedMissing(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = off.ReEmbed(ctx, "first-record", true)
	assert.ErrorIs(t, err, model.ErrEmbeddingUnavailable)
}
