package graph

import (
	"iter"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/ontomem/internal/model"
)

func rec(id, slug string, rels ...model.Relation) model.Record {
	return model.Record{
		ID:        id,
		Slug:      slug,
		Title:     slug,
		Kind:      model.KindDocument,
		Type:      model.TypePattern,
		Status:    model.StatusActive,
		Relations: rels,
	}
}

func rel(target string, kind model.RelationKind) model.Relation {
	return model.Relation{Target: target, Kind: kind}
}

func seq(recs ...model.Record) iter.Seq2[model.Record, error] {
	return func(yield func(model.Record, error) bool) {
		for _, r := range recs {
			if !yield(r, nil) {
				return
			}
		}
	}
}

// auth-arch <- jwt-pattern (references), jwt-pattern -> token-store (implements)
func sample(t *testing.T) *Graph {
	t.Helper()
	g, err := Build(3, seq(
		rec("a", "auth-arch"),
		rec("b", "jwt-pattern", rel("auth-arch", model.RelReferences), rel("token-store", model.RelImplements)),
		rec("c", "token-store"),
	))
	require.NoError(t, err)
	return g
}

func TestNeighborsIncoming(t *testing.T) {
	g := sample(t)

	got, err := g.Neighbors("auth-arch", Incoming)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "jwt-pattern", got[0].Node.Slug)
	assert.Equal(t, model.RelReferences, got[0].Edge.Kind)

	out, err := g.Neighbors("jwt-pattern", Outgoing)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "auth-arch", out[0].Node.Slug)
	assert.Equal(t, "token-store", out[1].Node.Slug)

	_, err = g.Neighbors("missing", Both)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestForwardReferenceResolvesOnUpsert(t *testing.T) {
	g := New()
	g.Upsert(1, rec("b", "jwt-pattern", rel("auth-arch", model.RelReferences)))
	assert.Len(t, g.In("a"), 0)

	g.Upsert(2, rec("a", "auth-arch"))
	in := g.In("a")
	require.Len(t, in, 1)
	assert.Equal(t, "b", in[0].From)
	assert.Equal(t, int64(2), g.Snapshot())

	for _, e := range g.Edges() {
		assert.NotEmpty(t, e.To, "no edge should stay dangling")
	}
}

func TestUpsertReplacesOutgoing(t *testing.T) {
	g := sample(t)
	g.Upsert(4, rec("b", "jwt-pattern", rel("token-store", model.RelImplements)))

	assert.Empty(t, g.In("a"))
	require.Len(t, g.Out("b"), 1)
	assert.Equal(t, "c", g.Out("b")[0].To)

	// Stale versions are ignored.
	g.Upsert(2, rec("b", "jwt-pattern"))
	assert.Len(t, g.Out("b"), 1)
}

func TestTraverse(t *testing.T) {
	g := sample(t)

	steps, err := g.Traverse("auth-arch", Both, 2)
	require.NoError(t, err)
	require.Len(t, steps, 3)
	assert.Equal(t, "auth-arch", steps[0].Node.Slug)
	assert.Equal(t, 0, steps[0].Depth)
	assert.Equal(t, "jwt-pattern", steps[1].Node.Slug)
	assert.Equal(t, 1, steps[1].Depth)
	assert.Equal(t, "token-store", steps[2].Node.Slug)
	assert.Equal(t, 2, steps[2].Depth)

	one, err := g.Traverse("auth-arch", Both, 1)
	require.NoError(t, err)
	assert.Len(t, one, 2)

	none, err := g.Traverse("auth-arch", Outgoing, 3)
	require.NoError(t, err)
	assert.Len(t, none, 1)
}

func TestShortestPath(t *testing.T) {
	g := sample(t)

	path, err := g.ShortestPath("jwt-pattern", "token-store")
	require.NoError(t, err)
	require.Len(t, path, 1)
	assert.Equal(t, model.RelImplements, path[0].Kind)

	// Against the stored direction the edge is still returned as stored.
	back, err := g.ShortestPath("auth-arch", "jwt-pattern")
	require.NoError(t, err)
	require.Len(t, back, 1)
	assert.Equal(t, "b", back[0].From)
	assert.Equal(t, "a", back[0].To)

	// Siblings connect through their shared source.
	across, err := g.ShortestPath("auth-arch", "token-store")
	require.NoError(t, err)
	require.Len(t, across, 2)
	assert.Equal(t, model.RelReferences, across[0].Kind)
	assert.Equal(t, model.RelImplements, across[1].Kind)

	self, err := g.ShortestPath("a", "auth-arch")
	require.NoError(t, err)
	assert.Empty(t, self)
}

func TestShortestPathDisconnected(t *testing.T) {
	g, err := Build(2, seq(
		rec("a", "auth-arch"),
		rec("b", "jwt-pattern", rel("auth-arch", model.RelReferences)),
		rec("z", "standalone"),
	))
	require.NoError(t, err)

	_, err = g.ShortestPath("standalone", "jwt-pattern")
	assert.ErrorIs(t, err, ErrNoPath)
}

func TestCloneIsIndependent(t *testing.T) {
	g := sample(t)
	frozen := g.Clone()

	g.Upsert(4, rec("d", "new-node", rel("auth-arch", model.RelPartOf)))
	assert.Equal(t, 4, g.Len())
	assert.Equal(t, 3, frozen.Len())
	assert.Len(t, frozen.In("a"), 1)
	assert.Equal(t, int64(3), frozen.Snapshot())
}

func TestParseDirection(t *testing.T) {
	d, err := ParseDirection("")
	require.NoError(t, err)
	assert.Equal(t, Both, d)

	_, err = ParseDirection("sideways")
	assert.Error(t, err)
}
