package analytics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/ontomem/internal/graph"
	"github.com/rcliao/ontomem/internal/model"
)

func node(id, slug string, status model.Status, rels ...model.Relation) model.Record {
	return model.Record{
		ID:        id,
		Slug:      slug,
		Title:     slug,
		Kind:      model.KindDocument,
		Type:      model.TypePattern,
		Status:    status,
		Relations: rels,
	}
}

func rel(target string, kind model.RelationKind) model.Relation {
	return model.Relation{Target: target, Kind: kind}
}

// hub <- a, hub <- b (implements + contradicts), old <- a, lonely, ghost -> missing
func fixture() *graph.Graph {
	g := graph.New()
	recs := []model.Record{
		node("h", "hub", model.StatusActive),
		node("o", "old", model.StatusDeprecated),
		node("a", "alpha", model.StatusActive, rel("hub", model.RelReferences), rel("old", model.RelReferences)),
		node("b", "beta", model.StatusActive, rel("hub", model.RelImplements), rel("hub", model.RelContradicts)),
		node("l", "lonely", model.StatusActive),
		node("g", "ghost", model.StatusDraft, rel("missing", model.RelPartOf)),
	}
	for i, r := range recs {
		g.Upsert(int64(i+1), r)
	}
	return g
}

func TestCentralityAndHubs(t *testing.T) {
	g := fixture()

	hubs := Hubs(g, 2)
	require.Len(t, hubs, 2)
	assert.Equal(t, "hub", hubs[0].Node.Slug)
	assert.Equal(t, 3, hubs[0].In)
	assert.Equal(t, 0, hubs[0].Out)

	all := Centrality(g)
	require.Len(t, all, 6)
	last := all[len(all)-1]
	assert.Equal(t, "lonely", last.Node.Slug)
	assert.Equal(t, 0, last.Total)

	for _, h := range Hubs(g, 10) {
		assert.NotEqual(t, "lonely", h.Node.Slug)
	}
}

func TestWeightedCentrality(t *testing.T) {
	g := fixture()
	w := Weights{model.RelContradicts: 0, model.RelImplements: 0, model.RelReferences: 5}

	ranked := WeightedCentrality(g, w)
	assert.Equal(t, "alpha", ranked[0].Node.Slug)
	assert.InDelta(t, 10.0, ranked[0].Weighted, 0.001)
}

func TestOrphansAppearOnce(t *testing.T) {
	orphans := Orphans(fixture())
	require.Len(t, orphans, 1)
	assert.Equal(t, "lonely", orphans[0].Slug)
}

func TestClusters(t *testing.T) {
	clusters := Clusters(fixture())
	require.Len(t, clusters, 3)
	assert.Len(t, clusters[0].Nodes, 4)
	assert.Len(t, clusters[1].Nodes, 1)
	assert.Len(t, clusters[2].Nodes, 1)

	seen := map[string]int{}
	for _, c := range clusters {
		for _, n := range c.Nodes {
			seen[n.Slug]++
		}
	}
	assert.Len(t, seen, 6)
	for slug, n := range seen {
		assert.Equal(t, 1, n, slug)
	}
}

func TestBrokenStaleConflicting(t *testing.T) {
	g := fixture()

	broken := BrokenReferences(g)
	require.Len(t, broken, 1)
	assert.Equal(t, "ghost", broken[0].Source.Slug)
	assert.Equal(t, "missing", broken[0].Ref)

	stale := StaleReferences(g)
	require.Len(t, stale, 1)
	assert.Equal(t, "alpha", stale[0].Source.Slug)
	assert.Equal(t, "old", stale[0].Target.Slug)

	conflicts := ConflictingRelations(g)
	require.Len(t, conflicts, 1)
	assert.ElementsMatch(t, []string{"beta", "hub"}, []string{conflicts[0].A.Slug, conflicts[0].B.Slug})
	assert.Equal(t, []model.RelationKind{model.RelContradicts, model.RelImplements}, conflicts[0].Kinds)
}

func TestBuildReport(t *testing.T) {
	g := fixture()
	r, err := BuildReport(context.Background(), g, Options{HubCount: 1, Weights: Weights{model.RelReferences: 2}})
	require.NoError(t, err)

	assert.Equal(t, int64(6), r.Snapshot)
	assert.Equal(t, 6, r.Nodes)
	assert.Equal(t, 5, r.Edges)
	assert.Equal(t, 6, r.ByType[model.TypePattern])
	assert.Equal(t, 1, r.ByStatus[model.StatusDeprecated])
	assert.Len(t, r.Hubs, 1)
	assert.Len(t, r.Weighted, 1)
	assert.Len(t, r.Orphans, 1)
	assert.Len(t, r.Broken, 1)
	assert.Len(t, r.Stale, 1)
	assert.Len(t, r.Conflicts, 1)
}

func TestBuildReportCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := BuildReport(ctx, fixture(), Options{})
	assert.ErrorIs(t, err, context.Canceled)
}
