package kb

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/ontomem/internal/embedding"
	"github.com/rcliao/ontomem/internal/graph"
	"github.com/rcliao/ontomem/internal/model"
	"github.com/rcliao/ontomem/internal/search"
	"github.com/rcliao/ontomem/internal/store"
)

func openTestKB(t *testing.T, path string) *KB {
	t.Helper()
	if path == "" {
		path = filepath.Join(t.TempDir(), "kb.db")
	}
	k, err := Open(context.Background(), Options{
		DBPath:   path,
		Embedder: embedding.NewHash(32),
		HubCount: 3,
	})
	require.NoError(t, err)
	t.Cleanup(func() { k.Close() })
	return k
}

func commitRecord(t *testing.T, k *KB, title, slug string, rels ...model.RelationRef) model.Record {
	t.Helper()
	res, err := k.Commit(context.Background(), model.Candidate{
		Kind:      string(model.KindDocument),
		Type:      string(model.TypePattern),
		Title:     title,
		Slug:      slug,
		Content:   "Notes on " + title,
		Relations: rels,
	})
	require.NoError(t, err)
	return res.Record
}

func TestNeighborsScenario(t *testing.T) {
	ctx := context.Background()
	k := openTestKB(t, "")

	commitRecord(t, k, "Authentication architecture", "auth-arch")
	commitRecord(t, k, "JWT pattern", "jwt-pattern", model.RelationRef{Target: "auth-arch", Kind: "references"})

	nb, err := k.Neighbors(ctx, "auth-arch", graph.Incoming, store.Latest)
	require.NoError(t, err)
	require.Len(t, nb, 1)
	assert.Equal(t, "jwt-pattern", nb[0].Node.Slug)
	assert.Equal(t, model.RelReferences, nb[0].Edge.Kind)

	// The graph of snapshot 1 predates the relation.
	old, err := k.Neighbors(ctx, "auth-arch", graph.Incoming, 1)
	require.NoError(t, err)
	assert.Empty(t, old)

	path, err := k.Path(ctx, "jwt-pattern", "auth-arch", store.Latest)
	require.NoError(t, err)
	assert.Len(t, path, 1)

	steps, err := k.Traverse(ctx, "auth-arch", graph.Both, 2, store.Latest)
	require.NoError(t, err)
	assert.Len(t, steps, 2)
}

func TestReopenRebuildsGraph(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "kb.db")

	k := openTestKB(t, path)
	commitRecord(t, k, "Authentication architecture", "auth-arch")
	commitRecord(t, k, "JWT pattern", "jwt-pattern", model.RelationRef{Target: "auth-arch", Kind: "references"})
	require.NoError(t, k.Close())

	reopened := openTestKB(t, path)
	nb, err := reopened.Neighbors(ctx, "jwt-pattern", graph.Outgoing, store.Latest)
	require.NoError(t, err)
	require.Len(t, nb, 1)
	assert.Equal(t, "auth-arch", nb[0].Node.Slug)
}

func TestReport(t *testing.T) {
	ctx := context.Background()
	k := openTestKB(t, "")

	commitRecord(t, k, "Authentication architecture", "auth-arch")
	commitRecord(t, k, "JWT pattern", "jwt-pattern", model.RelationRef{Target: "auth-arch", Kind: "references"})
	commitRecord(t, k, "Standalone note", "standalone")

	r, err := k.Report(ctx, store.Latest)
	require.NoError(t, err)
	assert.Equal(t, int64(3), r.Snapshot)
	assert.Equal(t, 3, r.ByType[model.TypePattern])
	require.Len(t, r.Orphans, 1)
	assert.Equal(t, "standalone", r.Orphans[0].Slug)
	assert.Len(t, r.Clusters, 2)

	_, err = k.SetStatus(ctx, "auth-arch", model.StatusDeprecated)
	require.NoError(t, err)
	r, err = k.Report(ctx, store.Latest)
	require.NoError(t, err)
	require.Len(t, r.Stale, 1)
	assert.Equal(t, "jwt-pattern", r.Stale[0].Source.Slug)
}

func TestSearchThroughKB(t *testing.T) {
	ctx := context.Background()
	k := openTestKB(t, "")
	commitRecord(t, k, "Token refresh rotation", "token-refresh")
	commitRecord(t, k, "Database vacuum schedule", "db-vacuum")

	lex, err := k.Search(ctx, store.Latest, search.Query{Text: "token", Mode: search.Lexical})
	require.NoError(t, err)
	require.Len(t, lex, 1)

	sem, err := k.Search(ctx, store.Latest, search.Query{Text: "token refresh", Mode: search.Semantic, K: 1})
	require.NoError(t, err)
	require.Len(t, sem, 1)
	assert.Equal(t, "token-refresh", sem[0].Record.Slug)
}

func TestPruneForgetsGraphs(t *testing.T) {
	ctx := context.Background()
	k := openTestKB(t, "")
	commitRecord(t, k, "First", "first")
	commitRecord(t, k, "Second", "second")

	_, err := k.Graph(ctx, 1)
	require.NoError(t, err)

	_, err = k.Prune(ctx, 1)
	require.NoError(t, err)
	_, err = k.Graph(ctx, 1)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestContext(t *testing.T) {
	ctx := context.Background()
	k := openTestKB(t, "")
	commitRecord(t, k, "Token refresh rotation", "token-refresh")
	commitRecord(t, k, "Token bucket limiter", "token-bucket", model.RelationRef{Target: "token-refresh", Kind: "references"})
	commitRecord(t, k, "Database vacuum schedule", "db-vacuum")

	res, err := k.Context(ctx, ContextParams{Query: "token", Budget: 100})
	require.NoError(t, err)
	require.Len(t, res.Records, 2)
	for _, r := range res.Records {
		assert.Contains(t, r.Title, "Token")
	}

	none, err := k.Context(ctx, ContextParams{Query: "kubernetes"})
	require.NoError(t, err)
	assert.Empty(t, none.Records)
}

func TestExportImport(t *testing.T) {
	ctx := context.Background()
	src := openTestKB(t, "")
	a := commitRecord(t, src, "Authentication architecture", "auth-arch")
	commitRecord(t, src, "JWT pattern", "jwt-pattern", model.RelationRef{Target: "auth-arch", Kind: "references"})

	recs, err := src.Export(ctx, store.Latest, "")
	require.NoError(t, err)
	require.Len(t, recs, 2)

	// Reverse so the importer has to reorder.
	recs[0], recs[1] = recs[1], recs[0]
	dst := openTestKB(t, "")
	res, err := dst.Import(ctx, recs)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Imported)

	got, err := dst.Get(ctx, "auth-arch", store.Latest)
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)
	assert.True(t, a.CreatedAt.Equal(got.CreatedAt))

	again, err := dst.Import(ctx, recs)
	require.NoError(t, err)
	assert.Equal(t, 2, again.Unchanged)
}

func TestDiffAcrossSnapshots(t *testing.T) {
	ctx := context.Background()
	k := openTestKB(t, "")
	commitRecord(t, k, "Authentication architecture", "auth-arch")
	_, err := k.SetStatus(ctx, "auth-arch", model.StatusDeprecated)
	require.NoError(t, err)

	d, err := k.Diff(ctx, "auth-arch", 1, 2)
	require.NoError(t, err)
	assert.Contains(t, d, "-status: active")
	assert.Contains(t, d, "+status: deprecated")

	// Snapshot 0 predates the record, so everything is added.
	created, err := k.Diff(ctx, "auth-arch", 0, 1)
	require.NoError(t, err)
	assert.Contains(t, created, "+title: Authentication architecture")

	_, err = k.Diff(ctx, "nope", 0, 2)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestExcerptKeepsRunesWhole(t *testing.T) {
	s := "naïve café"
	for n := 0; n <= len(s)+1; n++ {
		out := excerpt(s, n)
		assert.True(t, utf8.ValidString(out), "cut at %d", n)
		assert.LessOrEqual(t, len(out), n)
	}
	assert.Equal(t, "na", excerpt(s, 3))
}

func TestContextExcerptIsValidUTF8(t *testing.T) {
	ctx := context.Background()
	k := openTestKB(t, "")
	_, err := k.Commit(ctx, model.Candidate{
		Kind:    string(model.KindDocument),
		Type:    string(model.TypePattern),
		Title:   "Token glossary",
		Content: strings.Repeat("token é ", 200),
	})
	require.NoError(t, err)

	// 412 bytes of budget end inside an "é".
	res, err := k.Context(ctx, ContextParams{Query: "token", Budget: 103})
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	assert.True(t, res.Records[0].Excerpt)
	assert.True(t, utf8.ValidString(res.Records[0].Content))
}
