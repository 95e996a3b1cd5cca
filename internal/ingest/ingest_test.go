package ingest

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/ontomem/internal/commit"
	"github.com/rcliao/ontomem/internal/model"
	"github.com/rcliao/ontomem/internal/store"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

const jwtDoc = `---
semantic_type: pattern
title: JWT pattern
tags: [auth, security]
relations:
  - target: auth-arch
    kind: references
custom_metadata:
  owner: platform
---
# JWT pattern

Sign tokens with a rotating key.
`

func TestParseFrontMatter(t *testing.T) {
	c, err := Parse([]byte(jwtDoc))
	require.NoError(t, err)
	assert.Equal(t, "pattern", c.Type)
	assert.Equal(t, "JWT pattern", c.Title)
	assert.Equal(t, []string{"auth", "security"}, c.Tags)
	require.Len(t, c.Relations, 1)
	assert.Equal(t, model.RelationRef{Target: "auth-arch", Kind: "references"}, c.Relations[0])
	assert.Equal(t, "platform", c.Metadata["owner"])
	assert.Equal(t, "# JWT pattern\n\nSign tokens with a rotating key.\n", c.Content)
}

func TestParsePlainMarkdown(t *testing.T) {
	c, err := Parse([]byte("intro\n\n# Rotation policy\n\nRotate weekly.\n"))
	require.NoError(t, err)
	assert.Equal(t, "Rotation policy", c.Title)
	assert.Empty(t, c.Type)
}

func TestParseUnterminated(t *testing.T) {
	_, err := Parse([]byte("---\ntitle: x\nno end"))
	assert.Error(t, err)
}

func TestRenderRoundTrip(t *testing.T) {
	in, err := Parse([]byte(jwtDoc))
	require.NoError(t, err)
	out, err := Render(in)
	require.NoError(t, err)
	again, err := Parse(out)
	require.NoError(t, err)
	assert.Equal(t, in, again)
}

func writeDoc(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func TestLoadGlob(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, filepath.Join(dir, "a.md"), "# A\n")
	writeDoc(t, filepath.Join(dir, "nested", "deep", "b.md"), "# B\n")
	writeDoc(t, filepath.Join(dir, "nested", "notes.txt"), "skip")

	docs, err := LoadGlob(filepath.Join(dir, "**", "*.md"))
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "A", docs[0].Candidate.Title)
	assert.Equal(t, filepath.Join(dir, "nested", "deep", "b.md"), docs[1].Path)
}

func TestCommitAllResolvesForwardReferences(t *testing.T) {
	ctx := context.Background()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"), store.WithLogger(quiet))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	c := commit.New(s, nil, nil, quiet)

	jwt, err := Parse([]byte(jwtDoc))
	require.NoError(t, err)
	docs := []Document{
		{Path: "jwt.md", Candidate: jwt},
		{Path: "auth.md", Candidate: model.Candidate{
			Type: "architectural-decision", Title: "Auth architecture", Slug: "auth-arch", Content: "OIDC everywhere.",
		}},
		{Path: "bad.md", Candidate: model.Candidate{Title: "No type"}},
	}

	sum := CommitAll(ctx, c, docs, quiet)
	assert.Equal(t, 2, sum.Committed)
	require.Len(t, sum.Failed, 1)
	assert.Equal(t, "bad.md", sum.Failed[0].Path)

	again := CommitAll(ctx, c, docs[:2], quiet)
	assert.Equal(t, 2, again.Unchanged)
}

func TestCommitAllRecommitsEditedDocument(t *testing.T) {
	ctx := context.Background()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"), store.WithLogger(quiet))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	c := commit.New(s, nil, nil, quiet)

	note := func(body string) []Document {
		cand, err := Parse([]byte("---\nsemantic_type: memory\ntitle: Note\n---\n" + body))
		require.NoError(t, err)
		return []Document{{Path: "note.md", Candidate: cand}}
	}

	first := CommitAll(ctx, c, note("Rotate keys weekly.\n"), quiet)
	require.Empty(t, first.Failed)
	assert.Equal(t, 1, first.Committed)

	same := CommitAll(ctx, c, note("Rotate keys weekly.\n"), quiet)
	assert.Empty(t, same.Failed)
	assert.Equal(t, 1, same.Unchanged)

	edited := CommitAll(ctx, c, note("Rotate keys daily.\n"), quiet)
	require.Empty(t, edited.Failed)
	assert.Equal(t, 1, edited.Committed)

	rec, err := s.Resolve(ctx, "note", store.Latest)
	require.NoError(t, err)
	assert.Equal(t, 2, rec.Version)
	assert.Equal(t, model.KindDocument, rec.Kind)
	assert.Equal(t, "Rotate keys daily.\n", rec.Content)
}

func TestCommitAllGivesUpOnMissingTargets(t *testing.T) {
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"), store.WithLogger(quiet))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	jwt, err := Parse([]byte(jwtDoc))
	require.NoError(t, err)
	sum := CommitAll(context.Background(), commit.New(s, nil, nil, quiet), []Document{{Path: "jwt.md", Candidate: jwt}}, quiet)
	assert.Zero(t, sum.Committed)
	require.Len(t, sum.Failed, 1)
	assert.Contains(t, sum.Failed[0].Error, "auth-arch")
}

func TestWatcherDebounces(t *testing.T) {
	dir := t.TempDir()
	changed := make(chan string, 10)
	w, err := NewWatcher(dir, func(p string) { changed <- p },
		WithDebounce(50*time.Millisecond), WithWatchLogger(quiet))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	path := filepath.Join(dir, "note.md")
	for i := 0; i < 3; i++ {
		writeDoc(t, path, "# Note\n")
	}
	writeDoc(t, filepath.Join(dir, "ignored.txt"), "x")

	select {
	case got := <-changed:
		assert.Equal(t, path, got)
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
	}
	select {
	case extra := <-changed:
		t.Fatalf("unexpected second report for %s", extra)
	case <-time.After(300 * time.Millisecond):
	}
}
