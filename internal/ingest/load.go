package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/rcliao/ontomem/internal/commit"
	"github.com/rcliao/ontomem/internal/model"
	"github.com/rcliao/ontomem/internal/store"
	"github.com/rcliao/ontomem/internal/validate"
)

// Document is a parsed file.
type Document struct {
	Path      string          `json:"path"`
	Candidate model.Candidate `json:"candidate"`
}

// ParseFile reads and parses one document.
func ParseFile(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("read %s: %w", path, err)
	}
	c, err := Parse(data)
	if err != nil {
		return Document{}, fmt.Errorf("%s: %w", path, err)
	}
	return Document{Path: path, Candidate: c}, nil
}

// LoadGlob parses every file matching pattern, which may use ** to match
// across directories. Results are ordered by path.
func LoadGlob(pattern string) ([]Document, error) {
	base, pat := doublestar.SplitPattern(filepath.ToSlash(pattern))
	matches, err := doublestar.Glob(os.DirFS(filepath.FromSlash(base)), pat, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("glob %s: %w", pattern, err)
	}
	slices.Sort(matches)

	docs := make([]Document, 0, len(matches))
	for _, m := range matches {
		doc, err := ParseFile(filepath.Join(filepath.FromSlash(base), filepath.FromSlash(m)))
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// Committer writes candidates and looks up what is already stored.
type Committer interface {
	Commit(ctx context.Context, c model.Candidate) (*commit.Result, error)
	Get(ctx context.Context, ref string, snapshot int64) (model.Record, error)
}

// Failure is a document that could not be committed.
type Failure struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// Summary reports what CommitAll did.
type Summary struct {
	Committed int       `json:"committed"`
	Unchanged int       `json:"unchanged"`
	Failed    []Failure `json:"failed,omitempty"`
}

// CommitAll commits docs. A document without an id updates the stored
// record holding its slug, so re-ingesting an edited file writes a new
// version. Documents without a record_kind are documents. Documents that
// reference others in the same batch are retried after the rest, pass by
// pass, until a pass makes no progress.
func CommitAll(ctx context.Context, c Committer, docs []Document, logger *slog.Logger) Summary {
	if logger == nil {
		logger = slog.Default()
	}
	var sum Summary
	pending := docs
	for len(pending) > 0 {
		var retry []Document
		var failed []Failure
		for _, doc := range pending {
			cand, err := prepare(ctx, c, doc.Candidate)
			if err != nil {
				logger.Warn("document rejected", "path", doc.Path, "error", err)
				sum.Failed = append(sum.Failed, Failure{Path: doc.Path, Error: err.Error()})
				continue
			}
			res, err := c.Commit(ctx, cand)
			switch {
			case err == nil && res.Applied:
				sum.Committed++
				logger.Info("document committed", "path", doc.Path, "id", res.Record.ID, "snapshot", res.Snapshot)
			case err == nil:
				sum.Unchanged++
			case unresolved(err):
				retry = append(retry, doc)
				failed = append(failed, Failure{Path: doc.Path, Error: err.Error()})
			default:
				logger.Warn("document rejected", "path", doc.Path, "error", err)
				sum.Failed = append(sum.Failed, Failure{Path: doc.Path, Error: err.Error()})
			}
		}
		if len(retry) == len(pending) {
			sum.Failed = append(sum.Failed, failed...)
			break
		}
		pending = retry
	}
	return sum
}

func prepare(ctx context.Context, c Committer, cand model.Candidate) (model.Candidate, error) {
	if cand.Kind == "" {
		cand.Kind = string(model.KindDocument)
	}
	if strings.TrimSpace(cand.ID) != "" {
		return cand, nil
	}
	slug := strings.TrimSpace(cand.Slug)
	if slug == "" {
		slug = validate.Slugify(strings.TrimSpace(cand.Title))
	}
	if slug == "" {
		return cand, nil
	}
	rec, err := c.Get(ctx, slug, store.Latest)
	switch {
	case errors.Is(err, model.ErrNotFound):
		return cand, nil
	case err != nil:
		return cand, err
	}
	if rec.Slug == slug {
		cand.ID = rec.ID
	}
	return cand, nil
}

func unresolved(err error) bool {
	var verr *model.ValidationError
	return errors.As(err, &verr) && verr.Has(model.VUnresolvedReference)
}

func isMarkdown(path string) bool {
	ext := filepath.Ext(path)
	return ext == ".md" || ext == ".markdown"
}
