package kb

import (
	"context"
	"errors"
	"fmt"

	"github.com/hexops/gotextdiff"
	"github.com/hexops/gotextdiff/myers"
	"github.com/hexops/gotextdiff/span"

	"github.com/rcliao/ontomem/internal/ingest"
	"github.com/rcliao/ontomem/internal/model"
)

// Diff returns a unified diff of ref between two snapshots, both rendered as
// front-matter documents. A record absent at one side diffs against empty
// text; absent at both is a not-found error.
func (k *KB) Diff(ctx context.Context, ref string, from, to int64) (string, error) {
	before, okBefore, err := k.renderAt(ctx, ref, from)
	if err != nil {
		return "", err
	}
	after, okAfter, err := k.renderAt(ctx, ref, to)
	if err != nil {
		return "", err
	}
	if !okBefore && !okAfter {
		return "", &model.NotFoundError{What: "record", Ref: ref}
	}

	a := fmt.Sprintf("%s@%d", ref, from)
	b := fmt.Sprintf("%s@%d", ref, to)
	edits := myers.ComputeEdits(span.URIFromPath(a), before, after)
	return fmt.Sprint(gotextdiff.ToUnified(a, b, before, edits)), nil
}

func (k *KB) renderAt(ctx context.Context, ref string, snapshot int64) (string, bool, error) {
	rec, err := k.store.Resolve(ctx, ref, snapshot)
	if errors.Is(err, model.ErrNotFound) {
		// The snapshot itself may be unknown; only a missing record is empty.
		if _, cerr := k.store.Checkout(ctx, snapshot); cerr != nil {
			return "", false, cerr
		}
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	c := rec.Candidate()
	c.Embedding = nil
	c.ModifiedAt = ""
	out, err := ingest.Render(c)
	if err != nil {
		return "", false, err
	}
	return string(out), true, nil
}
