package kb

import (
	"context"
	"fmt"

	"github.com/rcliao/ontomem/internal/model"
	"github.com/rcliao/ontomem/internal/store"
)

// ImportResult counts what an import wrote.
type ImportResult struct {
	Imported  int   `json:"imported"`
	Unchanged int   `json:"unchanged"`
	Snapshot  int64 `json:"snapshot"`
}

// Export returns every record visible at snapshot, optionally of one type.
func (k *KB) Export(ctx context.Context, snapshot int64, typ model.SemanticType) ([]model.Record, error) {
	return k.store.ExportAll(ctx, snapshot, typ)
}

// Import commits exported records, relation targets first, keeping their
// ids and creation times. Records already present unchanged are counted but
// not rewritten. It stops at the first failure; earlier records stay
// committed.
func (k *KB) Import(ctx context.Context, recs []model.Record) (*ImportResult, error) {
	ordered, err := store.ImportOrder(recs)
	if err != nil {
		return nil, err
	}

	res := &ImportResult{}
	for _, rec := range ordered {
		cand := rec.Candidate()
		cand.ModifiedAt = ""
		out, err := k.Commit(ctx, cand)
		if err != nil {
			return res, fmt.Errorf("import %s: %w", rec.Slug, err)
		}
		if out.Applied {
			res.Imported++
		} else {
			res.Unchanged++
		}
		res.Snapshot = out.Snapshot
	}
	k.logger.Info("import finished", "imported", res.Imported, "unchanged", res.Unchanged)
	return res, nil
}
