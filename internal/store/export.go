package store

import (
	"context"
	"fmt"

	"github.com/rcliao/ontomem/internal/model"
)

// ExportAll returns every record visible at snapshot, optionally limited to
// one semantic type.
func (s *SQLiteStore) ExportAll(ctx context.Context, snapshot int64, typ model.SemanticType) ([]model.Record, error) {
	var f Filter
	if typ != "" {
		f.Types = []model.SemanticType{typ}
	}
	return Collect(s.Scan(ctx, f, snapshot))
}

// ImportOrder sorts records so every relation target that is itself in the
// batch comes before the record referencing it. Targets outside the batch
// are left for validation to resolve against the store.
func ImportOrder(recs []model.Record) ([]model.Record, error) {
	index := make(map[string]int, len(recs)*2)
	for i, r := range recs {
		if r.ID != "" {
			index[r.ID] = i
		}
		if r.Slug != "" {
			index[r.Slug] = i
		}
	}

	const (
		unvisited = iota
		visiting
		done
	)
	state := make([]int, len(recs))
	out := make([]model.Record, 0, len(recs))

	var visit func(i int) error
	visit = func(i int) error {
		switch state[i] {
		case done:
			return nil
		case visiting:
			return fmt.Errorf("import: relation cycle through %q", recs[i].Slug)
		}
		state[i] = visiting
		for _, rel := range recs[i].Relations {
			j, ok := index[rel.Target]
			if !ok && rel.TargetID != "" {
				j, ok = index[rel.TargetID]
			}
			if ok && j != i {
				if err := visit(j); err != nil {
					return err
				}
			}
		}
		state[i] = done
		out = append(out, recs[i])
		return nil
	}

	for i := range recs {
		if err := visit(i); err != nil {
			return nil, err
		}
	}
	return out, nil
}
