package store

import (
	"context"
	"fmt"
	"iter"
	"slices"
	"strings"

	"github.com/rcliao/ontomem/internal/model"
)

// Scan yields the records visible at snapshot that match f, ordered by
// creation time then id. Rows are read as the caller iterates; breaking out
// early releases the cursor.
func (s *SQLiteStore) Scan(ctx context.Context, f Filter, snapshot int64) iter.Seq2[model.Record, error] {
	return func(yield func(model.Record, error) bool) {
		n, err := s.resolveSnapshot(ctx, snapshot)
		if err != nil {
			yield(model.Record{}, err)
			return
		}

		where, args := f.sql(n)
		rows, err := s.db.QueryContext(ctx,
			`SELECT `+versionColumns+` FROM record_versions v WHERE `+where+
				` ORDER BY v.created_at, v.record_id`, args...)
		if err != nil {
			yield(model.Record{}, ioErr("scan", err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			rec, err := scanRecord(rows)
			if err != nil {
				yield(model.Record{}, ioErr("scan", err))
				return
			}
			if !f.Match(rec) {
				continue
			}
			if !yield(rec, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(model.Record{}, ioErr("scan", err))
		}
	}
}

// Collect drains a scan into a slice.
func Collect(seq iter.Seq2[model.Record, error]) ([]model.Record, error) {
	var out []model.Record
	for rec, err := range seq {
		if err != nil {
			return out, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (f Filter) sql(snapshot int64) (string, []any) {
	where := []string{visibleAt}
	args := []any{snapshot, snapshot}

	in := func(col string, vals []string) {
		if len(vals) == 0 {
			return
		}
		where = append(where, col+" IN ("+strings.TrimSuffix(strings.Repeat("?,", len(vals)), ",")+")")
		for _, v := range vals {
			args = append(args, v)
		}
	}
	in("v.semantic_type", stringsOf(f.Types))
	in("v.status", stringsOf(f.Statuses))
	in("v.record_kind", stringsOf(f.Kinds))

	return strings.Join(where, " AND "), args
}

// Match applies the parts of f that are not pushed down to SQL, plus the
// enumerated ones so callers can reuse a Filter on in-memory records.
func (f Filter) Match(r model.Record) bool {
	if len(f.Types) > 0 && !slices.Contains(f.Types, r.Type) {
		return false
	}
	if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, r.Status) {
		return false
	}
	if len(f.Kinds) > 0 && !slices.Contains(f.Kinds, r.Kind) {
		return false
	}
	for _, t := range f.Tags {
		if !r.HasTag(t) {
			return false
		}
	}
	for k, want := range f.Meta {
		got, ok := r.Metadata[k]
		if !ok || fmt.Sprint(got) != want {
			return false
		}
	}
	if f.Where != nil && !f.Where(r) {
		return false
	}
	return true
}

func stringsOf[T ~string](vals []T) []string {
	out := make([]string, len(vals))
	for i, v := range vals {
		out[i] = string(v)
	}
	return out
}
