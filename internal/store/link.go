package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/rcliao/ontomem/internal/model"
)

// Edge is one stored relation as seen from a snapshot.
type Edge struct {
	SourceID string             `json:"source_id"`
	TargetID string             `json:"target_id"`
	Target   string             `json:"target"`
	Kind     model.RelationKind `json:"kind"`
}

func insertRelations(ctx context.Context, tx *sql.Tx, versionID string, r model.Record) error {
	for i, rel := range r.Relations {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO record_relations (version_id, seq, source_id, target_ref, target_id, kind)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			versionID, i, r.ID, rel.Target, rel.TargetID, string(rel.Kind)); err != nil {
			return ioErr("insert relation", err)
		}
	}
	return nil
}

// Incoming returns the relations that point at id as of snapshot.
func (s *SQLiteStore) Incoming(ctx context.Context, id string, snapshot int64) ([]Edge, error) {
	n, err := s.resolveSnapshot(ctx, snapshot)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT r.source_id, r.target_id, r.target_ref, r.kind
		 FROM record_relations r JOIN record_versions v ON v.version_id = r.version_id
		 WHERE r.target_id = ? AND `+visibleAt+`
		 ORDER BY r.source_id, r.seq`, id, n, n)
	if err != nil {
		return nil, ioErr("incoming relations", err)
	}
	defer rows.Close()

	var edges []Edge
	for rows.Next() {
		var e Edge
		var kind string
		if err := rows.Scan(&e.SourceID, &e.TargetID, &e.Target, &kind); err != nil {
			return nil, ioErr("incoming relations", err)
		}
		e.Kind = model.RelationKind(kind)
		edges = append(edges, e)
	}
	if err := rows.Err(); err != nil {
		return nil, ioErr("incoming relations", err)
	}
	return edges, nil
}

// sqlView is the validate.View of one snapshot, read through either the
// pool or the write transaction.
type sqlView struct {
	q    querier
	snap int64
}

func (v *sqlView) ByID(ctx context.Context, id string) (model.Record, bool, error) {
	return v.one(ctx, `v.record_id = ?`, id)
}

func (v *sqlView) BySlug(ctx context.Context, slug string) (model.Record, bool, error) {
	return v.one(ctx, `v.slug = ?`, slug)
}

func (v *sqlView) one(ctx context.Context, cond string, arg string) (model.Record, bool, error) {
	row := v.q.QueryRowContext(ctx,
		`SELECT `+versionColumns+` FROM record_versions v WHERE `+cond+` AND `+visibleAt+` LIMIT 1`,
		arg, v.snap, v.snap)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Record{}, false, nil
	}
	if err != nil {
		return model.Record{}, false, ioErr("read record", err)
	}
	return rec, true, nil
}

// Reaches walks stored relations forward from from. UNION drops revisited
// ids, so the walk ends even if the data already holds a cycle.
func (v *sqlView) Reaches(ctx context.Context, from, to string) (bool, error) {
	var one int
	err := v.q.QueryRowContext(ctx, `
		WITH RECURSIVE reach(id) AS (
			SELECT ?
			UNION
			SELECT r.target_id
			FROM record_relations r
			JOIN record_versions v ON v.version_id = r.version_id
			JOIN reach ON r.source_id = reach.id
			WHERE `+visibleAt+`
		)
		SELECT 1 FROM reach WHERE id = ? LIMIT 1`, from, v.snap, v.snap, to).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, ioErr("reachability", err)
	}
	return true, nil
}

// resolveRef finds a record by id or slug. A ref naming one record by id and
// another by slug is reported as ambiguous rather than guessed.
func resolveRef(ctx context.Context, v *sqlView, ref string) (model.Record, error) {
	byID, idFound, err := v.ByID(ctx, ref)
	if err != nil {
		return model.Record{}, err
	}
	bySlug, slugFound, err := v.BySlug(ctx, ref)
	if err != nil {
		return model.Record{}, err
	}
	switch {
	case idFound && slugFound && byID.ID != bySlug.ID:
		return model.Record{}, &model.ValidationError{Violations: []model.Violation{{
			Kind:    model.VAmbiguousReference,
			Field:   "ref",
			Message: "matches " + byID.ID + " by id and " + bySlug.ID + " by slug",
			Value:   ref,
		}}}
	case idFound:
		return byID, nil
	case slugFound:
		return bySlug, nil
	}
	return model.Record{}, &model.NotFoundError{What: "record", Ref: ref}
}
