package store

import (
	"context"
	"iter"
	"time"

	"github.com/rcliao/ontomem/internal/model"
	"github.com/rcliao/ontomem/internal/validate"
)

// Snapshot is a read-only handle on one snapshot number. Every read first
// checks the snapshot is still retained, so a handle outliving a prune
// reports NotFound rather than partial data.
type Snapshot struct {
	s *SQLiteStore
	n int64
}

// Checkout returns a handle on snapshot n (or Latest, pinned at call time).
func (s *SQLiteStore) Checkout(ctx context.Context, snapshot int64) (*Snapshot, error) {
	n, err := s.resolveSnapshot(ctx, snapshot)
	if err != nil {
		return nil, err
	}
	return &Snapshot{s: s, n: n}, nil
}

// Number returns the snapshot number.
func (sn *Snapshot) Number() int64 { return sn.n }

func (sn *Snapshot) Get(ctx context.Context, id string) (model.Record, error) {
	return sn.s.Get(ctx, id, sn.n)
}

func (sn *Snapshot) Resolve(ctx context.Context, ref string) (model.Record, error) {
	return sn.s.Resolve(ctx, ref, sn.n)
}

func (sn *Snapshot) Scan(ctx context.Context, f Filter) iter.Seq2[model.Record, error] {
	return sn.s.Scan(ctx, f, sn.n)
}

func (sn *Snapshot) Incoming(ctx context.Context, id string) ([]Edge, error) {
	return sn.s.Incoming(ctx, id, sn.n)
}

// View exposes the snapshot to the validator, e.g. for dry-run checks.
func (sn *Snapshot) View() validate.View {
	return &sqlView{q: sn.s.db, snap: sn.n}
}

// Snapshots lists the retained snapshot manifest, oldest first.
func (s *SQLiteStore) Snapshots(ctx context.Context) ([]SnapshotInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT number, created_at, op, record_id FROM snapshots ORDER BY number`)
	if err != nil {
		return nil, ioErr("list snapshots", err)
	}
	defer rows.Close()

	var out []SnapshotInfo
	for rows.Next() {
		var info SnapshotInfo
		var createdAt string
		var recordID *string
		if err := rows.Scan(&info.Number, &createdAt, &info.Op, &recordID); err != nil {
			return nil, ioErr("list snapshots", err)
		}
		info.CreatedAt, _ = time.Parse(storedTimeFormat, createdAt)
		if recordID != nil {
			info.RecordID = *recordID
		}
		out = append(out, info)
	}
	if err := rows.Err(); err != nil {
		return nil, ioErr("list snapshots", err)
	}
	return out, nil
}

// Prune retains the newest keep snapshots. Versions superseded at or before
// the oldest retained snapshot are invisible to every retained snapshot and
// are deleted along with their relation rows. Holding writeMu makes prune
// exclusive with writes and with itself; readers are not blocked.
func (s *SQLiteStore) Prune(ctx context.Context, keep int) (*PruneResult, error) {
	if keep < 1 {
		return nil, &model.ValidationError{Violations: []model.Violation{{
			Kind:    model.VInvalidValue,
			Field:   "keep",
			Message: "at least one snapshot must be kept",
		}}}
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, ioErr("begin", err)
	}
	defer tx.Rollback()

	latest, err := latestSnapshot(ctx, tx)
	if err != nil {
		return nil, err
	}
	res := &PruneResult{Latest: latest, Oldest: latest - int64(keep) + 1}
	if res.Oldest <= 0 {
		res.Oldest = 0
		var oldest int64
		if err := tx.QueryRowContext(ctx, `SELECT MIN(number) FROM snapshots`).Scan(&oldest); err == nil {
			res.Oldest = oldest
		}
		return res, nil
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM record_relations WHERE version_id IN (
			SELECT version_id FROM record_versions WHERE valid_to IS NOT NULL AND valid_to <= ?)`,
		res.Oldest); err != nil {
		return nil, ioErr("prune relations", err)
	}
	out, err := tx.ExecContext(ctx,
		`DELETE FROM record_versions WHERE valid_to IS NOT NULL AND valid_to <= ?`, res.Oldest)
	if err != nil {
		return nil, ioErr("prune versions", err)
	}
	res.VersionsRemoved, _ = out.RowsAffected()

	out, err = tx.ExecContext(ctx, `DELETE FROM snapshots WHERE number < ?`, res.Oldest)
	if err != nil {
		return nil, ioErr("prune snapshots", err)
	}
	res.SnapshotsRemoved, _ = out.RowsAffected()

	if err := tx.Commit(); err != nil {
		return nil, ioErr("commit", err)
	}

	s.logger.Info("pruned snapshots", "oldest_retained", res.Oldest,
		"snapshots_removed", res.SnapshotsRemoved, "versions_removed", res.VersionsRemoved)
	return res, nil
}
