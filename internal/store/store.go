// Package store provides the versioned record store interface and its
// SQLite implementation.
package store

import (
	"context"
	"iter"
	"time"

	"github.com/rcliao/ontomem/internal/model"
)

// Latest selects the newest snapshot wherever a snapshot number is taken.
const Latest int64 = -1

// PutResult describes the outcome of a write.
type PutResult struct {
	Record   model.Record      `json:"record"`
	Snapshot int64             `json:"snapshot"`
	Applied  bool              `json:"applied"`
	Warnings []model.Violation `json:"warnings,omitempty"`
}

// Filter restricts a scan. Empty fields match everything; Tags must all be
// present; Meta compares custom_metadata values by their string form.
type Filter struct {
	Types    []model.SemanticType
	Statuses []model.Status
	Kinds    []model.RecordKind
	Tags     []string
	Meta     map[string]string
	Where    func(model.Record) bool
}

// SnapshotInfo is one entry of the snapshot manifest.
type SnapshotInfo struct {
	Number    int64     `json:"number"`
	CreatedAt time.Time `json:"created_at"`
	Op        string    `json:"op"`
	RecordID  string    `json:"record_id,omitempty"`
}

// PruneResult reports what a prune removed.
type PruneResult struct {
	Oldest           int64 `json:"oldest_retained"`
	Latest           int64 `json:"latest"`
	SnapshotsRemoved int64 `json:"snapshots_removed"`
	VersionsRemoved  int64 `json:"versions_removed"`
}

// Store defines the versioned record store.
type Store interface {
	// Put validates c and appends it as a new version, returning the new
	// snapshot. A write identical to the latest version is a no-op.
	Put(ctx context.Context, c model.Candidate) (*PutResult, error)

	// Get returns the record as of snapshot (or Latest).
	Get(ctx context.Context, id string, snapshot int64) (model.Record, error)

	// Resolve looks a record up by id or slug.
	Resolve(ctx context.Context, ref string, snapshot int64) (model.Record, error)

	// Scan lazily yields records matching f at snapshot. Each call starts
	// from scratch.
	Scan(ctx context.Context, f Filter, snapshot int64) iter.Seq2[model.Record, error]

	// Checkout returns a read-only handle on a historical snapshot.
	Checkout(ctx context.Context, snapshot int64) (*Snapshot, error)

	// Prune keeps the newest keep snapshots and drops record versions no
	// retained snapshot can see. Irreversible.
	Prune(ctx context.Context, keep int) (*PruneResult, error)

	// LatestSnapshot returns the newest snapshot number.
	LatestSnapshot(ctx context.Context) (int64, error)

	// Close closes the store.
	Close() error
}
