package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/rcliao/ontomem/internal/model"
	"github.com/rcliao/ontomem/internal/validate"
)

// storedTimeFormat has fixed width so stored timestamps sort as strings.
const storedTimeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore implements Store using SQLite. Writes are serialized through
// writeMu; readers never take it.
type SQLiteStore struct {
	db        *sql.DB
	path      string
	validator *validate.Validator
	logger    *slog.Logger
	now       func() time.Time

	writeMu sync.Mutex
	entropy *rand.Rand
}

// Option configures a SQLiteStore.
type Option func(*SQLiteStore)

// WithValidator sets the validator used by Put.
func WithValidator(v *validate.Validator) Option {
	return func(s *SQLiteStore) { s.validator = v }
}

// WithLogger sets the store logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *SQLiteStore) { s.logger = l }
}

// WithClock overrides the time source for modified_at and the manifest.
func WithClock(now func() time.Time) Option {
	return func(s *SQLiteStore) { s.now = now }
}

// NewSQLiteStore opens or creates a SQLite database at the given path.
func NewSQLiteStore(dbPath string, opts ...Option) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	s := &SQLiteStore{
		db:      db,
		path:    dbPath,
		logger:  slog.Default(),
		now:     time.Now,
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.validator == nil {
		s.validator = validate.New(nil)
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	s.logger.Info("record store opened", "path", dbPath)
	return s, nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string { return s.path }

// Validator returns the validator Put runs.
func (s *SQLiteStore) Validator() *validate.Validator { return s.validator }

func (s *SQLiteStore) newVersionID() string {
	return ulid.MustNew(ulid.Timestamp(s.now()), s.entropy).String()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS snapshots (
		number     INTEGER PRIMARY KEY,
		created_at TEXT NOT NULL,
		op         TEXT NOT NULL,
		record_id  TEXT
	);

	CREATE TABLE IF NOT EXISTS record_versions (
		version_id    TEXT PRIMARY KEY,
		record_id     TEXT NOT NULL,
		record_kind   TEXT NOT NULL,
		semantic_type TEXT NOT NULL,
		title         TEXT NOT NULL,
		slug          TEXT NOT NULL,
		content       TEXT NOT NULL,
		tags          TEXT,
		relations     TEXT,
		status        TEXT NOT NULL,
		embedding     BLOB,
		created_at    TEXT NOT NULL,
		modified_at   TEXT NOT NULL,
		meta          TEXT,
		content_hash  TEXT NOT NULL,
		version       INTEGER NOT NULL,
		valid_from    INTEGER NOT NULL,
		valid_to      INTEGER
	);
	CREATE INDEX IF NOT EXISTS idx_versions_record ON record_versions(record_id, valid_from);
	CREATE INDEX IF NOT EXISTS idx_versions_slug ON record_versions(slug, valid_from);
	CREATE INDEX IF NOT EXISTS idx_versions_window ON record_versions(valid_from, valid_to);
	CREATE INDEX IF NOT EXISTS idx_versions_type ON record_versions(semantic_type, status);

	CREATE TABLE IF NOT EXISTS record_relations (
		version_id TEXT NOT NULL REFERENCES record_versions(version_id) ON DELETE CASCADE,
		seq        INTEGER NOT NULL,
		source_id  TEXT NOT NULL,
		target_ref TEXT NOT NULL,
		target_id  TEXT NOT NULL,
		kind       TEXT NOT NULL,
		PRIMARY KEY (version_id, seq)
	);
	CREATE INDEX IF NOT EXISTS idx_relations_source ON record_relations(source_id);
	CREATE INDEX IF NOT EXISTS idx_relations_target ON record_relations(target_id);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	// Snapshot 0 is the empty store.
	_, err := s.db.Exec(`INSERT OR IGNORE INTO snapshots (number, created_at, op) VALUES (0, ?, 'init')`,
		s.now().UTC().Format(storedTimeFormat))
	return err
}

// Put validates c against the latest snapshot and appends it as a new
// version under a new snapshot number. Nothing is visible to readers until
// the transaction commits.
func (s *SQLiteStore) Put(ctx context.Context, c model.Candidate) (*PutResult, error) {
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

	res, err := s.validator.Validate(ctx, &sqlView{q: tx, snap: latest}, c)
	if err != nil {
		return nil, err
	}
	norm := res.Record
	hash := contentHash(norm)

	version := 1
	if res.Existing != nil {
		var prevHash string
		err := tx.QueryRowContext(ctx,
			`SELECT content_hash, version FROM record_versions WHERE record_id = ? AND valid_to IS NULL`,
			norm.ID).Scan(&prevHash, &version)
		if err != nil {
			return nil, ioErr("load previous version", err)
		}
		if prevHash == hash {
			s.logger.Debug("put is a no-op", "id", norm.ID, "snapshot", latest)
			return &PutResult{Record: *res.Existing, Snapshot: latest, Applied: false, Warnings: res.Warnings}, nil
		}
		version++
	}

	next := latest + 1
	now := s.now().UTC()
	norm.ModifiedAt = now
	if norm.ModifiedAt.Before(norm.CreatedAt) {
		norm.ModifiedAt = norm.CreatedAt
	}
	norm.Version = version
	norm.Snapshot = next
	versionID := s.newVersionID()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO snapshots (number, created_at, op, record_id) VALUES (?, ?, 'put', ?)`,
		next, now.Format(storedTimeFormat), norm.ID); err != nil {
		return nil, ioErr("insert snapshot", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE record_versions SET valid_to = ? WHERE record_id = ? AND valid_to IS NULL`,
		next, norm.ID); err != nil {
		return nil, ioErr("close previous version", err)
	}

	tagsJSON, relsJSON, metaJSON, err := encodeColumns(norm)
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO record_versions (version_id, record_id, record_kind, semantic_type, title, slug, content,
		                              tags, relations, status, embedding, created_at, modified_at, meta,
		                              content_hash, version, valid_from)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		versionID, norm.ID, string(norm.Kind), string(norm.Type), norm.Title, norm.Slug, norm.Content,
		tagsJSON, relsJSON, string(norm.Status), encodeVector(norm.Embedding),
		norm.CreatedAt.UTC().Format(storedTimeFormat), norm.ModifiedAt.Format(storedTimeFormat), metaJSON,
		hash, version, next); err != nil {
		return nil, ioErr("insert version", err)
	}
	if err := insertRelations(ctx, tx, versionID, norm); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, ioErr("commit", err)
	}

	s.logger.Info("snapshot written", "snapshot", next, "id", norm.ID, "slug", norm.Slug, "version", version)
	return &PutResult{Record: norm, Snapshot: next, Applied: true, Warnings: res.Warnings}, nil
}

// Get returns the record with the given id as of snapshot.
func (s *SQLiteStore) Get(ctx context.Context, id string, snapshot int64) (model.Record, error) {
	n, err := s.resolveSnapshot(ctx, snapshot)
	if err != nil {
		return model.Record{}, err
	}
	rec, found, err := (&sqlView{q: s.db, snap: n}).ByID(ctx, id)
	if err != nil {
		return model.Record{}, err
	}
	if !found {
		return model.Record{}, &model.NotFoundError{What: "record", Ref: id}
	}
	return rec, nil
}

// Resolve returns the record whose id or slug is ref as of snapshot.
func (s *SQLiteStore) Resolve(ctx context.Context, ref string, snapshot int64) (model.Record, error) {
	n, err := s.resolveSnapshot(ctx, snapshot)
	if err != nil {
		return model.Record{}, err
	}
	return resolveRef(ctx, &sqlView{q: s.db, snap: n}, ref)
}

// History returns every retained version of id, newest first.
func (s *SQLiteStore) History(ctx context.Context, id string) ([]model.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+versionColumns+` FROM record_versions v WHERE v.record_id = ? ORDER BY v.version DESC`, id)
	if err != nil {
		return nil, ioErr("history", err)
	}
	defer rows.Close()

	var out []model.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, ioErr("history", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, ioErr("history", err)
	}
	if len(out) == 0 {
		return nil, &model.NotFoundError{What: "record", Ref: id}
	}
	return out, nil
}

// LatestSnapshot returns the newest snapshot number.
func (s *SQLiteStore) LatestSnapshot(ctx context.Context) (int64, error) {
	return latestSnapshot(ctx, s.db)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// resolveSnapshot maps Latest to a number and checks the snapshot is retained.
func (s *SQLiteStore) resolveSnapshot(ctx context.Context, snapshot int64) (int64, error) {
	if snapshot == Latest {
		return latestSnapshot(ctx, s.db)
	}
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM snapshots WHERE number = ?`, snapshot).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, &model.NotFoundError{What: "snapshot", Ref: fmt.Sprint(snapshot)}
	}
	if err != nil {
		return 0, ioErr("lookup snapshot", err)
	}
	return snapshot, nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func latestSnapshot(ctx context.Context, q querier) (int64, error) {
	var n sql.NullInt64
	if err := q.QueryRowContext(ctx, `SELECT MAX(number) FROM snapshots`).Scan(&n); err != nil {
		return 0, ioErr("latest snapshot", err)
	}
	return n.Int64, nil
}

const versionColumns = `v.record_id, v.record_kind, v.semantic_type, v.title, v.slug, v.content, v.tags,
	v.relations, v.status, v.embedding, v.created_at, v.modified_at, v.meta, v.version, v.valid_from`

// visibleAt restricts record_versions v to the versions a snapshot sees.
const visibleAt = `v.valid_from <= ? AND (v.valid_to IS NULL OR v.valid_to > ?)`

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (model.Record, error) {
	var r model.Record
	var kind, typ, status, createdAt, modifiedAt string
	var tags, rels, meta sql.NullString
	var emb []byte

	err := row.Scan(
		&r.ID, &kind, &typ, &r.Title, &r.Slug, &r.Content, &tags,
		&rels, &status, &emb, &createdAt, &modifiedAt, &meta, &r.Version, &r.Snapshot,
	)
	if err != nil {
		return r, err
	}

	r.Kind = model.RecordKind(kind)
	r.Type = model.SemanticType(typ)
	r.Status = model.Status(status)
	r.CreatedAt, _ = time.Parse(storedTimeFormat, createdAt)
	r.ModifiedAt, _ = time.Parse(storedTimeFormat, modifiedAt)
	r.Embedding = decodeVector(emb)
	if tags.Valid {
		if err := json.Unmarshal([]byte(tags.String), &r.Tags); err != nil {
			return r, fmt.Errorf("decode tags: %w", err)
		}
	}
	if rels.Valid {
		if err := json.Unmarshal([]byte(rels.String), &r.Relations); err != nil {
			return r, fmt.Errorf("decode relations: %w", err)
		}
	}
	if meta.Valid {
		if err := json.Unmarshal([]byte(meta.String), &r.Metadata); err != nil {
			return r, fmt.Errorf("decode metadata: %w", err)
		}
	}
	return r, nil
}

func encodeColumns(r model.Record) (tags, rels, meta *string, err error) {
	enc := func(v any) (*string, error) {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		s := string(b)
		return &s, nil
	}
	if len(r.Tags) > 0 {
		if tags, err = enc(r.Tags); err != nil {
			return nil, nil, nil, fmt.Errorf("encode tags: %w", err)
		}
	}
	if len(r.Relations) > 0 {
		if rels, err = enc(r.Relations); err != nil {
			return nil, nil, nil, fmt.Errorf("encode relations: %w", err)
		}
	}
	if len(r.Metadata) > 0 {
		if meta, err = enc(r.Metadata); err != nil {
			return nil, nil, nil, fmt.Errorf("encode metadata: %w", err)
		}
	}
	return tags, rels, meta, nil
}

// encodeVector stores an embedding as little-endian float32s.
func encodeVector(v []float32) []byte {
	if len(v) == 0 {
		return nil
	}
	b := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(b[4*i:], math.Float32bits(f))
	}
	return b
}

func decodeVector(b []byte) []float32 {
	if len(b) < 4 {
		return nil
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v
}

// contentHash fingerprints everything a caller controls, so an identical
// resubmission can be recognized as already applied.
func contentHash(r model.Record) string {
	payload := struct {
		ID        string             `json:"id"`
		Kind      model.RecordKind   `json:"k"`
		Type      model.SemanticType `json:"t"`
		Title     string             `json:"ti"`
		Slug      string             `json:"s"`
		Content   string             `json:"c"`
		Tags      []string           `json:"tg"`
		Relations []model.Relation   `json:"r"`
		Status    model.Status       `json:"st"`
		Embedding []float32          `json:"e"`
		Metadata  map[string]any     `json:"m"`
		CreatedAt string             `json:"ca"`
	}{
		r.ID, r.Kind, r.Type, r.Title, r.Slug, r.Content, r.Tags, r.Relations,
		r.Status, r.Embedding, r.Metadata, r.CreatedAt.UTC().Format(storedTimeFormat),
	}
	b, _ := json.Marshal(payload)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func ioErr(op string, err error) error {
	return &model.StoreIOError{Op: op, Err: err}
}
