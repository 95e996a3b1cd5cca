package store

import (
	"context"
	"os"
)

// Stats holds database statistics.
type Stats struct {
	DBPath         string       `json:"db_path"`
	DBSizeBytes    int64        `json:"db_size_bytes"`
	LatestSnapshot int64        `json:"latest_snapshot"`
	OldestSnapshot int64        `json:"oldest_snapshot"`
	Snapshots      int          `json:"snapshots"`
	Records        int          `json:"records"`
	Versions       int          `json:"versions"`
	Embedded       int          `json:"embedded"`
	Relations      int          `json:"relations"`
	Types          []CountStats `json:"types"`
	Statuses       []CountStats `json:"statuses"`
}

// CountStats is a per-value record count.
type CountStats struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Stats returns statistics for the latest snapshot plus retained history.
func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{DBPath: s.path}

	if info, err := os.Stat(s.path); err == nil {
		st.DBSizeBytes = info.Size()
	}

	if err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(number), 0), COALESCE(MIN(number), 0), COUNT(*) FROM snapshots`).
		Scan(&st.LatestSnapshot, &st.OldestSnapshot, &st.Snapshots); err != nil {
		return nil, ioErr("stats", err)
	}
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM record_versions WHERE valid_to IS NULL`).Scan(&st.Records)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM record_versions`).Scan(&st.Versions)
	s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM record_versions WHERE valid_to IS NULL AND embedding IS NOT NULL`).Scan(&st.Embedded)
	s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM record_relations r JOIN record_versions v ON v.version_id = r.version_id
		 WHERE v.valid_to IS NULL`).Scan(&st.Relations)

	var err error
	if st.Types, err = s.countBy(ctx, "semantic_type"); err != nil {
		return st, err
	}
	if st.Statuses, err = s.countBy(ctx, "status"); err != nil {
		return st, err
	}
	return st, nil
}

func (s *SQLiteStore) countBy(ctx context.Context, col string) ([]CountStats, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+col+`, COUNT(*) AS cnt
		FROM record_versions WHERE valid_to IS NULL
		GROUP BY `+col+` ORDER BY cnt DESC, `+col)
	if err != nil {
		return nil, ioErr("stats", err)
	}
	defer rows.Close()

	var out []CountStats
	for rows.Next() {
		var c CountStats
		if err := rows.Scan(&c.Name, &c.Count); err != nil {
			return nil, ioErr("stats", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
