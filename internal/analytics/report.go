package analytics

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rcliao/ontomem/internal/graph"
	"github.com/rcliao/ontomem/internal/model"
)

// Report is the structured analytics summary of one snapshot.
type Report struct {
	Snapshot   int64                      `json:"snapshot"`
	Nodes      int                        `json:"nodes"`
	Edges      int                        `json:"edges"`
	ByType     map[model.SemanticType]int `json:"by_type"`
	ByStatus   map[model.Status]int       `json:"by_status"`
	Hubs       []Degree                   `json:"hubs"`
	Weighted   []Degree                   `json:"weighted_hubs,omitempty"`
	Orphans    []graph.Node               `json:"orphans"`
	Clusters   []Cluster                  `json:"clusters"`
	Broken     []BrokenReference          `json:"broken_references"`
	Stale      []StaleReference           `json:"stale_references"`
	Conflicts  []Conflict                 `json:"conflicting_relations"`
	DurationMS int64                      `json:"duration_ms"`
}

// Options tunes a report.
type Options struct {
	HubCount int
	// Weights, when set, adds a weighted hub ranking.
	Weights Weights
}

// BuildReport computes every section of the report concurrently. Sections
// only read g.
func BuildReport(ctx context.Context, g *graph.Graph, opts Options) (*Report, error) {
	start := time.Now()
	if opts.HubCount <= 0 {
		opts.HubCount = 5
	}
	r := &Report{
		Snapshot: g.Snapshot(),
		Nodes:    g.Len(),
		ByType:   map[model.SemanticType]int{},
		ByStatus: map[model.Status]int{},
	}

	eg, ctx := errgroup.WithContext(ctx)
	section := func(fn func()) {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			fn()
			return nil
		})
	}
	section(func() {
		for _, n := range g.Nodes() {
			r.ByType[n.Type]++
			r.ByStatus[n.Status]++
		}
	})
	section(func() { r.Edges = len(g.Edges()) })
	section(func() { r.Hubs = Hubs(g, opts.HubCount) })
	section(func() {
		if len(opts.Weights) == 0 {
			return
		}
		all := WeightedCentrality(g, opts.Weights)
		if len(all) > opts.HubCount {
			all = all[:opts.HubCount]
		}
		r.Weighted = all
	})
	section(func() { r.Orphans = Orphans(g) })
	section(func() { r.Clusters = Clusters(g) })
	section(func() { r.Broken = BrokenReferences(g) })
	section(func() { r.Stale = StaleReferences(g) })
	section(func() { r.Conflicts = ConflictingRelations(g) })

	if err := eg.Wait(); err != nil {
		return nil, err
	}
	r.DurationMS = time.Since(start).Milliseconds()
	slog.Debug("analytics report built", "snapshot", r.Snapshot, "nodes", r.Nodes, "duration_ms", r.DurationMS)
	return r, nil
}
