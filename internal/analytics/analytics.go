// Package analytics computes structural statistics over a snapshot's
// relation graph. Every function reads a graph it does not modify, so
// analytics run alongside writes to later snapshots.
package analytics

import (
	"cmp"
	"slices"

	"github.com/rcliao/ontomem/internal/graph"
	"github.com/rcliao/ontomem/internal/model"
)

// Degree is a node's relation count. Weighted is only set by
// WeightedCentrality.
type Degree struct {
	Node     graph.Node `json:"node"`
	In       int        `json:"in"`
	Out      int        `json:"out"`
	Total    int        `json:"total"`
	Weighted float64    `json:"weighted,omitempty"`
}

// Weights assigns a score to each relation kind. Kinds not listed weigh 1.
type Weights map[model.RelationKind]float64

func (w Weights) of(k model.RelationKind) float64 {
	if v, ok := w[k]; ok {
		return v
	}
	return 1
}

// Centrality returns in-degree plus out-degree for every node, highest
// first. Dangling edges count toward out-degree only.
func Centrality(g *graph.Graph) []Degree {
	return degrees(g, nil)
}

// WeightedCentrality scores each edge by its kind, which lets a caller
// decide how parallel relations of different kinds between the same pair
// should count.
func WeightedCentrality(g *graph.Graph, w Weights) []Degree {
	if w == nil {
		w = Weights{}
	}
	return degrees(g, w)
}

func degrees(g *graph.Graph, w Weights) []Degree {
	nodes := g.Nodes()
	out := make([]Degree, 0, len(nodes))
	for _, n := range nodes {
		d := Degree{Node: n}
		for _, e := range g.Out(n.ID) {
			d.Out++
			if w != nil {
				d.Weighted += w.of(e.Kind)
			}
		}
		for _, e := range g.In(n.ID) {
			d.In++
			if w != nil {
				d.Weighted += w.of(e.Kind)
			}
		}
		d.Total = d.In + d.Out
		out = append(out, d)
	}
	slices.SortStableFunc(out, func(a, b Degree) int {
		if w != nil {
			if c := cmp.Compare(b.Weighted, a.Weighted); c != 0 {
				return c
			}
		}
		return cmp.Compare(b.Total, a.Total)
	})
	return out
}

// Hubs returns up to n of the most connected nodes. Nodes without edges are
// never hubs.
func Hubs(g *graph.Graph, n int) []Degree {
	var out []Degree
	for _, d := range Centrality(g) {
		if len(out) == n || d.Total == 0 {
			break
		}
		out = append(out, d)
	}
	return out
}

// Orphans returns the nodes with no edges in either direction.
func Orphans(g *graph.Graph) []graph.Node {
	var out []graph.Node
	for _, n := range g.Nodes() {
		if len(g.Out(n.ID)) == 0 && len(g.In(n.ID)) == 0 {
			out = append(out, n)
		}
	}
	return out
}

// Cluster is a weakly connected component.
type Cluster struct {
	Nodes []graph.Node `json:"nodes"`
}

// Clusters partitions the graph into components connected in any direction,
// ignoring relation kind. Largest first; isolated nodes form singletons.
func Clusters(g *graph.Graph) []Cluster {
	nodes := g.Nodes()
	parent := make(map[string]string, len(nodes))
	var find func(string) string
	find = func(x string) string {
		if parent[x] != x {
			parent[x] = find(parent[x])
		}
		return parent[x]
	}
	for _, n := range nodes {
		parent[n.ID] = n.ID
	}
	for _, e := range g.Edges() {
		if e.To == "" {
			continue
		}
		a, b := find(e.From), find(e.To)
		if a != b {
			parent[a] = b
		}
	}

	groups := map[string][]graph.Node{}
	var roots []string
	for _, n := range nodes {
		r := find(n.ID)
		if _, ok := groups[r]; !ok {
			roots = append(roots, r)
		}
		groups[r] = append(groups[r], n)
	}
	out := make([]Cluster, 0, len(roots))
	for _, r := range roots {
		out = append(out, Cluster{Nodes: groups[r]})
	}
	slices.SortStableFunc(out, func(a, b Cluster) int { return cmp.Compare(len(b.Nodes), len(a.Nodes)) })
	return out
}

// BrokenReference is an edge whose target is not in the graph.
type BrokenReference struct {
	Source graph.Node         `json:"source"`
	Ref    string             `json:"ref"`
	Kind   model.RelationKind `json:"kind"`
}

// BrokenReferences lists dangling edges.
func BrokenReferences(g *graph.Graph) []BrokenReference {
	var out []BrokenReference
	for _, e := range g.Edges() {
		if e.To != "" {
			continue
		}
		src, _ := g.Resolve(e.From)
		out = append(out, BrokenReference{Source: src, Ref: e.Ref, Kind: e.Kind})
	}
	return out
}

// StaleReference is an edge into a record that is archived or deprecated.
type StaleReference struct {
	Source graph.Node         `json:"source"`
	Target graph.Node         `json:"target"`
	Kind   model.RelationKind `json:"kind"`
}

// StaleReferences lists edges whose target no longer takes part in ranking.
func StaleReferences(g *graph.Graph) []StaleReference {
	var out []StaleReference
	for _, e := range g.Edges() {
		if e.To == "" {
			continue
		}
		target, err := g.Resolve(e.To)
		if err != nil || target.Status.Ranked() {
			continue
		}
		src, _ := g.Resolve(e.From)
		out = append(out, StaleReference{Source: src, Target: target, Kind: e.Kind})
	}
	return out
}

// Conflict is a pair of records linked by more than one relation kind, in
// either direction.
type Conflict struct {
	A     graph.Node           `json:"a"`
	B     graph.Node           `json:"b"`
	Kinds []model.RelationKind `json:"kinds"`
}

// ConflictingRelations lists record pairs carrying parallel relations of
// different kinds, e.g. both implements and contradicts.
func ConflictingRelations(g *graph.Graph) []Conflict {
	type pair struct{ a, b string }
	kinds := map[pair][]model.RelationKind{}
	var order []pair
	for _, e := range g.Edges() {
		if e.To == "" {
			continue
		}
		p := pair{e.From, e.To}
		if p.b < p.a {
			p = pair{e.To, e.From}
		}
		if _, ok := kinds[p]; !ok {
			order = append(order, p)
		}
		if !slices.Contains(kinds[p], e.Kind) {
			kinds[p] = append(kinds[p], e.Kind)
		}
	}

	var out []Conflict
	for _, p := range order {
		ks := kinds[p]
		if len(ks) < 2 {
			continue
		}
		slices.Sort(ks)
		a, _ := g.Resolve(p.a)
		b, _ := g.Resolve(p.b)
		out = append(out, Conflict{A: a, B: b, Kinds: ks})
	}
	return out
}
