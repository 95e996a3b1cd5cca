// Package graph holds the in-memory relation graph derived from a store
// snapshot. It is a cache: the store stays the source of truth and a graph
// can always be rebuilt from a scan.
package graph

import (
	"errors"
	"fmt"
	"iter"
	"slices"
	"sync"

	"github.com/rcliao/ontomem/internal/model"
)

// ErrNoPath is returned when two nodes are not connected.
var ErrNoPath = errors.New("no path")

// Direction selects which edges a walk follows.
type Direction string

const (
	Outgoing Direction = "outgoing"
	Incoming Direction = "incoming"
	Both     Direction = "both"
)

// ParseDirection maps a user-facing name to a Direction.
func ParseDirection(s string) (Direction, error) {
	switch Direction(s) {
	case Outgoing, Incoming, Both:
		return Direction(s), nil
	case "":
		return Both, nil
	}
	return "", fmt.Errorf("invalid direction %q (valid: outgoing, incoming, both)", s)
}

// Node is the graph's copy of a record's identity and classification.
type Node struct {
	ID     string             `json:"id"`
	Slug   string             `json:"slug"`
	Title  string             `json:"title"`
	Type   model.SemanticType `json:"semantic_type"`
	Kind   model.RecordKind   `json:"record_kind"`
	Status model.Status       `json:"status"`
}

// Edge is a directed, typed link. Dangling edges have an empty To and keep
// the unresolved reference in Ref.
type Edge struct {
	From string             `json:"from"`
	To   string             `json:"to,omitempty"`
	Ref  string             `json:"ref"`
	Kind model.RelationKind `json:"kind"`
}

// Neighbor is one adjacent node reached over Edge.
type Neighbor struct {
	Node Node `json:"node"`
	Edge Edge `json:"edge"`
}

// Graph is safe for concurrent use.
type Graph struct {
	mu       sync.RWMutex
	snapshot int64
	nodes    map[string]Node
	versions map[string]int64  // id -> snapshot of the applied version
	slugs    map[string]string // slug -> id
	out      map[string][]Edge
	in       map[string][]Edge
	dangling map[string][]Edge // unresolved ref -> edges waiting on it
}

// New returns an empty graph at snapshot 0.
func New() *Graph {
	return &Graph{
		nodes:    make(map[string]Node),
		versions: make(map[string]int64),
		slugs:    make(map[string]string),
		out:      make(map[string][]Edge),
		in:       make(map[string][]Edge),
		dangling: make(map[string][]Edge),
	}
}

// Build creates a graph from a record scan taken at snapshot.
func Build(snapshot int64, recs iter.Seq2[model.Record, error]) (*Graph, error) {
	g := New()
	for rec, err := range recs {
		if err != nil {
			return nil, fmt.Errorf("build graph: %w", err)
		}
		g.upsert(rec)
		g.versions[rec.ID] = rec.Snapshot
	}
	g.snapshot = snapshot
	return g, nil
}

// Snapshot returns the store snapshot the graph reflects.
func (g *Graph) Snapshot() int64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.snapshot
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// Upsert applies one committed record version written at snapshot. Only
// that record's outgoing edges and any dangling edges waiting on it are
// touched. A version older than the one already applied for the same id is
// ignored, so concurrent committers may apply out of order.
func (g *Graph) Upsert(snapshot int64, rec model.Record) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if prev, ok := g.versions[rec.ID]; ok && prev >= snapshot {
		return
	}
	g.upsert(rec)
	g.versions[rec.ID] = snapshot
	if snapshot > g.snapshot {
		g.snapshot = snapshot
	}
}

func (g *Graph) upsert(rec model.Record) {
	if prev, ok := g.nodes[rec.ID]; ok && prev.Slug != rec.Slug {
		delete(g.slugs, prev.Slug)
	}
	g.nodes[rec.ID] = Node{
		ID:     rec.ID,
		Slug:   rec.Slug,
		Title:  rec.Title,
		Type:   rec.Type,
		Kind:   rec.Kind,
		Status: rec.Status,
	}
	g.slugs[rec.Slug] = rec.ID

	g.dropOutgoing(rec.ID)
	for _, rel := range rec.Relations {
		e := Edge{From: rec.ID, Ref: rel.Target, Kind: rel.Kind}
		switch {
		case rel.TargetID != "" && g.nodes[rel.TargetID].ID != "":
			e.To = rel.TargetID
		default:
			if id, ok := g.lookup(rel.Target); ok {
				e.To = id
			}
		}
		g.addEdge(e)
	}

	// Edges that were waiting for this record by id or slug.
	for _, ref := range []string{rec.ID, rec.Slug} {
		waiting := g.dangling[ref]
		if len(waiting) == 0 {
			continue
		}
		delete(g.dangling, ref)
		for _, e := range waiting {
			g.out[e.From] = slices.DeleteFunc(g.out[e.From], func(x Edge) bool { return x == e })
			e.To = rec.ID
			g.addEdge(e)
		}
	}
}

func (g *Graph) addEdge(e Edge) {
	g.out[e.From] = append(g.out[e.From], e)
	if e.To == "" {
		g.dangling[e.Ref] = append(g.dangling[e.Ref], e)
		return
	}
	g.in[e.To] = append(g.in[e.To], e)
}

func (g *Graph) dropOutgoing(id string) {
	for _, e := range g.out[id] {
		if e.To == "" {
			g.dangling[e.Ref] = slices.DeleteFunc(g.dangling[e.Ref], func(x Edge) bool { return x.From == id })
			if len(g.dangling[e.Ref]) == 0 {
				delete(g.dangling, e.Ref)
			}
			continue
		}
		g.in[e.To] = slices.DeleteFunc(g.in[e.To], func(x Edge) bool { return x.From == id })
		if len(g.in[e.To]) == 0 {
			delete(g.in, e.To)
		}
	}
	delete(g.out, id)
}

func (g *Graph) lookup(ref string) (string, bool) {
	if _, ok := g.nodes[ref]; ok {
		return ref, true
	}
	id, ok := g.slugs[ref]
	return id, ok
}

// Resolve maps an id or slug to a node.
func (g *Graph) Resolve(ref string) (Node, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	id, ok := g.lookup(ref)
	if !ok {
		return Node{}, &model.NotFoundError{What: "record", Ref: ref}
	}
	return g.nodes[id], nil
}

// Nodes returns every node ordered by slug.
func (g *Graph) Nodes() []Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		out = append(out, n)
	}
	slices.SortFunc(out, func(a, b Node) int { return compareNodes(a, b) })
	return out
}

// Edges returns every edge, resolved and dangling, in a stable order.
func (g *Graph) Edges() []Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var out []Edge
	for _, es := range g.out {
		out = append(out, es...)
	}
	slices.SortFunc(out, compareEdges)
	return out
}

// Out returns the outgoing edges of id.
func (g *Graph) Out(id string) []Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return slices.Clone(g.out[id])
}

// In returns the incoming edges of id.
func (g *Graph) In(id string) []Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return slices.Clone(g.in[id])
}

// Clone returns an independent copy, used to freeze a snapshot's graph.
func (g *Graph) Clone() *Graph {
	g.mu.RLock()
	defer g.mu.RUnlock()
	c := New()
	c.snapshot = g.snapshot
	for k, v := range g.nodes {
		c.nodes[k] = v
	}
	for k, v := range g.versions {
		c.versions[k] = v
	}
	for k, v := range g.slugs {
		c.slugs[k] = v
	}
	for k, v := range g.out {
		c.out[k] = slices.Clone(v)
	}
	for k, v := range g.in {
		c.in[k] = slices.Clone(v)
	}
	for k, v := range g.dangling {
		c.dangling[k] = slices.Clone(v)
	}
	return c
}

func compareNodes(a, b Node) int {
	if a.Slug != b.Slug {
		if a.Slug < b.Slug {
			return -1
		}
		return 1
	}
	if a.ID < b.ID {
		return -1
	}
	if a.ID > b.ID {
		return 1
	}
	return 0
}

func compareEdges(a, b Edge) int {
	for _, p := range [][2]string{{a.From, b.From}, {a.To, b.To}, {a.Ref, b.Ref}, {string(a.Kind), string(b.Kind)}} {
		if p[0] < p[1] {
			return -1
		}
		if p[0] > p[1] {
			return 1
		}
	}
	return 0
}
