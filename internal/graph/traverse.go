package graph

import (
	"slices"

	"github.com/rcliao/ontomem/internal/model"
)

// Neighbors returns the nodes adjacent to ref in dir, one entry per edge.
func (g *Graph) Neighbors(ref string, dir Direction) ([]Neighbor, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	id, ok := g.lookup(ref)
	if !ok {
		return nil, &model.NotFoundError{What: "record", Ref: ref}
	}
	return g.neighbors(id, dir), nil
}

func (g *Graph) neighbors(id string, dir Direction) []Neighbor {
	var out []Neighbor
	if dir == Outgoing || dir == Both {
		for _, e := range g.out[id] {
			if e.To == "" {
				continue
			}
			out = append(out, Neighbor{Node: g.nodes[e.To], Edge: e})
		}
	}
	if dir == Incoming || dir == Both {
		for _, e := range g.in[id] {
			out = append(out, Neighbor{Node: g.nodes[e.From], Edge: e})
		}
	}
	slices.SortFunc(out, func(a, b Neighbor) int {
		if c := compareNodes(a.Node, b.Node); c != 0 {
			return c
		}
		return compareEdges(a.Edge, b.Edge)
	})
	return out
}

// Step is one node reached by Traverse. Via is the edge it was first reached
// over; the start node has a zero Via.
type Step struct {
	Node  Node `json:"node"`
	Depth int  `json:"depth"`
	Via   Edge `json:"via"`
}

// Traverse walks breadth-first from ref up to depth hops, visiting each node
// once. The start node is returned first at depth 0.
func (g *Graph) Traverse(ref string, dir Direction, depth int) ([]Step, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	start, ok := g.lookup(ref)
	if !ok {
		return nil, &model.NotFoundError{What: "record", Ref: ref}
	}

	seen := map[string]bool{start: true}
	steps := []Step{{Node: g.nodes[start]}}
	frontier := []string{start}
	for d := 1; d <= depth && len(frontier) > 0; d++ {
		var next []string
		for _, id := range frontier {
			for _, nb := range g.neighbors(id, dir) {
				if seen[nb.Node.ID] {
					continue
				}
				seen[nb.Node.ID] = true
				steps = append(steps, Step{Node: nb.Node, Depth: d, Via: nb.Edge})
				next = append(next, nb.Node.ID)
			}
		}
		frontier = next
	}
	return steps, nil
}

// ShortestPath returns the fewest-hop chain of edges connecting a and b,
// walking relations in either direction. Each returned edge keeps its
// stored direction. Ties are broken by neighbor order, so the result is
// deterministic for a given graph.
func (g *Graph) ShortestPath(a, b string) ([]Edge, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	from, ok := g.lookup(a)
	if !ok {
		return nil, &model.NotFoundError{What: "record", Ref: a}
	}
	to, ok := g.lookup(b)
	if !ok {
		return nil, &model.NotFoundError{What: "record", Ref: b}
	}
	if from == to {
		return []Edge{}, nil
	}

	prev := map[string]hop{}
	seen := map[string]bool{from: true}
	queue := []string{from}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, nb := range g.neighbors(id, Both) {
			next := nb.Node.ID
			if seen[next] {
				continue
			}
			seen[next] = true
			prev[next] = hop{edge: nb.Edge, from: id}
			if next == to {
				return unwind(prev, from, to), nil
			}
			queue = append(queue, next)
		}
	}
	return nil, ErrNoPath
}

// hop is the edge a BFS crossed to reach a node and the node it came from.
type hop struct {
	edge Edge
	from string
}

func unwind(prev map[string]hop, from, to string) []Edge {
	var path []Edge
	for at := to; at != from; {
		h := prev[at]
		path = append(path, h.edge)
		at = h.from
	}
	slices.Reverse(path)
	return path
}
