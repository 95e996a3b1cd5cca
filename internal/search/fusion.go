package search

import "slices"

// RRFConstant dampens the weight of top ranks in reciprocal-rank fusion.
const RRFConstant = 60

// FuseRRF merges rankings by reciprocal rank: each record scores
// sum(1 / (RRFConstant + rank)) over the lists it appears in. Only ranks are
// used, never the lists' own scores. Snippets come from whichever list
// supplied one.
func FuseRRF(k int, lists map[Mode][]Hit) []Hit {
	byID := map[string]*Hit{}
	var order []string

	modes := make([]Mode, 0, len(lists))
	for m := range lists {
		modes = append(modes, m)
	}
	slices.Sort(modes)

	for _, m := range modes {
		for i, h := range lists[m] {
			rank := i + 1
			fused, ok := byID[h.Record.ID]
			if !ok {
				fused = &Hit{Record: h.Record, Ranks: map[Mode]int{}}
				byID[h.Record.ID] = fused
				order = append(order, h.Record.ID)
			}
			fused.Score += 1.0 / float64(RRFConstant+rank)
			fused.Ranks[m] = rank
			if fused.Snippet == "" {
				fused.Snippet, fused.Heading = h.Snippet, h.Heading
			}
		}
	}

	out := make([]Hit, 0, len(order))
	for _, id := range order {
		out = append(out, *byID[id])
	}
	slices.SortFunc(out, compareHits)
	if k > 0 && len(out) > k {
		out = out[:k]
	}
	return out
}
