package chunker

import (
	"strings"
	"unicode"
)

// Tokenize lowercases text and splits it into letter/digit runs.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// Best returns the chunk of text containing the most occurrences of terms,
// preferring the earlier chunk on ties. ok is false for empty text.
func Best(text string, terms []string, opts Options) (ChunkResult, bool) {
	chunks := Chunk(text, opts)
	if len(chunks) == 0 {
		return ChunkResult{}, false
	}
	want := make(map[string]bool, len(terms))
	for _, t := range terms {
		want[strings.ToLower(t)] = true
	}

	best, bestHits := 0, -1
	for i, c := range chunks {
		hits := 0
		for _, tok := range Tokenize(c.Heading + " " + c.Text) {
			if want[tok] {
				hits++
			}
		}
		if hits > bestHits {
			best, bestHits = i, hits
		}
	}
	return chunks[best], true
}

// Snippet cuts text down to at most max bytes around the first occurrence of
// any term, on word boundaries, marking cut ends with "...".
func Snippet(text string, terms []string, max int) string {
	text = strings.Join(strings.Fields(text), " ")
	if max <= 0 || len(text) <= max {
		return text
	}

	lower := strings.ToLower(text)
	at := -1
	for _, t := range terms {
		if i := strings.Index(lower, strings.ToLower(t)); i >= 0 && (at < 0 || i < at) {
			at = i
		}
	}

	start := 0
	if at > max/3 {
		start = at - max/3
		if sp := strings.IndexByte(text[start:], ' '); sp >= 0 && sp < max/3 {
			start += sp + 1
		}
	}
	end := start + max
	if end >= len(text) {
		end = len(text)
	} else if sp := strings.LastIndexByte(text[start:end], ' '); sp > 0 {
		end = start + sp
	}

	out := text[start:end]
	if start > 0 {
		out = "..." + out
	}
	if end < len(text) {
		out += "..."
	}
	return out
}
