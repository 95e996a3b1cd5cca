// Package chunker splits markdown record content into sections and picks
// the section that best matches a query, for search snippets.
package chunker

import (
	"strings"
)

const (
	DefaultTargetSize = 400
	DefaultMinSize    = 100
	DefaultMaxSize    = 600
)

// Options bounds chunk sizes in bytes. Chunks aim for TargetSize, never
// exceed MaxSize unless a single word does, and chunks under MinSize are
// folded into their predecessor when it has room.
type Options struct {
	TargetSize int
	MinSize    int
	MaxSize    int
}

func DefaultOptions() Options {
	return Options{
		TargetSize: DefaultTargetSize,
		MinSize:    DefaultMinSize,
		MaxSize:    DefaultMaxSize,
	}
}

// ChunkResult is one chunk and its 1-based line span in the trimmed input.
// Heading is the markdown heading of the section the chunk starts in.
type ChunkResult struct {
	Text      string
	Heading   string
	StartLine int
	EndLine   int
}

// Chunk splits text into chunks. Text no longer than MaxSize is one chunk.
// Longer text is cut into heading sections, and each section is packed
// paragraph by paragraph; chunks never span two sections.
func Chunk(text string, opts Options) []ChunkResult {
	if opts.TargetSize == 0 {
		opts = DefaultOptions()
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if len(text) <= opts.MaxSize {
		return []ChunkResult{{Text: text, Heading: firstHeading(text), StartLine: 1, EndLine: strings.Count(text, "\n") + 1}}
	}

	var out []ChunkResult
	for _, sec := range sections(text) {
		out = append(out, foldSmall(sec.pack(opts), opts)...)
	}
	return out
}

type paragraph struct {
	text       string
	start, end int
}

type section struct {
	heading string
	paras   []paragraph
}

// sections groups lines into paragraphs (separated by blank lines) under
// the heading that precedes them. A heading line is its own paragraph.
func sections(text string) []section {
	lines := strings.Split(text, "\n")
	var (
		secs  []section
		sec   section
		buf   []string
		start int
	)
	endPara := func(end int) {
		if len(buf) == 0 {
			return
		}
		sec.paras = append(sec.paras, paragraph{text: strings.TrimSpace(strings.Join(buf, "\n")), start: start, end: end})
		buf = nil
	}

	for i, line := range lines {
		n := i + 1
		trimmed := strings.TrimSpace(line)
		switch {
		case isHeading(trimmed):
			endPara(n - 1)
			if len(sec.paras) > 0 {
				secs = append(secs, sec)
			}
			sec = section{heading: headingText(trimmed)}
			sec.paras = append(sec.paras, paragraph{text: trimmed, start: n, end: n})
		case trimmed == "":
			endPara(n - 1)
		default:
			if len(buf) == 0 {
				start = n
			}
			buf = append(buf, line)
		}
	}
	endPara(len(lines))
	if len(sec.paras) > 0 {
		secs = append(secs, sec)
	}
	return secs
}

func (s section) pack(opts Options) []ChunkResult {
	var (
		out []ChunkResult
		cur *ChunkResult
	)
	emit := func() {
		if cur != nil {
			out = append(out, *cur)
			cur = nil
		}
	}

	for _, p := range s.paras {
		if len(p.text) > opts.MaxSize {
			emit()
			out = append(out, splitParagraph(p, s.heading, opts)...)
			continue
		}
		limit := opts.TargetSize
		if cur != nil && cur.StartLine == cur.EndLine && isHeading(cur.Text) {
			limit = opts.MaxSize
		}
		if cur != nil && len(cur.Text)+2+len(p.text) <= limit {
			cur.Text += "\n\n" + p.text
			cur.EndLine = p.end
			continue
		}
		emit()
		cur = &ChunkResult{Text: p.text, Heading: s.heading, StartLine: p.start, EndLine: p.end}
	}
	emit()
	return out
}

// splitParagraph packs an oversized paragraph line by line, breaking lines
// longer than MaxSize between words.
func splitParagraph(p paragraph, heading string, opts Options) []ChunkResult {
	var (
		out []ChunkResult
		cur []string
		n   int
	)
	curStart := p.start
	flush := func(end int) {
		if t := strings.TrimSpace(strings.Join(cur, "\n")); t != "" {
			out = append(out, ChunkResult{Text: t, Heading: heading, StartLine: curStart, EndLine: end})
		}
		cur, n = nil, 0
	}

	for i, line := range strings.Split(p.text, "\n") {
		lineNum := p.start + i
		for _, piece := range splitLine(line, opts) {
			if n+len(piece) > opts.TargetSize && len(cur) > 0 {
				flush(max(curStart, lineNum-1))
				curStart = lineNum
			}
			cur = append(cur, piece)
			n += len(piece) + 1
		}
	}
	flush(p.end)
	return out
}

func splitLine(line string, opts Options) []string {
	if len(line) <= opts.MaxSize {
		return []string{line}
	}
	var (
		pieces []string
		b      strings.Builder
	)
	for _, w := range strings.Fields(line) {
		if b.Len() > 0 && b.Len()+1+len(w) > opts.TargetSize {
			pieces = append(pieces, b.String())
			b.Reset()
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(w)
	}
	if b.Len() > 0 {
		pieces = append(pieces, b.String())
	}
	return pieces
}

// foldSmall merges chunks under MinSize into a neighbor of the same section.
func foldSmall(chunks []ChunkResult, opts Options) []ChunkResult {
	fits := func(a, b ChunkResult) bool { return len(a.Text)+2+len(b.Text) <= opts.MaxSize }

	out := chunks[:0]
	for _, c := range chunks {
		if n := len(out); n > 0 && len(c.Text) < opts.MinSize && fits(out[n-1], c) {
			out[n-1].Text += "\n\n" + c.Text
			out[n-1].EndLine = c.EndLine
			continue
		}
		out = append(out, c)
	}
	if len(out) > 1 && len(out[0].Text) < opts.MinSize && fits(out[0], out[1]) {
		out[1].Text = out[0].Text + "\n\n" + out[1].Text
		out[1].StartLine = out[0].StartLine
		out = out[1:]
	}
	return out
}

func isHeading(line string) bool {
	rest := strings.TrimLeft(line, "#")
	return len(rest) < len(line) && (rest == "" || rest[0] == ' ')
}

func headingText(line string) string {
	return strings.TrimSpace(strings.TrimLeft(line, "#"))
}

func firstHeading(text string) string {
	for line := range strings.Lines(text) {
		if t := strings.TrimSpace(line); isHeading(t) {
			return headingText(t)
		}
	}
	return ""
}
