package chunker

import (
	"strings"
	"testing"
)

func TestChunk_EmptyInput(t *testing.T) {
	result := Chunk("", DefaultOptions())
	if result != nil {
		t.Errorf("expected nil, got %v", result)
	}
}

func TestChunk_ShortContent(t *testing.T) {
	text := "This is a short memory."
	result := Chunk(text, DefaultOptions())
	if len(result) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(result))
	}
	if result[0].Text != text {
		t.Errorf("expected %q, got %q", text, result[0].Text)
	}
	if result[0].StartLine != 1 {
		t.Errorf("expected StartLine 1, got %d", result[0].StartLine)
	}
}

func TestChunk_SplitsOnHeadings(t *testing.T) {
	// Each section needs to be long enough that total exceeds MaxSize
	section := strings.Repeat("Some content filling space. ", 12) // ~336 chars
	text := "# Section One\n\n" + section + "\n\n# Section Two\n\n" + section + "\n\n# Section Three\n\n" + section

	result := Chunk(text, DefaultOptions())
	if len(result) < 2 {
		t.Fatalf("expected at least 2 chunks, got %d", len(result))
	}

	// First chunk should contain "Section One"
	if !strings.Contains(result[0].Text, "Section One") {
		t.Errorf("first chunk should contain 'Section One', got %q", result[0].Text)
	}
}

func TestChunk_RespectsMaxSize(t *testing.T) {
	opts := Options{TargetSize: 200, MinSize: 50, MaxSize: 300}
	// Generate text >300 chars with line breaks
	var lines []string
	for i := 0; i < 20; i++ {
		lines = append(lines, "This is a line of text that is about fifty characters long.")
	}
	text := strings.Join(lines, "\n") // ~1200 chars
	result := Chunk(text, opts)
	if len(result) < 2 {
		t.Fatalf("expected at least 2 chunks, got %d", len(result))
	}
}

func TestChunk_MergesSmallBlocks(t *testing.T) {
	text := `# A

Short.

# B

Also short.`

	opts := Options{TargetSize: 400, MinSize: 100, MaxSize: 600}
	result := Chunk(text, opts)
	// The whole thing is under MaxSize, so should be 1 chunk
	if len(result) != 1 {
		t.Errorf("expected 1 merged chunk, got %d", len(result))
	}
}

func TestChunk_DoubleNewlineSplit(t *testing.T) {
	// Build paragraphs that together exceed MaxSize
	para := strings.Repeat("This is a sentence. ", 15) // ~300 chars each
	text := para + "\n\n" + para + "\n\n" + para

	opts := Options{TargetSize: 400, MinSize: 100, MaxSize: 500}
	result := Chunk(text, opts)
	if len(result) < 2 {
		t.Fatalf("expected at least 2 chunks from paragraph splits, got %d", len(result))
	}
}

func TestChunk_Headings(t *testing.T) {
	section := strings.Repeat("Some content filling space. ", 12)
	text := "# Section One\n\n" + section + "\n\n# Section Two\n\n" + section

	result := Chunk(text, DefaultOptions())
	if len(result) < 2 {
		t.Fatalf("expected at least 2 chunks, got %d", len(result))
	}
	if result[0].Heading != "Section One" {
		t.Errorf("expected heading %q, got %q", "Section One", result[0].Heading)
	}
	if result[len(result)-1].Heading != "Section Two" {
		t.Errorf("expected heading %q, got %q", "Section Two", result[len(result)-1].Heading)
	}
}

func TestBest_PicksMatchingSection(t *testing.T) {
	filler := strings.Repeat("Unrelated words about nothing much. ", 10)
	text := "# Intro\n\n" + filler + "\n\n# Tokens\n\nRotate the JWT refresh token on every use. " + filler

	best, ok := Best(text, []string{"jwt", "refresh"}, DefaultOptions())
	if !ok {
		t.Fatal("expected a chunk")
	}
	if best.Heading != "Tokens" {
		t.Errorf("expected the Tokens section, got %q", best.Heading)
	}

	if _, ok := Best("", []string{"jwt"}, DefaultOptions()); ok {
		t.Error("expected no chunk for empty text")
	}
}

func TestSnippet(t *testing.T) {
	text := strings.Repeat("lead in words ", 20) + "the needle sits here " + strings.Repeat("trailing words ", 20)
	got := Snippet(text, []string{"needle"}, 60)
	if !strings.Contains(got, "needle") {
		t.Errorf("snippet %q should contain the term", got)
	}
	if !strings.HasPrefix(got, "...") || !strings.HasSuffix(got, "...") {
		t.Errorf("snippet %q should be marked as cut on both ends", got)
	}

	if got := Snippet("short text", []string{"x"}, 60); got != "short text" {
		t.Errorf("short text should be returned whole, got %q", got)
	}
}

func TestTokenize(t *testing.T) {
	got := Tokenize("JWT-based auth, v2!")
	want := []string{"jwt", "based", "auth", "v2"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("Tokenize = %v, want %v", got, want)
	}
}

func TestChunk_NeverSpansSections(t *testing.T) {
	body := strings.Repeat("Details about the topic at hand. ", 6)
	text := "# Alpha\n\n" + body + "\n\n# Beta\n\n" + body + "\n\n# Gamma\n\n" + body

	result := Chunk(text, DefaultOptions())
	if len(result) != 3 {
		t.Fatalf("expected one chunk per section, got %d", len(result))
	}
	for i, want := range []string{"Alpha", "Beta", "Gamma"} {
		if result[i].Heading != want {
			t.Errorf("chunk %d: heading %q, want %q", i, result[i].Heading, want)
		}
		if strings.Count(result[i].Text, "# ") != 1 {
			t.Errorf("chunk %d holds more than one heading: %q", i, result[i].Text)
		}
	}
	if result[1].StartLine != 5 {
		t.Errorf("expected Beta to start on line 5, got %d", result[1].StartLine)
	}
}

func TestChunk_SplitsLongLine(t *testing.T) {
	opts := Options{TargetSize: 100, MinSize: 10, MaxSize: 150}
	text := strings.Repeat("word ", 100)

	for _, c := range Chunk(text, opts) {
		if len(c.Text) > opts.MaxSize {
			t.Errorf("chunk of %d bytes exceeds max", len(c.Text))
		}
	}
}
