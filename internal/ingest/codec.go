// Package ingest turns markdown documents with YAML front matter into
// candidate records, loads them by glob and watches directories for edits.
package ingest

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rcliao/ontomem/internal/model"
)

var delimiter = []byte("---")

// Parse reads a document. Front matter fields map onto the candidate's
// fields by their record names (semantic_type, tags, relations, ...); the
// body becomes the content. Without front matter the whole text is content
// and the first level-one heading, if any, becomes the title.
func Parse(data []byte) (model.Candidate, error) {
	var c model.Candidate
	if !bytes.HasPrefix(data, []byte("---\n")) && !bytes.HasPrefix(data, []byte("---\r\n")) {
		c.Content = string(data)
		c.Title = firstTitle(c.Content)
		return c, nil
	}

	rest := data[len(delimiter):]
	parts := bytes.SplitN(rest, append([]byte("\n"), delimiter...), 2)
	if len(parts) == 1 {
		return c, errors.New("front matter started but no closing delimiter found")
	}
	if err := yaml.Unmarshal(parts[0], &c); err != nil {
		return c, fmt.Errorf("parse front matter: %w", err)
	}

	body := string(parts[1])
	body = strings.TrimPrefix(body, "\r")
	c.Content = strings.TrimPrefix(body, "\n")
	if c.Title == "" {
		c.Title = firstTitle(c.Content)
	}
	return c, nil
}

// Render writes a candidate in the form Parse reads.
func Render(c model.Candidate) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("---\n")
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return nil, fmt.Errorf("render front matter: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	buf.WriteString("---\n")
	buf.WriteString(c.Content)
	return buf.Bytes(), nil
}

func firstTitle(body string) string {
	for line := range strings.Lines(body) {
		line = strings.TrimSpace(line)
		if title, ok := strings.CutPrefix(line, "# "); ok {
			return strings.TrimSpace(title)
		}
	}
	return ""
}
