// Package model defines the core knowledge record types.
package model

import (
	"slices"
	"time"
)

// RecordKind separates standalone content from grouping/summary nodes.
type RecordKind string

const (
	KindDocument         RecordKind = "document"
	KindCollectionHeader RecordKind = "collection_header"
	KindDatasetHeader    RecordKind = "dataset_header"
)

// ValidKinds are the allowed record kinds.
var ValidKinds = map[RecordKind]bool{
	KindDocument:         true,
	KindCollectionHeader: true,
	KindDatasetHeader:    true,
}

// Status is the lifecycle state of a record.
type Status string

const (
	StatusDraft      Status = "draft"
	StatusActive     Status = "active"
	StatusArchived   Status = "archived"
	StatusDeprecated Status = "deprecated"
)

// ValidStatuses are the allowed statuses.
var ValidStatuses = map[Status]bool{
	StatusDraft:      true,
	StatusActive:     true,
	StatusArchived:   true,
	StatusDeprecated: true,
}

// Ranked reports whether records with this status take part in default search rankings.
func (s Status) Ranked() bool {
	return s != StatusArchived && s != StatusDeprecated
}

// RelationKind is the type of a directed link between two records.
type RelationKind string

const (
	RelPartOf        RelationKind = "part-of"
	RelImplements    RelationKind = "implements"
	RelReferences    RelationKind = "references"
	RelContradicts   RelationKind = "contradicts"
	RelSupersedes    RelationKind = "supersedes"
	RelAlternativeTo RelationKind = "alternative-to"
)

// ValidRelations are the allowed relation kinds.
var ValidRelations = map[RelationKind]bool{
	RelPartOf:        true,
	RelImplements:    true,
	RelReferences:    true,
	RelContradicts:   true,
	RelSupersedes:    true,
	RelAlternativeTo: true,
}

// Relation is a typed, directed link to another record. Target holds the
// reference as written (slug or id); TargetID is filled in once resolved.
type Relation struct {
	Target   string       `json:"target" yaml:"target"`
	Kind     RelationKind `json:"kind" yaml:"kind"`
	TargetID string       `json:"target_id,omitempty" yaml:"-"`
}

// Record is the atomic unit of knowledge.
type Record struct {
	ID         string         `json:"id"`
	Kind       RecordKind     `json:"record_kind"`
	Type       SemanticType   `json:"semantic_type"`
	Title      string         `json:"title"`
	Slug       string         `json:"slug"`
	Content    string         `json:"content"`
	Tags       []string       `json:"tags,omitempty"`
	Relations  []Relation     `json:"relations,omitempty"`
	Status     Status         `json:"status"`
	Embedding  []float32      `json:"embedding,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	ModifiedAt time.Time      `json:"modified_at"`
	Metadata   map[string]any `json:"custom_metadata,omitempty"`
	Version    int            `json:"version"`
	Snapshot   int64          `json:"snapshot"`
}

// HasTag reports whether the record carries tag.
func (r Record) HasTag(tag string) bool {
	return slices.Contains(r.Tags, tag)
}

// Text is the content handed to an embedding provider.
func (r Record) Text() string {
	return r.Title + "\n\n" + r.Content
}

// Candidate converts the record back into submission form, e.g. to write a
// modified copy as a new version.
func (r Record) Candidate() Candidate {
	c := Candidate{
		ID:         r.ID,
		Kind:       string(r.Kind),
		Type:       string(r.Type),
		Title:      r.Title,
		Slug:       r.Slug,
		Content:    r.Content,
		Tags:       slices.Clone(r.Tags),
		Status:     string(r.Status),
		Embedding:  slices.Clone(r.Embedding),
		Metadata:   cloneMeta(r.Metadata),
		CreatedAt:  formatTime(r.CreatedAt),
		ModifiedAt: formatTime(r.ModifiedAt),
	}
	for _, rel := range r.Relations {
		c.Relations = append(c.Relations, RelationRef{Target: rel.Target, Kind: string(rel.Kind)})
	}
	return c
}

// Candidate is a record as submitted by a caller: possibly partially filled,
// with enumerations and timestamps still in their raw string form.
type Candidate struct {
	ID         string         `json:"id,omitempty" yaml:"id,omitempty"`
	Kind       string         `json:"record_kind,omitempty" yaml:"record_kind,omitempty"`
	Type       string         `json:"semantic_type,omitempty" yaml:"semantic_type,omitempty"`
	Title      string         `json:"title,omitempty" yaml:"title,omitempty"`
	Slug       string         `json:"slug,omitempty" yaml:"slug,omitempty"`
	Content    string         `json:"content,omitempty" yaml:"-"`
	Tags       []string       `json:"tags,omitempty" yaml:"tags,omitempty"`
	Relations  []RelationRef  `json:"relations,omitempty" yaml:"relations,omitempty"`
	Status     string         `json:"status,omitempty" yaml:"status,omitempty"`
	Embedding  []float32      `json:"embedding,omitempty" yaml:"embedding,omitempty"`
	CreatedAt  string         `json:"created_at,omitempty" yaml:"created_at,omitempty"`
	ModifiedAt string         `json:"modified_at,omitempty" yaml:"modified_at,omitempty"`
	Metadata   map[string]any `json:"custom_metadata,omitempty" yaml:"custom_metadata,omitempty"`
}

// RelationRef is an unresolved relation as submitted.
type RelationRef struct {
	Target string `json:"target" yaml:"target"`
	Kind   string `json:"kind" yaml:"kind"`
}

// TimeFormat is the fixed timestamp format for records.
const TimeFormat = time.RFC3339Nano

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(TimeFormat)
}

func cloneMeta(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
