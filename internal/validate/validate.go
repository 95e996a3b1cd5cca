// Package validate checks candidate records against the schema and the
// current store snapshot before any write.
package validate

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/xeipuuv/gojsonschema"

	"github.com/rcliao/ontomem/internal/model"
)

// View is the read side of a snapshot that validation consults for
// uniqueness and reference resolution.
type View interface {
	ByID(ctx context.Context, id string) (model.Record, bool, error)
	BySlug(ctx context.Context, slug string) (model.Record, bool, error)
	// Reaches reports whether to can be reached from from by following
	// relations in their stored direction.
	Reaches(ctx context.Context, from, to string) (bool, error)
}

// Result is a normalized record plus non-fatal recommendations.
type Result struct {
	Record   model.Record
	Warnings []model.Violation
	// Existing is the latest stored version of the same id, if any.
	Existing *model.Record
}

// Validator is pure: it only reads from the View it is handed.
type Validator struct {
	types   *model.Registry
	schemas sync.Map // schema text -> *gojsonschema.Schema
	now     func() time.Time
}

// New creates a validator over the given type registry.
func New(types *model.Registry) *Validator {
	if types == nil {
		types = model.NewRegistry()
	}
	return &Validator{types: types, now: time.Now}
}

// Types returns the registry the validator checks semantic types against.
func (v *Validator) Types() *model.Registry { return v.types }

// Validate normalizes c or returns every violation found. A list made only
// of slug/id collisions is returned as a *model.ConflictError, anything else
// as a *model.ValidationError. Lookup failures are returned as-is.
func (v *Validator) Validate(ctx context.Context, view View, c model.Candidate) (*Result, error) {
	var vs violations
	rec := model.Record{
		Title:    strings.TrimSpace(c.Title),
		Content:  c.Content,
		Tags:     normalizeTags(c.Tags),
		Metadata: c.Metadata,
	}
	if len(c.Embedding) > 0 {
		rec.Embedding = slices.Clone(c.Embedding)
	}

	// 1. required fields
	if rec.Title == "" {
		vs.add(model.VMissingField, "title", "title is required")
	}
	if c.Type == "" {
		vs.add(model.VMissingField, "semantic_type", "semantic_type is required")
	}
	if c.Kind == "" {
		vs.add(model.VMissingField, "record_kind", "record_kind is required")
	}
	rec.Slug = strings.TrimSpace(c.Slug)
	if rec.Slug == "" && rec.Title != "" {
		rec.Slug = Slugify(rec.Title)
	}
	if rec.Slug == "" && rec.Title != "" {
		vs.add(model.VMissingField, "slug", "slug cannot be derived from title")
	}

	// 6 is checked up front because every lookup below keys on the id.
	idOK := true
	rec.ID = strings.TrimSpace(c.ID)
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	} else if !ValidID(rec.ID) {
		idOK = false
	}

	var existing *model.Record
	if idOK {
		prev, found, err := view.ByID(ctx, rec.ID)
		if err != nil {
			return nil, fmt.Errorf("lookup id: %w", err)
		}
		if found {
			existing = &prev
		}
	}

	// 2. slug format and uniqueness
	if rec.Slug != "" {
		if !ValidSlug(rec.Slug) {
			vs.add(model.VMalformedSlug, "slug", fmt.Sprintf("slug %q must be lowercase and hyphen-delimited", rec.Slug))
		} else {
			other, found, err := view.BySlug(ctx, rec.Slug)
			if err != nil {
				return nil, fmt.Errorf("lookup slug: %w", err)
			}
			if found && other.ID != rec.ID {
				vs.list = append(vs.list, model.Violation{
					Kind:     model.VDuplicateSlug,
					Field:    "slug",
					Message:  fmt.Sprintf("slug %q is already used by %s", rec.Slug, other.ID),
					Value:    rec.Slug,
					Existing: other.ID,
				})
			}
		}
		if existing != nil && existing.Slug != rec.Slug {
			vs.list = append(vs.list, model.Violation{
				Kind:     model.VIDConflict,
				Field:    "id",
				Message:  fmt.Sprintf("id %s is already stored with slug %q", rec.ID, existing.Slug),
				Value:    rec.ID,
				Existing: existing.Slug,
			})
		}
	}

	// 3. closed enumerations
	if c.Type != "" {
		if _, ok := v.types.Lookup(model.SemanticType(c.Type)); !ok {
			vs.add(model.VInvalidType, "semantic_type", fmt.Sprintf("unknown semantic_type %q", c.Type))
		}
		rec.Type = model.SemanticType(c.Type)
		if existing != nil && existing.Type != rec.Type {
			vs.add(model.VImmutableField, "semantic_type",
				fmt.Sprintf("semantic_type is %q and cannot change; create a new record that supersedes this one", existing.Type))
		}
	}
	if c.Kind != "" {
		rec.Kind = model.RecordKind(c.Kind)
		if !model.ValidKinds[rec.Kind] {
			vs.add(model.VInvalidType, "record_kind", fmt.Sprintf("unknown record_kind %q", c.Kind))
		}
	}
	rec.Status = model.StatusActive
	if c.Status != "" {
		rec.Status = model.Status(c.Status)
		if !model.ValidStatuses[rec.Status] {
			vs.add(model.VInvalidValue, "status", fmt.Sprintf("unknown status %q", c.Status))
		}
	}
	if rec.Kind == model.KindCollectionHeader && len(rec.Embedding) > 0 {
		vs.add(model.VInvalidValue, "embedding", "collection_header records cannot carry an embedding")
	}

	// 4. relations
	rels, err := v.relations(ctx, view, rec, existing != nil, c.Relations, &vs)
	if err != nil {
		return nil, err
	}
	rec.Relations = rels

	// 5. timestamps
	rec.CreatedAt, rec.ModifiedAt = v.timestamps(c, existing, &vs)

	// 6. identifier format
	if !idOK {
		vs.add(model.VMalformedID, "id", fmt.Sprintf("id %q is not a canonical UUID", c.ID))
	}

	if rec.Type != "" {
		if err := v.checkMetadata(rec, &vs); err != nil {
			return nil, err
		}
	}

	if err := model.ViolationsError(vs.list); err != nil {
		return nil, err
	}
	return &Result{Record: rec, Warnings: recommendations(rec), Existing: existing}, nil
}

func (v *Validator) relations(ctx context.Context, view View, rec model.Record, stored bool, refs []model.RelationRef, vs *violations) ([]model.Relation, error) {
	var out []model.Relation
	seen := map[string]bool{}
	for i, ref := range refs {
		field := fmt.Sprintf("relations[%d]", i)
		target := strings.TrimSpace(ref.Target)
		kind := model.RelationKind(strings.TrimSpace(ref.Kind))
		if target == "" {
			vs.add(model.VMissingField, field+".target", "relation target is required")
			continue
		}
		if kind == "" {
			vs.add(model.VMissingField, field+".kind", "relation kind is required")
		} else if !model.ValidRelations[kind] {
			vs.add(model.VInvalidValue, field+".kind", fmt.Sprintf("unknown relation kind %q", kind))
		}
		if target == rec.ID || target == rec.Slug {
			vs.add(model.VSelfReference, field+".target", fmt.Sprintf("record cannot relate to itself (%q)", target))
			continue
		}

		targetID, err := resolve(ctx, view, target, field, vs)
		if err != nil {
			return nil, err
		}
		if targetID == "" {
			continue
		}
		if targetID == rec.ID {
			vs.add(model.VSelfReference, field+".target", fmt.Sprintf("record cannot relate to itself (%q)", target))
			continue
		}
		if stored {
			cyclic, err := view.Reaches(ctx, targetID, rec.ID)
			if err != nil {
				return nil, fmt.Errorf("check cycle: %w", err)
			}
			if cyclic {
				vs.add(model.VCyclicReference, field+".target",
					fmt.Sprintf("%q already leads back to this record", target))
				continue
			}
		}

		key := targetID + "|" + string(kind)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, model.Relation{Target: target, Kind: kind, TargetID: targetID})
	}
	return out, nil
}

// resolve maps a reference to a record id. A reference matching one record
// by id and another by slug is ambiguous and resolves to nothing.
func resolve(ctx context.Context, view View, target, field string, vs *violations) (string, error) {
	var byID, bySlug string
	if ValidID(target) {
		r, found, err := view.ByID(ctx, target)
		if err != nil {
			return "", fmt.Errorf("resolve %s: %w", field, err)
		}
		if found {
			byID = r.ID
		}
	}
	if ValidSlug(target) {
		r, found, err := view.BySlug(ctx, target)
		if err != nil {
			return "", fmt.Errorf("resolve %s: %w", field, err)
		}
		if found {
			bySlug = r.ID
		}
	}
	switch {
	case byID != "" && bySlug != "" && byID != bySlug:
		vs.add(model.VAmbiguousReference, field+".target",
			fmt.Sprintf("%q matches record %s by id and record %s by slug", target, byID, bySlug))
		return "", nil
	case byID != "":
		return byID, nil
	case bySlug != "":
		return bySlug, nil
	}
	vs.add(model.VUnresolvedReference, field+".target", fmt.Sprintf("%q does not resolve to any record", target))
	return "", nil
}

func (v *Validator) timestamps(c model.Candidate, existing *model.Record, vs *violations) (time.Time, time.Time) {
	created, createdOK := parseTime(c.CreatedAt, "created_at", vs)
	modified, modifiedOK := parseTime(c.ModifiedAt, "modified_at", vs)

	if existing != nil {
		if createdOK && !created.IsZero() && !created.Equal(existing.CreatedAt) {
			vs.add(model.VImmutableField, "created_at",
				fmt.Sprintf("created_at is %s and cannot change", existing.CreatedAt.Format(model.TimeFormat)))
		}
		created = existing.CreatedAt
	} else if created.IsZero() {
		created = v.now().UTC()
	}
	if createdOK && modifiedOK && !modified.IsZero() && created.After(modified) {
		vs.add(model.VMalformedTimestamp, "modified_at", "modified_at is earlier than created_at")
	}
	return created, modified
}

func parseTime(raw, field string, vs *violations) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, true
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		vs.add(model.VMalformedTimestamp, field, fmt.Sprintf("%q is not an RFC 3339 timestamp", raw))
		return time.Time{}, false
	}
	return t.UTC(), true
}

func (v *Validator) checkMetadata(rec model.Record, vs *violations) error {
	spec, ok := v.types.Lookup(rec.Type)
	if !ok || spec.MetadataSchema == "" {
		return nil
	}
	schema, err := v.schema(spec.MetadataSchema)
	if err != nil {
		return fmt.Errorf("metadata schema for %s: %w", rec.Type, err)
	}
	doc := rec.Metadata
	if doc == nil {
		doc = map[string]any{}
	}
	res, err := schema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return fmt.Errorf("metadata schema for %s: %w", rec.Type, err)
	}
	for _, desc := range res.Errors() {
		field := "custom_metadata"
		if f := desc.Field(); f != "" && f != "(root)" {
			field += "." + f
		}
		vs.add(model.VInvalidMetadata, field, desc.Description())
	}
	return nil
}

func (v *Validator) schema(text string) (*gojsonschema.Schema, error) {
	if cached, ok := v.schemas.Load(text); ok {
		return cached.(*gojsonschema.Schema), nil
	}
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(text))
	if err != nil {
		return nil, err
	}
	v.schemas.Store(text, schema)
	return schema, nil
}

func recommendations(rec model.Record) []model.Violation {
	var out []model.Violation
	if n := len([]rune(rec.Title)); n < 60 || n > 100 {
		out = append(out, model.Violation{
			Kind:    model.VRecommendation,
			Field:   "title",
			Message: fmt.Sprintf("title is %d characters; 60-100 is recommended", n),
		})
	}
	if n := len(rec.Tags); n < 3 || n > 7 {
		out = append(out, model.Violation{
			Kind:    model.VRecommendation,
			Field:   "tags",
			Message: fmt.Sprintf("%d tags; 3-7 is recommended", n),
		})
	}
	return out
}

func normalizeTags(tags []string) []string {
	var out []string
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t != "" && !slices.Contains(out, t) {
			out = append(out, t)
		}
	}
	slices.Sort(out)
	return out
}

type violations struct {
	list []model.Violation
}

func (vs *violations) add(kind model.ViolationKind, field, msg string) {
	vs.list = append(vs.list, model.Violation{Kind: kind, Field: field, Message: msg})
}
