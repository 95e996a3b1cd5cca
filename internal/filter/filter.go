// Package filter compiles CEL expressions into record predicates for scans.
//
// Expressions see these variables:
//
//	id, slug, title, content, record_kind, semantic_type, status  string
//	tags                                                          list(string)
//	meta                                                          map(string, dyn)
//	version                                                       int
//	created_at, modified_at                                       timestamp
//
// For example: `semantic_type == "pattern" && "auth" in tags`.
package filter

import (
	"fmt"

	"github.com/google/cel-go/cel"

	"github.com/rcliao/ontomem/internal/model"
)

// Predicate reports whether a record matches.
type Predicate func(model.Record) bool

var env = mustEnv()

func mustEnv() *cel.Env {
	e, err := cel.NewEnv(
		cel.Variable("id", cel.StringType),
		cel.Variable("slug", cel.StringType),
		cel.Variable("title", cel.StringType),
		cel.Variable("content", cel.StringType),
		cel.Variable("record_kind", cel.StringType),
		cel.Variable("semantic_type", cel.StringType),
		cel.Variable("status", cel.StringType),
		cel.Variable("tags", cel.ListType(cel.StringType)),
		cel.Variable("meta", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("version", cel.IntType),
		cel.Variable("created_at", cel.TimestampType),
		cel.Variable("modified_at", cel.TimestampType),
	)
	if err != nil {
		panic(fmt.Sprintf("filter: cel env: %v", err))
	}
	return e
}

// Compile parses and type-checks expr. The expression must evaluate to a
// bool; a record for which evaluation fails (a missing meta key, say) does
// not match.
func Compile(expr string) (Predicate, error) {
	ast, iss := env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, invalid(expr, iss.Err().Error())
	}
	out := ast.OutputType()
	if !out.IsExactType(cel.BoolType) && !out.IsExactType(cel.DynType) {
		return nil, invalid(expr, fmt.Sprintf("expression yields %s, want bool", out))
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, invalid(expr, err.Error())
	}

	return func(r model.Record) bool {
		val, _, err := prg.Eval(activation(r))
		if err != nil {
			return false
		}
		b, ok := val.Value().(bool)
		return ok && b
	}, nil
}

func activation(r model.Record) map[string]any {
	tags := r.Tags
	if tags == nil {
		tags = []string{}
	}
	meta := r.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	return map[string]any{
		"id":            r.ID,
		"slug":          r.Slug,
		"title":         r.Title,
		"content":       r.Content,
		"record_kind":   string(r.Kind),
		"semantic_type": string(r.Type),
		"status":        string(r.Status),
		"tags":          tags,
		"meta":          meta,
		"version":       int64(r.Version),
		"created_at":    r.CreatedAt,
		"modified_at":   r.ModifiedAt,
	}
}

func invalid(expr, msg string) error {
	return &model.ValidationError{Violations: []model.Violation{{
		Kind:    model.VInvalidValue,
		Field:   "where",
		Message: msg,
		Value:   expr,
	}}}
}
