package model

import (
	"slices"
	"sync"
)

// SemanticType classifies the content domain of a record.
type SemanticType string

const (
	TypeArchitecturalDecision SemanticType = "architectural-decision"
	TypeDebugSession          SemanticType = "debug-session"
	TypePattern               SemanticType = "pattern"
	TypeQuestionAnswer        SemanticType = "question-answer"
	TypeCodeReference         SemanticType = "code-reference"
	TypePlan                  SemanticType = "plan"
	TypeReferenceCard         SemanticType = "reference-card"
	TypeCoreConcept           SemanticType = "core-concept"
	TypeMemory                SemanticType = "memory"
	TypeOther                 SemanticType = "other"
)

// BuiltinTypes are always registered.
var BuiltinTypes = []SemanticType{
	TypeArchitecturalDecision,
	TypeDebugSession,
	TypePattern,
	TypeQuestionAnswer,
	TypeCodeReference,
	TypePlan,
	TypeReferenceCard,
	TypeCoreConcept,
	TypeMemory,
	TypeOther,
}

// TypeSpec describes a registered semantic type.
type TypeSpec struct {
	Name SemanticType
	// MetadataSchema is an optional JSON Schema document that custom_metadata
	// must satisfy for records of this type.
	MetadataSchema string
}

// Registry is the closed-but-extensible set of semantic types.
// Unknown names are rejected, never coerced.
type Registry struct {
	mu    sync.RWMutex
	types map[SemanticType]TypeSpec
}

// NewRegistry returns a registry holding the built-in types.
func NewRegistry() *Registry {
	r := &Registry{types: make(map[SemanticType]TypeSpec)}
	for _, t := range BuiltinTypes {
		r.types[t] = TypeSpec{Name: t}
	}
	return r
}

// Register adds or replaces a type.
func (r *Registry) Register(spec TypeSpec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types[spec.Name] = spec
}

// Lookup returns the spec for name.
func (r *Registry) Lookup(name SemanticType) (TypeSpec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	spec, ok := r.types[name]
	return spec, ok
}

// Names returns all registered type names, sorted.
func (r *Registry) Names() []SemanticType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]SemanticType, 0, len(r.types))
	for n := range r.types {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}
