package model

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinels for errors.Is matching against the typed errors below.
var (
	ErrValidation           = errors.New("validation failed")
	ErrNotFound             = errors.New("not found")
	ErrConflict             = errors.New("conflict")
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")
	ErrStoreIO              = errors.New("store i/o failure")
)

// ViolationKind is the machine-readable class of a validation failure.
type ViolationKind string

const (
	VMissingField        ViolationKind = "missing-field"
	VDuplicateSlug       ViolationKind = "duplicate-slug"
	VUnresolvedReference ViolationKind = "unresolved-reference"
	VAmbiguousReference  ViolationKind = "ambiguous-reference"
	VSelfReference       ViolationKind = "self-reference"
	VCyclicReference     ViolationKind = "cyclic-reference"
	VInvalidType         ViolationKind = "invalid-type"
	VInvalidValue        ViolationKind = "invalid-value"
	VMalformedSlug       ViolationKind = "malformed-slug"
	VMalformedTimestamp  ViolationKind = "malformed-timestamp"
	VMalformedID         ViolationKind = "malformed-id"
	VImmutableField      ViolationKind = "immutable-field"
	VInvalidMetadata     ViolationKind = "invalid-metadata"
	VIDConflict          ViolationKind = "id-conflict"
	VRecommendation      ViolationKind = "recommendation"
)

// Violation is one problem found in a candidate record.
type Violation struct {
	Kind    ViolationKind `json:"kind"`
	Field   string        `json:"field"`
	Message string        `json:"message"`

	// Value and Existing identify the colliding value and the record that
	// already holds it, for conflict-style violations.
	Value    string `json:"value,omitempty"`
	Existing string `json:"existing,omitempty"`
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: %s (%s)", v.Field, v.Message, v.Kind)
}

// ValidationError carries every violation found, not just the first.
type ValidationError struct {
	Violations []Violation `json:"violations"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = v.String()
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Has reports whether any violation is of kind k.
func (e *ValidationError) Has(k ViolationKind) bool {
	for _, v := range e.Violations {
		if v.Kind == k {
			return true
		}
	}
	return false
}

// NotFoundError reports a missing record, slug or snapshot.
type NotFoundError struct {
	What string // "record", "snapshot", "version"
	Ref  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.What, e.Ref)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// ConflictError reports a write that collides with existing state.
type ConflictError struct {
	Field      string
	Value      string
	ExistingID string
	Violations []Violation
}

func (e *ConflictError) Error() string {
	if e.ExistingID != "" {
		return fmt.Sprintf("conflict on %s %q (held by %s)", e.Field, e.Value, e.ExistingID)
	}
	return fmt.Sprintf("conflict on %s %q", e.Field, e.Value)
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// EmbeddingUnavailableError distinguishes "no embeddings" from "no results".
type EmbeddingUnavailableError struct {
	Reason string
	Err    error
}

func (e *EmbeddingUnavailableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("embedding unavailable: %s: %v", e.Reason, e.Err)
	}
	return "embedding unavailable: " + e.Reason
}

func (e *EmbeddingUnavailableError) Is(target error) bool { return target == ErrEmbeddingUnavailable }

func (e *EmbeddingUnavailableError) Unwrap() error { return e.Err }

// StoreIOError wraps an underlying persistence failure. The operation that
// returned it left the store at its prior snapshot.
type StoreIOError struct {
	Op  string
	Err error
}

func (e *StoreIOError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreIOError) Is(target error) bool { return target == ErrStoreIO }

func (e *StoreIOError) Unwrap() error { return e.Err }

// ViolationsError turns a violation list into the error a write should
// report. A list made only of slug or id collisions is a conflict.
func ViolationsError(vs []Violation) error {
	if len(vs) == 0 {
		return nil
	}
	for _, v := range vs {
		if v.Kind != VDuplicateSlug && v.Kind != VIDConflict {
			return &ValidationError{Violations: vs}
		}
	}
	return &ConflictError{Field: vs[0].Field, Value: vs[0].Value, ExistingID: vs[0].Existing, Violations: vs}
}
