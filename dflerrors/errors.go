// Package dflerrors defines the structured error kinds reported by the
// wiring phase (registrar, graph builder) and the run phase (scheduler)
// of the engine. Errors carry the offending names and, where
// applicable, the two candidate producers.
package dflerrors

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies an Error.
type Kind int

const (
	// Other is an unclassified error.
	Other Kind = iota
	// DuplicateName indicates two declarations share an algorithm name.
	DuplicateName
	// DuplicateSpecification indicates two producers emit the same
	// (label, layer) specification.
	DuplicateSpecification
	// UnresolvedInput indicates a query or predicate matched zero
	// producers.
	UnresolvedInput
	// AmbiguousInput indicates a query or predicate matched two or more
	// producers.
	AmbiguousInput
	// CycleDetected indicates the producer/consumer graph is not a DAG.
	CycleDetected
	// TypeMismatch indicates a typed product read observed a different
	// type tag than declared.
	TypeMismatch
	// UserCallableFailed indicates a user callable returned an error or
	// panicked; the triggering record is poisoned.
	UserCallableFailed
	// SourceExhaustedPrematurely indicates a source's pull function
	// returned an error, ending that source's stream early.
	SourceExhaustedPrematurely
	// InternalInvariant indicates a condition the scheduler assumes can
	// never happen (e.g. an impossible join mismatch); it aborts
	// execution.
	InternalInvariant
)

func (k Kind) String() string {
	switch k {
	case DuplicateName:
		return "DuplicateName"
	case DuplicateSpecification:
		return "DuplicateSpecification"
	case UnresolvedInput:
		return "UnresolvedInput"
	case AmbiguousInput:
		return "AmbiguousInput"
	case CycleDetected:
		return "CycleDetected"
	case TypeMismatch:
		return "TypeMismatch"
	case UserCallableFailed:
		return "UserCallableFailed"
	case SourceExhaustedPrematurely:
		return "SourceExhaustedPrematurely"
	case InternalInvariant:
		return "InternalInvariant"
	default:
		return "Other"
	}
}

// Error is the engine's structured error type. Construct with E.
type Error struct {
	Kind Kind
	// Names are the offending node/product names involved.
	Names []string
	// Candidates holds the two candidate producer names for an
	// AmbiguousInput or DuplicateSpecification error.
	Candidates []string
	// Err wraps an underlying cause, if any.
	Err error
}

// E constructs an *Error of the given kind, with the offending names and
// an optional wrapped cause.
func E(kind Kind, names []string, err error) *Error {
	return &Error{Kind: kind, Names: names, Err: err}
}

// WithCandidates attaches the two candidate producers to e and returns
// it, for chaining at the construction site.
func (e *Error) WithCandidates(a, b string) *Error {
	e.Candidates = []string{a, b}
	return e
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	if len(e.Names) > 0 {
		b.WriteString(": ")
		b.WriteString(strings.Join(e.Names, ", "))
	}
	if len(e.Candidates) == 2 {
		fmt.Fprintf(&b, " (candidates: %s, %s)", e.Candidates[0], e.Candidates[1])
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns e's wrapped cause, if any, so errors.Is/As traverse it.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error with the same Kind, supporting
// errors.Is(err, dflerrors.E(dflerrors.CycleDetected, nil, nil)).
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return e.Kind == other.Kind
}

// Recover converts any error into *Error, wrapping non-Error values as
// Kind Other.
func Recover(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Kind: Other, Err: err}
}
