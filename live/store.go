package live

import "errors"

// Document is a generic record delivered by a live query.
type Document map[string]any

// Spec describes a collection query: equality filters plus an optional
// ascending sort field. The sorted form may require a composite index on
// index-based backends.
type Spec struct {
	Collection string
	Filters    map[string]any
	OrderBy    string
}

// WithoutOrder returns a copy of the spec with the sort clause dropped, for
// the fallback path when the backend lacks the required index.
func (s Spec) WithoutOrder() Spec {
	return Spec{Collection: s.Collection, Filters: s.Filters}
}

// Error classes a Store must distinguish. Implementations wrap these
// sentinels so the query runner can pick a recovery strategy.
var (
	// ErrIndexMissing means the requested sort needs an index that does not
	// exist on the backend. Recoverable via the unordered fallback.
	ErrIndexMissing = errors.New("live: missing index")
	// ErrUnavailable means a transient network failure. Recoverable via
	// bounded retry.
	ErrUnavailable = errors.New("live: backend unavailable")
	// ErrInternal means an unrecoverable backend error. Never retried.
	ErrInternal = errors.New("live: internal backend error")
)

// Class is the recovery strategy bucket for a store error.
type Class int

const (
	ClassUnknown Class = iota
	ClassIndexMissing
	ClassTransient
	ClassInternal
)

// Classify maps a store error onto its recovery class. Unknown errors are
// treated as internal: degrade to empty rather than retry blindly.
func Classify(err error) Class {
	switch {
	case errors.Is(err, ErrIndexMissing):
		return ClassIndexMissing
	case errors.Is(err, ErrUnavailable):
		return ClassTransient
	case errors.Is(err, ErrInternal):
		return ClassInternal
	}
	return ClassUnknown
}

// Store is the document backend consumed by the query runner.
type Store interface {
	// Query runs the spec once and returns the matching documents.
	Query(spec Spec) ([]Document, error)

	// Subscribe delivers the current result set immediately and again on
	// every change until the returned teardown runs. Errors occurring after
	// establishment arrive through onError.
	Subscribe(spec Spec, onData func([]Document), onError func(error)) (func(), error)
}
