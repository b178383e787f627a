// Package smp implements the registration and resolution managers of
// the SMP: service group lifecycle including the SML compensation saga,
// service information merge semantics, redirects, and business cards.
//
// All entity lifecycles go through a manager, never directly against the
// store. Managers raise the typed errors below; the HTTP layer maps them
// to stable wire statuses.
//
// Concurrency: managers hold no locks across their multi-step
// operations. Concurrent conflicting writes to the same participant are
// possible and resolved by store-level last-writer-wins plus the SML
// compensation logic — eventually consistent, not linearizable.
package smp

import "errors"

var (
	// ErrAlreadyExists indicates a create for an id that is already
	// registered.
	ErrAlreadyExists = errors.New("already exists")

	// ErrNotFound indicates the addressed entity is not registered.
	ErrNotFound = errors.New("not found")

	// ErrInternal indicates a store inconsistency, e.g. a delete the
	// store reported as applied removed zero documents. Never swallowed.
	ErrInternal = errors.New("internal storage inconsistency")
)

// Change reports whether a mutation actually altered state. Idempotent
// deletes of absent entities return Unchanged rather than an error.
type Change int

const (
	Unchanged Change = iota
	Changed
)

func (c Change) String() string {
	if c == Changed {
		return "changed"
	}
	return "unchanged"
}
