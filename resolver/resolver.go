// Package resolver wires cross-resource references within a batch. Rows
// are registered into an arena keyed by (type, id); outgoing references
// stay pending until a second pass resolves them against the arena, then
// against the persistent store. References stored as lookup keys rather
// than pointers tolerate targets that arrive later in the batch, or in a
// later batch entirely.
package resolver

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// Ref is one outgoing reference descriptor produced by a transformer.
// Assign writes the resolved target id into the referencing row.
type Ref struct {
	SourceType string
	SourceID   string
	TargetType string
	TargetID   string
	Assign     func(id string)
}

// UnresolvedReferenceError marks a reference whose target was found
// neither in the batch nor in the persistent store. The referencing row
// is still persisted with a null reference and can be repaired by a
// later batch that supplies the missing target.
type UnresolvedReferenceError struct {
	SourceType string
	SourceID   string
	TargetType string
	TargetID   string
}

func (e *UnresolvedReferenceError) Error() string {
	return fmt.Sprintf("unresolved reference from %s/%s to %s/%s",
		e.SourceType, e.SourceID, e.TargetType, e.TargetID)
}

// RefLookup checks the persistent store for a row that may have been
// loaded by a prior batch.
type RefLookup interface {
	RefExists(ctx context.Context, resourceType, id string) (bool, error)
}

type arenaKey struct {
	resourceType string
	id           string
}

// Resolver accumulates the arena and the pending reference list for one
// batch.
type Resolver struct {
	log     zerolog.Logger
	arena   map[arenaKey]struct{}
	pending []Ref
}

// New creates an empty resolver for a single batch.
func New(log zerolog.Logger) *Resolver {
	return &Resolver{
		log:   log,
		arena: make(map[arenaKey]struct{}),
	}
}

// Register records that a row with the given type and id is part of this
// batch and may be targeted by references.
func (r *Resolver) Register(resourceType, id string) {
	r.arena[arenaKey{resourceType, id}] = struct{}{}
}

// Defer queues outgoing references for the second pass.
func (r *Resolver) Defer(refs ...Ref) {
	r.pending = append(r.pending, refs...)
}

// Pending returns the number of references awaiting resolution.
func (r *Resolver) Pending() int {
	return len(r.pending)
}

// Resolve walks the pending list. Each reference is resolved against the
// batch arena first, then against the persistent store. References still
// missing after both are reported as UnresolvedReferenceError warnings;
// a lookup failure is fatal and aborts the batch.
func (r *Resolver) Resolve(ctx context.Context, lookup RefLookup) ([]error, error) {
	var warnings []error

	for _, ref := range r.pending {
		if _, ok := r.arena[arenaKey{ref.TargetType, ref.TargetID}]; ok {
			ref.Assign(ref.TargetID)
			continue
		}

		exists, err := lookup.RefExists(ctx, ref.TargetType, ref.TargetID)
		if err != nil {
			return warnings, fmt.Errorf("failed to look up %s/%s: %w", ref.TargetType, ref.TargetID, err)
		}
		if exists {
			ref.Assign(ref.TargetID)
			continue
		}

		warnings = append(warnings, &UnresolvedReferenceError{
			SourceType: ref.SourceType,
			SourceID:   ref.SourceID,
			TargetType: ref.TargetType,
			TargetID:   ref.TargetID,
		})
		r.log.Warn().
			Str("source", ref.SourceType+"/"+ref.SourceID).
			Str("target", ref.TargetType+"/"+ref.TargetID).
			Msg("Reference target not found in batch or store")
	}

	r.pending = nil
	return warnings, nil
}
