package resolver

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubLookup struct {
	existing map[string]bool
	err      error
	calls    int
}

func (s *stubLookup) RefExists(_ context.Context, resourceType, id string) (bool, error) {
	s.calls++
	if s.err != nil {
		return false, s.err
	}
	return s.existing[resourceType+"/"+id], nil
}

func TestResolveAgainstArena(t *testing.T) {
	res := New(zerolog.Nop())
	res.Register("Patient", "p1")

	var assigned string
	res.Defer(Ref{
		SourceType: "Encounter",
		SourceID:   "e1",
		TargetType: "Patient",
		TargetID:   "p1",
		Assign:     func(id string) { assigned = id },
	})
	require.Equal(t, 1, res.Pending())

	lookup := &stubLookup{}
	warnings, err := res.Resolve(context.Background(), lookup)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, "p1", assigned)
	assert.Zero(t, lookup.calls, "arena hit must not touch the store")
	assert.Zero(t, res.Pending())
}

func TestResolveAgainstStore(t *testing.T) {
	res := New(zerolog.Nop())

	var assigned string
	res.Defer(Ref{
		SourceType: "Condition",
		SourceID:   "c1",
		TargetType: "Patient",
		TargetID:   "p9",
		Assign:     func(id string) { assigned = id },
	})

	lookup := &stubLookup{existing: map[string]bool{"Patient/p9": true}}
	warnings, err := res.Resolve(context.Background(), lookup)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, "p9", assigned)
	assert.Equal(t, 1, lookup.calls)
}

func TestResolveUnresolvedIsWarning(t *testing.T) {
	res := New(zerolog.Nop())

	assigned := false
	res.Defer(Ref{
		SourceType: "Observation",
		SourceID:   "o1",
		TargetType: "Encounter",
		TargetID:   "missing",
		Assign:     func(string) { assigned = true },
	})

	warnings, err := res.Resolve(context.Background(), &stubLookup{})
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.False(t, assigned)

	var unresolved *UnresolvedReferenceError
	require.True(t, errors.As(warnings[0], &unresolved))
	assert.Equal(t, "Observation", unresolved.SourceType)
	assert.Equal(t, "o1", unresolved.SourceID)
	assert.Equal(t, "Encounter", unresolved.TargetType)
	assert.Equal(t, "missing", unresolved.TargetID)
}

func TestResolveLookupFailureIsFatal(t *testing.T) {
	res := New(zerolog.Nop())
	res.Defer(Ref{
		SourceType: "Encounter",
		SourceID:   "e1",
		TargetType: "Patient",
		TargetID:   "p1",
		Assign:     func(string) {},
	})

	lookupErr := errors.New("connection reset")
	_, err := res.Resolve(context.Background(), &stubLookup{err: lookupErr})
	require.Error(t, err)
	assert.ErrorIs(t, err, lookupErr)
}
