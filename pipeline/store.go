package pipeline

import (
	"context"

	"github.com/SanteonNL/fornax/loader"
	"github.com/SanteonNL/fornax/models/rows"
)

// Tx is one batch's transaction scope: upserts, reference lookups and
// the commit/rollback decision.
type Tx interface {
	Upsert(ctx context.Context, row rows.Row) (created bool, err error)
	RefExists(ctx context.Context, resourceType, id string) (bool, error)
	Commit() error
	Rollback() error
}

// Store is the persistence boundary of the pipeline.
type Store interface {
	Begin(ctx context.Context) (Tx, error)
	RecomputeSummaries(ctx context.Context, patientIDs []string) error
}

// SQLStore adapts the Postgres store to the pipeline's Store interface.
type SQLStore struct {
	*loader.PostgresStore
}

func (s SQLStore) Begin(ctx context.Context) (Tx, error) {
	return s.PostgresStore.Begin(ctx)
}
