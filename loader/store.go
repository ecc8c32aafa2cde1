// Package loader persists transformed rows into Postgres. Each batch
// writes inside a single transaction; rows are upserted by resource id
// (last-write-wins) so re-ingesting a resource never produces a
// duplicate.
package loader

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"

	"github.com/SanteonNL/fornax/models/rows"
)

// Connect opens a Postgres connection pool.
func Connect(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to the database: %w", err)
	}
	return db, nil
}

// PostgresStore is the persistent store behind the ingestion pipeline
// and the query surface.
type PostgresStore struct {
	db  *sqlx.DB
	log zerolog.Logger
}

// NewPostgresStore creates a store on an open connection pool.
func NewPostgresStore(db *sqlx.DB, log zerolog.Logger) *PostgresStore {
	return &PostgresStore{db: db, log: log}
}

// Begin opens the batch transaction.
func (s *PostgresStore) Begin(ctx context.Context) (*BatchTx, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, &PersistenceError{Op: "begin batch transaction", Err: err}
	}
	return &BatchTx{tx: tx, log: s.log}, nil
}

// BatchTx wraps one batch's transaction scope.
type BatchTx struct {
	tx  *sqlx.Tx
	log zerolog.Logger
}

// Upsert writes or updates exactly one row keyed by (type, id). It
// reports whether the row was newly created. All mapped fields are
// overwritten unconditionally; derived columns are left untouched.
func (t *BatchTx) Upsert(ctx context.Context, row rows.Row) (bool, error) {
	stmt, ok := upsertStatements[row.ResourceType()]
	if !ok {
		return false, fmt.Errorf("no upsert statement for resource type %s", row.ResourceType())
	}

	res, err := t.tx.NamedQuery(stmt, row)
	if err != nil {
		return false, &PersistenceError{Op: "upsert " + row.ResourceType(), Err: err}
	}
	defer res.Close()

	var created bool
	if res.Next() {
		if err := res.Scan(&created); err != nil {
			return false, &PersistenceError{Op: "upsert " + row.ResourceType(), Err: err}
		}
	}
	if err := res.Err(); err != nil {
		return false, &PersistenceError{Op: "upsert " + row.ResourceType(), Err: err}
	}

	return created, nil
}

// RefExists reports whether a row of the given type and id is visible to
// this transaction, covering both prior batches and rows already written
// in the current one.
func (t *BatchTx) RefExists(ctx context.Context, resourceType, id string) (bool, error) {
	table, ok := tableNames[resourceType]
	if !ok {
		return false, fmt.Errorf("no table for resource type %s", resourceType)
	}

	var exists bool
	query := fmt.Sprintf("SELECT EXISTS (SELECT 1 FROM %s WHERE id = $1)", table)
	if err := t.tx.GetContext(ctx, &exists, query, id); err != nil {
		return false, &PersistenceError{Op: "lookup " + resourceType, Err: err}
	}
	return exists, nil
}

// Commit commits the batch.
func (t *BatchTx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return &PersistenceError{Op: "commit batch", Err: err}
	}
	return nil
}

// Rollback abandons the batch. Safe to call after Commit.
func (t *BatchTx) Rollback() error {
	return t.tx.Rollback()
}

// tableNames maps resource type discriminators to their tables.
var tableNames = map[string]string{
	rows.TypePatient:           rows.Patient{}.TableName(),
	rows.TypeEncounter:         rows.Encounter{}.TableName(),
	rows.TypeCondition:         rows.Condition{}.TableName(),
	rows.TypeObservation:       rows.Observation{}.TableName(),
	rows.TypeImmunization:      rows.Immunization{}.TableName(),
	rows.TypeCarePlan:          rows.CarePlan{}.TableName(),
	rows.TypeMedicationRequest: rows.MedicationRequest{}.TableName(),
	rows.TypeProcedure:         rows.Procedure{}.TableName(),
}
