package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/SanteonNL/fornax/models/rows"
)

// memStore is an in-memory Store used by the pipeline tests. It mimics
// the transactional contract of the Postgres store: writes stage inside
// a transaction and become visible only on commit.
type memStore struct {
	mu        sync.Mutex
	tables    map[string]map[string]rows.Row
	summaries map[string]*rows.PatientSummary

	failUpsertID string
	failSummary  error
}

func newMemStore() *memStore {
	return &memStore{
		tables:    make(map[string]map[string]rows.Row),
		summaries: make(map[string]*rows.PatientSummary),
	}
}

func (s *memStore) Begin(_ context.Context) (Tx, error) {
	return &memTx{store: s, staged: make(map[string]map[string]rows.Row)}, nil
}

func (s *memStore) get(resourceType, id string) (rows.Row, bool) {
	table, ok := s.tables[resourceType]
	if !ok {
		return nil, false
	}
	row, ok := table[id]
	return row, ok
}

func (s *memStore) count(resourceType string) int {
	return len(s.tables[resourceType])
}

// RecomputeSummaries rebuilds the counts for the given patients from the
// committed tables, skipping ids with no patient row, the way the SQL
// recompute joins against the patients table.
func (s *memStore) RecomputeSummaries(_ context.Context, patientIDs []string) error {
	if s.failSummary != nil {
		return s.failSummary
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, patientID := range patientIDs {
		if _, ok := s.get(rows.TypePatient, patientID); !ok {
			continue
		}
		summary := &rows.PatientSummary{PatientID: patientID}
		for _, row := range s.tables[rows.TypeEncounter] {
			if matches(row.(*rows.Encounter).PatientID, patientID) {
				summary.EncounterCount++
			}
		}
		for _, row := range s.tables[rows.TypeCondition] {
			if matches(row.(*rows.Condition).PatientID, patientID) {
				summary.ConditionCount++
			}
		}
		for _, row := range s.tables[rows.TypeObservation] {
			if matches(row.(*rows.Observation).PatientID, patientID) {
				summary.ObservationCount++
			}
		}
		for _, row := range s.tables[rows.TypeImmunization] {
			if matches(row.(*rows.Immunization).PatientID, patientID) {
				summary.ImmunizationCount++
			}
		}
		for _, row := range s.tables[rows.TypeCarePlan] {
			if matches(row.(*rows.CarePlan).PatientID, patientID) {
				summary.CarePlanCount++
			}
		}
		for _, row := range s.tables[rows.TypeMedicationRequest] {
			if matches(row.(*rows.MedicationRequest).PatientID, patientID) {
				summary.MedicationRequestCount++
			}
		}
		for _, row := range s.tables[rows.TypeProcedure] {
			if matches(row.(*rows.Procedure).PatientID, patientID) {
				summary.ProcedureCount++
			}
		}
		s.summaries[patientID] = summary
	}
	return nil
}

func matches(patientID *string, want string) bool {
	return patientID != nil && *patientID == want
}

type memTx struct {
	store  *memStore
	staged map[string]map[string]rows.Row
	done   bool
}

func (tx *memTx) Upsert(_ context.Context, row rows.Row) (bool, error) {
	if tx.store.failUpsertID != "" && row.RowID() == tx.store.failUpsertID {
		return false, fmt.Errorf("upsert %s/%s: injected failure", row.ResourceType(), row.RowID())
	}

	resourceType := row.ResourceType()
	table := tx.staged[resourceType]
	if table == nil {
		table = make(map[string]rows.Row)
		tx.staged[resourceType] = table
	}

	_, inStaged := table[row.RowID()]
	tx.store.mu.Lock()
	_, inBase := tx.store.get(resourceType, row.RowID())
	tx.store.mu.Unlock()

	table[row.RowID()] = row
	return !inStaged && !inBase, nil
}

func (tx *memTx) RefExists(_ context.Context, resourceType, id string) (bool, error) {
	if _, ok := tx.staged[resourceType][id]; ok {
		return true, nil
	}
	tx.store.mu.Lock()
	defer tx.store.mu.Unlock()
	_, ok := tx.store.get(resourceType, id)
	return ok, nil
}

func (tx *memTx) Commit() error {
	tx.store.mu.Lock()
	defer tx.store.mu.Unlock()

	for resourceType, staged := range tx.staged {
		table := tx.store.tables[resourceType]
		if table == nil {
			table = make(map[string]rows.Row)
			tx.store.tables[resourceType] = table
		}
		for id, row := range staged {
			table[id] = row
		}
	}
	tx.done = true
	return nil
}

func (tx *memTx) Rollback() error {
	tx.staged = nil
	tx.done = true
	return nil
}
