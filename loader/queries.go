package loader

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/SanteonNL/fornax/models/rows"
)

// PatientWithSummary joins a patient row with its derived counts for the
// patient list view.
type PatientWithSummary struct {
	rows.Patient
	EncounterCount         int `db:"encounter_count"`
	ConditionCount         int `db:"condition_count"`
	ObservationCount       int `db:"observation_count"`
	ImmunizationCount      int `db:"immunization_count"`
	CarePlanCount          int `db:"careplan_count"`
	MedicationRequestCount int `db:"medication_request_count"`
	ProcedureCount         int `db:"procedure_count"`
}

// CategoryCount is one slice of a categorical rollup.
type CategoryCount struct {
	Category string `db:"category" json:"category"`
	Count    int    `db:"count" json:"count"`
}

// BucketCount is one point of a time-bucketed rollup. Year-precision
// dates bucket by year so partial dates never masquerade as January.
type BucketCount struct {
	Bucket string `db:"bucket" json:"bucket"`
	Count  int    `db:"count" json:"count"`
}

// ListPatients returns patients with their summary counts, optionally
// filtered by a partial, case-insensitive name match.
func (s *PostgresStore) ListPatients(ctx context.Context, nameFilter string, limit, offset int) ([]PatientWithSummary, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT p.*,
			COALESCE(ps.encounter_count, 0) AS encounter_count,
			COALESCE(ps.condition_count, 0) AS condition_count,
			COALESCE(ps.observation_count, 0) AS observation_count,
			COALESCE(ps.immunization_count, 0) AS immunization_count,
			COALESCE(ps.careplan_count, 0) AS careplan_count,
			COALESCE(ps.medication_request_count, 0) AS medication_request_count,
			COALESCE(ps.procedure_count, 0) AS procedure_count
		FROM patients p
		LEFT JOIN patient_summaries ps ON ps.patient_id = p.id
		WHERE ($1 = '' OR p.family_name ILIKE '%' || $1 || '%' OR p.given_name ILIKE '%' || $1 || '%')
		ORDER BY p.family_name, p.given_name, p.id
		LIMIT $2 OFFSET $3`

	var patients []PatientWithSummary
	if err := s.db.SelectContext(ctx, &patients, query, nameFilter, limit, offset); err != nil {
		return nil, &PersistenceError{Op: "list patients", Err: err}
	}
	return patients, nil
}

// GetPatient fetches one patient by id, or nil when absent.
func (s *PostgresStore) GetPatient(ctx context.Context, id string) (*rows.Patient, error) {
	var patient rows.Patient
	err := s.db.GetContext(ctx, &patient, "SELECT * FROM patients WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, &PersistenceError{Op: "get patient", Err: err}
	}
	return &patient, nil
}

// GetEncounter fetches one encounter by id, or nil when absent.
func (s *PostgresStore) GetEncounter(ctx context.Context, id string) (*rows.Encounter, error) {
	var encounter rows.Encounter
	err := s.db.GetContext(ctx, &encounter, "SELECT * FROM encounters WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, &PersistenceError{Op: "get encounter", Err: err}
	}
	return &encounter, nil
}

// listForPatient fetches all child rows of one table for a patient.
func listForPatient[T any](ctx context.Context, s *PostgresStore, table, patientID string) ([]T, error) {
	var result []T
	query := fmt.Sprintf("SELECT * FROM %s WHERE patient_id = $1 ORDER BY id", table)
	if err := s.db.SelectContext(ctx, &result, query, patientID); err != nil {
		return nil, &PersistenceError{Op: "list " + table, Err: err}
	}
	return result, nil
}

func (s *PostgresStore) ListEncounters(ctx context.Context, patientID string) ([]rows.Encounter, error) {
	return listForPatient[rows.Encounter](ctx, s, "encounters", patientID)
}

func (s *PostgresStore) ListConditions(ctx context.Context, patientID string) ([]rows.Condition, error) {
	return listForPatient[rows.Condition](ctx, s, "conditions", patientID)
}

func (s *PostgresStore) ListObservations(ctx context.Context, patientID string) ([]rows.Observation, error) {
	return listForPatient[rows.Observation](ctx, s, "observations", patientID)
}

func (s *PostgresStore) ListImmunizations(ctx context.Context, patientID string) ([]rows.Immunization, error) {
	return listForPatient[rows.Immunization](ctx, s, "immunizations", patientID)
}

func (s *PostgresStore) ListCarePlans(ctx context.Context, patientID string) ([]rows.CarePlan, error) {
	return listForPatient[rows.CarePlan](ctx, s, "careplans", patientID)
}

func (s *PostgresStore) ListMedicationRequests(ctx context.Context, patientID string) ([]rows.MedicationRequest, error) {
	return listForPatient[rows.MedicationRequest](ctx, s, "medication_requests", patientID)
}

func (s *PostgresStore) ListProcedures(ctx context.Context, patientID string) ([]rows.Procedure, error) {
	return listForPatient[rows.Procedure](ctx, s, "procedures", patientID)
}

// GenderDistribution counts patients per gender.
func (s *PostgresStore) GenderDistribution(ctx context.Context) ([]CategoryCount, error) {
	return s.categoryCounts(ctx, `
		SELECT COALESCE(gender, 'unknown') AS category, COUNT(*) AS count
		FROM patients GROUP BY 1 ORDER BY count DESC`)
}

// ConditionsByCategory counts conditions per category code.
func (s *PostgresStore) ConditionsByCategory(ctx context.Context) ([]CategoryCount, error) {
	return s.categoryCounts(ctx, `
		SELECT COALESCE(category_code, 'uncategorized') AS category, COUNT(*) AS count
		FROM conditions GROUP BY 1 ORDER BY count DESC`)
}

// MedicationStatusDistribution counts medication requests per status.
func (s *PostgresStore) MedicationStatusDistribution(ctx context.Context) ([]CategoryCount, error) {
	return s.categoryCounts(ctx, `
		SELECT COALESCE(status, 'unknown') AS category, COUNT(*) AS count
		FROM medication_requests GROUP BY 1 ORDER BY count DESC`)
}

// TopConditions returns the n most frequent condition codes with their
// display text.
func (s *PostgresStore) TopConditions(ctx context.Context, n int) ([]CategoryCount, error) {
	if n <= 0 {
		n = 10
	}
	query := `
		SELECT COALESCE(code_text, code, 'unknown') AS category, COUNT(*) AS count
		FROM conditions GROUP BY 1 ORDER BY count DESC LIMIT $1`

	var counts []CategoryCount
	if err := s.db.SelectContext(ctx, &counts, query, n); err != nil {
		return nil, &PersistenceError{Op: "top conditions", Err: err}
	}
	return counts, nil
}

// EncounterTimeSeries buckets encounters by start month, honoring the
// stored precision: a year-only start buckets by year instead of being
// misread as January.
func (s *PostgresStore) EncounterTimeSeries(ctx context.Context) ([]BucketCount, error) {
	return s.bucketCounts(ctx, `
		SELECT CASE WHEN encounter_start_precision = 'year'
			THEN to_char(encounter_start, 'YYYY')
			ELSE to_char(encounter_start, 'YYYY-MM')
		END AS bucket, COUNT(*) AS count
		FROM encounters WHERE encounter_start IS NOT NULL
		GROUP BY 1 ORDER BY 1`)
}

// ImmunizationTimeSeries buckets immunizations by occurrence month,
// honoring the stored precision: a year-only occurrence buckets by year
// instead of being misread as January.
func (s *PostgresStore) ImmunizationTimeSeries(ctx context.Context) ([]BucketCount, error) {
	return s.bucketCounts(ctx, `
		SELECT CASE WHEN occurrence_date_precision = 'year'
			THEN to_char(occurrence_date, 'YYYY')
			ELSE to_char(occurrence_date, 'YYYY-MM')
		END AS bucket, COUNT(*) AS count
		FROM immunizations WHERE occurrence_date IS NOT NULL
		GROUP BY 1 ORDER BY 1`)
}

func (s *PostgresStore) categoryCounts(ctx context.Context, query string) ([]CategoryCount, error) {
	var counts []CategoryCount
	if err := s.db.SelectContext(ctx, &counts, query); err != nil {
		return nil, &PersistenceError{Op: "aggregate query", Err: err}
	}
	return counts, nil
}

func (s *PostgresStore) bucketCounts(ctx context.Context, query string) ([]BucketCount, error) {
	var counts []BucketCount
	if err := s.db.SelectContext(ctx, &counts, query); err != nil {
		return nil, &PersistenceError{Op: "time series query", Err: err}
	}
	return counts, nil
}
