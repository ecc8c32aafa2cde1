package loader

import (
	"context"

	"github.com/lib/pq"
)

// recomputeSummariesQuery rebuilds the per-patient counts cache from the
// base tables for an explicit set of patients. Bounding the recompute to
// the patients touched by a batch keeps the cost proportional to the
// batch, not the dataset.
const recomputeSummariesQuery = `
INSERT INTO patient_summaries (
	patient_id, encounter_count, condition_count, observation_count,
	immunization_count, careplan_count, medication_request_count, procedure_count
)
SELECT p.id,
	(SELECT COUNT(*) FROM encounters e WHERE e.patient_id = p.id),
	(SELECT COUNT(*) FROM conditions c WHERE c.patient_id = p.id),
	(SELECT COUNT(*) FROM observations o WHERE o.patient_id = p.id),
	(SELECT COUNT(*) FROM immunizations i WHERE i.patient_id = p.id),
	(SELECT COUNT(*) FROM careplans cp WHERE cp.patient_id = p.id),
	(SELECT COUNT(*) FROM medication_requests m WHERE m.patient_id = p.id),
	(SELECT COUNT(*) FROM procedures pr WHERE pr.patient_id = p.id)
FROM patients p
WHERE p.id = ANY($1)
ON CONFLICT (patient_id) DO UPDATE SET
	encounter_count = EXCLUDED.encounter_count,
	condition_count = EXCLUDED.condition_count,
	observation_count = EXCLUDED.observation_count,
	immunization_count = EXCLUDED.immunization_count,
	careplan_count = EXCLUDED.careplan_count,
	medication_request_count = EXCLUDED.medication_request_count,
	procedure_count = EXCLUDED.procedure_count`

// RecomputeSummaries refreshes patient_summaries for the given patients.
// Called after each committed batch with exactly the patients that batch
// touched.
func (s *PostgresStore) RecomputeSummaries(ctx context.Context, patientIDs []string) error {
	if len(patientIDs) == 0 {
		return nil
	}

	res, err := s.db.ExecContext(ctx, recomputeSummariesQuery, pq.Array(patientIDs))
	if err != nil {
		return &PersistenceError{Op: "recompute patient summaries", Err: err}
	}

	updated, _ := res.RowsAffected()
	s.log.Debug().
		Int("patients", len(patientIDs)).
		Int64("summaries_written", updated).
		Msg("Recomputed patient summaries")

	return nil
}
