package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SanteonNL/fornax/models/rows"
	"github.com/SanteonNL/fornax/reader"
)

func src(name, body string) reader.Source {
	return reader.BytesSource(name, []byte(body))
}

const (
	patientDoc = `{
		"resourceType": "Patient",
		"id": "p1",
		"name": [{"family": "Doe", "given": ["Jane"]}],
		"birthDate": "1987-06-15",
		"gender": "female"
	}`
	encounterDoc = `{
		"resourceType": "Encounter",
		"id": "e1",
		"subject": {"reference": "Patient/p1"},
		"period": {"start": "2020-01-01T09:00:00Z", "end": "2020-01-01T10:00:00Z"},
		"status": "finished"
	}`
	conditionDoc = `{
		"resourceType": "Condition",
		"id": "c1",
		"subject": {"reference": "Patient/p1"},
		"encounter": {"reference": "Encounter/e1"},
		"code": {"coding": [{"code": "44054006", "display": "Diabetes"}]},
		"onsetDateTime": "2015"
	}`
)

func newTestService(store Store) *Service {
	return NewService(store, zerolog.Nop(), 2)
}

func TestRunForwardReference(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)

	// The encounter arrives before the patient it references.
	result, err := svc.Run(context.Background(), []reader.Source{
		src("encounter.json", encounterDoc),
		src("condition.json", conditionDoc),
		src("patient.json", patientDoc),
	})
	require.NoError(t, err)
	assert.Empty(t, result.Warnings)
	assert.Empty(t, result.Errors)
	assert.Equal(t, 3, result.Created)

	encounter := store.tables[rows.TypeEncounter]["e1"].(*rows.Encounter)
	require.NotNil(t, encounter.PatientID)
	assert.Equal(t, "p1", *encounter.PatientID)

	condition := store.tables[rows.TypeCondition]["c1"].(*rows.Condition)
	require.NotNil(t, condition.PatientID)
	require.NotNil(t, condition.EncounterID)
	assert.Equal(t, "e1", *condition.EncounterID)
}

func TestRunIdempotentBatch(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	sources := func() []reader.Source {
		return []reader.Source{
			src("patient.json", patientDoc),
			src("encounter.json", encounterDoc),
			src("condition.json", conditionDoc),
		}
	}

	first, err := svc.Run(context.Background(), sources())
	require.NoError(t, err)
	assert.Equal(t, 3, first.Created)
	assert.Equal(t, 0, first.Updated)

	second, err := svc.Run(context.Background(), sources())
	require.NoError(t, err)
	assert.Equal(t, 0, second.Created)
	assert.Equal(t, 3, second.Updated)

	assert.Equal(t, 1, store.count(rows.TypePatient))
	assert.Equal(t, 1, store.count(rows.TypeEncounter))
	assert.Equal(t, 1, store.count(rows.TypeCondition))
}

func TestRunUpdateSemantics(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)

	_, err := svc.Run(context.Background(), []reader.Source{src("patient.json", patientDoc)})
	require.NoError(t, err)

	// Same id, corrected birth date. Last write wins in place.
	result, err := svc.Run(context.Background(), []reader.Source{src("patient.json", `{
		"resourceType": "Patient",
		"id": "p1",
		"name": [{"family": "Doe", "given": ["Jane"]}],
		"birthDate": "1987-06-16",
		"gender": "female"
	}`)})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Updated)
	assert.Equal(t, 0, result.Created)

	require.Equal(t, 1, store.count(rows.TypePatient))
	patient := store.tables[rows.TypePatient]["p1"].(*rows.Patient)
	assert.Equal(t, 16, patient.BirthDate.Day())
	assert.Equal(t, "female", *patient.Gender)
}

func TestRunSummaryCorrectness(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)

	result, err := svc.Run(context.Background(), []reader.Source{
		src("patient.json", patientDoc),
		src("e1.json", encounterDoc),
		src("e2.json", `{
			"resourceType": "Encounter",
			"id": "e2",
			"subject": {"reference": "Patient/p1"},
			"status": "planned"
		}`),
		src("condition.json", conditionDoc),
		src("immunization.json", `{
			"resourceType": "Immunization",
			"id": "i1",
			"patient": {"reference": "Patient/p1"},
			"vaccineCode": {"coding": [{"code": "140"}]},
			"occurrenceDateTime": "2019-10",
			"status": "completed"
		}`),
	})
	require.NoError(t, err)
	assert.Equal(t, 5, result.Created)

	summary := store.summaries["p1"]
	require.NotNil(t, summary)
	assert.Equal(t, 2, summary.EncounterCount)
	assert.Equal(t, 1, summary.ConditionCount)
	assert.Equal(t, 1, summary.ImmunizationCount)
	assert.Equal(t, 0, summary.ObservationCount)
}

func TestRunFaultIsolation(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)

	result, err := svc.Run(context.Background(), []reader.Source{
		src("bad.json", `{not json`),
		src("patient.json", patientDoc),
		src("encounter.json", encounterDoc),
	})
	require.NoError(t, err, "a bad document never fails the batch")

	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "bad.json")
	assert.Equal(t, 2, result.Created)
	assert.Equal(t, 1, store.count(rows.TypePatient))
	assert.Equal(t, 1, store.count(rows.TypeEncounter))
}

func TestRunUnsupportedAndInvalidDocuments(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)

	result, err := svc.Run(context.Background(), []reader.Source{
		src("device.json", `{"resourceType": "Device", "id": "d1"}`),
		src("no-subject.json", `{"resourceType": "Encounter", "id": "e9"}`),
		src("patient.json", patientDoc),
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 2, result.Skipped)
	assert.Len(t, result.Warnings, 2)
	assert.Equal(t, 1, result.ByType["Device"].Skipped)
	assert.Equal(t, 1, result.ByType["Encounter"].Skipped)
	assert.Equal(t, 0, store.count(rows.TypeEncounter))
}

func TestRunUnresolvedReferenceAndRepair(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)

	// Batch 1: the encounter's patient does not exist anywhere yet. The
	// row loads with a null patient column and a warning.
	first, err := svc.Run(context.Background(), []reader.Source{
		src("encounter.json", encounterDoc),
	})
	require.NoError(t, err)
	require.Len(t, first.Warnings, 1)
	assert.Contains(t, first.Warnings[0], "Patient/p1")

	encounter := store.tables[rows.TypeEncounter]["e1"].(*rows.Encounter)
	assert.Nil(t, encounter.PatientID)
	assert.Nil(t, store.summaries["p1"])

	// Batch 2: the missing patient arrives together with the re-ingested
	// encounter, repairing the link.
	second, err := svc.Run(context.Background(), []reader.Source{
		src("patient.json", patientDoc),
		src("encounter.json", encounterDoc),
	})
	require.NoError(t, err)
	assert.Empty(t, second.Warnings)

	encounter = store.tables[rows.TypeEncounter]["e1"].(*rows.Encounter)
	require.NotNil(t, encounter.PatientID)
	assert.Equal(t, "p1", *encounter.PatientID)

	summary := store.summaries["p1"]
	require.NotNil(t, summary)
	assert.Equal(t, 1, summary.EncounterCount)
}

func TestRunReferenceResolvedFromPriorBatch(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)

	_, err := svc.Run(context.Background(), []reader.Source{src("patient.json", patientDoc)})
	require.NoError(t, err)

	result, err := svc.Run(context.Background(), []reader.Source{src("encounter.json", encounterDoc)})
	require.NoError(t, err)
	assert.Empty(t, result.Warnings)

	encounter := store.tables[rows.TypeEncounter]["e1"].(*rows.Encounter)
	require.NotNil(t, encounter.PatientID)
	assert.Equal(t, "p1", *encounter.PatientID)
}

func TestRunPersistenceFailureRollsBack(t *testing.T) {
	store := newMemStore()
	store.failUpsertID = "e1"
	svc := newTestService(store)

	result, err := svc.Run(context.Background(), []reader.Source{
		src("patient.json", patientDoc),
		src("encounter.json", encounterDoc),
	})
	require.Error(t, err)
	require.NotNil(t, result)
	assert.NotEmpty(t, result.Errors)

	assert.Equal(t, 0, store.count(rows.TypePatient), "rolled back batch leaves no rows behind")
	assert.Equal(t, 0, store.count(rows.TypeEncounter))
	assert.Empty(t, store.summaries)
}

func TestRunSummaryFailureAfterCommit(t *testing.T) {
	store := newMemStore()
	store.failSummary = errors.New("summary recompute unavailable")
	svc := newTestService(store)

	result, err := svc.Run(context.Background(), []reader.Source{
		src("patient.json", patientDoc),
		src("encounter.json", encounterDoc),
	})
	require.Error(t, err)
	require.NotNil(t, result)
	assert.NotEmpty(t, result.Errors)
	assert.Greater(t, result.Duration, time.Duration(0))

	// The commit already happened; only the cache refresh failed.
	assert.Equal(t, 1, store.count(rows.TypePatient))
	assert.Equal(t, 1, store.count(rows.TypeEncounter))
	assert.Empty(t, store.summaries)
}

func TestRunCancelledContext(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Run(ctx, []reader.Source{src("patient.json", patientDoc)})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, store.count(rows.TypePatient))
}

func TestRunEmptyBatch(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)

	result, err := svc.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Created)
	assert.Empty(t, result.Errors)
	assert.NotEmpty(t, result.BatchID)
}
