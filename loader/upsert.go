package loader

import (
	"fmt"
	"strings"

	"github.com/SanteonNL/fornax/models/rows"
)

// upsertColumns lists the mapped columns per table, excluding the id
// key. Only these are overwritten on conflict; derived columns stay
// untouched.
var upsertColumns = map[string][]string{
	rows.TypePatient: {
		"family_name", "given_name", "birth_date", "birth_date_precision",
		"gender", "deceased", "deceased_datetime",
	},
	rows.TypeEncounter: {
		"patient_id", "encounter_start", "encounter_start_precision",
		"encounter_end", "status", "class_code", "class_text",
	},
	rows.TypeCondition: {
		"patient_id", "encounter_id", "code", "code_text",
		"clinical_status", "category_code", "onset_date", "onset_date_precision",
	},
	rows.TypeObservation: {
		"patient_id", "encounter_id", "code", "code_text",
		"value_quantity", "value_code", "value_unit",
		"effective_date", "effective_date_precision", "status",
	},
	rows.TypeImmunization: {
		"patient_id", "vaccine_code", "vaccine_text",
		"occurrence_date", "occurrence_date_precision", "status",
	},
	rows.TypeCarePlan: {
		"patient_id", "category_code", "category_text", "status", "intent",
		"plan_start", "plan_end",
	},
	rows.TypeMedicationRequest: {
		"patient_id", "encounter_id", "medication_code", "medication_text",
		"status", "intent", "authored_on", "authored_on_precision",
	},
	rows.TypeProcedure: {
		"patient_id", "encounter_id", "code", "code_text",
		"performed_start", "performed_end", "status",
	},
}

// upsertStatements holds the prepared named statement text per resource
// type, built once at init.
var upsertStatements = buildUpsertStatements()

func buildUpsertStatements() map[string]string {
	statements := make(map[string]string, len(upsertColumns))
	for resourceType, columns := range upsertColumns {
		statements[resourceType] = buildUpsert(tableNames[resourceType], columns)
	}
	return statements
}

// buildUpsert renders the insert-or-update statement for one table. The
// xmax = 0 check distinguishes a fresh insert from an update of an
// existing row.
func buildUpsert(table string, columns []string) string {
	all := append([]string{"id"}, columns...)

	placeholders := make([]string, len(all))
	for i, col := range all {
		placeholders[i] = ":" + col
	}

	assignments := make([]string, len(columns))
	for i, col := range columns {
		assignments[i] = fmt.Sprintf("%s = EXCLUDED.%s", col, col)
	}

	return fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (id) DO UPDATE SET %s RETURNING (xmax = 0) AS inserted",
		table,
		strings.Join(all, ", "),
		strings.Join(placeholders, ", "),
		strings.Join(assignments, ", "),
	)
}
