// Package rows defines the relational schema the ingestion engine loads
// into. Every struct maps one resource type to one table; the db tags
// drive the sqlx upserts and the gorm tags drive schema migration.
package rows

import "time"

// Resource type discriminators as they appear in source documents.
const (
	TypePatient           = "Patient"
	TypeEncounter         = "Encounter"
	TypeCondition         = "Condition"
	TypeObservation       = "Observation"
	TypeImmunization      = "Immunization"
	TypeCarePlan          = "CarePlan"
	TypeMedicationRequest = "MedicationRequest"
	TypeProcedure         = "Procedure"
)

// Row is implemented by every persistable row value.
type Row interface {
	ResourceType() string
	RowID() string
}

// Patient is the root entity; all other rows reference it.
type Patient struct {
	ID                 string     `db:"id" gorm:"column:id;primary_key"`
	FamilyName         *string    `db:"family_name" gorm:"column:family_name"`
	GivenName          *string    `db:"given_name" gorm:"column:given_name"`
	BirthDate          *time.Time `db:"birth_date" gorm:"column:birth_date;type:date"`
	BirthDatePrecision *string    `db:"birth_date_precision" gorm:"column:birth_date_precision"`
	Gender             *string    `db:"gender" gorm:"column:gender"`
	Deceased           bool       `db:"deceased" gorm:"column:deceased"`
	DeceasedDateTime   *time.Time `db:"deceased_datetime" gorm:"column:deceased_datetime"`
}

func (Patient) TableName() string    { return "patients" }
func (Patient) ResourceType() string { return TypePatient }
func (p *Patient) RowID() string     { return p.ID }

type Encounter struct {
	ID             string     `db:"id" gorm:"column:id;primary_key"`
	PatientID      *string    `db:"patient_id" gorm:"column:patient_id;index"`
	Start          *time.Time `db:"encounter_start" gorm:"column:encounter_start"`
	StartPrecision *string    `db:"encounter_start_precision" gorm:"column:encounter_start_precision"`
	End            *time.Time `db:"encounter_end" gorm:"column:encounter_end"`
	Status         *string    `db:"status" gorm:"column:status"`
	ClassCode      *string    `db:"class_code" gorm:"column:class_code"`
	ClassText      *string    `db:"class_text" gorm:"column:class_text"`
}

func (Encounter) TableName() string    { return "encounters" }
func (Encounter) ResourceType() string { return TypeEncounter }
func (e *Encounter) RowID() string     { return e.ID }

type Condition struct {
	ID                 string     `db:"id" gorm:"column:id;primary_key"`
	PatientID          *string    `db:"patient_id" gorm:"column:patient_id;index"`
	EncounterID        *string    `db:"encounter_id" gorm:"column:encounter_id"`
	Code               *string    `db:"code" gorm:"column:code"`
	CodeText           *string    `db:"code_text" gorm:"column:code_text"`
	ClinicalStatus     *string    `db:"clinical_status" gorm:"column:clinical_status"`
	CategoryCode       *string    `db:"category_code" gorm:"column:category_code"`
	OnsetDate          *time.Time `db:"onset_date" gorm:"column:onset_date;type:date"`
	OnsetDatePrecision *string    `db:"onset_date_precision" gorm:"column:onset_date_precision"`
}

func (Condition) TableName() string    { return "conditions" }
func (Condition) ResourceType() string { return TypeCondition }
func (c *Condition) RowID() string     { return c.ID }

type Observation struct {
	ID                     string     `db:"id" gorm:"column:id;primary_key"`
	PatientID              *string    `db:"patient_id" gorm:"column:patient_id;index"`
	EncounterID            *string    `db:"encounter_id" gorm:"column:encounter_id"`
	Code                   *string    `db:"code" gorm:"column:code"`
	CodeText               *string    `db:"code_text" gorm:"column:code_text"`
	ValueQuantity          *float64   `db:"value_quantity" gorm:"column:value_quantity"`
	ValueCode              *string    `db:"value_code" gorm:"column:value_code"`
	ValueUnit              *string    `db:"value_unit" gorm:"column:value_unit"`
	EffectiveDate          *time.Time `db:"effective_date" gorm:"column:effective_date"`
	EffectiveDatePrecision *string    `db:"effective_date_precision" gorm:"column:effective_date_precision"`
	Status                 *string    `db:"status" gorm:"column:status"`
}

func (Observation) TableName() string    { return "observations" }
func (Observation) ResourceType() string { return TypeObservation }
func (o *Observation) RowID() string     { return o.ID }

type Immunization struct {
	ID                      string     `db:"id" gorm:"column:id;primary_key"`
	PatientID               *string    `db:"patient_id" gorm:"column:patient_id;index"`
	VaccineCode             *string    `db:"vaccine_code" gorm:"column:vaccine_code"`
	VaccineText             *string    `db:"vaccine_text" gorm:"column:vaccine_text"`
	OccurrenceDate          *time.Time `db:"occurrence_date" gorm:"column:occurrence_date"`
	OccurrenceDatePrecision *string    `db:"occurrence_date_precision" gorm:"column:occurrence_date_precision"`
	Status                  *string    `db:"status" gorm:"column:status"`
}

func (Immunization) TableName() string    { return "immunizations" }
func (Immunization) ResourceType() string { return TypeImmunization }
func (i *Immunization) RowID() string     { return i.ID }

type CarePlan struct {
	ID           string     `db:"id" gorm:"column:id;primary_key"`
	PatientID    *string    `db:"patient_id" gorm:"column:patient_id;index"`
	CategoryCode *string    `db:"category_code" gorm:"column:category_code"`
	CategoryText *string    `db:"category_text" gorm:"column:category_text"`
	Status       *string    `db:"status" gorm:"column:status"`
	Intent       *string    `db:"intent" gorm:"column:intent"`
	Start        *time.Time `db:"plan_start" gorm:"column:plan_start"`
	End          *time.Time `db:"plan_end" gorm:"column:plan_end"`
}

func (CarePlan) TableName() string    { return "careplans" }
func (CarePlan) ResourceType() string { return TypeCarePlan }
func (c *CarePlan) RowID() string     { return c.ID }

type MedicationRequest struct {
	ID                  string     `db:"id" gorm:"column:id;primary_key"`
	PatientID           *string    `db:"patient_id" gorm:"column:patient_id;index"`
	EncounterID         *string    `db:"encounter_id" gorm:"column:encounter_id"`
	MedicationCode      *string    `db:"medication_code" gorm:"column:medication_code"`
	MedicationText      *string    `db:"medication_text" gorm:"column:medication_text"`
	Status              *string    `db:"status" gorm:"column:status"`
	Intent              *string    `db:"intent" gorm:"column:intent"`
	AuthoredOn          *time.Time `db:"authored_on" gorm:"column:authored_on"`
	AuthoredOnPrecision *string    `db:"authored_on_precision" gorm:"column:authored_on_precision"`
}

func (MedicationRequest) TableName() string    { return "medication_requests" }
func (MedicationRequest) ResourceType() string { return TypeMedicationRequest }
func (m *MedicationRequest) RowID() string     { return m.ID }

type Procedure struct {
	ID             string     `db:"id" gorm:"column:id;primary_key"`
	PatientID      *string    `db:"patient_id" gorm:"column:patient_id;index"`
	EncounterID    *string    `db:"encounter_id" gorm:"column:encounter_id"`
	Code           *string    `db:"code" gorm:"column:code"`
	CodeText       *string    `db:"code_text" gorm:"column:code_text"`
	PerformedStart *time.Time `db:"performed_start" gorm:"column:performed_start"`
	PerformedEnd   *time.Time `db:"performed_end" gorm:"column:performed_end"`
	Status         *string    `db:"status" gorm:"column:status"`
}

func (Procedure) TableName() string    { return "procedures" }
func (Procedure) ResourceType() string { return TypeProcedure }
func (p *Procedure) RowID() string     { return p.ID }

// PatientSummary is the derived per-patient counts cache. It is never a
// source of truth: it is recomputed from the base tables for every
// patient touched by a committed batch.
type PatientSummary struct {
	PatientID               string `db:"patient_id" gorm:"column:patient_id;primary_key"`
	EncounterCount          int    `db:"encounter_count" gorm:"column:encounter_count"`
	ConditionCount          int    `db:"condition_count" gorm:"column:condition_count"`
	ObservationCount        int    `db:"observation_count" gorm:"column:observation_count"`
	ImmunizationCount       int    `db:"immunization_count" gorm:"column:immunization_count"`
	CarePlanCount           int    `db:"careplan_count" gorm:"column:careplan_count"`
	MedicationRequestCount  int    `db:"medication_request_count" gorm:"column:medication_request_count"`
	ProcedureCount          int    `db:"procedure_count" gorm:"column:procedure_count"`
}

func (PatientSummary) TableName() string { return "patient_summaries" }
