package transform

import (
	"github.com/SanteonNL/fornax/models/fhir"
	"github.com/SanteonNL/fornax/models/rows"
	"github.com/SanteonNL/fornax/resolver"
)

// transformObservation maps an Observation document. A numeric
// valueQuantity is preferred; a coded valueCodeableConcept fills the
// value_code column when no quantity is present.
func (s *Service) transformObservation(doc fhir.RawResource) (*Result, error) {
	patientID, err := s.requirePatientRef(doc, "subject", "reference")
	if err != nil {
		return nil, err
	}

	row := &rows.Observation{ID: doc.ID()}
	row.Code, row.CodeText = conceptCols(doc.Map("code"))

	if value, ok := doc.Float("valueQuantity", "value"); ok {
		row.ValueQuantity = &value
		row.ValueUnit = strPtr(doc.String("valueQuantity", "unit"))
	} else if coded := fhir.FlattenConcept(doc.Map("valueCodeableConcept")); !coded.IsZero() {
		row.ValueCode = strPtr(coded.Code)
		if row.ValueCode == nil {
			row.ValueCode = strPtr(coded.Text)
		}
	}

	row.EffectiveDate, row.EffectiveDatePrecision = s.date(doc, "effectiveDateTime")
	row.Status = strPtr(doc.String("status"))

	refs := []resolver.Ref{
		patientRef(doc.Type, row.ID, patientID, func(id string) { row.PatientID = &id }),
	}
	if ref, ok := encounterRef(doc, doc.Type, row.ID, func(id string) { row.EncounterID = &id }); ok {
		refs = append(refs, ref)
	}

	return &Result{Row: row, Refs: refs}, nil
}
