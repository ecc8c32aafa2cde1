package transform

import (
	"github.com/SanteonNL/fornax/models/fhir"
	"github.com/SanteonNL/fornax/models/rows"
	"github.com/SanteonNL/fornax/resolver"
)

func (s *Service) transformCondition(doc fhir.RawResource) (*Result, error) {
	patientID, err := s.requirePatientRef(doc, "subject", "reference")
	if err != nil {
		return nil, err
	}

	row := &rows.Condition{ID: doc.ID()}
	row.Code, row.CodeText = conceptCols(doc.Map("code"))

	clinicalStatus := fhir.FlattenConcept(doc.Map("clinicalStatus"))
	row.ClinicalStatus = strPtr(clinicalStatus.Code)

	category := fhir.FlattenConcept(doc.FirstMap("category"))
	row.CategoryCode = strPtr(category.Code)

	row.OnsetDate, row.OnsetDatePrecision = s.date(doc, "onsetDateTime")

	refs := []resolver.Ref{
		patientRef(doc.Type, row.ID, patientID, func(id string) { row.PatientID = &id }),
	}
	if ref, ok := encounterRef(doc, doc.Type, row.ID, func(id string) { row.EncounterID = &id }); ok {
		refs = append(refs, ref)
	}

	return &Result{Row: row, Refs: refs}, nil
}
