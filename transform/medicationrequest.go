package transform

import (
	"github.com/SanteonNL/fornax/models/fhir"
	"github.com/SanteonNL/fornax/models/rows"
	"github.com/SanteonNL/fornax/resolver"
)

func (s *Service) transformMedicationRequest(doc fhir.RawResource) (*Result, error) {
	patientID, err := s.requirePatientRef(doc, "subject", "reference")
	if err != nil {
		return nil, err
	}

	row := &rows.MedicationRequest{ID: doc.ID()}
	row.MedicationCode, row.MedicationText = conceptCols(doc.Map("medicationCodeableConcept"))
	row.Status = strPtr(doc.String("status"))
	row.Intent = strPtr(doc.String("intent"))
	row.AuthoredOn, row.AuthoredOnPrecision = s.date(doc, "authoredOn")

	refs := []resolver.Ref{
		patientRef(doc.Type, row.ID, patientID, func(id string) { row.PatientID = &id }),
	}
	if ref, ok := encounterRef(doc, doc.Type, row.ID, func(id string) { row.EncounterID = &id }); ok {
		refs = append(refs, ref)
	}

	return &Result{Row: row, Refs: refs}, nil
}
