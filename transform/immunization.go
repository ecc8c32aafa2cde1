package transform

import (
	"github.com/SanteonNL/fornax/models/fhir"
	"github.com/SanteonNL/fornax/models/rows"
	"github.com/SanteonNL/fornax/resolver"
)

// transformImmunization maps an Immunization document. Unlike the other
// clinical types, Immunization names its patient under the patient field
// rather than subject.
func (s *Service) transformImmunization(doc fhir.RawResource) (*Result, error) {
	patientID, err := s.requirePatientRef(doc, "patient", "reference")
	if err != nil {
		return nil, err
	}

	row := &rows.Immunization{ID: doc.ID()}
	row.VaccineCode, row.VaccineText = conceptCols(doc.Map("vaccineCode"))
	row.OccurrenceDate, row.OccurrenceDatePrecision = s.date(doc, "occurrenceDateTime")
	row.Status = strPtr(doc.String("status"))

	refs := []resolver.Ref{
		patientRef(doc.Type, row.ID, patientID, func(id string) { row.PatientID = &id }),
	}

	return &Result{Row: row, Refs: refs}, nil
}
