package transform

import (
	"github.com/SanteonNL/fornax/models/fhir"
	"github.com/SanteonNL/fornax/models/rows"
	"github.com/SanteonNL/fornax/resolver"
)

// transformProcedure maps a Procedure document. The performed time may
// arrive as a period or as a single dateTime; a single dateTime becomes
// the period start.
func (s *Service) transformProcedure(doc fhir.RawResource) (*Result, error) {
	patientID, err := s.requirePatientRef(doc, "subject", "reference")
	if err != nil {
		return nil, err
	}

	row := &rows.Procedure{ID: doc.ID()}
	row.Code, row.CodeText = conceptCols(doc.Map("code"))
	row.PerformedStart = s.timestamp(doc, "performedPeriod", "start")
	row.PerformedEnd = s.timestamp(doc, "performedPeriod", "end")
	if row.PerformedStart == nil {
		row.PerformedStart = s.timestamp(doc, "performedDateTime")
	}
	row.Status = strPtr(doc.String("status"))

	refs := []resolver.Ref{
		patientRef(doc.Type, row.ID, patientID, func(id string) { row.PatientID = &id }),
	}
	if ref, ok := encounterRef(doc, doc.Type, row.ID, func(id string) { row.EncounterID = &id }); ok {
		refs = append(refs, ref)
	}

	return &Result{Row: row, Refs: refs}, nil
}
