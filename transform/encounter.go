package transform

import (
	"github.com/SanteonNL/fornax/models/fhir"
	"github.com/SanteonNL/fornax/models/rows"
	"github.com/SanteonNL/fornax/resolver"
)

// transformEncounter maps an Encounter document. The class is a bare
// Coding in R4; when it is absent the first type concept is used
// instead.
func (s *Service) transformEncounter(doc fhir.RawResource) (*Result, error) {
	patientID, err := s.requirePatientRef(doc, "subject", "reference")
	if err != nil {
		return nil, err
	}

	row := &rows.Encounter{ID: doc.ID()}
	row.Start, row.StartPrecision = s.date(doc, "period", "start")
	row.End = s.timestamp(doc, "period", "end")
	row.Status = strPtr(doc.String("status"))

	if row.Start != nil && row.End != nil && row.Start.After(*row.End) {
		s.log.Warn().
			Str("encounter_id", row.ID).
			Time("start", *row.Start).
			Time("end", *row.End).
			Msg("Encounter period start is after end")
	}

	row.ClassCode = strPtr(doc.String("class", "code"))
	row.ClassText = strPtr(doc.String("class", "display"))
	if row.ClassCode == nil && row.ClassText == nil {
		row.ClassCode, row.ClassText = conceptCols(doc.FirstMap("type"))
	}

	refs := []resolver.Ref{
		patientRef(doc.Type, row.ID, patientID, func(id string) { row.PatientID = &id }),
	}

	return &Result{Row: row, Refs: refs}, nil
}
