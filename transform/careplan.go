package transform

import (
	"github.com/SanteonNL/fornax/models/fhir"
	"github.com/SanteonNL/fornax/models/rows"
	"github.com/SanteonNL/fornax/resolver"
)

func (s *Service) transformCarePlan(doc fhir.RawResource) (*Result, error) {
	patientID, err := s.requirePatientRef(doc, "subject", "reference")
	if err != nil {
		return nil, err
	}

	row := &rows.CarePlan{ID: doc.ID()}
	row.CategoryCode, row.CategoryText = conceptCols(doc.FirstMap("category"))
	row.Status = strPtr(doc.String("status"))
	row.Intent = strPtr(doc.String("intent"))
	row.Start = s.timestamp(doc, "period", "start")
	row.End = s.timestamp(doc, "period", "end")

	refs := []resolver.Ref{
		patientRef(doc.Type, row.ID, patientID, func(id string) { row.PatientID = &id }),
	}

	return &Result{Row: row, Refs: refs}, nil
}
