package transform

import (
	"github.com/SanteonNL/fornax/models/fhir"
	"github.com/SanteonNL/fornax/models/rows"
)

// transformPatient maps a Patient document. Only the first name entry is
// kept; a patient is flagged deceased when either the boolean or the
// datetime variant is present.
func (s *Service) transformPatient(doc fhir.RawResource) (*Result, error) {
	row := &rows.Patient{ID: doc.ID()}

	if name := doc.FirstMap("name"); name != nil {
		if family, ok := name["family"].(string); ok {
			row.FamilyName = strPtr(family)
		}
		if given, ok := name["given"].([]interface{}); ok && len(given) > 0 {
			if first, ok := given[0].(string); ok {
				row.GivenName = strPtr(first)
			}
		}
	}

	row.BirthDate, row.BirthDatePrecision = s.date(doc, "birthDate")
	row.Gender = strPtr(doc.String("gender"))

	if deceased, ok := doc.Bool("deceasedBoolean"); ok {
		row.Deceased = deceased
	}
	if t, _ := s.date(doc, "deceasedDateTime"); t != nil {
		row.Deceased = true
		row.DeceasedDateTime = t
	}

	return &Result{Row: row}, nil
}
