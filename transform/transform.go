// Package transform maps decoded resource documents onto relational row
// values. Each of the eight supported resource types has its own mapping
// routine; the registry rejects anything outside that set explicitly.
package transform

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/SanteonNL/fornax/models/fhir"
	"github.com/SanteonNL/fornax/models/rows"
	"github.com/SanteonNL/fornax/resolver"
)

// UnsupportedResourceTypeError marks a document whose discriminator is
// outside the supported set. The document is skipped and counted, never
// fatal.
type UnsupportedResourceTypeError struct {
	ResourceType string
	Source       string
}

func (e *UnsupportedResourceTypeError) Error() string {
	return fmt.Sprintf("unsupported resource type %q in document %s", e.ResourceType, e.Source)
}

// MissingRequiredFieldError marks a document lacking a field the schema
// cannot do without. The single document fails; the batch continues.
type MissingRequiredFieldError struct {
	ResourceType string
	ResourceID   string
	Field        string
	Source       string
}

func (e *MissingRequiredFieldError) Error() string {
	return fmt.Sprintf("%s resource %q in document %s is missing required field %s",
		e.ResourceType, e.ResourceID, e.Source, e.Field)
}

// Result is one transformed document: the row value plus its outgoing
// references, left unresolved for the resolver's second pass.
type Result struct {
	Row  rows.Row
	Refs []resolver.Ref
}

type transformFunc func(*Service, fhir.RawResource) (*Result, error)

// registry maps the lower-cased resourceType discriminator to its
// mapping routine, covering exactly the eight supported types.
var registry = map[string]transformFunc{
	"patient":           (*Service).transformPatient,
	"encounter":         (*Service).transformEncounter,
	"condition":         (*Service).transformCondition,
	"observation":       (*Service).transformObservation,
	"immunization":      (*Service).transformImmunization,
	"careplan":          (*Service).transformCarePlan,
	"medicationrequest": (*Service).transformMedicationRequest,
	"procedure":         (*Service).transformProcedure,
}

// Supported reports whether a discriminator has a mapping routine.
func Supported(resourceType string) bool {
	_, ok := registry[strings.ToLower(resourceType)]
	return ok
}

// Service turns raw resources into rows.
type Service struct {
	log zerolog.Logger
}

// NewService creates a new transform service.
func NewService(log zerolog.Logger) *Service {
	return &Service{log: log}
}

// Transform classifies the document by its discriminator and dispatches
// it to the matching mapping routine.
func (s *Service) Transform(doc fhir.RawResource) (*Result, error) {
	fn, ok := registry[strings.ToLower(doc.Type)]
	if !ok {
		return nil, &UnsupportedResourceTypeError{ResourceType: doc.Type, Source: doc.Source}
	}

	if doc.ID() == "" {
		return nil, &MissingRequiredFieldError{
			ResourceType: doc.Type,
			Field:        "id",
			Source:       doc.Source,
		}
	}

	return fn(s, doc)
}

// requirePatientRef extracts the patient reference id from the given
// path, failing the document when it is absent. Every non-Patient type
// must name its patient.
func (s *Service) requirePatientRef(doc fhir.RawResource, path ...string) (string, error) {
	refID := fhir.ReferenceID(doc.String(path...))
	if refID == "" {
		return "", &MissingRequiredFieldError{
			ResourceType: doc.Type,
			ResourceID:   doc.ID(),
			Field:        strings.Join(path, "."),
			Source:       doc.Source,
		}
	}
	return refID, nil
}

// patientRef builds the deferred reference descriptor that the resolver
// will assign into the row's patient column.
func patientRef(sourceType, sourceID, targetID string, assign func(id string)) resolver.Ref {
	return resolver.Ref{
		SourceType: sourceType,
		SourceID:   sourceID,
		TargetType: rows.TypePatient,
		TargetID:   targetID,
		Assign:     assign,
	}
}

// encounterRef builds an optional encounter reference descriptor, or
// returns false when the document names no encounter.
func encounterRef(doc fhir.RawResource, sourceType, sourceID string, assign func(id string)) (resolver.Ref, bool) {
	refID := fhir.ReferenceID(doc.String("encounter", "reference"))
	if refID == "" {
		return resolver.Ref{}, false
	}
	return resolver.Ref{
		SourceType: sourceType,
		SourceID:   sourceID,
		TargetType: rows.TypeEncounter,
		TargetID:   refID,
		Assign:     assign,
	}, true
}

// date parses an optional date field into its column pair. An invalid
// date is logged and treated as absent, matching the source system's
// behavior of warning and continuing.
func (s *Service) date(doc fhir.RawResource, path ...string) (*time.Time, *string) {
	raw := doc.String(path...)
	if raw == "" {
		return nil, nil
	}

	d, err := fhir.ParseDate(raw)
	if err != nil {
		s.log.Warn().
			Str("resource_type", doc.Type).
			Str("resource_id", doc.ID()).
			Str("field", strings.Join(path, ".")).
			Str("value", raw).
			Msg("Date parsing failed")
		return nil, nil
	}

	precision := string(d.Precision)
	return &d.Time, &precision
}

// timestamp parses an optional date field, discarding the precision tag.
// Used for period boundaries stored as plain timestamps.
func (s *Service) timestamp(doc fhir.RawResource, path ...string) *time.Time {
	t, _ := s.date(doc, path...)
	return t
}

// strPtr returns nil for the empty string, a pointer otherwise. Missing
// optional fields become null columns, never sentinel strings.
func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// conceptCols flattens a coded concept into its (code, text) column pair.
func conceptCols(concept map[string]interface{}) (*string, *string) {
	flat := fhir.FlattenConcept(concept)
	return strPtr(flat.Code), strPtr(flat.Text)
}
