package fhir

import "strings"

// ReferenceID extracts the id portion of a FHIR reference string such as
// "Patient/123" or "urn:uuid:123". Returns "" for an empty reference.
func ReferenceID(reference string) string {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return ""
	}
	if strings.HasPrefix(reference, "urn:uuid:") {
		return CleanID(reference)
	}
	if idx := strings.LastIndex(reference, "/"); idx != -1 {
		return CleanID(reference[idx+1:])
	}
	return CleanID(reference)
}
