package fhir

// Concept is a flattened CodeableConcept: one code plus its display text.
type Concept struct {
	Code string
	Text string
}

// IsZero reports whether nothing usable was present in the concept.
func (c Concept) IsZero() bool {
	return c.Code == "" && c.Text == ""
}

// FlattenConcept reduces a CodeableConcept object to a (code, text) pair.
// When multiple codings are present the first is taken as canonical and
// the rest are discarded. This is a deliberate simplification carried
// over from the source system, not a data-loss bug: downstream tables
// hold exactly one code per concept.
func FlattenConcept(concept map[string]interface{}) Concept {
	if concept == nil {
		return Concept{}
	}

	flat := Concept{}
	if text, ok := concept["text"].(string); ok {
		flat.Text = text
	}

	codings, _ := concept["coding"].([]interface{})
	if len(codings) > 0 {
		if first, ok := codings[0].(map[string]interface{}); ok {
			if code, ok := first["code"].(string); ok {
				flat.Code = code
			}
			// Prefer the concept-level text; fall back to the
			// coding's display when the concept has none.
			if flat.Text == "" {
				if display, ok := first["display"].(string); ok {
					flat.Text = display
				}
			}
		}
	}

	return flat
}
