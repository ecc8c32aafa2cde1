package fhir

import (
	"strings"
)

// RawResource is one decoded resource document: the generic JSON value
// plus the source it came from and its resourceType discriminator.
type RawResource struct {
	Source string
	Type   string
	Data   map[string]interface{}
}

// ID returns the cleaned resource id, or "" when absent.
func (r RawResource) ID() string {
	return CleanID(r.String("id"))
}

// String returns the string value at the given nested path, or "".
func (r RawResource) String(path ...string) string {
	v := r.value(path)
	s, _ := v.(string)
	return s
}

// Float returns the numeric value at the given nested path.
func (r RawResource) Float(path ...string) (float64, bool) {
	v := r.value(path)
	f, ok := v.(float64)
	return f, ok
}

// Bool returns the boolean value at the given nested path.
func (r RawResource) Bool(path ...string) (bool, bool) {
	v := r.value(path)
	b, ok := v.(bool)
	return b, ok
}

// Map returns the object value at the given nested path, or nil.
func (r RawResource) Map(path ...string) map[string]interface{} {
	v := r.value(path)
	m, _ := v.(map[string]interface{})
	return m
}

// Slice returns the array value at the given nested path, or nil.
func (r RawResource) Slice(path ...string) []interface{} {
	v := r.value(path)
	s, _ := v.([]interface{})
	return s
}

// FirstMap returns the first object of the array at the given path, or
// nil when the array is absent or empty.
func (r RawResource) FirstMap(path ...string) map[string]interface{} {
	items := r.Slice(path...)
	if len(items) == 0 {
		return nil
	}
	m, _ := items[0].(map[string]interface{})
	return m
}

func (r RawResource) value(path []string) interface{} {
	var current interface{} = r.Data
	for _, key := range path {
		m, ok := current.(map[string]interface{})
		if !ok {
			return nil
		}
		current = m[key]
	}
	return current
}

// CleanID standardizes a resource id by stripping any urn:uuid: prefix
// and surrounding whitespace.
func CleanID(id string) string {
	if idx := strings.LastIndex(id, "urn:uuid:"); idx != -1 {
		id = id[idx+len("urn:uuid:"):]
	}
	return strings.TrimSpace(id)
}
