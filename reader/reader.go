// Package reader enumerates input documents and decodes them into raw
// resource values. A single source may hold one resource object or a
// bundle of many; a malformed source is reported per document and never
// aborts the rest of the batch.
package reader

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/SanteonNL/fornax/models/fhir"
)

// Source is a named, restartable byte source: a file on disk or an
// uploaded blob held in memory.
type Source struct {
	Name string
	Open func() (io.ReadCloser, error)
}

// FileSource wraps a file path as a Source.
func FileSource(path string) Source {
	return Source{
		Name: filepath.Base(path),
		Open: func() (io.ReadCloser, error) {
			return os.Open(path)
		},
	}
}

// BytesSource wraps an in-memory blob (e.g. an upload) as a Source.
func BytesSource(name string, data []byte) Source {
	return Source{
		Name: name,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

// DirectorySources lists every .json file in dir as a Source.
func DirectorySources(dir string) ([]Source, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read input directory %s: %w", dir, err)
	}

	var sources []Source
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		sources = append(sources, FileSource(filepath.Join(dir, entry.Name())))
	}
	return sources, nil
}

// DecodeError marks one malformed source document. The batch continues
// past it; the error is collected into the batch result.
type DecodeError struct {
	Source string
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode document %s: %v", e.Source, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Service decodes sources into raw resources.
type Service struct {
	log zerolog.Logger
}

// NewService creates a new reader service.
func NewService(log zerolog.Logger) *Service {
	return &Service{log: log}
}

// Read decodes every source, yielding one RawResource per resource
// instance found. Decode failures are returned alongside the successful
// resources, one error per bad source.
func (s *Service) Read(sources []Source) ([]fhir.RawResource, []error) {
	var resources []fhir.RawResource
	var errs []error

	for _, source := range sources {
		decoded, err := s.readSource(source)
		if err != nil {
			errs = append(errs, &DecodeError{Source: source.Name, Err: err})
			s.log.Warn().Err(err).Str("source", source.Name).Msg("Skipping malformed document")
			continue
		}
		resources = append(resources, decoded...)
	}

	s.log.Info().
		Int("sources", len(sources)).
		Int("resources", len(resources)).
		Int("decode_errors", len(errs)).
		Msg("Completed reading documents")

	return resources, errs
}

func (s *Service) readSource(source Source) ([]fhir.RawResource, error) {
	rc, err := source.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, err
	}

	var doc map[string]interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	// A bundle carries its resources under entry[].resource; anything
	// else is treated as a single resource object.
	if entries, ok := doc["entry"].([]interface{}); ok {
		return s.readBundle(source.Name, entries), nil
	}

	return []fhir.RawResource{newRawResource(source.Name, doc)}, nil
}

func (s *Service) readBundle(sourceName string, entries []interface{}) []fhir.RawResource {
	resources := make([]fhir.RawResource, 0, len(entries))
	for _, entry := range entries {
		entryMap, ok := entry.(map[string]interface{})
		if !ok {
			continue
		}
		resource, ok := entryMap["resource"].(map[string]interface{})
		if !ok {
			continue
		}
		resources = append(resources, newRawResource(sourceName, resource))
	}
	return resources
}

func newRawResource(sourceName string, data map[string]interface{}) fhir.RawResource {
	resourceType, _ := data["resourceType"].(string)
	return fhir.RawResource{
		Source: sourceName,
		Type:   resourceType,
		Data:   data,
	}
}
