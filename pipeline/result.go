package pipeline

import (
	"time"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// TypeCounts holds the per-resource-type outcome counts of one batch.
type TypeCounts struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
}

// BatchResult is the structured summary returned for every batch. A
// batch never raises an opaque fault for a single bad document: decode
// failures land in Errors, skipped documents and unresolved references
// in Warnings, and only a persistence failure marks the whole batch
// failed.
type BatchResult struct {
	BatchID  string                `json:"batch_id"`
	Created  int                   `json:"created"`
	Updated  int                   `json:"updated"`
	Skipped  int                   `json:"skipped"`
	ByType   map[string]TypeCounts `json:"by_type"`
	Errors   []string              `json:"errors,omitempty"`
	Warnings []string              `json:"warnings,omitempty"`
	Duration time.Duration         `json:"duration_ns"`
}

func newBatchResult(batchID string) *BatchResult {
	return &BatchResult{
		BatchID: batchID,
		ByType:  make(map[string]TypeCounts),
	}
}

func (r *BatchResult) addCreated(resourceType string) {
	counts := r.ByType[resourceType]
	counts.Created++
	r.ByType[resourceType] = counts
	r.Created++
}

func (r *BatchResult) addUpdated(resourceType string) {
	counts := r.ByType[resourceType]
	counts.Updated++
	r.ByType[resourceType] = counts
	r.Updated++
}

func (r *BatchResult) addSkipped(resourceType string) {
	if resourceType == "" {
		resourceType = "unknown"
	}
	counts := r.ByType[resourceType]
	counts.Skipped++
	r.ByType[resourceType] = counts
	r.Skipped++
}

func (r *BatchResult) addError(err error) {
	r.Errors = append(r.Errors, err.Error())
}

func (r *BatchResult) addWarning(err error) {
	r.Warnings = append(r.Warnings, err.Error())
}

// Types returns the resource types seen in this batch in stable order.
func (r *BatchResult) Types() []string {
	types := maps.Keys(r.ByType)
	slices.Sort(types)
	return types
}
