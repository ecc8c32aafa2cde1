// Package pipeline orchestrates one ingestion batch: read, classify,
// transform, resolve references, load, and maintain the per-patient
// summary cache. Documents are transformed concurrently; resolution and
// loading run sequentially inside a single transaction so two documents
// targeting the same id can never race a write.
package pipeline

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/SanteonNL/fornax/metrics"
	"github.com/SanteonNL/fornax/models/fhir"
	"github.com/SanteonNL/fornax/models/rows"
	"github.com/SanteonNL/fornax/reader"
	"github.com/SanteonNL/fornax/resolver"
	"github.com/SanteonNL/fornax/transform"
)

func defaultWorkers() int {
	return runtime.NumCPU()
}

// Service runs ingestion batches against a store.
type Service struct {
	reader      *reader.Service
	transformer *transform.Service
	store       Store
	log         zerolog.Logger
	workers     int
}

// NewService creates a pipeline with a bounded transform worker pool.
// workers <= 0 selects one worker per CPU.
func NewService(store Store, log zerolog.Logger, workers int) *Service {
	if workers <= 0 {
		workers = defaultWorkers()
	}
	return &Service{
		reader:      reader.NewService(log),
		transformer: transform.NewService(log),
		store:       store,
		log:         log,
		workers:     workers,
	}
}

// Run ingests one batch of documents. The returned BatchResult is always
// populated; the error is non-nil only when the whole batch failed
// (persistence failure or cancellation) and was rolled back.
func (s *Service) Run(ctx context.Context, sources []reader.Source) (*BatchResult, error) {
	start := time.Now()
	result := newBatchResult(uuid.New().String())

	s.log.Info().
		Str("batch_id", result.BatchID).
		Int("sources", len(sources)).
		Int("workers", s.workers).
		Msg("Starting ingestion batch")

	docs, decodeErrs := s.reader.Read(sources)
	for _, err := range decodeErrs {
		result.addError(err)
	}

	results := s.transformAll(ctx, docs, result)
	if err := ctx.Err(); err != nil {
		return s.abandon(result, start, nil, err)
	}

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return s.abandon(result, start, nil, err)
	}

	res := resolver.New(s.log)
	touched := make(map[string]struct{})

	// Pass 1: register every row in the arena and load the patients,
	// since every other type depends on a patient. Input bundles are
	// not guaranteed to list patients before their encounters.
	for _, tr := range results {
		if tr == nil {
			continue
		}
		res.Register(tr.Row.ResourceType(), tr.Row.RowID())
		res.Defer(tr.Refs...)

		for _, ref := range tr.Refs {
			if ref.TargetType == rows.TypePatient {
				touched[ref.TargetID] = struct{}{}
			}
		}

		if tr.Row.ResourceType() == rows.TypePatient {
			touched[tr.Row.RowID()] = struct{}{}
			if err := s.load(ctx, tx, tr.Row, result); err != nil {
				return s.abandon(result, start, tx, err)
			}
		}
	}

	// Pass 2: resolve pending references against the arena, then the
	// persistent store. Unresolved references are warnings; the rows
	// still load with a null reference, repairable by a later batch.
	warnings, err := res.Resolve(ctx, tx)
	if err != nil {
		return s.abandon(result, start, tx, err)
	}
	for _, warning := range warnings {
		result.addWarning(warning)
	}

	for _, tr := range results {
		if tr == nil || tr.Row.ResourceType() == rows.TypePatient {
			continue
		}
		// Cancellation is honored between documents, never mid-write.
		if err := ctx.Err(); err != nil {
			return s.abandon(result, start, tx, err)
		}
		if err := s.load(ctx, tx, tr.Row, result); err != nil {
			return s.abandon(result, start, tx, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return s.abandon(result, start, tx, err)
	}

	// The summary cache is recomputed for exactly the patients this
	// batch touched before the batch is reported complete.
	patientIDs := make([]string, 0, len(touched))
	for id := range touched {
		patientIDs = append(patientIDs, id)
	}
	if err := s.store.RecomputeSummaries(ctx, patientIDs); err != nil {
		// The row data is already committed; only the cache refresh
		// failed, so the batch gets its own terminal status.
		result.addError(err)
		result.Duration = time.Since(start)
		metrics.RecordBatch("summary_failed", result.Duration)
		s.log.Error().Err(err).
			Str("batch_id", result.BatchID).
			Msg("Summary recompute failed after commit")
		return result, err
	}

	result.Duration = time.Since(start)
	s.recordMetrics(result, "committed")
	s.logCompletion(result)
	return result, nil
}

// transformAll maps documents to rows on the worker pool. The results
// slice preserves input order so the load phase stays deterministic when
// two documents in one batch target the same id.
func (s *Service) transformAll(ctx context.Context, docs []fhir.RawResource, result *BatchResult) []*transform.Result {
	results := make([]*transform.Result, len(docs))
	issues := make([]error, len(docs))

	jobs := make(chan int)
	go func() {
		defer close(jobs)
		for i := range docs {
			select {
			case jobs <- i:
			case <-ctx.Done():
				return
			}
		}
	}()

	var wg sync.WaitGroup
	for w := 0; w < s.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				tr, err := s.transformer.Transform(docs[i])
				if err != nil {
					issues[i] = err
					continue
				}
				results[i] = tr
			}
		}()
	}
	wg.Wait()

	for i, err := range issues {
		if err == nil {
			continue
		}
		result.addWarning(err)
		result.addSkipped(docs[i].Type)
	}

	return results
}

// load upserts one row and books the outcome.
func (s *Service) load(ctx context.Context, tx Tx, row rows.Row, result *BatchResult) error {
	created, err := tx.Upsert(ctx, row)
	if err != nil {
		return err
	}
	if created {
		result.addCreated(row.ResourceType())
	} else {
		result.addUpdated(row.ResourceType())
	}
	return nil
}

// abandon rolls back the batch transaction and reports the batch-level
// failure. Rollback leaves no half-applied batch visible to readers.
func (s *Service) abandon(result *BatchResult, start time.Time, tx Tx, err error) (*BatchResult, error) {
	if tx != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.log.Error().Err(rbErr).Str("batch_id", result.BatchID).Msg("Rollback failed")
		}
	}

	result.addError(err)
	result.Duration = time.Since(start)
	metrics.RecordBatch("rolled_back", result.Duration)

	s.log.Error().Err(err).
		Str("batch_id", result.BatchID).
		Msg("Batch failed and was rolled back")

	return result, err
}

func (s *Service) recordMetrics(result *BatchResult, status string) {
	for resourceType, counts := range result.ByType {
		metrics.RecordResources(resourceType, counts.Created, counts.Updated, counts.Skipped)
	}
	metrics.RecordBatch(status, result.Duration)
}

func (s *Service) logCompletion(result *BatchResult) {
	event := s.log.Info().
		Str("batch_id", result.BatchID).
		Int("created", result.Created).
		Int("updated", result.Updated).
		Int("skipped", result.Skipped).
		Int("errors", len(result.Errors)).
		Int("warnings", len(result.Warnings)).
		Dur("duration", result.Duration)

	for _, resourceType := range result.Types() {
		counts := result.ByType[resourceType]
		event = event.Int(resourceType, counts.Created+counts.Updated)
	}

	event.Msg("Batch committed")
}
