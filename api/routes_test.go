package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SanteonNL/fornax/models/rows"
	"github.com/SanteonNL/fornax/pipeline"
)

// fakeStore is a minimal pipeline.Store that commits rows into a map.
type fakeStore struct {
	committed map[string]rows.Row
}

func newFakeStore() *fakeStore {
	return &fakeStore{committed: make(map[string]rows.Row)}
}

func (s *fakeStore) Begin(context.Context) (pipeline.Tx, error) {
	return &fakeTx{store: s, staged: make(map[string]rows.Row)}, nil
}

func (s *fakeStore) RecomputeSummaries(context.Context, []string) error { return nil }

type fakeTx struct {
	store  *fakeStore
	staged map[string]rows.Row
}

func (tx *fakeTx) Upsert(_ context.Context, row rows.Row) (bool, error) {
	key := row.ResourceType() + "/" + row.RowID()
	_, exists := tx.store.committed[key]
	tx.staged[key] = row
	return !exists, nil
}

func (tx *fakeTx) RefExists(_ context.Context, resourceType, id string) (bool, error) {
	key := resourceType + "/" + id
	if _, ok := tx.staged[key]; ok {
		return true, nil
	}
	_, ok := tx.store.committed[key]
	return ok, nil
}

func (tx *fakeTx) Commit() error {
	for key, row := range tx.staged {
		tx.store.committed[key] = row
	}
	return nil
}

func (tx *fakeTx) Rollback() error { return nil }

func newTestHandler(store *fakeStore) http.Handler {
	log := zerolog.Nop()
	p := pipeline.NewService(store, log, 1)
	return NewRouter(p, nil, log).SetupRoutes()
}

func multipartBody(t *testing.T, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for name, content := range files {
		part, err := writer.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func TestHandleIngest(t *testing.T) {
	t.Run("uploads run as one batch", func(t *testing.T) {
		store := newFakeStore()
		handler := newTestHandler(store)

		body, contentType := multipartBody(t, map[string]string{
			"patient.json": `{"resourceType": "Patient", "id": "p1", "gender": "female"}`,
		})
		req := httptest.NewRequest(http.MethodPost, "/ingest", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var result pipeline.BatchResult
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
		assert.Equal(t, 1, result.Created)
		assert.NotEmpty(t, result.BatchID)
		assert.Contains(t, store.committed, "Patient/p1")
	})

	t.Run("rejects non-json uploads", func(t *testing.T) {
		handler := newTestHandler(newFakeStore())

		body, contentType := multipartBody(t, map[string]string{"data.csv": "a,b"})
		req := httptest.NewRequest(http.MethodPost, "/ingest", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "only .json is accepted")
	})

	t.Run("rejects empty uploads", func(t *testing.T) {
		handler := newTestHandler(newFakeStore())

		body, contentType := multipartBody(t, nil)
		req := httptest.NewRequest(http.MethodPost, "/ingest", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("bad document commits the rest of the batch", func(t *testing.T) {
		store := newFakeStore()
		handler := newTestHandler(store)

		body, contentType := multipartBody(t, map[string]string{
			"bad.json":     `{not json`,
			"patient.json": `{"resourceType": "Patient", "id": "p1"}`,
		})
		req := httptest.NewRequest(http.MethodPost, "/ingest", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var result pipeline.BatchResult
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
		assert.Equal(t, 1, result.Created)
		assert.Len(t, result.Errors, 1)
	})
}

func TestHandleIngestRemoteUnconfigured(t *testing.T) {
	handler := newTestHandler(newFakeStore())

	req := httptest.NewRequest(http.MethodPost, "/ingest/remote", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandleHealth(t *testing.T) {
	handler := newTestHandler(newFakeStore())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status": "ok"}`, rec.Body.String())
}
