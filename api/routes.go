// Package api exposes the batch ingestion entry points over HTTP. The
// query/search surface is a separate collaborator; its only contract
// with this engine is the relational schema.
package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/SanteonNL/fornax/pipeline"
	"github.com/SanteonNL/fornax/reader"
	"github.com/SanteonNL/fornax/remote"
)

// maxUploadBytes caps one ingestion request's in-memory form size.
const maxUploadBytes = 256 << 20

// Router wires the ingestion pipeline to HTTP.
type Router struct {
	pipeline *pipeline.Service
	remote   *remote.Client // nil when no remote FHIR server is configured
	log      zerolog.Logger
}

// NewRouter creates the ingestion router.
func NewRouter(p *pipeline.Service, remoteClient *remote.Client, log zerolog.Logger) *Router {
	return &Router{
		pipeline: p,
		remote:   remoteClient,
		log:      log,
	}
}

// SetupRoutes builds the HTTP handler.
func (rt *Router) SetupRoutes() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/ingest", rt.handleIngest).Methods(http.MethodPost)
	r.HandleFunc("/ingest/remote", rt.handleIngestRemote).Methods(http.MethodPost)
	r.HandleFunc("/healthz", rt.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	return r
}

// handleIngest accepts one or more uploaded documents under the "files"
// form field and runs them as a single batch.
func (rt *Router) handleIngest(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		respondWithError(w, http.StatusBadRequest, fmt.Sprintf("invalid multipart request: %v", err))
		return
	}

	uploads := r.MultipartForm.File["files"]
	if len(uploads) == 0 {
		respondWithError(w, http.StatusBadRequest, "no files provided in the request")
		return
	}

	var sources []reader.Source
	for _, header := range uploads {
		if !strings.HasSuffix(strings.ToLower(header.Filename), ".json") {
			respondWithError(w, http.StatusBadRequest,
				fmt.Sprintf("unsupported file type for %s, only .json is accepted", header.Filename))
			return
		}

		file, err := header.Open()
		if err != nil {
			respondWithError(w, http.StatusBadRequest, fmt.Sprintf("failed to open upload %s: %v", header.Filename, err))
			return
		}
		data, err := io.ReadAll(file)
		file.Close()
		if err != nil {
			respondWithError(w, http.StatusBadRequest, fmt.Sprintf("failed to read upload %s: %v", header.Filename, err))
			return
		}

		sources = append(sources, reader.BytesSource(header.Filename, data))
	}

	rt.runBatch(w, r, sources)
}

// handleIngestRemote pulls bundles from the configured remote FHIR
// server and ingests them as one batch.
func (rt *Router) handleIngestRemote(w http.ResponseWriter, r *http.Request) {
	if rt.remote == nil {
		respondWithError(w, http.StatusServiceUnavailable, "no remote FHIR server configured")
		return
	}

	sources, err := rt.remote.FetchSources(r.Context())
	if err != nil {
		rt.log.Error().Err(err).Msg("Remote bundle fetch failed")
		respondWithError(w, http.StatusBadGateway, err.Error())
		return
	}

	rt.runBatch(w, r, sources)
}

// runBatch executes the pipeline and maps its outcome to a response. A
// batch-level failure is the only 5xx; per-document problems ride along
// in the committed batch's result.
func (rt *Router) runBatch(w http.ResponseWriter, r *http.Request, sources []reader.Source) {
	result, err := rt.pipeline.Run(r.Context(), sources)
	if err != nil {
		respondWithJSON(w, http.StatusInternalServerError, result)
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

func (rt *Router) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func respondWithError(w http.ResponseWriter, status int, message string) {
	respondWithJSON(w, status, map[string]string{"error": message})
}

func respondWithJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
