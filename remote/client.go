// Package remote pulls resource bundles from a remote FHIR server so
// they can be ingested through the same pipeline as uploaded documents.
package remote

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"

	"github.com/SanteonNL/fornax/models/rows"
	"github.com/SanteonNL/fornax/reader"
)

// fetchTypes is the order in which resource bundles are pulled.
var fetchTypes = []string{
	rows.TypePatient,
	rows.TypeEncounter,
	rows.TypeCondition,
	rows.TypeObservation,
	rows.TypeImmunization,
	rows.TypeCarePlan,
	rows.TypeMedicationRequest,
	rows.TypeProcedure,
}

// Client fetches bundles from a FHIR base URL with retry and backoff.
type Client struct {
	baseURL string
	count   int
	http    *retryablehttp.Client
	log     zerolog.Logger
}

// NewClient creates a remote client for the given FHIR base URL. count
// is the page size requested per bundle; zero or negative selects 500.
func NewClient(baseURL string, count int, log zerolog.Logger) *Client {
	if count <= 0 {
		count = 500
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 4
	retryClient.RetryWaitMin = 500 * time.Millisecond
	retryClient.RetryWaitMax = 10 * time.Second
	retryClient.Logger = nil

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		count:   count,
		http:    retryClient,
		log:     log,
	}
}

// FetchSources pulls one bundle per supported resource type and wraps
// each as an in-memory document source. Decoding is left to the reader
// so remote and uploaded documents follow the same path.
func (c *Client) FetchSources(ctx context.Context) ([]reader.Source, error) {
	sources := make([]reader.Source, 0, len(fetchTypes))
	for _, resourceType := range fetchTypes {
		url := fmt.Sprintf("%s/%s?_count=%d", c.baseURL, resourceType, c.count)
		body, err := c.fetch(ctx, url)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch %s bundle: %w", resourceType, err)
		}

		name := strings.ToLower(resourceType) + "_bundle.json"
		sources = append(sources, reader.BytesSource(name, body))

		c.log.Debug().
			Str("resource_type", resourceType).
			Int("bytes", len(body)).
			Msg("Fetched remote bundle")
	}

	return sources, nil
}

func (c *Client) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/fhir+json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s from %s", resp.Status, url)
	}

	return io.ReadAll(resp.Body)
}
