package remote

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchSources(t *testing.T) {
	var paths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path+"?"+r.URL.RawQuery)
		assert.Equal(t, "application/fhir+json", r.Header.Get("Accept"))
		fmt.Fprintf(w, `{"resourceType": "Bundle", "entry": []}`)
	}))
	defer server.Close()

	client := NewClient(server.URL+"/", 100, zerolog.Nop())
	sources, err := client.FetchSources(context.Background())
	require.NoError(t, err)
	require.Len(t, sources, 8)

	assert.Equal(t, "/Patient?_count=100", paths[0])
	assert.Equal(t, "/Procedure?_count=100", paths[7])
	assert.Equal(t, "patient_bundle.json", sources[0].Name)
}

func TestFetchSourcesDefaultCount(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "500", r.URL.Query().Get("_count"))
		fmt.Fprintf(w, `{}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, 0, zerolog.Nop())
	_, err := client.FetchSources(context.Background())
	require.NoError(t, err)
}

func TestFetchSourcesServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(server.URL, 10, zerolog.Nop())
	_, err := client.FetchSources(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Patient bundle")
}
