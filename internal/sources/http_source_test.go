package sources_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/benmeehan/collar-sync/internal/models"
	"github.com/benmeehan/collar-sync/internal/sources"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPSource_Fetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"device_id": "c1", "latitude": 1.0, "longitude": 2.0, "observed_at": "2024-01-01T10:00:00Z"},
			{"device_id": "c2", "latitude": "bad", "longitude": 2.0, "observed_at": "2024-01-01T10:00:00Z"}
		]`))
	}))
	defer server.Close()

	source := sources.NewHTTPSource(server.URL, time.Second, server.Client(), zerolog.Nop())
	observations, err := source.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, observations, 2)

	assert.Equal(t, "c1", observations[0].DeviceID())
	_, err = observations[1].Validate()
	assert.ErrorIs(t, err, models.ErrInvalidFormat)
}

func TestHTTPSource_BatchFailures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{"server error", http.StatusInternalServerError, "boom", "HTTP 500"},
		{"object body", http.StatusOK, `{"device_id": "c1"}`, "not a JSON array"},
		{"invalid json", http.StatusOK, `[{`, "not a JSON array"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			source := sources.NewHTTPSource(server.URL, time.Second, server.Client(), zerolog.Nop())
			_, err := source.Fetch(context.Background())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestHTTPSource_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	source := sources.NewHTTPSource(server.URL, 20*time.Millisecond, server.Client(), zerolog.Nop())
	_, err := source.Fetch(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
