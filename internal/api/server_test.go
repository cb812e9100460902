package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/benmeehan/collar-sync/internal/models"
	"github.com/benmeehan/collar-sync/internal/services"
	"github.com/benmeehan/collar-sync/internal/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSyncer struct {
	summary   models.SyncSummary
	push      models.PushSummary
	latest    []models.Position
	err       error
	stats     models.CycleStats
	state     string
	externals int
}

func (f *fakeSyncer) SyncExternal(ctx context.Context) (models.SyncSummary, error) {
	f.externals++
	return f.summary, f.err
}

func (f *fakeSyncer) SyncToCollar(ctx context.Context) (models.PushSummary, error) {
	return f.push, f.err
}

func (f *fakeSyncer) LatestPositions(ctx context.Context) ([]models.Position, error) {
	return f.latest, f.err
}

func (f *fakeSyncer) Stats() models.CycleStats { return f.stats }
func (f *fakeSyncer) State() string            { return f.state }

var receivedAt = time.Date(2024, 6, 13, 12, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T, syncer Syncer) (*Server, storage.PositionStore) {
	t.Helper()

	store := storage.NewMemoryStore()
	directory := storage.NewMemoryDirectory()
	require.NoError(t, directory.Register(context.Background(), "collar-1", "Bessie", "secret"))

	server := NewServer("127.0.0.1:0", syncer, store, directory, prometheus.NewRegistry(), zerolog.Nop())
	server.now = func() time.Time { return receivedAt }
	return server, store
}

func do(t *testing.T, handler http.Handler, method, path, apiKey, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if apiKey != "" {
		req.Header.Set(APIKeyHeader, apiKey)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestCreateLocation(t *testing.T) {
	tests := []struct {
		name       string
		apiKey     string
		body       string
		wantStatus int
		wantStored int
	}{
		{
			name:       "valid with timestamp",
			apiKey:     "secret",
			body:       `{"device_id":"collar-1","latitude":51.5,"longitude":-0.7,"created_at":"2024-06-13T10:00:00Z"}`,
			wantStatus: http.StatusCreated,
			wantStored: 1,
		},
		{
			name:       "missing key",
			body:       `{"device_id":"collar-1","latitude":51.5,"longitude":-0.7}`,
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "wrong key",
			apiKey:     "guess",
			body:       `{"device_id":"collar-1","latitude":51.5,"longitude":-0.7}`,
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "unknown device",
			apiKey:     "secret",
			body:       `{"device_id":"collar-9","latitude":51.5,"longitude":-0.7}`,
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "not json",
			apiKey:     "secret",
			body:       `latitude=51.5`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "missing device",
			apiKey:     "secret",
			body:       `{"latitude":51.5,"longitude":-0.7}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "out of range",
			apiKey:     "secret",
			body:       `{"device_id":"collar-1","latitude":91,"longitude":-0.7}`,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, store := newTestServer(t, &fakeSyncer{})

			rec := do(t, server.Routes(), http.MethodPost, "/api/v1/location", tt.apiKey, tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())

			records, err := store.FindAll(context.Background())
			require.NoError(t, err)
			assert.Len(t, records, tt.wantStored)
		})
	}
}

func TestCreateLocation_DefaultsTimestamp(t *testing.T) {
	server, store := newTestServer(t, &fakeSyncer{})

	rec := do(t, server.Routes(), http.MethodPost, "/api/v1/location", "secret",
		`{"device_id":"collar-1","latitude":"51.5","longitude":-0.7}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created models.PositionRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.NotEmpty(t, created.ID)
	assert.True(t, created.ObservedAt.Equal(receivedAt))

	stored, err := store.FindByDevice(context.Background(), "collar-1")
	require.NoError(t, err)
	assert.Equal(t, 51.5, stored.Latitude)
}

func TestSyncEndpoints(t *testing.T) {
	syncer := &fakeSyncer{
		summary: models.SyncSummary{TotalProcessed: 2, Created: 1, Updated: 1, ErrorMessages: []string{}},
		push:    models.PushSummary{TotalDevices: 1, Sent: 1, ErrorMessages: []string{}},
	}
	server, _ := newTestServer(t, syncer)
	handler := server.Routes()

	rec := do(t, handler, http.MethodPost, "/api/v1/sync-external", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var summary models.SyncSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, syncer.summary, summary)
	assert.Equal(t, 1, syncer.externals)

	rec = do(t, handler, http.MethodPost, "/api/v1/sync-to-collar", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var push models.PushSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &push))
	assert.Equal(t, syncer.push, push)

	rec = do(t, handler, http.MethodGet, "/api/v1/sync-external", "", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestSyncEndpoints_Errors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"cycle running", services.ErrCycleInProgress, http.StatusConflict},
		{"phase failed", errors.New("fetch external observations: boom"), http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, _ := newTestServer(t, &fakeSyncer{err: tt.err})
			handler := server.Routes()

			for _, path := range []string{"/api/v1/sync-external", "/api/v1/sync-to-collar"} {
				rec := do(t, handler, http.MethodPost, path, "", "")
				assert.Equal(t, tt.wantStatus, rec.Code, path)
				assert.Contains(t, rec.Body.String(), tt.err.Error())
			}
		})
	}
}

func TestLatestAndHealth(t *testing.T) {
	syncer := &fakeSyncer{
		latest: []models.Position{{DeviceID: "collar-1", Latitude: 1, Longitude: 2, ObservedAt: receivedAt}},
		stats:  models.CycleStats{Cycles: 3, Complete: 2, Partial: 1},
		state:  "idle",
	}
	server, _ := newTestServer(t, syncer)
	handler := server.Routes()

	rec := do(t, handler, http.MethodGet, "/api/v1/locations/latest", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var latest []models.Position
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &latest))
	assert.Equal(t, syncer.latest, latest)

	rec = do(t, handler, http.MethodGet, "/healthz", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var health healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "idle", health.State)
	assert.Equal(t, 3, health.Stats.Cycles)
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "collarsync_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()

	server := NewServer("127.0.0.1:0", &fakeSyncer{}, storage.NewMemoryStore(), storage.NewMemoryDirectory(), reg, zerolog.Nop())
	rec := do(t, server.Routes(), http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "collarsync_test_total 1")
}

func TestServer_StartStop(t *testing.T) {
	server, _ := newTestServer(t, &fakeSyncer{state: "idle"})

	require.NoError(t, server.Start())
	assert.Error(t, server.Start())

	resp, err := http.Get("http://" + server.Addr() + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	http.DefaultClient.CloseIdleConnections()

	require.NoError(t, server.Stop())
	assert.Error(t, server.Stop())
	assert.Empty(t, server.Addr())
}
