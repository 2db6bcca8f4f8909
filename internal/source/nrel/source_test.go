package nrel

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSource(t *testing.T, baseURL string) *Source {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	return New(Config{
		BaseURL:        baseURL,
		APIKey:         "test-key",
		Country:        "US",
		Timeout:        5 * time.Second,
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
	}, logger)
}

func TestFetchStations(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "ELEC", r.URL.Query().Get("fuel_type"))
		assert.Equal(t, "test-key", r.URL.Query().Get("api_key"))
		assert.Equal(t, "US", r.URL.Query().Get("country"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"total_results": 2,
			"fuel_stations": [
				{"id": 101, "station_name": "City Hall Garage", "latitude": 45.514, "longitude": -122.679, "restricted_access": "false"},
				{"id": 102, "station_name": "Airport Lot E", "latitude": "45.588", "longitude": "-122.593"}
			]
		}`))
	}))
	defer server.Close()

	batch, err := testSource(t, server.URL).FetchStations(context.Background())
	require.NoError(t, err)
	require.Len(t, batch, 2)

	assert.Equal(t, int64(101), batch[0].ID)
	require.NotNil(t, batch[0].RestrictedAccess)
	assert.False(t, *batch[0].RestrictedAccess)
	require.NotNil(t, batch[1].Latitude)
	assert.InDelta(t, 45.588, *batch[1].Latitude, 1e-9)
}

func TestFetchStations_RetriesTransientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"total_results": 0, "fuel_stations": []}`))
	}))
	defer server.Close()

	batch, err := testSource(t, server.URL).FetchStations(context.Background())
	require.NoError(t, err)
	assert.Empty(t, batch)
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetchStations_GivesUpAfterMaxAttempts(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := testSource(t, server.URL).FetchStations(context.Background())
	require.Error(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetchStations_MalformedRecordFailsWithoutRetry(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{
			"total_results": 1,
			"fuel_stations": [{"id": 101, "latitude": "not-a-number"}]
		}`))
	}))
	defer server.Close()

	_, err := testSource(t, server.URL).FetchStations(context.Background())
	require.ErrorIs(t, err, ErrBadRecord)
	assert.Equal(t, int32(1), calls.Load())
}
