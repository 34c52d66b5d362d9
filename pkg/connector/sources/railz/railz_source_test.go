package railz

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/ajitpratap0/railstream/pkg/config"
	"github.com/ajitpratap0/railstream/pkg/connector/core"
	"github.com/ajitpratap0/railstream/pkg/errors"
	"github.com/ajitpratap0/railstream/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newAPIServer fakes the auth, connections, and report endpoints.
func newAPIServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()

	mux.HandleFunc("/getAccess", func(w http.ResponseWriter, r *http.Request) {
		user, _, ok := r.BasicAuth()
		if !ok || user != "client-id" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"session-token"}`))
	})

	mux.HandleFunc("/connections", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer session-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"data": [
				{"businessName": "Acme", "serviceName": "accounting", "connectionId": "conn-1"}
			],
			"pagination": {"totalCount": 1, "offset": 0, "limit": 100}
		}`))
	})

	mux.HandleFunc("/reports/invoices", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer session-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		q := r.URL.Query()
		assert.Equal(t, "Acme", q.Get("businessName"))
		assert.Equal(t, "accounting", q.Get("serviceName"))
		assert.NotEmpty(t, q.Get("startDate"))
		assert.NotEmpty(t, q.Get("endDate"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"reports": [
				{"invoiceId": "inv-1", "postedDate": "2024-01-10", "amount": 100},
				{"invoiceId": "inv-2", "postedDate": "2024-02-20", "amount": 250}
			],
			"pagination": {"totalCount": 2, "offset": 0, "limit": 100}
		}`))
	})

	return httptest.NewServer(mux)
}

func newTestConfig(serverURL string) *config.BaseConfig {
	cfg := config.NewBaseConfig("railz", "source")
	cfg.Security.Credentials = map[string]string{
		"client_id":         "client-id",
		"secret_key":        "secret-key",
		"auth_url":          serverURL + "/getAccess",
		"api_url":           serverURL,
		"report":            "invoices",
		"start_date":        "2024-01-01",
		"slice_window_days": "365",
	}
	return cfg
}

func newInitializedSource(t *testing.T, cfg *config.BaseConfig) *RailzSource {
	t.Helper()

	src, err := NewRailzSource("railz", cfg)
	require.NoError(t, err)
	require.NoError(t, src.Initialize(context.Background(), cfg))
	t.Cleanup(func() { _ = src.Close(context.Background()) })

	return src.(*RailzSource)
}

func TestRailzSourceRead(t *testing.T) {
	server := newAPIServer(t)
	defer server.Close()

	source := newInitializedSource(t, newTestConfig(server.URL))

	stream, err := source.Read(context.Background())
	require.NoError(t, err)

	var records []*models.Record
	for record := range stream.Records {
		records = append(records, record)
	}
	for err := range stream.Errors {
		require.NoError(t, err)
	}

	require.NotEmpty(t, records)
	assert.Equal(t, "inv-1", records[0].Data["invoiceId"])
	assert.Equal(t, "railz", records[0].Metadata.Source)
	assert.Equal(t, "invoices", records[0].Metadata.Stream)

	// The cursor advanced to the maximum posted date seen.
	state := source.GetState()
	acme, ok := state["Acme"].(map[string]interface{})
	require.True(t, ok)
	accounting, ok := acme["accounting"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "2024-02-20", accounting["postedDate"])
}

func TestRailzSourceReadRecoversFromRevokedToken(t *testing.T) {
	var tokensMinted int32

	mux := http.NewServeMux()

	mux.HandleFunc("/getAccess", func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&tokensMinted, 1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(fmt.Sprintf(`{"access_token":"token-%d"}`, n)))
	})

	mux.HandleFunc("/connections", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"data": [
				{"businessName": "Acme", "serviceName": "accounting", "connectionId": "conn-1"}
			],
			"pagination": {"totalCount": 1, "offset": 0, "limit": 100}
		}`))
	})

	// The first token is revoked by the time the report endpoint is hit;
	// only the second one is accepted.
	mux.HandleFunc("/reports/invoices", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "Bearer token-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"reports": [
				{"invoiceId": "inv-1", "postedDate": "2024-01-10", "amount": 100}
			],
			"pagination": {"totalCount": 1, "offset": 0, "limit": 100}
		}`))
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	source := newInitializedSource(t, newTestConfig(server.URL))

	stream, err := source.Read(context.Background())
	require.NoError(t, err)

	var records []*models.Record
	for record := range stream.Records {
		records = append(records, record)
	}
	for err := range stream.Errors {
		require.NoError(t, err)
	}

	require.Len(t, records, 1)
	assert.Equal(t, "inv-1", records[0].Data["invoiceId"])
	assert.Equal(t, int32(2), atomic.LoadInt32(&tokensMinted),
		"a rejected token should be replaced with a freshly minted one")
}

func TestRailzSourceReadBatch(t *testing.T) {
	server := newAPIServer(t)
	defer server.Close()

	source := newInitializedSource(t, newTestConfig(server.URL))

	stream, err := source.ReadBatch(context.Background(), 100)
	require.NoError(t, err)

	var total int
	for batch := range stream.Batches {
		total += len(batch)
	}
	for err := range stream.Errors {
		require.NoError(t, err)
	}

	assert.NotZero(t, total)
}

func TestRailzSourceDiscover(t *testing.T) {
	server := newAPIServer(t)
	defer server.Close()

	source := newInitializedSource(t, newTestConfig(server.URL))

	schema, err := source.Discover(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "invoices", schema.Name)
	assert.NotEmpty(t, schema.Fields)
}

func TestRailzSourceCheckAvailability(t *testing.T) {
	server := newAPIServer(t)
	defer server.Close()

	source := newInitializedSource(t, newTestConfig(server.URL))

	available, reason := source.CheckAvailability(context.Background())
	assert.True(t, available)
	assert.Empty(t, reason)
}

func TestRailzSourceCheckAvailabilityBadCredentials(t *testing.T) {
	server := newAPIServer(t)
	defer server.Close()

	cfg := newTestConfig(server.URL)
	cfg.Security.Credentials["client_id"] = "wrong-id"

	source := newInitializedSource(t, cfg)

	available, reason := source.CheckAvailability(context.Background())
	assert.False(t, available)
	assert.NotEmpty(t, reason)
}

func TestRailzSourceSetStateSeedsCursor(t *testing.T) {
	server := newAPIServer(t)
	defer server.Close()

	source := newInitializedSource(t, newTestConfig(server.URL))

	state := core.State{
		"Acme": map[string]interface{}{
			"accounting": map[string]interface{}{"postedDate": "2024-06-01"},
		},
	}
	require.NoError(t, source.SetState(state))

	restored := source.GetState()
	acme := restored["Acme"].(map[string]interface{})
	assert.Equal(t, "2024-06-01", acme["accounting"].(map[string]interface{})["postedDate"])
}

func TestRailzSourceConfigValidation(t *testing.T) {
	cfg := config.NewBaseConfig("railz", "source")
	cfg.Security.Credentials = map[string]string{
		"secret_key": "secret-key",
	}

	src, err := NewRailzSource("railz", cfg)
	require.NoError(t, err)

	err = src.Initialize(context.Background(), cfg)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
	assert.Contains(t, err.Error(), "client_id")
}

func TestRailzSourceBadStartDate(t *testing.T) {
	cfg := config.NewBaseConfig("railz", "source")
	cfg.Security.Credentials = map[string]string{
		"client_id":  "id",
		"secret_key": "key",
		"start_date": "01/02/2024",
	}

	src, err := NewRailzSource("railz", cfg)
	require.NoError(t, err)

	err = src.Initialize(context.Background(), cfg)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestRailzSourceCapabilities(t *testing.T) {
	server := newAPIServer(t)
	defer server.Close()

	source := newInitializedSource(t, newTestConfig(server.URL))

	assert.True(t, source.SupportsIncremental())
	assert.True(t, source.SupportsBatch())
	assert.Equal(t, "railz", source.Name())
	assert.Equal(t, core.ConnectorTypeSource, source.Type())
}
