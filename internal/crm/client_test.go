package crm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vilakshanb/leaderboard-backend-sub000/internal/config"
	"github.com/Vilakshanb/leaderboard-backend-sub000/internal/model"
)

func testClient(baseURL string) *Client {
	c := NewClient(config.CRMConfig{
		BaseURL:    baseURL,
		RatePerSec: 1000,
		Burst:      1000,
	})
	c.backoffBase = time.Millisecond
	return c
}

func TestDirectory_DecodesRMRecords(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/users", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		json.NewEncoder(w).Encode([]model.RM{
			{EmployeeID: "EMP001", DisplayName: "Ishu Mavar", IsActive: true, Profile: "Insurance"},
			{EmployeeID: "EMP002", DisplayName: "Rohit Pawar", IsActive: false},
		})
	}))
	defer srv.Close()

	rms, err := testClient(srv.URL).Directory(context.Background())
	require.NoError(t, err)
	require.Len(t, rms, 2)
	assert.Equal(t, "EMP001", rms[0].EmployeeID)
	assert.Equal(t, "Insurance", rms[0].Profile)
	assert.False(t, rms[1].IsActive)
}

func TestPolicies_SendsMonthWindow(t *testing.T) {
	var gotFrom, gotTo string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotFrom = r.URL.Query().Get("converted_from")
		gotTo = r.URL.Query().Get("converted_to")
		w.Write([]byte("[]"))
	}))
	defer srv.Close()

	month := model.Month{Year: 2025, Mon: time.September}
	_, err := testClient(srv.URL).Policies(context.Background(), month)
	require.NoError(t, err)
	assert.Equal(t, "2025-09-01T00:00:00Z", gotFrom)
	assert.Equal(t, "2025-10-01T00:00:00Z", gotTo)
}

func TestGetJSON_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`[{"month":"2025-09","rm_name":"Ishu Mavar","aum":10000000}]`))
	}))
	defer srv.Close()

	snaps, err := testClient(srv.URL).AUMSnapshots(context.Background(), model.Month{Year: 2025, Mon: time.September})
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, int32(3), calls.Load())
}

func TestGetJSON_ExhaustedRetriesFail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).ReferralLeads(context.Background(), model.Month{Year: 2025, Mon: time.September})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "retries exhausted")
}

func TestGetJSON_NonOKStatusIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Directory(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 404")
}
