package capacity_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/entitlement-engine/calendar"
	"github.com/warp/entitlement-engine/capacity"
)

func newClient(t *testing.T, url string, timeout time.Duration) *capacity.Client {
	t.Helper()
	c, err := capacity.New(capacity.Config{Endpoint: url, Token: "secret", Timeout: timeout}, nil)
	require.NoError(t, err)
	return c
}

func TestAvailableDates_Success(t *testing.T) {
	var gotBaseline, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBaseline = r.URL.Query().Get("baselineId")
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{"availableDates":["01/16/2025","01/15/2025"]}}`))
	}))
	defer srv.Close()

	dates, err := newClient(t, srv.URL, time.Second).AvailableDates(context.Background(), "BL-1")
	require.NoError(t, err)

	assert.Equal(t, "BL-1", gotBaseline)
	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, []calendar.Date{
		calendar.NewDate(2025, time.January, 15),
		calendar.NewDate(2025, time.January, 16),
	}, dates, "dates come back sorted")
}

func TestAvailableDates_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"server error", http.StatusInternalServerError, `boom`, capacity.ErrUnavailable},
		{"not found", http.StatusNotFound, ``, capacity.ErrUnavailable},
		{"empty list", http.StatusOK, `{"data":{"availableDates":[]}}`, capacity.ErrNoDates},
		{"missing data", http.StatusOK, `{"dates":["01/15/2025"]}`, capacity.ErrMalformedResponse},
		{"not json", http.StatusOK, `<html></html>`, capacity.ErrMalformedResponse},
		{"iso dates", http.StatusOK, `{"data":{"availableDates":["2025-01-15"]}}`, capacity.ErrMalformedResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := newClient(t, srv.URL, time.Second).AvailableDates(context.Background(), "BL-1")
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestAvailableDates_StatusErrorCarriesCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newClient(t, srv.URL, time.Second).AvailableDates(context.Background(), "BL-1")

	var statusErr *capacity.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.StatusCode)
}

func TestAvailableDates_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	start := time.Now()
	_, err := newClient(t, srv.URL, 50*time.Millisecond).AvailableDates(context.Background(), "BL-1")

	assert.ErrorIs(t, err, capacity.ErrUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestAvailableDates_RateLimited(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"data":{"availableDates":["01/15/2025"]}}`))
	}))
	defer srv.Close()

	c, err := capacity.New(capacity.Config{
		Endpoint:      srv.URL,
		Timeout:       100 * time.Millisecond,
		RatePerSecond: 0.001,
		Burst:         1,
	}, nil)
	require.NoError(t, err)

	_, err = c.AvailableDates(context.Background(), "BL-1")
	require.NoError(t, err)

	// The bucket is empty and refills far slower than the timeout.
	_, err = c.AvailableDates(context.Background(), "BL-2")
	assert.ErrorIs(t, err, capacity.ErrUnavailable)
	assert.Equal(t, int32(1), calls.Load())
}

func TestNew_Validation(t *testing.T) {
	_, err := capacity.New(capacity.Config{Endpoint: "not a url", Timeout: time.Second}, nil)
	assert.Error(t, err)

	_, err = capacity.New(capacity.Config{Endpoint: "https://planner.example.com/v1/dates", Timeout: 0}, nil)
	assert.Error(t, err)

	_, err = capacity.New(capacity.Config{Endpoint: "https://planner.example.com/v1/dates", Timeout: time.Second}, nil)
	assert.NoError(t, err)
}
