package ctlogs

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bl4ck0w1/subprobe/internal/testutil"
	"github.com/bl4ck0w1/subprobe/pkg/models"
	"github.com/bl4ck0w1/subprobe/pkg/utils"
)

func newTestCollector(t *testing.T, endpoint string, timeout time.Duration) *Collector {
	t.Helper()
	cfg := models.DefaultConfig().Passive
	cfg.Endpoint = endpoint
	cfg.Timeout = timeout
	cfg.RateLimit = 0
	return NewCollector(cfg, utils.NopLogger(), nil)
}

func TestCollectParsesRecords(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		testutil.AssertEqual(t, r.URL.Query().Get("output"), "json", "output param")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"issuer_name":"R3","name_value":"www.example.com\nAPI.example.com"},
			{"issuer_name":"R3","name_value":"*.dev.example.com"},
			{"issuer_name":"R3","name_value":"www.example.com"},
			{"issuer_name":"R3","name_value":"example.com"},
			{"issuer_name":"R3","name_value":"other.org\nnotexample.com"},
			{"issuer_name":"R3","name_value":"bad_-.example.com\n-bad.example.com\n\n"}
		]`))
	}))
	defer srv.Close()

	names, err := newTestCollector(t, srv.URL+"/", 2*time.Second).Collect(context.Background(), "example.com")
	testutil.AssertNoError(t, err, "collect")
	testutil.AssertEqual(t, gotQuery, "%.example.com", "query")
	testutil.AssertEqual(t, strings.Join(names, ","), "api.example.com,dev.example.com,www.example.com", "names")
}

func TestCollectFailsSoft(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "upstream down", http.StatusBadGateway)
		}},
		{"malformed json", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`<html>rate limited</html>`))
		}},
		{"timeout", func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			names, err := newTestCollector(t, srv.URL, 200*time.Millisecond).Collect(context.Background(), "example.com")
			testutil.AssertLen(t, names, 0, "names on failure")
			ple := testutil.AssertErrorAs[*models.PassiveLookupError](t, err, "passive error")
			testutil.AssertEqual(t, ple.Domain, "example.com", "domain")
			testutil.AssertTrue(t, errors.Unwrap(err) != nil, "wraps cause")
		})
	}
}

func TestCollectUnreachableEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	endpoint := srv.URL
	srv.Close()

	names, err := newTestCollector(t, endpoint, time.Second).Collect(context.Background(), "example.com")
	testutil.AssertLen(t, names, 0, "names")
	testutil.AssertErrorAs[*models.PassiveLookupError](t, err, "unreachable")
}

func TestCollectRecordsMetrics(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	m, err := utils.NewEngineMetrics(false)
	testutil.AssertNoError(t, err, "metrics")

	cfg := models.DefaultConfig().Passive
	cfg.Endpoint = srv.URL
	c := NewCollector(cfg, utils.NopLogger(), m)
	_, err = c.Collect(context.Background(), "example.com")
	testutil.AssertNoError(t, err, "collect")

	families, err := m.GetRegistry().Gather()
	testutil.AssertNoError(t, err, "gather")
	found := false
	for _, f := range families {
		if f.GetName() == utils.MetricPassiveLookups {
			found = true
			testutil.AssertEqual(t, f.GetMetric()[0].GetCounter().GetValue(), 1.0, "success count")
		}
	}
	testutil.AssertTrue(t, found, "passive metric exported")
}
