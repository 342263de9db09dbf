package http

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bl4ck0w1/subprobe/internal/testutil"
	"github.com/bl4ck0w1/subprobe/pkg/models"
	"github.com/bl4ck0w1/subprobe/pkg/utils"
)

func testConfig() models.HTTPConfig {
	cfg := models.DefaultConfig().HTTP
	cfg.Timeout = 2 * time.Second
	return cfg
}

// newTestProber returns a prober whose dialer only reaches the addresses in
// routes. Anything else is refused.
func newTestProber(t *testing.T, cfg models.HTTPConfig, routes map[string]string) *Prober {
	t.Helper()
	p, err := NewProber(cfg, utils.NopLogger(), nil)
	testutil.AssertNoError(t, err, "NewProber")

	p.transport.Proxy = nil
	p.transport.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
		target, ok := routes[addr]
		if !ok {
			return nil, errors.New("connection refused")
		}
		var d net.Dialer
		return d.DialContext(ctx, network, target)
	}
	return p
}

func serverAddr(s *httptest.Server) string {
	return strings.TrimPrefix(strings.TrimPrefix(s.URL, "https://"), "http://")
}

func statusHandler(code int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(code)
	})
}

func TestProbeHostSchemeSelection(t *testing.T) {
	tlsSrv := httptest.NewTLSServer(statusHandler(http.StatusOK))
	defer tlsSrv.Close()
	plainSrv := httptest.NewServer(statusHandler(http.StatusNotFound))
	defer plainSrv.Close()

	tests := []struct {
		name       string
		routes     map[string]string
		wantLive   bool
		wantURL    string
		wantStatus int
	}{
		{
			name: "https preferred",
			routes: map[string]string{
				"example.com:443": serverAddr(tlsSrv),
				"example.com:80":  serverAddr(plainSrv),
			},
			wantLive:   true,
			wantURL:    "https://example.com",
			wantStatus: http.StatusOK,
		},
		{
			name:       "http fallback",
			routes:     map[string]string{"example.com:80": serverAddr(plainSrv)},
			wantLive:   true,
			wantURL:    "http://example.com",
			wantStatus: http.StatusNotFound,
		},
		{
			name:   "no response",
			routes: map[string]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestProber(t, testConfig(), tt.routes)
			svc, ok := p.ProbeHost(context.Background(), "example.com")
			testutil.AssertEqual(t, ok, tt.wantLive, "live")
			if !tt.wantLive {
				return
			}
			testutil.AssertEqual(t, svc.Host, "example.com", "host")
			testutil.AssertEqual(t, svc.URL, tt.wantURL, "url")
			testutil.AssertEqual(t, svc.StatusCode, tt.wantStatus, "status")
		})
	}
}

func TestProbeAllSingleHost(t *testing.T) {
	tlsSrv := httptest.NewTLSServer(statusHandler(http.StatusOK))
	defer tlsSrv.Close()

	p := newTestProber(t, testConfig(), map[string]string{"example.com:443": serverAddr(tlsSrv)})
	out, err := p.ProbeAll(context.Background(), []string{"example.com"})
	testutil.AssertNoError(t, err, "ProbeAll")

	testutil.AssertLen(t, out.Live, 1, "live services")
	want := models.LiveService{Host: "example.com", URL: "https://example.com", StatusCode: 200}
	testutil.AssertEqual(t, out.Live[0].Host, want.Host, "host")
	testutil.AssertEqual(t, out.Live[0].URL, want.URL, "url")
	testutil.AssertEqual(t, out.Live[0].StatusCode, want.StatusCode, "status")
	testutil.AssertEqual(t, out.Probed, 1, "probed")
}

func TestServerErrorStillLive(t *testing.T) {
	tlsSrv := httptest.NewTLSServer(statusHandler(http.StatusInternalServerError))
	defer tlsSrv.Close()
	plainSrv := httptest.NewServer(statusHandler(http.StatusOK))
	defer plainSrv.Close()

	p := newTestProber(t, testConfig(), map[string]string{
		"example.com:443": serverAddr(tlsSrv),
		"example.com:80":  serverAddr(plainSrv),
	})
	svc, ok := p.ProbeHost(context.Background(), "example.com")
	testutil.AssertTrue(t, ok, "500 counts as live")
	testutil.AssertEqual(t, svc.Scheme(), "https", "scheme")
	testutil.AssertEqual(t, svc.StatusCode, http.StatusInternalServerError, "status")
}

func TestRedirectLimit(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Redirect(w, r, "/next", http.StatusFound)
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.MaxRedirects = 2
	p := newTestProber(t, cfg, map[string]string{"example.com:80": serverAddr(srv)})

	svc, ok := p.ProbeHost(context.Background(), "example.com")
	testutil.AssertTrue(t, ok, "live")
	testutil.AssertEqual(t, svc.StatusCode, http.StatusFound, "status at limit")
	testutil.AssertEqual(t, hits.Load(), int32(3), "requests sent")
}

func TestBrokenRedirectKeepsLastStatus(t *testing.T) {
	tlsSrv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "https://gone.example.com/", http.StatusMovedPermanently)
	}))
	defer tlsSrv.Close()

	p := newTestProber(t, testConfig(), map[string]string{"example.com:443": serverAddr(tlsSrv)})
	svc, ok := p.ProbeHost(context.Background(), "example.com")
	testutil.AssertTrue(t, ok, "live")
	testutil.AssertEqual(t, svc.URL, "https://example.com", "url")
	testutil.AssertEqual(t, svc.StatusCode, http.StatusMovedPermanently, "status")
}

func TestProbeConcurrencyCeiling(t *testing.T) {
	const limit = 3
	var inflight, peak atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := inflight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(30 * time.Millisecond)
		inflight.Add(-1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	routes := map[string]string{}
	var hosts []string
	for _, label := range []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k", "l"} {
		host := label + ".example.com"
		hosts = append(hosts, host)
		routes[host+":80"] = serverAddr(srv)
	}

	cfg := testConfig()
	cfg.Concurrency = limit
	p := newTestProber(t, cfg, routes)

	out, err := p.ProbeAll(context.Background(), hosts)
	testutil.AssertNoError(t, err, "ProbeAll")
	testutil.AssertLen(t, out.Live, len(hosts), "live services")
	testutil.AssertTrue(t, peak.Load() <= limit, "peak in-flight within limit")
}

func TestProbeDedupesHosts(t *testing.T) {
	srv := httptest.NewServer(statusHandler(http.StatusOK))
	defer srv.Close()

	p := newTestProber(t, testConfig(), map[string]string{"example.com:80": serverAddr(srv)})

	var results, lastDone int
	out, err := p.Probe(context.Background(), []string{"Example.com", "example.com", ""}, Hooks{
		OnResult:   func(models.LiveService) { results++ },
		OnProgress: func(done, total int) { lastDone = done },
	})
	testutil.AssertNoError(t, err, "Probe")
	testutil.AssertEqual(t, out.Probed, 1, "probed")
	testutil.AssertLen(t, out.Live, 1, "live")
	testutil.AssertEqual(t, results, 1, "OnResult calls")
	testutil.AssertEqual(t, lastDone, 1, "progress")
}

func TestProbeCancelled(t *testing.T) {
	p := newTestProber(t, testConfig(), map[string]string{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, err := p.ProbeAll(ctx, []string{"example.com"})
	testutil.AssertTrue(t, errors.Is(err, context.Canceled), "context error returned")
	testutil.AssertLen(t, out.Live, 0, "live")
}

func TestNewProberRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*models.HTTPConfig)
	}{
		{"zero concurrency", func(c *models.HTTPConfig) { c.Concurrency = 0 }},
		{"concurrency above max", func(c *models.HTTPConfig) { c.Concurrency = 101 }},
		{"timeout too small", func(c *models.HTTPConfig) { c.Timeout = time.Millisecond }},
		{"timeout too large", func(c *models.HTTPConfig) { c.Timeout = time.Minute }},
		{"negative redirects", func(c *models.HTTPConfig) { c.MaxRedirects = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)
			_, err := NewProber(cfg, nil, nil)
			testutil.AssertErrorAs[*models.ConfigurationError](t, err, "config error")
		})
	}
}

func TestCleanHost(t *testing.T) {
	tests := []struct{ in, want string }{
		{"Example.COM", "example.com"},
		{"https://www.example.com/path?q=1", "www.example.com"},
		{" api.example.com. ", "api.example.com"},
		{"", ""},
	}
	for _, tt := range tests {
		testutil.AssertEqual(t, cleanHost(tt.in), tt.want, tt.in)
	}
}

func TestProbeThroughHTTPProxy(t *testing.T) {
	var proxied atomic.Int32
	proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodConnect {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if r.Host == "example.com" {
			proxied.Add(1)
		}
		w.WriteHeader(http.StatusTeapot)
	}))
	defer proxy.Close()

	cfg := testConfig()
	cfg.Proxy = proxy.URL
	p, err := NewProber(cfg, utils.NopLogger(), nil)
	testutil.AssertNoError(t, err, "NewProber")

	svc, ok := p.ProbeHost(context.Background(), "example.com")
	testutil.AssertTrue(t, ok, "live through proxy")
	testutil.AssertEqual(t, svc.URL, "http://example.com", "url")
	testutil.AssertEqual(t, svc.StatusCode, http.StatusTeapot, "status")
	testutil.AssertEqual(t, proxied.Load(), int32(1), "requests seen by proxy")
}

func TestNewProberRejectsBadProxy(t *testing.T) {
	for _, raw := range []string{"ftp://proxy.local:21", "socks5://", "://bad"} {
		cfg := testConfig()
		cfg.Proxy = raw
		_, err := NewProber(cfg, nil, nil)
		testutil.AssertErrorAs[*models.ConfigurationError](t, err, raw)
	}
}
