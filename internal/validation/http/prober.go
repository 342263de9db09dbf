package http

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/bl4ck0w1/subprobe/pkg/models"
	"github.com/bl4ck0w1/subprobe/pkg/utils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	xproxy "golang.org/x/net/proxy"
	"golang.org/x/sync/errgroup"
)

const maxDrainBytes = 64 << 10

var schemes = []string{"https", "http"}

type Hooks struct {
	OnResult   func(models.LiveService)
	OnProgress func(done, total int)
}

type ProbeOutput struct {
	Live    []models.LiveService
	Probed  int
	Elapsed time.Duration
}

type Prober struct {
	client       *http.Client
	transport    *http.Transport
	timeout      time.Duration
	maxRedirects int
	concurrency  int
	userAgent    string
	logger       *logrus.Logger
	metrics      *utils.MetricsCollector
}

func NewProber(cfg models.HTTPConfig, logger *logrus.Logger, metrics *utils.MetricsCollector) (*Prober, error) {
	if logger == nil {
		logger = logrus.New()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	tlsConfig := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: !cfg.VerifyTLS,
	}

	transport := &http.Transport{
		TLSClientConfig:     tlsConfig,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     30 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   cfg.Timeout,
		ResponseHeaderTimeout: cfg.Timeout,
		ExpectContinueTimeout: 1 * time.Second,
		Proxy:                 http.ProxyFromEnvironment,
		ForceAttemptHTTP2:     true,
	}

	if err := configureProxy(transport, cfg.Proxy, cfg.Timeout); err != nil {
		return nil, err
	}

	client := &http.Client{
		Transport:     transport,
		CheckRedirect: checkRedirect(cfg.MaxRedirects),
	}

	ua := cfg.UserAgent
	if ua == "" {
		ua = models.DefaultConfig().HTTP.UserAgent
	}

	return &Prober{
		client:       client,
		transport:    transport,
		timeout:      cfg.Timeout,
		maxRedirects: cfg.MaxRedirects,
		concurrency:  cfg.Concurrency,
		userAgent:    ua,
		logger:       logger,
		metrics:      metrics,
	}, nil
}

// DialFunc matches net.Dialer.DialContext.
type DialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// WithDialContext routes every connection of p through dial.
func (p *Prober) WithDialContext(dial DialFunc) *Prober {
	p.transport.DialContext = dial
	return p
}

func (p *Prober) ProbeAll(ctx context.Context, hosts []string) (ProbeOutput, error) {
	return p.Probe(ctx, hosts, Hooks{})
}

// Probe checks every host under a pool of at most p.concurrency slots. A
// host occupies one slot for both of its attempts. Hosts that answer on
// neither scheme are left out of the output.
func (p *Prober) Probe(ctx context.Context, hosts []string, hooks Hooks) (ProbeOutput, error) {
	start := time.Now()
	targets := utils.DedupeFold(hosts)

	var (
		mu   sync.Mutex
		live []models.LiveService
		done int
	)

	g := new(errgroup.Group)
	g.SetLimit(p.concurrency)

	probed := 0
	for _, host := range targets {
		if ctx.Err() != nil {
			break
		}
		probed++
		g.Go(func() error {
			svc, ok := p.ProbeHost(ctx, host)

			mu.Lock()
			defer mu.Unlock()
			done++
			if ok {
				live = append(live, svc)
				if hooks.OnResult != nil {
					hooks.OnResult(svc)
				}
			}
			if hooks.OnProgress != nil {
				hooks.OnProgress(done, len(targets))
			}
			return nil
		})
	}
	_ = g.Wait()

	out := ProbeOutput{Live: live, Probed: probed, Elapsed: time.Since(start)}
	p.logger.WithFields(logrus.Fields{
		"probed":  probed,
		"live":    len(live),
		"elapsed": utils.HumanizeDuration(out.Elapsed),
	}).Info("liveness probing finished")

	p.transport.CloseIdleConnections()
	return out, ctx.Err()
}

// ProbeHost tries https://host and, only when that gets no response,
// http://host.
func (p *Prober) ProbeHost(ctx context.Context, host string) (models.LiveService, bool) {
	host = cleanHost(host)
	if host == "" {
		return models.LiveService{}, false
	}

	for _, scheme := range schemes {
		if ctx.Err() != nil {
			break
		}
		target := scheme + "://" + host
		status, err := p.attempt(ctx, target)
		if err != nil {
			p.logger.Debugf("Probe failed for %s: %v", target, err)
			continue
		}
		p.metrics.IncCounter(utils.MetricProbes, 1, prometheus.Labels{"scheme": scheme})
		return models.LiveService{Host: host, URL: target, StatusCode: status}, true
	}
	return models.LiveService{}, false
}

func (p *Prober) attempt(ctx context.Context, target string) (int, error) {
	actx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	actx, trail := withRedirectTrail(actx)

	req, err := http.NewRequestWithContext(actx, http.MethodGet, target, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", p.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := p.client.Do(req)
	if err != nil {
		if last := trail.status(); last > 0 && ctx.Err() == nil {
			p.logger.Debugf("Redirect chain from %s broke (%v), keeping status %d", target, err, last)
			return last, nil
		}
		return 0, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainBytes))

	if isRedirect(resp.StatusCode) && trail.count() > p.maxRedirects {
		p.logger.Debugf("Redirect limit reached for %s, recording %d", target, resp.StatusCode)
	}
	return resp.StatusCode, nil
}

// configureProxy points the transport at an HTTP(S) proxy or a SOCKS5
// dialer. An empty value keeps ProxyFromEnvironment.
func configureProxy(transport *http.Transport, raw string, timeout time.Duration) error {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return &models.ConfigurationError{Field: "http.proxy", Value: raw, Reason: err.Error()}
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		transport.Proxy = http.ProxyURL(u)
	case "socks5", "socks5h":
		var auth *xproxy.Auth
		if u.User != nil {
			pass, _ := u.User.Password()
			auth = &xproxy.Auth{User: u.User.Username(), Password: pass}
		}
		dialer, err := xproxy.SOCKS5("tcp", u.Host, auth, &net.Dialer{Timeout: timeout})
		if err != nil {
			return &models.ConfigurationError{Field: "http.proxy", Value: raw, Reason: err.Error()}
		}
		transport.Proxy = nil
		if cd, ok := dialer.(xproxy.ContextDialer); ok {
			transport.DialContext = cd.DialContext
		} else {
			transport.DialContext = func(ctx context.Context, network, address string) (net.Conn, error) {
				return dialer.Dial(network, address)
			}
		}
	default:
		return &models.ConfigurationError{Field: "http.proxy", Value: raw, Reason: "unsupported proxy scheme"}
	}
	return nil
}

func cleanHost(h string) string {
	h = strings.TrimSpace(h)
	if i := strings.Index(h, "://"); i >= 0 {
		h = h[i+3:]
	}
	if i := strings.IndexAny(h, "/?#"); i >= 0 {
		h = h[:i]
	}
	return strings.ToLower(strings.TrimSuffix(h, "."))
}
