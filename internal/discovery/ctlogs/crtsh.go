package ctlogs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bl4ck0w1/subprobe/pkg/models"
	"github.com/bl4ck0w1/subprobe/pkg/utils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	DefaultEndpoint = "https://crt.sh/"
	DefaultTimeout  = 10 * time.Second

	maxResponseBytes = 64 << 20
)

type certRecord struct {
	IssuerName string `json:"issuer_name"`
	CommonName string `json:"common_name"`
	NameValue  string `json:"name_value"`
}

// Collector gathers subdomains of a target from certificate transparency:
// one crt.sh style aggregator query plus, when configured, a direct tail
// of CT logs.
type Collector struct {
	endpoint   string
	timeout    time.Duration
	userAgent  string
	httpClient *http.Client
	limiter    *rate.Limiter
	tail       *Fetcher
	metrics    *utils.MetricsCollector
	logger     *logrus.Logger
}

func NewCollector(cfg models.PassiveConfig, logger *logrus.Logger, metrics *utils.MetricsCollector) *Collector {
	if logger == nil {
		logger = logrus.New()
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}

	c := &Collector{
		endpoint:   endpoint,
		timeout:    timeout,
		userAgent:  cfg.UserAgent,
		httpClient: &http.Client{Transport: http.DefaultTransport.(*http.Transport).Clone()},
		limiter:    rate.NewLimiter(limit, 1),
		metrics:    metrics,
		logger:     logger,
	}
	if cfg.CTLogs.Enabled && len(cfg.CTLogs.LogURLs) > 0 {
		c.tail = NewFetcher(cfg.CTLogs, &http.Client{Timeout: 30 * time.Second}, cfg.UserAgent, logger)
	}
	return c
}

// Collect returns the sorted, deduplicated subdomains of domain seen in
// certificate records. An aggregator failure yields a *models.PassiveLookupError
// together with whatever the log tail found, which is empty when the tail
// is disabled. The aggregator query and the tail share one timeout.
func (c *Collector) Collect(ctx context.Context, domain string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	set := newNameSet(domain)

	var tailNames []string
	g, gctx := errgroup.WithContext(ctx)
	if c.tail != nil {
		g.Go(func() error {
			names, err := c.tail.Tail(gctx, domain)
			if err != nil {
				c.logger.Warnf("CT log tail for %s failed: %v", domain, err)
				return nil
			}
			tailNames = names
			return nil
		})
	}

	var records []certRecord
	var lookupErr error
	g.Go(func() error {
		records, lookupErr = c.query(gctx, domain)
		return nil
	})
	_ = g.Wait()

	if lookupErr != nil {
		c.metrics.IncCounter(utils.MetricPassiveLookups, 1, prometheus.Labels{"result": "failure"})
		set.merge(tailNames)
		return set.sorted(), &models.PassiveLookupError{Domain: domain, Err: lookupErr}
	}
	c.metrics.IncCounter(utils.MetricPassiveLookups, 1, prometheus.Labels{"result": "success"})

	for _, r := range records {
		set.addField(r.NameValue)
	}
	set.merge(tailNames)

	out := set.sorted()
	c.logger.WithFields(logrus.Fields{
		"domain":  domain,
		"records": len(records),
		"names":   len(out),
	}).Info("passive lookup complete")
	return out, nil
}

func (c *Collector) query(ctx context.Context, domain string) ([]certRecord, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	u, err := c.queryURL(domain)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var records []certRecord
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&records); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return records, nil
}

func (c *Collector) queryURL(domain string) (string, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return "", fmt.Errorf("parse endpoint: %w", err)
	}
	u.RawQuery = "q=%25." + url.QueryEscape(strings.ToLower(domain)) + "&output=json"
	return u.String(), nil
}
