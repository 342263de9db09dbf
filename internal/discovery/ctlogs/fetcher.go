package ctlogs

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/bl4ck0w1/subprobe/pkg/models"
	ct "github.com/google/certificate-transparency-go"
	"github.com/google/certificate-transparency-go/client"
	"github.com/google/certificate-transparency-go/jsonclient"
	ctx509 "github.com/google/certificate-transparency-go/x509"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const maxParallelLogs = 4

// Fetcher reads the newest entries of a set of CT logs directly and
// extracts certificate names from them.
type Fetcher struct {
	clients   map[string]*client.LogClient
	logs      []models.CTLog
	tailSize  int64
	rateLimit *rate.Limiter
	logger    *logrus.Logger
	mu        sync.RWMutex
}

func NewFetcher(cfg models.CTLogsConfig, httpClient *http.Client, userAgent string, logger *logrus.Logger) *Fetcher {
	if logger == nil {
		logger = logrus.New()
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	tail := cfg.TailSize
	if tail <= 0 {
		tail = 256
	}

	f := &Fetcher{
		clients:   make(map[string]*client.LogClient),
		tailSize:  tail,
		rateLimit: rate.NewLimiter(rate.Every(100*time.Millisecond), 10),
		logger:    logger,
	}

	for _, u := range cfg.LogURLs {
		if err := f.AddLog(models.CTLog{URL: u}, httpClient, userAgent); err != nil {
			f.logger.Warnf("Failed to initialize CT log client for %s: %v", u, err)
		}
	}
	return f
}

func (f *Fetcher) AddLog(lg models.CTLog, httpClient *http.Client, userAgent string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	lc, err := client.New(strings.TrimSuffix(lg.URL, "/"), httpClient, jsonclient.Options{UserAgent: userAgent})
	if err != nil {
		return fmt.Errorf("failed to create CT log client: %w", err)
	}
	f.clients[lg.URL] = lc
	f.logs = append(f.logs, lg)
	return nil
}

func (f *Fetcher) Logs() []models.CTLog {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]models.CTLog, len(f.logs))
	copy(out, f.logs)
	return out
}

// Tail returns the in-scope names found in the last tailSize entries of
// every configured log. A log that fails is logged and skipped.
func (f *Fetcher) Tail(ctx context.Context, domain string) ([]string, error) {
	f.mu.RLock()
	clients := make(map[string]*client.LogClient, len(f.clients))
	for u, lc := range f.clients {
		clients[u] = lc
	}
	f.mu.RUnlock()

	set := newNameSet(domain)
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelLogs)
	for logURL, lc := range clients {
		g.Go(func() error {
			entries, err := f.tailLog(gctx, lc, logURL, domain)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				f.logger.Warnf("Failed to tail CT log %s: %v", logURL, err)
				return nil
			}
			mu.Lock()
			for _, e := range entries {
				set.merge(e.Names)
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return set.sorted(), nil
}

func (f *Fetcher) tailLog(ctx context.Context, lc *client.LogClient, logURL, domain string) ([]models.CTLogEntry, error) {
	if err := f.rateLimit.Wait(ctx); err != nil {
		return nil, err
	}
	sth, err := lc.GetSTH(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get STH: %w", err)
	}
	if sth.TreeSize == 0 {
		return nil, nil
	}

	end := int64(sth.TreeSize) - 1
	start := end - f.tailSize + 1
	if start < 0 {
		start = 0
	}

	var out []models.CTLogEntry
	for start <= end {
		if err := f.rateLimit.Wait(ctx); err != nil {
			return out, err
		}
		batch, err := lc.GetEntries(ctx, start, end)
		if err != nil {
			return out, fmt.Errorf("failed to get entries %d-%d: %w", start, end, err)
		}
		if len(batch) == 0 {
			break
		}
		for _, le := range batch {
			if e := processEntry(le, logURL, domain); e != nil {
				out = append(out, *e)
			}
		}
		start += int64(len(batch))
	}

	f.logger.Debugf("CT log %s: %d matching entries in the last %d", logURL, len(out), f.tailSize)
	return out, nil
}

func processEntry(entry ct.LogEntry, logURL, domain string) *models.CTLogEntry {
	var (
		cert    *ctx509.Certificate
		precert bool
	)
	switch {
	case entry.X509Cert != nil:
		cert = entry.X509Cert
	case entry.Precert != nil:
		cert = entry.Precert.TBSCertificate
		precert = true
	default:
		return nil
	}

	set := newNameSet(domain)
	set.merge(extractDomainsFromCert(cert))
	names := set.sorted()
	if len(names) == 0 {
		return nil
	}

	e := &models.CTLogEntry{
		LogURL:  logURL,
		Index:   entry.Index,
		Names:   names,
		Precert: precert,
	}
	if te := entry.Leaf.TimestampedEntry; te != nil {
		e.Timestamp = ct.TimestampToTime(te.Timestamp)
	}
	return e
}
