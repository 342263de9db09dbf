package dns

import (
	"context"
	"errors"
	"iter"
	"strings"
	"sync"
	"time"

	"github.com/bl4ck0w1/subprobe/pkg/models"
	"github.com/bl4ck0w1/subprobe/pkg/utils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Lookuper resolves one hostname to its addresses. A nil slice with a nil
// error means the name exists but has no address records.
type Lookuper interface {
	Lookup(ctx context.Context, host string) ([]string, error)
}

type LookupFunc func(ctx context.Context, host string) ([]string, error)

func (f LookupFunc) Lookup(ctx context.Context, host string) ([]string, error) { return f(ctx, host) }

// Hooks are optional per-call callbacks. OnResult fires for every newly
// resolved host in completion order. OnProgress fires at every 5% step of
// Total and once at completion; with Total unset it only fires at the end.
type Hooks struct {
	Total      int
	OnResult   func(models.ResolvedHost)
	OnProgress func(done, total int)
}

type ResolveOutput struct {
	Hosts     []models.ResolvedHost
	Attempted int
	Elapsed   time.Duration
}

type Resolver struct {
	concurrency int
	timeout     time.Duration
	qps         float64
	lookuper    Lookuper
	logger      *logrus.Logger
	metrics     *utils.MetricsCollector
}

func NewResolver(cfg models.DNSConfig, logger *logrus.Logger, metrics *utils.MetricsCollector) (*Resolver, error) {
	if logger == nil {
		logger = logrus.New()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	recordTypes, err := parseRecordTypes(cfg.RecordTypes)
	if err != nil {
		return nil, &models.ConfigurationError{Field: "dns.record_types", Reason: err.Error()}
	}

	return &Resolver{
		concurrency: cfg.Concurrency,
		timeout:     cfg.Timeout,
		qps:         cfg.RateLimit,
		lookuper:    newWireLookuper(cfg.Nameservers, recordTypes, cfg.Timeout, logger),
		logger:      logger,
		metrics:     metrics,
	}, nil
}

// WithLookuper replaces the wire lookup, mainly for tests.
func (r *Resolver) WithLookuper(l Lookuper) *Resolver {
	cp := *r
	cp.lookuper = l
	return &cp
}

func (r *Resolver) ResolveAll(ctx context.Context, candidates iter.Seq[string]) (ResolveOutput, error) {
	return r.Resolve(ctx, candidates, Hooks{})
}

// Resolve drains candidates through a pool of at most r.concurrency
// in-flight lookups. Failed, empty and timed-out lookups are dropped.
// Duplicate candidates are looked up again but reported once. When ctx is
// cancelled no new lookups start and the partial output is returned with
// ctx.Err().
func (r *Resolver) Resolve(ctx context.Context, candidates iter.Seq[string], hooks Hooks) (ResolveOutput, error) {
	start := time.Now()

	var limiter *rate.Limiter
	if r.qps > 0 {
		limiter = rate.NewLimiter(rate.Limit(r.qps), max(1, int(r.qps)))
	}

	var (
		mu        sync.Mutex
		hosts     []models.ResolvedHost
		seen      = make(map[string]struct{})
		attempted int
		done      int
		lastStep  = -1
	)

	progress := func() {
		done++
		if hooks.OnProgress == nil || hooks.Total <= 0 {
			return
		}
		step := done * 20 / hooks.Total
		if step > lastStep || done == hooks.Total {
			lastStep = step
			hooks.OnProgress(done, hooks.Total)
		}
	}

	g := new(errgroup.Group)
	g.SetLimit(r.concurrency)

	for candidate := range candidates {
		if ctx.Err() != nil {
			break
		}
		attempted++
		g.Go(func() error {
			addrs := r.lookupOne(ctx, limiter, candidate)

			mu.Lock()
			defer mu.Unlock()
			progress()

			h := models.NewResolvedHost(candidate, addrs)
			if h == nil {
				return nil
			}
			if _, dup := seen[h.Host]; dup {
				return nil
			}
			seen[h.Host] = struct{}{}
			hosts = append(hosts, *h)
			if hooks.OnResult != nil {
				hooks.OnResult(*h)
			}
			return nil
		})
	}
	_ = g.Wait()

	if hooks.OnProgress != nil && (hooks.Total <= 0 || done != hooks.Total) {
		hooks.OnProgress(done, max(done, hooks.Total))
	}

	out := ResolveOutput{
		Hosts:     hosts,
		Attempted: attempted,
		Elapsed:   time.Since(start),
	}
	r.logger.WithFields(logrus.Fields{
		"attempted": attempted,
		"resolved":  len(hosts),
		"elapsed":   utils.HumanizeDuration(out.Elapsed),
	}).Info("DNS resolution finished")

	return out, ctx.Err()
}

func (r *Resolver) lookupOne(ctx context.Context, limiter *rate.Limiter, host string) []string {
	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return nil
		}
	}

	lctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	addrs, err := r.lookuper.Lookup(lctx, host)
	if err == nil {
		addrs = validAddresses(addrs)
	}
	switch {
	case err == nil && len(addrs) > 0:
		r.metrics.IncCounter(utils.MetricDNSLookups, 1, prometheus.Labels{"result": "resolved"})
	case err == nil, errors.Is(err, ErrNoRecords):
		r.metrics.IncCounter(utils.MetricDNSLookups, 1, prometheus.Labels{"result": "empty"})
	default:
		r.metrics.IncCounter(utils.MetricDNSLookups, 1, prometheus.Labels{"result": "error"})
		r.logger.Debugf("Failed to resolve %s: %v", host, err)
		return nil
	}
	return addrs
}

// validAddresses keeps the entries that parse as IP addresses.
func validAddresses(addrs []string) []string {
	var out []string
	for _, a := range addrs {
		if a = strings.TrimSpace(a); utils.IsValidIP(a) {
			out = append(out, a)
		}
	}
	return out
}
