package orchestration

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/bl4ck0w1/subprobe/internal/discovery/ctlogs"
	"github.com/bl4ck0w1/subprobe/internal/discovery/permutations"
	"github.com/bl4ck0w1/subprobe/internal/discovery/wordlists"
	"github.com/bl4ck0w1/subprobe/internal/validation/dns"
	httpprobe "github.com/bl4ck0w1/subprobe/internal/validation/http"
	"github.com/bl4ck0w1/subprobe/pkg/models"
	"github.com/bl4ck0w1/subprobe/pkg/utils"
	"github.com/sirupsen/logrus"
)

// Engine runs the enumeration, passive, probe and validation pipelines.
// It holds configuration only; every call builds its own pools and result
// collections.
type Engine struct {
	cfg       models.Config
	wordlists *wordlists.Source
	collector *ctlogs.Collector
	lookuper  dns.Lookuper
	dial      httpprobe.DialFunc
	logger    *logrus.Logger
	metrics   *utils.MetricsCollector
}

type Option func(*Engine)

// WithLookuper replaces the DNS wire lookup of every resolver the engine
// builds.
func WithLookuper(l dns.Lookuper) Option {
	return func(e *Engine) { e.lookuper = l }
}

// WithDialContext routes the liveness probe's connections through dial.
func WithDialContext(dial httpprobe.DialFunc) Option {
	return func(e *Engine) { e.dial = dial }
}

func WithWordlists(s *wordlists.Source) Option {
	return func(e *Engine) { e.wordlists = s }
}

// ProgressFunc receives completed/total counts for a pipeline stage
// ("resolve" or "probe"). Calls for one stage are serialized.
type ProgressFunc func(stage string, done, total int)

// Zero Concurrency or Timeout in a request keeps the configured value.
type EnumerateRequest struct {
	Domain      string
	Wordlist    string
	Passive     bool
	Probe       bool
	Concurrency int
	Timeout     time.Duration
	Progress    ProgressFunc
}

type ProbeRequest struct {
	Hosts       []string
	Concurrency int
	Timeout     time.Duration
	Progress    ProgressFunc
}

type ValidateRequest struct {
	Hosts       []string
	Concurrency int
	Timeout     time.Duration
	Progress    ProgressFunc
}

const (
	stageResolve = "resolve"
	stageProbe   = "probe"
)

func NewEngine(cfg *models.Config, logger *logrus.Logger, metrics *utils.MetricsCollector, opts ...Option) (*Engine, error) {
	if logger == nil {
		logger = logrus.New()
	}
	if cfg == nil {
		cfg = models.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:     *cfg,
		logger:  logger,
		metrics: metrics,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.wordlists == nil {
		e.wordlists = wordlists.NewSource(cfg.Wordlists.Dir, logger)
	}
	e.collector = ctlogs.NewCollector(cfg.Passive, logger, metrics)
	return e, nil
}

func (e *Engine) Presets() []models.Preset {
	return e.wordlists.Presets()
}

// Enumerate resolves every wordlist candidate of req.Domain, optionally
// adding passive hostnames as extra candidates and probing the resolved
// hosts. On cancellation the partial result is returned with ctx.Err().
func (e *Engine) Enumerate(ctx context.Context, req EnumerateRequest) (*models.EnumerationResult, error) {
	start := time.Now()
	defer e.metrics.ObserveDuration("enumerate", start)

	domain, err := permutations.NormalizeDomain(req.Domain)
	if err != nil {
		return nil, err
	}
	resolver, err := e.newResolver(req.Concurrency, req.Timeout)
	if err != nil {
		return nil, err
	}
	var prober *httpprobe.Prober
	if req.Probe {
		if prober, err = e.newProber(req.Concurrency, req.Timeout); err != nil {
			return nil, err
		}
	}

	wordlist := req.Wordlist
	if wordlist == "" {
		wordlist = wordlists.DefaultPreset
	}
	labels, err := e.wordlists.Load(wordlist)
	if err != nil {
		return nil, err
	}

	log := e.logger.WithFields(logrus.Fields{"domain": domain, "wordlist": wordlist})
	log.Infof("Starting enumeration with %d labels", len(labels))

	result := &models.EnumerationResult{
		Domain:   domain,
		Wordlist: wordlist,
	}

	if req.Passive {
		names, perr := e.collector.Collect(ctx, domain)
		if perr != nil {
			log.Warnf("Passive lookup failed, continuing with wordlist only: %v", perr)
		}
		result.Passive = names
	}

	// Elapsed covers generation onward; the passive lookup is excluded.
	genStart := time.Now()
	result.StartTime = genStart
	candidates, total := MergeCandidates(domain, labels, result.Passive)
	out, err := resolver.Resolve(ctx, candidates, dns.Hooks{
		Total:      total,
		OnProgress: progressLogger(log, stageResolve, req.Progress),
	})
	result.Subdomains = out.Hosts
	models.SortResolved(result.Subdomains)

	if prober != nil && err == nil {
		hosts := make([]string, 0, len(out.Hosts))
		for _, h := range out.Hosts {
			hosts = append(hosts, h.Host)
		}
		var pout httpprobe.ProbeOutput
		pout, err = prober.Probe(ctx, hosts, httpprobe.Hooks{OnProgress: progressLogger(log, stageProbe, req.Progress)})
		result.Live, _ = splitValidation(out.Hosts, pout.Live)
		models.SortLive(result.Live)
	}

	result.EndTime = time.Now()
	result.Summary = Summarize(total, result.Subdomains, result.Live, result.Passive, result.EndTime.Sub(genStart))

	log.WithFields(logrus.Fields{
		"candidates": result.Summary.TotalCandidates,
		"resolved":   result.Summary.ResolvedCount,
		"live":       result.Summary.LiveCount,
		"elapsed":    utils.HumanizeDuration(result.EndTime.Sub(genStart)),
	}).Info("Enumeration completed")

	return result, err
}

// Passive lists the certificate-transparency subdomains of domain. Upstream
// failures are reported in the result, not as an error.
func (e *Engine) Passive(ctx context.Context, domain string) (*models.PassiveResult, error) {
	defer e.metrics.ObserveDuration("passive", time.Now())

	normalized, err := permutations.NormalizeDomain(domain)
	if err != nil {
		return nil, err
	}

	names, err := e.collector.Collect(ctx, normalized)
	result := &models.PassiveResult{
		Domain:     normalized,
		Subdomains: names,
		Count:      len(names),
	}
	if result.Subdomains == nil {
		result.Subdomains = []string{}
	}
	if err != nil {
		var lookupErr *models.PassiveLookupError
		if !errors.As(err, &lookupErr) {
			return result, err
		}
		e.logger.Warnf("Passive lookup for %s failed: %v", normalized, err)
		result.Error = lookupErr.Error()
	}
	return result, nil
}

// Probe checks the web liveness of the given hosts without resolving them
// first.
func (e *Engine) Probe(ctx context.Context, req ProbeRequest) (*models.ProbeResult, error) {
	start := time.Now()
	defer e.metrics.ObserveDuration("probe", start)

	hosts, err := cleanHosts(req.Hosts)
	if err != nil {
		return nil, err
	}
	prober, err := e.newProber(req.Concurrency, req.Timeout)
	if err != nil {
		return nil, err
	}

	log := e.logger.WithField("hosts", len(hosts))
	log.Info("Starting liveness probing")

	out, err := prober.Probe(ctx, hosts, httpprobe.Hooks{OnProgress: progressLogger(log, stageProbe, req.Progress)})
	models.SortLive(out.Live)

	return &models.ProbeResult{
		Live:    out.Live,
		Summary: Summarize(len(hosts), nil, out.Live, nil, time.Since(start)),
	}, err
}

// Validate resolves the given hosts, probes the ones that resolved and
// splits them into live web services and DNS-only hosts.
func (e *Engine) Validate(ctx context.Context, req ValidateRequest) (*models.ValidationResult, error) {
	start := time.Now()
	defer e.metrics.ObserveDuration("validate", start)

	hosts, err := cleanHosts(req.Hosts)
	if err != nil {
		return nil, err
	}
	resolver, err := e.newResolver(req.Concurrency, req.Timeout)
	if err != nil {
		return nil, err
	}
	prober, err := e.newProber(req.Concurrency, req.Timeout)
	if err != nil {
		return nil, err
	}

	log := e.logger.WithField("hosts", len(hosts))
	log.Info("Starting validation")

	resolved, err := resolver.Resolve(ctx, slices.Values(hosts), dns.Hooks{
		Total:      len(hosts),
		OnProgress: progressLogger(log, stageResolve, req.Progress),
	})

	var live []models.LiveService
	if err == nil && len(resolved.Hosts) > 0 {
		names := make([]string, 0, len(resolved.Hosts))
		for _, h := range resolved.Hosts {
			names = append(names, h.Host)
		}
		var out httpprobe.ProbeOutput
		out, err = prober.Probe(ctx, names, httpprobe.Hooks{OnProgress: progressLogger(log, stageProbe, req.Progress)})
		live = out.Live
	}

	web, dnsOnly := splitValidation(resolved.Hosts, live)
	models.SortLive(web)
	slices.SortFunc(dnsOnly, func(a, b models.DNSOnlyHost) int { return strings.Compare(a.Host, b.Host) })

	result := &models.ValidationResult{
		LiveWebServices: web,
		DNSOnly:         dnsOnly,
		Summary: models.ValidationSummary{
			TotalSubdomains: len(hosts),
			AliveDNS:        len(resolved.Hosts),
			LiveCount:       len(web),
			DNSOnlyCount:    len(dnsOnly),
			ElapsedSeconds:  time.Since(start).Seconds(),
		},
	}

	log.WithFields(logrus.Fields{
		"alive_dns": result.Summary.AliveDNS,
		"live":      result.Summary.LiveCount,
		"dns_only":  result.Summary.DNSOnlyCount,
	}).Info("Validation completed")

	return result, err
}

func (e *Engine) newResolver(concurrency int, timeout time.Duration) (*dns.Resolver, error) {
	cfg := e.cfg.DNS
	if concurrency != 0 {
		cfg.Concurrency = concurrency
	}
	if timeout != 0 {
		cfg.Timeout = timeout
	}
	r, err := dns.NewResolver(cfg, e.logger, e.metrics)
	if err != nil {
		return nil, err
	}
	if e.lookuper != nil {
		r = r.WithLookuper(e.lookuper)
	}
	return r, nil
}

func (e *Engine) newProber(concurrency int, timeout time.Duration) (*httpprobe.Prober, error) {
	cfg := e.cfg.HTTP
	if concurrency != 0 {
		cfg.Concurrency = concurrency
	}
	if timeout != 0 {
		cfg.Timeout = timeout
	}
	p, err := httpprobe.NewProber(cfg, e.logger, e.metrics)
	if err != nil {
		return nil, err
	}
	if e.dial != nil {
		p = p.WithDialContext(e.dial)
	}
	return p, nil
}

// cleanHosts lower-cases and deduplicates the input, dropping names that
// are not hostnames.
func cleanHosts(in []string) ([]string, error) {
	var hosts []string
	for _, h := range utils.DedupeFold(in) {
		h = strings.TrimSuffix(h, ".")
		if !models.IsValidHostname(h) {
			continue
		}
		hosts = append(hosts, h)
	}
	if len(hosts) == 0 {
		return nil, &models.ConfigurationError{Field: "hosts", Value: fmt.Sprint(len(in)), Reason: "no valid hostnames given"}
	}
	return hosts, nil
}

func progressLogger(log *logrus.Entry, stage string, fn ProgressFunc) func(done, total int) {
	return func(done, total int) {
		log.Debugf("%s progress: %d/%d", stage, done, total)
		if fn != nil {
			fn(stage, done, total)
		}
	}
}
