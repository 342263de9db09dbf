package orchestration

import (
	"iter"
	"strings"
	"time"

	"github.com/bl4ck0w1/subprobe/internal/discovery/permutations"
	"github.com/bl4ck0w1/subprobe/pkg/models"
)

// Summarize builds the per-request summary. Hosts are counted by distinct
// lower-case name, so a passive host that also resolved through the
// wordlist is counted once.
func Summarize(total int, resolved []models.ResolvedHost, live []models.LiveService, passive []string, elapsed time.Duration) models.EnumerationSummary {
	hosts := make(map[string]struct{}, len(resolved))
	for _, h := range resolved {
		hosts[strings.ToLower(h.Host)] = struct{}{}
	}

	liveHosts := make(map[string]struct{}, len(live))
	for _, s := range live {
		liveHosts[strings.ToLower(s.Host)] = struct{}{}
	}

	passiveHosts := make(map[string]struct{}, len(passive))
	for _, p := range passive {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			passiveHosts[p] = struct{}{}
		}
	}

	return models.EnumerationSummary{
		TotalCandidates: total,
		ResolvedCount:   len(hosts),
		LiveCount:       len(liveHosts),
		PassiveCount:    len(passiveHosts),
		ElapsedSeconds:  elapsed.Seconds(),
	}
}

// MergeCandidates yields the wordlist candidates followed by every passive
// hostname that is not already among them. The second return value is the
// number of candidates the sequence yields.
func MergeCandidates(base string, labels, passive []string) (iter.Seq[string], int) {
	seen := make(map[string]struct{}, len(labels)+len(passive))
	for c := range permutations.Generate(base, labels) {
		seen[c] = struct{}{}
	}

	var extra []string
	for _, p := range passive {
		h := strings.ToLower(strings.TrimSuffix(strings.TrimSpace(p), "."))
		if h == "" {
			continue
		}
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		extra = append(extra, h)
	}

	seq := func(yield func(string) bool) {
		for c := range permutations.Generate(base, labels) {
			if !yield(c) {
				return
			}
		}
		for _, h := range extra {
			if !yield(h) {
				return
			}
		}
	}
	return seq, permutations.Count(labels) + len(extra)
}

// splitValidation pairs every resolved host with its probe outcome. Live
// services carry the host's addresses; the rest are DNS-only.
func splitValidation(resolved []models.ResolvedHost, live []models.LiveService) ([]models.LiveService, []models.DNSOnlyHost) {
	addrs := make(map[string][]string, len(resolved))
	for _, h := range resolved {
		addrs[h.Host] = h.Addresses
	}

	web := make([]models.LiveService, 0, len(live))
	answered := make(map[string]struct{}, len(live))
	for _, s := range live {
		s.Addresses = addrs[s.Host]
		web = append(web, s)
		answered[s.Host] = struct{}{}
	}

	dnsOnly := make([]models.DNSOnlyHost, 0, len(resolved)-len(answered))
	for _, h := range resolved {
		if _, ok := answered[h.Host]; ok {
			continue
		}
		dnsOnly = append(dnsOnly, models.DNSOnlyHost{Host: h.Host, Addresses: h.Addresses})
	}
	return web, dnsOnly
}
