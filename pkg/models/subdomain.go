package models

import (
	"regexp"
	"slices"
	"strings"
)

var domainLabelRE = regexp.MustCompile(`^[a-zA-Z0-9\-_]+$`)

type ResolvedHost struct {
	Host      string   `json:"host" yaml:"host"`
	Addresses []string `json:"ips" yaml:"ips"`
}

// NewResolvedHost returns nil when addrs holds no usable address.
func NewResolvedHost(host string, addrs []string) *ResolvedHost {
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	if len(out) == 0 {
		return nil
	}
	slices.Sort(out)
	return &ResolvedHost{Host: strings.ToLower(host), Addresses: slices.Compact(out)}
}

type LiveService struct {
	Host       string   `json:"host" yaml:"host"`
	URL        string   `json:"url" yaml:"url"`
	StatusCode int      `json:"status_code" yaml:"status_code"`
	Addresses  []string `json:"ips,omitempty" yaml:"ips,omitempty"`
}

func (s LiveService) Scheme() string {
	if i := strings.Index(s.URL, "://"); i > 0 {
		return s.URL[:i]
	}
	return ""
}

type DNSOnlyHost struct {
	Host      string   `json:"host" yaml:"host"`
	Addresses []string `json:"ips" yaml:"ips"`
}

type Preset struct {
	ID        string `json:"id" yaml:"id"`
	Name      string `json:"name" yaml:"name"`
	Filename  string `json:"filename,omitempty" yaml:"filename,omitempty"`
	Available bool   `json:"available" yaml:"available"`
	Entries   int    `json:"entries,omitempty" yaml:"entries,omitempty"`
	Checksum  string `json:"checksum,omitempty" yaml:"checksum,omitempty"`
}

func SortResolved(hosts []ResolvedHost) {
	slices.SortFunc(hosts, func(a, b ResolvedHost) int { return strings.Compare(a.Host, b.Host) })
}

func SortLive(live []LiveService) {
	slices.SortFunc(live, func(a, b LiveService) int { return strings.Compare(a.Host, b.Host) })
}

// IsValidHostname checks hostname shape only: total length, label length,
// allowed characters and hyphen placement.
func IsValidHostname(domain string) bool {
	domain = strings.TrimSuffix(domain, ".")
	if domain == "" || len(domain) > 253 {
		return false
	}
	parts := strings.Split(domain, ".")
	for _, part := range parts {
		if len(part) == 0 || len(part) > 63 {
			return false
		}
		if !domainLabelRE.MatchString(part) {
			return false
		}
		if part[0] == '-' || part[len(part)-1] == '-' {
			return false
		}
	}
	return true
}

// InScope reports whether host equals domain or is one of its subdomains.
func InScope(host, domain string) bool {
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	domain = strings.TrimSuffix(strings.ToLower(domain), ".")
	return host == domain || strings.HasSuffix(host, "."+domain)
}
