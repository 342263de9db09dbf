package ctlogs

import (
	"slices"
	"strings"

	"github.com/bl4ck0w1/subprobe/pkg/models"
	ctx509 "github.com/google/certificate-transparency-go/x509"
	"golang.org/x/net/idna"
)

var namePolicy = idna.New(idna.MapForLookup(), idna.RemoveLeadingDots(true))

// nameSet accumulates in-scope hostnames for one target domain.
type nameSet struct {
	domain string
	seen   map[string]struct{}
}

func newNameSet(domain string) *nameSet {
	return &nameSet{
		domain: strings.TrimSuffix(strings.ToLower(domain), "."),
		seen:   make(map[string]struct{}),
	}
}

// addField splits a certificate name field on newlines and keeps each
// entry that is a proper subdomain of the target.
func (s *nameSet) addField(field string) int {
	added := 0
	for _, raw := range strings.Split(field, "\n") {
		if s.add(raw) {
			added++
		}
	}
	return added
}

func (s *nameSet) add(raw string) bool {
	host, ok := normalizeName(raw)
	if !ok || host == s.domain || !models.InScope(host, s.domain) {
		return false
	}
	if _, dup := s.seen[host]; dup {
		return false
	}
	s.seen[host] = struct{}{}
	return true
}

func (s *nameSet) merge(names []string) {
	for _, n := range names {
		s.add(n)
	}
}

func (s *nameSet) sorted() []string {
	out := make([]string, 0, len(s.seen))
	for h := range s.seen {
		out = append(out, h)
	}
	slices.Sort(out)
	return out
}

func normalizeName(raw string) (string, bool) {
	s := strings.ToLower(strings.TrimSpace(raw))
	for strings.HasPrefix(s, "*.") {
		s = strings.TrimPrefix(s, "*.")
	}
	s = strings.TrimSuffix(s, ".")
	if s == "" || strings.Contains(s, "*") {
		return "", false
	}
	if ascii, err := namePolicy.ToASCII(s); err == nil {
		s = strings.ToLower(ascii)
	}
	if !models.IsValidHostname(s) {
		return "", false
	}
	return s, true
}

func extractDomainsFromCert(cert *ctx509.Certificate) []string {
	if cert == nil {
		return nil
	}
	out := make([]string, 0, 1+len(cert.DNSNames))
	if cn := strings.TrimSpace(cert.Subject.CommonName); cn != "" {
		out = append(out, cn)
	}
	for _, d := range cert.DNSNames {
		if d = strings.TrimSpace(d); d != "" {
			out = append(out, d)
		}
	}
	return out
}
