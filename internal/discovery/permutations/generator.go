package permutations

import (
	"iter"
	"strings"
	"unicode/utf8"

	"github.com/bl4ck0w1/subprobe/pkg/models"
	"golang.org/x/net/idna"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/text/unicode/norm"
)

var lookupProfile = idna.New(idna.MapForLookup(), idna.RemoveLeadingDots(true))

// Generate yields label + "." + baseDomain for every label, in input order
// and without removing duplicates. The sequence is lazy and can be ranged
// over any number of times.
func Generate(baseDomain string, labels []string) iter.Seq[string] {
	base := strings.TrimSuffix(strings.ToLower(strings.TrimSpace(baseDomain)), ".")
	return func(yield func(string) bool) {
		for _, l := range labels {
			if !yield(normalizeLabel(l) + "." + base) {
				return
			}
		}
	}
}

func Count(labels []string) int {
	return len(labels)
}

func normalizeLabel(label string) string {
	s := strings.TrimSpace(label)
	s = norm.NFC.String(s)
	s = strings.Trim(s, ".")
	s = strings.ToLower(s)
	if !isASCII(s) {
		if a, err := lookupProfile.ToASCII(s); err == nil && a != "" {
			s = a
		}
	}
	return s
}

// NormalizeDomain converts a user supplied target to its lower-case ASCII
// form and rejects values that cannot be enumerated.
func NormalizeDomain(d string) (string, error) {
	raw := d
	s := strings.TrimSpace(d)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "https://"), "http://")
	if i := strings.IndexByte(s, '/'); i >= 0 {
		s = s[:i]
	}
	s = strings.Trim(s, ".")
	if s == "" {
		return "", &models.ConfigurationError{Field: "domain", Value: raw, Reason: "must not be empty"}
	}

	ascii, err := lookupProfile.ToASCII(norm.NFC.String(s))
	if err != nil {
		return "", &models.ConfigurationError{Field: "domain", Value: raw, Reason: "not a valid IDNA name: " + err.Error()}
	}
	ascii = strings.ToLower(ascii)

	if !models.IsValidHostname(ascii) || !strings.Contains(ascii, ".") {
		return "", &models.ConfigurationError{Field: "domain", Value: raw, Reason: "not a valid hostname"}
	}
	if ps, _ := publicsuffix.PublicSuffix(ascii); ps == ascii {
		return "", &models.ConfigurationError{Field: "domain", Value: raw, Reason: "is a public suffix"}
	}
	return ascii, nil
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}
