package permutations

import (
	"slices"
	"strings"
	"testing"

	"github.com/bl4ck0w1/subprobe/internal/testutil"
	"github.com/bl4ck0w1/subprobe/pkg/models"
)

func TestGeneratePreservesOrderAndDuplicates(t *testing.T) {
	labels := []string{"www", "api", "www", "Mail", "dev."}
	got := slices.Collect(Generate("example.com", labels))

	want := []string{"www.example.com", "api.example.com", "www.example.com", "mail.example.com", "dev.example.com"}
	testutil.AssertEqual(t, strings.Join(got, ","), strings.Join(want, ","), "candidates")
	testutil.AssertEqual(t, len(got), Count(labels), "count")
}

func TestGenerateSuffix(t *testing.T) {
	tests := []struct {
		name   string
		base   string
		labels []string
	}{
		{"empty", "example.com", nil},
		{"single", "example.org", []string{"a"}},
		{"many", "sub.example.net", []string{"a", "b", "c", "a", "b"}},
		{"unicode label", "example.com", []string{"bücher"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := 0
			for c := range Generate(tt.base, tt.labels) {
				testutil.AssertTrue(t, strings.HasSuffix(c, "."+tt.base), c+" suffix")
				n++
			}
			testutil.AssertEqual(t, n, len(tt.labels), "candidate count")
		})
	}
}

func TestGenerateIsRestartable(t *testing.T) {
	seq := Generate("example.com", []string{"x", "y", "z"})
	first := slices.Collect(seq)
	second := slices.Collect(seq)
	testutil.AssertTrue(t, slices.Equal(first, second), "re-iteration yields the same sequence")
}

func TestGenerateStopsEarly(t *testing.T) {
	n := 0
	for range Generate("example.com", []string{"a", "b", "c", "d"}) {
		n++
		if n == 2 {
			break
		}
	}
	testutil.AssertEqual(t, n, 2, "early break")
}

func TestGenerateIDNLabel(t *testing.T) {
	got := slices.Collect(Generate("example.com", []string{"bücher"}))
	testutil.AssertEqual(t, got[0], "xn--bcher-kva.example.com", "punycode label")
}

func TestNormalizeDomain(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"Example.COM", "example.com", false},
		{"  example.com.  ", "example.com", false},
		{"https://example.com/path", "example.com", false},
		{"bücher.de", "xn--bcher-kva.de", false},
		{"", "", true},
		{"localhost", "", true},
		{"co.uk", "", true},
		{"com", "", true},
		{"exa mple.com", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormalizeDomain(tt.in)
			if tt.wantErr {
				testutil.AssertErrorAs[*models.ConfigurationError](t, err, "normalize")
				return
			}
			testutil.AssertNoError(t, err, "normalize")
			testutil.AssertEqual(t, got, tt.want, "domain")
		})
	}
}
