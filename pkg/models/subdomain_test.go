package models

import (
	"testing"
)

func TestNewResolvedHost(t *testing.T) {
	h := NewResolvedHost("WWW.Example.com", []string{"10.0.0.2", "10.0.0.1", "10.0.0.2", " "})
	if h == nil {
		t.Fatal("expected host")
	}
	if h.Host != "www.example.com" {
		t.Errorf("host = %q", h.Host)
	}
	if len(h.Addresses) != 2 || h.Addresses[0] != "10.0.0.1" || h.Addresses[1] != "10.0.0.2" {
		t.Errorf("addresses = %v", h.Addresses)
	}

	if NewResolvedHost("empty.example.com", nil) != nil {
		t.Error("host without addresses must not exist")
	}
}

func TestIsValidHostname(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"example.com", true},
		{"a.b.example.com", true},
		{"_dmarc.example.com", true},
		{"example.com.", true},
		{"", false},
		{"-bad.example.com", false},
		{"bad-.example.com", false},
		{"exa mple.com", false},
		{"example..com", false},
		{"*.example.com", false},
	}
	for _, tt := range tests {
		if got := IsValidHostname(tt.in); got != tt.want {
			t.Errorf("IsValidHostname(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestInScope(t *testing.T) {
	tests := []struct {
		host, domain string
		want         bool
	}{
		{"www.example.com", "example.com", true},
		{"example.com", "example.com", true},
		{"WWW.EXAMPLE.COM.", "example.com", true},
		{"notexample.com", "example.com", false},
		{"example.com.evil.net", "example.com", false},
	}
	for _, tt := range tests {
		if got := InScope(tt.host, tt.domain); got != tt.want {
			t.Errorf("InScope(%q, %q) = %v, want %v", tt.host, tt.domain, got, tt.want)
		}
	}
}

func TestLiveServiceScheme(t *testing.T) {
	s := LiveService{Host: "example.com", URL: "https://example.com", StatusCode: 200}
	if s.Scheme() != "https" {
		t.Errorf("scheme = %q", s.Scheme())
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]string{"": "json", "YML": "yaml", "csv": "csv", " txt ": "txt"} {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseFormat("pdf"); !IsInputError(err) {
		t.Errorf("expected configuration error, got %v", err)
	}
}
