package models

import "time"

type EnumerationSummary struct {
	TotalCandidates int     `json:"total_candidates" yaml:"total_candidates"`
	ResolvedCount   int     `json:"resolved_count" yaml:"resolved_count"`
	LiveCount       int     `json:"live_count" yaml:"live_count"`
	PassiveCount    int     `json:"passive_count,omitempty" yaml:"passive_count,omitempty"`
	ElapsedSeconds  float64 `json:"elapsed_seconds" yaml:"elapsed_seconds"`
}

type EnumerationResult struct {
	Domain     string             `json:"domain" yaml:"domain"`
	Wordlist   string             `json:"wordlist" yaml:"wordlist"`
	Subdomains []ResolvedHost     `json:"subdomains" yaml:"subdomains"`
	Passive    []string           `json:"passive,omitempty" yaml:"passive,omitempty"`
	Live       []LiveService      `json:"live,omitempty" yaml:"live,omitempty"`
	Summary    EnumerationSummary `json:"summary" yaml:"summary"`
	StartTime  time.Time          `json:"start_time" yaml:"start_time"`
	EndTime    time.Time          `json:"end_time" yaml:"end_time"`
}

type PassiveResult struct {
	Domain     string   `json:"domain" yaml:"domain"`
	Subdomains []string `json:"subdomains" yaml:"subdomains"`
	Count      int      `json:"count" yaml:"count"`
	Error      string   `json:"error,omitempty" yaml:"error,omitempty"`
}

type ProbeResult struct {
	Live    []LiveService      `json:"live" yaml:"live"`
	Summary EnumerationSummary `json:"summary" yaml:"summary"`
}

type ValidationSummary struct {
	TotalSubdomains int     `json:"total_subdomains" yaml:"total_subdomains"`
	AliveDNS        int     `json:"alive_dns" yaml:"alive_dns"`
	LiveCount       int     `json:"live_web_services" yaml:"live_web_services"`
	DNSOnlyCount    int     `json:"dns_only" yaml:"dns_only"`
	ElapsedSeconds  float64 `json:"elapsed_seconds" yaml:"elapsed_seconds"`
}

type ValidationResult struct {
	LiveWebServices []LiveService     `json:"live_web_services" yaml:"live_web_services"`
	DNSOnly         []DNSOnlyHost     `json:"dns_only" yaml:"dns_only"`
	Summary         ValidationSummary `json:"summary" yaml:"summary"`
}
