package models

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

const (
	ReportFormatTXT  = "txt"
	ReportFormatCSV  = "csv"
	ReportFormatJSON = "json"
	ReportFormatYAML = "yaml"

	ReportKindEnumeration = "enumerate"
	ReportKindPassive     = "passive"
	ReportKindProbe       = "probe"
	ReportKindValidation  = "validate"
)

var (
	allowedFormats = map[string]bool{ReportFormatTXT: true, ReportFormatCSV: true, ReportFormatJSON: true, ReportFormatYAML: true}

	filenameSanitizer = regexp.MustCompile(`[^\w\-.]+`)
)

// Report is what the CLI hands to a writer: one pipeline result plus the
// metadata needed to name the output file.
type Report struct {
	Kind        string
	Target      string
	Format      string
	GeneratedAt time.Time
	Data        any
}

func ParseFormat(s string) (string, error) {
	f := strings.ToLower(strings.TrimSpace(s))
	if f == "yml" {
		f = ReportFormatYAML
	}
	if f == "" {
		f = ReportFormatJSON
	}
	if !allowedFormats[f] {
		return "", &ConfigurationError{Field: "format", Value: s, Reason: "must be one of json|yaml|csv|txt"}
	}
	return f, nil
}

func (r *Report) GenerateFileName() string {
	tgt := r.Target
	if tgt == "" {
		tgt = "unknown"
	}
	tgt = strings.ToLower(filenameSanitizer.ReplaceAllString(tgt, "_"))

	kind := r.Kind
	if kind == "" {
		kind = ReportKindEnumeration
	}

	ext := r.Format
	if ext == "" {
		ext = ReportFormatJSON
	}

	ts := r.GeneratedAt
	if ts.IsZero() {
		ts = time.Now()
	}

	return fmt.Sprintf("subprobe_%s_%s_%s.%s", tgt, kind, ts.Format("20060102_150405"), ext)
}
