package reporting

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bl4ck0w1/subprobe/internal/testutil"
	"github.com/bl4ck0w1/subprobe/pkg/models"
	"github.com/bl4ck0w1/subprobe/pkg/utils"
	"gopkg.in/yaml.v3"
)

func newTestGenerator(t *testing.T, cfg ReportConfig) *ReportGenerator {
	t.Helper()
	rg, err := NewReportGenerator(cfg, utils.NopLogger())
	testutil.AssertNoError(t, err, "NewReportGenerator")
	return rg
}

func sampleEnumeration() *models.EnumerationResult {
	return &models.EnumerationResult{
		Domain:   "example.com",
		Wordlist: "top1k",
		Subdomains: []models.ResolvedHost{
			{Host: "api.example.com", Addresses: []string{"192.0.2.2"}},
			{Host: "www.example.com", Addresses: []string{"192.0.2.1", "2001:db8::1"}},
		},
		Live: []models.LiveService{
			{Host: "www.example.com", URL: "https://www.example.com", StatusCode: 200},
		},
		Summary: models.EnumerationSummary{TotalCandidates: 3, ResolvedCount: 2, LiveCount: 1, ElapsedSeconds: 0.5},
	}
}

func sampleValidation() *models.ValidationResult {
	return &models.ValidationResult{
		LiveWebServices: []models.LiveService{
			{Host: "web.example.com", URL: "http://web.example.com", StatusCode: 301, Addresses: []string{"192.0.2.10"}},
		},
		DNSOnly: []models.DNSOnlyHost{{Host: "mail.example.com", Addresses: []string{"192.0.2.20"}}},
		Summary: models.ValidationSummary{TotalSubdomains: 3, AliveDNS: 2, LiveCount: 1, DNSOnlyCount: 1},
	}
}

func TestJSONUsesWireNames(t *testing.T) {
	rg := newTestGenerator(t, ReportConfig{})
	data, err := rg.Render(&models.Report{Kind: models.ReportKindEnumeration, Format: "json", Data: sampleEnumeration()})
	testutil.AssertNoError(t, err, "render")

	var decoded map[string]any
	testutil.AssertNoError(t, json.Unmarshal(data, &decoded), "decode")
	subs, ok := decoded["subdomains"].([]any)
	testutil.AssertTrue(t, ok, "subdomains array")
	first := subs[0].(map[string]any)
	testutil.AssertEqual(t, first["host"], "api.example.com", "host key")
	_, hasIPs := first["ips"]
	testutil.AssertTrue(t, hasIPs, "ips key")

	summary := decoded["summary"].(map[string]any)
	testutil.AssertEqual(t, summary["resolved_count"], float64(2), "resolved_count")
	testutil.AssertEqual(t, summary["elapsed_seconds"], 0.5, "elapsed_seconds")
}

func TestYAMLRender(t *testing.T) {
	rg := newTestGenerator(t, ReportConfig{})
	data, err := rg.Render(&models.Report{Kind: models.ReportKindProbe, Format: "yaml", Data: &models.ProbeResult{
		Live: []models.LiveService{{Host: "example.com", URL: "https://example.com", StatusCode: 200}},
	}})
	testutil.AssertNoError(t, err, "render")

	var decoded struct {
		Live []struct {
			URL        string `yaml:"url"`
			StatusCode int    `yaml:"status_code"`
		} `yaml:"live"`
	}
	testutil.AssertNoError(t, yaml.Unmarshal(data, &decoded), "decode")
	testutil.AssertLen(t, decoded.Live, 1, "live")
	testutil.AssertEqual(t, decoded.Live[0].URL, "https://example.com", "url")
	testutil.AssertEqual(t, decoded.Live[0].StatusCode, 200, "status")
}

func TestCSVRows(t *testing.T) {
	tests := []struct {
		name string
		kind string
		data any
		want string
	}{
		{
			name: "enumeration",
			kind: models.ReportKindEnumeration,
			data: sampleEnumeration(),
			want: "host,ips,url,status_code\n" +
				"api.example.com,192.0.2.2,,\n" +
				"www.example.com,192.0.2.1;2001:db8::1,https://www.example.com,200\n",
		},
		{
			name: "passive",
			kind: models.ReportKindPassive,
			data: &models.PassiveResult{Domain: "example.com", Subdomains: []string{"a.example.com", "b.example.com"}, Count: 2},
			want: "host\na.example.com\nb.example.com\n",
		},
		{
			name: "validation",
			kind: models.ReportKindValidation,
			data: sampleValidation(),
			want: "host,ips,url,status_code,state\n" +
				"web.example.com,192.0.2.10,http://web.example.com,301,live\n" +
				"mail.example.com,192.0.2.20,,,dns_only\n",
		},
	}

	rg := newTestGenerator(t, ReportConfig{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := rg.Render(&models.Report{Kind: tt.kind, Format: "csv", Data: tt.data})
			testutil.AssertNoError(t, err, "render")
			testutil.AssertEqual(t, string(data), tt.want, "csv")
		})
	}
}

func TestCSVRejectsUnknownType(t *testing.T) {
	rg := newTestGenerator(t, ReportConfig{})
	_, err := rg.Render(&models.Report{Format: "csv", Data: "not a result"})
	testutil.AssertError(t, err, "unsupported type")
}

func TestTXTIsReusableHostList(t *testing.T) {
	rg := newTestGenerator(t, ReportConfig{})
	data, err := rg.Render(&models.Report{Kind: models.ReportKindEnumeration, Format: "txt", Data: sampleEnumeration()})
	testutil.AssertNoError(t, err, "render")

	hosts, err := utils.ReadLines(bytes.NewReader(data))
	testutil.AssertNoError(t, err, "read back")
	testutil.AssertEqual(t, strings.Join(hosts, ","), "api.example.com,www.example.com", "hosts")
}

func TestTXTValidation(t *testing.T) {
	rg := newTestGenerator(t, ReportConfig{})
	var buf bytes.Buffer
	err := rg.Write(&buf, &models.Report{Kind: models.ReportKindValidation, Format: "txt", Data: sampleValidation()})
	testutil.AssertNoError(t, err, "write")

	out := buf.String()
	testutil.AssertContains(t, out, "http://web.example.com [301] 192.0.2.10", "live line")
	testutil.AssertContains(t, out, "# dns-only\nmail.example.com 192.0.2.20", "dns-only section")
}

func TestTXTPassiveError(t *testing.T) {
	rg := newTestGenerator(t, ReportConfig{})
	data, err := rg.Render(&models.Report{Kind: models.ReportKindPassive, Format: "txt",
		Data: &models.PassiveResult{Domain: "example.com", Subdomains: []string{}, Error: "upstream down"}})
	testutil.AssertNoError(t, err, "render")
	testutil.AssertContains(t, string(data), "# error: upstream down", "error comment")
}

func TestRenderUnsupportedFormat(t *testing.T) {
	rg := newTestGenerator(t, ReportConfig{})
	_, err := rg.Render(&models.Report{Format: "xml", Data: sampleEnumeration()})
	testutil.AssertErrorAs[*models.ConfigurationError](t, err, "format")
}

func TestNewReportGeneratorRejectsDefaultFormat(t *testing.T) {
	_, err := NewReportGenerator(ReportConfig{DefaultFormat: "pdf"}, nil)
	testutil.AssertErrorAs[*models.ConfigurationError](t, err, "format")
}

func TestExportGeneratedName(t *testing.T) {
	dir := t.TempDir()
	rg := newTestGenerator(t, ReportConfig{OutputDir: dir})

	report := &models.Report{
		Kind:        models.ReportKindEnumeration,
		Target:      "example.com",
		Format:      "json",
		GeneratedAt: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
		Data:        sampleEnumeration(),
	}
	path, err := rg.Export(report, "")
	testutil.AssertNoError(t, err, "export")
	testutil.AssertEqual(t, path, filepath.Join(dir, "subprobe_example.com_enumerate_20250102_030405.json"), "path")
	testutil.AssertTrue(t, utils.FileExists(path), "file written")
}

func TestExportCompressed(t *testing.T) {
	dir := t.TempDir()
	rg := newTestGenerator(t, ReportConfig{OutputDir: dir, CompressReports: true})

	target := filepath.Join(dir, "out", "hosts.txt")
	path, err := rg.Export(&models.Report{Kind: models.ReportKindEnumeration, Format: "txt", Data: sampleEnumeration()}, target)
	testutil.AssertNoError(t, err, "export")
	testutil.AssertEqual(t, path, target+".gz", "compressed path")
	testutil.AssertFalse(t, utils.FileExists(target), "plain file removed")

	f, err := os.Open(path)
	testutil.AssertNoError(t, err, "open")
	defer f.Close()
	zr, err := gzip.NewReader(f)
	testutil.AssertNoError(t, err, "gzip reader")
	body, err := io.ReadAll(zr)
	testutil.AssertNoError(t, err, "read")
	testutil.AssertContains(t, string(body), "www.example.com", "content")
}

func TestSupportedFormats(t *testing.T) {
	rg := newTestGenerator(t, ReportConfig{})
	testutil.AssertEqual(t, strings.Join(rg.SupportedFormats(), ","), "csv,json,txt,yaml", "formats")
}
