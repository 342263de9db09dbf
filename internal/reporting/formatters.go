package reporting

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/bl4ck0w1/subprobe/pkg/models"
	"gopkg.in/yaml.v3"
)

type Formatter interface {
	Format(report *models.Report) ([]byte, error)
	FileExtension() string
}

type JSONFormatter struct{}

func (JSONFormatter) Format(report *models.Report) ([]byte, error) {
	data, err := json.MarshalIndent(report.Data, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal json: %w", err)
	}
	return append(data, '\n'), nil
}

func (JSONFormatter) FileExtension() string { return models.ReportFormatJSON }

type YAMLFormatter struct{}

func (YAMLFormatter) Format(report *models.Report) ([]byte, error) {
	data, err := yaml.Marshal(report.Data)
	if err != nil {
		return nil, fmt.Errorf("marshal yaml: %w", err)
	}
	return data, nil
}

func (YAMLFormatter) FileExtension() string { return models.ReportFormatYAML }

// CSVFormatter writes one row per host. Address lists are joined with ';'.
type CSVFormatter struct{}

func (CSVFormatter) Format(report *models.Report) ([]byte, error) {
	header, rows, err := csvRows(report.Data)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return nil, err
	}
	if err := w.WriteAll(rows); err != nil {
		return nil, fmt.Errorf("write csv: %w", err)
	}
	return buf.Bytes(), nil
}

func (CSVFormatter) FileExtension() string { return models.ReportFormatCSV }

func csvRows(data any) ([]string, [][]string, error) {
	switch d := data.(type) {
	case *models.EnumerationResult:
		live := make(map[string]models.LiveService, len(d.Live))
		for _, s := range d.Live {
			live[s.Host] = s
		}
		rows := make([][]string, 0, len(d.Subdomains))
		for _, h := range d.Subdomains {
			row := []string{h.Host, joinAddrs(h.Addresses), "", ""}
			if s, ok := live[h.Host]; ok {
				row[2], row[3] = s.URL, strconv.Itoa(s.StatusCode)
			}
			rows = append(rows, row)
		}
		return []string{"host", "ips", "url", "status_code"}, rows, nil

	case *models.PassiveResult:
		rows := make([][]string, 0, len(d.Subdomains))
		for _, h := range d.Subdomains {
			rows = append(rows, []string{h})
		}
		return []string{"host"}, rows, nil

	case *models.ProbeResult:
		rows := make([][]string, 0, len(d.Live))
		for _, s := range d.Live {
			rows = append(rows, []string{s.Host, s.URL, strconv.Itoa(s.StatusCode)})
		}
		return []string{"host", "url", "status_code"}, rows, nil

	case *models.ValidationResult:
		rows := make([][]string, 0, len(d.LiveWebServices)+len(d.DNSOnly))
		for _, s := range d.LiveWebServices {
			rows = append(rows, []string{s.Host, joinAddrs(s.Addresses), s.URL, strconv.Itoa(s.StatusCode), "live"})
		}
		for _, h := range d.DNSOnly {
			rows = append(rows, []string{h.Host, joinAddrs(h.Addresses), "", "", "dns_only"})
		}
		return []string{"host", "ips", "url", "status_code", "state"}, rows, nil
	}
	return nil, nil, fmt.Errorf("csv: unsupported result type %T", data)
}

func joinAddrs(addrs []string) string {
	return strings.Join(addrs, ";")
}

// TXTFormatter renders the plain-text template registered for the
// report's kind.
type TXTFormatter struct {
	templates *TemplateManager
}

func (f TXTFormatter) Format(report *models.Report) ([]byte, error) {
	var buf bytes.Buffer
	if err := f.templates.Render(&buf, kindTemplate(report.Kind), report.Data); err != nil {
		return nil, fmt.Errorf("render txt: %w", err)
	}
	return buf.Bytes(), nil
}

func (TXTFormatter) FileExtension() string { return models.ReportFormatTXT }
