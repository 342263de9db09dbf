package reporting

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/bl4ck0w1/subprobe/pkg/models"
	"github.com/bl4ck0w1/subprobe/pkg/utils"
	"github.com/sirupsen/logrus"
)

type ReportConfig struct {
	OutputDir       string `yaml:"output_dir" json:"output_dir"`
	DefaultFormat   string `yaml:"default_format" json:"default_format"`
	CompressReports bool   `yaml:"compress_reports" json:"compress_reports"`
}

// ReportGenerator turns pipeline results into bytes in one of the
// registered formats and writes them to a stream or a file.
type ReportGenerator struct {
	formatters  map[string]Formatter
	templateMgr *TemplateManager
	config      ReportConfig
	logger      *logrus.Logger
	mu          sync.RWMutex
}

func NewReportGenerator(config ReportConfig, logger *logrus.Logger) (*ReportGenerator, error) {
	if logger == nil {
		logger = logrus.New()
	}
	if config.DefaultFormat == "" {
		config.DefaultFormat = models.ReportFormatJSON
	}
	if _, err := models.ParseFormat(config.DefaultFormat); err != nil {
		return nil, err
	}

	rg := &ReportGenerator{
		formatters:  make(map[string]Formatter),
		templateMgr: NewTemplateManager(),
		config:      config,
		logger:      logger,
	}
	if err := rg.templateMgr.registerDefaults(); err != nil {
		return nil, fmt.Errorf("failed to load text templates: %w", err)
	}

	rg.RegisterFormatter(models.ReportFormatTXT, TXTFormatter{templates: rg.templateMgr})
	rg.RegisterFormatter(models.ReportFormatCSV, CSVFormatter{})
	rg.RegisterFormatter(models.ReportFormatJSON, JSONFormatter{})
	rg.RegisterFormatter(models.ReportFormatYAML, YAMLFormatter{})

	return rg, nil
}

func (rg *ReportGenerator) RegisterFormatter(name string, formatter Formatter) {
	rg.mu.Lock()
	defer rg.mu.Unlock()
	rg.formatters[name] = formatter
}

func (rg *ReportGenerator) SupportedFormats() []string {
	rg.mu.RLock()
	defer rg.mu.RUnlock()
	names := make([]string, 0, len(rg.formatters))
	for k := range rg.formatters {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func (rg *ReportGenerator) Render(report *models.Report) ([]byte, error) {
	format := report.Format
	if format == "" {
		format = rg.config.DefaultFormat
	}

	rg.mu.RLock()
	formatter, exists := rg.formatters[format]
	rg.mu.RUnlock()
	if !exists {
		return nil, &models.ConfigurationError{Field: "format", Value: format, Reason: "unsupported report format"}
	}

	data, err := formatter.Format(report)
	if err != nil {
		return nil, fmt.Errorf("failed to format report: %w", err)
	}
	return data, nil
}

func (rg *ReportGenerator) Write(w io.Writer, report *models.Report) error {
	data, err := rg.Render(report)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// Export writes the report to path, or to a generated file name under the
// output directory when path is empty. It returns the path written.
func (rg *ReportGenerator) Export(report *models.Report, path string) (string, error) {
	if report.Format == "" {
		report.Format = rg.config.DefaultFormat
	}
	if report.GeneratedAt.IsZero() {
		report.GeneratedAt = time.Now()
	}

	data, err := rg.Render(report)
	if err != nil {
		return "", err
	}

	if path == "" {
		path = filepath.Join(rg.config.OutputDir, report.GenerateFileName())
	}
	if err := utils.SafeWriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}

	if rg.config.CompressReports {
		compressedPath, cerr := compressFile(path)
		if cerr != nil {
			rg.logger.Warnf("Failed to compress report: %v", cerr)
		} else {
			_ = os.Remove(path)
			path = compressedPath
		}
	}

	rg.logger.Infof("Report exported to %s", path)
	return path, nil
}

func compressFile(path string) (string, error) {
	in, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open for compress: %w", err)
	}
	defer in.Close()

	outPath := path + ".gz"
	tmpPath := outPath + ".tmp"
	out, err := os.Create(tmpPath)
	if err != nil {
		return "", fmt.Errorf("create gzip temp: %w", err)
	}

	gzw := gzip.NewWriter(out)
	gzw.Name = filepath.Base(path)
	gzw.ModTime = time.Now()

	_, copyErr := io.Copy(gzw, in)
	closeErr1 := gzw.Close()
	closeErr2 := out.Close()

	if copyErr != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("gzip copy: %w", copyErr)
	}
	if closeErr1 != nil || closeErr2 != nil {
		_ = os.Remove(tmpPath)
		if closeErr1 != nil {
			return "", fmt.Errorf("close gzip: %w", closeErr1)
		}
		return "", fmt.Errorf("close file: %w", closeErr2)
	}

	if err := os.Rename(tmpPath, outPath); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("rename gzip file: %w", err)
	}
	return outPath, nil
}
