package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bl4ck0w1/subprobe/internal/orchestration"
	"github.com/bl4ck0w1/subprobe/internal/reporting"
	"github.com/bl4ck0w1/subprobe/pkg/models"
	"github.com/bl4ck0w1/subprobe/pkg/utils"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// loadConfig merges defaults, the config file, SUBPROBE_* variables and
// bound flags into a validated Config.
func loadConfig() (*models.Config, error) {
	cfg := models.DefaultConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, &models.ConfigurationError{Field: "config", Reason: err.Error()}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// requestContext is cancelled on SIGINT/SIGTERM and, when --deadline is
// set, once the deadline passes.
func requestContext() (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	if d := viper.GetDuration("deadline"); d > 0 {
		dctx, cancel := context.WithTimeout(ctx, d)
		return dctx, func() {
			cancel()
			stop()
		}
	}
	return ctx, stop
}

func createEngine(ctx context.Context, cfg *models.Config) (*orchestration.Engine, error) {
	metrics, err := utils.NewEngineMetrics(cfg.Metrics.Addr != "")
	if err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}
	if addr := cfg.Metrics.Addr; addr != "" {
		go func() {
			if err := metrics.StartServerWithContext(ctx, addr); err != nil {
				logrus.Warnf("Metrics server stopped: %v", err)
			}
		}()
		logrus.Infof("Serving metrics on %s/metrics", addr)
	}
	return orchestration.NewEngine(cfg, logrus.StandardLogger(), metrics)
}

// requestOverrides reads the -T/-t flags registered by addTuningFlags.
// Zero values leave the configured defaults in place.
func requestOverrides(prefix string) (int, time.Duration) {
	return viper.GetInt(prefix + ".threads"), models.SecondsToDuration(viper.GetFloat64(prefix + ".timeout"))
}

func addTuningFlags(cmd *cobra.Command, prefix string) {
	cmd.Flags().IntP("threads", "T", 0, "concurrent lookups/probes (1-100, default from config)")
	cmd.Flags().Float64P("timeout", "t", 0, "per-operation timeout in seconds (0.1-30, default from config)")
	_ = viper.BindPFlag(prefix+".threads", cmd.Flags().Lookup("threads"))
	_ = viper.BindPFlag(prefix+".timeout", cmd.Flags().Lookup("timeout"))
}

func addOutputFlags(cmd *cobra.Command, prefix string) {
	cmd.Flags().StringP("output", "o", "", "output file, or directory for a generated file name (default stdout)")
	cmd.Flags().StringP("format", "f", "json", "output format (json, yaml, csv, txt)")
	cmd.Flags().Bool("gzip", false, "gzip the output file")
	_ = viper.BindPFlag(prefix+".output", cmd.Flags().Lookup("output"))
	_ = viper.BindPFlag(prefix+".format", cmd.Flags().Lookup("format"))
	_ = viper.BindPFlag(prefix+".gzip", cmd.Flags().Lookup("gzip"))
}

// outputFormat validates the -f flag before any network work starts.
func outputFormat(prefix string) (string, error) {
	return models.ParseFormat(viper.GetString(prefix + ".format"))
}

// writeResult renders data to stdout, or to the -o path. A directory given
// to -o receives a generated file name.
func writeResult(cmd *cobra.Command, prefix, kind, target string, data any) error {
	format, err := outputFormat(prefix)
	if err != nil {
		return err
	}

	report := &models.Report{
		Kind:        kind,
		Target:      target,
		Format:      format,
		GeneratedAt: time.Now(),
		Data:        data,
	}

	output := viper.GetString(prefix + ".output")
	rcfg := reporting.ReportConfig{DefaultFormat: format, CompressReports: viper.GetBool(prefix + ".gzip")}
	if output != "" {
		if info, err := os.Stat(output); err == nil && info.IsDir() {
			rcfg.OutputDir, output = output, ""
		}
	}

	rg, err := reporting.NewReportGenerator(rcfg, logrus.StandardLogger())
	if err != nil {
		return err
	}
	if output == "" && rcfg.OutputDir == "" {
		return rg.Write(cmd.OutOrStdout(), report)
	}
	_, err = rg.Export(report, output)
	return err
}

// readHosts returns the hostnames given as arguments plus those read from
// the -l file ("-" reads stdin).
func readHosts(cmd *cobra.Command, args []string, listFile string) ([]string, error) {
	hosts := append([]string(nil), args...)
	if listFile == "" {
		return hosts, nil
	}

	if listFile == "-" {
		lines, err := utils.ReadLines(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("failed to read hosts from stdin: %w", err)
		}
		return append(hosts, lines...), nil
	}

	f, err := os.Open(listFile)
	if err != nil {
		return nil, &models.NotFoundError{Kind: "host list", Name: listFile}
	}
	defer f.Close()
	lines, err := utils.ReadLines(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", listFile, err)
	}
	return append(hosts, lines...), nil
}
