package commands

import (
	"github.com/bl4ck0w1/subprobe/internal/orchestration"
	"github.com/bl4ck0w1/subprobe/pkg/models"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func NewValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [host...]",
		Short: "Resolve and probe a list of hostnames",
		Long: `Resolve every given hostname, probe the ones that resolved over HTTPS/HTTP
and split them into live web services and DNS-only hosts.`,
		Example: `  subprobe validate www.example.com api.example.com
  subprobe enumerate example.com -f txt | subprobe validate -l -`,
		RunE: runValidate,
	}
	cmd.Flags().StringP("list", "l", "", "file with one hostname per line (\"-\" for stdin)")
	_ = viper.BindPFlag("cli.validate.list", cmd.Flags().Lookup("list"))

	addTuningFlags(cmd, "cli.validate")
	addOutputFlags(cmd, "cli.validate")
	return cmd
}

func NewProbeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "probe [host...]",
		Short: "Check which hosts answer over HTTPS or HTTP",
		Long: `Probe every given hostname, first over HTTPS and then over HTTP when HTTPS
gets no response. Any HTTP status counts as live.`,
		RunE: runProbe,
	}
	cmd.Flags().StringP("list", "l", "", "file with one hostname per line (\"-\" for stdin)")
	_ = viper.BindPFlag("cli.probe.list", cmd.Flags().Lookup("list"))

	addTuningFlags(cmd, "cli.probe")
	addOutputFlags(cmd, "cli.probe")
	return cmd
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if _, err := outputFormat("cli.validate"); err != nil {
		return err
	}
	hosts, err := readHosts(cmd, args, viper.GetString("cli.validate.list"))
	if err != nil {
		return err
	}

	ctx, cancel := requestContext()
	defer cancel()

	engine, err := createEngine(ctx, cfg)
	if err != nil {
		return err
	}

	threads, timeout := requestOverrides("cli.validate")
	progress := newProgressView()
	result, err := engine.Validate(ctx, orchestration.ValidateRequest{
		Hosts:       hosts,
		Concurrency: threads,
		Timeout:     timeout,
		Progress:    progress.Func(),
	})
	progress.stop()
	if result == nil {
		return err
	}
	if err != nil {
		logrus.Warnf("Validation interrupted, writing partial results: %v", err)
	}

	if werr := writeResult(cmd, "cli.validate", models.ReportKindValidation, "hosts", result); werr != nil {
		return werr
	}
	return err
}

func runProbe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if _, err := outputFormat("cli.probe"); err != nil {
		return err
	}
	hosts, err := readHosts(cmd, args, viper.GetString("cli.probe.list"))
	if err != nil {
		return err
	}

	ctx, cancel := requestContext()
	defer cancel()

	engine, err := createEngine(ctx, cfg)
	if err != nil {
		return err
	}

	threads, timeout := requestOverrides("cli.probe")
	progress := newProgressView()
	result, err := engine.Probe(ctx, orchestration.ProbeRequest{
		Hosts:       hosts,
		Concurrency: threads,
		Timeout:     timeout,
		Progress:    progress.Func(),
	})
	progress.stop()
	if result == nil {
		return err
	}
	if err != nil {
		logrus.Warnf("Probing interrupted, writing partial results: %v", err)
	}

	if werr := writeResult(cmd, "cli.probe", models.ReportKindProbe, "hosts", result); werr != nil {
		return werr
	}
	return err
}
