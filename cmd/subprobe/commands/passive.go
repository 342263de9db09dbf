package commands

import (
	"github.com/bl4ck0w1/subprobe/pkg/models"
	"github.com/spf13/cobra"
)

func NewPassiveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "passive <domain>",
		Short: "List subdomains seen in certificate-transparency data",
		Long: `Query the certificate-transparency aggregator (and the configured CT logs,
when enabled) for names under the domain. Upstream failures are reported
in the result and do not fail the command.`,
		Args: cobra.ExactArgs(1),
		RunE: runPassive,
	}
	addOutputFlags(cmd, "cli.passive")
	return cmd
}

func runPassive(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if _, err := outputFormat("cli.passive"); err != nil {
		return err
	}

	ctx, cancel := requestContext()
	defer cancel()

	engine, err := createEngine(ctx, cfg)
	if err != nil {
		return err
	}

	result, err := engine.Passive(ctx, args[0])
	if err != nil {
		return err
	}
	return writeResult(cmd, "cli.passive", models.ReportKindPassive, result.Domain, result)
}
