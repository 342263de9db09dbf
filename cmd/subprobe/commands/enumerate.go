package commands

import (
	"github.com/bl4ck0w1/subprobe/internal/discovery/wordlists"
	"github.com/bl4ck0w1/subprobe/internal/orchestration"
	"github.com/bl4ck0w1/subprobe/pkg/models"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func NewEnumerateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "enumerate <domain>",
		Short: "Resolve wordlist candidates of a domain",
		Long: `Generate <label>.<domain> for every label of a wordlist preset or file,
resolve the candidates over DNS and report the hosts that have address
records. With --passive, certificate-transparency names are added as
extra candidates; with --probe, resolved hosts are also checked over
HTTPS/HTTP.`,
		Example: `  subprobe enumerate example.com -p 2
  subprobe enumerate example.com -w ./labels.txt --passive -T 50 -f csv -o out.csv`,
		Args: cobra.ExactArgs(1),
		RunE: runEnumerate,
	}

	cmd.Flags().StringP("preset", "p", wordlists.DefaultPreset, "wordlist preset ID or name (see `subprobe presets`)")
	cmd.Flags().StringP("wordlist", "w", "", "custom wordlist file (overrides --preset)")
	cmd.Flags().Bool("passive", false, "add certificate-transparency names as candidates")
	cmd.Flags().Bool("probe", false, "probe resolved hosts over HTTPS/HTTP")
	_ = viper.BindPFlag("cli.enumerate.preset", cmd.Flags().Lookup("preset"))
	_ = viper.BindPFlag("cli.enumerate.wordlist", cmd.Flags().Lookup("wordlist"))
	_ = viper.BindPFlag("passive.enabled", cmd.Flags().Lookup("passive"))
	_ = viper.BindPFlag("cli.enumerate.probe", cmd.Flags().Lookup("probe"))

	addTuningFlags(cmd, "cli.enumerate")
	addOutputFlags(cmd, "cli.enumerate")
	return cmd
}

func runEnumerate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if _, err := outputFormat("cli.enumerate"); err != nil {
		return err
	}

	ctx, cancel := requestContext()
	defer cancel()

	engine, err := createEngine(ctx, cfg)
	if err != nil {
		return err
	}

	wordlist := viper.GetString("cli.enumerate.wordlist")
	if wordlist == "" {
		wordlist = viper.GetString("cli.enumerate.preset")
	}
	threads, timeout := requestOverrides("cli.enumerate")

	progress := newProgressView()
	result, err := engine.Enumerate(ctx, orchestration.EnumerateRequest{
		Domain:      args[0],
		Wordlist:    wordlist,
		Passive:     cfg.Passive.Enabled,
		Probe:       viper.GetBool("cli.enumerate.probe"),
		Concurrency: threads,
		Timeout:     timeout,
		Progress:    progress.Func(),
	})
	progress.stop()
	if result == nil {
		return err
	}
	if err != nil {
		logrus.Warnf("Enumeration interrupted, writing partial results: %v", err)
	}

	if werr := writeResult(cmd, "cli.enumerate", models.ReportKindEnumeration, result.Domain, result); werr != nil {
		return werr
	}
	return err
}
