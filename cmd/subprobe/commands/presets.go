package commands

import (
	"fmt"
	"strconv"

	"github.com/bl4ck0w1/subprobe/internal/discovery/wordlists"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

func NewPresetsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "presets",
		Short: "List the built-in wordlist presets",
		Long: `List the wordlist presets, the file each one reads from the wordlist
directory (wordlists.dir) and whether that file is present.`,
		Args: cobra.NoArgs,
		RunE: runPresets,
	}
}

func runPresets(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	source := wordlists.NewSource(cfg.Wordlists.Dir, nil)

	data := pterm.TableData{{"ID", "NAME", "FILE", "AVAILABLE"}}
	for _, p := range source.Presets() {
		file := p.Filename
		if file == "" {
			file = "(custom path)"
		}
		data = append(data, []string{p.ID, p.Name, file, strconv.FormatBool(p.Available)})
	}
	if err := pterm.DefaultTable.
		WithHasHeader().
		WithData(data).
		WithWriter(cmd.OutOrStdout()).
		Render(); err != nil {
		return fmt.Errorf("render presets: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "\nWordlist directory: %s\n", cfg.Wordlists.Dir)
	return nil
}
