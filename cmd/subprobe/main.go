package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bl4ck0w1/subprobe/cmd/subprobe/commands"
	"github.com/bl4ck0w1/subprobe/pkg/models"
	"github.com/bl4ck0w1/subprobe/pkg/utils"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	version   = "1.0.0"
	commit    = "unknown"
	buildDate = "unknown"
)

var processLogger *utils.Logger

var rootCmd = &cobra.Command{
	Use:   "subprobe",
	Short: "subprobe - subdomain discovery and validation",
	Long: `subprobe discovers subdomains of a target domain from wordlists and
certificate-transparency data, resolves them over DNS and checks which ones
answer over HTTP or HTTPS.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := initConfig(); err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		return initLogging()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if processLogger != nil {
			_ = processLogger.Close()
		}
	},
}

// Execute runs the root command and returns the process exit code: 2 for
// invalid input or configuration, 1 for any other failure.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if models.IsInputError(err) {
			return 2
		}
		return 1
	}
	return 0
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.subprobe/config.yaml)")
	rootCmd.PersistentFlags().StringP("log-level", "L", "info", "log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")
	rootCmd.PersistentFlags().String("log-file", "", "log file path (rotated)")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "only log to the log file, if any")
	rootCmd.PersistentFlags().String("metrics-addr", "", "serve prometheus metrics on this address (e.g. :9090)")
	rootCmd.PersistentFlags().String("proxy", "", "http(s) or socks5 proxy URL for liveness probes")
	rootCmd.PersistentFlags().Duration("deadline", 0, "overall deadline for the request (e.g. 10m); 0 disables it")

	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("global.log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("global.log_format", rootCmd.PersistentFlags().Lookup("log-format"))
	_ = viper.BindPFlag("global.log_file", rootCmd.PersistentFlags().Lookup("log-file"))
	_ = viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
	_ = viper.BindPFlag("metrics.addr", rootCmd.PersistentFlags().Lookup("metrics-addr"))
	_ = viper.BindPFlag("http.proxy", rootCmd.PersistentFlags().Lookup("proxy"))
	_ = viper.BindPFlag("deadline", rootCmd.PersistentFlags().Lookup("deadline"))

	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &models.ConfigurationError{Field: "flags", Reason: err.Error()}
	})

	rootCmd.AddCommand(commands.NewEnumerateCommand())
	rootCmd.AddCommand(commands.NewPassiveCommand())
	rootCmd.AddCommand(commands.NewProbeCommand())
	rootCmd.AddCommand(commands.NewValidateCommand())
	rootCmd.AddCommand(commands.NewPresetsCommand())
	rootCmd.AddCommand(commands.NewConfigureCommand())
	rootCmd.AddCommand(commands.NewVersionCommand(version, commit, buildDate))
	rootCmd.AddCommand(commands.NewCompletionCommand())

	rootCmd.SetVersionTemplate(fmt.Sprintf("subprobe %s (commit %s, built %s)\n", version, commit, buildDate))
}

func initConfig() error {
	setDefaults()
	viper.SetEnvPrefix("SUBPROBE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(filepath.Join(home, ".subprobe"))
		}
		viper.AddConfigPath("/etc/subprobe/")
		viper.AddConfigPath(".")
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			if viper.GetString("config") != "" {
				return &models.ConfigurationError{Field: "config", Value: viper.GetString("config"), Reason: err.Error()}
			}
			logrus.Warnf("Failed reading config file: %v", err)
		}
	} else {
		logrus.Debugf("Using config file: %s", viper.ConfigFileUsed())
	}
	return nil
}

// setDefaults registers every config key so that SUBPROBE_* environment
// variables are picked up by viper.Unmarshal.
func setDefaults() {
	d := models.DefaultConfig()
	viper.SetDefault("global.log_level", d.Global.LogLevel)
	viper.SetDefault("global.log_format", d.Global.LogFormat)
	viper.SetDefault("global.log_file", d.Global.LogFile)
	viper.SetDefault("wordlists.dir", d.Wordlists.Dir)

	viper.SetDefault("passive.enabled", d.Passive.Enabled)
	viper.SetDefault("passive.endpoint", d.Passive.Endpoint)
	viper.SetDefault("passive.timeout", d.Passive.Timeout)
	viper.SetDefault("passive.rate_limit", d.Passive.RateLimit)
	viper.SetDefault("passive.user_agent", d.Passive.UserAgent)
	viper.SetDefault("passive.ct_logs.enabled", d.Passive.CTLogs.Enabled)
	viper.SetDefault("passive.ct_logs.log_urls", d.Passive.CTLogs.LogURLs)
	viper.SetDefault("passive.ct_logs.tail_size", d.Passive.CTLogs.TailSize)

	viper.SetDefault("dns.nameservers", d.DNS.Nameservers)
	viper.SetDefault("dns.record_types", d.DNS.RecordTypes)
	viper.SetDefault("dns.timeout", d.DNS.Timeout)
	viper.SetDefault("dns.concurrency", d.DNS.Concurrency)
	viper.SetDefault("dns.rate_limit", d.DNS.RateLimit)

	viper.SetDefault("http.timeout", d.HTTP.Timeout)
	viper.SetDefault("http.concurrency", d.HTTP.Concurrency)
	viper.SetDefault("http.max_redirects", d.HTTP.MaxRedirects)
	viper.SetDefault("http.verify_tls", d.HTTP.VerifyTLS)
	viper.SetDefault("http.user_agent", d.HTTP.UserAgent)
	viper.SetDefault("http.proxy", d.HTTP.Proxy)

	viper.SetDefault("metrics.addr", d.Metrics.Addr)
}

func initLogging() error {
	logConfig := utils.LogConfig{
		Level:      viper.GetString("global.log_level"),
		Format:     viper.GetString("global.log_format"),
		File:       viper.GetString("global.log_file"),
		MaxBackups: 3,
		MaxAge:     28,
		Quiet:      viper.GetBool("quiet"),
	}

	logger, err := utils.NewLogger(logConfig, "subprobe", version)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize structured logger, falling back: %v\n", err)
		logrus.SetOutput(os.Stderr)
		logrus.SetLevel(logrus.InfoLevel)
		return nil
	}
	processLogger = logger

	logrus.SetOutput(logger.Out)
	logrus.SetLevel(logger.Level)
	logrus.SetFormatter(logger.Formatter)
	logrus.StandardLogger().ReplaceHooks(logger.Hooks)
	return nil
}

func main() {
	startTime := time.Now()
	code := Execute()
	logrus.Debugf("Execution completed in %v", time.Since(startTime))
	os.Exit(code)
}
