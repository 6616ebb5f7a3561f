package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/solatis/cpq/internal/core/config"
)

var (
	configFile string
	dbURL      string
	logLevel   string
	logFormat  string
	debug      bool
)

var rootCmd = &cobra.Command{
	Use:          "cpq",
	Short:        "CPQ configurator client",
	Long:         `cpq browses product models, configures them against the CPQ backend, and hosts the embeddable configurator bridge.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&dbURL, "db-url", "", "local state database URL (sqlite://path or postgres://...)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (json, text)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "dump session state to stderr")
}

func Execute() error {
	return rootCmd.Execute()
}

// newLogger builds the process logger from --log-level and --log-format.
func newLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}
	opts := &slog.HandlerOptions{Level: lvl}

	switch strings.ToLower(format) {
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid log format %q (want json or text)", format)
	}
}

// loadConfig reads the config file and applies --db-url.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if dbURL != "" {
		cfg.StateDBURL = dbURL
	}
	return cfg, nil
}

func stderrLogger() (*slog.Logger, error) {
	return newLogger(os.Stderr, logLevel, logFormat)
}
