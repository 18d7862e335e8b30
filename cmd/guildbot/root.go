package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Guliveer/guildkit/internal/config"
	"github.com/Guliveer/guildkit/internal/logger"
)

type globalFlags struct {
	configPath string
	envFiles   []string
	logLevel   string
	noColor    bool
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:           "guildbot",
		Short:         "Run and inspect a guildkit bot",
		Long:          "guildbot connects a bot to the platform gateway, keeps its entity caches in sync, and exposes health and cache statistics over HTTP.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", config.DefaultConfigPath, "Path to the YAML configuration file")
	pf.StringSliceVar(&flags.envFiles, "env-file", []string{".env"}, "Env files loaded before the configuration")
	pf.StringVar(&flags.logLevel, "log-level", "", "Log level: DEBUG, INFO, WARN, ERROR (overrides LOG_LEVEL env)")
	pf.BoolVar(&flags.noColor, "no-color", false, "Disable colored output (overrides TTY detection)")

	rootCmd.AddCommand(
		newVersionCmd(),
		newRunCmd(flags),
		newFetchCmd(flags),
	)

	return rootCmd
}

// setup loads env files and configuration and builds the root logger.
func (f *globalFlags) setup() (*config.Config, *logger.Logger, error) {
	if err := config.LoadEnvFiles(f.envFiles...); err != nil {
		return nil, nil, err
	}

	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, nil, err
	}
	if f.logLevel != "" {
		cfg.Log.Level = f.logLevel
	}
	if err := config.Validate(cfg); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	colored := !f.noColor && term.IsTerminal(int(os.Stdout.Fd())) && os.Getenv("NO_COLOR") == ""
	log, err := logger.Setup(cfg.LoggerConfig(colored))
	if err != nil {
		return nil, nil, fmt.Errorf("setting up logger: %w", err)
	}

	return cfg, log, nil
}
