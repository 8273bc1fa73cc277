package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/nvr-ai/go-mot/config"
	"github.com/nvr-ai/go-mot/logging"
)

// commandContext carries the lazily loaded configuration and logger shared
// by every subcommand.
type commandContext struct {
	configPath string
	logLevel   string
	logFormat  string

	cfg    *config.Config
	logger *slog.Logger
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, err
	}
	if c.logLevel != "" {
		cfg.Logging.Level = c.logLevel
	}
	if c.logFormat != "" {
		cfg.Logging.Format = c.logFormat
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c.cfg = cfg
	return cfg, nil
}

func (c *commandContext) ensureLogger(cmd *cobra.Command) (*slog.Logger, error) {
	if c.logger != nil {
		return c.logger, nil
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cmd.ErrOrStderr(),
	})
	if err != nil {
		return nil, err
	}
	c.logger = logger
	return logger, nil
}

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}

	rootCmd := &cobra.Command{
		Use:           "mot",
		Short:         "Multi-object tracking tools",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			_, err := ctx.ensureLogger(cmd)
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&ctx.configPath, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&ctx.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&ctx.logFormat, "log-format", "", "Log format (auto, text, json)")

	rootCmd.AddCommand(newReplayCommand(ctx))
	rootCmd.AddCommand(newBenchCommand(ctx))
	rootCmd.AddCommand(newRunsCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))
	rootCmd.AddCommand(newVersionCommand())

	return rootCmd
}
