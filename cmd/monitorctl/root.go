package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"codeberg.org/mutker/monitorctl/internal/config"
	"codeberg.org/mutker/monitorctl/internal/logger"
)

var (
	cfg        *config.Config
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "monitorctl",
	Short: "Profile and adaptive control for DDC/CI monitors",
	Long: `monitorctl drives external monitors over DDC/CI. The daemon applies
settings profiles as window focus moves between monitors and adapts
brightness and contrast to the content on screen; the one-shot
commands inspect and set individual monitor features.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		var err error
		cfg, err = config.Load(
			config.WithConfigFile(configPath),
			config.WithFlags(cmd.Root().PersistentFlags()),
		)
		if err != nil {
			return err
		}

		level, err := logger.ParseLevel(cfg.LogLevel)
		if err != nil {
			return err
		}
		if cfg.Verbose && level > logger.InfoLevel {
			level = logger.InfoLevel
		}
		if cfg.Debug {
			level = logger.DebugLevel
		}
		logger.Init(level, logger.IsService())
		logger.Debug().Msg("Config loaded")

		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "configuration file path")
	flags.String("log-level", config.DefaultLogLevel, "log level (debug, info, warning, error)")
	flags.Bool("debug", false, "enable debug logging")
	flags.Bool("verbose", false, "enable verbose output")
	flags.Bool("telemetry", false, "record setting changes to the local database")
	flags.String("database", "", "telemetry database path")
	flags.Float64("interval", 5.0, "adaptive evaluation interval in seconds")
	flags.Int("retry-count", 3, "protocol retry attempts")
	flags.Float64("sleep-multiplier", 1.0, "protocol timing multiplier")
}
