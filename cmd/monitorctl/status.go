package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"codeberg.org/mutker/monitorctl/internal/config"
	"codeberg.org/mutker/monitorctl/internal/ddc"
	"codeberg.org/mutker/monitorctl/internal/display"
	"codeberg.org/mutker/monitorctl/internal/logger"
)

var statusFeatures = []ddc.Feature{
	ddc.FeatureBrightness,
	ddc.FeatureContrast,
	ddc.FeatureColorPreset,
	ddc.FeatureInputSource,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show current settings for every monitor",
	Long: `Reads the common features from each detected monitor and prints them
together with the profile the daemon last applied.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
		defer cancel()

		registry := display.NewRegistry(display.NewXrandrSource())
		monitors, err := registry.Detect(ctx)
		if err != nil {
			return err
		}

		states, err := config.NewStore(cfg.StateDir)
		if err != nil {
			return err
		}

		for _, m := range monitors {
			fmt.Printf("%s\n", m.Identity.String())

			state, err := states.Load(m.Identity.ConfigID())
			if err != nil {
				logger.Warn().Err(err).Str("monitor", m.Identity.String()).Msg("Failed to load monitor state")
			} else if state.ActiveProfile != "" {
				fmt.Printf("  profile:  %s\n", state.ActiveProfile)
			}

			values := newClient(m).ReadAll(ctx, statusFeatures)
			for _, feature := range statusFeatures {
				value, ok := values[feature]
				if !ok {
					continue
				}
				fmt.Printf("  %-22s %d (max %d)\n", feature.String(), value.Current, value.Max)
			}
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
