package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"codeberg.org/mutker/monitorctl/internal/display"
)

// Detection walks every I2C bus and can take several seconds per display
const commandTimeout = 30 * time.Second

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "List detected monitors",
	Long:  "Detects DDC/CI capable monitors and prints identity, bus and desktop geometry for each.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
		defer cancel()

		registry := display.NewRegistry(display.NewXrandrSource())
		monitors, err := registry.Detect(ctx)
		if err != nil {
			return err
		}

		for _, m := range monitors {
			fmt.Printf("Display %d: %s\n", m.Info.Display, m.Identity.String())
			fmt.Printf("  bus:       %s\n", m.Info.Bus)
			fmt.Printf("  connector: %s\n", m.Info.Connector)
			fmt.Printf("  config id: %s\n", m.Identity.ConfigID())
			if m.Geometry.Known() {
				fmt.Printf("  geometry:  %dx%d at (%d,%d)\n",
					m.Geometry.Width, m.Geometry.Height, m.Geometry.X, m.Geometry.Y)
			} else {
				fmt.Printf("  geometry:  unresolved\n")
			}
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(detectCmd)
}
