package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"codeberg.org/mutker/monitorctl/internal/ddc"
)

var getMonitor string

var getCmd = &cobra.Command{
	Use:   "get <feature>",
	Short: "Read one feature value",
	Long: `Reads a single VCP feature from a monitor. Features are addressed by
name ("brightness") or hex code ("0x10").`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
		defer cancel()

		feature, err := ddc.ParseFeature(args[0])
		if err != nil {
			return err
		}

		monitor, err := selectMonitor(ctx, getMonitor)
		if err != nil {
			return err
		}

		value, err := newClient(monitor).Read(ctx, feature)
		if err != nil {
			return err
		}

		fmt.Printf("%s: %s = %d (max %d)\n", monitor.Identity.String(), feature.String(), value.Current, value.Max)

		return nil
	},
}

func init() {
	getCmd.Flags().StringVar(&getMonitor, "monitor", "", "model substring or serial selecting the monitor")
	rootCmd.AddCommand(getCmd)
}
