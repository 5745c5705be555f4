package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"codeberg.org/mutker/monitorctl/internal/ddc"
)

var capabilitiesCmd = &cobra.Command{
	Use:   "capabilities [monitor]",
	Short: "Show a monitor's advertised features",
	Long: `Queries one monitor's capability string and prints the advertised VCP
features with their value tables. With more than one monitor connected,
pass a model substring or serial to choose.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
		defer cancel()

		identifier := ""
		if len(args) > 0 {
			identifier = args[0]
		}

		monitor, err := selectMonitor(ctx, identifier)
		if err != nil {
			return err
		}

		caps, err := newClient(monitor).Capabilities(ctx)
		if err != nil {
			return err
		}

		fmt.Printf("%s\n", monitor.Identity.String())
		if caps.MCCSVersion != "" {
			fmt.Printf("MCCS version: %s\n", caps.MCCSVersion)
		}

		features := make([]ddc.Feature, 0, len(caps.Features))
		for f := range caps.Features {
			features = append(features, f)
		}
		sort.Slice(features, func(i, j int) bool { return features[i] < features[j] })

		for _, f := range features {
			fmt.Printf("  %s\n", f.String())

			values := make([]int, 0, len(caps.ValueNames[f]))
			for v := range caps.ValueNames[f] {
				values = append(values, v)
			}
			sort.Ints(values)
			for _, v := range values {
				fmt.Printf("    %3d: %s\n", v, caps.ValueNames[f][v])
			}
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(capabilitiesCmd)
}
