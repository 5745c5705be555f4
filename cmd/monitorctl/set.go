package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"codeberg.org/mutker/monitorctl/internal/ddc"
	"codeberg.org/mutker/monitorctl/internal/errors"
)

var (
	setMonitor string
	setForce   bool
)

var setCmd = &cobra.Command{
	Use:   "set <feature> <value>",
	Short: "Write one feature value",
	Long: `Writes a single VCP feature value. Features are addressed by name
("brightness") or hex code ("0x10"). Writes to features the monitor
previously reported as unsupported fail fast; --force re-probes them.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
		defer cancel()

		feature, err := ddc.ParseFeature(args[0])
		if err != nil {
			return err
		}

		value, err := strconv.Atoi(args[1])
		if err != nil {
			return errors.New().WithData(errors.ErrInvalidArgument, args[1])
		}

		monitor, err := selectMonitor(ctx, setMonitor)
		if err != nil {
			return err
		}

		if err := newClient(monitor).Write(ctx, feature, value, setForce); err != nil {
			return err
		}

		fmt.Printf("%s: %s set to %d\n", monitor.Identity.String(), feature.String(), value)

		return nil
	},
}

func init() {
	setCmd.Flags().StringVar(&setMonitor, "monitor", "", "model substring or serial selecting the monitor")
	setCmd.Flags().BoolVar(&setForce, "force", false, "write even if the feature was marked unsupported")
	rootCmd.AddCommand(setCmd)
}
