package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"codeberg.org/mutker/monitorctl/internal/capture"
	"codeberg.org/mutker/monitorctl/internal/config"
	"codeberg.org/mutker/monitorctl/internal/ddc"
	"codeberg.org/mutker/monitorctl/internal/display"
	"codeberg.org/mutker/monitorctl/internal/errors"
	"codeberg.org/mutker/monitorctl/internal/logger"
	"codeberg.org/mutker/monitorctl/internal/pid"
	"codeberg.org/mutker/monitorctl/internal/session"
	"codeberg.org/mutker/monitorctl/internal/telemetry"
	"codeberg.org/mutker/monitorctl/internal/wintrack"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the control daemon",
	Long: `Detects monitors, follows window focus and applies profiles and
adaptive brightness until terminated. SIGHUP re-reads the desktop
layout after monitors are rearranged.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runDaemon(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runDaemon(parent context.Context) error {
	if err := pid.Write(); err != nil {
		return err
	}
	defer func() {
		if err := pid.Remove(); err != nil {
			logger.Warn().Err(err).Msg("Failed to remove PID file")
		}
	}()

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	tracker, err := wintrack.NewTracker(wintrack.Config{
		Backend:      cfg.Tracker.Backend,
		PollInterval: time.Duration(cfg.Tracker.PollIntervalMs) * time.Millisecond,
	})
	if err != nil {
		if !errors.HasCode(err, wintrack.ErrBackendUnavailable) {
			return err
		}
		logger.Warn().Err(err).Msg("No window backend available, profiles apply manually only")
		tracker = wintrack.NewNoopTracker()
	}

	collector, err := telemetry.NewService(telemetryConfig(cfg))
	if err != nil {
		return err
	}
	defer func() {
		if err := collector.Close(); err != nil {
			logger.Warn().Err(err).Msg("Failed to close telemetry")
		}
	}()

	states, err := config.NewStore(cfg.StateDir)
	if err != nil {
		return err
	}

	var capt capture.Service
	if cfg.Adaptive.Enabled {
		capt, err = capture.NewService(capture.Config{
			Method:   cfg.Capture.Method,
			CacheTTL: time.Duration(cfg.Capture.CacheTTLMs) * time.Millisecond,
		})
		if err != nil {
			logger.Warn().Err(err).Msg("Screen capture unavailable, adaptive control disabled")
			capt = nil
		}
	}

	engine, err := session.NewEngine(cfg, session.Services{
		Registry:  display.NewRegistry(display.NewXrandrSource()),
		Tracker:   tracker,
		Capture:   capt,
		Collector: collector,
		States:    states,
	})
	if err != nil {
		return err
	}

	go handleSignals(ctx, cancel, engine)

	if err := engine.Run(ctx); err != nil {
		if errors.HasCode(err, ddc.ErrPermissionDenied) {
			logger.Error().Msg("No permission to access /dev/i2c devices; add the user to the i2c group or install the ddcutil udev rules")
		}
		return err
	}

	logger.Info().Msg("Exiting...")

	return nil
}

func handleSignals(ctx context.Context, cancel context.CancelFunc, engine *session.Engine) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigs)

	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-sigs:
			if sig == syscall.SIGHUP {
				logger.Info().Msg("Received SIGHUP, refreshing monitor layout")
				if err := engine.RefreshLayout(ctx); err != nil {
					logger.Warn().Err(err).Msg("Layout refresh failed")
				}
				continue
			}
			logger.Info().Msg("Received termination signal.")
			cancel()
			return
		}
	}
}

// telemetryConfig overlays the daemon configuration on the telemetry
// defaults; an empty database path keeps the default location
func telemetryConfig(cfg *config.Config) telemetry.Config {
	tcfg := telemetry.DefaultConfig()
	tcfg.Enabled = cfg.Telemetry
	if cfg.Database != "" {
		tcfg.DBPath = cfg.Database
	}

	return tcfg
}
