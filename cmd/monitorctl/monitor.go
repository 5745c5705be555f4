package main

import (
	"context"
	"time"

	"codeberg.org/mutker/monitorctl/internal/ddc"
	"codeberg.org/mutker/monitorctl/internal/display"
	"codeberg.org/mutker/monitorctl/internal/errors"
)

// selectMonitor resolves the target of a one-shot command. Without an
// identifier a single connected monitor is unambiguous; with several,
// the identifier must select exactly one.
func selectMonitor(ctx context.Context, identifier string) (display.Monitor, error) {
	errFactory := errors.New()

	registry := display.NewRegistry(display.NewXrandrSource())
	monitors, err := registry.Detect(ctx)
	if err != nil {
		return display.Monitor{}, err
	}

	if identifier == "" {
		if len(monitors) == 1 {
			return monitors[0], nil
		}

		return display.Monitor{}, errFactory.WithMessage(ddc.ErrDisplayNotFound,
			"several monitors connected, pass a model substring or serial")
	}

	var matched []display.Monitor
	for _, m := range monitors {
		if m.Identity.MatchesIdentifier(identifier) {
			matched = append(matched, m)
		}
	}

	switch len(matched) {
	case 1:
		return matched[0], nil
	case 0:
		return display.Monitor{}, errFactory.WithData(ddc.ErrDisplayNotFound, identifier)
	default:
		return display.Monitor{}, errFactory.WithMessage(ddc.ErrDisplayNotFound,
			"identifier matches more than one monitor")
	}
}

// newClient builds a protocol client with the configured retry policy
func newClient(monitor display.Monitor) ddc.Client {
	return ddc.NewClient(monitor.Info, ddc.ClientConfig{
		RetryCount:      cfg.DDC.RetryCount,
		SleepMultiplier: cfg.DDC.SleepMultiplier,
		CacheTTL:        time.Duration(cfg.DDC.CacheTTLMs) * time.Millisecond,
	})
}
