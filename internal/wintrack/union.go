package wintrack

import (
	"context"
	"strings"

	"codeberg.org/mutker/monitorctl/internal/errors"
)

// unionBackend merges several backends into one event source. A query
// asks the members in order and keeps the first event that resolves a
// window class; when none does, the first successful reply wins. A
// member that errors is skipped, so one broken tool cannot blind the
// others.
type unionBackend struct {
	members []Backend
}

func newUnionBackend(members []Backend) Backend {
	if len(members) == 1 {
		return members[0]
	}

	return &unionBackend{members: members}
}

func (b *unionBackend) Name() string {
	names := make([]string, 0, len(b.members))
	for _, m := range b.members {
		names = append(names, m.Name())
	}

	return strings.Join(names, "+")
}

func (b *unionBackend) Available() bool {
	for _, m := range b.members {
		if m.Available() {
			return true
		}
	}

	return false
}

func (b *unionBackend) Current(ctx context.Context) (WindowEvent, error) {
	var (
		fallback     WindowEvent
		haveFallback bool
		lastErr      error
	)

	for _, m := range b.members {
		ev, err := m.Current(ctx)
		if err != nil {
			lastErr = err
			continue
		}
		if ev.Class != "" {
			return ev, nil
		}
		if !haveFallback {
			fallback = ev
			haveFallback = true
		}
	}

	if haveFallback {
		return fallback, nil
	}
	if lastErr != nil {
		return WindowEvent{}, lastErr
	}

	return WindowEvent{}, errors.New().New(ErrBackendUnavailable)
}
