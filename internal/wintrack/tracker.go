package wintrack

import (
	"context"
	"sync"
	"time"

	"codeberg.org/mutker/monitorctl/internal/errors"
	"codeberg.org/mutker/monitorctl/internal/logger"
)

const defaultPollInterval = time.Second

// Config selects and paces the window backend. An empty Backend name
// probes the known backends in order and merges the available ones; a
// query then prefers the first backend that resolves a window class.
type Config struct {
	Backend      string
	PollInterval time.Duration
	BufferSize   int
}

type tracker struct {
	backend Backend
	hub     *Hub
	poll    time.Duration

	mu     sync.Mutex
	last   WindowEvent
	primed bool
}

// NewTracker selects a backend and prepares the polling loop. Run must
// be called before events flow.
func NewTracker(cfg Config) (Tracker, error) {
	backend, err := selectBackend(cfg.Backend, NewHyprlandBackend(), NewX11Backend())
	if err != nil {
		return nil, err
	}

	logger.Info().Str("backend", backend.Name()).Msg("Window backend selected")

	return newTrackerWithBackend(backend, cfg), nil
}

func newTrackerWithBackend(backend Backend, cfg Config) *tracker {
	poll := cfg.PollInterval
	if poll <= 0 {
		poll = defaultPollInterval
	}

	return &tracker{
		backend: backend,
		hub:     NewHub(cfg.BufferSize),
		poll:    poll,
	}
}

func selectBackend(name string, candidates ...Backend) (Backend, error) {
	if name != "" {
		for _, b := range candidates {
			if b.Name() == name {
				if !b.Available() {
					return nil, errors.New().WithData(ErrBackendUnavailable, name)
				}
				return b, nil
			}
		}
		return nil, errors.New().WithData(ErrBackendUnavailable, name)
	}

	var available []Backend
	probed := make([]string, 0, len(candidates))
	for _, b := range candidates {
		if b.Available() {
			available = append(available, b)
			continue
		}
		probed = append(probed, b.Name())
	}
	if len(available) > 0 {
		return newUnionBackend(available), nil
	}

	return nil, errors.New().WithData(ErrBackendUnavailable, probed)
}

// NewNoopTracker returns a tracker that never observes any window.
// It keeps sessions runnable on systems without a usable backend;
// profiles then change only through manual application.
func NewNoopTracker() Tracker {
	return &noopTracker{hub: NewHub(0)}
}

type noopTracker struct {
	hub *Hub
}

func (t *noopTracker) Run(ctx context.Context) error {
	defer t.hub.Close()
	<-ctx.Done()

	return nil
}

func (t *noopTracker) Current(context.Context) (WindowEvent, error) {
	return WindowEvent{}, errors.New().New(ErrBackendUnavailable)
}

func (t *noopTracker) Subscribe(name string) (<-chan WindowEvent, func()) {
	return t.hub.Subscribe(name)
}

func (t *noopTracker) Latest() (WindowEvent, bool) {
	return t.hub.Latest()
}

func (t *noopTracker) Backend() string { return "none" }

// Run polls the backend until the context is cancelled. Identical
// consecutive events are suppressed; backend hiccups are logged and
// skipped so one failed poll never tears the tracker down.
func (t *tracker) Run(ctx context.Context) error {
	defer t.hub.Close()

	t.observe(ctx)

	ticker := time.NewTicker(t.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			t.observe(ctx)
		}
	}
}

func (t *tracker) observe(ctx context.Context) {
	ev, err := t.backend.Current(ctx)
	if err != nil {
		logger.Debug().Err(err).Str("backend", t.backend.Name()).Msg("Window poll failed")
		return
	}

	t.mu.Lock()
	changed := !t.primed || ev != t.last
	t.last = ev
	t.primed = true
	t.mu.Unlock()

	if changed {
		logger.Debug().
			Str("class", ev.Class).
			Str("title", ev.Title).
			Bool("fullscreen", ev.IsFullscreen).
			Msg("Focused window changed")
		t.hub.Publish(ev)
	}
}

func (t *tracker) Current(ctx context.Context) (WindowEvent, error) {
	return t.backend.Current(ctx)
}

func (t *tracker) Subscribe(name string) (<-chan WindowEvent, func()) {
	return t.hub.Subscribe(name)
}

func (t *tracker) Latest() (WindowEvent, bool) {
	return t.hub.Latest()
}

func (t *tracker) Backend() string {
	return t.backend.Name()
}
