package session

import (
	"context"
	"sync"
	"time"

	"codeberg.org/mutker/monitorctl/internal/adaptive"
	"codeberg.org/mutker/monitorctl/internal/config"
	"codeberg.org/mutker/monitorctl/internal/ddc"
	"codeberg.org/mutker/monitorctl/internal/display"
	"codeberg.org/mutker/monitorctl/internal/logger"
	"codeberg.org/mutker/monitorctl/internal/profile"
)

// Engine owns the shared services and builds one session per detected
// monitor. Monitors whose geometry could not be resolved still get a
// session; profile matching for them just scopes to the whole desktop.
type Engine struct {
	cfg      *config.Config
	matcher  *profile.Matcher
	services Services

	mu       sync.Mutex
	sessions []*Session
}

func NewEngine(cfg *config.Config, services Services) (*Engine, error) {
	profiles, err := profile.FromConfig(cfg.Profiles)
	if err != nil {
		return nil, err
	}

	return &Engine{
		cfg:      cfg,
		matcher:  profile.NewMatcher(profiles, cfg.DefaultProfile),
		services: services,
	}, nil
}

// Run detects monitors, builds their sessions and drives the tracker
// and every session until the context is canceled
func (e *Engine) Run(ctx context.Context) error {
	monitors, err := e.services.Registry.Detect(ctx)
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.sessions = e.sessions[:0]
	for i := range monitors {
		e.sessions = append(e.sessions, e.buildSession(monitors[i]))
	}
	sessions := append([]*Session(nil), e.sessions...)
	e.mu.Unlock()

	logger.Info().
		Int("monitors", len(sessions)).
		Str("backend", e.services.Tracker.Backend()).
		Msg("Engine started")

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := e.services.Tracker.Run(ctx); err != nil {
			logger.Error().Err(err).Msg("Window tracker stopped")
		}
	}()

	for _, sess := range sessions {
		wg.Add(1)
		go func(sess *Session) {
			defer wg.Done()
			if err := sess.Run(ctx); err != nil {
				logger.Error().Err(err).Str("monitor", sess.ID()).Msg("Session stopped")
			}
		}(sess)
	}

	wg.Wait()

	return nil
}

// RefreshLayout re-queries monitor geometry after an arrangement
// change and pushes the new rectangles into running sessions.
// Monitors added or removed since startup need a restart.
func (e *Engine) RefreshLayout(ctx context.Context) error {
	if err := e.services.Registry.ArrangementChanged(ctx); err != nil {
		return err
	}

	monitors, err := e.services.Registry.Detect(ctx)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	for _, sess := range e.sessions {
		for i := range monitors {
			if monitors[i].Identity.Same(sess.monitor.Identity) {
				sess.SetGeometry(monitors[i].Geometry)
				break
			}
		}
	}

	logger.Info().Int("monitors", len(monitors)).Msg("Monitor layout refreshed")

	return nil
}

// Sessions returns the engine's sessions in detection order
func (e *Engine) Sessions() []*Session {
	e.mu.Lock()
	defer e.mu.Unlock()

	return append([]*Session(nil), e.sessions...)
}

func (e *Engine) buildSession(monitor display.Monitor) *Session {
	monitorCfg := monitorConfigFor(e.cfg.Monitors, monitor.Identity)

	client := ddc.NewClient(monitor.Info, ddc.ClientConfig{
		RetryCount:      e.cfg.DDC.RetryCount,
		SleepMultiplier: e.cfg.DDC.SleepMultiplier,
		CacheTTL:        time.Duration(e.cfg.DDC.CacheTTLMs) * time.Millisecond,
	})
	e.seedUnsupported(client, monitor.Identity.ConfigID(), monitorCfg.Unsupported)

	var controller *adaptive.Controller
	if e.services.Capture != nil {
		controller = adaptive.NewController(mergeAdaptive(e.cfg.Adaptive, monitorCfg.Adaptive), e.services.Capture)
	}

	return New(monitor, sessionConfig(e.cfg, monitorCfg), Deps{
		Client:     client,
		Matcher:    e.matcher,
		Controller: controller,
		Tracker:    e.services.Tracker,
		Collector:  e.services.Collector,
		States:     e.services.States,
	})
}

// seedUnsupported preloads the client's unsupported set from the
// monitor's configuration and from discoveries persisted by earlier
// runs
func (e *Engine) seedUnsupported(client ddc.Client, configID string, configured []int) {
	seed := append([]int(nil), configured...)
	if e.services.States != nil {
		state, err := e.services.States.Load(configID)
		if err != nil {
			logger.Warn().Err(err).Str("monitor", configID).Msg("Failed to load monitor state")
		} else {
			seed = append(seed, state.Unsupported...)
		}
	}

	if len(seed) == 0 {
		return
	}

	features := make([]ddc.Feature, len(seed))
	for i, code := range seed {
		features[i] = ddc.Feature(code)
	}
	client.SeedUnsupported(features)
}

// monitorConfigFor finds the configuration section matching a detected
// monitor; unmatched monitors run on defaults
func monitorConfigFor(monitors []config.MonitorConfig, identity display.MonitorIdentity) config.MonitorConfig {
	for _, monitorCfg := range monitors {
		if identity.MatchesIdentifier(monitorCfg.Identifier) {
			return monitorCfg
		}
	}

	return config.MonitorConfig{}
}

func sessionConfig(cfg *config.Config, monitorCfg config.MonitorConfig) Config {
	sessionCfg := Config{
		FullscreenOnly:     monitorCfg.FullscreenOnly,
		ZeroPositionPolicy: cfg.Tracker.ZeroPositionPolicy,
		AutoColor:          true,
		AutoBrightness:     true,
		AutoContrast:       true,
		RedGain:            monitorCfg.RedGain,
		GreenGain:          monitorCfg.GreenGain,
		BlueGain:           monitorCfg.BlueGain,
		Sharpness:          monitorCfg.Sharpness,
		SharpnessMax:       monitorCfg.SharpnessMax,
		Input:              monitorCfg.Input,
	}
	if monitorCfg.AutoColor != nil {
		sessionCfg.AutoColor = *monitorCfg.AutoColor
	}
	if monitorCfg.AutoBrightness != nil {
		sessionCfg.AutoBrightness = *monitorCfg.AutoBrightness
	}
	if monitorCfg.AutoContrast != nil {
		sessionCfg.AutoContrast = *monitorCfg.AutoContrast
	}

	return sessionCfg
}

// mergeAdaptive overlays a monitor's adaptive overrides onto the
// global defaults
func mergeAdaptive(base config.AdaptiveConfig, override *config.AdaptiveOverride) adaptive.Config {
	merged := adaptive.Config{
		Interval:         time.Duration(base.Interval * float64(time.Second)),
		MinBrightness:    base.MinBrightness,
		MaxBrightness:    base.MaxBrightness,
		MinContrast:      base.MinContrast,
		MaxContrast:      base.MaxContrast,
		Smoothing:        base.Smoothing,
		FailureThreshold: base.FailureThreshold,
	}
	if override == nil {
		return merged
	}

	if override.Interval != nil {
		merged.Interval = time.Duration(*override.Interval * float64(time.Second))
	}
	if override.Smoothing != nil {
		merged.Smoothing = *override.Smoothing
	}
	if override.MinBrightness != nil {
		merged.MinBrightness = *override.MinBrightness
	}
	if override.MaxBrightness != nil {
		merged.MaxBrightness = *override.MaxBrightness
	}
	if override.MinContrast != nil {
		merged.MinContrast = *override.MinContrast
	}
	if override.MaxContrast != nil {
		merged.MaxContrast = *override.MaxContrast
	}

	return merged
}
