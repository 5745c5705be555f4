package session

import (
	"context"
	"sync"
	"time"

	"codeberg.org/mutker/monitorctl/internal/adaptive"
	"codeberg.org/mutker/monitorctl/internal/ddc"
	"codeberg.org/mutker/monitorctl/internal/display"
	"codeberg.org/mutker/monitorctl/internal/errors"
	"codeberg.org/mutker/monitorctl/internal/logger"
	"codeberg.org/mutker/monitorctl/internal/profile"
	"codeberg.org/mutker/monitorctl/internal/telemetry"
	"codeberg.org/mutker/monitorctl/internal/wintrack"
)

// Session drives one monitor: it watches focus changes, applies the
// profile they imply and runs the adaptive loop between transitions.
// Every write for the monitor funnels through its protocol client, so
// values reach the bus in the order the session issued them.
type Session struct {
	monitor display.Monitor
	cfg     Config
	deps    Deps

	mu             sync.Mutex
	geom           display.Geometry
	active         string
	pending        string
	autoBrightness bool
	autoContrast   bool
}

func New(monitor display.Monitor, cfg Config, deps Deps) *Session {
	if deps.Collector == nil {
		deps.Collector, _ = telemetry.NewService(telemetry.DefaultConfig())
	}

	return &Session{
		monitor:        monitor,
		cfg:            cfg,
		deps:           deps,
		geom:           monitor.Geometry,
		autoBrightness: cfg.AutoBrightness,
		autoContrast:   cfg.AutoContrast,
	}
}

// ID is the monitor's stable configuration key
func (s *Session) ID() string {
	return s.monitor.Identity.ConfigID()
}

// Active returns the applied profile name, empty until the first
// transition completes
func (s *Session) Active() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.active
}

// SetGeometry replaces the monitor's desktop-space rectangle after an
// arrangement change
func (s *Session) SetGeometry(geom display.Geometry) {
	s.mu.Lock()
	s.geom = geom
	s.mu.Unlock()
}

// Run subscribes to window events and drives the session until the
// context is canceled. Focus changes and adaptive ticks are handled
// on this goroutine, one at a time.
func (s *Session) Run(ctx context.Context) error {
	events, release := s.deps.Tracker.Subscribe(s.ID())
	defer release()

	s.calibrate(ctx)

	var tick <-chan time.Time
	if s.deps.Controller != nil {
		ticker := time.NewTicker(s.deps.Controller.Interval())
		defer ticker.Stop()
		tick = ticker.C
	}

	logger.Debug().
		Str("monitor", s.monitor.Identity.String()).
		Str("bus", s.deps.Client.Bus()).
		Msg("Session started")

	// The tracker may have published its first observation before this
	// subscription existed
	if ev, ok := s.deps.Tracker.Latest(); ok {
		s.handleWindow(ctx, ev)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			s.handleWindow(ctx, ev)
		case <-tick:
			s.handleTick(ctx)
		}
	}
}

// Apply switches the monitor to a declared profile outside the
// matcher's control, e.g. from the command line
func (s *Session) Apply(ctx context.Context, name string) error {
	if _, ok := s.deps.Matcher.Lookup(name); !ok && name != s.deps.Matcher.Default() {
		return errors.New().WithData(ErrUnknownProfile, name)
	}

	s.applyProfile(ctx, name, "manual")

	return nil
}

// SetFeature writes a single feature value outside the matcher's
// control. The client serializes it with the session's own writes.
func (s *Session) SetFeature(ctx context.Context, feature ddc.Feature, value int) error {
	return s.apply(ctx, feature, value, telemetry.OriginManual)
}

// calibrate applies monitor-level gains and sharpness once at startup.
// Failures are logged and skipped; a display that rejects calibration
// still gets profile and adaptive control.
func (s *Session) calibrate(ctx context.Context) {
	gains := []struct {
		feature ddc.Feature
		value   *int
	}{
		{ddc.FeatureRedGain, s.cfg.RedGain},
		{ddc.FeatureGreenGain, s.cfg.GreenGain},
		{ddc.FeatureBlueGain, s.cfg.BlueGain},
	}
	for _, gain := range gains {
		if gain.value == nil {
			continue
		}
		_ = s.apply(ctx, gain.feature, *gain.value, telemetry.OriginManual)
	}

	if s.cfg.Sharpness != nil {
		s.applySharpness(ctx, *s.cfg.Sharpness, telemetry.OriginManual)
	}

	if s.cfg.Input != nil {
		_ = s.apply(ctx, ddc.FeatureInputSource, *s.cfg.Input, telemetry.OriginManual)
	}
}

func (s *Session) handleWindow(ctx context.Context, ev wintrack.WindowEvent) {
	s.mu.Lock()
	opts := profile.SelectOptions{
		FullscreenOnly:     s.cfg.FullscreenOnly,
		ZeroPositionPolicy: s.cfg.ZeroPositionPolicy,
		Current:            s.active,
	}
	geom := s.geom
	s.mu.Unlock()

	selected := s.deps.Matcher.Select(ev, geom, opts)
	if selected == "" {
		// A gate kept the "current" profile before any profile was
		// applied; start from the default
		selected = s.deps.Matcher.Default()
	}

	s.transition(ctx, selected, transitionCause(ev))
}

func (s *Session) handleTick(ctx context.Context) {
	s.mu.Lock()
	pending := s.pending
	s.mu.Unlock()

	if pending != "" {
		s.applyProfile(ctx, pending, "color-retry")
	}

	controller := s.deps.Controller
	if controller == nil || !controller.Enabled() {
		return
	}

	s.mu.Lock()
	autoB, autoC := s.autoBrightness, s.autoContrast
	s.mu.Unlock()
	if !autoB && !autoC {
		return
	}

	levels, ok := s.currentLevels(ctx)
	if !ok {
		return
	}

	targets, err := controller.Evaluate(ctx, levels)
	if err != nil {
		if !errors.HasCode(err, adaptive.ErrDisabled) {
			logger.Debug().Err(err).Str("monitor", s.ID()).Msg("Adaptive evaluation failed")
		}

		return
	}

	if autoB && targets.BrightnessChanged {
		_ = s.apply(ctx, ddc.FeatureBrightness, targets.Brightness, telemetry.OriginAdaptive)
	}
	if autoC && targets.ContrastChanged {
		_ = s.apply(ctx, ddc.FeatureContrast, targets.Contrast, telemetry.OriginAdaptive)
	}

	if err := s.deps.Collector.RecordAdaptiveSample(ctx, &telemetry.AdaptiveSample{
		Timestamp:   time.Now(),
		Monitor:     s.ID(),
		Mean:        targets.Stats.Mean,
		DarkRatio:   targets.Stats.DarkRatio,
		BrightRatio: targets.Stats.BrightRatio,
		Brightness:  targets.Brightness,
		Contrast:    targets.Contrast,
	}); err != nil {
		logger.Debug().Err(err).Msg("Failed to record adaptive sample")
	}
}

// transition applies the selected profile unless it is already active
func (s *Session) transition(ctx context.Context, selected, cause string) {
	s.mu.Lock()
	current := s.active
	s.mu.Unlock()

	if selected == current {
		return
	}

	s.applyProfile(ctx, selected, cause)
}

func (s *Session) applyProfile(ctx context.Context, name, cause string) {
	prof, _ := s.deps.Matcher.Lookup(name)

	s.mu.Lock()
	from := s.active
	s.mu.Unlock()

	colorOK := s.applyColor(ctx, prof)

	if prof.Settings.Brightness != nil {
		_ = s.apply(ctx, ddc.FeatureBrightness, *prof.Settings.Brightness, telemetry.OriginProfile)
	}
	if prof.Settings.Contrast != nil {
		_ = s.apply(ctx, ddc.FeatureContrast, *prof.Settings.Contrast, telemetry.OriginProfile)
	}
	if prof.Settings.Sharpness != nil {
		s.applySharpness(ctx, *prof.Settings.Sharpness, telemetry.OriginProfile)
	}
	if prof.Settings.Input != nil {
		_ = s.apply(ctx, ddc.FeatureInputSource, *prof.Settings.Input, telemetry.OriginProfile)
	}

	if !colorOK {
		s.mu.Lock()
		s.pending = name
		s.mu.Unlock()

		logger.Warn().
			Str("monitor", s.ID()).
			Str("profile", name).
			Msg("Color write failed, transition will retry")

		return
	}

	autoB := s.cfg.AutoBrightness
	if prof.Settings.AutoBrightness != nil {
		autoB = *prof.Settings.AutoBrightness
	}
	autoC := s.cfg.AutoContrast
	if prof.Settings.AutoContrast != nil {
		autoC = *prof.Settings.AutoContrast
	}

	s.mu.Lock()
	s.active = name
	s.pending = ""
	s.autoBrightness = autoB
	s.autoContrast = autoC
	s.mu.Unlock()

	// The applied settings are the adaptive baseline from here on
	if s.deps.Controller != nil {
		s.deps.Controller.Reset()
	}

	if s.deps.States != nil {
		if err := s.deps.States.SaveActiveProfile(s.ID(), name); err != nil {
			logger.Warn().Err(err).Str("monitor", s.ID()).Msg("Failed to persist active profile")
		}
	}

	if err := s.deps.Collector.RecordProfileTransition(ctx, &telemetry.ProfileTransition{
		Timestamp: time.Now(),
		Monitor:   s.ID(),
		From:      from,
		To:        name,
		Cause:     cause,
	}); err != nil {
		logger.Debug().Err(err).Msg("Failed to record profile transition")
	}

	logger.Info().
		Str("monitor", s.ID()).
		Str("from", from).
		Str("to", name).
		Str("cause", cause).
		Msg("Profile applied")
}

// applyColor resolves and writes the profile's color setting. A
// definitive "unsupported" counts as done; transport failures leave
// the transition unmarked so it retries.
func (s *Session) applyColor(ctx context.Context, prof profile.Profile) bool {
	if prof.Settings.Color == nil || !s.cfg.AutoColor {
		return true
	}

	feature, value := ddc.ColorFeature(*prof.Settings.Color)
	err := s.apply(ctx, feature, value, telemetry.OriginProfile)
	if err == nil || ddc.IsUnsupported(err) {
		return true
	}

	return false
}

func (s *Session) applySharpness(ctx context.Context, value int, origin string) {
	if s.cfg.SharpnessMax != nil && value > *s.cfg.SharpnessMax {
		value = *s.cfg.SharpnessMax
	}
	_ = s.apply(ctx, ddc.FeatureSharpness, value, origin)
}

// apply writes one feature value through the client, recording the
// change. Values the display already has are suppressed before they
// reach the bus.
func (s *Session) apply(ctx context.Context, feature ddc.Feature, value int, origin string) error {
	previous := -1
	if current, err := s.deps.Client.Read(ctx, feature); err == nil {
		if current.Current == value {
			return nil
		}
		previous = current.Current
	}

	if err := s.deps.Client.Write(ctx, feature, value, false); err != nil {
		if ddc.IsUnsupported(err) {
			s.persistUnsupported()
		}
		logger.Warn().
			Err(err).
			Str("monitor", s.ID()).
			Str("feature", feature.String()).
			Int("value", value).
			Msg("Feature write failed")

		return err
	}

	if err := s.deps.Collector.RecordSettingChange(ctx, &telemetry.SettingChange{
		Timestamp: time.Now(),
		Monitor:   s.ID(),
		Feature:   feature.String(),
		Previous:  previous,
		Value:     value,
		Origin:    origin,
	}); err != nil {
		logger.Debug().Err(err).Msg("Failed to record setting change")
	}

	return nil
}

// currentLevels reads the monitor's applied brightness and contrast,
// the baseline the next smoothing step starts from. Reads are served
// from the client cache when it is fresh.
func (s *Session) currentLevels(ctx context.Context) (adaptive.Levels, bool) {
	brightness, err := s.deps.Client.Read(ctx, ddc.FeatureBrightness)
	if err != nil {
		logger.Debug().Err(err).Str("monitor", s.ID()).Msg("Brightness read failed, skipping adaptive cycle")
		return adaptive.Levels{}, false
	}

	contrast, err := s.deps.Client.Read(ctx, ddc.FeatureContrast)
	if err != nil {
		logger.Debug().Err(err).Str("monitor", s.ID()).Msg("Contrast read failed, skipping adaptive cycle")
		return adaptive.Levels{}, false
	}

	return adaptive.Levels{Brightness: brightness.Current, Contrast: contrast.Current}, true
}

// persistUnsupported saves the client's unsupported set so later runs
// skip the probing round-trips
func (s *Session) persistUnsupported() {
	if s.deps.States == nil {
		return
	}

	features := s.deps.Client.Unsupported()
	codes := make([]int, len(features))
	for i, feature := range features {
		codes[i] = int(feature)
	}

	if err := s.deps.States.SaveUnsupported(s.ID(), codes); err != nil {
		logger.Warn().Err(err).Str("monitor", s.ID()).Msg("Failed to persist unsupported features")
	}
}

// transitionCause names what drove a transition in logs and telemetry
func transitionCause(ev wintrack.WindowEvent) string {
	if ev.Class != "" {
		return "class=" + ev.Class
	}
	if ev.Title != "" {
		return "title=" + ev.Title
	}

	return "desktop"
}
