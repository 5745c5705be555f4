package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"codeberg.org/mutker/monitorctl/internal/config"
	"codeberg.org/mutker/monitorctl/internal/ddc"
	"codeberg.org/mutker/monitorctl/internal/display"
	"codeberg.org/mutker/monitorctl/internal/errors"
	"codeberg.org/mutker/monitorctl/internal/profile"
	"codeberg.org/mutker/monitorctl/internal/wintrack"
)

type fakeRegistry struct {
	mu        sync.Mutex
	monitors  []display.Monitor
	detectErr error
	changed   int
}

func (r *fakeRegistry) Detect(context.Context) ([]display.Monitor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.detectErr != nil {
		return nil, r.detectErr
	}

	return append([]display.Monitor(nil), r.monitors...), nil
}

func (r *fakeRegistry) ArrangementChanged(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changed++

	return nil
}

func (r *fakeRegistry) setGeometry(index int, geom display.Geometry) {
	r.mu.Lock()
	r.monitors[index].Geometry = geom
	r.mu.Unlock()
}

func (r *fakeRegistry) changedCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.changed
}

func boolp(v bool) *bool        { return &v }
func floatp(v float64) *float64 { return &v }

func secondMonitor() display.Monitor {
	return display.Monitor{
		Identity: display.MonitorIdentity{
			Manufacturer: "GSM",
			Model:        "LG HDR 4K",
			Serial:       "0x01010101",
			Bus:          "/dev/i2c-5",
		},
		Info:     ddc.DisplayInfo{Display: 2, Bus: "/dev/i2c-5"},
		Geometry: display.Geometry{X: 1920, Width: 3840, Height: 2160},
	}
}

func engineTestConfig() *config.Config {
	return &config.Config{
		DefaultProfile: "default",
		DDC:            config.DDCConfig{RetryCount: 1, SleepMultiplier: 1.0, CacheTTLMs: 500},
		Tracker:        config.TrackerConfig{ZeroPositionPolicy: "primary"},
		Adaptive: config.AdaptiveConfig{
			Interval:         5,
			MinBrightness:    20,
			MaxBrightness:    80,
			MinContrast:      30,
			MaxContrast:      70,
			Smoothing:        0.7,
			FailureThreshold: 10,
		},
		Profiles: []config.ProfileConfig{
			{Name: "coding", Priority: 10, Classes: []string{"code*"}},
		},
		Monitors: []config.MonitorConfig{
			{
				Identifier:     "U2720Q",
				FullscreenOnly: true,
				AutoContrast:   boolp(false),
				Unsupported:    []int{int(ddc.FeatureInputSource)},
			},
		},
	}
}

func TestEngineBuildsSessionPerMonitor(t *testing.T) {
	reg := &fakeRegistry{monitors: []display.Monitor{testMonitor(), secondMonitor()}}
	engine, err := NewEngine(engineTestConfig(), Services{
		Registry:  reg,
		Tracker:   &hubTracker{hub: wintrack.NewHub(4)},
		Collector: &recordingCollector{},
		States:    newFakeStates(),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- engine.Run(ctx) }()

	require.Eventually(t, func() bool { return len(engine.Sessions()) == 2 }, time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	sessions := engine.Sessions()
	require.Equal(t, "u2720q_h7mw013", sessions[0].ID())
	require.Equal(t, "lg_hdr_4k_0x01010101", sessions[1].ID())

	// The configured section applies to the matching monitor only
	first := sessions[0]
	require.True(t, first.cfg.FullscreenOnly)
	require.False(t, first.cfg.AutoContrast)
	require.Equal(t, []ddc.Feature{ddc.FeatureInputSource}, first.deps.Client.Unsupported())

	second := sessions[1]
	require.False(t, second.cfg.FullscreenOnly)
	require.True(t, second.cfg.AutoContrast)
	require.Empty(t, second.deps.Client.Unsupported())
}

func TestEngineDetectFailurePropagates(t *testing.T) {
	reg := &fakeRegistry{detectErr: errors.New().New(errors.ErrNoDisplays)}
	engine, err := NewEngine(engineTestConfig(), Services{
		Registry: reg,
		Tracker:  &hubTracker{hub: wintrack.NewHub(4)},
		States:   newFakeStates(),
	})
	require.NoError(t, err)

	err = engine.Run(context.Background())
	require.Error(t, err)
	require.True(t, errors.HasCode(err, errors.ErrNoDisplays))
}

func TestEngineRejectsInvalidProfilePattern(t *testing.T) {
	cfg := engineTestConfig()
	cfg.Profiles = append(cfg.Profiles, config.ProfileConfig{Name: "bad", Classes: []string{"[z-a]"}})

	_, err := NewEngine(cfg, Services{})
	require.Error(t, err)
	require.True(t, errors.HasCode(err, profile.ErrInvalidPattern))
}

func TestEngineRefreshLayout(t *testing.T) {
	reg := &fakeRegistry{monitors: []display.Monitor{testMonitor()}}
	engine, err := NewEngine(engineTestConfig(), Services{
		Registry:  reg,
		Tracker:   &hubTracker{hub: wintrack.NewHub(4)},
		Collector: &recordingCollector{},
		States:    newFakeStates(),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- engine.Run(ctx) }()

	require.Eventually(t, func() bool { return len(engine.Sessions()) == 1 }, time.Second, 10*time.Millisecond)

	moved := display.Geometry{X: 1920, Width: 2560, Height: 1440}
	reg.setGeometry(0, moved)
	require.NoError(t, engine.RefreshLayout(context.Background()))
	require.Equal(t, 1, reg.changedCalls())

	sess := engine.Sessions()[0]
	sess.mu.Lock()
	geom := sess.geom
	sess.mu.Unlock()
	require.Equal(t, moved, geom)

	cancel()
	require.NoError(t, <-done)
}

func TestMonitorConfigFor(t *testing.T) {
	monitors := []config.MonitorConfig{
		{Identifier: "U2720Q", Sharpness: intp(2)},
		{Identifier: "H7MW013"},
	}

	matched := monitorConfigFor(monitors, testMonitor().Identity)
	require.Equal(t, "U2720Q", matched.Identifier)

	bySerial := monitorConfigFor(monitors[1:], testMonitor().Identity)
	require.Equal(t, "H7MW013", bySerial.Identifier)

	unmatched := monitorConfigFor(monitors, display.MonitorIdentity{Model: "Other", Serial: "X"})
	require.Empty(t, unmatched.Identifier)
}

func TestMergeAdaptive(t *testing.T) {
	base := engineTestConfig().Adaptive

	merged := mergeAdaptive(base, nil)
	require.Equal(t, 5*time.Second, merged.Interval)
	require.Equal(t, 20, merged.MinBrightness)
	require.Equal(t, 10, merged.FailureThreshold)

	merged = mergeAdaptive(base, &config.AdaptiveOverride{
		Interval:      floatp(2.5),
		MinBrightness: intp(10),
		Smoothing:     floatp(0.5),
	})
	require.Equal(t, 2500*time.Millisecond, merged.Interval)
	require.Equal(t, 10, merged.MinBrightness)
	require.Equal(t, 80, merged.MaxBrightness)
	require.InDelta(t, 0.5, merged.Smoothing, 0.0001)
	require.Equal(t, 10, merged.FailureThreshold)
}

func TestSessionConfigDefaults(t *testing.T) {
	cfg := engineTestConfig()

	defaults := sessionConfig(cfg, config.MonitorConfig{})
	require.True(t, defaults.AutoColor)
	require.True(t, defaults.AutoBrightness)
	require.True(t, defaults.AutoContrast)
	require.False(t, defaults.FullscreenOnly)
	require.Equal(t, "primary", defaults.ZeroPositionPolicy)

	overridden := sessionConfig(cfg, config.MonitorConfig{
		AutoColor:      boolp(false),
		FullscreenOnly: true,
		SharpnessMax:   intp(4),
		Input:          intp(17),
	})
	require.False(t, overridden.AutoColor)
	require.True(t, overridden.FullscreenOnly)
	require.Equal(t, 4, *overridden.SharpnessMax)
	require.Equal(t, 17, *overridden.Input)
}
