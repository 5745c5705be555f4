package session

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"codeberg.org/mutker/monitorctl/internal/adaptive"
	"codeberg.org/mutker/monitorctl/internal/capture"
	"codeberg.org/mutker/monitorctl/internal/config"
	"codeberg.org/mutker/monitorctl/internal/ddc"
	"codeberg.org/mutker/monitorctl/internal/display"
	"codeberg.org/mutker/monitorctl/internal/errors"
	"codeberg.org/mutker/monitorctl/internal/profile"
	"codeberg.org/mutker/monitorctl/internal/telemetry"
	"codeberg.org/mutker/monitorctl/internal/wintrack"
)

type write struct {
	feature ddc.Feature
	value   int
	force   bool
}

type fakeClient struct {
	mu          sync.Mutex
	values      map[ddc.Feature]ddc.FeatureValue
	writes      []write
	writeErrs   map[ddc.Feature]error
	unsupported map[ddc.Feature]struct{}
}

func newFakeClient(values map[ddc.Feature]int) *fakeClient {
	c := &fakeClient{
		values:      make(map[ddc.Feature]ddc.FeatureValue, len(values)),
		writeErrs:   make(map[ddc.Feature]error),
		unsupported: make(map[ddc.Feature]struct{}),
	}
	for feature, value := range values {
		c.values[feature] = ddc.FeatureValue{Current: value, Max: 100}
	}

	return c
}

func (c *fakeClient) setValue(feature ddc.Feature, value int) {
	c.mu.Lock()
	c.values[feature] = ddc.FeatureValue{Current: value, Max: 100}
	c.mu.Unlock()
}

func (c *fakeClient) failWrites(feature ddc.Feature, err error) {
	c.mu.Lock()
	if err == nil {
		delete(c.writeErrs, feature)
	} else {
		c.writeErrs[feature] = err
	}
	c.mu.Unlock()
}

func (c *fakeClient) Read(_ context.Context, feature ddc.Feature) (ddc.FeatureValue, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.unsupported[feature]; ok {
		return ddc.FeatureValue{}, errors.New().WithData(ddc.ErrUnsupportedFeature, feature.String())
	}
	value, ok := c.values[feature]
	if !ok {
		return ddc.FeatureValue{}, errors.New().New(ddc.ErrTransportFailed)
	}

	return value, nil
}

func (c *fakeClient) ReadAll(ctx context.Context, features []ddc.Feature) map[ddc.Feature]ddc.FeatureValue {
	out := make(map[ddc.Feature]ddc.FeatureValue, len(features))
	for _, feature := range features {
		if value, err := c.Read(ctx, feature); err == nil {
			out[feature] = value
		}
	}

	return out
}

func (c *fakeClient) Write(_ context.Context, feature ddc.Feature, value int, force bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err, ok := c.writeErrs[feature]; ok {
		return err
	}
	if _, ok := c.unsupported[feature]; ok && !force {
		return errors.New().WithData(ddc.ErrUnsupportedFeature, feature.String())
	}

	c.writes = append(c.writes, write{feature: feature, value: value, force: force})
	c.values[feature] = ddc.FeatureValue{Current: value, Max: 100}

	return nil
}

func (c *fakeClient) Capabilities(context.Context) (*ddc.Capabilities, error) {
	return &ddc.Capabilities{}, nil
}

func (c *fakeClient) Unsupported() []ddc.Feature {
	c.mu.Lock()
	defer c.mu.Unlock()

	features := make([]ddc.Feature, 0, len(c.unsupported))
	for feature := range c.unsupported {
		features = append(features, feature)
	}
	sort.Slice(features, func(i, j int) bool { return features[i] < features[j] })

	return features
}

func (c *fakeClient) SeedUnsupported(features []ddc.Feature) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, feature := range features {
		c.unsupported[feature] = struct{}{}
	}
}

func (c *fakeClient) Display() int { return 1 }
func (c *fakeClient) Bus() string  { return "/dev/i2c-4" }

type hubTracker struct {
	hub *wintrack.Hub
}

func (t *hubTracker) Run(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

func (t *hubTracker) Current(context.Context) (wintrack.WindowEvent, error) {
	return wintrack.WindowEvent{}, nil
}

func (t *hubTracker) Subscribe(name string) (<-chan wintrack.WindowEvent, func()) {
	return t.hub.Subscribe(name)
}

func (t *hubTracker) Latest() (wintrack.WindowEvent, bool) {
	return t.hub.Latest()
}

func (t *hubTracker) Backend() string { return "fake" }

type recordingCollector struct {
	mu          sync.Mutex
	changes     []telemetry.SettingChange
	transitions []telemetry.ProfileTransition
	samples     []telemetry.AdaptiveSample
}

func (r *recordingCollector) RecordSettingChange(_ context.Context, change *telemetry.SettingChange) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, *change)

	return nil
}

func (r *recordingCollector) RecordProfileTransition(_ context.Context, transition *telemetry.ProfileTransition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions = append(r.transitions, *transition)

	return nil
}

func (r *recordingCollector) RecordAdaptiveSample(_ context.Context, sample *telemetry.AdaptiveSample) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.samples = append(r.samples, *sample)

	return nil
}

func (r *recordingCollector) RunID() string { return "test-run" }
func (r *recordingCollector) Close() error  { return nil }

type fakeStates struct {
	mu          sync.Mutex
	active      map[string]string
	unsupported map[string][]int
}

func newFakeStates() *fakeStates {
	return &fakeStates{active: map[string]string{}, unsupported: map[string][]int{}}
}

func (s *fakeStates) Load(configID string) (config.MonitorState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return config.MonitorState{ActiveProfile: s.active[configID], Unsupported: s.unsupported[configID]}, nil
}

func (s *fakeStates) SaveUnsupported(configID string, features []int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unsupported[configID] = append([]int(nil), features...)

	return nil
}

func (s *fakeStates) SaveActiveProfile(configID, profileName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active[configID] = profileName

	return nil
}

type fakeCapture struct {
	mu    sync.Mutex
	stats capture.Stats
	err   error
}

func (f *fakeCapture) Snapshot(context.Context) (capture.Stats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.stats, f.err
}

func (f *fakeCapture) MinInterval() time.Duration { return 0 }
func (f *fakeCapture) Method() string             { return "fake" }

func intp(v int) *int { return &v }

func testMonitor() display.Monitor {
	return display.Monitor{
		Identity: display.MonitorIdentity{
			Manufacturer: "DEL",
			Model:        "U2720Q",
			Serial:       "H7MW013",
			Bus:          "/dev/i2c-4",
		},
		Info:     ddc.DisplayInfo{Display: 1, Bus: "/dev/i2c-4"},
		Geometry: display.Geometry{Width: 1920, Height: 1080},
	}
}

func testMatcher(t *testing.T) *profile.Matcher {
	t.Helper()

	profiles, err := profile.FromConfig([]config.ProfileConfig{
		{Name: "coding", Priority: 10, Classes: []string{"code*"}, Brightness: intp(35), Contrast: intp(60)},
		{Name: "video", Priority: 20, Classes: []string{"mpv"}, Brightness: intp(70), Color: intp(0x05)},
	})
	require.NoError(t, err)

	return profile.NewMatcher(profiles, "default")
}

func testSessionConfig() Config {
	return Config{
		ZeroPositionPolicy: profile.ZeroPositionPrimary,
		AutoColor:          true,
		AutoBrightness:     true,
		AutoContrast:       true,
	}
}

func adaptiveTestConfig() adaptive.Config {
	return adaptive.Config{
		Interval:         time.Second,
		MinBrightness:    20,
		MaxBrightness:    80,
		MinContrast:      30,
		MaxContrast:      70,
		Smoothing:        0.7,
		FailureThreshold: 10,
	}
}

func windowEvent(class string) wintrack.WindowEvent {
	return wintrack.WindowEvent{Class: class, Title: class, X: 100, Y: 100, Width: 800, Height: 600}
}

type sessionFixture struct {
	session   *Session
	client    *fakeClient
	collector *recordingCollector
	states    *fakeStates
	hub       *wintrack.Hub
}

func newTestSession(t *testing.T, cfg Config, controller *adaptive.Controller) *sessionFixture {
	t.Helper()

	client := newFakeClient(map[ddc.Feature]int{
		ddc.FeatureBrightness: 50,
		ddc.FeatureContrast:   50,
	})
	collector := &recordingCollector{}
	states := newFakeStates()
	hub := wintrack.NewHub(4)

	sess := New(testMonitor(), cfg, Deps{
		Client:     client,
		Matcher:    testMatcher(t),
		Controller: controller,
		Tracker:    &hubTracker{hub: hub},
		Collector:  collector,
		States:     states,
	})

	return &sessionFixture{session: sess, client: client, collector: collector, states: states, hub: hub}
}

func TestTransitionAppliesProfileSettings(t *testing.T) {
	fx := newTestSession(t, testSessionConfig(), nil)

	fx.session.handleWindow(context.Background(), windowEvent("code"))

	require.Equal(t, "coding", fx.session.Active())
	require.Equal(t, []write{
		{ddc.FeatureBrightness, 35, false},
		{ddc.FeatureContrast, 60, false},
	}, fx.client.writes)

	require.Len(t, fx.collector.transitions, 1)
	transition := fx.collector.transitions[0]
	require.Empty(t, transition.From)
	require.Equal(t, "coding", transition.To)
	require.Equal(t, "class=code", transition.Cause)
	require.Equal(t, "u2720q_h7mw013", transition.Monitor)
	require.Equal(t, "coding", fx.states.active["u2720q_h7mw013"])

	require.Len(t, fx.collector.changes, 2)
	for _, change := range fx.collector.changes {
		require.Equal(t, telemetry.OriginProfile, change.Origin)
		require.Equal(t, 50, change.Previous)
	}
}

func TestRepeatedSelectionIsSuppressed(t *testing.T) {
	fx := newTestSession(t, testSessionConfig(), nil)
	ctx := context.Background()

	fx.session.handleWindow(ctx, windowEvent("code"))
	applied := len(fx.client.writes)

	fx.session.handleWindow(ctx, windowEvent("code"))

	require.Len(t, fx.client.writes, applied)
	require.Len(t, fx.collector.transitions, 1)
}

func TestUnchangedValuesSkipTheBus(t *testing.T) {
	fx := newTestSession(t, testSessionConfig(), nil)
	fx.client.setValue(ddc.FeatureBrightness, 35)

	fx.session.handleWindow(context.Background(), windowEvent("code"))

	require.Equal(t, []write{{ddc.FeatureContrast, 60, false}}, fx.client.writes)
	require.Len(t, fx.collector.changes, 1)
	require.Equal(t, ddc.FeatureContrast.String(), fx.collector.changes[0].Feature)
}

func TestColorWriteFailureDefersTransition(t *testing.T) {
	fx := newTestSession(t, testSessionConfig(), nil)
	ctx := context.Background()
	fx.client.failWrites(ddc.FeatureColorPreset, errors.New().New(ddc.ErrTransportTimeout))

	fx.session.handleWindow(ctx, windowEvent("mpv"))

	require.Empty(t, fx.session.Active())
	require.Empty(t, fx.collector.transitions)
	// The remaining settings still land while the transition stays open
	require.Contains(t, fx.client.writes, write{ddc.FeatureBrightness, 70, false})

	fx.client.failWrites(ddc.FeatureColorPreset, nil)
	fx.session.handleTick(ctx)

	require.Equal(t, "video", fx.session.Active())
	require.Len(t, fx.collector.transitions, 1)
	require.Equal(t, "color-retry", fx.collector.transitions[0].Cause)
}

func TestColorUnsupportedDoesNotBlockTransition(t *testing.T) {
	fx := newTestSession(t, testSessionConfig(), nil)
	fx.client.SeedUnsupported([]ddc.Feature{ddc.FeatureColorPreset})

	fx.session.handleWindow(context.Background(), windowEvent("mpv"))

	require.Equal(t, "video", fx.session.Active())
	require.Equal(t, []int{int(ddc.FeatureColorPreset)}, fx.states.unsupported["u2720q_h7mw013"])
}

func TestAdaptiveTickAppliesTargets(t *testing.T) {
	capt := &fakeCapture{stats: capture.Stats{Mean: 20, DarkRatio: 0.9}}
	controller := adaptive.NewController(adaptiveTestConfig(), capt)
	fx := newTestSession(t, testSessionConfig(), controller)

	fx.session.handleTick(context.Background())

	require.Equal(t, []write{
		{ddc.FeatureBrightness, 58, false},
		{ddc.FeatureContrast, 55, false},
	}, fx.client.writes)

	require.Len(t, fx.collector.samples, 1)
	sample := fx.collector.samples[0]
	require.InDelta(t, 20.0, sample.Mean, 0.001)
	require.Equal(t, 58, sample.Brightness)
	require.Equal(t, 55, sample.Contrast)

	require.Len(t, fx.collector.changes, 2)
	for _, change := range fx.collector.changes {
		require.Equal(t, telemetry.OriginAdaptive, change.Origin)
	}
}

func TestAdaptiveAxisFlags(t *testing.T) {
	capt := &fakeCapture{stats: capture.Stats{Mean: 20, DarkRatio: 0.9}}
	controller := adaptive.NewController(adaptiveTestConfig(), capt)
	cfg := testSessionConfig()
	cfg.AutoContrast = false
	fx := newTestSession(t, cfg, controller)

	fx.session.handleTick(context.Background())

	require.Equal(t, []write{{ddc.FeatureBrightness, 58, false}}, fx.client.writes)
}

func TestProfileTransitionRebaselinesAdaptive(t *testing.T) {
	capt := &fakeCapture{stats: capture.Stats{Mean: 200, BrightRatio: 0.8}}
	controller := adaptive.NewController(adaptiveTestConfig(), capt)
	fx := newTestSession(t, testSessionConfig(), controller)
	ctx := context.Background()

	// Bright content pulls both values down from the 50/50 start
	fx.session.handleTick(ctx)
	// The profile overrides them and becomes the new baseline
	fx.session.handleWindow(ctx, windowEvent("code"))
	// The next step moves from the profile's values, not the old ones
	fx.session.handleTick(ctx)

	require.Equal(t, []write{
		{ddc.FeatureBrightness, 45, false},
		{ddc.FeatureContrast, 45, false},
		{ddc.FeatureBrightness, 35, false},
		{ddc.FeatureContrast, 60, false},
		{ddc.FeatureBrightness, 34, false},
		{ddc.FeatureContrast, 52, false},
	}, fx.client.writes)

	require.Len(t, fx.collector.transitions, 1)
	require.Len(t, fx.collector.samples, 2)
}

func TestRunAppliesEventsUntilCanceled(t *testing.T) {
	fx := newTestSession(t, testSessionConfig(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- fx.session.Run(ctx) }()

	require.Eventually(t, func() bool {
		fx.hub.Publish(windowEvent("code"))
		return fx.session.Active() == "coding"
	}, time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestManualApply(t *testing.T) {
	fx := newTestSession(t, testSessionConfig(), nil)
	ctx := context.Background()

	err := fx.session.Apply(ctx, "missing")
	require.Error(t, err)
	require.True(t, errors.HasCode(err, ErrUnknownProfile))

	require.NoError(t, fx.session.Apply(ctx, "video"))
	require.Equal(t, "video", fx.session.Active())
	require.Equal(t, "manual", fx.collector.transitions[0].Cause)

	// The default profile is a valid target even when not declared
	require.NoError(t, fx.session.Apply(ctx, "default"))
	require.Equal(t, "default", fx.session.Active())
}

func TestManualSetFeature(t *testing.T) {
	fx := newTestSession(t, testSessionConfig(), nil)
	ctx := context.Background()

	require.NoError(t, fx.session.SetFeature(ctx, ddc.FeatureBrightness, 75))
	require.Equal(t, []write{{ddc.FeatureBrightness, 75, false}}, fx.client.writes)
	require.Len(t, fx.collector.changes, 1)
	require.Equal(t, telemetry.OriginManual, fx.collector.changes[0].Origin)

	// A value the display already reports never reaches the bus
	require.NoError(t, fx.session.SetFeature(ctx, ddc.FeatureContrast, 50))
	require.Len(t, fx.client.writes, 1)

	fx.client.SeedUnsupported([]ddc.Feature{ddc.FeatureInputSource})
	err := fx.session.SetFeature(ctx, ddc.FeatureInputSource, 2)
	require.True(t, errors.HasCode(err, ddc.ErrUnsupportedFeature))
	require.Equal(t, []int{int(ddc.FeatureInputSource)}, fx.states.unsupported["u2720q_h7mw013"])
}

func TestCalibrationAppliesGainsAndCapsSharpness(t *testing.T) {
	cfg := testSessionConfig()
	cfg.RedGain = intp(95)
	cfg.GreenGain = intp(98)
	cfg.Sharpness = intp(80)
	cfg.SharpnessMax = intp(4)
	cfg.Input = intp(15)
	fx := newTestSession(t, cfg, nil)

	fx.session.calibrate(context.Background())

	require.Equal(t, []write{
		{ddc.FeatureRedGain, 95, false},
		{ddc.FeatureGreenGain, 98, false},
		{ddc.FeatureSharpness, 4, false},
		{ddc.FeatureInputSource, 15, false},
	}, fx.client.writes)

	for _, change := range fx.collector.changes {
		require.Equal(t, telemetry.OriginManual, change.Origin)
	}
}
