package adaptive_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeberg.org/mutker/monitorctl/internal/adaptive"
	"codeberg.org/mutker/monitorctl/internal/capture"
	"codeberg.org/mutker/monitorctl/internal/errors"
)

type fakeCapture struct {
	mu    sync.Mutex
	stats capture.Stats
	err   error
	floor time.Duration
	calls int
}

func (f *fakeCapture) Snapshot(_ context.Context) (capture.Stats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	if f.err != nil {
		return capture.Stats{}, f.err
	}

	return f.stats, nil
}

func (f *fakeCapture) MinInterval() time.Duration { return f.floor }
func (f *fakeCapture) Method() string             { return "fake" }

func (f *fakeCapture) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.calls
}

func testConfig() adaptive.Config {
	return adaptive.Config{
		Interval:         5 * time.Second,
		MinBrightness:    20,
		MaxBrightness:    80,
		MinContrast:      30,
		MaxContrast:      70,
		Smoothing:        0.7,
		FailureThreshold: 10,
	}
}

func TestEvaluateDarkScreenRaisesBrightness(t *testing.T) {
	svc := &fakeCapture{stats: capture.Stats{Mean: 10, DarkRatio: 0.9, BrightRatio: 0.0}}
	c := adaptive.NewController(testConfig(), svc)

	targets, err := c.Evaluate(context.Background(), adaptive.Levels{Brightness: 40, Contrast: 50})
	require.NoError(t, err)

	assert.True(t, targets.BrightnessChanged)
	assert.Greater(t, targets.Brightness, 40)
	assert.True(t, targets.ContrastChanged)
	assert.Greater(t, targets.Contrast, 50)
}

func TestEvaluateConvergesWithoutOvershoot(t *testing.T) {
	// Pitch black desktop: brightness target is the configured
	// maximum, contrast target the dark-dominant end.
	svc := &fakeCapture{stats: capture.Stats{Mean: 0, DarkRatio: 1.0}}
	c := adaptive.NewController(testConfig(), svc)

	levels := adaptive.Levels{Brightness: 20, Contrast: 30}
	prev := levels.Brightness
	for i := 0; i < 30; i++ {
		targets, err := c.Evaluate(context.Background(), levels)
		require.NoError(t, err)

		assert.GreaterOrEqual(t, targets.Brightness, prev, "brightness must approach the target monotonically")
		assert.LessOrEqual(t, targets.Brightness, 80)
		prev = targets.Brightness
		levels = adaptive.Levels{Brightness: targets.Brightness, Contrast: targets.Contrast}
	}

	assert.GreaterOrEqual(t, levels.Brightness, 78)
	assert.GreaterOrEqual(t, levels.Contrast, 68)
}

func TestEvaluateSmoothingCoversHalfTheGap(t *testing.T) {
	cfg := testConfig()
	cfg.Smoothing = 0.5
	svc := &fakeCapture{stats: capture.Stats{Mean: 40}}
	c := adaptive.NewController(cfg, svc)

	// Mean 40 puts the brightness target at 70.6 within [20, 80];
	// smoothing 0.5 moves halfway there from the current 40.
	targets, err := c.Evaluate(context.Background(), adaptive.Levels{Brightness: 40, Contrast: 50})
	require.NoError(t, err)

	assert.Equal(t, 55, targets.Brightness)
	assert.True(t, targets.BrightnessChanged)
	assert.False(t, targets.ContrastChanged, "balanced ratios leave contrast at the midpoint")
}

func TestEvaluateSuppressesSubUnitChanges(t *testing.T) {
	// Balanced frame: both targets sit at the range midpoints.
	svc := &fakeCapture{stats: capture.Stats{Mean: 128, DarkRatio: 0.2, BrightRatio: 0.2}}
	c := adaptive.NewController(testConfig(), svc)

	targets, err := c.Evaluate(context.Background(), adaptive.Levels{Brightness: 50, Contrast: 50})
	require.NoError(t, err)

	assert.False(t, targets.BrightnessChanged)
	assert.False(t, targets.ContrastChanged)
	assert.Equal(t, 50, targets.Brightness)
	assert.Equal(t, 50, targets.Contrast)
}

func TestEvaluateClampsToConfiguredRange(t *testing.T) {
	cfg := testConfig()
	cfg.Smoothing = 0.9
	svc := &fakeCapture{stats: capture.Stats{Mean: 128, DarkRatio: 0.2, BrightRatio: 0.2}}
	c := adaptive.NewController(cfg, svc)

	// A profile may have applied values outside the adaptive range;
	// even a small smoothing step is clamped back inside it.
	targets, err := c.Evaluate(context.Background(), adaptive.Levels{Brightness: 100, Contrast: 10})
	require.NoError(t, err)

	assert.Equal(t, 80, targets.Brightness)
	assert.Equal(t, 30, targets.Contrast)
	assert.True(t, targets.BrightnessChanged)
	assert.True(t, targets.ContrastChanged)
}

func TestSelfDisableAfterConsecutiveFailures(t *testing.T) {
	cfg := testConfig()
	cfg.FailureThreshold = 3
	svc := &fakeCapture{err: errors.New().New(capture.ErrCaptureFailed)}
	c := adaptive.NewController(cfg, svc)

	for i := 0; i < 3; i++ {
		_, err := c.Evaluate(context.Background(), adaptive.Levels{})
		require.Error(t, err)
		assert.True(t, errors.HasCode(err, capture.ErrCaptureFailed))
	}
	assert.False(t, c.Enabled())

	// Disabled controllers stop capturing entirely.
	_, err := c.Evaluate(context.Background(), adaptive.Levels{})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, adaptive.ErrDisabled))
	assert.Equal(t, 3, svc.callCount())

	// A profile transition reset does not resurrect it.
	c.Reset()
	assert.False(t, c.Enabled())
}

func TestFailureCountClearsOnSuccess(t *testing.T) {
	cfg := testConfig()
	cfg.FailureThreshold = 3
	svc := &fakeCapture{err: errors.New().New(capture.ErrCaptureFailed)}
	c := adaptive.NewController(cfg, svc)

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		_, err := c.Evaluate(ctx, adaptive.Levels{})
		require.Error(t, err)
	}

	svc.mu.Lock()
	svc.err = nil
	svc.stats = capture.Stats{Mean: 128}
	svc.mu.Unlock()
	_, err := c.Evaluate(ctx, adaptive.Levels{Brightness: 50, Contrast: 50})
	require.NoError(t, err)

	svc.mu.Lock()
	svc.err = errors.New().New(capture.ErrCaptureFailed)
	svc.mu.Unlock()
	for i := 0; i < 2; i++ {
		_, err := c.Evaluate(ctx, adaptive.Levels{})
		require.Error(t, err)
	}

	assert.True(t, c.Enabled(), "non-consecutive failures must not disable the controller")
}

func TestIntervalClampsToCaptureFloor(t *testing.T) {
	cfg := testConfig()
	cfg.Interval = time.Second
	c := adaptive.NewController(cfg, &fakeCapture{floor: 2500 * time.Millisecond})
	assert.Equal(t, 2500*time.Millisecond, c.Interval())

	cfg.Interval = 5 * time.Second
	c = adaptive.NewController(cfg, &fakeCapture{floor: 500 * time.Millisecond})
	assert.Equal(t, 5*time.Second, c.Interval())
}

func TestResetClearsFailureStreak(t *testing.T) {
	cfg := testConfig()
	cfg.FailureThreshold = 2
	svc := &fakeCapture{err: errors.New().New(capture.ErrCaptureFailed)}
	c := adaptive.NewController(cfg, svc)

	_, err := c.Evaluate(context.Background(), adaptive.Levels{})
	require.Error(t, err)

	c.Reset()

	_, err = c.Evaluate(context.Background(), adaptive.Levels{})
	require.Error(t, err)
	assert.True(t, c.Enabled(), "reset should restart the failure streak")
}
