package adaptive

import (
	"context"
	"math"
	"sync"
	"time"

	"codeberg.org/mutker/monitorctl/internal/capture"
	"codeberg.org/mutker/monitorctl/internal/errors"
	"codeberg.org/mutker/monitorctl/internal/logger"
)

const (
	defaultInterval         = 5 * time.Second
	defaultSmoothing        = 0.7
	defaultFailureThreshold = 10
)

// Controller derives brightness and contrast targets from desktop
// luminance. It is stateless across cycles except for failure
// tracking: each evaluation smooths from the monitor's currently
// applied levels, so a profile switch naturally becomes the new
// baseline.
type Controller struct {
	cfg     Config
	capture capture.Service

	mu       sync.Mutex
	failures int
	disabled bool
}

func NewController(cfg Config, svc capture.Service) *Controller {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.Smoothing < 0 || cfg.Smoothing >= 1 {
		cfg.Smoothing = defaultSmoothing
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = defaultFailureThreshold
	}

	return &Controller{cfg: cfg, capture: svc}
}

// Interval is the effective evaluation cadence: the configured
// interval, raised to the capture method's floor when necessary.
func (c *Controller) Interval() time.Duration {
	if floor := c.capture.MinInterval(); c.cfg.Interval < floor {
		return floor
	}

	return c.cfg.Interval
}

// Enabled reports whether the controller is still evaluating
func (c *Controller) Enabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return !c.disabled
}

// Reset clears the consecutive failure count, typically on a profile
// transition. A controller that already disabled itself stays
// disabled.
func (c *Controller) Reset() {
	c.mu.Lock()
	c.failures = 0
	c.mu.Unlock()
}

// Evaluate captures the desktop and computes the next brightness and
// contrast step from the given baseline. Capture failures count
// toward self-disabling; any other outcome resets the count.
func (c *Controller) Evaluate(ctx context.Context, current Levels) (Targets, error) {
	c.mu.Lock()
	if c.disabled {
		c.mu.Unlock()
		return Targets{}, errors.New().New(ErrDisabled)
	}
	c.mu.Unlock()

	stats, err := c.capture.Snapshot(ctx)
	if err != nil {
		c.noteFailure(err)
		return Targets{}, err
	}
	c.Reset()

	bTarget := brightnessTarget(stats.Mean, c.cfg.MinBrightness, c.cfg.MaxBrightness)
	cTarget := contrastTarget(stats, c.cfg.MinContrast, c.cfg.MaxContrast)

	newB := c.step(current.Brightness, bTarget, c.cfg.MinBrightness, c.cfg.MaxBrightness)
	newC := c.step(current.Contrast, cTarget, c.cfg.MinContrast, c.cfg.MaxContrast)

	return Targets{
		Brightness:        newB,
		Contrast:          newC,
		BrightnessChanged: newB != current.Brightness,
		ContrastChanged:   newC != current.Contrast,
		Stats:             stats,
	}, nil
}

func (c *Controller) noteFailure(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.failures++
	if c.failures >= c.cfg.FailureThreshold && !c.disabled {
		c.disabled = true
		logger.Warn().
			Err(err).
			Int("failures", c.failures).
			Msg("Screen capture keeps failing, adaptive control disabled")
	}
}

// step moves one smoothing increment from current toward target and
// clamps to the configured range
func (c *Controller) step(current int, target float64, lo, hi int) int {
	raw := float64(current) + (target-float64(current))*(1-c.cfg.Smoothing)

	return clamp(int(math.Round(raw)), lo, hi)
}

// brightnessTarget maps mean luminance inversely onto the brightness
// range: dark content raises brightness, bright content lowers it.
// The two linear pieces meet at the midpoint, mean 128, so the target
// moves continuously across the whole luminance scale.
func brightnessTarget(mean float64, minB, maxB int) float64 {
	mid := float64(minB+maxB) / 2
	if mean < 128 {
		return mid + (128-mean)/128*(float64(maxB)-mid)
	}

	return mid - (mean-128)/127*(mid-float64(minB))
}

// contrastTarget blends the contrast range by how dark-dominant the
// frame is: mostly dark frames get more contrast, mostly bright ones
// less, balanced frames the midpoint.
func contrastTarget(stats capture.Stats, minC, maxC int) float64 {
	mid := float64(minC+maxC) / 2

	return mid + (stats.DarkRatio-stats.BrightRatio)*(float64(maxC)-mid)
}

func clamp(value, minValue, maxValue int) int {
	if value < minValue {
		return minValue
	}
	if value > maxValue {
		return maxValue
	}

	return value
}
