package adaptive

import (
	"time"

	"codeberg.org/mutker/monitorctl/internal/capture"
)

// Config bounds and paces one monitor's adaptive loop
type Config struct {
	// Interval is the requested evaluation cadence. The effective
	// cadence never undercuts the capture method's floor.
	Interval time.Duration

	MinBrightness int
	MaxBrightness int
	MinContrast   int
	MaxContrast   int

	// Smoothing in [0,1) slows convergence: each cycle covers
	// (1-Smoothing) of the remaining distance to the target.
	Smoothing float64

	// FailureThreshold disables the controller after this many
	// consecutive capture failures.
	FailureThreshold int
}

// Levels are the monitor's currently applied values, the baseline each
// smoothing step starts from
type Levels struct {
	Brightness int
	Contrast   int
}

// Targets is one evaluation's outcome. Changed flags are set only when
// the new value differs from the baseline by at least one unit.
type Targets struct {
	Brightness        int
	Contrast          int
	BrightnessChanged bool
	ContrastChanged   bool

	// Stats is the capture sample the targets were derived from
	Stats capture.Stats
}
