package session

import (
	"codeberg.org/mutker/monitorctl/internal/adaptive"
	"codeberg.org/mutker/monitorctl/internal/capture"
	"codeberg.org/mutker/monitorctl/internal/config"
	"codeberg.org/mutker/monitorctl/internal/ddc"
	"codeberg.org/mutker/monitorctl/internal/display"
	"codeberg.org/mutker/monitorctl/internal/profile"
	"codeberg.org/mutker/monitorctl/internal/telemetry"
	"codeberg.org/mutker/monitorctl/internal/wintrack"
)

// Config carries one session's resolved policies, the merge of global
// defaults and the monitor's own configuration section
type Config struct {
	FullscreenOnly     bool
	ZeroPositionPolicy string

	// AutoColor gates color application on profile transitions;
	// AutoBrightness and AutoContrast gate the adaptive loop per axis
	AutoColor      bool
	AutoBrightness bool
	AutoContrast   bool

	// Calibration applied once when the session starts
	RedGain   *int
	GreenGain *int
	BlueGain  *int
	Sharpness *int
	Input     *int

	// SharpnessMax caps sharpness writes for displays whose sharpness
	// scale is narrower than the configured values assume
	SharpnessMax *int
}

// Deps are the collaborators one session coordinates. Controller may
// be nil when adaptive control is off for the monitor.
type Deps struct {
	Client     ddc.Client
	Matcher    *profile.Matcher
	Controller *adaptive.Controller
	Tracker    wintrack.Tracker
	Collector  telemetry.Collector
	States     config.StateStore
}

// Services are the shared back ends an engine distributes to the
// sessions it builds. Capture may be nil when adaptive control is
// globally disabled.
type Services struct {
	Registry  display.Registry
	Tracker   wintrack.Tracker
	Capture   capture.Service
	Collector telemetry.Collector
	States    config.StateStore
}
