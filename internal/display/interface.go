package display

import (
	"context"

	"codeberg.org/mutker/monitorctl/internal/ddc"
)

// Registry enumerates attached displays and resolves their desktop
// geometry. Enumeration order is the transport's native order; callers
// persist by MonitorIdentity, never by ordinal position.
type Registry interface {
	Detect(ctx context.Context) ([]Monitor, error)
	ArrangementChanged(ctx context.Context) error
}

// GeometrySource queries the desktop layout, one entry per connected
// output. Invoked at startup and on explicit arrangement changes only.
type GeometrySource interface {
	Outputs(ctx context.Context) ([]Output, error)
}

// Domain types
type (
	// MonitorIdentity is the stable key for a physical display.
	// Two monitors are the same entity iff manufacturer, model and
	// serial match; the bus path can change across reboots.
	MonitorIdentity struct {
		Manufacturer string
		Model        string
		Serial       string
		Bus          string
	}

	// Geometry is a monitor's position and size in desktop pixel
	// coordinates. The zero value means unresolved.
	Geometry struct {
		X      int
		Y      int
		Width  int
		Height int
	}

	// Output is one desktop output as reported by the geometry source
	Output struct {
		Name     string
		Primary  bool
		Geometry Geometry
	}

	// Monitor pairs a display's identity with its addressable handle
	// and resolved geometry
	Monitor struct {
		Identity MonitorIdentity
		Info     ddc.DisplayInfo
		Geometry Geometry
	}
)
