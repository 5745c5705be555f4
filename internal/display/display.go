package display

import (
	"context"
	"strings"
	"sync"

	"codeberg.org/mutker/monitorctl/internal/ddc"
	"codeberg.org/mutker/monitorctl/internal/errors"
	"codeberg.org/mutker/monitorctl/internal/logger"
)

type registry struct {
	detect func(ctx context.Context) ([]ddc.DisplayInfo, error)
	source GeometrySource

	mu       sync.Mutex
	outputs  []Output
	resolved bool
}

// NewRegistry builds a registry over the DDC transport's detection and
// the given geometry source. A nil source leaves every geometry
// unresolved, which degrades profile matching to whole-desktop scope.
func NewRegistry(source GeometrySource) Registry {
	return &registry{
		detect: ddc.Detect,
		source: source,
	}
}

func newRegistryWithDetector(
	detect func(ctx context.Context) ([]ddc.DisplayInfo, error),
	source GeometrySource,
) *registry {
	return &registry{detect: detect, source: source}
}

func (r *registry) Detect(ctx context.Context) ([]Monitor, error) {
	infos, err := r.detect(ctx)
	if err != nil {
		return nil, errors.New().Wrap(ErrDetectFailed, err)
	}
	if len(infos) == 0 {
		return nil, errors.New().New(errors.ErrNoDisplays)
	}

	outputs := r.currentOutputs(ctx)

	monitors := make([]Monitor, 0, len(infos))
	for _, info := range infos {
		m := Monitor{
			Identity: MonitorIdentity{
				Manufacturer: info.Manufacturer,
				Model:        info.Model,
				Serial:       info.Serial,
				Bus:          info.Bus,
			},
			Info: info,
		}
		if geom, ok := matchOutput(info.Connector, outputs); ok {
			m.Geometry = geom
		} else {
			logger.Warn().
				Str("error_code", string(ErrGeometryUnresolved)).
				Str("monitor", m.Identity.String()).
				Str("connector", info.Connector).
				Msg("Geometry unresolved; matching falls back to whole desktop")
		}
		monitors = append(monitors, m)
	}

	return monitors, nil
}

// ArrangementChanged discards the cached desktop layout so the next
// detection re-queries it.
func (r *registry) ArrangementChanged(ctx context.Context) error {
	r.mu.Lock()
	r.outputs = nil
	r.resolved = false
	r.mu.Unlock()

	outputs := r.currentOutputs(ctx)
	if outputs == nil {
		return errors.New().New(ErrGeometryQuery)
	}

	logger.Debug().Int("outputs", len(outputs)).Msg("Desktop layout refreshed")

	return nil
}

func (r *registry) currentOutputs(ctx context.Context) []Output {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.resolved {
		return r.outputs
	}
	if r.source == nil {
		r.resolved = true
		return nil
	}

	outputs, err := r.source.Outputs(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("Desktop layout query failed; geometry unresolved")
		r.resolved = true
		return nil
	}

	r.outputs = outputs
	r.resolved = true

	return outputs
}

// Same reports whether two identities name the same physical display.
// The bus path is excluded: it is not stable across reboots.
func (id MonitorIdentity) Same(other MonitorIdentity) bool {
	return id.Manufacturer == other.Manufacturer &&
		id.Model == other.Model &&
		id.Serial == other.Serial
}

func (id MonitorIdentity) String() string {
	switch {
	case id.Model != "" && id.Serial != "":
		return id.Model + " (" + id.Serial + ")"
	case id.Model != "":
		return id.Model
	default:
		return "unknown display"
	}
}

// ConfigID derives the per-monitor settings key from model and serial:
// lowercased, with runs of non-alphanumerics collapsed to underscores.
func (id MonitorIdentity) ConfigID() string {
	raw := id.Model
	if id.Serial != "" {
		raw += "_" + id.Serial
	}

	var b strings.Builder
	lastUnderscore := true
	for _, r := range strings.ToLower(raw) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}

	return strings.TrimSuffix(b.String(), "_")
}

// MatchesIdentifier reports whether a user-supplied identifier selects
// this display. Identifiers match the model by case-insensitive
// substring, or the serial exactly.
func (id MonitorIdentity) MatchesIdentifier(identifier string) bool {
	if identifier == "" {
		return false
	}
	if identifier == id.Serial {
		return true
	}

	return strings.Contains(strings.ToLower(id.Model), strings.ToLower(identifier))
}

// Known reports whether the geometry was resolved
func (g Geometry) Known() bool {
	return g.Width > 0 && g.Height > 0
}

// Contains reports whether the point lies within the geometry. Bounds
// are inclusive on all four edges, so a point exactly on a shared edge
// belongs to both neighbours.
func (g Geometry) Contains(x, y int) bool {
	if !g.Known() {
		return false
	}

	return x >= g.X && x <= g.X+g.Width &&
		y >= g.Y && y <= g.Y+g.Height
}

// MonitorAt returns the first detected monitor whose geometry contains
// the point, or nil when no resolved geometry does.
func MonitorAt(monitors []Monitor, x, y int) *Monitor {
	for i := range monitors {
		if monitors[i].Geometry.Contains(x, y) {
			return &monitors[i]
		}
	}

	return nil
}
