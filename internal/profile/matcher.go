package profile

import (
	"codeberg.org/mutker/monitorctl/internal/display"
	"codeberg.org/mutker/monitorctl/internal/wintrack"
)

// Matcher selects the profile a window event implies for one monitor.
// Selection is pure: the same event, geometry and options always yield
// the same profile.
type Matcher struct {
	profiles       []Profile
	defaultProfile string
}

func NewMatcher(profiles []Profile, defaultProfile string) *Matcher {
	return &Matcher{
		profiles:       profiles,
		defaultProfile: defaultProfile,
	}
}

// Default returns the fallback profile name
func (m *Matcher) Default() string {
	return m.defaultProfile
}

// Lookup finds a declared profile by name
func (m *Matcher) Lookup(name string) (Profile, bool) {
	for _, p := range m.profiles {
		if p.Name == name {
			return p, true
		}
	}

	return Profile{}, false
}

// Select resolves the profile the event implies for a monitor with the
// given geometry.
//
// Gates run first: with FullscreenOnly set, non-fullscreen windows
// keep the current profile, as does a window at (0,0) under the
// exclude policy. A resolvable geometry then scopes matching to
// windows whose center point lies on the monitor, bounds inclusive;
// unresolved geometry widens the scope to the whole desktop. Among
// matching profiles the highest priority wins and ties go to the
// earliest declared. No match falls back to the default profile.
func (m *Matcher) Select(ev wintrack.WindowEvent, geom display.Geometry, opts SelectOptions) string {
	if opts.FullscreenOnly && !ev.IsFullscreen {
		return opts.Current
	}
	if opts.ZeroPositionPolicy == ZeroPositionExclude && ev.AtOrigin() {
		return opts.Current
	}

	if geom.Known() && !geom.Contains(ev.CenterX(), ev.CenterY()) {
		return m.defaultProfile
	}

	best := -1
	for i := range m.profiles {
		p := &m.profiles[i]
		if !p.Matches(ev.Class, ev.Title) {
			continue
		}
		if best < 0 || p.Priority > m.profiles[best].Priority {
			best = i
		}
	}
	if best < 0 {
		return m.defaultProfile
	}

	return m.profiles[best].Name
}
