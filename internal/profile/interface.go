package profile

// Settings are the monitor targets a profile carries. Nil means the
// profile leaves that setting untouched.
type Settings struct {
	Brightness     *int
	Contrast       *int
	Color          *int
	Input          *int
	Sharpness      *int
	AutoBrightness *bool
	AutoContrast   *bool
}

// SelectOptions scope one selection pass to a monitor's matching rules
type SelectOptions struct {
	// FullscreenOnly keeps the current profile unless the focused
	// window is fullscreen.
	FullscreenOnly bool
	// ZeroPositionPolicy decides how a window at exactly (0,0) is
	// attributed: "primary" trusts the coordinates, "exclude" keeps
	// the current profile.
	ZeroPositionPolicy string
	// Current is the profile active on the monitor before this pass
	Current string
}

// Zero-position policies
const (
	ZeroPositionPrimary = "primary"
	ZeroPositionExclude = "exclude"
)
