package wintrack

import "context"

// Backend adapts one window-system query tool to the normalized event
// shape. Backends are probed in declaration order; the available ones
// are merged, preferring whichever resolves a window class first.
type Backend interface {
	Name() string
	Available() bool
	Current(ctx context.Context) (WindowEvent, error)
}

// Tracker polls the active backend and fans normalized events out to
// subscribers. Consecutive identical events are suppressed.
type Tracker interface {
	Run(ctx context.Context) error
	Current(ctx context.Context) (WindowEvent, error)
	Subscribe(name string) (<-chan WindowEvent, func())
	Latest() (WindowEvent, bool)
	Backend() string
}

// WindowEvent describes the focused window. Fields a backend cannot
// determine stay at their zero value; in particular IsFullscreen is
// false unless the backend reports fullscreen explicitly.
type WindowEvent struct {
	Class        string
	Title        string
	X            int
	Y            int
	Width        int
	Height       int
	IsFullscreen bool
}

// CenterX returns the horizontal center of the window
func (e WindowEvent) CenterX() int {
	return e.X + e.Width/2
}

// CenterY returns the vertical center of the window
func (e WindowEvent) CenterY() int {
	return e.Y + e.Height/2
}

// AtOrigin reports whether the window sits exactly at (0,0), the
// position some backends also report when they cannot resolve
// coordinates.
func (e WindowEvent) AtOrigin() bool {
	return e.X == 0 && e.Y == 0
}
