package capture

import (
	"os"
	"os/exec"
	"time"

	"codeberg.org/mutker/monitorctl/internal/errors"
)

// Session types
const (
	SessionWayland = "wayland"
	SessionX11     = "x11"
)

// Capture floors: cadences faster than the tool itself are pointless,
// and Wayland portals in particular get slow and noisy when hammered.
const (
	waylandFloor = 2500 * time.Millisecond
	x11Floor     = 500 * time.Millisecond
)

// method is one external screenshot tool invocation writing a full
// desktop frame to dest
type method struct {
	name   string
	binary string
	args   func(dest string) []string
}

var waylandMethods = []method{
	{name: "grim", binary: "grim", args: func(dest string) []string {
		return []string{dest}
	}},
	{name: "gnome-screenshot", binary: "gnome-screenshot", args: func(dest string) []string {
		return []string{"-f", dest}
	}},
	{name: "flameshot", binary: "flameshot", args: func(dest string) []string {
		return []string{"full", "-p", dest}
	}},
	{name: "spectacle", binary: "spectacle", args: func(dest string) []string {
		return []string{"-b", "-n", "-o", dest}
	}},
}

var x11Methods = []method{
	{name: "gnome-screenshot", binary: "gnome-screenshot", args: func(dest string) []string {
		return []string{"-f", dest}
	}},
	{name: "scrot", binary: "scrot", args: func(dest string) []string {
		return []string{"-o", dest}
	}},
	{name: "import", binary: "import", args: func(dest string) []string {
		return []string{"-window", "root", dest}
	}},
}

// DetectSession classifies the graphical session from the environment
func DetectSession() string {
	if os.Getenv("WAYLAND_DISPLAY") != "" {
		return SessionWayland
	}
	if os.Getenv("DISPLAY") != "" {
		return SessionX11
	}

	return ""
}

func methodsFor(session string) []method {
	switch session {
	case SessionWayland:
		return waylandMethods
	case SessionX11:
		return x11Methods
	default:
		return nil
	}
}

func floorFor(session string) time.Duration {
	if session == SessionWayland {
		return waylandFloor
	}

	return x11Floor
}

// probeMethod picks the capture tool: the forced name when configured,
// otherwise the first installed tool in the session's probe order.
func probeMethod(session, forced string, lookPath func(string) (string, error)) (method, error) {
	candidates := methodsFor(session)
	if len(candidates) == 0 {
		return method{}, errors.New().WithData(ErrNoMethod, session)
	}

	if forced != "" {
		for _, m := range candidates {
			if m.name != forced {
				continue
			}
			if _, err := lookPath(m.binary); err != nil {
				return method{}, errors.New().Wrap(ErrNoMethod, err).WithData(forced)
			}
			return m, nil
		}
		return method{}, errors.New().WithData(ErrNoMethod, forced)
	}

	probed := make([]string, 0, len(candidates))
	for _, m := range candidates {
		if _, err := lookPath(m.binary); err == nil {
			return m, nil
		}
		probed = append(probed, m.name)
	}

	return method{}, errors.New().WithData(ErrNoMethod, probed)
}

func systemLookPath(binary string) (string, error) {
	return exec.LookPath(binary)
}
