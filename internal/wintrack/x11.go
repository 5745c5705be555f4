package wintrack

import (
	"context"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"codeberg.org/mutker/monitorctl/internal/errors"
)

const (
	xdotoolBinary = "xdotool"
	xpropBinary   = "xprop"
)

type x11Backend struct {
	run runner
}

// NewX11Backend resolves the focused window through xdotool, with
// xprop filling in the class and fullscreen state. Sub-queries degrade
// independently: a failed geometry or class lookup zeroes that field
// without discarding the event.
func NewX11Backend() Backend {
	return &x11Backend{run: execTool}
}

func (b *x11Backend) Name() string {
	return "x11"
}

func (b *x11Backend) Available() bool {
	if os.Getenv("DISPLAY") == "" {
		return false
	}
	_, err := exec.LookPath(xdotoolBinary)

	return err == nil
}

func (b *x11Backend) Current(ctx context.Context) (WindowEvent, error) {
	out, err := b.run(ctx, xdotoolBinary, "getactivewindow")
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) || ctx.Err() != nil {
			return WindowEvent{}, errors.New().Wrap(ErrQueryFailed, err)
		}
		// xdotool exits nonzero when nothing is focused
		return WindowEvent{}, nil
	}

	windowID := strings.TrimSpace(out)
	if windowID == "" {
		return WindowEvent{}, nil
	}

	var ev WindowEvent
	if out, err := b.run(ctx, xdotoolBinary, "getwindowname", windowID); err == nil {
		ev.Title = strings.TrimSpace(out)
	}
	if out, err := b.run(ctx, xdotoolBinary, "getwindowgeometry", "--shell", windowID); err == nil {
		applyGeometryVars(&ev, out)
	}
	if out, err := b.run(ctx, xpropBinary, "-id", windowID, "WM_CLASS", "_NET_WM_STATE"); err == nil {
		ev.Class = parseWMClass(out)
		ev.IsFullscreen = strings.Contains(out, "_NET_WM_STATE_FULLSCREEN")
	}

	return ev, nil
}

// applyGeometryVars consumes `getwindowgeometry --shell` output, a
// list of VAR=value lines
func applyGeometryVars(ev *WindowEvent, out string) {
	for _, line := range strings.Split(out, "\n") {
		key, value, found := strings.Cut(strings.TrimSpace(line), "=")
		if !found {
			continue
		}
		n, err := strconv.Atoi(value)
		if err != nil {
			continue
		}
		switch key {
		case "X":
			ev.X = n
		case "Y":
			ev.Y = n
		case "WIDTH":
			ev.Width = n
		case "HEIGHT":
			ev.Height = n
		}
	}
}

// parseWMClass extracts the class (second quoted value) from a line
// like `WM_CLASS(STRING) = "code", "Code"`
func parseWMClass(out string) string {
	for _, line := range strings.Split(out, "\n") {
		if !strings.Contains(line, "WM_CLASS") {
			continue
		}
		parts := strings.Split(line, "\"")
		// quotes split the line into alternating segments; the class
		// name is the last quoted one
		if len(parts) >= 4 {
			return parts[len(parts)-2]
		}
	}

	return ""
}
