package wintrack

import (
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"strings"

	"codeberg.org/mutker/monitorctl/internal/errors"
)

const hyprctlBinary = "hyprctl"

type hyprlandBackend struct {
	run runner
}

// NewHyprlandBackend reads the focused window from `hyprctl
// activewindow -j`.
func NewHyprlandBackend() Backend {
	return &hyprlandBackend{run: execTool}
}

func (b *hyprlandBackend) Name() string {
	return "hyprland"
}

func (b *hyprlandBackend) Available() bool {
	if os.Getenv("HYPRLAND_INSTANCE_SIGNATURE") == "" {
		return false
	}
	_, err := exec.LookPath(hyprctlBinary)

	return err == nil
}

func (b *hyprlandBackend) Current(ctx context.Context) (WindowEvent, error) {
	out, err := b.run(ctx, hyprctlBinary, "activewindow", "-j")
	if err != nil {
		return WindowEvent{}, errors.New().Wrap(ErrQueryFailed, err)
	}

	return parseHyprlandWindow(out)
}

// activeWindow mirrors the hyprctl JSON shape. Fullscreen is typed
// loosely: older releases emit a bool, newer ones an integer mode.
type activeWindow struct {
	Class      string `json:"class"`
	Title      string `json:"title"`
	At         []int  `json:"at"`
	Size       []int  `json:"size"`
	Fullscreen any    `json:"fullscreen"`
}

func parseHyprlandWindow(out string) (WindowEvent, error) {
	trimmed := strings.TrimSpace(out)
	if trimmed == "" || trimmed == "{}" || strings.HasPrefix(trimmed, "Invalid") {
		// No focused window
		return WindowEvent{}, nil
	}

	var win activeWindow
	if err := json.Unmarshal([]byte(trimmed), &win); err != nil {
		return WindowEvent{}, errors.New().Wrap(ErrParseFailed, err)
	}

	ev := WindowEvent{
		Class:        win.Class,
		Title:        win.Title,
		IsFullscreen: truthy(win.Fullscreen),
	}
	if len(win.At) == 2 {
		ev.X, ev.Y = win.At[0], win.At[1]
	}
	if len(win.Size) == 2 {
		ev.Width, ev.Height = win.Size[0], win.Size[1]
	}

	return ev, nil
}

func truthy(v any) bool {
	switch value := v.(type) {
	case bool:
		return value
	case float64:
		return value > 0
	default:
		return false
	}
}
