package display

import (
	"context"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"codeberg.org/mutker/monitorctl/internal/errors"
)

const (
	xrandrBinary = "xrandr"
	queryTimeout = 5 * time.Second
)

var (
	geometryPattern  = regexp.MustCompile(`^(\d+)x(\d+)([+-]\d+)([+-]\d+)$`)
	cardPrefix       = regexp.MustCompile(`^card\d+-`)
	connectorPattern = regexp.MustCompile(`^(.+?)-?(\d+)$`)
)

type runner func(ctx context.Context, args ...string) (string, error)

type xrandrSource struct {
	run runner
}

// NewXrandrSource queries the desktop layout through xrandr, which
// reports output positions under X11 and XWayland alike.
func NewXrandrSource() GeometrySource {
	return &xrandrSource{run: execXrandr}
}

func (s *xrandrSource) Outputs(ctx context.Context) ([]Output, error) {
	out, err := s.run(ctx, "--query")
	if err != nil {
		return nil, errors.New().Wrap(ErrGeometryQuery, err)
	}

	return parseXrandr(out), nil
}

func execXrandr(ctx context.Context, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, xrandrBinary, args...).CombinedOutput()
	if ctx.Err() != nil {
		return string(out), ctx.Err()
	}

	return string(out), err
}

// parseXrandr extracts connected outputs from `xrandr --query` text.
// A connected line reads "DP-1 connected primary 1920x1080+0+0 (...)";
// outputs without an active mode carry no geometry token and are
// skipped.
func parseXrandr(out string) []Output {
	var outputs []Output
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 3 || fields[1] != "connected" {
			continue
		}

		output := Output{Name: fields[0]}
		for _, field := range fields[2:] {
			if field == "primary" {
				output.Primary = true
				continue
			}
			if geom, ok := parseGeometryToken(field); ok {
				output.Geometry = geom
				break
			}
		}
		if output.Geometry.Known() {
			outputs = append(outputs, output)
		}
	}

	return outputs
}

func parseGeometryToken(token string) (Geometry, bool) {
	m := geometryPattern.FindStringSubmatch(token)
	if m == nil {
		return Geometry{}, false
	}

	w, _ := strconv.Atoi(m[1])
	h, _ := strconv.Atoi(m[2])
	x, _ := strconv.Atoi(m[3])
	y, _ := strconv.Atoi(m[4])

	return Geometry{X: x, Y: y, Width: w, Height: h}, true
}

// matchOutput correlates a DRM connector name ("card1-DP-1") with the
// desktop output list. Exact name match wins; otherwise outputs of the
// same connector family are tried by index, tolerating the off-by-one
// between DRM's 1-based and some vendors' 0-based numbering.
func matchOutput(connector string, outputs []Output) (Geometry, bool) {
	if connector == "" || len(outputs) == 0 {
		return Geometry{}, false
	}

	name := cardPrefix.ReplaceAllString(connector, "")
	for _, out := range outputs {
		if strings.EqualFold(out.Name, name) {
			return out.Geometry, true
		}
	}

	family, index, ok := splitConnector(name)
	if !ok {
		return Geometry{}, false
	}

	var candidates []Output
	for _, out := range outputs {
		outFamily, _, outOK := splitConnector(out.Name)
		if outOK && outFamily == family {
			candidates = append(candidates, out)
		}
	}

	for _, out := range candidates {
		_, outIndex, _ := splitConnector(out.Name)
		if outIndex == index || outIndex == index-1 {
			return out.Geometry, true
		}
	}
	if len(candidates) == 1 {
		return candidates[0].Geometry, true
	}

	return Geometry{}, false
}

// splitConnector breaks "HDMI-A-1" into a normalized family ("HDMI")
// and index (1)
func splitConnector(name string) (string, int, bool) {
	m := connectorPattern.FindStringSubmatch(name)
	if m == nil {
		return "", 0, false
	}

	index, err := strconv.Atoi(m[2])
	if err != nil {
		return "", 0, false
	}

	family := strings.ToUpper(strings.TrimSuffix(m[1], "-"))
	switch {
	case strings.HasPrefix(family, "DISPLAYPORT"):
		family = "DP"
	case strings.HasPrefix(family, "HDMI"):
		family = "HDMI"
	case strings.HasPrefix(family, "DVI"):
		family = "DVI"
	case strings.HasPrefix(family, "EDP"):
		family = "EDP"
	case strings.HasPrefix(family, "VGA"):
		family = "VGA"
	}

	return family, index, true
}
