package ddc

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"codeberg.org/mutker/monitorctl/internal/errors"
)

const (
	ddcutilBinary  = "ddcutil"
	attemptTimeout = 10 * time.Second
)

// runner abstracts external command invocation for tests
type runner func(ctx context.Context, args ...string) (string, error)

func execDDCUtil(ctx context.Context, args ...string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	// The attempt timeout runs on its own clock: a shutdown waits for an
	// in-flight command to finish instead of killing ddcutil mid-exchange
	// and leaving the display half-written.
	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), attemptTimeout)
	defer cancel()

	out, err := exec.CommandContext(runCtx, ddcutilBinary, args...).CombinedOutput()
	if ctxErr := runCtx.Err(); ctxErr != nil {
		return string(out), ctxErr
	}

	return string(out), err
}

// ddcutilTransport performs protocol round-trips by invoking the
// ddcutil CLI against one display ordinal
type ddcutilTransport struct {
	display         int
	sleepMultiplier float64
	run             runner
}

func newTransport(display int, sleepMultiplier float64) *ddcutilTransport {
	return &ddcutilTransport{
		display:         display,
		sleepMultiplier: sleepMultiplier,
		run:             execDDCUtil,
	}
}

func (t *ddcutilTransport) args(base ...string) []string {
	args := append(base, "--display", strconv.Itoa(t.display))
	if t.sleepMultiplier > 0 && t.sleepMultiplier != 1.0 {
		args = append(args, "--sleep-multiplier", strconv.FormatFloat(t.sleepMultiplier, 'g', -1, 64))
	}

	return args
}

func (t *ddcutilTransport) Get(ctx context.Context, feature Feature) (FeatureValue, error) {
	out, err := t.run(ctx, t.args("getvcp", featureArg(feature), "--brief")...)
	if err != nil {
		return FeatureValue{}, classifyExecError(err, out)
	}

	return parseVCPReply(out)
}

func (t *ddcutilTransport) Set(ctx context.Context, feature Feature, value int) error {
	base := []string{"setvcp", featureArg(feature), strconv.Itoa(value)}
	if NoVerify(feature) {
		base = append(base, "--noverify")
	}

	out, err := t.run(ctx, t.args(base...)...)
	if err != nil {
		return classifyExecError(err, out)
	}

	return nil
}

func (t *ddcutilTransport) Capabilities(ctx context.Context) (string, error) {
	out, err := t.run(ctx, t.args("capabilities")...)
	if err != nil {
		return "", classifyExecError(err, out)
	}

	return out, nil
}

func featureArg(f Feature) string {
	return fmt.Sprintf("%02x", int(f))
}

// classifyExecError maps a failed ddcutil invocation onto the transport
// error taxonomy. The CLI reports "not supported" through its output, so
// the output text takes precedence over the process exit state.
func classifyExecError(err error, out string) error {
	errFactory := errors.New()
	lower := strings.ToLower(out)

	switch {
	case strings.Contains(lower, "unsupported") ||
		strings.Contains(lower, "not supported") ||
		strings.Contains(lower, "invalid feature"):
		return errFactory.WithData(ErrUnsupportedFeature, strings.TrimSpace(out))
	case errors.Is(err, context.DeadlineExceeded):
		return errFactory.Wrap(ErrTransportTimeout, err)
	case errors.Is(err, context.Canceled):
		return err
	case errors.Is(err, exec.ErrNotFound):
		return errFactory.Wrap(ErrTransportUnavailable, err)
	case strings.Contains(lower, "display not found") ||
		strings.Contains(lower, "invalid display"):
		return errFactory.WithData(ErrDisplayNotFound, strings.TrimSpace(out))
	case strings.Contains(lower, "permission denied") ||
		strings.Contains(lower, "eacces"):
		return errFactory.WithData(ErrPermissionDenied, strings.TrimSpace(out))
	default:
		return errFactory.Wrap(ErrTransportFailed, fmt.Errorf("%w: %s", err, strings.TrimSpace(out)))
	}
}

// parseVCPReply parses a --brief getvcp reply. Continuous features
// report "VCP <code> C <current> <max>", simple non-continuous ones
// "VCP <code> SNC x<value>", complex non-continuous ones
// "VCP <code> CNC x<mh> x<ml> x<sh> x<sl>".
func parseVCPReply(out string) (FeatureValue, error) {
	errFactory := errors.New()

	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(strings.TrimSpace(line))
		if len(fields) < 3 || fields[0] != "VCP" {
			continue
		}

		switch fields[2] {
		case "C":
			if len(fields) < 5 {
				return FeatureValue{}, errFactory.WithData(ErrMalformedResponse, strings.TrimSpace(line))
			}
			current, errCur := strconv.Atoi(fields[3])
			maximum, errMax := strconv.Atoi(fields[4])
			if errCur != nil || errMax != nil {
				return FeatureValue{}, errFactory.WithData(ErrMalformedResponse, strings.TrimSpace(line))
			}
			return FeatureValue{Current: current, Max: maximum}, nil
		case "SNC":
			if len(fields) < 4 {
				return FeatureValue{}, errFactory.WithData(ErrMalformedResponse, strings.TrimSpace(line))
			}
			value, err := parseHexField(fields[3])
			if err != nil {
				return FeatureValue{}, errFactory.WithData(ErrMalformedResponse, strings.TrimSpace(line))
			}
			return FeatureValue{Current: value}, nil
		case "CNC":
			if len(fields) < 7 {
				return FeatureValue{}, errFactory.WithData(ErrMalformedResponse, strings.TrimSpace(line))
			}
			mh, err1 := parseHexField(fields[3])
			ml, err2 := parseHexField(fields[4])
			sh, err3 := parseHexField(fields[5])
			sl, err4 := parseHexField(fields[6])
			if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
				return FeatureValue{}, errFactory.WithData(ErrMalformedResponse, strings.TrimSpace(line))
			}
			return FeatureValue{Current: sh<<8 | sl, Max: mh<<8 | ml}, nil
		case "ERR":
			return FeatureValue{}, errFactory.WithData(ErrUnsupportedFeature, strings.TrimSpace(line))
		}
	}

	return FeatureValue{}, errFactory.WithData(ErrMalformedResponse, strings.TrimSpace(out))
}

func parseHexField(field string) (int, error) {
	value, err := strconv.ParseInt(strings.TrimPrefix(field, "x"), 16, 32)
	if err != nil {
		return 0, err
	}

	return int(value), nil
}

// Detect enumerates DDC-addressable displays via "ddcutil detect --terse".
// Enumeration order is the transport's native order: stable within a
// session, not guaranteed across reboots.
func Detect(ctx context.Context) ([]DisplayInfo, error) {
	return detect(ctx, execDDCUtil)
}

func detect(ctx context.Context, run runner) ([]DisplayInfo, error) {
	errFactory := errors.New()

	out, err := run(ctx, "detect", "--terse")
	if err != nil {
		return nil, errFactory.Wrap(ErrDetectFailed, classifyExecError(err, out))
	}

	return parseDetect(out), nil
}

func parseDetect(out string) []DisplayInfo {
	var infos []DisplayInfo
	var current *DisplayInfo

	flush := func() {
		if current != nil {
			infos = append(infos, *current)
			current = nil
		}
	}

	for _, line := range strings.Split(out, "\n") {
		trimmed := strings.TrimSpace(line)

		switch {
		case strings.HasPrefix(trimmed, "Display "):
			flush()
			number, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(trimmed, "Display ")))
			if err != nil {
				continue
			}
			current = &DisplayInfo{Display: number}
		case strings.HasPrefix(trimmed, "Invalid display"):
			flush()
		case current == nil:
			continue
		case strings.HasPrefix(trimmed, "I2C bus:"):
			current.Bus = strings.TrimSpace(strings.TrimPrefix(trimmed, "I2C bus:"))
		case strings.HasPrefix(trimmed, "DRM connector:"):
			current.Connector = strings.TrimSpace(strings.TrimPrefix(trimmed, "DRM connector:"))
		case strings.HasPrefix(trimmed, "DRM_connector:"):
			current.Connector = strings.TrimSpace(strings.TrimPrefix(trimmed, "DRM_connector:"))
		case strings.HasPrefix(trimmed, "Monitor:"):
			parts := strings.SplitN(strings.TrimSpace(strings.TrimPrefix(trimmed, "Monitor:")), ":", 3)
			if len(parts) == 3 {
				current.Manufacturer = parts[0]
				current.Model = parts[1]
				current.Serial = parts[2]
			}
		}
	}
	flush()

	return infos
}
