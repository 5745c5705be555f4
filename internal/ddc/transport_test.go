package ddc

import (
	"context"
	"fmt"
	"testing"

	"codeberg.org/mutker/monitorctl/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVCPReplyContinuous(t *testing.T) {
	value, err := parseVCPReply("VCP 10 C 50 100\n")
	require.NoError(t, err)
	assert.Equal(t, FeatureValue{Current: 50, Max: 100}, value)
}

func TestParseVCPReplySimpleNonContinuous(t *testing.T) {
	value, err := parseVCPReply("VCP 14 SNC x05\n")
	require.NoError(t, err)
	assert.Equal(t, FeatureValue{Current: 5}, value)
}

func TestParseVCPReplyComplexNonContinuous(t *testing.T) {
	value, err := parseVCPReply("VCP 60 CNC x00 x00 x00 x0f\n")
	require.NoError(t, err)
	assert.Equal(t, FeatureValue{Current: 15, Max: 0}, value)
}

func TestParseVCPReplySkipsNoise(t *testing.T) {
	out := "Some warning about sleep times\nVCP 12 C 75 100\n"
	value, err := parseVCPReply(out)
	require.NoError(t, err)
	assert.Equal(t, 75, value.Current)
}

func TestParseVCPReplyErrorReply(t *testing.T) {
	_, err := parseVCPReply("VCP 87 ERR\n")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, ErrUnsupportedFeature))
}

func TestParseVCPReplyMalformed(t *testing.T) {
	for _, out := range []string{"", "garbage output", "VCP 10 C fifty max"} {
		_, err := parseVCPReply(out)
		require.Error(t, err, "output %q", out)
		assert.True(t, errors.HasCode(err, ErrMalformedResponse), "output %q", out)
	}
}

func TestParseDetect(t *testing.T) {
	out := `Display 1
   I2C bus: /dev/i2c-4
   DRM connector: card1-DP-1
   Monitor: DEL:DELL U2720Q:H7MW013

Display 2
   I2C bus: /dev/i2c-5
   DRM_connector: card1-HDMI-A-1
   Monitor: GSM:LG HDR 4K:

Invalid display
   I2C bus: /dev/i2c-6
`
	infos := parseDetect(out)
	require.Len(t, infos, 2)

	assert.Equal(t, 1, infos[0].Display)
	assert.Equal(t, "/dev/i2c-4", infos[0].Bus)
	assert.Equal(t, "card1-DP-1", infos[0].Connector)
	assert.Equal(t, "DEL", infos[0].Manufacturer)
	assert.Equal(t, "DELL U2720Q", infos[0].Model)
	assert.Equal(t, "H7MW013", infos[0].Serial)

	assert.Equal(t, 2, infos[1].Display)
	assert.Equal(t, "card1-HDMI-A-1", infos[1].Connector)
	assert.Equal(t, "LG HDR 4K", infos[1].Model)
	assert.Empty(t, infos[1].Serial)
}

func TestDetectUsesRunner(t *testing.T) {
	var gotArgs []string
	run := func(_ context.Context, args ...string) (string, error) {
		gotArgs = args
		return "Display 1\n   I2C bus: /dev/i2c-4\n   Monitor: DEL:U2720Q:XYZ\n", nil
	}

	infos, err := detect(context.Background(), run)
	require.NoError(t, err)
	assert.Equal(t, []string{"detect", "--terse"}, gotArgs)
	require.Len(t, infos, 1)
	assert.Equal(t, "U2720Q", infos[0].Model)
}

func TestClassifyExecErrorUnsupported(t *testing.T) {
	err := classifyExecError(fmt.Errorf("exit status 1"), "Unsupported VCP code: 0x87")
	assert.True(t, errors.HasCode(err, ErrUnsupportedFeature))
	assert.False(t, IsTransient(err))
}

func TestClassifyExecErrorTimeout(t *testing.T) {
	err := classifyExecError(context.DeadlineExceeded, "")
	assert.True(t, errors.HasCode(err, ErrTransportTimeout))
	assert.True(t, IsTransient(err))
}

func TestClassifyExecErrorPermission(t *testing.T) {
	err := classifyExecError(fmt.Errorf("exit status 1"),
		"Open failed for /dev/i2c-4: Permission denied")
	assert.True(t, errors.HasCode(err, ErrPermissionDenied))
	assert.False(t, IsTransient(err))
}

func TestTransportArgs(t *testing.T) {
	transport := newTransport(2, 2.0)
	args := transport.args("getvcp", "10", "--brief")
	assert.Equal(t, []string{"getvcp", "10", "--brief", "--display", "2", "--sleep-multiplier", "2"}, args)

	// Default multiplier stays implicit
	plain := newTransport(1, 1.0)
	assert.Equal(t, []string{"setvcp", "10", "50", "--display", "1"}, plain.args("setvcp", "10", "50"))
}

func TestParseCapabilities(t *testing.T) {
	raw := `Model: U2720Q
MCCS version: 2.1
VCP Features:
   Feature: 10 (Brightness)
   Feature: 12 (Contrast)
   Feature: DC (Display Mode)
      Values:
         00: Standard/Default mode
         03: Movie
         05: Unrecognized value
   Feature: 14 (Select color preset)
      Values:
         05: 6500 K
         08: 9300 K
`
	caps := parseCapabilities(raw)

	assert.Equal(t, "U2720Q", caps.Model)
	assert.Equal(t, "2.1", caps.MCCSVersion)
	assert.True(t, caps.Supports(FeatureBrightness))
	assert.True(t, caps.Supports(FeatureContrast))
	assert.True(t, caps.Supports(FeatureColorPreset))
	assert.False(t, caps.Supports(FeatureSharpness))

	assert.Equal(t, "Movie", caps.PresetName(FeatureColorPreset, 3))
	assert.Equal(t, "Mode 5", caps.PresetName(FeatureColorPreset, 5))
	assert.Equal(t, "Mode 99", caps.PresetName(FeatureColorPreset, 99))
	assert.Equal(t, "6500 K", caps.PresetName(FeatureColorTemperature, 5))
}
