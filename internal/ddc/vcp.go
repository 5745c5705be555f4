package ddc

import (
	"fmt"
	"strconv"
	"strings"

	"codeberg.org/mutker/monitorctl/internal/errors"
)

// Well-known VCP feature codes
const (
	FeatureBrightness       Feature = 0x10
	FeatureContrast         Feature = 0x12
	FeatureColorTemperature Feature = 0x14
	FeatureRedGain          Feature = 0x16
	FeatureGreenGain        Feature = 0x18
	FeatureBlueGain         Feature = 0x1A
	FeatureInputSource      Feature = 0x60
	FeatureVolume           Feature = 0x62
	FeatureSharpness        Feature = 0x87
	FeaturePowerMode        Feature = 0xD6
	FeatureColorPreset      Feature = 0xDC
)

// ColorTemperatureOffset distinguishes color-temperature values from
// color-preset values in profile configuration: a configured color value
// at or above the offset addresses feature 0x14 with the offset removed,
// anything below addresses preset feature 0xDC directly.
const ColorTemperatureOffset = 0x1000

var featureNames = map[Feature]string{
	FeatureBrightness:       "Brightness",
	FeatureContrast:         "Contrast",
	FeatureColorTemperature: "Color temperature",
	FeatureRedGain:          "Red gain",
	FeatureGreenGain:        "Green gain",
	FeatureBlueGain:         "Blue gain",
	FeatureInputSource:      "Input source",
	FeatureVolume:           "Volume",
	FeatureSharpness:        "Sharpness",
	FeaturePowerMode:        "Power mode",
	FeatureColorPreset:      "Color preset",
}

// Writes to these features are issued without read-back verification;
// many displays NAK or misreport the verify read after accepting the value.
var noVerifyFeatures = map[Feature]struct{}{
	FeatureBrightness:       {},
	FeatureContrast:         {},
	FeatureColorTemperature: {},
	FeatureRedGain:          {},
	FeatureGreenGain:        {},
	FeatureBlueGain:         {},
	FeatureColorPreset:      {},
}

// featureAliases maps the names accepted on the command line to codes
var featureAliases = map[string]Feature{
	"brightness":        FeatureBrightness,
	"contrast":          FeatureContrast,
	"color-temperature": FeatureColorTemperature,
	"red-gain":          FeatureRedGain,
	"green-gain":        FeatureGreenGain,
	"blue-gain":         FeatureBlueGain,
	"input":             FeatureInputSource,
	"volume":            FeatureVolume,
	"sharpness":         FeatureSharpness,
	"power":             FeaturePowerMode,
	"color-preset":      FeatureColorPreset,
	"mode":              FeatureColorPreset,
}

func (f Feature) String() string {
	if name, ok := featureNames[f]; ok {
		return fmt.Sprintf("%s (0x%02X)", name, int(f))
	}

	return fmt.Sprintf("0x%02X", int(f))
}

// ParseFeature resolves a feature from a name ("brightness") or a code
// ("0x10", "10"). Bare numbers are hexadecimal, matching the notation
// of the underlying tooling.
func ParseFeature(s string) (Feature, error) {
	normalized := strings.ToLower(strings.TrimSpace(s))
	if f, ok := featureAliases[normalized]; ok {
		return f, nil
	}

	code, err := strconv.ParseInt(strings.TrimPrefix(normalized, "0x"), 16, 32)
	if err != nil || code <= 0 || code > 0xFF {
		return 0, errors.New().WithData(ErrUnknownFeature, s)
	}

	return Feature(code), nil
}

// NoVerify reports whether writes to f skip read-back verification
func NoVerify(f Feature) bool {
	_, ok := noVerifyFeatures[f]
	return ok
}

// ColorFeature resolves a configured color value into the feature code
// and raw value to write, applying the color-temperature offset convention
func ColorFeature(configured int) (Feature, int) {
	if configured >= ColorTemperatureOffset {
		return FeatureColorTemperature, configured - ColorTemperatureOffset
	}

	return FeatureColorPreset, configured
}
