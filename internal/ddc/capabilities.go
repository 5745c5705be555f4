package ddc

import (
	"fmt"
	"strconv"
	"strings"
)

// Capabilities describes what one display advertises: its VCP feature
// set and, for value-table features like the color preset, the value
// names it reports
type Capabilities struct {
	Model       string
	MCCSVersion string
	Features    map[Feature]string
	ValueNames  map[Feature]map[int]string
}

// Supports reports whether the display advertises the feature
func (c *Capabilities) Supports(feature Feature) bool {
	if c == nil {
		return false
	}
	_, ok := c.Features[feature]

	return ok
}

// PresetName resolves a value of a value-table feature to its advertised
// name; unrecognized values get a generic "Mode <value>" label
func (c *Capabilities) PresetName(feature Feature, value int) string {
	if c != nil {
		if names, ok := c.ValueNames[feature]; ok {
			if name, ok := names[value]; ok {
				return name
			}
		}
	}

	return fmt.Sprintf("Mode %d", value)
}

// parseCapabilities extracts the feature list and per-feature value
// tables from "ddcutil capabilities" output. Lines look like:
//
//	Model: U2720Q
//	VCP Features:
//	   Feature: 10 (Brightness)
//	   Feature: DC (Display Mode)
//	      Values:
//	         00: Standard/Default mode
//	         05: Games
func parseCapabilities(raw string) *Capabilities {
	caps := &Capabilities{
		Features:   make(map[Feature]string),
		ValueNames: make(map[Feature]map[int]string),
	}

	var currentFeature Feature
	inValues := false

	for _, line := range strings.Split(raw, "\n") {
		trimmed := strings.TrimSpace(line)

		switch {
		case strings.HasPrefix(trimmed, "Model:"):
			caps.Model = strings.TrimSpace(strings.TrimPrefix(trimmed, "Model:"))
		case strings.HasPrefix(trimmed, "MCCS version:"):
			caps.MCCSVersion = strings.TrimSpace(strings.TrimPrefix(trimmed, "MCCS version:"))
		case strings.HasPrefix(trimmed, "Feature:"):
			inValues = false
			rest := strings.TrimSpace(strings.TrimPrefix(trimmed, "Feature:"))
			fields := strings.SplitN(rest, " ", 2)
			code, err := strconv.ParseInt(fields[0], 16, 32)
			if err != nil {
				currentFeature = 0
				continue
			}
			currentFeature = Feature(code)
			name := ""
			if len(fields) == 2 {
				name = strings.Trim(strings.TrimSpace(fields[1]), "()")
			}
			caps.Features[currentFeature] = name
		case strings.HasPrefix(trimmed, "Values:"):
			inValues = currentFeature != 0
		case inValues && strings.Contains(trimmed, ":"):
			parts := strings.SplitN(trimmed, ":", 2)
			value, err := strconv.ParseInt(strings.TrimSpace(parts[0]), 16, 32)
			if err != nil {
				// Left the value table for unrelated output
				inValues = false
				continue
			}
			name := strings.TrimSpace(parts[1])
			if name == "" || strings.EqualFold(name, "Unrecognized value") {
				name = fmt.Sprintf("Mode %d", int(value))
			}
			if caps.ValueNames[currentFeature] == nil {
				caps.ValueNames[currentFeature] = make(map[int]string)
			}
			caps.ValueNames[currentFeature][int(value)] = name
		}
	}

	return caps
}
