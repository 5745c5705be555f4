package profile

import (
	"regexp"

	"codeberg.org/mutker/monitorctl/internal/config"
)

// Profile pairs window selectors with the settings to apply when they
// match. Selectors are compiled once at load time.
type Profile struct {
	Name     string
	Priority int
	Settings Settings

	classGlobs []*regexp.Regexp
	titleGlobs []*regexp.Regexp
}

// FromConfig compiles the declared profiles. Slice order is
// declaration order, which breaks priority ties.
func FromConfig(cfgs []config.ProfileConfig) ([]Profile, error) {
	profiles := make([]Profile, 0, len(cfgs))
	for _, cfg := range cfgs {
		p := Profile{
			Name:     cfg.Name,
			Priority: cfg.Priority,
			Settings: Settings{
				Brightness:     cfg.Brightness,
				Contrast:       cfg.Contrast,
				Color:          cfg.Color,
				Input:          cfg.Input,
				Sharpness:      cfg.Sharpness,
				AutoBrightness: cfg.AutoBrightness,
				AutoContrast:   cfg.AutoContrast,
			},
		}

		for _, pattern := range cfg.Classes {
			re, err := compileGlob(pattern)
			if err != nil {
				return nil, err
			}
			p.classGlobs = append(p.classGlobs, re)
		}
		for _, pattern := range cfg.Titles {
			re, err := compileGlob(pattern)
			if err != nil {
				return nil, err
			}
			p.titleGlobs = append(p.titleGlobs, re)
		}

		profiles = append(profiles, p)
	}

	return profiles, nil
}

// Matches reports whether the window class or title satisfies any of
// the profile's selectors. Matching is case sensitive; a profile with
// no selectors never matches.
func (p *Profile) Matches(class, title string) bool {
	for _, re := range p.classGlobs {
		if re.MatchString(class) {
			return true
		}
	}
	for _, re := range p.titleGlobs {
		if re.MatchString(title) {
			return true
		}
	}

	return false
}
