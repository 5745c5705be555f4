package config

import (
	"os"
	"path/filepath"
	"strings"

	"codeberg.org/mutker/monitorctl/internal/errors"
	"codeberg.org/mutker/monitorctl/internal/logger"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultLogLevel = "info"

	configName = "monitorctl"
	configType = "toml"
	envPrefix  = "MONITORCTL"
	envConfig  = "MONITORCTL_CONFIG"
)

type Config struct {
	LogLevel  string `mapstructure:"log_level"`
	Debug     bool   `mapstructure:"debug"`
	Verbose   bool   `mapstructure:"verbose"`
	Telemetry bool   `mapstructure:"telemetry"`
	Database  string `mapstructure:"database"`
	StateDir  string `mapstructure:"state_dir"`

	DDC            DDCConfig       `mapstructure:"ddc"`
	Tracker        TrackerConfig   `mapstructure:"tracker"`
	Capture        CaptureConfig   `mapstructure:"capture"`
	Adaptive       AdaptiveConfig  `mapstructure:"adaptive"`
	DefaultProfile string          `mapstructure:"default_profile"`
	Profiles       []ProfileConfig `mapstructure:"profiles"`
	Monitors       []MonitorConfig `mapstructure:"monitors"`
}

// DDCConfig tunes the protocol client shared by all monitor sessions
type DDCConfig struct {
	RetryCount      int     `mapstructure:"retry_count"`
	SleepMultiplier float64 `mapstructure:"sleep_multiplier"`
	CacheTTLMs      int     `mapstructure:"cache_ttl_ms"`
}

// TrackerConfig tunes focused-window tracking
type TrackerConfig struct {
	Backend            string `mapstructure:"backend"`
	PollIntervalMs     int    `mapstructure:"poll_interval_ms"`
	ZeroPositionPolicy string `mapstructure:"zero_position_policy"`
}

// CaptureConfig tunes screen sampling
type CaptureConfig struct {
	Method     string `mapstructure:"method"`
	CacheTTLMs int    `mapstructure:"cache_ttl_ms"`
}

// AdaptiveConfig holds global adaptive-control defaults; per-monitor
// sections may override individual fields
type AdaptiveConfig struct {
	Enabled          bool    `mapstructure:"enabled"`
	Interval         float64 `mapstructure:"interval"`
	MinBrightness    int     `mapstructure:"min_brightness"`
	MaxBrightness    int     `mapstructure:"max_brightness"`
	MinContrast      int     `mapstructure:"min_contrast"`
	MaxContrast      int     `mapstructure:"max_contrast"`
	Smoothing        float64 `mapstructure:"smoothing"`
	FailureThreshold int     `mapstructure:"failure_threshold"`
}

// ProfileConfig declares one window-matching profile. Pointer fields
// distinguish "not configured" from a configured zero: nil means the
// profile does not touch that setting.
type ProfileConfig struct {
	Name           string   `mapstructure:"name"`
	Priority       int      `mapstructure:"priority"`
	Classes        []string `mapstructure:"classes"`
	Titles         []string `mapstructure:"titles"`
	AutoBrightness *bool    `mapstructure:"auto_brightness"`
	AutoContrast   *bool    `mapstructure:"auto_contrast"`
	Brightness     *int     `mapstructure:"brightness"`
	Contrast       *int     `mapstructure:"contrast"`
	Color          *int     `mapstructure:"color"`
	Input          *int     `mapstructure:"input"`
	Sharpness      *int     `mapstructure:"sharpness"`
}

// AdaptiveOverride overrides individual adaptive defaults for one monitor
type AdaptiveOverride struct {
	Interval      *float64 `mapstructure:"interval"`
	Smoothing     *float64 `mapstructure:"smoothing"`
	MinBrightness *int     `mapstructure:"min_brightness"`
	MaxBrightness *int     `mapstructure:"max_brightness"`
	MinContrast   *int     `mapstructure:"min_contrast"`
	MaxContrast   *int     `mapstructure:"max_contrast"`
}

// MonitorConfig carries per-monitor settings. The identifier matches a
// detected display when it is a case-insensitive substring of the model
// or equals the serial number.
type MonitorConfig struct {
	Identifier     string            `mapstructure:"identifier"`
	FullscreenOnly bool              `mapstructure:"fullscreen_only"`
	AutoColor      *bool             `mapstructure:"auto_color"`
	AutoBrightness *bool             `mapstructure:"auto_brightness"`
	AutoContrast   *bool             `mapstructure:"auto_contrast"`
	Sharpness      *int              `mapstructure:"sharpness"`
	SharpnessMax   *int              `mapstructure:"sharpness_max"`
	RedGain        *int              `mapstructure:"red_gain"`
	GreenGain      *int              `mapstructure:"green_gain"`
	BlueGain       *int              `mapstructure:"blue_gain"`
	Input          *int              `mapstructure:"input"`
	Adaptive       *AdaptiveOverride `mapstructure:"adaptive"`
	Unsupported    []int             `mapstructure:"unsupported"`
}

func Load(opts ...Option) (*Config, error) {
	errFactory := errors.New()

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	switch {
	case o.configPath != "":
		v.SetConfigFile(o.configPath)
	case os.Getenv(envConfig) != "":
		v.SetConfigFile(os.Getenv(envConfig))
	default:
		v.SetConfigName(configName)
		v.SetConfigType(configType)
		if userCfg, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(userCfg, configName))
		}
		v.AddConfigPath("/etc")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, errFactory.Wrap(errors.ErrReadConfig, err)
		}
	}

	if o.flags != nil {
		if err := bindFlags(v, o.flags); err != nil {
			return nil, err
		}
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// flagKeys maps command-line flag names to configuration keys
var flagKeys = map[string]string{
	"log-level":        "log_level",
	"debug":            "debug",
	"verbose":          "verbose",
	"telemetry":        "telemetry",
	"database":         "database",
	"interval":         "adaptive.interval",
	"retry-count":      "ddc.retry_count",
	"sleep-multiplier": "ddc.sleep_multiplier",
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	errFactory := errors.New()

	for flagName, key := range flagKeys {
		flag := flags.Lookup(flagName)
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return errFactory.Wrap(errors.ErrBindFlags, err)
		}
	}

	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("debug", false)
	v.SetDefault("verbose", false)
	v.SetDefault("telemetry", false)
	v.SetDefault("database", "")
	v.SetDefault("state_dir", "")
	v.SetDefault("default_profile", "default")

	v.SetDefault("ddc.retry_count", 3)
	v.SetDefault("ddc.sleep_multiplier", 1.0)
	v.SetDefault("ddc.cache_ttl_ms", 500)

	v.SetDefault("tracker.backend", "")
	v.SetDefault("tracker.poll_interval_ms", 1000)
	v.SetDefault("tracker.zero_position_policy", "primary")

	v.SetDefault("capture.method", "")
	v.SetDefault("capture.cache_ttl_ms", 300)

	v.SetDefault("adaptive.enabled", false)
	v.SetDefault("adaptive.interval", 5.0)
	v.SetDefault("adaptive.min_brightness", 20)
	v.SetDefault("adaptive.max_brightness", 80)
	v.SetDefault("adaptive.min_contrast", 30)
	v.SetDefault("adaptive.max_contrast", 70)
	v.SetDefault("adaptive.smoothing", 0.7)
	v.SetDefault("adaptive.failure_threshold", 10)
}

func (c *Config) validate() error {
	errFactory := errors.New()

	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		return err
	}

	if c.DDC.RetryCount < 1 {
		return errFactory.WithData(errors.ErrInvalidConfig, struct {
			Field string
			Value int
		}{Field: "ddc.retry_count", Value: c.DDC.RetryCount})
	}

	if c.DDC.SleepMultiplier <= 0 {
		return errFactory.WithData(errors.ErrInvalidConfig, struct {
			Field string
			Value float64
		}{Field: "ddc.sleep_multiplier", Value: c.DDC.SleepMultiplier})
	}

	if c.Adaptive.Interval <= 0 {
		return errFactory.WithData(errors.ErrInvalidInterval, c.Adaptive.Interval)
	}

	if c.Adaptive.Smoothing < 0 || c.Adaptive.Smoothing >= 1 {
		return errFactory.WithData(errors.ErrInvalidConfig, struct {
			Field string
			Value float64
		}{Field: "adaptive.smoothing", Value: c.Adaptive.Smoothing})
	}

	if c.Adaptive.MinBrightness > c.Adaptive.MaxBrightness {
		return errFactory.WithMessage(errors.ErrInvalidConfig, "min_brightness exceeds max_brightness")
	}

	if c.Adaptive.MinContrast > c.Adaptive.MaxContrast {
		return errFactory.WithMessage(errors.ErrInvalidConfig, "min_contrast exceeds max_contrast")
	}

	switch c.Tracker.ZeroPositionPolicy {
	case "primary", "exclude":
	default:
		return errFactory.WithData(errors.ErrInvalidConfig, struct {
			Field string
			Value string
		}{Field: "tracker.zero_position_policy", Value: c.Tracker.ZeroPositionPolicy})
	}

	return nil
}
