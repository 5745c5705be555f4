package config

import "github.com/spf13/pflag"

// Option adjusts how Load resolves configuration sources
type Option func(*options)

type options struct {
	configPath string
	flags      *pflag.FlagSet
}

// WithConfigFile specifies an explicit configuration file path,
// taking precedence over the MONITORCTL_CONFIG environment variable
// and the default search paths
func WithConfigFile(path string) Option {
	return func(o *options) {
		o.configPath = path
	}
}

// WithFlags binds command-line flags into the configuration.
// Flag values override both file and environment values.
func WithFlags(flags *pflag.FlagSet) Option {
	return func(o *options) {
		o.flags = flags
	}
}

// MonitorState holds per-monitor runtime discoveries that survive restarts
type MonitorState struct {
	ActiveProfile string `mapstructure:"active_profile"`
	Unsupported   []int  `mapstructure:"unsupported"`
}

// StateStore persists MonitorState keyed by a monitor's config ID.
// It is the output sink for settings-changed notifications; the
// orchestration core itself never touches the filesystem.
type StateStore interface {
	Load(configID string) (MonitorState, error)
	SaveUnsupported(configID string, features []int) error
	SaveActiveProfile(configID, profile string) error
}
