package config

import (
	"os"
	"path/filepath"
	"sort"

	"codeberg.org/mutker/monitorctl/internal/errors"
	"github.com/spf13/viper"
)

const stateDirPerm = 0o755

// fileStore persists MonitorState as one TOML file per monitor under
// a state directory, keyed by config ID
type fileStore struct {
	dir string
}

func NewStore(dir string) (StateStore, error) {
	errFactory := errors.New()

	if dir == "" {
		userCfg, err := os.UserConfigDir()
		if err != nil {
			return nil, errFactory.Wrap(errors.ErrInitFailed, err)
		}
		dir = filepath.Join(userCfg, configName, "monitors")
	}

	if err := os.MkdirAll(dir, stateDirPerm); err != nil {
		return nil, errFactory.Wrap(errors.ErrInitFailed, err)
	}

	return &fileStore{dir: dir}, nil
}

func (s *fileStore) path(configID string) string {
	return filepath.Join(s.dir, configID+"."+configType)
}

func (s *fileStore) Load(configID string) (MonitorState, error) {
	errFactory := errors.New()

	v := viper.New()
	v.SetConfigFile(s.path(configID))
	v.SetConfigType(configType)

	if err := v.ReadInConfig(); err != nil {
		if os.IsNotExist(err) {
			return MonitorState{}, nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return MonitorState{}, nil
		}
		return MonitorState{}, errFactory.Wrap(errors.ErrReadConfig, err)
	}

	var state MonitorState
	if err := v.Unmarshal(&state); err != nil {
		return MonitorState{}, errFactory.Wrap(errors.ErrInvalidConfig, err)
	}

	return state, nil
}

func (s *fileStore) SaveUnsupported(configID string, features []int) error {
	state, err := s.Load(configID)
	if err != nil {
		return err
	}

	state.Unsupported = dedupeSorted(features)

	return s.write(configID, state)
}

func (s *fileStore) SaveActiveProfile(configID, profile string) error {
	state, err := s.Load(configID)
	if err != nil {
		return err
	}

	state.ActiveProfile = profile

	return s.write(configID, state)
}

func (s *fileStore) write(configID string, state MonitorState) error {
	errFactory := errors.New()

	v := viper.New()
	v.SetConfigType(configType)
	v.Set("active_profile", state.ActiveProfile)
	v.Set("unsupported", state.Unsupported)

	if err := v.WriteConfigAs(s.path(configID)); err != nil {
		return errFactory.Wrap(errors.ErrWriteState, err)
	}

	return nil
}

func dedupeSorted(features []int) []int {
	seen := make(map[int]struct{}, len(features))
	out := make([]int, 0, len(features))
	for _, f := range features {
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	sort.Ints(out)

	return out
}
