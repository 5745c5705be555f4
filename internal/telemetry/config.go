package telemetry

import (
	"os"
	"path/filepath"
	"time"

	"codeberg.org/mutker/monitorctl/internal/errors"
)

const (
	defaultDirPerm = 0o755

	defaultBatchSize    = 32
	defaultBatchTimeout = 30 * time.Second
)

type Config struct {
	DBPath       string
	Enabled      bool
	BatchSize    int
	BatchTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		Enabled:      false,
		DBPath:       defaultDBPath(),
		BatchSize:    defaultBatchSize,
		BatchTimeout: defaultBatchTimeout,
	}
}

// defaultDBPath places the database in the user cache directory; the
// daemon runs in the user's graphical session, not as root
func defaultDBPath() string {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return ""
	}

	return filepath.Join(cacheDir, "monitorctl", "telemetry.db")
}

func (c Config) Validate() error {
	errFactory := errors.New()

	// Only validate the path if telemetry is enabled
	if c.Enabled && c.DBPath == "" {
		return errFactory.New(ErrInvalidDBPath)
	}

	return nil
}
