package telemetry

import (
	"context"
	"time"
)

// Collector defines the core domain interface. All records are tagged
// with the run ID of the current process so overlapping histories can
// be told apart.
type Collector interface {
	RecordSettingChange(ctx context.Context, change *SettingChange) error
	RecordProfileTransition(ctx context.Context, transition *ProfileTransition) error
	RecordAdaptiveSample(ctx context.Context, sample *AdaptiveSample) error
	RunID() string
	Close() error
}

// Setting change origins
const (
	OriginProfile  = "profile"
	OriginAdaptive = "adaptive"
	OriginManual   = "manual"
)

// SettingChange is one applied monitor setting
type SettingChange struct {
	Timestamp time.Time
	Monitor   string
	Feature   string
	Previous  int
	Value     int
	Origin    string
}

// ProfileTransition is one profile switch on one monitor
type ProfileTransition struct {
	Timestamp time.Time
	Monitor   string
	From      string
	To        string
	Cause     string
}

// AdaptiveSample is one adaptive evaluation outcome
type AdaptiveSample struct {
	Timestamp   time.Time
	Monitor     string
	Mean        float64
	DarkRatio   float64
	BrightRatio float64
	Brightness  int
	Contrast    int
}
