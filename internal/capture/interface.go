package capture

import (
	"context"
	"time"
)

// Service captures the desktop and reduces it to luminance statistics.
// One service is shared by all monitor sessions: results are cached
// for a sub-second window so concurrent consumers coalesce into a
// single screenshot.
type Service interface {
	Snapshot(ctx context.Context) (Stats, error)
	MinInterval() time.Duration
	Method() string
}

// Stats summarizes a downsampled desktop frame
type Stats struct {
	// Mean is the average luminance, 0..255
	Mean float64
	// DarkRatio is the fraction of pixels darker than the dark
	// threshold, 0..1
	DarkRatio float64
	// BrightRatio is the fraction of pixels brighter than the bright
	// threshold, 0..1
	BrightRatio float64
}
