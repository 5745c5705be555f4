package ddc

import "context"

// Client manages DDC/CI operations for one physical display.
// All transport access for the display's bus goes through its Client;
// concurrent callers are serialized, never interleaved.
type Client interface {
	// Feature access
	Read(ctx context.Context, feature Feature) (FeatureValue, error)
	ReadAll(ctx context.Context, features []Feature) map[Feature]FeatureValue
	Write(ctx context.Context, feature Feature, value int, force bool) error

	// Capability discovery
	Capabilities(ctx context.Context) (*Capabilities, error)

	// Unsupported-feature bookkeeping
	Unsupported() []Feature
	SeedUnsupported(features []Feature)

	// Addressing
	Display() int
	Bus() string
}

// Transport performs one synchronous protocol round-trip against a
// single display. Implementations do not retry; retry policy is layered
// on top (see withRetry).
type Transport interface {
	Get(ctx context.Context, feature Feature) (FeatureValue, error)
	Set(ctx context.Context, feature Feature, value int) error
	Capabilities(ctx context.Context) (string, error)
}

// Domain types
type (
	// Feature is a numeric VCP feature code
	Feature int

	// FeatureValue is the result of a protocol read
	FeatureValue struct {
		Current int
		Max     int
	}

	// DisplayInfo describes one protocol-addressable display as reported
	// by detection. Display is the transport ordinal; Bus and Connector
	// identify the hardware path. Bus paths can change across reboots, so
	// persistence keys on Manufacturer+Model+Serial, never on Bus.
	DisplayInfo struct {
		Display      int
		Bus          string
		Connector    string
		Manufacturer string
		Model        string
		Serial       string
	}
)
