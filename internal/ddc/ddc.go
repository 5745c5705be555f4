package ddc

import (
	"context"
	"sort"
	"sync"
	"time"

	"codeberg.org/mutker/monitorctl/internal/errors"
	"codeberg.org/mutker/monitorctl/internal/logger"
)

const (
	defaultCacheTTL    = 500 * time.Millisecond
	minCommandInterval = 100 * time.Millisecond
)

// ClientConfig tunes one display's protocol client
type ClientConfig struct {
	RetryCount      int
	SleepMultiplier float64
	CacheTTL        time.Duration
}

type cachedFeature struct {
	value     FeatureValue
	fetchedAt time.Time
}

type client struct {
	info        DisplayInfo
	transport   Transport
	cacheTTL    time.Duration
	minInterval time.Duration

	mu           sync.Mutex
	cache        map[Feature]cachedFeature
	unsupported  map[Feature]struct{}
	capabilities *Capabilities
	lastCommand  time.Time
}

// NewClient builds the production client for one detected display,
// wiring the ddcutil transport behind the retry layer.
func NewClient(info DisplayInfo, cfg ClientConfig) Client {
	transport := withRetry(newTransport(info.Display, cfg.SleepMultiplier), cfg.RetryCount, cfg.SleepMultiplier)

	return NewClientWithTransport(info, transport, cfg)
}

// NewClientWithTransport builds a client over a caller-supplied transport.
// The transport is used as-is; no retry layer is added.
func NewClientWithTransport(info DisplayInfo, transport Transport, cfg ClientConfig) Client {
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	multiplier := cfg.SleepMultiplier
	if multiplier <= 0 {
		multiplier = 1.0
	}

	return &client{
		info:        info,
		transport:   transport,
		cacheTTL:    ttl,
		minInterval: time.Duration(multiplier * float64(minCommandInterval)),
		cache:       make(map[Feature]cachedFeature),
		unsupported: make(map[Feature]struct{}),
	}
}

func (c *client) Display() int {
	return c.info.Display
}

func (c *client) Bus() string {
	return c.info.Bus
}

func (c *client) Read(ctx context.Context, feature Feature) (FeatureValue, error) {
	errFactory := errors.New()

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, marked := c.unsupported[feature]; marked {
		return FeatureValue{}, errFactory.WithData(ErrUnsupportedFeature, feature.String())
	}

	if entry, ok := c.cache[feature]; ok && time.Since(entry.fetchedAt) < c.cacheTTL {
		return entry.value, nil
	}

	if err := c.throttle(ctx); err != nil {
		return FeatureValue{}, err
	}

	value, err := c.transport.Get(ctx, feature)
	c.lastCommand = time.Now()
	if err != nil {
		if IsUnsupported(err) {
			c.markUnsupported(feature)
		}
		return FeatureValue{}, err
	}

	c.cache[feature] = cachedFeature{value: value, fetchedAt: time.Now()}

	logger.Debug().
		Int("display", c.info.Display).
		Str("feature", feature.String()).
		Int("current", value.Current).
		Int("max", value.Max).
		Msg("Read VCP feature")

	return value, nil
}

// ReadAll reads the given features, returning values for those that
// succeed. Failed features are simply absent from the result.
func (c *client) ReadAll(ctx context.Context, features []Feature) map[Feature]FeatureValue {
	values := make(map[Feature]FeatureValue, len(features))
	for _, feature := range features {
		value, err := c.Read(ctx, feature)
		if err != nil {
			continue
		}
		values[feature] = value
	}

	return values
}

func (c *client) Write(ctx context.Context, feature Feature, value int, force bool) error {
	errFactory := errors.New()

	c.mu.Lock()
	defer c.mu.Unlock()

	if !force {
		if _, marked := c.unsupported[feature]; marked {
			return errFactory.WithData(ErrUnsupportedFeature, feature.String())
		}
		if entry, ok := c.cache[feature]; ok &&
			time.Since(entry.fetchedAt) < c.cacheTTL && entry.value.Current == value {
			// Value already current; skip the bus round-trip
			return nil
		}
	}

	if err := c.throttle(ctx); err != nil {
		return err
	}

	err := c.transport.Set(ctx, feature, value)
	c.lastCommand = time.Now()
	if err != nil {
		if IsUnsupported(err) {
			c.markUnsupported(feature)
		}
		return err
	}

	// Successful writes refresh the cache so an immediate read
	// reflects the written value without a round-trip
	entry := c.cache[feature]
	entry.value.Current = value
	entry.fetchedAt = time.Now()
	c.cache[feature] = entry

	if force {
		delete(c.unsupported, feature)
	}

	logger.Debug().
		Int("display", c.info.Display).
		Str("feature", feature.String()).
		Int("value", value).
		Bool("force", force).
		Msg("Wrote VCP feature")

	return nil
}

func (c *client) Capabilities(ctx context.Context) (*Capabilities, error) {
	errFactory := errors.New()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capabilities != nil {
		return c.capabilities, nil
	}

	if err := c.throttle(ctx); err != nil {
		return nil, err
	}

	raw, err := c.transport.Capabilities(ctx)
	c.lastCommand = time.Now()
	if err != nil {
		return nil, errFactory.Wrap(ErrCapabilitiesFailed, err)
	}

	c.capabilities = parseCapabilities(raw)

	return c.capabilities, nil
}

func (c *client) Unsupported() []Feature {
	c.mu.Lock()
	defer c.mu.Unlock()

	features := make([]Feature, 0, len(c.unsupported))
	for feature := range c.unsupported {
		features = append(features, feature)
	}
	sort.Slice(features, func(i, j int) bool { return features[i] < features[j] })

	return features
}

// SeedUnsupported preloads the unsupported set, typically from state
// persisted in a previous run
func (c *client) SeedUnsupported(features []Feature) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, feature := range features {
		c.unsupported[feature] = struct{}{}
	}
}

func (c *client) markUnsupported(feature Feature) {
	c.unsupported[feature] = struct{}{}

	logger.Debug().
		Int("display", c.info.Display).
		Str("feature", feature.String()).
		Msg("Marked feature unsupported")
}

// throttle spaces consecutive bus commands; the underlying I2C bus
// needs settle time between transactions proportional to the display's
// sleep multiplier
func (c *client) throttle(ctx context.Context) error {
	wait := c.minInterval - time.Since(c.lastCommand)
	if wait <= 0 {
		return nil
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(wait):
		return nil
	}
}
