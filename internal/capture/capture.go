package capture

import (
	"context"
	"image"
	"image/png"
	"os"
	"os/exec"
	"sync"
	"time"

	"codeberg.org/mutker/monitorctl/internal/errors"
	"codeberg.org/mutker/monitorctl/internal/logger"
)

const (
	defaultCacheTTL   = 300 * time.Millisecond
	defaultLockWait   = 3 * time.Second
	captureTimeout    = 10 * time.Second
	reprobeThreshold  = 3
	maxSignatureSkips = 4
)

// Config tunes the shared capture service. An empty Method probes the
// session's tools in order.
type Config struct {
	Method   string
	CacheTTL time.Duration
}

type service struct {
	session string
	forced  string
	ttl     time.Duration
	floor   time.Duration

	// captureLock serializes the expensive screenshot; waiters that
	// time out fall back to stale statistics.
	captureLock chan struct{}
	lockWait    time.Duration

	mu      sync.Mutex
	stats   Stats
	statsAt time.Time
	primed  bool

	lastSig   uint64
	sigPrimed bool
	sigSkips  int

	methodMu   sync.Mutex
	method     method
	haveMethod bool
	failures   int

	capture  func(ctx context.Context) (image.Image, error)
	lookPath func(string) (string, error)
	run      runner
	now      func() time.Time
}

type runner func(ctx context.Context, name string, args ...string) (string, error)

// NewService prepares a capture service for the current graphical
// session, probing for a usable screenshot tool up front.
func NewService(cfg Config) (Service, error) {
	session := DetectSession()
	if session == "" {
		return nil, errors.New().WithMessage(ErrNoMethod, "No graphical session detected")
	}

	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}

	s := &service{
		session:     session,
		forced:      cfg.Method,
		ttl:         ttl,
		floor:       floorFor(session),
		captureLock: make(chan struct{}, 1),
		lockWait:    defaultLockWait,
		lookPath:    systemLookPath,
		run:         execCapture,
		now:         time.Now,
	}
	s.capture = s.captureFrame

	if _, err := s.currentMethod(); err != nil {
		return nil, err
	}

	return s, nil
}

// Snapshot returns luminance statistics for the desktop, reusing the
// cached result while it is fresh. Only one capture runs at a time;
// a consumer that cannot take the lock in time gets the last known
// statistics instead of stacking up screenshot processes.
func (s *service) Snapshot(ctx context.Context) (Stats, error) {
	if stats, ok := s.fresh(); ok {
		return stats, nil
	}

	select {
	case s.captureLock <- struct{}{}:
	case <-time.After(s.lockWait):
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.primed {
			logger.Debug().Msg("Capture lock busy, serving stale statistics")
			return s.stats, nil
		}
		return Stats{}, errors.New().WithMessage(ErrCaptureFailed, "Capture busy with no statistics to fall back on")
	case <-ctx.Done():
		return Stats{}, errors.New().Wrap(ErrCaptureFailed, ctx.Err())
	}
	defer func() { <-s.captureLock }()

	// Another consumer may have refreshed the cache while we waited.
	if stats, ok := s.fresh(); ok {
		return stats, nil
	}

	img, err := s.capture(ctx)
	if err != nil {
		return Stats{}, err
	}

	return s.record(downsample(img, maxAnalyzeDim)), nil
}

func (s *service) MinInterval() time.Duration {
	return s.floor
}

func (s *service) Method() string {
	s.methodMu.Lock()
	defer s.methodMu.Unlock()

	if !s.haveMethod {
		return ""
	}

	return s.method.name
}

func (s *service) fresh() (Stats, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.primed && s.now().Sub(s.statsAt) < s.ttl {
		return s.stats, true
	}

	return Stats{}, false
}

// record folds a new frame into the cache. An unchanged signature
// reuses the previous statistics, but at most maxSignatureSkips times
// in a row so slow drift cannot hide forever.
func (s *service) record(gray *image.Gray) Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	sig := signature(gray)
	if s.primed && s.sigPrimed && sig == s.lastSig && s.sigSkips < maxSignatureSkips {
		s.sigSkips++
		s.statsAt = s.now()
		return s.stats
	}

	s.lastSig = sig
	s.sigPrimed = true
	s.sigSkips = 0
	s.stats = analyze(gray)
	s.statsAt = s.now()
	s.primed = true

	logger.Debug().
		Float64("mean", s.stats.Mean).
		Float64("dark_ratio", s.stats.DarkRatio).
		Float64("bright_ratio", s.stats.BrightRatio).
		Msg("Desktop frame analyzed")

	return s.stats
}

func (s *service) captureFrame(ctx context.Context) (image.Image, error) {
	m, err := s.currentMethod()
	if err != nil {
		return nil, err
	}

	tmp, err := os.CreateTemp("", "monitorctl-*.png")
	if err != nil {
		return nil, errors.New().Wrap(ErrCaptureFailed, err)
	}
	path := tmp.Name()
	tmp.Close()
	defer os.Remove(path)

	if _, err := s.run(ctx, m.binary, m.args(path)...); err != nil {
		s.noteFailure()
		return nil, errors.New().Wrap(ErrCaptureFailed, err).WithData(m.name)
	}

	f, err := os.Open(path)
	if err != nil {
		s.noteFailure()
		return nil, errors.New().Wrap(ErrCaptureFailed, err).WithData(m.name)
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		s.noteFailure()
		return nil, errors.New().Wrap(ErrDecodeFailed, err).WithData(m.name)
	}

	s.noteSuccess()

	return img, nil
}

func (s *service) currentMethod() (method, error) {
	s.methodMu.Lock()
	defer s.methodMu.Unlock()

	if s.haveMethod {
		return s.method, nil
	}

	m, err := probeMethod(s.session, s.forced, s.lookPath)
	if err != nil {
		return method{}, err
	}

	s.method = m
	s.haveMethod = true
	s.failures = 0
	logger.Info().Str("method", m.name).Str("session", s.session).Msg("Capture method selected")

	return m, nil
}

func (s *service) noteFailure() {
	s.methodMu.Lock()
	defer s.methodMu.Unlock()

	s.failures++
	if s.failures >= reprobeThreshold && s.haveMethod {
		logger.Warn().
			Str("method", s.method.name).
			Int("failures", s.failures).
			Msg("Capture method keeps failing, re-probing on next capture")
		s.haveMethod = false
		s.failures = 0
	}
}

func (s *service) noteSuccess() {
	s.methodMu.Lock()
	s.failures = 0
	s.methodMu.Unlock()
}

func execCapture(ctx context.Context, name string, args ...string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	// Bounded by its own clock so a shutdown lets an in-flight capture
	// tool finish rather than killing it mid-write
	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), captureTimeout)
	defer cancel()

	out, err := exec.CommandContext(runCtx, name, args...).CombinedOutput()
	if ctxErr := runCtx.Err(); ctxErr != nil {
		return string(out), ctxErr
	}

	return string(out), err
}
