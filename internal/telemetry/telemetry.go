package telemetry

import (
	"context"

	"codeberg.org/mutker/monitorctl/internal/errors"
	"codeberg.org/mutker/monitorctl/internal/logger"
)

type service struct {
	repo Repository
	cfg  Config
}

// No-op implementation used when telemetry is disabled
type noopCollector struct{}

func NewService(cfg Config) (Collector, error) {
	errFactory := errors.New()

	if err := cfg.Validate(); err != nil {
		return nil, errFactory.Wrap(ErrInvalidConfig, err)
	}

	if !cfg.Enabled {
		logger.Debug().Msg("Telemetry disabled, using no-op collector")
		return &noopCollector{}, nil
	}

	repo, err := NewRepository(cfg)
	if err != nil {
		return nil, err // Already wrapped with appropriate error
	}

	return &service{
		repo: repo,
		cfg:  cfg,
	}, nil
}

func (s *service) RecordSettingChange(ctx context.Context, change *SettingChange) error {
	if change == nil {
		return errors.New().New(ErrInvalidRecord)
	}

	return s.record(ctx, change)
}

func (s *service) RecordProfileTransition(ctx context.Context, transition *ProfileTransition) error {
	if transition == nil {
		return errors.New().New(ErrInvalidRecord)
	}

	return s.record(ctx, transition)
}

func (s *service) RecordAdaptiveSample(ctx context.Context, sample *AdaptiveSample) error {
	if sample == nil {
		return errors.New().New(ErrInvalidRecord)
	}

	return s.record(ctx, sample)
}

func (s *service) record(ctx context.Context, rec any) error {
	errFactory := errors.New()

	select {
	case <-ctx.Done():
		return errFactory.Wrap(ErrOperationTimeout, ctx.Err())
	default:
		if err := s.repo.Record(rec); err != nil {
			return errFactory.Wrap(ErrRecordFailed, err)
		}
	}

	return nil
}

func (s *service) RunID() string {
	return s.repo.RunID()
}

func (s *service) Close() error {
	errFactory := errors.New()

	if err := s.repo.Close(); err != nil {
		return errFactory.Wrap(ErrStorageClose, err)
	}

	return nil
}

func (*noopCollector) RecordSettingChange(_ context.Context, _ *SettingChange) error {
	return nil
}

func (*noopCollector) RecordProfileTransition(_ context.Context, _ *ProfileTransition) error {
	return nil
}

func (*noopCollector) RecordAdaptiveSample(_ context.Context, _ *AdaptiveSample) error {
	return nil
}

func (*noopCollector) RunID() string {
	return ""
}

func (*noopCollector) Close() error {
	return nil
}
