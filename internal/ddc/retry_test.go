package ddc

import (
	"context"
	"testing"

	"codeberg.org/mutker/monitorctl/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedTransport replays a fixed error sequence, one per call
type scriptedTransport struct {
	calls  int
	script []error
	value  FeatureValue
}

func (s *scriptedTransport) step() error {
	err := s.script[s.calls]
	s.calls++
	return err
}

func (s *scriptedTransport) Get(context.Context, Feature) (FeatureValue, error) {
	if err := s.step(); err != nil {
		return FeatureValue{}, err
	}
	return s.value, nil
}

func (s *scriptedTransport) Set(context.Context, Feature, int) error {
	return s.step()
}

func (s *scriptedTransport) Capabilities(context.Context) (string, error) {
	if err := s.step(); err != nil {
		return "", err
	}
	return "", nil
}

func timeoutErr() error {
	return errors.New().New(ErrTransportTimeout)
}

func TestRetryRecoversFromTransientFailures(t *testing.T) {
	inner := &scriptedTransport{
		script: []error{timeoutErr(), timeoutErr(), nil},
		value:  FeatureValue{Current: 42, Max: 100},
	}
	transport := withRetry(inner, 3, 0.01)

	value, err := transport.Get(context.Background(), FeatureBrightness)
	require.NoError(t, err)
	assert.Equal(t, 42, value.Current)
	assert.Equal(t, 3, inner.calls, "Expected success on the third attempt")
}

func TestRetryDoesNotRetryUnsupported(t *testing.T) {
	inner := &scriptedTransport{
		script: []error{errors.New().New(ErrUnsupportedFeature), nil, nil},
	}
	transport := withRetry(inner, 3, 0.01)

	err := transport.Set(context.Background(), FeatureSharpness, 50)
	require.Error(t, err)
	assert.True(t, IsUnsupported(err))
	assert.Equal(t, 1, inner.calls, "Unsupported replies must not be retried")
}

func TestRetryExhaustsAttempts(t *testing.T) {
	inner := &scriptedTransport{
		script: []error{timeoutErr(), timeoutErr(), timeoutErr()},
	}
	transport := withRetry(inner, 3, 0.01)

	_, err := transport.Get(context.Background(), FeatureBrightness)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, ErrTransportTimeout))
	assert.Equal(t, 3, inner.calls)
}

func TestRetryHonorsCancellation(t *testing.T) {
	inner := &scriptedTransport{
		script: []error{timeoutErr(), timeoutErr(), timeoutErr()},
	}
	transport := withRetry(inner, 3, 10.0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := transport.Get(ctx, FeatureBrightness)
	require.Error(t, err)
	assert.Equal(t, 1, inner.calls, "Cancelled context must stop further attempts")
}
