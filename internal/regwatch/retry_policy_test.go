package regwatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestShouldRetryRespectsMaxAttempts(t *testing.T) {
	t.Parallel()

	p := NewRetryPolicy(2, 10*time.Millisecond, 100*time.Millisecond)
	err := errors.New("boom")

	require.True(t, p.ShouldRetry(err, 0))
	require.True(t, p.ShouldRetry(err, 1))
	require.False(t, p.ShouldRetry(err, 2))
	require.False(t, p.ShouldRetry(nil, 0))
}

func TestShouldRetryFetchErrors(t *testing.T) {
	t.Parallel()

	p := NewExponentialRetryPolicy()

	require.True(t, p.ShouldRetry(TransientFetch(errors.New("503")), 0))
	require.False(t, p.ShouldRetry(FatalFetch(errors.New("404")), 0))
}

func TestShouldRetryStageErrors(t *testing.T) {
	t.Parallel()

	p := NewExponentialRetryPolicy()

	require.True(t, p.ShouldRetry(NewStageError(StageDownload, errors.New("timeout")), 0))
	require.True(t, p.ShouldRetry(NewStageError(StageUpload, errors.New("timeout")), 0))
	require.False(t, p.ShouldRetry(NewStageError(StageConvert, errors.New("bad pdf")), 0))
}

func TestShouldRetryStopsOnContextErrors(t *testing.T) {
	t.Parallel()

	p := NewExponentialRetryPolicy()

	require.False(t, p.ShouldRetry(context.Canceled, 0))
	require.False(t, p.ShouldRetry(context.DeadlineExceeded, 0))
}

func TestBackoffGrowsAndCaps(t *testing.T) {
	t.Parallel()

	p := NewRetryPolicy(5, 100*time.Millisecond, 400*time.Millisecond)

	for attempt := 0; attempt < 5; attempt++ {
		d := p.Backoff(attempt)
		require.Greater(t, d, time.Duration(0))
		require.LessOrEqual(t, d, 400*time.Millisecond)
	}
}
