package regwatch

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNaturalKeyPrefersIdentityTriple(t *testing.T) {
	t.Parallel()

	rec := CandidateRecord{
		DetailURL: "https://peraturan.bpk.go.id/Details/345/uu-no-12-tahun-2024",
		Jenis:     "uu",
		Nomor:     "12",
		Tahun:     2024,
	}
	require.Equal(t, "UU/2024/12", rec.NaturalKey())
}

func TestNaturalKeyFallsBackToURL(t *testing.T) {
	t.Parallel()

	rec := CandidateRecord{DetailURL: "https://peraturan.bpk.go.id/Details/345/x"}
	require.Equal(t, rec.DetailURL, rec.NaturalKey())

	meta := RegulationMetadata{DetailURL: rec.DetailURL, Jenis: "uu", Tahun: 2024}
	require.False(t, meta.Complete())
	require.Equal(t, rec.DetailURL, meta.NaturalKey())
}

func TestTerminalStatuses(t *testing.T) {
	t.Parallel()

	require.False(t, JobStatusPending.Terminal())
	require.False(t, JobStatusRunning.Terminal())
	require.True(t, JobStatusCompleted.Terminal())
	require.True(t, JobStatusFailed.Terminal())
	require.True(t, JobStatusCancelled.Terminal())
}

func TestIsTransientFetch(t *testing.T) {
	t.Parallel()

	errAny := errors.New("boom")
	require.True(t, IsTransientFetch(TransientFetch(errAny)))
	require.False(t, IsTransientFetch(FatalFetch(errAny)))
	require.False(t, IsTransientFetch(errAny))
}

func TestStageErrorRetryable(t *testing.T) {
	t.Parallel()

	require.True(t, NewStageError(StageDownload, nil).Retryable())
	require.True(t, NewStageError(StageUpload, nil).Retryable())
	require.False(t, NewStageError(StageConvert, nil).Retryable())
	require.False(t, NewStageError(StagePersist, nil).Retryable())
}
