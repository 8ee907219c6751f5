package regwatch

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across stores and the orchestrator.
var (
	// ErrNotFound is returned by stores when a job or regulation is absent.
	ErrNotFound = errors.New("not found")
	// ErrJobRunning is returned when a second orchestrator attempts to drive
	// a job whose running state already acts as a lock.
	ErrJobRunning = errors.New("job already running")
	// ErrJobTerminal is returned when mutating a job in a terminal state.
	ErrJobTerminal = errors.New("job in terminal state")
	// ErrJobExists is returned when creating a job with a taken ID.
	ErrJobExists = errors.New("job already exists")
)

// FetchError wraps a listing fetch failure. Transient failures may be
// retried against the same cursor; fatal ones abort the job immediately.
type FetchError struct {
	Transient bool
	Err       error
}

func (e *FetchError) Error() string {
	if e.Transient {
		return fmt.Sprintf("transient fetch error: %v", e.Err)
	}
	return fmt.Sprintf("fatal fetch error: %v", e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// TransientFetch wraps err as a retryable listing failure.
func TransientFetch(err error) *FetchError {
	return &FetchError{Transient: true, Err: err}
}

// FatalFetch wraps err as a non-retryable listing failure.
func FatalFetch(err error) *FetchError {
	return &FetchError{Transient: false, Err: err}
}

// IsTransientFetch reports whether err is a retryable listing failure.
func IsTransientFetch(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Transient
}

// Stage names the pipeline step an item failure originated from, so the
// aggregate error log is diagnosable without re-running the job.
type Stage string

// Pipeline stages, in execution order.
const (
	StageDownload Stage = "download"
	StageConvert  Stage = "convert"
	StageUpload   Stage = "upload"
	StagePersist  Stage = "persist"
)

// StageError tags an item-level failure with the stage it occurred in.
// Item failures never escalate to job failures; they are counted and logged.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// NewStageError builds a StageError for the given stage.
func NewStageError(stage Stage, err error) *StageError {
	return &StageError{Stage: stage, Err: err}
}

// Retryable reports whether retrying the stage could succeed. Conversion of
// a malformed PDF will not succeed on retry; downloads and uploads might.
func (e *StageError) Retryable() bool {
	switch e.Stage {
	case StageDownload, StageUpload:
		return true
	default:
		return false
	}
}
