// Package orchestrator drives crawl jobs through their state machine:
// pagination, dedup pre-filtering, per-item processing, checkpointing, and
// terminal transitions.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/regwatch-id/bpk-crawler/internal/metrics"
	"github.com/regwatch-id/bpk-crawler/internal/regwatch"
)

// Config controls orchestrator behavior.
type Config struct {
	// Concurrency bounds the item-level worker pool within one page.
	Concurrency int
	// Topic names the Pub/Sub topic for document-persisted events. Empty
	// disables publishing.
	Topic string
}

// Orchestrator executes crawl jobs. Exactly one orchestrator run may drive a
// given job: the job's running status acts as the lock.
type Orchestrator struct {
	base      context.Context
	listing   regwatch.ListingFetcher
	processor regwatch.DocumentProcessor
	dedup     regwatch.DedupChecker
	jobs      regwatch.JobStore
	regs      regwatch.RegulationStore
	publisher regwatch.Publisher
	clock     regwatch.Clock
	retry     regwatch.RetryPolicy
	cfg       Config
	logger    *zap.Logger

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// New constructs an Orchestrator. ctx is the process lifecycle context:
// launched jobs inherit it, so shutting the process down cancels them and
// they finalize as cancelled.
func New(
	ctx context.Context,
	listing regwatch.ListingFetcher,
	proc regwatch.DocumentProcessor,
	dedup regwatch.DedupChecker,
	jobs regwatch.JobStore,
	regs regwatch.RegulationStore,
	publisher regwatch.Publisher,
	clock regwatch.Clock,
	retry regwatch.RetryPolicy,
	cfg Config,
	logger *zap.Logger,
) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if retry == nil {
		retry = regwatch.NewExponentialRetryPolicy()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return &Orchestrator{
		base:      ctx,
		listing:   listing,
		processor: proc,
		dedup:     dedup,
		jobs:      jobs,
		regs:      regs,
		publisher: publisher,
		clock:     clock,
		retry:     retry,
		cfg:       cfg,
		logger:    logger,
		cancels:   make(map[string]context.CancelFunc),
	}
}

// Launch starts the job in a background goroutine and returns immediately,
// so the HTTP boundary never blocks on crawl completion. The job runs on the
// orchestrator's base context rather than the caller's, surviving the
// submitting request but not process shutdown.
func (o *Orchestrator) Launch(jobID string) {
	go func() {
		if err := o.Run(o.base, jobID); err != nil {
			o.logger.Error("crawl job finished with error",
				zap.String("job_id", jobID), zap.Error(err))
		}
	}()
}

// Cancel requests cancellation of a job. A running job is signalled through
// its context and finalizes itself; a pending job flips straight to
// cancelled.
func (o *Orchestrator) Cancel(ctx context.Context, jobID string) error {
	o.mu.Lock()
	cancel, running := o.cancels[jobID]
	o.mu.Unlock()
	if running {
		cancel()
		return nil
	}
	now := o.clock.Now()
	_, err := o.jobs.Update(ctx, jobID, func(j *regwatch.CrawlJob) error {
		if j.Status.Terminal() {
			return regwatch.ErrJobTerminal
		}
		j.Status = regwatch.JobStatusCancelled
		j.FinishedAt = &now
		return nil
	})
	if err != nil {
		return fmt.Errorf("cancel job: %w", err)
	}
	metrics.JobsCompleted.WithLabelValues(string(regwatch.JobStatusCancelled)).Inc()
	return nil
}

// Run executes the job to a terminal state. It returns an error when the job
// could not be started or ended in failure; item-level failures are counted,
// never returned.
func (o *Orchestrator) Run(ctx context.Context, jobID string) error {
	job, err := o.acquire(ctx, jobID)
	if err != nil {
		return fmt.Errorf("start job %s: %w", jobID, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	o.registerCancel(jobID, cancel)
	defer o.unregisterCancel(jobID)

	// Checkpoints and terminal writes must survive job cancellation.
	persistCtx := context.WithoutCancel(ctx)

	metrics.JobsRunning.Inc()
	defer metrics.JobsRunning.Dec()

	o.logger.Info("crawl job started",
		zap.String("job_id", jobID),
		zap.Ints("years", job.Parameters.Years),
		zap.Ints("jenis_ids", job.Parameters.JenisIDs),
		zap.Int("max_items", job.Parameters.MaxItems),
	)

	filters := regwatch.SearchFilters{
		Years:    job.Parameters.Years,
		JenisIDs: job.Parameters.JenisIDs,
	}
	state := newRunState()
	cursor := regwatch.Cursor(1)

	for {
		if ctx.Err() != nil {
			return o.finalize(persistCtx, jobID, regwatch.JobStatusCancelled, state)
		}

		page, err := o.fetchPage(ctx, filters, cursor)
		if err != nil {
			if ctx.Err() != nil {
				return o.finalize(persistCtx, jobID, regwatch.JobStatusCancelled, state)
			}
			state.appendError(regwatch.JobError{
				Timestamp: o.clock.Now(),
				Message:   fmt.Sprintf("listing fetch failed on page %d: %v", cursor, err),
			})
			if ferr := o.finalize(persistCtx, jobID, regwatch.JobStatusFailed, state); ferr != nil {
				return ferr
			}
			return fmt.Errorf("job %s failed: %w", jobID, err)
		}

		capReached := o.processPage(ctx, job.Parameters, page.Records, state)

		if err := o.checkpoint(persistCtx, jobID, state); err != nil {
			if errors.Is(err, regwatch.ErrJobTerminal) {
				// Cancelled out from under us by an external writer.
				o.logger.Info("job reached terminal state externally",
					zap.String("job_id", jobID))
				return nil
			}
			// A failed checkpoint means recorded progress can no longer be
			// trusted; the job cannot continue.
			state.appendError(regwatch.JobError{
				Timestamp: o.clock.Now(),
				Message:   fmt.Sprintf("progress checkpoint failed: %v", err),
			})
			if ferr := o.finalize(persistCtx, jobID, regwatch.JobStatusFailed, state); ferr != nil {
				return ferr
			}
			return fmt.Errorf("job %s failed: %w", jobID, err)
		}

		if ctx.Err() != nil {
			return o.finalize(persistCtx, jobID, regwatch.JobStatusCancelled, state)
		}
		if capReached || page.Next == nil {
			return o.finalize(persistCtx, jobID, regwatch.JobStatusCompleted, state)
		}
		if wait := pageDelay(job.Parameters.Rate); wait > 0 {
			select {
			case <-ctx.Done():
				return o.finalize(persistCtx, jobID, regwatch.JobStatusCancelled, state)
			case <-time.After(wait):
			}
		}
		cursor = *page.Next
	}
}

// pageDelay converts the per-job requests-per-second rate into a pause
// between listing page fetches. Zero disables per-job pacing; the fetcher's
// configured delay still applies.
func pageDelay(rate float64) time.Duration {
	if rate <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / rate)
}

// acquire transitions pending -> running, rejecting concurrent starts.
func (o *Orchestrator) acquire(ctx context.Context, jobID string) (regwatch.CrawlJob, error) {
	now := o.clock.Now()
	return o.jobs.Update(ctx, jobID, func(j *regwatch.CrawlJob) error {
		if j.Status == regwatch.JobStatusRunning {
			return regwatch.ErrJobRunning
		}
		if j.Status.Terminal() {
			return regwatch.ErrJobTerminal
		}
		j.Status = regwatch.JobStatusRunning
		j.StartedAt = &now
		return nil
	})
}

// fetchPage retries transient listing failures against the same cursor;
// fatal failures and exhausted retries propagate.
func (o *Orchestrator) fetchPage(
	ctx context.Context,
	filters regwatch.SearchFilters,
	cursor regwatch.Cursor,
) (regwatch.ListingPage, error) {
	attempt := 0
	for {
		page, err := o.listing.FetchPage(ctx, filters, cursor)
		if err == nil {
			return page, nil
		}
		if !regwatch.IsTransientFetch(err) || !o.retry.ShouldRetry(err, attempt) {
			return regwatch.ListingPage{}, err
		}
		o.logger.Warn("transient listing failure; retrying page",
			zap.Int("page", int(cursor)),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return regwatch.ListingPage{}, ctx.Err()
		case <-time.After(o.retry.Backoff(attempt)):
		}
		attempt++
	}
}

// processPage runs one page of candidates. Candidates are admitted in page
// order, earliest listed first, and counted into items_found only when
// admitted, so a max-items stop mid-page leaves the remainder uncounted.
// Admitted non-duplicates fan out over the bounded worker pool.
func (o *Orchestrator) processPage(
	ctx context.Context,
	params regwatch.CrawlParameters,
	records []regwatch.CandidateRecord,
	state *runState,
) bool {
	idx := 0
	for idx < len(records) {
		if ctx.Err() != nil {
			return false
		}
		processed := state.counters().ItemsProcessed
		if params.MaxItems > 0 && processed >= params.MaxItems {
			return true
		}

		// Admit up to the remaining success budget so the pool can never
		// overshoot max_items, then let failures free budget for the rest
		// of the page.
		budget := len(records) - idx
		if params.MaxItems > 0 {
			if remaining := params.MaxItems - processed; remaining < budget {
				budget = remaining
			}
		}

		var batch []regwatch.CandidateRecord
		for idx < len(records) && len(batch) < budget {
			if ctx.Err() != nil {
				break
			}
			rec := records[idx]
			idx++
			state.found()

			exists, err := o.dedup.Exists(ctx, rec.NaturalKey())
			if err != nil {
				o.logger.Warn("dedup check failed; treating candidate as new",
					zap.String("key", rec.NaturalKey()), zap.Error(err))
			}
			if exists {
				state.skipped()
				metrics.DocumentsSkipped.Inc()
				continue
			}
			batch = append(batch, rec)
		}

		o.runBatch(ctx, batch, state)
	}

	return params.MaxItems > 0 && state.counters().ItemsProcessed >= params.MaxItems
}

func (o *Orchestrator) runBatch(
	ctx context.Context,
	batch []regwatch.CandidateRecord,
	state *runState,
) {
	if len(batch) == 0 {
		return
	}
	workers := o.cfg.Concurrency
	if workers > len(batch) {
		workers = len(batch)
	}
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	for _, rec := range batch {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(rec regwatch.CandidateRecord) {
			defer wg.Done()
			defer func() { <-sem }()
			o.handleCandidate(ctx, rec, state)
		}(rec)
	}
	wg.Wait()
}

// handleCandidate counts one candidate into exactly one outcome bucket.
// Items interrupted by cancellation count into none of them, so on a
// cancelled job items_found may exceed the sum of the other counters; the
// counters add up exactly on every other terminal state.
func (o *Orchestrator) handleCandidate(
	ctx context.Context,
	rec regwatch.CandidateRecord,
	state *runState,
) {
	if ctx.Err() != nil {
		return
	}
	outcome := o.processor.Process(ctx, rec)
	switch {
	case outcome.Failure != nil:
		if ctx.Err() != nil {
			return
		}
		state.failed(regwatch.JobError{
			Timestamp: o.clock.Now(),
			Stage:     string(outcome.Failure.Stage),
			URL:       rec.DetailURL,
			Message:   outcome.Failure.Err.Error(),
		})
		metrics.DocumentsFailed.WithLabelValues(string(outcome.Failure.Stage)).Inc()
		o.logger.Warn("item processing failed",
			zap.String("url", rec.DetailURL),
			zap.String("stage", string(outcome.Failure.Stage)),
			zap.Error(outcome.Failure.Err),
		)
	case outcome.Duplicate:
		state.skipped()
		metrics.DocumentsSkipped.Inc()
	default:
		if err := o.persistDocument(ctx, outcome.Document); err != nil {
			state.failed(regwatch.JobError{
				Timestamp: o.clock.Now(),
				Stage:     string(regwatch.StagePersist),
				URL:       rec.DetailURL,
				Message:   err.Error(),
			})
			metrics.DocumentsFailed.WithLabelValues(string(regwatch.StagePersist)).Inc()
			return
		}
		state.processed()
		metrics.DocumentsProcessed.Inc()
	}
}

func (o *Orchestrator) persistDocument(ctx context.Context, doc *regwatch.RegulationDocument) error {
	id, err := o.regs.Upsert(ctx, *doc)
	if err != nil {
		return fmt.Errorf("upsert regulation: %w", err)
	}
	if o.publisher == nil || o.cfg.Topic == "" {
		return nil
	}
	payload := map[string]any{
		"regulation_id": id,
		"natural_key":   doc.NaturalKey(),
		"jenis":         doc.Jenis,
		"nomor":         doc.Nomor,
		"tahun":         doc.Tahun,
		"content_hash":  doc.ContentHash,
		"pdf_uri":       doc.PDFBlobURI,
		"txt_uri":       doc.TextBlobURI,
		"timestamp":     o.clock.Now().Format(time.RFC3339),
	}
	if _, err := o.publisher.Publish(ctx, o.cfg.Topic, payload); err != nil {
		// The row is durable; a lost event is recoverable downstream.
		o.logger.Warn("publish document event failed",
			zap.String("natural_key", doc.NaturalKey()), zap.Error(err))
	}
	return nil
}

// checkpoint writes aggregate progress after each page so crash recovery
// re-does at most one page of work.
func (o *Orchestrator) checkpoint(ctx context.Context, jobID string, state *runState) error {
	counters, errLog := state.snapshot()
	_, err := o.jobs.Update(ctx, jobID, func(j *regwatch.CrawlJob) error {
		if j.Status.Terminal() {
			return regwatch.ErrJobTerminal
		}
		j.Counters = counters
		j.ErrorLog = errLog
		return nil
	})
	return err
}

func (o *Orchestrator) finalize(
	ctx context.Context,
	jobID string,
	status regwatch.JobStatus,
	state *runState,
) error {
	now := o.clock.Now()
	counters, errLog := state.snapshot()
	_, err := o.jobs.Update(ctx, jobID, func(j *regwatch.CrawlJob) error {
		if j.Status.Terminal() {
			return regwatch.ErrJobTerminal
		}
		j.Status = status
		j.Counters = counters
		j.ErrorLog = errLog
		j.FinishedAt = &now
		return nil
	})
	if errors.Is(err, regwatch.ErrJobTerminal) {
		return nil
	}
	if err != nil {
		o.logger.Error("final job update failed",
			zap.String("job_id", jobID), zap.Error(err))
		return fmt.Errorf("finalize job %s: %w", jobID, err)
	}
	metrics.JobsCompleted.WithLabelValues(string(status)).Inc()
	o.logger.Info("crawl job finished",
		zap.String("job_id", jobID),
		zap.String("status", string(status)),
		zap.Int("items_found", counters.ItemsFound),
		zap.Int("items_processed", counters.ItemsProcessed),
		zap.Int("items_skipped", counters.ItemsSkipped),
		zap.Int("items_failed", counters.ItemsFailed),
	)
	return nil
}

func (o *Orchestrator) registerCancel(jobID string, cancel context.CancelFunc) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.cancels[jobID] = cancel
}

func (o *Orchestrator) unregisterCancel(jobID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.cancels, jobID)
}

// runState is the only shared mutable state inside one job execution. All
// counter updates go through its mutex.
type runState struct {
	mu     sync.Mutex
	c      regwatch.JobCounters
	errLog []regwatch.JobError
}

func newRunState() *runState {
	return &runState{}
}

func (s *runState) found() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.c.ItemsFound++
}

func (s *runState) processed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.c.ItemsProcessed++
}

func (s *runState) skipped() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.c.ItemsSkipped++
}

func (s *runState) failed(e regwatch.JobError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.c.ItemsFailed++
	s.errLog = append(s.errLog, e)
}

func (s *runState) appendError(e regwatch.JobError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errLog = append(s.errLog, e)
}

func (s *runState) counters() regwatch.JobCounters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.c
}

func (s *runState) snapshot() (regwatch.JobCounters, []regwatch.JobError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	errLog := make([]regwatch.JobError, len(s.errLog))
	copy(errLog, s.errLog)
	return s.c, errLog
}
