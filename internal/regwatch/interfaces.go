package regwatch

import (
	"context"
	"time"
)

// ListingFetcher returns one page of candidate records from the registry
// search endpoint. Re-fetching the same cursor with the same filters must
// return the same records for a fixed upstream state.
type ListingFetcher interface {
	FetchPage(ctx context.Context, filters SearchFilters, cursor Cursor) (ListingPage, error)
}

// SearchFilters narrows the registry search.
type SearchFilters struct {
	Years    []int
	JenisIDs []int
}

// DocumentFetcher retrieves detail pages and PDF artifacts for one candidate.
type DocumentFetcher interface {
	FetchDetail(ctx context.Context, detailURL string) (RegulationMetadata, error)
	DownloadPDF(ctx context.Context, pdfURL string) ([]byte, error)
}

// Converter extracts text from PDF bytes. Failure is non-retryable: a
// malformed PDF will not convert on a second attempt.
type Converter interface {
	Convert(ctx context.Context, pdf []byte) (string, error)
}

// DedupChecker answers whether a regulation already exists in the persisted
// store. Safe for concurrent calls with distinct keys; no side effects.
type DedupChecker interface {
	Exists(ctx context.Context, naturalKey string) (bool, error)
	ExistsContent(ctx context.Context, contentHash string) (bool, error)
}

// DocumentProcessor runs the per-item pipeline. Failures are returned as
// Outcome values, never as errors, so one bad item cannot abort a batch.
type DocumentProcessor interface {
	Process(ctx context.Context, candidate CandidateRecord) Outcome
}

// JobStore persists crawl job state. Update is the only mutation path after
// creation and must apply the mutator atomically.
type JobStore interface {
	Create(ctx context.Context, job CrawlJob) error
	Get(ctx context.Context, jobID string) (CrawlJob, error)
	List(ctx context.Context, page, limit int) ([]CrawlJob, error)
	Update(ctx context.Context, jobID string, mutate func(*CrawlJob) error) (CrawlJob, error)
}

// RegulationStore persists processed regulations, keyed by natural key.
type RegulationStore interface {
	Upsert(ctx context.Context, doc RegulationDocument) (string, error)
	Exists(ctx context.Context, naturalKey string) (bool, error)
	ExistsContent(ctx context.Context, contentHash string) (bool, error)
}

// BlobStore writes raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// Publisher pushes document-persisted events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// RetryPolicy decides whether and when to retry a failed operation.
type RetryPolicy interface {
	ShouldRetry(err error, attempt int) bool
	Backoff(attempt int) time.Duration
}

// Hasher computes digests for content-level deduplication.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces job IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
