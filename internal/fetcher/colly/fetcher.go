// Package collyfetcher implements the registry fetchers using gocolly.
package collyfetcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/regwatch-id/bpk-crawler/internal/bpk"
	"github.com/regwatch-id/bpk-crawler/internal/metrics"
	"github.com/regwatch-id/bpk-crawler/internal/regwatch"
)

// Config controls collector behavior.
type Config struct {
	BaseURL       string
	UserAgent     string
	Timeout       time.Duration
	PDFTimeout    time.Duration
	Delay         time.Duration
	RespectRobots bool
}

// Fetcher implements regwatch.ListingFetcher and regwatch.DocumentFetcher
// over Colly collectors. One collector clone serves each request so response
// callbacks never accumulate across fetches.
type Fetcher struct {
	cfg    Config
	base   *colly.Collector
	logger *zap.Logger
}

// New builds a Fetcher.
func New(cfg Config, logger *zap.Logger) *Fetcher {
	if cfg.BaseURL == "" {
		cfg.BaseURL = bpk.BaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 45 * time.Second
	}
	if cfg.PDFTimeout == 0 {
		cfg.PDFTimeout = 90 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := colly.NewCollector(colly.Async(false))
	c.IgnoreRobotsTxt = !cfg.RespectRobots
	c.AllowURLRevisit = true
	return &Fetcher{cfg: cfg, base: c, logger: logger}
}

// FetchPage fetches one search-results page. Invalid filters are fatal;
// network and upstream 5xx failures are transient and may be retried against
// the same cursor.
func (f *Fetcher) FetchPage(
	ctx context.Context,
	filters regwatch.SearchFilters,
	cursor regwatch.Cursor,
) (regwatch.ListingPage, error) {
	if err := validateFilters(filters); err != nil {
		return regwatch.ListingPage{}, regwatch.FatalFetch(err)
	}
	if cursor < 1 {
		cursor = 1
	}
	pageURL := bpk.BuildSearchURL(f.cfg.BaseURL, filters, int(cursor))

	body, status, err := f.get(ctx, pageURL, f.cfg.Timeout)
	if err != nil {
		return regwatch.ListingPage{}, classifyFetchErr(status, err)
	}
	metrics.SearchPagesFetched.Inc()

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return regwatch.ListingPage{}, regwatch.TransientFetch(fmt.Errorf("parse search page: %w", err))
	}

	records := bpk.ExtractCandidates(doc, pageURL)
	page := regwatch.ListingPage{Records: records}
	if len(records) > 0 {
		next := cursor + 1
		page.Next = &next
	}
	f.logger.Debug("search page fetched",
		zap.Int("page", int(cursor)),
		zap.Int("candidates", len(records)),
	)
	return page, nil
}

// FetchDetail fetches and parses one regulation detail page.
func (f *Fetcher) FetchDetail(ctx context.Context, detailURL string) (regwatch.RegulationMetadata, error) {
	body, _, err := f.get(ctx, detailURL, f.cfg.Timeout)
	if err != nil {
		return regwatch.RegulationMetadata{}, fmt.Errorf("fetch detail page: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return regwatch.RegulationMetadata{}, fmt.Errorf("parse detail page: %w", err)
	}
	return bpk.ParseDetailPage(doc, detailURL), nil
}

// DownloadPDF downloads the regulation PDF and returns its bytes.
func (f *Fetcher) DownloadPDF(ctx context.Context, pdfURL string) ([]byte, error) {
	if pdfURL == "" {
		return nil, errors.New("no PDF URL provided")
	}
	body, _, err := f.get(ctx, pdfURL, f.cfg.PDFTimeout)
	if err != nil {
		return nil, fmt.Errorf("download pdf: %w", err)
	}
	return body, nil
}

func (f *Fetcher) get(ctx context.Context, rawURL string, timeout time.Duration) ([]byte, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	c := f.base.Clone()
	if f.cfg.UserAgent != "" {
		c.UserAgent = f.cfg.UserAgent
	}
	c.SetRequestTimeout(timeout)
	if f.cfg.Delay > 0 {
		if err := c.Limit(&colly.LimitRule{DomainGlob: "*", Delay: f.cfg.Delay}); err != nil {
			f.logger.Warn("set limit rule failed", zap.Error(err))
		}
	}

	var (
		body     []byte
		status   int
		fetchErr error
	)
	c.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		body = append([]byte(nil), r.Body...)
	})
	c.OnError(func(r *colly.Response, err error) {
		if r != nil {
			status = r.StatusCode
		}
		fetchErr = err
	})

	if err := c.Visit(rawURL); err != nil && fetchErr == nil {
		fetchErr = err
	}
	c.Wait()

	if fetchErr != nil {
		return nil, status, fetchErr
	}
	if status != http.StatusOK {
		return nil, status, fmt.Errorf("unexpected status %d for %s", status, rawURL)
	}
	return body, status, nil
}

func validateFilters(filters regwatch.SearchFilters) error {
	for _, y := range filters.Years {
		if y <= 0 {
			return fmt.Errorf("invalid year %d", y)
		}
	}
	for _, j := range filters.JenisIDs {
		if j <= 0 {
			return fmt.Errorf("invalid jenis id %d", j)
		}
	}
	return nil
}

// classifyFetchErr splits listing failures into the retryable and fatal
// halves of the taxonomy. Server-side and network failures may clear up on
// retry; a 4xx means the request itself is wrong.
func classifyFetchErr(status int, err error) error {
	if status >= 400 && status < 500 && status != http.StatusTooManyRequests {
		return regwatch.FatalFetch(err)
	}
	return regwatch.TransientFetch(err)
}
