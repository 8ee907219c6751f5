// Package processor implements the per-item document pipeline: download,
// convert, hash, upload, and metadata assembly.
package processor

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/regwatch-id/bpk-crawler/internal/regwatch"
)

// Content types for uploaded artifacts.
const (
	pdfContentType  = "application/pdf"
	textContentType = "text/markdown"
)

var unsafePathRE = regexp.MustCompile(`[^0-9a-zA-Z_-]+`)

// Config controls artifact placement.
type Config struct {
	BlobPrefix string
}

// Processor runs the pipeline for a single candidate. It holds no mutable
// state, so one instance serves all workers of a job concurrently.
type Processor struct {
	docs   regwatch.DocumentFetcher
	conv   regwatch.Converter
	dedup  regwatch.DedupChecker
	blobs  regwatch.BlobStore
	hasher regwatch.Hasher
	retry  regwatch.RetryPolicy
	cfg    Config
	logger *zap.Logger
}

// New constructs a Processor.
func New(
	docs regwatch.DocumentFetcher,
	conv regwatch.Converter,
	dedup regwatch.DedupChecker,
	blobs regwatch.BlobStore,
	hasher regwatch.Hasher,
	retry regwatch.RetryPolicy,
	cfg Config,
	logger *zap.Logger,
) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if retry == nil {
		retry = regwatch.NewExponentialRetryPolicy()
	}
	return &Processor{
		docs:   docs,
		conv:   conv,
		dedup:  dedup,
		blobs:  blobs,
		hasher: hasher,
		retry:  retry,
		cfg:    cfg,
		logger: logger,
	}
}

// Process runs all pipeline stages for one candidate. Failures come back as
// stage-tagged Outcome values, never as errors, so the orchestrator can keep
// going with the rest of the page.
func (p *Processor) Process(ctx context.Context, candidate regwatch.CandidateRecord) regwatch.Outcome {
	out := regwatch.Outcome{Candidate: candidate}

	var meta regwatch.RegulationMetadata
	err := p.withRetry(ctx, func() error {
		var ferr error
		meta, ferr = p.docs.FetchDetail(ctx, candidate.DetailURL)
		return ferr
	})
	if err != nil {
		out.Failure = regwatch.NewStageError(regwatch.StageDownload, err)
		return out
	}
	if !meta.Complete() {
		out.Failure = regwatch.NewStageError(regwatch.StageDownload,
			errors.New("missing required fields (jenis, nomor, or tahun)"))
		return out
	}
	if meta.PDFURL == "" {
		out.Failure = regwatch.NewStageError(regwatch.StageDownload,
			errors.New("no PDF URL found"))
		return out
	}

	var pdfBytes []byte
	err = p.withRetry(ctx, func() error {
		var derr error
		pdfBytes, derr = p.docs.DownloadPDF(ctx, meta.PDFURL)
		return derr
	})
	if err != nil {
		out.Failure = regwatch.NewStageError(regwatch.StageDownload, err)
		return out
	}

	text, err := p.conv.Convert(ctx, pdfBytes)
	if err != nil {
		out.Failure = regwatch.NewStageError(regwatch.StageConvert, err)
		return out
	}

	hash, err := p.hasher.Hash([]byte(text))
	if err != nil {
		out.Failure = regwatch.NewStageError(regwatch.StageConvert, fmt.Errorf("hash text: %w", err))
		return out
	}

	// Content-level dedup runs before the uploads so a republished document
	// under a new key never produces duplicate storage artifacts.
	dup, err := p.dedup.ExistsContent(ctx, hash)
	if err != nil {
		p.logger.Warn("content dedup check failed; treating as new",
			zap.String("url", candidate.DetailURL), zap.Error(err))
	} else if dup {
		out.Duplicate = true
		return out
	}

	pdfPath, textPath := p.buildPaths(meta)
	doc := regwatch.RegulationDocument{
		RegulationMetadata: meta,
		Text:               text,
		ContentHash:        hash,
		PDFStoragePath:     pdfPath,
		TextStoragePath:    textPath,
	}

	err = p.withRetry(ctx, func() error {
		uri, perr := p.blobs.PutObject(ctx, pdfPath, pdfContentType, pdfBytes)
		if perr != nil {
			return fmt.Errorf("upload pdf: %w", perr)
		}
		doc.PDFBlobURI = uri
		return nil
	})
	if err != nil {
		out.Failure = regwatch.NewStageError(regwatch.StageUpload, err)
		return out
	}
	err = p.withRetry(ctx, func() error {
		uri, perr := p.blobs.PutObject(ctx, textPath, textContentType, []byte(text))
		if perr != nil {
			return fmt.Errorf("upload text: %w", perr)
		}
		doc.TextBlobURI = uri
		return nil
	})
	if err != nil {
		out.Failure = regwatch.NewStageError(regwatch.StageUpload, err)
		return out
	}

	out.Document = &doc
	return out
}

// buildPaths places artifacts at {prefix/}JENIS/TAHUN/NOMOR.(pdf|md).
func (p *Processor) buildPaths(meta regwatch.RegulationMetadata) (pdfPath, textPath string) {
	nomorSafe := unsafePathRE.ReplaceAllString(meta.Nomor, "_")
	base := fmt.Sprintf("%s/%d/%s", strings.ToUpper(meta.Jenis), meta.Tahun, nomorSafe)
	if prefix := strings.Trim(p.cfg.BlobPrefix, "/"); prefix != "" {
		base = prefix + "/" + base
	}
	return base + ".pdf", base + ".md"
}

func (p *Processor) withRetry(ctx context.Context, op func() error) error {
	attempt := 0
	for {
		err := op()
		if err == nil {
			return nil
		}
		if !p.retry.ShouldRetry(err, attempt) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.retry.Backoff(attempt)):
		}
		attempt++
	}
}
