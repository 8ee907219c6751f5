package processor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	sha256hash "github.com/regwatch-id/bpk-crawler/internal/hash/sha256"
	"github.com/regwatch-id/bpk-crawler/internal/regwatch"
	"github.com/regwatch-id/bpk-crawler/internal/storage/memory"
)

type fakeDocFetcher struct {
	meta       regwatch.RegulationMetadata
	metaErr    error
	pdf        []byte
	pdfErr     error
	detailHits int
	pdfHits    int
}

func (f *fakeDocFetcher) FetchDetail(_ context.Context, _ string) (regwatch.RegulationMetadata, error) {
	f.detailHits++
	return f.meta, f.metaErr
}

func (f *fakeDocFetcher) DownloadPDF(_ context.Context, _ string) ([]byte, error) {
	f.pdfHits++
	return f.pdf, f.pdfErr
}

type fakeConverter struct {
	text string
	err  error
}

func (f *fakeConverter) Convert(_ context.Context, _ []byte) (string, error) {
	return f.text, f.err
}

type fakeDedup struct {
	contentDup bool
	contentErr error
}

func (f *fakeDedup) Exists(_ context.Context, _ string) (bool, error) {
	return false, nil
}

func (f *fakeDedup) ExistsContent(_ context.Context, _ string) (bool, error) {
	return f.contentDup, f.contentErr
}

type failingBlobStore struct{ err error }

func (f *failingBlobStore) PutObject(_ context.Context, _ string, _ string, _ []byte) (string, error) {
	return "", f.err
}

func completeMeta() regwatch.RegulationMetadata {
	return regwatch.RegulationMetadata{
		DetailURL: "https://peraturan.bpk.go.id/Details/1001/uu-no-1-tahun-2024",
		Jenis:     "UU",
		Nomor:     "1",
		Tahun:     2024,
		Judul:     "UU No. 1 Tahun 2024",
		PDFURL:    "https://peraturan.bpk.go.id/Download/1001/uu1.pdf",
	}
}

func candidate() regwatch.CandidateRecord {
	return regwatch.CandidateRecord{
		DetailURL: "https://peraturan.bpk.go.id/Details/1001/uu-no-1-tahun-2024",
		Jenis:     "UU",
		Nomor:     "1",
		Tahun:     2024,
	}
}

// noRetry keeps failure-path tests fast.
type noRetry struct{}

func (noRetry) ShouldRetry(error, int) bool { return false }
func (noRetry) Backoff(int) time.Duration   { return 0 }

func newTestProcessor(docs regwatch.DocumentFetcher, conv regwatch.Converter, dedup regwatch.DedupChecker, blobs regwatch.BlobStore) *Processor {
	return New(docs, conv, dedup, blobs, sha256hash.New(), noRetry{}, Config{}, nil)
}

func TestProcessHappyPath(t *testing.T) {
	t.Parallel()

	docs := &fakeDocFetcher{meta: completeMeta(), pdf: []byte("%PDF")}
	blobs := memory.NewBlobStore()
	p := newTestProcessor(docs, &fakeConverter{text: "# Dokumen Peraturan\n\nisi"}, &fakeDedup{}, blobs)

	out := p.Process(context.Background(), candidate())
	require.Nil(t, out.Failure)
	require.False(t, out.Duplicate)
	require.NotNil(t, out.Document)

	doc := out.Document
	require.Equal(t, "UU/2024/1.pdf", doc.PDFStoragePath)
	require.Equal(t, "UU/2024/1.md", doc.TextStoragePath)
	require.Equal(t, "memory://UU/2024/1.pdf", doc.PDFBlobURI)
	require.Equal(t, "memory://UU/2024/1.md", doc.TextBlobURI)
	require.NotEmpty(t, doc.ContentHash)
	require.Equal(t, 2, blobs.Len())

	pdf, ok := blobs.Get("UU/2024/1.pdf")
	require.True(t, ok)
	require.Equal(t, []byte("%PDF"), pdf)
}

func TestProcessDetailFailure(t *testing.T) {
	t.Parallel()

	docs := &fakeDocFetcher{metaErr: errors.New("detail 503")}
	p := newTestProcessor(docs, &fakeConverter{}, &fakeDedup{}, memory.NewBlobStore())

	out := p.Process(context.Background(), candidate())
	require.NotNil(t, out.Failure)
	require.Equal(t, regwatch.StageDownload, out.Failure.Stage)
	require.Nil(t, out.Document)
}

func TestProcessIncompleteMetadataFails(t *testing.T) {
	t.Parallel()

	meta := completeMeta()
	meta.Nomor = ""
	docs := &fakeDocFetcher{meta: meta}
	p := newTestProcessor(docs, &fakeConverter{}, &fakeDedup{}, memory.NewBlobStore())

	out := p.Process(context.Background(), candidate())
	require.NotNil(t, out.Failure)
	require.Equal(t, regwatch.StageDownload, out.Failure.Stage)
	require.Zero(t, docs.pdfHits)
}

func TestProcessMissingPDFURLFails(t *testing.T) {
	t.Parallel()

	meta := completeMeta()
	meta.PDFURL = ""
	docs := &fakeDocFetcher{meta: meta}
	p := newTestProcessor(docs, &fakeConverter{}, &fakeDedup{}, memory.NewBlobStore())

	out := p.Process(context.Background(), candidate())
	require.NotNil(t, out.Failure)
	require.Equal(t, regwatch.StageDownload, out.Failure.Stage)
}

func TestProcessConvertFailure(t *testing.T) {
	t.Parallel()

	docs := &fakeDocFetcher{meta: completeMeta(), pdf: []byte("%PDF")}
	p := newTestProcessor(docs, &fakeConverter{err: errors.New("bad xref")}, &fakeDedup{}, memory.NewBlobStore())

	out := p.Process(context.Background(), candidate())
	require.NotNil(t, out.Failure)
	require.Equal(t, regwatch.StageConvert, out.Failure.Stage)
}

func TestProcessContentDuplicateSkipsUploads(t *testing.T) {
	t.Parallel()

	docs := &fakeDocFetcher{meta: completeMeta(), pdf: []byte("%PDF")}
	blobs := memory.NewBlobStore()
	p := newTestProcessor(docs, &fakeConverter{text: "isi"}, &fakeDedup{contentDup: true}, blobs)

	out := p.Process(context.Background(), candidate())
	require.Nil(t, out.Failure)
	require.True(t, out.Duplicate)
	require.Nil(t, out.Document)
	require.Zero(t, blobs.Len(), "duplicates must not produce artifacts")
}

func TestProcessDedupCheckErrorTreatsAsNew(t *testing.T) {
	t.Parallel()

	docs := &fakeDocFetcher{meta: completeMeta(), pdf: []byte("%PDF")}
	p := newTestProcessor(docs, &fakeConverter{text: "isi"}, &fakeDedup{contentErr: errors.New("db down")}, memory.NewBlobStore())

	out := p.Process(context.Background(), candidate())
	require.Nil(t, out.Failure)
	require.False(t, out.Duplicate)
	require.NotNil(t, out.Document)
}

func TestProcessUploadFailure(t *testing.T) {
	t.Parallel()

	docs := &fakeDocFetcher{meta: completeMeta(), pdf: []byte("%PDF")}
	p := newTestProcessor(docs, &fakeConverter{text: "isi"}, &fakeDedup{}, &failingBlobStore{err: errors.New("bucket gone")})

	out := p.Process(context.Background(), candidate())
	require.NotNil(t, out.Failure)
	require.Equal(t, regwatch.StageUpload, out.Failure.Stage)
}

func TestBuildPathsSanitizesNomor(t *testing.T) {
	t.Parallel()

	p := New(nil, nil, nil, nil, sha256hash.New(), noRetry{}, Config{BlobPrefix: "regulations/"}, nil)
	meta := completeMeta()
	meta.Jenis = "perda"
	meta.Nomor = "12/B.1"

	pdfPath, textPath := p.buildPaths(meta)
	require.Equal(t, "regulations/PERDA/2024/12_B_1.pdf", pdfPath)
	require.Equal(t, "regulations/PERDA/2024/12_B_1.md", textPath)
}
