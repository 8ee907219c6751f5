// Package regwatch defines core types shared across subsystems.
package regwatch

import (
	"fmt"
	"strings"
	"time"
)

// JobStatus represents the lifecycle state of a crawl job.
type JobStatus string

// Job status values persisted in the job store.
const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// Terminal reports whether no further transition may occur from the status.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	default:
		return false
	}
}

// CrawlParameters captures per-job configuration knobs requested by the client.
type CrawlParameters struct {
	MaxItems  int     `json:"max_items" mapstructure:"max_items"`
	Years     []int   `json:"years" mapstructure:"years"`
	JenisIDs  []int   `json:"jenis_ids" mapstructure:"jenis_ids"`
	CreatedBy string  `json:"created_by" mapstructure:"created_by"`
	Rate      float64 `json:"rate,omitempty" mapstructure:"rate"`
}

// Cursor identifies one search-results page. The registry paginates with
// 1-based page numbers; a nil *Cursor signals exhaustion.
type Cursor int

// CandidateRecord is one listing entry scraped from a search page. It is
// consumed and discarded within a single pipeline pass, never persisted.
type CandidateRecord struct {
	DetailURL string
	Jenis     string
	Nomor     string
	Tahun     int
	Judul     string
}

// NaturalKey returns the stable duplicate-detection identifier for the
// candidate: jenis/tahun/nomor when all three are known, otherwise the
// detail URL.
func (c CandidateRecord) NaturalKey() string {
	if c.Jenis != "" && c.Nomor != "" && c.Tahun != 0 {
		return fmt.Sprintf("%s/%d/%s", strings.ToUpper(c.Jenis), c.Tahun, c.Nomor)
	}
	return c.DetailURL
}

// ListingPage is one page of search results.
type ListingPage struct {
	Records []CandidateRecord
	// Next is nil once the listing is exhausted. A page whose records are
	// all duplicates still carries a next cursor.
	Next *Cursor
}

// Relation types linking regulations on the registry.
const (
	RelationMencabut    = "MENCABUT"
	RelationDicabutOleh = "DICABUT_OLEH"
	RelationMengubah    = "MENGUBAH"
	RelationDiubahOleh  = "DIUBAH_OLEH"
)

// Relation is a cross-reference between regulations.
type Relation struct {
	Type string `json:"type"`
	Text string `json:"text"`
	URL  string `json:"url,omitempty"`
}

// RegulationMetadata holds the fields scraped from a detail page.
type RegulationMetadata struct {
	DetailURL        string     `json:"bpk_detail_url"`
	Jenis            string     `json:"jenis"`
	Nomor            string     `json:"nomor"`
	Tahun            int        `json:"tahun"`
	Judul            string     `json:"judul"`
	Tentang          string     `json:"tentang,omitempty"`
	StatusRaw        string     `json:"status_raw,omitempty"`
	Status           string     `json:"status,omitempty"`
	Issuer           string     `json:"issuer,omitempty"`
	PenetapanDate    string     `json:"penetapan_date,omitempty"`
	PengundanganDate string     `json:"pengundangan_date,omitempty"`
	BerlakuDate      string     `json:"berlaku_date,omitempty"`
	Lokasi           string     `json:"lokasi,omitempty"`
	Bidang           string     `json:"bidang,omitempty"`
	LN               string     `json:"ln,omitempty"`
	TLN              string     `json:"tln,omitempty"`
	PDFURL           string     `json:"pdf_url,omitempty"`
	Relations        []Relation `json:"relations,omitempty"`
}

// Complete reports whether the metadata carries the fields that form the
// natural key.
func (m RegulationMetadata) Complete() bool {
	return m.Jenis != "" && m.Nomor != "" && m.Tahun != 0
}

// NaturalKey mirrors CandidateRecord.NaturalKey for parsed metadata.
func (m RegulationMetadata) NaturalKey() string {
	if m.Complete() {
		return fmt.Sprintf("%s/%d/%s", strings.ToUpper(m.Jenis), m.Tahun, m.Nomor)
	}
	return m.DetailURL
}

// RegulationDocument is a fully processed regulation: scraped metadata plus
// extracted text and storage artifact references. Ownership transfers to the
// persistence layer once handed over; the pipeline does not mutate it after.
type RegulationDocument struct {
	RegulationMetadata
	Text            string `json:"-"`
	ContentHash     string `json:"content_hash"`
	PDFStoragePath  string `json:"pdf_storage_path"`
	TextStoragePath string `json:"txt_storage_path"`
	PDFBlobURI      string `json:"pdf_blob_uri,omitempty"`
	TextBlobURI     string `json:"txt_blob_uri,omitempty"`
}

// JobCounters tracks per-job progress stats.
type JobCounters struct {
	ItemsFound     int `json:"items_found"`
	ItemsProcessed int `json:"items_processed"`
	ItemsSkipped   int `json:"items_skipped_duplicate"`
	ItemsFailed    int `json:"items_failed"`
}

// JobError is one entry in a job's error log.
type JobError struct {
	Timestamp time.Time `json:"timestamp"`
	Stage     string    `json:"stage,omitempty"`
	URL       string    `json:"url,omitempty"`
	Message   string    `json:"message"`
}

// CrawlJob is the metadata persisted for each submitted crawl request.
// It is a single-writer aggregate: all mutation after creation goes through
// JobStore.Update.
type CrawlJob struct {
	ID         string          `json:"id"`
	Status     JobStatus       `json:"status"`
	Parameters CrawlParameters `json:"parameters"`
	Counters   JobCounters     `json:"counters"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
	StartedAt  *time.Time      `json:"started_at,omitempty"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
	ErrorLog   []JobError      `json:"error_log,omitempty"`
}

// Outcome is the per-item result of the document pipeline. Exactly one of
// Document, Duplicate, or Failure is meaningful.
type Outcome struct {
	Candidate CandidateRecord
	Document  *RegulationDocument
	// Duplicate is set when the extracted content hash matched an already
	// persisted document under a different natural key.
	Duplicate bool
	Failure   *StageError
}
