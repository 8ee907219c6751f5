package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/regwatch-id/bpk-crawler/internal/clock/system"
	"github.com/regwatch-id/bpk-crawler/internal/config"
	uuidgen "github.com/regwatch-id/bpk-crawler/internal/id/uuid"
	_ "github.com/regwatch-id/bpk-crawler/internal/metrics"
	"github.com/regwatch-id/bpk-crawler/internal/regwatch"
	"github.com/regwatch-id/bpk-crawler/internal/storage/memory"
)

type fakeRunner struct {
	mu        sync.Mutex
	launched  []string
	cancelled []string
	cancelErr error
}

func (f *fakeRunner) Launch(jobID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.launched = append(f.launched, jobID)
}

func (f *fakeRunner) Cancel(_ context.Context, jobID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cancelErr != nil {
		return f.cancelErr
	}
	f.cancelled = append(f.cancelled, jobID)
	return nil
}

func (f *fakeRunner) launchedJobs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.launched...)
}

func testConfig() config.Config {
	var cfg config.Config
	cfg.Server.Port = 8080
	cfg.Server.TimeoutSeconds = 5
	cfg.Crawler.MaxItemsDefault = 50
	cfg.Crawler.YearsDefault = []int{2025, 2024, 2023}
	cfg.Crawler.JenisIDsDefault = []int{8, 10, 11, 19}
	return cfg
}

func newTestServer(t *testing.T, cfg config.Config) (*Server, *memory.JobStore, *fakeRunner) {
	t.Helper()
	jobs := memory.NewJobStore()
	runner := &fakeRunner{}
	srv := NewServer(jobs, runner, uuidgen.NewGenerator(), system.New(), cfg, nil)
	return srv, jobs, runner
}

func doJSON(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestSubmitCrawlAcceptsAndLaunches(t *testing.T) {
	t.Parallel()

	srv, jobs, runner := newTestServer(t, testConfig())
	rec := doJSON(t, srv, http.MethodPost, "/api/crawl", map[string]any{
		"created_by": "scheduler",
		"max_items":  10,
		"years":      []int{2024},
	})
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp["job_id"])
	require.Equal(t, "pending", resp["status"])

	job, err := jobs.Get(context.Background(), resp["job_id"])
	require.NoError(t, err)
	require.Equal(t, regwatch.JobStatusPending, job.Status)
	require.Equal(t, 10, job.Parameters.MaxItems)
	require.Equal(t, []int{2024}, job.Parameters.Years)
	require.Equal(t, []int{8, 10, 11, 19}, job.Parameters.JenisIDs, "jenis defaults applied")
	require.Equal(t, "scheduler", job.Parameters.CreatedBy)

	require.Equal(t, []string{resp["job_id"]}, runner.launchedJobs())
}

func TestSubmitCrawlAppliesDefaults(t *testing.T) {
	t.Parallel()

	srv, jobs, _ := newTestServer(t, testConfig())
	rec := doJSON(t, srv, http.MethodPost, "/api/crawl", map[string]any{"created_by": "tester"})
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	job, err := jobs.Get(context.Background(), resp["job_id"])
	require.NoError(t, err)
	require.Equal(t, 50, job.Parameters.MaxItems)
	require.Equal(t, []int{2025, 2024, 2023}, job.Parameters.Years)
}

func TestSubmitCrawlValidation(t *testing.T) {
	t.Parallel()

	srv, _, runner := newTestServer(t, testConfig())

	rec := doJSON(t, srv, http.MethodPost, "/api/crawl", map[string]any{})
	require.Equal(t, http.StatusBadRequest, rec.Code, "created_by is required")

	rec = doJSON(t, srv, http.MethodPost, "/api/crawl", map[string]any{
		"created_by": "t", "max_items": 0,
	})
	require.Equal(t, http.StatusBadRequest, rec.Code, "zero max_items is rejected")

	rec = doJSON(t, srv, http.MethodPost, "/api/crawl", map[string]any{
		"created_by": "t", "years": []int{180},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code, "implausible year is rejected")

	rec = doJSON(t, srv, http.MethodPost, "/api/crawl", map[string]any{
		"created_by": "t", "rate": -1.0,
	})
	require.Equal(t, http.StatusBadRequest, rec.Code, "negative rate is rejected")

	req := httptest.NewRequest(http.MethodPost, "/api/crawl", bytes.NewBufferString("{not json"))
	rec2 := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec2, req)
	require.Equal(t, http.StatusBadRequest, rec2.Code)

	require.Empty(t, runner.launchedJobs())
}

func TestGetJob(t *testing.T) {
	t.Parallel()

	srv, jobs, _ := newTestServer(t, testConfig())
	now := time.Now().UTC()
	require.NoError(t, jobs.Create(context.Background(), regwatch.CrawlJob{
		ID: "job-1", Status: regwatch.JobStatusRunning, CreatedAt: now, UpdatedAt: now,
	}))

	rec := doJSON(t, srv, http.MethodGet, "/api/crawl/jobs/job-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var job regwatch.CrawlJob
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
	require.Equal(t, regwatch.JobStatusRunning, job.Status)

	rec = doJSON(t, srv, http.MethodGet, "/api/crawl/jobs/missing", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListJobs(t *testing.T) {
	t.Parallel()

	srv, jobs, _ := newTestServer(t, testConfig())
	base := time.Now().UTC()
	for i, id := range []string{"job-1", "job-2", "job-3"} {
		ts := base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, jobs.Create(context.Background(), regwatch.CrawlJob{
			ID: id, Status: regwatch.JobStatusCompleted, CreatedAt: ts, UpdatedAt: ts,
		}))
	}

	rec := doJSON(t, srv, http.MethodGet, "/api/crawl/jobs?page=1&limit=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Jobs  []regwatch.CrawlJob `json:"jobs"`
		Page  int                 `json:"page"`
		Limit int                 `json:"limit"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Jobs, 2)
	require.Equal(t, "job-3", resp.Jobs[0].ID)
	require.Equal(t, 1, resp.Page)
	require.Equal(t, 2, resp.Limit)
}

func TestCancelJob(t *testing.T) {
	t.Parallel()

	srv, jobs, runner := newTestServer(t, testConfig())
	now := time.Now().UTC()
	require.NoError(t, jobs.Create(context.Background(), regwatch.CrawlJob{
		ID: "job-1", Status: regwatch.JobStatusRunning, CreatedAt: now, UpdatedAt: now,
	}))

	rec := doJSON(t, srv, http.MethodPost, "/api/crawl/jobs/job-1/cancel", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, []string{"job-1"}, runner.cancelled)

	rec = doJSON(t, srv, http.MethodPost, "/api/crawl/jobs/missing/cancel", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	runner.cancelErr = regwatch.ErrJobTerminal
	rec = doJSON(t, srv, http.MethodPost, "/api/crawl/jobs/job-1/cancel", nil)
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestHealthAndMetricsEndpoints(t *testing.T) {
	t.Parallel()

	srv, _, _ := newTestServer(t, testConfig())

	rec := doJSON(t, srv, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = doJSON(t, srv, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "regcrawler_")
}

func TestAPIKeyMiddleware(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Auth.Enabled = true
	cfg.Auth.APIKey = "sekret"
	srv, _, _ := newTestServer(t, cfg)

	rec := doJSON(t, srv, http.MethodGet, "/api/crawl/jobs", nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/crawl/jobs", nil)
	req.Header.Set("X-API-Key", "sekret")
	rec2 := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec2, req)
	require.Equal(t, http.StatusOK, rec2.Code)

	// Health stays open for probes.
	rec = doJSON(t, srv, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}
