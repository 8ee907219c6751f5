// Package metrics exposes Prometheus collectors for the crawl pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SearchPagesFetched tracks listing pages fetched from the registry.
	SearchPagesFetched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "regcrawler_search_pages_fetched_total",
		Help: "The total number of search result pages fetched.",
	})
	// DocumentsProcessed tracks regulations fully processed and persisted.
	DocumentsProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "regcrawler_documents_processed_total",
		Help: "The total number of regulations processed and persisted.",
	})
	// DocumentsSkipped tracks candidates skipped as duplicates.
	DocumentsSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "regcrawler_documents_skipped_total",
		Help: "The total number of candidates skipped as already persisted.",
	})
	// DocumentsFailed tracks per-item pipeline failures partitioned by stage.
	DocumentsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "regcrawler_documents_failed_total",
		Help: "The total number of item failures partitioned by pipeline stage.",
	}, []string{"stage"})
	// JobsCompleted tracks finished jobs partitioned by terminal status.
	JobsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "regcrawler_jobs_completed_total",
		Help: "Total crawl jobs finished partitioned by result.",
	}, []string{"result"})
	// JobsRunning tracks the number of currently running crawl jobs.
	JobsRunning = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "regcrawler_jobs_running",
		Help: "Current number of running crawl jobs.",
	})
)
