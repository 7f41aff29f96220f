package api

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the server's Prometheus collectors.
type Metrics struct {
	QueriesTotal      prometheus.Counter
	QueryErrorsTotal  prometheus.Counter
	IngestRunsTotal   *prometheus.CounterVec
	FilesIndexedTotal prometheus.Counter
	FilesFailedTotal  prometheus.Counter
}

// NewMetrics creates and registers the collectors on the given registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		QueriesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "corpusrag_queries_total",
			Help: "Queries served over the API.",
		}),
		QueryErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "corpusrag_query_errors_total",
			Help: "Queries that failed with a service error.",
		}),
		IngestRunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "corpusrag_ingest_runs_total",
			Help: "Ingestion runs triggered over the API, by final status.",
		}, []string{"status"}),
		FilesIndexedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "corpusrag_files_indexed_total",
			Help: "Files indexed across all API-triggered ingestion runs.",
		}),
		FilesFailedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "corpusrag_files_failed_total",
			Help: "Files that failed across all API-triggered ingestion runs.",
		}),
	}
	reg.MustRegister(
		m.QueriesTotal,
		m.QueryErrorsTotal,
		m.IngestRunsTotal,
		m.FilesIndexedTotal,
		m.FilesFailedTotal,
	)
	return m
}
