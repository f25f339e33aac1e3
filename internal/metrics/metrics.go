// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Record sources.
const (
	SourceManual      = "manual"
	SourceInstallment = "installment"
	SourceImport      = "import"
	SourceRecurring   = "recurring"
)

// CSV row outcomes.
const (
	RowAccepted  = "accepted"
	RowDuplicate = "duplicate"
	RowSkipped   = "skipped"
)

var RecordsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "financas",
	Subsystem: "ledger",
	Name:      "records_created_total",
	Help:      "Ledger records written, by source.",
}, []string{"source"})

var RecordsDeleted = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "financas",
	Subsystem: "ledger",
	Name:      "records_deleted_total",
	Help:      "Ledger records removed.",
})

var BulkFailures = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "financas",
	Subsystem: "ledger",
	Name:      "bulk_item_failures_total",
	Help:      "Per-id failures inside bulk operations, by operation.",
}, []string{"op"})

var CSVRows = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "financas",
	Subsystem: "importer",
	Name:      "rows_total",
	Help:      "Statement rows seen by the importer, by outcome.",
}, []string{"outcome"})

var RecurringMaterialized = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "financas",
	Subsystem: "recurring",
	Name:      "instances_materialized_total",
	Help:      "Recurring instances created by the materializer.",
})

var RecurringFailures = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "financas",
	Subsystem: "recurring",
	Name:      "template_failures_total",
	Help:      "Templates whose instance could not be created.",
})

var EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "financas",
	Subsystem: "events",
	Name:      "published_total",
	Help:      "Ledger events handed to the broker, by result.",
}, []string{"result"})

var RateLimited = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "financas",
	Subsystem: "http",
	Name:      "rate_limited_total",
	Help:      "Write requests rejected by the per-client rate limiter.",
})
