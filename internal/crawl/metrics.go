package crawl

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TotalProcessed tracks the number of sequence positions visited.
	TotalProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "thingsweep_things_processed_total",
		Help: "The total number of thing ids processed during sweeps.",
	})
	// TotalIngested tracks the number of things persisted to the store.
	TotalIngested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "thingsweep_things_ingested_total",
		Help: "The total number of things normalized and persisted.",
	})
	// TotalSkipped tracks things skipped before ingestion, by reason.
	TotalSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "thingsweep_things_skipped_total",
		Help: "The total number of things skipped, labeled by reason.",
	}, []string{"reason"})
)
