package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ToggleOperations counts like/follow toggle calls by relation and outcome.
	ToggleOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ripple_toggle_operations_total",
		Help: "Total toggle operations by relation (like, follow) and outcome (on, off, rejected)",
	}, []string{"relation", "outcome"})

	// ThumbnailGenerations counts derivative image runs by kind and result.
	ThumbnailGenerations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ripple_thumbnail_generations_total",
		Help: "Total image derivative generations by kind (post, profile) and result (ok, skipped, failed)",
	}, []string{"kind", "result"})

	// NonceRejections counts duplicate form submissions blocked by the guard.
	NonceRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ripple_nonce_rejections_total",
		Help: "Total form submissions rejected for a stale or missing nonce",
	})

	// MetadataFetchFailures counts best-effort Open Graph fetches that came back empty.
	MetadataFetchFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ripple_metadata_fetch_failures_total",
		Help: "Total link metadata fetches that failed and degraded to empty values",
	})
)
