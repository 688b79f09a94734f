package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// Workflow metrics
	TransitionsTotal     *prometheus.CounterVec
	TransitionConflicts  *prometheus.CounterVec
	ResourceAcquisitions *prometheus.CounterVec
	ResourceConflicts    prometheus.Counter
	RoutingConflicts     prometheus.Counter

	// Autosave metrics
	SectionSavesAccepted  prometheus.Counter
	SectionSavesDiscarded prometheus.Counter
	PendingDrafts         prometheus.Gauge

	// Alert metrics
	AlertsSent      prometheus.Counter
	AlertsEscalated prometheus.Counter

	// Outbox related metrics
	OutboxEventsProcessed   prometheus.Counter
	OutboxEventsFailed      prometheus.Counter
	OutboxProcessingLatency prometheus.Histogram
	OutboxRetries           *prometheus.CounterVec
}

// New creates and registers all application metrics
func New(namespace string) *Metrics {
	return &Metrics{
		TransitionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "encounter_transitions_total",
			Help:      "Total number of committed encounter status transitions",
		}, []string{"target"}),
		TransitionConflicts: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "encounter_transition_conflicts_total",
			Help:      "Transitions rejected as illegal or stale",
		}, []string{"reason"}),
		ResourceAcquisitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resource_acquisitions_total",
			Help:      "Successful room/bed acquisitions",
		}, []string{"kind"}),
		ResourceConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resource_conflicts_total",
			Help:      "Acquisitions rejected because the resource was held",
		}),
		RoutingConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "routing_conflicts_total",
			Help:      "Route attempts rejected because the encounter was already routed",
		}),
		SectionSavesAccepted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "section_saves_accepted_total",
			Help:      "Clinical section saves accepted",
		}),
		SectionSavesDiscarded: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "section_saves_discarded_total",
			Help:      "Clinical section saves discarded as stale",
		}),
		PendingDrafts: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_drafts",
			Help:      "Drafts waiting in the debounce window",
		}),
		AlertsSent: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_sent_total",
			Help:      "Alerts created",
		}),
		AlertsEscalated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_escalated_total",
			Help:      "Unread alerts escalated by email",
		}),
		OutboxEventsProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_events_processed_total",
			Help:      "Total number of successfully processed outbox events",
		}),
		OutboxEventsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_events_failed_total",
			Help:      "Total number of failed outbox events",
		}),
		OutboxProcessingLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "outbox_processing_latency_seconds",
			Help:      "Time between outbox event creation and publication",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		OutboxRetries: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_retries_total",
			Help:      "Number of outbox publish retries",
		}, []string{"event_type"}),
	}
}
