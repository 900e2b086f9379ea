package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics aggregates the pipeline's Prometheus instruments. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	extractions     *prometheus.CounterVec
	detectionConf   prometheus.Histogram
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	assistOverrides prometheus.Counter
	fallbacks       prometheus.Counter
}

// NewMetrics registers the pipeline instruments on reg. Pass
// prometheus.DefaultRegisterer for the global registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		extractions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fatura",
			Name:      "extractions_total",
			Help:      "Completed extractions by bank and parser provenance.",
		}, []string{"bank", "provenance"}),
		detectionConf: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "fatura",
			Name:      "detection_confidence",
			Help:      "Distribution of bank detection confidence scores.",
			Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
		}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fatura",
			Name:      "cache_hits_total",
			Help:      "Detections served from the extraction cache.",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fatura",
			Name:      "cache_misses_total",
			Help:      "Detections computed because the cache had no entry.",
		}),
		assistOverrides: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fatura",
			Name:      "assist_overrides_total",
			Help:      "Detections replaced by a higher-confidence model prediction.",
		}),
		fallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fatura",
			Name:      "generic_fallbacks_total",
			Help:      "Extractions that fell back to the generic parser.",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.extractions, m.detectionConf, m.cacheHits, m.cacheMisses,
			m.assistOverrides, m.fallbacks)
	}
	return m
}

func (m *Metrics) observeExtraction(bank, provenance string, fallback bool) {
	if m == nil {
		return
	}
	if bank == "" {
		bank = "unknown"
	}
	m.extractions.WithLabelValues(bank, provenance).Inc()
	if fallback {
		m.fallbacks.Inc()
	}
}

func (m *Metrics) observeDetection(confidence float64, fromCache bool) {
	if m == nil {
		return
	}
	m.detectionConf.Observe(confidence)
	if fromCache {
		m.cacheHits.Inc()
	} else {
		m.cacheMisses.Inc()
	}
}

func (m *Metrics) observeOverride() {
	if m == nil {
		return
	}
	m.assistOverrides.Inc()
}
