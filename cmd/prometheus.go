package cmd

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	log "github.com/sirupsen/logrus"
)

// SelectionMetrics holds the Prometheus metrics for a selection run
type SelectionMetrics struct {
	SelectedCount prometheus.Gauge
	Budget        prometheus.Gauge
	TookSeconds   prometheus.Gauge
}

// NewSelectionMetrics creates a new set of selection metrics
func NewSelectionMetrics(registry *prometheus.Registry, labels prometheus.Labels) *SelectionMetrics {
	metrics := &SelectionMetrics{
		SelectedCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "trust_selection_selected_count",
			Help:        "Number of unlabeled points selected",
			ConstLabels: labels,
		}),
		Budget: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "trust_selection_budget",
			Help:        "Selection budget",
			ConstLabels: labels,
		}),
		TookSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "trust_selection_duration_seconds",
			Help:        "Duration of the selection run in seconds",
			ConstLabels: labels,
		}),
	}

	registry.MustRegister(
		metrics.SelectedCount,
		metrics.Budget,
		metrics.TookSeconds,
	)

	return metrics
}

// PushMetricsToPrometheus pushes the selection results to a Prometheus pushgateway
func PushMetricsToPrometheus(cfg *Config, result *SelectionResults) error {
	if !cfg.PrometheusConfig.Enabled || cfg.PrometheusConfig.PushURL == "" {
		return nil
	}

	registry := prometheus.NewRegistry()

	// Create labels from the selection result
	labels := prometheus.Labels{
		"function":  result.Function,
		"optimizer": result.Optimizer,
		"metric":    result.Metric,
		"dataset":   result.Dataset,
		"run_id":    result.RunID,
	}

	// Add custom labels from config
	if cfg.LabelMap != nil {
		for key, value := range cfg.LabelMap {
			labels[key] = value
		}
	}

	// Create metrics
	metrics := NewSelectionMetrics(registry, labels)

	// Set metric values
	metrics.SelectedCount.Set(float64(result.Selected))
	metrics.Budget.Set(float64(result.Budget))
	metrics.TookSeconds.Set(float64(result.Took) / 1e9)

	// Create a pusher
	pusher := push.New(cfg.PrometheusConfig.PushURL, cfg.PrometheusConfig.JobName).
		Gatherer(registry)

	// Push metrics
	if err := pusher.Push(); err != nil {
		log.WithError(err).Error("Failed to push metrics to Prometheus")
		return err
	}

	log.WithFields(log.Fields{
		"url":    cfg.PrometheusConfig.PushURL,
		"job":    cfg.PrometheusConfig.JobName,
		"run_id": result.RunID,
	}).Info("Successfully pushed metrics to Prometheus")

	return nil
}
