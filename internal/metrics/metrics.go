package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "ronin_deployer"

// Metrics counts pipeline outcomes of a single run. A nil *Metrics records nothing.
type Metrics struct {
	registry      *prometheus.Registry
	steps         *prometheus.CounterVec
	deployments   *prometheus.CounterVec
	verifications *prometheus.CounterVec
}

func New(network string) *Metrics {
	labels := prometheus.Labels{"network": network}

	m := &Metrics{
		registry: prometheus.NewRegistry(),
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "steps_total",
			Help:        "Pipeline steps by final status.",
			ConstLabels: labels,
		}, []string{"status"}),
		deployments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "deployments_total",
			Help:        "Deploy-or-fetch calls by outcome.",
			ConstLabels: labels,
		}, []string{"outcome"}),
		verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "address_verifications_total",
			Help:        "Address verifications by outcome.",
			ConstLabels: labels,
		}, []string{"outcome"}),
	}

	m.registry.MustRegister(m.steps, m.deployments, m.verifications)

	return m
}

func (m *Metrics) StepFinished(status string) {
	if m == nil {
		return
	}
	m.steps.WithLabelValues(status).Inc()
}

func (m *Metrics) Deployment(outcome string) {
	if m == nil {
		return
	}
	m.deployments.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Verification(outcome string) {
	if m == nil {
		return
	}
	m.verifications.WithLabelValues(outcome).Inc()
}


// WriteTextfile dumps the counters in the node_exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}
