// Package metrics holds the Prometheus collectors shared by the CLI, the
// registrars and the HTTP API. Collectors live on a private registry so
// tests can create as many instances as they like.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "gql2sql"

// Outcome label values.
const (
	OK    = "ok"
	Error = "error"
)

type Metrics struct {
	Registry *prometheus.Registry

	// Builds counts schema builds by trigger (cli, reload) and outcome.
	Builds *prometheus.CounterVec
	// Registrations counts registrar calls by flavor, kind and outcome.
	Registrations *prometheus.CounterVec
	// DDL counts applied and skipped DDL phases.
	DDL *prometheus.CounterVec
	// Tables is the table count of the current snapshot.
	Tables prometheus.Gauge
	// Relations is the relation count of the current snapshot.
	Relations prometheus.Gauge
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		Builds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "builds_total",
			Help:      "Schema builds by trigger and outcome.",
		}, []string{"trigger", "outcome"}),
		Registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registrations_total",
			Help:      "Relationship registrations by registrar flavor, kind and outcome.",
		}, []string{"flavor", "kind", "outcome"}),
		DDL: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ddl_phases_total",
			Help:      "DDL phases by result (applied, skipped).",
		}, []string{"result"}),
		Tables: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "snapshot_tables",
			Help:      "Tables in the current schema snapshot.",
		}),
		Relations: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "snapshot_relations",
			Help:      "Canonical relations in the current schema snapshot.",
		}),
	}
	reg.MustRegister(
		m.Builds, m.Registrations, m.DDL, m.Tables, m.Relations,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// Outcome maps an error to its outcome label.
func Outcome(err error) string {
	if err != nil {
		return Error
	}
	return OK
}
