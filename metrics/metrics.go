// Package metrics counts validation and acquisition work. The counters can
// be dumped in the Prometheus text format for a node_exporter textfile
// collector at the end of a run.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "datacheck"

type Collector struct {
	registry *prometheus.Registry

	FilesChecked     *prometheus.CounterVec
	ValidationPasses *prometheus.CounterVec
	Fetches          *prometheus.CounterVec
	BytesDownloaded  prometheus.Counter
	Extractions      *prometheus.CounterVec
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	c := &Collector{
		registry: reg,
		FilesChecked: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_checked_total",
			Help:      "Index files checked, by result (ok, missing, invalid)",
		}, []string{"result"}),
		ValidationPasses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validation_passes_total",
			Help:      "Validation passes, by outcome (cached, clean, dirty)",
		}, []string{"outcome"}),
		Fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetches_total",
			Help:      "Artifact fetches, by result",
		}, []string{"result"}),
		BytesDownloaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "downloaded_bytes_total",
			Help:      "Bytes written by artifact downloads",
		}),
		Extractions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extractions_total",
			Help:      "Archive extractions, by format and result",
		}, []string{"format", "result"}),
	}
	reg.MustRegister(c.FilesChecked, c.ValidationPasses, c.Fetches, c.BytesDownloaded, c.Extractions)
	return c
}

func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// WriteFile writes all counters to path in the Prometheus text format.
func (c *Collector) WriteFile(path string) error {
	return prometheus.WriteToTextfile(path, c.registry)
}

// Default is the collector the library packages report to.
var Default = NewCollector()
