package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	UsersFetched = prometheus.NewGauge(
		prometheus.GaugeOpts{Namespace: "usersync", Name: "directory_users_fetched", Help: "Users returned by the last directory read."},
	)
	DocumentsWritten = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "usersync", Name: "documents_written_total", Help: "Documents committed to the store by write mode."},
		[]string{"mode"},
	)
	Runs = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "usersync", Name: "runs_total", Help: "Finished sync runs by terminal state."},
		[]string{"state"},
	)
	LastRunTimestamp = prometheus.NewGauge(
		prometheus.GaugeOpts{Namespace: "usersync", Name: "last_run_timestamp_seconds", Help: "Unix time the last run finished."},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(UsersFetched)
	reg.MustRegister(DocumentsWritten)
	reg.MustRegister(Runs)
	reg.MustRegister(LastRunTimestamp)
}

// WriteTextfile dumps the gatherer in the node-exporter textfile format. Empty path is a no-op.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	if path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, g)
}
