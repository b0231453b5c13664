package ballotbox

import "github.com/prometheus/client_golang/prometheus"

var StoredRecords = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "ballotbox",
	Subsystem: "engine",
	Name:      "records_stored",
}, []string{"kind"})

var RebuiltRecords = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "ballotbox",
	Subsystem: "engine",
	Name:      "records_rebuilt",
}, []string{"kind"})

var RebuildDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "ballotbox",
	Subsystem: "engine",
	Name:      "rebuild_duration_ms",
	Buckets:   []float64{0, 1, 5, 10, 20, 50, 100, 200, 500, 1000},
}, []string{"kind"})

var FetchResults = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "ballotbox",
	Subsystem: "engine",
	Name:      "fetches",
}, []string{"kind", "result"})

// Metrics returns the engine's collectors for registration by the caller.
func Metrics() []prometheus.Collector {
	return []prometheus.Collector{StoredRecords, RebuiltRecords, RebuildDuration, FetchResults}
}
