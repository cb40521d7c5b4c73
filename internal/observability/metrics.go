package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	BytesRead = promauto.NewCounter(prometheus.CounterOpts{
		Name: "daq_bytes_read_total",
		Help: "Bytes read from the active byte source",
	})
	PacketsRecv = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "daq_packets_received_total",
		Help: "Complete packets decoded, by payload kind",
	}, []string{"kind"})
	DecodeErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "daq_decode_errors_total",
		Help: "Packets or settings records dropped, by reason",
	}, []string{"reason"})
	PacketsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "daq_packets_sent_total",
		Help: "Outgoing packets written to the controller, by payload kind",
	}, []string{"kind"})
	SettingsThrottled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "daq_settings_throttled_total",
		Help: "Outgoing settings packets skipped by the throttle",
	})
	StoreLookupMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "daq_store_lookup_misses_total",
		Help: "Data store operations on unregistered channel names",
	}, []string{"op"})
	SourceConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "daq_source_connected",
		Help: "1 while a byte source is active",
	})
	SourceDemotions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "daq_source_demotions_total",
		Help: "Byte sources dropped after a transport error or end of capture",
	}, []string{"reason"})
	RedisSetErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "daq_redis_set_errors_total",
		Help: "Errors writing current values to Redis",
	})
	RegistryInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "daq_registry_info",
		Help: "Registry generation in use",
	}, []string{"version"})
	LiveClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "daq_live_clients",
		Help: "WebSocket clients on the live feed",
	})
	ParseLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "daq_parse_latency_seconds",
		Help:    "Time spent classifying and decoding one packet",
		Buckets: prometheus.DefBuckets,
	})
)

func ObserveParseLatency(start time.Time) {
	ParseLatency.Observe(time.Since(start).Seconds())
}

// NewMux serves /metrics and /healthz; callers may mount more handlers.
func NewMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}
