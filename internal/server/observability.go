package server

import (
	"log"
	"net/http"
	"net/http/pprof"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics with bounded cardinality (no per-player or per-room labels).
var (
	tickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "lockstep_tick_duration_seconds",
		Help:    "Time spent committing and broadcasting one tick",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.033},
	})

	framesCommitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lockstep_frames_committed_total",
		Help: "Committed frames by kind",
	}, []string{"kind"}) // Bounded: "complete", "forced"

	messagesDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lockstep_messages_dropped_total",
		Help: "Messages dropped before dispatch",
	}, []string{"reason"}) // Bounded: "malformed", "oversized", "rate_limit", "invalid_input", "unknown_type"

	violationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lockstep_violations_total",
		Help: "Protocol violations recorded against players",
	})

	roomCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lockstep_rooms",
		Help: "Active rooms",
	})

	connectionCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lockstep_connections",
		Help: "Active player connections",
	})

	broadcastBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lockstep_broadcast_bytes_total",
		Help: "Bytes written by frame broadcasts",
	})

	reconnectsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lockstep_reconnects_total",
		Help: "Reconnect attempts by outcome",
	}, []string{"outcome"}) // Bounded: "replay", "full", "rejected"
)

func recordDrop(reason string) {
	messagesDropped.WithLabelValues(reason).Inc()
}

// ObservabilityConfig configures the debug server.
type ObservabilityConfig struct {
	Enabled    bool
	ListenAddr string // MUST stay on localhost in production
}

// DefaultObservabilityConfig returns safe defaults.
func DefaultObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		Enabled:    true,
		ListenAddr: "127.0.0.1:6060", // Localhost only - NEVER expose externally
	}
}

// StartDebugServer starts the internal observability server with
// pprof and the Prometheus endpoint.
func StartDebugServer(cfg ObservabilityConfig) error {
	if !cfg.Enabled {
		log.Println("📊 Debug server disabled")
		return nil
	}

	// Keep pprof off the public interface unless explicitly allowed.
	if cfg.ListenAddr != "127.0.0.1:6060" && cfg.ListenAddr != "localhost:6060" {
		if os.Getenv("ALLOW_DEBUG_EXTERNAL") != "true" {
			log.Println("⚠️ Debug server forced to localhost for security")
			cfg.ListenAddr = "127.0.0.1:6060"
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		log.Printf("📊 Debug server on http://%s (metrics, pprof)", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("⚠️ Debug server error: %v", err)
		}
	}()

	return nil
}
