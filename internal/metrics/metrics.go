// Package metrics exposes agent counters to prometheus.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Result labels.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultSkipped = "skipped"
)

// Metrics holds the agent's collectors. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	registry      *prometheus.Registry
	commands      *prometheus.CounterVec
	guestEvents   *prometheus.CounterVec
	eventsDropped prometheus.Counter
	dirtyScene    prometheus.Gauge
}

// New creates and registers the collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "jimvn",
			Name:      "commands_total",
			Help:      "Commands processed, by engine, action and result.",
		}, []string{"engine", "action", "result"}),
		guestEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "jimvn",
			Name:      "guest_events_total",
			Help:      "Guest events emitted upstream, by type.",
		}, []string{"type"}),
		eventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "jimvn",
			Name:      "events_dropped_total",
			Help:      "Hypervisor events dropped because the bridge queue was full.",
		}),
		dirtyScene: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "jimvn",
			Name:      "dirty_scene",
			Help:      "1 while a provisioning job has allocated storage but not defined its guest.",
		}),
	}

	m.registry.MustRegister(
		m.commands,
		m.guestEvents,
		m.eventsDropped,
		m.dirtyScene,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Command counts one processed command.
func (m *Metrics) Command(engine, action, result string) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(engine, action, result).Inc()
}

// GuestEvent counts one emitted guest event.
func (m *Metrics) GuestEvent(typ string) {
	if m == nil {
		return
	}
	m.guestEvents.WithLabelValues(typ).Inc()
}

// EventDropped counts one dropped hypervisor event.
func (m *Metrics) EventDropped() {
	if m == nil {
		return
	}
	m.eventsDropped.Inc()
}

// DirtyScene records the scene tracker's flag.
func (m *Metrics) DirtyScene(dirty bool) {
	if m == nil {
		return
	}
	if dirty {
		m.dirtyScene.Set(1)
		return
	}
	m.dirtyScene.Set(0)
}

// Handler returns the HTTP handler serving /metrics and /healthz.
func (m *Metrics) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	return r
}

// Serve listens on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           m.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to serve metrics: %w", err)
	}
	return nil
}
