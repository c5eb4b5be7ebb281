// Package metrics holds the Prometheus collectors of the auth server.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Login outcomes.
const (
	LoginOK       = "ok"
	LoginRejected = "rejected"
	LoginBanned   = "banned"
)

type Metrics struct {
	registry *prometheus.Registry

	logins          *prometheus.CounterVec
	sessionsCreated prometheus.Counter
	bans            prometheus.Counter
	resetsIssued    *prometheus.CounterVec
	reconciliations prometheus.Counter
	subscriptionsIn prometheus.Counter
	rpcTotal        *prometheus.CounterVec
	rpcDuration     *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cropdb_auth_logins_total",
			Help: "Login attempts by outcome.",
		}, []string{"outcome"}),
		sessionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cropdb_auth_sessions_created_total",
			Help: "Sessions created.",
		}),
		bans: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cropdb_auth_bans_total",
			Help: "Accounts banned, automatically or by an admin.",
		}),
		resetsIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cropdb_auth_reset_tokens_total",
			Help: "Reset tokens issued by purpose.",
		}, []string{"which"}),
		reconciliations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cropdb_subscription_reconciliations_total",
			Help: "Subscription reconciliations committed.",
		}),
		subscriptionsIn: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cropdb_subscriptions_inserted_total",
			Help: "Subscription rows inserted by reconciliation.",
		}),
		rpcTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cropdb_grpc_requests_total",
			Help: "gRPC requests by method and status code.",
		}, []string{"method", "code"}),
		rpcDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cropdb_grpc_request_duration_seconds",
			Help:    "gRPC request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.logins, m.sessionsCreated, m.bans, m.resetsIssued,
		m.reconciliations, m.subscriptionsIn, m.rpcTotal, m.rpcDuration,
	)
	return m
}

func (m *Metrics) Login(outcome string) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SessionCreated() {
	if m == nil {
		return
	}
	m.sessionsCreated.Inc()
}

func (m *Metrics) Banned() {
	if m == nil {
		return
	}
	m.bans.Inc()
}

func (m *Metrics) ResetIssued(which string) {
	if m == nil {
		return
	}
	m.resetsIssued.WithLabelValues(which).Inc()
}

func (m *Metrics) Reconciled(inserted int) {
	if m == nil {
		return
	}
	m.reconciliations.Inc()
	m.subscriptionsIn.Add(float64(inserted))
}

func (m *Metrics) ObserveRPC(method, code string, d time.Duration) {
	if m == nil {
		return
	}
	m.rpcTotal.WithLabelValues(method, code).Inc()
	m.rpcDuration.WithLabelValues(method).Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
