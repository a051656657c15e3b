// Package metrics defines the Prometheus collectors for the sync engine and the
// ledger service.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"connectrpc.com/connect"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "savingcircle"

// Engine collects sync engine metrics.
type Engine struct {
	Operations      *prometheus.CounterVec
	Reconciliations *prometheus.CounterVec
	Fallbacks       *prometheus.CounterVec
	PendingMutation prometheus.Gauge
}

// NewEngine creates the engine collectors and registers them with reg. A nil
// reg leaves them unregistered.
func NewEngine(reg prometheus.Registerer) *Engine {
	m := &Engine{
		Operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "operations_total",
			Help:      "Ledger operations by name and outcome.",
		}, []string{"operation", "outcome"}),
		Reconciliations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "reconciliations_total",
			Help:      "Collection refetches by collection and outcome (applied, stale, failed).",
		}, []string{"collection", "outcome"}),
		Fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "local_decisions_total",
			Help:      "Withdrawal decisions applied locally after the service call failed.",
		}, []string{"status"}),
		PendingMutation: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "tentative_mutations",
			Help:      "Speculative changes not yet committed or discarded.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Operations, m.Reconciliations, m.Fallbacks, m.PendingMutation)
	}
	return m
}

// Server collects ledger service metrics.
type Server struct {
	Requests *prometheus.CounterVec
	Duration *prometheus.HistogramVec
}

// NewServer creates the service collectors and registers them with reg.
func NewServer(reg prometheus.Registerer) *Server {
	m := &Server{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "rpc_requests_total",
			Help:      "RPCs handled by procedure and Connect code.",
		}, []string{"procedure", "code"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "rpc_duration_seconds",
			Help:      "RPC handling latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"procedure"}),
	}
	if reg != nil {
		reg.MustRegister(m.Requests, m.Duration)
	}
	return m
}

// Interceptor records every unary RPC.
func (m *Server) Interceptor() connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			start := time.Now()
			procedure := req.Spec().Procedure

			resp, err := next(ctx, req)

			code := "ok"
			if err != nil {
				var connectErr *connect.Error
				if errors.As(err, &connectErr) {
					code = connectErr.Code().String()
				} else {
					code = connect.CodeUnknown.String()
				}
			}
			m.Requests.WithLabelValues(procedure, code).Inc()
			m.Duration.WithLabelValues(procedure).Observe(time.Since(start).Seconds())
			return resp, err
		}
	}
}

// LogSnapshot writes every counter and gauge sample in g to logger at debug
// level, one record per series. Short-lived processes use it instead of a
// scrape endpoint.
func LogSnapshot(ctx context.Context, logger *slog.Logger, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			var value float64
			switch {
			case m.GetCounter() != nil:
				value = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				value = m.GetGauge().GetValue()
			default:
				continue
			}
			labels := make([]string, 0, len(m.GetLabel()))
			for _, l := range m.GetLabel() {
				labels = append(labels, l.GetName()+"="+l.GetValue())
			}
			logger.DebugContext(ctx, "Metric",
				"name", mf.GetName(),
				"labels", strings.Join(labels, ","),
				"value", value,
			)
		}
	}
	return nil
}
