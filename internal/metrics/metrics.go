// Package metrics exposes the server's observability counters as Prometheus
// metrics.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Counters holds every counter/gauge in the observability contract. The
// zero value is unusable; construct with New.
type Counters struct {
	SessionsCreated     prometheus.Counter
	WSConnections       prometheus.Counter
	WSDisconnections    prometheus.Counter
	WSErrors            prometheus.Counter
	OperationsApplied   prometheus.Counter
	FullSyncsSent       prometheus.Counter
	RateLimitedRequests prometheus.Counter
	TokenRevocations    prometheus.Counter
	TokenRotations      prometheus.Counter
	ActiveSessionsGauge prometheus.Gauge
}

// New registers the full counter set against reg.
func New(reg prometheus.Registerer) *Counters {
	c := &Counters{
		SessionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rustboard_sessions_created_total",
			Help: "Number of sessions created.",
		}),
		WSConnections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rustboard_ws_connections_total",
			Help: "Number of websocket connections accepted.",
		}),
		WSDisconnections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rustboard_ws_disconnections_total",
			Help: "Number of websocket connections torn down.",
		}),
		WSErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rustboard_ws_errors_total",
			Help: "Number of websocket-level errors.",
		}),
		OperationsApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rustboard_operations_applied_total",
			Help: "Number of operations successfully applied to a document.",
		}),
		FullSyncsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rustboard_full_syncs_sent_total",
			Help: "Number of full document snapshots sent to joining clients.",
		}),
		RateLimitedRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rustboard_rate_limited_requests_total",
			Help: "Number of requests rejected by the rate limiter.",
		}),
		TokenRevocations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rustboard_token_revocations_total",
			Help: "Number of tokens revoked.",
		}),
		TokenRotations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rustboard_token_rotations_total",
			Help: "Number of tokens rotated.",
		}),
		ActiveSessionsGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rustboard_active_sessions",
			Help: "Current number of sessions in the catalog.",
		}),
	}
	reg.MustRegister(
		c.SessionsCreated, c.WSConnections, c.WSDisconnections, c.WSErrors,
		c.OperationsApplied, c.FullSyncsSent, c.RateLimitedRequests,
		c.TokenRevocations, c.TokenRotations, c.ActiveSessionsGauge,
	)
	return c
}

// SessionCreated satisfies session.Metrics.
func (c *Counters) SessionCreated() { c.SessionsCreated.Inc() }

// TokenRevoked satisfies session.Metrics.
func (c *Counters) TokenRevoked() { c.TokenRevocations.Inc() }

// TokenRotated satisfies session.Metrics.
func (c *Counters) TokenRotated() { c.TokenRotations.Inc() }

// ActiveSessions satisfies session.Metrics.
func (c *Counters) ActiveSessions(n int) { c.ActiveSessionsGauge.Set(float64(n)) }

// WSDisconnection satisfies connhandler.Metrics.
func (c *Counters) WSDisconnection() { c.WSDisconnections.Inc() }

// WSError satisfies connhandler.Metrics.
func (c *Counters) WSError() { c.WSErrors.Inc() }

// OperationApplied satisfies connhandler.Metrics.
func (c *Counters) OperationApplied() { c.OperationsApplied.Inc() }

// FullSyncSent satisfies connhandler.Metrics.
func (c *Counters) FullSyncSent() { c.FullSyncsSent.Inc() }

// RateLimited satisfies adminapi.Metrics.
func (c *Counters) RateLimited() { c.RateLimitedRequests.Inc() }

// WSConnection satisfies connhandler.Metrics.
func (c *Counters) WSConnection() { c.WSConnections.Inc() }
