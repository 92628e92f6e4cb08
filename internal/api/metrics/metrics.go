// Package metrics defines and registers all custom Prometheus metrics for
// the petcare auth service. It is the single source of truth for metric
// names, labels, and help strings; promauto registers everything with the
// default registry at package init.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "petcare_auth"

// LoginsTotal counts login attempts.
// Label:
//   - result: "success" or "failure"
var LoginsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "logins_total",
		Help:      "Total number of login attempts, by result.",
	},
	[]string{"result"},
)

// RefreshTotal counts token refresh attempts.
// Label:
//   - result: "success", "missing", "invalid", "expired", or "reused"
var RefreshTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "token_refresh_total",
		Help:      "Total number of refresh attempts, by result.",
	},
	[]string{"result"},
)

// SessionsRevokedTotal counts session revocation events.
// Label:
//   - reason: "logout", "reuse", or "admin"
var SessionsRevokedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sessions_revoked_total",
		Help:      "Total number of session revocation events, by reason.",
	},
	[]string{"reason"},
)

// TokenReuseDetectedTotal counts presentations of already-rotated refresh
// tokens. Any non-zero rate here deserves attention: it is the replay
// signal the rotation scheme exists to produce.
var TokenReuseDetectedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "token_reuse_detected_total",
		Help:      "Total number of retired refresh tokens presented again.",
	},
)

// SessionsSweptTotal counts expired session rows removed by the
// background sweeper.
var SessionsSweptTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sessions_swept_total",
		Help:      "Total number of expired session rows deleted by the sweeper.",
	},
)
