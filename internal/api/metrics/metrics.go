// Package metrics defines all custom Prometheus metrics for the accounts API.
// It is the single source of truth for metric names, labels, and help strings.
//
// Metrics register with the default registry on package init (promauto), so
// they are exposed by the /metrics handler alongside the echoprometheus
// request metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "accounts"

// ── Authentication metrics ───────────────────────────────────────────────────

// AuthAttemptsTotal counts authentication flow outcomes.
// Labels:
//   - flow: "signup", "signin", "google", "reset_request", "reset", "otp_verify"
//   - app: the app-source, or "none"
//   - outcome: "success", "linked", "prompt", "conflict", "rejected", "error"
var AuthAttemptsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "auth_attempts_total",
		Help:      "Total number of authentication attempts by flow, app-source and outcome.",
	},
	[]string{"flow", "app", "outcome"},
)

// OAuthCallbackDuration measures a full OAuth callback: state check, code
// exchange, profile fetch and account resolution.
// Label:
//   - outcome: "success" or "error"
var OAuthCallbackDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "oauth_callback_duration_seconds",
		Help:      "Duration of OAuth callbacks from code receipt to session issuance.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"outcome"},
)

// ── Mail metrics ─────────────────────────────────────────────────────────────

// MailDeliveriesTotal counts outbound email attempts.
// Label:
//   - result: "sent", "failed" or "dropped" (queue full)
var MailDeliveriesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "mail_deliveries_total",
		Help:      "Total number of outbound emails by result.",
	},
	[]string{"result"},
)

// MailQueueDepth tracks pending emails per worker channel.
var MailQueueDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "mail_queue_depth",
		Help:      "Current number of emails pending in each mail worker channel.",
	},
	[]string{"worker_id"},
)
