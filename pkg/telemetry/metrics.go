package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Counters for the messaging core, exposed on /metrics.
var (
	MessagesAppended = promauto.NewCounter(prometheus.CounterOpts{
		Name: "croptalk_messages_appended_total",
		Help: "Messages durably appended to the store.",
	})
	SendsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "croptalk_sends_rejected_total",
		Help: "Send attempts rejected before persistence, by reason.",
	}, []string{"reason"})
	ReadsMarked = promauto.NewCounter(prometheus.CounterOpts{
		Name: "croptalk_messages_marked_read_total",
		Help: "Messages flipped from unread to read.",
	})
	ReconcileRepairs = promauto.NewCounter(prometheus.CounterOpts{
		Name: "croptalk_reconcile_repairs_total",
		Help: "Conversation rows repaired by the reconcile job.",
	})
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "croptalk_http_requests_total",
		Help: "HTTP requests served, by route and status class.",
	}, []string{"route", "status"})
	RateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "croptalk_rate_limited_total",
		Help: "Requests rejected by the per-client rate limiter.",
	})
)
