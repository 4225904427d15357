package handover

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	protocolHandover = "handover"
	protocolStatus   = "status"
)

var (
	metricHeartbeatsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "handover",
		Subsystem: "peer",
		Name:      "heartbeats_sent_total",
		Help:      "Total number of heartbeats sent, per protocol and kind (handover/up/down)",
	}, []string{"protocol", "kind"})
	metricHeartbeatSendErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "handover",
		Subsystem: "peer",
		Name:      "heartbeat_send_errors_total",
		Help:      "Total number of heartbeats that could not be sent, per protocol",
	}, []string{"protocol"})
	metricDatagramsReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "handover",
		Subsystem: "peer",
		Name:      "datagrams_received_total",
		Help:      "Total number of datagrams decoded successfully, per protocol",
	}, []string{"protocol"})
	metricDatagramsDiscarded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "handover",
		Subsystem: "peer",
		Name:      "datagrams_discarded_total",
		Help:      "Total number of datagrams or socket errors that were dropped, per protocol and reason (decode/socket/callback)",
	}, []string{"protocol", "reason"})
	metricShutdowns = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "handover",
		Subsystem: "peer",
		Name:      "shutdowns_total",
		Help:      "Total number of shutdown sequences started after seeing a newer instance",
	})
)
