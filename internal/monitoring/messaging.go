// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
)

// MessagingMetrics counts the progress of outgoing messages.
type MessagingMetrics struct {
	toSend  prometheus.Counter
	stopped prometheus.Counter
	sentOK  prometheus.Counter
	failed  prometheus.Counter
}

var messagingMetrics = &MessagingMetrics{
	toSend: prometheus.NewCounter(prometheus.CounterOpts{
		Name: "messaging_tx_to_send",
		Help: "Total number of messages to send",
	}),
	stopped: prometheus.NewCounter(prometheus.CounterOpts{
		Name: "messaging_tx_stopped",
		Help: "Number of messages, which were eventually stopped before sending",
	}),
	sentOK: prometheus.NewCounter(prometheus.CounterOpts{
		Name: "messaging_tx_sent_ok",
		Help: "Number of messages, which were sent successfully",
	}),
	failed: prometheus.NewCounter(prometheus.CounterOpts{
		Name: "messaging_tx_failed",
		Help: "Number of messages, for which the sender failed",
	}),
}

func init() {
	mustRegisterPrometheusCollector(messagingMetrics.toSend)
	mustRegisterPrometheusCollector(messagingMetrics.stopped)
	mustRegisterPrometheusCollector(messagingMetrics.sentOK)
	mustRegisterPrometheusCollector(messagingMetrics.failed)
}

// Messaging returns the process wide messaging metrics.
func Messaging() *MessagingMetrics {
	return messagingMetrics
}

// ToSend records a message queued for sending.
func (m *MessagingMetrics) ToSend() {
	m.toSend.Inc()
}

// Stopped records a message that was dropped before sending.
func (m *MessagingMetrics) Stopped() {
	m.stopped.Inc()
}

// SentOK records a message that was sent.
func (m *MessagingMetrics) SentOK() {
	m.sentOK.Inc()
}

// Failed records a failed attempt to send a message.
func (m *MessagingMetrics) Failed() {
	m.failed.Inc()
}
