// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides Prometheus metrics for the chatbot
// service: session lifecycle counters, the active-session gauge and
// streaming request instrumentation. Metrics are exposed on /metrics.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "portfolio_chat"

// ServiceMetrics holds all Prometheus metrics for the chatbot service.
//
// # Fields
//
//   - SessionsActive: Gauge of sessions currently in the store.
//   - SessionsCreatedTotal: Counter of sessions ever created.
//   - SessionsClosedTotal: Counter of teardowns by reason
//     (client_close, expired).
//   - StreamRequestsTotal: Counter of send-message streams by terminal
//     status (success, error, not_found, disconnect).
//   - StreamDurationSeconds: Histogram of total stream duration by status.
//   - BackendErrorsTotal: Counter of failed backend operations by op.
type ServiceMetrics struct {
	SessionsActive        prometheus.Gauge
	SessionsCreatedTotal  prometheus.Counter
	SessionsClosedTotal   *prometheus.CounterVec
	StreamRequestsTotal   *prometheus.CounterVec
	StreamDurationSeconds *prometheus.HistogramVec
	BackendErrorsTotal    *prometheus.CounterVec
}

// DefaultMetrics is the singleton instance, initialized by InitMetrics()
// at startup. Packages nil-check it so tests can run unregistered.
var DefaultMetrics *ServiceMetrics

// InitMetrics creates and registers all metrics on the default registry.
// Call once at startup; a second call panics on duplicate registration.
func InitMetrics() *ServiceMetrics {
	DefaultMetrics = &ServiceMetrics{
		SessionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "sessions_active",
			Help:      "Number of chat sessions currently held in the store",
		}),
		SessionsCreatedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "sessions_created_total",
			Help:      "Total chat sessions created",
		}),
		SessionsClosedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "sessions_closed_total",
			Help:      "Total chat sessions torn down, by reason",
		}, []string{"reason"}),
		StreamRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "stream_requests_total",
			Help:      "Total send-message streams, by terminal status",
		}, []string{"status"}),
		StreamDurationSeconds: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "stream_duration_seconds",
			Help:      "Total duration of send-message streams",
			Buckets:   prometheus.DefBuckets,
		}, []string{"status"}),
		BackendErrorsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "backend_errors_total",
			Help:      "Total failed R2R backend operations, by operation",
		}, []string{"op"}),
	}
	return DefaultMetrics
}
