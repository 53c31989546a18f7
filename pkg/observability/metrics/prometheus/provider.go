/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package prometheus implements metrics.Provider by registering one
// Prometheus collector per observation named in pkg/observability/metrics.
package prometheus

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/trustbloc/dataspace-connector/pkg/httpserver"
	"github.com/trustbloc/dataspace-connector/pkg/observability/metrics"
)

type promProvider struct {
	httpServer *httpserver.Server
}

// NewPrometheusProvider returns a metrics.Provider that registers the
// Prometheus default registry's handler on httpServer (typically a
// dedicated internal-only listener).
func NewPrometheusProvider(httpServer *httpserver.Server) metrics.Provider {
	return &promProvider{httpServer: httpServer}
}

// Create starts the provider's metrics HTTP server, if one was supplied.
func (pp *promProvider) Create() error {
	if pp.httpServer == nil {
		return nil
	}

	if err := pp.httpServer.Start(); err != nil {
		return fmt.Errorf("start metrics HTTP server: %w", err)
	}

	return nil
}

// Destroy stops the provider's metrics HTTP server, if one was supplied.
func (pp *promProvider) Destroy() error {
	if pp.httpServer == nil {
		return nil
	}

	return pp.httpServer.Stop(context.Background())
}

// Metrics returns the process-wide singleton collector set.
func (pp *promProvider) Metrics() metrics.Metrics {
	return GetMetrics()
}

// MetricsHandler serves the default Prometheus registry, for registration
// on the internal metrics listener.
type MetricsHandler struct{}

// NewMetricsHandler returns the scrape-endpoint handler.
func NewMetricsHandler() *MetricsHandler {
	return &MetricsHandler{}
}

// Path returns the scrape endpoint path.
func (h *MetricsHandler) Path() string { return "/metrics" }

// Method returns the HTTP method.
func (h *MetricsHandler) Method() string { return http.MethodGet }

// Handler returns the handler.
func (h *MetricsHandler) Handler() http.HandlerFunc {
	return promhttp.Handler().ServeHTTP
}

var (
	instance *promMetrics //nolint:gochecknoglobals
	once     sync.Once    //nolint:gochecknoglobals
)

// GetMetrics returns the singleton collector set, creating and registering
// it with the default Prometheus registry on first call.
func GetMetrics() metrics.Metrics {
	once.Do(func() {
		instance = newMetrics()
	})

	return instance
}

type promMetrics struct {
	transitionTime         *prometheus.HistogramVec
	transitionRejected     *prometheus.CounterVec
	outboundCallTime       *prometheus.HistogramVec
	outboundCallFailure    *prometheus.CounterVec
	dataPlaneProvisionTime prometheus.Histogram
	dataPlaneTeardownTime  prometheus.Histogram
	grantRequestTime       prometheus.Histogram
	grantHashMismatch      prometheus.Counter
	grantContinueTime      prometheus.Histogram
	notificationDelivery   prometheus.Histogram
	notificationBacklog    prometheus.Gauge
	notificationRetry      prometheus.Counter
}

func newMetrics() *promMetrics { //nolint:funlen
	return &promMetrics{
		transitionTime: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metrics.Namespace, Subsystem: metrics.Orchestrator,
			Name: metrics.TransitionTimeMetric,
			Help: "The time (in seconds) it takes to validate, evaluate and persist one state-machine transition.",
		}, []string{"kind"}),
		transitionRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: metrics.Namespace, Subsystem: metrics.Orchestrator,
			Name: metrics.TransitionRejectedMetric,
			Help: "The number of transitions rejected by the state machine as NotAllowed.",
		}, []string{"kind"}),
		outboundCallTime: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metrics.Namespace, Subsystem: metrics.Orchestrator,
			Name: metrics.OutboundCallTimeMetric,
			Help: "The time (in seconds) it takes to deliver one outbound peer call.",
		}, []string{"messageType"}),
		outboundCallFailure: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: metrics.Namespace, Subsystem: metrics.Orchestrator,
			Name: metrics.OutboundCallFailureMetric,
			Help: "The number of outbound peer calls that failed (PeerUnreachable).",
		}, []string{"messageType"}),
		dataPlaneProvisionTime: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: metrics.Namespace, Subsystem: metrics.Orchestrator,
			Name: metrics.DataPlaneProvisionMetric,
			Help: "The time (in seconds) it takes the data plane controller to provision a transfer session.",
		}),
		dataPlaneTeardownTime: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: metrics.Namespace, Subsystem: metrics.Orchestrator,
			Name: metrics.DataPlaneTeardownMetric,
			Help: "The time (in seconds) it takes the data plane controller to tear down a transfer session.",
		}),
		grantRequestTime: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: metrics.Namespace, Subsystem: metrics.Grant,
			Name: metrics.GrantRequestTimeMetric,
			Help: "The time (in seconds) to process an inbound GNAP grant request.",
		}),
		grantHashMismatch: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: metrics.Namespace, Subsystem: metrics.Grant,
			Name: metrics.GrantHashMismatchMetric,
			Help: "The number of interaction-hash mismatches that denied a Grant.",
		}),
		grantContinueTime: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: metrics.Namespace, Subsystem: metrics.Grant,
			Name: metrics.GrantContinueTimeMetric,
			Help: "The time (in seconds) to process a GNAP continuation request.",
		}),
		notificationDelivery: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: metrics.Namespace, Subsystem: metrics.Notifier,
			Name: metrics.NotificationDeliveryMetric,
			Help: "The time (in seconds) of one notification delivery attempt.",
		}),
		notificationBacklog: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: metrics.Namespace, Subsystem: metrics.Notifier,
			Name: metrics.NotificationBacklogMetric,
			Help: "The current size of the Pending notification backlog.",
		}),
		notificationRetry: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: metrics.Namespace, Subsystem: metrics.Notifier,
			Name: metrics.NotificationRetryMetric,
			Help: "The number of notification redelivery attempts.",
		}),
	}
}

func (pm *promMetrics) TransitionTime(kind string, value time.Duration) {
	pm.transitionTime.WithLabelValues(kind).Observe(value.Seconds())
}

func (pm *promMetrics) TransitionRejected(kind string) {
	pm.transitionRejected.WithLabelValues(kind).Inc()
}

func (pm *promMetrics) OutboundCallTime(messageType string, value time.Duration) {
	pm.outboundCallTime.WithLabelValues(messageType).Observe(value.Seconds())
}

func (pm *promMetrics) OutboundCallFailure(messageType string) {
	pm.outboundCallFailure.WithLabelValues(messageType).Inc()
}

func (pm *promMetrics) DataPlaneProvisionTime(value time.Duration) {
	pm.dataPlaneProvisionTime.Observe(value.Seconds())
}

func (pm *promMetrics) DataPlaneTeardownTime(value time.Duration) {
	pm.dataPlaneTeardownTime.Observe(value.Seconds())
}

func (pm *promMetrics) GrantRequestTime(value time.Duration) {
	pm.grantRequestTime.Observe(value.Seconds())
}

func (pm *promMetrics) GrantHashMismatch() {
	pm.grantHashMismatch.Inc()
}

func (pm *promMetrics) GrantContinueTime(value time.Duration) {
	pm.grantContinueTime.Observe(value.Seconds())
}

func (pm *promMetrics) NotificationDeliveryTime(value time.Duration) {
	pm.notificationDelivery.Observe(value.Seconds())
}

func (pm *promMetrics) NotificationBacklogSize(value float64) {
	pm.notificationBacklog.Set(value)
}

func (pm *promMetrics) NotificationRetry() {
	pm.notificationRetry.Inc()
}
