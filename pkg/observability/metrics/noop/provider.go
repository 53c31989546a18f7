/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package noop

import (
	"time"

	"github.com/trustbloc/dataspace-connector/pkg/observability/metrics"
)

// Provider implements a no-op metrics provider, used when metrics are
// disabled by configuration.
type Provider struct{}

// NewProvider returns a new no-op metrics provider.
func NewProvider() *Provider {
	return &Provider{}
}

// Create does nothing.
func (p *Provider) Create() error { return nil }

// Destroy does nothing.
func (p *Provider) Destroy() error { return nil }

// Metrics returns a no-op Metrics implementation.
func (p *Provider) Metrics() metrics.Metrics {
	return &noopMetrics{}
}

type noopMetrics struct{}

func (noopMetrics) TransitionTime(string, time.Duration) {}
func (noopMetrics) TransitionRejected(string) {}
func (noopMetrics) OutboundCallTime(string, time.Duration) {}
func (noopMetrics) OutboundCallFailure(string) {}
func (noopMetrics) DataPlaneProvisionTime(time.Duration) {}
func (noopMetrics) DataPlaneTeardownTime(time.Duration) {}
func (noopMetrics) GrantRequestTime(time.Duration) {}
func (noopMetrics) GrantHashMismatch() {}
func (noopMetrics) GrantContinueTime(time.Duration) {}
func (noopMetrics) NotificationDeliveryTime(time.Duration) {}
func (noopMetrics) NotificationBacklogSize(float64) {}
func (noopMetrics) NotificationRetry() {}
