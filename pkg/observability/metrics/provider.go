/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package metrics defines the Provider/Metrics abstraction the
// orchestrator, grant engines and notifier record observations through,
// with noop and prometheus implementations selectable at startup.
package metrics

import (
	"time"

	"github.com/trustbloc/dataspace-connector/internal/pkg/log"
)

// Logger used by metrics providers.
var Logger = log.New("metrics-provider")

// Namespace is the Prometheus namespace for every metric this module exports.
const Namespace = "dataspace_connector"

// Metric group/name constants, grouped by subsystem.
const (
	// Orchestrator groups Protocol Orchestrator transition metrics.
	Orchestrator               = "orchestrator"
	TransitionTimeMetric       = "transition_seconds"
	TransitionRejectedMetric   = "transition_rejected_count"
	OutboundCallTimeMetric     = "outbound_call_seconds"
	OutboundCallFailureMetric  = "outbound_call_failure_count"
	DataPlaneProvisionMetric   = "data_plane_provision_seconds"
	DataPlaneTeardownMetric    = "data_plane_teardown_seconds"

	// Grant groups GNAP+OIDC4VP Auth Engine metrics.
	Grant                   = "grant"
	GrantRequestTimeMetric  = "request_seconds"
	GrantHashMismatchMetric = "hash_mismatch_count"
	GrantContinueTimeMetric = "continue_seconds"

	// Notifier groups Event Notifier metrics.
	Notifier                   = "notifier"
	NotificationDeliveryMetric = "delivery_seconds"
	NotificationBacklogMetric  = "backlog_size"
	NotificationRetryMetric    = "retry_count"
)

// Provider is an interface for a metrics provider.
type Provider interface {
	// Create creates/initializes the metrics provider instance.
	Create() error
	// Destroy tears down the metrics provider instance.
	Destroy() error
	// Metrics returns the provider's Metrics implementation.
	Metrics() Metrics
}

// Metrics is the set of measurements this module records.
type Metrics interface {
	// TransitionTime records the time to validate+persist+evaluate one
	// state-machine transition, tagged by machine kind ("cn", "tp").
	TransitionTime(kind string, value time.Duration)
	// TransitionRejected increments the count of transitions the state
	// machine refused (NotAllowed), tagged by machine kind.
	TransitionRejected(kind string)
	// OutboundCallTime records the time of an outbound peer call, tagged by
	// message type.
	OutboundCallTime(messageType string, value time.Duration)
	// OutboundCallFailure increments the count of failed outbound peer
	// calls, tagged by message type.
	OutboundCallFailure(messageType string)
	// DataPlaneProvisionTime records the time the data plane controller
	// took to provision a transfer session.
	DataPlaneProvisionTime(value time.Duration)
	// DataPlaneTeardownTime records the time the data plane controller took
	// to tear a transfer session down.
	DataPlaneTeardownTime(value time.Duration)
	// GrantRequestTime records the time to process an inbound GNAP grant
	// request on the authority side.
	GrantRequestTime(value time.Duration)
	// GrantHashMismatch increments the count of interaction-hash mismatches
	//, each of which denies a Grant irreversibly.
	GrantHashMismatch()
	// GrantContinueTime records the time to process a GNAP continuation
	// request.
	GrantContinueTime(value time.Duration)
	// NotificationDeliveryTime records the time of one notification
	// delivery attempt to a subscriber callback.
	NotificationDeliveryTime(value time.Duration)
	// NotificationBacklogSize records the current size of the Pending
	// notification backlog.
	NotificationBacklogSize(value float64)
	// NotificationRetry increments the count of notification redelivery
	// attempts.
	NotificationRetry()
}
