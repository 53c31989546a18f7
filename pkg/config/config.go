/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package config

import "time"

// DB holds database connection configuration.
type DB struct {
	// Type is "mem" or "mongodb".
	Type string
	// URL is the connection string (unused for "mem").
	URL string
	// Prefix is prepended to every database/collection name.
	Prefix string
	// Timeout bounds individual database operations.
	Timeout time.Duration
}

// MessageBroker holds AMQP configuration for the event bus. An empty URL
// selects the in-memory bus.
type MessageBroker struct {
	URL            string
	MaxConnections int
	PublisherLimit int
}

// Connector holds the connector-wide configuration shared by the provider
// and consumer services.
type Connector struct {
	// ParticipantID is this service's own participant identity (URN).
	ParticipantID string
	// Slug is the short human-readable name advertised to counterparties.
	Slug string
	// ExternalEndpoint is the base URL peers use to reach this service.
	ExternalEndpoint string
	// PeerCallTimeout bounds every outbound HTTP call to a peer.
	PeerCallTimeout time.Duration
	// PeerHostRewrite maps advertised callback hosts onto dial targets.
	// A development aid for docker-compose style deployments; leave empty
	// in production.
	PeerHostRewrite map[string]string
}
