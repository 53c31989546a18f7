/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package dataplane defines the data plane control interface: the
// orchestrator drives a data plane implementation through this narrow
// interface only (provision/teardown/status, keyed by session ID), never
// reaching into the byte-moving pipes themselves.
package dataplane

import "context"

// Status is the provisioning state of a data plane session.
type Status string

// Supported statuses.
const (
	StatusProvisioned  Status = "PROVISIONED"
	StatusDisconnected Status = "DISCONNECTED"
	StatusNotFound     Status = "NOT_FOUND"
)

// Request carries everything the data plane needs to provision a session:
// the transfer's format, optional DataAddress, and the underlying NGSI-LD /
// context-broker source the catalog entry names.
type Request struct {
	SessionID  string
	Protocol   string
	Action     string // "push" or "pull"
	SourceAddr string
	DestAddr   string
	Properties map[string]string
}

// Controller is the control-plane interface the orchestrator drives on TP
// state transitions.
type Controller interface {
	// Provision establishes (or re-establishes, on resume) the data plane
	// session for req.SessionID, returning the DataAddress to hand back to
	// the consumer on a pull transfer's TransferStart.
	Provision(ctx context.Context, req Request) (*Endpoint, error)

	// Teardown disconnects the session keyed by sessionID. Idempotent: a
	// teardown of an already-torn-down or unknown session is not an error.
	Teardown(ctx context.Context, sessionID string) error

	// Status reports the current provisioning state of sessionID.
	Status(ctx context.Context, sessionID string) (Status, error)
}

// Endpoint is the address the data plane hands back after provisioning, to
// be relayed to the consumer as the transfer's DataAddress.
type Endpoint struct {
	EndpointType string
	Endpoint     string
	Properties   map[string]string
}
