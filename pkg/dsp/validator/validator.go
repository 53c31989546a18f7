/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package validator validates inbound protocol envelopes in two layers: a
// schema layer (JSON-LD `@context`/`@type` shape) and a semantic layer
// (cross-field consistency against the path and the stored process). The
// validator never mutates state. The dispatch table is built once at
// construction rather than assembled per message.
package validator

import (
	"encoding/json"
	"fmt"

	"github.com/piprate/json-gold/ld"

	"github.com/trustbloc/dataspace-connector/pkg/dsp/model"
)

// ProtocolError is the structured validation failure,
// surfaced to the caller as a 400.
type ProtocolError struct {
	ProviderPID string   `json:"providerPid,omitempty"`
	ConsumerPID string   `json:"consumerPid,omitempty"`
	Code        string   `json:"code"`
	Reason      []string `json:"reason"`
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s: %v", e.Code, e.Reason)
}

func newProtocolError(code string, reason ...string) *ProtocolError {
	return &ProtocolError{Code: code, Reason: reason}
}

// schemaCheck validates the shape of one message type's already-parsed
// envelope body. The table in table.go is built once at construction.
type schemaCheck func(body []byte) (*ProtocolError, error)

// Validator validates inbound DSP envelopes in two layers.
type Validator struct {
	loader ld.DocumentLoader
	table  map[string]schemaCheck
}

// New returns a Validator. loader is used to resolve/expand the `@context`
// of inbound envelopes; pass nil to skip context expansion (schema checks
// still run).
func New(loader ld.DocumentLoader) *Validator {
	v := &Validator{loader: loader}
	v.table = buildTable(v)

	return v
}

// ValidateEnvelope parses the outer `@context`/`@type` envelope and
// dispatches to the schema check registered for that type. Returns a
// *ProtocolError (never a bare error) on any validation failure.
func (v *Validator) ValidateEnvelope(raw []byte) (*model.Envelope, *ProtocolError, error) {
	var env model.Envelope

	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, newProtocolError("malformed-envelope", err.Error()), nil
	}

	if env.Context == "" {
		return nil, newProtocolError("missing-context", "@context is required"), nil
	}

	if v.loader != nil {
		if _, err := v.loader.LoadDocument(env.Context); err != nil {
			return nil, newProtocolError("unresolvable-context", err.Error()), nil
		}
	}

	check, ok := v.table[env.Type]
	if !ok {
		return nil, newProtocolError("unknown-type", fmt.Sprintf("unrecognized @type %q", env.Type)), nil
	}

	protoErr, err := check(raw)
	if err != nil {
		return nil, nil, err
	}

	if protoErr != nil {
		return nil, protoErr, nil
	}

	return &env, nil, nil
}

// SemanticCheckPIDs enforces the semantic rule that the
// provider/consumer PIDs in a message body agree with the path identifier
// and the stored process record. pathPID is whichever of providerPID/
// consumerPID the URL path names; it is matched against both message
// fields that are non-empty.
func SemanticCheckPIDs(msgProviderPID, msgConsumerPID, pathPID, storedProviderPID, storedConsumerPID string) *ProtocolError {
	if pathPID == "" {
		return nil
	}

	if msgProviderPID != "" && msgProviderPID != pathPID && msgProviderPID != storedProviderPID {
		return newProtocolError("pid-mismatch", "providerPid in body does not match path or stored record")
	}

	if msgConsumerPID != "" && msgConsumerPID != pathPID && msgConsumerPID != storedConsumerPID {
		return newProtocolError("pid-mismatch", "consumerPid in body does not match path or stored record")
	}

	return nil
}
