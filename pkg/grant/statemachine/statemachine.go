/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package statemachine implements the Grant machine: Processing, Pending,
// then Approved or Denied. Unlike the CN/TP machines
// (pkg/dsp/statemachine), transitions here are driven by named events
// rather than inbound wire message types, since a grant run crosses an
// out-of-band VP exchange that has no DSP-shaped envelope of its own.
package statemachine

import (
	"fmt"

	dcerrors "github.com/trustbloc/dataspace-connector/pkg/errors"
)

// State is a Grant process state.
type State string

// Supported states.
const (
	Processing State = "PROCESSING"
	Pending    State = "PENDING"
	Approved   State = "APPROVED"
	Denied     State = "DENIED"
)

func (s State) String() string { return string(s) }

// TerminalStates lists the absorbing states of the Grant machine.
var TerminalStates = []fmt.Stringer{Approved, Denied}

// Event names a Grant transition trigger.
type Event string

// Supported events.
const (
	// EventRequested fires when the client sends the initial grant
	// request; creates the record in Processing.
	EventRequested Event = "requested"
	// EventASResponded fires on receipt of the AS response carrying a
	// continue handle and interact.finish/oidc4vp; moves to Pending.
	EventASResponded Event = "as-responded"
	// EventHashMismatch fires when the client recomputes the interaction
	// hash on the interactive callback and it does not match; moves to
	// Denied irreversibly.
	EventHashMismatch Event = "hash-mismatch"
	// EventContinued fires when the continuation POST succeeds and an
	// access token has been persisted; moves to Approved.
	EventContinued Event = "continued"
	// EventContinuationFailed fires when the continuation POST is
	// rejected (bad interact_ref, AS error); moves to Denied.
	EventContinuationFailed Event = "continuation-failed"
)

var table = map[Event]struct {
	from map[State]bool
	to   State
}{
	EventRequested:          {from: nil, to: Processing},
	EventASResponded:        {from: states(Processing), to: Pending},
	EventHashMismatch:       {from: states(Pending), to: Denied},
	EventContinued:          {from: states(Pending), to: Approved},
	EventContinuationFailed: {from: states(Pending), to: Denied},
}

func states(ss ...State) map[State]bool {
	m := make(map[State]bool, len(ss))
	for _, s := range ss {
		m[s] = true
	}

	return m
}

// Result is the outcome of evaluating a Grant transition.
type Result struct {
	NextState State
	// Idempotent is true when the event has already been applied (the
	// record is already at NextState).
	Idempotent bool
}

// Evaluate decides whether event is accepted given the grant's current
// state (empty string if the record does not yet exist).
func Evaluate(currentState State, event Event) (*Result, error) {
	t, ok := table[event]
	if !ok {
		return nil, dcerrors.NewNotAllowedf(currentState, "unrecognized event %q", event)
	}

	if currentState == "" {
		if t.from != nil {
			return nil, dcerrors.NewNotAllowedf(currentState, "event %q requires an existing grant", event)
		}

		return &Result{NextState: t.to}, nil
	}

	if currentState == Approved || currentState == Denied {
		return nil, dcerrors.NewNotAllowedf(currentState, "grant is in terminal state %s", currentState)
	}

	if t.from == nil {
		return nil, dcerrors.NewNotAllowedf(currentState, "event %q requires no existing grant", event)
	}

	if currentState == t.to {
		return &Result{NextState: t.to, Idempotent: true}, nil
	}

	if !t.from[currentState] {
		return nil, dcerrors.NewNotAllowedf(currentState, "event %q is not allowed from state %s", event, currentState)
	}

	return &Result{NextState: t.to}, nil
}
