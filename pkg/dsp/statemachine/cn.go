/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package statemachine decides protocol transitions: given (role, current
// state, message type), accept or reject and compute the next state, from
// a fixed transition table keyed by (state, message type, role).
package statemachine

import (
	"fmt"

	dcerrors "github.com/trustbloc/dataspace-connector/pkg/errors"
)

// CNState is a Contract Negotiation state.
type CNState string

// Supported CN states.
const (
	CNRequested  CNState = "REQUESTED"
	CNOffered    CNState = "OFFERED"
	CNAccepted   CNState = "ACCEPTED"
	CNAgreed     CNState = "AGREED"
	CNVerified   CNState = "VERIFIED"
	CNFinalized  CNState = "FINALIZED"
	CNTerminated CNState = "TERMINATED"
)

func (s CNState) String() string { return string(s) }

// CNTerminalStates lists the absorbing states of the CN machine, for
// registration with procstore.WithTerminalStates.
var CNTerminalStates = []fmt.Stringer{CNFinalized, CNTerminated}

// CN message types, as sent by a given role. Not the wire @type strings;
// those are in pkg/dsp/model.
const (
	CNMsgRequestInitial = "request-initial"
	CNMsgRequestCounter = "request-counter"
	CNMsgOfferInitial   = "offer-initial"
	CNMsgOfferCounter   = "offer-counter"
	CNMsgAgreement      = "agreement"
	CNMsgEventAccepted  = "event-accepted"
	CNMsgVerification   = "verification"
	CNMsgEventFinalized = "event-finalized"
	CNMsgTermination    = "termination"
)

type cnTransition struct {
	sender role
	from   map[CNState]bool // nil/empty means "no current record" (creates one)
	to     CNState
}

type role string

const (
	roleProvider role = "PROVIDER"
	roleConsumer role = "CONSUMER"
	roleEither   role = "EITHER"
)

func states(ss ...CNState) map[CNState]bool {
	m := make(map[CNState]bool, len(ss))
	for _, s := range ss {
		m[s] = true
	}

	return m
}

var cnTable = map[string]cnTransition{
	CNMsgRequestInitial: {sender: roleConsumer, from: nil, to: CNRequested},
	CNMsgRequestCounter: {sender: roleConsumer, from: states(CNOffered), to: CNRequested},
	CNMsgOfferInitial:   {sender: roleProvider, from: nil, to: CNOffered},
	CNMsgOfferCounter:   {sender: roleProvider, from: states(CNRequested), to: CNOffered},
	CNMsgAgreement:      {sender: roleProvider, from: states(CNRequested, CNAccepted), to: CNAgreed},
	CNMsgEventAccepted:  {sender: roleConsumer, from: states(CNOffered), to: CNAccepted},
	CNMsgVerification:   {sender: roleConsumer, from: states(CNAgreed), to: CNVerified},
	CNMsgEventFinalized: {sender: roleProvider, from: states(CNVerified), to: CNFinalized},
}

// CNResult is the outcome of evaluating a CN transition.
type CNResult struct {
	// NextState is the state to persist.
	NextState CNState
	// Idempotent is true when the message is a duplicate that has already
	// been applied (the process is already at NextState) and the
	// caller should return the current ACK rather than apply the message
	// again.
	Idempotent bool
}

// EvaluateCN decides whether msgType, sent by sender, is accepted given the
// process's current state (empty string if the process does not yet
// exist). Returns a NotAllowed error for any rejected (state, message)
// pair.
func EvaluateCN(sender string, currentState CNState, msgType string) (*CNResult, error) {
	if msgType == CNMsgTermination {
		return evaluateCNTermination(currentState)
	}

	t, ok := cnTable[msgType]
	if !ok {
		return nil, dcerrors.NewNotAllowedf(currentState, "unrecognized message type %q", msgType)
	}

	if string(t.sender) != sender && t.sender != roleEither {
		return nil, dcerrors.NewNotAllowedf(currentState, "message %q may only be sent by %s", msgType, t.sender)
	}

	if currentState == "" {
		if t.from != nil {
			return nil, dcerrors.NewNotAllowedf(currentState, "message %q requires an existing process", msgType)
		}

		return &CNResult{NextState: t.to}, nil
	}

	if currentState == CNFinalized || currentState == CNTerminated {
		return nil, dcerrors.NewNotAllowedf(currentState, "process is in terminal state %s", currentState)
	}

	if currentState == t.to {
		return &CNResult{NextState: t.to, Idempotent: true}, nil
	}

	if t.from == nil {
		return nil, dcerrors.NewNotAllowedf(currentState, "message %q requires no existing process", msgType)
	}

	if !t.from[currentState] {
		return nil, dcerrors.NewNotAllowedf(currentState, "message %q is not allowed from state %s", msgType, currentState)
	}

	return &CNResult{NextState: t.to}, nil
}

func evaluateCNTermination(currentState CNState) (*CNResult, error) {
	if currentState == CNFinalized || currentState == CNTerminated {
		if currentState == CNTerminated {
			return &CNResult{NextState: CNTerminated, Idempotent: true}, nil
		}

		return nil, dcerrors.NewNotAllowedf(currentState, "process is in terminal state %s", currentState)
	}

	return &CNResult{NextState: CNTerminated}, nil
}
