/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package statemachine

import (
	"fmt"

	dcerrors "github.com/trustbloc/dataspace-connector/pkg/errors"
)

// TPState is a Transfer Process state.
type TPState string

// Supported TP states.
const (
	TPRequested  TPState = "REQUESTED"
	TPStarted    TPState = "STARTED"
	TPSuspended  TPState = "SUSPENDED"
	TPCompleted  TPState = "COMPLETED"
	TPTerminated TPState = "TERMINATED"
)

func (s TPState) String() string { return string(s) }

// TPTerminalStates lists the absorbing states of the TP machine.
var TPTerminalStates = []fmt.Stringer{TPCompleted, TPTerminated}

// TP message types.
const (
	TPMsgRequest     = "request"
	TPMsgStart       = "start"
	TPMsgSuspension  = "suspension"
	TPMsgCompletion  = "completion"
	TPMsgTermination = "termination"
)

type tpTransition struct {
	sender role // roleEither unless the message is role-asymmetric
	from   map[TPState]bool
	to     TPState
}

func tpStates(ss ...TPState) map[TPState]bool {
	m := make(map[TPState]bool, len(ss))
	for _, s := range ss {
		m[s] = true
	}

	return m
}

var tpTable = map[string]tpTransition{
	TPMsgRequest:     {sender: roleConsumer, from: nil, to: TPRequested},
	TPMsgStart:       {sender: roleEither, from: tpStates(TPRequested, TPSuspended), to: TPStarted},
	TPMsgSuspension:  {sender: roleEither, from: tpStates(TPStarted), to: TPSuspended},
	TPMsgCompletion:  {sender: roleEither, from: tpStates(TPStarted, TPSuspended), to: TPCompleted},
	TPMsgTermination: {sender: roleEither, from: tpStates(TPRequested, TPStarted, TPSuspended), to: TPTerminated},
}

// TPResult is the outcome of evaluating a TP transition.
type TPResult struct {
	NextState  TPState
	Idempotent bool
	// SuspenderRole should be persisted as the process's LastSuspenderRole
	// when non-empty, so a subsequent Start can apply the tie-break rule.
	SuspenderRole string
}

// EvaluateTP decides whether msgType, sent by senderRole, is accepted given
// the process's current state and (for a resume Start) the role that sent
// the last Suspension: only the party that suspended (or a peer that
// explicitly yielded, modeled as the same bit) may resume.
func EvaluateTP(senderRole string, currentState TPState, msgType, lastSuspenderRole string) (*TPResult, error) {
	if msgType == TPMsgTermination {
		return evaluateTPTermination(currentState)
	}

	t, ok := tpTable[msgType]
	if !ok {
		return nil, dcerrors.NewNotAllowedf(currentState, "unrecognized message type %q", msgType)
	}

	if t.sender != roleEither && string(t.sender) != senderRole {
		return nil, dcerrors.NewNotAllowedf(currentState, "message %q may only be sent by %s", msgType, t.sender)
	}

	if currentState == "" {
		if t.from != nil {
			return nil, dcerrors.NewNotAllowedf(currentState, "message %q requires an existing process", msgType)
		}

		return &TPResult{NextState: t.to}, nil
	}

	if currentState == TPCompleted || currentState == TPTerminated {
		return nil, dcerrors.NewNotAllowedf(currentState, "process is in terminal state %s", currentState)
	}

	if currentState == t.to {
		return &TPResult{NextState: t.to, Idempotent: true}, nil
	}

	if t.from == nil {
		return nil, dcerrors.NewNotAllowedf(currentState, "message %q requires no existing process", msgType)
	}

	if !t.from[currentState] {
		return nil, dcerrors.NewNotAllowedf(currentState, "message %q is not allowed from state %s", msgType, currentState)
	}

	if msgType == TPMsgStart {
		// The provider starts a requested transfer; a suspended one is resumed
		// only by the party that suspended it (or a peer it yielded to).
		if currentState == TPRequested && senderRole != string(roleProvider) {
			return nil, dcerrors.NewNotAllowedf(currentState, "only the provider may start a requested transfer")
		}

		if currentState == TPSuspended && lastSuspenderRole != "" && lastSuspenderRole != senderRole {
			return nil, dcerrors.NewNotAllowedf(currentState,
				"only the party that suspended (%s) may resume this transfer", lastSuspenderRole)
		}
	}

	result := &TPResult{NextState: t.to}

	if msgType == TPMsgSuspension {
		result.SuspenderRole = senderRole
	}

	return result, nil
}

func evaluateTPTermination(currentState TPState) (*TPResult, error) {
	if currentState == TPCompleted || currentState == TPTerminated {
		if currentState == TPTerminated {
			return &TPResult{NextState: TPTerminated, Idempotent: true}, nil
		}

		return nil, dcerrors.NewNotAllowedf(currentState, "process is in terminal state %s", currentState)
	}

	return &TPResult{NextState: TPTerminated}, nil
}
