/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package statemachine

import (
	"testing"

	"github.com/stretchr/testify/require"

	dcerrors "github.com/trustbloc/dataspace-connector/pkg/errors"
)

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name       string
		from       State
		event      Event
		to         State
		idempotent bool
		notAllowed bool
	}{
		{name: "create", from: "", event: EventRequested, to: Processing},
		{name: "AS responded", from: Processing, event: EventASResponded, to: Pending},
		{name: "continued", from: Pending, event: EventContinued, to: Approved},
		{name: "hash mismatch", from: Pending, event: EventHashMismatch, to: Denied},
		{name: "continuation failed", from: Pending, event: EventContinuationFailed, to: Denied},
		{name: "replayed AS response", from: Pending, event: EventASResponded, idempotent: true, to: Pending},
		{name: "continue before pending", from: Processing, event: EventContinued, notAllowed: true},
		{name: "request on existing grant", from: Processing, event: EventRequested, notAllowed: true},
		{name: "approved is terminal", from: Approved, event: EventContinued, notAllowed: true},
		{name: "denied is terminal", from: Denied, event: EventContinued, notAllowed: true},
		{name: "unknown event", from: Pending, event: "bogus", notAllowed: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result, err := Evaluate(tc.from, tc.event)

			if tc.notAllowed {
				require.True(t, dcerrors.IsNotAllowed(err))
				return
			}

			require.NoError(t, err)
			require.Equal(t, tc.to, result.NextState)
			require.Equal(t, tc.idempotent, result.Idempotent)
		})
	}
}
