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

func TestEvaluateTP_HappyPathPull(t *testing.T) {
	r, err := EvaluateTP("CONSUMER", "", TPMsgRequest, "")
	require.NoError(t, err)
	require.Equal(t, TPRequested, r.NextState)

	r, err = EvaluateTP("PROVIDER", TPRequested, TPMsgStart, "")
	require.NoError(t, err)
	require.Equal(t, TPStarted, r.NextState)

	r, err = EvaluateTP("CONSUMER", TPStarted, TPMsgCompletion, "")
	require.NoError(t, err)
	require.Equal(t, TPCompleted, r.NextState)
}

func TestEvaluateTP_SuspendResume(t *testing.T) {
	r, err := EvaluateTP("CONSUMER", TPStarted, TPMsgSuspension, "")
	require.NoError(t, err)
	require.Equal(t, TPSuspended, r.NextState)
	require.Equal(t, "CONSUMER", r.SuspenderRole)

	r, err = EvaluateTP("CONSUMER", TPSuspended, TPMsgStart, "CONSUMER")
	require.NoError(t, err)
	require.Equal(t, TPStarted, r.NextState)
}

func TestEvaluateTP_ResumeTieBreak(t *testing.T) {
	_, err := EvaluateTP("PROVIDER", TPSuspended, TPMsgStart, "CONSUMER")
	require.True(t, dcerrors.IsNotAllowed(err))
}

func TestEvaluateTP_WrongRole(t *testing.T) {
	_, err := EvaluateTP("PROVIDER", "", TPMsgRequest, "")
	require.True(t, dcerrors.IsNotAllowed(err))

	_, err = EvaluateTP("CONSUMER", TPRequested, TPMsgStart, "")
	require.True(t, dcerrors.IsNotAllowed(err))
}

func TestEvaluateTP_TerminalIsAbsorbing(t *testing.T) {
	_, err := EvaluateTP("PROVIDER", TPCompleted, TPMsgStart, "")
	require.True(t, dcerrors.IsNotAllowed(err))

	r, err := EvaluateTP("CONSUMER", TPTerminated, TPMsgTermination, "")
	require.NoError(t, err)
	require.True(t, r.Idempotent)
}

func TestEvaluateTP_IdempotentReplay(t *testing.T) {
	r, err := EvaluateTP("CONSUMER", TPRequested, TPMsgRequest, "")
	require.NoError(t, err)
	require.True(t, r.Idempotent)
}
