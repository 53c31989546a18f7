/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package log

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/trustbloc/logutil-go/pkg/log"
)

func TestCommonLogs(t *testing.T) {
	const module = "test_module"

	t.Run("InvalidParameterValue", func(t *testing.T) {
		stdErr := newMockWriter()

		logger := log.New(module, log.WithStdErr(stdErr), log.WithEncoding(log.Console))

		InvalidParameterValue(logger, "agreementId", errors.New("invalid urn"))

		require.Contains(t, stdErr.Buffer.String(), `Invalid parameter value`)
		require.Contains(t, stdErr.Buffer.String(), `"parameter": "agreementId"`)
		require.Contains(t, stdErr.Buffer.String(), `"error": "invalid urn"`)
		require.Contains(t, stdErr.Buffer.String(), "log/common_test.go")
	})

	t.Run("CloseIteratorError", func(t *testing.T) {
		stdOut := newMockWriter()

		logger := log.New(module, log.WithStdOut(stdOut), log.WithEncoding(log.Console))

		CloseIteratorError(logger, errors.New("iterator error"))

		require.Contains(t, stdOut.Buffer.String(), `Error closing iterator`)
		require.Contains(t, stdOut.Buffer.String(), `"error": "iterator error"`)
	})

	t.Run("CloseResponseBodyError", func(t *testing.T) {
		stdOut := newMockWriter()

		logger := log.New(module, log.WithStdOut(stdOut), log.WithEncoding(log.Console))

		CloseResponseBodyError(logger, errors.New("response body error"))

		require.Contains(t, stdOut.Buffer.String(), `Error closing response body`)
		require.Contains(t, stdOut.Buffer.String(), `"error": "response body error"`)
	})

	t.Run("WriteResponseBodyError", func(t *testing.T) {
		stdErr := newMockWriter()

		logger := log.New(module, log.WithStdErr(stdErr), log.WithEncoding(log.Console))

		WriteResponseBodyError(logger, errors.New("response body error"))

		require.Contains(t, stdErr.Buffer.String(), `Error writing response body`)
	})

	t.Run("ReadRequestBodyError", func(t *testing.T) {
		stdErr := newMockWriter()

		logger := log.New(module, log.WithStdErr(stdErr), log.WithEncoding(log.Console))

		ReadRequestBodyError(logger, errors.New("request body error"))

		require.Contains(t, stdErr.Buffer.String(), `Error reading request body`)
	})

	t.Run("WroteResponse", func(t *testing.T) {
		log.SetLevel(module, log.DEBUG)

		stdOut := newMockWriter()

		logger := log.New(module, log.WithStdOut(stdOut), log.WithEncoding(log.Console))

		WroteResponse(logger, []byte("some response"))

		require.Contains(t, stdOut.Buffer.String(), `Wrote response`)
		require.Contains(t, stdOut.Buffer.String(), `"response": "some response"`)
	})

	t.Run("OutboundCallFailed", func(t *testing.T) {
		stdErr := newMockWriter()

		logger := log.New(module, log.WithStdErr(stdErr), log.WithEncoding(log.Console))

		OutboundCallFailed(logger, "urn:uuid:cn-1", "https://consumer.example.com/negotiations/offers",
			errors.New("connection refused"))

		require.Contains(t, stdErr.Buffer.String(), `Outbound call to peer failed`)
		require.Contains(t, stdErr.Buffer.String(), `"process-id": "urn:uuid:cn-1"`)
	})

	t.Run("TransitionRejected", func(t *testing.T) {
		stdOut := newMockWriter()

		logger := log.New(module, log.WithStdOut(stdOut), log.WithEncoding(log.Console))

		TransitionRejected(logger, "urn:uuid:cn-1", stringer("AGREED"), stringer("dspace:ContractRequestMessage"),
			errors.New("not allowed"))

		require.Contains(t, stdOut.Buffer.String(), `State transition rejected`)
	})
}
