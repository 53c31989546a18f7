/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package log

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/trustbloc/logutil-go/pkg/log"
)

func TestStandardFields(t *testing.T) {
	const module = "test_module"

	u1 := parseURL(t, "https://provider.example.com/negotiations/request")

	t.Run("json fields", func(t *testing.T) {
		stdOut := newMockWriter()

		logger := log.New(module, log.WithStdOut(stdOut), log.WithEncoding(log.JSON))

		logger.Info("Handled message",
			WithProcessID("urn:uuid:cn-1"), WithProviderPID("urn:uuid:p1"), WithConsumerPID("urn:uuid:c1"),
			WithGrantID("urn:uuid:g1"), WithInteractRef("ref-1"),
			WithMessageType(stringer("dspace:ContractAgreementMessage")),
			WithFromState(stringer("REQUESTED")), WithToState(stringer("AGREED")),
			WithDirection(stringer("outbound")), WithCallbackAddress(u1.String()),
			WithParticipant("urn:uuid:participant-1"), WithAgreementID("urn:uuid:agreement-1"),
			WithSessionID("urn:uuid:p1"), WithSubscriberID("sub-1"), WithCategory("negotiation"),
			WithOperation("Agreement"), WithRetryCount(2), WithHash("abc123"),
			WithDuration(250*time.Millisecond), WithHTTPStatus(http.StatusOK),
			WithRequestURL(u1), WithRequestBody([]byte(`{"a":1}`)), WithResponse([]byte(`{"ok":true}`)),
			WithParameter("agreementId"), WithConfig(&mockObject{Field1: "v", Field2: 1}),
		)

		l := unmarshalLogData(t, stdOut.Bytes())

		require.Equal(t, `Handled message`, l.Msg)
		require.Equal(t, "urn:uuid:cn-1", l.ProcessID)
		require.Equal(t, "urn:uuid:p1", l.ProviderPID)
		require.Equal(t, "urn:uuid:c1", l.ConsumerPID)
		require.Equal(t, "urn:uuid:g1", l.GrantID)
		require.Equal(t, "ref-1", l.InteractRef)
		require.Equal(t, "dspace:ContractAgreementMessage", l.MessageType)
		require.Equal(t, "REQUESTED", l.FromState)
		require.Equal(t, "AGREED", l.ToState)
		require.Equal(t, "outbound", l.Direction)
		require.Equal(t, u1.String(), l.CallbackAddress)
		require.Equal(t, "urn:uuid:participant-1", l.Participant)
		require.Equal(t, "urn:uuid:agreement-1", l.AgreementID)
		require.Equal(t, "urn:uuid:p1", l.SessionID)
		require.Equal(t, "sub-1", l.SubscriberID)
		require.Equal(t, "negotiation", l.Category)
		require.Equal(t, "Agreement", l.Operation)
		require.Equal(t, 2, l.RetryCount)
		require.Equal(t, "abc123", l.Hash)
		require.Equal(t, "250ms", l.Duration)
		require.Equal(t, http.StatusOK, l.HTTPStatus)
		require.Equal(t, u1.String(), l.RequestURL)
		require.Equal(t, `{"a":1}`, l.RequestBody)
		require.Equal(t, `{"ok":true}`, l.Response)
		require.Equal(t, "agreementId", l.Parameter)
		require.NotNil(t, l.Config)
	})
}

type stringerValue string

func (s stringerValue) String() string { return string(s) }

func stringer(s string) stringerValue { return stringerValue(s) }

type mockObject struct {
	Field1 string `json:"field1"`
	Field2 int    `json:"field2"`
}

type logData struct {
	Msg   string `json:"msg"`
	Error string `json:"error"`

	ProcessID       string      `json:"process-id"`
	ProviderPID     string      `json:"provider-pid"`
	ConsumerPID     string      `json:"consumer-pid"`
	GrantID         string      `json:"grant-id"`
	InteractRef     string      `json:"interact-ref"`
	MessageType     string      `json:"message-type"`
	FromState       string      `json:"from-state"`
	ToState         string      `json:"to-state"`
	Direction       string      `json:"direction"`
	CallbackAddress string      `json:"callback-address"`
	Participant     string      `json:"participant"`
	AgreementID     string      `json:"agreement-id"`
	SessionID       string      `json:"session-id"`
	SubscriberID    string      `json:"subscriber-id"`
	Category        string      `json:"category"`
	Operation       string      `json:"operation"`
	RetryCount      int         `json:"retry-count"`
	Hash            string      `json:"hash"`
	Duration        string      `json:"duration"`
	HTTPStatus      int         `json:"http-status"`
	RequestURL      string      `json:"request-url"`
	RequestBody     string      `json:"request-body"`
	Response        string      `json:"response"`
	Parameter       string      `json:"parameter"`
	Config          *mockObject `json:"config"`
}

func unmarshalLogData(t *testing.T, b []byte) *logData {
	t.Helper()

	l := &logData{}

	require.NoError(t, json.Unmarshal(b, l))

	return l
}

func parseURL(t *testing.T, raw string) *url.URL {
	t.Helper()

	u, err := url.Parse(raw)
	require.NoError(t, err)

	return u
}

type mockWriter struct {
	*bytes.Buffer
}

func (m *mockWriter) Sync() error {
	return nil
}

func newMockWriter() *mockWriter {
	return &mockWriter{Buffer: bytes.NewBuffer(nil)}
}
