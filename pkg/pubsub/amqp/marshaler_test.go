/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package amqp

import (
	"testing"

	"github.com/ThreeDotsLabs/watermill/message"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/require"
)

func TestMarshaler_RoundTrip(t *testing.T) {
	m := marshaler{}

	msg := message.NewMessage("msg-1", []byte("payload"))
	msg.Metadata.Set("traceparent", "00-abc-def-01")

	publishing, err := m.Marshal(msg)
	require.NoError(t, err)
	require.Equal(t, amqp.Persistent, publishing.DeliveryMode)
	require.Equal(t, "msg-1", publishing.Headers[messageUUIDHeaderKey])

	out, err := m.Unmarshal(amqp.Delivery{Body: publishing.Body, Headers: publishing.Headers})
	require.NoError(t, err)
	require.Equal(t, "msg-1", out.UUID)
	require.Equal(t, "payload", string(out.Payload))
	require.Equal(t, "00-abc-def-01", out.Metadata.Get("traceparent"))
}

func TestMarshaler_BadUUIDHeader(t *testing.T) {
	m := marshaler{}

	_, err := m.Unmarshal(amqp.Delivery{Headers: amqp.Table{messageUUIDHeaderKey: 42}})
	require.Error(t, err)
}

func TestMarshaler_NonStringHeader(t *testing.T) {
	m := marshaler{}

	_, err := m.Unmarshal(amqp.Delivery{Headers: amqp.Table{
		messageUUIDHeaderKey: "msg-2",
		"count":              7,
	}})
	require.Error(t, err)
}
