/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package mempubsub

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/require"

	"github.com/trustbloc/dataspace-connector/pkg/lifecycle"
	"github.com/trustbloc/dataspace-connector/pkg/pubsub/spi"
)

func TestPubSub_PublishSubscribe(t *testing.T) {
	ps := New(DefaultConfig())
	require.True(t, ps.IsConnected())

	msgChan, err := ps.Subscribe(context.Background(), "topic-a")
	require.NoError(t, err)

	require.NoError(t, ps.Publish("topic-a", message.NewMessage("m1", []byte("hello"))))

	select {
	case msg := <-msgChan:
		require.Equal(t, "m1", msg.UUID)
		require.Equal(t, "hello", string(msg.Payload))

		msg.Ack()
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for message")
	}

	require.NoError(t, ps.Close())
}

func TestPubSub_NackGoesToUndeliverable(t *testing.T) {
	ps := New(DefaultConfig())
	defer func() {
		require.NoError(t, ps.Close())
	}()

	undeliverableChan, err := ps.Subscribe(context.Background(), spi.UndeliverableTopic)
	require.NoError(t, err)

	msgChan, err := ps.SubscribeWithOpts(context.Background(), "topic-b")
	require.NoError(t, err)

	require.NoError(t, ps.PublishWithOpts("topic-b", message.NewMessage("m2", []byte("payload"))))

	select {
	case msg := <-msgChan:
		msg.Nack()
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for message")
	}

	select {
	case msg := <-undeliverableChan:
		require.Equal(t, "m2", msg.UUID)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for undeliverable message")
	}
}

func TestPubSub_NotStarted(t *testing.T) {
	ps := New(DefaultConfig())
	require.NoError(t, ps.Close())

	_, err := ps.Subscribe(context.Background(), "topic-c")
	require.ErrorIs(t, err, lifecycle.ErrNotStarted)

	err = ps.Publish("topic-c", message.NewMessage("m3", nil))
	require.ErrorIs(t, err, lifecycle.ErrNotStarted)
}
