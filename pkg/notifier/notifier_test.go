/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hyperledger/aries-framework-go/component/storageutil/mem"
	"github.com/stretchr/testify/require"

	"github.com/trustbloc/dataspace-connector/pkg/observability/metrics/noop"
	"github.com/trustbloc/dataspace-connector/pkg/pubsub/mempubsub"
	"github.com/trustbloc/dataspace-connector/pkg/store/notification"
	"github.com/trustbloc/dataspace-connector/pkg/store/subscription"
)

type capturingPoster struct {
	mu       sync.Mutex
	calls    []string
	bodies   [][]byte
	failNext bool
}

func (p *capturingPoster) Post(_ context.Context, targetURL, _ string, body []byte) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.failNext {
		p.failNext = false

		return nil, errors.New("injected delivery failure")
	}

	p.calls = append(p.calls, targetURL)
	p.bodies = append(p.bodies, body)

	return []byte("{}"), nil
}

func (p *capturingPoster) deliveries() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]string(nil), p.calls...)
}

func newNotifier(t *testing.T, poster *capturingPoster, opts ...Option) (*Notifier, *subscription.Store, *notification.Store) {
	t.Helper()

	provider := mem.NewProvider()

	subs, err := subscription.New(provider)
	require.NoError(t, err)

	backlog, err := notification.New(provider)
	require.NoError(t, err)

	bus := mempubsub.New(mempubsub.DefaultConfig())

	t.Cleanup(func() {
		require.NoError(t, bus.Close())
	})

	n := New(bus, subs, backlog, poster, noop.NewProvider().Metrics(), opts...)

	return n, subs, backlog
}

func TestNotify_DeliversToSubscribers(t *testing.T) {
	poster := &capturingPoster{}

	n, subs, _ := newNotifier(t, poster)

	_, err := subs.Create("https://subscriber.example.com/events", []string{"contract-negotiation"}, time.Time{})
	require.NoError(t, err)

	n.Start()
	defer n.Stop()

	n.Notify("contract-negotiation", "REQUESTED", "request-initial", []byte(`{}`), "transition")

	require.Eventually(t, func() bool {
		return len(poster.deliveries()) == 1
	}, 5*time.Second, 50*time.Millisecond)

	var event Event

	poster.mu.Lock()
	require.NoError(t, json.Unmarshal(poster.bodies[0], &event))
	poster.mu.Unlock()

	require.Equal(t, "contract-negotiation", event.Category)
	require.Equal(t, "REQUESTED", event.Subcategory)
}

func TestNotify_NoSubscribersForCategory(t *testing.T) {
	poster := &capturingPoster{}

	n, subs, backlog := newNotifier(t, poster)

	_, err := subs.Create("https://subscriber.example.com/events", []string{"transfer-process"}, time.Time{})
	require.NoError(t, err)

	n.Start()
	defer n.Stop()

	n.Notify("contract-negotiation", "REQUESTED", "request-initial", []byte(`{}`), "transition")

	time.Sleep(300 * time.Millisecond)

	require.Empty(t, poster.deliveries())

	pending, err := backlog.Pending()
	require.NoError(t, err)
	require.Empty(t, pending)
}

func TestNotify_FailedDeliveryRetriedBySweep(t *testing.T) {
	poster := &capturingPoster{failNext: true}

	n, subs, backlog := newNotifier(t, poster, WithSweepInterval(100*time.Millisecond))

	_, err := subs.Create("https://subscriber.example.com/events", []string{"transfer-process"}, time.Time{})
	require.NoError(t, err)

	n.Start()
	defer n.Stop()

	n.Notify("transfer-process", "STARTED", "start", []byte(`{}`), "transition")

	// The first attempt fails; the sweep redelivers and the notification is
	// marked delivered.
	require.Eventually(t, func() bool {
		return len(poster.deliveries()) == 1
	}, 5*time.Second, 50*time.Millisecond)

	require.Eventually(t, func() bool {
		pending, err := backlog.Pending()
		require.NoError(t, err)

		return len(pending) == 0
	}, 5*time.Second, 50*time.Millisecond)
}

func TestNotify_ExpiredSubscriptionSkipped(t *testing.T) {
	poster := &capturingPoster{}

	n, subs, _ := newNotifier(t, poster)

	_, err := subs.Create("https://subscriber.example.com/events", []string{"transfer-process"},
		time.Now().Add(-time.Hour))
	require.NoError(t, err)

	n.Start()
	defer n.Stop()

	n.Notify("transfer-process", "STARTED", "start", []byte(`{}`), "transition")

	time.Sleep(300 * time.Millisecond)

	require.Empty(t, poster.deliveries())
}
