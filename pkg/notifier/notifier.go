/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package notifier fans committed state-change events out to registered
// subscribers. Events ride a publisher/subscriber bus (in-memory or AMQP) so
// that any instance in a cluster may perform the fan-out; each delivery is
// persisted as a Pending notification first and retried by a background
// sweep until it succeeds.
package notifier

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/cenkalti/backoff/v4"

	"github.com/trustbloc/dataspace-connector/pkg/lifecycle"
	"github.com/trustbloc/dataspace-connector/pkg/observability/metrics"
	"github.com/trustbloc/dataspace-connector/pkg/pubsub"
	"github.com/trustbloc/dataspace-connector/pkg/pubsub/spi"
	"github.com/trustbloc/dataspace-connector/pkg/store/notification"
	"github.com/trustbloc/dataspace-connector/pkg/store/subscription"

	"github.com/trustbloc/dataspace-connector/internal/pkg/log"
)

var logger = log.New("notifier")

// eventTopic is the bus topic state-change events are published to.
const eventTopic = "dataspace-events"

// Event is the broadcast payload delivered to subscriber callbacks.
type Event struct {
	Category       string `json:"category"`
	Subcategory    string `json:"subcategory"`
	MessageType    string `json:"messageType"`
	MessageContent []byte `json:"messageContent"`
	Operation      string `json:"operation"`
}

type poster interface {
	Post(ctx context.Context, targetURL, bearerToken string, body []byte) ([]byte, error)
}

// PubSub is the event-bus contract the notifier rides on, satisfied by the
// in-memory and AMQP implementations in pkg/pubsub.
type PubSub interface {
	SubscribeWithOpts(ctx context.Context, topic string, opts ...spi.Option) (<-chan *message.Message, error)
	PublishWithOpts(topic string, msg *message.Message, opts ...spi.Option) error
}

// Notifier fans out committed state-change events to subscribers.
type Notifier struct {
	*lifecycle.Lifecycle

	bus      PubSub
	subs     *subscription.Store
	backlog  *notification.Store
	client   poster
	metrics  metrics.Metrics
	sweep    time.Duration
	poolSize uint
	done     chan struct{}
}

// Option configures a Notifier.
type Option func(n *Notifier)

// WithSweepInterval overrides the default background-sweep period.
func WithSweepInterval(d time.Duration) Option {
	return func(n *Notifier) { n.sweep = d }
}

// WithSubscriberPoolSize overrides the number of bus consumers feeding the
// fan-out.
func WithSubscriberPoolSize(size uint) Option {
	return func(n *Notifier) { n.poolSize = size }
}

const (
	defaultSweepInterval = 30 * time.Second
	defaultPoolSize      = 5
)

// New returns a Notifier riding on bus. Call Start to subscribe to the event
// topic and begin the background sweep.
func New(bus PubSub, subs *subscription.Store, backlog *notification.Store, client poster,
	m metrics.Metrics, opts ...Option) *Notifier {
	n := &Notifier{
		bus:      bus,
		subs:     subs,
		backlog:  backlog,
		client:   client,
		metrics:  m,
		sweep:    defaultSweepInterval,
		poolSize: defaultPoolSize,
		done:     make(chan struct{}),
	}

	for _, opt := range opts {
		opt(n)
	}

	n.Lifecycle = lifecycle.New("notifier", lifecycle.WithStart(n.start), lifecycle.WithStop(n.stop))

	return n
}

func (n *Notifier) start() {
	msgChan, err := n.bus.SubscribeWithOpts(context.Background(), eventTopic, spi.WithPool(n.poolSize))
	if err != nil {
		// The bus is wired at startup; a subscribe failure means the service
		// cannot perform one of its core duties.
		panic(err)
	}

	go n.listen(msgChan)
	go n.sweepLoop()
}

func (n *Notifier) stop() {
	close(n.done)
}

// Notify publishes a state-change event to the bus. Satisfies the
// orchestrator's Notifier collaborator contract.
func (n *Notifier) Notify(category, subcategory, messageType string, messageContent []byte, operation string) {
	event := Event{
		Category:       category,
		Subcategory:    subcategory,
		MessageType:    messageType,
		MessageContent: messageContent,
		Operation:      operation,
	}

	payload, err := json.Marshal(event)
	if err != nil {
		logger.Warn("failed to marshal event", log.WithCategory(category), log.WithError(err))
		return
	}

	msg := pubsub.NewMessage(context.Background(), payload)

	if err := n.bus.PublishWithOpts(eventTopic, msg); err != nil {
		logger.Warn("failed to publish event", log.WithCategory(category), log.WithError(err))
	}
}

func (n *Notifier) listen(msgChan <-chan *message.Message) {
	for msg := range msgChan {
		n.handle(msg)
	}
}

// handle persists a Pending notification per active subscription for the
// event's category and attempts immediate delivery. Delivery failures are
// absorbed; the notification stays Pending for the sweep to retry.
func (n *Notifier) handle(msg *message.Message) {
	defer msg.Ack()

	var event Event

	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		logger.Warn("failed to unmarshal event", log.WithMessageID(msg.UUID), log.WithError(err))
		return
	}

	subs, err := n.subs.ActiveForCategory(event.Category)
	if err != nil {
		logger.Warn("failed to list subscribers for category", log.WithCategory(event.Category), log.WithError(err))
		return
	}

	ctx := pubsub.ContextFromMessage(msg)

	for _, sub := range subs {
		notif, err := n.backlog.Enqueue(sub.ID, event.Category, event.Subcategory, event.MessageType,
			event.MessageContent, event.Operation)
		if err != nil {
			logger.Warn("failed to enqueue notification", log.WithSubscriberID(sub.ID), log.WithError(err))
			continue
		}

		if err := n.deliver(ctx, sub, notif); err != nil {
			logger.Debug("notification delivery failed, will retry on next sweep",
				log.WithSubscriberID(sub.ID), log.WithError(err))
		}
	}
}

func (n *Notifier) deliver(ctx context.Context, sub *subscription.Subscription,
	notif *notification.Notification) error {
	event := Event{
		Category:       notif.Category,
		Subcategory:    notif.Subcategory,
		MessageType:    notif.MessageType,
		MessageContent: notif.MessageContent,
		Operation:      notif.Operation,
	}

	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	startTime := time.Now()

	_, err = n.client.Post(ctx, sub.CallbackAddress, "", body)

	n.metrics.NotificationDeliveryTime(time.Since(startTime))

	if err != nil {
		if mErr := n.backlog.MarkRetry(notif.ID); mErr != nil {
			logger.Warn("failed to record retry", log.WithSubscriberID(sub.ID), log.WithError(mErr))
		}

		return err
	}

	return n.backlog.MarkDelivered(notif.ID)
}

func (n *Notifier) sweepLoop() {
	ticker := time.NewTicker(n.sweep)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			n.drainPending()
		case <-n.done:
			return
		}
	}
}

// drainPending retries everything still Pending, covering both delivery
// failures and a crash between enqueue and the inline attempt.
func (n *Notifier) drainPending() {
	pending, err := n.backlog.Pending()
	if err != nil {
		logger.Warn("failed to list pending notifications", log.WithError(err))
		return
	}

	n.metrics.NotificationBacklogSize(float64(len(pending)))

	for _, notif := range pending {
		sub, err := n.subs.Get(notif.SubscriptionID)
		if err != nil {
			logger.Debug("subscription for pending notification no longer exists",
				log.WithSubscriberID(notif.SubscriptionID), log.WithError(err))
			continue
		}

		n.metrics.NotificationRetry()

		b := backoff.NewExponentialBackOff()
		b.InitialInterval = 500 * time.Millisecond
		b.MaxElapsedTime = 5 * time.Second

		notif := notif

		if err := backoff.Retry(func() error {
			return n.deliver(context.Background(), sub, notif)
		}, b); err != nil {
			logger.Debug("notification still undeliverable, leaving in backlog",
				log.WithSubscriberID(sub.ID), log.WithError(err))
		}
	}
}
