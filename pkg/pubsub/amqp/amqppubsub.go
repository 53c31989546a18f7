/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package amqp implements a publisher/subscriber backed by an
// AMQP-compatible message broker, on top of the Watermill AMQP adapter.
package amqp

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	wamqp "github.com/ThreeDotsLabs/watermill-amqp/v2/pkg/amqp"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/cenkalti/backoff/v4"

	dcerrors "github.com/trustbloc/dataspace-connector/pkg/errors"
	"github.com/trustbloc/dataspace-connector/pkg/lifecycle"
	"github.com/trustbloc/dataspace-connector/pkg/pubsub/spi"
	"github.com/trustbloc/dataspace-connector/pkg/pubsub/wmlogger"

	"github.com/trustbloc/dataspace-connector/internal/pkg/log"
)

const loggerModule = "pubsub"

var logger = log.New(loggerModule)

const (
	defaultMaxConnectRetries     = 25
	defaultMaxConnectInterval    = 5 * time.Second
	defaultMaxConnectElapsedTime = 3 * time.Minute
)

// Config holds the configuration for the AMQP publisher/subscriber.
type Config struct {
	// URI is the broker connection string (amqp://...).
	URI string

	// ServiceName suffixes the durable queue names so that multiple services
	// sharing a broker each get their own queue per topic.
	ServiceName string

	// MaxConnectRetries is the number of connection attempts made before
	// giving up at startup.
	MaxConnectRetries int

	// PublisherChannelPoolSize is the number of channels the publisher keeps
	// open on its connection.
	PublisherChannelPoolSize int
}

type subscriber interface {
	Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error)
	Close() error
}

type publisher interface {
	Publish(topic string, messages ...*message.Message) error
	Close() error
}

// PubSub implements a publisher/subscriber connected to an AMQP-compatible
// message broker.
type PubSub struct {
	*lifecycle.Lifecycle
	Config

	amqpConfig wamqp.Config
	conn       *wamqp.ConnectionWrapper
	subscriber subscriber
	publisher  publisher
	pools      []*pooledSubscriber
	mutex      sync.RWMutex
}

// New returns a new AMQP publisher/subscriber. The connection is established
// immediately, with retries; New panics if the broker cannot be reached
// within the configured bounds, since nothing downstream can function
// without the bus.
func New(cfg Config) *PubSub {
	if cfg.MaxConnectRetries == 0 {
		cfg.MaxConnectRetries = defaultMaxConnectRetries
	}

	amqpConfig := wamqp.NewDurablePubSubConfig(cfg.URI,
		wamqp.GenerateQueueNameTopicNameWithSuffix(cfg.ServiceName))

	amqpConfig.Publish.ChannelPoolSize = cfg.PublisherChannelPoolSize
	amqpConfig.Marshaler = marshaler{}

	p := &PubSub{
		Config:     cfg,
		amqpConfig: amqpConfig,
	}

	p.Lifecycle = lifecycle.New("amqp",
		lifecycle.WithStart(p.start),
		lifecycle.WithStop(p.stop))

	// Start the service immediately.
	p.Start()

	return p
}

func (p *PubSub) start() {
	logger.Info("Connecting to message broker", log.WithServiceEndpoint(extractEndpoint(p.URI)))

	err := backoff.RetryNotify(
		p.connect,
		backoff.WithMaxRetries(newConnectBackOff(), uint64(p.MaxConnectRetries)),
		func(err error, duration time.Duration) {
			logger.Debug("Error connecting to message broker. Retrying...",
				log.WithServiceEndpoint(extractEndpoint(p.URI)), log.WithDuration(duration), log.WithError(err))
		},
	)
	if err != nil {
		panic(fmt.Sprintf("unable to connect to message broker after %d attempts: %s", p.MaxConnectRetries, err))
	}

	logger.Info("Connected to message broker", log.WithServiceEndpoint(extractEndpoint(p.URI)))
}

func (p *PubSub) connect() error {
	conn, err := wamqp.NewConnection(wamqp.ConnectionConfig{AmqpURI: p.URI}, wmlogger.New())
	if err != nil {
		return fmt.Errorf("connect to %s: %w", extractEndpoint(p.URI), err)
	}

	sub, err := wamqp.NewSubscriberWithConnection(p.amqpConfig, wmlogger.New(), conn)
	if err != nil {
		return fmt.Errorf("create subscriber: %w", err)
	}

	pub, err := wamqp.NewPublisherWithConnection(p.amqpConfig, wmlogger.New(), conn)
	if err != nil {
		return fmt.Errorf("create publisher: %w", err)
	}

	p.conn = conn
	p.subscriber = sub
	p.publisher = pub

	return nil
}

func (p *PubSub) stop() {
	if err := p.publisher.Close(); err != nil {
		logger.Warn("Error closing publisher", log.WithError(err))
	}

	if err := p.subscriber.Close(); err != nil {
		logger.Warn("Error closing subscriber", log.WithError(err))
	}

	if err := p.conn.Close(); err != nil {
		logger.Warn("Error closing connection", log.WithError(err))
	}

	p.mutex.RLock()
	defer p.mutex.RUnlock()

	for _, s := range p.pools {
		s.stop()
	}
}

// Close stops the publisher/subscriber.
func (p *PubSub) Close() error {
	p.Stop()

	return nil
}

// IsConnected reports whether the underlying AMQP connection is up.
func (p *PubSub) IsConnected() bool {
	return p.conn != nil && p.conn.IsConnected()
}

// Subscribe subscribes to a topic and returns the Go channel over which
// messages are sent. The returned channel is closed when Close() is called.
func (p *PubSub) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	return p.SubscribeWithOpts(ctx, topic)
}

// SubscribeWithOpts subscribes to a topic using the given options. With a
// pool size greater than one, multiple AMQP consumers feed a single Go
// channel, increasing throughput on a busy topic.
func (p *PubSub) SubscribeWithOpts(ctx context.Context, topic string, opts ...spi.Option) (<-chan *message.Message, error) {
	if p.State() != lifecycle.StateStarted {
		return nil, lifecycle.ErrNotStarted
	}

	options := &spi.Options{}

	for _, opt := range opts {
		opt(options)
	}

	if options.PoolSize <= 1 {
		logger.Debug("Subscribing to topic", log.WithTopic(topic))

		return p.subscriber.Subscribe(ctx, topic)
	}

	logger.Debug("Creating subscriber pool for topic", log.WithTopic(topic), log.WithSize(int(options.PoolSize)))

	pool, err := newPooledSubscriber(ctx, int(options.PoolSize), p.subscriber, topic)
	if err != nil {
		return nil, fmt.Errorf("subscriber pool: %w", err)
	}

	p.mutex.Lock()
	p.pools = append(p.pools, pool)
	p.mutex.Unlock()

	pool.start()

	return pool.merged, nil
}

// Publish publishes the given messages to the given topic.
func (p *PubSub) Publish(topic string, messages ...*message.Message) error {
	if p.State() != lifecycle.StateStarted {
		return lifecycle.ErrNotStarted
	}

	if err := p.publisher.Publish(topic, messages...); err != nil {
		return dcerrors.NewTransientf("publish messages to topic [%s]: %w", topic, err)
	}

	return nil
}

// PublishWithOpts simply calls Publish since options are not supported.
func (p *PubSub) PublishWithOpts(topic string, msg *message.Message, _ ...spi.Option) error {
	return p.Publish(topic, msg)
}

func newConnectBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.MaxInterval = defaultMaxConnectInterval
	b.MaxElapsedTime = defaultMaxConnectElapsedTime

	return b
}

// extractEndpoint strips credentials from the broker URI for logging.
func extractEndpoint(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return ""
	}

	return fmt.Sprintf("%s://%s%s", u.Scheme, u.Host, u.Path)
}
