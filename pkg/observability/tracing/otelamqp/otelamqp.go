/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package otelamqp wraps a publisher/subscriber so that trace context is
// carried across the message bus: spans are started around every publish
// and receive, and the span context travels in the message metadata.
package otelamqp

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/trustbloc/logutil-go/pkg/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"

	logfields "github.com/trustbloc/dataspace-connector/internal/pkg/log"
	"github.com/trustbloc/dataspace-connector/pkg/observability/tracing"
	"github.com/trustbloc/dataspace-connector/pkg/pubsub/spi"
)

var logger = log.New("otelamqp")

const messagingSystem = "rabbitmq"

type pubSub interface {
	Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error)
	SubscribeWithOpts(ctx context.Context, topic string, opts ...spi.Option) (<-chan *message.Message, error)
	Publish(topic string, messages ...*message.Message) error
	PublishWithOpts(topic string, msg *message.Message, opts ...spi.Option) error
	IsConnected() bool
	Close() error
}

// PubSub decorates an underlying publisher/subscriber with OpenTelemetry
// producer/consumer spans.
type PubSub struct {
	pubSub

	tracer      trace.Tracer
	propagators propagation.TextMapPropagator
}

// New wraps p with tracing.
func New(p pubSub) *PubSub {
	return &PubSub{
		pubSub:      p,
		tracer:      tracing.Tracer(tracing.SubsystemAMQP),
		propagators: otel.GetTextMapPropagator(),
	}
}

// Publish starts a producer span around the publish of a single message.
// A multi-message publish is passed through untraced.
func (p *PubSub) Publish(topic string, messages ...*message.Message) error {
	if len(messages) != 1 {
		if len(messages) > 1 {
			logger.Warn("Tracing supports one message per publish. Publishing without a span.",
				logfields.WithTotal(len(messages)))
		}

		return p.pubSub.Publish(topic, messages...)
	}

	msg := messages[0]

	span := p.startSpan(topic, msg, semconv.MessagingOperationPublish, trace.SpanKindProducer)

	err := p.pubSub.Publish(topic, msg)

	endSpan(span, err)

	return err
}

// PublishWithOpts starts a producer span around the publish.
func (p *PubSub) PublishWithOpts(topic string, msg *message.Message, opts ...spi.Option) error {
	span := p.startSpan(topic, msg, semconv.MessagingOperationPublish, trace.SpanKindProducer)

	err := p.pubSub.PublishWithOpts(topic, msg, opts...)

	endSpan(span, err)

	return err
}

// Subscribe subscribes to topic and starts a consumer span around each
// received message.
func (p *PubSub) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	msgChan, err := p.pubSub.Subscribe(ctx, topic)
	if err != nil {
		return nil, err
	}

	return p.traceReceives(topic, msgChan), nil
}

// SubscribeWithOpts subscribes to topic with the given options and starts a
// consumer span around each received message.
func (p *PubSub) SubscribeWithOpts(ctx context.Context, topic string, opts ...spi.Option) (<-chan *message.Message, error) {
	msgChan, err := p.pubSub.SubscribeWithOpts(ctx, topic, opts...)
	if err != nil {
		return nil, err
	}

	return p.traceReceives(topic, msgChan), nil
}

func (p *PubSub) traceReceives(topic string, msgChan <-chan *message.Message) <-chan *message.Message {
	out := make(chan *message.Message)

	go func() {
		for msg := range msgChan {
			span := p.startSpan(topic, msg, semconv.MessagingOperationReceive, trace.SpanKindConsumer)

			out <- msg

			span.End()
		}

		close(out)
	}()

	return out
}

// startSpan starts a span parented on whatever span context is found in the
// message metadata, and injects the new context back so the other side of
// the bus can continue the trace.
func (p *PubSub) startSpan(topic string, msg *message.Message, op attribute.KeyValue,
	kind trace.SpanKind) trace.Span {
	carrier := NewMessageCarrier(msg)

	ctx := p.propagators.Extract(context.Background(), carrier)

	attrs := []attribute.KeyValue{
		semconv.MessagingSystem(messagingSystem),
		semconv.MessagingDestinationKindQueue,
		semconv.MessagingDestinationName(topic),
		semconv.MessagingMessagePayloadSizeBytes(len(msg.Payload)),
		op,
		tracing.MessageUUIDAttribute(msg.UUID),
	}

	var name string

	if kind == trace.SpanKindProducer {
		name = fmt.Sprintf("%s publish", topic)
	} else {
		name = fmt.Sprintf("%s receive", topic)
	}

	ctx, span := p.tracer.Start(ctx, name,
		trace.WithAttributes(attrs...), trace.WithSpanKind(kind))

	p.propagators.Inject(ctx, carrier)

	return span
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
	}

	span.End()
}

var _ propagation.TextMapCarrier = (*MessageCarrier)(nil)

// MessageCarrier reads and writes trace context on a message's metadata.
type MessageCarrier struct {
	msg *message.Message
}

// NewMessageCarrier returns a carrier over msg's metadata.
func NewMessageCarrier(msg *message.Message) *MessageCarrier {
	return &MessageCarrier{msg: msg}
}

// Get retrieves a single value for a given key.
func (c *MessageCarrier) Get(key string) string {
	return c.msg.Metadata.Get(key)
}

// Set sets a header.
func (c *MessageCarrier) Set(key, val string) {
	c.msg.Metadata.Set(key, val)
}

// Keys returns a slice of all key identifiers in the carrier.
func (c *MessageCarrier) Keys() []string {
	if len(c.msg.Metadata) == 0 {
		return nil
	}

	out := make([]string, 0, len(c.msg.Metadata))

	for key := range c.msg.Metadata {
		out = append(out, key)
	}

	return out
}
