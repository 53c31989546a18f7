/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package amqp

import (
	"context"
	"fmt"
	"reflect"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/trustbloc/dataspace-connector/internal/pkg/log"
)

// pooledSubscriber fans in a pool of broker subscriptions on one topic: each
// pool member holds its own channel to the broker, and whichever member has
// a message ready wins the select. Consumers read from a single merged
// channel.
type pooledSubscriber struct {
	topic  string
	merged chan *message.Message
	pool   []reflect.SelectCase
}

func newPooledSubscriber(ctx context.Context, size int, s subscriber, topic string) (*pooledSubscriber, error) {
	p := &pooledSubscriber{
		topic:  topic,
		merged: make(chan *message.Message, size),
		pool:   make([]reflect.SelectCase, size),
	}

	for i := range p.pool {
		logger.Debug("Subscribing to topic...", log.WithTopic(topic), log.WithIndex(i))

		msgChan, err := s.Subscribe(ctx, topic)
		if err != nil {
			return nil, fmt.Errorf("subscribe to topic [%s]: %w", topic, err)
		}

		p.pool[i] = reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(msgChan)}
	}

	return p, nil
}

func (s *pooledSubscriber) start() {
	go s.fanIn()
}

func (s *pooledSubscriber) fanIn() {
	logger.Info("Started pooled subscriber", log.WithTopic(s.topic), log.WithSize(len(s.pool)))

	for {
		i, value, ok := reflect.Select(s.pool)
		if !ok {
			logger.Info("Message channel was closed. Exiting pooled subscriber.",
				log.WithTopic(s.topic), log.WithIndex(i))

			return
		}

		msg := value.Interface().(*message.Message) //nolint:forcetypeassert

		logger.Debug("Pool subscriber got message", log.WithTopic(s.topic),
			log.WithIndex(i), log.WithMessageID(msg.UUID))

		s.merged <- msg
	}
}

func (s *pooledSubscriber) stop() {
	logger.Info("Closing pooled subscriber", log.WithTopic(s.topic))

	close(s.merged)
}
