/*
MIT License

Copyright (c) 2019 Three Dots Labs

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in all
copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
SOFTWARE.
*/

/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package amqp

import (
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	amqp "github.com/rabbitmq/amqp091-go"
)

const messageUUIDHeaderKey = "_watermill_message_uuid"

// marshaler is a modified version of the default marshaller in
// watermill-amqp: messages are published persistent, and every metadata
// entry (including the OpenTelemetry trace context injected by the otelamqp
// wrapper) rides in the AMQP headers.
type marshaler struct{}

// Marshal marshals a message into an AMQP publishing.
func (marshaler) Marshal(msg *message.Message) (amqp.Publishing, error) {
	headers := make(amqp.Table, len(msg.Metadata)+1)

	for key, value := range msg.Metadata {
		headers[key] = value
	}

	headers[messageUUIDHeaderKey] = msg.UUID

	return amqp.Publishing{
		Body:         msg.Payload,
		Headers:      headers,
		DeliveryMode: amqp.Persistent,
	}, nil
}

// Unmarshal unmarshals an AMQP delivery into a message.
func (marshaler) Unmarshal(amqpMsg amqp.Delivery) (*message.Message, error) {
	msgUUID := ""

	if v, ok := amqpMsg.Headers[messageUUIDHeaderKey]; ok {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("message UUID is not a string, but: %#v", v)
		}

		msgUUID = s
	}

	msg := message.NewMessage(msgUUID, amqpMsg.Body)
	msg.Metadata = make(message.Metadata, len(amqpMsg.Headers)-1)

	for key, value := range amqpMsg.Headers {
		if key == messageUUIDHeaderKey {
			continue
		}

		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("value for header [%s] is not a string, but: %#v", key, value)
		}

		msg.Metadata[key] = s
	}

	return msg, nil
}
