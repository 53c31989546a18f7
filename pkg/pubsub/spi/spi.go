/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package spi holds the options shared by every publisher/subscriber
// implementation on the event bus.
package spi

// UndeliverableTopic receives messages that were nacked and could not be
// redelivered to any subscriber.
const UndeliverableTopic = "undeliverable_events"

// Options contains publisher/subscriber options.
type Options struct {
	PoolSize uint
}

// Option specifies a publisher/subscriber option.
type Option func(option *Options)

// WithPool sets the number of pooled broker subscriptions that concurrently
// consume a topic.
func WithPool(size uint) Option {
	return func(option *Options) {
		option.PoolSize = size
	}
}
