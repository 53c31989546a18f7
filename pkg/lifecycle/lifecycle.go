/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package lifecycle provides a small Start/Stop state machine shared by every
// long-running component of the connector (notifier, task manager, pub/sub
// transports, no-op tracer provider). Adapted from the activitypub service's
// lifecycle helper so that every service in this module starts/stops the
// same way.
package lifecycle

import (
	"errors"
	"sync/atomic"

	"github.com/trustbloc/dataspace-connector/internal/pkg/log"
)

// ErrNotStarted indicates that an operation was attempted on a service that
// has not been started (or has been stopped).
var ErrNotStarted = errors.New("service has not started")

// State constants.
const (
	StateNotStarted uint32 = iota
	StateStarting
	StateStarted
	StateStopped
)

var logger = log.New("lifecycle")

// Lifecycle implements the start/stop lifecycle of a service.
type Lifecycle struct {
	name  string
	state uint32
	start func()
	stop  func()
}

// Opt configures a Lifecycle.
type Opt func(l *Lifecycle)

// WithStart sets the function invoked on Start.
func WithStart(start func()) Opt {
	return func(l *Lifecycle) {
		l.start = start
	}
}

// WithStop sets the function invoked on Stop.
func WithStop(stop func()) Opt {
	return func(l *Lifecycle) {
		l.stop = stop
	}
}

// New returns a new Lifecycle for the named service.
func New(name string, opts ...Opt) *Lifecycle {
	l := &Lifecycle{
		name:  name,
		start: func() {},
		stop:  func() {},
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Start starts the service. A second call is a no-op.
func (l *Lifecycle) Start() {
	if !atomic.CompareAndSwapUint32(&l.state, StateNotStarted, StateStarting) {
		logger.Debug("Service already started", log.WithServiceEndpoint(l.name))

		return
	}

	logger.Debug("Starting service", log.WithServiceEndpoint(l.name))

	l.start()

	atomic.StoreUint32(&l.state, StateStarted)

	logger.Debug("Started service", log.WithServiceEndpoint(l.name))
}

// Stop stops the service. A call on an unstarted or already-stopped service is a no-op.
func (l *Lifecycle) Stop() {
	if !atomic.CompareAndSwapUint32(&l.state, StateStarted, StateStopped) {
		logger.Debug("Service already stopped", log.WithServiceEndpoint(l.name))

		return
	}

	logger.Debug("Stopping service", log.WithServiceEndpoint(l.name))

	l.stop()

	logger.Debug("Stopped service", log.WithServiceEndpoint(l.name))
}

// State returns the current state of the service.
func (l *Lifecycle) State() uint32 {
	return atomic.LoadUint32(&l.state)
}
