/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package expiry periodically removes expired records from registered
// stores: lapsed notifier subscriptions and delivered notifications past
// their retention window. Scheduling and cluster
// coordination are delegated to the task manager, so only one instance
// performs the cleanup.
package expiry

import (
	"fmt"
	"time"

	"github.com/hyperledger/aries-framework-go/spi/storage"

	"github.com/trustbloc/dataspace-connector/internal/pkg/log"
)

const taskID = "data-expiry"

var logger = log.New("expiry-service")

type registeredStore struct {
	store storage.Store
	name  string

	expiryTagName string
	expiryHandler expiryHandler
}

// Option is an option for a registered store.
type Option func(opts *registeredStore)

// WithExpiryHandler sets an optional handler invoked with the expired keys
// before they are deleted.
func WithExpiryHandler(handler expiryHandler) Option {
	return func(opts *registeredStore) {
		opts.expiryHandler = handler
	}
}

type expiryHandler interface {
	HandleExpiredKeys(keys ...string) error
}

type taskManager interface {
	RegisterTask(id string, interval, maxRunTime time.Duration, task func())
}

// Service periodically polls registered stores and removes data past its
// expiration time.
type Service struct {
	registeredStores []registeredStore
	interval         time.Duration
	taskMgr          taskManager
}

// NewService returns a new expiry Service that runs its cleanup as a task on
// taskMgr every interval. Register each store to clean with Register before
// the task manager is started.
func NewService(taskMgr taskManager, interval time.Duration) *Service {
	s := &Service{
		registeredStores: make([]registeredStore, 0),
		interval:         interval,
		taskMgr:          taskMgr,
	}

	taskMgr.RegisterTask(taskID, interval, interval*3, s.deleteExpiredData)

	return s
}

// Register adds a store to this expiry service. expiryTagName is the tag
// under which the store writes expiry values as Unix timestamps; records
// whose tag value is in the past are deleted on the next run.
func (s *Service) Register(store storage.Store, expiryTagName, storeName string, opts ...Option) {
	newRegisteredStore := registeredStore{
		store:         store,
		name:          storeName,
		expiryTagName: expiryTagName,
		expiryHandler: &noopExpiryHandler{},
	}

	for _, opt := range opts {
		opt(&newRegisteredStore)
	}

	s.registeredStores = append(s.registeredStores, newRegisteredStore)

	logger.Debug("Registered store with expiry service", log.WithStoreName(storeName))
}

func (s *Service) deleteExpiredData() {
	for _, registeredStore := range s.registeredStores {
		registeredStore.deleteExpiredData()
	}
}

func (r *registeredStore) deleteExpiredData() {
	iterator, err := r.store.Query(fmt.Sprintf("%s<=%d", r.expiryTagName, time.Now().Unix()))
	if err != nil {
		logger.Error("Failed to query store for expired data", log.WithStoreName(r.name), log.WithError(err))

		return
	}

	defer func() {
		if cErr := iterator.Close(); cErr != nil {
			log.CloseIteratorError(logger, cErr)
		}
	}()

	var keysToDelete []string

	more, err := iterator.Next()
	if err != nil {
		logger.Error("Failed to get next value from iterator", log.WithStoreName(r.name), log.WithError(err))

		return
	}

	for more {
		key, errKey := iterator.Key()
		if errKey != nil {
			logger.Error("Failed to get key from iterator", log.WithStoreName(r.name), log.WithError(errKey))

			return
		}

		keysToDelete = append(keysToDelete, key)

		more, err = iterator.Next()
		if err != nil {
			logger.Error("Failed to get next value from iterator", log.WithStoreName(r.name), log.WithError(err))

			return
		}
	}

	if len(keysToDelete) == 0 {
		return
	}

	logger.Debug("Deleting expired data", log.WithStoreName(r.name), log.WithTotal(len(keysToDelete)))

	if err := r.expiryHandler.HandleExpiredKeys(keysToDelete...); err != nil {
		logger.Error("Failed to invoke expiry handler", log.WithStoreName(r.name), log.WithError(err))

		return
	}

	operations := make([]storage.Operation, len(keysToDelete))

	for i, key := range keysToDelete {
		operations[i] = storage.Operation{Key: key}
	}

	if err := r.store.Batch(operations); err != nil {
		logger.Error("Failed to delete expired data", log.WithStoreName(r.name), log.WithError(err))
	}
}

type noopExpiryHandler struct{}

func (h *noopExpiryHandler) HandleExpiredKeys(_ ...string) error {
	return nil
}
