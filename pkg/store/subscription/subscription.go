/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package subscription persists event notifier subscriber registrations:
// callback address, the categories a subscriber cares about, an active
// flag and an expiration time.
package subscription

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hyperledger/aries-framework-go/spi/storage"

	dcerrors "github.com/trustbloc/dataspace-connector/pkg/errors"
	"github.com/trustbloc/dataspace-connector/pkg/store/expiry"

	"github.com/trustbloc/dataspace-connector/internal/pkg/log"
)

const (
	namespace = "subscription"

	activeTagName    = "active"
	categoryTagName  = "category"
	activeValueTrue  = "true"
	activeValueFalse = "false"

	// ExpiryTagName is the tag carrying a subscription's expiration as a
	// Unix timestamp, for registration with the expiry service.
	ExpiryTagName = "expirationTime"
)

var logger = log.New("subscription-store")

// Subscription is a registered Event Notifier subscriber.
type Subscription struct {
	ID              string    `json:"id"`
	CallbackAddress string    `json:"callbackAddress"`
	Categories      []string  `json:"categories"`
	Active          bool      `json:"active"`
	ExpirationTime  time.Time `json:"expirationTime"`
}

// Store is the aries-storage-backed subscription store.
type Store struct {
	store storage.Store
}

type expiryService interface {
	Register(store storage.Store, expiryTagName, storeName string, opts ...expiry.Option)
}

// RegisterExpiry registers this store with the expiry service so that
// lapsed subscriptions are eventually removed.
func (s *Store) RegisterExpiry(svc expiryService) {
	svc.Register(s.store, ExpiryTagName, namespace)
}

// New opens the subscription store over the given storage provider.
func New(provider storage.Provider) (*Store, error) {
	store, err := provider.OpenStore(namespace)
	if err != nil {
		return nil, fmt.Errorf("open subscription store: %w", err)
	}

	if err := provider.SetStoreConfig(namespace,
		storage.StoreConfiguration{TagNames: []string{activeTagName, categoryTagName, ExpiryTagName}}); err != nil {
		return nil, fmt.Errorf("set subscription store config: %w", err)
	}

	return &Store{store: store}, nil
}

// Create registers a new subscription and returns its assigned ID.
func (s *Store) Create(callbackAddress string, categories []string, expiration time.Time) (*Subscription, error) {
	sub := &Subscription{
		ID:              uuid.New().String(),
		CallbackAddress: callbackAddress,
		Categories:      categories,
		Active:          true,
		ExpirationTime:  expiration,
	}

	if err := s.put(sub); err != nil {
		return nil, err
	}

	logger.Debug("created subscription", log.WithSubscriberID(sub.ID))

	return sub, nil
}

func (s *Store) put(sub *Subscription) error {
	data, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("marshal subscription %s: %w", sub.ID, err)
	}

	tags := []storage.Tag{
		{Name: activeTagName, Value: activeBool(sub.Active)},
	}

	for _, c := range sub.Categories {
		tags = append(tags, storage.Tag{Name: categoryTagName, Value: c})
	}

	if !sub.ExpirationTime.IsZero() {
		tags = append(tags, storage.Tag{
			Name:  ExpiryTagName,
			Value: fmt.Sprintf("%d", sub.ExpirationTime.Unix()),
		})
	}

	op := storage.Operation{Key: sub.ID, Value: data, Tags: tags}

	if err := s.store.Batch([]storage.Operation{op}); err != nil {
		return dcerrors.NewTransientf("put subscription %s: %w", sub.ID, err)
	}

	return nil
}

func activeBool(active bool) string {
	if active {
		return activeValueTrue
	}

	return activeValueFalse
}

// Get returns the subscription identified by id, or a NotFound error.
func (s *Store) Get(id string) (*Subscription, error) {
	data, err := s.store.Get(id)
	if err != nil {
		if err == storage.ErrDataNotFound {
			return nil, dcerrors.NewNotFoundf("subscription %s not found", id)
		}

		return nil, dcerrors.NewTransientf("get subscription %s: %w", id, err)
	}

	var sub Subscription

	if err := json.Unmarshal(data, &sub); err != nil {
		return nil, fmt.Errorf("unmarshal subscription %s: %w", id, err)
	}

	return &sub, nil
}

// Deactivate marks a subscription inactive; it stops receiving new
// notifications but existing Pending ones are still delivered.
func (s *Store) Deactivate(id string) error {
	sub, err := s.Get(id)
	if err != nil {
		return err
	}

	sub.Active = false

	return s.put(sub)
}

// ActiveForCategory returns every active, unexpired subscription registered
// for category, used by the orchestrator/notifier fan-out on each committed
// transition.
func (s *Store) ActiveForCategory(category string) ([]*Subscription, error) {
	// Single-tag query: the mem provider does not support conjunctions, so
	// the active flag and expiration are filtered here.
	query := fmt.Sprintf("%s:%s", categoryTagName, category)

	iter, err := s.store.Query(query)
	if err != nil {
		return nil, dcerrors.NewTransientf("query subscriptions for category %s: %w", category, err)
	}

	defer func() {
		if cErr := iter.Close(); cErr != nil {
			log.CloseIteratorError(logger, cErr)
		}
	}()

	var subs []*Subscription

	now := time.Now().UTC()

	ok, err := iter.Next()
	if err != nil {
		return nil, dcerrors.NewTransientf("iterate subscriptions for category %s: %w", category, err)
	}

	for ok {
		value, vErr := iter.Value()
		if vErr != nil {
			return nil, dcerrors.NewTransientf("read subscription for category %s: %w", category, vErr)
		}

		var sub Subscription

		if err := json.Unmarshal(value, &sub); err != nil {
			return nil, fmt.Errorf("unmarshal subscription for category %s: %w", category, err)
		}

		if sub.Active && (sub.ExpirationTime.IsZero() || sub.ExpirationTime.After(now)) {
			subs = append(subs, &sub)
		}

		ok, err = iter.Next()
		if err != nil {
			return nil, dcerrors.NewTransientf("iterate subscriptions for category %s: %w", category, err)
		}
	}

	return subs, nil
}
