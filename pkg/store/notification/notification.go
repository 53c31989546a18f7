/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package notification persists the event notifier's delivery backlog:
// one Pending notification per active subscription for every committed
// state transition, delivered at-least-once and retried on failure.
package notification

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
	namespace = "notification"

	stateTagName = "state"

	// ExpiryTagName is the tag carrying a delivered notification's cleanup
	// time as a Unix timestamp, for registration with the expiry service.
	ExpiryTagName = "expiry"

	// deliveredRetention is how long a delivered notification is kept before
	// the expiry service removes it.
	deliveredRetention = 24 * time.Hour
)

var logger = log.New("notification-store")

// State of a persisted notification.
type State string

// Supported states.
const (
	StatePending   State = "pending"
	StateDelivered State = "delivered"
)

func (s State) String() string { return string(s) }

// Notification is a single queued delivery for one subscription.
type Notification struct {
	ID             string    `json:"id"`
	SubscriptionID string    `json:"subscriptionId"`
	Category       string    `json:"category"`
	Subcategory    string    `json:"subcategory"`
	MessageType    string    `json:"messageType"`
	MessageContent []byte    `json:"messageContent"`
	Operation      string    `json:"operation"`
	State          State     `json:"state"`
	RetryCount     int       `json:"retryCount"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Store is the aries-storage-backed notification backlog.
type Store struct {
	store storage.Store
}

type expiryService interface {
	Register(store storage.Store, expiryTagName, storeName string, opts ...expiry.Option)
}

// RegisterExpiry registers this store with the expiry service so that
// delivered notifications are removed once their retention window lapses.
func (s *Store) RegisterExpiry(svc expiryService) {
	svc.Register(s.store, ExpiryTagName, namespace)
}

// New opens the notification store over the given storage provider.
func New(provider storage.Provider) (*Store, error) {
	store, err := provider.OpenStore(namespace)
	if err != nil {
		return nil, fmt.Errorf("open notification store: %w", err)
	}

	if err := provider.SetStoreConfig(namespace,
		storage.StoreConfiguration{TagNames: []string{stateTagName, ExpiryTagName}}); err != nil {
		return nil, fmt.Errorf("set notification store config: %w", err)
	}

	return &Store{store: store}, nil
}

// Enqueue persists a new Pending notification for subscriptionID.
func (s *Store) Enqueue(subscriptionID, category, subcategory, messageType string,
	messageContent []byte, operation string) (*Notification, error) {
	n := &Notification{
		ID:             uuid.New().String(),
		SubscriptionID: subscriptionID,
		Category:       category,
		Subcategory:    subcategory,
		MessageType:    messageType,
		MessageContent: messageContent,
		Operation:      operation,
		State:          StatePending,
		CreatedAt:      time.Now().UTC(),
	}

	if err := s.put(n); err != nil {
		return nil, err
	}

	logger.Debug("enqueued notification", log.WithSubscriberID(subscriptionID), log.WithCategory(category))

	return n, nil
}

func (s *Store) put(n *Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification %s: %w", n.ID, err)
	}

	tags := []storage.Tag{
		{Name: stateTagName, Value: string(n.State)},
	}

	if n.State == StateDelivered {
		tags = append(tags, storage.Tag{
			Name:  ExpiryTagName,
			Value: fmt.Sprintf("%d", time.Now().Add(deliveredRetention).Unix()),
		})
	}

	op := storage.Operation{
		Key:   n.ID,
		Value: data,
		Tags:  tags,
	}

	if err := s.store.Batch([]storage.Operation{op}); err != nil {
		return dcerrors.NewTransientf("put notification %s: %w", n.ID, err)
	}

	return nil
}

// MarkDelivered transitions a notification to Delivered; a no-op if it is
// already in that state.
func (s *Store) MarkDelivered(id string) error {
	n, err := s.get(id)
	if err != nil {
		return err
	}

	if n.State == StateDelivered {
		return nil
	}

	n.State = StateDelivered

	return s.put(n)
}

// MarkRetry increments the retry count on a failed delivery attempt,
// leaving the notification Pending for the next sweep.
func (s *Store) MarkRetry(id string) error {
	n, err := s.get(id)
	if err != nil {
		return err
	}

	n.RetryCount++

	return s.put(n)
}

func (s *Store) get(id string) (*Notification, error) {
	data, err := s.store.Get(id)
	if err != nil {
		if err == storage.ErrDataNotFound {
			return nil, dcerrors.NewNotFoundf("notification %s not found", id)
		}

		return nil, dcerrors.NewTransientf("get notification %s: %w", id, err)
	}

	var n Notification

	if err := json.Unmarshal(data, &n); err != nil {
		return nil, fmt.Errorf("unmarshal notification %s: %w", id, err)
	}

	return &n, nil
}

// Pending returns every notification still awaiting delivery, for the
// background sweep worker to drain.
func (s *Store) Pending() ([]*Notification, error) {
	iter, err := s.store.Query(fmt.Sprintf("%s:%s", stateTagName, StatePending))
	if err != nil {
		return nil, dcerrors.NewTransientf("query pending notifications: %w", err)
	}

	defer func() {
		if cErr := iter.Close(); cErr != nil {
			log.CloseIteratorError(logger, cErr)
		}
	}()

	var out []*Notification

	ok, err := iter.Next()
	if err != nil {
		return nil, dcerrors.NewTransientf("iterate pending notifications: %w", err)
	}

	for ok {
		value, vErr := iter.Value()
		if vErr != nil {
			return nil, dcerrors.NewTransientf("read pending notification: %w", vErr)
		}

		var n Notification

		if err := json.Unmarshal(value, &n); err != nil {
			return nil, fmt.Errorf("unmarshal pending notification: %w", err)
		}

		out = append(out, &n)

		ok, err = iter.Next()
		if err != nil {
			return nil, dcerrors.NewTransientf("iterate pending notifications: %w", err)
		}
	}

	return out, nil
}
