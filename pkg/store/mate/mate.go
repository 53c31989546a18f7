/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package mate persists participant ("mate") records: counterparties
// authenticated through a completed Grant flow, together with the bearer
// token issued to them. The write-once immutability of the token field is
// enforced here rather than left to callers.
package mate

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/hyperledger/aries-framework-go/spi/storage"

	dcerrors "github.com/trustbloc/dataspace-connector/pkg/errors"
	"github.com/trustbloc/dataspace-connector/pkg/store/procstore"

	"github.com/trustbloc/dataspace-connector/internal/pkg/log"
)

const (
	namespace = "mate"

	typeTagName = "type"
)

var logger = log.New("mate-store")

// Mate is a persisted record of an authenticated counterparty.
type Mate struct {
	ParticipantID string         `json:"participantId"`
	Slug          string         `json:"slug"`
	BaseURL       string         `json:"baseUrl"`
	Type          procstore.Role `json:"type"`
	BearerToken   string         `json:"bearerToken"`
	IsSelf        bool           `json:"isSelf"`
}

// Store is the aries-storage-backed Mate store.
type Store struct {
	store storage.Store
}

// New opens the mate store over the given storage provider.
func New(provider storage.Provider) (*Store, error) {
	store, err := provider.OpenStore(namespace)
	if err != nil {
		return nil, fmt.Errorf("open mate store: %w", err)
	}

	if err := provider.SetStoreConfig(namespace,
		storage.StoreConfiguration{TagNames: []string{typeTagName}}); err != nil {
		return nil, fmt.Errorf("set mate store config: %w", err)
	}

	return &Store{store: store}, nil
}

func key(participantID string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(participantID))
}

// Create persists a new Mate record. Returns a BadRequest error if a Mate
// already exists for participantID: the token is set exactly once
// and rotation requires a new Grant (a fresh participant ID), not an update
// here.
func (s *Store) Create(m *Mate) error {
	if _, err := s.Get(m.ParticipantID); err == nil {
		return dcerrors.NewBadRequestf("mate %s already exists, token is immutable", m.ParticipantID)
	} else if !dcerrors.IsNotFound(err) {
		return err
	}

	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal mate %s: %w", m.ParticipantID, err)
	}

	op := storage.Operation{
		Key:   key(m.ParticipantID),
		Value: data,
		Tags: []storage.Tag{
			{Name: typeTagName, Value: string(m.Type)},
		},
	}

	if err := s.store.Batch([]storage.Operation{op}); err != nil {
		return dcerrors.NewTransientf("put mate %s: %w", m.ParticipantID, err)
	}

	logger.Debug("created mate", log.WithParticipant(m.ParticipantID))

	return nil
}

// Get returns the Mate record for participantID, or a NotFound error.
func (s *Store) Get(participantID string) (*Mate, error) {
	data, err := s.store.Get(key(participantID))
	if err != nil {
		if err == storage.ErrDataNotFound {
			return nil, dcerrors.NewNotFound(fmt.Errorf("%w: %s", dcerrors.ErrMateNotFound, participantID))
		}

		return nil, dcerrors.NewTransientf("get mate %s: %w", participantID, err)
	}

	var m Mate

	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal mate %s: %w", participantID, err)
	}

	return &m, nil
}

// GetByToken returns the Mate record whose bearer token equals token, used
// by the httpserver bearer-auth middleware. NotFound if no Mate holds it.
func (s *Store) GetByToken(token string) (*Mate, error) {
	iter, err := s.store.Query(typeTagName)
	if err != nil {
		return nil, dcerrors.NewTransientf("query mates: %w", err)
	}

	defer func() {
		if cErr := iter.Close(); cErr != nil {
			log.CloseIteratorError(logger, cErr)
		}
	}()

	ok, err := iter.Next()
	if err != nil {
		return nil, dcerrors.NewTransientf("iterate mates: %w", err)
	}

	for ok {
		value, vErr := iter.Value()
		if vErr != nil {
			return nil, dcerrors.NewTransientf("read mate: %w", vErr)
		}

		var m Mate

		if err := json.Unmarshal(value, &m); err != nil {
			return nil, fmt.Errorf("unmarshal mate: %w", err)
		}

		if m.BearerToken == token {
			return &m, nil
		}

		ok, err = iter.Next()
		if err != nil {
			return nil, dcerrors.NewTransientf("iterate mates: %w", err)
		}
	}

	return nil, dcerrors.NewNotFound(fmt.Errorf("%w: no mate holds this token", dcerrors.ErrMateNotFound))
}
