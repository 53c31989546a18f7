/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package grantrecord persists the two auxiliary records a Grant process
// carries: the Interaction (nonces, interact-ref, hash) and
// the Verification (the parsed OIDC4VP presentation-request fields). A Grant
// has exactly one of each, so both live in a single record keyed by the
// grant process ID rather than as separate stores.
package grantrecord

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/hyperledger/aries-framework-go/spi/storage"

	dcerrors "github.com/trustbloc/dataspace-connector/pkg/errors"

	"github.com/trustbloc/dataspace-connector/internal/pkg/log"
)

const namespace = "grant-record"

var logger = log.New("grant-record-store")

// Interaction records the nonces and hash-binding material of a grant.
type Interaction struct {
	ClientNonce   string `json:"clientNonce"`
	ASNonce       string `json:"asNonce"`
	InteractRef   string `json:"interactRef,omitempty"`
	Hash          string `json:"hash,omitempty"`
	HashMethod    string `json:"hashMethod"`
	FinishURI     string `json:"finishUri"`
	ContinueURI   string `json:"continueUri"`
	ContinueToken string `json:"continueToken"`
}

// Verification records the parsed OIDC4VP presentation-request fields.
type Verification struct {
	ResponseType       string `json:"responseType"`
	ClientID           string `json:"clientId"`
	ClientIDScheme     string `json:"clientIdScheme"`
	ResponseMode       string `json:"responseMode"`
	PresentationDefURI string `json:"pdUri"`
	ResponseURI        string `json:"responseUri"`
	Nonce              string `json:"nonce"`
	Verified           bool   `json:"verified"`
}

// Record is the auxiliary Interaction+Verification pair for a single Grant.
type Record struct {
	GrantID      string        `json:"grantId"`
	Interaction  *Interaction  `json:"interaction,omitempty"`
	Verification *Verification `json:"verification,omitempty"`
}

// Store is the aries-storage-backed grant record store.
type Store struct {
	store storage.Store
}

// New opens the grant record store over the given storage provider.
func New(provider storage.Provider) (*Store, error) {
	store, err := provider.OpenStore(namespace)
	if err != nil {
		return nil, fmt.Errorf("open grant record store: %w", err)
	}

	return &Store{store: store}, nil
}

func key(grantID string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(grantID))
}

func (s *Store) get(grantID string) (*Record, error) {
	data, err := s.store.Get(key(grantID))
	if err != nil {
		if err == storage.ErrDataNotFound {
			return &Record{GrantID: grantID}, nil
		}

		return nil, dcerrors.NewTransientf("get grant record %s: %w", grantID, err)
	}

	var r Record

	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("unmarshal grant record %s: %w", grantID, err)
	}

	return &r, nil
}

func (s *Store) put(r *Record) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal grant record %s: %w", r.GrantID, err)
	}

	op := storage.Operation{Key: key(r.GrantID), Value: data}

	if err := s.store.Batch([]storage.Operation{op}); err != nil {
		return dcerrors.NewTransientf("put grant record %s: %w", r.GrantID, err)
	}

	return nil
}

// PutInteraction creates or replaces the Interaction half of grantID's record.
func (s *Store) PutInteraction(grantID string, interaction *Interaction) error {
	r, err := s.get(grantID)
	if err != nil {
		return err
	}

	r.Interaction = interaction

	if err := s.put(r); err != nil {
		return err
	}

	logger.Debug("stored interaction", log.WithGrantID(grantID))

	return nil
}

// PutVerification creates or replaces the Verification half of grantID's record.
func (s *Store) PutVerification(grantID string, verification *Verification) error {
	r, err := s.get(grantID)
	if err != nil {
		return err
	}

	r.Verification = verification

	if err := s.put(r); err != nil {
		return err
	}

	logger.Debug("stored verification", log.WithGrantID(grantID))

	return nil
}

// Get returns the full Record for grantID, or a NotFound error if neither
// half has ever been written.
func (s *Store) Get(grantID string) (*Record, error) {
	r, err := s.get(grantID)
	if err != nil {
		return nil, err
	}

	if r.Interaction == nil && r.Verification == nil {
		return nil, dcerrors.NewNotFoundf("grant record %s not found", grantID)
	}

	return r, nil
}
