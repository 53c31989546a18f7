/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package identifierindex implements a uniform (process_id, key, value)
// lookup table: rather than a get_by_provider_pid / get_by_consumer_pid
// accessor per process kind, every peer identifier a
// process is known by is written here once, keyed by (key, value), and
// resolves to the local process ID in a single query.
package identifierindex

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/hyperledger/aries-framework-go/spi/storage"

	dcerrors "github.com/trustbloc/dataspace-connector/pkg/errors"

	"github.com/trustbloc/dataspace-connector/internal/pkg/log"
)

const (
	namespace = "identifier-index"

	processTagName = "processID"

	entryKeyFormat = "%s:%s"
)

var logger = log.New("identifier-index")

// Index maps (key, value) pairs, such as ("providerPid", "urn:uuid:1"), to
// the local process ID that owns them.
type Index struct {
	store storage.Store
}

type entry struct {
	ProcessID string `json:"processId"`
}

// New opens the identifier index over the given storage provider.
func New(provider storage.Provider) (*Index, error) {
	store, err := provider.OpenStore(namespace)
	if err != nil {
		return nil, fmt.Errorf("open identifier index store: %w", err)
	}

	if err := provider.SetStoreConfig(namespace,
		storage.StoreConfiguration{TagNames: []string{processTagName}}); err != nil {
		return nil, fmt.Errorf("set identifier index store config: %w", err)
	}

	return &Index{store: store}, nil
}

func entryKey(key, value string) string {
	return fmt.Sprintf(entryKeyFormat, key, base64.RawURLEncoding.EncodeToString([]byte(value)))
}

// Put records that the process identified by processID is reachable under (key, value).
// Re-asserting the same (key, value, processID) triple is a no-op.
func (idx *Index) Put(processID, key, value string) error {
	e := entry{ProcessID: processID}

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal identifier index entry: %w", err)
	}

	op := storage.Operation{
		Key:   entryKey(key, value),
		Value: data,
		Tags: []storage.Tag{
			{Name: processTagName, Value: processID},
		},
	}

	if err := idx.store.Batch([]storage.Operation{op}); err != nil {
		return dcerrors.NewTransientf("put identifier index entry (%s=%s): %w", key, value, err)
	}

	logger.Debug("indexed identifier", log.WithProcessID(processID), log.WithParameter(key))

	return nil
}

// Get resolves the process ID registered under (key, value). Returns a
// NotFound error when no process has been indexed under that pair.
func (idx *Index) Get(key, value string) (string, error) {
	data, err := idx.store.Get(entryKey(key, value))
	if err != nil {
		if err == storage.ErrDataNotFound {
			return "", dcerrors.NewNotFound(fmt.Errorf("%w: %s=%s", dcerrors.ErrProcessNotFound, key, value))
		}

		return "", dcerrors.NewTransientf("get identifier index entry (%s=%s): %w", key, value, err)
	}

	var e entry

	if err := json.Unmarshal(data, &e); err != nil {
		return "", fmt.Errorf("unmarshal identifier index entry (%s=%s): %w", key, value, err)
	}

	return e.ProcessID, nil
}

// DeleteForProcess removes every index entry registered for processID. Used
// when a process record is purged (not exercised by any current protocol
// flow, since CN/TP/Grant records are retained forever, but kept so
// a future retention policy has somewhere to hook in).
func (idx *Index) DeleteForProcess(processID string) error {
	iter, err := idx.store.Query(fmt.Sprintf("%s:%s", processTagName, processID))
	if err != nil {
		return dcerrors.NewTransientf("query identifier index for process %s: %w", processID, err)
	}

	defer func() {
		if cErr := iter.Close(); cErr != nil {
			log.CloseIteratorError(logger, cErr)
		}
	}()

	var keys []string

	ok, err := iter.Next()
	if err != nil {
		return dcerrors.NewTransientf("iterate identifier index for process %s: %w", processID, err)
	}

	for ok {
		key, err := iter.Key()
		if err != nil {
			return dcerrors.NewTransientf("read identifier index key for process %s: %w", processID, err)
		}

		keys = append(keys, key)

		ok, err = iter.Next()
		if err != nil {
			return dcerrors.NewTransientf("iterate identifier index for process %s: %w", processID, err)
		}
	}

	if len(keys) == 0 {
		return nil
	}

	ops := make([]storage.Operation, len(keys))
	for i, k := range keys {
		ops[i] = storage.Operation{Key: k}
	}

	if err := idx.store.Batch(ops); err != nil {
		return dcerrors.NewTransientf("delete identifier index entries for process %s: %w", processID, err)
	}

	return nil
}
