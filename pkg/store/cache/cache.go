/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package cache implements the read-through process cache described in
// the design: the hot `GET /negotiations/:id` / `GET /transfers/:id`
// poll path should not round-trip to the process store on every call.
// Built on bluele/gcache's LRU with a per-miss loader, since the cache is
// invalidated explicitly on every write rather than refreshed on a timer.
package cache

import (
	"fmt"
	"time"

	"github.com/bluele/gcache"

	dcerrors "github.com/trustbloc/dataspace-connector/pkg/errors"
	"github.com/trustbloc/dataspace-connector/pkg/store/procstore"

	"github.com/trustbloc/dataspace-connector/internal/pkg/log"
)

var logger = log.New("process-cache")

type cacheKey struct {
	kind procstore.Kind
	pid  string
}

// ProcessCache is a read-through LRU cache of Process records keyed by
// (kind, local PID), with explicit invalidation on write.
type ProcessCache struct {
	gc    gcache.Cache
	store *procstore.Store
}

// New returns a ProcessCache of the given size fronting store. A
// non-positive size is clamped to a single entry.
func New(store *procstore.Store, size int, ttl time.Duration) *ProcessCache {
	c := &ProcessCache{store: store}

	builder := gcache.New(maxSize(size)).LRU().LoaderFunc(func(key interface{}) (interface{}, error) {
		k, ok := key.(cacheKey)
		if !ok {
			return nil, fmt.Errorf("unexpected cache key type %T", key)
		}

		return c.store.GetByLocalPID(k.kind, k.pid)
	})

	if ttl > 0 {
		builder = builder.Expiration(ttl)
	}

	c.gc = builder.Build()

	return c
}

func maxSize(size int) int {
	if size <= 0 {
		return 1
	}

	return size
}

// Get returns the process identified by (kind, pid), populating the cache
// on a miss.
func (c *ProcessCache) Get(kind procstore.Kind, pid string) (*procstore.Process, error) {
	v, err := c.gc.Get(cacheKey{kind: kind, pid: pid})
	if err != nil {
		if err == gcache.KeyNotFoundError {
			return nil, dcerrors.NewNotFoundf("process %s/%s not found", kind, pid)
		}

		return nil, err
	}

	p, ok := v.(*procstore.Process)
	if !ok {
		return nil, fmt.Errorf("unexpected cached value type %T", v)
	}

	return p, nil
}

// Invalidate removes (kind, pid) from the cache. Callers invoke this after
// every successful PutProcess so the next Get observes the new state.
func (c *ProcessCache) Invalidate(kind procstore.Kind, pid string) {
	if !c.gc.Remove(cacheKey{kind: kind, pid: pid}) {
		logger.Debug("nothing to invalidate", log.WithProcessID(pid))
	}
}
