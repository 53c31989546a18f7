/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package cache

import (
	"testing"
	"time"

	"github.com/hyperledger/aries-framework-go/component/storageutil/mem"
	"github.com/stretchr/testify/require"

	dcerrors "github.com/trustbloc/dataspace-connector/pkg/errors"
	"github.com/trustbloc/dataspace-connector/pkg/store/procstore"
)

type fakeState string

func (s fakeState) String() string { return string(s) }

func TestProcessCache(t *testing.T) {
	store, err := procstore.New(mem.NewProvider())
	require.NoError(t, err)

	_, err = store.CreateProcess(procstore.KindContractNegotiation, procstore.RoleProvider,
		fakeState("REQUESTED"), "urn:uuid:p1", "", "", "")
	require.NoError(t, err)

	c := New(store, 16, time.Minute)

	got, err := c.Get(procstore.KindContractNegotiation, "urn:uuid:p1")
	require.NoError(t, err)
	require.Equal(t, "REQUESTED", got.State)

	// A cached read does not see a direct store write until invalidated.
	newState := "OFFERED"
	_, err = store.PutProcess(procstore.KindContractNegotiation, "urn:uuid:p1", procstore.Edits{State: &newState})
	require.NoError(t, err)

	stale, err := c.Get(procstore.KindContractNegotiation, "urn:uuid:p1")
	require.NoError(t, err)
	require.Equal(t, "REQUESTED", stale.State)

	c.Invalidate(procstore.KindContractNegotiation, "urn:uuid:p1")

	fresh, err := c.Get(procstore.KindContractNegotiation, "urn:uuid:p1")
	require.NoError(t, err)
	require.Equal(t, "OFFERED", fresh.State)
}

func TestProcessCache_NotFound(t *testing.T) {
	store, err := procstore.New(mem.NewProvider())
	require.NoError(t, err)

	c := New(store, 16, 0)

	_, err = c.Get(procstore.KindContractNegotiation, "urn:uuid:missing")
	require.True(t, dcerrors.IsNotFound(err))
}
