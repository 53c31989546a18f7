/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package identifierindex

import (
	"testing"

	"github.com/hyperledger/aries-framework-go/component/storageutil/mem"
	"github.com/stretchr/testify/require"

	dcerrors "github.com/trustbloc/dataspace-connector/pkg/errors"
)

func TestIndex(t *testing.T) {
	t.Run("put and get", func(t *testing.T) {
		idx, err := New(mem.NewProvider())
		require.NoError(t, err)

		require.NoError(t, idx.Put("urn:uuid:p1", "contract-negotiation:peerPid", "urn:uuid:c1"))

		got, err := idx.Get("contract-negotiation:peerPid", "urn:uuid:c1")
		require.NoError(t, err)
		require.Equal(t, "urn:uuid:p1", got)
	})

	t.Run("get - not found", func(t *testing.T) {
		idx, err := New(mem.NewProvider())
		require.NoError(t, err)

		_, err = idx.Get("contract-negotiation:peerPid", "urn:uuid:unknown")
		require.True(t, dcerrors.IsNotFound(err))
	})

	t.Run("re-asserting the same pair is a no-op", func(t *testing.T) {
		idx, err := New(mem.NewProvider())
		require.NoError(t, err)

		require.NoError(t, idx.Put("urn:uuid:p1", "transfer-process:peerPid", "urn:uuid:c1"))
		require.NoError(t, idx.Put("urn:uuid:p1", "transfer-process:peerPid", "urn:uuid:c1"))

		got, err := idx.Get("transfer-process:peerPid", "urn:uuid:c1")
		require.NoError(t, err)
		require.Equal(t, "urn:uuid:p1", got)
	})

	t.Run("delete for process", func(t *testing.T) {
		idx, err := New(mem.NewProvider())
		require.NoError(t, err)

		require.NoError(t, idx.Put("urn:uuid:p1", "grant:interactRef", "ref-1"))
		require.NoError(t, idx.DeleteForProcess("urn:uuid:p1"))

		_, err = idx.Get("grant:interactRef", "ref-1")
		require.True(t, dcerrors.IsNotFound(err))
	})

	t.Run("delete for process - nothing indexed", func(t *testing.T) {
		idx, err := New(mem.NewProvider())
		require.NoError(t, err)

		require.NoError(t, idx.DeleteForProcess("urn:uuid:none"))
	})
}
