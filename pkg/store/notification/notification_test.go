/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package notification

import (
	"testing"

	"github.com/hyperledger/aries-framework-go/component/storageutil/mem"
	"github.com/stretchr/testify/require"
)

func TestStore(t *testing.T) {
	s, err := New(mem.NewProvider())
	require.NoError(t, err)

	n, err := s.Enqueue("sub-1", "contract-negotiation", "Requested",
		"dspace:ContractRequestMessage", []byte(`{}`), "create")
	require.NoError(t, err)
	require.Equal(t, StatePending, n.State)

	pending, err := s.Pending()
	require.NoError(t, err)
	require.Len(t, pending, 1)

	require.NoError(t, s.MarkRetry(n.ID))

	pending, err = s.Pending()
	require.NoError(t, err)
	require.Equal(t, 1, pending[0].RetryCount)

	require.NoError(t, s.MarkDelivered(n.ID))

	pending, err = s.Pending()
	require.NoError(t, err)
	require.Empty(t, pending)

	require.NoError(t, s.MarkDelivered(n.ID))
}
