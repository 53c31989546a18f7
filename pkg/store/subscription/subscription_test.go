/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package subscription

import (
	"testing"
	"time"

	"github.com/hyperledger/aries-framework-go/component/storageutil/mem"
	"github.com/stretchr/testify/require"

	dcerrors "github.com/trustbloc/dataspace-connector/pkg/errors"
)

func TestStore(t *testing.T) {
	t.Run("create, get, active for category", func(t *testing.T) {
		s, err := New(mem.NewProvider())
		require.NoError(t, err)

		sub, err := s.Create("https://subscriber.example.com/hook",
			[]string{"contract-negotiation", "transfer-process"}, time.Time{})
		require.NoError(t, err)
		require.NotEmpty(t, sub.ID)

		got, err := s.Get(sub.ID)
		require.NoError(t, err)
		require.True(t, got.Active)

		active, err := s.ActiveForCategory("contract-negotiation")
		require.NoError(t, err)
		require.Len(t, active, 1)
		require.Equal(t, sub.ID, active[0].ID)

		none, err := s.ActiveForCategory("grant")
		require.NoError(t, err)
		require.Empty(t, none)
	})

	t.Run("expired subscriptions are excluded", func(t *testing.T) {
		s, err := New(mem.NewProvider())
		require.NoError(t, err)

		_, err = s.Create("https://subscriber.example.com/hook", []string{"grant"},
			time.Now().Add(-time.Hour))
		require.NoError(t, err)

		active, err := s.ActiveForCategory("grant")
		require.NoError(t, err)
		require.Empty(t, active)
	})

	t.Run("deactivate", func(t *testing.T) {
		s, err := New(mem.NewProvider())
		require.NoError(t, err)

		sub, err := s.Create("https://subscriber.example.com/hook", []string{"grant"}, time.Time{})
		require.NoError(t, err)

		require.NoError(t, s.Deactivate(sub.ID))

		active, err := s.ActiveForCategory("grant")
		require.NoError(t, err)
		require.Empty(t, active)
	})

	t.Run("get - not found", func(t *testing.T) {
		s, err := New(mem.NewProvider())
		require.NoError(t, err)

		_, err = s.Get("unknown")
		require.True(t, dcerrors.IsNotFound(err))
	})
}
