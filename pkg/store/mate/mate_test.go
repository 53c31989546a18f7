/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package mate

import (
	"testing"

	"github.com/hyperledger/aries-framework-go/component/storageutil/mem"
	"github.com/stretchr/testify/require"

	dcerrors "github.com/trustbloc/dataspace-connector/pkg/errors"
	"github.com/trustbloc/dataspace-connector/pkg/store/procstore"
)

func TestStore(t *testing.T) {
	t.Run("create, get, get by token", func(t *testing.T) {
		s, err := New(mem.NewProvider())
		require.NoError(t, err)

		m := &Mate{
			ParticipantID: "participant-1",
			Slug:          "acme",
			BaseURL:       "https://acme.example.com",
			Type:          procstore.RoleConsumer,
			BearerToken:   "token-abc",
		}

		require.NoError(t, s.Create(m))

		got, err := s.Get("participant-1")
		require.NoError(t, err)
		require.Equal(t, "token-abc", got.BearerToken)

		byToken, err := s.GetByToken("token-abc")
		require.NoError(t, err)
		require.Equal(t, "participant-1", byToken.ParticipantID)

		_, err = s.GetByToken("no-such-token")
		require.True(t, dcerrors.IsNotFound(err))
	})

	t.Run("get - not found", func(t *testing.T) {
		s, err := New(mem.NewProvider())
		require.NoError(t, err)

		_, err = s.Get("unknown")
		require.True(t, dcerrors.IsNotFound(err))
	})

	t.Run("create - rejects duplicate, token immutable", func(t *testing.T) {
		s, err := New(mem.NewProvider())
		require.NoError(t, err)

		require.NoError(t, s.Create(&Mate{ParticipantID: "p1", BearerToken: "t1"}))

		err = s.Create(&Mate{ParticipantID: "p1", BearerToken: "t2"})
		require.True(t, dcerrors.IsBadRequest(err))

		got, err := s.Get("p1")
		require.NoError(t, err)
		require.Equal(t, "t1", got.BearerToken)
	})
}
