/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package grantrecord

import (
	"testing"

	"github.com/hyperledger/aries-framework-go/component/storageutil/mem"
	"github.com/stretchr/testify/require"

	dcerrors "github.com/trustbloc/dataspace-connector/pkg/errors"
)

func TestStore(t *testing.T) {
	t.Run("not found", func(t *testing.T) {
		s, err := New(mem.NewProvider())
		require.NoError(t, err)

		_, err = s.Get("urn:uuid:g1")
		require.True(t, dcerrors.IsNotFound(err))
	})

	t.Run("interaction then verification accumulate on the same record", func(t *testing.T) {
		s, err := New(mem.NewProvider())
		require.NoError(t, err)

		require.NoError(t, s.PutInteraction("urn:uuid:g1", &Interaction{
			ClientNonce: "cn-1",
			ASNonce:     "as-1",
			HashMethod:  "sha-256",
			FinishURI:   "https://consumer.example.com/onboard/callback/g1",
		}))

		require.NoError(t, s.PutVerification("urn:uuid:g1", &Verification{
			ResponseType: "vp_token",
			ClientID:     "https://provider.example.com",
			Nonce:        "as-1",
		}))

		r, err := s.Get("urn:uuid:g1")
		require.NoError(t, err)
		require.Equal(t, "cn-1", r.Interaction.ClientNonce)
		require.Equal(t, "vp_token", r.Verification.ResponseType)
	})
}
