/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	ariesmem "github.com/hyperledger/aries-framework-go/component/storageutil/mem"
	"github.com/stretchr/testify/require"

	"github.com/trustbloc/dataspace-connector/pkg/store/mate"
	"github.com/trustbloc/dataspace-connector/pkg/store/procstore"
)

func newMateStore(t *testing.T) *mate.Store {
	t.Helper()

	s, err := mate.New(ariesmem.NewProvider())
	require.NoError(t, err)

	return s
}

func TestBearerVerifier(t *testing.T) {
	t.Run("no auth header -> false", func(t *testing.T) {
		v := NewBearerVerifier(newMateStore(t))

		req := httptest.NewRequest(http.MethodGet, "/negotiations/1", nil)
		require.False(t, v.Verify(req))
	})

	t.Run("unknown token -> false", func(t *testing.T) {
		v := NewBearerVerifier(newMateStore(t))

		req := httptest.NewRequest(http.MethodGet, "/negotiations/1", nil)
		req.Header.Set(authHeader, bearerPrefix+"unknown-token")
		require.False(t, v.Verify(req))
	})

	t.Run("known token -> true, participant attached to context", func(t *testing.T) {
		mates := newMateStore(t)

		err := mates.Create(&mate.Mate{
			ParticipantID: "urn:uuid:participant-1",
			Slug:          "consumer-1",
			BaseURL:       "https://consumer.example.com",
			Type:          procstore.RoleConsumer,
			BearerToken:   "tok-abc",
		})
		require.NoError(t, err)

		v := NewBearerVerifier(mates)

		req := httptest.NewRequest(http.MethodGet, "/negotiations/1", nil)
		req.Header.Set(authHeader, bearerPrefix+"tok-abc")

		require.True(t, v.Verify(req))

		pid, ok := ParticipantFromContext(req.Context())
		require.True(t, ok)
		require.Equal(t, "urn:uuid:participant-1", pid)
	})
}

func TestConstantTimeEqual(t *testing.T) {
	require.True(t, ConstantTimeEqual("abc", "abc"))
	require.False(t, ConstantTimeEqual("abc", "abd"))
	require.False(t, ConstantTimeEqual("abc", "ab"))
}

func TestExtractGNAPToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/continue/1", nil)
	req.Header.Set(authHeader, "GNAP the-continue-token")

	token, ok := ExtractGNAPToken(req)
	require.True(t, ok)
	require.Equal(t, "the-continue-token", token)

	req2 := httptest.NewRequest(http.MethodPost, "/api/v1/continue/1", nil)
	req2.Header.Set(authHeader, bearerPrefix+"not-gnap")

	_, ok = ExtractGNAPToken(req2)
	require.False(t, ok)
}
