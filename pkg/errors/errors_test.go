/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeState string

func (s fakeState) String() string { return string(s) }

func TestTransientError(t *testing.T) {
	et := errors.New("some transient error")
	ep := errors.New("some persistent error")

	err := fmt.Errorf("got error: %w", NewTransient(et))

	require.True(t, IsTransient(err))
	require.True(t, errors.Is(err, et))
	require.False(t, IsTransient(ep))
	require.EqualError(t, err, "got error: some transient error")

	err = NewTransientf("some transient error")
	require.True(t, IsTransient(err))
}

func TestBadRequestError(t *testing.T) {
	eir := errors.New("some bad request error")
	e := errors.New("some other error")

	err := fmt.Errorf("got error: %w", NewBadRequest(eir))

	require.True(t, IsBadRequest(err))
	require.True(t, errors.Is(err, eir))
	require.False(t, IsBadRequest(e))
	require.EqualError(t, err, "got error: some bad request error")

	err = NewBadRequestf("some bad request")
	require.True(t, IsBadRequest(err))
}

func TestNotAllowedError(t *testing.T) {
	e := errors.New("some other error")

	err := NewNotAllowed(fakeState("AGREED"), errors.New("Request not valid from state AGREED"))

	require.True(t, IsNotAllowed(err))
	require.False(t, IsNotAllowed(e))
	require.Equal(t, "AGREED", NotAllowedState(err))
	require.Equal(t, "", NotAllowedState(e))

	err = NewNotAllowedf(fakeState("VERIFIED"), "unexpected message %s", "Offer")
	require.True(t, IsNotAllowed(err))
	require.Equal(t, "VERIFIED", NotAllowedState(err))
}

func TestNotFoundError(t *testing.T) {
	e := errors.New("some other error")

	err := NewNotFound(errors.New("process urn:uuid:1 not found"))

	require.True(t, IsNotFound(err))
	require.False(t, IsNotFound(e))

	err = NewNotFoundf("process %s not found", "urn:uuid:1")
	require.True(t, IsNotFound(err))
}

func TestUnauthorizedError(t *testing.T) {
	e := errors.New("some other error")

	err := NewUnauthorized(errors.New("hash mismatch"))

	require.True(t, IsUnauthorized(err))
	require.False(t, IsUnauthorized(e))

	err = NewUnauthorizedf("missing bearer token")
	require.True(t, IsUnauthorized(err))
}
