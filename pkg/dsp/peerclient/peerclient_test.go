/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package peerclient

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	dcerrors "github.com/trustbloc/dataspace-connector/pkg/errors"
)

type stubDoer struct {
	request *http.Request
	status  int
	body    string
	err     error
}

func (d *stubDoer) Do(req *http.Request) (*http.Response, error) {
	d.request = req

	if d.err != nil {
		return nil, d.err
	}

	status := d.status
	if status == 0 {
		status = http.StatusOK
	}

	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(d.body)),
	}, nil
}

func TestPost(t *testing.T) {
	doer := &stubDoer{body: `{"ok":true}`}

	client := New(doer, WithTimeout(time.Second))

	resp, err := client.Post(context.Background(), "https://peer.example.com/negotiations/request",
		"token-1", []byte(`{}`))
	require.NoError(t, err)
	require.Equal(t, `{"ok":true}`, string(resp))

	require.Equal(t, "Bearer token-1", doer.request.Header.Get("Authorization"))
	require.Equal(t, "application/json", doer.request.Header.Get("Content-Type"))
}

func TestPost_NonOKStatus(t *testing.T) {
	doer := &stubDoer{status: http.StatusConflict, body: "rejected"}

	client := New(doer)

	_, err := client.Post(context.Background(), "https://peer.example.com/x", "", nil)
	require.True(t, dcerrors.IsTransient(err))
	require.Contains(t, err.Error(), "409")
}

func TestPost_HostRewrite(t *testing.T) {
	doer := &stubDoer{}

	client := New(doer, WithHostRewrite(map[string]string{"peer.example.com": "localhost:9090"}))

	_, err := client.Post(context.Background(), "https://peer.example.com/negotiations/request", "", nil)
	require.NoError(t, err)
	require.Equal(t, "localhost:9090", doer.request.URL.Host)
}

func TestPost_Signed(t *testing.T) {
	doer := &stubDoer{}

	client := New(doer, WithHTTPSignature("urn:participant:self"))

	_, err := client.Post(context.Background(), "https://peer.example.com/transfers/request",
		"shared-secret", []byte(`{}`))
	require.NoError(t, err)
	require.Contains(t, doer.request.Header.Get("Signature"), `keyId="urn:participant:self"`)
}

func TestPostWithGNAP(t *testing.T) {
	doer := &stubDoer{body: `{"access_token":{"value":"t1"}}`}

	client := New(doer)

	resp, err := client.PostWithGNAP(context.Background(), "https://as.example.com/continue/g1",
		"continue-token", []byte(`{"interact_ref":"r1"}`))
	require.NoError(t, err)
	require.Contains(t, string(resp), "t1")
	require.Equal(t, "GNAP continue-token", doer.request.Header.Get("Authorization"))
}

func TestPostWithGNAP_NonOK(t *testing.T) {
	doer := &stubDoer{status: http.StatusUnauthorized}

	client := New(doer)

	_, err := client.PostWithGNAP(context.Background(), "https://as.example.com/continue/g1", "bad", nil)
	require.True(t, dcerrors.IsUnauthorized(err))
}

func TestJoinPath(t *testing.T) {
	require.Equal(t, "https://peer.example.com/negotiations/p1/events",
		JoinPath("https://peer.example.com/", "negotiations/p1/events"))
}
