/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package httpserver

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const (
	listenURL = "localhost:8287"
	clientURL = "http://" + listenURL

	samplePath = "/sample"
)

type sampleHandler struct{}

func (h *sampleHandler) Path() string { return samplePath }
func (h *sampleHandler) Method() string { return http.MethodGet }

func (h *sampleHandler) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}
}

type allowAll struct{}

func (allowAll) Verify(*http.Request) bool { return true }

type denyAll struct{}

func (denyAll) Verify(*http.Request) bool { return false }

func TestServer_StartStop(t *testing.T) {
	s := New(listenURL, []HTTPHandler{&sampleHandler{}}, WithAuthorizer(allowAll{}))

	require.NoError(t, s.Start())
	require.Error(t, s.Start())

	var resp *http.Response

	require.Eventually(t, func() bool {
		var err error

		resp, err = http.Get(clientURL + samplePath) //nolint:noctx

		return err == nil
	}, 5*time.Second, 100*time.Millisecond)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.Equal(t, "ok", string(body))

	resp, err = http.Get(clientURL + healthCheckEndpoint) //nolint:noctx
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, resp.Body.Close())

	require.NoError(t, s.Stop(context.Background()))
	require.Error(t, s.Stop(context.Background()))
}

func TestServer_Unauthorized(t *testing.T) {
	mw := authorizationMiddleware(denyAll{})

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, samplePath, http.NoBody))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	// The health check bypasses authorization.
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, healthCheckEndpoint, http.NoBody))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthCheckHandler(t *testing.T) {
	rec := httptest.NewRecorder()

	healthCheckHandler(rec, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "success")
}
