/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package maintenance

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHandlerWrapper(t *testing.T) {
	const path = "/negotiations"

	t.Run("disabled -> delegates to wrapped handler", func(t *testing.T) {
		w := NewMaintenanceWrapper(&mockHTTPHandler{path: path, method: http.MethodPost})
		require.NotNil(t, w)

		require.Equal(t, path, w.Path())
		require.Equal(t, http.MethodPost, w.Method())

		rw := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, path, nil)

		w.Handler()(rw, req)

		result := rw.Result()
		require.Equal(t, http.StatusOK, result.StatusCode)
		require.NoError(t, result.Body.Close())
	})

	t.Run("enabled -> 503", func(t *testing.T) {
		w := NewMaintenanceWrapper(&mockHTTPHandler{path: path, method: http.MethodPost})
		w.SetEnabled(true)

		rw := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, path, nil)

		w.Handler()(rw, req)

		result := rw.Result()
		require.Equal(t, http.StatusServiceUnavailable, result.StatusCode)
		require.NoError(t, result.Body.Close())

		w.SetEnabled(false)

		rw = httptest.NewRecorder()
		req = httptest.NewRequest(http.MethodPost, path, nil)

		w.Handler()(rw, req)

		require.Equal(t, http.StatusOK, rw.Result().StatusCode)
	})
}

type mockHTTPHandler struct {
	path   string
	method string
}

func (m *mockHTTPHandler) Path() string {
	return m.path
}

func (m *mockHTTPHandler) Method() string {
	return m.method
}

func (m *mockHTTPHandler) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}
}
