/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package dataplane

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func newDataPlaneServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()

	sessions := map[string]bool{}

	mux.HandleFunc("/sessions", func(w http.ResponseWriter, r *http.Request) {
		var req Request

		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		sessions[req.SessionID] = true

		_ = json.NewEncoder(w).Encode(sessionResponse{
			SessionID:    req.SessionID,
			Status:       StatusProvisioned,
			EndpointType: "https://w3id.org/idsa/v4.1/HTTP",
			Endpoint:     "https://dataplane.example.com/pull/" + req.SessionID,
		})
	})

	mux.HandleFunc("/sessions/", func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Path[len("/sessions/"):]

		if !sessions[id] {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		switch r.Method {
		case http.MethodDelete:
			delete(sessions, id)
			w.WriteHeader(http.StatusNoContent)
		case http.MethodGet:
			_ = json.NewEncoder(w).Encode(sessionResponse{SessionID: id, Status: StatusProvisioned})
		}
	})

	srv := httptest.NewServer(mux)

	t.Cleanup(srv.Close)

	return srv
}

func TestHTTPController(t *testing.T) {
	srv := newDataPlaneServer(t)

	controller := NewHTTPController(srv.Client(), srv.URL)

	endpoint, err := controller.Provision(context.Background(), Request{
		SessionID: "urn:uuid:tp-1", Protocol: "http", Action: "pull",
	})
	require.NoError(t, err)
	require.Contains(t, endpoint.Endpoint, "urn:uuid:tp-1")

	status, err := controller.Status(context.Background(), "urn:uuid:tp-1")
	require.NoError(t, err)
	require.Equal(t, StatusProvisioned, status)

	require.NoError(t, controller.Teardown(context.Background(), "urn:uuid:tp-1"))

	status, err = controller.Status(context.Background(), "urn:uuid:tp-1")
	require.NoError(t, err)
	require.Equal(t, StatusNotFound, status)

	// Tearing down an unknown session is not an error.
	require.NoError(t, controller.Teardown(context.Background(), "urn:uuid:unknown"))
}

func TestNoopController(t *testing.T) {
	controller := NoopController{}

	endpoint, err := controller.Provision(context.Background(), Request{SessionID: "s1"})
	require.NoError(t, err)
	require.NotNil(t, endpoint)

	require.NoError(t, controller.Teardown(context.Background(), "s1"))

	status, err := controller.Status(context.Background(), "s1")
	require.NoError(t, err)
	require.Equal(t, StatusNotFound, status)
}
