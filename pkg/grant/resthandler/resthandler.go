/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package resthandler implements the GNAP/OIDC4VP REST endpoints of
// both grant roles: the authorization-server side (access, pd, verify,
// continue) and the client-side onboarding control surface (request,
// callback). Grounded on the same one-struct-per-endpoint HTTPHandler idiom
// as pkg/dsp/resthandler.
package resthandler

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	dcerrors "github.com/trustbloc/dataspace-connector/pkg/errors"

	"github.com/trustbloc/dataspace-connector/internal/pkg/log"
)

var logger = log.New("grant-resthandler")

const (
	apiBase  = "/api/v1"
	stateVar = "state"
	idVar    = "id"

	maxBodySize = 1 << 20 // 1 MiB, generous for a grant request/response body.
)

func muxVar(r *http.Request, name string) string {
	return mux.Vars(r)[name]
}

func decodeBody(r *http.Request, v interface{}) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize+1))
	if err != nil {
		return dcerrors.NewBadRequestf("read request body: %w", err)
	}

	if len(body) > maxBodySize {
		return dcerrors.NewBadRequestf("request body exceeds %d bytes", maxBodySize)
	}

	if len(body) == 0 {
		return nil
	}

	if err := json.Unmarshal(body, v); err != nil {
		return dcerrors.NewBadRequestf("decode request body: %w", err)
	}

	return nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("failed to encode response body", log.WithError(err))
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case dcerrors.IsBadRequest(err):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case dcerrors.IsNotAllowed(err):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case dcerrors.IsNotFound(err):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case dcerrors.IsUnauthorized(err):
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: err.Error()})
	case dcerrors.IsTransient(err):
		logger.Warn("transient failure handling grant request", log.WithError(err))
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error()})
	default:
		logger.Error("internal failure handling grant request", log.WithError(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}
}
