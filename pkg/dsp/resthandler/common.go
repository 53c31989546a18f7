/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package resthandler implements the DSP REST endpoints:
// one HTTPHandler per inbound protocol message (peer-to-peer) and per
// locally-initiated operation (this connector's own control surface),
// wiring pkg/dsp/validator and pkg/dsp/orchestrator together and mapping
// errors onto HTTP status codes. One handler struct per endpoint.
package resthandler

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/trustbloc/dataspace-connector/pkg/dsp/validator"
	dcerrors "github.com/trustbloc/dataspace-connector/pkg/errors"
	"github.com/trustbloc/dataspace-connector/pkg/store/procstore"

	"github.com/trustbloc/dataspace-connector/internal/pkg/log"
)

func muxVar(r *http.Request, name string) string {
	return mux.Vars(r)[name]
}

var logger = log.New("dsp-resthandler")

const maxBodySize = 2 << 20 // 2 MiB, generous for a JSON-LD negotiation/transfer envelope.

func readBody(r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize+1))
	if err != nil {
		return nil, dcerrors.NewBadRequestf("read request body: %w", err)
	}

	if len(body) > maxBodySize {
		return nil, dcerrors.NewBadRequestf("request body exceeds %d bytes", maxBodySize)
	}

	return body, nil
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

// writeError maps an error from the validator/orchestrator onto the HTTP
// status codes.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case dcerrors.IsBadRequest(err):
		writeJSON(w, http.StatusBadRequest, errBody(err))
	case dcerrors.IsNotAllowed(err):
		writeJSON(w, http.StatusConflict, errBody(err))
	case dcerrors.IsNotFound(err):
		writeJSON(w, http.StatusNotFound, errBody(err))
	case dcerrors.IsUnauthorized(err):
		writeJSON(w, http.StatusUnauthorized, errBody(err))
	case dcerrors.IsTransient(err):
		logger.Warn("transient failure handling request", log.WithError(err))
		writeJSON(w, http.StatusBadGateway, errBody(err))
	default:
		logger.Error("internal failure handling request", log.WithError(err))
		writeJSON(w, http.StatusInternalServerError, errBody(err))
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func errBody(err error) errorResponse {
	return errorResponse{Error: err.Error()}
}

// writeProtocolError renders a *validator.ProtocolError as a 400 with the
// structured DSP error body, naming the offending PIDs when known.
func writeProtocolError(w http.ResponseWriter, protoErr *validator.ProtocolError) {
	writeJSON(w, http.StatusBadRequest, protoErr)
}

// checkPIDs validates the body's PID pair against the path identifier and
// the stored process record, when one exists. Returns false after writing
// the 400 response on a mismatch.
func checkPIDs(w http.ResponseWriter, lookup func(string) (*procstore.Process, error),
	pathPID, msgProviderPID, msgConsumerPID string) bool {
	if pathPID == "" {
		return true
	}

	storedProviderPID, storedConsumerPID := "", ""

	if proc, err := lookup(pathPID); err == nil {
		storedProviderPID, storedConsumerPID = providerConsumerPIDs(proc)
	}

	if protoErr := validator.SemanticCheckPIDs(msgProviderPID, msgConsumerPID, pathPID,
		storedProviderPID, storedConsumerPID); protoErr != nil {
		writeProtocolError(w, protoErr)
		return false
	}

	return true
}
