/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package resthandler

import (
	"net/http"

	"github.com/trustbloc/dataspace-connector/pkg/grant/authority"
	gmodel "github.com/trustbloc/dataspace-connector/pkg/grant/model"
	"github.com/trustbloc/dataspace-connector/pkg/httpserver/auth"

	"github.com/trustbloc/dataspace-connector/internal/pkg/log"
)

// AccessHandler receives the client's GrantRequest.
type AccessHandler struct {
	engine *authority.Engine
}

// NewAccessHandler handles POST /api/v1/access.
func NewAccessHandler(engine *authority.Engine) *AccessHandler {
	return &AccessHandler{engine: engine}
}

func (h *AccessHandler) Path() string { return apiBase + "/access" }
func (h *AccessHandler) Method() string { return http.MethodPost }
func (h *AccessHandler) Handler() http.HandlerFunc { return h.handle }

func (h *AccessHandler) handle(w http.ResponseWriter, r *http.Request) {
	var req gmodel.GrantRequest

	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	participant, _ := auth.ParticipantFromContext(r.Context())

	_, resp, err := h.engine.HandleGrantRequest(r.Context(), req, participant)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// PresentationDefinitionHandler serves the OIDC4VP presentation definition.
type PresentationDefinitionHandler struct {
	engine *authority.Engine
}

// NewPresentationDefinitionHandler handles GET /api/v1/pd/{state}.
func NewPresentationDefinitionHandler(engine *authority.Engine) *PresentationDefinitionHandler {
	return &PresentationDefinitionHandler{engine: engine}
}

func (h *PresentationDefinitionHandler) Path() string { return apiBase + "/pd/{" + stateVar + "}" }
func (h *PresentationDefinitionHandler) Method() string { return http.MethodGet }
func (h *PresentationDefinitionHandler) Handler() http.HandlerFunc { return h.handle }

func (h *PresentationDefinitionHandler) handle(w http.ResponseWriter, r *http.Request) {
	state := muxVar(r, stateVar)

	doc, err := h.engine.PresentationDefinition(r.Context(), state)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if _, err := w.Write(doc); err != nil {
		logger.Warn("failed to write presentation definition", log.WithError(err))
	}
}

// VerifyHandler receives the holder's vp_token submission.
type VerifyHandler struct {
	engine *authority.Engine
}

// NewVerifyHandler handles POST /api/v1/verify/{state}.
func NewVerifyHandler(engine *authority.Engine) *VerifyHandler {
	return &VerifyHandler{engine: engine}
}

func (h *VerifyHandler) Path() string { return apiBase + "/verify/{" + stateVar + "}" }
func (h *VerifyHandler) Method() string { return http.MethodPost }
func (h *VerifyHandler) Handler() http.HandlerFunc { return h.handle }

func (h *VerifyHandler) handle(w http.ResponseWriter, r *http.Request) {
	var req gmodel.VerifyRequest

	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	state := muxVar(r, stateVar)

	if err := h.engine.HandleVerification(r.Context(), state, req); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, nil)
}

// continueRequestBody extends gmodel.ContinueRequest with the counterparty
// descriptor needed to mint a Mate record for the client that just
// continued, since GNAP's continuation call itself carries no endpoint
// metadata for the AS's side of the dataspace connection.
type continueRequestBody struct {
	gmodel.ContinueRequest
	PeerBaseURL string `json:"peerBaseUrl"`
	PeerSlug    string `json:"peerSlug"`
}

// ContinueHandler mints the access token on a successful continuation.
type ContinueHandler struct {
	engine *authority.Engine
}

// NewContinueHandler handles POST /api/v1/continue/{id}, authorized by the
// `Authorization: GNAP <token>` header carrying the continuation token.
func NewContinueHandler(engine *authority.Engine) *ContinueHandler {
	return &ContinueHandler{engine: engine}
}

func (h *ContinueHandler) Path() string { return apiBase + "/continue/{" + idVar + "}" }
func (h *ContinueHandler) Method() string { return http.MethodPost }
func (h *ContinueHandler) Handler() http.HandlerFunc { return h.handle }

func (h *ContinueHandler) handle(w http.ResponseWriter, r *http.Request) {
	token, ok := auth.ExtractGNAPToken(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing GNAP continuation token"})
		return
	}

	var in continueRequestBody

	if err := decodeBody(r, &in); err != nil {
		writeError(w, err)
		return
	}

	grantID := muxVar(r, idVar)

	resp, err := h.engine.HandleContinue(r.Context(), grantID, token, in.PeerBaseURL, in.PeerSlug, in.ContinueRequest)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}
