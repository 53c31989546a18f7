/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package resthandler

import (
	"net/http"

	"github.com/trustbloc/dataspace-connector/pkg/grant/consumer"
	gmodel "github.com/trustbloc/dataspace-connector/pkg/grant/model"
)

// onboardRequestBody is the locally-initiated trigger for a new grant flow:
// an operator (or the owning application) names the AS to onboard with and
// the scopes it wants.
type onboardRequestBody struct {
	ASGrantEndpoint string                  `json:"asGrantEndpoint"`
	CallbackURI     string                  `json:"callbackUri"`
	ParticipantID   string                  `json:"participantId"`
	AccessToken     []gmodel.AccessTokenReq `json:"accessToken"`
}

// OnboardRequestHandler lets this connector start a new grant flow as client.
type OnboardRequestHandler struct {
	engine *consumer.Engine
}

// NewOnboardRequestHandler handles POST /api/v1/onboard/request.
func NewOnboardRequestHandler(engine *consumer.Engine) *OnboardRequestHandler {
	return &OnboardRequestHandler{engine: engine}
}

func (h *OnboardRequestHandler) Path() string { return apiBase + "/onboard/request" }
func (h *OnboardRequestHandler) Method() string { return http.MethodPost }
func (h *OnboardRequestHandler) Handler() http.HandlerFunc { return h.handle }

func (h *OnboardRequestHandler) handle(w http.ResponseWriter, r *http.Request) {
	var in onboardRequestBody

	if err := decodeBody(r, &in); err != nil {
		writeError(w, err)
		return
	}

	proc, err := h.engine.RequestGrant(r.Context(), in.ASGrantEndpoint, in.CallbackURI,
		in.ParticipantID, in.AccessToken)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, proc)
}

// onboardCallbackBody extends gmodel.CallbackBody with the counterparty
// descriptor needed to mint a Mate record for the AS once the continuation
// succeeds; the push finish callback itself only carries
// {interact_ref, hash}, so the operator supplies the rest out of band.
type onboardCallbackBody struct {
	gmodel.CallbackBody
	PeerParticipantID string `json:"peerParticipantId"`
	PeerBaseURL       string `json:"peerBaseUrl"`
}

// OnboardCallbackHandler receives the AS's push-finish callback.
type OnboardCallbackHandler struct {
	engine *consumer.Engine
}

// NewOnboardCallbackHandler handles POST /api/v1/onboard/callback/{id}.
func NewOnboardCallbackHandler(engine *consumer.Engine) *OnboardCallbackHandler {
	return &OnboardCallbackHandler{engine: engine}
}

func (h *OnboardCallbackHandler) Path() string { return apiBase + "/onboard/callback/{" + idVar + "}" }
func (h *OnboardCallbackHandler) Method() string { return http.MethodPost }
func (h *OnboardCallbackHandler) Handler() http.HandlerFunc { return h.handle }

func (h *OnboardCallbackHandler) handle(w http.ResponseWriter, r *http.Request) {
	var in onboardCallbackBody

	if err := decodeBody(r, &in); err != nil {
		writeError(w, err)
		return
	}

	localPID := muxVar(r, idVar)

	proc, err := h.engine.HandleCallback(r.Context(), localPID, in.CallbackBody,
		in.PeerParticipantID, in.PeerBaseURL)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, proc)
}
