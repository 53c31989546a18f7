/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// manage_negotiation.go implements the local control surface that sits
// behind the DSP wire protocol: an operator (or the owning
// application) triggers a CN step by calling one of these endpoints, and the
// connector does the outbound DSP call itself. These are not peer-facing;
// they are mounted separately from negotiation.go's inbound handlers.
package resthandler

import (
	"encoding/json"
	"net/http"

	"github.com/trustbloc/dataspace-connector/pkg/dsp/model"
	"github.com/trustbloc/dataspace-connector/pkg/dsp/orchestrator"
	"github.com/trustbloc/dataspace-connector/pkg/store/procstore"
)

const manageAPIBase = "/api/v1"

func decodeJSON(r *http.Request, v interface{}) error {
	return json.NewDecoder(r.Body).Decode(v)
}

// ConsumerRequestHandler lets the consumer initiate (or counter) a Request.
type ConsumerRequestHandler struct {
	orch *orchestrator.Orchestrator
}

// NewConsumerRequestHandler handles POST /api/v1/negotiations/request.
func NewConsumerRequestHandler(orch *orchestrator.Orchestrator) *ConsumerRequestHandler {
	return &ConsumerRequestHandler{orch: orch}
}

func (h *ConsumerRequestHandler) Path() string { return manageAPIBase + "/negotiations/request" }
func (h *ConsumerRequestHandler) Method() string { return http.MethodPost }
func (h *ConsumerRequestHandler) Handler() http.HandlerFunc { return h.handle }

type consumerRequestBody struct {
	ConsumerPID         string      `json:"consumerPid"`
	ProviderPID         string      `json:"providerPid,omitempty"`
	CounterpartyAddress string      `json:"counterpartyAddress"`
	ParticipantID       string      `json:"participantId"`
	CallbackAddress     string      `json:"callbackAddress"`
	Offer               model.Offer `json:"offer"`
}

func (h *ConsumerRequestHandler) handle(w http.ResponseWriter, r *http.Request) {
	var in consumerRequestBody

	if err := decodeJSON(r, &in); err != nil {
		writeError(w, err)
		return
	}

	proc, err := h.orch.ConsumerRequest(r.Context(), in.ConsumerPID, in.ProviderPID, in.CounterpartyAddress,
		in.ParticipantID, model.ContractRequestMessage{Offer: in.Offer, Callback: in.CallbackAddress})
	if err != nil {
		writeError(w, err)
		return
	}

	writeCNAck(w, proc)
}

// ProviderOfferHandler lets the provider initiate (or counter) an Offer.
type ProviderOfferHandler struct {
	orch *orchestrator.Orchestrator
}

// NewProviderOfferHandler handles POST /api/v1/negotiations/offers.
func NewProviderOfferHandler(orch *orchestrator.Orchestrator) *ProviderOfferHandler {
	return &ProviderOfferHandler{orch: orch}
}

func (h *ProviderOfferHandler) Path() string { return manageAPIBase + "/negotiations/offers" }
func (h *ProviderOfferHandler) Method() string { return http.MethodPost }
func (h *ProviderOfferHandler) Handler() http.HandlerFunc { return h.handle }

type providerOfferBody struct {
	ProviderPID         string      `json:"providerPid"`
	ConsumerPID         string      `json:"consumerPid,omitempty"`
	CounterpartyAddress string      `json:"counterpartyAddress"`
	ParticipantID       string      `json:"participantId"`
	CallbackAddress     string      `json:"callbackAddress"`
	Offer               model.Offer `json:"offer"`
}

func (h *ProviderOfferHandler) handle(w http.ResponseWriter, r *http.Request) {
	var in providerOfferBody

	if err := decodeJSON(r, &in); err != nil {
		writeError(w, err)
		return
	}

	proc, err := h.orch.ProviderOffer(r.Context(), in.ProviderPID, in.ConsumerPID, in.CounterpartyAddress,
		in.ParticipantID, model.ContractOfferMessage{Offer: in.Offer, Callback: in.CallbackAddress})
	if err != nil {
		writeError(w, err)
		return
	}

	writeCNAck(w, proc)
}

// SendAgreementHandler lets the provider send the Agreement.
type SendAgreementHandler struct {
	orch *orchestrator.Orchestrator
}

// NewSendAgreementHandler handles POST /api/v1/negotiations/{pid}/agreement.
func NewSendAgreementHandler(orch *orchestrator.Orchestrator) *SendAgreementHandler {
	return &SendAgreementHandler{orch: orch}
}

func (h *SendAgreementHandler) Path() string { return manageAPIBase + negotiationsIDAgreement }
func (h *SendAgreementHandler) Method() string { return http.MethodPost }
func (h *SendAgreementHandler) Handler() http.HandlerFunc { return h.handle }

type sendAgreementBody struct {
	ConsumerPID string      `json:"consumerPid"`
	AgreementID string      `json:"agreementId"`
	Offer       model.Offer `json:"offer"`
}

func (h *SendAgreementHandler) handle(w http.ResponseWriter, r *http.Request) {
	var in sendAgreementBody

	if err := decodeJSON(r, &in); err != nil {
		writeError(w, err)
		return
	}

	providerPID := muxVar(r, pidPathVar)

	proc, err := h.orch.ProviderSendAgreement(r.Context(), providerPID, in.ConsumerPID, in.AgreementID, in.Offer)
	if err != nil {
		writeError(w, err)
		return
	}

	writeCNAck(w, proc)
}

// SendAcceptedEventHandler lets the consumer send the ACCEPTED event.
type SendAcceptedEventHandler struct {
	orch *orchestrator.Orchestrator
}

// NewSendAcceptedEventHandler handles POST /api/v1/negotiations/{pid}/events/accepted.
func NewSendAcceptedEventHandler(orch *orchestrator.Orchestrator) *SendAcceptedEventHandler {
	return &SendAcceptedEventHandler{orch: orch}
}

func (h *SendAcceptedEventHandler) Path() string { return manageAPIBase + negotiationsIDEvents + "/accepted" }
func (h *SendAcceptedEventHandler) Method() string { return http.MethodPost }
func (h *SendAcceptedEventHandler) Handler() http.HandlerFunc { return h.handle }

type sendEventBody struct {
	PeerPID string `json:"peerPid"`
}

func (h *SendAcceptedEventHandler) handle(w http.ResponseWriter, r *http.Request) {
	var in sendEventBody

	if err := decodeJSON(r, &in); err != nil {
		writeError(w, err)
		return
	}

	consumerPID := muxVar(r, pidPathVar)

	proc, err := h.orch.ConsumerSendEventAccepted(r.Context(), in.PeerPID, consumerPID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeCNAck(w, proc)
}

// SendVerificationHandler lets the consumer send the Verification.
type SendVerificationHandler struct {
	orch *orchestrator.Orchestrator
}

// NewSendVerificationHandler handles POST /api/v1/negotiations/{pid}/agreement/verification.
func NewSendVerificationHandler(orch *orchestrator.Orchestrator) *SendVerificationHandler {
	return &SendVerificationHandler{orch: orch}
}

func (h *SendVerificationHandler) Path() string { return manageAPIBase + negotiationsIDVerify }
func (h *SendVerificationHandler) Method() string { return http.MethodPost }
func (h *SendVerificationHandler) Handler() http.HandlerFunc { return h.handle }

func (h *SendVerificationHandler) handle(w http.ResponseWriter, r *http.Request) {
	var in sendEventBody

	if err := decodeJSON(r, &in); err != nil {
		writeError(w, err)
		return
	}

	consumerPID := muxVar(r, pidPathVar)

	proc, err := h.orch.ConsumerSendVerification(r.Context(), in.PeerPID, consumerPID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeCNAck(w, proc)
}

// SendFinalizedEventHandler lets the provider send the FINALIZED event.
type SendFinalizedEventHandler struct {
	orch *orchestrator.Orchestrator
}

// NewSendFinalizedEventHandler handles POST /api/v1/negotiations/{pid}/events/finalized.
func NewSendFinalizedEventHandler(orch *orchestrator.Orchestrator) *SendFinalizedEventHandler {
	return &SendFinalizedEventHandler{orch: orch}
}

func (h *SendFinalizedEventHandler) Path() string { return manageAPIBase + negotiationsIDEvents + "/finalized" }
func (h *SendFinalizedEventHandler) Method() string { return http.MethodPost }
func (h *SendFinalizedEventHandler) Handler() http.HandlerFunc { return h.handle }

func (h *SendFinalizedEventHandler) handle(w http.ResponseWriter, r *http.Request) {
	var in sendEventBody

	if err := decodeJSON(r, &in); err != nil {
		writeError(w, err)
		return
	}

	providerPID := muxVar(r, pidPathVar)

	proc, err := h.orch.ProviderSendEventFinalized(r.Context(), providerPID, in.PeerPID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeCNAck(w, proc)
}

// SendNegotiationTerminationHandler lets either role terminate a negotiation.
type SendNegotiationTerminationHandler struct {
	orch *orchestrator.Orchestrator
	role procstore.Role
}

// NewSendNegotiationTerminationHandler handles POST
// /api/v1/negotiations/{pid}/termination, sent as role.
func NewSendNegotiationTerminationHandler(orch *orchestrator.Orchestrator,
	role procstore.Role) *SendNegotiationTerminationHandler {
	return &SendNegotiationTerminationHandler{orch: orch, role: role}
}

func (h *SendNegotiationTerminationHandler) Path() string { return manageAPIBase + negotiationsIDTerminate }
func (h *SendNegotiationTerminationHandler) Method() string { return http.MethodPost }
func (h *SendNegotiationTerminationHandler) Handler() http.HandlerFunc { return h.handle }

type sendTerminationBody struct {
	PeerPID string   `json:"peerPid"`
	Code    string   `json:"code,omitempty"`
	Reason  []string `json:"reason,omitempty"`
}

func (h *SendNegotiationTerminationHandler) handle(w http.ResponseWriter, r *http.Request) {
	var in sendTerminationBody

	if err := decodeJSON(r, &in); err != nil {
		writeError(w, err)
		return
	}

	localPID := muxVar(r, pidPathVar)

	msg := model.ContractNegotiationTerminationMessage{Code: in.Code, Reason: in.Reason}

	proc, err := h.orch.TerminateNegotiation(r.Context(), h.role, localPID, in.PeerPID, "", msg, nil)
	if err != nil {
		writeError(w, err)
		return
	}

	writeCNAck(w, proc)
}
