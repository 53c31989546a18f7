/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package resthandler

import (
	"net/http"

	"github.com/trustbloc/dataspace-connector/pkg/dsp/model"
	"github.com/trustbloc/dataspace-connector/pkg/dsp/orchestrator"
	"github.com/trustbloc/dataspace-connector/pkg/store/procstore"
)

// ConsumerRequestTransferHandler lets the consumer initiate a TransferRequest.
type ConsumerRequestTransferHandler struct {
	orch *orchestrator.Orchestrator
}

// NewConsumerRequestTransferHandler handles POST /api/v1/transfers/request.
func NewConsumerRequestTransferHandler(orch *orchestrator.Orchestrator) *ConsumerRequestTransferHandler {
	return &ConsumerRequestTransferHandler{orch: orch}
}

func (h *ConsumerRequestTransferHandler) Path() string { return manageAPIBase + "/transfers/request" }
func (h *ConsumerRequestTransferHandler) Method() string { return http.MethodPost }
func (h *ConsumerRequestTransferHandler) Handler() http.HandlerFunc { return h.handle }

type requestTransferBody struct {
	ConsumerPID         string               `json:"consumerPid"`
	CallbackAddress     string               `json:"callbackAddress"`
	CounterpartyAddress string               `json:"counterpartyAddress"`
	ParticipantID       string               `json:"participantId"`
	AgreementID         string               `json:"agreementId"`
	Format              model.TransferFormat `json:"format"`
	DataAddress         *model.DataAddress   `json:"dataAddress,omitempty"`
}

func (h *ConsumerRequestTransferHandler) handle(w http.ResponseWriter, r *http.Request) {
	var in requestTransferBody

	if err := decodeJSON(r, &in); err != nil {
		writeError(w, err)
		return
	}

	msg := model.TransferRequestMessage{
		AgreementID: in.AgreementID,
		Format:      in.Format,
		DataAddress: in.DataAddress,
	}

	proc, err := h.orch.ConsumerRequestTransfer(r.Context(), in.ConsumerPID, in.CallbackAddress,
		in.ParticipantID, in.CounterpartyAddress, msg)
	if err != nil {
		writeError(w, err)
		return
	}

	writeTPAck(w, proc)
}

// SendStartHandler lets either role send TransferStart.
type SendStartHandler struct {
	orch *orchestrator.Orchestrator
	role procstore.Role
}

// NewSendStartHandler handles POST /api/v1/transfers/{pid}/start.
func NewSendStartHandler(orch *orchestrator.Orchestrator, role procstore.Role) *SendStartHandler {
	return &SendStartHandler{orch: orch, role: role}
}

func (h *SendStartHandler) Path() string { return manageAPIBase + transfersIDStart }
func (h *SendStartHandler) Method() string { return http.MethodPost }
func (h *SendStartHandler) Handler() http.HandlerFunc { return h.handle }

type sendStartBody struct {
	PeerPID     string             `json:"peerPid"`
	DataAddress *model.DataAddress `json:"dataAddress,omitempty"`
}

func (h *SendStartHandler) handle(w http.ResponseWriter, r *http.Request) {
	var in sendStartBody

	if err := decodeJSON(r, &in); err != nil {
		writeError(w, err)
		return
	}

	localPID := muxVar(r, pidPathVar)

	proc, err := h.orch.SendStart(r.Context(), h.role, localPID, in.PeerPID, in.DataAddress)
	if err != nil {
		writeError(w, err)
		return
	}

	writeTPAck(w, proc)
}

// SendSuspensionHandler lets either role send TransferSuspension.
type SendSuspensionHandler struct {
	orch *orchestrator.Orchestrator
	role procstore.Role
}

// NewSendSuspensionHandler handles POST /api/v1/transfers/{pid}/suspension.
func NewSendSuspensionHandler(orch *orchestrator.Orchestrator, role procstore.Role) *SendSuspensionHandler {
	return &SendSuspensionHandler{orch: orch, role: role}
}

func (h *SendSuspensionHandler) Path() string { return manageAPIBase + transfersIDSuspend }
func (h *SendSuspensionHandler) Method() string { return http.MethodPost }
func (h *SendSuspensionHandler) Handler() http.HandlerFunc { return h.handle }

type sendSuspensionBody struct {
	PeerPID string   `json:"peerPid"`
	Code    string   `json:"code,omitempty"`
	Reason  []string `json:"reason,omitempty"`
}

func (h *SendSuspensionHandler) handle(w http.ResponseWriter, r *http.Request) {
	var in sendSuspensionBody

	if err := decodeJSON(r, &in); err != nil {
		writeError(w, err)
		return
	}

	localPID := muxVar(r, pidPathVar)

	msg := model.TransferSuspensionMessage{Code: in.Code, Reason: in.Reason}

	proc, err := h.orch.SendSuspension(r.Context(), h.role, localPID, in.PeerPID, msg)
	if err != nil {
		writeError(w, err)
		return
	}

	writeTPAck(w, proc)
}

// SendCompletionHandler lets either role send TransferCompletion.
type SendCompletionHandler struct {
	orch *orchestrator.Orchestrator
	role procstore.Role
}

// NewSendCompletionHandler handles POST /api/v1/transfers/{pid}/completion.
func NewSendCompletionHandler(orch *orchestrator.Orchestrator, role procstore.Role) *SendCompletionHandler {
	return &SendCompletionHandler{orch: orch, role: role}
}

func (h *SendCompletionHandler) Path() string { return manageAPIBase + transfersIDComplete }
func (h *SendCompletionHandler) Method() string { return http.MethodPost }
func (h *SendCompletionHandler) Handler() http.HandlerFunc { return h.handle }

type peerPIDBody struct {
	PeerPID string `json:"peerPid"`
}

func (h *SendCompletionHandler) handle(w http.ResponseWriter, r *http.Request) {
	var in peerPIDBody

	if err := decodeJSON(r, &in); err != nil {
		writeError(w, err)
		return
	}

	localPID := muxVar(r, pidPathVar)

	proc, err := h.orch.SendCompletion(r.Context(), h.role, localPID, in.PeerPID, model.TransferCompletionMessage{})
	if err != nil {
		writeError(w, err)
		return
	}

	writeTPAck(w, proc)
}

// SendTransferTerminationHandler lets either role send TransferTermination.
type SendTransferTerminationHandler struct {
	orch *orchestrator.Orchestrator
	role procstore.Role
}

// NewSendTransferTerminationHandler handles POST /api/v1/transfers/{pid}/termination.
func NewSendTransferTerminationHandler(orch *orchestrator.Orchestrator,
	role procstore.Role) *SendTransferTerminationHandler {
	return &SendTransferTerminationHandler{orch: orch, role: role}
}

func (h *SendTransferTerminationHandler) Path() string { return manageAPIBase + transfersIDTerminate }
func (h *SendTransferTerminationHandler) Method() string { return http.MethodPost }
func (h *SendTransferTerminationHandler) Handler() http.HandlerFunc { return h.handle }

func (h *SendTransferTerminationHandler) handle(w http.ResponseWriter, r *http.Request) {
	var in sendSuspensionBody

	if err := decodeJSON(r, &in); err != nil {
		writeError(w, err)
		return
	}

	localPID := muxVar(r, pidPathVar)

	msg := model.TransferTerminationMessage{Code: in.Code, Reason: in.Reason}

	proc, err := h.orch.SendTermination(r.Context(), h.role, localPID, in.PeerPID, msg)
	if err != nil {
		writeError(w, err)
		return
	}

	writeTPAck(w, proc)
}
