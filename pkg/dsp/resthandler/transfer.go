/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package resthandler

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/trustbloc/dataspace-connector/pkg/dsp/model"
	"github.com/trustbloc/dataspace-connector/pkg/dsp/orchestrator"
	"github.com/trustbloc/dataspace-connector/pkg/dsp/validator"
	"github.com/trustbloc/dataspace-connector/pkg/httpserver/auth"
	"github.com/trustbloc/dataspace-connector/pkg/store/procstore"
)

const (
	transfersBase        = "/transfers"
	transfersRequestPath = transfersBase + "/request"
	transfersIDStart     = transfersBase + "/{" + pidPathVar + "}/start"
	transfersIDSuspend   = transfersBase + "/{" + pidPathVar + "}/suspension"
	transfersIDComplete  = transfersBase + "/{" + pidPathVar + "}/completion"
	transfersIDTerminate = transfersBase + "/{" + pidPathVar + "}/termination"
	transfersIDGet       = transfersBase + "/{" + pidPathVar + "}"
)

func writeTPAck(w http.ResponseWriter, proc *procstore.Process) {
	providerPID, consumerPID := providerConsumerPIDs(proc)

	writeJSON(w, http.StatusOK, model.TransferProcessAck{
		Envelope:    model.Envelope{Context: model.DSPContext, Type: model.TypeTransferProcessAck},
		ProviderPID: providerPID,
		ConsumerPID: consumerPID,
		State:       proc.State,
	})
}

// TransferRequestHandler receives the consumer's initial TransferRequest.
type TransferRequestHandler struct {
	v    *validator.Validator
	orch *orchestrator.Orchestrator
}

// NewTransferRequest handles POST /transfers/request.
func NewTransferRequest(v *validator.Validator, orch *orchestrator.Orchestrator) *TransferRequestHandler {
	return &TransferRequestHandler{v: v, orch: orch}
}

func (h *TransferRequestHandler) Path() string { return transfersRequestPath }
func (h *TransferRequestHandler) Method() string { return http.MethodPost }
func (h *TransferRequestHandler) Handler() http.HandlerFunc { return h.handle }

func (h *TransferRequestHandler) handle(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if _, protoErr, err := h.v.ValidateEnvelope(body); err != nil {
		writeError(w, err)
		return
	} else if protoErr != nil {
		writeProtocolError(w, protoErr)
		return
	}

	var msg model.TransferRequestMessage

	if err := json.Unmarshal(body, &msg); err != nil {
		writeError(w, err)
		return
	}

	participant, _ := auth.ParticipantFromContext(r.Context())

	proc, err := h.orch.ProviderHandleTransferRequest(r.Context(), body, msg, participant)
	if err != nil {
		writeError(w, err)
		return
	}

	writeTPAck(w, proc)
}

// TransferStartHandler receives a TransferStart from either role (the
// provider initially, either role on resume from SUSPENDED).
type TransferStartHandler struct {
	v          *validator.Validator
	orch       *orchestrator.Orchestrator
	senderRole procstore.Role
}

// NewTransferStart handles POST /transfers/{pid}/start. senderRole is
// whichever role sends this message to us.
func NewTransferStart(v *validator.Validator, orch *orchestrator.Orchestrator,
	senderRole procstore.Role) *TransferStartHandler {
	return &TransferStartHandler{v: v, orch: orch, senderRole: senderRole}
}

func (h *TransferStartHandler) Path() string { return transfersIDStart }
func (h *TransferStartHandler) Method() string { return http.MethodPost }
func (h *TransferStartHandler) Handler() http.HandlerFunc { return h.handle }

func (h *TransferStartHandler) handle(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if _, protoErr, err := h.v.ValidateEnvelope(body); err != nil {
		writeError(w, err)
		return
	} else if protoErr != nil {
		writeProtocolError(w, protoErr)
		return
	}

	localPID := mux.Vars(r)[pidPathVar]

	var msg model.TransferStartMessage

	if err := json.Unmarshal(body, &msg); err != nil {
		writeError(w, err)
		return
	}

	if !checkPIDs(w, h.orch.GetTransfer, localPID, msg.ProviderPID, msg.ConsumerPID) {
		return
	}

	proc, err := h.orch.HandleStart(r.Context(), h.senderRole, body, localPID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeTPAck(w, proc)
}

// TransferSuspensionHandler receives a TransferSuspension from either role.
type TransferSuspensionHandler struct {
	v          *validator.Validator
	orch       *orchestrator.Orchestrator
	senderRole procstore.Role
}

// NewTransferSuspension handles POST /transfers/{pid}/suspension.
func NewTransferSuspension(v *validator.Validator, orch *orchestrator.Orchestrator,
	senderRole procstore.Role) *TransferSuspensionHandler {
	return &TransferSuspensionHandler{v: v, orch: orch, senderRole: senderRole}
}

func (h *TransferSuspensionHandler) Path() string { return transfersIDSuspend }
func (h *TransferSuspensionHandler) Method() string { return http.MethodPost }
func (h *TransferSuspensionHandler) Handler() http.HandlerFunc { return h.handle }

func (h *TransferSuspensionHandler) handle(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if _, protoErr, err := h.v.ValidateEnvelope(body); err != nil {
		writeError(w, err)
		return
	} else if protoErr != nil {
		writeProtocolError(w, protoErr)
		return
	}

	localPID := mux.Vars(r)[pidPathVar]

	var msg model.TransferSuspensionMessage

	if err := json.Unmarshal(body, &msg); err != nil {
		writeError(w, err)
		return
	}

	if !checkPIDs(w, h.orch.GetTransfer, localPID, msg.ProviderPID, msg.ConsumerPID) {
		return
	}

	proc, err := h.orch.HandleSuspension(r.Context(), h.senderRole, body, localPID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeTPAck(w, proc)
}

// TransferCompletionHandler receives a TransferCompletion from either role.
type TransferCompletionHandler struct {
	v          *validator.Validator
	orch       *orchestrator.Orchestrator
	senderRole procstore.Role
}

// NewTransferCompletion handles POST /transfers/{pid}/completion.
func NewTransferCompletion(v *validator.Validator, orch *orchestrator.Orchestrator,
	senderRole procstore.Role) *TransferCompletionHandler {
	return &TransferCompletionHandler{v: v, orch: orch, senderRole: senderRole}
}

func (h *TransferCompletionHandler) Path() string { return transfersIDComplete }
func (h *TransferCompletionHandler) Method() string { return http.MethodPost }
func (h *TransferCompletionHandler) Handler() http.HandlerFunc { return h.handle }

func (h *TransferCompletionHandler) handle(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if _, protoErr, err := h.v.ValidateEnvelope(body); err != nil {
		writeError(w, err)
		return
	} else if protoErr != nil {
		writeProtocolError(w, protoErr)
		return
	}

	localPID := mux.Vars(r)[pidPathVar]

	var msg model.TransferCompletionMessage

	if err := json.Unmarshal(body, &msg); err != nil {
		writeError(w, err)
		return
	}

	if !checkPIDs(w, h.orch.GetTransfer, localPID, msg.ProviderPID, msg.ConsumerPID) {
		return
	}

	proc, err := h.orch.HandleCompletion(r.Context(), h.senderRole, body, localPID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeTPAck(w, proc)
}

// TransferTerminationHandler receives a TransferTermination from either role.
type TransferTerminationHandler struct {
	v          *validator.Validator
	orch       *orchestrator.Orchestrator
	senderRole procstore.Role
}

// NewTransferTermination handles POST /transfers/{pid}/termination.
func NewTransferTermination(v *validator.Validator, orch *orchestrator.Orchestrator,
	senderRole procstore.Role) *TransferTerminationHandler {
	return &TransferTerminationHandler{v: v, orch: orch, senderRole: senderRole}
}

func (h *TransferTerminationHandler) Path() string { return transfersIDTerminate }
func (h *TransferTerminationHandler) Method() string { return http.MethodPost }
func (h *TransferTerminationHandler) Handler() http.HandlerFunc { return h.handle }

func (h *TransferTerminationHandler) handle(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if _, protoErr, err := h.v.ValidateEnvelope(body); err != nil {
		writeError(w, err)
		return
	} else if protoErr != nil {
		writeProtocolError(w, protoErr)
		return
	}

	localPID := mux.Vars(r)[pidPathVar]

	proc, err := h.orch.HandleTermination(r.Context(), h.senderRole, body, localPID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeTPAck(w, proc)
}

// TransferGetHandler serves the GET /transfers/{pid} poll endpoint.
type TransferGetHandler struct {
	orch *orchestrator.Orchestrator
}

// NewTransferGet handles GET /transfers/{pid}.
func NewTransferGet(orch *orchestrator.Orchestrator) *TransferGetHandler {
	return &TransferGetHandler{orch: orch}
}

func (h *TransferGetHandler) Path() string { return transfersIDGet }
func (h *TransferGetHandler) Method() string { return http.MethodGet }
func (h *TransferGetHandler) Handler() http.HandlerFunc { return h.handle }

func (h *TransferGetHandler) handle(w http.ResponseWriter, r *http.Request) {
	pid := mux.Vars(r)[pidPathVar]

	proc, err := h.orch.GetTransfer(pid)
	if err != nil {
		writeError(w, err)
		return
	}

	writeTPAck(w, proc)
}
