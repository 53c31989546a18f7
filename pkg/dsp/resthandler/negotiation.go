/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package resthandler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/trustbloc/dataspace-connector/pkg/dsp/model"
	"github.com/trustbloc/dataspace-connector/pkg/dsp/orchestrator"
	"github.com/trustbloc/dataspace-connector/pkg/dsp/validator"
	"github.com/trustbloc/dataspace-connector/pkg/httpserver/auth"
	"github.com/trustbloc/dataspace-connector/pkg/store/procstore"
)

const (
	pidPathVar = "pid"

	negotiationsBase        = "/negotiations"
	negotiationsRequestPath = negotiationsBase + "/request"
	negotiationsIDRequest   = negotiationsBase + "/{" + pidPathVar + "}/request"
	negotiationsOffersPath  = negotiationsBase + "/offers"
	negotiationsIDOffers    = negotiationsBase + "/{" + pidPathVar + "}/offers"
	negotiationsIDAgreement = negotiationsBase + "/{" + pidPathVar + "}/agreement"
	negotiationsIDVerify    = negotiationsIDAgreement + "/verification"
	negotiationsIDEvents    = negotiationsBase + "/{" + pidPathVar + "}/events"
	negotiationsIDTerminate = negotiationsBase + "/{" + pidPathVar + "}/termination"
	negotiationsIDGet       = negotiationsBase + "/{" + pidPathVar + "}"
)

// providerConsumerPIDs derives the provider/consumer PID pair from a
// process record: the role-bound LocalPID/PeerPID fields generalize the two
// roles, so the pair is recovered from whichever side this
// process record belongs to.
func providerConsumerPIDs(proc *procstore.Process) (providerPID, consumerPID string) {
	if proc.Role == procstore.RoleProvider {
		return proc.LocalPID, proc.PeerPID
	}

	return proc.PeerPID, proc.LocalPID
}

func writeCNAck(w http.ResponseWriter, proc *procstore.Process) {
	providerPID, consumerPID := providerConsumerPIDs(proc)

	writeJSON(w, http.StatusOK, model.ContractNegotiationAck{
		Envelope:    model.Envelope{Context: model.DSPContext, Type: model.TypeContractNegotiationAck},
		ProviderPID: providerPID,
		ConsumerPID: consumerPID,
		State:       proc.State,
	})
}

// ContractRequestHandler receives the consumer's initial or counter Request.
type ContractRequestHandler struct {
	v    *validator.Validator
	orch *orchestrator.Orchestrator
	path string
}

// NewContractRequestInitial handles POST /negotiations/request.
func NewContractRequestInitial(v *validator.Validator, orch *orchestrator.Orchestrator) *ContractRequestHandler {
	return &ContractRequestHandler{v: v, orch: orch, path: negotiationsRequestPath}
}

// NewContractRequestCounter handles POST /negotiations/{pid}/request.
func NewContractRequestCounter(v *validator.Validator, orch *orchestrator.Orchestrator) *ContractRequestHandler {
	return &ContractRequestHandler{v: v, orch: orch, path: negotiationsIDRequest}
}

func (h *ContractRequestHandler) Path() string { return h.path }
func (h *ContractRequestHandler) Method() string { return http.MethodPost }
func (h *ContractRequestHandler) Handler() http.HandlerFunc { return h.handle }

func (h *ContractRequestHandler) handle(w http.ResponseWriter, r *http.Request) {
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

	var msg model.ContractRequestMessage

	if err := json.Unmarshal(body, &msg); err != nil {
		writeError(w, err)
		return
	}

	if pathPID := mux.Vars(r)[pidPathVar]; pathPID != "" {
		msg.ProviderPID = pathPID
	}

	participant, _ := auth.ParticipantFromContext(r.Context())

	proc, err := h.orch.ProviderHandleRequest(r.Context(), body, msg, msg.Callback, participant)
	if err != nil {
		writeError(w, err)
		return
	}

	writeCNAck(w, proc)
}

// ContractOfferHandler receives the provider's initial or counter Offer.
type ContractOfferHandler struct {
	v    *validator.Validator
	orch *orchestrator.Orchestrator
	path string
}

// NewContractOfferInitial handles POST /negotiations/offers.
func NewContractOfferInitial(v *validator.Validator, orch *orchestrator.Orchestrator) *ContractOfferHandler {
	return &ContractOfferHandler{v: v, orch: orch, path: negotiationsOffersPath}
}

// NewContractOfferCounter handles POST /negotiations/{pid}/offers.
func NewContractOfferCounter(v *validator.Validator, orch *orchestrator.Orchestrator) *ContractOfferHandler {
	return &ContractOfferHandler{v: v, orch: orch, path: negotiationsIDOffers}
}

func (h *ContractOfferHandler) Path() string { return h.path }
func (h *ContractOfferHandler) Method() string { return http.MethodPost }
func (h *ContractOfferHandler) Handler() http.HandlerFunc { return h.handle }

func (h *ContractOfferHandler) handle(w http.ResponseWriter, r *http.Request) {
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

	var msg model.ContractOfferMessage

	if err := json.Unmarshal(body, &msg); err != nil {
		writeError(w, err)
		return
	}

	if pathPID := mux.Vars(r)[pidPathVar]; pathPID != "" {
		msg.ConsumerPID = pathPID
	}

	participant, _ := auth.ParticipantFromContext(r.Context())

	proc, err := h.orch.ConsumerHandleOffer(r.Context(), body, msg, msg.Callback, participant)
	if err != nil {
		writeError(w, err)
		return
	}

	writeCNAck(w, proc)
}

// ContractAgreementHandler receives the provider's Agreement.
type ContractAgreementHandler struct {
	v    *validator.Validator
	orch *orchestrator.Orchestrator
}

// NewContractAgreement handles POST /negotiations/{pid}/agreement.
func NewContractAgreement(v *validator.Validator, orch *orchestrator.Orchestrator) *ContractAgreementHandler {
	return &ContractAgreementHandler{v: v, orch: orch}
}

func (h *ContractAgreementHandler) Path() string { return negotiationsIDAgreement }
func (h *ContractAgreementHandler) Method() string { return http.MethodPost }
func (h *ContractAgreementHandler) Handler() http.HandlerFunc { return h.handle }

func (h *ContractAgreementHandler) handle(w http.ResponseWriter, r *http.Request) {
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

	var msg model.ContractAgreementMessage

	if err := json.Unmarshal(body, &msg); err != nil {
		writeError(w, err)
		return
	}

	if !checkPIDs(w, h.orch.GetNegotiation, mux.Vars(r)[pidPathVar], msg.ProviderPID, msg.ConsumerPID) {
		return
	}

	proc, err := h.orch.ConsumerHandleAgreement(r.Context(), body, msg)
	if err != nil {
		writeError(w, err)
		return
	}

	writeCNAck(w, proc)
}

// ContractEventHandler receives an ACCEPTED or FINALIZED event, whichever
// role is addressed by the path PID.
type ContractEventHandler struct {
	v    *validator.Validator
	orch *orchestrator.Orchestrator
}

// NewContractEvent handles POST /negotiations/{pid}/events.
func NewContractEvent(v *validator.Validator, orch *orchestrator.Orchestrator) *ContractEventHandler {
	return &ContractEventHandler{v: v, orch: orch}
}

func (h *ContractEventHandler) Path() string { return negotiationsIDEvents }
func (h *ContractEventHandler) Method() string { return http.MethodPost }
func (h *ContractEventHandler) Handler() http.HandlerFunc { return h.handle }

func (h *ContractEventHandler) handle(w http.ResponseWriter, r *http.Request) {
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

	var msg model.ContractNegotiationEventMessage

	if err := json.Unmarshal(body, &msg); err != nil {
		writeError(w, err)
		return
	}

	if !checkPIDs(w, h.orch.GetNegotiation, mux.Vars(r)[pidPathVar], msg.ProviderPID, msg.ConsumerPID) {
		return
	}

	var (
		proc *procstore.Process
		oErr error
	)

	switch msg.EventType {
	case model.EventAccepted:
		proc, oErr = h.orch.ProviderHandleEventAccepted(r.Context(), body, msg)
	case model.EventFinalized:
		proc, oErr = h.orch.ConsumerHandleEventFinalized(r.Context(), body, msg)
	default:
		writeProtocolError(w, &validator.ProtocolError{
			Code:   "unknown-event-type",
			Reason: []string{fmt.Sprintf("unrecognized eventType %q", msg.EventType)},
		})

		return
	}

	if oErr != nil {
		writeError(w, oErr)
		return
	}

	writeCNAck(w, proc)
}

// ContractVerificationHandler receives the consumer's Verification.
type ContractVerificationHandler struct {
	v    *validator.Validator
	orch *orchestrator.Orchestrator
}

// NewContractVerification handles POST /negotiations/{pid}/agreement/verification.
func NewContractVerification(v *validator.Validator, orch *orchestrator.Orchestrator) *ContractVerificationHandler {
	return &ContractVerificationHandler{v: v, orch: orch}
}

func (h *ContractVerificationHandler) Path() string { return negotiationsIDVerify }
func (h *ContractVerificationHandler) Method() string { return http.MethodPost }
func (h *ContractVerificationHandler) Handler() http.HandlerFunc { return h.handle }

func (h *ContractVerificationHandler) handle(w http.ResponseWriter, r *http.Request) {
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

	var msg model.ContractAgreementVerificationMessage

	if err := json.Unmarshal(body, &msg); err != nil {
		writeError(w, err)
		return
	}

	if !checkPIDs(w, h.orch.GetNegotiation, mux.Vars(r)[pidPathVar], msg.ProviderPID, msg.ConsumerPID) {
		return
	}

	proc, err := h.orch.ProviderHandleVerification(r.Context(), body, msg)
	if err != nil {
		writeError(w, err)
		return
	}

	writeCNAck(w, proc)
}

// ContractTerminationHandler receives a Termination from either role.
type ContractTerminationHandler struct {
	v          *validator.Validator
	orch       *orchestrator.Orchestrator
	senderRole procstore.Role
}

// NewContractTermination handles POST /negotiations/{pid}/termination.
// senderRole is the role of whichever party sends this message to us (the
// opposite of this orchestrator's own role).
func NewContractTermination(v *validator.Validator, orch *orchestrator.Orchestrator,
	senderRole procstore.Role) *ContractTerminationHandler {
	return &ContractTerminationHandler{v: v, orch: orch, senderRole: senderRole}
}

func (h *ContractTerminationHandler) Path() string { return negotiationsIDTerminate }
func (h *ContractTerminationHandler) Method() string { return http.MethodPost }
func (h *ContractTerminationHandler) Handler() http.HandlerFunc { return h.handle }

func (h *ContractTerminationHandler) handle(w http.ResponseWriter, r *http.Request) {
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

	proc, err := h.orch.TerminateNegotiation(r.Context(), h.senderRole, localPID, "", "",
		model.ContractNegotiationTerminationMessage{}, body)
	if err != nil {
		writeError(w, err)
		return
	}

	writeCNAck(w, proc)
}

// ContractGetHandler serves the GET /negotiations/{pid} poll endpoint.
type ContractGetHandler struct {
	orch *orchestrator.Orchestrator
}

// NewContractGet handles GET /negotiations/{pid}.
func NewContractGet(orch *orchestrator.Orchestrator) *ContractGetHandler {
	return &ContractGetHandler{orch: orch}
}

func (h *ContractGetHandler) Path() string { return negotiationsIDGet }
func (h *ContractGetHandler) Method() string { return http.MethodGet }
func (h *ContractGetHandler) Handler() http.HandlerFunc { return h.handle }

func (h *ContractGetHandler) handle(w http.ResponseWriter, r *http.Request) {
	pid := mux.Vars(r)[pidPathVar]

	proc, err := h.orch.GetNegotiation(pid)
	if err != nil {
		writeError(w, err)
		return
	}

	writeCNAck(w, proc)
}
