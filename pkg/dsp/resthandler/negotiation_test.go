/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package resthandler

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/hyperledger/aries-framework-go/component/storageutil/mem"
	"github.com/stretchr/testify/require"

	"github.com/trustbloc/dataspace-connector/pkg/dsp/model"
	"github.com/trustbloc/dataspace-connector/pkg/dsp/orchestrator"
	"github.com/trustbloc/dataspace-connector/pkg/dsp/peerclient"
	"github.com/trustbloc/dataspace-connector/pkg/dsp/statemachine"
	"github.com/trustbloc/dataspace-connector/pkg/dsp/validator"
	"github.com/trustbloc/dataspace-connector/pkg/store/mate"
	"github.com/trustbloc/dataspace-connector/pkg/store/procstore"
)

type okDoer struct{}

func (okDoer) Do(*http.Request) (*http.Response, error) {
	return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(strings.NewReader("{}"))}, nil
}

type noNotifier struct{}

func (noNotifier) Notify(string, string, string, []byte, string) {}

func newProviderRouter(t *testing.T) *mux.Router {
	t.Helper()

	provider := mem.NewProvider()

	procStore, err := procstore.New(provider,
		procstore.WithTerminalStates(procstore.KindContractNegotiation, statemachine.CNTerminalStates...),
		procstore.WithTerminalStates(procstore.KindTransferProcess, statemachine.TPTerminalStates...),
	)
	require.NoError(t, err)

	mates, err := mate.New(provider)
	require.NoError(t, err)

	orch := orchestrator.New(procstore.RoleProvider, procStore, procStore, mates,
		peerclient.New(okDoer{}), nil, noNotifier{}, "https://provider.example.com")

	v := validator.New(nil)

	router := mux.NewRouter()

	handlers := []interface {
		Path() string
		Method() string
		Handler() http.HandlerFunc
	}{
		NewContractRequestInitial(v, orch),
		NewContractRequestCounter(v, orch),
		NewContractEvent(v, orch),
		NewContractVerification(v, orch),
		NewContractTermination(v, orch, procstore.RoleConsumer),
		NewContractGet(orch),
		NewTransferRequest(v, orch),
		NewTransferGet(orch),
	}

	for _, h := range handlers {
		router.HandleFunc(h.Path(), h.Handler()).Methods(h.Method())
	}

	return router
}

func postJSON(t *testing.T, router *mux.Router, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	data, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	return rec
}

func TestContractRequest_HappyPath(t *testing.T) {
	router := newProviderRouter(t)

	consumerPID := model.NewPID()

	rec := postJSON(t, router, "/negotiations/request", model.ContractRequestMessage{
		Envelope:    model.Envelope{Context: model.DSPContext, Type: model.TypeContractRequestMessage},
		ConsumerPID: consumerPID,
		Offer:       model.Offer{Target: "urn:d1", Permission: []model.PolicyRule{{Action: "use"}}},
		Callback:    "https://consumer.example.com",
	})

	require.Equal(t, http.StatusOK, rec.Code)

	var ack model.ContractNegotiationAck

	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ack))
	require.Equal(t, model.TypeContractNegotiationAck, ack.Type)
	require.Equal(t, "REQUESTED", ack.State)
	require.Equal(t, consumerPID, ack.ConsumerPID)
	require.NotEmpty(t, ack.ProviderPID)

	// Polling the negotiation returns the same ACK.
	req := httptest.NewRequest(http.MethodGet, "/negotiations/"+ack.ProviderPID, http.NoBody)
	getRec := httptest.NewRecorder()
	router.ServeHTTP(getRec, req)

	require.Equal(t, http.StatusOK, getRec.Code)
	require.Contains(t, getRec.Body.String(), "REQUESTED")
}

func TestContractRequest_InvalidOffer(t *testing.T) {
	router := newProviderRouter(t)

	// An offer carrying both permission and prohibition fails validation.
	rec := postJSON(t, router, "/negotiations/request", model.ContractRequestMessage{
		Envelope:    model.Envelope{Context: model.DSPContext, Type: model.TypeContractRequestMessage},
		ConsumerPID: model.NewPID(),
		Offer: model.Offer{
			Target:      "urn:d1",
			Permission:  []model.PolicyRule{{Action: "use"}},
			Prohibition: []model.PolicyRule{{Action: "share"}},
		},
		Callback: "https://consumer.example.com",
	})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "invalid-offer")
}

func TestContractRequest_UnknownType(t *testing.T) {
	router := newProviderRouter(t)

	rec := postJSON(t, router, "/negotiations/request", map[string]string{
		"@context": model.DSPContext,
		"@type":    "dspace:SomethingElse",
	})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "unknown-type")
}

func TestContractGet_NotFound(t *testing.T) {
	router := newProviderRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/negotiations/urn:uuid:nope", http.NoBody)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTransferRequest_PushWithoutDataAddress(t *testing.T) {
	router := newProviderRouter(t)

	rec := postJSON(t, router, "/transfers/request", model.TransferRequestMessage{
		Envelope:        model.Envelope{Context: model.DSPContext, Type: model.TypeTransferRequestMessage},
		ConsumerPID:     model.NewPID(),
		AgreementID:     "urn:agreement:1",
		Format:          model.TransferFormat{Protocol: "http", Action: "push"},
		CallbackAddress: "https://consumer.example.com",
	})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "missing-data-address")
}

func TestTransferRequest_Pull(t *testing.T) {
	router := newProviderRouter(t)

	rec := postJSON(t, router, "/transfers/request", model.TransferRequestMessage{
		Envelope:        model.Envelope{Context: model.DSPContext, Type: model.TypeTransferRequestMessage},
		ConsumerPID:     model.NewPID(),
		AgreementID:     "urn:agreement:1",
		Format:          model.TransferFormat{Protocol: "http", Action: "pull"},
		CallbackAddress: "https://consumer.example.com",
	})

	require.Equal(t, http.StatusOK, rec.Code)

	var ack model.TransferProcessAck

	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ack))
	require.Equal(t, "REQUESTED", ack.State)
	require.NotEmpty(t, ack.ProviderPID)
}

func TestContractEvent_WrongState(t *testing.T) {
	router := newProviderRouter(t)

	consumerPID := model.NewPID()

	rec := postJSON(t, router, "/negotiations/request", model.ContractRequestMessage{
		Envelope:    model.Envelope{Context: model.DSPContext, Type: model.TypeContractRequestMessage},
		ConsumerPID: consumerPID,
		Offer:       model.Offer{Target: "urn:d1", Permission: []model.PolicyRule{{Action: "use"}}},
		Callback:    "https://consumer.example.com",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var ack model.ContractNegotiationAck
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ack))

	// ACCEPTED is only legal from OFFERED; from REQUESTED it is a 409.
	rec = postJSON(t, router, "/negotiations/"+ack.ProviderPID+"/events", model.ContractNegotiationEventMessage{
		Envelope:    model.Envelope{Context: model.DSPContext, Type: model.TypeContractNegotiationEvent},
		ProviderPID: ack.ProviderPID,
		ConsumerPID: consumerPID,
		EventType:   model.EventAccepted,
	})

	require.Equal(t, http.StatusConflict, rec.Code)
}
