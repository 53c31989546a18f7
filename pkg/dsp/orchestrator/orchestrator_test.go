/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package orchestrator

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/hyperledger/aries-framework-go/component/storageutil/mem"
	"github.com/stretchr/testify/require"

	"github.com/trustbloc/dataspace-connector/pkg/dsp/dataplane"
	"github.com/trustbloc/dataspace-connector/pkg/dsp/model"
	"github.com/trustbloc/dataspace-connector/pkg/dsp/peerclient"
	"github.com/trustbloc/dataspace-connector/pkg/dsp/statemachine"
	dcerrors "github.com/trustbloc/dataspace-connector/pkg/errors"
	grantstatemachine "github.com/trustbloc/dataspace-connector/pkg/grant/statemachine"
	"github.com/trustbloc/dataspace-connector/pkg/store/mate"
	"github.com/trustbloc/dataspace-connector/pkg/store/procstore"
)

type stubDoer struct {
	mu       sync.Mutex
	requests []*http.Request
	status   int
}

func (d *stubDoer) Do(req *http.Request) (*http.Response, error) {
	d.mu.Lock()
	d.requests = append(d.requests, req)
	d.mu.Unlock()

	status := d.status
	if status == 0 {
		status = http.StatusOK
	}

	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader("{}")),
	}, nil
}

type stubNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *stubNotifier) Notify(category, subcategory, messageType string, _ []byte, _ string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.events = append(n.events, category+"/"+subcategory+"/"+messageType)
}

type stubDataPlane struct {
	mu          sync.Mutex
	provisioned map[string]bool
}

func (d *stubDataPlane) Provision(_ context.Context, req dataplane.Request) (*dataplane.Endpoint, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.provisioned == nil {
		d.provisioned = make(map[string]bool)
	}

	d.provisioned[req.SessionID] = true

	return &dataplane.Endpoint{Endpoint: "https://dataplane.example.com/" + req.SessionID}, nil
}

func (d *stubDataPlane) Teardown(_ context.Context, sessionID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.provisioned[sessionID] = false

	return nil
}

func (d *stubDataPlane) Status(_ context.Context, sessionID string) (dataplane.Status, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.provisioned[sessionID] {
		return dataplane.StatusProvisioned, nil
	}

	return dataplane.StatusDisconnected, nil
}

func newOrchestrator(t *testing.T, role procstore.Role) (*Orchestrator, *stubDoer, *stubDataPlane, *procstore.Store) {
	t.Helper()

	provider := mem.NewProvider()

	procStore, err := procstore.New(provider,
		procstore.WithTerminalStates(procstore.KindContractNegotiation, statemachine.CNTerminalStates...),
		procstore.WithTerminalStates(procstore.KindTransferProcess, statemachine.TPTerminalStates...),
		procstore.WithTerminalStates(procstore.KindGrant, grantstatemachine.TerminalStates...),
	)
	require.NoError(t, err)

	mates, err := mate.New(provider)
	require.NoError(t, err)

	doer := &stubDoer{}
	dp := &stubDataPlane{}

	orch := New(role, procStore, procStore, mates, peerclient.New(doer), dp, &stubNotifier{},
		"https://self.example.com")

	return orch, doer, dp, procStore
}

func TestCN_ProviderHappyPath(t *testing.T) {
	orch, _, _, procStore := newOrchestrator(t, procstore.RoleProvider)

	msg := model.ContractRequestMessage{
		ConsumerPID: model.NewPID(),
		Offer:       model.Offer{Target: "urn:d1", Permission: []model.PolicyRule{{Action: "use"}}},
		Callback:    "https://consumer.example.com",
	}

	body, err := json.Marshal(msg)
	require.NoError(t, err)

	proc, err := orch.ProviderHandleRequest(context.Background(), body, msg, msg.Callback, "urn:participant:consumer")
	require.NoError(t, err)
	require.Equal(t, statemachine.CNRequested.String(), proc.State)
	require.Equal(t, msg.ConsumerPID, proc.PeerPID)

	providerPID := proc.LocalPID

	// Agreement moves the negotiation to AGREED and records the outbound
	// message in the log.
	proc, err = orch.ProviderSendAgreement(context.Background(), providerPID, msg.ConsumerPID,
		"urn:agreement:1", model.Offer{Target: "urn:d1", Permission: []model.PolicyRule{{Action: "use"}}})
	require.NoError(t, err)
	require.Equal(t, statemachine.CNAgreed.String(), proc.State)

	verification := model.ContractAgreementVerificationMessage{ProviderPID: providerPID, ConsumerPID: msg.ConsumerPID}

	vBody, err := json.Marshal(verification)
	require.NoError(t, err)

	proc, err = orch.ProviderHandleVerification(context.Background(), vBody, verification)
	require.NoError(t, err)
	require.Equal(t, statemachine.CNVerified.String(), proc.State)

	proc, err = orch.ProviderSendEventFinalized(context.Background(), providerPID, msg.ConsumerPID)
	require.NoError(t, err)
	require.Equal(t, statemachine.CNFinalized.String(), proc.State)

	messages, err := procStore.ListMessages(providerPID)
	require.NoError(t, err)

	var agreements int

	for _, m := range messages {
		if m.Type == statemachine.CNMsgAgreement {
			agreements++
		}
	}

	require.Equal(t, 1, agreements)
}

func TestCN_IdempotentReplay(t *testing.T) {
	orch, _, _, procStore := newOrchestrator(t, procstore.RoleProvider)

	msg := model.ContractRequestMessage{
		ConsumerPID: model.NewPID(),
		Offer:       model.Offer{Target: "urn:d1", Permission: []model.PolicyRule{{Action: "use"}}},
		Callback:    "https://consumer.example.com",
	}

	body, err := json.Marshal(msg)
	require.NoError(t, err)

	proc, err := orch.ProviderHandleRequest(context.Background(), body, msg, msg.Callback, "urn:participant:consumer")
	require.NoError(t, err)

	// Replaying the same request against the existing record returns the
	// current ACK without advancing state.
	msg.ProviderPID = proc.LocalPID

	replayed, err := orch.ProviderHandleRequest(context.Background(), body, msg, msg.Callback, "urn:participant:consumer")
	require.NoError(t, err)
	require.Equal(t, statemachine.CNRequested.String(), replayed.State)
	require.Equal(t, proc.LocalPID, replayed.LocalPID)

	messages, err := procStore.ListMessages(proc.LocalPID)
	require.NoError(t, err)
	require.Len(t, messages, 2) // both inbound deliveries are logged
}

func TestCN_TerminationIsAbsorbing(t *testing.T) {
	orch, _, _, _ := newOrchestrator(t, procstore.RoleProvider)

	msg := model.ContractRequestMessage{
		ConsumerPID: model.NewPID(),
		Offer:       model.Offer{Target: "urn:d1", Permission: []model.PolicyRule{{Action: "use"}}},
		Callback:    "https://consumer.example.com",
	}

	body, err := json.Marshal(msg)
	require.NoError(t, err)

	proc, err := orch.ProviderHandleRequest(context.Background(), body, msg, msg.Callback, "urn:participant:consumer")
	require.NoError(t, err)

	term := model.ContractNegotiationTerminationMessage{ProviderPID: proc.LocalPID, ConsumerPID: msg.ConsumerPID}

	tBody, err := json.Marshal(term)
	require.NoError(t, err)

	proc, err = orch.TerminateNegotiation(context.Background(), procstore.RoleConsumer, proc.LocalPID,
		"", "", term, tBody)
	require.NoError(t, err)
	require.Equal(t, statemachine.CNTerminated.String(), proc.State)

	// Any further message yields NotAllowed.
	_, err = orch.ProviderSendAgreement(context.Background(), proc.LocalPID, msg.ConsumerPID,
		"urn:agreement:1", model.Offer{Permission: []model.PolicyRule{{Action: "use"}}})
	require.True(t, dcerrors.IsNotAllowed(err))
}

func TestTP_ProviderHappyPathWithDataPlane(t *testing.T) {
	orch, doer, dp, _ := newOrchestrator(t, procstore.RoleProvider)

	msg := model.TransferRequestMessage{
		ConsumerPID:     model.NewPID(),
		AgreementID:     "urn:agreement:1",
		Format:          model.TransferFormat{Protocol: "http", Action: "pull"},
		CallbackAddress: "https://consumer.example.com",
	}

	body, err := json.Marshal(msg)
	require.NoError(t, err)

	proc, err := orch.ProviderHandleTransferRequest(context.Background(), body, msg, "urn:participant:consumer")
	require.NoError(t, err)
	require.Equal(t, statemachine.TPRequested.String(), proc.State)

	providerPID := proc.LocalPID

	// Start provisions the data plane, keyed by the provider-side PID, and
	// POSTs TransferStart to the consumer callback.
	proc, err = orch.SendStart(context.Background(), procstore.RoleProvider, providerPID, msg.ConsumerPID, nil)
	require.NoError(t, err)
	require.Equal(t, statemachine.TPStarted.String(), proc.State)

	status, err := dp.Status(context.Background(), providerPID)
	require.NoError(t, err)
	require.Equal(t, dataplane.StatusProvisioned, status)

	doer.mu.Lock()
	require.NotEmpty(t, doer.requests)
	last := doer.requests[len(doer.requests)-1]
	doer.mu.Unlock()

	require.Contains(t, last.URL.String(), "/transfers/"+msg.ConsumerPID+"/start")

	// Completion tears the session down.
	compBody, err := json.Marshal(model.TransferCompletionMessage{
		ProviderPID: providerPID, ConsumerPID: msg.ConsumerPID,
	})
	require.NoError(t, err)

	proc, err = orch.HandleCompletion(context.Background(), procstore.RoleConsumer, compBody, providerPID)
	require.NoError(t, err)
	require.Equal(t, statemachine.TPCompleted.String(), proc.State)

	status, err = dp.Status(context.Background(), providerPID)
	require.NoError(t, err)
	require.Equal(t, dataplane.StatusDisconnected, status)
}

func TestTP_SuspendResumeTieBreak(t *testing.T) {
	orch, _, dp, _ := newOrchestrator(t, procstore.RoleProvider)

	msg := model.TransferRequestMessage{
		ConsumerPID:     model.NewPID(),
		AgreementID:     "urn:agreement:1",
		Format:          model.TransferFormat{Protocol: "http", Action: "pull"},
		CallbackAddress: "https://consumer.example.com",
	}

	body, err := json.Marshal(msg)
	require.NoError(t, err)

	proc, err := orch.ProviderHandleTransferRequest(context.Background(), body, msg, "urn:participant:consumer")
	require.NoError(t, err)

	providerPID := proc.LocalPID

	_, err = orch.SendStart(context.Background(), procstore.RoleProvider, providerPID, msg.ConsumerPID, nil)
	require.NoError(t, err)

	// Consumer suspends; the data plane disconnects and the suspender role
	// is recorded on the process.
	suspBody, err := json.Marshal(model.TransferSuspensionMessage{
		ProviderPID: providerPID, ConsumerPID: msg.ConsumerPID,
	})
	require.NoError(t, err)

	proc, err = orch.HandleSuspension(context.Background(), procstore.RoleConsumer, suspBody, providerPID)
	require.NoError(t, err)
	require.Equal(t, statemachine.TPSuspended.String(), proc.State)
	require.Equal(t, procstore.RoleConsumer, proc.LastSuspenderRole)

	status, err := dp.Status(context.Background(), providerPID)
	require.NoError(t, err)
	require.Equal(t, dataplane.StatusDisconnected, status)

	// The provider may not resume a transfer the consumer suspended.
	_, err = orch.SendStart(context.Background(), procstore.RoleProvider, providerPID, msg.ConsumerPID, nil)
	require.True(t, dcerrors.IsNotAllowed(err))

	// The consumer may.
	startBody, err := json.Marshal(model.TransferStartMessage{
		ProviderPID: providerPID, ConsumerPID: msg.ConsumerPID,
	})
	require.NoError(t, err)

	proc, err = orch.HandleStart(context.Background(), procstore.RoleConsumer, startBody, providerPID)
	require.NoError(t, err)
	require.Equal(t, statemachine.TPStarted.String(), proc.State)

	status, err = dp.Status(context.Background(), providerPID)
	require.NoError(t, err)
	require.Equal(t, dataplane.StatusProvisioned, status)
}

func TestOutboundFailureDoesNotRollBack(t *testing.T) {
	orch, doer, _, procStore := newOrchestrator(t, procstore.RoleConsumer)

	doer.status = http.StatusBadGateway

	proc, err := orch.ConsumerRequest(context.Background(), model.NewPID(), "", "https://provider.example.com",
		"urn:participant:provider", model.ContractRequestMessage{
			Offer: model.Offer{Target: "urn:d1", Permission: []model.PolicyRule{{Action: "use"}}},
		})
	require.NoError(t, err)
	require.Equal(t, statemachine.CNRequested.String(), proc.State)

	// The failed send left the committed state in place and the outbound
	// message marked failed for the redelivery sweep.
	got, err := orch.GetNegotiation(proc.LocalPID)
	require.NoError(t, err)
	require.Equal(t, statemachine.CNRequested.String(), got.State)

	messages, err := procStore.ListMessages(proc.LocalPID)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	require.Equal(t, procstore.MessageStatusFailed, messages[0].Status)
	require.Equal(t, 1, messages[0].RetryCount)
}

func TestRedeliverOutbound(t *testing.T) {
	orch, doer, _, procStore := newOrchestrator(t, procstore.RoleConsumer)

	doer.status = http.StatusBadGateway

	proc, err := orch.ConsumerRequest(context.Background(), model.NewPID(), "", "https://provider.example.com",
		"urn:participant:provider", model.ContractRequestMessage{
			Offer: model.Offer{Target: "urn:d1", Permission: []model.PolicyRule{{Action: "use"}}},
		})
	require.NoError(t, err)

	doer.mu.Lock()
	attempts := len(doer.requests)
	doer.status = 0
	doer.mu.Unlock()

	orch.RedeliverOutbound()

	doer.mu.Lock()
	require.Greater(t, len(doer.requests), attempts)
	last := doer.requests[len(doer.requests)-1]
	doer.mu.Unlock()

	require.Contains(t, last.URL.String(), "/negotiations/request")

	messages, err := procStore.ListMessages(proc.LocalPID)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	require.Equal(t, procstore.MessageStatusSent, messages[0].Status)

	// Nothing left for the next sweep.
	undelivered, err := procStore.UndeliveredMessages(0)
	require.NoError(t, err)
	require.Empty(t, undelivered)
}
