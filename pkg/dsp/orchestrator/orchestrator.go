/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package orchestrator drives the Contract Negotiation and Transfer
// Process machines end to end: validate, ask the state machine, persist
// the inbound message once the state machine has accepted it, persist the
// new state, optionally emit an outbound call to the peer, persist that
// outbound, and feed the data plane controller and event notifier. An
// inbound message the state machine rejects is not written to the message
// log. Local state is never rolled back on a failed send.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/trustbloc/dataspace-connector/pkg/dsp/dataplane"
	"github.com/trustbloc/dataspace-connector/pkg/dsp/model"
	"github.com/trustbloc/dataspace-connector/pkg/dsp/peerclient"
	"github.com/trustbloc/dataspace-connector/pkg/dsp/statemachine"
	dcerrors "github.com/trustbloc/dataspace-connector/pkg/errors"
	"github.com/trustbloc/dataspace-connector/pkg/observability/metrics"
	"github.com/trustbloc/dataspace-connector/pkg/observability/metrics/noop"
	"github.com/trustbloc/dataspace-connector/pkg/store/cache"
	"github.com/trustbloc/dataspace-connector/pkg/store/mate"
	"github.com/trustbloc/dataspace-connector/pkg/store/procstore"

	"github.com/trustbloc/dataspace-connector/internal/pkg/log"
)

var logger = log.New("dsp-orchestrator")

// Notifier is the Event Notifier collaborator, satisfied by
// pkg/notifier.Notifier. Declared here, not imported from pkg/notifier, so
// the orchestrator never depends on the notifier's transport/backoff
// machinery, only on the narrow fan-out contract it needs.
type Notifier interface {
	Notify(category, subcategory, messageType string, messageContent []byte, operation string)
}

// Orchestrator drives one role's (Provider or Consumer) view of the CN and
// TP machines.
type Orchestrator struct {
	role      procstore.Role
	cnStore   *procstore.Store
	tpStore   *procstore.Store
	mates     *mate.Store
	client    *peerclient.Client
	dataPlane dataplane.Controller
	notifier  Notifier
	selfAddr  string // this service's own base callback URL, advertised to the peer
	cache     *cache.ProcessCache
	metrics   metrics.Metrics
}

// Option configures an Orchestrator.
type Option func(o *Orchestrator)

// WithProcessCache fronts GetNegotiation/GetTransfer with a read-through
// cache, invalidated on every committed transition.
func WithProcessCache(c *cache.ProcessCache) Option {
	return func(o *Orchestrator) { o.cache = c }
}

// WithMetrics overrides the default no-op metrics implementation.
func WithMetrics(m metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// New returns an Orchestrator for the given role.
func New(role procstore.Role, cnStore, tpStore *procstore.Store, mates *mate.Store,
	client *peerclient.Client, dataPlane dataplane.Controller, notifier Notifier, selfAddr string,
	opts ...Option) *Orchestrator {
	o := &Orchestrator{
		role:      role,
		cnStore:   cnStore,
		tpStore:   tpStore,
		mates:     mates,
		client:    client,
		dataPlane: dataPlane,
		notifier:  notifier,
		selfAddr:  selfAddr,
		metrics:   noop.NewProvider().Metrics(),
	}

	for _, opt := range opts {
		opt(o)
	}

	return o
}

func otherRole(r procstore.Role) procstore.Role {
	if r == procstore.RoleProvider {
		return procstore.RoleConsumer
	}

	return procstore.RoleProvider
}

func encode(v interface{}) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		// Programmer error: every envelope type here is JSON-marshalable.
		panic(fmt.Sprintf("marshal envelope: %v", err))
	}

	return data
}

// ---- Contract Negotiation -------------------------------------------------

// cnTransitionInput feeds cnTransition, the shared bookkeeping for every CN
// (role, message) pair: ask the state machine, persist the inbound message
// (if any) once accepted, persist the new/created process, append the
// outbound message and send it (if any), and fan out a notification. The
// process is created when no record exists yet under localPID and the
// message is one of the two process-creating messages (initial Request,
// initial Offer).
type cnTransitionInput struct {
	msgType      string
	senderRole   procstore.Role
	localPID     string // local PID of the record; a fresh PID for a process-creating message
	peerPID      string // learned/confirmed peer PID, if any
	callback     string // peer callback base address, set at creation
	participant  string
	inboundBody  []byte // nil if this call is locally-initiated (no inbound to log)
	outboundPath string // peer path suffix to POST to, "" if no outbound this step
	outboundEnv  interface{}
}

func (o *Orchestrator) cnTransition(ctx context.Context, in cnTransitionInput) (*procstore.Process, error) {
	startTime := time.Now()
	defer func() { o.metrics.TransitionTime("cn", time.Since(startTime)) }()

	currentState := statemachine.CNState("")

	var proc *procstore.Process

	var err error

	if in.localPID != "" {
		proc, err = o.cnStore.GetByLocalPID(procstore.KindContractNegotiation, in.localPID)
		creates := in.msgType == statemachine.CNMsgRequestInitial || in.msgType == statemachine.CNMsgOfferInitial

		if err != nil && !(creates && dcerrors.IsNotFound(err)) {
			return nil, err
		}

		if proc != nil {
			currentState = statemachine.CNState(proc.State)
		}
	}

	result, err := statemachine.EvaluateCN(string(in.senderRole), currentState, in.msgType)
	if err != nil {
		o.metrics.TransitionRejected("cn")

		return nil, err
	}

	if in.inboundBody != nil {
		if _, aErr := o.cnStore.AppendMessage(in.localPID, procstore.DirectionInbound,
			in.senderRole, o.role, in.msgType, in.inboundBody); aErr != nil {
			return nil, aErr
		}
	}

	if result.Idempotent {
		logger.Debug("idempotent re-delivery, returning current ACK",
			log.WithProcessID(in.localPID), log.WithMessageType(stringer(in.msgType)))

		return proc, nil
	}

	if proc == nil {
		proc, err = o.cnStore.CreateProcess(procstore.KindContractNegotiation, o.role, result.NextState,
			in.localPID, in.peerPID, in.callback, in.participant)
		if err != nil {
			return nil, err
		}
	} else {
		edits := procstore.Edits{State: strPtr(result.NextState.String())}
		if in.peerPID != "" && in.peerPID != proc.PeerPID {
			edits.PeerPID = &in.peerPID
		}

		proc, err = o.cnStore.PutProcess(procstore.KindContractNegotiation, in.localPID, edits)
		if err != nil {
			return nil, err
		}
	}

	o.invalidate(procstore.KindContractNegotiation, proc.LocalPID)

	if in.outboundPath != "" && in.outboundEnv != nil {
		o.sendOutbound(ctx, o.cnStore, procstore.KindContractNegotiation, proc, otherRole(o.role),
			in.msgType, in.outboundPath, in.outboundEnv)
	}

	o.notifier.Notify("contract-negotiation", result.NextState.String(), in.msgType,
		encode(in.outboundEnv), "transition")

	return proc, nil
}

// sendOutbound persists the outbound intent first, then attempts the send
// and records the outcome on the message entry. A failed outbound call
// never rolls back the local transition: the entry is marked Failed and
// RedeliverOutbound picks it up on the next sweep.
func (o *Orchestrator) sendOutbound(ctx context.Context, store *procstore.Store, kind procstore.Kind,
	proc *procstore.Process, toRole procstore.Role, msgType, path string, env interface{}) {
	body := encode(env)

	target := peerclient.JoinPath(proc.CallbackAddress, path)

	msg, err := store.AppendOutbound(kind, proc.ID, o.role, toRole, msgType, body, target)
	if err != nil {
		logger.Warn("failed to persist outbound message", log.WithProcessID(proc.ID), log.WithError(err))
		return
	}

	startTime := time.Now()

	_, postErr := o.client.Post(ctx, target, o.bearerFor(proc.Participant), body)

	o.metrics.OutboundCallTime(msgType, time.Since(startTime))

	if postErr != nil {
		o.metrics.OutboundCallFailure(msgType)

		logger.Warn("outbound peer call failed, will be retried", log.WithProcessID(proc.ID),
			log.WithRequestURLString(target), log.WithError(postErr))

		if mErr := store.MarkMessageFailed(msg.ID); mErr != nil {
			logger.Warn("failed to mark outbound message failed", log.WithProcessID(proc.ID), log.WithError(mErr))
		}

		return
	}

	if err := store.MarkMessageSent(msg.ID); err != nil {
		logger.Warn("failed to mark outbound message sent", log.WithProcessID(proc.ID), log.WithError(err))
	}
}

// bearerFor returns the bearer token held for participant, or "" when no
// mate record exists yet (grant bootstrap traffic).
func (o *Orchestrator) bearerFor(participant string) string {
	if m, err := o.mates.Get(participant); err == nil {
		return m.BearerToken
	}

	return ""
}

// redeliverStalePendingAfter is how long an outbound entry may sit Pending
// before the sweep treats it as orphaned by a crash between commit and send.
const redeliverStalePendingAfter = time.Minute

// RedeliverOutbound drains the undelivered outbound message log: every
// Failed entry, plus Pending entries old enough to indicate a crash before
// the first attempt. Registered as a periodic task at startup. Delivery is
// at-least-once; peers tolerate duplicates addressed to terminal states.
func (o *Orchestrator) RedeliverOutbound() {
	stores := []*procstore.Store{o.cnStore}
	if o.tpStore != o.cnStore {
		stores = append(stores, o.tpStore)
	}

	for _, store := range stores {
		o.redeliverFrom(store)
	}
}

func (o *Orchestrator) redeliverFrom(store *procstore.Store) {
	undelivered, err := store.UndeliveredMessages(redeliverStalePendingAfter)
	if err != nil {
		logger.Warn("failed to list undelivered outbound messages", log.WithError(err))
		return
	}

	for _, msg := range undelivered {
		proc, err := store.GetByLocalPID(msg.Kind, msg.ProcessID)
		if err != nil {
			logger.Warn("process for undelivered message no longer resolvable",
				log.WithProcessID(msg.ProcessID), log.WithError(err))

			continue
		}

		b := backoff.NewExponentialBackOff()
		b.InitialInterval = 500 * time.Millisecond
		b.MaxElapsedTime = 5 * time.Second

		msg := msg

		err = backoff.Retry(func() error {
			_, postErr := o.client.Post(context.Background(), msg.TargetURL, o.bearerFor(proc.Participant), msg.Content)

			return postErr
		}, b)
		if err != nil {
			o.metrics.OutboundCallFailure(msg.Type)

			logger.Debug("outbound message still undeliverable, leaving for next sweep",
				log.WithProcessID(msg.ProcessID), log.WithRequestURLString(msg.TargetURL),
				log.WithRetryCount(msg.RetryCount), log.WithError(err))

			if mErr := store.MarkMessageFailed(msg.ID); mErr != nil {
				logger.Warn("failed to record redelivery attempt", log.WithProcessID(msg.ProcessID),
					log.WithError(mErr))
			}

			continue
		}

		if err := store.MarkMessageSent(msg.ID); err != nil {
			logger.Warn("failed to mark outbound message sent", log.WithProcessID(msg.ProcessID),
				log.WithError(err))
		}

		logger.Debug("redelivered outbound message", log.WithProcessID(msg.ProcessID),
			log.WithRequestURLString(msg.TargetURL))
	}
}

// invalidate drops a process from the read-through cache after a write so
// the next poll observes the committed state.
func (o *Orchestrator) invalidate(kind procstore.Kind, pid string) {
	if o.cache != nil {
		o.cache.Invalidate(kind, pid)
	}
}

func strPtr(s string) *string { return &s }

type stringer string

func (s stringer) String() string { return string(s) }

// ConsumerRequest is the consumer-initiated Request (initial or counter).
// providerPID is empty for the initial request, set for a counter.
func (o *Orchestrator) ConsumerRequest(ctx context.Context, consumerPID, providerPID, callback,
	participant string, msg model.ContractRequestMessage) (*procstore.Process, error) {
	msgType := statemachine.CNMsgRequestInitial
	if providerPID != "" {
		msgType = statemachine.CNMsgRequestCounter
	}

	localPID := providerPID
	if localPID == "" {
		localPID = consumerPID
	}

	msg.Envelope = model.Envelope{Context: model.DSPContext, Type: model.TypeContractRequestMessage}
	msg.ConsumerPID = consumerPID
	msg.ProviderPID = providerPID

	path := "negotiations/request"
	if providerPID != "" {
		path = fmt.Sprintf("negotiations/%s/request", providerPID)
	}

	return o.cnTransition(ctx, cnTransitionInput{
		msgType:      msgType,
		senderRole:   procstore.RoleConsumer,
		localPID:     localPID,
		peerPID:      providerPID,
		callback:     callback,
		participant:  participant,
		outboundPath: path,
		outboundEnv:  msg,
	})
}

// ProviderHandleRequest processes an inbound Request (initial or counter)
// from the consumer.
func (o *Orchestrator) ProviderHandleRequest(ctx context.Context, body []byte, msg model.ContractRequestMessage,
	callback, participant string) (*procstore.Process, error) {
	msgType := statemachine.CNMsgRequestInitial

	localPID := msg.ProviderPID
	if localPID == "" {
		localPID = model.NewPID()
		msg.ProviderPID = localPID
	} else {
		msgType = statemachine.CNMsgRequestCounter
	}

	return o.cnTransition(ctx, cnTransitionInput{
		msgType:     msgType,
		senderRole:  procstore.RoleConsumer,
		localPID:    localPID,
		peerPID:     msg.ConsumerPID,
		callback:    callback,
		participant: participant,
		inboundBody: body,
	})
}

// ProviderOffer is the provider-initiated Offer (initial or counter).
func (o *Orchestrator) ProviderOffer(ctx context.Context, providerPID, consumerPID, callback,
	participant string, msg model.ContractOfferMessage) (*procstore.Process, error) {
	msgType := statemachine.CNMsgOfferInitial
	if consumerPID != "" {
		msgType = statemachine.CNMsgOfferCounter
	}

	localPID := consumerPID
	if localPID == "" {
		localPID = providerPID
	}

	msg.Envelope = model.Envelope{Context: model.DSPContext, Type: model.TypeContractOfferMessage}
	msg.ProviderPID = providerPID
	msg.ConsumerPID = consumerPID

	path := "negotiations/offers"
	if consumerPID != "" {
		path = fmt.Sprintf("negotiations/%s/offers", consumerPID)
	}

	return o.cnTransition(ctx, cnTransitionInput{
		msgType:      msgType,
		senderRole:   procstore.RoleProvider,
		localPID:     localPID,
		peerPID:      providerPID,
		callback:     callback,
		participant:  participant,
		outboundPath: path,
		outboundEnv:  msg,
	})
}

// ConsumerHandleOffer processes an inbound Offer (initial or counter) from
// the provider.
func (o *Orchestrator) ConsumerHandleOffer(ctx context.Context, body []byte, msg model.ContractOfferMessage,
	callback, participant string) (*procstore.Process, error) {
	msgType := statemachine.CNMsgOfferInitial

	localPID := msg.ConsumerPID
	if localPID == "" {
		localPID = model.NewPID()
		msg.ConsumerPID = localPID
	} else {
		msgType = statemachine.CNMsgOfferCounter
	}

	return o.cnTransition(ctx, cnTransitionInput{
		msgType:     msgType,
		senderRole:  procstore.RoleProvider,
		localPID:    localPID,
		peerPID:     msg.ProviderPID,
		callback:    callback,
		participant: participant,
		inboundBody: body,
	})
}

// ProviderSendAgreement sends the Agreement to the consumer's callback.
func (o *Orchestrator) ProviderSendAgreement(ctx context.Context, providerPID, consumerPID,
	agreementID string, offer model.Offer) (*procstore.Process, error) {
	msg := model.ContractAgreementMessage{
		Envelope:    model.Envelope{Context: model.DSPContext, Type: model.TypeContractAgreementMessage},
		ProviderPID: providerPID,
		ConsumerPID: consumerPID,
		AgreementID: agreementID,
		Offer:       offer,
	}

	return o.cnTransition(ctx, cnTransitionInput{
		msgType:      statemachine.CNMsgAgreement,
		senderRole:   procstore.RoleProvider,
		localPID:     providerPID,
		outboundPath: fmt.Sprintf("negotiations/%s/agreement", consumerPID),
		outboundEnv:  msg,
	})
}

// ConsumerHandleAgreement processes an inbound Agreement from the provider.
func (o *Orchestrator) ConsumerHandleAgreement(ctx context.Context, body []byte,
	msg model.ContractAgreementMessage) (*procstore.Process, error) {
	return o.cnTransition(ctx, cnTransitionInput{
		msgType:     statemachine.CNMsgAgreement,
		senderRole:  procstore.RoleProvider,
		localPID:    msg.ConsumerPID,
		inboundBody: body,
	})
}

// ConsumerSendEventAccepted sends the ACCEPTED event to the provider.
func (o *Orchestrator) ConsumerSendEventAccepted(ctx context.Context, providerPID,
	consumerPID string) (*procstore.Process, error) {
	msg := model.ContractNegotiationEventMessage{
		Envelope:    model.Envelope{Context: model.DSPContext, Type: model.TypeContractNegotiationEvent},
		ProviderPID: providerPID,
		ConsumerPID: consumerPID,
		EventType:   model.EventAccepted,
	}

	return o.cnTransition(ctx, cnTransitionInput{
		msgType:      statemachine.CNMsgEventAccepted,
		senderRole:   procstore.RoleConsumer,
		localPID:     consumerPID,
		outboundPath: fmt.Sprintf("negotiations/%s/events", providerPID),
		outboundEnv:  msg,
	})
}

// ProviderHandleEventAccepted processes an inbound ACCEPTED event.
func (o *Orchestrator) ProviderHandleEventAccepted(ctx context.Context, body []byte,
	msg model.ContractNegotiationEventMessage) (*procstore.Process, error) {
	return o.cnTransition(ctx, cnTransitionInput{
		msgType:     statemachine.CNMsgEventAccepted,
		senderRole:  procstore.RoleConsumer,
		localPID:    msg.ProviderPID,
		inboundBody: body,
	})
}

// ConsumerSendVerification sends the Verification to the provider.
func (o *Orchestrator) ConsumerSendVerification(ctx context.Context, providerPID,
	consumerPID string) (*procstore.Process, error) {
	msg := model.ContractAgreementVerificationMessage{
		Envelope:    model.Envelope{Context: model.DSPContext, Type: model.TypeContractAgreementVerify},
		ProviderPID: providerPID,
		ConsumerPID: consumerPID,
	}

	return o.cnTransition(ctx, cnTransitionInput{
		msgType:      statemachine.CNMsgVerification,
		senderRole:   procstore.RoleConsumer,
		localPID:     consumerPID,
		outboundPath: fmt.Sprintf("negotiations/%s/agreement/verification", providerPID),
		outboundEnv:  msg,
	})
}

// ProviderHandleVerification processes an inbound Verification.
func (o *Orchestrator) ProviderHandleVerification(ctx context.Context, body []byte,
	msg model.ContractAgreementVerificationMessage) (*procstore.Process, error) {
	return o.cnTransition(ctx, cnTransitionInput{
		msgType:     statemachine.CNMsgVerification,
		senderRole:  procstore.RoleConsumer,
		localPID:    msg.ProviderPID,
		inboundBody: body,
	})
}

// ProviderSendEventFinalized sends the FINALIZED event to the consumer.
func (o *Orchestrator) ProviderSendEventFinalized(ctx context.Context, providerPID,
	consumerPID string) (*procstore.Process, error) {
	msg := model.ContractNegotiationEventMessage{
		Envelope:    model.Envelope{Context: model.DSPContext, Type: model.TypeContractNegotiationEvent},
		ProviderPID: providerPID,
		ConsumerPID: consumerPID,
		EventType:   model.EventFinalized,
	}

	return o.cnTransition(ctx, cnTransitionInput{
		msgType:      statemachine.CNMsgEventFinalized,
		senderRole:   procstore.RoleProvider,
		localPID:     providerPID,
		outboundPath: fmt.Sprintf("negotiations/%s/events", consumerPID),
		outboundEnv:  msg,
	})
}

// ConsumerHandleEventFinalized processes an inbound FINALIZED event.
func (o *Orchestrator) ConsumerHandleEventFinalized(ctx context.Context, body []byte,
	msg model.ContractNegotiationEventMessage) (*procstore.Process, error) {
	return o.cnTransition(ctx, cnTransitionInput{
		msgType:     statemachine.CNMsgEventFinalized,
		senderRole:  procstore.RoleProvider,
		localPID:    msg.ConsumerPID,
		inboundBody: body,
	})
}

// TerminateNegotiation terminates a CN from either side; senderRole names
// who sent it, localPID is the caller's own PID for the record.
func (o *Orchestrator) TerminateNegotiation(ctx context.Context, senderRole procstore.Role, localPID,
	peerPID, peerPath string, msg model.ContractNegotiationTerminationMessage, inbound []byte) (*procstore.Process, error) {
	in := cnTransitionInput{
		msgType:     statemachine.CNMsgTermination,
		senderRole:  senderRole,
		localPID:    localPID,
		inboundBody: inbound,
	}

	if inbound == nil {
		in.outboundPath = fmt.Sprintf("negotiations/%s/termination", peerPID)
		in.outboundEnv = msg
	}

	return o.cnTransition(ctx, in)
}

// GetNegotiation returns the current CN ACK for localPID, through the
// read-through cache when one is configured.
func (o *Orchestrator) GetNegotiation(localPID string) (*procstore.Process, error) {
	if o.cache != nil {
		return o.cache.Get(procstore.KindContractNegotiation, localPID)
	}

	return o.cnStore.GetByLocalPID(procstore.KindContractNegotiation, localPID)
}

// ---- Transfer Process -------------------------------------------------

type tpTransitionInput struct {
	msgType      string
	senderRole   procstore.Role
	localPID     string
	peerPID      string
	callback     string
	participant  string
	inboundBody  []byte
	outboundPath string
	outboundEnv  interface{}
}

func (o *Orchestrator) tpTransition(ctx context.Context, in tpTransitionInput) (*procstore.Process, error) {
	startTime := time.Now()
	defer func() { o.metrics.TransitionTime("tp", time.Since(startTime)) }()

	currentState := statemachine.TPState("")

	var proc *procstore.Process

	var err error

	if in.localPID != "" {
		proc, err = o.tpStore.GetByLocalPID(procstore.KindTransferProcess, in.localPID)
		if err != nil && !(in.msgType == statemachine.TPMsgRequest && dcerrors.IsNotFound(err)) {
			return nil, err
		}

		if proc != nil {
			currentState = statemachine.TPState(proc.State)
		}
	}

	lastSuspender := ""
	if proc != nil {
		lastSuspender = string(proc.LastSuspenderRole)
	}

	result, err := statemachine.EvaluateTP(string(in.senderRole), currentState, in.msgType, lastSuspender)
	if err != nil {
		o.metrics.TransitionRejected("tp")

		return nil, err
	}

	if in.inboundBody != nil {
		if _, aErr := o.tpStore.AppendMessage(in.localPID, procstore.DirectionInbound,
			in.senderRole, o.role, in.msgType, in.inboundBody); aErr != nil {
			return nil, aErr
		}
	}

	if result.Idempotent {
		return proc, nil
	}

	if proc == nil {
		proc, err = o.tpStore.CreateProcess(procstore.KindTransferProcess, o.role, result.NextState,
			in.localPID, in.peerPID, in.callback, in.participant)
		if err != nil {
			return nil, err
		}
	} else {
		edits := procstore.Edits{State: strPtr(result.NextState.String())}

		if result.SuspenderRole != "" {
			role := procstore.Role(result.SuspenderRole)
			edits.LastSuspenderRole = &role
		}

		if in.peerPID != "" && in.peerPID != proc.PeerPID {
			edits.PeerPID = &in.peerPID
		}

		proc, err = o.tpStore.PutProcess(procstore.KindTransferProcess, in.localPID, edits)
		if err != nil {
			return nil, err
		}
	}

	o.invalidate(procstore.KindTransferProcess, proc.LocalPID)

	o.driveDataPlane(ctx, proc, result.NextState)

	if in.outboundPath != "" && in.outboundEnv != nil {
		o.sendOutbound(ctx, o.tpStore, procstore.KindTransferProcess, proc, otherRole(o.role),
			in.msgType, in.outboundPath, in.outboundEnv)
	}

	o.notifier.Notify("transfer-process", result.NextState.String(), in.msgType, encode(in.outboundEnv), "transition")

	return proc, nil
}

// driveDataPlane provisions on entering STARTED and tears down on
// SUSPENDED/COMPLETED/TERMINATED, keyed by the TP provider-side PID.
func (o *Orchestrator) driveDataPlane(ctx context.Context, proc *procstore.Process, next statemachine.TPState) {
	if o.dataPlane == nil {
		return
	}

	sessionID := proc.ID
	if o.role == procstore.RoleConsumer {
		sessionID = proc.PeerPID
	}

	var dpErr error

	switch next {
	case statemachine.TPStarted:
		startTime := time.Now()
		_, dpErr = o.dataPlane.Provision(ctx, dataplane.Request{SessionID: sessionID})
		o.metrics.DataPlaneProvisionTime(time.Since(startTime))
	case statemachine.TPSuspended, statemachine.TPCompleted, statemachine.TPTerminated:
		startTime := time.Now()
		dpErr = o.dataPlane.Teardown(ctx, sessionID)
		o.metrics.DataPlaneTeardownTime(time.Since(startTime))
	case statemachine.TPRequested:
	}

	if dpErr != nil {
		logger.Warn("data plane control call failed", log.WithSessionID(sessionID),
			log.WithState(stringer(next.String())), log.WithError(dpErr))
	}
}

// ConsumerRequestTransfer sends the initial TransferRequest to the provider.
func (o *Orchestrator) ConsumerRequestTransfer(ctx context.Context, consumerPID, callback,
	participant, providerCallback string, msg model.TransferRequestMessage) (*procstore.Process, error) {
	msg.Envelope = model.Envelope{Context: model.DSPContext, Type: model.TypeTransferRequestMessage}
	msg.ConsumerPID = consumerPID
	msg.CallbackAddress = callback

	return o.tpTransition(ctx, tpTransitionInput{
		msgType:      statemachine.TPMsgRequest,
		senderRole:   procstore.RoleConsumer,
		localPID:     consumerPID,
		callback:     providerCallback,
		participant:  participant,
		outboundPath: "transfers/request",
		outboundEnv:  msg,
	})
}

// ProviderHandleTransferRequest processes an inbound TransferRequest.
func (o *Orchestrator) ProviderHandleTransferRequest(ctx context.Context, body []byte,
	msg model.TransferRequestMessage, participant string) (*procstore.Process, error) {
	providerPID := model.NewPID()

	return o.tpTransition(ctx, tpTransitionInput{
		msgType:     statemachine.TPMsgRequest,
		senderRole:  procstore.RoleConsumer,
		localPID:    providerPID,
		peerPID:     msg.ConsumerPID,
		callback:    msg.CallbackAddress,
		participant: participant,
		inboundBody: body,
	})
}

// SendStart sends TransferStart to the peer; either role may send it (the
// provider initially, either role on resume from SUSPENDED).
func (o *Orchestrator) SendStart(ctx context.Context, senderRole procstore.Role, localPID, peerPID string,
	dataAddr *model.DataAddress) (*procstore.Process, error) {
	msg := model.TransferStartMessage{
		Envelope:    model.Envelope{Context: model.DSPContext, Type: model.TypeTransferStartMessage},
		DataAddress: dataAddr,
	}

	if senderRole == procstore.RoleProvider {
		msg.ProviderPID, msg.ConsumerPID = localPID, peerPID
	} else {
		msg.ProviderPID, msg.ConsumerPID = peerPID, localPID
	}

	return o.tpTransition(ctx, tpTransitionInput{
		msgType:      statemachine.TPMsgStart,
		senderRole:   senderRole,
		localPID:     localPID,
		outboundPath: fmt.Sprintf("transfers/%s/start", peerPID),
		outboundEnv:  msg,
	})
}

// HandleStart processes an inbound TransferStart.
func (o *Orchestrator) HandleStart(ctx context.Context, senderRole procstore.Role, body []byte,
	localPID string) (*procstore.Process, error) {
	return o.tpTransition(ctx, tpTransitionInput{
		msgType:     statemachine.TPMsgStart,
		senderRole:  senderRole,
		localPID:    localPID,
		inboundBody: body,
	})
}

// SendSuspension sends TransferSuspension to the peer.
func (o *Orchestrator) SendSuspension(ctx context.Context, senderRole procstore.Role, localPID,
	peerPID string, msg model.TransferSuspensionMessage) (*procstore.Process, error) {
	msg.Envelope = model.Envelope{Context: model.DSPContext, Type: model.TypeTransferSuspensionMessage}

	return o.tpTransition(ctx, tpTransitionInput{
		msgType:      statemachine.TPMsgSuspension,
		senderRole:   senderRole,
		localPID:     localPID,
		outboundPath: fmt.Sprintf("transfers/%s/suspension", peerPID),
		outboundEnv:  msg,
	})
}

// HandleSuspension processes an inbound TransferSuspension.
func (o *Orchestrator) HandleSuspension(ctx context.Context, senderRole procstore.Role, body []byte,
	localPID string) (*procstore.Process, error) {
	return o.tpTransition(ctx, tpTransitionInput{
		msgType:     statemachine.TPMsgSuspension,
		senderRole:  senderRole,
		localPID:    localPID,
		inboundBody: body,
	})
}

// SendCompletion sends TransferCompletion to the peer.
func (o *Orchestrator) SendCompletion(ctx context.Context, senderRole procstore.Role, localPID,
	peerPID string, msg model.TransferCompletionMessage) (*procstore.Process, error) {
	msg.Envelope = model.Envelope{Context: model.DSPContext, Type: model.TypeTransferCompletionMessage}

	return o.tpTransition(ctx, tpTransitionInput{
		msgType:      statemachine.TPMsgCompletion,
		senderRole:   senderRole,
		localPID:     localPID,
		outboundPath: fmt.Sprintf("transfers/%s/completion", peerPID),
		outboundEnv:  msg,
	})
}

// HandleCompletion processes an inbound TransferCompletion.
func (o *Orchestrator) HandleCompletion(ctx context.Context, senderRole procstore.Role, body []byte,
	localPID string) (*procstore.Process, error) {
	return o.tpTransition(ctx, tpTransitionInput{
		msgType:     statemachine.TPMsgCompletion,
		senderRole:  senderRole,
		localPID:    localPID,
		inboundBody: body,
	})
}

// SendTermination sends TransferTermination to the peer.
func (o *Orchestrator) SendTermination(ctx context.Context, senderRole procstore.Role, localPID,
	peerPID string, msg model.TransferTerminationMessage) (*procstore.Process, error) {
	msg.Envelope = model.Envelope{Context: model.DSPContext, Type: model.TypeTransferTerminationMessage}

	return o.tpTransition(ctx, tpTransitionInput{
		msgType:      statemachine.TPMsgTermination,
		senderRole:   senderRole,
		localPID:     localPID,
		outboundPath: fmt.Sprintf("transfers/%s/termination", peerPID),
		outboundEnv:  msg,
	})
}

// HandleTermination processes an inbound TransferTermination.
func (o *Orchestrator) HandleTermination(ctx context.Context, senderRole procstore.Role, body []byte,
	localPID string) (*procstore.Process, error) {
	return o.tpTransition(ctx, tpTransitionInput{
		msgType:     statemachine.TPMsgTermination,
		senderRole:  senderRole,
		localPID:    localPID,
		inboundBody: body,
	})
}

// GetTransfer returns the current TP ACK for localPID, through the
// read-through cache when one is configured.
func (o *Orchestrator) GetTransfer(localPID string) (*procstore.Process, error) {
	if o.cache != nil {
		return o.cache.Get(procstore.KindTransferProcess, localPID)
	}

	return o.tpStore.GetByLocalPID(procstore.KindTransferProcess, localPID)
}

// NotFoundError wraps a process lookup miss for a resthandler to turn
// into a 404.
func NotFoundError(kind procstore.Kind, pid string) error {
	return dcerrors.NewNotFoundf("%s process %s not found", kind, pid)
}
