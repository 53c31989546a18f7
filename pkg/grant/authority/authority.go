/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package authority implements the GNAP authorization-server / OIDC4VP
// verifier side: accept a grant request, serve the presentation
// definition, verify the holder's VP, push the interaction hash to the
// client's finish URI, and mint an access token on continuation.
package authority

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	dcerrors "github.com/trustbloc/dataspace-connector/pkg/errors"
	"github.com/trustbloc/dataspace-connector/pkg/grant/hash"
	gmodel "github.com/trustbloc/dataspace-connector/pkg/grant/model"
	"github.com/trustbloc/dataspace-connector/pkg/grant/statemachine"
	"github.com/trustbloc/dataspace-connector/pkg/observability/metrics"
	"github.com/trustbloc/dataspace-connector/pkg/observability/metrics/noop"
	"github.com/trustbloc/dataspace-connector/pkg/store/grantrecord"
	"github.com/trustbloc/dataspace-connector/pkg/store/mate"
	"github.com/trustbloc/dataspace-connector/pkg/store/procstore"

	"github.com/trustbloc/dataspace-connector/internal/pkg/log"
)

var logger = log.New("grant-authority")

type peerPoster interface {
	Post(ctx context.Context, targetURL, bearerToken string, body []byte) ([]byte, error)
}

// PresentationDefinitionProvider supplies the ODRL/OIDC4VP presentation
// definition document served at GET /api/v1/pd/:state. The authority
// treats it as an opaque document to hand back.
type PresentationDefinitionProvider interface {
	PresentationDefinition(ctx context.Context) ([]byte, error)
}

// VPVerifier validates a submitted vp_token against the presentation
// definition. The authority only needs a pass/fail collaborator.
type VPVerifier interface {
	Verify(ctx context.Context, vpToken, presentationSubmission string) error
}

// Engine drives the provider/AS side of the Grant machine.
type Engine struct {
	grants      *procstore.Store
	records     *grantrecord.Store
	mates       *mate.Store
	client      peerPoster
	pd          PresentationDefinitionProvider
	verifier    VPVerifier
	selfBaseURL string
	metrics     metrics.Metrics
}

// Option configures an Engine.
type Option func(e *Engine)

// WithMetrics overrides the default no-op metrics implementation.
func WithMetrics(m metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// New returns a provider-side grant Engine. selfBaseURL is this authority's
// own externally reachable base URL, used to build the interact.oidc4vp and
// continue.uri values returned to the client.
func New(grants *procstore.Store, records *grantrecord.Store, mates *mate.Store, client peerPoster,
	pd PresentationDefinitionProvider, verifier VPVerifier, selfBaseURL string, opts ...Option) *Engine {
	e := &Engine{
		grants: grants, records: records, mates: mates, client: client,
		pd: pd, verifier: verifier, selfBaseURL: selfBaseURL,
		metrics: noop.NewProvider().Metrics(),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

func newNonce() (string, error) {
	b := make([]byte, 32)

	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(b), nil
}

func newToken() (string, error) {
	b := make([]byte, 32)

	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(b), nil
}

func strPtr(s string) *string { return &s }

// HandleGrantRequest processes an inbound GrantRequest: creates the
// process and its auxiliary records, generates the AS-side nonce and
// continue token, and returns the GrantResponse to send to the client.
func (e *Engine) HandleGrantRequest(ctx context.Context, req gmodel.GrantRequest,
	participant string) (*procstore.Process, *gmodel.GrantResponse, error) {
	startTime := time.Now()
	defer func() { e.metrics.GrantRequestTime(time.Since(startTime)) }()

	if _, err := statemachine.Evaluate("", statemachine.EventRequested); err != nil {
		return nil, nil, err
	}

	localPID := gmodel.NewGrantID()

	grantEndpoint := fmt.Sprintf("%s/api/v1/access", e.selfBaseURL)

	proc, err := e.grants.CreateProcess(procstore.KindGrant, procstore.RoleAuthority, statemachine.Processing,
		localPID, "", grantEndpoint, participant)
	if err != nil {
		return nil, nil, err
	}

	asNonce, err := newNonce()
	if err != nil {
		return nil, nil, err
	}

	continueToken, err := newToken()
	if err != nil {
		return nil, nil, err
	}

	if err := e.records.PutInteraction(localPID, &grantrecord.Interaction{
		ClientNonce:   req.Interact.Finish.Nonce,
		ASNonce:       asNonce,
		HashMethod:    req.Interact.Finish.HashMethod,
		FinishURI:     req.Interact.Finish.URI,
		ContinueToken: continueToken,
	}); err != nil {
		return nil, nil, err
	}

	resp := &gmodel.GrantResponse{
		Interact: gmodel.InteractResponse{
			Finish:  asNonce,
			OIDC4VP: fmt.Sprintf("%s/api/v1/pd/%s", e.selfBaseURL, localPID),
		},
		Continue: gmodel.ContinueHandle{
			URI:         fmt.Sprintf("%s/api/v1/continue/%s", e.selfBaseURL, localPID),
			AccessToken: gmodel.TokenHandle{Value: continueToken},
			Wait:        5,
		},
	}

	result, err := statemachine.Evaluate(statemachine.Processing, statemachine.EventASResponded)
	if err != nil {
		return nil, nil, err
	}

	proc, err = e.grants.PutProcess(procstore.KindGrant, localPID, procstore.Edits{State: strPtr(result.NextState.String())})
	if err != nil {
		return nil, nil, err
	}

	return proc, resp, nil
}

// PresentationDefinition serves GET /api/v1/pd/:state.
func (e *Engine) PresentationDefinition(ctx context.Context, state string) ([]byte, error) {
	if _, err := e.grants.GetByLocalPID(procstore.KindGrant, state); err != nil {
		return nil, err
	}

	return e.pd.PresentationDefinition(ctx)
}

// HandleVerification processes POST /api/v1/verify/:state: validates the
// vp_token, marks the Verification record verified, and, if a push finish
// URI was declared, POSTs {interact_ref, hash} to it.
func (e *Engine) HandleVerification(ctx context.Context, state string, req gmodel.VerifyRequest) error {
	proc, err := e.grants.GetByLocalPID(procstore.KindGrant, state)
	if err != nil {
		return err
	}

	if err := e.verifier.Verify(ctx, req.VPToken, req.PresentationSubmission); err != nil {
		return dcerrors.NewUnauthorizedf("vp verification failed: %w", err)
	}

	rec, err := e.records.Get(state)
	if err != nil {
		return err
	}

	verification := rec.Verification
	if verification == nil {
		verification = &grantrecord.Verification{}
	}

	verification.Verified = true

	if err := e.records.PutVerification(state, verification); err != nil {
		return err
	}

	if rec.Interaction == nil || rec.Interaction.FinishURI == "" {
		return nil
	}

	interactRef := gmodel.NewGrantID()

	computedHash := hash.Compute(rec.Interaction.ClientNonce, rec.Interaction.ASNonce, interactRef, proc.CallbackAddress)

	rec.Interaction.InteractRef = interactRef
	rec.Interaction.Hash = computedHash

	if err := e.records.PutInteraction(state, rec.Interaction); err != nil {
		return err
	}

	callback := gmodel.CallbackBody{InteractRef: interactRef, Hash: computedHash}

	body, err := json.Marshal(callback)
	if err != nil {
		return fmt.Errorf("marshal callback body: %w", err)
	}

	if _, err := e.client.Post(ctx, rec.Interaction.FinishURI, "", body); err != nil {
		logger.Warn("failed to push interaction callback to client, client will be unable to continue",
			log.WithGrantID(state), log.WithError(err))
	}

	return nil
}

// HandleContinue processes POST /api/v1/continue/:id: validates the presented continue-token and interact_ref,
// mints a bearer access token, persists a Mate record for the counterparty,
// and returns the token.
func (e *Engine) HandleContinue(ctx context.Context, grantID, presentedToken, peerBaseURL,
	peerSlug string, req gmodel.ContinueRequest) (*gmodel.ContinueResponse, error) {
	startTime := time.Now()
	defer func() { e.metrics.GrantContinueTime(time.Since(startTime)) }()

	proc, err := e.grants.GetByLocalPID(procstore.KindGrant, grantID)
	if err != nil {
		return nil, err
	}

	rec, err := e.records.Get(grantID)
	if err != nil {
		return nil, err
	}

	if rec.Interaction == nil || rec.Interaction.ContinueToken != presentedToken {
		result, evalErr := statemachine.Evaluate(statemachine.State(proc.State), statemachine.EventContinuationFailed)
		if evalErr == nil {
			_, _ = e.grants.PutProcess(procstore.KindGrant, grantID,
				procstore.Edits{State: strPtr(result.NextState.String())})
		}

		return nil, dcerrors.NewUnauthorizedf("invalid continuation token for grant %s", grantID)
	}

	if rec.Interaction.InteractRef == "" || rec.Interaction.InteractRef != req.InteractRef {
		result, evalErr := statemachine.Evaluate(statemachine.State(proc.State), statemachine.EventContinuationFailed)
		if evalErr == nil {
			_, _ = e.grants.PutProcess(procstore.KindGrant, grantID,
				procstore.Edits{State: strPtr(result.NextState.String())})
		}

		return nil, dcerrors.NewUnauthorizedf("interact_ref mismatch for grant %s", grantID)
	}

	token, err := newToken()
	if err != nil {
		return nil, err
	}

	result, err := statemachine.Evaluate(statemachine.State(proc.State), statemachine.EventContinued)
	if err != nil {
		return nil, err
	}

	if _, err := e.grants.PutProcess(procstore.KindGrant, grantID, procstore.Edits{
		State:   strPtr(result.NextState.String()),
		PeerPID: &rec.Interaction.InteractRef,
	}); err != nil {
		return nil, err
	}

	if err := e.mates.Create(&mate.Mate{
		ParticipantID: proc.Participant,
		Slug:          peerSlug,
		BaseURL:       peerBaseURL,
		Type:          procstore.RoleConsumer,
		BearerToken:   token,
	}); err != nil {
		return nil, err
	}

	return &gmodel.ContinueResponse{AccessToken: gmodel.TokenHandle{Value: token}}, nil
}
