/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package consumer implements the GNAP grant client / OIDC4VP
// relying-holder side: build and POST the grant request, parse the AS's
// interact.oidc4vp URI, verify the interaction hash on the callback, and
// post the continuation.
package consumer

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

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

var logger = log.New("grant-consumer")

type peerPoster interface {
	Post(ctx context.Context, targetURL, bearerToken string, body []byte) ([]byte, error)
	PostWithGNAP(ctx context.Context, targetURL, continueToken string, body []byte) ([]byte, error)
}

// Engine drives the consumer/client side of the Grant machine.
type Engine struct {
	grants  *procstore.Store
	records *grantrecord.Store
	mates   *mate.Store
	client  peerPoster
	metrics metrics.Metrics
}

// Option configures an Engine.
type Option func(e *Engine)

// WithMetrics overrides the default no-op metrics implementation.
func WithMetrics(m metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// New returns a consumer-side grant Engine.
func New(grants *procstore.Store, records *grantrecord.Store, mates *mate.Store, client peerPoster,
	opts ...Option) *Engine {
	e := &Engine{
		grants: grants, records: records, mates: mates, client: client,
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

// RequestGrant builds a grant request, persists the
// record in Processing, POSTs it to the AS, and on a 200 response persists
// the Interaction and advances to Pending.
func (e *Engine) RequestGrant(ctx context.Context, asGrantEndpoint, callbackURI, participant string,
	tokens []gmodel.AccessTokenReq) (*procstore.Process, error) {
	localPID := gmodel.NewGrantID()

	clientNonce, err := newNonce()
	if err != nil {
		return nil, err
	}

	if _, err := statemachine.Evaluate("", statemachine.EventRequested); err != nil {
		return nil, err
	}

	_, err = e.grants.CreateProcess(procstore.KindGrant, procstore.RoleConsumer, statemachine.Processing,
		localPID, "", asGrantEndpoint, participant)
	if err != nil {
		return nil, err
	}

	req := gmodel.GrantRequest{
		AccessToken: tokens,
		Interact: gmodel.InteractRequest{
			Start: []string{"oidc4vp"},
			Finish: gmodel.FinishClause{
				Method:     "push",
				URI:        callbackURI,
				Nonce:      clientNonce,
				HashMethod: "sha-256",
			},
		},
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal grant request: %w", err)
	}

	if _, err := e.grants.AppendMessage(localPID, procstore.DirectionOutbound, procstore.RoleConsumer,
		procstore.RoleAuthority, "grant-request", body); err != nil {
		return nil, err
	}

	respBody, err := e.client.Post(ctx, asGrantEndpoint, "", body)
	if err != nil {
		return nil, err
	}

	var resp gmodel.GrantResponse

	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal grant response: %w", err)
	}

	if _, err := e.grants.AppendMessage(localPID, procstore.DirectionInbound, procstore.RoleAuthority,
		procstore.RoleConsumer, "grant-response", respBody); err != nil {
		return nil, err
	}

	result, err := statemachine.Evaluate(statemachine.Processing, statemachine.EventASResponded)
	if err != nil {
		return nil, err
	}

	if err := e.records.PutInteraction(localPID, &grantrecord.Interaction{
		ClientNonce:   clientNonce,
		ASNonce:       resp.Interact.Finish,
		HashMethod:    "sha-256",
		FinishURI:     callbackURI,
		ContinueURI:   resp.Continue.URI,
		ContinueToken: resp.Continue.AccessToken.Value,
	}); err != nil {
		return nil, err
	}

	fields, err := ParsePresentationRequestURI(resp.Interact.OIDC4VP)
	if err != nil {
		return nil, err
	}

	if err := e.records.PutVerification(localPID, &grantrecord.Verification{
		ResponseType:       fields.ResponseType,
		ClientID:           fields.ClientID,
		ClientIDScheme:     fields.ClientIDScheme,
		ResponseMode:       fields.ResponseMode,
		PresentationDefURI: fields.PresentationDefinitionURI,
		ResponseURI:        fields.ResponseURI,
		Nonce:              fields.Nonce,
	}); err != nil {
		return nil, err
	}

	return e.grants.PutProcess(procstore.KindGrant, localPID, procstore.Edits{
		State: strPtr(result.NextState.String()),
	})
}

func strPtr(s string) *string { return &s }

// ParsePresentationRequestURI parses an openid4vp:// presentation-request
// URI, rewriting the scheme to https:// first so the
// standard net/url parser can be used.
func ParsePresentationRequestURI(raw string) (*gmodel.PresentationRequestFields, error) {
	rewritten := raw
	if strings.HasPrefix(raw, "openid4vp://") {
		rewritten = "https://" + strings.TrimPrefix(raw, "openid4vp://")
	}

	u, err := url.Parse(rewritten)
	if err != nil {
		return nil, dcerrors.NewBadRequestf("parse oidc4vp URI: %w", err)
	}

	q := u.Query()

	return &gmodel.PresentationRequestFields{
		ResponseType:              q.Get("response_type"),
		ClientID:                  q.Get("client_id"),
		ClientIDScheme:            q.Get("client_id_scheme"),
		ResponseMode:              q.Get("response_mode"),
		PresentationDefinitionURI: q.Get("presentation_definition_uri"),
		ResponseURI:               q.Get("response_uri"),
		Nonce:                     q.Get("nonce"),
	}, nil
}

// HandleCallback processes the interactive callback
// (POST /api/v1/onboard/callback/:id carrying {hash, interact_ref}):
// recompute the hash and compare. A mismatch denies the grant irreversibly;
// a match posts the continuation and, on success, persists the returned
// access token as a Mate record.
func (e *Engine) HandleCallback(ctx context.Context, localPID string, body gmodel.CallbackBody,
	peerParticipantID, peerBaseURL string) (*procstore.Process, error) {
	proc, err := e.grants.GetByLocalPID(procstore.KindGrant, localPID)
	if err != nil {
		return nil, err
	}

	rec, err := e.records.Get(localPID)
	if err != nil {
		return nil, err
	}

	if rec.Interaction == nil {
		return nil, dcerrors.NewNotAllowedf(statemachine.State(proc.State), "grant %s has no interaction record", localPID)
	}

	computed := hash.Compute(rec.Interaction.ClientNonce, rec.Interaction.ASNonce, body.InteractRef, proc.CallbackAddress)

	if computed != body.Hash {
		result, err := statemachine.Evaluate(statemachine.State(proc.State), statemachine.EventHashMismatch)
		if err != nil {
			return nil, err
		}

		e.metrics.GrantHashMismatch()

		logger.Warn("interaction hash mismatch, denying grant", log.WithGrantID(localPID))

		return e.grants.PutProcess(procstore.KindGrant, localPID, procstore.Edits{State: strPtr(result.NextState.String())})
	}

	rec.Interaction.InteractRef = body.InteractRef
	rec.Interaction.Hash = body.Hash

	if err := e.records.PutInteraction(localPID, rec.Interaction); err != nil {
		return nil, err
	}

	if _, err := e.grants.PutProcess(procstore.KindGrant, localPID,
		procstore.Edits{PeerPID: &body.InteractRef}); err != nil {
		return nil, err
	}

	continueReq := gmodel.ContinueRequest{InteractRef: body.InteractRef}

	reqBody, err := json.Marshal(continueReq)
	if err != nil {
		return nil, fmt.Errorf("marshal continue request: %w", err)
	}

	respBody, err := e.client.PostWithGNAP(ctx, rec.Interaction.ContinueURI, rec.Interaction.ContinueToken, reqBody)
	if err != nil {
		result, evalErr := statemachine.Evaluate(statemachine.State(proc.State), statemachine.EventContinuationFailed)
		if evalErr != nil {
			return nil, evalErr
		}

		_, _ = e.grants.PutProcess(procstore.KindGrant, localPID,
			procstore.Edits{State: strPtr(result.NextState.String())})

		return nil, err
	}

	var contResp gmodel.ContinueResponse

	if err := json.Unmarshal(respBody, &contResp); err != nil {
		return nil, fmt.Errorf("unmarshal continue response: %w", err)
	}

	result, err := statemachine.Evaluate(statemachine.State(proc.State), statemachine.EventContinued)
	if err != nil {
		return nil, err
	}

	if err := e.mates.Create(&mate.Mate{
		ParticipantID: peerParticipantID,
		BaseURL:       peerBaseURL,
		Type:          procstore.RoleProvider,
		BearerToken:   contResp.AccessToken.Value,
	}); err != nil {
		return nil, err
	}

	return e.grants.PutProcess(procstore.KindGrant, localPID, procstore.Edits{State: strPtr(result.NextState.String())})
}
