/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package model defines the GNAP grant-request/response and OIDC4VP wire
// types: the client descriptor, access-token requirement blocks, the
// interact block (and its oidc4vp/finish sub-objects), the
// continue handle, and the interactive callback body. Mirrors
// pkg/dsp/model's role as the wire-shape layer beneath the state machine and
// auth engine.
package model

import "github.com/google/uuid"

// NewGrantID returns a freshly generated URN-form grant process identifier,
// the locally-assigned half of a Grant process record.
func NewGrantID() string {
	return "urn:uuid:" + uuid.New().String()
}

// GrantRequest is the body POSTed to the AS's /api/v1/access endpoint.
type GrantRequest struct {
	Client      Client           `json:"client"`
	AccessToken []AccessTokenReq `json:"access_token"`
	Interact    InteractRequest  `json:"interact"`
}

// Client describes the requesting instance.
type Client struct {
	DisplayName string `json:"display_name,omitempty"`
	KeyID       string `json:"key_id,omitempty"`
}

// AccessTokenReq is one requested access-token scope.
type AccessTokenReq struct {
	Type      string   `json:"type"`
	Actions   []string `json:"actions,omitempty"`
	Locations []string `json:"locations,omitempty"`
	Datatypes []string `json:"datatypes,omitempty"`
}

// InteractRequest is the `interact` block of a grant request.
type InteractRequest struct {
	Start  []string     `json:"start"`
	Finish FinishClause `json:"finish"`
}

// FinishClause names how the client expects to be notified of the outcome
// of the interactive flow.
type FinishClause struct {
	Method     string `json:"method"`
	URI        string `json:"uri"`
	Nonce      string `json:"nonce"`
	HashMethod string `json:"hash_method"`
}

// GrantResponse is the AS's reply to a GrantRequest.
type GrantResponse struct {
	Interact InteractResponse `json:"interact"`
	Continue ContinueHandle   `json:"continue"`
}

// InteractResponse carries the AS's half of the interactive flow: its own
// nonce under `finish`, and the OIDC4VP request URI under `oidc4vp`.
type InteractResponse struct {
	Finish  string `json:"finish"`
	OIDC4VP string `json:"oidc4vp"`
}

// ContinueHandle lets the client resume the grant after interaction.
type ContinueHandle struct {
	URI         string      `json:"uri"`
	AccessToken TokenHandle `json:"access_token"`
	Wait        int         `json:"wait,omitempty"`
}

// TokenHandle is a bearer token reference, used both for the continuation
// handle and for the final minted access token.
type TokenHandle struct {
	Value string `json:"value"`
}

// ContinueRequest is the body POSTed to /api/v1/continue/:id, bearing the
// interact_ref under the `Authorization: GNAP <token>` header.
type ContinueRequest struct {
	InteractRef string `json:"interact_ref"`
}

// ContinueResponse carries the minted access token on a successful
// continuation.
type ContinueResponse struct {
	AccessToken TokenHandle `json:"access_token"`
}

// CallbackBody is what the provider posts to the consumer's push finish URI
// once the VP has been verified.
type CallbackBody struct {
	InteractRef string `json:"interact_ref"`
	Hash        string `json:"hash"`
}

// PresentationRequestFields are the fields parsed out of an
// `openid4vp://` (rewritten to `https://` for a standard URL parser)
// presentation-request URI.
type PresentationRequestFields struct {
	ResponseType              string `json:"response_type"`
	ClientID                  string `json:"client_id"`
	ClientIDScheme            string `json:"client_id_scheme"`
	ResponseMode              string `json:"response_mode"`
	PresentationDefinitionURI string `json:"presentation_definition_uri"`
	ResponseURI               string `json:"response_uri"`
	Nonce                     string `json:"nonce"`
}

// VerifyRequest is the body POSTed by the holder wallet to the AS's
// /api/v1/verify/:state endpoint.
type VerifyRequest struct {
	VPToken                string `json:"vp_token"`
	PresentationSubmission string `json:"presentation_submission,omitempty"`
}
