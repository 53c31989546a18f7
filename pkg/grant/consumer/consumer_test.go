/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package consumer

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/hyperledger/aries-framework-go/component/storageutil/mem"
	"github.com/stretchr/testify/require"

	gmodel "github.com/trustbloc/dataspace-connector/pkg/grant/model"
	"github.com/trustbloc/dataspace-connector/pkg/grant/statemachine"
	"github.com/trustbloc/dataspace-connector/pkg/store/grantrecord"
	"github.com/trustbloc/dataspace-connector/pkg/store/mate"
	"github.com/trustbloc/dataspace-connector/pkg/store/procstore"
)

func TestParsePresentationRequestURI(t *testing.T) {
	fields, err := ParsePresentationRequestURI("openid4vp://authorize?" +
		"response_type=vp_token&client_id=https%3A%2F%2Fprovider.example.com&client_id_scheme=redirect_uri" +
		"&response_mode=direct_post&presentation_definition_uri=https%3A%2F%2Fprovider.example.com%2Fpd" +
		"&response_uri=https%3A%2F%2Fprovider.example.com%2Fverify&nonce=n-123")
	require.NoError(t, err)

	require.Equal(t, "vp_token", fields.ResponseType)
	require.Equal(t, "https://provider.example.com", fields.ClientID)
	require.Equal(t, "redirect_uri", fields.ClientIDScheme)
	require.Equal(t, "direct_post", fields.ResponseMode)
	require.Equal(t, "https://provider.example.com/pd", fields.PresentationDefinitionURI)
	require.Equal(t, "https://provider.example.com/verify", fields.ResponseURI)
	require.Equal(t, "n-123", fields.Nonce)
}

func TestParsePresentationRequestURI_PlainHTTPS(t *testing.T) {
	fields, err := ParsePresentationRequestURI("https://provider.example.com/pd/abc?nonce=n-1")
	require.NoError(t, err)
	require.Equal(t, "n-1", fields.Nonce)
}

type cannedPoster struct {
	response gmodel.GrantResponse
	lastBody []byte
}

func (p *cannedPoster) Post(_ context.Context, _, _ string, body []byte) ([]byte, error) {
	p.lastBody = body

	return json.Marshal(p.response)
}

func (p *cannedPoster) PostWithGNAP(context.Context, string, string, []byte) ([]byte, error) {
	return []byte("{}"), nil
}

func TestRequestGrant(t *testing.T) {
	provider := mem.NewProvider()

	grants, err := procstore.New(provider,
		procstore.WithTerminalStates(procstore.KindGrant, statemachine.TerminalStates...))
	require.NoError(t, err)

	records, err := grantrecord.New(provider)
	require.NoError(t, err)

	mates, err := mate.New(provider)
	require.NoError(t, err)

	poster := &cannedPoster{response: gmodel.GrantResponse{
		Interact: gmodel.InteractResponse{
			Finish:  "as-nonce",
			OIDC4VP: "openid4vp://authorize?nonce=n-1&response_uri=https%3A%2F%2Fas.example.com%2Fverify",
		},
		Continue: gmodel.ContinueHandle{
			URI:         "https://as.example.com/api/v1/continue/g1",
			AccessToken: gmodel.TokenHandle{Value: "continue-token"},
			Wait:        5,
		},
	}}

	engine := New(grants, records, mates, poster)

	proc, err := engine.RequestGrant(context.Background(), "https://as.example.com/api/v1/access",
		"https://consumer.example.com/cb", "urn:participant:provider",
		[]gmodel.AccessTokenReq{{Type: "dataspace", Actions: []string{"negotiate"}}})
	require.NoError(t, err)
	require.Equal(t, statemachine.Pending.String(), proc.State)

	// The outbound request declared the oidc4vp interactive start and a
	// push finish clause.
	var sent gmodel.GrantRequest

	require.NoError(t, json.Unmarshal(poster.lastBody, &sent))
	require.Equal(t, []string{"oidc4vp"}, sent.Interact.Start)
	require.Equal(t, "push", sent.Interact.Finish.Method)
	require.Equal(t, "sha-256", sent.Interact.Finish.HashMethod)
	require.NotEmpty(t, sent.Interact.Finish.Nonce)

	// The interaction and parsed verification fields were persisted.
	rec, err := records.Get(proc.LocalPID)
	require.NoError(t, err)
	require.Equal(t, "as-nonce", rec.Interaction.ASNonce)
	require.Equal(t, "continue-token", rec.Interaction.ContinueToken)
	require.Equal(t, "n-1", rec.Verification.Nonce)
	require.Equal(t, "https://as.example.com/verify", rec.Verification.ResponseURI)

	// Both wire messages were appended to the grant's log.
	messages, err := grants.ListMessages(proc.LocalPID)
	require.NoError(t, err)
	require.Len(t, messages, 2)
}
