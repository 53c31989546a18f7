/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package resthandler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/hyperledger/aries-framework-go/component/storageutil/mem"
	"github.com/stretchr/testify/require"

	"github.com/trustbloc/dataspace-connector/pkg/grant/authority"
	gmodel "github.com/trustbloc/dataspace-connector/pkg/grant/model"
	"github.com/trustbloc/dataspace-connector/pkg/grant/statemachine"
	"github.com/trustbloc/dataspace-connector/pkg/store/grantrecord"
	"github.com/trustbloc/dataspace-connector/pkg/store/mate"
	"github.com/trustbloc/dataspace-connector/pkg/store/procstore"
)

type staticPD struct{}

func (staticPD) PresentationDefinition(context.Context) ([]byte, error) {
	return []byte(`{"input_descriptors":[]}`), nil
}

type okVerifier struct{}

func (okVerifier) Verify(context.Context, string, string) error { return nil }

type dropPoster struct{}

func (dropPoster) Post(context.Context, string, string, []byte) ([]byte, error) {
	return []byte("{}"), nil
}

func newAuthorityRouter(t *testing.T) *mux.Router {
	t.Helper()

	provider := mem.NewProvider()

	grants, err := procstore.New(provider,
		procstore.WithTerminalStates(procstore.KindGrant, statemachine.TerminalStates...))
	require.NoError(t, err)

	records, err := grantrecord.New(provider)
	require.NoError(t, err)

	mates, err := mate.New(provider)
	require.NoError(t, err)

	engine := authority.New(grants, records, mates, dropPoster{}, staticPD{}, okVerifier{},
		"https://provider.example.com")

	router := mux.NewRouter()

	handlers := []interface {
		Path() string
		Method() string
		Handler() http.HandlerFunc
	}{
		NewAccessHandler(engine),
		NewPresentationDefinitionHandler(engine),
		NewVerifyHandler(engine),
		NewContinueHandler(engine),
	}

	for _, h := range handlers {
		router.HandleFunc(h.Path(), h.Handler()).Methods(h.Method())
	}

	return router
}

func TestAccessAndPresentationDefinition(t *testing.T) {
	router := newAuthorityRouter(t)

	body, err := json.Marshal(gmodel.GrantRequest{
		AccessToken: []gmodel.AccessTokenReq{{Type: "dataspace"}},
		Interact: gmodel.InteractRequest{
			Start:  []string{"oidc4vp"},
			Finish: gmodel.FinishClause{Method: "push", URI: "https://consumer.example.com/cb", Nonce: "n1"},
		},
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/access", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp gmodel.GrantResponse

	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Interact.Finish)
	require.NotEmpty(t, resp.Continue.AccessToken.Value)
	require.Contains(t, resp.Interact.OIDC4VP, "/api/v1/pd/")

	// The advertised pd URI serves the presentation definition.
	pdPath := resp.Interact.OIDC4VP[len("https://provider.example.com"):]

	req = httptest.NewRequest(http.MethodGet, pdPath, http.NoBody)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "input_descriptors")
}

func TestContinue_MissingGNAPToken(t *testing.T) {
	router := newAuthorityRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/continue/urn:uuid:g1",
		bytes.NewReader([]byte(`{"interact_ref":"r1"}`)))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPresentationDefinition_UnknownState(t *testing.T) {
	router := newAuthorityRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/pd/urn:uuid:nope", http.NoBody)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}
