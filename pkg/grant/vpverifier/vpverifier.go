/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package vpverifier validates the vp_token submitted to the authority's
// verification endpoint: the token must parse as a W3C Verifiable
// Presentation and carry at least one credential. The presentation's nonce
// is not compared with the interaction's nonce. Proof checking against a
// trust registry is delegated to the wallet layer; the signature suites in
// play are a deployment concern, not decided here.
package vpverifier

import (
	"context"
	"fmt"

	"github.com/hyperledger/aries-framework-go/pkg/doc/verifiable"
	"github.com/piprate/json-gold/ld"

	dcerrors "github.com/trustbloc/dataspace-connector/pkg/errors"

	"github.com/trustbloc/dataspace-connector/internal/pkg/log"
)

var logger = log.New("vp-verifier")

// Verifier validates submitted verifiable presentations.
type Verifier struct {
	documentLoader ld.DocumentLoader
}

// New returns a Verifier. documentLoader resolves the JSON-LD contexts
// referenced by submitted presentations.
func New(documentLoader ld.DocumentLoader) *Verifier {
	return &Verifier{documentLoader: documentLoader}
}

// Verify parses and structurally validates vpToken. The presentation
// submission document is required but its descriptor mapping is not
// evaluated here.
func (v *Verifier) Verify(_ context.Context, vpToken, presentationSubmission string) error {
	if vpToken == "" {
		return dcerrors.NewBadRequestf("vp_token is required")
	}

	if presentationSubmission == "" {
		return dcerrors.NewBadRequestf("presentation_submission is required")
	}

	vp, err := verifiable.ParsePresentation([]byte(vpToken),
		verifiable.WithPresDisabledProofCheck(),
		verifiable.WithPresJSONLDDocumentLoader(v.documentLoader),
	)
	if err != nil {
		return dcerrors.NewBadRequest(fmt.Errorf("parse presentation: %w", err))
	}

	if len(vp.Credentials()) == 0 {
		return dcerrors.NewBadRequestf("presentation carries no credentials")
	}

	logger.Debug("verified presentation structure", log.WithTotal(len(vp.Credentials())))

	return nil
}
