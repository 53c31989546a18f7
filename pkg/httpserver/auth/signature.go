/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package auth

import (
	"net/http"
	"strings"

	httpsignatures "github.com/igor-pavlenko/httpsignatures-go"

	"github.com/trustbloc/dataspace-connector/pkg/store/mate"

	"github.com/trustbloc/dataspace-connector/internal/pkg/log"
)

// hmacAlgorithm is the HTTP-signature algorithm used between mates: the
// bearer token minted on grant continuation doubles as the HMAC shared
// secret, with the sender's participant ID as the key ID.
const hmacAlgorithm = "hmac-sha256"

// SignRequest signs req with an HMAC HTTP signature under keyID. secret is
// the shared bearer token held by both parties.
func SignRequest(req *http.Request, keyID, secret string) error {
	hs := httpsignatures.NewHTTPSignatures(httpsignatures.NewSimpleSecretsStorage(
		map[string]httpsignatures.Secret{
			keyID: {
				KeyID:      keyID,
				PrivateKey: secret,
				PublicKey:  secret,
				Algorithm:  hmacAlgorithm,
			},
		}))

	return hs.Sign(keyID, req)
}

// mateSecrets resolves HTTP-signature secrets from the Mate store: the key
// ID is the sending participant's ID and the secret is that mate's bearer
// token.
type mateSecrets struct {
	mates *mate.Store
}

// Get implements httpsignatures.Secrets.
func (s *mateSecrets) Get(keyID string) (httpsignatures.Secret, error) {
	m, err := s.mates.Get(keyID)
	if err != nil {
		return httpsignatures.Secret{}, err
	}

	return httpsignatures.Secret{
		KeyID:      keyID,
		PrivateKey: m.BearerToken,
		PublicKey:  m.BearerToken,
		Algorithm:  hmacAlgorithm,
	}, nil
}

// SignatureVerifier authorizes a request by verifying its HTTP signature
// against the Mate store. Implements httpserver.Authorizer; typically
// wrapped around a BearerVerifier via Any.
type SignatureVerifier struct {
	hs    *httpsignatures.HTTPSignatures
	mates *mate.Store
}

// NewSignatureVerifier returns a verifier backed by mates.
func NewSignatureVerifier(mates *mate.Store) *SignatureVerifier {
	return &SignatureVerifier{
		hs:    httpsignatures.NewHTTPSignatures(&mateSecrets{mates: mates}),
		mates: mates,
	}
}

// Verify reports whether the request carries a valid HTTP signature from a
// known mate. On success the signing mate's participant ID is attached to
// the request context.
func (v *SignatureVerifier) Verify(req *http.Request) bool {
	if req.Header.Get("Signature") == "" {
		logger.Debug("no HTTP signature presented")
		return false
	}

	if err := v.hs.Verify(req); err != nil {
		logger.Debug("HTTP signature verification failed", log.WithError(err))
		return false
	}

	keyID := extractKeyID(req.Header.Get("Signature"))
	if keyID == "" {
		return false
	}

	setParticipant(req, keyID)

	return true
}

// extractKeyID pulls the keyId parameter out of a Signature header.
func extractKeyID(header string) string {
	for _, part := range strings.Split(header, ",") {
		part = strings.TrimSpace(part)

		if strings.HasPrefix(part, "keyId=") {
			return strings.Trim(strings.TrimPrefix(part, "keyId="), `"`)
		}
	}

	return ""
}

// Any returns an Authorizer accepting a request that any of the given
// verifiers accepts, letting bearer-token and HTTP-signature auth coexist
// on the same endpoints.
func Any(verifiers ...interface{ Verify(req *http.Request) bool }) *AnyVerifier {
	return &AnyVerifier{verifiers: verifiers}
}

// AnyVerifier accepts a request accepted by any of its verifiers.
type AnyVerifier struct {
	verifiers []interface{ Verify(req *http.Request) bool }
}

// Verify implements httpserver.Authorizer.
func (v *AnyVerifier) Verify(req *http.Request) bool {
	for _, verifier := range v.verifiers {
		if verifier.Verify(req) {
			return true
		}
	}

	return false
}
