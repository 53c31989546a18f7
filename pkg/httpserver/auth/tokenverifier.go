/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package auth authorizes inbound DSP/GNAP requests against the bearer
// tokens minted during a completed Grant flow: the set of valid tokens is
// the live Mate store, not a static config-file list, since mates are
// created at runtime by grant continuation.
package auth

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/trustbloc/dataspace-connector/pkg/store/mate"

	"github.com/trustbloc/dataspace-connector/internal/pkg/log"
)

var logger = log.New("httpserver-auth")

const (
	authHeader   = "Authorization"
	bearerPrefix = "Bearer "
)

type participantKey struct{}

// BearerVerifier authorizes a request by looking its bearer token up in the
// Mate store. Implements httpserver.Authorizer.
type BearerVerifier struct {
	mates *mate.Store
}

// NewBearerVerifier returns a verifier backed by mates.
func NewBearerVerifier(mates *mate.Store) *BearerVerifier {
	return &BearerVerifier{mates: mates}
}

// Verify reports whether the request carries a token belonging to a known
// Mate. On success, the Mate's participant ID is attached to the request's
// context for downstream handlers via ParticipantFromContext.
func (v *BearerVerifier) Verify(req *http.Request) bool {
	token, ok := extractBearer(req)
	if !ok {
		logger.Debug("no bearer token presented")
		return false
	}

	m, err := v.mates.GetByToken(token)
	if err != nil {
		logger.Debug("bearer token did not match any known mate", log.WithError(err))
		return false
	}

	setParticipant(req, m.ParticipantID)

	return true
}

// setParticipant attaches the authenticated participant ID to the request's
// context for downstream handlers.
func setParticipant(req *http.Request, participantID string) {
	*req = *req.WithContext(context.WithValue(req.Context(), participantKey{}, participantID))
}

func extractBearer(req *http.Request) (string, bool) {
	actHdr := req.Header.Get(authHeader)
	if !strings.HasPrefix(actHdr, bearerPrefix) {
		return "", false
	}

	return strings.TrimPrefix(actHdr, bearerPrefix), true
}

// ParticipantFromContext returns the participant ID attached by a prior
// successful BearerVerifier.Verify call, if any.
func ParticipantFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(participantKey{}).(string)
	return v, ok
}

// ConstantTimeEqual compares two bearer token strings without leaking
// timing information, used by AdminTokenVerifier to check the configured
// operator token.
func ConstantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// ExtractGNAPToken pulls the token out of an `Authorization: GNAP <token>`
// header.
func ExtractGNAPToken(req *http.Request) (string, bool) {
	const gnapPrefix = "GNAP "

	actHdr := req.Header.Get(authHeader)
	if !strings.HasPrefix(actHdr, gnapPrefix) {
		return "", false
	}

	return strings.TrimPrefix(actHdr, gnapPrefix), true
}
