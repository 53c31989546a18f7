/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package auth

import (
	"net/http"
	"strings"
)

// AdminTokenVerifier accepts requests bearing the statically configured
// operator token, used for the local control-plane endpoints (onboarding
// requests, locally-initiated negotiation/transfer operations,
// subscriptions) that must be callable before any grant flow has minted a
// mate token.
type AdminTokenVerifier struct {
	token string
}

// NewAdminTokenVerifier returns a verifier accepting the given token. An
// empty token disables this verifier (Verify always fails).
func NewAdminTokenVerifier(token string) *AdminTokenVerifier {
	return &AdminTokenVerifier{token: token}
}

// Verify implements httpserver.Authorizer.
func (v *AdminTokenVerifier) Verify(req *http.Request) bool {
	if v.token == "" {
		return false
	}

	presented, ok := extractBearer(req)
	if !ok {
		return false
	}

	return ConstantTimeEqual(presented, v.token)
}

// PublicPathsVerifier wraps another Authorizer, additionally accepting any
// request addressed to one of the registered open paths. An entry ending in
// "/" opens every sub-resource under it (templated endpoints such as
// /api/v1/pd/{state}); any other entry is matched exactly, so a bare
// endpoint never opens unrelated paths that merely share its characters.
// Used for the grant bootstrap endpoints, which carry their own
// authentication (continue token, interaction hash) in the protocol itself.
type PublicPathsVerifier struct {
	next  interface{ Verify(req *http.Request) bool }
	paths []string
}

// PublicPaths wraps next with the given open paths.
func PublicPaths(next interface{ Verify(req *http.Request) bool }, paths ...string) *PublicPathsVerifier {
	return &PublicPathsVerifier{next: next, paths: paths}
}

// Verify implements httpserver.Authorizer.
func (v *PublicPathsVerifier) Verify(req *http.Request) bool {
	for _, path := range v.paths {
		if strings.HasSuffix(path, "/") {
			if strings.HasPrefix(req.URL.Path, path) {
				return true
			}
		} else if req.URL.Path == path {
			return true
		}
	}

	return v.next.Verify(req)
}
