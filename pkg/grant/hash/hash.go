/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package hash implements the GNAP/OIDC4VP interaction hash binding:
// the sole cryptographic link between the out-of-band
// verifiable-presentation exchange and the grant continuation. Both the
// consumer (client) and the provider (AS) compute this independently and
// compare; it must match byte-for-byte.
package hash

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// Compute returns base64url_no_pad(sha256(clientNonce + "\n" + asNonce +
// "\n" + interactRef + "\n" + grantEndpoint)). Newline separators only, no
// trailing newline.
func Compute(clientNonce, asNonce, interactRef, grantEndpoint string) string {
	input := fmt.Sprintf("%s\n%s\n%s\n%s", clientNonce, asNonce, interactRef, grantEndpoint)

	sum := sha256.Sum256([]byte(input))

	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// Verify reports whether received equals the hash computed from the given
// inputs.
func Verify(clientNonce, asNonce, interactRef, grantEndpoint, received string) bool {
	return Compute(clientNonce, asNonce, interactRef, grantEndpoint) == received
}
