/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package peerclient implements the orchestrator's outbound leg: POSTing a
// DSP or GNAP envelope to a peer's callback address, with a bearer token and
// a bounded timeout. A thin client-side HTTP wrapper owned by its callers
// rather than a general-purpose REST client.
package peerclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	dcerrors "github.com/trustbloc/dataspace-connector/pkg/errors"
	"github.com/trustbloc/dataspace-connector/pkg/httpserver/auth"

	"github.com/trustbloc/dataspace-connector/internal/pkg/log"
)

var logger = log.New("peer-client")

// DefaultTimeout is the default outbound call upper bound.
const DefaultTimeout = 10 * time.Second

type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client POSTs protocol envelopes to peer callback addresses.
type Client struct {
	httpClient httpDoer
	timeout    time.Duration
	// rewriteHost is a dev-only knob letting local/dev
	// deployments redirect a peer's advertised callback host (e.g. to a
	// docker-compose service name) without touching the stored process
	// record.
	rewriteHost map[string]string
	// signKeyID, when set, enables HMAC HTTP signatures on outbound calls:
	// each request is signed under this key ID with the peer's bearer token
	// as the shared secret.
	signKeyID string
}

// Option configures a Client.
type Option func(c *Client)

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithHostRewrite registers a dev-only host substitution applied to every
// outbound URL before it is dialed.
func WithHostRewrite(rewrite map[string]string) Option {
	return func(c *Client) { c.rewriteHost = rewrite }
}

// WithHTTPSignature enables HMAC HTTP signatures on outbound calls, signed
// under selfKeyID (this service's own participant ID).
func WithHTTPSignature(selfKeyID string) Option {
	return func(c *Client) { c.signKeyID = selfKeyID }
}

// New returns a Client using httpClient (typically *http.Client) to send
// requests.
func New(httpClient httpDoer, opts ...Option) *Client {
	c := &Client{httpClient: httpClient, timeout: DefaultTimeout}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

func (c *Client) resolve(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse callback URL %q: %w", rawURL, err)
	}

	if replacement, ok := c.rewriteHost[u.Host]; ok {
		u.Host = replacement
	}

	return u.String(), nil
}

// Post sends body to targetURL with the given bearer token, returning the
// response body on any 2xx status. A non-2xx status or network error
// becomes a PeerUnreachable-flavored transient error: the
// caller must not roll back the already-persisted local transition, only
// mark the outbound message failed and leave it for the redelivery sweep.
func (c *Client) Post(ctx context.Context, targetURL, bearerToken string, body []byte) ([]byte, error) {
	resolved, err := c.resolve(targetURL)
	if err != nil {
		return nil, dcerrors.NewTransient(err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, resolved, bytes.NewReader(body))
	if err != nil {
		return nil, dcerrors.NewTransientf("build outbound request to %s: %w", resolved, err)
	}

	req.Header.Set("Content-Type", "application/json")

	if bearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+bearerToken)

		if c.signKeyID != "" {
			if err := auth.SignRequest(req, c.signKeyID, bearerToken); err != nil {
				return nil, dcerrors.NewTransientf("sign outbound request to %s: %w", resolved, err)
			}
		}
	}

	logger.Debug("sending outbound message", log.WithRequestURLString(resolved), log.WithRequestBody(body))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, dcerrors.NewTransientf("post to %s: %w", resolved, err)
	}

	defer func() {
		if cErr := resp.Body.Close(); cErr != nil {
			logger.Debug("error closing response body", log.WithError(cErr))
		}
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, dcerrors.NewTransientf("read response from %s: %w", resolved, err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, dcerrors.NewTransientf("%s returned status %d: %s", resolved, resp.StatusCode, respBody)
	}

	logger.Debug("received outbound response", log.WithHTTPStatus(resp.StatusCode), log.WithResponse(respBody))

	return respBody, nil
}

// PostWithGNAP sends body to targetURL with a `GNAP <token>` Authorization
// header, as the grant continuation POST requires.
func (c *Client) PostWithGNAP(ctx context.Context, targetURL, continueToken string, body []byte) ([]byte, error) {
	resolved, err := c.resolve(targetURL)
	if err != nil {
		return nil, dcerrors.NewTransient(err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, resolved, bytes.NewReader(body))
	if err != nil {
		return nil, dcerrors.NewTransientf("build continuation request to %s: %w", resolved, err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "GNAP "+continueToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, dcerrors.NewTransientf("post continuation to %s: %w", resolved, err)
	}

	defer func() {
		if cErr := resp.Body.Close(); cErr != nil {
			logger.Debug("error closing response body", log.WithError(cErr))
		}
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, dcerrors.NewTransientf("read continuation response from %s: %w", resolved, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, dcerrors.NewUnauthorizedf("continuation to %s returned status %d: %s",
			resolved, resp.StatusCode, respBody)
	}

	return respBody, nil
}

// JoinPath joins base (a stored callback address) with the given path
// segments.
func JoinPath(base string, segments ...string) string {
	return strings.TrimRight(base, "/") + "/" + strings.Join(segments, "/")
}
