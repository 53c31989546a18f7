/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package dataplane

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	dcerrors "github.com/trustbloc/dataspace-connector/pkg/errors"

	"github.com/trustbloc/dataspace-connector/internal/pkg/log"
)

var logger = log.New("dataplane-controller")

type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPController drives a remote data plane over its HTTP control API:
// POST {base}/sessions provisions, DELETE {base}/sessions/{id} tears down,
// GET {base}/sessions/{id} reports status.
type HTTPController struct {
	httpClient httpDoer
	baseURL    string
}

// NewHTTPController returns a Controller calling the data plane at baseURL.
func NewHTTPController(httpClient httpDoer, baseURL string) *HTTPController {
	return &HTTPController{httpClient: httpClient, baseURL: baseURL}
}

type sessionResponse struct {
	SessionID    string            `json:"sessionId"`
	Status       Status            `json:"status"`
	EndpointType string            `json:"endpointType"`
	Endpoint     string            `json:"endpoint"`
	Properties   map[string]string `json:"properties,omitempty"`
}

// Provision implements Controller.
func (c *HTTPController) Provision(ctx context.Context, req Request) (*Endpoint, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal provision request: %w", err)
	}

	respBody, err := c.do(ctx, http.MethodPost, c.baseURL+"/sessions", body)
	if err != nil {
		return nil, err
	}

	var resp sessionResponse

	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal provision response: %w", err)
	}

	logger.Debug("provisioned data plane session", log.WithSessionID(req.SessionID))

	return &Endpoint{
		EndpointType: resp.EndpointType,
		Endpoint:     resp.Endpoint,
		Properties:   resp.Properties,
	}, nil
}

// Teardown implements Controller. Tearing down an unknown session is not an
// error.
func (c *HTTPController) Teardown(ctx context.Context, sessionID string) error {
	_, err := c.do(ctx, http.MethodDelete, c.baseURL+"/sessions/"+sessionID, nil)
	if err != nil && !dcerrors.IsNotFound(err) {
		return err
	}

	logger.Debug("tore down data plane session", log.WithSessionID(sessionID))

	return nil
}

// Status implements Controller.
func (c *HTTPController) Status(ctx context.Context, sessionID string) (Status, error) {
	respBody, err := c.do(ctx, http.MethodGet, c.baseURL+"/sessions/"+sessionID, nil)
	if err != nil {
		if dcerrors.IsNotFound(err) {
			return StatusNotFound, nil
		}

		return "", err
	}

	var resp sessionResponse

	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", fmt.Errorf("unmarshal status response: %w", err)
	}

	return resp.Status, nil
}

func (c *HTTPController) do(ctx context.Context, method, target string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("build data plane request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, dcerrors.NewTransientf("call data plane at %s: %w", target, err)
	}

	defer func() {
		if cErr := resp.Body.Close(); cErr != nil {
			logger.Debug("error closing response body", log.WithError(cErr))
		}
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, dcerrors.NewTransientf("read data plane response from %s: %w", target, err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, dcerrors.NewNotFoundf("data plane session not found at %s", target)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, dcerrors.NewTransientf("data plane at %s returned status %d: %s", target, resp.StatusCode, respBody)
	}

	return respBody, nil
}

// NoopController satisfies Controller without an attached data plane, for
// deployments where provisioning is handled out of band.
type NoopController struct{}

// Provision implements Controller.
func (NoopController) Provision(context.Context, Request) (*Endpoint, error) {
	return &Endpoint{}, nil
}

// Teardown implements Controller.
func (NoopController) Teardown(context.Context, string) error { return nil }

// Status implements Controller.
func (NoopController) Status(context.Context, string) (Status, error) {
	return StatusNotFound, nil
}
