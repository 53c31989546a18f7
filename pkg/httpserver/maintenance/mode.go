/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package maintenance wraps an httpserver.HTTPHandler so that it can be
// switched to returning 503 Service Unavailable while the owning process
// drains in-flight work during a graceful shutdown.
package maintenance

import (
	"net/http"
	"sync/atomic"

	"github.com/trustbloc/dataspace-connector/internal/pkg/log"
	"github.com/trustbloc/dataspace-connector/pkg/httpserver"
)

const loggerModule = "maintenance"

const serviceUnavailableResponse = "Service Unavailable.\n"

// HandlerWrapper delegates to the wrapped handler until maintenance mode is
// enabled, after which it answers every request with 503 until disabled.
type HandlerWrapper struct {
	httpserver.HTTPHandler

	enabled atomic.Bool

	logger *log.Log
}

// NewMaintenanceWrapper wraps handler so its traffic can be cut off on demand.
func NewMaintenanceWrapper(handler httpserver.HTTPHandler) *HandlerWrapper {
	return &HandlerWrapper{
		HTTPHandler: handler,
		logger:      log.New(loggerModule, log.WithFields(log.WithServiceEndpoint(handler.Path()))),
	}
}

// SetEnabled toggles maintenance mode. Call with true when beginning a
// shutdown drain so the handler stops accepting new work.
func (h *HandlerWrapper) SetEnabled(enabled bool) {
	h.enabled.Store(enabled)

	h.logger.Info("maintenance mode toggled", log.WithEnabled(enabled))
}

// Handler returns the wrapped handler when maintenance mode is off, or a
// handler that always answers 503 when it is on.
func (h *HandlerWrapper) Handler() http.HandlerFunc {
	wrapped := h.HTTPHandler.Handler()

	return func(w http.ResponseWriter, req *http.Request) {
		if !h.enabled.Load() {
			wrapped(w, req)

			return
		}

		w.WriteHeader(http.StatusServiceUnavailable)

		if _, err := w.Write([]byte(serviceUnavailableResponse)); err != nil {
			log.WriteResponseBodyError(h.logger, err)

			return
		}

		log.WroteResponse(h.logger, []byte(serviceUnavailableResponse))
	}
}
