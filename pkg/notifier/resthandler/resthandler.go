/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package resthandler exposes the event notifier's subscription registry:
// subscribers register a callback address for the event categories they
// care about and may later deactivate the registration.
package resthandler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	dcerrors "github.com/trustbloc/dataspace-connector/pkg/errors"
	"github.com/trustbloc/dataspace-connector/pkg/store/subscription"

	"github.com/trustbloc/dataspace-connector/internal/pkg/log"
)

var logger = log.New("notifier-resthandler")

const (
	subscriptionsPath   = "/api/v1/subscriptions"
	subscriptionsIDPath = subscriptionsPath + "/{id}"
)

type createSubscriptionBody struct {
	CallbackAddress string    `json:"callbackAddress"`
	Categories      []string  `json:"categories"`
	ExpirationTime  time.Time `json:"expirationTime,omitempty"`
}

// CreateSubscriptionHandler handles POST /api/v1/subscriptions.
type CreateSubscriptionHandler struct {
	subs *subscription.Store
}

// NewCreateSubscription returns the subscription registration handler.
func NewCreateSubscription(subs *subscription.Store) *CreateSubscriptionHandler {
	return &CreateSubscriptionHandler{subs: subs}
}

func (h *CreateSubscriptionHandler) Path() string { return subscriptionsPath }
func (h *CreateSubscriptionHandler) Method() string { return http.MethodPost }

func (h *CreateSubscriptionHandler) Handler() http.HandlerFunc { return h.handle }

func (h *CreateSubscriptionHandler) handle(w http.ResponseWriter, r *http.Request) {
	var body createSubscriptionBody

	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, dcerrors.NewBadRequestf("decode subscription body: %w", err))
		return
	}

	if body.CallbackAddress == "" || len(body.Categories) == 0 {
		writeError(w, dcerrors.NewBadRequestf("callbackAddress and categories are required"))
		return
	}

	sub, err := h.subs.Create(body.CallbackAddress, body.Categories, body.ExpirationTime)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)

	if err := json.NewEncoder(w).Encode(sub); err != nil {
		logger.Warn("failed to encode subscription response", log.WithError(err))
	}
}

// DeactivateSubscriptionHandler handles DELETE /api/v1/subscriptions/{id}.
type DeactivateSubscriptionHandler struct {
	subs *subscription.Store
}

// NewDeactivateSubscription returns the subscription deactivation handler.
func NewDeactivateSubscription(subs *subscription.Store) *DeactivateSubscriptionHandler {
	return &DeactivateSubscriptionHandler{subs: subs}
}

func (h *DeactivateSubscriptionHandler) Path() string { return subscriptionsIDPath }
func (h *DeactivateSubscriptionHandler) Method() string { return http.MethodDelete }

func (h *DeactivateSubscriptionHandler) Handler() http.HandlerFunc { return h.handle }

func (h *DeactivateSubscriptionHandler) handle(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := h.subs.Deactivate(id); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	switch {
	case dcerrors.IsBadRequest(err):
		status = http.StatusBadRequest
	case dcerrors.IsNotFound(err):
		status = http.StatusNotFound
	case dcerrors.IsTransient(err):
		status = http.StatusBadGateway
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if encErr := json.NewEncoder(w).Encode(map[string]string{"error": err.Error()}); encErr != nil {
		logger.Warn("failed to encode error response", log.WithError(encErr))
	}
}
