/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package validator

import (
	"bytes"
	"encoding/json"

	"github.com/trustbloc/dataspace-connector/pkg/dsp/model"
)

// buildTable constructs the compile-time message-type → schema-check
// dispatch table.
func buildTable(v *Validator) map[string]schemaCheck {
	return map[string]schemaCheck{
		model.TypeContractRequestMessage:     checkContractRequest,
		model.TypeContractOfferMessage:       checkContractOffer,
		model.TypeContractAgreementMessage:   checkContractAgreement,
		model.TypeContractNegotiationEvent:   checkContractEvent,
		model.TypeContractAgreementVerify:    checkContractVerification,
		model.TypeContractNegotiationTerm:    checkContractTermination,
		model.TypeTransferRequestMessage:     checkTransferRequest,
		model.TypeTransferStartMessage:       checkTransferStart,
		model.TypeTransferSuspensionMessage:  checkTransferSuspension,
		model.TypeTransferCompletionMessage:  checkTransferCompletion,
		model.TypeTransferTerminationMessage: checkTransferTermination,
	}
}

// strictUnmarshal decodes body into v, rejecting unknown fields. The decode
// failure is a protocol-level rejection, not an internal error, since the
// envelope type has already been dispatched on.
func strictUnmarshal(body []byte, v interface{}) *ProtocolError {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		return newProtocolError("malformed-message", err.Error())
	}

	return nil
}

func checkContractRequest(body []byte) (*ProtocolError, error) {
	var msg model.ContractRequestMessage

	if protoErr := strictUnmarshal(body, &msg); protoErr != nil {
		return protoErr, nil
	}

	if msg.ConsumerPID == "" {
		return newProtocolError("missing-field", "consumerPid is required"), nil
	}

	return checkOffer(msg.Offer)
}

func checkContractOffer(body []byte) (*ProtocolError, error) {
	var msg model.ContractOfferMessage

	if protoErr := strictUnmarshal(body, &msg); protoErr != nil {
		return protoErr, nil
	}

	if msg.ProviderPID == "" {
		return newProtocolError("missing-field", "providerPid is required"), nil
	}

	return checkOffer(msg.Offer)
}

// checkOffer rejects an offer carrying both permission and prohibition,
// or neither.
func checkOffer(offer model.Offer) (*ProtocolError, error) {
	hasPermission := len(offer.Permission) > 0
	hasProhibition := len(offer.Prohibition) > 0

	if hasPermission == hasProhibition {
		return newProtocolError("invalid-offer",
			"offer must carry exactly one of permission or prohibition"), nil
	}

	return nil, nil
}

func checkContractAgreement(body []byte) (*ProtocolError, error) {
	var msg model.ContractAgreementMessage

	if protoErr := strictUnmarshal(body, &msg); protoErr != nil {
		return protoErr, nil
	}

	if msg.ProviderPID == "" || msg.ConsumerPID == "" {
		return newProtocolError("missing-field", "providerPid and consumerPid are required"), nil
	}

	if msg.AgreementID == "" {
		return newProtocolError("missing-field", "agreementId is required"), nil
	}

	return nil, nil
}

func checkContractEvent(body []byte) (*ProtocolError, error) {
	var msg model.ContractNegotiationEventMessage

	if protoErr := strictUnmarshal(body, &msg); protoErr != nil {
		return protoErr, nil
	}

	if msg.ProviderPID == "" || msg.ConsumerPID == "" {
		return newProtocolError("missing-field", "providerPid and consumerPid are required"), nil
	}

	if msg.EventType != model.EventAccepted && msg.EventType != model.EventFinalized {
		return newProtocolError("invalid-event", "eventType must be ACCEPTED or FINALIZED"), nil
	}

	return nil, nil
}

func checkContractVerification(body []byte) (*ProtocolError, error) {
	var msg model.ContractAgreementVerificationMessage

	if protoErr := strictUnmarshal(body, &msg); protoErr != nil {
		return protoErr, nil
	}

	return checkPIDPair(msg.ProviderPID, msg.ConsumerPID)
}

func checkContractTermination(body []byte) (*ProtocolError, error) {
	var msg model.ContractNegotiationTerminationMessage

	if protoErr := strictUnmarshal(body, &msg); protoErr != nil {
		return protoErr, nil
	}

	return checkPIDPair(msg.ProviderPID, msg.ConsumerPID)
}

// checkPIDPair requires at least one of the two process identifiers, for
// messages addressed to an existing process via the URL path.
func checkPIDPair(providerPID, consumerPID string) (*ProtocolError, error) {
	if providerPID == "" && consumerPID == "" {
		return newProtocolError("missing-field", "at least one of providerPid/consumerPid is required"), nil
	}

	return nil, nil
}

// checkTransferRequest requires a DataAddress on a push transfer; a pull
// transfer may optionally carry one, treated as a hint.
func checkTransferRequest(body []byte) (*ProtocolError, error) {
	var msg model.TransferRequestMessage

	if protoErr := strictUnmarshal(body, &msg); protoErr != nil {
		return protoErr, nil
	}

	if msg.ConsumerPID == "" {
		return newProtocolError("missing-field", "consumerPid is required"), nil
	}

	if msg.AgreementID == "" {
		return newProtocolError("missing-field", "agreementId is required"), nil
	}

	if msg.Format.Action == "push" && msg.DataAddress == nil {
		return newProtocolError("missing-data-address", "push transfers require a dataAddress"), nil
	}

	return nil, nil
}

func checkTransferStart(body []byte) (*ProtocolError, error) {
	var msg model.TransferStartMessage

	if protoErr := strictUnmarshal(body, &msg); protoErr != nil {
		return protoErr, nil
	}

	return checkPIDPair(msg.ProviderPID, msg.ConsumerPID)
}

func checkTransferSuspension(body []byte) (*ProtocolError, error) {
	var msg model.TransferSuspensionMessage

	if protoErr := strictUnmarshal(body, &msg); protoErr != nil {
		return protoErr, nil
	}

	return checkPIDPair(msg.ProviderPID, msg.ConsumerPID)
}

func checkTransferCompletion(body []byte) (*ProtocolError, error) {
	var msg model.TransferCompletionMessage

	if protoErr := strictUnmarshal(body, &msg); protoErr != nil {
		return protoErr, nil
	}

	return checkPIDPair(msg.ProviderPID, msg.ConsumerPID)
}

func checkTransferTermination(body []byte) (*ProtocolError, error) {
	var msg model.TransferTerminationMessage

	if protoErr := strictUnmarshal(body, &msg); protoErr != nil {
		return protoErr, nil
	}

	return checkPIDPair(msg.ProviderPID, msg.ConsumerPID)
}
