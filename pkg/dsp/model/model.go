/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package model defines the wire-level DSP envelope types: JSON-LD
// messages carrying a `@context` and a `@type` discriminator. These
// are the shapes the validator and orchestrator exchange; the process
// record types live in pkg/store/procstore.
package model

import "github.com/google/uuid"

// DSPContext is the JSON-LD context every DSP envelope carries.
const DSPContext = "https://w3id.org/dspace/2024/1/context.json"

// Message type discriminators (the `@type` field).
const (
	TypeContractRequestMessage    = "dspace:ContractRequestMessage"
	TypeContractOfferMessage      = "dspace:ContractOfferMessage"
	TypeContractAgreementMessage  = "dspace:ContractAgreementMessage"
	TypeContractNegotiationEvent  = "dspace:ContractNegotiationEventMessage"
	TypeContractAgreementVerify   = "dspace:ContractAgreementVerificationMessage"
	TypeContractNegotiationTerm   = "dspace:ContractNegotiationTerminationMessage"
	TypeContractNegotiationAck    = "dspace:ContractNegotiation"

	TypeTransferRequestMessage     = "dspace:TransferRequestMessage"
	TypeTransferStartMessage       = "dspace:TransferStartMessage"
	TypeTransferSuspensionMessage  = "dspace:TransferSuspensionMessage"
	TypeTransferCompletionMessage  = "dspace:TransferCompletionMessage"
	TypeTransferTerminationMessage = "dspace:TransferTerminationMessage"
	TypeTransferProcessAck         = "dspace:TransferProcess"
)

// Event names carried by a ContractNegotiationEventMessage.
const (
	EventAccepted  = "dspace:ACCEPTED"
	EventFinalized = "dspace:FINALIZED"
)

// Envelope is the common shape of every inbound/outbound DSP message.
type Envelope struct {
	Context string `json:"@context"`
	Type    string `json:"@type"`
}

// Offer is an ODRL policy offer attached to a negotiation.
type Offer struct {
	Target      string        `json:"target"`
	Permission  []PolicyRule  `json:"permission,omitempty"`
	Prohibition []PolicyRule  `json:"prohibition,omitempty"`
}

// PolicyRule is a single ODRL rule entry; its internal semantics are out of
// scope beyond the permission/prohibition exclusivity
// check.
type PolicyRule struct {
	Action string `json:"action"`
}

// ContractRequestMessage is the CN Request envelope (initial or counter).
type ContractRequestMessage struct {
	Envelope
	ProviderPID string `json:"providerPid,omitempty"`
	ConsumerPID string `json:"consumerPid"`
	Offer       Offer  `json:"offer"`
	Callback    string `json:"callbackAddress"`
}

// ContractOfferMessage is the CN Offer envelope (initial or counter).
type ContractOfferMessage struct {
	Envelope
	ProviderPID string `json:"providerPid"`
	ConsumerPID string `json:"consumerPid,omitempty"`
	Offer       Offer  `json:"offer"`
	Callback    string `json:"callbackAddress"`
}

// ContractAgreementMessage is the CN Agreement envelope.
type ContractAgreementMessage struct {
	Envelope
	ProviderPID string `json:"providerPid"`
	ConsumerPID string `json:"consumerPid"`
	AgreementID string `json:"agreementId"`
	Offer       Offer  `json:"offer"`
}

// ContractNegotiationEventMessage carries ACCEPTED or FINALIZED.
type ContractNegotiationEventMessage struct {
	Envelope
	ProviderPID string `json:"providerPid"`
	ConsumerPID string `json:"consumerPid"`
	EventType   string `json:"eventType"`
}

// ContractAgreementVerificationMessage is the consumer's Verification.
type ContractAgreementVerificationMessage struct {
	Envelope
	ProviderPID string `json:"providerPid"`
	ConsumerPID string `json:"consumerPid"`
}

// ContractNegotiationTerminationMessage terminates a CN from either side.
type ContractNegotiationTerminationMessage struct {
	Envelope
	ProviderPID string `json:"providerPid"`
	ConsumerPID string `json:"consumerPid"`
	Code        string `json:"code,omitempty"`
	Reason      []string `json:"reason,omitempty"`
}

// ContractNegotiationAck is the GET poll response shape.
type ContractNegotiationAck struct {
	Envelope
	ProviderPID string `json:"providerPid"`
	ConsumerPID string `json:"consumerPid"`
	State       string `json:"state"`
}

// DataAddress is present on a push-format transfer request.
type DataAddress struct {
	EndpointType string            `json:"endpointType"`
	Endpoint     string            `json:"endpoint"`
	Properties   map[string]string `json:"properties,omitempty"`
}

// TransferFormat names the protocol/action pair of a transfer request.
type TransferFormat struct {
	Protocol string `json:"protocol"`
	Action   string `json:"action"` // "push" or "pull"
}

// TransferRequestMessage is the TP Request envelope.
type TransferRequestMessage struct {
	Envelope
	ConsumerPID     string          `json:"consumerPid"`
	AgreementID     string          `json:"agreementId"`
	Format          TransferFormat  `json:"format"`
	DataAddress     *DataAddress    `json:"dataAddress,omitempty"`
	CallbackAddress string          `json:"callbackAddress"`
}

// TransferStartMessage is the TP Start envelope.
type TransferStartMessage struct {
	Envelope
	ProviderPID string       `json:"providerPid"`
	ConsumerPID string       `json:"consumerPid"`
	DataAddress *DataAddress `json:"dataAddress,omitempty"`
}

// TransferSuspensionMessage is the TP Suspension envelope.
type TransferSuspensionMessage struct {
	Envelope
	ProviderPID string   `json:"providerPid"`
	ConsumerPID string   `json:"consumerPid"`
	Code        string   `json:"code,omitempty"`
	Reason      []string `json:"reason,omitempty"`
}

// TransferCompletionMessage is the TP Completion envelope.
type TransferCompletionMessage struct {
	Envelope
	ProviderPID string `json:"providerPid"`
	ConsumerPID string `json:"consumerPid"`
}

// TransferTerminationMessage is the TP Termination envelope.
type TransferTerminationMessage struct {
	Envelope
	ProviderPID string   `json:"providerPid"`
	ConsumerPID string   `json:"consumerPid"`
	Code        string   `json:"code,omitempty"`
	Reason      []string `json:"reason,omitempty"`
}

// TransferProcessAck is the GET poll response shape for a transfer process.
type TransferProcessAck struct {
	Envelope
	ProviderPID string `json:"providerPid"`
	ConsumerPID string `json:"consumerPid"`
	State       string `json:"state"`
}

// NewPID returns a freshly generated URN-form process identifier, the
// locally-assigned half of a CN/TP/Grant process record.
func NewPID() string {
	return "urn:uuid:" + uuid.New().String()
}
