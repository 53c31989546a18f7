/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package procstore

import "time"

// Kind names one of the three process flavors.
type Kind string

// Supported process kinds.
const (
	KindContractNegotiation Kind = "contract-negotiation"
	KindTransferProcess     Kind = "transfer-process"
	KindGrant               Kind = "grant"
)

func (k Kind) String() string { return string(k) }

// Role names which side of a process a given record belongs to.
type Role string

// Supported roles.
const (
	RoleProvider  Role = "PROVIDER"
	RoleConsumer  Role = "CONSUMER"
	RoleAuthority Role = "AUTHORITY"
)

func (r Role) String() string { return string(r) }

// Direction of a persisted Message relative to the owning process.
type Direction string

// Supported directions.
const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

func (d Direction) String() string { return string(d) }

// Process is the persisted record of a single CN, TP or Grant run.
type Process struct {
	ID                string    `json:"id"`
	Kind              Kind      `json:"kind"`
	Role              Role      `json:"role"`
	State             string    `json:"state"`
	LocalPID          string    `json:"localPid"`
	PeerPID           string    `json:"peerPid,omitempty"`
	CallbackAddress   string    `json:"callbackAddress,omitempty"`
	Participant       string    `json:"participant,omitempty"`
	LastSuspenderRole Role      `json:"lastSuspenderRole,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// Edits is a sparse patch applied by PutProcess. Only non-nil fields are
// written; all others are left untouched on the stored record.
type Edits struct {
	State             *string
	PeerPID           *string
	CallbackAddress   *string
	Participant       *string
	LastSuspenderRole *Role
}

// MessageStatus is the delivery state of a persisted Message. Inbound
// messages are Recorded on arrival; outbound messages start Pending (the
// intent is persisted before the send is attempted) and end up Sent or
// Failed, the latter redelivered by a background sweep.
type MessageStatus string

// Supported message statuses.
const (
	MessageStatusRecorded MessageStatus = "recorded"
	MessageStatusPending  MessageStatus = "pending"
	MessageStatusSent     MessageStatus = "sent"
	MessageStatusFailed   MessageStatus = "failed"
)

func (s MessageStatus) String() string { return string(s) }

// Message is an append-only audit-trail entry for a single process. Only
// the delivery-status fields of an outbound entry are ever updated after
// the fact; the payload is immutable.
type Message struct {
	ID         string        `json:"id"`
	ProcessID  string        `json:"processId"`
	Kind       Kind          `json:"kind,omitempty"`
	Type       string        `json:"type"`
	Direction  Direction     `json:"direction"`
	FromRole   Role          `json:"fromRole"`
	ToRole     Role          `json:"toRole"`
	Status     MessageStatus `json:"status"`
	TargetURL  string        `json:"targetUrl,omitempty"`
	RetryCount int           `json:"retryCount,omitempty"`
	CreatedAt  time.Time     `json:"createdAt"`
	Content    []byte        `json:"content"`
}
