/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package procstore persists protocol process runs: per-kind CRUD over
// Process and Message records, query-by-peer-identifier via
// identifierindex, and the per-process exclusive guard required by the
// concurrency contract. One storage namespace per record kind, tag-based
// queries, batch writes.
package procstore

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/hyperledger/aries-framework-go/spi/storage"

	dcerrors "github.com/trustbloc/dataspace-connector/pkg/errors"
	"github.com/trustbloc/dataspace-connector/pkg/store/identifierindex"

	"github.com/trustbloc/dataspace-connector/internal/pkg/log"
)

const (
	processNamespace = "process-store"
	messageNamespace = "process-message-log"

	kindTagName      = "kind"
	roleTagName      = "role"
	processIDTagName = "processID"
	statusTagName    = "status"
)

var logger = log.New("process-store")

// Option configures a Store.
type Option func(s *Store)

// WithTerminalStates registers the terminal (absorbing) states of kind.
// PutProcess refuses any edit that changes State once a process of that kind
// is already in one of them: state is monotone along legal transitions.
func WithTerminalStates(kind Kind, states ...fmt.Stringer) Option {
	return func(s *Store) {
		set := make(map[string]bool, len(states))
		for _, st := range states {
			set[st.String()] = true
		}

		s.terminal[kind] = set
	}
}

// Store is the aries-storage-backed implementation of the Process Store.
type Store struct {
	processes storage.Store
	messages  storage.Store
	index     *identifierindex.Index
	terminal  map[Kind]map[string]bool
	arena     *arena
}

// New opens the process store over the given storage provider.
func New(provider storage.Provider, opts ...Option) (*Store, error) {
	processes, err := provider.OpenStore(processNamespace)
	if err != nil {
		return nil, fmt.Errorf("open process store: %w", err)
	}

	if err := provider.SetStoreConfig(processNamespace,
		storage.StoreConfiguration{TagNames: []string{kindTagName, roleTagName}}); err != nil {
		return nil, fmt.Errorf("set process store config: %w", err)
	}

	messages, err := provider.OpenStore(messageNamespace)
	if err != nil {
		return nil, fmt.Errorf("open process message log: %w", err)
	}

	if err := provider.SetStoreConfig(messageNamespace,
		storage.StoreConfiguration{TagNames: []string{processIDTagName, statusTagName}}); err != nil {
		return nil, fmt.Errorf("set process message log config: %w", err)
	}

	index, err := identifierindex.New(provider)
	if err != nil {
		return nil, fmt.Errorf("open identifier index: %w", err)
	}

	s := &Store{
		processes: processes,
		messages:  messages,
		index:     index,
		terminal:  make(map[Kind]map[string]bool),
		arena:     newArena(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

func storeKey(kind Kind, localPID string) string {
	return fmt.Sprintf("%s:%s", kind, base64.RawURLEncoding.EncodeToString([]byte(localPID)))
}

// CreateProcess persists a new Process record and indexes its peer
// identifier, if one is already known at creation time.
func (s *Store) CreateProcess(kind Kind, role Role, initialState fmt.Stringer, localPID, peerPID,
	callback, participant string) (*Process, error) {
	unlock := s.arena.Lock(localPID)
	defer unlock()

	now := time.Now().UTC()

	p := &Process{
		ID:              localPID,
		Kind:            kind,
		Role:            role,
		State:           initialState.String(),
		LocalPID:        localPID,
		PeerPID:         peerPID,
		CallbackAddress: callback,
		Participant:     participant,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.putProcess(p); err != nil {
		return nil, err
	}

	if peerPID != "" {
		if err := s.index.Put(localPID, peerIndexKey(kind, "peerPid"), peerPID); err != nil {
			return nil, err
		}
	}

	logger.Debug("created process", log.WithProcessID(localPID), log.WithState(initialState))

	return p, nil
}

func peerIndexKey(kind Kind, name string) string {
	return fmt.Sprintf("%s:%s", kind, name)
}

func (s *Store) putProcess(p *Process) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal process %s: %w", p.ID, err)
	}

	op := storage.Operation{
		Key:   storeKey(p.Kind, p.LocalPID),
		Value: data,
		Tags: []storage.Tag{
			{Name: kindTagName, Value: string(p.Kind)},
			{Name: roleTagName, Value: string(p.Role)},
		},
	}

	if err := s.processes.Batch([]storage.Operation{op}); err != nil {
		return dcerrors.NewTransientf("put process %s: %w", p.ID, err)
	}

	return nil
}

// GetByLocalPID returns the process owned locally under pid, or a NotFound
// error.
func (s *Store) GetByLocalPID(kind Kind, pid string) (*Process, error) {
	data, err := s.processes.Get(storeKey(kind, pid))
	if err != nil {
		if err == storage.ErrDataNotFound {
			return nil, dcerrors.NewNotFound(fmt.Errorf("%w: %s/%s", dcerrors.ErrProcessNotFound, kind, pid))
		}

		return nil, dcerrors.NewTransientf("get process %s/%s: %w", kind, pid, err)
	}

	var p Process

	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("unmarshal process %s/%s: %w", kind, pid, err)
	}

	return &p, nil
}

// GetByPeerPID resolves the process known by peer identifier pid under
// index key, e.g. GetByPeerPID(KindTransferProcess, "peerPid", consumerPID)
// from the provider side.
func (s *Store) GetByPeerPID(kind Kind, key, pid string) (*Process, error) {
	localPID, err := s.index.Get(peerIndexKey(kind, key), pid)
	if err != nil {
		return nil, err
	}

	return s.GetByLocalPID(kind, localPID)
}

// PutProcess applies a sparse edit to the process identified by pid, under
// the process's exclusive guard. Returns NotAllowed if the process is in a
// registered terminal state and the edit attempts to change State.
func (s *Store) PutProcess(kind Kind, pid string, edits Edits) (*Process, error) {
	unlock := s.arena.Lock(pid)
	defer unlock()

	p, err := s.GetByLocalPID(kind, pid)
	if err != nil {
		return nil, err
	}

	if edits.State != nil && *edits.State != p.State {
		if terminalSet := s.terminal[kind]; terminalSet != nil && terminalSet[p.State] {
			return nil, dcerrors.NewNotAllowedf(stringerState(p.State),
				"process %s is in terminal state %s", pid, p.State)
		}

		p.State = *edits.State
	}

	if edits.PeerPID != nil && *edits.PeerPID != p.PeerPID {
		p.PeerPID = *edits.PeerPID

		if err := s.index.Put(p.LocalPID, peerIndexKey(kind, "peerPid"), p.PeerPID); err != nil {
			return nil, err
		}
	}

	if edits.CallbackAddress != nil {
		p.CallbackAddress = *edits.CallbackAddress
	}

	if edits.Participant != nil {
		p.Participant = *edits.Participant
	}

	if edits.LastSuspenderRole != nil {
		p.LastSuspenderRole = *edits.LastSuspenderRole
	}

	p.UpdatedAt = time.Now().UTC()

	if err := s.putProcess(p); err != nil {
		return nil, err
	}

	logger.Debug("updated process", log.WithProcessID(pid), log.WithState(stringerState(p.State)))

	return p, nil
}

type stringerState string

func (s stringerState) String() string { return string(s) }

// BatchGetProcesses returns the processes identified by ids, in order.
// A missing process yields a NotFound error for the whole batch.
func (s *Store) BatchGetProcesses(kind Kind, ids []string) ([]*Process, error) {
	out := make([]*Process, len(ids))

	for i, id := range ids {
		p, err := s.GetByLocalPID(kind, id)
		if err != nil {
			return nil, err
		}

		out[i] = p
	}

	return out, nil
}

// AppendMessage persists a Message to the append-only log for processID.
func (s *Store) AppendMessage(processID string, direction Direction, from, to Role,
	msgType string, content []byte) (*Message, error) {
	now := time.Now().UTC()

	m := &Message{
		ID:        fmt.Sprintf("%s-%d", processID, now.UnixNano()),
		ProcessID: processID,
		Type:      msgType,
		Direction: direction,
		FromRole:  from,
		ToRole:    to,
		Status:    MessageStatusRecorded,
		CreatedAt: now,
		Content:   content,
	}

	if err := s.putMessage(m); err != nil {
		return nil, err
	}

	logger.Debug("appended message", log.WithProcessID(processID), log.WithDirection(direction))

	return m, nil
}

// AppendOutbound persists the intent to send an outbound message to
// targetURL before any delivery is attempted. The entry starts Pending;
// the sender marks it Sent or Failed, and a Failed (or crash-orphaned
// Pending) entry is picked up by the redelivery sweep.
func (s *Store) AppendOutbound(kind Kind, processID string, from, to Role,
	msgType string, content []byte, targetURL string) (*Message, error) {
	now := time.Now().UTC()

	m := &Message{
		ID:        fmt.Sprintf("%s-%d", processID, now.UnixNano()),
		ProcessID: processID,
		Kind:      kind,
		Type:      msgType,
		Direction: DirectionOutbound,
		FromRole:  from,
		ToRole:    to,
		Status:    MessageStatusPending,
		TargetURL: targetURL,
		CreatedAt: now,
		Content:   content,
	}

	if err := s.putMessage(m); err != nil {
		return nil, err
	}

	logger.Debug("recorded outbound intent", log.WithProcessID(processID),
		log.WithMessageType(stringerState(msgType)))

	return m, nil
}

func (s *Store) putMessage(m *Message) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal message for process %s: %w", m.ProcessID, err)
	}

	op := storage.Operation{
		Key:   m.ID,
		Value: data,
		Tags: []storage.Tag{
			{Name: processIDTagName, Value: m.ProcessID},
			{Name: statusTagName, Value: string(m.Status)},
		},
	}

	if err := s.messages.Batch([]storage.Operation{op}); err != nil {
		return dcerrors.NewTransientf("put message for process %s: %w", m.ProcessID, err)
	}

	return nil
}

func (s *Store) getMessage(id string) (*Message, error) {
	data, err := s.messages.Get(id)
	if err != nil {
		if err == storage.ErrDataNotFound {
			return nil, dcerrors.NewNotFoundf("message %s not found", id)
		}

		return nil, dcerrors.NewTransientf("get message %s: %w", id, err)
	}

	var m Message

	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal message %s: %w", id, err)
	}

	return &m, nil
}

// MarkMessageSent records a successful delivery of the outbound message id.
func (s *Store) MarkMessageSent(id string) error {
	m, err := s.getMessage(id)
	if err != nil {
		return err
	}

	if m.Status == MessageStatusSent {
		return nil
	}

	m.Status = MessageStatusSent

	return s.putMessage(m)
}

// MarkMessageFailed records a failed delivery attempt of the outbound
// message id, leaving it for the redelivery sweep.
func (s *Store) MarkMessageFailed(id string) error {
	m, err := s.getMessage(id)
	if err != nil {
		return err
	}

	m.Status = MessageStatusFailed
	m.RetryCount++

	return s.putMessage(m)
}

// UndeliveredMessages returns every outbound message awaiting redelivery:
// all Failed entries, plus Pending entries older than stalePending (a
// Pending entry younger than that is likely mid-flight on the request that
// recorded it; an older one indicates a crash between commit and send).
func (s *Store) UndeliveredMessages(stalePending time.Duration) ([]*Message, error) {
	failed, err := s.messagesByStatus(MessageStatusFailed)
	if err != nil {
		return nil, err
	}

	pending, err := s.messagesByStatus(MessageStatusPending)
	if err != nil {
		return nil, err
	}

	cutoff := time.Now().UTC().Add(-stalePending)

	out := failed

	for _, m := range pending {
		if m.CreatedAt.Before(cutoff) {
			out = append(out, m)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})

	return out, nil
}

func (s *Store) messagesByStatus(status MessageStatus) ([]*Message, error) {
	iter, err := s.messages.Query(fmt.Sprintf("%s:%s", statusTagName, status))
	if err != nil {
		return nil, dcerrors.NewTransientf("query %s messages: %w", status, err)
	}

	defer func() {
		if cErr := iter.Close(); cErr != nil {
			log.CloseIteratorError(logger, cErr)
		}
	}()

	var messages []*Message

	ok, err := iter.Next()
	if err != nil {
		return nil, dcerrors.NewTransientf("iterate %s messages: %w", status, err)
	}

	for ok {
		value, vErr := iter.Value()
		if vErr != nil {
			return nil, dcerrors.NewTransientf("read %s message: %w", status, vErr)
		}

		var m Message

		if err := json.Unmarshal(value, &m); err != nil {
			return nil, fmt.Errorf("unmarshal %s message: %w", status, err)
		}

		messages = append(messages, &m)

		ok, err = iter.Next()
		if err != nil {
			return nil, dcerrors.NewTransientf("iterate %s messages: %w", status, err)
		}
	}

	return messages, nil
}

// ListMessages returns every message recorded for processID, oldest first.
func (s *Store) ListMessages(processID string) ([]*Message, error) {
	iter, err := s.messages.Query(fmt.Sprintf("%s:%s", processIDTagName, processID))
	if err != nil {
		return nil, dcerrors.NewTransientf("query messages for process %s: %w", processID, err)
	}

	defer func() {
		if cErr := iter.Close(); cErr != nil {
			log.CloseIteratorError(logger, cErr)
		}
	}()

	var messages []*Message

	ok, err := iter.Next()
	if err != nil {
		return nil, dcerrors.NewTransientf("iterate messages for process %s: %w", processID, err)
	}

	for ok {
		value, vErr := iter.Value()
		if vErr != nil {
			return nil, dcerrors.NewTransientf("read message for process %s: %w", processID, vErr)
		}

		var m Message

		if err := json.Unmarshal(value, &m); err != nil {
			return nil, fmt.Errorf("unmarshal message for process %s: %w", processID, err)
		}

		messages = append(messages, &m)

		ok, err = iter.Next()
		if err != nil {
			return nil, dcerrors.NewTransientf("iterate messages for process %s: %w", processID, err)
		}
	}

	sort.Slice(messages, func(i, j int) bool {
		return messages[i].CreatedAt.Before(messages[j].CreatedAt)
	})

	return messages, nil
}
