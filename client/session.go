// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: client/session.go
// Summary: Msgpack-RPC session: request correlation and notification fan-out.
// Usage: NewSession, Subscribe to the methods of interest, then Start.
// Notes: One inbound pump goroutine decodes and dispatches; callers of Call
// block on their own completion slot, never on the pump.

package client

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/framegrace/texelnvim/protocol"
)

// ErrDisconnected fails every call that is pending, or issued, after the
// connection is gone.
var ErrDisconnected = errors.New("client: disconnected")

const subscriptionBuffer = 64

type callResult struct {
	result interface{}
	err    error
}

// NotificationTap observes every inbound notification before dispatch.
type NotificationTap func(method string, params []interface{})

// Session layers msgpack-rpc over a Transport.
type Session struct {
	transport Transport

	mu      sync.Mutex
	nextID  uint32
	pending map[uint32]chan callResult
	subs    map[string][]chan []interface{}
	tap     NotificationTap
	started bool
	closed  bool
	err     error

	done chan struct{}
}

// NewSession wraps transport. Nothing is read until Start is called so
// subscriptions made beforehand never miss a notification.
func NewSession(transport Transport) *Session {
	return &Session{
		transport: transport,
		pending:   make(map[uint32]chan callResult),
		subs:      make(map[string][]chan []interface{}),
		done:      make(chan struct{}),
	}
}

// SetTap installs fn as the notification observer. Call before Start.
func (s *Session) SetTap(fn NotificationTap) {
	s.mu.Lock()
	s.tap = fn
	s.mu.Unlock()
}

// Subscribe returns a channel receiving the params of every notification
// named method, in wire order. The pump waits for slow readers rather
// than dropping, so a subscriber must keep draining. The channel closes
// when the session ends.
func (s *Session) Subscribe(method string) <-chan []interface{} {
	ch := make(chan []interface{}, subscriptionBuffer)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		close(ch)
		return ch
	}
	s.subs[method] = append(s.subs[method], ch)
	return ch
}

// Start launches the inbound pump.
func (s *Session) Start() {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()
	go s.pump()
}

// Done is closed once the session has ended.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Err reports why the session ended: nil for a clean close, otherwise the
// transport failure or protocol violation.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Alive reports whether the session still accepts calls.
func (s *Session) Alive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed
}

// Close ends the session locally and closes the transport.
func (s *Session) Close() error {
	s.shutdown(nil)
	return s.transport.Close()
}

// Call sends a request and waits for its response. A rejected request
// returns *protocol.RemoteError. If ctx ends first the call returns
// ctx.Err() and the late response is discarded when it arrives.
func (s *Session) Call(ctx context.Context, method string, args ...interface{}) (interface{}, error) {
	slot := make(chan callResult, 1)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrDisconnected
	}
	id := s.allocIDLocked()
	data, err := protocol.Encode(protocol.NewRequest(id, method, args...))
	if err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	s.pending[id] = slot
	if err := s.transport.Send(data); err != nil {
		delete(s.pending, id)
		s.mu.Unlock()
		return nil, fmt.Errorf("call %s: %w", method, ErrDisconnected)
	}
	s.mu.Unlock()

	select {
	case res := <-slot:
		return res.result, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Notify sends a notification without waiting for anything.
func (s *Session) Notify(method string, args ...interface{}) error {
	data, err := protocol.Encode(protocol.NewNotification(method, args...))
	if err != nil {
		return fmt.Errorf("notify %s: %w", method, err)
	}
	return s.send(data)
}

func (s *Session) send(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrDisconnected
	}
	if err := s.transport.Send(data); err != nil {
		return ErrDisconnected
	}
	return nil
}

// allocIDLocked hands out increasing ids, skipping any still pending after
// the counter wraps.
func (s *Session) allocIDLocked() uint32 {
	for {
		s.nextID++
		if _, busy := s.pending[s.nextID]; !busy {
			return s.nextID
		}
	}
}

func (s *Session) pump() {
	defer s.closeSubscriptions()

	dec := protocol.NewDecoder()
	var cause error
read:
	for chunk := range s.transport.Incoming() {
		dec.Feed(chunk)
		for {
			msg, err := dec.Next()
			if errors.Is(err, protocol.ErrNeedMoreData) {
				break
			}
			if err != nil {
				cause = err
				break read
			}
			if !s.dispatch(msg) {
				return
			}
		}
	}
	if cause == nil {
		cause = s.transport.Err()
	}
	if cause != nil {
		log.Printf("rpc session ended: %v", cause)
	}
	s.shutdown(cause)
	if errors.Is(cause, protocol.ErrMalformed) {
		_ = s.transport.Close()
	}
}

// dispatch routes one inbound message. It returns false once the session
// has been closed underneath it.
func (s *Session) dispatch(msg protocol.Message) bool {
	switch msg.Type {
	case protocol.MsgResponse:
		s.mu.Lock()
		slot, ok := s.pending[msg.ID]
		delete(s.pending, msg.ID)
		s.mu.Unlock()
		if !ok {
			log.Printf("rpc: dropping response for unknown request %d", msg.ID)
			return true
		}
		res := callResult{result: msg.Result}
		if remote := protocol.DecodeRemoteError(msg.Error); remote != nil {
			res = callResult{err: remote}
		}
		slot <- res
	case protocol.MsgNotification:
		s.mu.Lock()
		tap := s.tap
		subs := s.subs[msg.Method]
		s.mu.Unlock()
		if tap != nil {
			tap(msg.Method, msg.Params)
		}
		if len(subs) == 0 {
			log.Printf("rpc: no subscriber for notification %q", msg.Method)
			return true
		}
		for _, ch := range subs {
			select {
			case ch <- msg.Params:
			case <-s.done:
				return false
			}
		}
	case protocol.MsgRequest:
		log.Printf("rpc: rejecting request %q from editor", msg.Method)
		data, err := protocol.Encode(protocol.NewResponse(msg.ID,
			[]interface{}{int64(0), "method not found: " + msg.Method}, nil))
		if err == nil {
			_ = s.send(data)
		}
	}
	return true
}

// shutdown marks the session closed and fails every pending call. Only the
// first cause is kept.
func (s *Session) shutdown(cause error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.err = cause
	pending := s.pending
	s.pending = make(map[uint32]chan callResult)
	close(s.done)
	started := s.started
	s.mu.Unlock()

	for _, slot := range pending {
		slot <- callResult{err: ErrDisconnected}
	}
	if !started {
		s.closeSubscriptions()
	}
}

func (s *Session) closeSubscriptions() {
	s.mu.Lock()
	subs := s.subs
	s.subs = make(map[string][]chan []interface{})
	s.mu.Unlock()
	for _, list := range subs {
		for _, ch := range list {
			close(ch)
		}
	}
}
