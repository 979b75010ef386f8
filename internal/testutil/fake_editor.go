// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: internal/testutil/fake_editor.go
// Summary: Scripted editor peer speaking msgpack-rpc over a MemConn.
// Usage: Tests hand the client end to client.NewStreamTransport and drive
// the editor end with Expect, Respond, Notify and Redraw.
// Notes: Wraps connection handling and provides convenient assertion methods.

package testutil

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/framegrace/texelnvim/protocol"
)

// DefaultTimeout bounds every wait in the fake editor.
const DefaultTimeout = 2 * time.Second

// FakeEditor plays the editor side of a connection.
type FakeEditor struct {
	t    testing.TB
	conn *MemConn

	inbound chan protocol.Message
	errors  chan error

	mu       sync.Mutex
	received []protocol.Message

	writeMu  sync.Mutex
	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewFakeEditor returns a fake editor and the client end of its pipe.
func NewFakeEditor(t testing.TB) (*FakeEditor, *MemConn) {
	t.Helper()
	editorEnd, clientEnd := NewMemPipe(64)
	fe := &FakeEditor{
		t:       t,
		conn:    editorEnd,
		inbound: make(chan protocol.Message, 256),
		errors:  make(chan error, 1),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
	go fe.readLoop()
	t.Cleanup(func() { fe.Close() })
	return fe, clientEnd
}

func (fe *FakeEditor) readLoop() {
	defer close(fe.doneCh)
	dec := protocol.NewDecoder()
	buf := make([]byte, 4096)
	for {
		n, err := fe.conn.Read(buf)
		if n > 0 {
			dec.Feed(buf[:n])
			for {
				msg, derr := dec.Next()
				if errors.Is(derr, protocol.ErrNeedMoreData) {
					break
				}
				if derr != nil {
					fe.errors <- derr
					return
				}
				fe.mu.Lock()
				fe.received = append(fe.received, msg)
				fe.mu.Unlock()
				select {
				case fe.inbound <- msg:
				case <-fe.stopCh:
					return
				}
			}
		}
		if err != nil {
			return
		}
	}
}

// Next waits for the next message from the client.
func (fe *FakeEditor) Next(timeout time.Duration) (protocol.Message, bool) {
	select {
	case msg := <-fe.inbound:
		return msg, true
	case err := <-fe.errors:
		fe.t.Errorf("fake editor decode failed: %v", err)
	case <-time.After(timeout):
	}
	return protocol.Message{}, false
}

// Expect waits for a message calling method, failing the test otherwise.
// Messages for other methods are skipped.
func (fe *FakeEditor) Expect(method string) protocol.Message {
	fe.t.Helper()
	deadline := time.Now().Add(DefaultTimeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			fe.t.Fatalf("timeout waiting for %s", method)
		}
		msg, ok := fe.Next(remaining)
		if !ok {
			fe.t.Fatalf("timeout waiting for %s", method)
		}
		if msg.Method == method {
			return msg
		}
	}
}

// ExpectNone asserts the client sends nothing within d.
func (fe *FakeEditor) ExpectNone(d time.Duration) {
	fe.t.Helper()
	if msg, ok := fe.Next(d); ok {
		fe.t.Fatalf("expected no message, got %s %q", msg.Type, msg.Method)
	}
}

// Received returns every message decoded so far.
func (fe *FakeEditor) Received() []protocol.Message {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return append([]protocol.Message(nil), fe.received...)
}

// Respond answers request id. A non-nil errValue is sent as the editor's
// [type, message] error pair.
func (fe *FakeEditor) Respond(id uint32, errValue, result interface{}) {
	fe.t.Helper()
	fe.send(protocol.NewResponse(id, errValue, result))
}

// Notify sends a notification to the client.
func (fe *FakeEditor) Notify(method string, params ...interface{}) {
	fe.t.Helper()
	fe.send(protocol.NewNotification(method, params...))
}

// Request sends a request to the client.
func (fe *FakeEditor) Request(id uint32, method string, params ...interface{}) {
	fe.t.Helper()
	fe.send(protocol.NewRequest(id, method, params...))
}

// Redraw sends one redraw batch. Each entry is [name, args...].
func (fe *FakeEditor) Redraw(entries ...[]interface{}) {
	fe.t.Helper()
	params := make([]interface{}, len(entries))
	for i, e := range entries {
		params[i] = e
	}
	fe.Notify(protocol.RedrawMethod, params...)
}

// WriteRaw writes bytes to the client unchanged.
func (fe *FakeEditor) WriteRaw(data []byte) {
	fe.t.Helper()
	fe.writeMu.Lock()
	defer fe.writeMu.Unlock()
	if _, err := fe.conn.Write(data); err != nil {
		fe.t.Fatalf("fake editor write: %v", err)
	}
}

func (fe *FakeEditor) send(msg protocol.Message) {
	fe.t.Helper()
	data, err := protocol.Encode(msg)
	if err != nil {
		fe.t.Fatalf("fake editor encode: %v", err)
	}
	fe.WriteRaw(data)
}

// APIInfo is the nvim_get_api_info result the fake editor reports.
func APIInfo(uiOptions ...string) []interface{} {
	opts := make([]interface{}, len(uiOptions))
	for i, o := range uiOptions {
		opts[i] = o
	}
	return []interface{}{int64(1), map[string]interface{}{
		"version":    map[string]interface{}{"major": int64(0), "minor": int64(10), "patch": int64(2), "api_level": int64(12)},
		"ui_options": opts,
	}}
}

// ServeHandshake answers nvim_get_api_info and nvim_ui_attach, returning
// the attach request so tests can inspect size and options.
func (fe *FakeEditor) ServeHandshake(uiOptions ...string) protocol.Message {
	fe.t.Helper()
	if len(uiOptions) == 0 {
		uiOptions = []string{"rgb", "ext_linegrid", "ext_multigrid", "ext_cmdline"}
	}
	info := fe.Expect("nvim_get_api_info")
	fe.Respond(info.ID, nil, APIInfo(uiOptions...))
	attach := fe.Expect("nvim_ui_attach")
	fe.Respond(attach.ID, nil, nil)
	return attach
}

// Close ends the editor side of the connection.
func (fe *FakeEditor) Close() error {
	fe.stopOnce.Do(func() { close(fe.stopCh) })
	err := fe.conn.Close()
	<-fe.doneCh
	return err
}
