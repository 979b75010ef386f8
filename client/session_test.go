// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: client/session_test.go
// Summary: Exercises request correlation, notification order and disconnect handling.
// Usage: Executed during `go test` to guard against regressions.

package client

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/framegrace/texelnvim/internal/testutil"
	"github.com/framegrace/texelnvim/protocol"
)

type callOutcome struct {
	result interface{}
	err    error
}

func startSession(t *testing.T) (*Session, *testutil.FakeEditor, *testutil.MemConn) {
	t.Helper()
	fe, conn := testutil.NewFakeEditor(t)
	s := NewSession(NewStreamTransport(conn))
	t.Cleanup(func() { s.Close() })
	return s, fe, conn
}

func goCall(s *Session, ctx context.Context, method string, args ...interface{}) <-chan callOutcome {
	out := make(chan callOutcome, 1)
	go func() {
		res, err := s.Call(ctx, method, args...)
		out <- callOutcome{res, err}
	}()
	return out
}

func waitOutcome(t *testing.T, ch <-chan callOutcome) callOutcome {
	t.Helper()
	select {
	case o := <-ch:
		return o
	case <-time.After(testutil.DefaultTimeout):
		t.Fatalf("call did not complete")
	}
	return callOutcome{}
}

func TestSessionCallCorrelation(t *testing.T) {
	s, fe, _ := startSession(t)
	s.Start()
	ctx := context.Background()

	a := goCall(s, ctx, "nvim_eval", "a")
	reqA := fe.Expect("nvim_eval")
	b := goCall(s, ctx, "nvim_eval", "b")
	reqB := fe.Expect("nvim_eval")
	if reqA.ID == reqB.ID {
		t.Fatalf("concurrent calls share id %d", reqA.ID)
	}
	if reqB.ID <= reqA.ID {
		t.Fatalf("ids not increasing: %d then %d", reqA.ID, reqB.ID)
	}

	fe.Respond(reqB.ID, nil, "result-b")
	fe.Respond(reqA.ID, nil, "result-a")

	if got := waitOutcome(t, a); got.err != nil || got.result != "result-a" {
		t.Fatalf("call A resolved to %#v", got)
	}
	if got := waitOutcome(t, b); got.err != nil || got.result != "result-b" {
		t.Fatalf("call B resolved to %#v", got)
	}
}

func TestSessionRemoteError(t *testing.T) {
	s, fe, _ := startSession(t)
	s.Start()

	out := goCall(s, context.Background(), "nvim_ui_try_resize", int64(0), int64(0))
	req := fe.Expect("nvim_ui_try_resize")
	fe.Respond(req.ID, []interface{}{int64(1), "Invalid resize"}, nil)

	got := waitOutcome(t, out)
	var remote *protocol.RemoteError
	if !errors.As(got.err, &remote) || remote.Message != "Invalid resize" || remote.Type != 1 {
		t.Fatalf("expected remote error, got %#v", got.err)
	}
	if !s.Alive() {
		t.Fatalf("remote error must not end the session")
	}
}

func TestSessionDisconnectFailsPendingCalls(t *testing.T) {
	s, fe, conn := startSession(t)
	s.Start()
	ctx := context.Background()

	a := goCall(s, ctx, "nvim_get_option_value", "columns")
	fe.Expect("nvim_get_option_value")
	b := goCall(s, ctx, "nvim_get_option_value", "lines")
	fe.Expect("nvim_get_option_value")

	fe.Close()

	for name, ch := range map[string]<-chan callOutcome{"A": a, "B": b} {
		if got := waitOutcome(t, ch); !errors.Is(got.err, ErrDisconnected) {
			t.Fatalf("call %s: expected ErrDisconnected, got %v", name, got.err)
		}
	}
	select {
	case <-s.Done():
	case <-time.After(testutil.DefaultTimeout):
		t.Fatalf("session did not end")
	}

	writes := conn.Writes()
	if err := s.Notify("nvim_input", "x"); !errors.Is(err, ErrDisconnected) {
		t.Fatalf("notify after disconnect: %v", err)
	}
	if _, err := s.Call(ctx, "nvim_eval", "1"); !errors.Is(err, ErrDisconnected) {
		t.Fatalf("call after disconnect: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if conn.Writes() != writes {
		t.Fatalf("bytes were sent after disconnect")
	}
	if s.Err() != nil {
		t.Fatalf("clean peer close should leave no error, got %v", s.Err())
	}
}

func TestSessionCancelledCallDiscardsLateResponse(t *testing.T) {
	s, fe, _ := startSession(t)
	s.Start()

	ctx, cancel := context.WithCancel(context.Background())
	out := goCall(s, ctx, "nvim_command", "sleep 1")
	req := fe.Expect("nvim_command")
	cancel()
	if got := waitOutcome(t, out); !errors.Is(got.err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", got.err)
	}

	fe.Respond(req.ID, nil, nil)

	next := goCall(s, context.Background(), "nvim_eval", "2")
	req2 := fe.Expect("nvim_eval")
	if req2.ID == req.ID {
		t.Fatalf("id %d reused", req.ID)
	}
	fe.Respond(req2.ID, nil, int64(2))
	if got := waitOutcome(t, next); got.err != nil || got.result != int64(2) {
		t.Fatalf("follow-up call resolved to %#v", got)
	}
	s.mu.Lock()
	pending := len(s.pending)
	s.mu.Unlock()
	if pending != 0 {
		t.Fatalf("expected no pending calls, have %d", pending)
	}
}

func TestSessionNotificationOrder(t *testing.T) {
	s, fe, _ := startSession(t)
	sub := s.Subscribe("redraw")
	other := s.Subscribe("nvim_buf_lines_event")
	s.Start()

	for i := 0; i < 100; i++ {
		fe.Notify("redraw", int64(i))
	}
	fe.Notify("nvim_buf_lines_event", "x")
	for i := 0; i < 100; i++ {
		select {
		case params := <-sub:
			if n, _ := protocol.ToInt(params[0]); n != i {
				t.Fatalf("notification %d arrived as %d", i, n)
			}
		case <-time.After(testutil.DefaultTimeout):
			t.Fatalf("notification %d missing", i)
		}
	}
	select {
	case params := <-other:
		if params[0] != "x" {
			t.Fatalf("unexpected params %#v", params)
		}
	case <-time.After(testutil.DefaultTimeout):
		t.Fatalf("second subscription starved")
	}
}

func TestSessionTapSeesNotifications(t *testing.T) {
	s, fe, _ := startSession(t)
	seen := make(chan string, 4)
	s.SetTap(func(method string, params []interface{}) { seen <- method })
	s.Start()

	fe.Notify("unsubscribed_event")
	select {
	case m := <-seen:
		if m != "unsubscribed_event" {
			t.Fatalf("tap saw %q", m)
		}
	case <-time.After(testutil.DefaultTimeout):
		t.Fatalf("tap not called")
	}
}

func TestSessionRejectsPeerRequests(t *testing.T) {
	s, fe, _ := startSession(t)
	s.Start()

	fe.Request(42, "client_callback", "arg")
	msg, ok := fe.Next(testutil.DefaultTimeout)
	if !ok {
		t.Fatalf("no reply to peer request")
	}
	if msg.Type != protocol.MsgResponse || msg.ID != 42 {
		t.Fatalf("unexpected reply %#v", msg)
	}
	remote := protocol.DecodeRemoteError(msg.Error)
	if remote == nil || remote.Message != "method not found: client_callback" {
		t.Fatalf("unexpected error payload %#v", msg.Error)
	}
	if !s.Alive() {
		t.Fatalf("peer request must not end the session")
	}
}

func TestSessionUnmatchedResponseIsIgnored(t *testing.T) {
	s, fe, _ := startSession(t)
	s.Start()

	fe.Respond(999, nil, "stray")
	out := goCall(s, context.Background(), "nvim_eval", "1")
	req := fe.Expect("nvim_eval")
	fe.Respond(req.ID, nil, int64(1))
	if got := waitOutcome(t, out); got.err != nil {
		t.Fatalf("call after stray response failed: %v", got.err)
	}
}

func TestSessionMalformedIsFatal(t *testing.T) {
	s, fe, _ := startSession(t)
	sub := s.Subscribe("redraw")
	s.Start()

	pending := goCall(s, context.Background(), "nvim_eval", "1")
	fe.Expect("nvim_eval")
	fe.WriteRaw([]byte{0x93, 0x07, 0x01, 0x02})

	if got := waitOutcome(t, pending); !errors.Is(got.err, ErrDisconnected) {
		t.Fatalf("expected ErrDisconnected, got %v", got.err)
	}
	<-s.Done()
	if !errors.Is(s.Err(), protocol.ErrMalformed) {
		t.Fatalf("expected ErrMalformed cause, got %v", s.Err())
	}
	if _, ok := <-sub; ok {
		t.Fatalf("subscription should be closed")
	}
}
