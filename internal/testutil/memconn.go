// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: internal/testutil/memconn.go
// Summary: In-memory duplex connection for transport and session tests.
// Usage: NewMemPipe returns two connected endpoints.
// Notes: Not shipped with production binaries; only used in test code.

package testutil

import (
	"errors"
	"io"
	"net"
	"sync"
	"time"
)

// ErrDeadline is returned by Read and Write once a deadline has passed.
var ErrDeadline = errors.New("memconn: deadline reached")

// MemConn implements net.Conn using in-memory channels, allowing predictable
// behaviour without relying on OS sockets. Closing either end makes reads
// on the other end return io.EOF once buffered data has been drained.
type MemConn struct {
	readCh  <-chan []byte
	writeCh chan []byte
	pending []byte

	mu       sync.Mutex
	closed   bool
	deadline time.Time

	localDone chan struct{}
	peerDone  <-chan struct{}
	writes    int
}

// NewMemPipe returns two endpoints backed by mirrored channels.
func NewMemPipe(buffer int) (*MemConn, *MemConn) {
	if buffer <= 0 {
		buffer = 16
	}
	leftChan := make(chan []byte, buffer)
	rightChan := make(chan []byte, buffer)
	leftDone := make(chan struct{})
	rightDone := make(chan struct{})
	left := &MemConn{readCh: rightChan, writeCh: leftChan, localDone: leftDone, peerDone: rightDone}
	right := &MemConn{readCh: leftChan, writeCh: rightChan, localDone: rightDone, peerDone: leftDone}
	return left, right
}

func (m *MemConn) Read(b []byte) (int, error) {
	m.mu.Lock()
	if len(m.pending) > 0 {
		n := copy(b, m.pending)
		m.pending = m.pending[n:]
		m.mu.Unlock()
		return n, nil
	}
	closed := m.closed
	deadline := m.deadline
	m.mu.Unlock()
	if closed {
		return 0, net.ErrClosed
	}

	var timer <-chan time.Time
	if !deadline.IsZero() {
		timer = time.After(time.Until(deadline))
	}

	select {
	case data, ok := <-m.readCh:
		if !ok {
			return 0, io.EOF
		}
		return m.deliver(b, data), nil
	case <-m.localDone:
		return 0, net.ErrClosed
	case <-m.peerDone:
		// Drain what the peer wrote before it closed.
		select {
		case data, ok := <-m.readCh:
			if ok {
				return m.deliver(b, data), nil
			}
		default:
		}
		return 0, io.EOF
	case <-timer:
		return 0, ErrDeadline
	}
}

func (m *MemConn) deliver(b, data []byte) int {
	n := copy(b, data)
	if n < len(data) {
		m.mu.Lock()
		m.pending = append(m.pending, data[n:]...)
		m.mu.Unlock()
	}
	return n
}

func (m *MemConn) Write(b []byte) (int, error) {
	m.mu.Lock()
	closed := m.closed
	deadline := m.deadline
	m.mu.Unlock()
	if closed {
		return 0, net.ErrClosed
	}

	payload := make([]byte, len(b))
	copy(payload, b)

	var timer <-chan time.Time
	if !deadline.IsZero() {
		timer = time.After(time.Until(deadline))
	}

	select {
	case <-m.peerDone:
		return 0, io.ErrClosedPipe
	default:
	}
	select {
	case m.writeCh <- payload:
		m.mu.Lock()
		m.writes++
		m.mu.Unlock()
		return len(b), nil
	case <-m.peerDone:
		return 0, io.ErrClosedPipe
	case <-m.localDone:
		return 0, net.ErrClosed
	case <-timer:
		return 0, ErrDeadline
	}
}

// Writes counts the successful Write calls on this end.
func (m *MemConn) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

func (m *MemConn) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	close(m.localDone)
	return nil
}

func (m *MemConn) LocalAddr() net.Addr  { return dummyAddr("mem") }
func (m *MemConn) RemoteAddr() net.Addr { return dummyAddr("mem") }

func (m *MemConn) SetDeadline(t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deadline = t
	return nil
}

func (m *MemConn) SetReadDeadline(t time.Time) error  { return m.SetDeadline(t) }
func (m *MemConn) SetWriteDeadline(t time.Time) error { return m.SetDeadline(t) }

// dummyAddr implements net.Addr for in-memory connections.
type dummyAddr string

func (d dummyAddr) Network() string { return string(d) }
func (d dummyAddr) String() string  { return string(d) }
