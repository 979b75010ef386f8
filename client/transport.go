// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: client/transport.go
// Summary: Byte-stream transports to the editor process.
// Usage: DialSocket for a --listen address, NewStdioTransport for an
// embedded child, NewStreamTransport for anything else (tests use pipes).
// Notes: Send only enqueues; a writer goroutine preserves call order.

package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"
)

const readChunkSize = 32 * 1024

// stdioExitGrace is how long Close waits for an embedded editor to exit
// on its own before killing it.
var stdioExitGrace = 3 * time.Second

// ErrTransportClosed is returned by Send after the transport has shut down.
var ErrTransportClosed = errors.New("client: transport closed")

// Transport is the bidirectional byte stream to the editor.
type Transport interface {
	// Send enqueues bytes for delivery without blocking on the peer.
	Send(data []byte) error
	// Incoming yields raw chunks until the peer closes or I/O fails.
	Incoming() <-chan []byte
	// Err reports why Incoming was closed; nil for a clean EOF.
	Err() error
	Close() error
}

type streamTransport struct {
	rwc      io.ReadWriteCloser
	incoming chan []byte

	mu      sync.Mutex
	queue   [][]byte
	closed  bool
	err     error
	wake     chan struct{}
	done     chan struct{}
	readDone chan struct{}
	onClose  func(readDone <-chan struct{}) error

	closeOnce sync.Once
	closeErr  error
}

// NewStreamTransport wraps an already connected stream.
func NewStreamTransport(rwc io.ReadWriteCloser) Transport {
	return newStreamTransport(rwc, nil)
}

func newStreamTransport(rwc io.ReadWriteCloser, onClose func(readDone <-chan struct{}) error) *streamTransport {
	t := &streamTransport{
		rwc:      rwc,
		incoming: make(chan []byte, 64),
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
		readDone: make(chan struct{}),
		onClose:  onClose,
	}
	go t.readLoop()
	go t.writeLoop()
	return t
}

// DialSocket connects to an editor started with --listen. Addresses that
// look like host:port use TCP, everything else is a unix socket path.
func DialSocket(ctx context.Context, addr string) (Transport, error) {
	network := "unix"
	if _, _, err := net.SplitHostPort(addr); err == nil && !strings.Contains(addr, "/") {
		network = "tcp"
	}
	var d net.Dialer
	conn, err := d.DialContext(ctx, network, addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s %s: %w", network, addr, err)
	}
	return NewStreamTransport(conn), nil
}

type stdioPipe struct {
	io.Reader
	io.WriteCloser
}

// NewStdioTransport starts cmd and speaks to it over its stdin/stdout. The
// command must not already have Stdin or Stdout set.
func NewStdioTransport(cmd *exec.Cmd) (Transport, error) {
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("creating stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("creating stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting %q: %w", cmd.Path, err)
	}
	pipe := stdioPipe{Reader: stdout, WriteCloser: stdin}
	return newStreamTransport(pipe, func(readDone <-chan struct{}) error {
		// Closing stdin asks the editor to exit; its stdout must be read to
		// EOF before Wait may run.
		select {
		case <-readDone:
		case <-time.After(stdioExitGrace):
			log.Printf("editor still running %v after stdin closed; killing it", stdioExitGrace)
			_ = cmd.Process.Kill()
			<-readDone
		}
		err := cmd.Wait()
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			log.Printf("editor exited: %v", exitErr)
			return nil
		}
		return err
	}), nil
}

func (t *streamTransport) Send(data []byte) error {
	t.mu.Lock()
	if t.closed {
		err := t.err
		t.mu.Unlock()
		if err == nil {
			err = ErrTransportClosed
		}
		return err
	}
	t.queue = append(t.queue, data)
	t.mu.Unlock()
	select {
	case t.wake <- struct{}{}:
	default:
	}
	return nil
}

func (t *streamTransport) Incoming() <-chan []byte {
	return t.incoming
}

func (t *streamTransport) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

func (t *streamTransport) Close() error {
	t.closeOnce.Do(func() {
		t.fail(nil)
		t.closeErr = t.rwc.Close()
		if t.onClose != nil {
			if err := t.onClose(t.readDone); err != nil && t.closeErr == nil {
				t.closeErr = err
			}
		}
	})
	return t.closeErr
}

// fail marks the transport closed, keeping the first recorded cause.
func (t *streamTransport) fail(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.closed = true
	t.err = err
	t.queue = nil
	close(t.done)
}

// readLoop runs until the stream reports EOF or an error. Data read after
// the transport closed is discarded so the peer never blocks on a full pipe.
func (t *streamTransport) readLoop() {
	defer close(t.readDone)
	defer close(t.incoming)
	buf := make([]byte, readChunkSize)
	for {
		n, err := t.rwc.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case <-t.done:
			default:
				select {
				case t.incoming <- chunk:
				case <-t.done:
				}
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) || isNetworkClosed(err) {
				t.fail(nil)
			} else {
				t.fail(fmt.Errorf("read: %w", err))
			}
			return
		}
	}
}

func (t *streamTransport) writeLoop() {
	for {
		select {
		case <-t.done:
			return
		case <-t.wake:
		}
		for {
			t.mu.Lock()
			if t.closed || len(t.queue) == 0 {
				t.mu.Unlock()
				break
			}
			next := t.queue[0]
			t.queue[0] = nil
			t.queue = t.queue[1:]
			t.mu.Unlock()
			if _, err := t.rwc.Write(next); err != nil {
				t.fail(fmt.Errorf("write: %w", err))
				_ = t.rwc.Close()
				return
			}
		}
	}
}

// isNetworkClosed reports errors caused by our own Close rather than the peer.
func isNetworkClosed(err error) bool {
	return errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) || errors.Is(err, os.ErrClosed)
}
