package testutil

import (
	"errors"
	"io"
	"net"
	"testing"
	"time"
)

func TestMemConnRoundTrip(t *testing.T) {
	left, right := NewMemPipe(4)
	defer left.Close()
	defer right.Close()

	payload := []byte("hello")
	if _, err := left.Write(payload); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	buf := make([]byte, 8)
	n, err := right.Read(buf)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if string(buf[:n]) != "hello" {
		t.Fatalf("unexpected read %q", buf[:n])
	}

	if err := left.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if _, err := right.Read(buf); !errors.Is(err, io.EOF) {
		t.Fatalf("expected EOF after close, got %v", err)
	}
}

func TestMemConnShortReadKeepsRemainder(t *testing.T) {
	left, right := NewMemPipe(4)
	defer left.Close()
	defer right.Close()

	if _, err := left.Write([]byte("abcdef")); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	var got []byte
	buf := make([]byte, 4)
	for len(got) < 6 {
		n, err := right.Read(buf)
		if err != nil {
			t.Fatalf("read failed: %v", err)
		}
		got = append(got, buf[:n]...)
	}
	if string(got) != "abcdef" {
		t.Fatalf("unexpected data %q", got)
	}
}

func TestMemConnDrainsBeforeEOF(t *testing.T) {
	left, right := NewMemPipe(4)
	defer right.Close()

	if _, err := left.Write([]byte("last")); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	left.Close()

	buf := make([]byte, 8)
	n, err := right.Read(buf)
	if err != nil || string(buf[:n]) != "last" {
		t.Fatalf("expected buffered data before EOF, got %q, %v", buf[:n], err)
	}
	if _, err := right.Read(buf); !errors.Is(err, io.EOF) {
		t.Fatalf("expected EOF, got %v", err)
	}
	if _, err := right.Write([]byte("x")); !errors.Is(err, io.ErrClosedPipe) {
		t.Fatalf("expected closed pipe on write, got %v", err)
	}
}

func TestMemConnLocalCloseUnblocksRead(t *testing.T) {
	left, right := NewMemPipe(1)
	defer right.Close()

	errCh := make(chan error, 1)
	go func() {
		_, err := left.Read(make([]byte, 1))
		errCh <- err
	}()
	time.Sleep(10 * time.Millisecond)
	left.Close()
	select {
	case err := <-errCh:
		if !errors.Is(err, net.ErrClosed) {
			t.Fatalf("expected net.ErrClosed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("read did not unblock on close")
	}
}

func TestMemConnDeadline(t *testing.T) {
	left, right := NewMemPipe(1)
	defer left.Close()
	defer right.Close()

	if err := right.SetReadDeadline(time.Now().Add(10 * time.Millisecond)); err != nil {
		t.Fatalf("set deadline: %v", err)
	}
	buf := make([]byte, 1)
	if _, err := right.Read(buf); !errors.Is(err, ErrDeadline) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}

func TestDummyAddrImplementsNetAddr(t *testing.T) {
	left, right := NewMemPipe(1)
	defer left.Close()
	defer right.Close()

	if _, ok := interface{}(left.LocalAddr()).(net.Addr); !ok {
		t.Fatalf("LocalAddr does not implement net.Addr")
	}
	if left.LocalAddr().Network() != "mem" {
		t.Fatalf("unexpected network: %s", left.LocalAddr().Network())
	}
}
