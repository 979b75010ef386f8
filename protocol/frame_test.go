// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package protocol

import (
	"errors"
	"strings"
	"testing"

	"github.com/vmihailenco/msgpack/v5"
)

func TestFrameScannerFindsValueEnd(t *testing.T) {
	win := Window(1000)
	tests := []struct {
		name  string
		value interface{}
	}{
		{name: "nil", value: nil},
		{name: "bool", value: true},
		{name: "negative fixint", value: int8(-3)},
		{name: "int16", value: int16(-3000)},
		{name: "uint64", value: uint64(1 << 40)},
		{name: "float32", value: float32(1.5)},
		{name: "float64", value: 2.25},
		{name: "str8", value: strings.Repeat("a", 40)},
		{name: "str16", value: strings.Repeat("b", 300)},
		{name: "bin", value: []byte{1, 2, 3}},
		{name: "ext", value: &win},
		{name: "array16", value: make([]interface{}, 20)},
		{name: "map16", value: func() map[string]int {
			m := map[string]int{}
			for _, k := range strings.Split("abcdefghijklmnopq", "") {
				m[k] = len(k)
			}
			return m
		}()},
		{name: "nested", value: []interface{}{"grid_line", []interface{}{int64(1), []interface{}{[]interface{}{"x", int64(2)}}, map[string]interface{}{"k": []interface{}{}}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := msgpack.Marshal(tt.value)
			if err != nil {
				t.Fatalf("marshal failed: %v", err)
			}
			trailing := append(append([]byte{}, data...), 0xc0)
			for cut := 1; cut < len(data); cut++ {
				var s frameScanner
				if n, err := s.scan(data[:cut]); n != 0 || err != nil {
					t.Fatalf("prefix %d/%d: scan = %d, %v", cut, len(data), n, err)
				}
			}
			var s frameScanner
			if n, err := s.scan(trailing); n != len(data) || err != nil {
				t.Fatalf("scan = %d, %v, want %d", n, err, len(data))
			}
		})
	}
}

func TestFrameScannerRejectsReservedCode(t *testing.T) {
	var s frameScanner
	if _, err := s.scan([]byte{0x92, 0xc1, 0x01}); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
	dec := NewDecoder()
	dec.Feed([]byte{0xc1})
	if _, err := dec.Next(); !errors.Is(err, ErrMalformed) {
		t.Fatalf("decoder accepted 0xc1: %v", err)
	}
	if dec.Buffered() != 0 {
		t.Fatalf("malformed bytes kept: %d", dec.Buffered())
	}
}

func TestDecoderScansLargeMessageOnce(t *testing.T) {
	cells := make([]interface{}, 5000)
	for i := range cells {
		cells[i] = []interface{}{"x", int64(i % 7)}
	}
	msg := NewNotification(RedrawMethod, []interface{}{"grid_line", []interface{}{int64(1), int64(0), int64(0), cells, false}})
	data, err := Encode(msg)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	dec := NewDecoder()
	last := 0
	for i := 0; i < len(data)-1; i += 64 {
		end := i + 64
		if end > len(data)-1 {
			end = len(data) - 1
		}
		dec.Feed(data[i:end])
		if _, err := dec.Next(); !errors.Is(err, ErrNeedMoreData) {
			t.Fatalf("offset %d: expected ErrNeedMoreData, got %v", end, err)
		}
		if dec.scan.pos < last || dec.scan.pos > dec.Buffered() {
			t.Fatalf("offset %d: scan position %d went back from %d", end, dec.scan.pos, last)
		}
		last = dec.scan.pos
	}
	if last < len(data)/2 {
		t.Fatalf("scanner stalled at %d of %d bytes", last, len(data))
	}

	dec.Feed(data[len(data)-1:])
	got, err := dec.Next()
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if got.Method != RedrawMethod || dec.Buffered() != 0 {
		t.Fatalf("unexpected message %q with %d bytes left", got.Method, dec.Buffered())
	}
}
