// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: protocol/frame.go
// Summary: Incremental msgpack framing used by Decoder.
// Usage: Decoder.Next walks element headers as bytes arrive and only decodes
// a message once its last byte is buffered.

package protocol

import "encoding/binary"

// frameScanner finds the end of the first msgpack value in a buffer. It
// remembers how far it got, so every byte is visited once no matter how the
// stream is chunked.
type frameScanner struct {
	pos     int
	pending []int
}

func (s *frameScanner) reset() {
	s.pos = 0
	s.pending = s.pending[:0]
}

// scan advances over buf and returns the length of the first complete
// value, or 0 when more bytes are needed.
func (s *frameScanner) scan(buf []byte) (int, error) {
	if len(s.pending) == 0 && s.pos == 0 {
		s.pending = append(s.pending, 1)
	}
	for len(s.pending) > 0 {
		size, children, ok, err := elementHeader(buf[s.pos:])
		if err != nil {
			return 0, err
		}
		if !ok {
			return 0, nil
		}
		s.pos += size
		s.pending[len(s.pending)-1]--
		if children > 0 {
			s.pending = append(s.pending, children)
		}
		for len(s.pending) > 0 && s.pending[len(s.pending)-1] == 0 {
			s.pending = s.pending[:len(s.pending)-1]
		}
	}
	return s.pos, nil
}

// elementHeader returns the bytes taken by the element at the start of b,
// excluding nested elements, and how many nested elements follow. ok is
// false when b ends before the element does.
func elementHeader(b []byte) (size, children int, ok bool, err error) {
	if len(b) == 0 {
		return 0, 0, false, nil
	}
	c := b[0]
	switch {
	case c <= 0x7f || c >= 0xe0:
		return fixed(b, 1)
	case c <= 0x8f:
		return 1, 2 * int(c&0x0f), true, nil
	case c <= 0x9f:
		return 1, int(c & 0x0f), true, nil
	case c <= 0xbf:
		return fixed(b, 1+int(c&0x1f))
	}
	switch c {
	case 0xc0, 0xc2, 0xc3:
		return fixed(b, 1)
	case 0xc4, 0xd9:
		return sized(b, 1, 0)
	case 0xc5, 0xda:
		return sized(b, 2, 0)
	case 0xc6, 0xdb:
		return sized(b, 4, 0)
	case 0xc7:
		return sized(b, 1, 1)
	case 0xc8:
		return sized(b, 2, 1)
	case 0xc9:
		return sized(b, 4, 1)
	case 0xca:
		return fixed(b, 5)
	case 0xcb:
		return fixed(b, 9)
	case 0xcc, 0xd0:
		return fixed(b, 2)
	case 0xcd, 0xd1:
		return fixed(b, 3)
	case 0xce, 0xd2:
		return fixed(b, 5)
	case 0xcf, 0xd3:
		return fixed(b, 9)
	case 0xd4:
		return fixed(b, 3)
	case 0xd5:
		return fixed(b, 4)
	case 0xd6:
		return fixed(b, 6)
	case 0xd7:
		return fixed(b, 10)
	case 0xd8:
		return fixed(b, 18)
	case 0xdc, 0xde:
		n, ok := length(b, 2)
		if !ok {
			return 0, 0, false, nil
		}
		if c == 0xde {
			n *= 2
		}
		return 3, n, true, nil
	case 0xdd, 0xdf:
		n, ok := length(b, 4)
		if !ok {
			return 0, 0, false, nil
		}
		if c == 0xdf {
			n *= 2
		}
		return 5, n, true, nil
	}
	return 0, 0, false, Malformedf("invalid msgpack code 0x%02x", c)
}

func fixed(b []byte, n int) (int, int, bool, error) {
	if len(b) < n {
		return 0, 0, false, nil
	}
	return n, 0, true, nil
}

// sized handles str, bin and ext: a width-byte length, extra type bytes,
// then the payload.
func sized(b []byte, width, extra int) (int, int, bool, error) {
	n, ok := length(b, width)
	if !ok {
		return 0, 0, false, nil
	}
	return fixed(b, 1+width+extra+n)
}

func length(b []byte, width int) (int, bool) {
	if len(b) < 1+width {
		return 0, false
	}
	switch width {
	case 1:
		return int(b[1]), true
	case 2:
		return int(binary.BigEndian.Uint16(b[1:])), true
	default:
		return int(binary.BigEndian.Uint32(b[1:])), true
	}
}
