// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: protocol/protocol.go
// Summary: Msgpack-RPC message codec used to talk to the embedded editor.
// Usage: Encode outgoing messages; feed raw transport chunks to a Decoder.
// Notes: Decoding is resumable; the framing scan keeps its place across reads
// so a message split over many chunks is decoded exactly once.

package protocol

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

// MessageType is the integer discriminant carried in the first element of
// every msgpack-rpc array.
type MessageType uint8

const (
	MsgRequest MessageType = iota
	MsgResponse
	MsgNotification
)

func (t MessageType) String() string {
	switch t {
	case MsgRequest:
		return "request"
	case MsgResponse:
		return "response"
	case MsgNotification:
		return "notification"
	default:
		return fmt.Sprintf("MessageType(%d)", uint8(t))
	}
}

// Message is the tagged union of the three msgpack-rpc shapes:
//
//	[0, id, method, params]  request
//	[1, id, error, result]   response
//	[2, method, params]      notification
type Message struct {
	Type   MessageType
	ID     uint32
	Method string
	Params []interface{}
	Error  interface{}
	Result interface{}
}

var (
	// ErrNeedMoreData reports that the buffered bytes end in the middle of a
	// message. It is not a failure; feed more bytes and call Next again.
	ErrNeedMoreData = errors.New("protocol: need more data")
	// ErrMalformed marks structural violations. It is fatal to the connection.
	ErrMalformed = errors.New("protocol: malformed message")
)

// Malformedf wraps ErrMalformed with context.
func Malformedf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrMalformed, fmt.Sprintf(format, args...))
}

// NewRequest builds a request message.
func NewRequest(id uint32, method string, params ...interface{}) Message {
	return Message{Type: MsgRequest, ID: id, Method: method, Params: normaliseParams(params)}
}

// NewNotification builds a notification message.
func NewNotification(method string, params ...interface{}) Message {
	return Message{Type: MsgNotification, Method: method, Params: normaliseParams(params)}
}

// NewResponse builds a response. A nil errValue means success.
func NewResponse(id uint32, errValue, result interface{}) Message {
	return Message{Type: MsgResponse, ID: id, Error: errValue, Result: result}
}

func normaliseParams(params []interface{}) []interface{} {
	if params == nil {
		return []interface{}{}
	}
	return params
}

// Encode serialises the message into its msgpack array form.
func Encode(m Message) ([]byte, error) {
	var arr []interface{}
	switch m.Type {
	case MsgRequest:
		arr = []interface{}{uint8(MsgRequest), m.ID, m.Method, normaliseParams(m.Params)}
	case MsgResponse:
		arr = []interface{}{uint8(MsgResponse), m.ID, m.Error, m.Result}
	case MsgNotification:
		arr = []interface{}{uint8(MsgNotification), m.Method, normaliseParams(m.Params)}
	default:
		return nil, fmt.Errorf("protocol: cannot encode message type %d", m.Type)
	}
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.UseCompactInts(true)
	if err := enc.Encode(arr); err != nil {
		return nil, fmt.Errorf("protocol: encode %s: %w", m.Type, err)
	}
	return buf.Bytes(), nil
}

// Decoder reassembles messages from an arbitrary chunking of the byte stream.
// It is not safe for concurrent use; the inbound pump owns it.
type Decoder struct {
	buf  []byte
	scan frameScanner
}

// NewDecoder returns an empty decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Feed appends raw bytes read from the transport.
func (d *Decoder) Feed(chunk []byte) {
	d.buf = append(d.buf, chunk...)
}

// Buffered returns the number of bytes not yet consumed by a decoded message.
func (d *Decoder) Buffered() int {
	return len(d.buf)
}

// Next decodes the next complete message. It never blocks: when the buffer
// holds only part of a message it returns ErrNeedMoreData and keeps the bytes.
// A message is decoded once, after the framing scan has seen its last byte.
func (d *Decoder) Next() (Message, error) {
	if len(d.buf) == 0 {
		return Message{}, ErrNeedMoreData
	}
	n, err := d.scan.scan(d.buf)
	if err != nil {
		d.drop(len(d.buf))
		return Message{}, err
	}
	if n == 0 {
		return Message{}, ErrNeedMoreData
	}
	dec := msgpack.NewDecoder(bytes.NewReader(d.buf[:n]))
	dec.UseLooseInterfaceDecoding(true)
	raw, err := dec.DecodeInterfaceLoose()
	d.drop(n)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return Message{}, Malformedf("truncated value: %v", err)
		}
		return Message{}, Malformedf("%v", err)
	}
	return messageFromValue(raw)
}

func (d *Decoder) drop(n int) {
	d.buf = d.buf[n:]
	if len(d.buf) == 0 {
		d.buf = nil
	}
	d.scan.reset()
}

func messageFromValue(raw interface{}) (Message, error) {
	arr, ok := raw.([]interface{})
	if !ok {
		return Message{}, Malformedf("message is %T, want array", raw)
	}
	if len(arr) == 0 {
		return Message{}, Malformedf("empty message array")
	}
	kind, ok := ToInt(arr[0])
	if !ok {
		return Message{}, Malformedf("message discriminant is %T", arr[0])
	}
	switch MessageType(kind) {
	case MsgRequest:
		if len(arr) != 4 {
			return Message{}, Malformedf("request has %d fields, want 4", len(arr))
		}
		id, err := messageID(arr[1])
		if err != nil {
			return Message{}, err
		}
		method, ok := ToString(arr[2])
		if !ok {
			return Message{}, Malformedf("request method is %T", arr[2])
		}
		params, err := messageParams(arr[3])
		if err != nil {
			return Message{}, err
		}
		return Message{Type: MsgRequest, ID: id, Method: method, Params: params}, nil
	case MsgResponse:
		if len(arr) != 4 {
			return Message{}, Malformedf("response has %d fields, want 4", len(arr))
		}
		id, err := messageID(arr[1])
		if err != nil {
			return Message{}, err
		}
		return Message{Type: MsgResponse, ID: id, Error: arr[2], Result: arr[3]}, nil
	case MsgNotification:
		if len(arr) != 3 {
			return Message{}, Malformedf("notification has %d fields, want 3", len(arr))
		}
		method, ok := ToString(arr[1])
		if !ok {
			return Message{}, Malformedf("notification method is %T", arr[1])
		}
		params, err := messageParams(arr[2])
		if err != nil {
			return Message{}, err
		}
		return Message{Type: MsgNotification, Method: method, Params: params}, nil
	default:
		return Message{}, Malformedf("unknown message type %d", kind)
	}
}

func messageID(v interface{}) (uint32, error) {
	n, ok := ToInt(v)
	if !ok || n < 0 || n > int(^uint32(0)) {
		return 0, Malformedf("invalid message id %v", v)
	}
	return uint32(n), nil
}

func messageParams(v interface{}) ([]interface{}, error) {
	if v == nil {
		return []interface{}{}, nil
	}
	params, ok := v.([]interface{})
	if !ok {
		return nil, Malformedf("params is %T, want array", v)
	}
	return params, nil
}
