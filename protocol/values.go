// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: protocol/values.go
// Summary: Helpers for loosely typed msgpack values and editor handle types.
// Usage: Used by the redraw decoder and the RPC session to read params.

package protocol

import (
	"fmt"
	"math"

	"github.com/vmihailenco/msgpack/v5"
)

// Editor handle ext type ids as published in the API metadata.
const (
	ExtBuffer  int8 = 0
	ExtWindow  int8 = 1
	ExtTabpage int8 = 2
)

// Buffer is an editor buffer handle.
type Buffer int64

// Window is an editor window handle.
type Window int64

// Tabpage is an editor tabpage handle.
type Tabpage int64

func init() {
	msgpack.RegisterExt(ExtBuffer, (*Buffer)(nil))
	msgpack.RegisterExt(ExtWindow, (*Window)(nil))
	msgpack.RegisterExt(ExtTabpage, (*Tabpage)(nil))
}

func (b Buffer) MarshalMsgpack() ([]byte, error)   { return msgpack.Marshal(int64(b)) }
func (w Window) MarshalMsgpack() ([]byte, error)   { return msgpack.Marshal(int64(w)) }
func (t Tabpage) MarshalMsgpack() ([]byte, error)  { return msgpack.Marshal(int64(t)) }
func (b *Buffer) UnmarshalMsgpack(p []byte) error  { return unmarshalHandle(p, (*int64)(b)) }
func (w *Window) UnmarshalMsgpack(p []byte) error  { return unmarshalHandle(p, (*int64)(w)) }
func (t *Tabpage) UnmarshalMsgpack(p []byte) error { return unmarshalHandle(p, (*int64)(t)) }

func unmarshalHandle(p []byte, dst *int64) error {
	var v interface{}
	if err := msgpack.Unmarshal(p, &v); err != nil {
		return err
	}
	n, ok := ToInt(v)
	if !ok {
		return fmt.Errorf("protocol: handle payload is %T", v)
	}
	*dst = int64(n)
	return nil
}

// RemoteError is the editor's rejection of a request, decoded from the
// [type, message] error pair of a response.
type RemoteError struct {
	Type    int
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote error %d: %s", e.Type, e.Message)
}

// DecodeRemoteError converts a non-nil response error value.
func DecodeRemoteError(v interface{}) *RemoteError {
	if v == nil {
		return nil
	}
	if arr, ok := v.([]interface{}); ok && len(arr) == 2 {
		kind, _ := ToInt(arr[0])
		msg, ok := ToString(arr[1])
		if ok {
			return &RemoteError{Type: kind, Message: msg}
		}
	}
	if msg, ok := ToString(v); ok {
		return &RemoteError{Message: msg}
	}
	return &RemoteError{Message: fmt.Sprint(v)}
}

// ToInt converts any integer-like decoded value, including editor handles.
func ToInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int8:
		return int(n), true
	case int16:
		return int(n), true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case uint8:
		return int(n), true
	case uint16:
		return int(n), true
	case uint32:
		return int(n), true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int(n), true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int(n), true
	case Buffer:
		return int(n), true
	case *Buffer:
		return int(*n), n != nil
	case Window:
		return int(n), true
	case *Window:
		return int(*n), n != nil
	case Tabpage:
		return int(n), true
	case *Tabpage:
		return int(*n), n != nil
	}
	return 0, false
}

// ToString accepts both str and bin encodings.
func ToString(v interface{}) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case []byte:
		return string(s), true
	}
	return "", false
}

// ToBool accepts booleans and, like the editor's API, integers.
func ToBool(v interface{}) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case nil:
		return false, true
	}
	if n, ok := ToInt(v); ok {
		return n != 0, true
	}
	return false, false
}

// ToFloat converts numeric values to float64.
func ToFloat(v interface{}) (float64, bool) {
	switch f := v.(type) {
	case float64:
		return f, true
	case float32:
		return float64(f), true
	}
	if n, ok := ToInt(v); ok {
		return float64(n), true
	}
	return 0, false
}

// ToArray returns v as an array.
func ToArray(v interface{}) ([]interface{}, bool) {
	arr, ok := v.([]interface{})
	return arr, ok
}

// ToMap returns v as a string-keyed map.
func ToMap(v interface{}) (map[string]interface{}, bool) {
	switch m := v.(type) {
	case map[string]interface{}:
		return m, true
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(m))
		for k, val := range m {
			key, ok := ToString(k)
			if !ok {
				return nil, false
			}
			out[key] = val
		}
		return out, true
	case nil:
		return map[string]interface{}{}, true
	}
	return nil, false
}
