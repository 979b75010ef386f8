// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package client

import (
	"errors"
	"reflect"
	"testing"

	"github.com/gdamore/tcell/v2"
)

func TestEncodeKey(t *testing.T) {
	tests := []struct {
		name string
		mods tcell.ModMask
		key  tcell.Key
		r    rune
		want string
	}{
		{name: "plain rune", key: tcell.KeyRune, r: 'a', want: "a"},
		{name: "shifted rune", mods: tcell.ModShift, key: tcell.KeyRune, r: 'A', want: "A"},
		{name: "less than", key: tcell.KeyRune, r: '<', want: "<lt>"},
		{name: "unicode", key: tcell.KeyRune, r: 'é', want: "é"},
		{name: "alt rune", mods: tcell.ModAlt, key: tcell.KeyRune, r: 'x', want: "<M-x>"},
		{name: "alt less than", mods: tcell.ModAlt, key: tcell.KeyRune, r: '<', want: "<M-lt>"},
		{name: "ctrl alt space", mods: tcell.ModCtrl | tcell.ModAlt, key: tcell.KeyRune, r: ' ', want: "<C-M-Space>"},
		{name: "ctrl letter", mods: tcell.ModCtrl, key: tcell.KeyCtrlW, want: "<C-w>"},
		{name: "ctrl h", mods: tcell.ModCtrl, key: tcell.KeyCtrlH, want: "<C-h>"},
		{name: "backspace", key: tcell.KeyBackspace2, want: "<BS>"},
		{name: "legacy backspace", key: tcell.KeyBackspace, want: "<BS>"},
		{name: "enter", key: tcell.KeyEnter, want: "<CR>"},
		{name: "escape", key: tcell.KeyEsc, want: "<Esc>"},
		{name: "shift tab", mods: tcell.ModShift, key: tcell.KeyBacktab, want: "<S-Tab>"},
		{name: "ctrl up", mods: tcell.ModCtrl, key: tcell.KeyUp, want: "<C-Up>"},
		{name: "shift f5", mods: tcell.ModShift, key: tcell.KeyF5, want: "<S-F5>"},
		{name: "f12", key: tcell.KeyF12, want: "<F12>"},
		{name: "delete", key: tcell.KeyDelete, want: "<Del>"},
		{name: "page down", key: tcell.KeyPgDn, want: "<PageDown>"},
		{name: "ctrl backslash", key: tcell.KeyCtrlBackslash, want: "<C-Bslash>"},
		{name: "meta", mods: tcell.ModMeta, key: tcell.KeyRune, r: 's', want: "<D-s>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, err := EncodeKey(tt.mods, tt.key, tt.r)
			if err != nil {
				t.Fatalf("encode failed: %v", err)
			}
			if in.Method != "nvim_input" || !reflect.DeepEqual(in.Args, []interface{}{tt.want}) {
				t.Fatalf("got %s %v, want nvim_input [%s]", in.Method, in.Args, tt.want)
			}
		})
	}
}

func TestEncodeKeyUnmappable(t *testing.T) {
	tests := []struct {
		name string
		key  tcell.Key
		r    rune
	}{
		{name: "nul rune", key: tcell.KeyRune, r: 0},
		{name: "control rune", key: tcell.KeyRune, r: '\x07'},
		{name: "print key", key: tcell.KeyPrint},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := EncodeKey(0, tt.key, tt.r); !errors.Is(err, ErrUnmappableKey) {
				t.Fatalf("expected ErrUnmappableKey, got %v", err)
			}
		})
	}
}

func TestEncodeMouse(t *testing.T) {
	tests := []struct {
		name   string
		button MouseButton
		action MouseAction
		mods   tcell.ModMask
		want   []interface{}
	}{
		{name: "left press", button: MouseLeft, action: ActionPress,
			want: []interface{}{"left", "press", "", int64(2), int64(5), int64(7)}},
		{name: "ctrl drag", button: MouseRight, action: ActionDrag, mods: tcell.ModCtrl,
			want: []interface{}{"right", "drag", "C", int64(2), int64(5), int64(7)}},
		{name: "wheel", button: MouseWheel, action: WheelDown, mods: tcell.ModShift | tcell.ModAlt,
			want: []interface{}{"wheel", "down", "SM", int64(2), int64(5), int64(7)}},
		{name: "move", button: MouseMove, action: ActionDrag,
			want: []interface{}{"move", "", "", int64(2), int64(5), int64(7)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, err := EncodeMouse(tt.button, tt.action, 2, 5, 7, tt.mods)
			if err != nil {
				t.Fatalf("encode failed: %v", err)
			}
			if in.Method != "nvim_input_mouse" || !reflect.DeepEqual(in.Args, tt.want) {
				t.Fatalf("got %s %#v", in.Method, in.Args)
			}
		})
	}
}

func TestEncodeMouseUnmappable(t *testing.T) {
	tests := []struct {
		name   string
		button MouseButton
		action MouseAction
		row    int
	}{
		{name: "wheel press", button: MouseWheel, action: ActionPress},
		{name: "button scroll", button: MouseLeft, action: WheelUp},
		{name: "unknown button", button: "x9", action: ActionPress},
		{name: "negative row", button: MouseLeft, action: ActionPress, row: -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := EncodeMouse(tt.button, tt.action, 1, tt.row, 0, 0); !errors.Is(err, ErrUnmappableMouse) {
				t.Fatalf("expected ErrUnmappableMouse, got %v", err)
			}
		})
	}
}
