// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: client/input.go
// Summary: Translates terminal key and mouse events into editor input calls.
// Usage: EncodeKey and EncodeMouse produce notifications for Session.Notify;
// the controller sends them and drops unmappable events.

package client

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/gdamore/tcell/v2"
)

var (
	// ErrUnmappableKey marks a key with no editor notation.
	ErrUnmappableKey = errors.New("client: unmappable key")
	// ErrUnmappableMouse marks an invalid button/action combination.
	ErrUnmappableMouse = errors.New("client: unmappable mouse event")
)

// Input is one encoded, fire-and-forget editor notification.
type Input struct {
	Method string
	Args   []interface{}
}

// MouseButton names a button as nvim_input_mouse expects it.
type MouseButton string

const (
	MouseLeft   MouseButton = "left"
	MouseRight  MouseButton = "right"
	MouseMiddle MouseButton = "middle"
	MouseWheel  MouseButton = "wheel"
	MouseMove   MouseButton = "move"
	MouseX1     MouseButton = "x1"
	MouseX2     MouseButton = "x2"
)

// MouseAction is what happened to the button. Wheel events use the
// direction actions.
type MouseAction string

const (
	ActionPress   MouseAction = "press"
	ActionDrag    MouseAction = "drag"
	ActionRelease MouseAction = "release"
	WheelUp       MouseAction = "up"
	WheelDown     MouseAction = "down"
	WheelLeft     MouseAction = "left"
	WheelRight    MouseAction = "right"
)

var namedKeys = map[tcell.Key]string{
	tcell.KeyUp:         "Up",
	tcell.KeyDown:       "Down",
	tcell.KeyLeft:       "Left",
	tcell.KeyRight:      "Right",
	tcell.KeyUpLeft:     "kHome",
	tcell.KeyUpRight:    "kPageUp",
	tcell.KeyDownLeft:   "kEnd",
	tcell.KeyDownRight:  "kPageDown",
	tcell.KeyCenter:     "kOrigin",
	tcell.KeyHome:       "Home",
	tcell.KeyEnd:        "End",
	tcell.KeyPgUp:       "PageUp",
	tcell.KeyPgDn:       "PageDown",
	tcell.KeyInsert:     "Insert",
	tcell.KeyDelete:     "Del",
	tcell.KeyHelp:       "Help",
	tcell.KeyBacktab:    "S-Tab",
	tcell.KeyTab:        "Tab",
	tcell.KeyEnter:      "CR",
	tcell.KeyEsc:        "Esc",
	tcell.KeyBackspace2: "BS",
}

// Characters that cannot appear literally inside <...> notation.
var runeNames = map[rune]string{
	'<':  "lt",
	'\\': "Bslash",
	'|':  "Bar",
	' ':  "Space",
}

// EncodeKey maps a terminal key event to nvim_input.
func EncodeKey(mods tcell.ModMask, key tcell.Key, r rune) (Input, error) {
	notation, err := keyNotation(mods, key, r)
	if err != nil {
		return Input{}, err
	}
	return Input{Method: "nvim_input", Args: []interface{}{notation}}, nil
}

func keyNotation(mods tcell.ModMask, key tcell.Key, r rune) (string, error) {
	if key == tcell.KeyRune {
		return runeNotation(mods, r)
	}
	if name, ok := namedKeys[key]; ok {
		if key == tcell.KeyBacktab {
			mods &^= tcell.ModShift
		}
		return bracket(mods, name), nil
	}
	if key >= tcell.KeyF1 && key <= tcell.KeyF64 {
		return bracket(mods, fmt.Sprintf("F%d", int(key-tcell.KeyF1)+1)), nil
	}
	// The remaining control codes are Ctrl chords. Backspace is Ctrl-H on
	// the wire, so a bare 0x08 means the backspace key.
	switch {
	case key == tcell.KeyBackspace && mods&tcell.ModCtrl == 0:
		return bracket(mods, "BS"), nil
	case key == tcell.KeyNUL:
		return bracket(mods|tcell.ModCtrl, "Space"), nil
	case key >= tcell.KeyCtrlA && key <= tcell.KeyCtrlZ:
		letter := string(rune('a' + int(key-tcell.KeyCtrlA)))
		return bracket(mods|tcell.ModCtrl, letter), nil
	case key == tcell.KeyCtrlBackslash:
		return bracket(mods|tcell.ModCtrl, "Bslash"), nil
	case key == tcell.KeyCtrlRightSq:
		return bracket(mods|tcell.ModCtrl, "]"), nil
	case key == tcell.KeyCtrlCarat:
		return bracket(mods|tcell.ModCtrl, "^"), nil
	case key == tcell.KeyCtrlUnderscore:
		return bracket(mods|tcell.ModCtrl, "_"), nil
	}
	return "", fmt.Errorf("%w: key %d mods %d", ErrUnmappableKey, key, mods)
}

func runeNotation(mods tcell.ModMask, r rune) (string, error) {
	if r == 0 || r == unicode.ReplacementChar || !unicode.IsPrint(r) && r != ' ' {
		return "", fmt.Errorf("%w: rune %U", ErrUnmappableKey, r)
	}
	// Shift is already folded into the rune.
	mods &^= tcell.ModShift
	if mods == 0 {
		if r == '<' {
			return "<lt>", nil
		}
		return string(r), nil
	}
	name, ok := runeNames[r]
	if !ok {
		name = string(r)
	}
	return bracket(mods, name), nil
}

// bracket renders <S-C-M-D-name>.
func bracket(mods tcell.ModMask, name string) string {
	return "<" + modPrefix(mods) + name + ">"
}

func modPrefix(mods tcell.ModMask) string {
	var b strings.Builder
	if mods&tcell.ModShift != 0 {
		b.WriteString("S-")
	}
	if mods&tcell.ModCtrl != 0 {
		b.WriteString("C-")
	}
	if mods&tcell.ModAlt != 0 {
		b.WriteString("M-")
	}
	if mods&tcell.ModMeta != 0 {
		b.WriteString("D-")
	}
	return b.String()
}

// EncodeMouse maps a mouse event on grid to nvim_input_mouse. Row and col
// are relative to the grid. The grid id is sent even without multigrid;
// the editor treats 0 and 1 alike there.
func EncodeMouse(button MouseButton, action MouseAction, grid, row, col int, mods tcell.ModMask) (Input, error) {
	switch button {
	case MouseLeft, MouseRight, MouseMiddle, MouseX1, MouseX2:
		if action != ActionPress && action != ActionDrag && action != ActionRelease {
			return Input{}, fmt.Errorf("%w: %s %s", ErrUnmappableMouse, button, action)
		}
	case MouseWheel:
		if action != WheelUp && action != WheelDown && action != WheelLeft && action != WheelRight {
			return Input{}, fmt.Errorf("%w: %s %s", ErrUnmappableMouse, button, action)
		}
	case MouseMove:
		action = ""
	default:
		return Input{}, fmt.Errorf("%w: button %q", ErrUnmappableMouse, button)
	}
	if grid < 0 || row < 0 || col < 0 {
		return Input{}, fmt.Errorf("%w: position %d,%d on grid %d", ErrUnmappableMouse, row, col, grid)
	}
	modifier := strings.ReplaceAll(modPrefix(mods), "-", "")
	return Input{
		Method: "nvim_input_mouse",
		Args:   []interface{}{string(button), string(action), modifier, int64(grid), int64(row), int64(col)},
	}, nil
}
