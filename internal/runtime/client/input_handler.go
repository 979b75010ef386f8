// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: internal/runtime/client/input_handler.go
// Summary: Event processing and input handling for the client runtime.
// Usage: Handles keyboard, mouse, resize and paste events, routing them to
// the editor.

package clientruntime

import (
	"unicode/utf8"

	"github.com/gdamore/tcell/v2"

	"github.com/framegrace/texelnvim/client"
)

func handleScreenEvent(ev tcell.Event, state *uiState, screen tcell.Screen) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		if state.pasting {
			consumePasteKey(state, ev)
			return true
		}
		sendKey(state.editor, ev.Modifiers(), ev.Key(), ev.Rune())
	case *tcell.EventMouse:
		handleMouse(state, ev)
	case *tcell.EventResize:
		cols, rows := ev.Size()
		state.scheduleResize(cols, rows)
		// Redraw the current frame clipped to the new size until the
		// editor answers with grid_resize.
		render(state, screen)
	case *tcell.EventInterrupt:
		// Ignore; used to wake PollEvent for shutdown.
	case *tcell.EventPaste:
		if ev.Start() {
			state.pasting = true
			state.pasteBuf = state.pasteBuf[:0]
		} else {
			state.pasting = false
			if len(state.pasteBuf) > 0 {
				text := string(state.pasteBuf)
				state.panics.Go("paste", func() { sendPaste(state.editor, text) })
				state.pasteBuf = state.pasteBuf[:0]
			}
		}
	}
	return true
}

// consumePasteKey accumulates bracketed paste content. Line breaks are
// stored as \n, which is what nvim_paste splits lines on. tcell reports
// pasted control characters as key codes, so they are turned back into
// their bytes.
func consumePasteKey(state *uiState, ev *tcell.EventKey) {
	switch k := ev.Key(); {
	case k == tcell.KeyRune:
		r := ev.Rune()
		if r == '\r' {
			r = '\n'
		}
		state.pasteBuf = utf8.AppendRune(state.pasteBuf, r)
	case k == tcell.KeyCR, k == tcell.KeyLF, k == tcell.KeyCtrlJ, k == tcell.KeyCtrlM:
		state.pasteBuf = append(state.pasteBuf, '\n')
	case k == tcell.KeyBackspace, k == tcell.KeyBackspace2:
		state.pasteBuf = append(state.pasteBuf, 0x7F)
	case k < tcell.KeyCtrlSpace:
		state.pasteBuf = append(state.pasteBuf, byte(k))
	case k <= tcell.KeyCtrlUnderscore:
		state.pasteBuf = append(state.pasteBuf, byte(k-tcell.KeyCtrlSpace))
	default:
		if r := ev.Rune(); r != 0 {
			state.pasteBuf = utf8.AppendRune(state.pasteBuf, r)
		}
	}
}

var wheelActions = []struct {
	mask   tcell.ButtonMask
	action client.MouseAction
}{
	{tcell.WheelUp, client.WheelUp},
	{tcell.WheelDown, client.WheelDown},
	{tcell.WheelLeft, client.WheelLeft},
	{tcell.WheelRight, client.WheelRight},
}

func pressedButton(mask tcell.ButtonMask) client.MouseButton {
	switch {
	case mask&tcell.Button1 != 0:
		return client.MouseLeft
	case mask&tcell.Button2 != 0:
		return client.MouseRight
	case mask&tcell.Button3 != 0:
		return client.MouseMiddle
	case mask&tcell.Button4 != 0:
		return client.MouseX1
	case mask&tcell.Button5 != 0:
		return client.MouseX2
	}
	return ""
}

// handleMouse turns tcell's button-state reports into press, drag and
// release transitions. A drag stays on the grid it started on.
func handleMouse(state *uiState, ev *tcell.EventMouse) {
	f := state.frame
	if f == nil || !f.MouseEnabled {
		state.mouse = mouseState{}
		return
	}
	x, y := ev.Position()
	mods := ev.Modifiers()
	buttons := ev.Buttons()

	for _, w := range wheelActions {
		if buttons&w.mask == 0 {
			continue
		}
		if grid, row, col, ok := hitTest(f, x, y); ok {
			sendMouse(state.editor, client.MouseWheel, w.action, grid, row, col, mods)
		}
	}

	pressed := pressedButton(buttons)
	ms := &state.mouse
	switch {
	case pressed != "" && ms.button == "":
		grid, row, col, ok := hitTest(f, x, y)
		if !ok {
			return
		}
		*ms = mouseState{button: pressed, grid: grid, row: row, col: col}
		sendMouse(state.editor, pressed, client.ActionPress, grid, row, col, mods)
	case pressed != "" && pressed == ms.button:
		row, col := gridRelative(f, ms.grid, x, y)
		if row == ms.row && col == ms.col {
			return
		}
		ms.row, ms.col = row, col
		sendMouse(state.editor, pressed, client.ActionDrag, ms.grid, row, col, mods)
	case pressed != "":
		row, col := gridRelative(f, ms.grid, x, y)
		sendMouse(state.editor, ms.button, client.ActionRelease, ms.grid, row, col, mods)
		*ms = mouseState{}
		if grid, row, col, ok := hitTest(f, x, y); ok {
			*ms = mouseState{button: pressed, grid: grid, row: row, col: col}
			sendMouse(state.editor, pressed, client.ActionPress, grid, row, col, mods)
		}
	case ms.button != "":
		row, col := gridRelative(f, ms.grid, x, y)
		sendMouse(state.editor, ms.button, client.ActionRelease, ms.grid, row, col, mods)
		*ms = mouseState{}
	}
}

// hitTest finds the topmost focusable grid under a screen position.
func hitTest(f *client.Frame, x, y int) (grid, row, col int, ok bool) {
	for i := len(f.Windows) - 1; i >= 0; i-- {
		p := f.Windows[i]
		if p.Float && !p.Focusable {
			continue
		}
		if y >= p.Row && y < p.Row+p.Height && x >= p.Col && x < p.Col+p.Width {
			return p.Grid, y - p.Row, x - p.Col, true
		}
	}
	return 0, 0, 0, false
}

// gridRelative converts a screen position to grid coordinates, clamped to
// the grid so drags past its edge stay inside.
func gridRelative(f *client.Frame, grid, x, y int) (int, int) {
	p, ok := f.Placement(grid)
	if !ok {
		return clamp(y, 0, y), clamp(x, 0, x)
	}
	return clamp(y-p.Row, 0, p.Height-1), clamp(x-p.Col, 0, p.Width-1)
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		hi = lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
