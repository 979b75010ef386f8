// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package clientruntime

import (
	"strings"
	"testing"

	"github.com/gdamore/tcell/v2"

	"github.com/framegrace/texelnvim/protocol"
)

func TestRenderDefaultGrid(t *testing.T) {
	screen := newSimScreen(t, 10, 3)
	state := newUIState(newRecordingEditor(), 0, nil)
	state.frame = buildFrame(t,
		protocol.GridResize{Grid: 1, Width: 10, Height: 3},
		protocol.DefaultColorsSet{Foreground: 0xffffff, Background: 0x000000, Special: -1},
		protocol.HlAttrDefine{ID: 1, Attrs: protocol.HlAttrs{Foreground: 0xff0000, Background: -1, Special: -1, Bold: true}},
		line(1, 0, 0, "hello", 1),
		line(1, 2, 3, "end", 0),
		protocol.GridCursorGoto{Grid: 1, Row: 2, Col: 6},
	)

	render(state, screen)

	if got := screenRow(screen, 0, 10); got != "hello     " {
		t.Fatalf("row 0 = %q", got)
	}
	if got := screenRow(screen, 2, 10); got != "   end    " {
		t.Fatalf("row 2 = %q", got)
	}

	_, _, style, _ := screen.GetContent(0, 0)
	fg, bg, attrs := style.Decompose()
	if fg != tcell.NewRGBColor(255, 0, 0) {
		t.Errorf("fg = %v, want red", fg)
	}
	if bg != tcell.NewRGBColor(0, 0, 0) {
		t.Errorf("bg = %v, want default background", bg)
	}
	if attrs&tcell.AttrBold == 0 {
		t.Errorf("bold missing")
	}

	x, y, visible := screen.GetCursor()
	if !visible || x != 6 || y != 2 {
		t.Fatalf("cursor at %d,%d visible=%v", x, y, visible)
	}
}

func TestRenderFloatsOnTop(t *testing.T) {
	screen := newSimScreen(t, 12, 4)
	state := newUIState(newRecordingEditor(), 0, nil)
	state.frame = buildFrame(t,
		protocol.GridResize{Grid: 1, Width: 12, Height: 4},
		protocol.GridResize{Grid: 2, Width: 12, Height: 3},
		protocol.GridResize{Grid: 3, Width: 4, Height: 1},
		protocol.WinPos{Grid: 2, Win: 1000, Width: 12, Height: 3},
		protocol.WinFloatPos{Grid: 3, Win: 1001, Anchor: "NW", AnchorGrid: 2, AnchorRow: 1, AnchorCol: 2, Focusable: true, ZIndex: 50},
		line(1, 3, 0, "status", 0),
		line(2, 1, 0, "abcdefghijkl", 0),
		line(3, 0, 0, "FLT!", 0),
		protocol.GridCursorGoto{Grid: 3, Row: 0, Col: 1},
	)

	render(state, screen)

	if got := screenRow(screen, 1, 12); got != "abFLT!ghijkl" {
		t.Fatalf("row 1 = %q", got)
	}
	if got := strings.TrimRight(screenRow(screen, 3, 12), " "); got != "status" {
		t.Fatalf("row 3 = %q", got)
	}
	x, y, visible := screen.GetCursor()
	if !visible || x != 3 || y != 1 {
		t.Fatalf("cursor at %d,%d visible=%v, want 3,1 inside the float", x, y, visible)
	}
}

func TestRenderWideAndCombining(t *testing.T) {
	screen := newSimScreen(t, 6, 1)
	state := newUIState(newRecordingEditor(), 0, nil)
	state.frame = buildFrame(t,
		protocol.GridResize{Grid: 1, Width: 6, Height: 1},
		protocol.GridLine{Grid: 1, Row: 0, Cells: []protocol.LineCell{
			{Text: "世", HasText: true, Repeat: 1},
			{Text: "", HasText: true, Repeat: 1},
			{Text: "e\u0301", HasText: true, Repeat: 1},
		}},
	)

	render(state, screen)

	r, _, _, width := screen.GetContent(0, 0)
	if r != '世' || width != 2 {
		t.Fatalf("cell 0 = %q width %d", r, width)
	}
	r, comb, _, _ := screen.GetContent(2, 0)
	if r != 'e' || len(comb) != 1 || comb[0] != '\u0301' {
		t.Fatalf("cell 2 = %q %q", r, comb)
	}
}

func TestRenderBusyHidesCursor(t *testing.T) {
	screen := newSimScreen(t, 4, 2)
	state := newUIState(newRecordingEditor(), 0, nil)
	state.frame = buildFrame(t,
		protocol.GridResize{Grid: 1, Width: 4, Height: 2},
		protocol.GridCursorGoto{Grid: 1, Row: 1, Col: 1},
		protocol.BusyStart{},
	)
	render(state, screen)
	if _, _, visible := screen.GetCursor(); visible {
		t.Fatalf("cursor visible while busy")
	}
}

func TestSplitCell(t *testing.T) {
	tests := []struct {
		text     string
		wantMain rune
		wantComb int
	}{
		{"a", 'a', 0},
		{"", ' ', 0},
		{"e\u0301", 'e', 1},
		{"ab", 'a', 0},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			mainc, comb := splitCell(tt.text)
			if mainc != tt.wantMain || len(comb) != tt.wantComb {
				t.Fatalf("splitCell(%q) = %q %q", tt.text, mainc, comb)
			}
		})
	}
}

func TestCursorStyle(t *testing.T) {
	tests := []struct {
		info protocol.ModeInfo
		want tcell.CursorStyle
	}{
		{protocol.ModeInfo{CursorShape: "block"}, tcell.CursorStyleSteadyBlock},
		{protocol.ModeInfo{CursorShape: "block", Blinkon: 400}, tcell.CursorStyleBlinkingBlock},
		{protocol.ModeInfo{CursorShape: "vertical"}, tcell.CursorStyleSteadyBar},
		{protocol.ModeInfo{CursorShape: "horizontal", Blinkon: 1}, tcell.CursorStyleBlinkingUnderline},
	}
	for _, tt := range tests {
		if got := cursorStyle(tt.info); got != tt.want {
			t.Errorf("cursorStyle(%+v) = %v, want %v", tt.info, got, tt.want)
		}
	}
}
