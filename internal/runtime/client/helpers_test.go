// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package clientruntime

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/gdamore/tcell/v2"

	"github.com/framegrace/texelnvim/client"
	"github.com/framegrace/texelnvim/protocol"
)

// recordingEditor captures what the front end forwards.
type recordingEditor struct {
	mu      sync.Mutex
	calls   []string
	resized chan [2]int
	pasted  chan string
}

func newRecordingEditor() *recordingEditor {
	return &recordingEditor{
		resized: make(chan [2]int, 8),
		pasted:  make(chan string, 8),
	}
}

func (r *recordingEditor) record(format string, args ...interface{}) {
	r.mu.Lock()
	r.calls = append(r.calls, fmt.Sprintf(format, args...))
	r.mu.Unlock()
}

func (r *recordingEditor) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func (r *recordingEditor) Key(mods tcell.ModMask, key tcell.Key, ch rune) error {
	in, err := client.EncodeKey(mods, key, ch)
	if err != nil {
		return nil
	}
	r.record("key %s", in.Args[0])
	return nil
}

func (r *recordingEditor) Mouse(button client.MouseButton, action client.MouseAction, grid, row, col int, mods tcell.ModMask) error {
	r.record("mouse %s %s %d %d,%d", button, action, grid, row, col)
	return nil
}

func (r *recordingEditor) Paste(ctx context.Context, text string) error {
	r.pasted <- text
	return nil
}

func (r *recordingEditor) TryResize(ctx context.Context, width, height int) error {
	r.resized <- [2]int{width, height}
	return nil
}

func buildFrame(t *testing.T, events ...protocol.RedrawEvent) *client.Frame {
	t.Helper()
	m := client.NewModel()
	if err := m.Apply(append(events, protocol.Flush{})); err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	return m.Frame()
}

func line(grid, row, col int, text string, hl int) protocol.GridLine {
	cells := make([]protocol.LineCell, 0, len(text))
	for i, r := range text {
		c := protocol.LineCell{Text: string(r), HasText: true, Repeat: 1}
		if i == 0 {
			c.HlID, c.HasHl = hl, true
		}
		cells = append(cells, c)
	}
	return protocol.GridLine{Grid: grid, Row: row, ColStart: col, Cells: cells}
}

func newSimScreen(t *testing.T, width, height int) tcell.SimulationScreen {
	t.Helper()
	screen := tcell.NewSimulationScreen("UTF-8")
	if err := screen.Init(); err != nil {
		t.Fatalf("init screen: %v", err)
	}
	screen.SetSize(width, height)
	t.Cleanup(screen.Fini)
	return screen
}

func screenRow(screen tcell.Screen, y, width int) string {
	out := make([]rune, 0, width)
	for x := 0; x < width; x++ {
		r, _, _, _ := screen.GetContent(x, y)
		out = append(out, r)
	}
	return string(out)
}
