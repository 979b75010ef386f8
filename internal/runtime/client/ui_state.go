// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: internal/runtime/client/ui_state.go
// Summary: Front-end state owned by the event loop.
// Usage: Holds the frame being displayed, the style cache, paste and mouse
// tracking, and the pending resize.

package clientruntime

import (
	"context"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/framegrace/texelnvim/client"
)

// editor is the part of *client.Controller the front end drives.
type editor interface {
	Key(mods tcell.ModMask, key tcell.Key, r rune) error
	Mouse(button client.MouseButton, action client.MouseAction, grid, row, col int, mods tcell.ModMask) error
	Paste(ctx context.Context, text string) error
	TryResize(ctx context.Context, width, height int) error
}

type mouseState struct {
	button client.MouseButton
	grid   int
	row    int
	col    int
}

type uiState struct {
	editor editor
	panics *PanicLogger

	frame      *client.Frame
	styles     map[int]tcell.Style
	styleTable *client.Highlights
	title      string

	pasting  bool
	pasteBuf []byte
	mouse    mouseState

	resizeMu       sync.Mutex
	resizeDebounce time.Duration
	pendingWidth   int
	pendingHeight  int
	resizeSeq      uint64
}

func newUIState(ed editor, debounce time.Duration, panics *PanicLogger) *uiState {
	if debounce <= 0 {
		debounce = defaultResizeDebounce
	}
	if panics == nil {
		panics = NewPanicLogger("")
	}
	return &uiState{
		editor:         ed,
		panics:         panics,
		resizeDebounce: debounce,
	}
}

// style returns the tcell style of a highlight id in the current frame.
// The cache is dropped whenever the frame carries a different table.
func (s *uiState) style(id int) tcell.Style {
	if s.frame == nil {
		return tcell.StyleDefault
	}
	if s.styleTable != s.frame.Highlights {
		s.styleTable = s.frame.Highlights
		s.styles = make(map[int]tcell.Style)
	}
	if st, ok := s.styles[id]; ok {
		return st
	}
	st := styleFromAttrs(s.frame.Highlights.Resolve(id))
	s.styles[id] = st
	return st
}

// scheduleResize coalesces bursts of terminal resizes into one request.
func (s *uiState) scheduleResize(width, height int) {
	if s == nil {
		return
	}
	s.resizeMu.Lock()
	s.pendingWidth, s.pendingHeight = width, height
	s.resizeSeq++
	seq := s.resizeSeq
	s.resizeMu.Unlock()

	s.panics.Go("resize", func() {
		time.Sleep(s.resizeDebounce)
		s.resizeMu.Lock()
		if seq != s.resizeSeq {
			s.resizeMu.Unlock()
			return
		}
		w, h := s.pendingWidth, s.pendingHeight
		s.resizeMu.Unlock()
		sendResize(s.editor, w, h)
	})
}
