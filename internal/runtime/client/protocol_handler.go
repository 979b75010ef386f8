// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: internal/runtime/client/protocol_handler.go
// Summary: Applies published frames to the front-end state.
// Usage: Called by the event loop for every frame before rendering.

package clientruntime

import (
	"log"

	"github.com/gdamore/tcell/v2"

	"github.com/framegrace/texelnvim/client"
)

func applyFrame(state *uiState, screen tcell.Screen, f *client.Frame) {
	if f == nil {
		return
	}
	if state.frame != nil && f.Seq < state.frame.Seq {
		log.Printf("ignoring stale frame %d (showing %d)", f.Seq, state.frame.Seq)
		return
	}
	state.frame = f
	if f.Title != state.title {
		state.title = f.Title
		screen.SetTitle(f.Title)
	}
	if !f.MouseEnabled {
		state.mouse = mouseState{}
	}
}
