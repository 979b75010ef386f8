// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: internal/runtime/client/message_sender.go
// Summary: Input forwarding to the editor.
// Usage: Wraps controller calls with timeouts and logs failures so the
// event loop never stops on a send error.

package clientruntime

import (
	"context"
	"log"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/framegrace/texelnvim/client"
)

const callTimeout = 5 * time.Second

func sendKey(ed editor, mods tcell.ModMask, key tcell.Key, r rune) {
	if err := ed.Key(mods, key, r); err != nil {
		log.Printf("send key failed: %v", err)
	}
}

func sendMouse(ed editor, button client.MouseButton, action client.MouseAction, grid, row, col int, mods tcell.ModMask) {
	if err := ed.Mouse(button, action, grid, row, col, mods); err != nil {
		log.Printf("send mouse failed: %v", err)
	}
}

func sendResize(ed editor, width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()
	if err := ed.TryResize(ctx, width, height); err != nil {
		log.Printf("resize to %dx%d failed: %v", width, height, err)
	}
}

func sendPaste(ed editor, text string) {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()
	if err := ed.Paste(ctx, text); err != nil {
		log.Printf("send paste failed: %v", err)
	}
}
