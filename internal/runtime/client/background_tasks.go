// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: internal/runtime/client/background_tasks.go
// Summary: Background goroutines feeding the event loop.
// Usage: pollEvents moves blocking PollEvent calls off the loop goroutine.

package clientruntime

import "github.com/gdamore/tcell/v2"

// pollEvents forwards screen events until stop is closed or the screen is
// finalised. The returned channel is closed when polling ends.
func pollEvents(screen tcell.Screen, stop <-chan struct{}, panics *PanicLogger) <-chan tcell.Event {
	events := make(chan tcell.Event, 32)
	panics.Go("eventPoll", func() {
		defer close(events)
		for {
			select {
			case <-stop:
				return
			default:
			}
			ev := screen.PollEvent()
			if ev == nil {
				return
			}
			select {
			case events <- ev:
			case <-stop:
				return
			}
		}
	})
	return events
}
