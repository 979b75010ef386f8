// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: client/highlight.go
// Summary: Highlight-id arena shared by every grid of a frame.
// Usage: Frames expose a *Highlights; renderers resolve cell ids with Lookup.
// Notes: Cells store ids, so redefining an id changes every cell using it.

package client

import "github.com/framegrace/texelnvim/protocol"

// DefaultColors are the colours highlight attributes fall back to when
// they leave foreground, background or special unset (-1).
type DefaultColors struct {
	Foreground int
	Background int
	Special    int
}

// Highlights maps highlight ids to attributes. A table reachable from a
// published Frame is never modified.
type Highlights struct {
	attrs    []protocol.HlAttrs
	defined  []bool
	groups   map[string]int
	Defaults DefaultColors
}

func newHighlights() *Highlights {
	return &Highlights{
		attrs:    []protocol.HlAttrs{protocol.DefaultHlAttrs()},
		defined:  []bool{true},
		groups:   make(map[string]int),
		Defaults: DefaultColors{Foreground: -1, Background: -1, Special: -1},
	}
}

func (h *Highlights) clone() *Highlights {
	cp := &Highlights{
		attrs:    append([]protocol.HlAttrs(nil), h.attrs...),
		defined:  append([]bool(nil), h.defined...),
		groups:   make(map[string]int, len(h.groups)),
		Defaults: h.Defaults,
	}
	for k, v := range h.groups {
		cp.groups[k] = v
	}
	return cp
}

func (h *Highlights) define(id int, attrs protocol.HlAttrs) {
	if n := id + 1 - len(h.attrs); n > 0 {
		grown := make([]protocol.HlAttrs, n)
		for i := range grown {
			grown[i] = protocol.DefaultHlAttrs()
		}
		h.attrs = append(h.attrs, grown...)
		h.defined = append(h.defined, make([]bool, n)...)
	}
	h.attrs[id] = attrs
	h.defined[id] = true
}

// Defined reports whether id has been defined. Id 0 always is.
func (h *Highlights) Defined(id int) bool {
	return id >= 0 && id < len(h.defined) && h.defined[id]
}

// Lookup returns the attributes for id. Unknown ids resolve to id 0.
func (h *Highlights) Lookup(id int) protocol.HlAttrs {
	if !h.Defined(id) {
		id = 0
	}
	return h.attrs[id]
}

// Resolve returns the attributes for id with default colours filled in.
// Reverse is left for the renderer to apply.
func (h *Highlights) Resolve(id int) protocol.HlAttrs {
	a := h.Lookup(id)
	if a.Foreground < 0 {
		a.Foreground = h.Defaults.Foreground
	}
	if a.Background < 0 {
		a.Background = h.Defaults.Background
	}
	if a.Special < 0 {
		a.Special = h.Defaults.Special
	}
	return a
}

// Group returns the id a builtin highlight group is currently drawn with.
func (h *Highlights) Group(name string) (int, bool) {
	id, ok := h.groups[name]
	return id, ok
}

// Len is one past the largest defined id.
func (h *Highlights) Len() int {
	return len(h.attrs)
}
