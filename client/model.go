// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: client/model.go
// Summary: UI state model rebuilt from redraw batches.
// Usage: The controller's model task feeds decoded batches to Apply;
// renderers read Frame snapshots.
// Notes: Mutations go to staging state and become visible only at flush.
// Grids and the highlight table are copied on first write after a publish,
// so untouched state is shared between consecutive frames.

package client

import (
	"log"
	"math"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/framegrace/texelnvim/protocol"
)

// DefaultGrid is the global grid every layout is composed on.
const DefaultGrid = 1

// Limits on what a peer may make the model allocate.
const (
	maxGridSide    = 1 << 14
	maxGridCells   = 1 << 22
	maxHighlightID = 1 << 20
)

// Cursor is the focused grid and the cursor position inside it.
type Cursor struct {
	Grid int
	Row  int
	Col  int
}

// Mode is the editor mode most recently reported by mode_change.
type Mode struct {
	Name  string
	Index int
}

// Viewport is the buffer range shown by a window grid.
type Viewport struct {
	Win       int
	TopLine   int
	BotLine   int
	CurLine   int
	CurCol    int
	LineCount int
}

// Placement positions a grid on the screen.
type Placement struct {
	Grid      int
	Win       int
	Row       int
	Col       int
	Width     int
	Height    int
	Float     bool
	Focusable bool
	ZIndex    int
}

// Frame is an immutable, consistent snapshot published at a flush.
type Frame struct {
	Seq                uint64
	Grids              map[int]*Grid
	Windows            []Placement // visible grids, bottom to top
	Cursor             Cursor
	Highlights         *Highlights
	Mode               Mode
	ModeInfo           []protocol.ModeInfo
	CursorStyleEnabled bool
	Title              string
	Icon               string
	Options            map[string]interface{}
	MouseEnabled       bool
	Busy               bool
	Viewports          map[int]Viewport
}

// Grid returns the grid with the given id, or nil.
func (f *Frame) Grid(id int) *Grid {
	if f == nil {
		return nil
	}
	return f.Grids[id]
}

// CurrentModeInfo returns the cursor description of the current mode.
func (f *Frame) CurrentModeInfo() (protocol.ModeInfo, bool) {
	if f == nil || f.Mode.Index < 0 || f.Mode.Index >= len(f.ModeInfo) {
		return protocol.ModeInfo{}, false
	}
	return f.ModeInfo[f.Mode.Index], true
}

// Placement returns where grid id is drawn, if it is visible.
func (f *Frame) Placement(id int) (Placement, bool) {
	if f == nil {
		return Placement{}, false
	}
	for _, p := range f.Windows {
		if p.Grid == id {
			return p, true
		}
	}
	return Placement{}, false
}

type window struct {
	win        int
	float      bool
	row, col   int
	width      int
	height     int
	anchor     string
	anchorGrid int
	anchorRow  float64
	anchorCol  float64
	focusable  bool
	zindex     int
	hidden     bool
	order      uint64
}

// Model is the authoritative UI state. Apply must be called from a single
// goroutine at a time; Frame is safe from any goroutine.
type Model struct {
	mu sync.Mutex

	grids map[int]*Grid
	owned map[int]bool
	hl    *Highlights
	hlOwn bool

	windows   map[int]*window
	viewports map[int]Viewport
	options   map[string]interface{}
	cursor    Cursor
	mode      Mode
	modeInfo  []protocol.ModeInfo
	cursorSty bool
	title     string
	icon      string
	mouse     bool
	busy      bool

	placements uint64
	unknown    map[string]bool
	seq        uint64
	frame      atomic.Pointer[Frame]
	onFlush    func(*Frame)
}

// NewModel returns an empty model whose current frame has no grids.
func NewModel() *Model {
	m := &Model{
		grids:     make(map[int]*Grid),
		owned:     make(map[int]bool),
		hl:        newHighlights(),
		hlOwn:     true,
		windows:   make(map[int]*window),
		viewports: make(map[int]Viewport),
		options:   make(map[string]interface{}),
		unknown:   make(map[string]bool),
	}
	m.frame.Store(&Frame{
		Grids:      map[int]*Grid{},
		Highlights: m.hl.clone(),
		Options:    map[string]interface{}{},
		Viewports:  map[int]Viewport{},
	})
	return m
}

// OnFlush registers fn to receive every newly published frame. It runs on
// the goroutine calling Apply.
func (m *Model) OnFlush(fn func(*Frame)) {
	m.mu.Lock()
	m.onFlush = fn
	m.mu.Unlock()
}

// Frame returns the most recently flushed snapshot.
func (m *Model) Frame() *Frame {
	return m.frame.Load()
}

// Apply applies one batch of sub-events in order. Any error is a protocol
// violation; the model must not be used afterwards.
func (m *Model) Apply(events []protocol.RedrawEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ev := range events {
		if err := m.apply(ev); err != nil {
			return err
		}
	}
	return nil
}

func (m *Model) apply(ev protocol.RedrawEvent) error {
	switch e := ev.(type) {
	case protocol.GridResize:
		if e.Width > maxGridSide || e.Height > maxGridSide || e.Width*e.Height > maxGridCells {
			return protocol.Malformedf("grid_resize of grid %d to %dx%d exceeds the grid size limit", e.Grid, e.Width, e.Height)
		}
		if g, ok := m.grids[e.Grid]; ok {
			if !m.owned[e.Grid] {
				g = g.clone()
				m.grids[e.Grid] = g
				m.owned[e.Grid] = true
			}
			g.resize(e.Width, e.Height)
			return nil
		}
		m.grids[e.Grid] = newGrid(e.Grid, e.Width, e.Height)
		m.owned[e.Grid] = true
	case protocol.GridClear:
		g, err := m.mutableGrid(e.Grid, "grid_clear")
		if err != nil {
			return err
		}
		g.clear()
	case protocol.GridLine:
		g, err := m.mutableGrid(e.Grid, "grid_line")
		if err != nil {
			return err
		}
		return g.putLine(e, m.hl.Defined)
	case protocol.GridScroll:
		g, err := m.mutableGrid(e.Grid, "grid_scroll")
		if err != nil {
			return err
		}
		return g.scroll(e)
	case protocol.GridCursorGoto:
		if _, ok := m.grids[e.Grid]; !ok {
			return protocol.Malformedf("grid_cursor_goto on unknown grid %d", e.Grid)
		}
		m.cursor = Cursor{Grid: e.Grid, Row: e.Row, Col: e.Col}
	case protocol.GridDestroy:
		if _, ok := m.grids[e.Grid]; !ok {
			return protocol.Malformedf("grid_destroy on unknown grid %d", e.Grid)
		}
		delete(m.grids, e.Grid)
		delete(m.owned, e.Grid)
		delete(m.windows, e.Grid)
		delete(m.viewports, e.Grid)
	case protocol.HlAttrDefine:
		if e.ID > maxHighlightID {
			return protocol.Malformedf("hl_attr_define id %d exceeds %d", e.ID, maxHighlightID)
		}
		m.mutableHighlights().define(e.ID, e.Attrs)
	case protocol.DefaultColorsSet:
		m.mutableHighlights().Defaults = DefaultColors{Foreground: e.Foreground, Background: e.Background, Special: e.Special}
	case protocol.HlGroupSet:
		m.mutableHighlights().groups[e.Name] = e.ID
	case protocol.Flush:
		m.publish()
	case protocol.ModeInfoSet:
		m.cursorSty = e.CursorStyleEnabled
		m.modeInfo = e.Modes
	case protocol.ModeChange:
		m.mode = Mode{Name: e.Mode, Index: e.Index}
	case protocol.OptionSet:
		m.options[e.Name] = e.Value
	case protocol.SetTitle:
		m.title = e.Title
	case protocol.SetIcon:
		m.icon = e.Icon
	case protocol.MouseOn:
		m.mouse = true
	case protocol.MouseOff:
		m.mouse = false
	case protocol.BusyStart:
		m.busy = true
	case protocol.BusyStop:
		m.busy = false
	case protocol.WinPos:
		w, err := m.placedWindow(e.Grid, "win_pos")
		if err != nil {
			return err
		}
		w.win, w.float, w.hidden = e.Win, false, false
		w.row, w.col, w.width, w.height = e.StartRow, e.StartCol, e.Width, e.Height
		w.zindex = 0
	case protocol.WinFloatPos:
		w, err := m.placedWindow(e.Grid, "win_float_pos")
		if err != nil {
			return err
		}
		w.win, w.float, w.hidden = e.Win, true, false
		w.anchor, w.anchorGrid = e.Anchor, e.AnchorGrid
		w.anchorRow, w.anchorCol = e.AnchorRow, e.AnchorCol
		w.focusable, w.zindex = e.Focusable, e.ZIndex
	case protocol.WinHide:
		if _, ok := m.grids[e.Grid]; !ok {
			return protocol.Malformedf("win_hide on unknown grid %d", e.Grid)
		}
		if w, ok := m.windows[e.Grid]; ok {
			w.hidden = true
		}
	case protocol.WinClose:
		delete(m.windows, e.Grid)
		delete(m.viewports, e.Grid)
	case protocol.WinViewport:
		if _, ok := m.grids[e.Grid]; !ok {
			return protocol.Malformedf("win_viewport on unknown grid %d", e.Grid)
		}
		m.viewports[e.Grid] = Viewport{
			Win: e.Win, TopLine: e.TopLine, BotLine: e.BotLine,
			CurLine: e.CurLine, CurCol: e.CurCol, LineCount: e.LineCount,
		}
	case protocol.UnknownEvent:
		if !m.unknown[e.Name] {
			m.unknown[e.Name] = true
			log.Printf("redraw: ignoring unsupported event %q", e.Name)
		}
	default:
		log.Printf("redraw: unhandled event type %T", ev)
	}
	return nil
}

// mutableGrid returns a grid that may be written, copying it first if the
// current frame still references it.
func (m *Model) mutableGrid(id int, event string) (*Grid, error) {
	g, ok := m.grids[id]
	if !ok {
		return nil, protocol.Malformedf("%s on unknown grid %d", event, id)
	}
	if !m.owned[id] {
		g = g.clone()
		m.grids[id] = g
		m.owned[id] = true
	}
	return g, nil
}

func (m *Model) mutableHighlights() *Highlights {
	if !m.hlOwn {
		m.hl = m.hl.clone()
		m.hlOwn = true
	}
	return m.hl
}

// placedWindow returns the placement record of an existing grid, creating
// it on first use.
func (m *Model) placedWindow(grid int, event string) (*window, error) {
	if _, ok := m.grids[grid]; !ok {
		return nil, protocol.Malformedf("%s on unknown grid %d", event, grid)
	}
	w, ok := m.windows[grid]
	if !ok {
		m.placements++
		w = &window{order: m.placements, focusable: true}
		m.windows[grid] = w
	}
	return w, nil
}

func (m *Model) publish() {
	m.seq++
	f := &Frame{
		Seq:                m.seq,
		Grids:              make(map[int]*Grid, len(m.grids)),
		Cursor:             m.cursor,
		Highlights:         m.hl,
		Mode:               m.mode,
		ModeInfo:           m.modeInfo,
		CursorStyleEnabled: m.cursorSty,
		Title:              m.title,
		Icon:               m.icon,
		Options:            make(map[string]interface{}, len(m.options)),
		MouseEnabled:       m.mouse,
		Busy:               m.busy,
		Viewports:          make(map[int]Viewport, len(m.viewports)),
	}
	for id, g := range m.grids {
		f.Grids[id] = g
	}
	for k, v := range m.options {
		f.Options[k] = v
	}
	for k, v := range m.viewports {
		f.Viewports[k] = v
	}
	f.Windows = m.layout()

	m.owned = make(map[int]bool)
	m.hlOwn = false
	m.frame.Store(f)
	if m.onFlush != nil {
		m.onFlush(f)
	}
}

// layout lists the visible grids bottom to top: the default grid, then
// windows in placement order, then floats by z-index.
func (m *Model) layout() []Placement {
	var out []Placement
	if g, ok := m.grids[DefaultGrid]; ok {
		out = append(out, Placement{Grid: DefaultGrid, Width: g.Width, Height: g.Height})
	}
	ids := make([]int, 0, len(m.windows))
	for id, w := range m.windows {
		if id == DefaultGrid || w.hidden {
			continue
		}
		if _, ok := m.grids[id]; !ok {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := m.windows[ids[i]], m.windows[ids[j]]
		if a.float != b.float {
			return !a.float
		}
		if a.zindex != b.zindex {
			return a.zindex < b.zindex
		}
		return a.order < b.order
	})
	for _, id := range ids {
		w := m.windows[id]
		g := m.grids[id]
		row, col := m.origin(id, 0)
		out = append(out, Placement{
			Grid: id, Win: w.win, Row: row, Col: col,
			Width: g.Width, Height: g.Height,
			Float: w.float, Focusable: w.focusable, ZIndex: w.zindex,
		})
	}
	return out
}

const maxAnchorDepth = 16

// origin resolves the screen position of a grid, following float anchors.
func (m *Model) origin(grid, depth int) (int, int) {
	w, ok := m.windows[grid]
	if !ok || grid == DefaultGrid || depth > maxAnchorDepth {
		return 0, 0
	}
	if !w.float {
		return w.row, w.col
	}
	baseRow, baseCol := m.origin(w.anchorGrid, depth+1)
	row := int(math.Floor(w.anchorRow))
	col := int(math.Floor(w.anchorCol))
	if g, ok := m.grids[grid]; ok {
		switch w.anchor {
		case "NE":
			col -= g.Width
		case "SW":
			row -= g.Height
		case "SE":
			row -= g.Height
			col -= g.Width
		}
	}
	return baseRow + row, baseCol + col
}
