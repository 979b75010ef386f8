// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: protocol/redraw.go
// Summary: Typed decoding of the editor's "redraw" notification batches.
// Usage: DecodeRedraw turns one notification's params into ordered events
// that the client UI model applies as a single batch.

package protocol

// RedrawMethod is the notification carrying UI sub-event batches.
const RedrawMethod = "redraw"

// RedrawEvent is one decoded sub-event of a redraw batch.
type RedrawEvent interface {
	EventName() string
}

// GridResize (re)allocates a grid.
type GridResize struct {
	Grid, Width, Height int
}

// GridClear blanks a grid.
type GridClear struct {
	Grid int
}

// LineCell is one run-length entry of a grid_line event. Fields absent on
// the wire repeat the previous cell's values.
type LineCell struct {
	Text    string
	HasText bool
	HlID    int
	HasHl   bool
	Repeat  int
}

// GridLine overwrites a run of cells in a single row.
type GridLine struct {
	Grid, Row, ColStart int
	Cells               []LineCell
	Wrap                bool
}

// GridScroll shifts a rectangular region vertically.
type GridScroll struct {
	Grid, Top, Bottom, Left, Right, Rows, Cols int
}

// GridCursorGoto moves the cursor and focuses a grid.
type GridCursorGoto struct {
	Grid, Row, Col int
}

// GridDestroy removes a grid.
type GridDestroy struct {
	Grid int
}

// HlAttrs is the rgb attribute set of one highlight id. Colours are packed
// 0xRRGGBB values; -1 means "use the default colour".
type HlAttrs struct {
	Foreground    int
	Background    int
	Special       int
	Reverse       bool
	Italic        bool
	Bold          bool
	Strikethrough bool
	Underline     bool
	Undercurl     bool
	Underdouble   bool
	Underdotted   bool
	Underdashed   bool
	Blend         int
}

// DefaultHlAttrs is what id 0 resolves to.
func DefaultHlAttrs() HlAttrs {
	return HlAttrs{Foreground: -1, Background: -1, Special: -1}
}

// HlAttrDefine interns attributes for an id.
type HlAttrDefine struct {
	ID    int
	Attrs HlAttrs
}

// DefaultColorsSet sets the colours used by highlight id 0.
type DefaultColorsSet struct {
	Foreground, Background, Special int
}

// HlGroupSet maps a builtin highlight group name to an id.
type HlGroupSet struct {
	Name string
	ID   int
}

// Flush marks the end of a displayable frame.
type Flush struct{}

// ModeInfo describes the cursor for one editor mode.
type ModeInfo struct {
	Name           string
	ShortName      string
	CursorShape    string
	CellPercentage int
	AttrID         int
	Blinkon        int
}

// ModeInfoSet replaces the mode table.
type ModeInfoSet struct {
	CursorStyleEnabled bool
	Modes              []ModeInfo
}

// ModeChange switches the current mode.
type ModeChange struct {
	Mode  string
	Index int
}

// OptionSet reports a UI related option value.
type OptionSet struct {
	Name  string
	Value interface{}
}

// SetTitle sets the window title.
type SetTitle struct {
	Title string
}

// SetIcon sets the iconified title.
type SetIcon struct {
	Icon string
}

// MouseOn enables mouse reporting.
type MouseOn struct{}

// MouseOff disables mouse reporting.
type MouseOff struct{}

// BusyStart hides the cursor while the editor is busy.
type BusyStart struct{}

// BusyStop ends a busy period.
type BusyStop struct{}

// WinPos places a window grid inside the global grid.
type WinPos struct {
	Grid     int
	Win      int
	StartRow int
	StartCol int
	Width    int
	Height   int
}

// WinFloatPos places a floating window grid relative to an anchor grid.
type WinFloatPos struct {
	Grid       int
	Win        int
	Anchor     string
	AnchorGrid int
	AnchorRow  float64
	AnchorCol  float64
	Focusable  bool
	ZIndex     int
}

// WinHide hides a window grid without freeing it.
type WinHide struct {
	Grid int
}

// WinClose closes a window grid.
type WinClose struct {
	Grid int
}

// WinViewport reports the buffer lines visible in a window grid.
type WinViewport struct {
	Grid      int
	Win       int
	TopLine   int
	BotLine   int
	CurLine   int
	CurCol    int
	LineCount int
}

// UnknownEvent is any sub-event this client does not understand.
type UnknownEvent struct {
	Name string
	Args []interface{}
}

func (GridResize) EventName() string       { return "grid_resize" }
func (GridClear) EventName() string        { return "grid_clear" }
func (GridLine) EventName() string         { return "grid_line" }
func (GridScroll) EventName() string       { return "grid_scroll" }
func (GridCursorGoto) EventName() string   { return "grid_cursor_goto" }
func (GridDestroy) EventName() string      { return "grid_destroy" }
func (HlAttrDefine) EventName() string     { return "hl_attr_define" }
func (DefaultColorsSet) EventName() string { return "default_colors_set" }
func (HlGroupSet) EventName() string       { return "hl_group_set" }
func (Flush) EventName() string            { return "flush" }
func (ModeInfoSet) EventName() string      { return "mode_info_set" }
func (ModeChange) EventName() string       { return "mode_change" }
func (OptionSet) EventName() string        { return "option_set" }
func (SetTitle) EventName() string         { return "set_title" }
func (SetIcon) EventName() string          { return "set_icon" }
func (MouseOn) EventName() string          { return "mouse_on" }
func (MouseOff) EventName() string         { return "mouse_off" }
func (BusyStart) EventName() string        { return "busy_start" }
func (BusyStop) EventName() string         { return "busy_stop" }
func (WinPos) EventName() string           { return "win_pos" }
func (WinFloatPos) EventName() string      { return "win_float_pos" }
func (WinHide) EventName() string          { return "win_hide" }
func (WinClose) EventName() string         { return "win_close" }
func (WinViewport) EventName() string      { return "win_viewport" }
func (e UnknownEvent) EventName() string   { return e.Name }

type argDecoder func(args []interface{}) (RedrawEvent, error)

var redrawDecoders = map[string]argDecoder{
	"grid_resize":        decodeGridResize,
	"grid_clear":         decodeGridClear,
	"grid_line":          decodeGridLine,
	"grid_scroll":        decodeGridScroll,
	"grid_cursor_goto":   decodeGridCursorGoto,
	"grid_destroy":       decodeGridDestroy,
	"hl_attr_define":     decodeHlAttrDefine,
	"default_colors_set": decodeDefaultColorsSet,
	"hl_group_set":       decodeHlGroupSet,
	"flush":              func([]interface{}) (RedrawEvent, error) { return Flush{}, nil },
	"mode_info_set":      decodeModeInfoSet,
	"mode_change":        decodeModeChange,
	"option_set":         decodeOptionSet,
	"set_title":          decodeSetTitle,
	"set_icon":           decodeSetIcon,
	"mouse_on":           func([]interface{}) (RedrawEvent, error) { return MouseOn{}, nil },
	"mouse_off":          func([]interface{}) (RedrawEvent, error) { return MouseOff{}, nil },
	"busy_start":         func([]interface{}) (RedrawEvent, error) { return BusyStart{}, nil },
	"busy_stop":          func([]interface{}) (RedrawEvent, error) { return BusyStop{}, nil },
	"win_pos":            decodeWinPos,
	"win_float_pos":      decodeWinFloatPos,
	"win_hide":           decodeWinHide,
	"win_close":          decodeWinClose,
	"win_viewport":       decodeWinViewport,
}

// DecodeRedraw expands the params of one redraw notification. Each entry is
// [name, args1, args2, ...]; one event is produced per argument tuple, in
// wire order.
func DecodeRedraw(params []interface{}) ([]RedrawEvent, error) {
	events := make([]RedrawEvent, 0, len(params))
	for i, raw := range params {
		entry, ok := ToArray(raw)
		if !ok || len(entry) == 0 {
			return nil, Malformedf("redraw entry %d is %T", i, raw)
		}
		name, ok := ToString(entry[0])
		if !ok {
			return nil, Malformedf("redraw entry %d name is %T", i, entry[0])
		}
		decode, known := redrawDecoders[name]
		if !known {
			events = append(events, UnknownEvent{Name: name, Args: entry[1:]})
			continue
		}
		if len(entry) == 1 {
			// flush and friends may arrive without an argument tuple.
			ev, err := decode(nil)
			if err != nil {
				return nil, err
			}
			events = append(events, ev)
			continue
		}
		for _, tuple := range entry[1:] {
			args, ok := ToArray(tuple)
			if !ok {
				return nil, Malformedf("%s args are %T", name, tuple)
			}
			ev, err := decode(args)
			if err != nil {
				return nil, err
			}
			events = append(events, ev)
		}
	}
	return events, nil
}

// ints reads the first len(dst) arguments as integers.
func ints(name string, args []interface{}, dst ...*int) error {
	if len(args) < len(dst) {
		return Malformedf("%s has %d args, want %d", name, len(args), len(dst))
	}
	for i, d := range dst {
		n, ok := ToInt(args[i])
		if !ok {
			return Malformedf("%s arg %d is %T, want integer", name, i, args[i])
		}
		*d = n
	}
	return nil
}

func decodeGridResize(args []interface{}) (RedrawEvent, error) {
	var ev GridResize
	if err := ints("grid_resize", args, &ev.Grid, &ev.Width, &ev.Height); err != nil {
		return nil, err
	}
	if ev.Width < 0 || ev.Height < 0 {
		return nil, Malformedf("grid_resize to %dx%d", ev.Width, ev.Height)
	}
	return ev, nil
}

func decodeGridClear(args []interface{}) (RedrawEvent, error) {
	var ev GridClear
	if err := ints("grid_clear", args, &ev.Grid); err != nil {
		return nil, err
	}
	return ev, nil
}

func decodeGridDestroy(args []interface{}) (RedrawEvent, error) {
	var ev GridDestroy
	if err := ints("grid_destroy", args, &ev.Grid); err != nil {
		return nil, err
	}
	return ev, nil
}

func decodeGridCursorGoto(args []interface{}) (RedrawEvent, error) {
	var ev GridCursorGoto
	if err := ints("grid_cursor_goto", args, &ev.Grid, &ev.Row, &ev.Col); err != nil {
		return nil, err
	}
	return ev, nil
}

func decodeGridScroll(args []interface{}) (RedrawEvent, error) {
	var ev GridScroll
	if err := ints("grid_scroll", args[:min(len(args), 6)], &ev.Grid, &ev.Top, &ev.Bottom, &ev.Left, &ev.Right, &ev.Rows); err != nil {
		return nil, err
	}
	if len(args) > 6 {
		cols, ok := ToInt(args[6])
		if !ok {
			return nil, Malformedf("grid_scroll cols is %T", args[6])
		}
		ev.Cols = cols
	}
	return ev, nil
}

func decodeGridLine(args []interface{}) (RedrawEvent, error) {
	var ev GridLine
	if err := ints("grid_line", args, &ev.Grid, &ev.Row, &ev.ColStart); err != nil {
		return nil, err
	}
	if len(args) < 4 {
		return nil, Malformedf("grid_line without cells")
	}
	rawCells, ok := ToArray(args[3])
	if !ok {
		return nil, Malformedf("grid_line cells are %T", args[3])
	}
	ev.Cells = make([]LineCell, 0, len(rawCells))
	for i, rc := range rawCells {
		parts, ok := ToArray(rc)
		if !ok {
			return nil, Malformedf("grid_line cell %d is %T", i, rc)
		}
		cell := LineCell{Repeat: 1}
		if len(parts) > 0 {
			text, ok := ToString(parts[0])
			if !ok {
				return nil, Malformedf("grid_line cell %d text is %T", i, parts[0])
			}
			cell.Text, cell.HasText = text, true
		}
		if len(parts) > 1 {
			hl, ok := ToInt(parts[1])
			if !ok || hl < 0 {
				return nil, Malformedf("grid_line cell %d hl is %v", i, parts[1])
			}
			cell.HlID, cell.HasHl = hl, true
		}
		if len(parts) > 2 {
			repeat, ok := ToInt(parts[2])
			if !ok || repeat < 0 {
				return nil, Malformedf("grid_line cell %d repeat is %v", i, parts[2])
			}
			cell.Repeat = repeat
		}
		ev.Cells = append(ev.Cells, cell)
	}
	if len(args) > 4 {
		ev.Wrap, _ = ToBool(args[4])
	}
	return ev, nil
}

func decodeHlAttrDefine(args []interface{}) (RedrawEvent, error) {
	var ev HlAttrDefine
	if err := ints("hl_attr_define", args, &ev.ID); err != nil {
		return nil, err
	}
	if ev.ID < 0 {
		return nil, Malformedf("hl_attr_define id %d", ev.ID)
	}
	ev.Attrs = DefaultHlAttrs()
	if len(args) < 2 {
		return ev, nil
	}
	rgb, ok := ToMap(args[1])
	if !ok {
		return nil, Malformedf("hl_attr_define attrs are %T", args[1])
	}
	colour := func(key string, dst *int) {
		if v, ok := rgb[key]; ok {
			if n, ok := ToInt(v); ok {
				*dst = n
			}
		}
	}
	flag := func(key string, dst *bool) {
		if v, ok := rgb[key]; ok {
			*dst, _ = ToBool(v)
		}
	}
	colour("foreground", &ev.Attrs.Foreground)
	colour("background", &ev.Attrs.Background)
	colour("special", &ev.Attrs.Special)
	colour("blend", &ev.Attrs.Blend)
	flag("reverse", &ev.Attrs.Reverse)
	flag("italic", &ev.Attrs.Italic)
	flag("bold", &ev.Attrs.Bold)
	flag("strikethrough", &ev.Attrs.Strikethrough)
	flag("underline", &ev.Attrs.Underline)
	flag("undercurl", &ev.Attrs.Undercurl)
	flag("underdouble", &ev.Attrs.Underdouble)
	flag("underdotted", &ev.Attrs.Underdotted)
	flag("underdashed", &ev.Attrs.Underdashed)
	return ev, nil
}

func decodeDefaultColorsSet(args []interface{}) (RedrawEvent, error) {
	var ev DefaultColorsSet
	if err := ints("default_colors_set", args, &ev.Foreground, &ev.Background, &ev.Special); err != nil {
		return nil, err
	}
	return ev, nil
}

func decodeHlGroupSet(args []interface{}) (RedrawEvent, error) {
	if len(args) < 2 {
		return nil, Malformedf("hl_group_set has %d args", len(args))
	}
	name, ok := ToString(args[0])
	if !ok {
		return nil, Malformedf("hl_group_set name is %T", args[0])
	}
	id, ok := ToInt(args[1])
	if !ok {
		return nil, Malformedf("hl_group_set id is %T", args[1])
	}
	return HlGroupSet{Name: name, ID: id}, nil
}

func decodeModeInfoSet(args []interface{}) (RedrawEvent, error) {
	if len(args) < 2 {
		return nil, Malformedf("mode_info_set has %d args", len(args))
	}
	var ev ModeInfoSet
	ev.CursorStyleEnabled, _ = ToBool(args[0])
	list, ok := ToArray(args[1])
	if !ok {
		return nil, Malformedf("mode_info_set list is %T", args[1])
	}
	for _, raw := range list {
		m, ok := ToMap(raw)
		if !ok {
			return nil, Malformedf("mode_info entry is %T", raw)
		}
		info := ModeInfo{}
		info.Name, _ = ToString(m["name"])
		info.ShortName, _ = ToString(m["short_name"])
		info.CursorShape, _ = ToString(m["cursor_shape"])
		info.CellPercentage, _ = ToInt(m["cell_percentage"])
		info.AttrID, _ = ToInt(m["attr_id"])
		info.Blinkon, _ = ToInt(m["blinkon"])
		ev.Modes = append(ev.Modes, info)
	}
	return ev, nil
}

func decodeModeChange(args []interface{}) (RedrawEvent, error) {
	if len(args) < 2 {
		return nil, Malformedf("mode_change has %d args", len(args))
	}
	mode, ok := ToString(args[0])
	if !ok {
		return nil, Malformedf("mode_change mode is %T", args[0])
	}
	idx, ok := ToInt(args[1])
	if !ok {
		return nil, Malformedf("mode_change index is %T", args[1])
	}
	return ModeChange{Mode: mode, Index: idx}, nil
}

func decodeOptionSet(args []interface{}) (RedrawEvent, error) {
	if len(args) < 2 {
		return nil, Malformedf("option_set has %d args", len(args))
	}
	name, ok := ToString(args[0])
	if !ok {
		return nil, Malformedf("option_set name is %T", args[0])
	}
	return OptionSet{Name: name, Value: args[1]}, nil
}

func decodeSetTitle(args []interface{}) (RedrawEvent, error) {
	if len(args) < 1 {
		return nil, Malformedf("set_title without title")
	}
	title, ok := ToString(args[0])
	if !ok {
		return nil, Malformedf("set_title title is %T", args[0])
	}
	return SetTitle{Title: title}, nil
}

func decodeSetIcon(args []interface{}) (RedrawEvent, error) {
	if len(args) < 1 {
		return nil, Malformedf("set_icon without icon")
	}
	icon, ok := ToString(args[0])
	if !ok {
		return nil, Malformedf("set_icon icon is %T", args[0])
	}
	return SetIcon{Icon: icon}, nil
}

func decodeWinPos(args []interface{}) (RedrawEvent, error) {
	var ev WinPos
	if err := ints("win_pos", args, &ev.Grid, &ev.Win, &ev.StartRow, &ev.StartCol, &ev.Width, &ev.Height); err != nil {
		return nil, err
	}
	return ev, nil
}

func decodeWinFloatPos(args []interface{}) (RedrawEvent, error) {
	var ev WinFloatPos
	if err := ints("win_float_pos", args, &ev.Grid, &ev.Win); err != nil {
		return nil, err
	}
	if len(args) < 6 {
		return nil, Malformedf("win_float_pos has %d args", len(args))
	}
	var ok bool
	if ev.Anchor, ok = ToString(args[2]); !ok {
		return nil, Malformedf("win_float_pos anchor is %T", args[2])
	}
	if ev.AnchorGrid, ok = ToInt(args[3]); !ok {
		return nil, Malformedf("win_float_pos anchor grid is %T", args[3])
	}
	if ev.AnchorRow, ok = ToFloat(args[4]); !ok {
		return nil, Malformedf("win_float_pos anchor row is %T", args[4])
	}
	if ev.AnchorCol, ok = ToFloat(args[5]); !ok {
		return nil, Malformedf("win_float_pos anchor col is %T", args[5])
	}
	ev.Focusable = true
	if len(args) > 6 {
		ev.Focusable, _ = ToBool(args[6])
	}
	if len(args) > 7 {
		ev.ZIndex, _ = ToInt(args[7])
	}
	return ev, nil
}

func decodeWinHide(args []interface{}) (RedrawEvent, error) {
	var ev WinHide
	if err := ints("win_hide", args, &ev.Grid); err != nil {
		return nil, err
	}
	return ev, nil
}

func decodeWinClose(args []interface{}) (RedrawEvent, error) {
	var ev WinClose
	if err := ints("win_close", args, &ev.Grid); err != nil {
		return nil, err
	}
	return ev, nil
}

func decodeWinViewport(args []interface{}) (RedrawEvent, error) {
	var ev WinViewport
	if err := ints("win_viewport", args, &ev.Grid, &ev.Win, &ev.TopLine, &ev.BotLine, &ev.CurLine, &ev.CurCol); err != nil {
		return nil, err
	}
	if len(args) > 6 {
		ev.LineCount, _ = ToInt(args[6])
	}
	return ev, nil
}
