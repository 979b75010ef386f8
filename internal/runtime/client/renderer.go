// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: internal/runtime/client/renderer.go
// Summary: Rendering pipeline for the client runtime.
// Usage: Composites the grids of a frame bottom to top and draws them to a
// tcell screen, then places the cursor.

package clientruntime

import (
	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"
	"github.com/rivo/uniseg"

	"github.com/framegrace/texelnvim/client"
	"github.com/framegrace/texelnvim/protocol"
)

type screenCell struct {
	text  string
	style tcell.Style
}

func render(state *uiState, screen tcell.Screen) {
	width, height := screen.Size()
	base := state.style(0)
	screen.SetStyle(base)
	screen.Clear()

	f := state.frame
	if f == nil || width <= 0 || height <= 0 {
		screen.HideCursor()
		screen.Show()
		return
	}

	buffer := make([][]screenCell, height)
	for y := range buffer {
		row := make([]screenCell, width)
		for x := range row {
			row[x] = screenCell{text: " ", style: base}
		}
		buffer[y] = row
	}

	for _, p := range f.Windows {
		g := f.Grid(p.Grid)
		if g == nil {
			continue
		}
		for rowIdx := 0; rowIdx < g.Height; rowIdx++ {
			targetY := p.Row + rowIdx
			if targetY < 0 || targetY >= height {
				continue
			}
			for col, cell := range g.RowCells(rowIdx) {
				targetX := p.Col + col
				if targetX < 0 || targetX >= width {
					continue
				}
				style := state.style(cell.HlID)
				if p.Float {
					if blend := f.Highlights.Lookup(cell.HlID).Blend; blend > 0 {
						style = blendOver(style, buffer[targetY][targetX].style, blend)
					}
				}
				buffer[targetY][targetX] = screenCell{text: cell.Text, style: style}
			}
		}
	}

	for y, row := range buffer {
		for x, cell := range row {
			if cell.text == "" {
				// Right half of a wide glyph drawn at x-1.
				continue
			}
			mainc, comb := splitCell(cell.text)
			if runewidth.StringWidth(cell.text) > 1 && x+1 >= width {
				mainc, comb = ' ', nil
			}
			screen.SetContent(x, y, mainc, comb, cell.style)
		}
	}

	placeCursor(f, screen, width, height)
	screen.Show()
}

// splitCell turns the grapheme of a cell into tcell's base rune plus
// combining runes. Anything past the first cluster is dropped.
func splitCell(text string) (rune, []rune) {
	cluster, _, _, _ := uniseg.FirstGraphemeClusterInString(text, -1)
	runes := []rune(cluster)
	if len(runes) == 0 {
		return ' ', nil
	}
	if len(runes) == 1 {
		return runes[0], nil
	}
	return runes[0], runes[1:]
}

// blendOver mixes the background of a floating cell with what is below
// it. blend is 0..100; 100 shows the lower background unchanged.
func blendOver(style, below tcell.Style, blend int) tcell.Style {
	if blend > 100 {
		blend = 100
	}
	_, bg, _ := style.Decompose()
	_, under, _ := below.Decompose()
	return style.Background(blendColor(bg, under, float32(blend)/100))
}

func placeCursor(f *client.Frame, screen tcell.Screen, width, height int) {
	if f.Busy {
		screen.HideCursor()
		return
	}
	p, ok := f.Placement(f.Cursor.Grid)
	if !ok {
		screen.HideCursor()
		return
	}
	x := p.Col + f.Cursor.Col
	y := p.Row + f.Cursor.Row
	if x < 0 || x >= width || y < 0 || y >= height {
		screen.HideCursor()
		return
	}
	if f.CursorStyleEnabled {
		if info, ok := f.CurrentModeInfo(); ok {
			screen.SetCursorStyle(cursorStyle(info))
		}
	}
	screen.ShowCursor(x, y)
}

func cursorStyle(info protocol.ModeInfo) tcell.CursorStyle {
	blink := info.Blinkon > 0
	switch info.CursorShape {
	case "horizontal":
		if blink {
			return tcell.CursorStyleBlinkingUnderline
		}
		return tcell.CursorStyleSteadyUnderline
	case "vertical":
		if blink {
			return tcell.CursorStyleBlinkingBar
		}
		return tcell.CursorStyleSteadyBar
	default:
		if blink {
			return tcell.CursorStyleBlinkingBlock
		}
		return tcell.CursorStyleSteadyBlock
	}
}
