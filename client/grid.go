// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: client/grid.go
// Summary: Cell grids addressed by the editor's grid ids.
// Usage: The model owns mutable grids; frames expose read-only copies.

package client

import (
	"strings"

	"github.com/framegrace/texelnvim/protocol"
)

// Cell is one display unit of a grid. Text holds a single grapheme, or is
// empty for the right half of a double-width glyph. HlID indexes the
// frame's highlight table.
type Cell struct {
	Text string
	HlID int
}

var blankCell = Cell{Text: " "}

// Grid is a rectangular cell buffer. Grids reachable from a published
// Frame are immutable; the model copies a grid before changing it.
type Grid struct {
	ID     int
	Width  int
	Height int
	rows   [][]Cell
}

func newGrid(id, width, height int) *Grid {
	g := &Grid{ID: id, Width: width, Height: height, rows: make([][]Cell, height)}
	for r := range g.rows {
		g.rows[r] = blankRow(width)
	}
	return g
}

func blankRow(width int) []Cell {
	row := make([]Cell, width)
	for i := range row {
		row[i] = blankCell
	}
	return row
}

// Cell returns the cell at row, col, or a blank cell when out of range.
func (g *Grid) Cell(row, col int) Cell {
	if g == nil || row < 0 || row >= g.Height || col < 0 || col >= g.Width {
		return blankCell
	}
	return g.rows[row][col]
}

// RowCells returns the cells of row. Callers must not modify the slice.
func (g *Grid) RowCells(row int) []Cell {
	if g == nil || row < 0 || row >= g.Height {
		return nil
	}
	return g.rows[row]
}

// Rows returns the grid text in row order with trailing blanks trimmed.
func (g *Grid) Rows() []string {
	if g == nil {
		return nil
	}
	out := make([]string, g.Height)
	for r, row := range g.rows {
		var b strings.Builder
		for _, c := range row {
			b.WriteString(c.Text)
		}
		out[r] = trimRightSpaces(b.String())
	}
	return out
}

func (g *Grid) clone() *Grid {
	cp := &Grid{ID: g.ID, Width: g.Width, Height: g.Height, rows: make([][]Cell, g.Height)}
	for r, row := range g.rows {
		cp.rows[r] = append([]Cell(nil), row...)
	}
	return cp
}

// resize keeps the overlapping region and blanks everything new.
func (g *Grid) resize(width, height int) {
	rows := make([][]Cell, height)
	for r := range rows {
		row := blankRow(width)
		if r < g.Height {
			copy(row, g.rows[r])
		}
		rows[r] = row
	}
	g.rows, g.Width, g.Height = rows, width, height
}

func (g *Grid) clear() {
	for _, row := range g.rows {
		for i := range row {
			row[i] = blankCell
		}
	}
}

// putLine expands the run-length encoded cells of a grid_line event.
// Missing text or highlight repeats the previous cell of the same event.
func (g *Grid) putLine(ev protocol.GridLine, defined func(int) bool) error {
	if ev.Row < 0 || ev.Row >= g.Height {
		return protocol.Malformedf("grid_line row %d outside grid %d (height %d)", ev.Row, g.ID, g.Height)
	}
	if ev.ColStart < 0 {
		return protocol.Malformedf("grid_line col %d", ev.ColStart)
	}
	end := ev.ColStart
	for _, c := range ev.Cells {
		end += c.Repeat
	}
	if end > g.Width {
		return protocol.Malformedf("grid_line on grid %d row %d ends at col %d past width %d", g.ID, ev.Row, end, g.Width)
	}

	row := g.rows[ev.Row]
	col := ev.ColStart
	prev := Cell{Text: " "}
	for _, c := range ev.Cells {
		if c.HasText {
			prev.Text = c.Text
		}
		if c.HasHl {
			if !defined(c.HlID) {
				return protocol.Malformedf("grid_line references undefined highlight %d", c.HlID)
			}
			prev.HlID = c.HlID
		}
		for i := 0; i < c.Repeat; i++ {
			row[col] = prev
			col++
		}
	}
	return nil
}

// scroll shifts the region [top,bot) x [left,right) by rows. Positive rows
// move content up. Vacated rows of the region become blank.
func (g *Grid) scroll(ev protocol.GridScroll) error {
	if ev.Top < 0 || ev.Bottom > g.Height || ev.Top > ev.Bottom ||
		ev.Left < 0 || ev.Right > g.Width || ev.Left > ev.Right {
		return protocol.Malformedf("grid_scroll region [%d,%d)x[%d,%d) outside grid %d (%dx%d)",
			ev.Top, ev.Bottom, ev.Left, ev.Right, g.ID, g.Width, g.Height)
	}
	if ev.Cols != 0 {
		return protocol.Malformedf("grid_scroll cols must be 0, got %d", ev.Cols)
	}
	height := ev.Bottom - ev.Top
	n := ev.Rows
	if n >= height || -n >= height {
		for r := ev.Top; r < ev.Bottom; r++ {
			fillBlank(g.rows[r][ev.Left:ev.Right])
		}
		return nil
	}
	switch {
	case n > 0:
		for r := ev.Top; r < ev.Bottom-n; r++ {
			copy(g.rows[r][ev.Left:ev.Right], g.rows[r+n][ev.Left:ev.Right])
		}
		for r := ev.Bottom - n; r < ev.Bottom; r++ {
			fillBlank(g.rows[r][ev.Left:ev.Right])
		}
	case n < 0:
		n = -n
		for r := ev.Bottom - 1; r >= ev.Top+n; r-- {
			copy(g.rows[r][ev.Left:ev.Right], g.rows[r-n][ev.Left:ev.Right])
		}
		for r := ev.Top; r < ev.Top+n; r++ {
			fillBlank(g.rows[r][ev.Left:ev.Right])
		}
	}
	return nil
}

func fillBlank(cells []Cell) {
	for i := range cells {
		cells[i] = blankCell
	}
}

func trimRightSpaces(s string) string {
	return strings.TrimRight(s, " ")
}
