// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: internal/runtime/client/colors.go
// Summary: Highlight attribute to tcell style conversion.
// Usage: Shared helpers for converting packed RGB values and highlight
// attributes to tcell colors and styles.

package clientruntime

import (
	"github.com/gdamore/tcell/v2"

	"github.com/framegrace/texelnvim/protocol"
)

// colorFromRGB converts a packed 24-bit RGB value to a tcell color.
// Format: 0xRRGGBB. Negative values mean "terminal default".
func colorFromRGB(rgb int) tcell.Color {
	if rgb < 0 {
		return tcell.ColorDefault
	}
	r := int32((rgb >> 16) & 0xFF)
	g := int32((rgb >> 8) & 0xFF)
	b := int32(rgb & 0xFF)
	return tcell.NewRGBColor(r, g, b)
}

// styleFromAttrs maps resolved highlight attributes to a tcell style.
// Reverse is applied by swapping colours so it survives default colours.
func styleFromAttrs(a protocol.HlAttrs) tcell.Style {
	fg := colorFromRGB(a.Foreground)
	bg := colorFromRGB(a.Background)
	if a.Reverse {
		fg, bg = bg, fg
	}
	style := tcell.StyleDefault.
		Foreground(fg).
		Background(bg).
		Bold(a.Bold).
		Italic(a.Italic).
		StrikeThrough(a.Strikethrough)

	switch {
	case a.Undercurl:
		style = style.Underline(tcell.UnderlineStyleCurly)
	case a.Underdouble:
		style = style.Underline(tcell.UnderlineStyleDouble)
	case a.Underdotted:
		style = style.Underline(tcell.UnderlineStyleDotted)
	case a.Underdashed:
		style = style.Underline(tcell.UnderlineStyleDashed)
	case a.Underline:
		style = style.Underline(true)
	}
	if a.Special >= 0 && (a.Undercurl || a.Underdouble || a.Underdotted || a.Underdashed || a.Underline) {
		style = style.Underline(colorFromRGB(a.Special))
	}
	// Reverse with both colours defaulted cannot be expressed by swapping.
	if a.Reverse && a.Foreground < 0 && a.Background < 0 {
		style = style.Reverse(true)
	}
	return style
}

// blendColor mixes overlay into base; intensity 1 yields overlay.
func blendColor(base, overlay tcell.Color, intensity float32) tcell.Color {
	if !overlay.Valid() || intensity <= 0 {
		return base
	}
	if !base.Valid() {
		return overlay
	}
	br, bg, bb := base.RGB()
	or, og, ob := overlay.RGB()
	blend := func(bc, oc int32) int32 {
		return int32(float32(bc)*(1-intensity) + float32(oc)*intensity)
	}
	return tcell.NewRGBColor(blend(br, or), blend(bg, og), blend(bb, ob))
}
