// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package clientruntime

import (
	"testing"

	"github.com/gdamore/tcell/v2"

	"github.com/framegrace/texelnvim/protocol"
)

func TestColorFromRGB(t *testing.T) {
	tests := []struct {
		name  string
		rgb   int
		wantR int32
		wantG int32
		wantB int32
	}{
		{name: "white", rgb: 0xffffff, wantR: 255, wantG: 255, wantB: 255},
		{name: "black", rgb: 0x000000, wantR: 0, wantG: 0, wantB: 0},
		{name: "red", rgb: 0xff0000, wantR: 255},
		{name: "mixed color", rgb: 0xff5733, wantR: 255, wantG: 87, wantB: 51},
		{name: "gray", rgb: 0x808080, wantR: 128, wantG: 128, wantB: 128},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, g, b := colorFromRGB(tt.rgb).RGB()
			if r != tt.wantR || g != tt.wantG || b != tt.wantB {
				t.Errorf("colorFromRGB(0x%06x) RGB = (%d, %d, %d), want (%d, %d, %d)",
					tt.rgb, r, g, b, tt.wantR, tt.wantG, tt.wantB)
			}
		})
	}

	if colorFromRGB(-1) != tcell.ColorDefault {
		t.Errorf("colorFromRGB(-1) should be the terminal default")
	}
}

func TestStyleFromAttrs(t *testing.T) {
	red, blue := 0xff0000, 0x0000ff

	t.Run("colours and attributes", func(t *testing.T) {
		style := styleFromAttrs(protocol.HlAttrs{Foreground: red, Background: blue, Special: -1, Bold: true, Italic: true})
		fg, bg, attrs := style.Decompose()
		if fg != colorFromRGB(red) || bg != colorFromRGB(blue) {
			t.Errorf("colours = %v/%v", fg, bg)
		}
		if attrs&tcell.AttrBold == 0 || attrs&tcell.AttrItalic == 0 {
			t.Errorf("attrs = %v, want bold and italic", attrs)
		}
	})

	t.Run("reverse swaps colours", func(t *testing.T) {
		style := styleFromAttrs(protocol.HlAttrs{Foreground: red, Background: blue, Special: -1, Reverse: true})
		fg, bg, attrs := style.Decompose()
		if fg != colorFromRGB(blue) || bg != colorFromRGB(red) {
			t.Errorf("colours = %v/%v, want swapped", fg, bg)
		}
		if attrs&tcell.AttrReverse != 0 {
			t.Errorf("reverse attribute should not be set when colours are known")
		}
	})

	t.Run("reverse without colours", func(t *testing.T) {
		style := styleFromAttrs(protocol.HlAttrs{Foreground: -1, Background: -1, Special: -1, Reverse: true})
		_, _, attrs := style.Decompose()
		if attrs&tcell.AttrReverse == 0 {
			t.Errorf("reverse attribute expected when both colours are default")
		}
	})

	t.Run("strikethrough and underline", func(t *testing.T) {
		style := styleFromAttrs(protocol.HlAttrs{Foreground: -1, Background: -1, Special: -1, Strikethrough: true, Underline: true})
		_, _, attrs := style.Decompose()
		if attrs&tcell.AttrStrikeThrough == 0 {
			t.Errorf("strikethrough expected")
		}
		if attrs&tcell.AttrUnderline == 0 {
			t.Errorf("underline expected")
		}
	})
}

func TestBlendColor(t *testing.T) {
	tests := []struct {
		name      string
		base      tcell.Color
		overlay   tcell.Color
		intensity float32
		wantR     int32
		wantG     int32
		wantB     int32
	}{
		{
			name:      "zero intensity returns base",
			base:      tcell.NewRGBColor(255, 0, 0),
			overlay:   tcell.NewRGBColor(0, 0, 255),
			intensity: 0.0,
			wantR:     255,
		},
		{
			name:      "full intensity returns overlay",
			base:      tcell.NewRGBColor(255, 0, 0),
			overlay:   tcell.NewRGBColor(0, 0, 255),
			intensity: 1.0,
			wantB:     255,
		},
		{
			name:      "half intensity blends colors",
			base:      tcell.NewRGBColor(255, 0, 0),
			overlay:   tcell.NewRGBColor(0, 0, 255),
			intensity: 0.5,
			wantR:     127,
			wantB:     127,
		},
		{
			name:      "invalid overlay returns base",
			base:      tcell.NewRGBColor(255, 128, 64),
			overlay:   tcell.ColorDefault,
			intensity: 0.5,
			wantR:     255,
			wantG:     128,
			wantB:     64,
		},
		{
			name:      "invalid base returns overlay",
			base:      tcell.ColorDefault,
			overlay:   tcell.NewRGBColor(100, 150, 200),
			intensity: 0.5,
			wantR:     100,
			wantG:     150,
			wantB:     200,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, g, b := blendColor(tt.base, tt.overlay, tt.intensity).RGB()
			if r != tt.wantR || g != tt.wantG || b != tt.wantB {
				t.Errorf("blendColor() RGB = (%d, %d, %d), want (%d, %d, %d)",
					r, g, b, tt.wantR, tt.wantG, tt.wantB)
			}
		})
	}
}
