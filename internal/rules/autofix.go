package rules

import (
	"fmt"
	"image/color"

	"adora/internal/domain"
)

var black = color.NRGBA{A: 0xff}

// FixResult is the outcome of AutoFix: the corrected canvas, one description
// per applied fix and the validation result of the corrected canvas.
type FixResult struct {
	Canvas     domain.CreativeCanvas   `json:"canvas"`
	Validation domain.ValidationResult `json:"validation"`
	Applied    []string                `json:"applied_fixes"`
}

// AutoFix returns a corrected copy of canvas and re-validates it. The input is
// never modified. Fixes are applied in check order so the descriptions line up
// with the issues they resolve.
func (e *Engine) AutoFix(canvas domain.CreativeCanvas) FixResult {
	cfg, _ := e.registry.Lookup(canvas.Format)
	fixed := canvas.Clone()
	applied := []string{}

	for i := range fixed.TextBlocks {
		tb := &fixed.TextBlocks[i]
		if tb.Y < cfg.TopSafeZonePx {
			applied = append(applied, fmt.Sprintf("Moved text '%s' below top safe zone (y %d -> %d).", tb.ID, tb.Y, cfg.TopSafeZonePx))
			tb.Y = cfg.TopSafeZonePx
		}
	}
	for i := range fixed.TextBlocks {
		tb := &fixed.TextBlocks[i]
		if tb.FontSize < cfg.MinFontPx {
			applied = append(applied, fmt.Sprintf("Raised font of text '%s' to %dpx (was %dpx).", tb.ID, cfg.MinFontPx, tb.FontSize))
			tb.FontSize = cfg.MinFontPx
		}
	}
	if n := len(fixed.PackshotIDs); n > cfg.MaxPackshots {
		fixed.PackshotIDs = fixed.PackshotIDs[:cfg.MaxPackshots]
		applied = append(applied, fmt.Sprintf("Removed %d packshots to respect limit of %d.", n-cfg.MaxPackshots, cfg.MaxPackshots))
	}
	if backdrop, ok := backdropColor(fixed); ok {
		for i := range fixed.TextBlocks {
			tb := &fixed.TextBlocks[i]
			fg, err := domain.ParseHexColor(tb.Color)
			if err != nil || domain.ContrastRatio(fg, backdrop) >= cfg.MinContrastRatio {
				continue
			}
			replacement := "#000000"
			if domain.ContrastRatio(white, backdrop) > domain.ContrastRatio(black, backdrop) {
				replacement = "#FFFFFF"
			}
			applied = append(applied, fmt.Sprintf("Changed color of text '%s' from %s to %s for contrast.", tb.ID, tb.Color, replacement))
			tb.Color = replacement
		}
	}
	if w, h, ok := e.registry.CanonicalSize(fixed.Format); ok && (fixed.Width != w || fixed.Height != h) {
		applied = append(applied, fmt.Sprintf("Resized canvas from %dx%d to %dx%d for %s.", fixed.Width, fixed.Height, w, h, fixed.Format))
		fixed.Width, fixed.Height = w, h
	}

	return FixResult{Canvas: fixed, Validation: e.Validate(fixed), Applied: applied}
}
