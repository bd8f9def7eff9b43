// Package compose flattens a canvas description into pixels. Layers are drawn
// in a fixed order: white base, background, packshots, text. Reordering them
// changes the output and downstream consumers depend on the exact layout.
package compose

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"
	"strings"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
	_ "golang.org/x/image/webp"

	"adora/internal/domain"
)

// lineSpacingPx matches the gap the editor preview leaves between lines.
const lineSpacingPx = 4

var (
	opaqueWhite = color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	opaqueBlack = color.NRGBA{A: 0xff}
)

// Layer is a resolved image reference. Nil Data means the resolver could not
// find the reference.
type Layer struct {
	Ref  string
	Data []byte
}

// Layers carries the resolved bytes for one render.
type Layers struct {
	Background *Layer
	Packshots  []Layer
}

// Result is a flattened, fully opaque raster plus the degradations that
// happened while producing it.
type Result struct {
	Image    *image.RGBA
	Warnings []domain.ValidationIssue
}

// Engine renders canvases. It holds no per-render state and may be shared.
type Engine struct {
	fonts FontResolver
}

// NewEngine builds an engine. A nil resolver uses the embedded Go font.
func NewEngine(fonts FontResolver) *Engine {
	if fonts == nil {
		fonts = NewGoFontResolver()
	}
	return &Engine{fonts: fonts}
}

// Render draws canvas with the resolved layers. Only invalid dimensions are
// rejected; every per-layer failure is reported as a warning.
func (e *Engine) Render(canvas domain.CreativeCanvas, layers Layers) (Result, error) {
	w, h := canvas.Width, canvas.Height
	if w <= 0 || h <= 0 {
		return Result{}, fmt.Errorf("%w: dimensions must be positive, got %dx%d", domain.ErrInvalidCanvas, w, h)
	}
	var warnings []domain.ValidationIssue
	warn := func(code domain.IssueCode, format string, args ...any) {
		warnings = append(warnings, domain.ValidationIssue{
			Code:     code,
			Message:  fmt.Sprintf(format, args...),
			Severity: domain.SeverityWarning,
		})
	}

	base := imaging.New(w, h, opaqueWhite)

	if bg := layers.Background; bg != nil && len(bg.Data) > 0 {
		img, err := decode(bg.Data)
		if err != nil {
			warn(domain.CodeBackgroundUnusable, "Background %q skipped: %v.", bg.Ref, err)
		} else {
			base = imaging.Overlay(base, imaging.Resize(img, w, h, imaging.Lanczos), image.Pt(0, 0), 1.0)
		}
	}

	pw, ph := w/2, h/2
	anchor := image.Pt(w/4, h*2/5)
	for i, ps := range layers.Packshots {
		if len(ps.Data) == 0 {
			warn(domain.CodePackshotUnusable, "Packshot %d (%q) skipped: not found.", i+1, ps.Ref)
			continue
		}
		if pw < 1 || ph < 1 {
			warn(domain.CodePackshotUnusable, "Packshot %d (%q) skipped: canvas too small.", i+1, ps.Ref)
			continue
		}
		img, err := decode(ps.Data)
		if err != nil {
			warn(domain.CodePackshotUnusable, "Packshot %d (%q) skipped: %v.", i+1, ps.Ref, err)
			continue
		}
		base = imaging.Overlay(base, imaging.Resize(img, pw, ph, imaging.Lanczos), anchor, 1.0)
	}

	faces := make(map[int]font.Face)
	for _, tb := range canvas.TextBlocks {
		face, ok := faces[tb.FontSize]
		if !ok {
			var degraded bool
			face, degraded = e.fonts.Face(tb.FontSize)
			if degraded {
				warn(domain.CodeTextDegraded, "Text %q drawn with fallback font (requested %dpx).", tb.ID, tb.FontSize)
			}
			faces[tb.FontSize] = face
		}
		col, err := domain.ParseHexColor(tb.Color)
		if err != nil {
			warn(domain.CodeTextDegraded, "Text %q drawn in black: %v.", tb.ID, err)
			col = opaqueBlack
		}
		drawText(base, face, col, tb.X, tb.Y, tb.Text)
	}
	for _, face := range faces {
		_ = face.Close()
	}

	return Result{Image: flatten(base), Warnings: warnings}, nil
}

func decode(data []byte) (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, fmt.Errorf("decode image: empty bounds")
	}
	return img, nil
}

// drawText places the top-left corner of the first line's ascent box at (x, y).
func drawText(dst draw.Image, face font.Face, col color.Color, x, y int, text string) {
	metrics := face.Metrics()
	ascent := metrics.Ascent.Ceil()
	lineHeight := metrics.Height.Ceil() + lineSpacingPx
	d := &font.Drawer{Dst: dst, Src: image.NewUniform(col), Face: face}
	for i, line := range strings.Split(text, "\n") {
		d.Dot = fixed.P(x, y+ascent+i*lineHeight)
		d.DrawString(line)
	}
}

// flatten composites src over opaque white into an RGBA raster.
func flatten(src image.Image) *image.RGBA {
	b := src.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), image.NewUniform(opaqueWhite), image.Point{}, draw.Src)
	draw.Draw(out, out.Bounds(), src, b.Min, draw.Over)
	return out
}
