package background

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

const (
	defaultSyntheticWidth  = 1080
	defaultSyntheticHeight = 1080
	// maxSyntheticSide keeps placeholder renders cheap.
	maxSyntheticSide = 4096
)

// SyntheticGenerator renders a deterministic striped placeholder from the
// prompt. The same request always yields the same bytes.
type SyntheticGenerator struct {
	logger zerolog.Logger
}

// NewSyntheticGenerator constructs the placeholder generator.
func NewSyntheticGenerator(logger zerolog.Logger) *SyntheticGenerator {
	return &SyntheticGenerator{logger: logger}
}

func (g *SyntheticGenerator) String() string { return "synthetic" }

// Generate fulfils the Generator interface.
func (g *SyntheticGenerator) Generate(ctx context.Context, req Request) (*Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	width, height := clampSide(req.Width, defaultSyntheticWidth), clampSide(req.Height, defaultSyntheticHeight)
	seed := deterministicSeed(strings.TrimSpace(req.Prompt), width, height)
	data, err := renderSyntheticImage(width, height, seed)
	if err != nil {
		return nil, err
	}
	g.logger.Debug().
		Str("request_id", req.RequestID).
		Str("seed", seed).
		Int("width", width).
		Int("height", height).
		Msg("background: generated synthetic image")
	return &Image{Data: data, MIME: "image/png", Width: width, Height: height, Source: g.String()}, nil
}

func clampSide(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	if v > maxSyntheticSide {
		return maxSyntheticSide
	}
	return v
}

// renderSyntheticImage paints seed-derived stripes over a solid fill.
func renderSyntheticImage(width, height int, seed string) ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	base := colorFromSeed(seed, 0)
	accent := colorFromSeed(seed, 1)
	draw.Draw(img, img.Bounds(), &image.Uniform{base}, image.Point{}, draw.Src)

	stripeHeight := max(32, height/12)
	for y := 0; y < height; y += stripeHeight * 2 {
		stripe := image.Rect(0, y, width, min(height, y+stripeHeight))
		draw.Draw(img, stripe, &image.Uniform{accent}, image.Point{}, draw.Over)
	}

	hatch := colorFromSeed(seed, 2)
	step := max(16, width/32)
	for x0 := 0; x0 < width; x0 += step {
		for y := 0; y < height && x0+y < width; y++ {
			img.SetRGBA(x0+y, y, hatch)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode synthetic image: %w", err)
	}
	return buf.Bytes(), nil
}

// colorFromSeed reads six hex digits of seed starting at shift*6.
func colorFromSeed(seed string, shift int) color.RGBA {
	if seed == "" {
		seed = "000000"
	}
	doubled := seed + seed
	start := (shift * 6) % len(seed)
	segment := doubled[start : start+6]
	return color.RGBA{R: hexByte(segment[0:2]), G: hexByte(segment[2:4]), B: hexByte(segment[4:6]), A: 0xff}
}

func hexByte(s string) uint8 {
	v, err := strconv.ParseUint(s, 16, 8)
	if err != nil {
		return 0
	}
	return uint8(v)
}

func deterministicSeed(parts ...any) string {
	hasher := sha256.New()
	for _, part := range parts {
		fmt.Fprintf(hasher, "%v|", part)
	}
	return hex.EncodeToString(hasher.Sum(nil))[:18]
}

var _ Generator = (*SyntheticGenerator)(nil)
