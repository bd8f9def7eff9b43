// Package encode turns rendered rasters into bytes that fit a size budget.
package encode

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"strings"

	"github.com/disintegration/imaging"
)

// ErrEncodeFailed is returned only when the codec rejected every attempt.
var ErrEncodeFailed = errors.New("encode failed")

const (
	FormatPNG  = "png"
	FormatJPEG = "jpeg"

	// lossyRestartQuality is where the ladder starts after leaving PNG and
	// after every downscale of an unhinted render.
	lossyRestartQuality = 90
	downscaleFactor     = 0.9
	qualityStep         = 10
)

// DefaultLadder is the descending JPEG quality sequence for lossy hints. Its
// first entry is the lossy start and its last entry the floor; quality is
// never lowered below the floor.
var DefaultLadder = []int{95, 85, 75, 65, 55, 45, 35, 30}

// Options control a single Encode call.
type Options struct {
	// MaxBytes is the budget. Zero or negative disables it.
	MaxBytes int
	// FormatHint is "png", "jpg" or "jpeg". Anything else is treated as png.
	FormatHint string
}

// Result is the chosen attempt. When no attempt fits, it is the smallest one
// produced and WithinBudget is false; Size is always the real byte length.
type Result struct {
	Data         []byte
	Size         int
	ContentType  string
	Format       string
	Quality      int
	Width        int
	Height       int
	Attempts     int
	WithinBudget bool
}

// Extension returns the file extension for the encoded format.
func (r Result) Extension() string {
	if r.Format == FormatJPEG {
		return "jpg"
	}
	return "png"
}

// Encoder walks the quality ladder and downscales until the budget is met.
type Encoder struct {
	ladder []int
}

// New returns an encoder using ladder, or DefaultLadder when ladder is empty.
func New(ladder ...int) *Encoder {
	if len(ladder) == 0 {
		ladder = DefaultLadder
	}
	l := make([]int, len(ladder))
	copy(l, ladder)
	return &Encoder{ladder: l}
}

type attempt struct {
	data    []byte
	format  string
	quality int
	w, h    int
}

// Encode produces the best encoding of img under opts. The returned result
// never claims to be within budget unless it is.
func (e *Encoder) Encode(ctx context.Context, img image.Image, opts Options) (Result, error) {
	if img == nil || img.Bounds().Empty() {
		return Result{}, fmt.Errorf("%w: empty image", ErrEncodeFailed)
	}
	lossless := normalizeHint(opts.FormatHint) == FormatPNG
	start := e.ladder[0]
	if lossless {
		start = lossyRestartQuality
	}
	fits := func(n int) bool { return opts.MaxBytes <= 0 || n <= opts.MaxBytes }

	var (
		best     *attempt
		attempts int
		lastErr  error
	)
	try := func(cur image.Image, format string, q int) bool {
		attempts++
		data, err := encodeOnce(cur, format, q)
		if err != nil {
			lastErr = err
			return false
		}
		b := cur.Bounds()
		if best == nil || len(data) < len(best.data) {
			best = &attempt{data: data, format: format, quality: q, w: b.Dx(), h: b.Dy()}
		}
		if fits(len(data)) {
			best = &attempt{data: data, format: format, quality: q, w: b.Dx(), h: b.Dy()}
			return true
		}
		return false
	}

	cur := img
	for {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		if lossless {
			if try(cur, FormatPNG, 0) {
				return e.result(best, attempts, true), nil
			}
			lossless = false
		}
		for _, q := range e.qualitiesFrom(start) {
			if try(cur, FormatJPEG, q) {
				return e.result(best, attempts, true), nil
			}
		}
		next, ok := downscale(cur)
		if !ok {
			break
		}
		cur = next
	}
	if best == nil {
		return Result{Attempts: attempts}, fmt.Errorf("%w: %v", ErrEncodeFailed, lastErr)
	}
	return e.result(best, attempts, fits(len(best.data))), nil
}

func (e *Encoder) result(a *attempt, attempts int, within bool) Result {
	ct := "image/png"
	if a.format == FormatJPEG {
		ct = "image/jpeg"
	}
	return Result{
		Data:         a.data,
		Size:         len(a.data),
		ContentType:  ct,
		Format:       a.format,
		Quality:      a.quality,
		Width:        a.w,
		Height:       a.h,
		Attempts:     attempts,
		WithinBudget: within,
	}
}

// qualitiesFrom steps down from start by qualityStep and always ends on the
// ladder floor.
func (e *Encoder) qualitiesFrom(start int) []int {
	floor := e.ladder[len(e.ladder)-1]
	var out []int
	for q := start; q > floor; q -= qualityStep {
		out = append(out, q)
	}
	return append(out, floor)
}

func normalizeHint(hint string) string {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(hint), ".")) {
	case "jpg", "jpeg":
		return FormatJPEG
	default:
		return FormatPNG
	}
}

func encodeOnce(img image.Image, format string, quality int) ([]byte, error) {
	var buf bytes.Buffer
	var err error
	if format == FormatPNG {
		err = imaging.Encode(&buf, img, imaging.PNG, imaging.PNGCompressionLevel(png.BestCompression))
	} else {
		err = imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality))
	}
	if err != nil {
		return nil, fmt.Errorf("encode %s q=%d: %w", format, quality, err)
	}
	return buf.Bytes(), nil
}

// downscale shrinks both dimensions by downscaleFactor, never below one
// pixel. ok is false when the size would not change.
func downscale(img image.Image) (image.Image, bool) {
	b := img.Bounds()
	w := max(1, int(float64(b.Dx())*downscaleFactor))
	h := max(1, int(float64(b.Dy())*downscaleFactor))
	if w == b.Dx() && h == b.Dy() {
		return img, false
	}
	return imaging.Resize(img, w, h, imaging.Lanczos), true
}
