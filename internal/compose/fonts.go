package compose

import (
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

// maxFontPx bounds the rasterizer size; larger requests use the fallback face.
const maxFontPx = 1024

// FontResolver hands out a face for a pixel size. It must always return a
// usable face; degraded reports that the requested size could not be honoured
// and a fallback face was returned instead.
type FontResolver interface {
	Face(sizePx int) (face font.Face, degraded bool)
}

// GoFontResolver rasterizes the embedded Go Regular typeface and falls back
// to the 7x13 bitmap face. Faces are created per call because opentype faces
// are not safe for concurrent use.
type GoFontResolver struct {
	font *opentype.Font
}

// NewGoFontResolver parses the embedded typeface. A parse failure leaves the
// resolver in bitmap-only mode rather than failing.
func NewGoFontResolver() *GoFontResolver {
	f, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return &GoFontResolver{}
	}
	return &GoFontResolver{font: f}
}

// NewFontResolverFromTTF uses the given TrueType/OpenType data, or the
// embedded typeface when the data cannot be parsed.
func NewFontResolverFromTTF(data []byte) (*GoFontResolver, bool) {
	f, err := opentype.Parse(data)
	if err != nil {
		return NewGoFontResolver(), false
	}
	return &GoFontResolver{font: f}, true
}

// Face implements FontResolver.
func (r *GoFontResolver) Face(sizePx int) (font.Face, bool) {
	if r == nil || r.font == nil || sizePx <= 0 || sizePx > maxFontPx {
		return basicfont.Face7x13, true
	}
	face, err := opentype.NewFace(r.font, &opentype.FaceOptions{
		Size:    float64(sizePx),
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return basicfont.Face7x13, true
	}
	return face, false
}

var _ FontResolver = (*GoFontResolver)(nil)
