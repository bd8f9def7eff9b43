package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

const (
	// DefaultFormat is applied when a canvas omits its format tag.
	DefaultFormat = "story"
	// DefaultFontSize mirrors the editor default for new text blocks.
	DefaultFontSize = 20
	// DefaultTextColor is applied when a text block omits its color.
	DefaultTextColor = "#000000"
	// MaxCanvasSide bounds each canvas dimension; larger canvases are rejected
	// before any raster is allocated.
	MaxCanvasSide = 8192
)

// formatName restricts format tags that end up in storage keys.
var formatName = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,31}$`)

// CheckFormatName reports whether name is usable as a render format tag.
func CheckFormatName(name string) error {
	if !formatName.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, name)
	}
	return nil
}

// TextBlock is a single text overlay placed with its top-left corner at (X, Y).
type TextBlock struct {
	ID       string `json:"id"`
	Text     string `json:"text"`
	FontSize int    `json:"font_size"`
	Color    string `json:"color"`
	X        int    `json:"x"`
	Y        int    `json:"y"`
}

// UnmarshalJSON rejects keys outside the text block schema, so a misspelled
// field such as "fontsize" fails instead of silently taking a default.
func (tb *TextBlock) UnmarshalJSON(data []byte) error {
	type plain TextBlock
	var out plain
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		return fmt.Errorf("%w: text block: %v", ErrInvalidCanvas, err)
	}
	*tb = TextBlock(out)
	return nil
}

// CreativeCanvas describes one creative to be validated and rendered.
type CreativeCanvas struct {
	ID                string      `json:"id"`
	UserID            string      `json:"user_id,omitempty"`
	Format            string      `json:"format"`
	Width             int         `json:"width"`
	Height            int         `json:"height"`
	BackgroundImageID string      `json:"background_image_id,omitempty"`
	PackshotIDs       []string    `json:"packshot_ids"`
	TextBlocks        []TextBlock `json:"text_blocks"`
	Extra             Extras      `json:"extra"`
}

// Extras carries the forward-compatible part of a canvas. Known keys are typed;
// anything else is kept verbatim in Unknown so it survives a round-trip.
type Extras struct {
	BackgroundPrompt string
	BackgroundColor  string
	Unknown          map[string]json.RawMessage
}

const (
	extraBackgroundPrompt = "background_prompt"
	extraBackgroundColor  = "background_color"
)

// MarshalJSON flattens typed and residual keys back into one object.
func (e Extras) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(e.Unknown)+2)
	for k, v := range e.Unknown {
		out[k] = v
	}
	if e.BackgroundPrompt != "" {
		raw, _ := json.Marshal(e.BackgroundPrompt)
		out[extraBackgroundPrompt] = raw
	}
	if e.BackgroundColor != "" {
		raw, _ := json.Marshal(e.BackgroundColor)
		out[extraBackgroundColor] = raw
	}
	keys := make([]string, 0, len(out))
	for k := range out {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, _ := json.Marshal(k)
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(out[k])
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON splits an arbitrary object into typed and residual keys.
func (e *Extras) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*e = Extras{}
		return nil
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("extra: %w", err)
	}
	var out Extras
	for k, v := range raw {
		switch k {
		case extraBackgroundPrompt:
			if err := json.Unmarshal(v, &out.BackgroundPrompt); err != nil {
				return fmt.Errorf("extra.%s: %w", k, err)
			}
		case extraBackgroundColor:
			if err := json.Unmarshal(v, &out.BackgroundColor); err != nil {
				return fmt.Errorf("extra.%s: %w", k, err)
			}
		default:
			if out.Unknown == nil {
				out.Unknown = make(map[string]json.RawMessage)
			}
			out.Unknown[k] = append(json.RawMessage(nil), v...)
		}
	}
	*e = out
	return nil
}

// Normalize applies server defaults to omitted fields.
func (c *CreativeCanvas) Normalize() {
	if c == nil {
		return
	}
	c.Format = strings.ToLower(strings.TrimSpace(c.Format))
	if c.Format == "" {
		c.Format = DefaultFormat
	}
	for i := range c.TextBlocks {
		if c.TextBlocks[i].FontSize == 0 {
			c.TextBlocks[i].FontSize = DefaultFontSize
		}
		if strings.TrimSpace(c.TextBlocks[i].Color) == "" {
			c.TextBlocks[i].Color = DefaultTextColor
		}
	}
}

// CheckShape reports input-shape errors that must be rejected before any
// engine runs. It never reports guideline problems; those are validation issues.
func (c CreativeCanvas) CheckShape() error {
	if strings.TrimSpace(c.ID) == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidCanvas)
	}
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("%w: dimensions must be positive, got %dx%d", ErrInvalidCanvas, c.Width, c.Height)
	}
	if c.Width > MaxCanvasSide || c.Height > MaxCanvasSide {
		return fmt.Errorf("%w: dimensions must not exceed %dx%d, got %dx%d", ErrInvalidCanvas, MaxCanvasSide, MaxCanvasSide, c.Width, c.Height)
	}
	seen := make(map[string]struct{}, len(c.TextBlocks))
	for i, tb := range c.TextBlocks {
		if strings.TrimSpace(tb.ID) == "" {
			return fmt.Errorf("%w: text_blocks[%d].id is required", ErrInvalidCanvas, i)
		}
		if _, dup := seen[tb.ID]; dup {
			return fmt.Errorf("%w: duplicate text block id %q", ErrInvalidCanvas, tb.ID)
		}
		seen[tb.ID] = struct{}{}
		if tb.FontSize <= 0 {
			return fmt.Errorf("%w: text block %q font_size must be positive", ErrInvalidCanvas, tb.ID)
		}
		if _, err := ParseHexColor(tb.Color); err != nil {
			return fmt.Errorf("%w: text block %q: %v", ErrInvalidCanvas, tb.ID, err)
		}
	}
	if c.Extra.BackgroundColor != "" {
		if _, err := ParseHexColor(c.Extra.BackgroundColor); err != nil {
			return fmt.Errorf("%w: extra.background_color: %v", ErrInvalidCanvas, err)
		}
	}
	return nil
}

// Clone returns a deep copy so fix steps never alias the caller's slices.
func (c CreativeCanvas) Clone() CreativeCanvas {
	out := c
	out.PackshotIDs = append([]string(nil), c.PackshotIDs...)
	out.TextBlocks = append([]TextBlock(nil), c.TextBlocks...)
	if c.Extra.Unknown != nil {
		out.Extra.Unknown = make(map[string]json.RawMessage, len(c.Extra.Unknown))
		for k, v := range c.Extra.Unknown {
			out.Extra.Unknown[k] = append(json.RawMessage(nil), v...)
		}
	}
	return out
}
