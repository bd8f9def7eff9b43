package rules

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"adora/internal/domain"
)

// GuidelineConfig is the per-format guideline set.
type GuidelineConfig struct {
	Name             string  `yaml:"name" json:"name"`
	TopSafeZonePx    int     `yaml:"top_safe_zone_px" json:"top_safe_zone_px"`
	MinFontPx        int     `yaml:"min_font_px" json:"min_font_px"`
	MinContrastRatio float64 `yaml:"min_contrast_ratio" json:"min_contrast_ratio"`
	MaxPackshots     int     `yaml:"max_packshots" json:"max_packshots"`
	Width            int     `yaml:"width" json:"width"`
	Height           int     `yaml:"height" json:"height"`
}

const (
	FormatStory  = "story"
	FormatFeed   = "feed"
	FormatBanner = "banner"
)

// Field defaults used when a preset file leaves a value out.
const (
	defaultTopSafeZonePx    = 200
	defaultMinFontPx        = 20
	defaultMinContrastRatio = 4.5
	defaultMaxPackshots     = 1
)

func builtinPresets() map[string]GuidelineConfig {
	return map[string]GuidelineConfig{
		FormatStory: {
			Name:             "tesco_story",
			TopSafeZonePx:    200,
			MinFontPx:        20,
			MinContrastRatio: 4.5,
			MaxPackshots:     1,
			Width:            1080,
			Height:           1920,
		},
		FormatFeed: {
			Name:             "tesco_feed",
			TopSafeZonePx:    120,
			MinFontPx:        20,
			MinContrastRatio: 4.5,
			MaxPackshots:     1,
			Width:            1080,
			Height:           1080,
		},
		FormatBanner: {
			Name:             "tesco_banner",
			TopSafeZonePx:    80,
			MinFontPx:        18,
			MinContrastRatio: 4.5,
			MaxPackshots:     1,
			Width:            1200,
			Height:           628,
		},
	}
}

// Registry maps format names to guideline presets. It is immutable after
// construction and safe for concurrent reads.
type Registry struct {
	presets  map[string]GuidelineConfig
	fallback string
}

// DefaultRegistry returns the built-in story, feed and banner presets.
func DefaultRegistry() *Registry {
	return &Registry{presets: builtinPresets(), fallback: FormatStory}
}

type presetFile struct {
	Fallback string                 `yaml:"fallback"`
	Presets  map[string]presetEntry `yaml:"presets"`
}

// presetEntry keeps guideline fields as pointers so an explicit 0 in the file
// is distinguishable from an omitted key.
type presetEntry struct {
	Name             string   `yaml:"name"`
	TopSafeZonePx    *int     `yaml:"top_safe_zone_px"`
	MinFontPx        *int     `yaml:"min_font_px"`
	MinContrastRatio *float64 `yaml:"min_contrast_ratio"`
	MaxPackshots     *int     `yaml:"max_packshots"`
	Width            int      `yaml:"width"`
	Height           int      `yaml:"height"`
}

func (p presetEntry) negative() bool {
	for _, v := range []*int{p.TopSafeZonePx, p.MinFontPx, p.MaxPackshots} {
		if v != nil && *v < 0 {
			return true
		}
	}
	return p.Width < 0 || p.Height < 0 || (p.MinContrastRatio != nil && *p.MinContrastRatio < 0)
}

// LoadRegistry returns the built-in presets extended or overridden by the YAML
// file at path. An empty path yields DefaultRegistry.
func LoadRegistry(path string) (*Registry, error) {
	reg := DefaultRegistry()
	path = strings.TrimSpace(path)
	if path == "" {
		return reg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("rules: read presets: %w", err)
	}
	return reg.withYAML(data, path)
}

func (r *Registry) withYAML(data []byte, source string) (*Registry, error) {
	var doc presetFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("rules: parse %s: %w", source, err)
	}
	presets := make(map[string]GuidelineConfig, len(r.presets)+len(doc.Presets))
	for k, v := range r.presets {
		presets[k] = v
	}
	for key, entry := range doc.Presets {
		name := strings.ToLower(strings.TrimSpace(key))
		if name == "" {
			return nil, fmt.Errorf("rules: %s defines an empty format name", source)
		}
		if entry.negative() {
			return nil, fmt.Errorf("rules: preset %q in %s has negative values", name, source)
		}
		if entry.Width > domain.MaxCanvasSide || entry.Height > domain.MaxCanvasSide {
			return nil, fmt.Errorf("rules: preset %q in %s exceeds %dpx per side", name, source, domain.MaxCanvasSide)
		}
		presets[name] = withDefaults(name, entry)
	}
	fallback := r.fallback
	if f := strings.ToLower(strings.TrimSpace(doc.Fallback)); f != "" {
		if _, ok := presets[f]; !ok {
			return nil, fmt.Errorf("rules: fallback preset %q is not defined", f)
		}
		fallback = f
	}
	return &Registry{presets: presets, fallback: fallback}, nil
}

// withDefaults fills the keys the file omitted.
func withDefaults(name string, p presetEntry) GuidelineConfig {
	cfg := GuidelineConfig{
		Name:             p.Name,
		TopSafeZonePx:    defaultTopSafeZonePx,
		MinFontPx:        defaultMinFontPx,
		MinContrastRatio: defaultMinContrastRatio,
		MaxPackshots:     defaultMaxPackshots,
		Width:            p.Width,
		Height:           p.Height,
	}
	if cfg.Name == "" {
		cfg.Name = name
	}
	if p.TopSafeZonePx != nil {
		cfg.TopSafeZonePx = *p.TopSafeZonePx
	}
	if p.MinFontPx != nil {
		cfg.MinFontPx = *p.MinFontPx
	}
	if p.MinContrastRatio != nil {
		cfg.MinContrastRatio = *p.MinContrastRatio
	}
	if p.MaxPackshots != nil {
		cfg.MaxPackshots = *p.MaxPackshots
	}
	return cfg
}

// Lookup resolves format to its preset. Unknown formats resolve to the
// fallback preset and report ok=false so callers can surface the fallback.
func (r *Registry) Lookup(format string) (GuidelineConfig, bool) {
	if cfg, ok := r.presets[strings.ToLower(strings.TrimSpace(format))]; ok {
		return cfg, true
	}
	return r.presets[r.fallback], false
}

// Known reports whether format is registered.
func (r *Registry) Known(format string) bool {
	_, ok := r.Lookup(format)
	return ok
}

// Fallback returns the name of the preset used for unknown formats.
func (r *Registry) Fallback() string {
	return r.fallback
}

// Formats lists registered format names in lexical order.
func (r *Registry) Formats() []string {
	out := make([]string, 0, len(r.presets))
	for k := range r.presets {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// CanonicalSize returns the fixed pixel size of a known format. Formats without
// a configured size report ok=false.
func (r *Registry) CanonicalSize(format string) (int, int, bool) {
	cfg, known := r.Lookup(format)
	if !known || cfg.Width <= 0 || cfg.Height <= 0 {
		return 0, 0, false
	}
	return cfg.Width, cfg.Height, true
}
