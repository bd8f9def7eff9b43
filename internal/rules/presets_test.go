package rules

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDefaultRegistryLookup(t *testing.T) {
	reg := DefaultRegistry()
	cfg, ok := reg.Lookup("BANNER")
	if !ok {
		t.Fatalf("banner should be known")
	}
	want := GuidelineConfig{Name: "tesco_banner", TopSafeZonePx: 80, MinFontPx: 18, MinContrastRatio: 4.5, MaxPackshots: 1, Width: 1200, Height: 628}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Fatalf("banner mismatch (-want +got):\n%s", diff)
	}

	fallback, ok := reg.Lookup("billboard")
	if ok {
		t.Fatalf("billboard should be unknown")
	}
	if fallback.Name != "tesco_story" {
		t.Fatalf("fallback = %q, want tesco_story", fallback.Name)
	}
	if diff := cmp.Diff([]string{"banner", "feed", "story"}, reg.Formats()); diff != "" {
		t.Fatalf("formats mismatch (-want +got):\n%s", diff)
	}
	if _, _, ok := reg.CanonicalSize("billboard"); ok {
		t.Fatalf("unknown format has no canonical size")
	}
}

func TestLoadRegistryFromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "presets.yaml")
	doc := `
fallback: feed
presets:
  leaderboard:
    width: 728
    height: 90
    top_safe_zone_px: 10
    min_font_px: 12
    max_packshots: 2
  story:
    name: custom_story
    top_safe_zone_px: 250
    width: 1080
    height: 1920
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write presets: %v", err)
	}
	reg, err := LoadRegistry(path)
	if err != nil {
		t.Fatalf("LoadRegistry error: %v", err)
	}
	lb, ok := reg.Lookup("leaderboard")
	if !ok {
		t.Fatalf("leaderboard missing")
	}
	want := GuidelineConfig{Name: "leaderboard", TopSafeZonePx: 10, MinFontPx: 12, MinContrastRatio: 4.5, MaxPackshots: 2, Width: 728, Height: 90}
	if diff := cmp.Diff(want, lb); diff != "" {
		t.Fatalf("leaderboard mismatch (-want +got):\n%s", diff)
	}
	story, _ := reg.Lookup("story")
	if story.TopSafeZonePx != 250 || story.MinFontPx != 20 {
		t.Fatalf("story override = %+v", story)
	}
	if cfg, ok := reg.Lookup("unknown"); ok || cfg.Name != "tesco_feed" {
		t.Fatalf("fallback = %+v ok=%v", cfg, ok)
	}
	if base, _ := DefaultRegistry().Lookup("story"); base.TopSafeZonePx != 200 {
		t.Fatalf("default registry mutated")
	}
}

func TestExplicitZeroOverridesDefault(t *testing.T) {
	doc := `
presets:
  strict:
    width: 300
    height: 250
    top_safe_zone_px: 0
    max_packshots: 0
    min_contrast_ratio: 0
`
	reg, err := DefaultRegistry().withYAML([]byte(doc), "inline")
	if err != nil {
		t.Fatalf("withYAML: %v", err)
	}
	cfg, _ := reg.Lookup("strict")
	want := GuidelineConfig{Name: "strict", TopSafeZonePx: 0, MinFontPx: 20, MinContrastRatio: 0, MaxPackshots: 0, Width: 300, Height: 250}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Fatalf("strict mismatch (-want +got):\n%s", diff)
	}
	if !reg.Known("strict") || reg.Known("poster") {
		t.Fatalf("Known() disagrees with registered presets")
	}
}

func TestLoadRegistryErrors(t *testing.T) {
	if reg, err := LoadRegistry(""); err != nil || reg == nil {
		t.Fatalf("empty path should return defaults, err=%v", err)
	}
	if _, err := LoadRegistry(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
	tests := map[string]string{
		"bad yaml":          "presets: [",
		"undefined default": "fallback: poster\n",
		"negative values":   "presets:\n  x:\n    max_packshots: -1\n",
		"negative contrast": "presets:\n  x:\n    min_contrast_ratio: -2\n",
		"oversized preset":  "presets:\n  x:\n    width: 9000\n    height: 10\n",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := DefaultRegistry().withYAML([]byte(doc), name); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}
