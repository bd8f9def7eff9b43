package rules

import (
	"fmt"
	"image/color"

	"adora/internal/domain"
)

// Check inspects a canvas against a preset. Checks are independent: each one
// runs regardless of what earlier checks reported.
type Check func(canvas domain.CreativeCanvas, cfg GuidelineConfig) []domain.ValidationIssue

// Engine evaluates canvases against the preset registry. Validate is a pure
// function of its input, the registry and the phrase checker.
type Engine struct {
	registry *Registry
	phrases  PhraseChecker
	checks   []Check
}

// Option customizes an Engine.
type Option func(*Engine)

// WithPhraseChecker replaces the keyword-based banned phrase checker.
func WithPhraseChecker(p PhraseChecker) Option {
	return func(e *Engine) {
		if p != nil {
			e.phrases = p
		}
	}
}

// NewEngine builds an engine. A nil registry uses DefaultRegistry.
func NewEngine(registry *Registry, opts ...Option) *Engine {
	if registry == nil {
		registry = DefaultRegistry()
	}
	e := &Engine{registry: registry, phrases: NewKeywordChecker(nil)}
	for _, opt := range opts {
		opt(e)
	}
	e.checks = []Check{
		checkSafeZone,
		checkFontSizes,
		checkPackshotCount,
		checkContrast,
		e.checkCanvasSize,
		e.checkPhrases,
	}
	return e
}

// Registry exposes the preset registry the engine resolves against.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// Validate runs every check in order and assembles the result.
func (e *Engine) Validate(canvas domain.CreativeCanvas) domain.ValidationResult {
	cfg, known := e.registry.Lookup(canvas.Format)
	var issues []domain.ValidationIssue
	for _, check := range e.checks {
		issues = append(issues, check(canvas, cfg)...)
	}
	if !known {
		issues = append(issues, domain.ValidationIssue{
			Code:     domain.CodeUnknownFormat,
			Message:  fmt.Sprintf("Format %q is not registered; evaluated with %q guidelines.", canvas.Format, e.registry.Fallback()),
			Severity: domain.SeverityWarning,
		})
	}
	return domain.NewValidationResult(canvas.ID, issues)
}

func checkSafeZone(canvas domain.CreativeCanvas, cfg GuidelineConfig) []domain.ValidationIssue {
	var issues []domain.ValidationIssue
	for _, tb := range canvas.TextBlocks {
		if tb.Y < cfg.TopSafeZonePx {
			issues = append(issues, domain.ValidationIssue{
				Code:     domain.CodeSafeZoneTop,
				Message:  fmt.Sprintf("Text '%s...' is in top safe zone (<%dpx).", preview(tb.Text), cfg.TopSafeZonePx),
				Severity: domain.SeverityError,
			})
		}
	}
	return issues
}

func checkFontSizes(canvas domain.CreativeCanvas, cfg GuidelineConfig) []domain.ValidationIssue {
	var issues []domain.ValidationIssue
	for _, tb := range canvas.TextBlocks {
		if tb.FontSize < cfg.MinFontPx {
			issues = append(issues, domain.ValidationIssue{
				Code:     domain.CodeFontTooSmall,
				Message:  fmt.Sprintf("Text '%s...' font %dpx < %dpx.", preview(tb.Text), tb.FontSize, cfg.MinFontPx),
				Severity: domain.SeverityError,
			})
		}
	}
	return issues
}

func checkPackshotCount(canvas domain.CreativeCanvas, cfg GuidelineConfig) []domain.ValidationIssue {
	n := len(canvas.PackshotIDs)
	if n <= cfg.MaxPackshots {
		return nil
	}
	return []domain.ValidationIssue{{
		Code:     domain.CodeTooManyPackshots,
		Message:  fmt.Sprintf("%d packshots > allowed %d.", n, cfg.MaxPackshots),
		Severity: domain.SeverityError,
	}}
}

// checkContrast compares each text color with the known background color.
// With only a background image or prompt the backdrop is unknown and the check
// stays silent.
func checkContrast(canvas domain.CreativeCanvas, cfg GuidelineConfig) []domain.ValidationIssue {
	backdrop, ok := backdropColor(canvas)
	if !ok {
		return nil
	}
	var issues []domain.ValidationIssue
	for _, tb := range canvas.TextBlocks {
		fg, err := domain.ParseHexColor(tb.Color)
		if err != nil {
			continue
		}
		ratio := domain.ContrastRatio(fg, backdrop)
		if ratio < cfg.MinContrastRatio {
			issues = append(issues, domain.ValidationIssue{
				Code:     domain.CodeLowContrast,
				Message:  fmt.Sprintf("Text '%s...' contrast %.2f:1 < %.1f:1.", preview(tb.Text), ratio, cfg.MinContrastRatio),
				Severity: domain.SeverityWarning,
			})
		}
	}
	return issues
}

func (e *Engine) checkCanvasSize(canvas domain.CreativeCanvas, _ GuidelineConfig) []domain.ValidationIssue {
	w, h, ok := e.registry.CanonicalSize(canvas.Format)
	if !ok || (canvas.Width == w && canvas.Height == h) {
		return nil
	}
	return []domain.ValidationIssue{{
		Code:     domain.CodeCanvasSizeMismatch,
		Message:  fmt.Sprintf("Canvas %dx%d does not match %s size %dx%d.", canvas.Width, canvas.Height, canvas.Format, w, h),
		Severity: domain.SeverityError,
	}}
}

func (e *Engine) checkPhrases(canvas domain.CreativeCanvas, _ GuidelineConfig) []domain.ValidationIssue {
	texts := make([]string, 0, len(canvas.TextBlocks))
	for _, tb := range canvas.TextBlocks {
		texts = append(texts, tb.Text)
	}
	var issues []domain.ValidationIssue
	for _, finding := range e.phrases.Check(texts) {
		issues = append(issues, domain.ValidationIssue{
			Code:     domain.CodeBannedPhrase,
			Message:  finding,
			Severity: domain.SeverityWarning,
		})
	}
	return issues
}

var white = color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}

func backdropColor(canvas domain.CreativeCanvas) (c color.NRGBA, ok bool) {
	if canvas.Extra.BackgroundColor != "" {
		parsed, err := domain.ParseHexColor(canvas.Extra.BackgroundColor)
		if err != nil {
			return c, false
		}
		return parsed, true
	}
	if canvas.BackgroundImageID != "" || canvas.Extra.BackgroundPrompt != "" {
		return c, false
	}
	return white, true
}

// preview returns at most the first 15 characters of s.
func preview(s string) string {
	r := []rune(s)
	if len(r) > 15 {
		r = r[:15]
	}
	return string(r)
}
