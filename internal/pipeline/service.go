// Package pipeline wires validation, composition, encoding and auditing into
// the operations exposed by the HTTP API and the batch CLI.
package pipeline

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/zeebo/blake3"
	"golang.org/x/sync/errgroup"

	"adora/internal/audit"
	"adora/internal/compose"
	"adora/internal/domain"
	"adora/internal/encode"
	"adora/internal/providers/background"
	"adora/internal/rules"
	"adora/internal/storage"
)

const (
	// MaxFormatsPerRender bounds how many artifacts one render call produces.
	MaxFormatsPerRender = 8
	// renderParallelism bounds how many formats are composed at once.
	renderParallelism = 2
)

// Resolver maps canvas asset references to bytes.
type Resolver interface {
	Resolve(ctx context.Context, ref string) ([]byte, error)
}

// Writer persists rendered bytes.
type Writer interface {
	Write(ctx context.Context, key string, data []byte) (string, error)
}

// Deps collects the collaborators of a Service.
type Deps struct {
	Rules       *rules.Engine
	Composer    *compose.Engine
	Encoder     *encode.Encoder
	Recorder    *audit.Recorder
	Assets      Resolver
	Backgrounds background.Generator
	Store       Writer
	Records     domain.RecordStore
	Logger      zerolog.Logger
	// MaxFileSize is the per-artifact byte budget.
	MaxFileSize int
}

// Service runs the creative pipeline. It is safe for concurrent use.
type Service struct {
	rules       *rules.Engine
	composer    *compose.Engine
	encoder     *encode.Encoder
	recorder    *audit.Recorder
	assets      Resolver
	backgrounds background.Generator
	store       Writer
	records     domain.RecordStore
	logger      zerolog.Logger
	maxBytes    int
	newID       func() string
}

// NewService fills unset collaborators with in-memory defaults.
func NewService(d Deps) *Service {
	s := &Service{
		rules:       d.Rules,
		composer:    d.Composer,
		encoder:     d.Encoder,
		recorder:    d.Recorder,
		assets:      d.Assets,
		backgrounds: d.Backgrounds,
		store:       d.Store,
		records:     d.Records,
		logger:      d.Logger,
		maxBytes:    d.MaxFileSize,
		newID:       func() string { return strings.ReplaceAll(uuid.NewString(), "-", "") },
	}
	if s.rules == nil {
		s.rules = rules.NewEngine(nil)
	}
	if s.composer == nil {
		s.composer = compose.NewEngine(nil)
	}
	if s.encoder == nil {
		s.encoder = encode.New()
	}
	if s.recorder == nil {
		s.recorder = audit.NewRecorder(nil)
	}
	if s.records == nil {
		s.records = domain.NopRecordStore{}
	}
	return s
}

// Rules exposes the validation engine, mainly for its preset registry.
func (s *Service) Rules() *rules.Engine { return s.rules }

// Validate checks the canvas shape and evaluates the guidelines.
func (s *Service) Validate(canvas domain.CreativeCanvas) (domain.ValidationResult, error) {
	c, err := prepare(canvas)
	if err != nil {
		return domain.ValidationResult{}, err
	}
	return s.rules.Validate(c), nil
}

// AutoFix applies the automatic corrections and re-validates.
func (s *Service) AutoFix(canvas domain.CreativeCanvas) (rules.FixResult, error) {
	c, err := prepare(canvas)
	if err != nil {
		return rules.FixResult{}, err
	}
	return s.rules.AutoFix(c), nil
}

func prepare(canvas domain.CreativeCanvas) (domain.CreativeCanvas, error) {
	c := canvas.Clone()
	c.Normalize()
	if err := c.CheckShape(); err != nil {
		return domain.CreativeCanvas{}, err
	}
	return c, nil
}

// RenderRequest asks for one artifact per format.
type RenderRequest struct {
	Canvas domain.CreativeCanvas `json:"canvas"`
	// Formats defaults to the canvas format.
	Formats []string `json:"formats,omitempty"`
	// OutputFormat is "png" (default) or "jpg".
	OutputFormat string `json:"output_format,omitempty"`
	// AppliedFixes are carried into the audit record, usually from a prior autofix.
	AppliedFixes []string `json:"applied_fixes,omitempty"`
}

// RenderItem describes one stored artifact.
type RenderItem struct {
	Format       string                   `json:"format"`
	Path         string                   `json:"path"`
	SizeBytes    int                      `json:"size_bytes"`
	Width        int                      `json:"width"`
	Height       int                      `json:"height"`
	ContentType  string                   `json:"content_type"`
	Quality      int                      `json:"quality,omitempty"`
	Checksum     string                   `json:"checksum"`
	WithinBudget bool                     `json:"within_budget"`
	Warnings     []domain.ValidationIssue `json:"warnings,omitempty"`
}

// RenderResponse is the result of a render call.
type RenderResponse struct {
	CanvasID       string                  `json:"canvas_id"`
	RenderID       string                  `json:"render_id"`
	Creatives      []RenderItem            `json:"creatives"`
	Validation     domain.ValidationResult `json:"validation"`
	AuditLogPath   string                  `json:"audit_log_path"`
	AuditCSVPath   string                  `json:"audit_csv_path,omitempty"`
	AestheticScore float64                 `json:"aesthetic_score"`
}

// Render validates, composes, encodes and stores the canvas in every
// requested format, then writes the audit record. Only invalid input and
// codec exhaustion are returned as errors.
func (s *Service) Render(ctx context.Context, req RenderRequest) (RenderResponse, error) {
	canvas, err := prepare(req.Canvas)
	if err != nil {
		return RenderResponse{}, err
	}
	formats, err := normalizeFormats(req.Formats, canvas.Format)
	if err != nil {
		return RenderResponse{}, err
	}
	renderID := s.newID()
	started := time.Now()
	logger := s.logger.With().Str("canvas_id", canvas.ID).Str("render_id", renderID).Logger()

	validation := s.rules.Validate(canvas)
	layers, layerWarnings := s.resolveLayers(ctx, canvas, renderID, logger)

	items := make([]RenderItem, len(formats))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(renderParallelism)
	for i, format := range formats {
		g.Go(func() error {
			item, err := s.renderFormat(gctx, canvas, format, renderID, req.OutputFormat, layers)
			if err != nil {
				return fmt.Errorf("render %s: %w", format, err)
			}
			items[i] = item
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("render failed")
		return RenderResponse{}, err
	}

	issues := make([]any, 0, len(validation.Issues)+len(layerWarnings))
	for _, issue := range validation.Issues {
		issues = append(issues, issue)
	}
	for _, w := range layerWarnings {
		issues = append(issues, w)
	}
	for _, item := range items {
		for _, w := range item.Warnings {
			issues = append(issues, w)
		}
	}
	rec := s.recorder.Record(ctx, canvas.ID, renderID, issues, req.AppliedFixes)
	if len(rec.Degraded) > 0 {
		logger.Warn().Strs("degraded", rec.Degraded).Msg("audit record degraded")
	}

	s.saveRecords(ctx, canvas, renderID, items, rec, validation.Passed, logger)

	logger.Info().
		Int("formats", len(items)).
		Bool("passed", validation.Passed).
		Dur("elapsed", time.Since(started)).
		Msg("render completed")

	return RenderResponse{
		CanvasID:       canvas.ID,
		RenderID:       renderID,
		Creatives:      items,
		Validation:     validation,
		AuditLogPath:   rec.JSONPath,
		AuditCSVPath:   rec.CSVPath,
		AestheticScore: AestheticScore(canvas),
	}, nil
}

func (s *Service) renderFormat(ctx context.Context, canvas domain.CreativeCanvas, format, renderID, hint string, layers compose.Layers) (RenderItem, error) {
	target := canvas.Clone()
	target.Format = format
	var warnings []domain.ValidationIssue
	reg := s.rules.Registry()
	if w, h, ok := reg.CanonicalSize(format); ok {
		target.Width, target.Height = w, h
	} else if !reg.Known(format) && format != canvas.Format {
		warnings = append(warnings, domain.ValidationIssue{
			Code:     domain.CodeUnknownFormat,
			Message:  fmt.Sprintf("Format %q is not registered; rendered at canvas size %dx%d.", format, target.Width, target.Height),
			Severity: domain.SeverityWarning,
		})
	}

	composed, err := s.composer.Render(target, layers)
	if err != nil {
		return RenderItem{}, err
	}
	warnings = append(warnings, composed.Warnings...)

	enc, err := s.encoder.Encode(ctx, composed.Image, encode.Options{MaxBytes: s.maxBytes, FormatHint: hint})
	if err != nil {
		return RenderItem{}, err
	}

	sum := blake3.Sum256(enc.Data)
	item := RenderItem{
		Format:       format,
		SizeBytes:    enc.Size,
		Width:        enc.Width,
		Height:       enc.Height,
		ContentType:  enc.ContentType,
		Quality:      enc.Quality,
		Checksum:     hex.EncodeToString(sum[:]),
		WithinBudget: enc.WithinBudget,
		Warnings:     warnings,
	}
	if s.store != nil {
		key, err := s.store.Write(ctx, path.Join(storage.PrefixRenders, renderID, format+"."+enc.Extension()), enc.Data)
		if err != nil {
			return RenderItem{}, fmt.Errorf("store artifact: %w", err)
		}
		item.Path = key
	}
	return item, nil
}

// resolveLayers loads the background and packshot bytes. Missing assets are
// passed on as empty layers so the composer can report them.
func (s *Service) resolveLayers(ctx context.Context, canvas domain.CreativeCanvas, renderID string, logger zerolog.Logger) (compose.Layers, []domain.ValidationIssue) {
	var layers compose.Layers
	var warnings []domain.ValidationIssue

	if ref := canvas.BackgroundImageID; ref != "" {
		layers.Background = &compose.Layer{Ref: ref, Data: s.resolve(ctx, ref, logger)}
	}
	if (layers.Background == nil || len(layers.Background.Data) == 0) && canvas.Extra.BackgroundPrompt != "" {
		if img, err := s.generateBackground(ctx, canvas, renderID); err != nil {
			logger.Warn().Err(err).Msg("background generation unavailable")
			warnings = append(warnings, domain.ValidationIssue{
				Code:     domain.CodeBackgroundUnusable,
				Message:  "Background prompt could not be generated; rendered without background.",
				Severity: domain.SeverityWarning,
			})
		} else {
			layers.Background = &compose.Layer{Ref: "generated:" + img.Source, Data: img.Data}
		}
	}

	for _, ref := range canvas.PackshotIDs {
		layers.Packshots = append(layers.Packshots, compose.Layer{Ref: ref, Data: s.resolve(ctx, ref, logger)})
	}
	return layers, warnings
}

func (s *Service) resolve(ctx context.Context, ref string, logger zerolog.Logger) []byte {
	if s.assets == nil {
		return nil
	}
	data, err := s.assets.Resolve(ctx, ref)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			logger.Warn().Err(err).Str("ref", ref).Msg("asset resolution failed")
		}
		return nil
	}
	return data
}

func (s *Service) generateBackground(ctx context.Context, canvas domain.CreativeCanvas, renderID string) (*background.Image, error) {
	if s.backgrounds == nil {
		return nil, fmt.Errorf("no background generator: %w", domain.ErrUnavailable)
	}
	return s.backgrounds.Generate(ctx, background.Request{
		Prompt:    canvas.Extra.BackgroundPrompt,
		Width:     canvas.Width,
		Height:    canvas.Height,
		RequestID: renderID,
	})
}

func (s *Service) saveRecords(ctx context.Context, canvas domain.CreativeCanvas, renderID string, items []RenderItem, rec domain.AuditRecord, passed bool, logger zerolog.Logger) {
	if err := s.records.SaveCanvasSession(ctx, canvas); err != nil {
		logger.Warn().Err(err).Msg("save canvas session failed")
	}
	now := time.Now().UTC()
	for _, item := range items {
		err := s.records.SaveRender(ctx, domain.RenderRecord{
			RenderID:   renderID,
			CanvasID:   canvas.ID,
			UserID:     canvas.UserID,
			Format:     item.Format,
			StorageKey: item.Path,
			SizeBytes:  item.SizeBytes,
			Checksum:   item.Checksum,
			AuditKey:   rec.JSONPath,
			Passed:     passed,
			CreatedAt:  now,
		})
		if err != nil {
			logger.Warn().Err(err).Str("format", item.Format).Msg("save render record failed")
		}
	}
}

// normalizeFormats lowercases and de-duplicates formats, keeping order. Every
// name becomes part of a storage key, so each one must pass CheckFormatName.
func normalizeFormats(formats []string, fallback string) ([]string, error) {
	out := make([]string, 0, len(formats))
	seen := make(map[string]bool, len(formats))
	for _, f := range formats {
		f = strings.ToLower(strings.TrimSpace(f))
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	if len(out) == 0 {
		out = append(out, fallback)
	}
	if len(out) > MaxFormatsPerRender {
		return nil, fmt.Errorf("%w: at most %d formats per render, got %d", domain.ErrInvalidCanvas, MaxFormatsPerRender, len(out))
	}
	for _, f := range out {
		if err := domain.CheckFormatName(f); err != nil {
			return nil, err
		}
	}
	return out, nil
}
