// Package bootstrap assembles the creative pipeline from configuration. Both
// the API server and the batch CLI start from Build.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/rs/zerolog"

	"adora/internal/adapter/repo"
	"adora/internal/assets"
	"adora/internal/audit"
	"adora/internal/compose"
	"adora/internal/domain"
	"adora/internal/encode"
	"adora/internal/infra"
	"adora/internal/pipeline"
	"adora/internal/providers/background"
	"adora/internal/rules"
	"adora/internal/storage"
)

// Stack holds the wired collaborators.
type Stack struct {
	Store    *storage.FileStore
	Records  domain.RecordStore
	Assets   *assets.Service
	Pipeline *pipeline.Service
	// Components reports which optional parts are active, for /health.
	Components map[string]bool

	closers []func()
}

// Close releases the database pool, if any.
func (s *Stack) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

// Build wires storage, the optional record store, presets, fonts, background
// generators and the pipeline service.
func Build(ctx context.Context, cfg *infra.Config, logger zerolog.Logger) (*Stack, error) {
	store, err := storage.NewFileStore(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	if err := store.EnsureDirs(storage.PrefixUploads, storage.PrefixRenders, storage.PrefixAudit); err != nil {
		return nil, err
	}
	st := &Stack{Store: store, Components: map[string]bool{}}

	st.Records = domain.NopRecordStore{}
	pool, err := infra.NewDBPool(ctx, cfg)
	switch {
	case errors.Is(err, infra.ErrNoDatabase):
		logger.Info().Msg("DATABASE_URL not set, render records disabled")
	case err != nil:
		return nil, err
	default:
		st.closers = append(st.closers, pool.Close)
		pg := repo.NewRecordStore(infra.NewSQLRunner(pool, logger))
		if err := pg.EnsureSchema(ctx); err != nil {
			st.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		st.Records = pg
	}
	st.Components["record_store"] = pool != nil

	registry, err := rules.LoadRegistry(cfg.PresetsFile)
	if err != nil {
		st.Close()
		return nil, err
	}

	fonts := compose.NewGoFontResolver()
	if cfg.FontFile != "" {
		data, err := os.ReadFile(cfg.FontFile)
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("read font file: %w", err)
		}
		custom, ok := compose.NewFontResolverFromTTF(data)
		if !ok {
			logger.Warn().Str("font_file", cfg.FontFile).Msg("font file unusable, using Go Regular")
		} else {
			fonts = custom
		}
	}

	var gens []background.Generator
	remoteOpts := background.RemoteOptions{URL: cfg.FastSDURL}
	if cfg.RemoteTimeout > 0 {
		remoteOpts.HTTPClient = &http.Client{Timeout: cfg.RemoteTimeout}
	}
	if remote := background.NewRemoteGenerator(remoteOpts); remote != nil {
		gens = append(gens, remote)
	}
	if cfg.SyntheticBackground {
		gens = append(gens, background.NewSyntheticGenerator(logger))
	}
	st.Components["background_remote"] = cfg.FastSDURL != ""
	st.Components["background_synthetic"] = cfg.SyntheticBackground
	var backgrounds background.Generator
	if len(gens) > 0 {
		backgrounds = background.NewChain(logger, gens...)
	}

	st.Assets = assets.NewService(store, st.Records, cfg.MaxUploadSize)
	st.Pipeline = pipeline.NewService(pipeline.Deps{
		Rules:       rules.NewEngine(registry),
		Composer:    compose.NewEngine(fonts),
		Encoder:     encode.New(),
		Recorder:    audit.NewRecorder(store, audit.WithLogger(logger)),
		Assets:      st.Assets,
		Backgrounds: backgrounds,
		Store:       store,
		Records:     st.Records,
		Logger:      logger,
		MaxFileSize: cfg.MaxFileSize,
	})
	return st, nil
}
