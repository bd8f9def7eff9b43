// Package background produces background images from a text prompt. A remote
// inference service is tried first and a deterministic synthetic renderer
// keeps the pipeline usable when no service is configured.
package background

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"adora/internal/domain"
)

// Request describes a background to generate.
type Request struct {
	Prompt    string
	Width     int
	Height    int
	RequestID string
}

// Image is a generated background.
type Image struct {
	Data   []byte
	MIME   string
	Width  int
	Height int
	Source string
}

// Generator is the contract implemented by all background providers. An
// unavailable provider returns an error matching domain.ErrUnavailable.
type Generator interface {
	Generate(ctx context.Context, req Request) (*Image, error)
}

// Chain tries each generator in order and returns the first image produced.
type Chain struct {
	generators []Generator
	logger     zerolog.Logger
}

// NewChain wires generators in priority order. Nil entries are skipped.
func NewChain(logger zerolog.Logger, generators ...Generator) *Chain {
	c := &Chain{logger: logger}
	for _, g := range generators {
		if g != nil {
			c.generators = append(c.generators, g)
		}
	}
	return c
}

// Generate fulfils the Generator interface.
func (c *Chain) Generate(ctx context.Context, req Request) (*Image, error) {
	if c == nil || len(c.generators) == 0 {
		return nil, fmt.Errorf("background: no generator configured: %w", domain.ErrUnavailable)
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, fmt.Errorf("background: prompt is required: %w", domain.ErrUnavailable)
	}
	var errs []error
	for _, g := range c.generators {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		img, err := g.Generate(ctx, req)
		if err == nil && img != nil && len(img.Data) > 0 {
			return img, nil
		}
		if err == nil {
			err = errors.New("empty image")
		}
		c.logger.Warn().
			Err(err).
			Str("generator", fmt.Sprint(g)).
			Str("request_id", req.RequestID).
			Msg("background: generator failed; trying next")
		errs = append(errs, err)
	}
	return nil, fmt.Errorf("background: all generators failed: %w: %w", domain.ErrUnavailable, errors.Join(errs...))
}

var _ Generator = (*Chain)(nil)
