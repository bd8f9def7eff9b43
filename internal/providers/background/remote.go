package background

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"adora/internal/domain"
)

// maxResponseBytes caps how much of a remote response is read.
const maxResponseBytes = 32 << 20

// RemoteOptions configures a RemoteGenerator.
type RemoteOptions struct {
	URL        string
	HTTPClient *http.Client
}

// RemoteGenerator calls an HTTP inference service that accepts
// {"prompt","width","height"} and answers with either JSON carrying a base64
// "image" / "image_base64" field or the raw image bytes.
type RemoteGenerator struct {
	url        string
	httpClient *http.Client
}

// NewRemoteGenerator returns nil when no URL is configured.
func NewRemoteGenerator(opts RemoteOptions) *RemoteGenerator {
	url := strings.TrimSpace(opts.URL)
	if url == "" {
		return nil
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 180 * time.Second}
	}
	return &RemoteGenerator{url: url, httpClient: client}
}

type remoteRequest struct {
	Prompt string `json:"prompt"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type remoteResponse struct {
	Image       string `json:"image"`
	ImageBase64 string `json:"image_base64"`
}

func (g *RemoteGenerator) String() string { return "remote" }

// Generate fulfils the Generator interface.
func (g *RemoteGenerator) Generate(ctx context.Context, req Request) (*Image, error) {
	if g == nil {
		return nil, fmt.Errorf("remote generator not configured: %w", domain.ErrUnavailable)
	}
	body, err := json.Marshal(remoteRequest{Prompt: strings.TrimSpace(req.Prompt), Width: req.Width, Height: req.Height})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if req.RequestID != "" {
		httpReq.Header.Set("X-Request-ID", req.RequestID)
	}

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("invoke remote generator: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("remote generator status %d: %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	data := payload
	if strings.Contains(resp.Header.Get("Content-Type"), "json") {
		var decoded remoteResponse
		if err := json.Unmarshal(payload, &decoded); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
		encoded := firstNonEmpty(decoded.Image, decoded.ImageBase64)
		if encoded == "" {
			return nil, fmt.Errorf("remote generator returned no image")
		}
		if data, err = base64.StdEncoding.DecodeString(encoded); err != nil {
			return nil, fmt.Errorf("decode image data: %w", err)
		}
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("remote generator returned undecodable image: %w", err)
	}
	return &Image{
		Data:   data,
		MIME:   mimetype.Detect(data).String(),
		Width:  cfg.Width,
		Height: cfg.Height,
		Source: g.String(),
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

var _ Generator = (*RemoteGenerator)(nil)
