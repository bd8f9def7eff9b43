package background

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"adora/internal/domain"
)

func tinyPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 3, 2))
	img.SetRGBA(0, 0, color.RGBA{R: 1, A: 0xff})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func TestSyntheticIsDeterministic(t *testing.T) {
	g := NewSyntheticGenerator(zerolog.Nop())
	req := Request{Prompt: "sunny kitchen", Width: 120, Height: 80}
	first, err := g.Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	second, _ := g.Generate(context.Background(), req)
	if !bytes.Equal(first.Data, second.Data) {
		t.Fatalf("synthetic output differs between calls")
	}
	other, _ := g.Generate(context.Background(), Request{Prompt: "snowy street", Width: 120, Height: 80})
	if bytes.Equal(first.Data, other.Data) {
		t.Fatalf("different prompts should differ")
	}
	cfg, err := png.DecodeConfig(bytes.NewReader(first.Data))
	if err != nil || cfg.Width != 120 || cfg.Height != 80 {
		t.Fatalf("decoded %+v err=%v", cfg, err)
	}
	if first.Source != "synthetic" || first.MIME != "image/png" {
		t.Fatalf("image = %+v", first)
	}
}

func TestRemoteGeneratorJSONAndRaw(t *testing.T) {
	raw := tinyPNG(t)
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"json image", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]string{"image": base64.StdEncoding.EncodeToString(raw)})
		}},
		{"json image_base64", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			json.NewEncoder(w).Encode(map[string]string{"image_base64": base64.StdEncoding.EncodeToString(raw)})
		}},
		{"raw bytes", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "image/png")
			w.Write(raw)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got remoteRequest
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
					t.Errorf("decode request: %v", err)
				}
				tt.handler(w, r)
			}))
			defer srv.Close()

			g := NewRemoteGenerator(RemoteOptions{URL: srv.URL})
			img, err := g.Generate(context.Background(), Request{Prompt: " beach ", Width: 300, Height: 200})
			if err != nil {
				t.Fatalf("Generate: %v", err)
			}
			if got.Prompt != "beach" || got.Width != 300 || got.Height != 200 {
				t.Fatalf("request = %+v", got)
			}
			if !bytes.Equal(img.Data, raw) || img.Width != 3 || img.Height != 2 || img.MIME != "image/png" {
				t.Fatalf("image = %+v", img)
			}
		})
	}
}

func TestRemoteGeneratorErrors(t *testing.T) {
	if NewRemoteGenerator(RemoteOptions{}) != nil {
		t.Fatalf("empty URL should disable the remote generator")
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model loading", http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	if _, err := NewRemoteGenerator(RemoteOptions{URL: srv.URL}).Generate(context.Background(), Request{Prompt: "x"}); err == nil {
		t.Fatalf("expected status error")
	}

	empty := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	}))
	defer empty.Close()
	if _, err := NewRemoteGenerator(RemoteOptions{URL: empty.URL}).Generate(context.Background(), Request{Prompt: "x"}); err == nil {
		t.Fatalf("expected missing image error")
	}
}

type failingGenerator struct{ calls int }

func (f *failingGenerator) Generate(context.Context, Request) (*Image, error) {
	f.calls++
	return nil, errors.New("offline")
}

func TestChainFallsBack(t *testing.T) {
	failing := &failingGenerator{}
	chain := NewChain(zerolog.Nop(), failing, NewSyntheticGenerator(zerolog.Nop()))
	img, err := chain.Generate(context.Background(), Request{Prompt: "forest", Width: 10, Height: 10})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if failing.calls != 1 || img.Source != "synthetic" {
		t.Fatalf("calls=%d source=%q", failing.calls, img.Source)
	}

	only := NewChain(zerolog.Nop(), failing)
	if _, err := only.Generate(context.Background(), Request{Prompt: "forest"}); !errors.Is(err, domain.ErrUnavailable) {
		t.Fatalf("err = %v", err)
	}
	if _, err := NewChain(zerolog.Nop()).Generate(context.Background(), Request{Prompt: "x"}); !errors.Is(err, domain.ErrUnavailable) {
		t.Fatalf("empty chain err = %v", err)
	}
	if _, err := chain.Generate(context.Background(), Request{Prompt: "  "}); !errors.Is(err, domain.ErrUnavailable) {
		t.Fatalf("blank prompt err = %v", err)
	}
}
