package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"adora/internal/assets"
	"adora/internal/domain"
	"adora/internal/encode"
)

func TestFailMapsErrors(t *testing.T) {
	tests := []struct {
		err  error
		code int
		kind string
	}{
		{fmt.Errorf("%w: id is required", domain.ErrInvalidCanvas), http.StatusBadRequest, "invalid_canvas"},
		{fmt.Errorf("render: %w", domain.CheckFormatName("../x")), http.StatusBadRequest, "unsupported_format"},
		{fmt.Errorf("asset: %w", domain.ErrNotFound), http.StatusNotFound, "not_found"},
		{assets.ErrTooLarge, http.StatusRequestEntityTooLarge, "too_large"},
		{fmt.Errorf("text/plain: %w", assets.ErrUnsupportedMedia), http.StatusUnsupportedMediaType, "unsupported_media"},
		{fmt.Errorf("render story: %w", encode.ErrEncodeFailed), http.StatusInternalServerError, "encode_failed"},
		{errors.New("disk on fire"), http.StatusInternalServerError, "internal"},
	}
	a := &App{Logger: zerolog.Nop()}
	for _, tc := range tests {
		rec := httptest.NewRecorder()
		a.fail(rec, httptest.NewRequest(http.MethodPost, "/render", nil), tc.err)
		if rec.Code != tc.code {
			t.Fatalf("%v: code = %d, want %d", tc.err, rec.Code, tc.code)
		}
		var body map[string]string
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body["error"] != tc.kind {
			t.Fatalf("%v: kind = %q, want %q", tc.err, body["error"], tc.kind)
		}
	}
}

func TestRenderBodyAcceptsBareCanvas(t *testing.T) {
	var wrapped renderBody
	if err := json.Unmarshal([]byte(`{"canvas":{"id":"c1","width":10,"height":10},"formats":["feed"]}`), &wrapped); err != nil {
		t.Fatalf("wrapped: %v", err)
	}
	if wrapped.req.Canvas.ID != "c1" || len(wrapped.req.Formats) != 1 {
		t.Fatalf("wrapped = %+v", wrapped.req)
	}

	var bare renderBody
	if err := json.Unmarshal([]byte(`{"id":"c2","width":10,"height":10,"format":"feed"}`), &bare); err != nil {
		t.Fatalf("bare: %v", err)
	}
	if bare.req.Canvas.ID != "c2" || bare.req.Canvas.Format != "feed" {
		t.Fatalf("bare = %+v", bare.req)
	}
}

func TestDecodeRejectsBadBodies(t *testing.T) {
	a := &App{Logger: zerolog.Nop()}
	for _, body := range []string{"", "{not json"} {
		rec := httptest.NewRecorder()
		var v map[string]any
		if a.decode(rec, httptest.NewRequest(http.MethodPost, "/validate", strings.NewReader(body)), &v) {
			t.Fatalf("decode(%q) accepted", body)
		}
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("decode(%q) code = %d", body, rec.Code)
		}
	}
}
