package handlers

import (
	"encoding/json"
	"net/http"

	"adora/internal/domain"
	"adora/internal/pipeline"
	"adora/internal/rules"
)

func (a *App) Validate(w http.ResponseWriter, r *http.Request) {
	var canvas domain.CreativeCanvas
	if !a.decode(w, r, &canvas) {
		return
	}
	res, err := a.Pipeline.Validate(canvas)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, res)
}

func (a *App) AutoFix(w http.ResponseWriter, r *http.Request) {
	var canvas domain.CreativeCanvas
	if !a.decode(w, r, &canvas) {
		return
	}
	res, err := a.Pipeline.AutoFix(canvas)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, res)
}

// Render accepts either {"canvas": {...}, "formats": [...]} or a bare canvas.
func (a *App) Render(w http.ResponseWriter, r *http.Request) {
	var req renderBody
	if !a.decode(w, r, &req) {
		return
	}
	res, err := a.Pipeline.Render(r.Context(), req.req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, res)
}

type renderBody struct {
	req pipeline.RenderRequest
}

func (b *renderBody) UnmarshalJSON(data []byte) error {
	var envelope struct {
		Canvas json.RawMessage `json:"canvas"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return err
	}
	if len(envelope.Canvas) > 0 {
		return json.Unmarshal(data, &b.req)
	}
	return json.Unmarshal(data, &b.req.Canvas)
}

type presetView struct {
	Format string `json:"format"`
	rules.GuidelineConfig
}

func (a *App) Presets(w http.ResponseWriter, r *http.Request) {
	reg := a.Pipeline.Rules().Registry()
	items := make([]presetView, 0, len(reg.Formats()))
	for _, format := range reg.Formats() {
		cfg, _ := reg.Lookup(format)
		items = append(items, presetView{Format: format, GuidelineConfig: cfg})
	}
	a.json(w, http.StatusOK, map[string]any{"fallback": reg.Fallback(), "items": items})
}
