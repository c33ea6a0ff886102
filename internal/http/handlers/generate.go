package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"sketch3d/internal/domain"
)

type textTo3DRequest struct {
	Prompt string `json:"prompt"`
}

type imageTo3DRequest struct {
	ImageDataURL string `json:"imageDataUrl"`
}

// TextTo3D handles POST /api/text-to-3d.
func (a *App) TextTo3D(w http.ResponseWriter, r *http.Request) {
	var req textTo3DRequest
	if !a.decode(w, r, &req) {
		return
	}
	result, err := a.Generator.SubmitText(a.jobContext(r), req.Prompt)
	a.respond(w, r, result, err, "Text-to-3D failed")
}

// ImageTo3D handles POST /api/image-to-3d.
func (a *App) ImageTo3D(w http.ResponseWriter, r *http.Request) {
	var req imageTo3DRequest
	if !a.decode(w, r, &req) {
		return
	}
	result, err := a.Generator.SubmitImage(a.jobContext(r), req.ImageDataURL)
	a.respond(w, r, result, err, "Image-to-3D failed")
}

// decode reads the JSON body. An empty body decodes to the zero request so
// the generator reports the missing field.
func (a *App) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	a.log(r).Warn().Err(err).Msg("invalid request body")
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		a.error(w, r, http.StatusRequestEntityTooLarge, "Request body too large", nil)
		return false
	}
	a.error(w, r, http.StatusBadRequest, "Invalid request body", nil)
	return false
}

func (a *App) jobContext(r *http.Request) context.Context {
	if a.CancelOnDisconnect {
		return r.Context()
	}
	return context.WithoutCancel(r.Context())
}

func (a *App) respond(w http.ResponseWriter, r *http.Request, result domain.GenerationResult, err error, fallback string) {
	if err == nil {
		a.json(w, http.StatusOK, result)
		return
	}
	var genErr *domain.GenerationError
	if !errors.As(err, &genErr) {
		a.log(r).Error().Err(err).Msg("generation failed")
		a.error(w, r, http.StatusInternalServerError, fallback, nil)
		return
	}
	status := http.StatusInternalServerError
	if genErr.Kind == domain.KindValidation {
		status = http.StatusBadRequest
	}
	a.error(w, r, status, genErr.Message, genErr.Raw)
}
