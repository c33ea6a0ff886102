package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"sketch3d/internal/domain"
	"sketch3d/internal/i18n"
	"sketch3d/internal/infra"
	"sketch3d/internal/middleware"
)

// Generator runs a generation request to completion.
type Generator interface {
	SubmitText(ctx context.Context, prompt string) (domain.GenerationResult, error)
	SubmitImage(ctx context.Context, imageData string) (domain.GenerationResult, error)
}

type App struct {
	Generator Generator
	Logger    *infra.Logger

	// CancelOnDisconnect ties a job's lifetime to the inbound request. When
	// false a job keeps polling after the client goes away.
	CancelOnDisconnect bool
	HasCredentials     bool
}

type errorResponse struct {
	Error string          `json:"error"`
	Raw   json.RawMessage `json:"raw,omitempty"`
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, r *http.Request, code int, message string, raw json.RawMessage) {
	locale := middleware.LocaleFromContext(r.Context())
	a.json(w, code, errorResponse{Error: i18n.Translate(locale, message), Raw: raw})
}

// log prefers the request-scoped logger installed by middleware.Logger.
func (a *App) log(r *http.Request) *zerolog.Logger {
	if l := zerolog.Ctx(r.Context()); l.GetLevel() != zerolog.Disabled {
		return l
	}
	if a.Logger != nil {
		return a.Logger
	}
	return infra.DiscardLogger()
}
