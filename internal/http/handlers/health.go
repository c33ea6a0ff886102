package handlers

import (
	"net/http"
)

type healthResponse struct {
	Status      string `json:"status"`
	Credentials bool   `json:"credentials"`
}

func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, healthResponse{Status: "ok", Credentials: a.HasCredentials})
}
