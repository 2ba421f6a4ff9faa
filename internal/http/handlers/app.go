package handlers

import (
	"encoding/json"
	"net/http"

	"studio/internal/app"
	"studio/internal/infra"
	"studio/internal/jobs"
	"studio/internal/storage"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

type App struct {
	Registry     *jobs.Registry
	Orchestrator *jobs.Orchestrator
	Store        *storage.FileStore
	Metrics      http.Handler
	Logger       *infra.Logger
}

func NewApp(deps *app.App) *App {
	return &App{
		Registry:     deps.Registry,
		Orchestrator: deps.Orchestrator,
		Store:        deps.Store,
		Metrics:      deps.Metrics.Handler(),
		Logger:       deps.Logger,
	}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Detail  any    `json:"detail,omitempty"`
}

func (a *App) error(w http.ResponseWriter, code int, kind, message string) {
	a.json(w, code, errorResponse{Error: kind, Message: message})
}

// decode reads a JSON body into v, rejecting unknown fields and trailing data.
func (a *App) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload: "+err.Error())
		return false
	}
	if dec.More() {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload: trailing data")
		return false
	}
	return true
}
