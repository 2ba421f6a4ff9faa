package handlers

import (
	"net/http"
	"strings"

	"studio/internal/jobs"
	"studio/internal/providers/avatar"
)

type avatarsResponse struct {
	Total   int                 `json:"total"`
	Avatars []avatar.AvatarInfo `json:"avatars"`
}

type voicesResponse struct {
	Language string             `json:"language,omitempty"`
	Total    int                `json:"total"`
	Voices   []avatar.VoiceInfo `json:"voices"`
}

// ListAvatars returns the HeyGen avatar catalog.
func (a *App) ListAvatars(w http.ResponseWriter, r *http.Request) {
	adapter, ok := a.avatarAdapter(w)
	if !ok {
		return
	}
	avatars, err := adapter.ListAvatars(r.Context(), a.Orchestrator)
	if err != nil {
		a.jobError(w, err)
		return
	}
	a.json(w, http.StatusOK, avatarsResponse{Total: len(avatars), Avatars: avatars})
}

// ListVoices returns the HeyGen voices, optionally narrowed by ?language=.
func (a *App) ListVoices(w http.ResponseWriter, r *http.Request) {
	adapter, ok := a.avatarAdapter(w)
	if !ok {
		return
	}
	language := strings.TrimSpace(r.URL.Query().Get("language"))
	voices, err := adapter.ListVoices(r.Context(), a.Orchestrator, language)
	if err != nil {
		a.jobError(w, err)
		return
	}
	a.json(w, http.StatusOK, voicesResponse{Language: language, Total: len(voices), Voices: voices})
}

func (a *App) avatarAdapter(w http.ResponseWriter) (*avatar.Adapter, bool) {
	found, err := a.Registry.Lookup(avatar.Name)
	if err != nil {
		a.jobError(w, err)
		return nil, false
	}
	adapter, ok := found.(*avatar.Adapter)
	if !ok {
		a.jobError(w, jobs.Fatal("avatar provider does not expose a catalog"))
		return nil, false
	}
	return adapter, true
}
