package handlers

import (
	"net/http"

	"studio/internal/providers/avatar"
	"studio/internal/providers/video"
)

type avatarEstimateRequest struct {
	Text     string `json:"text"`
	Quality  string `json:"quality"`
	AvatarID string `json:"avatar_id"`
}

type videoEstimateRequest struct {
	Duration int    `json:"duration"`
	Quality  string `json:"quality"`
}

func (a *App) EstimateAvatarVideo(w http.ResponseWriter, r *http.Request) {
	var req avatarEstimateRequest
	if !a.decode(w, r, &req) {
		return
	}
	a.json(w, http.StatusOK, avatar.EstimateCost(req.Text, req.Quality, req.AvatarID))
}

func (a *App) EstimateVideo(w http.ResponseWriter, r *http.Request) {
	var req videoEstimateRequest
	if !a.decode(w, r, &req) {
		return
	}
	if req.Duration != 0 && req.Duration != 5 && req.Duration != 10 {
		a.error(w, http.StatusUnprocessableEntity, "validation_error", "duration must be 5 or 10 seconds")
		return
	}
	a.json(w, http.StatusOK, video.EstimateCost(req.Duration, req.Quality))
}
