package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"studio/internal/jobs"
	"studio/internal/providers/avatar"
	"studio/internal/providers/storyboard"
	"studio/internal/providers/video"
	"studio/internal/providers/voice"
)

type jobResponse struct {
	jobs.Result
	StorageKey string `json:"storage_key,omitempty"`
	Size       int    `json:"size,omitempty"`
}

type failedJobResponse struct {
	Error   string      `json:"error"`
	Message string      `json:"message"`
	Result  jobs.Result `json:"result"`
}

func (a *App) Storyboards(w http.ResponseWriter, r *http.Request) {
	var req storyboard.Request
	if !a.decode(w, r, &req) {
		return
	}
	a.run(w, r, storyboard.Name, req)
}

func (a *App) Voice(w http.ResponseWriter, r *http.Request) {
	var req voice.Request
	if !a.decode(w, r, &req) {
		return
	}
	a.run(w, r, voice.Name, req)
}

func (a *App) AvatarVideos(w http.ResponseWriter, r *http.Request) {
	var req avatar.VideoRequest
	if !a.decode(w, r, &req) {
		return
	}
	a.run(w, r, avatar.Name, req)
}

func (a *App) Avatars(w http.ResponseWriter, r *http.Request) {
	var req avatar.CreateRequest
	if !a.decode(w, r, &req) {
		return
	}
	a.run(w, r, avatar.Name, req)
}

func (a *App) Videos(w http.ResponseWriter, r *http.Request) {
	var req video.Request
	if !a.decode(w, r, &req) {
		return
	}
	a.run(w, r, video.Name, req)
}

// run drives one job synchronously and writes its terminal outcome.
func (a *App) run(w http.ResponseWriter, r *http.Request, provider string, payload any) {
	adapter, err := a.Registry.Lookup(provider)
	if err != nil {
		a.jobError(w, err)
		return
	}
	req, err := jobRequest(r, provider, payload)
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	res, err := a.Orchestrator.Run(r.Context(), adapter, req)
	if errors.Is(err, jobs.ErrJobFailed) {
		msg := res.Message
		if msg == "" {
			msg = "provider reported failure"
		}
		a.json(w, http.StatusBadGateway, failedJobResponse{Error: "job_failed", Message: msg, Result: res})
		return
	}
	if err != nil {
		a.jobError(w, err)
		return
	}

	resp := jobResponse{Result: res}
	if len(res.Data) > 0 {
		key, err := a.Store.Save(r.Context(), provider, voice.Extension(res.ContentType), res.Data)
		if err != nil {
			a.Logger.Error().Err(err).Str("provider", provider).Msg("handlers: store job output")
			a.error(w, http.StatusInternalServerError, "internal", "failed to store job output")
			return
		}
		resp.StorageKey = key
		resp.Size = len(res.Data)
	}
	a.json(w, http.StatusOK, resp)
}

// jobRequest builds the orchestrator request. The idempotency key comes from
// the Idempotency-Key header; timeout and poll_interval query parameters
// override the default polling policy.
func jobRequest(r *http.Request, provider string, payload any) (jobs.Request, error) {
	req := jobs.Request{
		Provider:       provider,
		IdempotencyKey: strings.TrimSpace(r.Header.Get("Idempotency-Key")),
		Payload:        payload,
	}
	q := r.URL.Query()
	var err error
	if req.Timeout, err = queryDuration(q.Get("timeout")); err != nil {
		return jobs.Request{}, fmt.Errorf("timeout: %w", err)
	}
	if req.PollInterval, err = queryDuration(q.Get("poll_interval")); err != nil {
		return jobs.Request{}, fmt.Errorf("poll_interval: %w", err)
	}
	return req, nil
}

func queryDuration(v string) (time.Duration, error) {
	if v == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("must be positive")
	}
	return d, nil
}
