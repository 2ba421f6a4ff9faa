// Package storyboard renders multi-frame SDXL storyboards through the Render
// MCP orchestration service.
package storyboard

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"studio/internal/jobs"
)

// Name identifies the provider in requests, logs and metrics.
const Name = "storyboard"

// ErrMissingAPIKey indicates that the adapter was configured without a token.
var ErrMissingAPIKey = errors.New("storyboard: render mcp token is required")

// Options configures the Render MCP adapter.
type Options struct {
	Token   string
	BaseURL string
	// StatusPath is the status route template used when the service returns
	// a bare job id.
	StatusPath string
}

// Adapter translates storyboard requests to Render MCP calls.
type Adapter struct {
	token      string
	baseURL    string
	statusPath string
	classifier jobs.Classifier
	vocabulary jobs.Vocabulary
}

var _ jobs.Adapter = (*Adapter)(nil)

type generateRequest struct {
	Action          string         `json:"action"`
	Project         string         `json:"project"`
	ReferenceImages []string       `json:"reference_images"`
	Frames          []Frame        `json:"frames"`
	Parameters      map[string]any `json:"parameters"`
}

type acceptedResponse struct {
	JobID     string `json:"job_id"`
	StatusURL string `json:"status_url"`
}

// New constructs the adapter.
func New(opts Options) (*Adapter, error) {
	token := strings.TrimSpace(opts.Token)
	if token == "" {
		return nil, ErrMissingAPIKey
	}
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://mcp.render.com/mcp"
	}
	statusPath := strings.TrimSpace(opts.StatusPath)
	if statusPath == "" {
		statusPath = jobs.DefaultStatusPath
	}
	return &Adapter{
		token:      token,
		baseURL:    baseURL,
		statusPath: statusPath,
		classifier: jobs.DefaultClassifier,
		vocabulary: jobs.DefaultVocabulary,
	}, nil
}

func (a *Adapter) Name() string { return Name }

// DecodePayload parses a JSON storyboard request.
func (a *Adapter) DecodePayload(raw []byte) (any, error) {
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, jobs.Validation("storyboard: decode payload: %v", err)
	}
	return req, nil
}

func (a *Adapter) Validate(req jobs.Request) error {
	r, err := payload(req)
	if err != nil {
		return err
	}
	return r.withDefaults().validate()
}

func (a *Adapter) BuildSubmission(req jobs.Request) (jobs.Call, error) {
	r, err := payload(req)
	if err != nil {
		return jobs.Call{}, err
	}
	r = r.withDefaults()
	if err := r.validate(); err != nil {
		return jobs.Call{}, err
	}

	// Extras override the generation defaults; an explicit seed overrides both.
	params := map[string]any{
		"cfg_scale": *r.CFGScale,
		"steps":     r.Steps,
		"width":     r.Width,
		"height":    r.Height,
		"scheduler": r.Scheduler,
	}
	for k, v := range r.Extras {
		params[k] = v
	}
	if r.Seed != nil {
		params["seed"] = *r.Seed
	}
	refs := make([]string, 0, len(r.ReferenceImages))
	for _, ref := range r.ReferenceImages {
		refs = append(refs, strings.TrimSpace(ref))
	}

	body, err := json.Marshal(generateRequest{
		Action:          "storyboard.generate",
		Project:         strings.TrimSpace(r.ProjectName),
		ReferenceImages: refs,
		Frames:          r.Frames,
		Parameters:      params,
	})
	if err != nil {
		return jobs.Call{}, fmt.Errorf("storyboard: encode request: %w", err)
	}
	header := a.header()
	if req.IdempotencyKey != "" {
		header.Set("Idempotency-Key", req.IdempotencyKey)
	}
	return jobs.Call{Method: http.MethodPost, URL: a.baseURL, Header: header, Body: body}, nil
}

func (a *Adapter) ParseSubmission(resp jobs.Response) (jobs.Submission, error) {
	if e := a.classifier.Error(resp); e != nil {
		return jobs.Submission{}, e
	}
	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
		return jobs.Submission{Immediate: &jobs.Result{
			Status:  jobs.StatusSucceeded,
			Payload: json.RawMessage(resp.Body),
		}}, nil
	case http.StatusAccepted:
		var accepted acceptedResponse
		if err := json.Unmarshal(resp.Body, &accepted); err != nil {
			return jobs.Submission{}, jobs.Validation("storyboard: decode accepted response: %v", err)
		}
		statusURL, err := a.statusURL(accepted)
		if err != nil {
			return jobs.Submission{}, err
		}
		return jobs.Submission{Deferred: &jobs.Handle{ID: accepted.JobID, StatusURL: statusURL}}, nil
	}
	return jobs.Submission{}, &jobs.Error{
		Kind:       jobs.KindFatal,
		StatusCode: resp.StatusCode,
		Message:    "storyboard: unexpected submission status",
	}
}

func (a *Adapter) BuildStatus(h jobs.Handle) (jobs.Call, error) {
	if h.StatusURL == "" {
		return jobs.Call{}, jobs.Fatal("storyboard: job %q has no status url", h.ID)
	}
	return jobs.Call{Method: http.MethodGet, URL: h.StatusURL, Header: a.header()}, nil
}

func (a *Adapter) ParseStatus(resp jobs.Response) (jobs.Result, error) {
	res, _, err := a.classifier.Status(resp, a.vocabulary)
	return res, err
}

// statusURL prefers the service-provided status url, resolved against the
// base url when relative, and falls back to the job id route.
func (a *Adapter) statusURL(accepted acceptedResponse) (string, error) {
	if raw := strings.TrimSpace(accepted.StatusURL); raw != "" {
		ref, err := url.Parse(raw)
		if err != nil {
			return "", jobs.Validation("storyboard: invalid status_url %q", raw)
		}
		if ref.IsAbs() {
			return ref.String(), nil
		}
		base, err := url.Parse(a.baseURL + "/")
		if err != nil {
			return "", jobs.Fatal("storyboard: invalid base url %q", a.baseURL)
		}
		return base.ResolveReference(ref).String(), nil
	}
	if id := strings.TrimSpace(accepted.JobID); id != "" {
		return jobs.StatusURL(a.baseURL, a.statusPath, id), nil
	}
	return "", jobs.Validation("storyboard: accepted response has neither status_url nor job_id")
}

func (a *Adapter) header() http.Header {
	h := jobs.JSONHeader()
	h.Set("Authorization", "Bearer "+a.token)
	return h
}

func payload(req jobs.Request) (Request, error) {
	switch p := req.Payload.(type) {
	case Request:
		return p, nil
	case *Request:
		if p != nil {
			return *p, nil
		}
	}
	return Request{}, jobs.Validation("storyboard: payload must be a storyboard.Request, got %T", req.Payload)
}
