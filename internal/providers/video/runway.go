// Package video generates short clips with Runway Gen-3, from a text prompt
// or from a still image.
package video

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"studio/internal/jobs"
)

// Name identifies the provider in requests, logs and metrics.
const Name = "video"

const (
	QualityStandard = "standard"
	QualityHigh     = "high"

	ModeTextToVideo  = "text_to_video"
	ModeImageToVideo = "image_to_video"

	DefaultModel       = "gen3a_turbo"
	DefaultDuration    = 5
	DefaultQuality     = QualityStandard
	DefaultAspectRatio = "16:9"
	DefaultAPIVersion  = "2024-09-13"
)

// ErrMissingAPIKey indicates that the adapter was configured without credentials.
var ErrMissingAPIKey = errors.New("video: runway api key is required")

// Options configures the Runway adapter.
type Options struct {
	APIKey     string
	BaseURL    string
	APIVersion string
	StatusPath string
	Model      string
}

// Request is a clip generation request. An ImageURL switches the mode to
// image-to-video.
type Request struct {
	Prompt      string `json:"prompt"`
	ImageURL    string `json:"image_url,omitempty"`
	Duration    int    `json:"duration,omitempty"`
	Quality     string `json:"quality,omitempty"`
	AspectRatio string `json:"aspect_ratio,omitempty"`
	Seed        *int64 `json:"seed,omitempty"`
}

// Mode reports the generation mode implied by the request.
func (r Request) Mode() string {
	if strings.TrimSpace(r.ImageURL) != "" {
		return ModeImageToVideo
	}
	return ModeTextToVideo
}

type generationRequest struct {
	Model       string `json:"model"`
	Prompt      string `json:"prompt"`
	Duration    int    `json:"duration"`
	AspectRatio string `json:"aspect_ratio"`
	Watermark   bool   `json:"watermark"`
	Mode        string `json:"mode"`
	Image       string `json:"image,omitempty"`
	Seed        *int64 `json:"seed,omitempty"`
	Upscale     bool   `json:"upscale,omitempty"`
}

// Adapter translates clip requests to Runway calls.
type Adapter struct {
	apiKey     string
	baseURL    string
	apiVersion string
	statusPath string
	model      string
	classifier jobs.Classifier
	vocabulary jobs.Vocabulary
}

var _ jobs.Adapter = (*Adapter)(nil)

// New constructs the adapter.
func New(opts Options) (*Adapter, error) {
	apiKey := strings.TrimSpace(opts.APIKey)
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://api.runwayml.com/v1"
	}
	apiVersion := strings.TrimSpace(opts.APIVersion)
	if apiVersion == "" {
		apiVersion = DefaultAPIVersion
	}
	statusPath := strings.TrimSpace(opts.StatusPath)
	if statusPath == "" {
		statusPath = "/tasks/{id}"
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = DefaultModel
	}
	classifier := jobs.DefaultClassifier
	classifier.FailureValues = []string{"FAILED", "CANCELLED"}
	classifier.MessageFields = []string{"failure_reason", "failure", "error", "detail", "message"}
	return &Adapter{
		apiKey:     apiKey,
		baseURL:    baseURL,
		apiVersion: apiVersion,
		statusPath: statusPath,
		model:      model,
		classifier: classifier,
		vocabulary: jobs.NewVocabulary(map[string]jobs.Status{
			"SUCCEEDED": jobs.StatusSucceeded,
			"FAILED":    jobs.StatusFailed,
			"CANCELLED": jobs.StatusFailed,
			"PENDING":   jobs.StatusQueued,
			"THROTTLED": jobs.StatusQueued,
			"RUNNING":   jobs.StatusRunning,
		}),
	}, nil
}

func (a *Adapter) Name() string { return Name }

// DecodePayload parses a JSON clip request.
func (a *Adapter) DecodePayload(raw []byte) (any, error) {
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, jobs.Validation("video: decode payload: %v", err)
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
	body, err := json.Marshal(generationRequest{
		Model:       a.model,
		Prompt:      r.Prompt,
		Duration:    r.Duration,
		AspectRatio: r.AspectRatio,
		Watermark:   false,
		Mode:        r.Mode(),
		Image:       strings.TrimSpace(r.ImageURL),
		Seed:        r.Seed,
		Upscale:     r.Quality == QualityHigh,
	})
	if err != nil {
		return jobs.Call{}, fmt.Errorf("video: encode request: %w", err)
	}
	header := a.header()
	if req.IdempotencyKey != "" {
		header.Set("Idempotency-Key", req.IdempotencyKey)
	}
	return jobs.Call{Method: http.MethodPost, URL: a.baseURL + "/image_generations", Header: header, Body: body}, nil
}

func (a *Adapter) ParseSubmission(resp jobs.Response) (jobs.Submission, error) {
	if e := a.classifier.Error(resp); e != nil {
		return jobs.Submission{}, e
	}
	var accepted struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(resp.Body, &accepted); err != nil || strings.TrimSpace(accepted.ID) == "" {
		return jobs.Submission{}, &jobs.Error{
			Kind:       jobs.KindValidation,
			StatusCode: resp.StatusCode,
			Message:    "video: no generation id received",
			Detail:     string(resp.Body),
		}
	}
	id := strings.TrimSpace(accepted.ID)
	return jobs.Submission{Deferred: &jobs.Handle{ID: id, StatusURL: jobs.StatusURL(a.baseURL, a.statusPath, id)}}, nil
}

func (a *Adapter) BuildStatus(h jobs.Handle) (jobs.Call, error) {
	statusURL := h.StatusURL
	if statusURL == "" {
		if h.ID == "" {
			return jobs.Call{}, jobs.Fatal("video: handle has neither status url nor task id")
		}
		statusURL = jobs.StatusURL(a.baseURL, a.statusPath, h.ID)
	}
	return jobs.Call{Method: http.MethodGet, URL: statusURL, Header: a.header()}, nil
}

func (a *Adapter) ParseStatus(resp jobs.Response) (jobs.Result, error) {
	res, fields, err := a.classifier.Status(resp, a.vocabulary)
	if err != nil {
		return res, err
	}
	if res.Status == jobs.StatusFailed && res.Message == "provider reported failure" {
		res.Message = "video: generation failed"
	}
	if res.Status == jobs.StatusSucceeded {
		res.URL = outputURL(fields["output"])
	}
	return res, nil
}

func (a *Adapter) header() http.Header {
	h := jobs.JSONHeader()
	h.Set("Authorization", "Bearer "+a.apiKey)
	h.Set("X-Runway-Version", a.apiVersion)
	return h
}

// outputURL accepts the output shapes Runway has used: {"url": ...}, a bare
// string and a list of urls.
func outputURL(v any) string {
	switch out := v.(type) {
	case string:
		return out
	case map[string]any:
		u, _ := out["url"].(string)
		return u
	case []any:
		for _, item := range out {
			if u := outputURL(item); u != "" {
				return u
			}
		}
	}
	return ""
}

func (r Request) withDefaults() Request {
	r.Prompt = strings.TrimSpace(r.Prompt)
	if r.Duration == 0 {
		r.Duration = DefaultDuration
	}
	if strings.TrimSpace(r.Quality) == "" {
		r.Quality = DefaultQuality
	}
	if strings.TrimSpace(r.AspectRatio) == "" {
		r.AspectRatio = DefaultAspectRatio
	}
	return r
}

func (r Request) validate() error {
	if r.Prompt == "" {
		return jobs.Validation("video: prompt is required")
	}
	if r.Duration != 5 && r.Duration != 10 {
		return jobs.Validation("video: invalid duration %d, must be 5 or 10 seconds", r.Duration)
	}
	if r.Quality != QualityStandard && r.Quality != QualityHigh {
		return jobs.Validation("video: invalid quality %q, must be standard or high", r.Quality)
	}
	switch r.AspectRatio {
	case "16:9", "9:16", "1:1":
	default:
		return jobs.Validation("video: invalid aspect ratio %q, must be 16:9, 9:16 or 1:1", r.AspectRatio)
	}
	return nil
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
	return Request{}, jobs.Validation("video: payload must be a video.Request, got %T", req.Payload)
}

// Estimate is a local cost estimate in USD.
type Estimate struct {
	BaseCost          float64 `json:"base_cost"`
	QualityMultiplier float64 `json:"quality_multiplier"`
	Total             float64 `json:"estimated_cost"`
	Duration          int     `json:"duration"`
	Quality           string  `json:"quality"`
	Currency          string  `json:"currency"`
}

// EstimateCost prices a clip: 0.05 for five seconds, 0.10 for ten, with a
// 1.5x multiplier for high quality.
func EstimateCost(duration int, quality string) Estimate {
	if duration == 0 {
		duration = DefaultDuration
	}
	if quality == "" {
		quality = DefaultQuality
	}
	base := 0.10
	if duration == 5 {
		base = 0.05
	}
	multiplier := 1.0
	if quality == QualityHigh {
		multiplier = 1.5
	}
	return Estimate{
		BaseCost:          base,
		QualityMultiplier: multiplier,
		Total:             base * multiplier,
		Duration:          duration,
		Quality:           quality,
		Currency:          "USD",
	}
}
