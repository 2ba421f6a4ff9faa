// Package avatar generates talking-avatar videos and trains custom avatars
// with the HeyGen API. Both operations are deferred jobs.
package avatar

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"studio/internal/jobs"
)

// Name identifies the provider in requests, logs and metrics.
const Name = "avatar"

// ErrMissingAPIKey indicates that the adapter was configured without credentials.
var ErrMissingAPIKey = errors.New("avatar: heygen api key is required")

// Options configures the HeyGen adapter.
type Options struct {
	APIKey     string
	BaseURL    string
	StatusPath string
}

// Adapter translates avatar requests to HeyGen calls.
type Adapter struct {
	apiKey     string
	baseURL    string
	statusPath string
	classifier jobs.Classifier
	vocabulary jobs.Vocabulary
}

var _ jobs.Adapter = (*Adapter)(nil)

type character struct {
	Type        string `json:"type"`
	AvatarID    string `json:"avatar_id"`
	AvatarStyle string `json:"avatar_style"`
}

type voiceInput struct {
	Type      string `json:"type"`
	InputText string `json:"input_text"`
	VoiceID   string `json:"voice_id"`
	Language  string `json:"language"`
}

type background struct {
	Type string `json:"type"`
	URL  string `json:"url,omitempty"`
}

type videoInput struct {
	Character  character  `json:"character"`
	Voice      voiceInput `json:"voice"`
	Background background `json:"background"`
}

type generateRequest struct {
	VideoInputs []videoInput `json:"video_inputs"`
	Dimension   Dimension    `json:"dimension"`
	AspectRatio string       `json:"aspect_ratio"`
	CallbackID  string       `json:"callback_id,omitempty"`
}

type createRequest struct {
	AvatarName string `json:"avatar_name"`
	ImageURL   string `json:"image_url"`
	VoiceID    string `json:"voice_id"`
}

// New constructs the adapter.
func New(opts Options) (*Adapter, error) {
	apiKey := strings.TrimSpace(opts.APIKey)
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://api.heygen.com/v2"
	}
	statusPath := strings.TrimSpace(opts.StatusPath)
	if statusPath == "" {
		statusPath = jobs.DefaultStatusPath
	}
	classifier := jobs.DefaultClassifier
	classifier.MessageFields = []string{"error_message", "error", "message", "detail"}
	return &Adapter{
		apiKey:     apiKey,
		baseURL:    baseURL,
		statusPath: statusPath,
		classifier: classifier,
		vocabulary: jobs.NewVocabulary(map[string]jobs.Status{
			"completed":  jobs.StatusSucceeded,
			"processing": jobs.StatusRunning,
			"pending":    jobs.StatusRunning,
			"waiting":    jobs.StatusRunning,
			"failed":     jobs.StatusFailed,
			"error":      jobs.StatusFailed,
		}),
	}, nil
}

func (a *Adapter) Name() string { return Name }

// DecodePayload parses a JSON avatar request. Objects carrying a photo url
// and no text are avatar creations; everything else is a video request.
func (a *Adapter) DecodePayload(raw []byte) (any, error) {
	var shape struct {
		Text     string `json:"text"`
		PhotoURL string `json:"photo_url"`
	}
	if err := json.Unmarshal(raw, &shape); err != nil {
		return nil, jobs.Validation("avatar: decode payload: %v", err)
	}
	if shape.PhotoURL != "" && shape.Text == "" {
		var req CreateRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			return nil, jobs.Validation("avatar: decode payload: %v", err)
		}
		return req, nil
	}
	var req VideoRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, jobs.Validation("avatar: decode payload: %v", err)
	}
	return req, nil
}

func (a *Adapter) Validate(req jobs.Request) error {
	switch p := req.Payload.(type) {
	case VideoRequest:
		return p.withDefaults().validate()
	case *VideoRequest:
		if p != nil {
			return p.withDefaults().validate()
		}
	case CreateRequest:
		return p.validate()
	case *CreateRequest:
		if p != nil {
			return p.validate()
		}
	}
	return jobs.Validation("avatar: payload must be an avatar.VideoRequest or avatar.CreateRequest, got %T", req.Payload)
}

func (a *Adapter) BuildSubmission(req jobs.Request) (jobs.Call, error) {
	if err := a.Validate(req); err != nil {
		return jobs.Call{}, err
	}
	var (
		path string
		body any
	)
	switch p := req.Payload.(type) {
	case VideoRequest:
		path, body = "/video/generate", generateBody(p, req.IdempotencyKey)
	case *VideoRequest:
		path, body = "/video/generate", generateBody(*p, req.IdempotencyKey)
	case CreateRequest:
		path, body = "/avatars/create", createBody(p)
	case *CreateRequest:
		path, body = "/avatars/create", createBody(*p)
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return jobs.Call{}, fmt.Errorf("avatar: encode request: %w", err)
	}
	return jobs.Call{Method: http.MethodPost, URL: a.baseURL + path, Header: a.header(), Body: raw}, nil
}

func (a *Adapter) ParseSubmission(resp jobs.Response) (jobs.Submission, error) {
	if e := a.classifier.Error(resp); e != nil {
		return jobs.Submission{}, e
	}
	fields, _ := jobs.DecodeObject(resp.Body)
	id := jobID(fields)
	if id == "" {
		if data, ok := fields["data"].(map[string]any); ok {
			id = jobID(data)
		}
	}
	if id == "" {
		return jobs.Submission{}, &jobs.Error{
			Kind:       jobs.KindValidation,
			StatusCode: resp.StatusCode,
			Message:    "avatar: response did not include a job id",
			Detail:     string(resp.Body),
		}
	}
	return jobs.Submission{Deferred: &jobs.Handle{ID: id, StatusURL: jobs.StatusURL(a.baseURL, a.statusPath, id)}}, nil
}

func (a *Adapter) BuildStatus(h jobs.Handle) (jobs.Call, error) {
	statusURL := h.StatusURL
	if statusURL == "" {
		if h.ID == "" {
			return jobs.Call{}, jobs.Fatal("avatar: handle has neither status url nor job id")
		}
		statusURL = jobs.StatusURL(a.baseURL, a.statusPath, h.ID)
	}
	return jobs.Call{Method: http.MethodGet, URL: statusURL, Header: a.header()}, nil
}

// ParseStatus reads the job state from the top level of the body, or from
// its data object when the top level carries none.
func (a *Adapter) ParseStatus(resp jobs.Response) (jobs.Result, error) {
	res, fields, err := a.classifier.Status(resp, a.vocabulary)
	if err != nil {
		return res, err
	}
	if _, ok := fields["status"]; !ok {
		if data, ok := fields["data"].(map[string]any); ok {
			raw, _ := data["status"].(string)
			res.Status = a.vocabulary.Lookup(raw)
			fields = data
			if res.Status == jobs.StatusFailed {
				res.Message = a.classifier.Message(data, "provider reported failure")
			}
			if res.Status.Terminal() {
				res.Payload = json.RawMessage(resp.Body)
			}
		}
	}
	if res.Status == jobs.StatusSucceeded {
		for _, key := range []string{"video_url", "download_url", "url"} {
			if u, ok := fields[key].(string); ok && u != "" {
				res.URL = u
				break
			}
		}
	}
	return res, nil
}

func (a *Adapter) header() http.Header {
	h := jobs.JSONHeader()
	h.Set("X-API-KEY", a.apiKey)
	return h
}

func generateBody(r VideoRequest, callbackID string) generateRequest {
	r = r.withDefaults()
	bg := background{Type: r.Background}
	if r.Background == "custom" {
		bg.URL = strings.TrimSpace(r.BackgroundURL)
	}
	dim, _ := DimensionFor(r.Quality)
	return generateRequest{
		VideoInputs: []videoInput{{
			Character: character{Type: "avatar", AvatarID: r.AvatarID, AvatarStyle: "normal"},
			Voice: voiceInput{
				Type:      "text",
				InputText: r.Text,
				VoiceID:   r.VoiceID,
				Language:  r.Language,
			},
			Background: bg,
		}},
		Dimension:   dim,
		AspectRatio: "16:9",
		CallbackID:  callbackID,
	}
}

func createBody(r CreateRequest) createRequest {
	return createRequest{
		AvatarName: strings.TrimSpace(r.Name),
		ImageURL:   strings.TrimSpace(r.PhotoURL),
		VoiceID:    DefaultVoiceID,
	}
}

func jobID(fields map[string]any) string {
	for _, key := range []string{"job_id", "video_id"} {
		if id, ok := fields[key].(string); ok && strings.TrimSpace(id) != "" {
			return strings.TrimSpace(id)
		}
	}
	return ""
}
