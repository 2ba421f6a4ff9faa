// Package voice synthesizes speech with the ElevenLabs text-to-speech API.
// Synthesis is synchronous: the submission response carries the audio.
package voice

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"studio/internal/jobs"
)

// Name identifies the provider in requests, logs and metrics.
const Name = "voice"

const (
	ModelTurboV2        = "eleven_turbo_v2"
	ModelMonolingualV1  = "eleven_monolingual_v1"
	ModelMultilingualV2 = "eleven_multilingual_v2"

	DefaultModel = ModelMonolingualV1
)

// ErrMissingAPIKey indicates that the adapter was configured without credentials.
var ErrMissingAPIKey = errors.New("voice: elevenlabs api key is required")

// Options configures the ElevenLabs adapter.
type Options struct {
	APIKey  string
	BaseURL string
}

// Request is a text-to-speech request. Nil settings take the provider
// defaults: stability 0.5, similarity boost 0.5, style 0, speaker boost on.
type Request struct {
	Text            string   `json:"text"`
	VoiceID         string   `json:"voice_id"`
	ModelID         string   `json:"model_id,omitempty"`
	Stability       *float64 `json:"stability,omitempty"`
	SimilarityBoost *float64 `json:"similarity_boost,omitempty"`
	Style           *float64 `json:"style,omitempty"`
	SpeakerBoost    *bool    `json:"speaker_boost,omitempty"`
}

// Audio describes synthesized speech; it is the JSON payload of the result.
type Audio struct {
	ContentType   string `json:"content_type"`
	ContentLength int    `json:"content_length"`
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style"`
	UseSpeakerBoost bool    `json:"use_speaker_boost"`
}

type synthesisRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

// Adapter translates speech requests to ElevenLabs calls.
type Adapter struct {
	apiKey     string
	baseURL    string
	classifier jobs.Classifier
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
		baseURL = "https://api.elevenlabs.io/v1"
	}
	return &Adapter{apiKey: apiKey, baseURL: baseURL, classifier: jobs.DefaultClassifier}, nil
}

func (a *Adapter) Name() string { return Name }

// DecodePayload parses a JSON speech request.
func (a *Adapter) DecodePayload(raw []byte) (any, error) {
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, jobs.Validation("voice: decode payload: %v", err)
	}
	return req, nil
}

func (a *Adapter) Validate(req jobs.Request) error {
	r, err := payload(req)
	if err != nil {
		return err
	}
	return r.validate()
}

func (a *Adapter) BuildSubmission(req jobs.Request) (jobs.Call, error) {
	r, err := payload(req)
	if err != nil {
		return jobs.Call{}, err
	}
	if err := r.validate(); err != nil {
		return jobs.Call{}, err
	}
	settings := r.settings()
	body, err := json.Marshal(synthesisRequest{
		Text:          r.Text,
		ModelID:       r.model(),
		VoiceSettings: settings,
	})
	if err != nil {
		return jobs.Call{}, fmt.Errorf("voice: encode request: %w", err)
	}
	header := http.Header{}
	header.Set("Accept", "audio/mpeg")
	header.Set("Content-Type", "application/json")
	header.Set("xi-api-key", a.apiKey)
	return jobs.Call{
		Method: http.MethodPost,
		URL:    a.baseURL + "/text-to-speech/" + url.PathEscape(strings.TrimSpace(r.VoiceID)),
		Header: header,
		Body:   body,
	}, nil
}

// ParseSubmission returns the audio as an immediate result. Non-2xx
// responses are classified from their JSON error body.
func (a *Adapter) ParseSubmission(resp jobs.Response) (jobs.Submission, error) {
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if e := a.classifier.Error(resp); e != nil {
			return jobs.Submission{}, e
		}
		return jobs.Submission{}, jobs.Fatal("voice: unexpected status %d", resp.StatusCode)
	}
	if len(resp.Body) == 0 {
		return jobs.Submission{}, &jobs.Error{Kind: jobs.KindFatal, StatusCode: resp.StatusCode, Message: "voice: empty audio response"}
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "audio/mpeg"
	}
	meta, err := json.Marshal(Audio{ContentType: contentType, ContentLength: len(resp.Body)})
	if err != nil {
		return jobs.Submission{}, fmt.Errorf("voice: encode audio metadata: %w", err)
	}
	return jobs.Submission{Immediate: &jobs.Result{
		Status:      jobs.StatusSucceeded,
		Data:        resp.Body,
		ContentType: contentType,
		Payload:     meta,
	}}, nil
}

func (a *Adapter) BuildStatus(h jobs.Handle) (jobs.Call, error) {
	return jobs.Call{}, jobs.Fatal("voice: synthesis is synchronous, job %q has no status endpoint", h.ID)
}

func (a *Adapter) ParseStatus(jobs.Response) (jobs.Result, error) {
	return jobs.Result{}, jobs.Fatal("voice: synthesis is synchronous and has no status endpoint")
}

// Extension maps an audio content type to a file extension.
func Extension(contentType string) string {
	ct := strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	switch ct {
	case "audio/wav", "audio/x-wav", "audio/wave":
		return ".wav"
	case "audio/ogg":
		return ".ogg"
	case "audio/pcm":
		return ".pcm"
	default:
		return ".mp3"
	}
}

func (r Request) validate() error {
	if strings.TrimSpace(r.Text) == "" {
		return jobs.Validation("voice: text cannot be empty")
	}
	if strings.TrimSpace(r.VoiceID) == "" {
		return jobs.Validation("voice: voice id cannot be empty")
	}
	switch r.model() {
	case ModelTurboV2, ModelMonolingualV1, ModelMultilingualV2:
	default:
		return jobs.Validation("voice: unsupported model %q", r.ModelID)
	}
	for name, v := range map[string]*float64{
		"stability":        r.Stability,
		"similarity boost": r.SimilarityBoost,
		"style":            r.Style,
	} {
		if v != nil && (*v < 0 || *v > 1) {
			return jobs.Validation("voice: %s must be between 0 and 1, got %s", name, strconv.FormatFloat(*v, 'g', -1, 64))
		}
	}
	return nil
}

func (r Request) model() string {
	if m := strings.TrimSpace(r.ModelID); m != "" {
		return m
	}
	return DefaultModel
}

func (r Request) settings() voiceSettings {
	s := voiceSettings{Stability: 0.5, SimilarityBoost: 0.5, UseSpeakerBoost: true}
	if r.Stability != nil {
		s.Stability = *r.Stability
	}
	if r.SimilarityBoost != nil {
		s.SimilarityBoost = *r.SimilarityBoost
	}
	if r.Style != nil {
		s.Style = *r.Style
	}
	if r.SpeakerBoost != nil {
		s.UseSpeakerBoost = *r.SpeakerBoost
	}
	return s
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
	return Request{}, jobs.Validation("voice: payload must be a voice.Request, got %T", req.Payload)
}
