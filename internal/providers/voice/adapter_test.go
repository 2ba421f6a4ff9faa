package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"studio/internal/jobs"
)

func TestSynthesizeReturnsAudioImmediately(t *testing.T) {
	audio := []byte("ID3\x03fake-mp3-frames")
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if got := r.URL.EscapedPath(); got != "/v1/text-to-speech/voice%2F1" {
			t.Errorf("unexpected path %q", got)
		}
		if r.Header.Get("xi-api-key") != "xi-key" {
			t.Errorf("xi-api-key = %q", r.Header.Get("xi-api-key"))
		}
		if r.Header.Get("Accept") != "audio/mpeg" {
			t.Errorf("Accept = %q", r.Header.Get("Accept"))
		}
		raw, _ := io.ReadAll(r.Body)
		var body map[string]any
		if err := json.Unmarshal(raw, &body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body["model_id"] != DefaultModel {
			t.Errorf("model_id = %v", body["model_id"])
		}
		settings, _ := body["voice_settings"].(map[string]any)
		if settings["stability"] != 0.8 || settings["similarity_boost"] != 0.5 || settings["use_speaker_boost"] != true {
			t.Errorf("voice_settings = %v", settings)
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write(audio)
	}))
	defer srv.Close()

	a, err := New(Options{APIKey: "xi-key", BaseURL: srv.URL + "/v1"})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	stability := 0.8
	res, err := jobs.New(jobs.Options{}).Run(context.Background(), a, jobs.Request{
		Provider: Name,
		Payload:  Request{Text: "Hello there", VoiceID: "voice/1", Stability: &stability},
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if res.Status != jobs.StatusSucceeded || !bytes.Equal(res.Data, audio) {
		t.Fatalf("result = %+v", res)
	}
	if res.ContentType != "audio/mpeg" {
		t.Fatalf("content type = %q", res.ContentType)
	}
	var meta Audio
	if err := json.Unmarshal(res.Payload, &meta); err != nil || meta.ContentLength != len(audio) {
		t.Fatalf("payload = %s (%v)", res.Payload, err)
	}
	if calls != 1 {
		t.Fatalf("provider called %d times, want 1", calls)
	}
}

func TestValidate(t *testing.T) {
	a, _ := New(Options{APIKey: "k"})
	tooHigh := 1.2
	negative := -0.1
	tests := []struct {
		name string
		req  Request
		ok   bool
	}{
		{name: "defaults", req: Request{Text: "hi", VoiceID: "v"}, ok: true},
		{name: "multilingual", req: Request{Text: "hola", VoiceID: "v", ModelID: ModelMultilingualV2}, ok: true},
		{name: "empty text", req: Request{Text: "  ", VoiceID: "v"}},
		{name: "empty voice", req: Request{Text: "hi"}},
		{name: "unknown model", req: Request{Text: "hi", VoiceID: "v", ModelID: "eleven_v9"}},
		{name: "stability too high", req: Request{Text: "hi", VoiceID: "v", Stability: &tooHigh}},
		{name: "style negative", req: Request{Text: "hi", VoiceID: "v", Style: &negative}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := a.Validate(jobs.Request{Payload: tt.req})
			if tt.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tt.ok && jobs.KindOf(err) != jobs.KindValidation {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestParseSubmissionErrors(t *testing.T) {
	a, _ := New(Options{APIKey: "k"})
	tests := []struct {
		code int
		body string
		want jobs.Kind
	}{
		{code: http.StatusUnauthorized, body: `{"detail":{"status":"invalid_api_key","message":"Invalid API key"}}`, want: jobs.KindAuth},
		{code: http.StatusPaymentRequired, body: `{"detail":"quota"}`, want: jobs.KindQuotaExceeded},
		{code: http.StatusNotFound, body: `{"detail":{"status":"voice_not_found","message":"Voice not found"}}`, want: jobs.KindNotFound},
		{code: http.StatusUnprocessableEntity, body: `{"detail":[{"msg":"text too long"}]}`, want: jobs.KindValidation},
		{code: http.StatusTooManyRequests, body: ``, want: jobs.KindRateLimited},
		{code: http.StatusOK, body: ``, want: jobs.KindFatal},
	}
	for _, tt := range tests {
		_, err := a.ParseSubmission(jobs.Response{StatusCode: tt.code, Header: http.Header{}, Body: []byte(tt.body)})
		if got := jobs.KindOf(err); got != tt.want {
			t.Fatalf("%d: kind = %q, want %q (%v)", tt.code, got, tt.want, err)
		}
	}

	_, err := a.ParseSubmission(jobs.Response{StatusCode: http.StatusNotFound, Body: []byte(`{"detail":{"message":"Voice not found"}}`)})
	var jerr *jobs.Error
	if !errors.As(err, &jerr) || jerr.Message != "Voice not found" {
		t.Fatalf("message = %v", err)
	}
}

func TestNoStatusEndpoint(t *testing.T) {
	a, _ := New(Options{APIKey: "k"})
	if _, err := a.BuildStatus(jobs.Handle{ID: "x"}); jobs.KindOf(err) != jobs.KindFatal {
		t.Fatalf("BuildStatus err = %v", err)
	}
}

func TestExtension(t *testing.T) {
	cases := map[string]string{
		"audio/mpeg":               ".mp3",
		"audio/wav":                ".wav",
		"audio/ogg; codecs=opus":   ".ogg",
		"application/octet-stream": ".mp3",
	}
	for ct, want := range cases {
		if got := Extension(ct); got != want {
			t.Fatalf("Extension(%q) = %q, want %q", ct, got, want)
		}
	}
}
