package avatar

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"studio/internal/jobs"
)

// Fetcher performs a single synchronous provider call.
type Fetcher interface {
	Fetch(ctx context.Context, call jobs.Call) (jobs.Response, error)
}

// AvatarInfo describes a stock or custom avatar available to the account.
type AvatarInfo struct {
	ID              string `json:"avatar_id"`
	Name            string `json:"name"`
	Gender          string `json:"gender,omitempty"`
	PreviewImageURL string `json:"preview_image_url,omitempty"`
	Type            string `json:"avatar_type"`
}

// VoiceInfo describes a voice usable in avatar videos.
type VoiceInfo struct {
	ID              string `json:"voice_id"`
	Name            string `json:"name"`
	Gender          string `json:"gender,omitempty"`
	Language        string `json:"language,omitempty"`
	Accent          string `json:"accent,omitempty"`
	PreviewAudioURL string `json:"preview_audio_url,omitempty"`
}

type avatarEntry struct {
	AvatarID        string `json:"avatar_id"`
	AvatarName      string `json:"avatar_name"`
	Name            string `json:"name"`
	Gender          string `json:"gender"`
	PreviewImageURL string `json:"preview_image_url"`
	AvatarType      string `json:"avatar_type"`
}

type voiceEntry struct {
	VoiceID         string `json:"voice_id"`
	Name            string `json:"name"`
	Gender          string `json:"gender"`
	Language        string `json:"language"`
	Accent          string `json:"accent"`
	PreviewAudio    string `json:"preview_audio"`
	PreviewAudioURL string `json:"preview_audio_url"`
}

// ListAvatarsCall builds the avatar catalog request.
func (a *Adapter) ListAvatarsCall() jobs.Call {
	return jobs.Call{Method: http.MethodGet, URL: a.baseURL + "/avatars", Header: a.header()}
}

// ListVoicesCall builds the voice catalog request, narrowed to language
// when it is set.
func (a *Adapter) ListVoicesCall(language string) jobs.Call {
	u := a.baseURL + "/voices"
	if language = strings.TrimSpace(language); language != "" {
		u += "?" + url.Values{"language": {language}}.Encode()
	}
	return jobs.Call{Method: http.MethodGet, URL: u, Header: a.header()}
}

// ParseAvatars classifies resp and decodes its avatar list.
func (a *Adapter) ParseAvatars(resp jobs.Response) ([]AvatarInfo, error) {
	if e := a.classifier.Error(resp); e != nil {
		return nil, e
	}
	entries, err := decodeList[avatarEntry](resp, "avatars")
	if err != nil {
		return nil, err
	}
	out := make([]AvatarInfo, 0, len(entries))
	for _, e := range entries {
		name := e.AvatarName
		if name == "" {
			name = e.Name
		}
		typ := e.AvatarType
		if typ == "" {
			typ = "standard"
		}
		out = append(out, AvatarInfo{
			ID:              e.AvatarID,
			Name:            name,
			Gender:          e.Gender,
			PreviewImageURL: e.PreviewImageURL,
			Type:            typ,
		})
	}
	return out, nil
}

// ParseVoices classifies resp and decodes its voice list.
func (a *Adapter) ParseVoices(resp jobs.Response) ([]VoiceInfo, error) {
	if e := a.classifier.Error(resp); e != nil {
		return nil, e
	}
	entries, err := decodeList[voiceEntry](resp, "voices")
	if err != nil {
		return nil, err
	}
	out := make([]VoiceInfo, 0, len(entries))
	for _, e := range entries {
		preview := e.PreviewAudioURL
		if preview == "" {
			preview = e.PreviewAudio
		}
		out = append(out, VoiceInfo{
			ID:              e.VoiceID,
			Name:            e.Name,
			Gender:          e.Gender,
			Language:        e.Language,
			Accent:          e.Accent,
			PreviewAudioURL: preview,
		})
	}
	return out, nil
}

// ListAvatars returns the avatars available to the account.
func (a *Adapter) ListAvatars(ctx context.Context, f Fetcher) ([]AvatarInfo, error) {
	resp, err := f.Fetch(ctx, a.ListAvatarsCall())
	if err != nil {
		return nil, err
	}
	return a.ParseAvatars(resp)
}

// ListVoices returns the voices available for language, or all voices when
// language is empty.
func (a *Adapter) ListVoices(ctx context.Context, f Fetcher, language string) ([]VoiceInfo, error) {
	resp, err := f.Fetch(ctx, a.ListVoicesCall(language))
	if err != nil {
		return nil, err
	}
	return a.ParseVoices(resp)
}

// decodeList reads the catalog entries from data, which is either the list
// itself or an object holding it under key.
func decodeList[T any](resp jobs.Response, key string) ([]T, error) {
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(resp.Body, &env); err != nil {
		return nil, malformed(resp, err.Error())
	}
	raw := env.Data
	if t := strings.TrimSpace(string(raw)); strings.HasPrefix(t, "{") {
		var nested map[string]json.RawMessage
		if err := json.Unmarshal(raw, &nested); err != nil {
			return nil, malformed(resp, err.Error())
		}
		raw = nested[key]
	}
	if len(raw) == 0 || string(raw) == "null" {
		return []T{}, nil
	}
	var items []T
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, malformed(resp, err.Error())
	}
	return items, nil
}

func malformed(resp jobs.Response, reason string) *jobs.Error {
	return &jobs.Error{
		Kind:       jobs.KindFatal,
		StatusCode: resp.StatusCode,
		Message:    "avatar: malformed catalog response: " + reason,
	}
}
