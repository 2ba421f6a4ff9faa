package avatar

import (
	"math"
	"strings"

	"studio/internal/jobs"
)

// Supported output qualities.
const (
	Quality480p  = "480p"
	Quality720p  = "720p"
	Quality1080p = "1080p"

	DefaultQuality    = Quality720p
	DefaultBackground = "office"
	DefaultLanguage   = "en"
	DefaultVoiceID    = "default"
)

// VideoRequest asks for a video of an avatar speaking Text.
type VideoRequest struct {
	Text          string `json:"text"`
	AvatarID      string `json:"avatar_id"`
	VoiceID       string `json:"voice_id,omitempty"`
	Background    string `json:"background,omitempty"`
	BackgroundURL string `json:"background_url,omitempty"`
	Quality       string `json:"quality,omitempty"`
	Language      string `json:"language,omitempty"`
}

// CreateRequest trains a custom avatar from a photo.
type CreateRequest struct {
	Name     string `json:"name"`
	PhotoURL string `json:"photo_url"`
}

// Dimension is the output size in pixels.
type Dimension struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

var dimensions = map[string]Dimension{
	Quality480p:  {Width: 854, Height: 480},
	Quality720p:  {Width: 1280, Height: 720},
	Quality1080p: {Width: 1920, Height: 1080},
}

// DimensionFor maps a quality label to its output size.
func DimensionFor(quality string) (Dimension, bool) {
	d, ok := dimensions[quality]
	return d, ok
}

func (r VideoRequest) withDefaults() VideoRequest {
	r.Text = strings.TrimSpace(r.Text)
	r.AvatarID = strings.TrimSpace(r.AvatarID)
	if strings.TrimSpace(r.VoiceID) == "" {
		r.VoiceID = DefaultVoiceID
	}
	if strings.TrimSpace(r.Background) == "" {
		r.Background = DefaultBackground
	}
	if strings.TrimSpace(r.Quality) == "" {
		r.Quality = DefaultQuality
	}
	if strings.TrimSpace(r.Language) == "" {
		r.Language = DefaultLanguage
	}
	return r
}

func (r VideoRequest) validate() error {
	if r.Text == "" {
		return jobs.Validation("avatar: text is required for video generation")
	}
	if r.AvatarID == "" {
		return jobs.Validation("avatar: avatar id is required for video generation")
	}
	if _, ok := dimensions[r.Quality]; !ok {
		return jobs.Validation("avatar: quality must be one of 480p, 720p, 1080p, got %q", r.Quality)
	}
	if r.Background == "custom" && strings.TrimSpace(r.BackgroundURL) == "" {
		return jobs.Validation("avatar: custom background requires a background url")
	}
	return nil
}

func (r CreateRequest) validate() error {
	if strings.TrimSpace(r.Name) == "" || strings.TrimSpace(r.PhotoURL) == "" {
		return jobs.Validation("avatar: both name and photo url are required for avatar creation")
	}
	return nil
}

// Estimate is a local cost estimate in USD.
type Estimate struct {
	BaseCost          float64 `json:"base_cost"`
	TextCost          float64 `json:"text_processing_cost"`
	AvatarCost        float64 `json:"avatar_cost"`
	QualityMultiplier float64 `json:"quality_multiplier"`
	Total             float64 `json:"total_estimated_cost"`
	TextLength        int     `json:"text_length"`
	Quality           string  `json:"video_quality"`
	Currency          string  `json:"currency"`
}

var qualityMultipliers = map[string]float64{
	Quality480p:  1.0,
	Quality720p:  1.5,
	Quality1080p: 2.0,
}

// EstimateCost approximates the price of a video: a base fee, a per-100
// characters text fee and a custom avatar surcharge, scaled by quality.
// Unknown qualities are priced as 720p.
func EstimateCost(text, quality, avatarID string) Estimate {
	const (
		baseCost       = 0.10
		costPer100     = 0.05
		customAvatar   = 0.15
		standardAvatar = 0.05
	)
	if quality == "" {
		quality = DefaultQuality
	}
	multiplier, ok := qualityMultipliers[quality]
	if !ok {
		multiplier = qualityMultipliers[DefaultQuality]
	}
	textLength := len([]rune(text))
	textCost := float64(textLength) / 100 * costPer100
	avatarCost := standardAvatar
	if strings.Contains(strings.ToLower(avatarID), "custom") {
		avatarCost = customAvatar
	}
	return Estimate{
		BaseCost:          baseCost,
		TextCost:          round3(textCost),
		AvatarCost:        avatarCost,
		QualityMultiplier: multiplier,
		Total:             round3((baseCost + textCost + avatarCost) * multiplier),
		TextLength:        textLength,
		Quality:           quality,
		Currency:          "USD",
	}
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
