package storyboard

import (
	"net/url"
	"strings"

	"studio/internal/jobs"
)

const (
	MaxFrames = 12

	DefaultCFGScale  = 5.0
	DefaultSteps     = 28
	DefaultWidth     = 768
	DefaultHeight    = 1024
	DefaultScheduler = "dpmpp_2m"

	minDimension = 256
	maxDimension = 1536
	maxCFGScale  = 20.0
	maxSteps     = 150
)

// Frame is one storyboard frame. Zero overrides inherit the request defaults.
type Frame struct {
	Prompt         string   `json:"prompt"`
	NegativePrompt string   `json:"negative_prompt,omitempty"`
	Seed           *int64   `json:"seed,omitempty"`
	GuidanceScale  *float64 `json:"guidance_scale,omitempty"`
	Steps          *int     `json:"steps,omitempty"`
}

// Request describes a storyboard rendered with shared character references.
// Frames may be given directly or as Prompts with NegativePrompts paired by
// index; Prompts are ignored when Frames is set.
type Request struct {
	ProjectName     string         `json:"project_name"`
	ReferenceImages []string       `json:"reference_images"`
	Frames          []Frame        `json:"frames,omitempty"`
	Prompts         []string       `json:"prompts,omitempty"`
	NegativePrompts []string       `json:"negative_prompts,omitempty"`
	CFGScale        *float64       `json:"cfg_scale,omitempty"`
	Steps           int            `json:"steps,omitempty"`
	Width           int            `json:"width,omitempty"`
	Height          int            `json:"height,omitempty"`
	Scheduler       string         `json:"scheduler,omitempty"`
	Seed            *int64         `json:"seed,omitempty"`
	Extras          map[string]any `json:"extras,omitempty"`
}

// FramesFromPrompts builds frames from prompts, pairing negative prompts by
// index.
func FramesFromPrompts(prompts, negative []string) []Frame {
	frames := make([]Frame, 0, len(prompts))
	for i, p := range prompts {
		f := Frame{Prompt: p}
		if i < len(negative) {
			f.NegativePrompt = strings.TrimSpace(negative[i])
		}
		frames = append(frames, f)
	}
	return frames
}

func (r Request) withDefaults() Request {
	if len(r.Frames) == 0 && len(r.Prompts) > 0 {
		r.Frames = FramesFromPrompts(r.Prompts, r.NegativePrompts)
	}
	if r.CFGScale == nil {
		cfg := DefaultCFGScale
		r.CFGScale = &cfg
	}
	if r.Steps == 0 {
		r.Steps = DefaultSteps
	}
	if r.Width == 0 {
		r.Width = DefaultWidth
	}
	if r.Height == 0 {
		r.Height = DefaultHeight
	}
	if strings.TrimSpace(r.Scheduler) == "" {
		r.Scheduler = DefaultScheduler
	}
	return r
}

func (r Request) validate() error {
	if strings.TrimSpace(r.ProjectName) == "" {
		return jobs.Validation("storyboard: project name is required")
	}
	if len(r.Frames) == 0 {
		return jobs.Validation("storyboard: at least one frame is required")
	}
	if len(r.Frames) > MaxFrames {
		return jobs.Validation("storyboard: at most %d frames are supported, got %d", MaxFrames, len(r.Frames))
	}
	for i, f := range r.Frames {
		if strings.TrimSpace(f.Prompt) == "" {
			return jobs.Validation("storyboard: frame %d: prompt is required", i+1)
		}
		if f.GuidanceScale != nil && (*f.GuidanceScale < 0 || *f.GuidanceScale > maxCFGScale) {
			return jobs.Validation("storyboard: frame %d: guidance scale must be between 0 and %g", i+1, maxCFGScale)
		}
		if f.Steps != nil && (*f.Steps < 1 || *f.Steps > maxSteps) {
			return jobs.Validation("storyboard: frame %d: steps must be between 1 and %d", i+1, maxSteps)
		}
	}
	if len(r.ReferenceImages) == 0 {
		return jobs.Validation("storyboard: at least one reference image is required")
	}
	for _, ref := range r.ReferenceImages {
		if !isHTTPURL(ref) {
			return jobs.Validation("storyboard: reference image %q must be an absolute http(s) URL", ref)
		}
	}
	if cfg := *r.CFGScale; cfg < 0 || cfg > maxCFGScale {
		return jobs.Validation("storyboard: cfg scale must be between 0 and %g", maxCFGScale)
	}
	if r.Steps < 1 || r.Steps > maxSteps {
		return jobs.Validation("storyboard: steps must be between 1 and %d", maxSteps)
	}
	if r.Width < minDimension || r.Width > maxDimension {
		return jobs.Validation("storyboard: width must be between %d and %d", minDimension, maxDimension)
	}
	if r.Height < minDimension || r.Height > maxDimension {
		return jobs.Validation("storyboard: height must be between %d and %d", minDimension, maxDimension)
	}
	return nil
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
