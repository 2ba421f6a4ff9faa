// Package jobs drives long-running generation jobs on remote providers: one
// submission call, then status polling until the provider reports a terminal
// state or the polling budget runs out.
package jobs

import (
	"encoding/json"
	"time"
)

// Status is the provider-neutral lifecycle state of a job.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusTimedOut  Status = "timed_out"
)

// Terminal reports whether no further polling may follow this status.
func (s Status) Terminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusTimedOut:
		return true
	}
	return false
}

// Backoff selects how waits between polls are computed.
type Backoff string

const (
	// BackoffNone waits exactly Policy.Interval between polls.
	BackoffNone Backoff = "none"
	// BackoffFixed waits Policy.Interval, extended to a provider retry-after
	// hint when a poll was rate limited.
	BackoffFixed Backoff = "fixed"
)

// Policy governs how a deferred job is awaited.
type Policy struct {
	Interval time.Duration
	MaxWait  time.Duration
	Backoff  Backoff
}

// DefaultPolicy mirrors the provider defaults used before the orchestrator
// existed: poll every five seconds for at most five minutes.
var DefaultPolicy = Policy{
	Interval: 5 * time.Second,
	MaxWait:  5 * time.Minute,
	Backoff:  BackoffFixed,
}

// Request is one generation request. Payload carries the provider-specific
// fields and is only interpreted by the adapter for Provider.
type Request struct {
	Provider       string
	IdempotencyKey string
	Timeout        time.Duration
	PollInterval   time.Duration
	Payload        any
}

// Policy layers the request's timing fields over defaults.
func (r Request) Policy(defaults Policy) Policy {
	p := defaults
	if r.Timeout > 0 {
		p.MaxWait = r.Timeout
	}
	if r.PollInterval > 0 {
		p.Interval = r.PollInterval
	}
	if p.Backoff == "" {
		p.Backoff = BackoffFixed
	}
	return p
}

// Handle identifies a job the provider accepted but has not finished.
type Handle struct {
	ID          string
	Provider    string
	StatusURL   string
	SubmittedAt time.Time
}

// Result is the terminal outcome of a job. URL points at the primary output
// when the provider hosts it. Binary outputs (audio) are carried in Data,
// JSON provider payloads in Payload.
type Result struct {
	Status      Status          `json:"status"`
	Provider    string          `json:"provider"`
	JobID       string          `json:"job_id,omitempty"`
	URL         string          `json:"url,omitempty"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	Data        []byte          `json:"-"`
	ContentType string          `json:"content_type,omitempty"`
	Message     string          `json:"message,omitempty"`
	CompletedAt time.Time       `json:"completed_at"`
}
