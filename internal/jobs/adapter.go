package jobs

import (
	"net/http"
	"net/url"
	"strings"
)

// Call is a provider HTTP request built by an adapter. The orchestrator owns
// the transport; adapters never perform I/O.
type Call struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// Response is the fully read provider response handed back to an adapter.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Submission is the parsed outcome of a submission call. Exactly one of
// Immediate and Deferred is set.
type Submission struct {
	Immediate *Result
	Deferred  *Handle
}

// Adapter translates between the provider-neutral job model and one
// provider's HTTP API. Provider-specific field names never leave the adapter.
type Adapter interface {
	// Name is the provider identifier used in logs, metrics and the registry.
	Name() string
	// Validate checks provider constraints locally, before any network call.
	Validate(req Request) error
	BuildSubmission(req Request) (Call, error)
	ParseSubmission(resp Response) (Submission, error)
	BuildStatus(h Handle) (Call, error)
	// ParseStatus returns a terminal Result, a non-terminal Result meaning
	// the job is still pending, or a classified *Error.
	ParseStatus(resp Response) (Result, error)
}

// PayloadDecoder is implemented by adapters that can build their typed
// payload from JSON, as read from job files and HTTP bodies.
type PayloadDecoder interface {
	DecodePayload(raw []byte) (any, error)
}

// DefaultStatusPath is the status route used when a provider returns a bare
// job id and no status URL.
const DefaultStatusPath = "/jobs/{id}"

// StatusURL derives a status endpoint from a base URL and a path template
// containing "{id}". The trailing slash of base is dropped.
func StatusURL(base, pathTemplate, id string) string {
	if pathTemplate == "" {
		pathTemplate = DefaultStatusPath
	}
	if !strings.HasPrefix(pathTemplate, "/") {
		pathTemplate = "/" + pathTemplate
	}
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	return base + strings.ReplaceAll(pathTemplate, "{id}", url.PathEscape(id))
}

// JSONHeader returns the headers shared by JSON provider APIs.
func JSONHeader() http.Header {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	h.Set("Accept", "application/json")
	return h
}

// Vocabulary maps raw provider status strings onto Status. Keys are matched
// case-insensitively; unknown values read as pending.
type Vocabulary map[string]Status

// NewVocabulary folds the keys of m.
func NewVocabulary(m map[string]Status) Vocabulary {
	v := make(Vocabulary, len(m))
	for raw, status := range m {
		v[fold(raw)] = status
	}
	return v
}

// DefaultVocabulary covers the status strings common to job APIs.
var DefaultVocabulary = NewVocabulary(map[string]Status{
	"succeeded":  StatusSucceeded,
	"completed":  StatusSucceeded,
	"ready":      StatusSucceeded,
	"failed":     StatusFailed,
	"error":      StatusFailed,
	"queued":     StatusQueued,
	"pending":    StatusQueued,
	"running":    StatusRunning,
	"processing": StatusRunning,
})

// Lookup maps raw to a Status.
func (v Vocabulary) Lookup(raw string) Status {
	if status, ok := v[fold(raw)]; ok {
		return status
	}
	return StatusRunning
}
