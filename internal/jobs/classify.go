package jobs

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
)

// Classifier maps raw provider responses to a Kind. The zero value is not
// useful; start from DefaultClassifier and override per provider.
type Classifier struct {
	// StatusField names the embedded status of a 2xx body.
	StatusField string
	// FailureValues are the StatusField values that mean the job failed,
	// compared case-insensitively.
	FailureValues []string
	// MessageFields are consulted in order for a human-readable message.
	MessageFields []string
	// RetryAfterFallback applies to 429 responses without a hint.
	RetryAfterFallback time.Duration
}

// DefaultClassifier matches the conventions shared by the supported providers.
var DefaultClassifier = Classifier{
	StatusField:        "status",
	FailureValues:      []string{"failed", "error"},
	MessageFields:      []string{"error", "message", "detail"},
	RetryAfterFallback: 60 * time.Second,
}

// Classify applies DefaultClassifier.
func Classify(code int, body []byte) Kind {
	return DefaultClassifier.Classify(code, body)
}

// Classify maps a status code and body to a Kind, first match wins. KindNone
// means the response is a well-formed success.
func (c Classifier) Classify(code int, body []byte) Kind {
	switch {
	case code == http.StatusUnauthorized:
		return KindAuth
	case code == http.StatusTooManyRequests:
		return KindRateLimited
	case code == http.StatusPaymentRequired:
		return KindQuotaExceeded
	case code == http.StatusNotFound:
		return KindNotFound
	case code == http.StatusUnprocessableEntity:
		return KindValidation
	case code >= 400 && code < 500:
		return KindFatal
	case code >= 500:
		// Server errors are retryable at the caller's discretion.
		return KindTransient
	case code < 200 || code >= 300:
		return KindFatal
	}
	fields, ok := DecodeObject(body)
	if !ok {
		return KindValidation
	}
	if c.reportsFailure(fields) {
		return KindFatal
	}
	return KindNone
}

// Error classifies resp and returns the detailed error, or nil when the
// response is a well-formed success.
func (c Classifier) Error(resp Response) *Error {
	kind := c.Classify(resp.StatusCode, resp.Body)
	if kind == KindNone {
		return nil
	}
	fields, _ := DecodeObject(resp.Body)
	e := &Error{
		Kind:       kind,
		StatusCode: resp.StatusCode,
		Message:    c.Message(fields, genericMessage(kind)),
	}
	switch kind {
	case KindRateLimited:
		e.RetryAfter = c.retryAfter(resp.Header, fields)
	case KindValidation:
		e.Detail = validationDetail(resp.Body)
	}
	return e
}

// Status interprets a status response: errors are classified as usual, but a
// failure value in StatusField yields a failed Result instead of an error so
// the poller treats it as terminal. fields is the decoded body.
func (c Classifier) Status(resp Response, v Vocabulary) (res Result, fields map[string]any, err error) {
	sc := c
	sc.FailureValues = nil
	if e := sc.Error(resp); e != nil {
		return Result{}, nil, e
	}
	fields, _ = DecodeObject(resp.Body)
	raw, _ := fields[c.StatusField].(string)
	res.Status = v.Lookup(raw)
	if res.Status == StatusFailed {
		res.Message = c.Message(fields, genericMessage(KindFatal))
	}
	if res.Status.Terminal() {
		res.Payload = json.RawMessage(resp.Body)
	}
	return res, fields, nil
}

// Message returns the first non-empty MessageFields entry of fields, or fallback.
func (c Classifier) Message(fields map[string]any, fallback string) string {
	for _, name := range c.MessageFields {
		if msg := stringValue(fields[name]); msg != "" {
			return msg
		}
	}
	return fallback
}

func (c Classifier) reportsFailure(fields map[string]any) bool {
	raw, ok := fields[c.StatusField].(string)
	if !ok {
		return false
	}
	status := fold(raw)
	for _, v := range c.FailureValues {
		if fold(v) == status {
			return true
		}
	}
	return false
}

func (c Classifier) retryAfter(header http.Header, fields map[string]any) time.Duration {
	if d, ok := parseRetryAfter(header.Get("Retry-After")); ok {
		return d
	}
	switch v := fields["retry_after"].(type) {
	case float64:
		if v > 0 {
			return time.Duration(v * float64(time.Second))
		}
	case string:
		if d, ok := parseRetryAfter(v); ok {
			return d
		}
	}
	if c.RetryAfterFallback > 0 {
		return c.RetryAfterFallback
	}
	return 60 * time.Second
}

func parseRetryAfter(raw string) (time.Duration, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	if secs, err := strconv.ParseFloat(raw, 64); err == nil {
		if secs <= 0 {
			return 0, false
		}
		return time.Duration(secs * float64(time.Second)), true
	}
	if at, err := http.ParseTime(raw); err == nil {
		if d := time.Until(at); d > 0 {
			return d, true
		}
	}
	return 0, false
}

func genericMessage(kind Kind) string {
	switch kind {
	case KindAuth:
		return "provider rejected credentials"
	case KindRateLimited:
		return "provider rate limit exceeded"
	case KindQuotaExceeded:
		return "provider quota exceeded"
	case KindNotFound:
		return "provider resource not found"
	case KindValidation:
		return "provider rejected request parameters"
	case KindTransient:
		return "provider temporarily unavailable"
	default:
		return "provider reported failure"
	}
}

func validationDetail(body []byte) any {
	var parsed any
	if err := json.Unmarshal(body, &parsed); err != nil {
		return strings.TrimSpace(string(body))
	}
	if obj, ok := parsed.(map[string]any); ok {
		if detail, ok := obj["detail"]; ok {
			return detail
		}
	}
	return parsed
}

// DecodeObject parses body as a JSON object.
func DecodeObject(body []byte) (map[string]any, bool) {
	if len(body) == 0 {
		return nil, false
	}
	var fields map[string]any
	if err := json.Unmarshal(body, &fields); err != nil || fields == nil {
		return nil, false
	}
	return fields, true
}

// stringValue flattens the shapes providers use for messages: plain strings,
// {"message": "..."} objects and lists of either.
func stringValue(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case map[string]any:
		if msg := stringValue(t["message"]); msg != "" {
			return msg
		}
		return stringValue(t["msg"])
	case []any:
		for _, item := range t {
			if msg := stringValue(item); msg != "" {
				return msg
			}
		}
	}
	return ""
}

func fold(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}
