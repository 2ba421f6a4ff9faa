package handlers

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"studio/internal/jobs"
)

// statusForKind maps a job error kind to an HTTP status. Upstream credential
// failures map to 502.
func statusForKind(kind jobs.Kind) int {
	switch kind {
	case jobs.KindValidation:
		return http.StatusUnprocessableEntity
	case jobs.KindAuth:
		return http.StatusBadGateway
	case jobs.KindRateLimited:
		return http.StatusTooManyRequests
	case jobs.KindQuotaExceeded:
		return http.StatusPaymentRequired
	case jobs.KindNotFound:
		return http.StatusNotFound
	case jobs.KindTimedOut:
		return http.StatusGatewayTimeout
	case jobs.KindTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

func (a *App) jobError(w http.ResponseWriter, err error) {
	kind := jobs.KindOf(err)
	resp := errorResponse{Error: string(kind), Message: err.Error()}

	var jerr *jobs.Error
	if errors.As(err, &jerr) {
		if jerr.Message != "" {
			resp.Message = jerr.Message
		}
		resp.Detail = jerr.Detail
		if kind == jobs.KindRateLimited && jerr.RetryAfter > 0 {
			secs := int(math.Ceil(jerr.RetryAfter.Seconds()))
			w.Header().Set("Retry-After", strconv.Itoa(secs))
		}
	}
	if kind == jobs.KindTimedOut {
		resp.Message = "job did not finish within its polling budget"
	}
	a.json(w, statusForKind(kind), resp)
}
