package jobs

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		code int
		body string
		want Kind
	}{
		{name: "unauthorized", code: 401, body: `{"detail":"bad key"}`, want: KindAuth},
		{name: "rate limited", code: 429, body: ``, want: KindRateLimited},
		{name: "payment required", code: 402, body: `{"error":"no credits"}`, want: KindQuotaExceeded},
		{name: "not found", code: 404, body: `not found`, want: KindNotFound},
		{name: "unprocessable", code: 422, body: `{"detail":[{"msg":"bad"}]}`, want: KindValidation},
		{name: "forbidden falls back to fatal", code: 403, body: `{}`, want: KindFatal},
		{name: "bad request falls back to fatal", code: 400, body: `oops`, want: KindFatal},
		{name: "server error is transient", code: 500, body: `{"error":"boom"}`, want: KindTransient},
		{name: "bad gateway is transient", code: 502, body: ``, want: KindTransient},
		{name: "redirect is fatal", code: 302, body: ``, want: KindFatal},
		{name: "success with invalid json", code: 200, body: `<html>`, want: KindValidation},
		{name: "success with empty body", code: 201, body: ``, want: KindValidation},
		{name: "success with json array", code: 200, body: `[1,2]`, want: KindValidation},
		{name: "success with failed sentinel", code: 200, body: `{"status":"failed","error":"nsfw"}`, want: KindFatal},
		{name: "success with upper case error sentinel", code: 200, body: `{"status":"ERROR"}`, want: KindFatal},
		{name: "success", code: 200, body: `{"status":"completed","images":[]}`, want: KindNone},
		{name: "accepted without status", code: 202, body: `{"job_id":"abc"}`, want: KindNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.code, []byte(tt.body)))
		})
	}
}

func TestClassifyIsPure(t *testing.T) {
	body := []byte(`{"status":"error","message":"x"}`)
	first := Classify(200, body)
	second := Classify(200, body)
	assert.Equal(t, first, second)
	assert.Equal(t, `{"status":"error","message":"x"}`, string(body))
}

func TestClassifierHonorsProviderSentinels(t *testing.T) {
	c := DefaultClassifier
	c.FailureValues = []string{"CANCELLED"}
	assert.Equal(t, KindFatal, c.Classify(200, []byte(`{"status":"cancelled"}`)))
	assert.Equal(t, KindNone, c.Classify(200, []byte(`{"status":"failed"}`)))
}

func TestErrorRetryAfter(t *testing.T) {
	t.Run("header seconds", func(t *testing.T) {
		e := DefaultClassifier.Error(Response{
			StatusCode: 429,
			Header:     http.Header{"Retry-After": []string{"12"}},
		})
		require.NotNil(t, e)
		assert.Equal(t, KindRateLimited, e.Kind)
		assert.Equal(t, 12*time.Second, e.RetryAfter)
	})
	t.Run("body field", func(t *testing.T) {
		e := DefaultClassifier.Error(Response{StatusCode: 429, Body: []byte(`{"retry_after": 7}`)})
		require.NotNil(t, e)
		assert.Equal(t, 7*time.Second, e.RetryAfter)
	})
	t.Run("fallback", func(t *testing.T) {
		e := DefaultClassifier.Error(Response{StatusCode: 429, Body: []byte(`slow down`)})
		require.NotNil(t, e)
		assert.Equal(t, 60*time.Second, e.RetryAfter)
		assert.Equal(t, "provider rate limit exceeded", e.Message)
	})
}

func TestErrorValidationDetail(t *testing.T) {
	e := DefaultClassifier.Error(Response{StatusCode: 422, Body: []byte(`{"detail":[{"loc":["text"],"msg":"field required"}]}`)})
	require.NotNil(t, e)
	assert.Equal(t, KindValidation, e.Kind)
	assert.Equal(t, "field required", e.Message)
	detail, ok := e.Detail.([]any)
	require.True(t, ok, "detail = %#v", e.Detail)
	assert.Len(t, detail, 1)

	raw := DefaultClassifier.Error(Response{StatusCode: 422, Body: []byte(" not json ")})
	require.NotNil(t, raw)
	assert.Equal(t, "not json", raw.Detail)
}

func TestErrorMessages(t *testing.T) {
	e := DefaultClassifier.Error(Response{StatusCode: 200, Body: []byte(`{"status":"failed","error":{"message":"content policy"}}`)})
	require.NotNil(t, e)
	assert.Equal(t, KindFatal, e.Kind)
	assert.Equal(t, "content policy", e.Message)

	generic := DefaultClassifier.Error(Response{StatusCode: 200, Body: []byte(`{"status":"error"}`)})
	require.NotNil(t, generic)
	assert.Equal(t, "provider reported failure", generic.Message)

	assert.Nil(t, DefaultClassifier.Error(Response{StatusCode: 200, Body: []byte(`{"status":"ready"}`)}))
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindNone, KindOf(nil))
	assert.Equal(t, KindAuth, KindOf(&Error{Kind: KindAuth}))
	assert.Equal(t, KindTimedOut, KindOf(&Error{Kind: KindTransient, Err: ErrTimedOut}))
	assert.Equal(t, KindFatal, KindOf(assert.AnError))
	assert.True(t, IsRetryable(KindTransient))
	assert.True(t, IsRetryable(KindRateLimited))
	assert.False(t, IsRetryable(KindNotFound))
}

func TestClassifierStatus(t *testing.T) {
	res, fields, err := DefaultClassifier.Status(Response{StatusCode: 200, Body: []byte(`{"status":"failed","error":"gpu lost"}`)}, DefaultVocabulary)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, "gpu lost", res.Message)
	assert.Equal(t, "failed", fields["status"])

	res, _, err = DefaultClassifier.Status(Response{StatusCode: 202, Body: []byte(`{"status":"processing"}`)}, DefaultVocabulary)
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, res.Status)
	assert.Nil(t, res.Payload)

	_, _, err = DefaultClassifier.Status(Response{StatusCode: 503}, DefaultVocabulary)
	assert.Equal(t, KindTransient, KindOf(err))
}
