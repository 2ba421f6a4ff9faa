package jobs

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunImmediateResultSkipsPolling(t *testing.T) {
	ps := newProviderServer(t, reply{code: http.StatusOK, body: `{"status":"completed","images":["a.png"]}`})
	obs := &recordingObserver{}
	o := New(Options{Clock: newFakeClock(), Observer: obs})

	res, err := o.Run(context.Background(), &stubAdapter{base: ps.URL}, Request{Provider: "stub", Payload: "a cat"})
	require.NoError(t, err)

	assert.Equal(t, StatusSucceeded, res.Status)
	assert.Equal(t, "stub", res.Provider)
	assert.False(t, res.CompletedAt.IsZero())
	assert.EqualValues(t, 1, ps.submitCalls.Load())
	assert.Zero(t, ps.statusCalls.Load())
	assert.Equal(t, []Status{StatusSucceeded}, obs.finished)
}

func TestRunDeferredJobDerivesStatusURL(t *testing.T) {
	ps := newProviderServer(t,
		reply{code: http.StatusAccepted, body: `{"job_id":"abc123"}`},
		reply{body: `{"status":"running"}`},
		reply{body: `{"status":"succeeded","url":"https://cdn.test/a.png"}`},
	)
	clock := newFakeClock()
	o := New(Options{Clock: clock, Policy: Policy{Interval: time.Second, MaxWait: time.Minute}})
	a := &stubAdapter{base: ps.URL}

	sub, err := o.Submit(context.Background(), a, Request{Payload: "a cat"})
	require.NoError(t, err)
	require.NotNil(t, sub.Deferred)
	assert.Nil(t, sub.Immediate)
	assert.Equal(t, "abc123", sub.Deferred.ID)
	assert.Equal(t, ps.URL+"/jobs/abc123", sub.Deferred.StatusURL)
	assert.Equal(t, "stub", sub.Deferred.Provider)
	assert.Equal(t, clock.Now(), sub.Deferred.SubmittedAt)

	res, err := o.Run(context.Background(), a, Request{Payload: "a cat"})
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, res.Status)
	assert.Equal(t, "abc123", res.JobID)
	assert.EqualValues(t, 2, ps.submitCalls.Load())
	assert.EqualValues(t, 2, ps.statusCalls.Load())
}

func TestRunDeferredWithoutStatusEndpointIsFatal(t *testing.T) {
	ps := newProviderServer(t, reply{code: http.StatusAccepted, body: `{}`})
	o := New(Options{Clock: newFakeClock()})

	res, err := o.Run(context.Background(), &stubAdapter{base: ps.URL}, Request{Payload: "x"})
	require.Error(t, err)
	assert.Equal(t, KindFatal, KindOf(err))
	assert.Equal(t, StatusFailed, res.Status)
	assert.Zero(t, ps.statusCalls.Load())
}

func TestRunValidationFailureMakesNoCall(t *testing.T) {
	ps := newProviderServer(t, reply{})
	o := New(Options{Clock: newFakeClock()})

	res, err := o.Run(context.Background(), &stubAdapter{base: ps.URL}, Request{Payload: 42})
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))
	assert.Equal(t, StatusFailed, res.Status)
	assert.Zero(t, ps.submitCalls.Load())
}

func TestSubmitSurfacesProviderErrors(t *testing.T) {
	tests := []struct {
		name  string
		rep   reply
		want  Kind
		retry time.Duration
	}{
		{name: "rate limited", rep: reply{code: http.StatusTooManyRequests, body: `{}`}, want: KindRateLimited, retry: time.Minute},
		{name: "auth", rep: reply{code: http.StatusUnauthorized}, want: KindAuth},
		{name: "validation", rep: reply{code: http.StatusUnprocessableEntity, body: `{"detail":"bad width"}`}, want: KindValidation},
		{name: "server error", rep: reply{code: http.StatusServiceUnavailable}, want: KindTransient},
		{name: "success with garbage", rep: reply{code: http.StatusOK, body: `<html>`}, want: KindValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ps := newProviderServer(t, tt.rep)
			obs := &recordingObserver{}
			s := NewSubmitter(Options{Clock: newFakeClock(), Observer: obs})

			_, err := s.Submit(context.Background(), &stubAdapter{base: ps.URL}, Request{Payload: "x"})
			require.Error(t, err)
			var jerr *Error
			require.ErrorAs(t, err, &jerr)
			assert.Equal(t, tt.want, jerr.Kind)
			assert.Equal(t, tt.retry, jerr.RetryAfter)
			assert.EqualValues(t, 1, ps.submitCalls.Load())
			assert.Zero(t, ps.statusCalls.Load())
			assert.Equal(t, []Kind{tt.want}, obs.submits)
		})
	}
}

func TestSubmitAssignsIdempotencyKey(t *testing.T) {
	var header atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header.Store(r.Header.Get("Idempotency-Key"))
		_, _ = w.Write([]byte(`{"status":"completed"}`))
	}))
	t.Cleanup(srv.Close)

	a := &stubAdapter{base: srv.URL}
	s := NewSubmitter(Options{})
	_, err := s.Submit(context.Background(), a, Request{Payload: "x"})
	require.NoError(t, err)

	built := a.Built()
	require.Len(t, built, 1)
	assert.NotEmpty(t, built[0].IdempotencyKey)
	assert.Equal(t, built[0].IdempotencyKey, header.Load())

	_, err = s.Submit(context.Background(), a, Request{IdempotencyKey: "fixed-key", Payload: "x"})
	require.NoError(t, err)
	assert.Equal(t, "fixed-key", header.Load())
}

func TestSubmitTransportFailureIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	s := NewSubmitter(Options{})
	_, err := s.Submit(context.Background(), &stubAdapter{base: base}, Request{Payload: "x"})
	require.Error(t, err)
	assert.Equal(t, KindTransient, KindOf(err))
}

func TestSubmitHonorsSubmitTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	t.Cleanup(srv.Close)

	s := NewSubmitter(Options{SubmitTimeout: 50 * time.Millisecond})
	start := time.Now()
	_, err := s.Submit(context.Background(), &stubAdapter{base: srv.URL}, Request{Payload: "x"})
	require.Error(t, err)
	assert.Equal(t, KindTransient, KindOf(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 3*time.Second)
}

func TestRunAllKeepsInputOrder(t *testing.T) {
	ok := newProviderServer(t, reply{code: http.StatusOK, body: `{"status":"completed"}`})
	deferred := newProviderServer(t,
		reply{code: http.StatusAccepted, body: `{"job_id":"j2"}`},
		reply{body: `{"status":"succeeded"}`},
	)
	broken := newProviderServer(t, reply{code: http.StatusUnauthorized})

	o := New(Options{Clock: newFakeClock(), Policy: Policy{Interval: time.Second, MaxWait: time.Minute}})
	out := o.RunAll(context.Background(), []Job{
		{Adapter: &stubAdapter{name: "a", base: ok.URL}, Request: Request{Payload: "one"}},
		{Adapter: &stubAdapter{name: "b", base: deferred.URL}, Request: Request{Payload: "two"}},
		{Adapter: &stubAdapter{name: "c", base: broken.URL}, Request: Request{Payload: "three"}},
	}, 2)

	require.Len(t, out, 3)
	assert.NoError(t, out[0].Err)
	assert.Equal(t, "a", out[0].Result.Provider)
	assert.NoError(t, out[1].Err)
	assert.Equal(t, "j2", out[1].Result.JobID)
	assert.Equal(t, KindAuth, KindOf(out[2].Err))
	assert.Equal(t, StatusFailed, out[2].Result.Status)
}

func TestRequestPolicyOverridesDefaults(t *testing.T) {
	p := Request{Timeout: time.Minute, PollInterval: 2 * time.Second}.Policy(DefaultPolicy)
	assert.Equal(t, Policy{Interval: 2 * time.Second, MaxWait: time.Minute, Backoff: BackoffFixed}, p)
	assert.Equal(t, DefaultPolicy, Request{}.Policy(DefaultPolicy))
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(&stubAdapter{name: "voice"}, &stubAdapter{name: "avatar"})
	assert.Equal(t, []string{"avatar", "voice"}, r.Names())

	a, err := r.Lookup("voice")
	require.NoError(t, err)
	assert.Equal(t, "voice", a.Name())

	_, err = r.Lookup("music")
	require.Error(t, err)
	assert.Equal(t, KindNotFound, KindOf(err))
}
