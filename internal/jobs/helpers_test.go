package jobs

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeClock advances only when slept on.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	c.sleeps = append(c.sleeps, d)
	return nil
}

func (c *fakeClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.sleeps...)
}

// reply is one scripted provider response.
type reply struct {
	code   int
	body   string
	header http.Header
}

// providerServer serves scripted replies for the submission route and the
// status route. The last status reply repeats once the script runs out.
type providerServer struct {
	*httptest.Server
	mu          sync.Mutex
	submit      reply
	statuses    []reply
	submitCalls atomic.Int32
	statusCalls atomic.Int32
}

func newProviderServer(t *testing.T, submit reply, statuses ...reply) *providerServer {
	t.Helper()
	ps := &providerServer{submit: submit, statuses: statuses}
	mux := http.NewServeMux()
	mux.HandleFunc("/submit", func(w http.ResponseWriter, r *http.Request) {
		ps.submitCalls.Add(1)
		ps.write(w, ps.submit)
	})
	mux.HandleFunc("/jobs/", func(w http.ResponseWriter, r *http.Request) {
		n := int(ps.statusCalls.Add(1))
		ps.mu.Lock()
		rep := reply{code: http.StatusOK, body: `{"status":"running"}`}
		if len(ps.statuses) > 0 {
			idx := n - 1
			if idx >= len(ps.statuses) {
				idx = len(ps.statuses) - 1
			}
			rep = ps.statuses[idx]
		}
		ps.mu.Unlock()
		ps.write(w, rep)
	})
	ps.Server = httptest.NewServer(mux)
	t.Cleanup(ps.Close)
	return ps
}

func (ps *providerServer) write(w http.ResponseWriter, rep reply) {
	for k, vs := range rep.header {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	w.Header().Set("Content-Type", "application/json")
	code := rep.code
	if code == 0 {
		code = http.StatusOK
	}
	w.WriteHeader(code)
	_, _ = w.Write([]byte(rep.body))
}

// stubAdapter speaks a minimal generic job protocol against providerServer.
type stubAdapter struct {
	name    string
	base    string
	reject  error
	builtMu sync.Mutex
	built   []Request
}

func (s *stubAdapter) Name() string {
	if s.name == "" {
		return "stub"
	}
	return s.name
}

func (s *stubAdapter) Validate(req Request) error {
	if s.reject != nil {
		return s.reject
	}
	if _, ok := req.Payload.(string); !ok {
		return Validation("payload must be a prompt string")
	}
	return nil
}

func (s *stubAdapter) BuildSubmission(req Request) (Call, error) {
	s.builtMu.Lock()
	s.built = append(s.built, req)
	s.builtMu.Unlock()
	body, err := json.Marshal(map[string]any{"prompt": req.Payload})
	if err != nil {
		return Call{}, err
	}
	h := JSONHeader()
	h.Set("Idempotency-Key", req.IdempotencyKey)
	return Call{Method: http.MethodPost, URL: s.base + "/submit", Header: h, Body: body}, nil
}

func (s *stubAdapter) ParseSubmission(resp Response) (Submission, error) {
	if e := DefaultClassifier.Error(resp); e != nil {
		return Submission{}, e
	}
	fields, _ := DecodeObject(resp.Body)
	if resp.StatusCode == http.StatusAccepted {
		id, _ := fields["job_id"].(string)
		statusURL, _ := fields["status_url"].(string)
		if statusURL == "" && id != "" {
			statusURL = StatusURL(s.base, "", id)
		}
		return Submission{Deferred: &Handle{ID: id, StatusURL: statusURL}}, nil
	}
	return Submission{Immediate: &Result{Status: StatusSucceeded, Payload: json.RawMessage(resp.Body)}}, nil
}

func (s *stubAdapter) BuildStatus(h Handle) (Call, error) {
	return Call{Method: http.MethodGet, URL: h.StatusURL, Header: JSONHeader()}, nil
}

func (s *stubAdapter) ParseStatus(resp Response) (Result, error) {
	res, _, err := DefaultClassifier.Status(resp, DefaultVocabulary)
	return res, err
}

func (s *stubAdapter) Built() []Request {
	s.builtMu.Lock()
	defer s.builtMu.Unlock()
	return append([]Request(nil), s.built...)
}

// recordingObserver counts observer callbacks.
type recordingObserver struct {
	mu       sync.Mutex
	submits  []Kind
	polls    []Status
	finished []Status
}

func (r *recordingObserver) SubmitObserved(_ string, kind Kind, _ bool, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.submits = append(r.submits, kind)
}

func (r *recordingObserver) PollObserved(_ string, status Status, _ Kind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.polls = append(r.polls, status)
}

func (r *recordingObserver) JobFinished(_ string, status Status, _ Kind, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished = append(r.finished, status)
}
