package jobs

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"studio/internal/infra"
)

// Options configures the submitter, the poller and the orchestrator.
type Options struct {
	HTTPClient *http.Client
	// SubmitTimeout bounds the submission call. It should stay well below
	// Policy.MaxWait.
	SubmitTimeout time.Duration
	// PollTimeout bounds each individual status call.
	PollTimeout time.Duration
	// Policy holds the defaults a Request may override.
	Policy   Policy
	Clock    Clock
	Logger   *infra.Logger
	Observer Observer
}

func (o Options) withDefaults() Options {
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{}
	}
	if o.SubmitTimeout <= 0 {
		o.SubmitTimeout = 30 * time.Second
	}
	if o.PollTimeout <= 0 {
		o.PollTimeout = 10 * time.Second
	}
	if o.Policy.Interval <= 0 {
		o.Policy.Interval = DefaultPolicy.Interval
	}
	if o.Policy.MaxWait <= 0 {
		o.Policy.MaxWait = DefaultPolicy.MaxWait
	}
	if o.Policy.Backoff == "" {
		o.Policy.Backoff = DefaultPolicy.Backoff
	}
	if o.Clock == nil {
		o.Clock = SystemClock
	}
	if o.Logger == nil {
		o.Logger = infra.DiscardLogger()
	}
	if o.Observer == nil {
		o.Observer = NopObserver{}
	}
	return o
}

// Submitter performs the single submission call of a job.
type Submitter struct {
	client   *http.Client
	timeout  time.Duration
	clock    Clock
	logger   *infra.Logger
	observer Observer
}

// NewSubmitter constructs a Submitter; zero options take defaults.
func NewSubmitter(opts Options) *Submitter {
	opts = opts.withDefaults()
	return &Submitter{
		client:   opts.HTTPClient,
		timeout:  opts.SubmitTimeout,
		clock:    opts.Clock,
		logger:   opts.Logger,
		observer: opts.Observer,
	}
}

// Submit validates req locally, issues exactly one HTTP call and reports
// whether the provider finished synchronously or deferred the job.
func (s *Submitter) Submit(ctx context.Context, a Adapter, req Request) (Submission, error) {
	if err := a.Validate(req); err != nil {
		return Submission{}, asError(err, KindValidation)
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = uuid.NewString()
	}
	call, err := a.BuildSubmission(req)
	if err != nil {
		return Submission{}, asError(err, KindValidation)
	}

	start := s.clock.Now()
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := do(callCtx, s.client, call)
	var sub Submission
	if err == nil {
		sub, err = a.ParseSubmission(resp)
	}
	if err == nil {
		sub, err = s.normalize(a, sub)
	}
	elapsed := s.clock.Now().Sub(start)
	if err != nil {
		jerr := asError(err, KindFatal)
		s.observer.SubmitObserved(a.Name(), jerr.Kind, false, elapsed)
		s.logger.Warn().
			Err(jerr).
			Str("provider", a.Name()).
			Str("kind", string(jerr.Kind)).
			Str("idempotency_key", req.IdempotencyKey).
			Msg("jobs: submission failed")
		return Submission{}, jerr
	}

	s.observer.SubmitObserved(a.Name(), KindNone, sub.Deferred != nil, elapsed)
	evt := s.logger.Info().
		Str("provider", a.Name()).
		Str("idempotency_key", req.IdempotencyKey).
		Bool("deferred", sub.Deferred != nil)
	if sub.Deferred != nil {
		evt = evt.Str("job_id", sub.Deferred.ID)
	}
	evt.Msg("jobs: submitted")
	return sub, nil
}

// Fetch issues a single call that is not part of a job, such as a catalog
// lookup. It shares the submission timeout; the caller classifies the
// response.
func (s *Submitter) Fetch(ctx context.Context, call Call) (Response, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return do(callCtx, s.client, call)
}

// normalize stamps provider and timestamps and enforces that exactly one
// outcome is present.
func (s *Submitter) normalize(a Adapter, sub Submission) (Submission, error) {
	now := s.clock.Now()
	switch {
	case sub.Immediate != nil && sub.Deferred == nil:
		res := *sub.Immediate
		res.Provider = a.Name()
		if res.Status == "" {
			res.Status = StatusSucceeded
		}
		if res.CompletedAt.IsZero() {
			res.CompletedAt = now
		}
		return Submission{Immediate: &res}, nil
	case sub.Deferred != nil && sub.Immediate == nil:
		h := *sub.Deferred
		h.Provider = a.Name()
		if h.SubmittedAt.IsZero() {
			h.SubmittedAt = now
		}
		if h.StatusURL == "" {
			return Submission{}, Fatal("%s: deferred job %q has no status endpoint", a.Name(), h.ID)
		}
		return Submission{Deferred: &h}, nil
	}
	return Submission{}, Fatal("%s: submission must be either immediate or deferred", a.Name())
}
