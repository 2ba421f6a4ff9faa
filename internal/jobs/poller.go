package jobs

import (
	"context"
	"net/http"
	"time"

	"studio/internal/infra"
)

// Poller awaits deferred jobs by polling their status endpoint.
type Poller struct {
	client   *http.Client
	timeout  time.Duration
	policy   Policy
	clock    Clock
	logger   *infra.Logger
	observer Observer
}

// NewPoller constructs a Poller; zero options take defaults.
func NewPoller(opts Options) *Poller {
	opts = opts.withDefaults()
	return &Poller{
		client:   opts.HTTPClient,
		timeout:  opts.PollTimeout,
		policy:   opts.Policy,
		clock:    opts.Clock,
		logger:   opts.Logger,
		observer: opts.Observer,
	}
}

// AwaitCompletion polls h until the provider reports a terminal state, the
// policy's MaxWait elapses or ctx is done. Transient and rate limited poll
// failures are retried within the budget; every other failure is returned
// at once. No call is issued after a terminal state has been observed.
func (p *Poller) AwaitCompletion(ctx context.Context, a Adapter, h Handle, policy Policy) (Result, error) {
	if policy.Interval <= 0 {
		policy.Interval = p.policy.Interval
	}
	if policy.MaxWait <= 0 {
		policy.MaxWait = p.policy.MaxWait
	}
	log := p.logger.With().Str("provider", a.Name()).Str("job_id", h.ID).Logger()

	start := p.clock.Now()
	deadline := start.Add(policy.MaxWait)
	last := StatusQueued

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return p.cancelled(&log, a, h, last, err)
		}
		if !p.clock.Now().Before(deadline) {
			return p.timedOut(&log, a, h, last, policy.MaxWait)
		}

		res, err := p.poll(ctx, a, h, deadline)
		wait := policy.Interval
		switch {
		case err != nil:
			if ctxErr := ctx.Err(); ctxErr != nil {
				return p.cancelled(&log, a, h, last, ctxErr)
			}
			jerr := asError(err, KindFatal)
			p.observer.PollObserved(a.Name(), last, jerr.Kind)
			if !IsRetryable(jerr.Kind) {
				log.Warn().Err(jerr).Str("kind", string(jerr.Kind)).Int("attempt", attempt).Msg("jobs: poll failed")
				return p.result(a, h, StatusFailed, jerr.Error()), jerr
			}
			if policy.Backoff == BackoffFixed && jerr.RetryAfter > wait {
				wait = jerr.RetryAfter
			}
			log.Debug().Err(jerr).Int("attempt", attempt).Dur("wait", wait).Msg("jobs: retrying poll")
		case res.Status.Terminal():
			p.observer.PollObserved(a.Name(), res.Status, KindNone)
			return p.terminal(&log, res, attempt)
		default:
			last = res.Status
			p.observer.PollObserved(a.Name(), res.Status, KindNone)
			log.Debug().Str("status", string(res.Status)).Int("attempt", attempt).Msg("jobs: pending")
		}

		if remaining := deadline.Sub(p.clock.Now()); wait > remaining {
			wait = remaining
		}
		if wait > 0 {
			if err := p.clock.Sleep(ctx, wait); err != nil {
				return p.cancelled(&log, a, h, last, err)
			}
		}
	}
}

// poll issues one status call. The call is bounded by the poll timeout and
// by what is left of the polling budget, whichever is shorter.
func (p *Poller) poll(ctx context.Context, a Adapter, h Handle, deadline time.Time) (Result, error) {
	call, err := a.BuildStatus(h)
	if err != nil {
		return Result{}, asError(err, KindFatal)
	}
	timeout := p.timeout
	if remaining := deadline.Sub(p.clock.Now()); remaining < timeout {
		timeout = remaining
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := do(callCtx, p.client, call)
	if err != nil {
		return Result{}, err
	}
	res, err := a.ParseStatus(resp)
	if err != nil {
		return Result{}, asError(err, KindFatal)
	}
	res.Provider = a.Name()
	if res.JobID == "" {
		res.JobID = h.ID
	}
	return res, nil
}

func (p *Poller) terminal(log *infra.Logger, res Result, attempts int) (Result, error) {
	if res.CompletedAt.IsZero() {
		res.CompletedAt = p.clock.Now()
	}
	evt := log.Info().Str("status", string(res.Status)).Int("attempts", attempts)
	switch res.Status {
	case StatusSucceeded:
		evt.Msg("jobs: completed")
		return res, nil
	case StatusTimedOut:
		evt.Msg("jobs: provider timed out")
		return res, &Error{Kind: KindTransient, Message: res.Message, Err: ErrTimedOut}
	default:
		msg := res.Message
		if msg == "" {
			msg = "provider reported failure"
		}
		evt.Str("message", msg).Msg("jobs: failed")
		return res, &Error{Kind: KindFatal, Message: msg, Err: ErrJobFailed}
	}
}

func (p *Poller) timedOut(log *infra.Logger, a Adapter, h Handle, last Status, budget time.Duration) (Result, error) {
	log.Warn().Str("last_status", string(last)).Dur("max_wait", budget).Msg("jobs: polling budget exhausted")
	res := p.result(a, h, StatusTimedOut, "job still "+string(last)+" after "+budget.String())
	return res, &Error{Kind: KindTransient, Message: res.Message, Err: ErrTimedOut}
}

func (p *Poller) cancelled(log *infra.Logger, a Adapter, h Handle, last Status, cause error) (Result, error) {
	log.Info().Err(cause).Str("last_status", string(last)).Msg("jobs: polling cancelled")
	res := p.result(a, h, last, "polling cancelled")
	return res, &Error{Kind: KindTransient, Message: res.Message, Err: cause}
}

func (p *Poller) result(a Adapter, h Handle, status Status, msg string) Result {
	return Result{
		Status:      status,
		Provider:    a.Name(),
		JobID:       h.ID,
		Message:     msg,
		CompletedAt: p.clock.Now(),
	}
}
