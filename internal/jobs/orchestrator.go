package jobs

import (
	"context"

	"golang.org/x/sync/errgroup"

	"studio/internal/infra"
)

// Orchestrator is the single entry point used by callers: submit a job,
// then await it when the provider deferred completion.
type Orchestrator struct {
	submitter *Submitter
	poller    *Poller
	policy    Policy
	clock     Clock
	logger    *infra.Logger
	observer  Observer
}

// New constructs an Orchestrator; zero options take defaults.
func New(opts Options) *Orchestrator {
	opts = opts.withDefaults()
	return &Orchestrator{
		submitter: NewSubmitter(opts),
		poller:    NewPoller(opts),
		policy:    opts.Policy,
		clock:     opts.Clock,
		logger:    opts.Logger,
		observer:  opts.Observer,
	}
}

// Policy returns the default polling policy.
func (o *Orchestrator) Policy() Policy {
	return o.policy
}

// Submit issues the submission call only.
func (o *Orchestrator) Submit(ctx context.Context, a Adapter, req Request) (Submission, error) {
	return o.submitter.Submit(ctx, a, req)
}

// Fetch issues a synchronous call outside the job lifecycle.
func (o *Orchestrator) Fetch(ctx context.Context, call Call) (Response, error) {
	return o.submitter.Fetch(ctx, call)
}

// AwaitCompletion polls a previously deferred job.
func (o *Orchestrator) AwaitCompletion(ctx context.Context, a Adapter, h Handle, policy Policy) (Result, error) {
	return o.poller.AwaitCompletion(ctx, a, h, policy)
}

// Run drives req to a terminal result. Submission errors are returned as is;
// polling only happens for deferred jobs.
func (o *Orchestrator) Run(ctx context.Context, a Adapter, req Request) (Result, error) {
	start := o.clock.Now()
	policy := req.Policy(o.policy)

	sub, err := o.submitter.Submit(ctx, a, req)
	if err != nil {
		o.observer.JobFinished(a.Name(), StatusFailed, KindOf(err), o.clock.Now().Sub(start))
		return Result{
			Status:      StatusFailed,
			Provider:    a.Name(),
			Message:     err.Error(),
			CompletedAt: o.clock.Now(),
		}, err
	}
	if sub.Immediate != nil {
		o.observer.JobFinished(a.Name(), sub.Immediate.Status, KindNone, o.clock.Now().Sub(start))
		return *sub.Immediate, nil
	}

	res, err := o.poller.AwaitCompletion(ctx, a, *sub.Deferred, policy)
	o.observer.JobFinished(a.Name(), res.Status, KindOf(err), o.clock.Now().Sub(start))
	return res, err
}

// Job pairs a request with the adapter that serves it.
type Job struct {
	Adapter Adapter
	Request Request
}

// Outcome is the result of one job run by RunAll.
type Outcome struct {
	Result Result
	Err    error
}

// RunAll runs independent jobs concurrently, at most limit at a time (no
// limit when limit <= 0). A failing job does not cancel the others; outcomes
// are returned in input order.
func (o *Orchestrator) RunAll(ctx context.Context, jobs []Job, limit int) []Outcome {
	out := make([]Outcome, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, job := range jobs {
		i, job := i, job
		g.Go(func() error {
			res, err := o.Run(gctx, job.Adapter, job.Request)
			out[i] = Outcome{Result: res, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return out
}
