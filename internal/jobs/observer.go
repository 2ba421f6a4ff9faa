package jobs

import "time"

// Observer receives job lifecycle events. Implementations must be safe for
// concurrent use; the orchestrator calls them from every running job.
type Observer interface {
	SubmitObserved(provider string, kind Kind, deferred bool, elapsed time.Duration)
	PollObserved(provider string, status Status, kind Kind)
	JobFinished(provider string, status Status, kind Kind, elapsed time.Duration)
}

// NopObserver discards all events.
type NopObserver struct{}

func (NopObserver) SubmitObserved(string, Kind, bool, time.Duration) {}
func (NopObserver) PollObserved(string, Status, Kind)                {}
func (NopObserver) JobFinished(string, Status, Kind, time.Duration)  {}
