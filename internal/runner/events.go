package runner

import "time"

// Status is the progress state of a case.
type Status string

const (
	// StatusQueued indicates the case is waiting to run.
	StatusQueued Status = "queued"
	// StatusRunning indicates the case is running.
	StatusRunning Status = "running"
	// StatusPassed indicates the case passed.
	StatusPassed Status = "passed"
	// StatusFailed indicates the case failed.
	StatusFailed Status = "failed"
	// StatusSkipped indicates the case was not run (fail-fast).
	StatusSkipped Status = "skipped"
)

// Event reports progress of one case.
type Event struct {
	Index    int
	Name     string
	Status   Status
	Isolated bool
	Reason   string
	Elapsed  time.Duration
}

// ProgressSink consumes progress events.
type ProgressSink interface {
	OnEvent(Event)
}

// ChannelSink forwards events into a channel.
type ChannelSink struct {
	Ch chan<- Event
}

func (s ChannelSink) OnEvent(evt Event) {
	if s.Ch == nil {
		return
	}
	s.Ch <- evt
}
