package model

// JobState is the tagged variant driving a task's lifecycle:
// Queued | Running | Retrying | FetchingResult | Succeeded | Failed.
type JobState interface {
	jobState()
}

type Queued struct{}

type Running struct{}

// Retrying is the local display state while a status query is retried
// after a network failure.
type Retrying struct{ Attempt int }

// FetchingResult means the job reported success but no result yet.
type FetchingResult struct{ Attempt int }

type Succeeded struct {
	ResultURL string
	Usage     *Usage
}

type Failed struct{ Reason string }

func (Queued) jobState()         {}
func (Running) jobState()        {}
func (Retrying) jobState()       {}
func (FetchingResult) jobState() {}
func (Succeeded) jobState()      {}
func (Failed) jobState()         {}

// progressFetching is shown while the result URL is being fetched.
const progressFetching = 99

// Apply returns the task after transitioning into s.
// Terminal tasks are returned unchanged.
func (t Task) Apply(s JobState) Task {
	if t.IsTerminal() {
		return t
	}
	switch s := s.(type) {
	case Queued:
		t.Status = StatusQueued
		t.RetryCount = 0
	case Running:
		t.Status = StatusRunning
		t.RetryCount = 0
	case Retrying:
		t.Status = StatusRetrying
		t.RetryCount = s.Attempt
	case FetchingResult:
		t.Status = StatusFetchingResult
		t.RetryCount = 0
		if t.Progress < progressFetching {
			t.Progress = progressFetching
		}
	case Succeeded:
		t.Status = StatusSuccess
		t.ResultURL = s.ResultURL
		t.Progress = 100
		t.RetryCount = 0
		t.FailureReason = ""
		if s.Usage != nil {
			u := *s.Usage
			t.Usage = &u
		}
	case Failed:
		t.Status = StatusFailed
		t.Progress = 0
		t.RetryCount = 0
		t.FailureReason = s.Reason
	}
	return t
}
