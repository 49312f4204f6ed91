package usecase

import "time"

// ItemFailure names one review the run could not fully process and the stage
// where it stopped.
type ItemFailure struct {
	IdentityKey string
	Author      string
	Stage       string
	Reason      string
}

// RunSummary is produced once per invocation for observability. It is owned
// by the orchestrator for the duration of the run and never persisted.
type RunSummary struct {
	RunID       string
	StartedAt   time.Time
	FinishedAt  time.Time
	Extracted   int
	Malformed   int
	NewDetected int
	Resumed     int
	Skipped     int
	Classified  int
	Notified    int
	Failures    []ItemFailure
}

func (s *RunSummary) fail(identityKey, author, stage string, err error) {
	s.Failures = append(s.Failures, ItemFailure{
		IdentityKey: identityKey,
		Author:      author,
		Stage:       stage,
		Reason:      err.Error(),
	})
}

// AllFailed reports whether a non-empty batch produced zero successful
// notifications; the process exits non-zero in that case. Reviews another
// invocation claimed first were never ours to deliver and do not count.
func (s RunSummary) AllFailed() bool {
	attempted := s.NewDetected - s.Skipped + s.Resumed
	return attempted > 0 && s.Notified == 0
}
