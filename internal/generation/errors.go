package generation

import "fmt"

// SubmissionError is returned when the API rejects or never receives a
// generation request. No job is tracked for it.
type SubmissionError struct {
	Err error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("submitting generation request: %v", e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// RenameError is returned when an episode could not be renamed. The job's
// status is left as it was.
type RenameError struct {
	EpisodeID int64
	Err       error
}

func (e *RenameError) Error() string {
	return fmt.Sprintf("renaming episode %d: %v", e.EpisodeID, e.Err)
}

func (e *RenameError) Unwrap() error { return e.Err }
