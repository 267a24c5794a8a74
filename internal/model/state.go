package model

// JobState represents the state of a download job
type JobState string

const (
	// JobStateQueued means the job is accepted but not started
	JobStateQueued JobState = "Queued"

	// JobStateRunning means the extractor process is running
	JobStateRunning JobState = "Running"

	// JobStateCompleted means the job finished successfully
	JobStateCompleted JobState = "Completed"

	// JobStateFailed means the job failed with an error
	JobStateFailed JobState = "Failed"

	// JobStateCancelled means the job was cancelled by the user
	JobStateCancelled JobState = "Cancelled"
)

// String returns the string representation of JobState
func (s JobState) String() string {
	return string(s)
}

// IsTerminal returns true if no transition can leave this state
func (s JobState) IsTerminal() bool {
	return s == JobStateCompleted || s == JobStateFailed || s == JobStateCancelled
}
