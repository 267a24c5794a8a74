package model

// EventType identifies a job state transition or progress update
type EventType string

const (
	// EventStarted fires when a job leaves the queue and its process starts
	EventStarted EventType = "started"

	// EventProgress fires for each parsed progress update of a running job
	EventProgress EventType = "progress"

	// EventCompleted fires when a job finishes successfully
	EventCompleted EventType = "completed"

	// EventFailed fires when a job ends with an error
	EventFailed EventType = "failed"

	// EventCancelled fires when a job is cancelled by the user
	EventCancelled EventType = "cancelled"
)

// Event is one observation published by the download engine. Job is a
// snapshot copy; subscribers must not mutate it but may keep it.
type Event struct {
	Type EventType
	Job  *DownloadJob
}

// Terminal returns true if the event reports a terminal job state
func (e Event) Terminal() bool {
	return e.Type == EventCompleted || e.Type == EventFailed || e.Type == EventCancelled
}
